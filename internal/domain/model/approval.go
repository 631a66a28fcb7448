package model

import "time"

// ApprovalStatus is the terminal outcome for a mint.
type ApprovalStatus string

const (
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// Rejection reasons recorded on ApprovalRecord.Reason.
const (
	ReasonNoMetadata     = "no_metadata"
	ReasonNoTwitter      = "no_twitter_handle"
	ReasonBelowThreshold = "below_threshold"
	ReasonLookupFailed   = "notables_lookup_failed"
)

// ApprovalRecord is the durable outcome for a mint. At most one record
// exists per mint address; records are appended, never mutated.
type ApprovalRecord struct {
	MintAddress   string         `json:"mintAddress"`
	Status        ApprovalStatus `json:"status"`
	TokenName     string         `json:"tokenName"`
	TokenSymbol   string         `json:"tokenSymbol"`
	TwitterHandle string         `json:"twitterHandle,omitempty"`
	NotableCount  int            `json:"notableCount"`
	Reason        string         `json:"reason,omitempty"`
	WalletLabel   string         `json:"walletLabel,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Approved reports whether the record is an approval.
func (r *ApprovalRecord) Approved() bool {
	return r != nil && r.Status == StatusApproved
}
