package model

import "strings"

// MetadataProgramID is the on-chain program whose instructions carry token
// metadata payloads for newly minted tokens.
const MetadataProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

// WrappedNativeMint is the wrapped native SOL mint. Transfers of it are
// plumbing, not launches, and carry no creator metadata.
const WrappedNativeMint = "So11111111111111111111111111111111111111112"

// WebhookTransaction is one element of the enhanced-transaction array the
// blockchain provider POSTs to the webhook endpoint. Only the fields the
// pipeline reads are declared; the provider sends many more.
type WebhookTransaction struct {
	FeePayer       string              `json:"feePayer"`
	Description    string              `json:"description"`
	TokenTransfers []TokenTransfer     `json:"tokenTransfers"`
	Instructions   []InstructionRecord `json:"instructions"`
}

// TokenTransfer is a single token movement within a transaction.
type TokenTransfer struct {
	Mint           string `json:"mint"`
	ToTokenAccount string `json:"toTokenAccount"`
	TokenName      string `json:"tokenName"`
	TokenSymbol    string `json:"tokenSymbol"`
}

// InstructionRecord carries a program invocation and its raw data payload.
// Data is base64-ish or base58 encoded depending on the provider.
type InstructionRecord struct {
	ProgramID         string              `json:"programId"`
	Data              string              `json:"data"`
	InnerInstructions []InstructionRecord `json:"innerInstructions"`
}

// TokenEvent is the parsed, call-scoped view of one webhook notification.
// It is discarded once the pipeline reaches a terminal decision.
type TokenEvent struct {
	MintAddress  string
	FeePayer     string
	Description  string
	Transfers    []TokenTransfer
	Instructions []InstructionRecord
}

// EventFromTransaction extracts a TokenEvent from the first transaction of a
// webhook batch. Returns nil if no transfer carries a mint; malformed
// payloads are common and must not be treated as errors.
func EventFromTransaction(tx *WebhookTransaction) *TokenEvent {
	if tx == nil || len(tx.TokenTransfers) == 0 {
		return nil
	}
	mint := tx.TokenTransfers[0].Mint
	if mint == "" {
		return nil
	}
	return &TokenEvent{
		MintAddress:  mint,
		FeePayer:     tx.FeePayer,
		Description:  tx.Description,
		Transfers:    tx.TokenTransfers,
		Instructions: tx.Instructions,
	}
}

// MetadataInstructions returns the raw data payloads of every invocation of
// the metadata program, walking inner instructions too.
func (e *TokenEvent) MetadataInstructions() []string {
	var out []string
	var walk func(recs []InstructionRecord)
	walk = func(recs []InstructionRecord) {
		for _, rec := range recs {
			if rec.ProgramID == MetadataProgramID && rec.Data != "" {
				out = append(out, rec.Data)
			}
			walk(rec.InnerInstructions)
		}
	}
	walk(e.Instructions)
	return out
}

// WrappedNative reports whether the event moves wrapped native SOL rather
// than a newly launched token.
func (e *TokenEvent) WrappedNative() bool {
	if e.MintAddress == WrappedNativeMint {
		return true
	}
	return strings.Contains(e.Description, "Wrapped SOL")
}

// SelfMint reports whether the freshly minted supply landed on the fee
// payer's own token account, a pattern seen in spoofed launches.
func (e *TokenEvent) SelfMint() bool {
	if len(e.Transfers) == 0 {
		return false
	}
	first := e.Transfers[0]
	return first.Mint != "" && first.Mint == first.ToTokenAccount
}
