package store

import (
	"context"
	"errors"

	"github.com/sittingbulll/tokenwatch/internal/domain/model"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Stats aggregates decision counts for the status endpoints.
type Stats struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// ApprovalRepository persists per-mint approval decisions. The mint address
// is the primary key: a mint is decided at most once.
type ApprovalRepository interface {
	// Get returns the record for mint, or ErrNotFound.
	Get(ctx context.Context, mint string) (*model.ApprovalRecord, error)

	// PutIfAbsent stores rec unless a record for its mint already exists.
	// It returns created=true when rec was written, otherwise the existing
	// record. This is the idempotency gate for the whole pipeline.
	PutIfAbsent(ctx context.Context, rec *model.ApprovalRecord) (created bool, existing *model.ApprovalRecord, err error)

	// List returns records in reverse chronological order.
	List(ctx context.Context, limit, offset int) ([]model.ApprovalRecord, error)

	// Stats returns aggregate decision counts.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// ContentCache stores fetched off-chain documents keyed by content
// identifier, so repeated mentions of the same URI cost one fetch.
type ContentCache interface {
	// Get returns the cached document for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores the document under key.
	Put(ctx context.Context, key string, doc []byte) error

	Close() error
}
