package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sittingbulll/tokenwatch/internal/domain/model"
	"github.com/sittingbulll/tokenwatch/internal/notables"
	"github.com/sittingbulll/tokenwatch/internal/store"
)

// Guard names, used as the discard label in logs and metrics.
const (
	GuardAllowList = "not_allowlisted"
	GuardSelfMint  = "self_mint"
)

// Engine decides whether a discovered token deserves an alert. Every mint
// moves through unseen -> approved or rejected exactly once; the decision
// is persisted before anyone is told about it.
type Engine struct {
	wallets   map[string]string
	required  int
	approvals store.ApprovalRepository
	logger    *slog.Logger
	clock     func() time.Time
}

func NewEngine(wallets map[string]string, required int, approvals store.ApprovalRepository, logger *slog.Logger) *Engine {
	return &Engine{
		wallets:   wallets,
		required:  required,
		approvals: approvals,
		logger:    logger.With("component", "policy_engine"),
		clock:     time.Now,
	}
}

// Admit applies the pre-decision guards. Events failing a guard are
// discarded with no record written, keeping the store bounded to relevant
// activity. The returned label is the allow-list name for the fee payer.
func (e *Engine) Admit(ev *model.TokenEvent) (label, guard string, ok bool) {
	label, listed := e.wallets[ev.FeePayer]
	if !listed {
		return "", GuardAllowList, false
	}
	// A launch wallet receiving its own freshly minted supply is the
	// spoofed-mint pattern, not a real launch.
	if ev.SelfMint() {
		return "", GuardSelfMint, false
	}
	return label, "", true
}

// Existing returns the prior decision for mint, or nil when unseen.
func (e *Engine) Existing(ctx context.Context, mint string) (*model.ApprovalRecord, error) {
	rec, err := e.approvals.Get(ctx, mint)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup approval %s: %w", mint, err)
	}
	return rec, nil
}

// Decide computes the terminal decision for mint and persists it with
// first-writer-wins semantics. created reports whether this call wrote the
// record; when false, rec is the earlier decision and the caller must not
// notify again.
func (e *Engine) Decide(ctx context.Context, mint string, meta *model.TokenMetadata, res notables.Result, lookupErr error, label string) (created bool, rec *model.ApprovalRecord, err error) {
	status, reason := e.evaluate(meta, res, lookupErr)

	rec = &model.ApprovalRecord{
		MintAddress:  mint,
		Status:       status,
		NotableCount: res.Total,
		Reason:       reason,
		WalletLabel:  label,
		Timestamp:    e.clock().UTC(),
	}
	if meta != nil {
		rec.TokenName = meta.Name
		rec.TokenSymbol = meta.Symbol
		rec.TwitterHandle = meta.TwitterHandle
	}

	created, existing, err := e.approvals.PutIfAbsent(ctx, rec)
	if err != nil {
		return false, nil, fmt.Errorf("persist approval %s: %w", mint, err)
	}
	if !created {
		e.logger.Info("mint already decided", "mint", mint, "status", existing.Status)
		return false, existing, nil
	}

	e.logger.Info("mint decided",
		"mint", mint,
		"status", rec.Status,
		"reason", rec.Reason,
		"notable_count", rec.NotableCount,
		"wallet", label)
	return true, rec, nil
}

func (e *Engine) evaluate(meta *model.TokenMetadata, res notables.Result, lookupErr error) (model.ApprovalStatus, string) {
	switch {
	case meta == nil:
		return model.StatusRejected, model.ReasonNoMetadata
	case meta.TwitterHandle == "":
		return model.StatusRejected, model.ReasonNoTwitter
	case lookupErr != nil:
		return model.StatusRejected, model.ReasonLookupFailed
	case res.Total >= e.required:
		return model.StatusApproved, ""
	default:
		return model.StatusRejected, model.ReasonBelowThreshold
	}
}
