package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sittingbulll/tokenwatch/internal/domain/model"
	"github.com/sittingbulll/tokenwatch/internal/store"
)

// ApprovalRepo persists approval decisions in Postgres. The mint address
// primary key plus ON CONFLICT DO NOTHING give the first-writer-wins
// semantics PutIfAbsent promises.
type ApprovalRepo struct {
	db *DB
}

func NewApprovalRepo(db *DB) *ApprovalRepo {
	return &ApprovalRepo{db: db}
}

const approvalColumns = `mint_address, status, token_name, token_symbol, twitter_handle, notable_count, reason, wallet_label, decided_at`

func scanApproval(row interface{ Scan(...any) error }) (*model.ApprovalRecord, error) {
	var rec model.ApprovalRecord
	var status string
	if err := row.Scan(
		&rec.MintAddress,
		&status,
		&rec.TokenName,
		&rec.TokenSymbol,
		&rec.TwitterHandle,
		&rec.NotableCount,
		&rec.Reason,
		&rec.WalletLabel,
		&rec.Timestamp,
	); err != nil {
		return nil, err
	}
	rec.Status = model.ApprovalStatus(status)
	return &rec, nil
}

func (r *ApprovalRepo) Get(ctx context.Context, mint string) (*model.ApprovalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM token_approvals WHERE mint_address = $1`, mint)
	rec, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get approval %s: %w", mint, err)
	}
	return rec, nil
}

func (r *ApprovalRepo) PutIfAbsent(ctx context.Context, rec *model.ApprovalRecord) (bool, *model.ApprovalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO token_approvals (`+approvalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (mint_address) DO NOTHING`,
		rec.MintAddress,
		string(rec.Status),
		rec.TokenName,
		rec.TokenSymbol,
		rec.TwitterHandle,
		rec.NotableCount,
		rec.Reason,
		rec.WalletLabel,
		rec.Timestamp,
	)
	if err != nil {
		return false, nil, fmt.Errorf("insert approval %s: %w", rec.MintAddress, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("insert approval %s: rows affected: %w", rec.MintAddress, err)
	}
	if affected == 1 {
		return true, nil, nil
	}

	existing, err := r.Get(ctx, rec.MintAddress)
	if err != nil {
		return false, nil, fmt.Errorf("load existing approval %s: %w", rec.MintAddress, err)
	}
	return false, existing, nil
}

func (r *ApprovalRepo) List(ctx context.Context, limit, offset int) ([]model.ApprovalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+approvalColumns+` FROM token_approvals
		 ORDER BY decided_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var records []model.ApprovalRecord
	for rows.Next() {
		rec, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return records, nil
}

func (r *ApprovalRepo) Stats(ctx context.Context) (store.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var stats store.Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status != $1)
		FROM token_approvals`, string(model.StatusApproved),
	).Scan(&stats.Total, &stats.Approved, &stats.Rejected)
	if err != nil {
		return store.Stats{}, fmt.Errorf("approval stats: %w", err)
	}
	return stats, nil
}

func (r *ApprovalRepo) Close() error {
	return r.db.Close()
}
