//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sittingbulll/tokenwatch/internal/domain/model"
	"github.com/sittingbulll/tokenwatch/internal/store"
	"github.com/sittingbulll/tokenwatch/internal/store/postgres"
)

// testDB connects to TEST_DB_URL when set, otherwise starts an ephemeral
// container via testcontainers.
func testDB(t *testing.T) *postgres.DB {
	t.Helper()
	url := os.Getenv("TEST_DB_URL")
	if url != "" {
		db, err := postgres.New(postgres.Config{
			URL:             url,
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Minute,
		})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return db
	}
	return setupTestContainer(t)
}

func testRecord(mint string, status model.ApprovalStatus) *model.ApprovalRecord {
	return &model.ApprovalRecord{
		MintAddress:   mint,
		Status:        status,
		TokenName:     "Integration Token",
		TokenSymbol:   "ITG",
		TwitterHandle: "itg_dev",
		NotableCount:  7,
		WalletLabel:   "Believe",
		Timestamp:     time.Now().UTC(),
	}
}

func TestApprovalRepo_PutIfAbsentIdempotent(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewApprovalRepo(db)
	ctx := context.Background()
	mint := "mint-" + uuid.NewString()[:8]

	created, existing, err := repo.PutIfAbsent(ctx, testRecord(mint, model.StatusApproved))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, existing)

	// Replay of the same mint must not overwrite the first decision.
	second := testRecord(mint, model.StatusRejected)
	second.Reason = model.ReasonBelowThreshold
	created, existing, err = repo.PutIfAbsent(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, existing)
	assert.Equal(t, model.StatusApproved, existing.Status)

	got, err := repo.Get(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
	assert.Equal(t, "itg_dev", got.TwitterHandle)
	assert.Equal(t, 7, got.NotableCount)
}

func TestApprovalRepo_GetMissing(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewApprovalRepo(db)

	_, err := repo.Get(context.Background(), "mint-"+uuid.NewString()[:8])
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestApprovalRepo_ListAndStats(t *testing.T) {
	db := testDB(t)
	repo := postgres.NewApprovalRepo(db)
	ctx := context.Background()

	prefix := uuid.NewString()[:8]
	for i, status := range []model.ApprovalStatus{model.StatusApproved, model.StatusRejected, model.StatusRejected} {
		rec := testRecord(prefix+"-"+uuid.NewString()[:8], status)
		rec.Timestamp = time.Now().UTC().Add(time.Duration(i) * time.Second)
		created, _, err := repo.PutIfAbsent(ctx, rec)
		require.NoError(t, err)
		require.True(t, created)
	}

	records, err := repo.List(ctx, 50, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(records), 3)
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].Timestamp.After(records[i-1].Timestamp), "list must be newest first")
	}

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Total, 3)
	assert.GreaterOrEqual(t, stats.Approved, 1)
	assert.GreaterOrEqual(t, stats.Rejected, 2)
	assert.Equal(t, stats.Total, stats.Approved+stats.Rejected)
}
