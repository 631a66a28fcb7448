package leveldbstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/sittingbulll/tokenwatch/internal/domain/model"
	"github.com/sittingbulll/tokenwatch/internal/store"
)

const (
	approvalPrefix = "approval:"
	contentPrefix  = "cid:"
)

// Store is an embedded LevelDB database backing both the approval log and
// the content cache. It is the default persistence when no external
// database is configured.
type Store struct {
	db *leveldb.DB

	// LevelDB has no conditional put, so the check-then-write in
	// PutIfAbsent is serialized here.
	mu sync.Mutex
}

func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func approvalKey(mint string) []byte {
	return []byte(approvalPrefix + mint)
}

func (s *Store) Get(ctx context.Context, mint string) (*model.ApprovalRecord, error) {
	raw, err := s.db.Get(approvalKey(mint), nil)
	if err == leveldb.ErrNotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get approval %s: %w", mint, err)
	}
	var rec model.ApprovalRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode approval %s: %w", mint, err)
	}
	return &rec, nil
}

func (s *Store) PutIfAbsent(ctx context.Context, rec *model.ApprovalRecord) (bool, *model.ApprovalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.Get(ctx, rec.MintAddress)
	if err == nil {
		return false, existing, nil
	}
	if err != store.ErrNotFound {
		return false, nil, err
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return false, nil, fmt.Errorf("encode approval %s: %w", rec.MintAddress, err)
	}
	if err := s.db.Put(approvalKey(rec.MintAddress), raw, nil); err != nil {
		return false, nil, fmt.Errorf("put approval %s: %w", rec.MintAddress, err)
	}
	return true, nil, nil
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]model.ApprovalRecord, error) {
	var records []model.ApprovalRecord
	iter := s.db.NewIterator(util.BytesPrefix([]byte(approvalPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		var rec model.ApprovalRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("decode approval %s: %w", iter.Key(), err)
		}
		records = append(records, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan approvals: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if offset >= len(records) {
		return nil, nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats
	iter := s.db.NewIterator(util.BytesPrefix([]byte(approvalPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		var rec model.ApprovalRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return store.Stats{}, fmt.Errorf("decode approval %s: %w", iter.Key(), err)
		}
		stats.Total++
		if rec.Status == model.StatusApproved {
			stats.Approved++
		} else {
			stats.Rejected++
		}
	}
	if err := iter.Error(); err != nil {
		return store.Stats{}, fmt.Errorf("scan approvals: %w", err)
	}
	return stats, nil
}

func contentKey(key string) []byte {
	return []byte(contentPrefix + key)
}

// ContentGet implements the content cache read path.
func (s *Store) ContentGet(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.db.Get(contentKey(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content %s: %w", key, err)
	}
	return raw, nil
}

// ContentPut implements the content cache write path.
func (s *Store) ContentPut(ctx context.Context, key string, doc []byte) error {
	if err := s.db.Put(contentKey(key), doc, nil); err != nil {
		return fmt.Errorf("put content %s: %w", key, err)
	}
	return nil
}

// ContentCache adapts the store to the store.ContentCache interface while
// sharing the underlying database with the approval log.
func (s *Store) ContentCache() store.ContentCache {
	return &contentCache{s: s}
}

type contentCache struct {
	s *Store
}

func (c *contentCache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.s.ContentGet(ctx, key)
}

func (c *contentCache) Put(ctx context.Context, key string, doc []byte) error {
	return c.s.ContentPut(ctx, key, doc)
}

// Close is a no-op: the owning Store closes the database.
func (c *contentCache) Close() error { return nil }
