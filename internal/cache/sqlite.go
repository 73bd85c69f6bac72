package cache

import (
	"context"
	"time"

	"github.com/houhuawei23/ai-anki-cards/internal/store"
)

// SQLiteStore keeps entries in the application database.
type SQLiteStore struct {
	repo store.CacheRepo
	ttl  time.Duration
}

// NewSQLiteStore wraps repo. ttl <= 0 keeps entries forever.
func NewSQLiteStore(repo store.CacheRepo, ttl time.Duration) *SQLiteStore {
	return &SQLiteStore{repo: repo, ttl: ttl}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.repo.Get(ctx, key)
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	return s.repo.Put(ctx, key, value, s.ttl)
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	st, err := s.repo.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Backend: "sqlite", Entries: st.Entries, Bytes: st.Bytes, Oldest: st.Oldest, Newest: st.Newest}, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	return s.repo.Clear(ctx)
}
