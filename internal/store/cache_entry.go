package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// cacheRepo implements CacheRepo on the cache_entries table.
type cacheRepo struct {
	db *sql.DB
}

func (r *cacheRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value     []byte
		expiresAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}
	if expiresAt > 0 && time.Now().UnixMilli() >= expiresAt {
		return nil, false, nil
	}
	return value, true, nil
}

func (r *cacheRepo) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	var expiresAt int64
	if ttl > 0 {
		expiresAt = now.Add(ttl).UnixMilli()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO cache_entries (key, value, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value,
			created_at = excluded.created_at, expires_at = excluded.expires_at`,
		key, value, now.UnixMilli(), expiresAt)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (r *cacheRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (r *cacheRepo) Clear(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return int(n), nil
}

func (r *cacheRepo) Stats(ctx context.Context) (CacheStats, error) {
	var (
		st             CacheStats
		oldest, newest int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0),
		COALESCE(MIN(created_at), 0), COALESCE(MAX(created_at), 0) FROM cache_entries`,
	).Scan(&st.Entries, &st.Bytes, &oldest, &newest)
	if err != nil {
		return CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	if st.Entries > 0 {
		st.Oldest = time.UnixMilli(oldest).UTC()
		st.Newest = time.UnixMilli(newest).UTC()
	}
	return st, nil
}
