// Package cache stores generation results keyed by a content fingerprint.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/houhuawei23/ai-anki-cards/internal/store"
)

// Store is the narrow cache interface consumed by the generator.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Stats summarizes a cache backend.
type Stats struct {
	Backend string
	Entries int
	Bytes   int64
	Oldest  time.Time
	Newest  time.Time
}

// Admin is implemented by backends that support inspection and clearing.
type Admin interface {
	Stats(ctx context.Context) (Stats, error)
	Clear(ctx context.Context) (int, error)
}

// Key derives the storage key for key within namespace.
func Key(namespace, key string) string {
	sum := sha256.Sum256([]byte(namespace + ":" + key))
	return hex.EncodeToString(sum[:])
}

// Options selects and configures a backend.
type Options struct {
	// Backend is one of "sqlite", "file", "redis" or "none".
	Backend   string
	Dir       string
	RedisAddr string
	RedisDB   int
	TTL       time.Duration
}

// Open builds the backend named by opts. st is required for "sqlite".
func Open(ctx context.Context, opts Options, st *store.Store) (Store, error) {
	switch opts.Backend {
	case "", "sqlite":
		if st == nil {
			return nil, fmt.Errorf("sqlite cache requires an open store")
		}
		return NewSQLiteStore(st.CacheRepo(), opts.TTL), nil
	case "file":
		return NewFileStore(opts.Dir)
	case "redis":
		return NewRedisStore(ctx, opts.RedisAddr, opts.RedisDB, opts.TTL)
	case "none":
		return Noop{}, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
}

// Noop never hits and discards writes.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte) error { return nil }
func (Noop) Stats(context.Context) (Stats, error) { return Stats{Backend: "none"}, nil }
func (Noop) Clear(context.Context) (int, error) { return 0, nil }
