package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int64     // sequence > After
	Before  int64     // sequence < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Purpose string    // exact purpose match
	RunID   string    // exact run match
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	RunID          string
	Provider       string
	Model          string
	Purpose        string
	InputTokens    int
	OutputTokens   int
	CacheHitTokens int
	LatencyMs      int64
	Success        bool
	Streamed       bool
	ErrorMessage   string
	RequestBody    string
	ResponseBody   string
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates token usage for one purpose label.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates token usage for one model.
type ModelUsage struct {
	Model          string
	Calls          int
	InputTokens    int
	OutputTokens   int
	CacheHitTokens int
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns one event, or nil if it doesn't exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMEvent, error)

	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}

// CacheStats summarizes the cache table.
type CacheStats struct {
	Entries int
	Bytes   int64
	Oldest  time.Time
	Newest  time.Time
}

// CacheRepo is a key/value table for generation results.
type CacheRepo interface {
	// Get returns the value for key. Expired entries are reported as missing.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key. ttl <= 0 means no expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Clear removes every entry and returns how many were removed.
	Clear(ctx context.Context) (int, error)

	Stats(ctx context.Context) (CacheStats, error)
}

// RunData is the JSON payload stored with each generation run.
type RunData struct {
	Chunks         int     `json:"chunks"`
	FailedChunks   int     `json:"failed_chunks"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	CacheHitTokens int     `json:"cache_hit_tokens"`
	CostUSD        float64 `json:"cost_usd"`
	ElapsedMs      int64   `json:"elapsed_ms"`
	Source         string  `json:"source,omitempty"`
}

// Run records one completed generation.
type Run struct {
	ID        string
	Sequence  int64
	Timestamp time.Time
	CardType  string
	Target    int
	Produced  int
	Provider  string
	Model     string
	FromCache bool
	Data      RunData
}

// RunRepo keeps a history of generation runs.
type RunRepo interface {
	// Save stores a run. Sequence and Timestamp are filled in when zero.
	Save(ctx context.Context, run *Run) error

	// Latest returns the most recent run, or nil if none exist.
	Latest(ctx context.Context) (*Run, error)

	// List returns up to limit runs, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Run, error)

	// Prune deletes all but the N most recent runs.
	Prune(ctx context.Context, keep int) error
}
