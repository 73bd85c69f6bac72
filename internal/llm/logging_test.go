package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/houhuawei23/ai-anki-cards/internal/store"
)

func openEventRepo(t *testing.T) store.EventRepo {
	t.Helper()
	s, err := store.Open("file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.EventRepo()
}

func TestLogging_RecordsGenerate(t *testing.T) {
	repo := openEventRepo(t)
	core, logs := observer.New(zapcore.DebugLevel)
	mock := NewMockProvider(MockResponse{
		Content: `{"cards":[]}`,
		Usage:   Usage{InputTokens: 12, OutputTokens: 4, CacheHitTokens: 8},
	})
	p := WithLogging(mock, "deepseek", repo, zap.New(core))

	ctx := WithRun(WithPurpose(context.Background(), "card-gen"), "run-7")
	req := Request{System: "be terse", Messages: []Message{{Role: RoleUser, Content: "make cards"}}, MaxTokens: 100}
	_, err := p.Generate(ctx, req)
	require.NoError(t, err)

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "deepseek", e.Provider)
	assert.Equal(t, "card-gen", e.Purpose)
	assert.Equal(t, "run-7", e.RunID)
	assert.Equal(t, 12, e.InputTokens)
	assert.Equal(t, 8, e.CacheHitTokens)
	assert.True(t, e.Success)
	assert.Contains(t, e.RequestBody, "[system]\nbe terse")
	assert.Contains(t, e.RequestBody, "[user]\nmake cards")
	assert.Equal(t, `{"cards":[]}`, e.ResponseBody)

	assert.Equal(t, 1, logs.FilterMessage("llm request").Len())
}

func TestLogging_RecordsFailure(t *testing.T) {
	repo := openEventRepo(t)
	core, logs := observer.New(zapcore.DebugLevel)
	mock := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}})
	p := WithLogging(mock, "openai", repo, zap.New(core))

	_, err := p.Generate(context.Background(), Request{})
	require.Error(t, err)

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Contains(t, events[0].ErrorMessage, "down")
	assert.Equal(t, 1, logs.FilterMessage("llm request failed").Len())
}

func TestLogging_RecordsTruncatedUsage(t *testing.T) {
	repo := openEventRepo(t)
	mock := NewMockProvider(MockResponse{
		Content:   `{"cards":[{"Front":"q"`,
		Usage:     Usage{InputTokens: 9, OutputTokens: 40},
		Truncated: true,
	})
	p := WithLogging(mock, "deepseek", repo, zap.NewNop())

	_, err := p.Generate(context.Background(), UserRequest("make cards"))
	var mte *ErrMaxTokensExceeded
	require.ErrorAs(t, err, &mte)

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Equal(t, 9, events[0].InputTokens)
	assert.Equal(t, 40, events[0].OutputTokens)
	assert.Equal(t, `{"cards":[{"Front":"q"`, events[0].ResponseBody)
}

func TestLogging_RecordsStreamOnCompletion(t *testing.T) {
	repo := openEventRepo(t)
	content := strings.Repeat("streamed text ", 8)
	p := WithLogging(NewMockProvider(MockResponse{Content: content}), "mock", repo, nil)

	var b strings.Builder
	for chunk, err := range p.Stream(context.Background(), Request{}) {
		require.NoError(t, err)
		b.WriteString(chunk.Text)
	}
	require.Equal(t, content, b.String())

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Streamed)
	assert.Equal(t, content, events[0].ResponseBody)
	assert.Positive(t, events[0].OutputTokens)
}

func TestLogging_NilRepo(t *testing.T) {
	p := WithLogging(NewMockProvider(MockResponse{Content: "ok"}), "mock", nil, nil)
	resp, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, "mock", p.ModelID())
}

func TestRateLimit_SpacesCalls(t *testing.T) {
	mock := NewMockProvider()
	mock.Respond = func(Request) MockResponse { return MockResponse{Content: "ok"} }
	p := WithRateLimit(mock, 50, 1)

	start := time.Now()
	for range 3 {
		_, err := p.Generate(context.Background(), Request{})
		require.NoError(t, err)
	}
	// Burst of one, then 20ms between calls.
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestRateLimit_DisabledReturnsInner(t *testing.T) {
	mock := NewMockProvider()
	assert.Same(t, Provider(mock), WithRateLimit(mock, 0, 1))
}

func TestRateLimit_CancelledContext(t *testing.T) {
	p := WithRateLimit(NewMockProvider(MockResponse{Content: "a"}, MockResponse{Content: "b"}), 0.001, 1)
	_, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Generate(ctx, Request{})
	require.Error(t, err)
}

func TestWrap_OrderRetriesThroughLogging(t *testing.T) {
	repo := openEventRepo(t)
	mock := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
		MockResponse{Content: "ok"},
	)
	cfg := Config{Retry: RetryConfig{MaxRetries: 1, InitialWait: time.Millisecond}}
	p := Wrap(mock, cfg, "mock", repo, nil)

	resp, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	// Every attempt is logged.
	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestNewProvider_Mock(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Provider: "mock"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.ModelID())

	_, err = NewProvider(context.Background(), Config{Provider: "nope"}, nil, nil)
	require.Error(t, err)
}
