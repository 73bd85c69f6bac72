package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/houhuawei23/ai-anki-cards/internal/tokens"
)

func newTestOpenAIProvider(t *testing.T, backend string, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	client := openai.NewClientWithConfig(config)

	return &OpenAIProvider{
		client:    client,
		model:     "deepseek-chat",
		backend:   backends[backend],
		estimator: tokens.Default(),
	}
}

func TestOpenAIProvider_HappyPath(t *testing.T) {
	var got map[string]any
	handler := func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   "deepseek-chat",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":    "assistant",
						"content": `{"cards":[{"Front":"Q","Back":"A"}]}`,
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     40,
				"completion_tokens": 25,
				"total_tokens":      65,
				"prompt_tokens_details": map[string]any{
					"cached_tokens": 16,
				},
			},
		})
	}

	p := newTestOpenAIProvider(t, "deepseek", handler)
	resp, err := p.Generate(context.Background(), Request{
		Messages:         []Message{{Role: RoleUser, Content: "Generate cards."}},
		MaxTokens:        256,
		Temperature:      0.7,
		PresencePenalty:  0.5,
		FrequencyPenalty: 0.25,
		JSON:             true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Usage.InputTokens != 40 || resp.Usage.OutputTokens != 25 {
		t.Fatalf("usage = %+v, want 40/25", resp.Usage)
	}
	if resp.Usage.CacheHitTokens != 16 {
		t.Fatalf("expected 16 cached tokens, got %d", resp.Usage.CacheHitTokens)
	}
	if resp.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp.StopReason)
	}
	if !strings.Contains(resp.Content, `"cards"`) {
		t.Fatalf("unexpected content %q", resp.Content)
	}

	if got["max_tokens"] != float64(256) {
		t.Errorf("max_tokens = %v, want 256", got["max_tokens"])
	}
	if got["presence_penalty"] != 0.5 {
		t.Errorf("presence_penalty = %v, want 0.5", got["presence_penalty"])
	}
	rf, _ := got["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", got["response_format"])
	}
}

func TestOpenAIProvider_OmitsUnsupportedFields(t *testing.T) {
	var got map[string]any
	handler := func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "llama3.1",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "ok"}, "finish_reason": "stop"},
			},
		})
	}

	p := newTestOpenAIProvider(t, "ollama", handler)
	resp, err := p.Generate(context.Background(), Request{
		Messages:        []Message{{Role: RoleUser, Content: "hi"}},
		PresencePenalty: 0.5,
		JSON:            true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StopReason != "end" {
		t.Errorf("stop reason = %q, want end", resp.StopReason)
	}
	if _, ok := got["presence_penalty"]; ok {
		t.Error("ollama request should not carry presence_penalty")
	}
	if _, ok := got["response_format"]; ok {
		t.Error("ollama request should not force a response format")
	}
}

func TestOpenAIProvider_TruncatedResponse(t *testing.T) {
	partial := `{"cards":[{"Front":"Q1","Back":"A1"},{"Front":"Q2","Back":"A2"},{"Front":"Q3","Ba`
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "deepseek-chat",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": partial}, "finish_reason": "length"},
			},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 30, "total_tokens": 42},
		})
	}

	p := newTestOpenAIProvider(t, "deepseek", handler)
	resp, err := p.Generate(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "Generate cards."}},
		MaxTokens: 30,
	})
	if resp != nil {
		t.Fatalf("expected no response, got %+v", resp)
	}
	var mte *ErrMaxTokensExceeded
	if !errors.As(err, &mte) {
		t.Fatalf("expected ErrMaxTokensExceeded, got %T: %v", err, err)
	}
	if mte.Content != partial {
		t.Errorf("content = %q, want the partial output", mte.Content)
	}
	if mte.Usage.InputTokens != 12 || mte.Usage.OutputTokens != 30 {
		t.Errorf("usage = %+v, want 12/30", mte.Usage)
	}
}

func TestNewOpenAIProvider_Estimator(t *testing.T) {
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "k", Backend: backends["deepseek"], Estimator: tokens.New(0.6, 0.3)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.estimator.WideRatio != 0.6 || p.estimator.NarrowRatio != 0.3 {
		t.Errorf("estimator = %+v, want 0.6/0.3", p.estimator)
	}

	p, err = NewOpenAIProvider(OpenAIConfig{APIKey: "k", Backend: backends["deepseek"]})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.estimator != tokens.Default() {
		t.Errorf("zero estimator should fall back to defaults, got %+v", p.estimator)
	}
}

func TestOpenAIProvider_Stream(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, piece := range []string{`{"cards":`, `[{"Front":"Q",`, `"Back":"A"}]}`} {
			data, _ := json.Marshal(map[string]any{
				"id":      "chatcmpl-test",
				"object":  "chat.completion.chunk",
				"model":   "deepseek-chat",
				"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": piece}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}

	p := newTestOpenAIProvider(t, "deepseek", handler)
	var b strings.Builder
	last := 0
	for chunk, err := range p.Stream(context.Background(), UserRequest("cards")) {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		if chunk.Tokens < last {
			t.Fatalf("token count went backwards: %d < %d", chunk.Tokens, last)
		}
		last = chunk.Tokens
		b.WriteString(chunk.Text)
	}
	if b.String() != `{"cards":[{"Front":"Q","Back":"A"}]}` {
		t.Fatalf("streamed text = %q", b.String())
	}
	if last == 0 {
		t.Fatal("expected a token estimate")
	}
}

func TestOpenAIProvider_StreamError(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "server_error", "message": "overloaded"},
		})
	}

	p := newTestOpenAIProvider(t, "deepseek", handler)
	var gotErr error
	for _, err := range p.Stream(context.Background(), UserRequest("cards")) {
		if err != nil {
			gotErr = err
		}
	}
	var unavail *ErrProviderUnavailable
	if !errors.As(gotErr, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T (%v)", gotErr, gotErr)
	}
}

func TestOpenAIProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
		check  func(error) bool
	}{
		{
			name:   "rate limit",
			status: http.StatusTooManyRequests,
			body:   map[string]any{"type": "tokens", "message": "Rate limit exceeded", "code": "rate_limit_exceeded"},
			check:  func(err error) bool { var e *ErrRateLimit; return errors.As(err, &e) },
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   map[string]any{"type": "server_error", "message": "Internal server error"},
			check:  func(err error) bool { var e *ErrProviderUnavailable; return errors.As(err, &e) },
		},
		{
			name:   "bad key",
			status: http.StatusUnauthorized,
			body:   map[string]any{"type": "authentication_error", "message": "Incorrect API key provided"},
			check:  func(err error) bool { var e *ErrAuthentication; return errors.As(err, &e) },
		},
		{
			name:   "unknown model",
			status: http.StatusBadRequest,
			body:   map[string]any{"type": "invalid_request_error", "message": "Model Not Exist"},
			check:  IsPermanent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{"error": tt.body})
			}
			p := newTestOpenAIProvider(t, "deepseek", handler)
			_, err := p.Generate(context.Background(), UserRequest("test"))
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Fatalf("unexpected classification: %T (%v)", err, err)
			}
		})
	}
}

func TestOpenAIProvider_ModelID(t *testing.T) {
	p := &OpenAIProvider{model: "gpt-4o-mini"}
	if p.ModelID() != "gpt-4o-mini" {
		t.Fatalf("expected 'gpt-4o-mini', got %q", p.ModelID())
	}
}

func TestNewOpenAIProvider_Backends(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-ds")
	t.Setenv("OPENAI_API_KEY", "")

	p, err := NewOpenAIProvider(OpenAIConfig{Backend: backends["deepseek"]})
	if err != nil {
		t.Fatalf("deepseek: %v", err)
	}
	if p.ModelID() != "deepseek-chat" {
		t.Errorf("deepseek default model = %q", p.ModelID())
	}

	if _, err := NewOpenAIProvider(OpenAIConfig{Backend: backends["openai"]}); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("openai without key: got %v, want ErrMissingCredentials", err)
	}

	// Local servers do not need a key.
	if _, err := NewOpenAIProvider(OpenAIConfig{Backend: backends["ollama"], Model: "qwen2"}); err != nil {
		t.Errorf("ollama: %v", err)
	}
}
