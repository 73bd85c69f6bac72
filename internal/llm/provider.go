package llm

import (
	"context"
	"iter"
)

// Provider is the core abstraction for LLM interaction.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Generate sends a prompt to the LLM and blocks until the full
	// completion is available.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Stream sends a prompt and yields the completion incrementally.
	// The sequence is lazy and may be consumed once. A non-nil error
	// ends the sequence.
	Stream(ctx context.Context, req Request) iter.Seq2[StreamChunk, error]

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt. Sets the LLM's role and constraints.
	System string

	// Messages is the conversation history. Card generation sends a
	// single user message holding the rendered prompt.
	Messages []Message

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Zero leaves the provider default.
	Temperature float64

	// TopP is nucleus sampling. Zero leaves the provider default.
	TopP float64

	// PresencePenalty and FrequencyPenalty are only sent to backends
	// that accept them.
	PresencePenalty  float64
	FrequencyPenalty float64

	// JSON asks the backend to force a JSON object response where it
	// supports doing so.
	JSON bool
}

// UserRequest builds a single-turn request from a prompt.
func UserRequest(prompt string) Request {
	return Request{Messages: []Message{{Role: RoleUser, Content: prompt}}}
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Response holds the LLM's output.
type Response struct {
	// Content is the raw completion text.
	Content string

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped.
	// Normalized to: "end", "max_tokens", "error"
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int

	// CacheHitTokens is the part of InputTokens served from the
	// provider's prompt cache.
	CacheHitTokens int
}

// StreamChunk is one increment of a streamed completion.
type StreamChunk struct {
	// Text is the newly received text.
	Text string

	// Tokens is the running output-token count so far (estimated when the
	// backend does not report it).
	Tokens int
}
