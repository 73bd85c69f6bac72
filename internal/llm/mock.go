package llm

import (
	"context"
	"iter"
	"sync"

	"github.com/houhuawei23/ai-anki-cards/internal/tokens"
)

// mockStreamPiece is the rune length of each streamed mock chunk.
const mockStreamPiece = 16

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	Content string
	Usage   Usage
	Err     error

	// StreamErr makes Stream fail after yielding nothing. Generate is
	// unaffected so the fallback path can be exercised.
	StreamErr error

	// Truncated makes Generate report Content as cut off at max tokens.
	Truncated bool
}

// MockProvider is a deterministic Provider for testing and dry runs.
// It returns canned responses in FIFO order and records all requests.
// When Respond is set it is used instead of the queue.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request

	// Respond builds a response from the request. Must be safe for
	// concurrent use.
	Respond func(req Request) MockResponse

	// Estimator counts streamed tokens. Zero ratios use the stock ones.
	Estimator tokens.Estimator
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// next records req and pops the response to serve.
func (m *MockProvider) next(req Request) (MockResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if m.Respond != nil {
		return m.Respond(req), true
	}
	if len(m.responses) == 0 {
		return MockResponse{}, false
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, true
}

// Generate returns the next canned response or ErrProviderUnavailable if
// the queue is empty.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	resp, ok := m.next(req)
	if !ok {
		return nil, &ErrProviderUnavailable{Err: nil}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	if resp.Truncated {
		return nil, &ErrMaxTokensExceeded{Content: resp.Content, Usage: resp.Usage}
	}

	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

// Stream yields the next canned response in small pieces. A response with
// StreamErr set is put back for a following Generate call.
func (m *MockProvider) Stream(ctx context.Context, req Request) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		resp, ok := m.next(req)
		if !ok {
			yield(StreamChunk{}, &ErrProviderUnavailable{Err: nil})
			return
		}
		if resp.StreamErr != nil {
			if m.Respond == nil {
				m.requeue(MockResponse{Content: resp.Content, Usage: resp.Usage, Err: resp.Err, Truncated: resp.Truncated})
			}
			yield(StreamChunk{}, resp.StreamErr)
			return
		}
		if resp.Err != nil {
			yield(StreamChunk{}, resp.Err)
			return
		}

		counter := tokens.New(m.Estimator.WideRatio, m.Estimator.NarrowRatio).Counter()
		runes := []rune(resp.Content)
		for i := 0; i < len(runes); i += mockStreamPiece {
			if err := ctx.Err(); err != nil {
				yield(StreamChunk{}, err)
				return
			}
			piece := string(runes[i:min(i+mockStreamPiece, len(runes))])
			if !yield(StreamChunk{Text: piece, Tokens: counter.Add(piece)}, nil) {
				return
			}
		}
	}
}

func (m *MockProvider) requeue(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append([]MockResponse{resp}, m.responses...)
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate and Stream calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
