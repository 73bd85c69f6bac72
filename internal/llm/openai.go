package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/houhuawei23/ai-anki-cards/internal/tokens"
)

// openaiModels maps friendly names to OpenAI model IDs.
var openaiModels = map[string]string{
	"gpt-4o":      "gpt-4o",
	"gpt-4o-mini": "gpt-4o-mini",
}

// connectTimeout bounds TCP connection setup for every HTTP backend.
const connectTimeout = 10 * time.Second

// OpenAIConfig holds configuration for OpenAI and compatible APIs.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // Optional. Overrides the backend default.
	Backend Backend

	// Estimator counts streamed tokens. Zero ratios fall back to the
	// stock ones.
	Estimator tokens.Estimator
}

// OpenAIProvider implements Provider using the OpenAI SDK.
// It also serves DeepSeek, Ollama, OpenRouter and any other
// OpenAI-compatible endpoint via BaseURL.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	backend   Backend
	estimator tokens.Estimator
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	b := cfg.Backend
	if b.Name == "" {
		b = backends["openai"]
	}

	key := b.ResolveAPIKey(cfg.APIKey)
	if key == "" {
		if b.NeedsKey {
			return nil, fmt.Errorf("%w: %s API key is required", ErrMissingCredentials, b.Name)
		}
		// Local servers ignore the key but the SDK sends the header anyway.
		key = b.Name
	}

	config := openai.DefaultConfig(key)
	switch {
	case cfg.BaseURL != "":
		config.BaseURL = cfg.BaseURL
	case b.BaseURL != "":
		config.BaseURL = b.BaseURL
	}
	config.HTTPClient = newHTTPClient()

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(config),
		model:     b.ResolveModel(cfg.Model),
		backend:   b,
		estimator: tokens.New(cfg.Estimator.WideRatio, cfg.Estimator.NarrowRatio),
	}, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req))
	if err != nil {
		return nil, mapOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ErrInvalidResponse{
			Err: fmt.Errorf("no choices in %s response", p.backend.Name),
		}
	}

	usage := Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	if d := resp.Usage.PromptTokensDetails; d != nil {
		usage.CacheHitTokens = d.CachedTokens
	}

	content := resp.Choices[0].Message.Content
	if resp.Choices[0].FinishReason == openai.FinishReasonLength {
		return nil, &ErrMaxTokensExceeded{Content: content, Usage: usage}
	}

	return &Response{
		Content:    content,
		Usage:      usage,
		Model:      resp.Model,
		StopReason: mapOpenAIStopReason(resp.Choices[0].FinishReason),
	}, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(req))
		if err != nil {
			yield(StreamChunk{}, mapOpenAIError(err))
			return
		}
		defer stream.Close()

		counter := p.estimator.Counter()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(StreamChunk{}, mapOpenAIError(err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !yield(StreamChunk{Text: delta, Tokens: counter.Add(delta)}, nil) {
				return
			}
		}
	}
}

func (p *OpenAIProvider) ModelID() string {
	return p.model
}

func (p *OpenAIProvider) buildRequest(req Request) openai.ChatCompletionRequest {
	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    buildOpenAIMessages(req),
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
	}

	// OpenAI itself prefers max_completion_tokens; compatible servers
	// generally only understand max_tokens.
	if p.backend.Name == "openai" {
		chatReq.MaxCompletionTokens = req.MaxTokens
	} else {
		chatReq.MaxTokens = req.MaxTokens
	}

	if p.backend.Penalties {
		chatReq.PresencePenalty = float32(req.PresencePenalty)
		chatReq.FrequencyPenalty = float32(req.FrequencyPenalty)
	}

	if req.JSON && p.backend.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return chatReq
}

func buildOpenAIMessages(req Request) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage

	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	return messages
}

func mapOpenAIStopReason(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonStop:
		return "end"
	case openai.FinishReasonLength:
		return "max_tokens"
	default:
		return "end"
	}
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}
	return classifyMessage(err, &ErrProviderUnavailable{Err: err})
}

// newHTTPClient returns a client with a bounded connect phase. The total
// request time is bounded per call through the context.
func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	return &http.Client{Transport: transport}
}
