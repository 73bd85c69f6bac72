package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/houhuawei23/ai-anki-cards/internal/tokens"
)

// anthropicModels maps friendly names to Anthropic model IDs.
var anthropicModels = map[string]string{
	"claude-sonnet": "claude-sonnet-4-20250514",
	"claude-haiku":  "claude-haiku-4-5-20251001",
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey  string
	Model   string // Default: "claude-haiku"
	BaseURL string

	Estimator tokens.Estimator
}

// AnthropicProvider implements Provider using the Anthropic SDK.
type AnthropicProvider struct {
	client    *anthropic.Client
	model     string
	estimator tokens.Estimator
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	b := backends["anthropic"]
	key := b.ResolveAPIKey(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("%w: anthropic API key is required", ErrMissingCredentials)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(newHTTPClient()),
		// Retries are handled by RetryProvider.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{
		client:    &client,
		model:     b.ResolveModel(cfg.Model),
		estimator: tokens.New(cfg.Estimator.WideRatio, cfg.Estimator.NarrowRatio),
	}, nil
}

func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	msg, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, mapAnthropicError(err)
	}

	content, err := extractAnthropicContent(msg)
	if err != nil {
		return nil, err
	}

	usage := mapAnthropicUsage(msg.Usage)
	if mapAnthropicStopReason(msg.StopReason) == "max_tokens" {
		return nil, &ErrMaxTokensExceeded{Content: content, Usage: usage}
	}

	return &Response{
		Content:    content,
		Usage:      usage,
		Model:      string(msg.Model),
		StopReason: mapAnthropicStopReason(msg.StopReason),
	}, nil
}

func (p *AnthropicProvider) Stream(ctx context.Context, req Request) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		stream := p.client.Messages.NewStreaming(ctx, p.buildParams(req))
		defer stream.Close()

		counter := p.estimator.Counter()
		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
			if !ok || text.Text == "" {
				continue
			}
			if !yield(StreamChunk{Text: text.Text, Tokens: counter.Add(text.Text)}, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield(StreamChunk{}, mapAnthropicError(err))
		}
	}
}

func (p *AnthropicProvider) ModelID() string {
	return p.model
}

func (p *AnthropicProvider) buildParams(req Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  buildAnthropicMessages(req.Messages),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	// Newer models reject temperature and top_p together.
	switch {
	case req.Temperature > 0:
		params.Temperature = anthropic.Float(req.Temperature)
	case req.TopP > 0 && req.TopP < 1:
		params.TopP = anthropic.Float(req.TopP)
	}

	return params
}

func buildAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, len(msgs))
	for i, m := range msgs {
		role := anthropic.MessageParamRoleUser
		if m.Role == RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		out[i] = anthropic.MessageParam{
			Role: role,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(m.Content),
			},
		}
	}
	return out
}

func extractAnthropicContent(msg *anthropic.Message) (string, error) {
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", &ErrInvalidResponse{
		Err: fmt.Errorf("no text content in Anthropic response"),
	}
}

func mapAnthropicUsage(u anthropic.Usage) Usage {
	return Usage{
		InputTokens:    int(u.InputTokens + u.CacheReadInputTokens),
		OutputTokens:   int(u.OutputTokens),
		TotalTokens:    int(u.InputTokens + u.CacheReadInputTokens + u.OutputTokens),
		CacheHitTokens: int(u.CacheReadInputTokens),
	}
}

func mapAnthropicStopReason(reason anthropic.StopReason) string {
	switch reason {
	case "end_turn":
		return "end"
	case "max_tokens":
		return "max_tokens"
	default:
		return "end"
	}
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, err)
	}
	return classifyMessage(err, &ErrProviderUnavailable{Err: err})
}
