package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// AnthropicProvider implements Provider against Anthropic's Messages API,
// grounded on the teacher's internal/agent/providers/anthropic.go but
// narrowed to a single-shot (non-streaming) call, since the dialog runtime
// needs a complete response before running the post-LLM gate.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropicProvider builds a provider bound to one API key.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llmprovider: anthropic API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, classifyAnthropicError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return Response{
		Text:         text.String(),
		Model:        string(msg.Model),
		TokensInput:  int(msg.Usage.InputTokens),
		TokensOutput: int(msg.Usage.OutputTokens),
	}, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &ProviderError{Type: ErrAuth, Message: "anthropic: auth failed", Cause: err}
		case http.StatusTooManyRequests:
			return &ProviderError{Type: ErrRateLimit, Message: "anthropic: rate limited", Cause: err}
		case http.StatusRequestTimeout:
			return &ProviderError{Type: ErrTimeout, Message: "anthropic: request timed out", Cause: err}
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return &ProviderError{Type: ErrInvalidInput, Message: "anthropic: invalid request", Cause: err}
		default:
			if apiErr.StatusCode >= 500 {
				return &ProviderError{Type: ErrServer, Message: "anthropic: server error", Cause: err}
			}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Type: ErrTimeout, Message: "anthropic: deadline exceeded", Cause: err}
	}
	return &ProviderError{Type: ErrNetwork, Message: fmt.Sprintf("anthropic: %v", err), Cause: err}
}
