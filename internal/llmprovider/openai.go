package llmprovider

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// OpenAIProvider implements Provider against OpenAI's Chat Completions
// API, grounded on the teacher's internal/agent/providers/openai.go,
// narrowed to a non-streaming call.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIProvider builds a provider bound to one API key.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llmprovider: openai API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openai.GPT4o
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientConfig),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return Response{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, &ProviderError{Type: ErrUnknown, Message: "openai: empty response"}
	}

	return Response{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		TokensInput:  resp.Usage.PromptTokens,
		TokensOutput: resp.Usage.CompletionTokens,
	}, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &ProviderError{Type: ErrAuth, Message: "openai: auth failed", Cause: err}
		case http.StatusTooManyRequests:
			return &ProviderError{Type: ErrRateLimit, Message: "openai: rate limited", Cause: err}
		case http.StatusRequestTimeout:
			return &ProviderError{Type: ErrTimeout, Message: "openai: request timed out", Cause: err}
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return &ProviderError{Type: ErrInvalidInput, Message: "openai: invalid request", Cause: err}
		default:
			if apiErr.HTTPStatusCode >= 500 {
				return &ProviderError{Type: ErrServer, Message: "openai: server error", Cause: err}
			}
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Type: ErrNetwork, Message: "openai: request failed", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Type: ErrTimeout, Message: "openai: deadline exceeded", Cause: err}
	}
	return &ProviderError{Type: ErrUnknown, Message: "openai: unclassified error", Cause: err}
}
