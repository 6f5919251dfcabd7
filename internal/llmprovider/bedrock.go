package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// BedrockConfig configures the Bedrock provider.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
}

// BedrockProvider implements Provider against AWS Bedrock's Converse API,
// grounded on the teacher's internal/agent/providers/bedrock.go, narrowed
// from ConverseStream to the single-shot Converse call.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// NewBedrockProvider builds a provider bound to one AWS region/credential
// set. With no explicit AccessKeyID/SecretAccessKey it falls back to the
// default AWS credential chain (env, shared config, IAM role).
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("llmprovider: failed to load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Generate(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]types.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		messages = append(messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}

	converseReq := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}
	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	if req.MaxTokens > 0 {
		converseReq.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(req.MaxTokens))}
	}

	out, err := p.client.Converse(ctx, converseReq)
	if err != nil {
		return Response{}, classifyBedrockError(err)
	}

	msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return Response{}, &ProviderError{Type: ErrUnknown, Message: "bedrock: unexpected output shape"}
	}

	var text strings.Builder
	for _, block := range msgOutput.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(tb.Value)
		}
	}

	resp := Response{Text: text.String(), Model: model}
	if out.Usage != nil {
		resp.TokensInput = int(aws.ToInt32(out.Usage.InputTokens))
		resp.TokensOutput = int(aws.ToInt32(out.Usage.OutputTokens))
	}
	return resp, nil
}

func classifyBedrockError(err error) error {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		switch {
		case status == 401 || status == 403:
			return &ProviderError{Type: ErrAuth, Message: "bedrock: auth failed", Cause: err}
		case status == 429:
			return &ProviderError{Type: ErrRateLimit, Message: "bedrock: rate limited", Cause: err}
		case status == 408:
			return &ProviderError{Type: ErrTimeout, Message: "bedrock: request timed out", Cause: err}
		case status == 400 || status == 422:
			return &ProviderError{Type: ErrInvalidInput, Message: "bedrock: invalid request", Cause: err}
		case status >= 500:
			return &ProviderError{Type: ErrServer, Message: "bedrock: server error", Cause: err}
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "throttlingexception"), strings.Contains(msg, "toomanyrequestsexception"):
		return &ProviderError{Type: ErrRateLimit, Message: "bedrock: throttled", Cause: err}
	case strings.Contains(msg, "serviceunavailableexception"):
		return &ProviderError{Type: ErrServer, Message: "bedrock: service unavailable", Cause: err}
	case strings.Contains(msg, "accessdeniedexception"):
		return &ProviderError{Type: ErrAuth, Message: "bedrock: access denied", Cause: err}
	case strings.Contains(msg, "validationexception"):
		return &ProviderError{Type: ErrInvalidInput, Message: "bedrock: validation failed", Cause: err}
	case errors.Is(err, context.DeadlineExceeded), strings.Contains(msg, "deadline exceeded"):
		return &ProviderError{Type: ErrTimeout, Message: "bedrock: deadline exceeded", Cause: err}
	}
	return &ProviderError{Type: ErrNetwork, Message: "bedrock: request failed", Cause: err}
}
