package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/sozercan/decomp-relay/internal/config"
)

// OpenAI client implementation
type OpenAI struct {
	client *openai.Client
	cfg    *config.OpenAIConfig
	model  string
}

func NewOpenAI(cfg *config.OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key cannot be empty")
	}

	var client *openai.Client
	model := cfg.Model

	switch cfg.Provider {
	case "azure":
		client = openai.NewClient(
			azure.WithEndpoint(cfg.APIEndpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
			option.WithMaxRetries(0),
		)
		model = cfg.DeploymentName
	default: // "openai"
		client = openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.APIEndpoint),
			option.WithMaxRetries(0),
		)
	}
	slog.Info("Creating OpenAI client", "provider", cfg.Provider, "endpoint", cfg.APIEndpoint, "model", model)

	return &OpenAI{
		client: client,
		cfg:    cfg,
		model:  model,
	}, nil
}

func (o *OpenAI) Name() string {
	return "openai"
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (*Response, error) {
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.F(o.model),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemInstructions),
			openai.UserMessage(req.UserContent),
		}),
		Temperature: openai.F(req.Temperature),
	}
	if req.Schema != nil {
		// strict mode would demand every property be required, which drops the
		// optional arrays
		params.ResponseFormat = openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONSchemaParam{
				Type: openai.F(openai.ResponseFormatJSONSchemaTypeJSONSchema),
				JSONSchema: openai.F(openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   openai.F("function_analysis"),
					Schema: openai.F[interface{}](req.Schema),
					Strict: openai.Bool(false),
				}),
			},
		)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: status %d", ErrUpstream, apiErr.StatusCode)
		}
		if isTransportError(err) {
			return nil, fmt.Errorf("%w: %v", ErrTransport, stripURL(err))
		}
		// the API answered, but with a body the SDK could not decode
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return nil, fmt.Errorf("%w: first choice has no content (finish reason %q)", ErrMalformedResponse, resp.Choices[0].FinishReason)
	}

	return &Response{
		Text: content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// The SDK returns the request context's error on timeout and the raw
// *url.Error when the connection fails.
func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}
