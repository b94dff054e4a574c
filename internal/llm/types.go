package llm

import (
	"context"
)

type Provider interface {
	// Generate sends a single request upstream and returns the model's text output.
	// Failures wrap ErrTransport, ErrUpstream or ErrMalformedResponse.
	Generate(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// Request carries everything a provider needs. Only UserContent varies between
// calls.
type Request struct {
	SystemInstructions string
	UserContent        string
	Schema             map[string]interface{}
	Temperature        float64
	ThinkingBudget     int
	ResponseMIMEType   string
}

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

type Response struct {
	Text  string
	Usage Usage
}
