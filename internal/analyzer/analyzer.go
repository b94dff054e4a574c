package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sozercan/decomp-relay/internal/analysis"
	"github.com/sozercan/decomp-relay/internal/llm"
	"github.com/sozercan/decomp-relay/internal/prompt"
)

var (
	ErrInvalidInput  = errors.New("bad post data")
	ErrInputTooLarge = errors.New("input too large")
	// ErrSchemaParse means the model's text is not JSON or misses required fields.
	ErrSchemaParse = errors.New("bad analysis json")
)

// Analysis is a validated model answer. Raw is the model's JSON exactly as
// received; Result is its decoded form.
type Analysis struct {
	Raw      json.RawMessage
	Result   *analysis.Result
	Usage    llm.Usage
	Duration time.Duration
}

type Analyzer struct {
	llmProvider llm.Provider
	prompt      *prompt.Prompt
}

func New(llmProvider llm.Provider, p *prompt.Prompt) *Analyzer {
	return &Analyzer{
		llmProvider: llmProvider,
		prompt:      p,
	}
}

// Validate rejects input that cannot be forwarded. Accepted text is never
// altered.
func Validate(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidInput)
	}
	if !utf8.ValidString(code) {
		return fmt.Errorf("%w: body is not UTF-8 text", ErrInvalidInput)
	}
	return nil
}

// Request builds the provider request for code. The caller's text is the only
// part that changes between calls.
func (a *Analyzer) Request(code string) llm.Request {
	return llm.Request{
		SystemInstructions: a.prompt.SystemInstructions,
		UserContent:        code,
		Schema:             a.prompt.Schema,
		Temperature:        a.prompt.Temperature,
		ThinkingBudget:     a.prompt.ThinkingBudget,
		ResponseMIMEType:   a.prompt.ResponseMIMEType,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, code string) (*Analysis, error) {
	if err := Validate(code); err != nil {
		return nil, err
	}

	slog.Info("Starting analysis", "provider", a.llmProvider.Name(), "input_bytes", len(code))
	startTime := time.Now()

	resp, err := a.llmProvider.Generate(ctx, a.Request(code))
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", a.llmProvider.Name(), err)
	}

	raw := []byte(strings.TrimSpace(resp.Text))
	result, err := analysis.Parse(raw)
	if err != nil {
		slog.Debug("Model output rejected", "text", truncateString(resp.Text, 2000))
		return nil, fmt.Errorf("%w: %v", ErrSchemaParse, err)
	}

	duration := time.Since(startTime)
	slog.Info("Analysis completed",
		"function", result.SuggestedFunctionName,
		"address", result.AnalyzedFunctionAddress,
		"tokens", resp.Usage.TotalTokens,
		"duration", duration,
	)

	return &Analysis{
		Raw:      json.RawMessage(raw),
		Result:   result,
		Usage:    resp.Usage,
		Duration: duration,
	}, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "\n[truncated]"
	}
	return s
}
