package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sozercan/decomp-relay/internal/config"
)

// upper bound on an upstream body we are willing to buffer
const maxResponseBytes = 8 << 20

// Gemini calls the Generative Language generateContent endpoint.
type Gemini struct {
	cfg        *config.GeminiConfig
	httpClient *http.Client
}

type GenerateContentRequest struct {
	SystemInstruction Content          `json:"system_instruction"`
	Contents          []Content        `json:"contents"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
}

type Content struct {
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

type GenerationConfig struct {
	Temperature      float64                `json:"temperature"`
	ThinkingConfig   ThinkingConfig         `json:"thinkingConfig"`
	ResponseMimeType string                 `json:"responseMimeType"`
	ResponseSchema   map[string]interface{} `json:"responseSchema,omitempty"`
}

type ThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

func NewGemini(cfg *config.GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	if _, err := url.Parse(cfg.APIEndpoint); err != nil || cfg.APIEndpoint == "" {
		return nil, fmt.Errorf("invalid gemini endpoint %q", cfg.APIEndpoint)
	}
	slog.Info("Creating Gemini client", "endpoint", cfg.APIEndpoint, "model", cfg.Model)

	return &Gemini{
		cfg: cfg,
		// the deadline comes from the request context
		httpClient: &http.Client{},
	}, nil
}

func (g *Gemini) Name() string {
	return "gemini"
}

// BuildRequest is the pure translation from a Request to the wire payload.
func (g *Gemini) BuildRequest(req Request) GenerateContentRequest {
	return GenerateContentRequest{
		SystemInstruction: Content{
			Parts: []Part{{Text: req.SystemInstructions}},
		},
		Contents: []Content{
			{Parts: []Part{{Text: req.UserContent}}},
		},
		GenerationConfig: GenerationConfig{
			Temperature: req.Temperature,
			ThinkingConfig: ThinkingConfig{
				ThinkingBudget: req.ThinkingBudget,
			},
			ResponseMimeType: req.ResponseMIMEType,
			ResponseSchema:   req.Schema,
		},
	}
}

func (g *Gemini) endpointURL(redact bool) string {
	key := g.cfg.APIKey
	if redact {
		key = "REDACTED"
	}
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(g.cfg.APIEndpoint, "/"),
		url.PathEscape(g.cfg.Model),
		url.QueryEscape(key),
	)
}

func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(g.BuildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpointURL(false), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	slog.Debug("Calling Gemini", "url", g.endpointURL(true), "payload_bytes", len(payload))
	start := time.Now()

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, stripURL(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, stripURL(err))
	}

	slog.Debug("Gemini responded", "status", resp.StatusCode, "bytes", len(body), "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "error.message").String()
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncate(msg, 200))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrUpstream)
	}

	text, err := ExtractText(body)
	if err != nil {
		return nil, err
	}

	usage := gjson.GetBytes(body, "usageMetadata")
	return &Response{
		Text: text,
		Usage: Usage{
			PromptTokens:     usage.Get("promptTokenCount").Int(),
			CompletionTokens: usage.Get("candidatesTokenCount").Int(),
			TotalTokens:      usage.Get("totalTokenCount").Int(),
		},
	}, nil
}

// ExtractText returns candidates[0].content.parts[0].text from a generateContent
// envelope.
func ExtractText(body []byte) (string, error) {
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return "", fmt.Errorf("%w: envelope is not an object", ErrMalformedResponse)
	}

	candidates := root.Get("candidates")
	if !candidates.IsArray() || len(candidates.Array()) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}

	parts := candidates.Get("0.content.parts")
	if !parts.IsArray() || len(parts.Array()) == 0 {
		finish := candidates.Get("0.finishReason").String()
		return "", fmt.Errorf("%w: first candidate has no content parts (finish reason %q)", ErrMalformedResponse, finish)
	}

	text := parts.Get("0.text")
	if text.Type != gjson.String || text.String() == "" {
		return "", fmt.Errorf("%w: first part has no text", ErrMalformedResponse)
	}
	return text.String(), nil
}

// *url.Error embeds the request URL, which carries the API key.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
