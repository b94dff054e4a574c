// Package client talks to a running relay and turns its answer into concrete
// rename operations for a disassembler.
package client

import (
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

	"github.com/sozercan/decomp-relay/apimodels"
	"github.com/sozercan/decomp-relay/internal/analysis"
)

// ServerError is a success:false envelope returned by the relay.
type ServerError struct {
	Code string
}

func (e *ServerError) Error() string {
	return "relay reported failure: " + e.Code
}

type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	slog.Debug("Creating relay client", "url", baseURL)
	if baseURL == "" {
		return nil, errors.New("relay URL cannot be empty")
	}
	endpoint, err := url.JoinPath(baseURL, "analyze")
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL %q: %w", baseURL, err)
	}

	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Analyze posts code to the relay and returns the decoded analysis.
func (c *Client) Analyze(ctx context.Context, code string) (*analysis.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(code))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read relay response: %w", err)
	}

	var env apimodels.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode relay response: %w", err)
	}
	if !env.Success {
		code := env.Error
		if code == "" {
			code = "unknown error"
		}
		return nil, &ServerError{Code: code}
	}
	if len(env.Data) == 0 {
		return nil, errors.New("relay response has no data")
	}

	return analysis.Parse(env.Data)
}
