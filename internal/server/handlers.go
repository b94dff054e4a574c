package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sozercan/decomp-relay/apimodels"
	"github.com/sozercan/decomp-relay/internal/analyzer"
	"github.com/sozercan/decomp-relay/internal/llm"
)

const (
	analysisIDHeader = "X-Analysis-Id"
	errUnhandled     = "unhandled exception"
)

// checked in order; the first match decides the code sent to the caller
var knownErrors = []error{
	analyzer.ErrInputTooLarge,
	analyzer.ErrInvalidInput,
	llm.ErrTransport,
	llm.ErrUpstream,
	llm.ErrMalformedResponse,
	analyzer.ErrSchemaParse,
}

// errorCode maps an error to the short string callers see. Anything unknown is
// reported as unhandled; details stay in the server log.
func errorCode(err error) string {
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return errUnhandled
}

// analyzeFunc must not write to the response; wrap writes exactly one envelope
// from its return values.
type analyzeFunc func(r *http.Request) (*analyzer.Analysis, error)

func (s *Server) wrap(h analyzeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(analysisIDHeader, id)
		logger := slog.With("analysis_id", id, "request_id", middleware.GetReqID(r.Context()))

		result, err := s.invoke(h, r, logger)
		if err == nil && result == nil {
			err = errors.New("analyzer returned no result")
		}
		if err != nil {
			code := errorCode(err)
			logger.Error("Analysis request failed", "code", code, "error", err)
			writeEnvelope(w, apimodels.Failure(code))
			return
		}

		logger.Info("Analysis request succeeded",
			"upstream_duration", result.Duration,
			"prompt_tokens", result.Usage.PromptTokens,
			"completion_tokens", result.Usage.CompletionTokens,
		)
		writeEnvelope(w, apimodels.Success(result.Raw))
	}
}

// invoke turns a panic in h into an error so the caller still gets an envelope.
func (s *Server) invoke(h analyzeFunc, r *http.Request, logger *slog.Logger) (result *analyzer.Analysis, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.Error("Panic in analysis handler", "panic", rec, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	return h(r)
}

func (s *Server) handleAnalyze(r *http.Request) (*analyzer.Analysis, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: limit is %d bytes", analyzer.ErrInputTooLarge, maxErr.Limit)
		}
		return nil, fmt.Errorf("%w: %v", analyzer.ErrInvalidInput, err)
	}

	return s.analyzer.Analyze(r.Context(), string(body))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		slog.Error("Health check request failed", "error", err)
	}
}

func writeEnvelope(w http.ResponseWriter, env apimodels.Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		body, _ = json.Marshal(apimodels.Failure(errUnhandled))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
