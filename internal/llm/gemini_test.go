package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozercan/decomp-relay/internal/config"
)

func testRequest(user string) Request {
	return Request{
		SystemInstructions: "you are a reverse engineer",
		UserContent:        user,
		Schema:             map[string]interface{}{"type": "object"},
		Temperature:        0.25,
		ThinkingBudget:     0,
		ResponseMIMEType:   "application/json",
	}
}

func newTestGemini(t *testing.T, url string, timeout time.Duration) *Gemini {
	t.Helper()
	g, err := NewGemini(&config.GeminiConfig{
		APIKey:      "secret-key",
		APIEndpoint: url,
		Model:       "gemini-test",
		Timeout:     timeout,
	})
	require.NoError(t, err)
	return g
}

func envelope(text string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{map[string]interface{}{"text": text}},
					"role":  "model",
				},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]interface{}{
			"promptTokenCount":     10,
			"candidatesTokenCount": 5,
			"totalTokenCount":      15,
		},
	})
	return string(b)
}

func TestBuildRequestWireFormat(t *testing.T) {
	g := newTestGemini(t, "http://unused", time.Second)
	code := "int __fastcall sub_1000(int a1)\n{\n  return a1 * 2;\n}\n"

	data, err := json.Marshal(g.BuildRequest(testRequest(code)))
	require.NoError(t, err)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &wire))

	sys := wire["system_instruction"].(map[string]interface{})["parts"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "you are a reverse engineer", sys["text"])

	user := wire["contents"].([]interface{})[0].(map[string]interface{})["parts"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, code, user["text"], "user content must pass through unchanged")

	gen := wire["generationConfig"].(map[string]interface{})
	assert.Equal(t, 0.25, gen["temperature"])
	assert.Equal(t, float64(0), gen["thinkingConfig"].(map[string]interface{})["thinkingBudget"])
	assert.Equal(t, "application/json", gen["responseMimeType"])
	assert.Equal(t, map[string]interface{}{"type": "object"}, gen["responseSchema"])
}

func TestBuildRequestIsDeterministic(t *testing.T) {
	g := newTestGemini(t, "http://unused", time.Second)

	a, err := json.Marshal(g.BuildRequest(testRequest("mov eax, 1")))
	require.NoError(t, err)
	b, err := json.Marshal(g.BuildRequest(testRequest("mov eax, 1")))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestGeminiGenerate(t *testing.T) {
	var gotPath, gotKey, gotContentType string
	var gotBody GenerateContentRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(envelope(`{"suggested_function_name":"Foo"}`)))
	}))
	defer ts.Close()

	g := newTestGemini(t, ts.URL, 5*time.Second)
	resp, err := g.Generate(context.Background(), testRequest("push rbp"))
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", gotPath)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "application/json", gotContentType)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "push rbp", gotBody.Contents[0].Parts[0].Text)

	assert.Equal(t, `{"suggested_function_name":"Foo"}`, resp.Text)
	assert.Equal(t, int64(15), resp.Usage.TotalTokens)
}

func TestGeminiGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"code":500,"message":"boom"}}`, ErrUpstream},
		{"forbidden", http.StatusForbidden, `{"error":{"code":403,"message":"API key not valid"}}`, ErrUpstream},
		{"not json", http.StatusOK, `<html>oops</html>`, ErrUpstream},
		{"empty body", http.StatusOK, ``, ErrUpstream},
		{"null body", http.StatusOK, `null`, ErrMalformedResponse},
		{"no candidates field", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, ErrMalformedResponse},
		{"empty candidates", http.StatusOK, `{"candidates":[]}`, ErrMalformedResponse},
		{"no parts", http.StatusOK, `{"candidates":[{"content":{"parts":[]},"finishReason":"MAX_TOKENS"}]}`, ErrMalformedResponse},
		{"no content", http.StatusOK, `{"candidates":[{"finishReason":"SAFETY"}]}`, ErrMalformedResponse},
		{"empty text", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`, ErrMalformedResponse},
		{"non string text", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":42}]}}]}`, ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			g := newTestGemini(t, ts.URL, 5*time.Second)
			resp, err := g.Generate(context.Background(), testRequest("nop"))
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotContains(t, err.Error(), "secret-key")
		})
	}
}

func TestGeminiGenerateTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer ts.Close()

	g := newTestGemini(t, ts.URL, 50*time.Millisecond)
	_, err := g.Generate(context.Background(), testRequest("nop"))
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestGeminiGenerateUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	g := newTestGemini(t, url, time.Second)
	_, err := g.Generate(context.Background(), testRequest("nop"))
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestExtractText(t *testing.T) {
	text, err := ExtractText([]byte(envelope("hello")))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = ExtractText(nil)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(&config.GeminiConfig{APIEndpoint: "http://x"})
	assert.Error(t, err)
}
