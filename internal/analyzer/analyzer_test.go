package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozercan/decomp-relay/internal/llm"
	"github.com/sozercan/decomp-relay/internal/prompt"
)

type fakeProvider struct {
	text  string
	err   error
	calls int
	last  llm.Request
}

func (f *fakeProvider) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.text, Usage: llm.Usage{TotalTokens: 42}}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

const fooAnalysis = `{"analyzed_function_address":"0x1000","suggested_function_name":"Foo","confidence_in_name":"High","signature_details":{"proposed_signature":"void Foo(void)","return_type":"void","return_value_meaning":""}}`

func newTestAnalyzer(t *testing.T, p llm.Provider) *Analyzer {
	t.Helper()
	pr, err := prompt.New()
	require.NoError(t, err)
	return New(p, pr)
}

func TestAnalyze(t *testing.T) {
	fp := &fakeProvider{text: fooAnalysis}
	a := newTestAnalyzer(t, fp)

	code := "void sub_1000()\n{\n  ;\n}"
	res, err := a.Analyze(context.Background(), code)
	require.NoError(t, err)

	assert.Equal(t, 1, fp.calls)
	assert.Equal(t, code, fp.last.UserContent)
	assert.JSONEq(t, fooAnalysis, string(res.Raw))
	assert.Equal(t, "Foo", res.Result.SuggestedFunctionName)
	assert.Equal(t, int64(42), res.Usage.TotalTokens)
}

func TestAnalyzeInvalidInput(t *testing.T) {
	for _, in := range []string{"", "   \n\t", string([]byte{0xff, 0xfe, 0x00})} {
		fp := &fakeProvider{text: fooAnalysis}
		a := newTestAnalyzer(t, fp)

		_, err := a.Analyze(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, 0, fp.calls, "provider must not be called for %q", in)
	}
}

func TestAnalyzeSchemaErrors(t *testing.T) {
	for _, text := range []string{
		`not json at all`,
		`{"analyzed_function_address": "0x1000"`,
		`{"suggested_function_name":"Foo"}`,
		`"just a string"`,
	} {
		a := newTestAnalyzer(t, &fakeProvider{text: text})
		_, err := a.Analyze(context.Background(), "nop")
		assert.ErrorIs(t, err, ErrSchemaParse, text)
	}
}

func TestAnalyzePropagatesProviderErrors(t *testing.T) {
	for _, sentinel := range []error{llm.ErrTransport, llm.ErrUpstream, llm.ErrMalformedResponse} {
		fp := &fakeProvider{err: fmt.Errorf("%w: detail", sentinel)}
		a := newTestAnalyzer(t, fp)

		_, err := a.Analyze(context.Background(), "nop")
		assert.ErrorIs(t, err, sentinel)
		assert.False(t, errors.Is(err, ErrSchemaParse))
	}
}

func TestRequestIsStableAcrossCalls(t *testing.T) {
	a := newTestAnalyzer(t, &fakeProvider{})

	first := a.Request("mov eax, 1")
	second := a.Request("xor eax, eax")

	assert.Equal(t, "mov eax, 1", first.UserContent)
	assert.Equal(t, "xor eax, eax", second.UserContent)
	assert.Equal(t, first.SystemInstructions, second.SystemInstructions)

	s1, err := json.Marshal(first.Schema)
	require.NoError(t, err)
	s2, err := json.Marshal(second.Schema)
	require.NoError(t, err)
	assert.Equal(t, string(s1), string(s2))
	assert.Equal(t, 0.25, first.Temperature)
	assert.Equal(t, 0, first.ThinkingBudget)
}
