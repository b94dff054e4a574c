package llm

import "errors"

var (
	// ErrTransport means the upstream API could not be reached, including timeouts.
	ErrTransport = errors.New("ai api unreachable")
	// ErrUpstream means the upstream API answered with a non-success status or a
	// body that is not JSON.
	ErrUpstream = errors.New("bad response from ai api")
	// ErrMalformedResponse means the JSON envelope lacks the expected candidate text.
	ErrMalformedResponse = errors.New("bad response")
)
