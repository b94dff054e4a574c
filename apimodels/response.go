package apimodels

import "encoding/json"

// Envelope is the body of every /analyze response. The HTTP status is always 200;
// callers branch on Success.
type Envelope struct {
	Success bool `json:"success"`

	// The model's analysis object, present when Success is true
	Data json.RawMessage `json:"data,omitempty"`

	// Short error code, present when Success is false
	Error string `json:"error,omitempty"`
}

func Success(data json.RawMessage) Envelope {
	return Envelope{Success: true, Data: data}
}

func Failure(code string) Envelope {
	return Envelope{Success: false, Error: code}
}
