// Package analysis holds the structured function analysis the model is asked to
// produce. The struct tags drive both the response schema sent upstream and the
// output format described in the system instructions.
package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Result is the analysis of a single decompiled function.
type Result struct {
	AnalyzedFunctionAddress string           `json:"analyzed_function_address" example:"0x..."`
	SuggestedFunctionName   string           `json:"suggested_function_name" example:"PlausibleFunctionName"`
	ConfidenceInName        string           `json:"confidence_in_name" enum:"high|medium|low" example:"High/Medium/Low"`
	SignatureDetails        SignatureDetails `json:"signature_details"`
	Parameters              []Parameter      `json:"parameters,omitempty"`
	CalledFunctions         []CalledFunction `json:"called_functions,omitempty"`
}

type SignatureDetails struct {
	ProposedSignature  string `json:"proposed_signature" example:"return_type DescriptiveFunctionName(type param1, ...)"`
	ReturnType         string `json:"return_type" example:"ReturnType"`
	ReturnValueMeaning string `json:"return_value_meaning" example:"Concise explanation of return value."`
}

type Parameter struct {
	OriginalName  string `json:"original_name" example:"a1"`
	SuggestedName string `json:"suggested_name" example:"descriptiveParamName"`
	InferredType  string `json:"inferred_type" example:"DataType"`
	Usage         string `json:"usage" example:"Input/Output/InOut"`
	Description   string `json:"description" example:"Concise role and assumptions."`
}

type CalledFunction struct {
	AddressOrCurrentName               string   `json:"address_or_current_name" example:"sub_1337"`
	IsCurrentNameAccurate              Accuracy `json:"is_current_name_accurate" example:"true/false/null"`
	SuggestedNameIfInaccurateOrGeneric string   `json:"suggested_name_if_inaccurate_or_generic" example:"PlausibleNewName"`
	InferredPurposeInContext           string   `json:"inferred_purpose_in_context" example:"Concise purpose based on usage."`
}

// Accuracy is declared as a string in the schema, but models occasionally emit a
// bare boolean or null for it anyway.
type Accuracy string

func (a *Accuracy) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "null":
		*a = ""
		return nil
	case "true", "false":
		*a = Accuracy(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("is_current_name_accurate: %w", err)
	}
	*a = Accuracy(s)
	return nil
}

var confidenceLevels = []string{"high", "medium", "low"}

// Parse decodes the model's JSON text and checks the required fields.
func Parse(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	// A void function has nothing to explain, so the value may be empty, but the
	// key must still be there.
	if !gjson.GetBytes(data, "signature_details.return_value_meaning").Exists() {
		return nil, errors.New("missing signature_details.return_value_meaning")
	}
	return &r, nil
}

// Validate reports the first missing or malformed required field.
func (r *Result) Validate() error {
	if strings.TrimSpace(r.AnalyzedFunctionAddress) == "" {
		return errors.New("missing analyzed_function_address")
	}
	if strings.TrimSpace(r.SuggestedFunctionName) == "" {
		return errors.New("missing suggested_function_name")
	}
	if !validConfidence(r.ConfidenceInName) {
		return fmt.Errorf("invalid confidence_in_name %q", r.ConfidenceInName)
	}
	if r.SignatureDetails.ProposedSignature == "" || r.SignatureDetails.ReturnType == "" {
		return errors.New("incomplete signature_details")
	}
	return nil
}

// The schema enum is lowercase while the prompt shows capitalised levels, so both
// spellings are accepted.
func validConfidence(c string) bool {
	c = strings.ToLower(strings.TrimSpace(c))
	for _, l := range confidenceLevels {
		if c == l {
			return true
		}
	}
	return false
}
