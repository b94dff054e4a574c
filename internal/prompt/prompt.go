// Package prompt assembles the fixed parts of every model request.
package prompt

import (
	"fmt"
	"reflect"

	"github.com/sozercan/decomp-relay/internal/analysis"
	"github.com/sozercan/decomp-relay/internal/schema"
)

const (
	Temperature      = 0.25
	ThinkingBudget   = 0
	ResponseMIMEType = "application/json"
)

const guidelines = `You are an expert reverse engineer. You are given assembly or decompiled C/C++ pseudo-code and must deduce its purpose, behavior and interactions.

**Analysis Guidelines:**

1. **Function Purpose:**
   - Summarize the high-level purpose of the code.
   - Identify the main algorithm or logic flow.
   - Note common patterns or well-known algorithms.

2. **Parameters:**
   - For each parameter:
     - Infer the **data type** (e.g. ` + "`int`, `char*`, `struct*`" + `).
     - Determine the **usage** (Input/Output/InOut).
     - Suggest a descriptive **name** for generic parameters (e.g. ` + "`a1`" + `).
     - Note assumptions about the parameter's state (e.g. non-null).

3. **Return Value:**
   - Identify the **return type**.
   - Explain how the return value is computed.
   - Describe what it signifies (e.g. success/failure, a result).

4. **Code Logic:**
   - Trace the execution flow, including branches and loops.
   - Identify key local variables, infer their types and suggest names.
   - Highlight significant computations or data manipulation.

5. **Context (Called Functions & Data):**
   - Use function and variable labels as contextual clues.
   - For called functions:
     - Judge whether the existing label is accurate.
     - Suggest a descriptive name for poorly labeled functions.
   - Identify accessed globals and data structures and their roles.

6. **Function Naming:**
   - Propose a descriptive "PlausibleFunctionName" (e.g. ` + "`VerbNoun`, `GetProperty`" + `).
   - The name must reflect the function's purpose.

7. **Confidence:**
   - State your confidence in the suggested name and analysis.
   - Note ambiguities or alternative interpretations.
`

// Prompt is built once at startup and shared read-only by every request.
type Prompt struct {
	SystemInstructions string
	Schema             map[string]interface{}
	Temperature        float64
	ThinkingBudget     int
	ResponseMIMEType   string
}

// New builds the system instructions and response schema from analysis.Result.
func New() (*Prompt, error) {
	resultType := reflect.TypeOf((*analysis.Result)(nil)).Elem()

	s, err := schema.Generate(resultType)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response schema: %w", err)
	}

	return &Prompt{
		SystemInstructions: guidelines + "\n**Output Format (JSON):**\n\n" + schema.Describe(resultType),
		Schema:             s,
		Temperature:        Temperature,
		ThinkingBudget:     ThinkingBudget,
		ResponseMIMEType:   ResponseMIMEType,
	}, nil
}
