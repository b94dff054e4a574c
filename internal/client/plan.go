package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sozercan/decomp-relay/internal/analysis"
)

// Plan is the set of renames an analysis implies.
type Plan struct {
	Address         uint64
	FunctionName    string
	Parameters      []ParameterRename
	CalledFunctions []CalledRename
	// Skipped explains every suggestion that could not be mapped.
	Skipped []string
}

type ParameterRename struct {
	Index        int
	OriginalName string
	NewName      string
}

type CalledRename struct {
	Address uint64
	NewName string
}

func BuildPlan(r *analysis.Result) (*Plan, error) {
	addr, err := parseHexAddress(r.AnalyzedFunctionAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid function address %q: %w", r.AnalyzedFunctionAddress, err)
	}
	name := strings.TrimSpace(r.SuggestedFunctionName)
	if name == "" {
		return nil, errors.New("empty suggested function name")
	}

	plan := &Plan{Address: addr, FunctionName: name}

	for _, p := range r.Parameters {
		if p.SuggestedName == "" || p.SuggestedName == p.OriginalName {
			continue
		}
		idx := ParameterIndex(p.OriginalName)
		if idx < 0 {
			plan.Skipped = append(plan.Skipped, fmt.Sprintf("parameter %q has no positional index", p.OriginalName))
			continue
		}
		plan.Parameters = append(plan.Parameters, ParameterRename{
			Index:        idx,
			OriginalName: p.OriginalName,
			NewName:      p.SuggestedName,
		})
	}

	for _, cf := range r.CalledFunctions {
		newName := cf.SuggestedNameIfInaccurateOrGeneric
		if newName == "" || strings.EqualFold(string(cf.IsCurrentNameAccurate), "true") {
			continue
		}
		callee, err := strconv.ParseUint(strings.TrimSpace(cf.AddressOrCurrentName), 0, 64)
		if err != nil {
			plan.Skipped = append(plan.Skipped, fmt.Sprintf("called function %q is not an address", cf.AddressOrCurrentName))
			continue
		}
		plan.CalledFunctions = append(plan.CalledFunctions, CalledRename{Address: callee, NewName: newName})
	}

	return plan, nil
}

// ParameterIndex maps a decompiler-generated name like "a3" to its zero-based
// position. It returns -1 for any other name.
func ParameterIndex(name string) int {
	if len(name) < 2 || name[0] != 'a' {
		return -1
	}
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return -1
		}
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 1 {
		return -1
	}
	return n - 1
}

func parseHexAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}
