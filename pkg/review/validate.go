package review

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// rawOutput mirrors Output but as the wire shape validator/v10 checks
// struct tags against, keeping the JSON-parsing concern (are all seven
// fields present and well-typed) separate from the domain Verdict
// validation (is this a known enum value).
type rawOutput struct {
	Assessment      string   `json:"assessment" validate:"required"`
	Risks           []string `json:"risks" validate:"required"`
	Assumptions     []string `json:"assumptions" validate:"required"`
	Tradeoffs       []string `json:"tradeoffs" validate:"required"`
	FailureModes    []string `json:"failure_modes" validate:"required"`
	Recommendations []string `json:"recommendations" validate:"required"`
	Verdict         string   `json:"verdict" validate:"required"`
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidationError is returned by ParseAndValidate on any malformed or
// incomplete reply.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "review: validation error: " + e.Reason }

// ParseAndValidate parses raw as canonical JSON and checks presence
// and types of all seven fields (via struct tags), then that Verdict
// is a recognized enum value. "required" on a slice field accepts an
// empty-but-present slice; JSON omission of the key is what fails it.
func ParseAndValidate(raw string) (Output, error) {
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return Output{}, &ValidationError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	for _, field := range []string{"assessment", "risks", "assumptions", "tradeoffs", "failure_modes", "recommendations", "verdict"} {
		if _, ok := decoded[field]; !ok {
			return Output{}, &ValidationError{Reason: fmt.Sprintf("missing field %q", field)}
		}
	}

	var ro rawOutput
	if err := json.Unmarshal([]byte(raw), &ro); err != nil {
		return Output{}, &ValidationError{Reason: fmt.Sprintf("type mismatch: %v", err)}
	}
	if err := structValidator.Struct(ro); err != nil {
		return Output{}, &ValidationError{Reason: err.Error()}
	}

	verdict := Verdict(ro.Verdict)
	if !verdict.Valid() {
		return Output{}, &ValidationError{Reason: fmt.Sprintf("unknown verdict %q", ro.Verdict)}
	}

	return Output{
		Assessment:      ro.Assessment,
		Risks:           ro.Risks,
		Assumptions:     ro.Assumptions,
		Tradeoffs:       ro.Tradeoffs,
		FailureModes:    ro.FailureModes,
		Recommendations: ro.Recommendations,
		Verdict:         verdict,
	}, nil
}
