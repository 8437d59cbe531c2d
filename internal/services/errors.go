package services

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a missing or unusable piece of configuration.
// It is fatal and surfaced before any network call is attempted.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// RetrievalError reports that the source payslip object could not be read.
// A missing object is a data error, not a transient one, so it is never retried.
type RetrievalError struct {
	Path string
	Err  error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("failed to retrieve source document %q: %v", e.Path, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// ModelCallError reports that the model client exhausted its retries.
// Err carries the last attempt's failure.
type ModelCallError struct {
	Attempts int
	Err      error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ModelCallError) Unwrap() error { return e.Err }

// InvalidJSONError reports that the sanitized model output was not
// syntactically valid JSON. Prefix holds a truncated slice of the offending
// text for diagnostics.
type InvalidJSONError struct {
	Prefix string
	Err    error
}

func (e *InvalidJSONError) Error() string {
	return fmt.Sprintf("model output is not valid JSON (starts with %q): %v", e.Prefix, e.Err)
}

func (e *InvalidJSONError) Unwrap() error { return e.Err }

// FieldViolation is one structural-contract failure: the path of the
// offending field and the rule it broke.
type FieldViolation struct {
	Path string
	Rule string
}

func (v FieldViolation) String() string {
	return v.Path + ": " + v.Rule
}

// SchemaValidationError reports parsed-but-nonconforming model output.
// RawOutput carries the model's unparsed text as structured data so the
// salvage path never has to re-parse an error message.
type SchemaValidationError struct {
	Violations []FieldViolation
	RawOutput  string
}

func (e *SchemaValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "model output failed schema validation: " + strings.Join(parts, "; ")
}

// ViolationStrings flattens the violations for persistence.
func (e *SchemaValidationError) ViolationStrings() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.String()
	}
	return out
}
