package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bustapagalab/payslipflow/internal/models"
)

// invalidJSONPrefixLen bounds how much of a non-JSON model response is
// carried in the diagnostic error.
const invalidJSONPrefixLen = 200

// SchemaValidator checks sanitized model output against the structural
// contract of an extracted payslip.
type SchemaValidator struct {
	validate *validator.Validate
}

// NewSchemaValidator builds the validator with the struct rules declared on
// models.ExtractedPayslip.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Parse decodes cleaned as JSON and validates it. rawOutput is the model's
// unsanitized text; it travels inside SchemaValidationError so the salvage
// path gets it as structured data instead of re-parsing an error message.
//
// Failure modes:
//   - not syntactically JSON: *InvalidJSONError with a truncated prefix.
//   - well-formed JSON with wrong types or out-of-range values:
//     *SchemaValidationError listing (field path, violation) pairs.
//
// The warnings field is intentionally permissive: the prompt constrains the
// model to an enumerated vocabulary, but any array of strings passes here.
func (s *SchemaValidator) Parse(cleaned, rawOutput string) (*models.ExtractedPayslip, error) {
	data := []byte(cleaned)
	if !json.Valid(data) {
		return nil, &InvalidJSONError{
			Prefix: truncate(cleaned, invalidJSONPrefixLen),
			Err:    errors.New("input is not well-formed JSON"),
		}
	}

	var payload models.ExtractedPayslip
	if err := json.Unmarshal(data, &payload); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &SchemaValidationError{
				Violations: []FieldViolation{{
					Path: typeErr.Field,
					Rule: fmt.Sprintf("got %s, expected %s", typeErr.Value, typeErr.Type),
				}},
				RawOutput: rawOutput,
			}
		}
		return nil, &InvalidJSONError{Prefix: truncate(cleaned, invalidJSONPrefixLen), Err: err}
	}

	if err := s.validate.Struct(&payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, fmt.Errorf("schema validation failed: %w", err)
		}
		violations := make([]FieldViolation, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			violations = append(violations, FieldViolation{
				Path: fieldPath(fe),
				Rule: violationRule(fe),
			})
		}
		return nil, &SchemaValidationError{Violations: violations, RawOutput: rawOutput}
	}

	return &payload, nil
}

// fieldPath rewrites the validator's namespace ("ExtractedPayslip.Ferie")
// into the wire-level path ("ferie").
func fieldPath(fe validator.FieldError) string {
	path := fe.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	parts := strings.Split(path, ".")
	for i, p := range parts {
		parts[i] = jsonFieldName(p)
	}
	return strings.Join(parts, ".")
}

// jsonFieldName maps the handful of struct field names to their JSON keys.
func jsonFieldName(field string) string {
	switch field {
	case "PagaBase":
		return "paga_base"
	case "TFR":
		return "tfr"
	}
	return strings.ToLower(field)
}

func violationRule(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
	}
	return fe.Tag()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
