package services

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// payloadMap returns a fully valid model payload that single tests mutate.
func payloadMap() map[string]any {
	return map[string]any{
		"year":       2025,
		"month":      3,
		"paga_base":  1856.42,
		"ferie":      map[string]any{"maturate": 13.34, "godute": 8.0, "residue": 42.17},
		"permessi":   map[string]any{"maturati": 8.66, "goduti": 0.0, "residui": 24.5},
		"rol":        map[string]any{"maturati": nil, "goduti": nil, "residui": nil},
		"tfr":        map[string]any{"quota_mese": 137.51, "progressivo": 8241.03},
		"malattia":   map[string]any{"giorni": nil, "ore": nil, "trattenute": nil},
		"confidence": 0.92,
		"warnings":   []string{},
	}
}

func marshalPayload(t *testing.T, payload map[string]any) string {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(data)
}

func TestSchemaValidator_ValidPayload(t *testing.T) {
	v := NewSchemaValidator()
	input := marshalPayload(t, payloadMap())

	got, err := v.Parse(input, input)

	require.NoError(t, err)
	assert.Equal(t, 2025, got.Year)
	assert.Equal(t, 3, got.Month)
	require.NotNil(t, got.PagaBase)
	assert.InDelta(t, 1856.42, *got.PagaBase, 0.001)
	require.NotNil(t, got.Confidence)
	assert.InDelta(t, 0.92, *got.Confidence, 0.001)
	assert.Nil(t, got.Rol.Maturati, "null leaf decodes to nil")
}

func TestSchemaValidator_RangeBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]any)
		wantOK  bool
		path    string
	}{
		{name: "confidence above one", mutate: func(p map[string]any) { p["confidence"] = 1.5 }, wantOK: false, path: "confidence"},
		{name: "confidence exactly one", mutate: func(p map[string]any) { p["confidence"] = 1.0 }, wantOK: true},
		{name: "confidence exactly zero", mutate: func(p map[string]any) { p["confidence"] = 0.0 }, wantOK: true},
		{name: "confidence missing", mutate: func(p map[string]any) { delete(p, "confidence") }, wantOK: false, path: "confidence"},
		{name: "month zero", mutate: func(p map[string]any) { p["month"] = 0 }, wantOK: false, path: "month"},
		{name: "month thirteen", mutate: func(p map[string]any) { p["month"] = 13 }, wantOK: false, path: "month"},
		{name: "month one", mutate: func(p map[string]any) { p["month"] = 1 }, wantOK: true},
		{name: "month twelve", mutate: func(p map[string]any) { p["month"] = 12 }, wantOK: true},
		{name: "year below range", mutate: func(p map[string]any) { p["year"] = 1999 }, wantOK: false, path: "year"},
		{name: "year lower bound", mutate: func(p map[string]any) { p["year"] = 2000 }, wantOK: true},
		{name: "year upper bound", mutate: func(p map[string]any) { p["year"] = 2100 }, wantOK: true},
		{name: "year above range", mutate: func(p map[string]any) { p["year"] = 2101 }, wantOK: false, path: "year"},
		{name: "missing ferie object", mutate: func(p map[string]any) { delete(p, "ferie") }, wantOK: false, path: "ferie"},
		{name: "missing tfr object", mutate: func(p map[string]any) { delete(p, "tfr") }, wantOK: false, path: "tfr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewSchemaValidator()
			payload := payloadMap()
			tt.mutate(payload)
			input := marshalPayload(t, payload)

			_, err := v.Parse(input, input)

			if tt.wantOK {
				require.NoError(t, err)
				return
			}
			var schemaErr *SchemaValidationError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, input, schemaErr.RawOutput, "raw output travels with the error")
			require.NotEmpty(t, schemaErr.Violations)
			paths := make([]string, 0, len(schemaErr.Violations))
			for _, violation := range schemaErr.Violations {
				paths = append(paths, violation.Path)
			}
			assert.Contains(t, paths, tt.path)
		})
	}
}

func TestSchemaValidator_StringWhereNumberExpected(t *testing.T) {
	v := NewSchemaValidator()
	payload := payloadMap()
	payload["paga_base"] = "2500.50"
	input := marshalPayload(t, payload)

	_, err := v.Parse(input, input)

	var schemaErr *SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
	require.Len(t, schemaErr.Violations, 1)
	assert.Equal(t, "paga_base", schemaErr.Violations[0].Path)
	assert.Equal(t, input, schemaErr.RawOutput)
}

func TestSchemaValidator_InvalidJSON(t *testing.T) {
	v := NewSchemaValidator()
	input := "I could not read this document, sorry."

	_, err := v.Parse(input, input)

	var jsonErr *InvalidJSONError
	require.ErrorAs(t, err, &jsonErr)
	assert.Equal(t, input, jsonErr.Prefix)
}

func TestSchemaValidator_InvalidJSONPrefixTruncated(t *testing.T) {
	v := NewSchemaValidator()
	input := strings.Repeat("x", 1000)

	_, err := v.Parse(input, input)

	var jsonErr *InvalidJSONError
	require.ErrorAs(t, err, &jsonErr)
	assert.Len(t, jsonErr.Prefix, invalidJSONPrefixLen)
}

func TestSchemaValidator_WarningsStayFreeForm(t *testing.T) {
	v := NewSchemaValidator()
	payload := payloadMap()
	payload["warnings"] = []string{"month_mismatch", "some_code_outside_the_vocabulary"}
	input := marshalPayload(t, payload)

	got, err := v.Parse(input, input)

	require.NoError(t, err)
	assert.Equal(t, []string{"month_mismatch", "some_code_outside_the_vocabulary"}, got.Warnings)
}
