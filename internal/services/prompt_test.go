package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildExtractionPrompt_Deterministic(t *testing.T) {
	a := BuildExtractionPrompt(2025, 5, "RETRIBUZIONE MINIMA 1856,42")
	b := BuildExtractionPrompt(2025, 5, "RETRIBUZIONE MINIMA 1856,42")

	assert.Equal(t, a, b)
}

func TestBuildExtractionPrompt_EmbedsPeriodAndText(t *testing.T) {
	prompt := BuildExtractionPrompt(2025, 3, "CEDOLINO MARZO 2025")

	assert.Contains(t, prompt, "2025-03")
	assert.Contains(t, prompt, "CEDOLINO MARZO 2025")
	assert.Contains(t, prompt, `"year": 2025`, "worked example uses the target period")
	assert.Contains(t, prompt, `"month": 3`)
	assert.NotContains(t, prompt, "attached to this request as an image")
}

func TestBuildExtractionPrompt_ImageFallback(t *testing.T) {
	prompt := BuildExtractionPrompt(2024, 11, "")

	assert.Contains(t, prompt, "attached to this request as an image")
	assert.NotContains(t, prompt, "Payslip text:")
}

func TestBuildExtractionPrompt_ListsWarningVocabulary(t *testing.T) {
	prompt := BuildExtractionPrompt(2025, 1, "whatever")

	for _, code := range []string{
		WarnMonthMismatch,
		WarnLowConfidence,
		WarnMissingFields,
		WarnUnreadableDocument,
		WarnNotAPayslip,
	} {
		assert.Contains(t, prompt, `"`+code+`"`)
	}
}

func TestBuildExtractionPrompt_ContainsWorkedExample(t *testing.T) {
	prompt := BuildExtractionPrompt(2025, 6, "text")

	// The in-context example is load-bearing; make sure every top-level key
	// of the expected shape appears in it.
	for _, key := range []string{"paga_base", "ferie", "permessi", "rol", "tfr", "malattia", "confidence", "warnings"} {
		assert.True(t, strings.Contains(prompt, `"`+key+`"`), "example must show key %q", key)
	}
}
