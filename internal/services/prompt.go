package services

import "fmt"

// Warning codes the model is allowed to emit. The prompt constrains the
// model to this vocabulary; the schema validator deliberately does not.
const (
	WarnMonthMismatch      = "month_mismatch"
	WarnLowConfidence      = "low_confidence"
	WarnMissingFields      = "missing_fields"
	WarnUnreadableDocument = "unreadable_document"
	WarnNotAPayslip        = "not_a_payslip"
)

// extractionPromptTemplate is parameterized by target year, target month and
// the document text section. The worked example is load-bearing: without it,
// the model's output format drifts.
const extractionPromptTemplate = `Analyze the Italian payslip (busta paga) for the period %d-%02d.

Extract the payroll fields listed below and return them as a single JSON object.

Follow these rules precisely:
1. Numbers MUST use a decimal point, never a comma: 1234.56, not 1.234,56.
2. When a value is not clearly present on the document, use null. Never invent a value and never use an empty string in place of null.
3. "year" and "month" are the period actually printed on the payslip, even if it differs from the requested period. If it differs, add "month_mismatch" to "warnings".
4. "confidence" is your own certainty in the extraction as a number between 0 and 1.
5. "warnings" may only contain these codes: "month_mismatch", "low_confidence", "missing_fields", "unreadable_document", "not_a_payslip". Use an empty array when there is nothing to report.
6. The output MUST be exactly one valid JSON object with exactly the keys shown in the example. Do not include any text before or after the JSON.

Field meanings:
- "paga_base": the base monthly pay (paga base / minimo contrattuale).
- "ferie": vacation hours - accrued (maturate), taken (godute), remaining (residue).
- "permessi": paid-leave hours (ex festivita / permessi) - accrued, taken, remaining.
- "rol": riduzione orario di lavoro hours - accrued, taken, remaining.
- "tfr": severance accrual - this month's quota (quota_mese) and the cumulative balance (progressivo).
- "malattia": sick leave - days (giorni), hours (ore), withholdings (trattenute).

Example output format:
{
  "year": %d,
  "month": %d,
  "paga_base": 1856.42,
  "ferie": { "maturate": 13.34, "godute": 8.0, "residue": 42.17 },
  "permessi": { "maturati": 8.66, "goduti": 0.0, "residui": 24.5 },
  "rol": { "maturati": 4.33, "goduti": 4.33, "residui": 0.0 },
  "tfr": { "quota_mese": 137.51, "progressivo": 8241.03 },
  "malattia": { "giorni": null, "ore": null, "trattenute": null },
  "confidence": 0.92,
  "warnings": []
}

%s`

// BuildExtractionPrompt renders the instruction sent to the model for one
// payslip. Pure and deterministic: same inputs, same prompt.
func BuildExtractionPrompt(targetYear, targetMonth int, sourceText string) string {
	documentSection := "The payslip is attached to this request as an image. Read it directly."
	if sourceText != "" {
		documentSection = "Payslip text:\n\n" + sourceText
	}
	return fmt.Sprintf(extractionPromptTemplate, targetYear, targetMonth, targetYear, targetMonth, documentSection)
}
