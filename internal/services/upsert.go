package services

import (
	"fmt"

	"github.com/bustapagalab/payslipflow/internal/models"
)

// PeriodKey returns the deterministic aggregate document ID for a period:
// the year joined to the zero-padded month, e.g. (2025, 3) -> "2025-03".
// Keying by this string is what enforces at-most-one aggregate per
// (user, year, month) without any uniqueness scanning.
func PeriodKey(year, month int) string {
	return fmt.Sprintf("%d-%02d", year, month)
}

// AggregateFields flattens a validated extraction into the field map merged
// into the monthly aggregate. Null leaves are omitted so the merge write
// preserves values an earlier, more complete analysis already stored;
// present fields overwrite. Repeating the same write is idempotent.
func AggregateFields(p *models.ExtractedPayslip, sourceJobID string) map[string]interface{} {
	fields := map[string]interface{}{
		"year":            p.Year,
		"month":           p.Month,
		"sourcePayslipId": sourceJobID,
	}
	putNumber(fields, "paga_base", p.PagaBase)
	putGroup(fields, "ferie", map[string]*float64{
		"maturate": p.Ferie.Maturate,
		"godute":   p.Ferie.Godute,
		"residue":  p.Ferie.Residue,
	})
	putGroup(fields, "permessi", map[string]*float64{
		"maturati": p.Permessi.Maturati,
		"goduti":   p.Permessi.Goduti,
		"residui":  p.Permessi.Residui,
	})
	putGroup(fields, "rol", map[string]*float64{
		"maturati": p.Rol.Maturati,
		"goduti":   p.Rol.Goduti,
		"residui":  p.Rol.Residui,
	})
	putGroup(fields, "tfr", map[string]*float64{
		"quota_mese":  p.TFR.QuotaMese,
		"progressivo": p.TFR.Progressivo,
	})
	putGroup(fields, "malattia", map[string]*float64{
		"giorni":     p.Malattia.Giorni,
		"ore":        p.Malattia.Ore,
		"trattenute": p.Malattia.Trattenute,
	})
	return fields
}

func putNumber(fields map[string]interface{}, key string, value *float64) {
	if value != nil {
		fields[key] = *value
	}
}

func putGroup(fields map[string]interface{}, key string, leaves map[string]*float64) {
	group := make(map[string]interface{}, len(leaves))
	for leaf, value := range leaves {
		if value != nil {
			group[leaf] = *value
		}
	}
	if len(group) > 0 {
		fields[key] = group
	}
}
