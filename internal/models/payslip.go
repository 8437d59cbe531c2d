package models

import "time"

// Job status values. Transitions are monotonic along
// uploaded -> processing -> {done | error}; a job never returns to uploaded.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

// PayslipJob is the main Firestore record for one uploaded payslip.
// It is created by the upload surface and advanced only by the analyzer.
type PayslipJob struct {
	UserID       string    `firestore:"userId,omitempty"`
	Year         int       `firestore:"year,omitempty"`
	Month        int       `firestore:"month,omitempty"`
	StoragePath  string    `firestore:"storagePath,omitempty"`
	Status       string    `firestore:"status,omitempty"`
	ErrorDetails string    `firestore:"errorDetails,omitempty"`
	TextPreview  string    `firestore:"textPreview,omitempty"`
	FileHash     string    `firestore:"fileHash,omitempty"`
	DuplicateOf  string    `firestore:"duplicateOf,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt,omitempty"`
	UpdatedAt    time.Time `firestore:"updatedAt,omitempty"`
}

// FerieBalance holds the vacation hours triple reported on a payslip.
type FerieBalance struct {
	Maturate *float64 `json:"maturate" firestore:"maturate"`
	Godute   *float64 `json:"godute" firestore:"godute"`
	Residue  *float64 `json:"residue" firestore:"residue"`
}

// PermessiBalance holds an accrued/used/remaining leave-hours triple.
// Both "permessi" and "rol" use this shape.
type PermessiBalance struct {
	Maturati *float64 `json:"maturati" firestore:"maturati"`
	Goduti   *float64 `json:"goduti" firestore:"goduti"`
	Residui  *float64 `json:"residui" firestore:"residui"`
}

// TFRBalance holds the monthly severance-pay quota and its cumulative balance.
type TFRBalance struct {
	QuotaMese   *float64 `json:"quota_mese" firestore:"quota_mese"`
	Progressivo *float64 `json:"progressivo" firestore:"progressivo"`
}

// MalattiaBalance holds sick-leave days, hours and withholdings.
type MalattiaBalance struct {
	Giorni     *float64 `json:"giorni" firestore:"giorni"`
	Ore        *float64 `json:"ore" firestore:"ore"`
	Trattenute *float64 `json:"trattenute" firestore:"trattenute"`
}

// ExtractedPayslip is the structured payload the model must return for one
// payslip. Every monetary/hours leaf is either a finite number or null, never
// a string. The validate tags are the structural contract enforced after
// JSON decoding; the nested triples are required as objects but their leaves
// stay nullable.
type ExtractedPayslip struct {
	Year       int              `json:"year" firestore:"year" validate:"required,gte=2000,lte=2100"`
	Month      int              `json:"month" firestore:"month" validate:"required,gte=1,lte=12"`
	PagaBase   *float64         `json:"paga_base" firestore:"paga_base"`
	Ferie      *FerieBalance    `json:"ferie" firestore:"ferie" validate:"required"`
	Permessi   *PermessiBalance `json:"permessi" firestore:"permessi" validate:"required"`
	Rol        *PermessiBalance `json:"rol" firestore:"rol" validate:"required"`
	TFR        *TFRBalance      `json:"tfr" firestore:"tfr" validate:"required"`
	Malattia   *MalattiaBalance `json:"malattia" firestore:"malattia" validate:"required"`
	Confidence *float64         `json:"confidence" firestore:"confidence" validate:"required,gte=0,lte=1"`
	Warnings   []string         `json:"warnings" firestore:"warnings"`
}

// ExtractionResult is the persisted analysis for one job, keyed by the job ID.
// RawModelOutput preserves the unparsed model text for audit.
type ExtractionResult struct {
	UserID         string           `firestore:"userId"`
	Extracted      ExtractedPayslip `firestore:"extracted"`
	RawModelOutput string           `firestore:"rawModelOutput"`
	Confidence     float64          `firestore:"confidence"`
	Warnings       []string         `firestore:"warnings"`
	CreatedAt      time.Time        `firestore:"createdAt,serverTimestamp"`
}

// PartialResult is the best-effort salvage record written when the model
// returned JSON that failed schema validation, so a human can inspect what
// the model actually produced.
type PartialResult struct {
	UserID         string    `firestore:"userId"`
	RawModelOutput string    `firestore:"rawModelOutput"`
	Violations     []string  `firestore:"violations"`
	CreatedAt      time.Time `firestore:"createdAt,serverTimestamp"`
}

// StoredResult pairs a persisted extraction result with the ID of the job
// that produced it. Used when iterating a user's analyses.
type StoredResult struct {
	JobID  string
	Result ExtractionResult
}
