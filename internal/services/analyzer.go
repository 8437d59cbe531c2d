package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cloud.google.com/go/vertexai/genai"

	"github.com/bustapagalab/payslipflow/internal/gcp"
	"github.com/bustapagalab/payslipflow/internal/models"
)

// previewLength bounds the extracted-text preview stored on the job record.
const previewLength = 400

// ObjectFetcher retrieves the raw bytes of an uploaded payslip.
type ObjectFetcher interface {
	Fetch(ctx context.Context, objectPath string) ([]byte, error)
}

// TextExtractor converts document bytes into text plus pipeline warnings.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) TextExtraction
}

// Generator produces the model's raw text for a prompt, retries included.
type Generator interface {
	Generate(ctx context.Context, parts ...genai.Part) (string, error)
}

// JobStore is the persistence surface the pipeline drives. Implemented by
// gcp.JobStore; faked in tests.
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*models.PayslipJob, error)
	SetStatus(ctx context.Context, jobID, status, errDetails string) error
	SetPreview(ctx context.Context, jobID, preview, fileHash string) error
	MarkDuplicate(ctx context.Context, jobID, existingJobID string) error
	FindDuplicate(ctx context.Context, userID, fileHash, excludeJobID string) (string, error)
	SaveResult(ctx context.Context, jobID string, result *models.ExtractionResult) error
	SavePartialResult(ctx context.Context, jobID string, partial *models.PartialResult) error
	UpsertAggregate(ctx context.Context, userID, periodKey string, fields map[string]interface{}) error
	ListResults(ctx context.Context, userID string) ([]models.StoredResult, error)
}

// AnalyzerConfig holds all configuration for the analyzer service.
type AnalyzerConfig struct {
	ProjectID      string
	VertexAIRegion string
	PayslipBucket  string
	JobsCollection string
	ModelName      string
}

// AnalyzerFunction holds the dependencies for the payslip analysis pipeline.
type AnalyzerFunction struct {
	fetcher   ObjectFetcher
	extractor TextExtractor
	model     Generator
	store     JobStore
	validator *SchemaValidator
	config    AnalyzerConfig
}

// loadAnalyzerConfig loads and validates all necessary environment variables
// for this service. Missing configuration is fatal before any work starts.
func loadAnalyzerConfig() (*AnalyzerConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, &ConfigurationError{Reason: "PROJECT_ID environment variable must be set"}
	}
	payslipBucket := gcp.GetEnv("PAYSLIP_BUCKET", "")
	if payslipBucket == "" {
		return nil, &ConfigurationError{Reason: "PAYSLIP_BUCKET environment variable must be set"}
	}

	return &AnalyzerConfig{
		ProjectID:      projectID,
		VertexAIRegion: gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		PayslipBucket:  payslipBucket,
		JobsCollection: gcp.GetEnv("FIRESTORE_COLLECTION", "payslips"),
		ModelName:      gcp.GetEnv("GEMINI_MODEL", "gemini-1.5-pro"),
	}, nil
}

// NewAnalyzer creates a new AnalyzerFunction instance with real GCP clients.
func NewAnalyzer(ctx context.Context) (*AnalyzerFunction, error) {
	config, err := loadAnalyzerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	fetcher, err := gcp.NewObjectReader(ctx, config.PayslipBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to create object reader: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion, config.ModelName)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	return &AnalyzerFunction{
		fetcher:   fetcher,
		extractor: NewPDFTextExtractor(),
		model:     NewModelClient(vertexClient.ExtractorModel),
		store:     gcp.NewJobStore(firestoreClient, config.JobsCollection),
		validator: NewSchemaValidator(),
		config:    *config,
	}, nil
}

// Process runs the full pipeline for one job: fetch, extract text, prompt,
// call the model, sanitize, validate, persist the result and upsert the
// monthly aggregate. Any failure marks the job error and is re-returned so
// the platform's own failure accounting fires.
func (f *AnalyzerFunction) Process(ctx context.Context, jobID string) error {
	logCtx := slog.With("jobId", jobID)

	job, err := f.store.GetJob(ctx, jobID)
	if err != nil {
		logCtx.Error("Failed to load job.", "error", err)
		return err
	}
	logCtx = logCtx.With("userId", job.UserID, "period", PeriodKey(job.Year, job.Month))

	// Only freshly created jobs are picked up. Status is monotonic: a job
	// already processing, done or error is never re-driven by the pipeline.
	if job.Status != models.StatusUploaded {
		logCtx.Info("Job is not in uploaded state. Skipping.", "status", job.Status)
		return nil
	}

	// Persist the transition before any expensive work, so a crash
	// mid-pipeline leaves visible evidence of the attempt.
	if err := f.store.SetStatus(ctx, jobID, models.StatusProcessing, ""); err != nil {
		logCtx.Error("Failed to mark job processing.", "error", err)
		return err
	}
	logCtx.Info("Starting payslip analysis.")

	data, err := f.fetcher.Fetch(ctx, job.StoragePath)
	if err != nil {
		return f.fail(ctx, logCtx, jobID, job.UserID, &RetrievalError{Path: job.StoragePath, Err: err})
	}

	hash := sha256.Sum256(data)
	fileHash := hex.EncodeToString(hash[:])

	existingJobID, err := f.store.FindDuplicate(ctx, job.UserID, fileHash, jobID)
	if err != nil {
		return f.fail(ctx, logCtx, jobID, job.UserID, err)
	}
	if existingJobID != "" {
		logCtx.Info("Duplicate upload detected. Reusing earlier analysis.", "existingJobId", existingJobID)
		if err := f.store.MarkDuplicate(ctx, jobID, existingJobID); err != nil {
			return f.fail(ctx, logCtx, jobID, job.UserID, err)
		}
		return nil
	}

	extraction := f.extractor.Extract(ctx, data)
	if err := f.store.SetPreview(ctx, jobID, truncate(extraction.Text, previewLength), fileHash); err != nil {
		return f.fail(ctx, logCtx, jobID, job.UserID, err)
	}

	prompt := BuildExtractionPrompt(job.Year, job.Month, extraction.Text)
	parts := []genai.Part{genai.Text(prompt)}
	if !extraction.IsPDF {
		parts = append(parts, genai.Blob{MIMEType: http.DetectContentType(data), Data: data})
	}

	rawOutput, err := f.model.Generate(ctx, parts...)
	if err != nil {
		return f.fail(ctx, logCtx, jobID, job.UserID, err)
	}

	cleaned := CleanJSONResponse(rawOutput)
	payload, err := f.validator.Parse(cleaned, rawOutput)
	if err != nil {
		return f.fail(ctx, logCtx, jobID, job.UserID, err)
	}

	result := &models.ExtractionResult{
		UserID:         job.UserID,
		Extracted:      *payload,
		RawModelOutput: rawOutput,
		Confidence:     *payload.Confidence,
		Warnings:       mergeWarnings(extraction.Warnings, payload.Warnings),
	}
	if err := f.store.SaveResult(ctx, jobID, result); err != nil {
		return f.fail(ctx, logCtx, jobID, job.UserID, err)
	}

	periodKey := PeriodKey(payload.Year, payload.Month)
	if err := f.store.UpsertAggregate(ctx, job.UserID, periodKey, AggregateFields(payload, jobID)); err != nil {
		return f.fail(ctx, logCtx, jobID, job.UserID, err)
	}

	if err := f.store.SetStatus(ctx, jobID, models.StatusDone, ""); err != nil {
		return f.fail(ctx, logCtx, jobID, job.UserID, err)
	}

	logCtx.Info("Analysis complete.", "aggregateKey", periodKey, "confidence", result.Confidence, "warnings", result.Warnings)
	return nil
}

// fail marks the job error with the failure's message and, for schema
// failures, salvages the raw model output into a partial-result record so a
// human can inspect what the model actually returned.
func (f *AnalyzerFunction) fail(ctx context.Context, logCtx *slog.Logger, jobID, userID string, stageErr error) error {
	logCtx.Error("Pipeline failed.", "error", stageErr)

	var schemaErr *SchemaValidationError
	if errors.As(stageErr, &schemaErr) {
		partial := &models.PartialResult{
			UserID:         userID,
			RawModelOutput: schemaErr.RawOutput,
			Violations:     schemaErr.ViolationStrings(),
		}
		if err := f.store.SavePartialResult(ctx, jobID, partial); err != nil {
			logCtx.Error("Failed to save partial result.", "error", err)
		}
	}

	if err := f.store.SetStatus(ctx, jobID, models.StatusError, stageErr.Error()); err != nil {
		logCtx.Error("CRITICAL: Failed to update job status to error after a processing failure.", "updateError", err)
	}
	return stageErr
}

// mergeWarnings appends the model's warnings to the pipeline's own,
// dropping duplicates while preserving order.
func mergeWarnings(pipeline, model []string) []string {
	merged := make([]string, 0, len(pipeline)+len(model))
	seen := make(map[string]bool, len(pipeline)+len(model))
	for _, w := range pipeline {
		if !seen[w] {
			seen[w] = true
			merged = append(merged, w)
		}
	}
	for _, w := range model {
		if !seen[w] {
			seen[w] = true
			merged = append(merged, w)
		}
	}
	return merged
}
