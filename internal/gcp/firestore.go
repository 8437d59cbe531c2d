package gcp

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/bustapagalab/payslipflow/internal/models"
)

// Firestore collection layout. Jobs live in a configurable top-level
// collection; analyses and their salvage records are keyed by the job ID;
// monthly aggregates live under users/{uid}/months/{YYYY-MM}.
const (
	analysesCollection = "analyses"
	partialsCollection = "analysisPartials"
	usersCollection    = "users"
	monthsCollection   = "months"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
// It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// JobStore is the Firestore-backed persistence layer for payslip jobs,
// extraction results and monthly aggregates.
type JobStore struct {
	client *firestore.Client
	jobs   string
}

// NewJobStore creates a JobStore over the given client and jobs collection.
func NewJobStore(client *firestore.Client, jobsCollection string) *JobStore {
	return &JobStore{client: client, jobs: jobsCollection}
}

// GetJob reads one job record by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (*models.PayslipJob, error) {
	snap, err := s.client.Collection(s.jobs).Doc(jobID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}
	var job models.PayslipJob
	if err := snap.DataTo(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", jobID, err)
	}
	return &job, nil
}

// SetStatus advances a job's lifecycle status. errDetails is only written
// when non-empty.
func (s *JobStore) SetStatus(ctx context.Context, jobID, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	if _, err := s.client.Collection(s.jobs).Doc(jobID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update job %s status to %s: %w", jobID, status, err)
	}
	return nil
}

// SetPreview records the extracted-text preview and file hash on the job.
func (s *JobStore) SetPreview(ctx context.Context, jobID, preview, fileHash string) error {
	updates := []firestore.Update{
		{Path: "textPreview", Value: preview},
		{Path: "fileHash", Value: fileHash},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if _, err := s.client.Collection(s.jobs).Doc(jobID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update job %s preview: %w", jobID, err)
	}
	return nil
}

// MarkDuplicate closes a job whose file content matches an already-analyzed
// upload of the same user.
func (s *JobStore) MarkDuplicate(ctx context.Context, jobID, existingJobID string) error {
	updates := []firestore.Update{
		{Path: "status", Value: models.StatusDone},
		{Path: "duplicateOf", Value: existingJobID},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if _, err := s.client.Collection(s.jobs).Doc(jobID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to mark job %s as duplicate: %w", jobID, err)
	}
	return nil
}

// FindDuplicate returns the ID of a completed job of the same user carrying
// the same file hash, or "" when there is none. excludeJobID keeps the job
// under analysis from matching itself on a re-read.
func (s *JobStore) FindDuplicate(ctx context.Context, userID, fileHash, excludeJobID string) (string, error) {
	it := s.client.Collection(s.jobs).
		Where("userId", "==", userID).
		Where("fileHash", "==", fileHash).
		Where("status", "==", models.StatusDone).
		Limit(2).
		Documents(ctx)
	defer it.Stop()

	for {
		doc, err := it.Next()
		if err == iterator.Done {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to query for duplicate uploads: %w", err)
		}
		if doc.Ref.ID != excludeJobID {
			return doc.Ref.ID, nil
		}
	}
}

// SaveResult writes the validated extraction for a job. The document ID is
// the job ID, making the relationship one-to-one by construction.
func (s *JobStore) SaveResult(ctx context.Context, jobID string, result *models.ExtractionResult) error {
	if _, err := s.client.Collection(analysesCollection).Doc(jobID).Set(ctx, result); err != nil {
		return fmt.Errorf("failed to save extraction result for job %s: %w", jobID, err)
	}
	return nil
}

// SavePartialResult writes the raw-output salvage record for a job that
// failed schema validation. Merge semantics keep any earlier salvage fields.
func (s *JobStore) SavePartialResult(ctx context.Context, jobID string, partial *models.PartialResult) error {
	fields := map[string]interface{}{
		"userId":         partial.UserID,
		"rawModelOutput": partial.RawModelOutput,
		"violations":     partial.Violations,
		"createdAt":      firestore.ServerTimestamp,
	}
	if _, err := s.client.Collection(partialsCollection).Doc(jobID).Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to save partial result for job %s: %w", jobID, err)
	}
	return nil
}

// UpsertAggregate merges the given fields into the user's monthly aggregate
// document. Fields absent from the map are preserved; present fields
// overwrite. There is deliberately no version check: uploads are human-paced
// and a concurrent re-analysis of the same period is last-writer-wins.
func (s *JobStore) UpsertAggregate(ctx context.Context, userID, periodKey string, fields map[string]interface{}) error {
	fields["updatedAt"] = firestore.ServerTimestamp
	docRef := s.client.Collection(usersCollection).Doc(userID).Collection(monthsCollection).Doc(periodKey)
	if _, err := docRef.Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to upsert aggregate %s for user %s: %w", periodKey, userID, err)
	}
	return nil
}

// ListResults returns all of a user's stored extraction results, oldest
// first, so replaying them reproduces the aggregates' write order.
func (s *JobStore) ListResults(ctx context.Context, userID string) ([]models.StoredResult, error) {
	it := s.client.Collection(analysesCollection).Where("userId", "==", userID).Documents(ctx)
	defer it.Stop()

	var results []models.StoredResult
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list extraction results for user %s: %w", userID, err)
		}
		var result models.ExtractionResult
		if err := doc.DataTo(&result); err != nil {
			return nil, fmt.Errorf("failed to decode extraction result %s: %w", doc.Ref.ID, err)
		}
		results = append(results, models.StoredResult{JobID: doc.Ref.ID, Result: result})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Result.CreatedAt.Before(results[j].Result.CreatedAt)
	})
	return results, nil
}
