package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bustapagalab/payslipflow/internal/gcp"
	"github.com/bustapagalab/payslipflow/internal/models"
)

// BackfillRequest is the input for the aggregate-backfill function.
type BackfillRequest struct {
	UserID string `json:"userId"`
}

// BackfillResponse is the output of the aggregate-backfill function.
type BackfillResponse struct {
	Status        string `json:"status"`
	MonthsUpdated int    `json:"monthsUpdated"`
}

// BackfillFunction recomputes a user's monthly aggregates from their stored
// extraction results, without re-calling the model. Used after schema or
// merge-rule changes.
type BackfillFunction struct {
	store JobStore
}

// NewBackfill creates a new BackfillFunction instance.
func NewBackfill(ctx context.Context) (*BackfillFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, &ConfigurationError{Reason: "PROJECT_ID environment variable must be set"}
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	jobsCollection := gcp.GetEnv("FIRESTORE_COLLECTION", "payslips")
	return &BackfillFunction{store: gcp.NewJobStore(firestoreClient, jobsCollection)}, nil
}

// Process replays all of the user's extraction results into their monthly
// aggregates. Results for the same period are applied oldest first, so the
// merge order matches the order the pipeline originally wrote them; distinct
// periods are independent and run concurrently.
func (f *BackfillFunction) Process(ctx context.Context, req *BackfillRequest) (*BackfillResponse, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("userId must be provided")
	}
	logCtx := slog.With("userId", req.UserID)
	logCtx.Info("Starting aggregate backfill.")

	results, err := f.store.ListResults(ctx, req.UserID)
	if err != nil {
		logCtx.Error("Failed to list extraction results.", "error", err)
		return nil, err
	}
	if len(results) == 0 {
		logCtx.Info("No extraction results found. Nothing to backfill.")
		return &BackfillResponse{Status: "success", MonthsUpdated: 0}, nil
	}

	// ListResults returns oldest first; grouping preserves that order
	// within each period.
	byPeriod := make(map[string][]models.StoredResult)
	for _, r := range results {
		key := PeriodKey(r.Result.Extracted.Year, r.Result.Extracted.Month)
		byPeriod[key] = append(byPeriod[key], r)
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(5)
	for periodKey, periodResults := range byPeriod {
		eg.Go(func() error {
			for _, r := range periodResults {
				fields := AggregateFields(&r.Result.Extracted, r.JobID)
				if err := f.store.UpsertAggregate(gctx, req.UserID, periodKey, fields); err != nil {
					return fmt.Errorf("period %s: %w", periodKey, err)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logCtx.Error("Backfill failed.", "error", err)
		return nil, err
	}

	logCtx.Info("Aggregate backfill complete.", "monthsUpdated", len(byPeriod), "resultCount", len(results))
	return &BackfillResponse{Status: "success", MonthsUpdated: len(byPeriod)}, nil
}
