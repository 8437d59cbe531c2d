package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bustapagalab/payslipflow/internal/models"
)

func storedResult(jobID string, year, month int, pagaBase float64) models.StoredResult {
	return models.StoredResult{
		JobID: jobID,
		Result: models.ExtractionResult{
			UserID: "user-1",
			Extracted: models.ExtractedPayslip{
				Year:     year,
				Month:    month,
				PagaBase: number(pagaBase),
				Ferie:    &models.FerieBalance{},
				Permessi: &models.PermessiBalance{},
				Rol:      &models.PermessiBalance{},
				TFR:      &models.TFRBalance{},
				Malattia: &models.MalattiaBalance{},
			},
		},
	}
}

func TestBackfill_ReplaysResultsIntoAggregates(t *testing.T) {
	store := &fakeStore{results: []models.StoredResult{
		storedResult("job-1", 2025, 3, 1800),
		storedResult("job-2", 2025, 3, 1950), // same period, newer write wins the merge
		storedResult("job-3", 2025, 4, 1900),
	}}
	backfill := &BackfillFunction{store: store}

	resp, err := backfill.Process(context.Background(), &BackfillRequest{UserID: "user-1"})

	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 2, resp.MonthsUpdated)
	require.Len(t, store.upserts, 3)

	// Within a period the replay order must match the original write order,
	// oldest first, so the newest result's values end up on top.
	var march []upsertCall
	for _, call := range store.upserts {
		assert.Equal(t, "user-1", call.userID)
		if call.periodKey == "2025-03" {
			march = append(march, call)
		}
	}
	require.Len(t, march, 2)
	assert.Equal(t, "job-1", march[0].fields["sourcePayslipId"])
	assert.Equal(t, "job-2", march[1].fields["sourcePayslipId"])
	assert.Equal(t, 1950.0, march[1].fields["paga_base"])
}

func TestBackfill_NothingToDo(t *testing.T) {
	store := &fakeStore{}
	backfill := &BackfillFunction{store: store}

	resp, err := backfill.Process(context.Background(), &BackfillRequest{UserID: "user-1"})

	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 0, resp.MonthsUpdated)
	assert.Empty(t, store.upserts)
}

func TestBackfill_RequiresUserID(t *testing.T) {
	backfill := &BackfillFunction{store: &fakeStore{}}

	_, err := backfill.Process(context.Background(), &BackfillRequest{})

	require.Error(t, err)
}

func TestBackfill_PropagatesListFailure(t *testing.T) {
	store := &fakeStore{listErr: errors.New("firestore unavailable")}
	backfill := &BackfillFunction{store: store}

	_, err := backfill.Process(context.Background(), &BackfillRequest{UserID: "user-1"})

	require.Error(t, err)
	assert.Empty(t, store.upserts)
}
