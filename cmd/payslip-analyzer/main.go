package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/bustapagalab/payslipflow/internal/services"
)

var (
	analyzerInstance *services.AnalyzerFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function. The framework routes the Firestore
	// document-created event here.
	functions.CloudEvent("AnalyzePayslip", analyzePayslip)
}

// main is required by the Go Functions Framework.
func main() {}

// firestoreEvent is the payload of a Firestore document event. Only the
// document name is read; the job record itself is re-fetched so the pipeline
// always works from fresh data.
type firestoreEvent struct {
	Value struct {
		Name string `json:"name"`
	} `json:"value"`
}

// analyzePayslip is the Cloud Function entry point, fired on creation of a
// payslip job document.
func analyzePayslip(ctx context.Context, e cloudevents.Event) error {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		analyzerInstance, initErr = services.NewAnalyzer(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var fe firestoreEvent
	if err := json.Unmarshal(e.Data(), &fe); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	if fe.Value.Name == "" {
		return fmt.Errorf("event data carries no document name")
	}

	jobID := path.Base(fe.Value.Name)
	// Errors are logged with context inside Process; returning one marks the
	// invocation as failed for the platform's own accounting.
	return analyzerInstance.Process(ctx, jobID)
}
