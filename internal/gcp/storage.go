package gcp

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// ObjectReader reads uploaded payslip objects out of a single GCS bucket.
type ObjectReader struct {
	client *storage.Client
	bucket string
}

// NewObjectReader creates an ObjectReader bound to the given bucket.
func NewObjectReader(ctx context.Context, bucket string) (*ObjectReader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket must be provided to create an object reader")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &ObjectReader{client: client, bucket: bucket}, nil
}

// Fetch returns the full byte payload of the object at the given path.
// A missing object or denied access surfaces as an error; there is no retry
// at this layer.
func (r *ObjectReader) Fetch(ctx context.Context, objectPath string) ([]byte, error) {
	reader, err := r.client.Bucket(r.bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", r.bucket, objectPath, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", r.bucket, objectPath, err)
	}
	return data, nil
}

// Close releases the underlying storage client.
func (r *ObjectReader) Close() error {
	return r.client.Close()
}
