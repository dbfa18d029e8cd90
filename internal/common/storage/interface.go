package storage

import (
	"context"
	"io"
)

// ObjectStorage is the object store surface the evaluation service writes
// archived evaluation bundles through. It is intentionally small so
// MinIO/AWS-S3 implementations can swap without touching business logic.
type ObjectStorage interface {
	// EnsureBucket creates the bucket if it does not already exist.
	EnsureBucket(ctx context.Context, bucket string) error

	// PutObject streams one object and returns the stored size in bytes.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) (int64, error)
}
