// Package storage exposes the object-store gateway the worker uploads
// rendered previews through: a small Gateway interface with two
// implementations, no deeper hierarchy, matching the teacher's
// small-interface/concrete-implementation shape for its own store.Storage.
package storage

import (
	"context"
	"time"
)

// UploadRequest is one image upload.
type UploadRequest struct {
	Bucket        string
	Key           string
	Body          []byte
	ContentType   string
	SkipIfExists  bool
	UploadTimeout time.Duration
}

// UploadResult is the outcome of one upload attempt.
type UploadResult struct {
	Status    string // matches domain.UploadStatus values
	URI       string
	PublicURL string
	ETag      string
	Message   string
}

// Gateway is the object-store boundary the worker depends on.
type Gateway interface {
	Upload(ctx context.Context, req UploadRequest) (UploadResult, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
}
