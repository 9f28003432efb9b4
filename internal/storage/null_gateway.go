package storage

import "context"

// NullGateway is used when image storage is disabled; it performs no I/O
// and always reports an upload as disabled.
type NullGateway struct{}

// Upload records UploadStatus "disabled" without touching the network.
func (NullGateway) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	return UploadResult{Status: "disabled"}, nil
}

// Exists always reports false: a disabled gateway has nothing to probe.
func (NullGateway) Exists(ctx context.Context, bucket, key string) (bool, error) {
	return false, nil
}
