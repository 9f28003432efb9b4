package domain

import "time"

// UploadStatus enumerates the image upload outcomes
type UploadStatus string

const (
	UploadStatusUploaded UploadStatus = "uploaded"
	UploadStatusExists   UploadStatus = "exists"
	UploadStatusSkipped  UploadStatus = "skipped"
	UploadStatusDisabled UploadStatus = "disabled"
	UploadStatusFailed   UploadStatus = "failed"
	UploadStatusError    UploadStatus = "error"
)

// ImageMetadata describes the rendered preview and, if uploaded, its
// location in the object store.
type ImageMetadata struct {
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	DPI         int          `json:"dpi"`
	ContentType string       `json:"contentType"`
	SizeBytes   int64        `json:"sizeBytes"`
	Checksum    string       `json:"checksum"`
	Bucket      string       `json:"bucket,omitempty"`
	Key         string       `json:"key,omitempty"`
	URI         string       `json:"uri,omitempty"`
	PublicURL   string       `json:"publicUrl,omitempty"`
	UploadedAt  *time.Time   `json:"uploadedAt,omitempty"`
	ETag        string       `json:"etag,omitempty"`
	Status      UploadStatus `json:"uploadStatus"`
	Message     string       `json:"message,omitempty"`
}

// Result is the single entity published for every analysis. Score is a
// pointer so it can be null on a failure result.
type Result struct {
	AnalysisID    string         `json:"analysisId"`
	TimestampUTC  time.Time      `json:"timestampUtc"`
	OrderID       string         `json:"orderId,omitempty"`
	FileName      string         `json:"fileName"`
	FileHash      string         `json:"fileHash"`
	Metrics       *Metrics       `json:"metrics,omitempty"`
	Image         *ImageMetadata `json:"image,omitempty"`
	Score         *float64       `json:"score"`
	Explanations  []string       `json:"explanations"`
	EngineVersion string         `json:"engineVersion"`
	DurationMS    int64          `json:"durationMs"`
	ShadowMode    bool           `json:"shadowMode"`
	Flags         map[string]any `json:"flags,omitempty"`
}

// IsFailure reports whether this result represents a failed analysis.
func (r Result) IsFailure() bool {
	return r.Score == nil
}

// FailureCode returns the error kind recorded by a failure result, i.e. the
// first explanation line.
func (r Result) FailureCode() string {
	if !r.IsFailure() || len(r.Explanations) == 0 {
		return ""
	}
	return r.Explanations[0]
}
