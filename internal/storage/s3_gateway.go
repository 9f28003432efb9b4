package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/facasdxf/complexity-engine/internal/pkg/errors"
)

// S3Config configures the S3-compatible gateway; Endpoint and PathStyle
// support MinIO and other S3-compatible stores alongside real AWS S3.
type S3Config struct {
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// S3Gateway uploads to and probes an S3-compatible bucket.
type S3Gateway struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3Gateway builds an S3Gateway from cfg, loading default AWS
// credential-chain config and overriding region/endpoint/credentials when
// cfg carries explicit values.
func NewS3Gateway(ctx context.Context, cfg S3Config) (*S3Gateway, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.InternalError("failed to load AWS config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &S3Gateway{client: client, cfg: cfg}, nil
}

// Exists reports whether the object is present via a HEAD request.
func (g *S3Gateway) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NotFound" || code == "NoSuchKey" {
			return false, nil
		}
	}
	return false, errors.UploadFailureError("failed to probe object existence", err)
}

// Upload puts the object, optionally skipping when SkipIfExists and the key
// already exists.
func (g *S3Gateway) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if req.SkipIfExists {
		exists, err := g.Exists(ctx, req.Bucket, req.Key)
		if err != nil {
			return UploadResult{}, err
		}
		if exists {
			return UploadResult{
				Status:  "skipped",
				URI:     g.uri(req.Bucket, req.Key),
				Message: "object already exists",
			}, nil
		}
	}

	out, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(req.Bucket),
		Key:         aws.String(req.Key),
		Body:        bytes.NewReader(req.Body),
		ContentType: aws.String(req.ContentType),
	})
	if err != nil {
		return UploadResult{}, errors.UploadFailureError("failed to upload object", err)
	}

	result := UploadResult{
		Status: "uploaded",
		URI:    g.uri(req.Bucket, req.Key),
	}
	if out.ETag != nil {
		result.ETag = *out.ETag
	}
	if g.cfg.PublicBaseURL != "" {
		result.PublicURL = fmt.Sprintf("%s/%s", g.cfg.PublicBaseURL, req.Key)
	}
	return result, nil
}

func (g *S3Gateway) uri(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}
