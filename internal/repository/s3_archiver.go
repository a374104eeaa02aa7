package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"FactorLens/internal/domain/models"
	domrepo "FactorLens/internal/domain/repository"
	applogger "FactorLens/pkg/logger"
)

// S3ArchiverConfig locates the archive bucket.
type S3ArchiverConfig struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // optional, for S3-compatible stores
}

// S3Archiver uploads each run as a JSON document to S3.
type S3Archiver struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	l        *applogger.Logger
}

// NewS3Archiver loads AWS credentials from the default chain.
func NewS3Archiver(ctx context.Context, cfg S3ArchiverConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archiver{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

// SetLogger injects a structured logger.
func (a *S3Archiver) SetLogger(l *applogger.Logger) { a.l = l }

// Archive writes the run under {prefix}/{yyyy}/{mm}/{dd}/{run id}.json and
// returns the object key.
func (a *S3Archiver) Archive(ctx context.Context, r *models.RunResult) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal run: %w", err)
	}
	key := ArchiveKey(a.prefix, r)
	start := time.Now()
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if a.l != nil {
		a.l.Info("run archived",
			applogger.String("bucket", a.bucket),
			applogger.String("key", key),
			applogger.Int("bytes", len(body)),
			applogger.Duration("duration_ms", time.Since(start)))
	}
	return key, nil
}

// ArchiveKey returns the object key for r.
func ArchiveKey(prefix string, r *models.RunResult) string {
	ts := r.CreatedAt.UTC()
	return path.Join(prefix, ts.Format("2006/01/02"), r.ID+".json")
}

var _ domrepo.Archiver = (*S3Archiver)(nil)
