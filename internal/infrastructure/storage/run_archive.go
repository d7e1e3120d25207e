// Package storage archives computation results in S3-compatible object
// storage (AWS S3, MinIO, RustFS).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/tpa/backend/internal/domain/shared"
	"github.com/tpa/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// RunArchive stores one JSON document per computation run
type RunArchive struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	prefix            string
	presignExpiration time.Duration
	logger            *zap.Logger
}

// Option configures a RunArchive
type Option func(*RunArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *RunArchive) {
		a.logger = logger
	}
}

// WithPresignExpiration sets the lifetime of download links
func WithPresignExpiration(d time.Duration) Option {
	return func(a *RunArchive) {
		a.presignExpiration = d
	}
}

// NewRunArchive creates a run archive from configuration
func NewRunArchive(cfg *config.StorageConfig, opts ...Option) (*RunArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	a := &RunArchive{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		prefix:            cfg.Prefix,
		presignExpiration: cfg.PresignExpiration,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.presignExpiration == 0 {
		a.presignExpiration = 15 * time.Minute
	}
	return a, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *RunArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating run archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Ping checks that the bucket is reachable
func (a *RunArchive) Ping(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	return err
}

// Key returns the object key of a run. runID must be a UUID.
func (a *RunArchive) Key(runID string) (string, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return "", fmt.Errorf("%w: run id %q is not a UUID", shared.ErrInvalidInput, runID)
	}
	return a.prefix + id.String() + ".json", nil
}

// Store uploads the JSON document of a run
func (a *RunArchive) Store(ctx context.Context, runID string, body []byte) error {
	key, err := a.Key(runID)
	if err != nil {
		return err
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload run %s: %w", runID, err)
	}
	a.logger.Debug("Run archived", zap.String("key", key), zap.Int("bytes", len(body)))
	return nil
}

// DownloadURL returns a presigned link to an archived run
func (a *RunArchive) DownloadURL(ctx context.Context, runID string) (string, time.Time, error) {
	key, err := a.Key(runID)
	if err != nil {
		return "", time.Time{}, err
	}
	exists, err := a.exists(ctx, key)
	if err != nil {
		return "", time.Time{}, err
	}
	if !exists {
		return "", time.Time{}, fmt.Errorf("%w: run %s is not archived", shared.ErrNotFound, runID)
	}
	return a.presign(ctx, key, a.presignExpiration)
}

func (a *RunArchive) presign(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	req, err := a.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate download URL: %w", err)
	}
	return req.URL, time.Now().Add(expiresIn), nil
}

func (a *RunArchive) exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}
	// Some S3-compatible services report a missing key differently
	if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
		return false, nil
	}
	return false, fmt.Errorf("failed to check run existence: %w", err)
}

// Bucket returns the bucket name
func (a *RunArchive) Bucket() string {
	return a.bucket
}
