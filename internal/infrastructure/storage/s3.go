package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
)

// S3API is the subset of the S3 client used by S3Storage
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Storage keeps blobs in an S3 bucket under an optional prefix
type S3Storage struct {
	client S3API
	bucket string
	prefix string
	region string
	logger *zap.Logger
}

// NewS3Storage loads the default AWS credential chain for region
func NewS3Storage(ctx context.Context, bucket, prefix, region string, logger *zap.Logger) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3StorageWithClient(s3.NewFromConfig(cfg), bucket, prefix, cfg.Region, logger), nil
}

// NewS3StorageWithClient wraps an existing client
func NewS3StorageWithClient(client S3API, bucket, prefix, region string, logger *zap.Logger) *S3Storage {
	return &S3Storage{
		client: client,
		bucket: bucket,
		prefix: prefix,
		region: region,
		logger: logger.Named("storage.s3"),
	}
}

// Store uploads reader to key
func (s *S3Storage) Store(ctx context.Context, key string, reader io.Reader) error {
	fullKey := s.fullKey(key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(fullKey),
		Body:        reader,
		ContentType: aws.String(contentType(key)),
	})
	if err != nil {
		return apperrors.Storage("failed to upload to S3", err)
	}

	s.logger.Debug("stored blob", zap.String("bucket", s.bucket), zap.String("key", fullKey))
	return nil
}

// Retrieve downloads key
func (s *S3Storage) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, apperrors.NotFound(fmt.Sprintf("blob %s not found", key))
		}
		return nil, apperrors.Storage("failed to get object from S3", err)
	}
	return result.Body, nil
}

// Delete removes key
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return apperrors.Storage("failed to delete from S3", err)
	}
	return nil
}

// Exists reports whether key is present
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, apperrors.Storage("failed to head object", err)
	}
	return true, nil
}

// URL returns the s3:// URL of key
func (s *S3Storage) URL(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.fullKey(key))
}

func (s *S3Storage) fullKey(key string) string {
	if s.prefix != "" {
		return path.Join(s.prefix, key)
	}
	return key
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".m3u", ".m3u8":
		return "audio/x-mpegurl"
	default:
		return "application/octet-stream"
	}
}
