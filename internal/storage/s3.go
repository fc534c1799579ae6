package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Storage stages downloads on local disk and persists them to S3.
type S3Storage struct {
	*LocalStorage
	client   *s3.Client
	bucket   string
	region   string
	endpoint string
}

// NewS3Storage creates a new S3Storage. tempDir holds staged downloads.
func NewS3Storage(ctx context.Context, tempDir string, cfg S3Config) (*S3Storage, error) {
	local, err := NewLocalStorage(tempDir)
	if err != nil {
		return nil, err
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Storage{
		LocalStorage: local,
		client:       s3.NewFromConfig(awsCfg, clientOpts...),
		bucket:       cfg.Bucket,
		region:       cfg.Region,
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
	}, nil
}

// Put uploads data to S3 and returns the object URL.
func (s *S3Storage) Put(ctx context.Context, key string, data io.Reader) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType(key)),
	})
	if err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	return s.objectURL(key), nil
}

func (s *S3Storage) objectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(key, ".webm"):
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}

// Compile-time check that S3Storage implements Storage.
var _ Storage = (*S3Storage)(nil)
