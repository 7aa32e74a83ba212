package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/welldanyogia/recetas/backend/internal/config"
)

const (
	s3KeyPrefix    = "media/"
	deleteBatchMax = 1000
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Store keeps media in an S3 or MinIO bucket.
type S3Store struct {
	client    S3API
	bucket    string
	publicURL string
}

// NewS3Store creates an S3 client from cfg. A custom endpoint switches to
// path-style addressing for MinIO.
func NewS3Store(cfg config.StorageConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required for the s3 driver")
	}

	opts := s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		),
	}

	endpoint := cfg.Endpoint
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		if endpoint != "" {
			publicURL = strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
		} else {
			publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	return NewS3StoreWithClient(s3.New(opts), cfg.Bucket, publicURL), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client S3API, bucket, publicURL string) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/") + "/",
	}
}

// Save uploads r as media/<name>.
func (s *S3Store) Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error) {
	if !validName(name) {
		return "", ErrInvalidKey
	}
	key := s3KeyPrefix + name

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return s.publicURL + key, nil
}

func (s *S3Store) keyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.publicURL)
	if !ok || !strings.HasPrefix(key, s3KeyPrefix) || !validName(strings.TrimPrefix(key, s3KeyPrefix)) {
		return "", false
	}
	return key, true
}

func (s *S3Store) Owns(url string) bool {
	_, ok := s.keyFromURL(url)
	return ok
}

// Delete removes objects in batches of up to 1000 keys.
func (s *S3Store) Delete(ctx context.Context, urls ...string) error {
	var objects []types.ObjectIdentifier
	for _, url := range urls {
		if key, ok := s.keyFromURL(url); ok {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}
	}

	for i := 0; i < len(objects); i += deleteBatchMax {
		end := i + deleteBatchMax
		if end > len(objects) {
			end = len(objects)
		}

		output, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects[i:end],
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects: %w", err)
		}
		if len(output.Errors) > 0 {
			e := output.Errors[0]
			return fmt.Errorf("failed to delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return nil
}
