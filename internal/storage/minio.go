package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
type MinioStorage struct {
	client     *minio.Client
	publicBase string
}

// NewMinioStorage creates a MinIO client. No request is made until the first call;
// buckets are created lazily by MakeBucket.
func NewMinioStorage(endpoint, accessKey, secretKey, publicBase string, useSSL bool) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioStorage{
		client:     client,
		publicBase: publicBase,
	}, nil
}

func (s *MinioStorage) BucketExists(ctx context.Context, bucket string) (bool, error) {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("check bucket existence: %w", err)
	}
	return exists, nil
}

// MakeBucket creates bucket with a public-read policy so returned URLs resolve.
// Losing a creation race to another caller counts as success. A bucket this call
// created is removed again when the policy cannot be applied, so the next
// BucketExists reports false and creation is retried.
func (s *MinioStorage) MakeBucket(ctx context.Context, bucket string) error {
	created := true
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		if !isBucketTaken(err) {
			return fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		created = false
	}

	if err := s.client.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket)); err != nil {
		if created {
			if rmErr := s.client.RemoveBucket(ctx, bucket); rmErr != nil {
				log.Error().Err(rmErr).Str("bucket", bucket).Msg("storage: remove bucket without policy")
			}
		}
		return fmt.Errorf("set bucket policy: %w", err)
	}

	if created {
		log.Info().Str("bucket", bucket).Msg("storage: created bucket")
	}

	return nil
}

// Upload streams reader to MinIO under key. size must be the exact byte count.
func (s *MinioStorage) Upload(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// Delete removes the object at key from the bucket.
func (s *MinioStorage) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ErrObjectNotFound
		}
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// PublicURL returns the browser-accessible URL for the given key,
// e.g. "http://localhost:9000/profile-pictures/<uuid>.png".
func (s *MinioStorage) PublicURL(bucket, key string) string {
	return publicURL(s.publicBase, bucket, key)
}

func isBucketTaken(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		return true
	}
	return false
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": map[string]interface{}{"AWS": []string{"*"}},
				"Action":    []string{"s3:GetObject"},
				"Resource":  []string{fmt.Sprintf("arn:aws:s3:::%s/*", bucket)},
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}

var _ Storage = (*MinioStorage)(nil)
