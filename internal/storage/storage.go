// Package storage defines the interface for object storage operations.
// The MinIO implementation works with any S3-compatible provider (MinIO, ArvanCloud, AWS S3).
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrObjectNotFound is returned when a key does not exist in a bucket.
var ErrObjectNotFound = errors.New("object not found")

// Storage is the interface for bucket management and object writes.
type Storage interface {
	// BucketExists reports whether bucket is present.
	BucketExists(ctx context.Context, bucket string) (bool, error)
	// MakeBucket creates bucket. Creating a bucket that already exists is not an error.
	MakeBucket(ctx context.Context, bucket string) error
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error
	// Delete removes an object identified by key.
	Delete(ctx context.Context, bucket, key string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(bucket, key string) string
}

func publicURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + key
}
