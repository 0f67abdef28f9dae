// Package avatar turns user-supplied images into fixed-size PNG profile pictures
// and writes them to object storage.
package avatar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxBytes is the largest raw upload accepted (5 MiB).
	DefaultMaxBytes int64 = 5 * 1024 * 1024
	// DefaultSize is the edge length of every stored picture.
	DefaultSize = 200
	// DefaultBucket is the container profile pictures are written to.
	DefaultBucket = "profile-pictures"

	contentTypePNG = "image/png"
)

// Store is the subset of object storage the uploader needs.
type Store interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string) error
	Upload(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
	PublicURL(bucket, key string) string
}

// Uploader validates, normalizes and stores profile pictures. It is safe for
// concurrent use; the bucket name is fixed at construction.
type Uploader struct {
	store    Store
	bucket   string
	maxBytes int64
	size     int
	newKey   func() string
	rec      Recorder
	log      zerolog.Logger
}

// New returns an Uploader writing to bucket through store.
func New(store Store, bucket string, opts ...Option) *Uploader {
	u := &Uploader{
		store:    store,
		bucket:   bucket,
		maxBytes: DefaultMaxBytes,
		size:     DefaultSize,
		newKey:   newKey,
		rec:      nopRecorder{},
		log:      log.Logger,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// Bucket returns the container pictures are written to.
func (u *Uploader) Bucket() string {
	return u.bucket
}

// MaxBytes returns the configured raw upload limit.
func (u *Uploader) MaxBytes() int64 {
	return u.maxBytes
}

// Upload stores data as a normalized PNG and returns its public URL.
// Each failure aborts the whole operation; no URL is returned with an error.
func (u *Uploader) Upload(ctx context.Context, data []byte) (url string, err error) {
	start := time.Now()
	defer func() {
		u.rec.ObserveUpload(Kind(err), time.Since(start))
	}()

	if len(data) == 0 {
		return "", ErrEmptyInput
	}
	if int64(len(data)) > u.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit is %d", ErrSizeLimitExceeded, len(data), u.maxBytes)
	}

	encoded, err := Normalize(data, u.size)
	if err != nil {
		return "", err
	}

	key := u.newKey()

	if err := u.ensureBucket(ctx); err != nil {
		return "", err
	}

	err = u.store.Upload(ctx, u.bucket, key, bytes.NewReader(encoded), int64(len(encoded)), contentTypePNG)
	if err != nil {
		return "", fmt.Errorf("%w: put %q: %w", ErrStorageWrite, key, err)
	}

	u.log.Debug().
		Str("bucket", u.bucket).
		Str("key", key).
		Int("raw_bytes", len(data)).
		Int("png_bytes", len(encoded)).
		Msg("avatar stored")

	return u.store.PublicURL(u.bucket, key), nil
}

// UploadReader reads at most MaxBytes+1 bytes from r and hands them to Upload,
// so an oversized body is rejected without being buffered in full.
func (u *Uploader) UploadReader(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, u.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	return u.Upload(ctx, data)
}

// Delete removes the object behind a URL previously returned by Upload.
func (u *Uploader) Delete(ctx context.Context, url string) error {
	key, ok := u.KeyFromURL(url)
	if !ok {
		return ErrForeignObject
	}

	if err := u.store.Delete(ctx, u.bucket, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	return nil
}

// KeyFromURL extracts the object key from a URL in the managed bucket.
func (u *Uploader) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, u.store.PublicURL(u.bucket, ""))
	if !ok || key == "" || strings.Contains(key, "/") {
		return "", false
	}

	return key, true
}

// ensureBucket creates the bucket on first use. The check and the create are not
// atomic; the store treats a concurrent create as success.
func (u *Uploader) ensureBucket(ctx context.Context) error {
	exists, err := u.store.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("%w: check bucket %q: %w", ErrStorageUnavailable, u.bucket, err)
	}
	if exists {
		return nil
	}

	if err := u.store.MakeBucket(ctx, u.bucket); err != nil {
		return fmt.Errorf("%w: create bucket %q: %w", ErrStorageUnavailable, u.bucket, err)
	}

	u.log.Info().Str("bucket", u.bucket).Msg("avatar bucket created")

	return nil
}

func newKey() string {
	return uuid.NewString() + ".png"
}
