package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Object is a stored payload together with its declared metadata.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStorage keeps buckets in process memory. It is safe for concurrent use.
type MemoryStorage struct {
	mu         sync.RWMutex
	buckets    map[string]map[string]Object
	publicBase string
}

func NewMemoryStorage(publicBase string) *MemoryStorage {
	return &MemoryStorage{
		buckets:    make(map[string]map[string]Object),
		publicBase: publicBase,
	}
}

func (s *MemoryStorage) BucketExists(_ context.Context, bucket string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.buckets[bucket]
	return ok, nil
}

func (s *MemoryStorage) MakeBucket(_ context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = make(map[string]Object)
	}
	return nil
}

func (s *MemoryStorage) Upload(_ context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, reader)
	if err != nil {
		return fmt.Errorf("read object %q: %w", key, err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("object %q: declared %d bytes, read %d", key, size, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	objects, ok := s.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %q does not exist", bucket)
	}
	objects[key] = Object{Data: buf.Bytes(), ContentType: contentType}

	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[bucket][key]; !ok {
		return ErrObjectNotFound
	}
	delete(s.buckets[bucket], key)

	return nil
}

func (s *MemoryStorage) PublicURL(bucket, key string) string {
	return publicURL(s.publicBase, bucket, key)
}

// Object returns the stored object at bucket/key.
func (s *MemoryStorage) Object(bucket, key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.buckets[bucket][key]
	return obj, ok
}

// Len returns the number of objects in bucket.
func (s *MemoryStorage) Len(bucket string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.buckets[bucket])
}

var _ Storage = (*MemoryStorage)(nil)
