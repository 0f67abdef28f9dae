package avatar

import (
	"time"

	"github.com/rs/zerolog"
)

// Recorder receives the outcome of every upload attempt.
type Recorder interface {
	ObserveUpload(kind string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveUpload(string, time.Duration) {}

// Option configures an Uploader.
type Option func(u *Uploader)

// WithMaxBytes sets the raw upload limit; non-positive values are ignored.
func WithMaxBytes(n int64) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.maxBytes = n
		}
	}
}

// WithSize sets the edge length of stored pictures; non-positive values are ignored.
func WithSize(px int) Option {
	return func(u *Uploader) {
		if px > 0 {
			u.size = px
		}
	}
}

// WithKeyFunc replaces the object key generator. The returned key must already
// carry the ".png" suffix.
func WithKeyFunc(fn func() string) Option {
	return func(u *Uploader) {
		u.newKey = fn
	}
}

// WithRecorder reports every upload outcome to r.
func WithRecorder(r Recorder) Option {
	return func(u *Uploader) {
		u.rec = r
	}
}

// WithLogger replaces the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(u *Uploader) {
		u.log = l
	}
}
