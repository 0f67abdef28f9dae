package avatar

import "errors"

// Failure kinds returned by Uploader. Storage errors also wrap the underlying cause,
// so both errors.Is(err, ErrStorageWrite) and errors.As on the driver error work.
var (
	ErrEmptyInput         = errors.New("avatar: empty input")
	ErrSizeLimitExceeded  = errors.New("avatar: size limit exceeded")
	ErrInvalidImage       = errors.New("avatar: invalid image")
	ErrStorageUnavailable = errors.New("avatar: storage unavailable")
	ErrStorageWrite       = errors.New("avatar: storage write failed")

	// ErrForeignObject is returned by Delete for URLs outside the managed bucket.
	ErrForeignObject = errors.New("avatar: url does not belong to the managed bucket")
)

// Kind returns a stable label for err, used in logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyInput):
		return "empty"
	case errors.Is(err, ErrSizeLimitExceeded):
		return "too_large"
	case errors.Is(err, ErrInvalidImage):
		return "invalid_image"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, ErrStorageWrite):
		return "storage_write"
	default:
		return "unknown"
	}
}
