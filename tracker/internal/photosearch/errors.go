package photosearch

import (
	"errors"
	"fmt"
)

// Kind classifies a failed fetch.
type Kind int

const (
	// KindTimeout means an attempt exceeded its deadline. Retried.
	KindTimeout Kind = iota + 1

	// KindTransport covers connection failures and non-200 statuses.
	// Connection errors, 5xx, 408 and 429 are retried; other statuses are not.
	KindTransport

	// KindMalformed means the response body could not be decoded. Not retried.
	KindMalformed

	// KindCanceled means the caller canceled the fetch. Not retried.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by Client.Fetch for every failure.
type Error struct {
	Kind Kind

	// Attempts is the number of HTTP attempts made, including the failing one.
	Attempts int

	// Status is the last HTTP status received, or 0.
	Status int

	Err error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("photosearch: %s after %d attempt(s) (status %d): %v", e.Kind, e.Attempts, e.Status, e.Err)
	}
	return fmt.Sprintf("photosearch: %s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a photosearch *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// errStatus is the attempt-level error for a non-200 response.
type errStatus struct {
	code int
}

func (e errStatus) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }
