package spotify

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies an API failure structurally so callers never have to
// match on error message text.
type ErrorKind int

const (
	// KindUnknown covers non-retryable failures that are neither transient
	// nor authorization problems (e.g. 400, 404).
	KindUnknown ErrorKind = iota

	// KindPermissionDenied marks 401/403 responses: the token is missing a
	// scope or no longer valid. Never retried.
	KindPermissionDenied

	// KindTransient marks 429 and 5xx responses. Retried with backoff.
	KindTransient
)

// APIError is an HTTP-level failure from the Spotify Web API.
type APIError struct {
	Status   int
	Endpoint string
	Body     string

	// retryAfter holds the server-requested wait from a 429 response.
	retryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("spotify API error: %s returned %d: %s", e.Endpoint, e.Status, e.Body)
}

// Kind classifies the failure by status code.
func (e *APIError) Kind() ErrorKind {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return KindPermissionDenied
	case e.Status == http.StatusTooManyRequests || e.Status >= 500:
		return KindTransient
	default:
		return KindUnknown
	}
}

// IsPermissionDenied reports whether err is an APIError caused by a 401 or
// 403 response.
func IsPermissionDenied(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind() == KindPermissionDenied
}

// IsNotFound reports whether err is an APIError with a 404 status.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
