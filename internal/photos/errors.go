// Package photos is an HTTP client for the Google Photos Library API with
// retry, backoff and error classification. There is no maintained Go SDK for
// this API, so requests are built by hand the same way for listing and for
// the pre-authenticated base URL downloads.
package photos

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status classification.
// Use errors.Is(err, photos.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("photos: bad request")
	ErrUnauthorized = errors.New("photos: unauthorized")
	ErrForbidden    = errors.New("photos: forbidden")
	ErrNotFound     = errors.New("photos: not found")
	ErrThrottled    = errors.New("photos: throttled")
	ErrServerError  = errors.New("photos: server error")
)

// APIError carries the upstream status and response body of a failed call.
type APIError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("photos: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// HTTPStatus reports the upstream status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
