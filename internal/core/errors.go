package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeInternal    = "internal"
)

var (
	// ErrMissingFields is returned when a submission lacks a username or message.
	ErrMissingFields = errors.New("missing username or message")
	// ErrHubStopped is returned when subscribing to a reload hub that is no longer running.
	ErrHubStopped = errors.New("reload hub stopped")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// Messages shown to clients for each failure class.
var (
	ErrBadSubmission  = coreError(ErrCodeBadRequest, "Bad Request: Missing username or message")
	ErrRouteNotFound  = coreError(ErrCodeNotFound, "Not Found")
	ErrStaticNotFound = coreError(ErrCodeNotFound, "Static File Not Found")
	ErrTooManyPosts   = coreError(ErrCodeRateLimited, "Too many requests. Try again later.")
	ErrInternal       = coreError(ErrCodeInternal, "Internal Server Error")
)

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
