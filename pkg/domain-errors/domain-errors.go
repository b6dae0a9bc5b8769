package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business logic terms, not HTTP terms.
type Code string

const (
	CodeNotFound        Code = "not_found"
	CodeBadRequest      Code = "bad_request"
	CodeInvalidInput    Code = "invalid_input"
	CodeValidation      Code = "validation_failed"
	CodeInternal        Code = "internal_error"
	CodeConflict        Code = "conflict"
	CodeUnauthorized    Code = "unauthorized"
	CodeUnauthenticated Code = "unauthenticated"
	CodeForbidden       Code = "forbidden"
	CodeUnavailable     Code = "service_unavailable"

	// Bracelet access-control codes.
	CodeInvalidToken  Code = "invalid_token"  // Unknown bracelet or wrong token; the two are never distinguished outward.
	CodeInvalidStatus Code = "invalid_status" // Requested action is not permitted in the bracelet's current status.
	CodeInvalidPin    Code = "invalid_pin"    // PIN did not match the stored hash.
	CodeRateLimited   Code = "rate_limited"   // Attempt limiter engaged; RetryAfter carries the remaining block.
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error

	// RetryAfterSeconds is set only for CodeRateLimited errors.
	RetryAfterSeconds int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// NewRateLimited creates a rate-limited error carrying the retry-after hint.
func NewRateLimited(msg string, retryAfterSeconds int) error {
	return &Error{Code: CodeRateLimited, Message: msg, RetryAfterSeconds: retryAfterSeconds}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		// Preserve the original domain code, update message
		return &Error{Code: existing.Code, Message: msg, Err: err, RetryAfterSeconds: existing.RetryAfterSeconds}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// RetryAfter extracts the retry-after hint from a rate-limited error.
// Returns 0 for any other error.
func RetryAfter(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Code == CodeRateLimited {
		return e.RetryAfterSeconds
	}
	return 0
}
