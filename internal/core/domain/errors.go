package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an upstream API error into its recovery policy.
type ErrorKind int

const (
	// ErrKindForbidden is an embedded HTTP 403: no retry, and during calendar
	// refresh it triggers the public-page existence re-check.
	ErrKindForbidden ErrorKind = iota
	// ErrKindRetryable covers server errors, DataFetchingException and
	// "please try again" responses; the client retries with backoff.
	ErrKindRetryable
	// ErrKindDataShape marks an unexpected response shape (e.g. a malformed
	// price breakdown). It aborts only the current parsing attempt.
	ErrKindDataShape
	// ErrKindFatal is everything else: unclassified API errors, missing
	// mandatory fields, retries exhausted.
	ErrKindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindForbidden:
		return "forbidden"
	case ErrKindRetryable:
		return "retryable"
	case ErrKindDataShape:
		return "data_shape"
	default:
		return "fatal"
	}
}

// APIError is a classified upstream error. It lives for the duration of one
// request attempt and is never persisted.
type APIError struct {
	Kind     ErrorKind
	Messages []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%s): %s", e.Kind, strings.Join(e.Messages, "; "))
}

func NewAPIError(kind ErrorKind, messages ...string) *APIError {
	return &APIError{Kind: kind, Messages: messages}
}

// IsForbidden reports whether err is a classified 403.
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == ErrKindForbidden
}

// IsDataShape reports whether err marks an unexpected response shape.
func IsDataShape(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == ErrKindDataShape
}
