package errors

import (
	"errors"
	"fmt"
)

// Error is a classified transport failure
type Error struct {
	Kind       Kind
	StatusCode int    // HTTP status for ServerError and ClientError
	Body       string // raw response body for ServerError and ClientError
	Err        error  // underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s (%d): %s", e.Kind.Message(), e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (%d)", e.Kind.Message(), e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind.Message(), e.Err)
	}
	return e.Kind.Message()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: NoInternet}) works
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.StatusCode == 0 || t.StatusCode == e.StatusCode)
	}
	return false
}

// New creates an Error of the given kind
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Wrap attaches a kind to an existing error. An error that is already
// classified keeps its original kind.
func Wrap(err error, kind Kind) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: kind, Err: err}
}

// HTTP builds a ServerError or ClientError from a response status and body.
// Statuses below 400 are not errors and return nil.
func HTTP(statusCode int, body string) *Error {
	switch {
	case statusCode >= 500:
		return &Error{Kind: ServerError, StatusCode: statusCode, Body: body}
	case statusCode >= 400:
		return &Error{Kind: ClientError, StatusCode: statusCode, Body: body}
	}
	return nil
}

// KindOf extracts the Kind from an error. Unclassified errors are Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind checks whether err is classified as kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err may be retried by the unary retry policy
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.Retryable()
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
