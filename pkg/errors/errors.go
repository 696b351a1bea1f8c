// Package errors defines the typed error kinds surfaced by the query core
// and an AppError wrapper carrying an HTTP status for the service layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrIndexIO is returned when the backing posting storage fails;
	// it aborts the query.
	ErrIndexIO = errors.New("index io failure")
	// ErrMirrorUnavailable is returned when the relational mirror cannot
	// serve a LIKE verification; it aborts the query.
	ErrMirrorUnavailable = errors.New("mirror unavailable")
	// ErrInvalidQuery covers malformed input, e.g. an empty like-string
	// after wildcard stripping.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrCancelled is returned when the caller's context is observed
	// cancelled between cursor records or before a mirror call.
	ErrCancelled = errors.New("query cancelled")

	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
	ErrTimeout      = errors.New("operation timed out")
)

// AppError attaches a message and HTTP status to a sentinel error.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps sentinel with a status code and message.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf is New with Printf-style formatting.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps err to the HTTP status the service layer should
// return.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrCancelled):
		return http.StatusRequestTimeout
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMirrorUnavailable), errors.Is(err, ErrIndexIO), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
