// Package errors holds the dashboard's error values. Failures reported by the
// CRS API keep the remote status, message and detail so handlers and the
// notification feed can show them as sent.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels. AppErrors wrap one of them so errors.Is works across layers.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrUpstream       = errors.New("upstream error")
)

// sentinelStatus is checked in order by HTTPStatus.
var sentinelStatus = []struct {
	err    error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrConflict, http.StatusConflict},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
	{ErrServiceUnavail, http.StatusServiceUnavailable},
	{ErrUpstream, http.StatusBadGateway},
}

// AppError is an error with a public code and an HTTP status.
// Message and Detail mirror the two free-text fields of a CRS API error body.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`

	upstream bool
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

func newAppError(code string, status int, sentinel error, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: sentinel}
}

// NotFound reports a missing record, e.g. NotFound("case", "9").
func NotFound(resource, id string) *AppError {
	return newAppError("NOT_FOUND", http.StatusNotFound, ErrNotFound,
		fmt.Sprintf("%s with id %s not found", resource, id))
}

func InvalidInput(message string) *AppError {
	return newAppError("INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput, message)
}

func Unauthorized(message string) *AppError {
	return newAppError("UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return newAppError("FORBIDDEN", http.StatusForbidden, ErrForbidden, message)
}

// Unavailable is a retryable 503, used while a session is loading or a
// breaker is open.
func Unavailable(message string) *AppError {
	return newAppError("SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail, message)
}

// Upstream describes an error response from the CRS API. Status is the
// remote status, not the one the dashboard will answer with.
func Upstream(status int, message, detail string) *AppError {
	e := newAppError("UPSTREAM_ERROR", status, ErrUpstream, message)
	e.Detail = detail
	e.upstream = true
	return e
}

// StatusOf returns the status of the first AppError in err's chain, or 0.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}

// FromUpstream reports whether err carries an error response the CRS API
// actually sent, as opposed to a local or transport failure.
func FromUpstream(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.upstream
}

// HTTPStatus maps err to a response status; unknown errors are 500.
func HTTPStatus(err error) int {
	if status := StatusOf(err); status != 0 {
		return status
	}
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
