// Package httputil writes the dashboard's JSON envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/errors"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/logger"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/validator"
)

// Response is the envelope of every dashboard API reply.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of Response.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Detail    string            `json:"detail,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// ValidationMessage is the form-level message sent with field errors.
const ValidationMessage = "Please fix the errors in the form"

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are out; an encoding failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// sentinels maps the package errors to the public code and message used when
// the error carries no AppError of its own.
var sentinels = []struct {
	err     error
	code    string
	message string
}{
	{apperrors.ErrNotFound, "NOT_FOUND", "resource not found"},
	{apperrors.ErrConflict, "CONFLICT", "resource conflict"},
	{apperrors.ErrInvalidInput, "INVALID_INPUT", ""},
	{apperrors.ErrUnauthorized, "UNAUTHORIZED", "authentication required"},
	{apperrors.ErrForbidden, "FORBIDDEN", "insufficient permissions"},
	{apperrors.ErrServiceUnavail, "SERVICE_UNAVAILABLE", "service unavailable"},
	{apperrors.ErrUpstream, "UPSTREAM_ERROR", "the CRS API request failed"},
}

// describe picks the status and body for err. A CRS API 5xx becomes 502.
func describe(err error) (int, ErrorResponse) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := appErr.Status
		switch {
		case status == 0:
			status = http.StatusInternalServerError
		case status >= http.StatusInternalServerError && errors.Is(err, apperrors.ErrUpstream):
			status = http.StatusBadGateway
		}
		return status, ErrorResponse{Code: appErr.Code, Message: appErr.Message, Detail: appErr.Detail}
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			message := s.message
			if message == "" {
				message = err.Error()
			}
			return apperrors.HTTPStatus(err), ErrorResponse{Code: s.code, Message: message}
		}
	}
	return http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
}

// WriteError writes err in the envelope. Internal errors are logged with the
// request-scoped logger when there is one, else with fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	ctx := r.Context()
	l := logger.FromContext(ctx)
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	status, body := describe(err)
	body.RequestID = logger.CorrelationIDFromContext(ctx)

	switch {
	case status == http.StatusBadGateway:
		l.WarnContext(ctx, "upstream error",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
		)
	case status == http.StatusInternalServerError:
		l.ErrorContext(ctx, "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: &body})
}

// WriteValidationError writes a 400. Field messages are included when err is
// a *validator.ValidationError.
func WriteValidationError(w http.ResponseWriter, err error) {
	body := ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()}
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		body = ErrorResponse{Code: "VALIDATION_ERROR", Message: ValidationMessage, Fields: valErr.Fields()}
	}
	WriteJSON(w, http.StatusBadRequest, Response{Error: &body})
}

// ParseID parses a positive CRS record id. On failure it writes a 400 with
// code INVALID_PARAMETER and returns false.
func ParseID(w http.ResponseWriter, param string) (int64, bool) {
	id, err := strconv.ParseInt(param, 10, 64)
	if err == nil && id > 0 {
		return id, true
	}
	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_PARAMETER", Message: "invalid id: " + param},
	})
	return 0, false
}
