package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/errors"
)

// maxErrorBody caps how much of an error body is buffered.
const maxErrorBody = 1 << 20

// ErrorBody holds the free-text fields the CRS API may return on failure.
// Either field may be empty; Raw keeps the body for logging.
type ErrorBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Raw     string `json:"-"`
}

// PeekErrorBody reads the response body, decodes any message/detail fields,
// and puts an identical body back on resp so later readers still see it.
func PeekErrorBody(resp *http.Response) ErrorBody {
	if resp == nil || resp.Body == nil {
		return ErrorBody{}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return ErrorBody{}
	}

	body := ErrorBody{Raw: string(data)}
	var fields struct {
		Message any `json:"message"`
		Detail  any `json:"detail"`
	}
	if json.Unmarshal(data, &fields) == nil {
		body.Message = asText(fields.Message)
		body.Detail = asText(fields.Detail)
	}
	return body
}

// asText accepts either a string or a list of strings, the two shapes the
// API uses for free-text error fields.
func asText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError carrying the upstream status, message and detail.
//
// The caller should only invoke this when resp.StatusCode indicates an error.
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	body := PeekErrorBody(resp)
	defer func() { _ = resp.Body.Close() }()

	message := body.Message
	if message == "" {
		message = body.Detail
	}
	if message == "" {
		message = fmt.Sprintf("%s returned status %d", serviceName, resp.StatusCode)
	}

	appErr := apperrors.Upstream(resp.StatusCode, message, body.Detail)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		appErr.Code, appErr.Err = "NOT_FOUND", apperrors.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		appErr.Code, appErr.Err = "INVALID_INPUT", apperrors.ErrInvalidInput
	case resp.StatusCode == http.StatusConflict:
		appErr.Code, appErr.Err = "CONFLICT", apperrors.ErrConflict
	case resp.StatusCode == http.StatusUnauthorized:
		appErr.Code, appErr.Err = "UNAUTHORIZED", apperrors.ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		appErr.Code, appErr.Err = "FORBIDDEN", apperrors.ErrForbidden
	case resp.StatusCode == http.StatusServiceUnavailable:
		appErr.Code, appErr.Err = "SERVICE_UNAVAILABLE", apperrors.ErrServiceUnavail
	}
	return appErr
}
