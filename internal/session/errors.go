package session

import (
	"errors"
	"net/http"

	apperrors "github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/errors"
)

var (
	// ErrNoRefreshToken means there is no refresh token to spend.
	ErrNoRefreshToken = errors.New("no refresh token")

	// ErrSessionExpired means a refresh failed and the session was ended.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidCredentials means the API rejected the username or password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrClosed is returned once the manager has been closed.
	ErrClosed = errors.New("session manager closed")
)

// Notice texts.
const (
	msgInvalidCredentials = "Invalid username or password"
	msgServerError        = "Server error. Please try again later."
	msgLoginFailed        = "Login failed. Please try again."
	msgSessionExpired     = "Your session has expired. Please log in again."
	msgRequestFailed      = "An error occurred. Please try again."
)

// LoginFailureMessage picks the notice shown for a failed login. A 401 wins,
// then any server detail, then a server-error text for 5xx, then a generic
// fallback. Errors without an HTTP status (network failures) get the
// fallback.
func LoginFailureMessage(err error) string {
	if errors.Is(err, ErrInvalidCredentials) {
		return msgInvalidCredentials
	}
	status := apperrors.StatusOf(err)
	if status == http.StatusUnauthorized {
		return msgInvalidCredentials
	}
	var appErr *apperrors.AppError
	if status != 0 && errors.As(err, &appErr) && appErr.Detail != "" {
		return appErr.Detail
	}
	if status >= http.StatusInternalServerError {
		return msgServerError
	}
	return msgLoginFailed
}

// classifyLogin maps an authentication failure onto the session sentinels.
func classifyLogin(err error) error {
	if apperrors.StatusOf(err) == http.StatusUnauthorized {
		return errors.Join(ErrInvalidCredentials, err)
	}
	return err
}
