package repository

import (
	"context"

	apperrors "github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/errors"
)

// Keys under which the session is persisted.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// SessionKeys lists every persisted session entry.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// ErrNotFound is returned by Get when a key has no value. Backends wrap it in
// an AppError, so match with errors.Is.
var ErrNotFound = apperrors.ErrNotFound

// CredentialStore persists the session's string entries. Only the session
// manager writes to it.
type CredentialStore interface {
	// Get returns the value stored under key, or an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Ping reports whether the backend is usable.
	Ping(ctx context.Context) error
}
