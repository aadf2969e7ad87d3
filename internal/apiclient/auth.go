package apiclient

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/domain"
)

// DefaultRefreshPath is the token refresh endpoint. Newer API builds also
// serve it as "token/refresh/".
const DefaultRefreshPath = "refresh/"

// AuthAPI calls the token endpoints. It must be built on a client that does
// not go through the session transport.
type AuthAPI struct {
	caller
	refreshPath string
}

// NewAuthAPI creates an AuthAPI. An empty refreshPath uses DefaultRefreshPath.
func NewAuthAPI(doer HTTPDoer, baseURL, refreshPath string, logger *slog.Logger) (*AuthAPI, error) {
	c, err := newCaller(doer, baseURL, logger)
	if err != nil {
		return nil, err
	}
	if refreshPath == "" {
		refreshPath = DefaultRefreshPath
	}
	return &AuthAPI{caller: c, refreshPath: refreshPath}, nil
}

// Login posts the credentials to login/.
func (a *AuthAPI) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error) {
	var res domain.LoginResult
	if err := a.call(ctx, http.MethodPost, "login/", creds, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Refresh exchanges a refresh token for a new access token.
func (a *AuthAPI) Refresh(ctx context.Context, refreshToken string) (string, error) {
	in := struct {
		Refresh string `json:"refresh"`
	}{Refresh: refreshToken}
	var out struct {
		Access string `json:"access"`
	}
	if err := a.call(ctx, http.MethodPost, a.refreshPath, in, &out); err != nil {
		return "", err
	}
	return out.Access, nil
}
