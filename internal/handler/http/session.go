package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/domain"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/session"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/httputil"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/validator"
)

// SessionHandler serves the session endpoints.
type SessionHandler struct {
	sm     *session.Manager
	logger *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(sm *session.Manager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sm: sm, logger: logger}
}

// LoginResponse is the body of POST /session/login.
type LoginResponse struct {
	Success  bool         `json:"success"`
	Redirect string       `json:"redirect,omitempty"`
	User     *domain.User `json:"user,omitempty"`
}

// Get handles GET /session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.sm.Snapshot()})
}

// Login handles POST /session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}
	if err := validator.Validate(creds); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	ctx, rd := withRedirect(r.Context())
	if !h.sm.Login(ctx, creds) {
		// The failure reason went out as a notice.
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{Data: LoginResponse{Success: false}})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: LoginResponse{
		Success:  true,
		Redirect: rd.get(),
		User:     h.sm.CurrentUser(),
	}})
}

// Logout handles POST /session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, rd := withRedirect(r.Context())
	h.sm.Logout(ctx)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"redirect": rd.get()}})
}

// Refresh handles POST /session/refresh
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, rd := withRedirect(r.Context())
	if _, err := h.sm.Refresh(ctx); err != nil {
		if errors.Is(err, session.ErrSessionExpired) || errors.Is(err, session.ErrNoRefreshToken) {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{Data: map[string]any{
				"refreshed": false,
				"redirect":  rd.get(),
			}})
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"refreshed": true}})
}
