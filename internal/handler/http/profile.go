package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/domain"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/service"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/session"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/httputil"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/validator"
)

// ProfileHandler serves the signed-in user's profile.
type ProfileHandler struct {
	sm      *session.Manager
	service *service.ProfileService
	logger  *slog.Logger
}

// NewProfileHandler creates a new profile HTTP handler.
func NewProfileHandler(sm *session.Manager, svc *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{sm: sm, service: svc, logger: logger}
}

// Get handles GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), h.sm.UserID())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}

// Update handles PATCH /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var p domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	user, err := h.service.Update(r.Context(), h.sm.UserID(), p)
	if err != nil {
		var valErr *validator.ValidationError
		if errors.As(err, &valErr) {
			httputil.WriteValidationError(w, err)
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}
