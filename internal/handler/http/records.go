package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/domain"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/service"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/session"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/httputil"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/pagination"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/validator"
)

// CaseHandler serves case reports.
type CaseHandler struct {
	service *service.CaseService
	logger  *slog.Logger
}

// NewCaseHandler creates a new case HTTP handler.
func NewCaseHandler(svc *service.CaseService, logger *slog.Logger) *CaseHandler {
	return &CaseHandler{service: svc, logger: logger}
}

// List handles GET /api/cases?page=&per_page=
func (h *CaseHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

// Get handles GET /api/cases/{id}
func (h *CaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: c})
}

// Delete handles DELETE /api/cases/{id}
func (h *CaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PatientHandler serves patients under the signed-in role's API prefix.
type PatientHandler struct {
	sm      *session.Manager
	service *service.PatientService
	logger  *slog.Logger
}

// NewPatientHandler creates a new patient HTTP handler.
func NewPatientHandler(sm *session.Manager, svc *service.PatientService, logger *slog.Logger) *PatientHandler {
	return &PatientHandler{sm: sm, service: svc, logger: logger}
}

// Get handles GET /api/patients/{id}
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), h.sm.UserRole(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: p})
}

// Update handles PUT /api/patients/{id}
func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var p domain.Patient
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	out, err := h.service.Update(r.Context(), h.sm.UserRole(), id, p)
	if err != nil {
		var valErr *validator.ValidationError
		if errors.As(err, &valErr) {
			httputil.WriteValidationError(w, err)
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}
