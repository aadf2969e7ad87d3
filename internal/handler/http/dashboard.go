package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/service"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/session"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/httputil"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/pagination"
)

// DashboardHandler serves the role dashboards.
type DashboardHandler struct {
	sm      *session.Manager
	service *service.DashboardService
	logger  *slog.Logger
}

// NewDashboardHandler creates a new dashboard HTTP handler.
func NewDashboardHandler(sm *session.Manager, svc *service.DashboardService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{sm: sm, service: svc, logger: logger}
}

// Summary handles GET /api/dashboard
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), h.sm.CurrentUser())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: summary})
}

// Patients handles GET /api/dashboard/patients?filter=&sort_by=&order=&page=&per_page=
func (h *DashboardHandler) Patients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.service.Patients(r.Context(), h.sm.CurrentUser(), service.PatientQuery{
		Filter: q.Get("filter"),
		SortBy: q.Get("sort_by"),
		Desc:   strings.EqualFold(q.Get("order"), "desc"),
		Page:   pagination.FromRequest(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}
