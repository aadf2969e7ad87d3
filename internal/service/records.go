package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/domain"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/pagination"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/validator"
)

// CaseAPI is the part of the API client behind the case pages.
type CaseAPI interface {
	ListCases(ctx context.Context) ([]domain.CaseReport, error)
	GetCase(ctx context.Context, id int64) (*domain.CaseReport, error)
	DeleteCase(ctx context.Context, id int64) error
}

// CaseService lists, shows and deletes case reports.
type CaseService struct {
	api    CaseAPI
	logger *slog.Logger
}

// NewCaseService creates a CaseService.
func NewCaseService(api CaseAPI, logger *slog.Logger) *CaseService {
	return &CaseService{api: api, logger: logger}
}

// List returns one page of cases, newest first.
func (s *CaseService) List(ctx context.Context, params pagination.Params) (pagination.Result[domain.CaseReport], error) {
	cases, err := s.api.ListCases(ctx)
	if err != nil {
		return pagination.Result[domain.CaseReport]{}, fmt.Errorf("list cases: %w", err)
	}
	SortCasesNewestFirst(cases)
	return pagination.Slice(cases, params), nil
}

// Get fetches one case.
func (s *CaseService) Get(ctx context.Context, id int64) (*domain.CaseReport, error) {
	c, err := s.api.GetCase(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get case %d: %w", id, err)
	}
	return c, nil
}

// Delete removes a case.
func (s *CaseService) Delete(ctx context.Context, id int64) error {
	if err := s.api.DeleteCase(ctx, id); err != nil {
		return fmt.Errorf("delete case %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "case deleted", slog.Int64("case_id", id))
	return nil
}

// SortCasesNewestFirst orders cases by date, latest first.
func SortCasesNewestFirst(cases []domain.CaseReport) {
	slices.SortStableFunc(cases, func(a, b domain.CaseReport) int {
		return b.Date.Compare(a.Date.Time)
	})
}

// PatientAPI is the part of the API client behind the patient pages.
type PatientAPI interface {
	GetPatient(ctx context.Context, role domain.Role, id int64) (*domain.Patient, error)
	UpdatePatient(ctx context.Context, role domain.Role, id int64, p domain.Patient) (*domain.Patient, error)
}

// PatientService reads and edits patients under the caller's role prefix.
type PatientService struct {
	api    PatientAPI
	logger *slog.Logger
}

// NewPatientService creates a PatientService.
func NewPatientService(api PatientAPI, logger *slog.Logger) *PatientService {
	return &PatientService{api: api, logger: logger}
}

// Get fetches a patient.
func (s *PatientService) Get(ctx context.Context, role domain.Role, id int64) (*domain.Patient, error) {
	p, err := s.api.GetPatient(ctx, role, id)
	if err != nil {
		return nil, fmt.Errorf("get patient %d: %w", id, err)
	}
	return p, nil
}

// Update validates and saves a patient.
func (s *PatientService) Update(ctx context.Context, role domain.Role, id int64, p domain.Patient) (*domain.Patient, error) {
	if err := validator.Validate(p); err != nil {
		return nil, err
	}
	p.ID = id
	out, err := s.api.UpdatePatient(ctx, role, id, p)
	if err != nil {
		return nil, fmt.Errorf("update patient %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "patient updated",
		slog.Int64("patient_id", id),
		slog.String("role", role.String()),
	)
	return out, nil
}
