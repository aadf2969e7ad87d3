package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/domain"
	apperrors "github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/errors"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/pagination"
)

// ErrUnsupportedRole is returned for roles that have no case dashboard.
var ErrUnsupportedRole = fmt.Errorf("%w: role has no case dashboard", apperrors.ErrForbidden)

// Filter names for the summary cards.
const (
	FilterTotal     = "total"
	FilterNew       = "new"
	FilterRecovered = "recovered"
	FilterDeceased  = "deceased"
)

// SortColumns lists the sortable row fields.
var SortColumns = []string{"name", "age", "gender", "street", "condition", "status", "health_center", "created_at"}

// Marker colors by patient status.
const (
	ColorPrimary = "primary"
	ColorSuccess = "success"
	ColorError   = "error"
)

type ageGroup struct {
	name     string
	min, max int
}

var ageGroups = []ageGroup{
	{"0-5", 0, 5},
	{"6-15", 6, 15},
	{"16-25", 16, 25},
	{"26-35", 26, 35},
	{"36-45", 36, 45},
	{"46-55", 46, 55},
	{"56-65", 56, 65},
	{"66+", 66, 120},
}

// CaseSource is the part of the API client the dashboards read from.
type CaseSource interface {
	ListCases(ctx context.Context) ([]domain.CaseReport, error)
	ListDoctorPatients(ctx context.Context) ([]domain.Patient, error)
}

// PatientQuery selects, orders and pages dashboard rows.
type PatientQuery struct {
	Filter string
	SortBy string
	Desc   bool
	Page   pagination.Params
}

// PatientList is one page of a summary card's rows.
type PatientList struct {
	Title  string `json:"title"`
	Filter string `json:"filter"`
	SortBy string `json:"sort_by"`
	Order  string `json:"order"`
	pagination.Result[domain.PatientRow]
}

// DashboardService builds the role dashboards.
type DashboardService struct {
	source CaseSource
	logger *slog.Logger
	now    func() time.Time
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(source CaseSource, logger *slog.Logger) *DashboardService {
	return &DashboardService{source: source, logger: logger, now: time.Now}
}

// Summary computes the cards, charts and map for user's role.
func (s *DashboardService) Summary(ctx context.Context, user *domain.User) (*domain.Summary, error) {
	rows, err := s.rows(ctx, user)
	if err != nil {
		return nil, err
	}
	today := s.today()

	summary := &domain.Summary{
		Role:    user.Role,
		Title:   dashboardTitle(user.Role),
		Counts:  countRows(rows, today),
		Monthly: monthlyBuckets(rows),
		Ages:    ageBuckets(rows),
		Genders: genderBuckets(rows),
		Points:  mapPoints(rows),
		MapView: domain.DefaultMapView,
	}

	s.logger.DebugContext(ctx, "dashboard summary built",
		slog.String("role", user.Role.String()),
		slog.Int("rows", len(rows)),
	)
	return summary, nil
}

// Patients lists the rows behind one summary card.
func (s *DashboardService) Patients(ctx context.Context, user *domain.User, q PatientQuery) (*PatientList, error) {
	if user == nil {
		return nil, apperrors.Unauthorized("no signed-in user")
	}
	if q.Filter == "" {
		q.Filter = FilterTotal
	}
	if !slices.Contains([]string{FilterTotal, FilterNew, FilterRecovered, FilterDeceased}, q.Filter) {
		return nil, apperrors.InvalidInput("unknown filter: " + q.Filter)
	}
	if q.SortBy == "" {
		q.SortBy, q.Desc = defaultSort(user.Role)
	}
	if !slices.Contains(SortColumns, q.SortBy) {
		return nil, apperrors.InvalidInput("unknown sort column: " + q.SortBy)
	}
	if q.Page.PerPage == 0 {
		q.Page = pagination.DefaultParams()
	}

	rows, err := s.rows(ctx, user)
	if err != nil {
		return nil, err
	}

	today := s.today()
	rows = slices.DeleteFunc(rows, func(r domain.PatientRow) bool {
		return !matchesFilter(r, q.Filter, today)
	})
	SortRows(rows, q.SortBy, q.Desc)

	order := "asc"
	if q.Desc {
		order = "desc"
	}
	return &PatientList{
		Title:  FilterTitle(user.Role, q.Filter),
		Filter: q.Filter,
		SortBy: q.SortBy,
		Order:  order,
		Result: pagination.Slice(rows, q.Page),
	}, nil
}

func (s *DashboardService) rows(ctx context.Context, user *domain.User) ([]domain.PatientRow, error) {
	if user == nil {
		return nil, apperrors.Unauthorized("no signed-in user")
	}
	switch user.Role {
	case domain.RoleDoctor:
		patients, err := s.source.ListDoctorPatients(ctx)
		if err != nil {
			return nil, fmt.Errorf("load doctor patients: %w", err)
		}
		rows := make([]domain.PatientRow, 0, len(patients))
		for _, p := range patients {
			rows = append(rows, domain.RowFromPatient(p))
		}
		return rows, nil
	case domain.RoleSheha, domain.RoleHealthSupervisor:
		cases, err := s.source.ListCases(ctx)
		if err != nil {
			return nil, fmt.Errorf("load cases: %w", err)
		}
		rows := make([]domain.PatientRow, 0, len(cases))
		for _, c := range cases {
			rows = append(rows, domain.RowFromCase(c))
		}
		return rows, nil
	default:
		return nil, ErrUnsupportedRole
	}
}

func (s *DashboardService) today() string {
	return s.now().UTC().Format(time.DateOnly)
}

func dashboardTitle(role domain.Role) string {
	switch role {
	case domain.RoleDoctor:
		return "Doctor Dashboard"
	case domain.RoleSheha:
		return "Sheha Dashboard"
	case domain.RoleHealthSupervisor:
		return "Health Supervisor Dashboard"
	default:
		return "Dashboard"
	}
}

// FilterTitle names the modal for a card. Doctors see patients; the
// case-based dashboards see cases.
func FilterTitle(role domain.Role, filter string) string {
	noun := "Cases"
	if role == domain.RoleDoctor {
		noun = "Patients"
	}
	switch filter {
	case FilterNew:
		return "New Cases Today"
	case FilterRecovered:
		return "Recovered " + noun
	case FilterDeceased:
		return "Deceased " + noun
	default:
		return "All " + noun
	}
}

func defaultSort(role domain.Role) (column string, desc bool) {
	if role == domain.RoleDoctor {
		return "name", false
	}
	return "created_at", true
}

func matchesFilter(r domain.PatientRow, filter, today string) bool {
	switch filter {
	case FilterNew:
		return !r.CreatedAt.IsZero() && r.CreatedAt.UTCDate() == today
	case FilterRecovered:
		return r.Status == domain.StatusRecovered
	case FilterDeceased:
		return r.Status == domain.StatusDead
	default:
		return true
	}
}

func countRows(rows []domain.PatientRow, today string) domain.Counts {
	c := domain.Counts{Total: len(rows)}
	for _, r := range rows {
		if matchesFilter(r, FilterNew, today) {
			c.NewToday++
		}
		switch r.Status {
		case domain.StatusRecovered:
			c.Recovered++
		case domain.StatusDead:
			c.Deceased++
		}
	}
	return c
}

// monthlyBuckets counts rows per calendar month name, Jan first. Rows from
// different years share a bucket.
func monthlyBuckets(rows []domain.PatientRow) []domain.Bucket {
	var counts [12]int
	for _, r := range rows {
		if r.CreatedAt.IsZero() {
			continue
		}
		counts[r.CreatedAt.UTC().Month()-1]++
	}
	out := []domain.Bucket{}
	for i, n := range counts {
		if n > 0 {
			out = append(out, domain.Bucket{Name: time.Month(i + 1).String()[:3], Value: n})
		}
	}
	return out
}

func ageBuckets(rows []domain.PatientRow) []domain.Bucket {
	out := []domain.Bucket{}
	for _, g := range ageGroups {
		n := 0
		for _, r := range rows {
			if r.Age >= g.min && r.Age <= g.max {
				n++
			}
		}
		if n > 0 {
			out = append(out, domain.Bucket{Name: g.name, Value: n})
		}
	}
	return out
}

func genderBuckets(rows []domain.PatientRow) []domain.Bucket {
	out := []domain.Bucket{}
	for _, g := range []string{domain.GenderMale, domain.GenderFemale} {
		n := 0
		for _, r := range rows {
			if strings.EqualFold(r.Gender, g) {
				n++
			}
		}
		if n > 0 {
			out = append(out, domain.Bucket{Name: g, Value: n})
		}
	}
	return out
}

func mapPoints(rows []domain.PatientRow) []domain.MapPoint {
	out := []domain.MapPoint{}
	for _, r := range rows {
		if r.StreetLocation == nil {
			continue
		}
		out = append(out, domain.MapPoint{
			ID:           r.ID,
			Name:         r.Name,
			Age:          r.Age,
			Status:       r.Status,
			Condition:    r.Condition,
			Street:       r.Street,
			HealthCenter: r.HealthCenter,
			Latitude:     r.StreetLocation.Latitude,
			Longitude:    r.StreetLocation.Longitude,
			Color:        markerColor(r.Status),
		})
	}
	return out
}

func markerColor(status string) string {
	switch status {
	case domain.StatusRecovered:
		return ColorSuccess
	case domain.StatusDead:
		return ColorError
	default:
		return ColorPrimary
	}
}

// SortRows orders rows in place by column. Ties keep their input order.
func SortRows(rows []domain.PatientRow, column string, desc bool) {
	compare := rowComparator(column)
	slices.SortStableFunc(rows, func(a, b domain.PatientRow) int {
		if desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
}

func rowComparator(column string) func(a, b domain.PatientRow) int {
	switch column {
	case "age":
		return func(a, b domain.PatientRow) int { return cmp.Compare(a.Age, b.Age) }
	case "gender":
		return func(a, b domain.PatientRow) int { return cmp.Compare(a.Gender, b.Gender) }
	case "street":
		return func(a, b domain.PatientRow) int { return cmp.Compare(a.Street, b.Street) }
	case "condition":
		return func(a, b domain.PatientRow) int { return cmp.Compare(a.Condition, b.Condition) }
	case "status":
		return func(a, b domain.PatientRow) int { return cmp.Compare(a.Status, b.Status) }
	case "health_center":
		return func(a, b domain.PatientRow) int { return cmp.Compare(a.HealthCenter, b.HealthCenter) }
	case "created_at":
		return func(a, b domain.PatientRow) int { return a.CreatedAt.Compare(b.CreatedAt.Time) }
	default:
		return func(a, b domain.PatientRow) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	}
}
