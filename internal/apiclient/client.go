package apiclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/domain"
	apperrors "github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/errors"
)

// Client calls the data endpoints. Its doer sends through the session
// transport, which supplies the bearer token.
type Client struct {
	caller
}

// NewClient creates a Client rooted at baseURL.
func NewClient(doer HTTPDoer, baseURL string, logger *slog.Logger) (*Client, error) {
	c, err := newCaller(doer, baseURL, logger)
	if err != nil {
		return nil, err
	}
	return &Client{caller: c}, nil
}

// GetUser fetches users/{id}/.
func (c *Client) GetUser(ctx context.Context, id domain.ID) (*domain.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	var u domain.User
	if err := c.call(ctx, http.MethodGet, userPath(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser patches the editable profile fields of users/{id}/.
func (c *Client) UpdateUser(ctx context.Context, id domain.ID, p domain.Profile) (*domain.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	var u domain.User
	if err := c.call(ctx, http.MethodPatch, userPath(id), p, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListCases fetches cases/.
func (c *Client) ListCases(ctx context.Context) ([]domain.CaseReport, error) {
	var cases list[domain.CaseReport]
	if err := c.call(ctx, http.MethodGet, "cases/", nil, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// GetCase fetches cases/{id}/.
func (c *Client) GetCase(ctx context.Context, id int64) (*domain.CaseReport, error) {
	var cr domain.CaseReport
	if err := c.call(ctx, http.MethodGet, casePath(id), nil, &cr); err != nil {
		return nil, err
	}
	return &cr, nil
}

// DeleteCase deletes cases/{id}/.
func (c *Client) DeleteCase(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, casePath(id), nil, nil)
}

// ListDoctorPatients fetches doctor/patients/.
func (c *Client) ListDoctorPatients(ctx context.Context) ([]domain.Patient, error) {
	var patients list[domain.Patient]
	if err := c.call(ctx, http.MethodGet, "doctor/patients/", nil, &patients); err != nil {
		return nil, err
	}
	return patients, nil
}

// GetPatient fetches {prefix}patients/{id}/ for role's prefix.
func (c *Client) GetPatient(ctx context.Context, role domain.Role, id int64) (*domain.Patient, error) {
	path, err := patientPath(role, id)
	if err != nil {
		return nil, err
	}
	var p domain.Patient
	if err := c.call(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePatient replaces {prefix}patients/{id}/.
func (c *Client) UpdatePatient(ctx context.Context, role domain.Role, id int64, p domain.Patient) (*domain.Patient, error) {
	path, err := patientPath(role, id)
	if err != nil {
		return nil, err
	}
	var out domain.Patient
	if err := c.call(ctx, http.MethodPut, path, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func userPath(id domain.ID) string {
	return "users/" + url.PathEscape(id.String()) + "/"
}

func casePath(id int64) string {
	return "cases/" + strconv.FormatInt(id, 10) + "/"
}

func patientPath(role domain.Role, id int64) (string, error) {
	prefix := role.PatientPrefix()
	if prefix == "" {
		return "", apperrors.Forbidden(fmt.Sprintf("role %q has no patient records", role))
	}
	return prefix + "patients/" + strconv.FormatInt(id, 10) + "/", nil
}
