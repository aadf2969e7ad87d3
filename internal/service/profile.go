package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/domain"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/notify"
	apperrors "github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/errors"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/httputil"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/validator"
)

// Profile notices.
const (
	msgProfileUpdated     = "Profile updated successfully!"
	msgProfileFetchFailed = "Failed to fetch profile data"
	msgProfileSaveFailed  = "Failed to update profile"
)

// UserAPI is the part of the API client behind the profile pages.
type UserAPI interface {
	GetUser(ctx context.Context, id domain.ID) (*domain.User, error)
	UpdateUser(ctx context.Context, id domain.ID, p domain.Profile) (*domain.User, error)
}

// ProfileService reads and edits the signed-in user's profile.
type ProfileService struct {
	api      UserAPI
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(api UserAPI, notifier notify.Notifier, logger *slog.Logger) *ProfileService {
	return &ProfileService{api: api, notifier: notifier, logger: logger}
}

// Get fetches the user record.
func (s *ProfileService) Get(ctx context.Context, id domain.ID) (*domain.User, error) {
	u, err := s.api.GetUser(ctx, id)
	if err != nil {
		s.failed(ctx, err, msgProfileFetchFailed)
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return u, nil
}

// Update validates p and saves it. Field problems come back as a
// *validator.ValidationError without calling the API.
func (s *ProfileService) Update(ctx context.Context, id domain.ID, p domain.Profile) (*domain.User, error) {
	if err := validator.Validate(p); err != nil {
		s.notifier.Notify(ctx, notify.New(notify.LevelError, httputil.ValidationMessage))
		return nil, err
	}

	u, err := s.api.UpdateUser(ctx, id, p)
	if err != nil {
		s.failed(ctx, err, msgProfileSaveFailed)
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.logger.InfoContext(ctx, "profile updated", slog.String("user_id", id.String()))
	s.notifier.Notify(ctx, notify.New(notify.LevelSuccess, msgProfileUpdated))
	return u, nil
}

// failed raises fallback for errors that never reached the API. Error
// responses were already announced by the session transport.
func (s *ProfileService) failed(ctx context.Context, err error, fallback string) {
	s.logger.WarnContext(ctx, fallback, slog.String("error", err.Error()))
	if !apperrors.FromUpstream(err) {
		s.notifier.Notify(ctx, notify.New(notify.LevelError, fallback))
	}
}
