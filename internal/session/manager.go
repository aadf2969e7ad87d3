// Package session owns the dashboard's single authenticated session: the
// access/refresh token pair, the signed-in user, and the HTTP transport that
// attaches and renews credentials on every call to the CRS API.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/domain"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/notify"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/repository"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/logger"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/tracing"
)

const tracerName = "github.com/hassan-kurwa-buruhani/crs-dashboard/internal/session"

// Authenticator talks to the API's token endpoints. It must not send through
// the session transport.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// Navigator moves the UI to a route after login or logout.
type Navigator interface {
	Navigate(ctx context.Context, route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, route string)

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, route string) { f(ctx, route) }

// Config wires a Manager to its collaborators. Store and Auth are required.
type Config struct {
	Store     repository.CredentialStore
	Auth      Authenticator
	Notifier  notify.Notifier
	Navigator Navigator
	Logger    *slog.Logger
}

// Snapshot is the read-only view of the session handed to the UI.
type Snapshot struct {
	User            *domain.User `json:"user"`
	Loading         bool         `json:"loading"`
	IsAuthenticated bool         `json:"is_authenticated"`
	UserRole        domain.Role  `json:"user_role"`
	UserID          domain.ID    `json:"user_id"`
}

// Manager holds the session. A user is present exactly when an access token
// is; both change together under mu.
type Manager struct {
	store     repository.CredentialStore
	auth      Authenticator
	notifier  notify.Notifier
	navigator Navigator
	logger    *slog.Logger
	tracer    trace.Tracer

	// persistMu orders store writes the same way as the in-memory changes
	// they mirror. It is always taken before mu.
	persistMu sync.Mutex

	mu      sync.RWMutex
	access  string
	refresh string
	user    *domain.User
	loading bool
	closed  bool
	// epoch changes whenever the session is replaced or ended. A refresh
	// only applies to the epoch it started in.
	epoch uint64

	refreshGroup singleflight.Group
}

// NewManager creates an empty, loading session. Call Restore before serving.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		store:     cfg.Store,
		auth:      cfg.Auth,
		notifier:  cfg.Notifier,
		navigator: cfg.Navigator,
		logger:    cfg.Logger,
		tracer:    tracing.Tracer(tracerName),
		loading:   true,
	}
	if m.notifier == nil {
		m.notifier = notify.Discard
	}
	if m.navigator == nil {
		m.navigator = NavigatorFunc(func(context.Context, string) {})
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Restore re-establishes a persisted session without calling the API. A
// missing or unreadable record leaves the session empty; the returned error
// is for logging only. Loading is always cleared.
func (m *Manager) Restore(ctx context.Context) error {
	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}()

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	access, err := m.readEntry(ctx, repository.KeyAccessToken)
	if err != nil {
		return err
	}
	userData, err := m.readEntry(ctx, repository.KeyUser)
	if err != nil {
		return err
	}
	if access == "" || userData == "" {
		return nil
	}
	refresh, err := m.readEntry(ctx, repository.KeyRefreshToken)
	if err != nil {
		return err
	}

	var user domain.User
	if err := json.Unmarshal([]byte(userData), &user); err != nil {
		m.logger.WarnContext(ctx, "stored user record is unreadable", slog.String("error", err.Error()))
		return fmt.Errorf("decode stored user: %w", err)
	}
	m.backfillID(ctx, &user, access)

	m.mu.Lock()
	m.access, m.refresh, m.user = access, refresh, &user
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "session restored",
		slog.String("user_id", user.ID.String()),
		slog.String("role", user.Role.String()),
	)
	m.notify(ctx, notify.LevelInfo, fmt.Sprintf("Welcome back, %s!", user.DisplayName()))
	return nil
}

// readEntry returns "" for a missing key. Other store errors are logged.
func (m *Manager) readEntry(ctx context.Context, key string) (string, error) {
	v, err := m.store.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to read session store",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

// Login exchanges credentials for a token pair. It reports success and never
// returns an error: every failure becomes an error notice.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials) bool {
	ctx, span := m.tracer.Start(ctx, "session.login",
		trace.WithAttributes(attribute.String("session.username", creds.Username)),
	)
	defer span.End()

	if m.isClosed() {
		span.SetStatus(codes.Error, ErrClosed.Error())
		m.logger.WarnContext(ctx, "login after close")
		m.notify(ctx, notify.LevelError, msgLoginFailed)
		return false
	}

	res, err := m.auth.Login(ctx, creds)
	if err == nil && (res == nil || res.Access == "") {
		err = errors.New("login response has no access token")
	}
	if err != nil {
		err = classifyLogin(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		loginsTotal.WithLabelValues("failure").Inc()
		logger.WithContext(ctx, m.logger).WarnContext(ctx, "login failed",
			slog.String("username", creds.Username),
			slog.String("error", err.Error()),
		)
		m.notify(ctx, notify.LevelError, LoginFailureMessage(err))
		return false
	}

	user := res.User
	m.backfillID(ctx, &user, res.Access)

	m.persistMu.Lock()
	m.mu.Lock()
	m.access, m.refresh, m.user = res.Access, res.Refresh, &user
	m.epoch++
	m.mu.Unlock()
	m.persist(ctx, res.Access, res.Refresh, &user)
	m.persistMu.Unlock()

	span.SetAttributes(
		attribute.String("session.user_id", user.ID.String()),
		attribute.String("session.role", user.Role.String()),
	)
	loginsTotal.WithLabelValues("success").Inc()
	m.logger.InfoContext(ctx, "login succeeded",
		slog.String("user_id", user.ID.String()),
		slog.String("role", user.Role.String()),
	)
	m.notify(ctx, notify.LevelSuccess, fmt.Sprintf("Welcome, %s!", user.DisplayName()))
	m.navigator.Navigate(ctx, user.Role.LandingRoute())
	return true
}

// persist writes the full session. Failures are logged; the in-memory
// session stays usable.
func (m *Manager) persist(ctx context.Context, access, refresh string, user *domain.User) {
	userData, err := json.Marshal(user)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to encode user record", slog.String("error", err.Error()))
		return
	}
	entries := []struct{ key, value string }{
		{repository.KeyAccessToken, access},
		{repository.KeyRefreshToken, refresh},
		{repository.KeyUser, string(userData)},
	}
	for _, e := range entries {
		if err := m.store.Set(ctx, e.key, e.value); err != nil {
			m.logger.ErrorContext(ctx, "failed to persist session",
				slog.String("key", e.key),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Logout ends the session. It is safe to call when already logged out.
func (m *Manager) Logout(ctx context.Context) {
	firstName, _ := m.clear(ctx, func(uint64) bool { return true })
	m.farewell(ctx, firstName)
}

// clear empties the session and its persisted entries when current accepts
// the session's epoch. It returns the departing user's first name.
func (m *Manager) clear(ctx context.Context, current func(epoch uint64) bool) (string, bool) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	if !current(m.epoch) {
		m.mu.Unlock()
		return "", false
	}
	var firstName string
	if m.user != nil {
		firstName = m.user.FirstName
	}
	m.access, m.refresh, m.user = "", "", nil
	m.epoch++
	m.mu.Unlock()

	if err := m.store.Delete(context.WithoutCancel(ctx), repository.SessionKeys...); err != nil {
		m.logger.ErrorContext(ctx, "failed to clear session store", slog.String("error", err.Error()))
	}
	return firstName, true
}

func (m *Manager) farewell(ctx context.Context, firstName string) {
	m.logger.InfoContext(ctx, "logged out")
	if firstName != "" {
		m.notify(ctx, notify.LevelInfo, fmt.Sprintf("Goodbye, %s! You have been logged out.", firstName))
	} else {
		m.notify(ctx, notify.LevelInfo, "Goodbye! You have been logged out.")
	}
	m.navigator.Navigate(ctx, domain.RouteEntry)
}

// Refresh mints a new access token from the refresh token. Concurrent callers
// share one network call. On failure the session is ended and the error
// wraps ErrSessionExpired.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	return m.sharedRefresh(ctx, func() (string, bool) { return "", false })
}

// RefreshAfter is Refresh for a request that failed with staleToken. When the
// session already holds a different token, that token is returned without a
// network call.
func (m *Manager) RefreshAfter(ctx context.Context, staleToken string) (string, error) {
	current := func() (string, bool) {
		token := m.AccessToken()
		return token, token != "" && token != staleToken
	}
	if token, ok := current(); ok {
		return token, nil
	}
	return m.sharedRefresh(ctx, current)
}

// sharedRefresh runs at most one refresh at a time. skip is checked again by
// whichever caller starts a new flight, so a caller that lost the race with a
// just-finished refresh reuses its token.
func (m *Manager) sharedRefresh(ctx context.Context, skip func() (string, bool)) (string, error) {
	if m.isClosed() {
		return "", ErrClosed
	}

	m.mu.RLock()
	epoch := m.epoch
	m.mu.RUnlock()

	// The shared call outlives any one caller; a cancelled caller only stops
	// waiting. Callers from a later session never join an older flight.
	shared := context.WithoutCancel(ctx)
	ch := m.refreshGroup.DoChan(strconv.FormatUint(epoch, 10), func() (any, error) {
		if token, ok := skip(); ok {
			return token, nil
		}
		return m.doRefresh(shared, epoch)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) doRefresh(ctx context.Context, epoch uint64) (string, error) {
	ctx, span := m.tracer.Start(ctx, "session.refresh")
	defer span.End()

	m.mu.RLock()
	refresh, signedIn, replaced := m.refresh, m.user != nil, m.epoch != epoch
	m.mu.RUnlock()

	if replaced {
		span.SetStatus(codes.Error, "session replaced before refresh")
		return "", fmt.Errorf("%w: session replaced before refresh", ErrSessionExpired)
	}

	if refresh == "" {
		if !signedIn {
			span.SetStatus(codes.Error, ErrNoRefreshToken.Error())
			return "", ErrNoRefreshToken
		}
		return "", m.expire(ctx, span, epoch, ErrNoRefreshToken)
	}

	access, err := m.auth.Refresh(ctx, refresh)
	if err == nil && access == "" {
		err = errors.New("refresh response has no access token")
	}
	if err != nil {
		refreshTotal.WithLabelValues("failure").Inc()
		return "", m.expire(ctx, span, epoch, err)
	}
	refreshTotal.WithLabelValues("success").Inc()

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	if m.epoch != epoch || m.user == nil {
		m.mu.Unlock()
		span.SetStatus(codes.Error, "session replaced during refresh")
		m.logger.DebugContext(ctx, "discarding refreshed token for a replaced session")
		return "", fmt.Errorf("%w: session replaced during refresh", ErrSessionExpired)
	}
	m.access = access
	m.mu.Unlock()

	if err := m.store.Set(ctx, repository.KeyAccessToken, access); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist refreshed token", slog.String("error", err.Error()))
	}
	m.logger.DebugContext(ctx, "access token refreshed")
	return access, nil
}

// expire ends the session after a failed refresh. When the session was
// replaced or ended since the refresh began it is left alone and no notice
// is raised.
func (m *Manager) expire(ctx context.Context, span trace.Span, epoch uint64, cause error) error {
	err := fmt.Errorf("%w: %w", ErrSessionExpired, cause)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	firstName, ended := m.clear(ctx, func(current uint64) bool { return current == epoch })
	if !ended {
		return err
	}

	m.logger.WarnContext(ctx, "session expired", slog.String("error", cause.Error()))
	m.notify(ctx, notify.LevelWarning, msgSessionExpired)
	m.farewell(ctx, firstName)
	return err
}

// backfillID fills a missing user id from the access token's claims.
func (m *Manager) backfillID(ctx context.Context, user *domain.User, access string) {
	if user.ID != "" {
		return
	}
	id, err := userIDFromToken(access)
	if err != nil {
		m.logger.DebugContext(ctx, "user id backfill skipped", slog.String("error", err.Error()))
		return
	}
	user.ID = id
}

func (m *Manager) notify(ctx context.Context, level notify.Level, message string) {
	m.notifier.Notify(ctx, notify.New(level, message))
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{Loading: m.loading, IsAuthenticated: m.user != nil}
	if m.user != nil {
		u := *m.user
		s.User = &u
		s.UserRole = u.Role
		s.UserID = u.ID
	}
	return s
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (m *Manager) CurrentUser() *domain.User {
	return m.Snapshot().User
}

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

// UserRole returns the signed-in user's role, or "".
func (m *Manager) UserRole() domain.Role {
	return m.Snapshot().UserRole
}

// UserID returns the signed-in user's id, or "".
func (m *Manager) UserID() domain.ID {
	return m.Snapshot().UserID
}

// Loading reports whether Restore has not finished yet.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// AccessToken returns the current access token, read at call time.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.access
}

// Close disposes the manager. Transports it created refuse further requests.
// The persisted session is kept for the next Restore.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
