package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/apiclient"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/notify"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/repository/memory"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/service"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/session"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/health"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/httpclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// Fake CRS API
// ============================================================================

// fakeCRS accepts one access token at a time. Rotating it makes the next
// data call fail with 401 until the session refreshes.
type fakeCRS struct {
	*httptest.Server

	mu       sync.Mutex
	valid    string
	refresh  int
	deleted  []string
	proxied  []string
	lastAuth string
}

func newFakeCRS(t *testing.T) *fakeCRS {
	t.Helper()
	f := &fakeCRS{valid: "a1"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login/", f.login)
	mux.HandleFunc("POST /api/refresh/", f.refreshToken)
	mux.HandleFunc("/api/", f.data)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeCRS) setValid(token string) {
	f.mu.Lock()
	f.valid = token
	f.mu.Unlock()
}

func (f *fakeCRS) login(w http.ResponseWriter, r *http.Request) {
	var creds struct{ Username, Password string }
	_ = json.NewDecoder(r.Body).Decode(&creds)
	w.Header().Set("Content-Type", "application/json")
	if creds.Username != "asha" || creds.Password != "pw" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
		return
	}
	_, _ = w.Write([]byte(`{"access":"a1","refresh":"r1","id":7,"first_name":"Asha","last_name":"Juma","role":"Doctor"}`))
}

func (f *fakeCRS) refreshToken(w http.ResponseWriter, r *http.Request) {
	var body struct{ Refresh string }
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh++
	if body.Refresh != "r1" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Token is invalid or expired"}`))
		return
	}
	_, _ = w.Write([]byte(`{"access":"` + f.valid + `"}`))
}

func (f *fakeCRS) data(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.lastAuth = r.Header.Get("Authorization")
	ok := f.lastAuth == "Bearer "+f.valid
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Given token not valid for any token type"}`))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/")
	switch {
	case path == "users/7/" && r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`{"id":7,"first_name":"Asha","last_name":"Juma","email":"asha@example.org","role":"Doctor"}`))
	case path == "users/7/" && r.Method == http.MethodPatch:
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	case path == "doctor/patients/":
		today := time.Now().UTC().Format(time.RFC3339)
		_, _ = w.Write([]byte(`[
			{"id":1,"first_name":"Zuhura","last_name":"Ali","age":4,"gender":"Female","status":"Alive","created_at":"` + today + `",
			 "street_location":{"latitude":"-6.16","longitude":"39.19"}},
			{"id":2,"first_name":"Bakari","last_name":"Said","age":30,"gender":"Male","status":"Recovered","created_at":"2024-01-03T09:00:00Z"}
		]`))
	case path == "doctor/patients/4/" && r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`{"id":4,"first_name":"Juma","age":33,"gender":"Male","status":"Alive"}`))
	case path == "doctor/patients/4/" && r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	case path == "cases/":
		_, _ = w.Write([]byte(`{"results":[{"id":9,"date":"2024-03-01","patient":{"id":1}},{"id":10,"date":"2024-03-05","patient":{"id":2}}]}`))
	case path == "cases/9/" && r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`{"id":9,"date":"2024-03-01","patient":{"id":1}}`))
	case path == "cases/9/" && r.Method == http.MethodDelete:
		f.mu.Lock()
		f.deleted = append(f.deleted, path)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	case strings.HasPrefix(path, "reports/"):
		f.mu.Lock()
		f.proxied = append(f.proxied, r.URL.RequestURI())
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"proxied":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not found."}`))
	}
}

// ============================================================================
// Dashboard under test
// ============================================================================

type testApp struct {
	api    *fakeCRS
	sm     *session.Manager
	feed   *notify.Feed
	server *httptest.Server
}

func newTestApp(t *testing.T, opts ...func(*RouterConfig)) *testApp {
	t.Helper()
	api := newFakeCRS(t)
	log := testLogger()

	hc := httpclient.Config{Timeout: 5 * time.Second, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond}
	auth, err := apiclient.NewAuthAPI(httpclient.New(hc), api.URL+"/api/", "", log)
	require.NoError(t, err)

	feed := notify.NewFeed(log, 0)
	store := memory.NewStore()
	sm := session.NewManager(session.Config{
		Store:     store,
		Auth:      auth,
		Notifier:  feed,
		Navigator: Navigator,
		Logger:    log,
	})

	client, err := apiclient.NewClient(httpclient.NewWithTransport(hc, sm.Transport(nil)), api.URL+"/api/", log)
	require.NoError(t, err)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("credential_store", store.Ping)

	cfg := RouterConfig{
		ServiceName:         "crs-dashboard-test",
		Environment:         "development",
		CORSAllowedOrigins:  []string{"*"},
		LoginRateLimitRPS:   100,
		LoginRateLimitBurst: 100,
		MetricsAllowedCIDRs: []string{"127.0.0.0/8", "::1/128"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	router := NewRouter(cfg, Services{
		Session:   sm,
		Feed:      feed,
		Dashboard: service.NewDashboardService(client, log),
		Profiles:  service.NewProfileService(client, feed, log),
		Cases:     service.NewCaseService(client, log),
		Patients:  service.NewPatientService(client, log),
		APIProxy:  NewAPIProxy(client.BaseURL(), sm.Transport(nil), log),
		Health:    healthHandler,
	}, log)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testApp{api: api, sm: sm, feed: feed, server: srv}
}

func (a *testApp) restore(t *testing.T) {
	t.Helper()
	_ = a.sm.Restore(context.Background())
}

func (a *testApp) login(t *testing.T) {
	t.Helper()
	a.restore(t)
	resp := a.do(t, http.MethodPost, "/session/login", `{"username":"asha","password":"pw"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	a.feed.Drain()
}

func (a *testApp) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var rdr io.Reader = http.NoBody
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.server.URL+path, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func messages(notes []notify.Notification) []string {
	var out []string
	for _, n := range notes {
		out = append(out, n.Message)
	}
	return out
}

// ============================================================================
// Health & metrics
// ============================================================================

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	resp := app.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = app.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	app.restore(t)

	resp := app.do(t, http.MethodGet, "/session", "")
	resp.Body.Close()

	resp = app.do(t, http.MethodGet, "/metrics", "")
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "crs_http_requests_total")
}

// ============================================================================
// Session endpoints
// ============================================================================

func TestSession_SnapshotBeforeAndAfterLogin(t *testing.T) {
	app := newTestApp(t)

	snap := decode[envelope[session.Snapshot]](t, app.do(t, http.MethodGet, "/session", ""))
	assert.True(t, snap.Data.Loading)
	assert.False(t, snap.Data.IsAuthenticated)

	app.login(t)

	snap = decode[envelope[session.Snapshot]](t, app.do(t, http.MethodGet, "/session", ""))
	assert.False(t, snap.Data.Loading)
	assert.True(t, snap.Data.IsAuthenticated)
	assert.Equal(t, "Doctor", snap.Data.UserRole.String())
	assert.Equal(t, "7", snap.Data.UserID.String())
}

func TestSession_LoginRedirectsToLandingRoute(t *testing.T) {
	app := newTestApp(t)
	app.restore(t)

	resp := app.do(t, http.MethodPost, "/session/login", `{"username":"asha","password":"pw"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[envelope[LoginResponse]](t, resp)

	assert.True(t, body.Data.Success)
	assert.Equal(t, "/doctor-dashboard", body.Data.Redirect)
	require.NotNil(t, body.Data.User)
	assert.Equal(t, "Asha", body.Data.User.FirstName)
	assert.Equal(t, []string{"Welcome, Asha!"}, messages(app.feed.Drain()))
}

func TestSession_LoginFailure(t *testing.T) {
	app := newTestApp(t)
	app.restore(t)

	resp := app.do(t, http.MethodPost, "/session/login", `{"username":"asha","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[envelope[LoginResponse]](t, resp)
	assert.False(t, body.Data.Success)
	assert.Empty(t, body.Data.Redirect)
	assert.Equal(t, []string{"Invalid username or password"}, messages(app.feed.Drain()))
	assert.False(t, app.sm.IsAuthenticated())
}

func TestSession_LoginValidation(t *testing.T) {
	app := newTestApp(t)

	resp := app.do(t, http.MethodPost, "/session/login", `{"username":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[envelope[any]](t, resp)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Fields, "username")
	assert.Contains(t, body.Error.Fields, "password")

	resp = app.do(t, http.MethodPost, "/session/login", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestSession_Logout(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	for range 2 {
		resp := app.do(t, http.MethodPost, "/session/logout", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[envelope[map[string]string]](t, resp)
		assert.Equal(t, "/", body.Data["redirect"])
	}
	assert.Equal(t, []string{
		"Goodbye, Asha! You have been logged out.",
		"Goodbye! You have been logged out.",
	}, messages(app.feed.Drain()))
	assert.Empty(t, app.sm.AccessToken())
}

func TestSession_Refresh(t *testing.T) {
	app := newTestApp(t)
	app.login(t)
	app.api.setValid("a2")

	resp := app.do(t, http.MethodPost, "/session/refresh", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, "a2", app.sm.AccessToken())
}

func TestSession_RefreshWithoutSession(t *testing.T) {
	app := newTestApp(t)
	app.restore(t)

	resp := app.do(t, http.MethodPost, "/session/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[envelope[map[string]any]](t, resp)
	assert.Equal(t, false, body.Data["refreshed"])
}

func TestSession_LoginRateLimited(t *testing.T) {
	app := newTestApp(t, func(cfg *RouterConfig) {
		cfg.LoginRateLimitRPS = 1
		cfg.LoginRateLimitBurst = 2
	})
	app.restore(t)

	var statuses []int
	for range 3 {
		resp := app.do(t, http.MethodPost, "/session/login", `{"username":"x","password":"y"}`)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, statuses)

	resp := app.do(t, http.MethodGet, "/session", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "only login is limited")
}

// ============================================================================
// Route guard
// ============================================================================

func TestGuard_LoadingAnswers503(t *testing.T) {
	app := newTestApp(t)

	resp := app.do(t, http.MethodGet, "/api/dashboard", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestGuard_AnonymousRedirectsToEntry(t *testing.T) {
	app := newTestApp(t)
	app.restore(t)

	for _, path := range []string{"/api/dashboard", "/api/profile", "/api/cases", "/api/raw/reports/"} {
		resp := app.do(t, http.MethodGet, path, "")
		resp.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/", resp.Header.Get("Location"), path)
	}
}

func TestGuard_NoStoreOnSessionData(t *testing.T) {
	app := newTestApp(t)
	app.restore(t)

	resp := app.do(t, http.MethodGet, "/session", "")
	resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Cache-Control"), "no-store")
}

// ============================================================================
// Data endpoints
// ============================================================================

func TestDashboard_Summary(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	resp := app.do(t, http.MethodGet, "/api/dashboard", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[envelope[map[string]any]](t, resp)

	assert.Equal(t, "Doctor Dashboard", body.Data["title"])
	counts := body.Data["counts"].(map[string]any)
	assert.Equal(t, float64(2), counts["total"])
	assert.Equal(t, float64(1), counts["new_today"])
	assert.Equal(t, float64(1), counts["recovered"])
	assert.Len(t, body.Data["map_points"], 1)
}

func TestDashboard_PatientsQuery(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	resp := app.do(t, http.MethodGet, "/api/dashboard/patients?filter=recovered", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[service.PatientList](t, resp)
	assert.Equal(t, "Recovered Patients", list.Title)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Bakari Said", list.Data[0].Name)

	resp = app.do(t, http.MethodGet, "/api/dashboard/patients?sort_by=age&order=desc", "")
	list = decode[service.PatientList](t, resp)
	assert.Equal(t, "desc", list.Order)
	require.Len(t, list.Data, 2)
	assert.Equal(t, 30, list.Data[0].Age)

	resp = app.do(t, http.MethodGet, "/api/dashboard/patients?filter=bogus", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestDashboard_RefreshesExpiredToken(t *testing.T) {
	app := newTestApp(t)
	app.login(t)
	app.api.setValid("a2")

	resp := app.do(t, http.MethodGet, "/api/dashboard", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a2", app.sm.AccessToken())
	assert.Empty(t, app.feed.Drain())
}

func TestProfile_GetAndUpdate(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	resp := app.do(t, http.MethodGet, "/api/profile", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	user := decode[envelope[map[string]any]](t, resp)
	assert.Equal(t, "asha@example.org", user.Data["email"])

	resp = app.do(t, http.MethodPatch, "/api/profile", `{"first_name":"Asha","last_name":"Juma","email":"asha@zanzibar.org","phone":"+255777"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, []string{"Profile updated successfully!"}, messages(app.feed.Drain()))
}

func TestProfile_UpdateValidation(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	resp := app.do(t, http.MethodPatch, "/api/profile", `{"first_name":"Abcdefghijklmnopqrstuvwxyz","phone":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[envelope[any]](t, resp)
	require.NotNil(t, body.Error)
	assert.Equal(t, "Please fix the errors in the form", body.Error.Message)
	assert.Equal(t, "Must be 20 characters or less", body.Error.Fields["first_name"])
	assert.Equal(t, "Only numbers and + allowed", body.Error.Fields["phone"])
	assert.Equal(t, []string{"Please fix the errors in the form"}, messages(app.feed.Drain()))
}

func TestCases_ListGetDelete(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	resp := app.do(t, http.MethodGet, "/api/cases", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[struct {
		Data       []map[string]any `json:"data"`
		TotalCount int              `json:"total_count"`
	}](t, resp)
	assert.Equal(t, 2, page.TotalCount)
	require.Len(t, page.Data, 2)
	assert.Equal(t, float64(10), page.Data[0]["id"], "newest first")

	resp = app.do(t, http.MethodGet, "/api/cases/9", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = app.do(t, http.MethodDelete, "/api/cases/9", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = app.do(t, http.MethodGet, "/api/cases/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCases_NotFoundRaisesNotice(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	resp := app.do(t, http.MethodGet, "/api/cases/404", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, []string{"Not found."}, messages(app.feed.Drain()))
}

func TestPatients_GetAndUpdate(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	resp := app.do(t, http.MethodGet, "/api/patients/4", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[envelope[map[string]any]](t, resp)
	assert.Equal(t, "Juma", p.Data["first_name"])

	resp = app.do(t, http.MethodPut, "/api/patients/4", `{"first_name":"Juma","age":33,"gender":"Male","status":"Recovered"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	p = decode[envelope[map[string]any]](t, resp)
	assert.Equal(t, "Recovered", p.Data["status"])
	assert.Equal(t, float64(4), p.Data["id"])

	resp = app.do(t, http.MethodPut, "/api/patients/4", `{"age":400}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRawProxy_AttachesSessionToken(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	req, err := http.NewRequest(http.MethodGet, app.server.URL+"/api/raw/reports/weekly/?week=10", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer forged")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"proxied":true}`, string(body))
	app.api.mu.Lock()
	defer app.api.mu.Unlock()
	assert.Equal(t, []string{"/api/reports/weekly/?week=10"}, app.api.proxied)
	assert.Equal(t, "Bearer a1", app.api.lastAuth)
}

// ============================================================================
// Notifications
// ============================================================================

func TestNotifications_ListDrains(t *testing.T) {
	app := newTestApp(t)
	app.feed.Notify(context.Background(), notify.New(notify.LevelInfo, "hello"))

	body := decode[envelope[[]notify.Notification]](t, app.do(t, http.MethodGet, "/notifications", ""))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "hello", body.Data[0].Message)
	assert.Equal(t, 3*time.Second, body.Data[0].AutoClose)

	body = decode[envelope[[]notify.Notification]](t, app.do(t, http.MethodGet, "/notifications", ""))
	assert.Empty(t, body.Data)
}

func TestNotifications_WebsocketPush(t *testing.T) {
	app := newTestApp(t)
	app.restore(t)

	u, err := url.Parse(app.server.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/notifications/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	// Subscribing happens after the upgrade; retry the notice until it lands.
	got := make(chan notify.Notification, 1)
	go func() {
		var n notify.Notification
		if err := conn.ReadJSON(&n); err == nil {
			got <- n
		}
	}()

	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case n := <-got:
			assert.Equal(t, notify.LevelWarning, n.Level)
			assert.Equal(t, "ping", n.Message)
			return
		case <-tick.C:
			app.feed.Notify(context.Background(), notify.New(notify.LevelWarning, "ping"))
		case <-deadline:
			t.Fatal("no notification pushed")
		}
	}
}

func TestNotifications_WebsocketRejectsForeignOrigin(t *testing.T) {
	h := NewNotificationHandler(notify.NewFeed(testLogger(), 0), []string{"http://localhost:3000"}, testLogger())
	check := h.upgrader.CheckOrigin

	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8090/notifications/ws", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://127.0.0.1:8090")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))
}

// ============================================================================
// Navigator
// ============================================================================

func TestNavigator_RecordsOnlyInsideRequest(t *testing.T) {
	ctx, rd := withRedirect(context.Background())
	Navigator.Navigate(ctx, "/sheha-dashboard")
	assert.Equal(t, "/sheha-dashboard", rd.get())

	assert.NotPanics(t, func() { Navigator.Navigate(context.Background(), "/") })
}
