package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) Config {
	return Config{
		Timeout:         5 * time.Second,
		MaxRetries:      retries,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    5 * time.Millisecond,
		MaxConnsPerHost: 4,
	}
}

// flakyCRS fails the first n requests with status, then answers 200 with the
// request body echoed back.
func flakyCRS(t *testing.T, n int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= n {
			w.WriteHeader(status)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func send(t *testing.T, c Doer, method, url, body string) *http.Response {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, rd)
	require.NoError(t, err)
	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestClient_RetriesGetOnServerError(t *testing.T) {
	srv, calls := flakyCRS(t, 2, http.StatusBadGateway)

	resp := send(t, New(fastConfig(3)), http.MethodGet, srv.URL+"/api/cases/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	srv, calls := flakyCRS(t, 10, http.StatusServiceUnavailable)

	resp := send(t, New(fastConfig(2)), http.MethodGet, srv.URL, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_PutReplaysBody(t *testing.T) {
	srv, calls := flakyCRS(t, 1, http.StatusInternalServerError)

	resp := send(t, New(fastConfig(1)), http.MethodPut, srv.URL+"/api/doctor/patients/4/", `{"name":"Juma"}`)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Juma"}`, string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_NoRetry(t *testing.T) {
	tests := []struct {
		name   string
		method string
		status int
	}{
		{"post", http.MethodPost, http.StatusInternalServerError},
		{"patch", http.MethodPatch, http.StatusBadGateway},
		{"not implemented", http.MethodGet, http.StatusNotImplemented},
		{"client error", http.MethodGet, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := flakyCRS(t, 10, tt.status)
			resp := send(t, New(fastConfig(3)), tt.method, srv.URL, "{}")
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestClient_UnrewindableBodySentOnce(t *testing.T) {
	srv, calls := flakyCRS(t, 10, http.StatusBadGateway)

	req, err := http.NewRequest(http.MethodPut, srv.URL, io.NopCloser(strings.NewReader("x")))
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := New(fastConfig(3)).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_CanceledDuringBackoff(t *testing.T) {
	srv, _ := flakyCRS(t, 10, http.StatusBadGateway)

	cfg := fastConfig(3)
	cfg.RetryWaitMin, cfg.RetryWaitMax = time.Minute, time.Minute
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)
	_, err = New(cfg).Do(ctx, req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	req, err := http.NewRequest(http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	_, err = New(fastConfig(1)).Do(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestNewWithTransport_UsesRoundTripper(t *testing.T) {
	var seen string
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.Header.Get("Authorization")
		return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody, Request: r}, nil
	})

	req, err := http.NewRequest(http.MethodDelete, "http://crs.invalid/api/cases/9/", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer a1")

	resp, err := NewWithTransport(fastConfig(0), rt).Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "Bearer a1", seen)
}

func TestRetrier_OuterTransportSeesFinalAttemptOnly(t *testing.T) {
	srv, calls := flakyCRS(t, 10, http.StatusBadGateway)

	var seen []int
	outer := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		resp, err := NewRetrier(fastConfig(3), nil).RoundTrip(r)
		if err == nil {
			seen = append(seen, resp.StatusCode)
		}
		return resp, err
	})

	resp := send(t, NewWithTransport(fastConfig(3), outer), http.MethodGet, srv.URL+"/api/cases/", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []int{http.StatusBadGateway}, seen)
}

func TestRetrier_ResendsFreshClone(t *testing.T) {
	var bodies []string
	var attempts int
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		attempts++
		status := http.StatusServiceUnavailable
		if attempts == 2 {
			status = http.StatusOK
		}
		return &http.Response{StatusCode: status, Body: http.NoBody, Request: r}, nil
	})

	req, err := http.NewRequest(http.MethodPut, "http://crs.invalid/api/sheha/patients/3/", strings.NewReader(`{"age":4}`))
	require.NoError(t, err)
	resp, err := NewRetrier(fastConfig(2), rt).RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{`{"age":4}`, `{"age":4}`}, bodies)
}

func TestBackoff_Capped(t *testing.T) {
	c := NewRetrier(Config{RetryWaitMin: 100 * time.Millisecond, RetryWaitMax: 300 * time.Millisecond}, nil)

	for attempt := 1; attempt <= 40; attempt++ {
		d := c.backoff(attempt)
		assert.LessOrEqual(t, d, 375*time.Millisecond, "attempt %d", attempt)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond, "attempt %d", attempt)
	}
}

func TestAddJitter(t *testing.T) {
	assert.Zero(t, addJitter(0))
	for range 200 {
		d := addJitter(time.Second)
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
}
