// Package httpclient sends requests to the CRS API with pooled connections,
// bounded retries and a circuit breaker.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// Config holds outbound client settings.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int
}

// DefaultConfig returns the settings used when CRS_CLIENT_* is unset.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    time.Second,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// Doer is implemented by Client and Breaker.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client sends requests through an http.Client bound to a transport chain.
type Client struct {
	hc *http.Client
}

// NewTransport builds the pooled transport that ends every client chain.
func NewTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// New returns a client that retries over a fresh pooled transport.
func New(cfg Config) *Client {
	return NewWithTransport(cfg, NewRetrier(cfg, NewTransport(cfg)))
}

// NewWithTransport returns a client that sends through rt as given. To retry
// beneath a transport that reacts to responses, such as the session
// transport, build rt on top of a Retrier.
func NewWithTransport(cfg Config, rt http.RoundTripper) *Client {
	return &Client{hc: &http.Client{Transport: rt, Timeout: cfg.Timeout}}
}

// Do sends req bound to ctx. Timeout covers every attempt of a retried
// request, backoff included.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.hc.Do(req.WithContext(ctx))
}

// Retrier is an http.RoundTripper that resends idempotent requests on network
// errors and 5xx responses. Transports above it see only the final attempt.
type Retrier struct {
	next http.RoundTripper
	cfg  Config
}

// NewRetrier wraps next (nil means http.DefaultTransport).
func NewRetrier(cfg Config, next http.RoundTripper) *Retrier {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Retrier{next: next, cfg: cfg}
}

// RoundTrip implements http.RoundTripper. A request whose body cannot be
// rewound through GetBody is sent once.
func (r *Retrier) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	limit := r.retryLimit(req)

	for attempt := 0; ; attempt++ {
		out := req
		if attempt > 0 {
			if err := sleep(ctx, r.backoff(attempt)); err != nil {
				return nil, err
			}
			var err error
			if out, err = rewind(req); err != nil {
				return nil, err
			}
		}

		resp, err := r.next.RoundTrip(out)
		if attempt >= limit || !shouldRetry(resp, err) {
			if err != nil {
				return nil, fmt.Errorf("http request failed after %d attempts: %w", attempt+1, err)
			}
			return resp, nil
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
	}
}

func (r *Retrier) retryLimit(req *http.Request) int {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
	default:
		return 0
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return 0
	}
	return r.cfg.MaxRetries
}

// backoff doubles from RetryWaitMin up to RetryWaitMax, with jitter.
func (r *Retrier) backoff(attempt int) time.Duration {
	wait := r.cfg.RetryWaitMin
	for i := 1; i < attempt && wait < r.cfg.RetryWaitMax; i++ {
		wait *= 2
	}
	return addJitter(min(wait, r.cfg.RetryWaitMax))
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		var netErr net.Error
		return errors.As(err, &netErr)
	}
	return resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented
}

// rewind clones req with a fresh body for another attempt.
func rewind(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.GetBody == nil {
		return out, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	out.Body = body
	return out, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// addJitter spreads d by up to 25% either way.
func addJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := float64(d) / 4
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}
