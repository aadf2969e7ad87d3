package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while a breaker rejects requests.
var ErrCircuitOpen = gobreaker.ErrOpenState

// FallbackFunc answers in place of an open breaker. It receives ErrCircuitOpen
// or gobreaker.ErrTooManyRequests.
type FallbackFunc func(ctx context.Context, err error) (*http.Response, error)

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// Name labels logs and the crs_circuit_breaker_* metrics.
	Name string

	// MaxRequests passes through while half-open; 0 means 1.
	MaxRequests uint32

	// Interval clears the closed-state counts; 0 never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open.
	Timeout time.Duration

	// The breaker opens once MinRequests have been seen and at least
	// FailureRatio of them failed.
	FailureRatio float64
	MinRequests  uint32

	// Fallback, if set, replaces the rejection error while open.
	Fallback FallbackFunc
}

// DefaultBreakerConfig returns the settings used when CRS_BREAKER_* is unset.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

func (c BreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crs_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	breakerFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crs_circuit_breaker_fallback_invoked_total",
			Help: "Requests answered by the fallback while the breaker was open",
		},
		[]string{"name"},
	)
)

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}

// upstreamFailure makes a 5xx count against the breaker while the response
// is still handed back to the caller.
type upstreamFailure struct {
	resp *http.Response
}

func (e *upstreamFailure) Error() string {
	return fmt.Sprintf("upstream status %d", e.resp.StatusCode)
}

// Breaker stops calling the CRS API after repeated failures. Transport
// errors and 5xx responses other than 501 are failures; 4xx are not.
type Breaker struct {
	next     Doer
	cb       *gobreaker.CircuitBreaker[*http.Response]
	name     string
	fallback FallbackFunc
	logger   *slog.Logger
}

// NewBreaker wraps next.
func NewBreaker(next Doer, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Breaker{next: next, name: cfg.Name, fallback: cfg.Fallback, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.readyToTrip,
		OnStateChange: b.stateChanged,
	})
	breakerState.WithLabelValues(cfg.Name).Set(0)
	return b
}

func (b *Breaker) stateChanged(name string, from, to gobreaker.State) {
	b.logger.Warn("circuit breaker state change",
		slog.String("breaker", name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
	breakerState.WithLabelValues(name).Set(stateValue(to))
}

// Do sends req through the breaker.
func (b *Breaker) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := b.cb.Execute(func() (*http.Response, error) {
		resp, err := b.next.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented {
			return nil, &upstreamFailure{resp: resp}
		}
		return resp, nil
	})

	var failure *upstreamFailure
	switch {
	case err == nil:
		return resp, nil
	case errors.As(err, &failure):
		return failure.resp, nil
	case b.fallback != nil && (errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)):
		breakerFallbacks.WithLabelValues(b.name).Inc()
		b.logger.WarnContext(ctx, "circuit breaker open, using fallback", slog.String("breaker", b.name))
		return b.fallback(ctx, err)
	default:
		return nil, err
	}
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
