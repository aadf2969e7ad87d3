package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/logger"
)

// DefaultCapacity is the number of undrained notices a Feed keeps.
const DefaultCapacity = 50

const subscriberBuffer = 16

// Feed is the in-process Notifier. It keeps the most recent notices until
// they are drained and fans each one out to live subscribers. Slow
// subscribers miss notices rather than block the sender.
type Feed struct {
	logger   *slog.Logger
	capacity int

	mu      sync.Mutex
	pending []Notification
	subs    map[chan Notification]struct{}
	closed  bool
}

// NewFeed creates a Feed. A capacity below one uses DefaultCapacity.
func NewFeed(log *slog.Logger, capacity int) *Feed {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = slog.Default()
	}
	return &Feed{
		logger:   log,
		capacity: capacity,
		subs:     make(map[chan Notification]struct{}),
	}
}

// Notify records n and pushes it to subscribers.
func (f *Feed) Notify(ctx context.Context, n Notification) {
	if n.ID == "" {
		n = New(n.Level, n.Message)
	}

	logger.WithContext(ctx, f.logger).Log(ctx, logLevel(n.Level), "notification",
		slog.String("level", string(n.Level)),
		slog.String("message", n.Message),
	)

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pending) == f.capacity {
		copy(f.pending, f.pending[1:])
		f.pending = f.pending[:f.capacity-1]
	}
	f.pending = append(f.pending, n)

	for ch := range f.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Drain returns and forgets the pending notices, oldest first.
func (f *Feed) Drain() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := f.pending
	f.pending = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Pending returns a copy of the undrained notices.
func (f *Feed) Pending() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.pending...)
}

// Subscribe registers a live listener. The returned func unsubscribes and
// closes the channel; it is safe to call more than once. After
// CloseSubscribers the channel comes back already closed.
func (f *Feed) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, subscriberBuffer)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
	}
}

// CloseSubscribers closes every subscriber channel and refuses new
// subscriptions. Pending notices stay drainable.
func (f *Feed) CloseSubscribers() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}

func logLevel(l Level) slog.Level {
	switch l {
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MarshalJSON reports AutoClose in milliseconds.
func (n Notification) MarshalJSON() ([]byte, error) {
	type alias Notification
	return json.Marshal(struct {
		alias
		AutoClose int64 `json:"auto_close_ms"`
	}{alias: alias(n), AutoClose: n.AutoClose.Milliseconds()})
}

// UnmarshalJSON reads AutoClose from milliseconds.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type alias Notification
	var raw struct {
		alias
		AutoClose int64 `json:"auto_close_ms"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Notification(raw.alias)
	n.AutoClose = time.Duration(raw.AutoClose) * time.Millisecond
	return nil
}
