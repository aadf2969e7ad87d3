// Package notify carries the short user-facing notices the dashboard raises
// (login greetings, session expiry, request failures) to whatever UI is
// listening.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a notice.
type Level string

// Level constants.
const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// AutoClose is how long a notice of this level stays on screen.
func (l Level) AutoClose() time.Duration {
	switch l {
	case LevelSuccess, LevelInfo:
		return 3 * time.Second
	default:
		return 5 * time.Second
	}
}

// Notification is one notice.
type Notification struct {
	ID        string        `json:"id"`
	Level     Level         `json:"level"`
	Message   string        `json:"message"`
	AutoClose time.Duration `json:"auto_close_ms"`
	CreatedAt time.Time     `json:"created_at"`
}

// New builds a notification with a fresh id and the level's auto-close delay.
func New(level Level, message string) Notification {
	return Notification{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   message,
		AutoClose: level.AutoClose(),
		CreatedAt: time.Now().UTC(),
	}
}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Discard drops every notice.
var Discard Notifier = NotifierFunc(func(context.Context, Notification) {})
