package http

import (
	"context"
	"sync"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/session"
)

// sessionIdentity exposes the session to the route guard and request logger.
type sessionIdentity struct {
	sm *session.Manager
}

func (s sessionIdentity) Loading() bool { return s.sm.Loading() }

func (s sessionIdentity) Principal() (userID, role string, ok bool) {
	snap := s.sm.Snapshot()
	if !snap.IsAuthenticated {
		return "", "", false
	}
	return snap.UserID.String(), snap.UserRole.String(), true
}

type redirectKey struct{}

// redirect holds the route the session navigated to while one request was
// being served.
type redirect struct {
	mu    sync.Mutex
	route string
}

func withRedirect(ctx context.Context) (context.Context, *redirect) {
	rd := &redirect{}
	return context.WithValue(ctx, redirectKey{}, rd), rd
}

func (rd *redirect) get() string {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	return rd.route
}

// Navigator records session navigation on the request that caused it, so
// the login and logout handlers can answer with the redirect target.
// Navigation outside such a request is dropped.
var Navigator = session.NavigatorFunc(func(ctx context.Context, route string) {
	if rd, ok := ctx.Value(redirectKey{}).(*redirect); ok {
		rd.mu.Lock()
		rd.route = route
		rd.mu.Unlock()
	}
})
