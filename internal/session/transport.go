package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/notify"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/httpclient"
)

type retryKey struct{}

// withRetried marks ctx as belonging to a resent request.
func withRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retryKey{}, true)
}

func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retryKey{}).(bool)
	return v
}

// Transport attaches the session's bearer token to outgoing requests and
// handles their failures: a 401 triggers one shared refresh and a single
// resend, and any other error response raises an error notice.
type Transport struct {
	m    *Manager
	base http.RoundTripper
}

// Transport builds the interceptor for this manager on top of base (nil
// means http.DefaultTransport). Create it once and share it.
func (m *Manager) Transport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{m: m, base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.m.isClosed() {
		return nil, ErrClosed
	}

	ctx := req.Context()
	token := t.m.AccessToken()
	resp, err := t.base.RoundTrip(authorize(req, token))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !isRetried(ctx) && canResend(req) {
		newToken, rerr := t.m.RefreshAfter(ctx, token)
		if rerr != nil {
			// A refresh that ended the session has already told the user.
			if !errors.Is(rerr, ErrSessionExpired) {
				t.notifyFailure(ctx, resp)
			}
			t.m.logger.DebugContext(ctx, "refresh after 401 failed",
				slog.String("path", req.URL.Path),
				slog.String("error", rerr.Error()),
			)
			return resp, nil
		}

		retry, err := rewind(req.WithContext(withRetried(ctx)))
		if err != nil {
			t.m.logger.WarnContext(ctx, "cannot resend after refresh",
				slog.String("path", req.URL.Path),
				slog.String("error", err.Error()),
			)
			t.notifyFailure(ctx, resp)
			return resp, nil
		}
		drain(resp)
		t.m.logger.DebugContext(ctx, "resending after refresh",
			slog.String("path", req.URL.Path),
			slog.Bool("token_changed", newToken != token),
		)
		return t.RoundTrip(retry)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		t.notifyFailure(ctx, resp)
	}
	return resp, nil
}

// notifyFailure raises an error notice from the response's message or detail
// field. The body stays readable for the caller.
func (t *Transport) notifyFailure(ctx context.Context, resp *http.Response) {
	body := httpclient.PeekErrorBody(resp)
	message := body.Message
	if message == "" {
		message = body.Detail
	}
	if message == "" {
		message = msgRequestFailed
	}
	t.m.notify(ctx, notify.LevelError, message)
}

// authorize clones req with the bearer header set from token. An empty token
// leaves the header off.
func authorize(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Del("Authorization")
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return out
}

// canResend reports whether req's body can be sent a second time.
func canResend(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// rewind returns req with a fresh body.
func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return req, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
