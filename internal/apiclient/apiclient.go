// Package apiclient is a typed client for the remote CRS REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/errors"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/httpclient"
)

const serviceName = "crs-api"

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.Breaker satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CircuitOpenFallback turns an open breaker into a retryable 503 instead of
// the raw gobreaker error.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.Unavailable("the CRS API is temporarily unavailable, please retry shortly")
}

// caller resolves API paths against the base URL and runs JSON requests.
type caller struct {
	doer    HTTPDoer
	baseURL *url.URL
	logger  *slog.Logger
}

func newCaller(doer HTTPDoer, baseURL string, logger *slog.Logger) (caller, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return caller{}, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return caller{}, fmt.Errorf("api url %q must be absolute", baseURL)
	}
	// Paths are relative ("cases/"), so the base must end in a slash.
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return caller{doer: doer, baseURL: u, logger: logger}, nil
}

// BaseURL returns the normalized API root.
func (c caller) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c caller) endpoint(path string) string {
	return c.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")}).String()
}

// call sends in as JSON (when non-nil) and decodes a 2xx body into out (when
// non-nil). Non-2xx responses become AppErrors.
func (c caller) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.DebugContext(ctx, "crs api request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return httpclient.ParseResponseError(resp, serviceName)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// list accepts both a bare JSON array and a paginated {"results": [...]}
// envelope.
type list[T any] []T

func (l *list[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var page struct {
			Results []T `json:"results"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		*l = page.Results
		return nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}
