package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/session"
)

// RawPrefix is where the pass-through to the CRS API is mounted.
const RawPrefix = "/api/raw/"

// NewAPIProxy forwards RawPrefix requests to the CRS API through transport,
// which is expected to be the session transport: callers never handle
// tokens, and a 401 is refreshed and retried like any other API call.
func NewAPIProxy(apiBase *url.URL, transport http.RoundTripper, logger *slog.Logger) http.Handler {
	base := *apiBase
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			rel := strings.TrimPrefix(pr.In.URL.Path, RawPrefix)
			pr.Out.URL.Scheme = base.Scheme
			pr.Out.URL.Host = base.Host
			pr.Out.URL.Path = base.Path + rel
			pr.Out.URL.RawPath = ""
			pr.Out.URL.RawQuery = pr.In.URL.RawQuery
			pr.Out.Host = base.Host
			// Credentials come from the session only.
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("Cookie")
		},
		Transport:    transport,
		ErrorHandler: proxyErrorHandler(logger),
	}
}

func proxyErrorHandler(logger *slog.Logger) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("proxy error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)

		w.Header().Set("Content-Type", "application/json")
		if errors.Is(err, session.ErrClosed) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":"SERVICE_UNAVAILABLE","message":"session is closed"}}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_GATEWAY","message":"the CRS API is unreachable"}}`))
	}
}
