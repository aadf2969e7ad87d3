package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(h http.Handler, method, origin string, preflight bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/cases", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORS_AllowOrigin(t *testing.T) {
	tests := []struct {
		name        string
		cfg         CORSConfig
		origin      string
		wantOrigin  string
		wantVary    bool
		wantCredHdr bool
	}{
		{
			name:       "wildcard",
			cfg:        DefaultCORSConfig(),
			origin:     "http://localhost:3000",
			wantOrigin: "*",
		},
		{
			name:        "wildcard with credentials echoes origin",
			cfg:         CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true},
			origin:      "http://localhost:3000",
			wantOrigin:  "http://localhost:3000",
			wantVary:    true,
			wantCredHdr: true,
		},
		{
			name:       "listed origin",
			cfg:        CORSConfig{AllowedOrigins: []string{"https://crs.example.org"}},
			origin:     "https://crs.example.org",
			wantOrigin: "https://crs.example.org",
			wantVary:   true,
		},
		{
			name:   "unlisted origin",
			cfg:    CORSConfig{AllowedOrigins: []string{"https://crs.example.org"}},
			origin: "https://evil.example.com",
		},
		{
			name: "no origin with credentials",
			cfg:  CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := corsRequest(CORS(tt.cfg)(okHandler()), http.MethodGet, tt.origin, false)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantVary, rec.Header().Get("Vary") == "Origin")
			if tt.wantCredHdr {
				assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestCORS_ExposedHeadersOnlyForAllowedOrigins(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins: []string{"https://crs.example.org"},
		ExposedHeaders: []string{"Retry-After"},
	}
	h := CORS(cfg)(okHandler())

	rec := corsRequest(h, http.MethodGet, "https://crs.example.org", false)
	assert.Equal(t, "Retry-After", rec.Header().Get("Access-Control-Expose-Headers"))

	rec = corsRequest(h, http.MethodGet, "https://other.example.org", false)
	assert.Empty(t, rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORS_Preflight(t *testing.T) {
	var reached bool
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached = true })
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://crs.example.org"}, MaxAge: 600})(next)

	rec := corsRequest(h, http.MethodOptions, "https://crs.example.org", true)
	assert.False(t, reached)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), CorrelationHeader)
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))

	rec = corsRequest(h, http.MethodOptions, "https://evil.example.com", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PlainOptionsPassesThrough(t *testing.T) {
	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	rec := corsRequest(CORS(DefaultCORSConfig())(next), http.MethodOptions, "http://localhost:3000", false)
	assert.True(t, reached)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
