// Package config loads the dashboard server's settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	pkgconfig "github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/config"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/database"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/httpclient"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/tracing"
)

// ServiceName labels logs, metrics and spans.
const ServiceName = "crs-dashboard"

// Credential store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds all configuration for the dashboard server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort       int           `env:"CRS_HTTP_PORT" envDefault:"8090"`
	RequestTimeout time.Duration `env:"CRS_REQUEST_TIMEOUT" envDefault:"30s"`

	// Remote CRS API
	APIURL      string `env:"CRS_API_URL" envDefault:"http://localhost:8000/api/"`
	RefreshPath string `env:"CRS_REFRESH_PATH" envDefault:"refresh/"`

	// Outbound HTTP client
	ClientTimeout    time.Duration `env:"CRS_CLIENT_TIMEOUT" envDefault:"30s"`
	ClientMaxRetries int           `env:"CRS_CLIENT_MAX_RETRIES" envDefault:"3"`

	// Circuit breaker around the CRS API
	BreakerTimeout      time.Duration `env:"CRS_BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerFailureRatio float64       `env:"CRS_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32        `env:"CRS_BREAKER_MIN_REQUESTS" envDefault:"5"`

	// Credential store
	StoreBackend string `env:"CRS_STORE_BACKEND" envDefault:"file"`
	StorePath    string `env:"CRS_STORE_PATH"`

	// Redis (CRS_STORE_BACKEND=redis)
	RedisURL             string        `env:"REDIS_URL"`
	RedisHost            string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort            int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword        string        `env:"REDIS_PASSWORD"`
	RedisDB              int           `env:"REDIS_DB" envDefault:"0"`
	RedisRefreshTTL      time.Duration `env:"CRS_REDIS_REFRESH_TTL" envDefault:"0s"`
	RedisConnectAttempts int           `env:"REDIS_CONNECT_ATTEMPTS" envDefault:"3"`
	RedisSlowThreshold   time.Duration `env:"REDIS_SLOW_THRESHOLD" envDefault:"100ms"`

	// Notifications
	NotificationBuffer int `env:"CRS_NOTIFICATION_BUFFER" envDefault:"50"`

	// Login rate limiting, per client IP
	LoginRateLimitRPS   int `env:"CRS_LOGIN_RATE_LIMIT_RPS" envDefault:"1"`
	LoginRateLimitBurst int `env:"CRS_LOGIN_RATE_LIMIT_BURST" envDefault:"5"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	CORSMaxAge         int      `env:"CORS_MAX_AGE" envDefault:"3600"`

	// Observability
	OTELEnabled         bool     `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint        string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate      float64  `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
	MetricsAllowedCIDRs []string `env:"METRICS_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`
	PprofEnabled        bool     `env:"CRS_PPROF_ENABLED" envDefault:"false"`
	PprofAllowedCIDRs   []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables, after any dotenv files.
func Load(dotenvFiles ...string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, dotenvFiles...); err != nil {
		return nil, fmt.Errorf("load dashboard config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CRS_API_URL must be an absolute URL, got %q", c.APIURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("CRS_API_URL must use http or https, got %q", u.Scheme)
	}
	if c.Environment != "development" && u.Scheme != "https" {
		return fmt.Errorf("CRS_API_URL must use https in %s environment", c.Environment)
	}

	if strings.TrimSpace(c.RefreshPath) == "" {
		return fmt.Errorf("CRS_REFRESH_PATH must not be empty")
	}

	if !slices.Contains([]string{StoreMemory, StoreFile, StoreRedis}, c.StoreBackend) {
		return fmt.Errorf("unknown CRS_STORE_BACKEND %q (want memory, file or redis)", c.StoreBackend)
	}

	if c.ClientMaxRetries < 0 {
		return fmt.Errorf("CRS_CLIENT_MAX_RETRIES must not be negative")
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("CRS_BREAKER_FAILURE_RATIO must be in (0, 1], got %v", c.BreakerFailureRatio)
	}
	if c.LoginRateLimitRPS < 1 || c.LoginRateLimitBurst < 1 {
		return fmt.Errorf("login rate limit must be positive")
	}
	return nil
}

// HTTPClient returns the outbound client settings.
func (c *Config) HTTPClient() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.ClientTimeout
	hc.MaxRetries = c.ClientMaxRetries
	return hc
}

// CircuitBreaker returns the breaker settings for the named client.
func (c *Config) CircuitBreaker(name string) httpclient.BreakerConfig {
	cb := httpclient.DefaultBreakerConfig(name)
	cb.Timeout = c.BreakerTimeout
	cb.FailureRatio = c.BreakerFailureRatio
	cb.MinRequests = c.BreakerMinRequests
	return cb
}

// Redis returns the redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.URL = c.RedisURL
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	rc.ConnectAttempts = c.RedisConnectAttempts
	return rc
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing() tracing.Config {
	tc := tracing.DefaultConfig(ServiceName)
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	tc.Enabled = c.OTELEnabled
	return tc
}
