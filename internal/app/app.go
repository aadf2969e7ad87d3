package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/apiclient"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/config"
	handler "github.com/hassan-kurwa-buruhani/crs-dashboard/internal/handler/http"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/notify"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/repository"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/repository/file"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/repository/memory"
	redisstore "github.com/hassan-kurwa-buruhani/crs-dashboard/internal/repository/redis"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/service"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/session"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/database"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/health"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/httpclient"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/tracing"
)

// App wires together all dependencies and runs the dashboard server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	session        *session.Manager
	redisClient    *goredis.Client
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance: it opens the credential store,
// restores the persisted session and builds the HTTP router.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}

	store, err := a.openStore(ctx)
	if err != nil {
		_ = a.shutdownTracer()
		return nil, err
	}

	feed := notify.NewFeed(logger, cfg.NotificationBuffer)
	hc := cfg.HTTPClient()

	// Token calls bypass the session transport but share the breaker settings.
	authBreaker := cfg.CircuitBreaker("crs-auth")
	authBreaker.Fallback = apiclient.CircuitOpenFallback
	authDoer := httpclient.NewBreaker(httpclient.New(hc), authBreaker, logger)
	auth, err := apiclient.NewAuthAPI(authDoer, cfg.APIURL, cfg.RefreshPath, logger)
	if err != nil {
		a.closeStore()
		_ = a.shutdownTracer()
		return nil, fmt.Errorf("create auth client: %w", err)
	}

	sm := session.NewManager(session.Config{
		Store:     store,
		Auth:      auth,
		Notifier:  feed,
		Navigator: handler.Navigator,
		Logger:    logger,
	})
	a.session = sm

	// Retries run beneath the session transport so one failed request
	// raises one notice.
	transport := sm.Transport(httpclient.NewRetrier(hc, httpclient.NewTransport(hc)))
	apiBreaker := cfg.CircuitBreaker("crs-api")
	apiBreaker.Fallback = apiclient.CircuitOpenFallback
	apiDoer := httpclient.NewBreaker(httpclient.NewWithTransport(hc, transport), apiBreaker, logger)
	client, err := apiclient.NewClient(apiDoer, cfg.APIURL, logger)
	if err != nil {
		a.closeStore()
		_ = a.shutdownTracer()
		return nil, fmt.Errorf("create api client: %w", err)
	}

	if err := sm.Restore(ctx); err != nil {
		logger.Warn("starting without a session", slog.String("error", err.Error()))
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("credential_store", store.Ping)
	healthHandler.RegisterCritical("session", func(context.Context) error {
		if sm.Loading() {
			return errors.New("session is still loading")
		}
		return nil
	})
	healthHandler.RegisterNonCritical("crs_api", func(ctx context.Context) error {
		u := client.BaseURL()
		host := u.Host
		if u.Port() == "" {
			port := "80"
			if u.Scheme == "https" {
				port = "443"
			}
			host = net.JoinHostPort(u.Hostname(), port)
		}
		d := net.Dialer{Timeout: 2 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", host)
		if err != nil {
			return fmt.Errorf("crs api unreachable: %w", err)
		}
		_ = conn.Close()
		return nil
	})

	router := handler.NewRouter(handler.RouterConfig{
		ServiceName:         config.ServiceName,
		Environment:         cfg.Environment,
		RequestTimeout:      cfg.RequestTimeout,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		CORSMaxAge:          cfg.CORSMaxAge,
		LoginRateLimitRPS:   cfg.LoginRateLimitRPS,
		LoginRateLimitBurst: cfg.LoginRateLimitBurst,
		MetricsAllowedCIDRs: cfg.MetricsAllowedCIDRs,
		PprofEnabled:        cfg.PprofEnabled,
		PprofAllowedCIDRs:   cfg.PprofAllowedCIDRs,
	}, handler.Services{
		Session:   sm,
		Feed:      feed,
		Dashboard: service.NewDashboardService(client, logger),
		Profiles:  service.NewProfileService(client, feed, logger),
		Cases:     service.NewCaseService(client, logger),
		Patients:  service.NewPatientService(client, logger),
		APIProxy:  handler.NewAPIProxy(client.BaseURL(), transport, logger),
		Health:    healthHandler,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Websocket streams are hijacked and invisible to Shutdown; ending the
	// subscriptions lets them send a close frame and return.
	a.httpServer.RegisterOnShutdown(feed.CloseSubscribers)
	return a, nil
}

// openStore builds the configured credential store.
func (a *App) openStore(ctx context.Context) (repository.CredentialStore, error) {
	switch a.cfg.StoreBackend {
	case config.StoreMemory:
		a.logger.Warn("using in-memory credential store, sessions will not survive a restart")
		return memory.NewStore(), nil
	case config.StoreRedis:
		client, err := database.NewRedisClientWithLogger(ctx, a.cfg.Redis(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redisClient = client
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, client, config.ServiceName); err != nil {
			a.logger.Warn("redis pool metrics not registered", slog.String("error", err.Error()))
		}
		database.SetSlowCommandLogging(a.cfg.RedisSlowThreshold, a.logger)
		a.logger.Info("using redis credential store", slog.String("addr", a.cfg.Redis().Addr()))
		return redisstore.NewStore(client, a.cfg.RedisRefreshTTL), nil
	default:
		path := a.cfg.StorePath
		if path == "" {
			p, err := file.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		a.logger.Info("using file credential store", slog.String("path", path))
		return file.NewStore(path), nil
	}
}

// Handler returns the HTTP handler. Used by tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("crs_api", a.cfg.APIURL),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application in the correct order:
// 1. HTTP server (drain in-flight requests, close notification streams)
// 2. Session manager (reject late transport calls)
// 3. Redis client
// 4. Tracer (flush pending spans from drained requests)
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Stop the session; it keeps its persisted state.
	if err := a.session.Close(); err != nil {
		a.logger.Error("session close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 3. Release the store connection.
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Flush pending spans.
	if err := a.shutdownTracer(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeStore() {
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
}

func (a *App) shutdownTracer() error {
	if a.tracerShutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := a.tracerShutdown(ctx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
