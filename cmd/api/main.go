// Package main is the entrypoint for the Tessera gateway API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tessera/tessera/internal/cache"
	"github.com/tessera/tessera/internal/config"
	"github.com/tessera/tessera/internal/facilitator"
	"github.com/tessera/tessera/internal/gateway"
	"github.com/tessera/tessera/internal/handler"
	"github.com/tessera/tessera/internal/metrics"
	"github.com/tessera/tessera/internal/middleware"
	"github.com/tessera/tessera/internal/model"
	"github.com/tessera/tessera/internal/repository"
	"github.com/tessera/tessera/internal/resolver"
	"github.com/tessera/tessera/internal/server"
	"github.com/tessera/tessera/internal/usage"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()

	// Publisher/endpoint snapshot, refreshed in the background.
	res := resolver.New()
	refresher := resolver.NewRefresher(res, repo, logger, recorder, cfg.SnapshotRefreshInterval)
	if err := refresher.Refresh(ctx); err != nil {
		logger.Warn("initial snapshot load failed, starting empty", "error", err)
	}
	go func() {
		_ = refresher.Run(ctx)
	}()

	// Usage pipeline: async publisher on the request path, worker
	// draining the stream into Postgres.
	usagePublisher := usage.NewPublisher(cacheClient.Client(), logger, recorder)
	usageWorker := usage.NewWorker(cacheClient.Client(), repo, logger, recorder, cfg.UsageConsumerName)
	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = usageWorker.Run(workerCtx)
	}()

	fac := facilitator.NewClient(cfg.FacilitatorURL, cfg.FacilitatorSecret)
	upstream := gateway.NewUpstreamClient(cfg.PublisherBearerToken, cfg.UpstreamTimeout)

	svc := gateway.NewService(res, fac, upstream, usagePublisher, cacheClient, recorder, logger, gateway.Config{
		PayTo:             cfg.MerchantWalletAddress,
		Network:           cfg.PayNetwork,
		AssetAddress:      cfg.AssetAddress,
		AssetName:         cfg.AssetName,
		AssetVersion:      cfg.AssetVersion,
		MaxTimeoutSeconds: cfg.SettlementTimeout,
		PublicBaseURL:     strings.TrimRight(cfg.BaseURL, "/"),
	})

	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	contentHandler := handler.NewContentHandler(svc, logger)
	metricsHandler := handler.NewMetricsHandler(recorder)

	r := setupRouter(contentHandler, healthHandler, metricsHandler, repo, cacheClient, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: the worker is stopped last so in-flight usage events from
	// draining requests still get persisted.
	srv.OnShutdown("usage worker", func(ctx context.Context) error {
		stopWorker()
		select {
		case <-workerDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	srv.OnShutdown("snapshot refresher", func(context.Context) error {
		cancel()
		return nil
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"network", cfg.PayNetwork,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	contentHandler *handler.ContentHandler,
	healthHandler *handler.HealthHandler,
	metricsHandler *handler.MetricsHandler,
	repo *repository.Repository,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Healthz)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	authCfg := middleware.AuthConfig{
		Logger:     logger,
		Repository: repo,
		Cache:      cacheClient,
	}

	// Payment surface. API keys are optional; anonymous callers pay
	// per request like everyone else.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))

		r.With(middleware.RequireScope(model.ScopePreview)).Get("/preview", contentHandler.Preview)
		r.With(middleware.RequireScope(model.ScopeFetch)).Get("/fetch", contentHandler.Fetch)
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
