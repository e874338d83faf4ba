package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kubeconsole/kubeconsole/pkg/audit"
	"github.com/kubeconsole/kubeconsole/pkg/auth"
	"github.com/kubeconsole/kubeconsole/pkg/config"
	"github.com/kubeconsole/kubeconsole/pkg/httputil"
	"github.com/kubeconsole/kubeconsole/pkg/middleware"
	"github.com/kubeconsole/kubeconsole/pkg/observability"
	"github.com/kubeconsole/kubeconsole/pkg/storage"
	"github.com/kubeconsole/kubeconsole/pkg/storage/postgres"
)

const version = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Infof("Starting kubeconsole %s", version)

	authLogger := newAuthLogger(cfg.Observability.LogLevel)

	ctx := context.Background()

	store, db, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize store")
		os.Exit(1)
	}

	redisClient := openRedis(ctx, cfg, logger)

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	auditLogger, err := openAudit(ctx, cfg, db)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize audit trail")
		os.Exit(1)
	}

	handlers := auth.NewHandlers(store, []byte(cfg.Auth.SessionSecret), authLogger)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	apiHandler := buildAPIHandler(cfg, router, handlers.Issuer(), metrics, redisClient, auditLogger)
	if cfg.Observability.OTelEnabled {
		apiHandler = otelhttp.NewHandler(apiHandler, "kubeconsole")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      apiHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := buildHealthServer(cfg, db, redisClient, registry)

	scheduler := startGaugeRefresh(store, metrics, logger)

	var group errgroup.Group
	group.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("health server", func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc("gauge scheduler", func(ctx context.Context) error {
		scheduler.Stop()
		return nil
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	if auditLogger != nil {
		shutdown.RegisterShutdownFunc("audit trail", func(ctx context.Context) error {
			return auditLogger.Close()
		})
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		shutdown.RegisterShutdownFunc("store", func(ctx context.Context) error {
			return closer.Close()
		})
	}
	shutdown.RegisterShutdownFunc("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	group.Go(shutdown.WaitForShutdown)

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

// newAuthLogger builds the logrus logger the auth package logs through.
func newAuthLogger(level observability.LogLevel) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	switch level {
	case observability.DebugLevel:
		logger.SetLevel(logrus.DebugLevel)
	case observability.WarnLevel:
		logger.SetLevel(logrus.WarnLevel)
	case observability.ErrorLevel:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// openStore builds the account store. The returned *sql.DB is nil for the
// memory backend and feeds the health checker otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *observability.Logger) (auth.Store, *sql.DB, error) {
	switch cfg.Storage.Type {
	case "postgres":
		connCfg := postgres.DefaultConnectionConfig(cfg.Storage.PostgresURL)
		connCfg.ReplicaURLs = cfg.Storage.ReplicaURLs()
		connCfg.MaxConns = cfg.Storage.PostgresMaxConns
		connCfg.MinConns = cfg.Storage.PostgresMinConns
		connCfg.Timeout = cfg.Storage.PostgresTimeout
		conns, err := postgres.NewConnectionManager(connCfg)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewStore(conns)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to PostgreSQL")
		return store, conns.Primary(), nil

	default:
		var settings *auth.Settings
		if cfg.Storage.SettingsFile != "" {
			var err error
			settings, err = storage.LoadSettingsFile(cfg.Storage.SettingsFile)
			if err != nil {
				return nil, nil, err
			}
			logger.Infof("Loaded settings from %s", cfg.Storage.SettingsFile)
		} else {
			logger.Warn("No settings file configured, all login providers are disabled")
		}
		return storage.NewMemoryStore(settings), nil, nil
	}
}

// openRedis connects to Redis when configured. Redis only backs
// distributed rate limiting, so connection failures log and continue.
func openRedis(ctx context.Context, cfg *config.Config, logger *observability.Logger) *redis.Client {
	if cfg.Storage.RedisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(cfg.Storage.RedisURL)
	if err != nil {
		logger.WithError(err).Warn("Invalid Redis URL, falling back to local rate limiting")
		return nil
	}
	if cfg.Storage.RedisPassword != "" {
		opts.Password = cfg.Storage.RedisPassword
	}
	opts.DB = cfg.Storage.RedisDB
	opts.PoolSize = cfg.Storage.RedisPoolSize

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unreachable, rate limiting will fail open")
	} else {
		logger.Info("Connected to Redis")
	}
	return client
}

// openAudit assembles the audit trail sinks. A nil logger means auditing
// is disabled entirely.
func openAudit(ctx context.Context, cfg *config.Config, db *sql.DB) (audit.Logger, error) {
	var sinks audit.MultiLogger

	if cfg.Observability.AuditLogPath != "" {
		fileLogger, err := audit.NewFileLogger(cfg.Observability.AuditLogPath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fileLogger)
	}

	if db != nil {
		dbLogger := audit.NewDBLogger(db)
		if err := dbLogger.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, dbLogger)
	}

	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

// buildAPIHandler wraps the router with the request middleware chain.
func buildAPIHandler(cfg *config.Config, router http.Handler, issuer *auth.Issuer, metrics *observability.Metrics, redisClient *redis.Client, auditLogger audit.Logger) http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware,
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		middlewares = append(middlewares, httputil.CORSMiddleware(cfg.Server.AllowedOrigins))
	}
	if cfg.Observability.MetricsEnabled {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(metrics))
	}
	if auditLogger != nil {
		middlewares = append(middlewares, audit.Middleware(auditLogger))
	}
	// Optional session decode so rate limiting can key on the account.
	middlewares = append(middlewares, middleware.SessionMiddleware(issuer, true))
	if redisClient != nil {
		middlewares = append(middlewares, middleware.NewDistributedRateLimitMiddleware(redisClient).Handler)
	} else {
		middlewares = append(middlewares, middleware.NewRateLimitMiddleware().Handler)
	}
	middlewares = append(middlewares,
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(1<<20),
	)

	return httputil.Chain(middlewares...)(router)
}

// buildHealthServer serves the kubernetes probes and the metrics endpoint
// on a port separate from the API.
func buildHealthServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry) *http.Server {
	checker := observability.NewHealthChecker(db, redisClient, version)

	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(mux, registry)
	}

	return &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// startGaugeRefresh keeps the account gauges current on a fixed schedule.
func startGaugeRefresh(store auth.Store, metrics *observability.Metrics, logger *observability.Logger) *cron.Cron {
	refresh := func() {
		defer observability.RecoverPanic(logger, "account gauge refresh")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		count, err := store.Accounts().Count(ctx)
		if err != nil {
			logger.WithError(err).Warn("Failed to refresh account gauge")
			return
		}
		metrics.AccountsTotal.Set(float64(count))
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 1m", refresh); err != nil {
		logger.WithError(err).Warn("Failed to schedule account gauge refresh")
		return scheduler
	}
	scheduler.Start()
	refresh()
	return scheduler
}
