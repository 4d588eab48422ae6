// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Warden authentication server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool) and Redis.
//  4. Run database migrations (idempotent).
//  5. Bootstrap the system roles.
//  6. Wire services, background workers and HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/warden/internal/api"
	"github.com/taibuivan/warden/internal/gate"
	"github.com/taibuivan/warden/internal/notify"
	"github.com/taibuivan/warden/internal/platform/config"
	"github.com/taibuivan/warden/internal/platform/constants"
	"github.com/taibuivan/warden/internal/platform/metrics"
	"github.com/taibuivan/warden/internal/platform/middleware"
	"github.com/taibuivan/warden/internal/platform/migration"
	pgstore "github.com/taibuivan/warden/internal/platform/postgres"
	"github.com/taibuivan/warden/internal/platform/ratelimit"
	redisstore "github.com/taibuivan/warden/internal/platform/redis"
	"github.com/taibuivan/warden/internal/platform/sec"
	"github.com/taibuivan/warden/internal/rbac"
	"github.com/taibuivan/warden/internal/token"
	"github.com/taibuivan/warden/internal/users/auth"
	"github.com/taibuivan/warden/internal/users/oauth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("refresh_rotation", cfg.RefreshRotation),
	)

	// Root context for background workers, cancelled on shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Startup has a 30s deadline so misconfiguration fails fast.
	startupCtx, startupCancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL & Redis ─────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, cfg.StoreTimeout, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("postgres_pool_closing")
		pool.Close()
	}()

	rdb, err := redisstore.NewClient(startupCtx, redisstore.Options{
		URL:      cfg.RedisURL,
		Timeout:  cfg.StoreTimeout,
		PoolSize: cfg.RedisPoolSize,
	}, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("redis_client_closing")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 4. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	observer := metrics.New()

	// ── 5. Roles ──────────────────────────────────────────────────────────
	users := auth.NewPostgresUserRepository(pool)
	roleRepository := rbac.NewCachedRepository(rbac.NewPostgresRepository(pool), cfg.RoleCacheSize, cfg.RoleCacheTTL)
	roles := rbac.NewService(roleRepository, users, log)

	report, err := roles.Bootstrap(startupCtx)
	must(log, err, "bootstrap roles")
	log.Info("roles_bootstrapped",
		slog.Any("created", report.Created),
		slog.Any("updated", report.Updated),
	)

	// ── 6. Tokens ─────────────────────────────────────────────────────────
	signer, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Issuer:        cfg.JWT.Issuer,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})
	must(log, err, "initialize token signer")

	tokens := token.NewManager(token.NewPostgresRepository(pool), signer, token.Options{
		Rotate:           cfg.RefreshRotation,
		RevokedRetention: cfg.RevokedRetention,
	}, observer, log)

	sweeper, err := token.NewSweeper(tokens, cfg.SweepSchedule, constants.SweepTimeout, log)
	must(log, err, "schedule token sweeper")
	sweeper.Start()

	// ── 7. Notifications ──────────────────────────────────────────────────
	var sender notify.Sender = notify.NewRedisQueue(rdb, cfg.NotifyQueue)
	if cfg.IsDevelopment() {
		sender = notify.NewLogSender(log)
	}
	dispatcher := notify.NewDispatcher(sender, constants.NotifyDeliveryTimeout, observer, log)

	// ── 8. Credential Store ───────────────────────────────────────────────
	hasher, err := sec.NewBcryptHasher(cfg.BcryptCost)
	must(log, err, "initialize password hasher")

	authService := auth.NewService(auth.Dependencies{
		Users:    users,
		Links:    auth.NewPostgresOAuthLinkRepository(pool),
		Roles:    roles,
		Tokens:   tokens,
		Hasher:   hasher,
		Notifier: dispatcher,
		Metrics:  observer,
		Logger:   log,
	}, auth.Options{
		Lockout:         auth.LockoutPolicy{Threshold: cfg.LockoutThreshold, Duration: cfg.LockoutDuration},
		VerificationTTL: cfg.VerificationTTL,
		ResetTTL:        cfg.ResetTTL,
	})

	// ── 9. Authorization Gate ─────────────────────────────────────────────
	guard := middleware.NewGuard(gate.New(signer, users, roles, log), observer)

	// ── 10. Rate Limiting ─────────────────────────────────────────────────
	globalLimiter := ratelimit.NewMemory(constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst, constants.RateLimitClientTTL)
	go globalLimiter.Run(rootCtx, constants.RateLimitCleanupInterval)

	loginLimiter := newLoginLimiter(rootCtx, cfg, rdb)

	// ── 11. OAuth Providers ───────────────────────────────────────────────
	providers := oauth.NewRegistry(enabledProviders(startupCtx, cfg, log)...)
	log.Info("oauth_providers_enabled", slog.Any("providers", providers.Names()))

	// ── 12. HTTP Server ───────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(log,
		api.Check{Name: "postgres", Probe: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) }},
		api.Check{Name: "redis", Probe: func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }},
	)

	server := api.NewServer(cfg, log, api.Infrastructure{
		Guard:   guard,
		Metrics: observer,
		Limiter: globalLimiter,
	}, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, guard, loginLimiter),
		OAuth:     oauth.NewHandler(authService, providers, guard),
		Users:     auth.NewAdminHandler(authService, guard),
		Roles:     rbac.NewHandler(roles, guard),
	})

	// ── 13. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("server_shutting_down", slog.Duration("timeout", shutdownTimeout))

	exitCode := 0
	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
		exitCode = 1
	}

	// Drain background work before the pools close.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	sweeper.Stop(drainCtx)
	if err := dispatcher.Wait(drainCtx); err != nil {
		log.Warn("notifications_dropped_on_shutdown", slog.Any("error", err))
	}
	drainCancel()
	rootCancel()

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	log.Info("server_stopped_cleanly")
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String(constants.FieldApp, constants.AppName))
}

// newLoginLimiter throttles credential endpoints per client. Replicas share
// the Redis window when DISTRIBUTED_RATE_LIMIT is set.
func newLoginLimiter(ctx context.Context, cfg *config.Config, rdb *redis.Client) ratelimit.Limiter {
	if cfg.DistributedRateLimit {
		return ratelimit.NewRedis(rdb, constants.RedisPrefixRateLimit+"login:", cfg.LoginRatePerMinute, time.Minute)
	}
	limiter := ratelimit.PerMinute(cfg.LoginRatePerMinute, constants.RateLimitClientTTL)
	go limiter.Run(ctx, constants.RateLimitCleanupInterval)
	return limiter
}

// enabledProviders builds the configured OAuth providers. A provider that
// fails discovery is skipped so the rest of the server still starts.
func enabledProviders(ctx context.Context, cfg *config.Config, log *slog.Logger) []oauth.Provider {
	var providers []oauth.Provider

	google, err := oauth.NewGoogleProvider(ctx, oauth.GoogleConfig{
		ClientID:     cfg.OAuth.GoogleClientID,
		ClientSecret: cfg.OAuth.GoogleClientSecret,
		RedirectURL:  cfg.OAuth.RedirectBase + "/google/callback",
	})
	switch {
	case err != nil:
		log.Error("oauth_provider_unavailable", slog.String("provider", "google"), slog.Any("error", err))
	case google != nil:
		providers = append(providers, google)
	}

	github := oauth.NewGitHubProvider(oauth.GitHubConfig{
		ClientID:     cfg.OAuth.GitHubClientID,
		ClientSecret: cfg.OAuth.GitHubClientSecret,
		RedirectURL:  cfg.OAuth.RedirectBase + "/github/callback",
	})
	if github != nil {
		providers = append(providers, github)
	}

	return providers
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned
// and handled explicitly.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
