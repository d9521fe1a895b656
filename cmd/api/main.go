package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/identityhub/internal/auth"
	"github.com/geocoder89/identityhub/internal/config"
	"github.com/geocoder89/identityhub/internal/db"
	"github.com/geocoder89/identityhub/internal/domain/user"
	httpx "github.com/geocoder89/identityhub/internal/http"
	"github.com/geocoder89/identityhub/internal/http/handlers"
	"github.com/geocoder89/identityhub/internal/http/middlewares"
	"github.com/geocoder89/identityhub/internal/observability"
	"github.com/geocoder89/identityhub/internal/queue/redisclient"
	"github.com/geocoder89/identityhub/internal/repo/memory"
	"github.com/geocoder89/identityhub/internal/repo/postgres"
	"github.com/geocoder89/identityhub/internal/retry"
	"github.com/geocoder89/identityhub/internal/security"
	"github.com/geocoder89/identityhub/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const statsCacheTTL = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "identityhub:", err)
		os.Exit(1)
	}
}

func run() error {
	// Load the config set up; a missing JWT secret stops here
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName: cfg.ServiceName,
		Env:         cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer func() {
		sctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)
	prom.ClassifyDBError(user.ErrNotFound, "not_found")
	prom.ClassifyDBError(user.ErrEmailTaken, "unique_violation")

	var checks []handlers.ReadinessCheck

	// credential store
	var store service.UserStore
	if cfg.DBURL != "" {
		var pool *pgxpool.Pool
		err := retry.Do(ctx, cfg.ConnectAttempts, func(ctx context.Context) error {
			var err error
			pool, err = db.NewPool(ctx, cfg.DBURL)
			return err
		}, logRetry(log, "postgres"))
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if cfg.DBMigrate {
			mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := db.Migrate(mctx, cfg.DBURL)
			cancel()
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}

		pg := postgres.NewUsersRepo(pool, prom)
		store = pg
		checks = append(checks, handlers.ReadinessCheck{Name: "postgres", Ping: pg.Ping})
		log.Info("using postgres credential store")
	} else {
		store = memory.NewUsersRepo()
		log.Warn("DB_URL not set; using volatile in-memory credential store")
	}

	hasher := security.NewHasher(cfg.BcryptCost, cfg.HashConcurrency)

	created, err := db.EnsureAdminUser(ctx, store, hasher, db.AdminSeed{
		Email:    service.NormalizeEmail(cfg.AdminEmail),
		Password: cfg.AdminPassword,
		Name:     cfg.AdminName,
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.Info("admin user seeded")
	}

	tokens, err := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL, auth.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}
	guard := auth.NewGuard(tokens)

	gate := auth.NewGate(cfg.GateHeaderSecret, cfg.GateQuerySecret, guard)
	if !gate.HeaderChannelEnabled() {
		log.Warn("GATE_HEADER_SECRET not set; header channel of /secret-resource is disabled")
	}
	if !gate.QueryChannelEnabled() {
		log.Warn("GATE_QUERY_SECRET not set; query channel of /secret-resource is disabled")
	}

	// rate limit counters
	var counters middlewares.CounterStore = middlewares.NewMemoryCounter()
	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		err := retry.Do(ctx, cfg.ConnectAttempts, func(ctx context.Context) error {
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return rdb.Ping(pctx)
		}, logRetry(log, "redis"))
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}

		counters = rdb
		checks = append(checks, handlers.ReadinessCheck{Name: "redis", Ping: rdb.Ping})
		log.Info("using redis rate limit counters")
	}

	health := handlers.NewHealthHandler(checks...)
	users := service.NewUserService(store, hasher, tokens, cfg.PasswordPolicy(), log)
	stats := service.NewStatsService(store, statsCacheTTL)

	router := httpx.NewRouter(httpx.Deps{
		Log:                log,
		Dev:                cfg.IsDev(),
		Users:              handlers.NewUsersHandler(users, log),
		Auth:               handlers.NewAuthHandler(users, prom, log),
		Secret:             handlers.NewSecretHandler(gate, stats, prom, log),
		Health:             health,
		Guard:              guard,
		RateLimitStore:     counters,
		RateLimitMax:       cfg.RateLimitMax,
		RateLimitWindow:    cfg.RateLimitWindow,
		UserRateLimitMax:   cfg.UserRateLimitMax,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		Prom:               prom,
		Gatherer:           reg,
		ServiceName:        cfg.ServiceName,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("server shutting down")
	health.MarkShuttingDown()

	sctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return err
	}

	log.Info("shutdown complete")
	return nil
}

func logRetry(log *slog.Logger, dep string) func(int, error, time.Duration) {
	return func(attempt int, err error, wait time.Duration) {
		log.Warn("dependency not reachable, retrying", "dep", dep, "attempt", attempt, "wait", wait, "err", err)
	}
}
