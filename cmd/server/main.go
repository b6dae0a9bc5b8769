package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guardtag/internal/bracelet/adapters"
	braceleth "guardtag/internal/bracelet/handler"
	braceletmetrics "guardtag/internal/bracelet/metrics"
	braceletservice "guardtag/internal/bracelet/service"
	braceletstore "guardtag/internal/bracelet/store"
	"guardtag/internal/bracelet/token"
	"guardtag/internal/bracelet/tracer"
	"guardtag/internal/pinaccess/gate"
	"guardtag/internal/pinaccess/grant"
	pinaccessh "guardtag/internal/pinaccess/handler"
	"guardtag/internal/pinaccess/limiter"
	pinmetrics "guardtag/internal/pinaccess/metrics"
	"guardtag/internal/platform/config"
	"guardtag/internal/platform/database"
	"guardtag/internal/platform/health"
	"guardtag/internal/platform/httpserver"
	"guardtag/internal/platform/logger"
	platformredis "guardtag/internal/platform/redis"
	"guardtag/internal/profile/guard"
	profileh "guardtag/internal/profile/handler"
	profileservice "guardtag/internal/profile/service"
	profilestore "guardtag/internal/profile/store"
	scanh "guardtag/internal/scan/handler"
	scanservice "guardtag/internal/scan/service"
	scanstore "guardtag/internal/scan/store"
	"guardtag/internal/seeder"
	httptransport "guardtag/internal/transport/http"
	"guardtag/migrations"
)

// main wires the stores, services, and HTTP surface. Without a database URL
// everything runs on the in-memory stores, which is how local development and
// the test suite operate; the attempt limiter likewise falls back from Redis
// to memory.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing guardtag",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	healthHandler := health.New(cfg.Environment)

	pool, err := database.New(cfg.Database)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}

	var (
		bracelets braceletStore
		profiles  profileStore
		scans     scanStore
	)
	if pool != nil {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := pool.Migrate(migrateCtx, migrations.FS); err != nil {
			cancel()
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		cancel()
		bracelets = braceletstore.NewPostgres(pool.DB())
		profiles = profilestore.NewPostgres(pool.DB())
		scans = scanstore.NewPostgres(pool.DB())
		healthHandler.RegisterCheck("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
		log.Info("using postgres stores")
	} else {
		bracelets = braceletstore.NewInMemory()
		profiles = profilestore.NewInMemory()
		scans = scanstore.NewInMemory()
		log.Info("using in-memory stores")
	}

	var attemptStore limiter.Store
	if rdb != nil {
		attemptStore = limiter.NewRedisStore(rdb)
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rdb.Health(ctx)
		})
		log.Info("using redis attempt limiter")
	} else {
		attemptStore = limiter.NewInMemoryStore()
		log.Info("using in-memory attempt limiter")
	}

	ownershipGuard := guard.New(profiles)

	profileSvc := profileservice.New(profiles, ownershipGuard,
		profileservice.WithLogger(log),
	)

	scanSvc := scanservice.New(scans,
		scanservice.WithLogger(log),
	)

	braceletSvc := braceletservice.New(
		bracelets,
		token.New(bracelets),
		adapters.NewProfileDirectory(profiles, ownershipGuard),
		braceletservice.WithLogger(log),
		braceletservice.WithMetrics(braceletmetrics.New()),
		braceletservice.WithTracer(tracer.NewOTel()),
		braceletservice.WithScanSink(adapters.NewScanSink(scanSvc)),
	)

	attemptLimiter := limiter.New(attemptStore,
		limiter.WithWindow(cfg.PinAttemptWindow),
		limiter.WithMaxFailures(cfg.PinMaxFailures),
	)
	grantIssuer := grant.New(cfg.GrantSigningKey, cfg.GrantTTL)
	pinGate := gate.New(profiles, attemptLimiter, grantIssuer,
		gate.WithLogger(log),
		gate.WithMetrics(pinmetrics.New()),
	)

	batchSeeder := seeder.New(braceletSvc, seeder.WithLogger(log))

	router := httptransport.NewRouter(httptransport.Handlers{
		Bracelet:  braceleth.New(braceletSvc, log),
		Profile:   profileh.New(profileSvc, log),
		PinAccess: pinaccessh.New(pinGate, grantIssuer, profiles, log),
		Scan:      scanh.New(scanSvc, log),
		Seeder:    seeder.NewHandler(batchSeeder, log),
		Health:    healthHandler,
	}, cfg.AdminToken, log)

	if cfg.AdminToken == "" {
		log.Warn("admin token not configured, fleet endpoints disabled")
	}

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	if pool != nil {
		if err := pool.Close(); err != nil {
			log.Error("database close failed", "error", err)
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error("redis close failed", "error", err)
		}
	}

	log.Info("server stopped")
}
