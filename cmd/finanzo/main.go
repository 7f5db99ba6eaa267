package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/finanzo-go/internal/config"
	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/handler"
	"github.com/boddenberg/finanzo-go/internal/infra/cache"
	"github.com/boddenberg/finanzo-go/internal/infra/localstore"
	"github.com/boddenberg/finanzo-go/internal/infra/observability"
	"github.com/boddenberg/finanzo-go/internal/infra/resilience"
	"github.com/boddenberg/finanzo-go/internal/infra/supabase"
	"github.com/boddenberg/finanzo-go/internal/port"
	"github.com/boddenberg/finanzo-go/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// localCache is what main needs from either local store.
type localCache interface {
	port.LocalCache
	port.Pinger
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("local_store", cfg.LocalStore),
		zap.Bool("remote_enabled", cfg.RemoteEnabled()),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("init_timeout", cfg.InitTimeout),
		zap.String("outbox_flush_schedule", cfg.OutboxFlushSchedule),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
	)

	ctx := context.Background()

	// --- Tracing ---
	shutdown, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "finanzo")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Local cache ---
	var local localCache
	switch cfg.LocalStore {
	case "memory":
		logger.Warn("local cache is in memory, nothing survives a restart")
		local = localstore.NewMemory()
	default:
		db, err := localstore.OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			logger.Fatal("failed to open local cache", zap.String("path", cfg.SQLitePath), zap.Error(err))
		}
		local = db
	}
	defer local.Close()
	if keys, err := local.Keys(ctx); err != nil {
		logger.Warn("local cache is not readable", zap.Error(err))
	} else {
		logger.Info("local cache opened", zap.Strings("keys", keys))
	}

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	bulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Remote ---
	var (
		remoteAuth  port.RemoteAuth
		remoteStore port.RemoteStore
	)
	if cfg.RemoteEnabled() {
		logger.Info("using Supabase as remote store", zap.String("supabase_url", cfg.SupabaseURL))
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		remoteAuth = client
		remoteStore = client
	} else {
		logger.Warn("Supabase not configured, running on the local cache only")
	}

	// --- Cache ---
	userCache := cache.New[*domain.RemoteUser](cfg.CacheTTL)
	defer userCache.Close()

	// --- Services ---
	store := service.NewStore(local, remoteStore, bulkhead, service.StoreOptions{
		MirrorTimeout: cfg.HTTPTimeout,
		BcryptCost:    cfg.BcryptCost,
	}, metrics, logger)

	app := service.NewApp(store, local, remoteAuth, remoteStore, userCache, service.AppConfig{
		InitTimeout: cfg.InitTimeout,
		Admin: domain.NewAccount{
			Email:    cfg.AdminEmail,
			Name:     cfg.AdminName,
			Password: cfg.AdminPassword,
			Role:     domain.RoleAdmin,
		},
	}, metrics, logger)
	app.Init(ctx)

	tokens := service.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAccessTTL)

	// --- Outbox schedule ---
	scheduler := cron.New()
	if remoteStore != nil {
		_, err := scheduler.AddFunc(cfg.OutboxFlushSchedule, func() {
			fctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout*time.Duration(cfg.MaxRetries+1))
			defer cancel()
			app.SyncOutbox(fctx)
		})
		if err != nil {
			logger.Fatal("invalid outbox schedule", zap.Error(err))
		}
		scheduler.Start()
	}

	// --- Router ---
	router := handler.NewRouter(app, tokens, local, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	<-scheduler.Stop().Done()
	store.Wait()

	logger.Info("server stopped")
}
