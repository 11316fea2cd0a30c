// Package main is the entry point for the matrix-admin server. It wires
// schema sources, the model registry, storage, and the HTTP gateway
// together and runs the server until shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rasinmuhammed/matrix-admin/internal/audit"
	"github.com/rasinmuhammed/matrix-admin/internal/config"
	"github.com/rasinmuhammed/matrix-admin/internal/crud"
	"github.com/rasinmuhammed/matrix-admin/internal/discovery"
	"github.com/rasinmuhammed/matrix-admin/internal/gateway"
	"github.com/rasinmuhammed/matrix-admin/internal/observability"
	"github.com/rasinmuhammed/matrix-admin/internal/registry"
	"github.com/rasinmuhammed/matrix-admin/internal/schema"
	"github.com/rasinmuhammed/matrix-admin/internal/token"
	"github.com/rasinmuhammed/matrix-admin/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "matrix-admin", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	signer, err := token.NewSigner(cfg.Admin.SecretKey(), cfg.Admin.TokenSalt)
	if err != nil {
		logger.Error("token signer initialization failed", zap.Error(err))
		return 1
	}

	// Database is optional: without one, every model is served from memory.
	pool, err := connectDatabase(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("database connection failed", zap.Error(err))
		return 1
	}
	if pool != nil {
		defer pool.Close()
	}

	reg := registry.New()
	if err := populateRegistry(ctx, cfg, reg, pool, logger); err != nil {
		logger.Error("model registration failed", zap.Error(err))
		return 1
	}
	metrics.SetModelsRegistered(float64(reg.Len()))

	var dbStore crud.Store
	if pool != nil {
		dbStore = crud.NewPgStore(pool)
	}
	engine := crud.NewEngine(crud.NewDispatchStore(dbStore, crud.NewMemStore()))

	replayGuard, replayChecker, err := buildReplayGuard(cfg.Admin, cfg.Replay, logger)
	if err != nil {
		logger.Error("replay guard initialization failed", zap.Error(err))
		return 1
	}

	auditor, err := buildAuditLogger(ctx, pool, logger)
	if err != nil {
		logger.Error("audit store initialization failed", zap.Error(err))
		return 1
	}

	readinessChecks := observability.ReadinessChecks{
		ModelsRegistered: func() bool { return reg.Len() > 0 },
		ReplayStore:      replayChecker,
	}
	if dbStore != nil {
		readinessChecks.Database = dbStore.(*crud.PgStore)
	}

	router := gateway.NewRouter(gateway.Dependencies{
		Config:   cfg,
		Registry: reg,
		Engine:   engine,
		Signer:   signer,
		Replay:   replayGuard,
		Audit:    auditor,
		Metrics:  metrics,
		Logger:   logger,
		Ready:    readinessChecks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("models", reg.Len()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// connectDatabase opens a pgx pool when a DSN is configured. A nil pool
// means run database-free.
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	dsn := cfg.DSN()
	if dsn == "" {
		logger.Warn("no database configured, records are held in memory only")
		return nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// populateRegistry gathers table schemas from every configured source
// and runs auto-discovery over them.
func populateRegistry(ctx context.Context, cfg *config.Config, reg *registry.Registry, pool *pgxpool.Pool, logger *zap.Logger) error {
	var candidates []model.TableSchema

	if pool != nil {
		introspected, err := schema.IntrospectTables(ctx, pool, cfg.Database.Introspect)
		if err != nil {
			return fmt.Errorf("introspect tables: %w", err)
		}
		logger.Info("database introspected", zap.Int("tables", len(introspected)))
		candidates = append(candidates, introspected...)
	}

	for _, file := range cfg.Schemas.Files {
		loaded, err := schema.LoadOpenAPIFile(ctx, file)
		if err != nil {
			return fmt.Errorf("load schema file %s: %w", file, err)
		}
		logger.Info("schema file loaded",
			zap.String("file", file),
			zap.Int("schemas", len(loaded)))
		candidates = append(candidates, loaded...)
	}

	if !cfg.Discovery.Enabled {
		logger.Info("auto-discovery disabled, no models registered")
		return nil
	}

	opts := discovery.Options{
		Include: cfg.Discovery.Include,
		Exclude: cfg.Discovery.Exclude,
	}
	registered := discovery.DiscoverAll(reg, candidates, opts)

	// Schema-only candidates have no backing table and are skipped by
	// discovery; register them explicitly so they stay reachable.
	for _, cand := range candidates {
		if cand.Table != "" || cand.Abstract || !opts.Allows(cand.Name) {
			continue
		}
		if reg.IsRegistered(cand.Name) {
			continue
		}
		if err := reg.Register(discovery.Describe(cand)); err != nil {
			return fmt.Errorf("register %s: %w", cand.Name, err)
		}
		registered++
	}

	logger.Info("models registered", zap.Int("count", registered))
	return nil
}

// buildReplayGuard creates the replay tracker for single-use tokens, or
// nothing when tokens are reusable.
func buildReplayGuard(adminCfg config.AdminConfig, cfg config.ReplayConfig, logger *zap.Logger) (token.ReplayGuard, observability.HealthChecker, error) {
	if !adminCfg.SingleUseTokens {
		return nil, nil, nil
	}

	switch cfg.Store {
	case "memory", "":
		logger.Info("using in-memory replay guard")
		return token.NewMemoryReplayGuard(), nil, nil
	case "redis":
		addr := cfg.Addr()
		if addr == "" {
			return nil, nil, fmt.Errorf("replay store: %s environment variable not set", cfg.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
		guard := token.NewRedisReplayGuard(client, "")
		return guard, guard, nil
	default:
		return nil, nil, fmt.Errorf("unsupported replay store: %q", cfg.Store)
	}
}

// buildAuditLogger picks the audit store: Postgres when a pool exists,
// a bounded in-memory ring otherwise.
func buildAuditLogger(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*audit.Logger, error) {
	if pool == nil {
		return audit.NewLogger(audit.NewMemoryStore(), logger), nil
	}
	store := audit.NewPgStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}
	return audit.NewLogger(store, logger), nil
}
