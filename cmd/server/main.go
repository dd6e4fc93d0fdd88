// Package main is the entry point for the streambet API server. It wires
// the chain client, realtime bus, services, WebSocket hub, and background
// scheduler together and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // postgres driver
	"github.com/redis/go-redis/v9"

	"github.com/plaetorius/streambet/internal/api"
	"github.com/plaetorius/streambet/internal/chain"
	"github.com/plaetorius/streambet/internal/config"
	"github.com/plaetorius/streambet/internal/realtime"
	"github.com/plaetorius/streambet/internal/repository"
	"github.com/plaetorius/streambet/internal/scheduler"
	"github.com/plaetorius/streambet/internal/service"
	"github.com/plaetorius/streambet/internal/ws"
)

func main() {
	// ── 1. Config + logger ────────────────────────────────────────────────────
	_ = godotenv.Load() // optional .env for local development
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting streambet server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Database ───────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── 3. Migrations ─────────────────────────────────────────────────────────
	if err = runMigrations(db, "migrations"); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// ── 4. Realtime bus ───────────────────────────────────────────────────────
	var bus realtime.Bus
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		bus = realtime.NewRedisBus(redisClient, logger)
		logger.Info("redis bus connected", "addr", cfg.Redis.Addr)
	} else {
		// Single-process deployments broadcast in memory.
		bus = realtime.NewMemoryBus()
		logger.Info("using in-process bus")
	}

	// ── 5. Chain client ───────────────────────────────────────────────────────
	chainClient, err := chain.NewEthereumClient(
		cfg.Chain.RPCURL,
		cfg.Chain.ContractAddress,
		cfg.Chain.OperatorKey,
		cfg.Chain.ChainID,
		cfg.Chain.ReceiptTimeout,
		logger,
	)
	if err != nil {
		logger.Error("chain client init failed", "err", err)
		os.Exit(1)
	}
	logger.Info("chain client ready", "chain_id", cfg.Chain.ChainID, "contract", cfg.Chain.ContractAddress)

	// ── 6. Repositories ───────────────────────────────────────────────────────
	profileRepo := repository.NewProfileRepository(db)
	streamRepo := repository.NewStreamRepository(db)
	marketRepo := repository.NewMarketRepository(db)
	betRepo := repository.NewBetRepository(db)

	// ── 7. Services ───────────────────────────────────────────────────────────
	profileSvc := service.NewProfileService(profileRepo, cfg)
	marketSvc := service.NewMarketService(marketRepo, streamRepo, chainClient, bus, logger)
	bookSvc := service.NewBookService(bus, logger)
	settleSvc := service.NewSettlementService(
		cfg, betRepo, marketRepo, profileRepo, streamRepo, chainClient, bus, logger)

	// ── 8. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 9. WebSocket hub ──────────────────────────────────────────────────────
	var allowedOrigins []string
	for _, o := range strings.Split(cfg.Server.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowedOrigins = append(allowedOrigins, o)
		}
	}
	hub := ws.NewHub(ctx, bus, bookSvc, []byte(cfg.JWT.Secret), allowedOrigins, logger)
	settleSvc.SetNotifier(hub)

	go hub.Run()
	logger.Info("websocket hub started")

	// ── 10. Bus consumers ─────────────────────────────────────────────────────
	if err = bookSvc.Start(ctx); err != nil {
		logger.Error("book service start failed", "err", err)
		os.Exit(1)
	}
	if err = settleSvc.Start(ctx); err != nil {
		logger.Error("settlement service start failed", "err", err)
		os.Exit(1)
	}

	// ── 11. Scheduler ─────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(marketSvc, bookSvc, logger)
	sched.Start(ctx)

	// ── 12. HTTP router ───────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		ProfileSvc: profileSvc,
		MarketSvc:  marketSvc,
		SettleSvc:  settleSvc,
		BookSvc:    bookSvc,
		BetRepo:    betRepo,
		Hub:        hub,
		Cfg:        cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 13. Start server ──────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 14. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}
	db.Close()
	logger.Info("server stopped cleanly")
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially. Idempotent: SQL files use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.Exec(string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
		slog.Info("migration applied", "file", filepath.Base(f))
	}
	return nil
}
