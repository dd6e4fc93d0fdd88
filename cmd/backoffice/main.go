// Package main is the entry point for the streambet back-office server.
// It runs on its own port and exposes the market lifecycle endpoints,
// protected by an IP allowlist and a static admin token.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/plaetorius/streambet/internal/backoffice"
	"github.com/plaetorius/streambet/internal/chain"
	"github.com/plaetorius/streambet/internal/config"
	"github.com/plaetorius/streambet/internal/realtime"
	"github.com/plaetorius/streambet/internal/repository"
	"github.com/plaetorius/streambet/internal/service"
)

func main() {
	// ── Config + logger ───────────────────────────────────────────────────────
	_ = godotenv.Load()
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting streambet backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	// ── Database ──────────────────────────────────────────────────────────────
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

	// ── Realtime bus ──────────────────────────────────────────────────────────
	// Market creation and resolution broadcast through the bus. The
	// backoffice must share the API server's Redis so those events reach the
	// viewers; an in-process bus here only serves isolated testing.
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
		bus = realtime.NewMemoryBus()
		logger.Warn("using in-process bus; broadcasts will not reach the API server")
	}

	// ── Chain client ──────────────────────────────────────────────────────────
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

	// ── Repositories + services ───────────────────────────────────────────────
	streamRepo := repository.NewStreamRepository(db)
	marketRepo := repository.NewMarketRepository(db)
	betRepo := repository.NewBetRepository(db)

	marketSvc := service.NewMarketService(marketRepo, streamRepo, chainClient, bus, logger)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		MarketSvc: marketSvc,
		BetRepo:   betRepo,
		Cfg:       cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	go func() {
		logger.Info("backoffice http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}
	db.Close()
	logger.Info("backoffice server stopped cleanly")
}
