package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	catalogsvc "github.com/counterline/poscore/internal/catalog"
	syncsvc "github.com/counterline/poscore/internal/syncengine"
	"github.com/counterline/poscore/pkg/config"
	"github.com/counterline/poscore/pkg/db"
	"github.com/counterline/poscore/pkg/ledger"
	"github.com/counterline/poscore/pkg/logger"
	"github.com/counterline/poscore/pkg/migrate"
	"github.com/counterline/poscore/pkg/redis"
)

// The sync worker runs the drain/pull loop on its own, for deployments where
// the register UI process and the sync process are separated. It shares the
// local store with the terminal; the drain lock keeps the two from draining
// at once.
func main() {
	logg := logger.New(logger.Options{ServiceName: "sync-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "sync-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap local store", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing local store", err)
		}
	}()

	if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Display.Enabled {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Warn(ctx, "redis unavailable, draining without the shared lock: "+err.Error())
			redisClient = nil
		}
	}

	catalogService, err := catalogsvc.NewService(catalogsvc.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to build catalog service", err)
		os.Exit(1)
	}

	ledgerClient, err := ledger.NewClient(cfg.Ledger, cfg.App.TerminalID, logg)
	if err != nil {
		logg.Error(ctx, "failed to build ledger client", err)
		os.Exit(1)
	}

	syncRepo := syncsvc.NewRepository(dbClient.DB())
	var syncService syncsvc.Service
	if redisClient != nil {
		syncService, err = syncsvc.NewService(syncRepo, ledgerClient, catalogService, redisClient, nil, logg, cfg.Sync, cfg.Ledger.ProbeInterval)
	} else {
		syncService, err = syncsvc.NewService(syncRepo, ledgerClient, catalogService, nil, nil, logg, cfg.Sync, cfg.Ledger.ProbeInterval)
	}
	if err != nil {
		logg.Error(ctx, "failed to build sync engine", err)
		os.Exit(1)
	}

	startCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"terminal": cfg.App.TerminalID,
	})
	logg.Info(startCtx, "starting sync worker")

	if err := syncService.Run(ctx); err != nil && ctx.Err() == nil {
		logg.Error(startCtx, "sync worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(startCtx, "sync worker shut down")
}
