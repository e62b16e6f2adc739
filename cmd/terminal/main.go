package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/counterline/poscore/api/routes"
	cartsvc "github.com/counterline/poscore/internal/cart"
	sessionsvc "github.com/counterline/poscore/internal/cashsession"
	catalogsvc "github.com/counterline/poscore/internal/catalog"
	"github.com/counterline/poscore/internal/display"
	"github.com/counterline/poscore/internal/finalizer"
	heldsvc "github.com/counterline/poscore/internal/heldorders"
	paysvc "github.com/counterline/poscore/internal/payments"
	"github.com/counterline/poscore/internal/pricing"
	syncsvc "github.com/counterline/poscore/internal/syncengine"
	"github.com/counterline/poscore/pkg/config"
	"github.com/counterline/poscore/pkg/db"
	"github.com/counterline/poscore/pkg/enums"
	"github.com/counterline/poscore/pkg/ledger"
	"github.com/counterline/poscore/pkg/logger"
	"github.com/counterline/poscore/pkg/metrics"
	"github.com/counterline/poscore/pkg/migrate"
	"github.com/counterline/poscore/pkg/provider"
	"github.com/counterline/poscore/pkg/redis"
	"github.com/counterline/poscore/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "terminal"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "terminal",
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

	// The display broker is optional: a register without a customer display
	// runs with a noop sink and no drain lock.
	var redisClient *redis.Client
	if cfg.Display.Enabled {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Warn(ctx, "display broker unavailable, continuing without it: "+err.Error())
			redisClient = nil
		}
	}

	var sink display.Sink
	if redisClient != nil {
		sink, err = display.NewRedisSink(redisClient, cfg.Display.Channel)
		if err != nil {
			logg.Error(ctx, "failed to build display sink", err)
			os.Exit(1)
		}
	}
	broadcaster, err := display.NewBroadcaster(sink, cfg.App.TerminalID, logg)
	if err != nil {
		logg.Error(ctx, "failed to build display broadcaster", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	terminalMetrics := metrics.NewTerminalMetrics(registry)

	engine, err := pricing.NewEngine(cfg.Tax)
	if err != nil {
		logg.Error(ctx, "failed to build pricing engine", err)
		os.Exit(1)
	}

	catalogService, err := catalogsvc.NewService(catalogsvc.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to build catalog service", err)
		os.Exit(1)
	}

	cartService, err := cartsvc.NewService(
		cartsvc.NewRepository(dbClient.DB()),
		dbClient,
		engine,
		catalogService,
		broadcaster,
		enums.Currency(cfg.App.Currency),
	)
	if err != nil {
		logg.Error(ctx, "failed to build cart service", err)
		os.Exit(1)
	}

	heldService, err := heldsvc.NewService(heldsvc.NewRepository(dbClient.DB()), cartService)
	if err != nil {
		logg.Error(ctx, "failed to build held orders service", err)
		os.Exit(1)
	}

	sessionService, err := sessionsvc.NewService(sessionsvc.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to build cash session service", err)
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
		syncService, err = syncsvc.NewService(syncRepo, ledgerClient, catalogService, redisClient, terminalMetrics, logg, cfg.Sync, cfg.Ledger.ProbeInterval)
	} else {
		syncService, err = syncsvc.NewService(syncRepo, ledgerClient, catalogService, nil, terminalMetrics, logg, cfg.Sync, cfg.Ledger.ProbeInterval)
	}
	if err != nil {
		logg.Error(ctx, "failed to build sync engine", err)
		os.Exit(1)
	}

	providerClient, err := provider.NewClient(cfg.Provider, logg)
	if err != nil {
		logg.Error(ctx, "failed to build provider client", err)
		os.Exit(1)
	}

	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		logg.Error(ctx, "failed to build tap reader client", err)
		os.Exit(1)
	}

	paymentService, err := paysvc.NewService(
		cartService,
		paysvc.NewRepository(dbClient.DB()),
		providerClient,
		squareClient,
		catalogService,
		broadcaster,
		terminalMetrics,
		logg,
		cfg.Provider,
	)
	if err != nil {
		logg.Error(ctx, "failed to build payment orchestrator", err)
		os.Exit(1)
	}

	finalizerService, err := finalizer.NewService(
		dbClient,
		cartService,
		paymentService,
		syncService,
		sessionService,
		broadcaster,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to build sale finalizer", err)
		os.Exit(1)
	}

	go func() {
		if err := syncService.Run(ctx); err != nil && ctx.Err() == nil {
			logg.Error(ctx, "sync engine stopped unexpectedly", err)
		}
	}()

	var redisPinger redis.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}

	router := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisPinger,
		cartService,
		catalogService,
		heldService,
		sessionService,
		paymentService,
		finalizerService,
		syncService,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", router)

	addr := ":" + cfg.App.Port
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"terminal": cfg.App.TerminalID,
	})
	logg.Info(startCtx, "starting terminal server")

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			logg.Error(context.Background(), "error shutting down server", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(startCtx, "terminal server stopped unexpectedly", err)
		os.Exit(1)
	}
}
