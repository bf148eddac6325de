package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/pprofhandler"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/agritrace/api/handler"
	"github.com/fastygo/agritrace/internal/config"
	"github.com/fastygo/agritrace/internal/infrastructure/metrics"
	"github.com/fastygo/agritrace/internal/infrastructure/monitor"
	"github.com/fastygo/agritrace/internal/infrastructure/outbox"
	pgInfra "github.com/fastygo/agritrace/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/agritrace/internal/infrastructure/redis"
	"github.com/fastygo/agritrace/internal/middleware"
	"github.com/fastygo/agritrace/internal/router"
	"github.com/fastygo/agritrace/internal/services"
	"github.com/fastygo/agritrace/internal/services/lifecycle"
	"github.com/fastygo/agritrace/pkg/httpcontext"
	"github.com/fastygo/agritrace/pkg/identity"
	"github.com/fastygo/agritrace/pkg/logger"
	"github.com/fastygo/agritrace/repository"
	"github.com/fastygo/agritrace/repository/memory"
	"github.com/fastygo/agritrace/repository/postgres"
	redisRepo "github.com/fastygo/agritrace/repository/redis"
	dashboardUC "github.com/fastygo/agritrace/usecase/dashboard"
	facilityUC "github.com/fastygo/agritrace/usecase/facility"
	lotUC "github.com/fastygo/agritrace/usecase/lot"
	"github.com/fastygo/agritrace/usecase/tracking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, stop := manager.Context(context.Background())
	defer stop()

	// Store of record
	var (
		store    repository.Store
		pgPinger monitor.Pinger
	)
	switch cfg.Ledger.Store {
	case config.StoreMemory:
		store = memory.NewStore()
		zapLogger.Warn("ledger running on the in-memory store; data is lost on restart")
	default:
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}
		pool, err := pgInfra.NewPool(appCtx, cfg.AppName, cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("postgres connection failed", zap.Error(err))
		}
		manager.RegisterStop("postgres", func() { pgInfra.Close(pool, zapLogger) })
		store = postgres.NewStore(pool)
		pgPinger = pool
	}

	// Redis backs the dashboard cache and the event channel; both are optional.
	var (
		cache       repository.DashboardCache
		redisPinger monitor.Pinger
		publisher   services.Publisher
	)
	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis)
	switch {
	case errors.Is(err, redisInfra.ErrDisabled):
		zapLogger.Info("redis disabled; dashboard cache and event relay are off")
	case err != nil:
		zapLogger.Warn("redis unavailable; dashboard cache and event relay are off", zap.Error(err))
	default:
		manager.RegisterCloser("redis", redisClient)
		cache = redisRepo.NewDashboardCache(redisClient, cfg.Dashboard.CacheTTL)
		redisPinger = monitor.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		publisher = redisInfra.NewPublisher(redisClient, cfg.Redis.Channel)
	}

	ledgerMetrics := metrics.New()

	trackingOpts := []tracking.Option{
		tracking.WithMetrics(ledgerMetrics),
		tracking.WithCache(cache),
	}

	var queue monitor.QueueSizer
	if cfg.Outbox.Enabled {
		ob, err := outbox.Open(cfg.Outbox.Path, cfg.Outbox.Bucket)
		if err != nil {
			zapLogger.Fatal("failed to open outbox", zap.Error(err))
		}
		manager.RegisterCloser("outbox", ob)
		trackingOpts = append(trackingOpts, tracking.WithNotifier(ob))
		queue = ob

		if publisher != nil {
			relay, err := services.NewOutboxRelay(ob, publisher, ledgerMetrics, zapLogger, services.RelayConfig{
				Schedule:   cfg.Outbox.Schedule,
				BatchSize:  cfg.Outbox.BatchSize,
				MaxRetries: cfg.Outbox.MaxRetry,
				Retention:  time.Duration(cfg.Outbox.RetentionHours) * time.Hour,
			})
			if err != nil {
				zapLogger.Fatal("invalid outbox relay configuration", zap.Error(err))
			}
			relay.Start()
			manager.Register("outbox_relay", relay.Stop)
		}
	}

	ledger := tracking.New(store, cfg.Ledger.Policy(), zapLogger, trackingOpts...)
	lots := lotUC.New(store, identity.NewGenerator(), ledger, zapLogger, lotUC.WithCache(cache))
	facilities := facilityUC.New(store, cache, zapLogger)
	dashboard := dashboardUC.New(store, facilities, cache, dashboardUC.Limits{
		Producer: cfg.Dashboard.ProducerEvents,
		Operator: cfg.Dashboard.OperatorEvents,
	}, zapLogger)

	if cfg.Audit.Enabled {
		auditor, err := services.NewStockAuditor(ledger, cfg.Audit.Schedule, zapLogger)
		if err != nil {
			zapLogger.Fatal("invalid audit schedule", zap.Error(err))
		}
		auditor.Start()
		manager.Register("stock_auditor", auditor.Stop)
	}

	mon := monitor.New(pgPinger, redisPinger, queue, ledgerMetrics, 10*time.Second, zapLogger)
	mon.Start()
	manager.RegisterStop("monitor", mon.Stop)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Lot:       apiHandler.NewLotHandler(lots, ledger, ctxAdapter, zapLogger),
		Facility:  apiHandler.NewFacilityHandler(facilities, ledger, ctxAdapter, zapLogger),
		Dashboard: apiHandler.NewDashboardHandler(dashboard, ctxAdapter, zapLogger),
		Health:    apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}
	if cfg.HTTP.EnableMetrics {
		handlers.Metrics = ledgerMetrics.Handler()
	}

	var authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler
	switch {
	case cfg.JWT.Secret != "":
		authMiddleware = middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger)
	case cfg.Environment == "development":
		zapLogger.Warn("JWT_SECRET is empty; trusting X-Actor-ID and X-Actor-Role headers")
		authMiddleware = middleware.TrustHeaders
	default:
		zapLogger.Fatal("JWT_SECRET is required outside development")
	}

	r := router.New(handlers, authMiddleware)
	if cfg.HTTP.EnablePprof {
		r.GET("/debug/pprof/{profile:*}", pprofhandler.PprofHandler)
	}

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("ledger_store", cfg.Ledger.Store),
		)
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Error("server crashed", zap.Error(err))
			stop()
		}
	}()

	manager.Register("http_server", server.ShutdownWithContext)

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
