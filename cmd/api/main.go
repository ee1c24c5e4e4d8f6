package main

import (
	"context"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/guild-desk/internal/api/http"
	"github.com/spec-kit/guild-desk/internal/api/http/handlers"
	"github.com/spec-kit/guild-desk/internal/auth"
	"github.com/spec-kit/guild-desk/internal/config"
	"github.com/spec-kit/guild-desk/internal/events"
	"github.com/spec-kit/guild-desk/internal/guard"
	"github.com/spec-kit/guild-desk/internal/observability"
	"github.com/spec-kit/guild-desk/internal/persistence"
	"github.com/spec-kit/guild-desk/internal/ratelimit"
	"github.com/spec-kit/guild-desk/internal/repository"
	"github.com/spec-kit/guild-desk/internal/service"
	"github.com/spec-kit/guild-desk/internal/ticketlock"
	"github.com/spec-kit/guild-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	auditRepo := repository.NewAuditLogRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)

	metrics := observability.NewMetrics()

	limiter := ratelimit.New(ratelimit.Config{
		Capacity:        cfg.RateLimit.Capacity,
		RefillPerSecond: cfg.RateLimit.RefillPerSecond(),
		IdleTTL:         time.Duration(cfg.RateLimit.IdleTTLSeconds) * time.Second,
		SweepInterval:   time.Duration(cfg.RateLimit.SweepIntervalSec) * time.Second,
	})
	defer limiter.Close()

	var locker guard.KeyLocker
	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	if err := redis.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, creation guard falls back to in-process locking", zap.Error(err))
		locker = guard.NewMemoryLocker()
	} else {
		locker = persistence.NewRedisKeyLocker(redis.Client)
	}
	pingCancel()

	creationGuard := guard.NewCreationGuard(locker, ticketRepo, cfg.Guard.LockTTL(), logger)
	lockManager := ticketlock.NewManager()

	dispatcher := events.NewInMemoryDispatcher()
	auditService := service.NewAuditService(auditRepo, logger)
	staffResolver := service.NewCachedStaffResolver(staffRepo, cfg.StaffCache.TTL())

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo: ticketRepo,
		Audit:      auditService,
		Dispatcher: dispatcher,
	})
	actions := service.NewActionService(service.ActionDependencies{
		Limiter:    limiter,
		Creation:   creationGuard,
		Locks:      lockManager,
		Lifecycle:  lifecycle,
		Staff:      staffResolver,
		TicketRepo: ticketRepo,
		Audit:      auditService,
		Metrics:    metrics,
		Logger:     logger,
	})

	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notifications)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(actions),
		Staff:          handlers.NewStaffHandler(staffRepo, staffResolver),
		AuthMiddleware: authMiddleware,
	})

	var metricsServer *nethttp.Server
	if cfg.Metrics.Enabled {
		mux := nethttp.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &nethttp.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("metrics listener started", zap.String("addr", cfg.Metrics.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
