package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/worker"
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

	redisConn := persistence.NewRedis(cfg.Redis, logger)
	defer redisConn.Close()

	pool := pg.PoolHandle()
	store := repository.NewStore(pool)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	perms := service.NewPermissionScope()
	hierarchy := service.NewHierarchyGuard(store)
	history := service.NewHistoryRecorder(store.History(), logger)
	closure := service.NewClosureWorkflow(service.ClosureDependencies{
		Store:      store,
		Perms:      perms,
		Hierarchy:  hierarchy,
		Dispatcher: dispatcher,
		History:    history,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Perms:      perms,
		Hierarchy:  hierarchy,
		Closure:    closure,
		Dispatcher: dispatcher,
		History:    history,
		Logger:     logger,
	})

	authService := service.NewAuthService(*cfg, store.Users())
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store.Users(), store.Groups())

	notificationService := service.NewNotificationService(dispatcher, redisConn.Client, logger, cfg.Notification)
	auditService := service.NewAuditService(dispatcher, logger)
	worker.StartEventWorkers(notificationService, auditService)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouterDependencies{
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Health:         handlers.NewHealthHandler(cfg.App, pool, redisConn.Client),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
