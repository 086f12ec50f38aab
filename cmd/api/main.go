package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/maintenance-escrow/internal/api/http"
	"github.com/spec-kit/maintenance-escrow/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-escrow/internal/auth"
	"github.com/spec-kit/maintenance-escrow/internal/config"
	"github.com/spec-kit/maintenance-escrow/internal/events"
	"github.com/spec-kit/maintenance-escrow/internal/gateway"
	"github.com/spec-kit/maintenance-escrow/internal/idempotency"
	"github.com/spec-kit/maintenance-escrow/internal/observability"
	"github.com/spec-kit/maintenance-escrow/internal/persistence"
	"github.com/spec-kit/maintenance-escrow/internal/repository"
	"github.com/spec-kit/maintenance-escrow/internal/service"
	"github.com/spec-kit/maintenance-escrow/internal/worker"
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

	pool := pg.PoolHandle()
	if pool != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var rds *persistence.Redis
	if cfg.Redis.Addr != "" {
		rds = persistence.NewRedis(cfg.Redis, logger)
		defer rds.Close()
	}

	var (
		ticketRepo  repository.TicketRepository
		escrowRepo  repository.EscrowRepository
		accountRepo repository.AccountRepository
		resetRepo   repository.PasswordResetRepository
	)
	if pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		escrowRepo = repository.NewEscrowRepository(pool)
		accountRepo = repository.NewAccountRepository(pool)
		resetRepo = repository.NewPasswordResetRepository(pool)
	} else {
		logger.Warn("postgres not configured, falling back to in-memory repositories")
		ticketRepo = repository.NewMemoryTicketRepository()
		escrowRepo = repository.NewMemoryEscrowRepository()
		accountRepo = repository.NewMemoryAccountRepository()
		resetRepo = repository.NewMemoryPasswordResetRepository()
	}

	var idemStore idempotency.Store
	if rds != nil {
		ttl := time.Duration(cfg.Escrow.IdempotencyTTLHours) * time.Hour
		idemStore = idempotency.NewRedisStore(rds.Client, ttl)
	} else {
		idemStore = idempotency.NewMemoryStore()
	}

	paymentGateway, err := gateway.New(cfg.Gateway, cfg.App.Env, idemStore, logger)
	if err != nil {
		logger.Fatal("failed to build payment gateway", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	relay := events.NewKafkaRelay(cfg.Kafka, logger)
	worker.StartEventRelay(dispatcher, relay)
	if relay != nil {
		defer relay.Close() //nolint:errcheck
	}

	metrics := observability.NewMetrics()

	authService := service.NewAuthService(cfg.Auth, accountRepo, resetRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		EscrowRepo:     escrowRepo,
		Gateway:        paymentGateway,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Metrics:        metrics,
		EscrowConfig:   cfg.Escrow,
		GatewayTimeout: cfg.Gateway.Timeout(),
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), accountRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rds)
	accountsHandler := handlers.NewAccountsHandler(authService, logger)
	ticketsHandler := handlers.NewTicketsHandler(ticketService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Accounts:       accountsHandler,
		Tickets:        ticketsHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
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
