package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/paralympics-auth/internal/api/http"
	"github.com/spec-kit/paralympics-auth/internal/api/http/handlers"
	"github.com/spec-kit/paralympics-auth/internal/auth"
	"github.com/spec-kit/paralympics-auth/internal/config"
	"github.com/spec-kit/paralympics-auth/internal/events"
	"github.com/spec-kit/paralympics-auth/internal/observability"
	"github.com/spec-kit/paralympics-auth/internal/persistence"
	"github.com/spec-kit/paralympics-auth/internal/repository"
	"github.com/spec-kit/paralympics-auth/internal/service"
	"github.com/spec-kit/paralympics-auth/internal/worker"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.With(zap.String("env", cfg.App.Env))

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	key, err := auth.NewSigningKey(cfg.Auth.SecretKey)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}

	accounts, closeStore, err := openAccountStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Accounts:   accounts,
		Issuer:     auth.NewTokenIssuer(key),
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	authGate := auth.NewAuthGate(auth.NewTokenValidator(key), accounts, logger, metrics)

	app := httptransport.NewApp(cfg.App)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, accounts, metrics),
		Accounts: handlers.NewAccountsHandler(authService),
		AuthGate: authGate,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("account_store", cfg.Store.Driver),
			zap.String("version", cfg.App.Version),
		)
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			logger.Error("fiber listen", zap.Error(err))
			return err
		}
		return nil
	case <-waitForShutdown(ctx, logger):
	}

	return app.Shutdown()
}

// openAccountStore builds the configured account store and returns its cleanup.
func openAccountStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.AccountRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect postgres: %w", err)
		}
		return repository.NewAccountRepository(pg.PoolHandle()), pg.Close, nil
	case config.StoreDriverRedis:
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		return repository.NewRedisAccountRepository(rdb.Client, cfg.Redis.KeyPrefix), rdb.Close, nil
	case config.StoreDriverSQLite:
		db, err := persistence.NewSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return repository.NewSQLiteAccountRepository(db), func() { _ = db.Close() }, nil
	default:
		logger.Warn("using in-memory account store; accounts are lost on restart")
		return repository.NewMemoryAccountRepository(), func() {}, nil
	}
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		case <-ctx.Done():
			logger.Info("shutting down", zap.Error(ctx.Err()))
		}
	}()
	return done
}
