package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/vidfriends/videotube/internal/config"
	"github.com/vidfriends/videotube/internal/db"
	"github.com/vidfriends/videotube/internal/handlers"
	"github.com/vidfriends/videotube/internal/httpserver"
	"github.com/vidfriends/videotube/internal/logging"
	"github.com/vidfriends/videotube/internal/repositories"
	"github.com/vidfriends/videotube/internal/storage"
)

// Run bootstraps the videotube backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve or migrate")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	st, err := openStores(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(context.Background()); err != nil {
			logger.Warn("close database", zap.Error(err))
		}
	}()

	objects, err := storage.NewS3Storage(ctx, cfg.Media)
	if err != nil {
		return err
	}

	deps, cleanup, err := buildDependencies(cfg, st, objects, logger)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.Port, handlers.NewRouter(deps), cfg.HTTP)

	logger.Info("starting http server",
		zap.Int("port", cfg.Port),
		zap.String("api_prefix", cfg.APIPrefix),
		zap.String("driver", cfg.Database.Driver),
	)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	if err := srv.Drain(ctx); err != nil {
		logger.Error("shutdown http server", zap.Error(err))
		runErr = errors.Join(runErr, err)
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := cleanup(drainCtx); err != nil {
		logger.Warn("drain asset janitor", zap.Error(err))
	}

	return runErr
}

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

func runMigrations(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	switch cfg.Database.Driver {
	case "postgres":
		return migratePostgres(ctx, logger, func(ctx context.Context) error {
			return db.Migrate(ctx, cfg.Database.PostgresURL, command)
		})
	case "mongo":
		if command != "up" {
			return fmt.Errorf("mongo supports only the up migration, got %q", command)
		}
		client, database, err := db.ConnectMongo(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase, mongoConnectTimeout, logger)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		if err := repositories.EnsureMongoIndexes(ctx, database); err != nil {
			return fmt.Errorf("ensure mongo indexes: %w", err)
		}
		logger.Info("mongo indexes ensured", zap.String("database", cfg.Database.MongoDatabase))
		return nil
	default:
		return fmt.Errorf("database driver %q has no migrations", cfg.Database.Driver)
	}
}

// migratePostgres runs apply, retrying transient PostgreSQL failures.
func migratePostgres(ctx context.Context, logger *zap.Logger, apply func(context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = migrationBaseBackoff
	policy.MaxInterval = migrationMaxBackoff

	attempt := 0
	operation := func() error {
		attempt++
		err := apply(ctx)
		if err == nil || shouldRetryMigration(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("transient migration error, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", migrationMaxRetries),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	retrier := backoff.WithContext(backoff.WithMaxRetries(policy, migrationMaxRetries-1), ctx)
	if err := backoff.RetryNotify(operation, retrier, notify); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("migrations applied", zap.Int("attempts", attempt))
	return nil
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := retryablePgErrorCodes[pgErr.Code]; ok {
			return true
		}
	}

	if errors.Is(err, pgx.ErrTxClosed) {
		return true
	}

	return false
}
