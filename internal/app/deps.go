package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/vidfriends/videotube/internal/auth"
	"github.com/vidfriends/videotube/internal/config"
	"github.com/vidfriends/videotube/internal/db"
	"github.com/vidfriends/videotube/internal/handlers"
	"github.com/vidfriends/videotube/internal/media"
	"github.com/vidfriends/videotube/internal/middleware"
	"github.com/vidfriends/videotube/internal/repositories"
)

const mongoConnectTimeout = 30 * time.Second

// stores bundles the repositories chosen by the configured database driver.
type stores struct {
	users  repositories.UserRepository
	tweets repositories.TweetRepository
	videos repositories.VideoRepository
	health func(ctx context.Context) error
	close  func(ctx context.Context) error
}

func memoryStores() stores {
	return stores{
		users:  repositories.NewMemoryUserRepository(),
		tweets: repositories.NewMemoryTweetRepository(),
		videos: repositories.NewMemoryVideoRepository(),
		close:  func(context.Context) error { return nil },
	}
}

// openStores connects to the configured database and returns its repositories.
func openStores(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (stores, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("using in-memory repositories; data is lost on restart")
		return memoryStores(), nil
	case "mongo":
		client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, mongoConnectTimeout, logger)
		if err != nil {
			return stores{}, err
		}
		if err := repositories.EnsureMongoIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return stores{}, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return stores{
			users:  repositories.NewMongoUserRepository(database),
			tweets: repositories.NewMongoTweetRepository(database),
			videos: repositories.NewMongoVideoRepository(database),
			health: func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
			close:  client.Disconnect,
		}, nil
	case "postgres":
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return stores{}, err
		}
		return stores{
			users:  repositories.NewPostgresUserRepository(pool),
			tweets: repositories.NewPostgresTweetRepository(pool),
			videos: repositories.NewPostgresVideoRepository(pool),
			health: pool.Ping,
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil
	default:
		return stores{}, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The returned cleanup drains the asset janitor.
func buildDependencies(cfg config.Config, st stores, objects media.ObjectStore, logger *zap.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  cfg.Auth.AccessTokenSecret,
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshSecret: cfg.Auth.RefreshTokenSecret,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	transfer := media.NewTransfer(objects, media.NewFFProbe(cfg.Media.FFProbePath, cfg.Media.ProbeTimeout), media.TransferConfig{
		UploadTimeout:   cfg.Media.UploadTimeout,
		DeleteRetries:   cfg.Media.DeleteRetries,
		BreakerFailures: cfg.Media.BreakerFailures,
	}, logger.Named("media"))
	janitor := media.NewJanitor(transfer, media.JanitorConfig{
		QueueSize: cfg.Media.JanitorQueue,
		Workers:   cfg.Media.JanitorWorkers,
	}, logger.Named("janitor"))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := handlers.Dependencies{
		APIPrefix:  cfg.APIPrefix,
		Production: cfg.IsProduction(),
		CORSOrigin: cfg.CORSOrigin,
		BcryptCost: cfg.Auth.BcryptCost,
		Uploads: handlers.UploadConfig{
			TempDir:       cfg.Media.TempDir,
			MaxImageBytes: cfg.Media.MaxImageBytes,
			MaxVideoBytes: cfg.Media.MaxVideoBytes,
		},
		Cookies: handlers.CookieConfig{
			Secure:     cfg.IsProduction(),
			AccessTTL:  cfg.Auth.AccessTokenTTL,
			RefreshTTL: cfg.Auth.RefreshTokenTTL,
		},
		Users:       st.users,
		Tweets:      st.tweets,
		Videos:      st.videos,
		Sessions:    auth.NewManager(issuer, st.users),
		Media:       transfer,
		Janitor:     janitor,
		RateLimiter: middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, 10*cfg.RateLimit.Window),
		Metrics:     middleware.NewMetrics(registry),
		Logger:      logger,
		HealthCheck: st.health,
	}

	return deps, janitor.Shutdown, nil
}
