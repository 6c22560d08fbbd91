package container

import (
	"context"

	"go.uber.org/zap"

	catalogapp "github.com/narwhalmedia/deadarchive/internal/application/catalog"
	"github.com/narwhalmedia/deadarchive/internal/config"
	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/download"
	"github.com/narwhalmedia/deadarchive/internal/domain/events"
	"github.com/narwhalmedia/deadarchive/internal/domain/rating"
	"github.com/narwhalmedia/deadarchive/internal/infrastructure/adapters/external/archive"
	downloadinfra "github.com/narwhalmedia/deadarchive/internal/infrastructure/download"
	eventsinfra "github.com/narwhalmedia/deadarchive/internal/infrastructure/events"
	"github.com/narwhalmedia/deadarchive/pkg/cache"
)

func provideRemoteCatalog(cfg *config.Config, logger *zap.Logger) catalog.RemoteCatalog {
	return archive.NewClient(cfg.Catalog, logger)
}

func provideRatingAggregator(cfg *config.Config) *rating.Aggregator {
	return rating.NewAggregator(cfg.Ratings.ConfidenceThreshold)
}

// provideNegativeCache remembers show IDs the remote catalog does not know
func provideNegativeCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, func(), error) {
	var c cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(context.Background(), cache.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			Prefix:   config.ServiceName + ":neg:",
		})
		if err != nil {
			return nil, nil, err
		}
		c = rc
	default:
		c = cache.NewMemoryCache(cfg.Cache.NegativeTTL)
	}

	cleanup := func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close negative cache", zap.Error(err))
		}
	}
	return c, cleanup, nil
}

func providePublisher(cfg *config.Config, logger *zap.Logger) (events.EventPublisher, func(), error) {
	return eventsinfra.NewPublisher(cfg.Events, logger)
}

func provideFetcher(cfg *config.Config, logger *zap.Logger) download.Fetcher {
	return downloadinfra.NewHTTPFetcher(cfg.Catalog.UserAgent, logger)
}

// provideTagger returns a nil Tagger when tagging is disabled
func provideTagger(cfg *config.Config, store catalog.Store) download.Tagger {
	if !cfg.Downloads.TagFiles {
		return nil
	}
	return downloadinfra.NewID3Tagger(store)
}

func provideDownloadManager(
	cfg *config.Config,
	repo download.Repository,
	fetcher download.Fetcher,
	tagger download.Tagger,
	publisher events.EventPublisher,
	logger *zap.Logger,
) (*downloadinfra.Manager, func(), error) {
	manager, err := downloadinfra.NewManager(repo, fetcher, tagger, publisher, downloadinfra.ManagerConfig{
		Dir:         cfg.Downloads.Dir,
		Concurrency: cfg.Downloads.Concurrency,
		AutoStart:   cfg.Downloads.AutoStart,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := manager.Close(); err != nil {
			logger.Warn("failed to stop download workers", zap.Error(err))
		}
	}
	return manager, cleanup, nil
}

func provideExporter(store catalog.Store, ratings *rating.Aggregator, logger *zap.Logger) *catalogapp.RatingsExporter {
	return catalogapp.NewRatingsExporter(store, ratings, logger)
}
