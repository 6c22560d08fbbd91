//go:build wireinject
// +build wireinject

package container

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	catalogapp "github.com/narwhalmedia/deadarchive/internal/application/catalog"
	"github.com/narwhalmedia/deadarchive/internal/config"
	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/download"
	gormrepo "github.com/narwhalmedia/deadarchive/internal/infrastructure/persistence/gorm"
	"github.com/narwhalmedia/deadarchive/pkg/keylock"
)

// InitializeApp wires every component of the application
func InitializeApp(cfg *config.Config, logger *zap.Logger) (*App, func(), error) {
	wire.Build(
		// Database
		gormrepo.NewDB,

		// Repositories
		gormrepo.NewShowRepository,
		wire.Bind(new(catalog.Store), new(*gormrepo.ShowRepository)),
		gormrepo.NewDownloadRepository,
		wire.Bind(new(download.Repository), new(*gormrepo.DownloadRepository)),

		// Remote catalog, caches and events
		provideRemoteCatalog,
		provideNegativeCache,
		providePublisher,
		keylock.New,

		// Catalog
		provideRatingAggregator,
		catalogapp.NewAggregationService,
		catalogapp.NewSyncConfig,
		catalogapp.NewSyncRepository,
		provideExporter,

		// Downloads
		provideFetcher,
		provideTagger,
		provideDownloadManager,

		// Container
		wire.Struct(new(App), "*"),
	)

	return nil, nil, nil
}
