// Package container assembles the application from configuration.
package container

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogapp "github.com/narwhalmedia/deadarchive/internal/application/catalog"
	"github.com/narwhalmedia/deadarchive/internal/config"
	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/events"
	downloadinfra "github.com/narwhalmedia/deadarchive/internal/infrastructure/download"
)

// App holds all dependencies of the deadarchive commands
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *gorm.DB
	Store      catalog.Store
	Sync       *catalogapp.SyncRepository
	Aggregator *catalogapp.AggregationService
	Exporter   *catalogapp.RatingsExporter
	Downloads  *downloadinfra.Manager
	Publisher  events.EventPublisher
}

// PingDB checks the database connection
func (a *App) PingDB(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
