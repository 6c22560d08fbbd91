package gorm_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/narwhalmedia/deadarchive/internal/config"
	gormrepo "github.com/narwhalmedia/deadarchive/internal/infrastructure/persistence/gorm"
)

func TestNewDB_SQLiteMigratesSchema(t *testing.T) {
	cfg := config.Defaults()
	cfg.Database.Path = filepath.Join(t.TempDir(), "deadarchive.db")

	db, cleanup, err := gormrepo.NewDB(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer cleanup()

	tables := gormrepo.Tables(db)
	require.Len(t, tables, 5)
	for _, table := range tables {
		assert.NotEmpty(t, table.Name)
		assert.True(t, table.Present, table.Name)
	}
}

func TestNewDB_RejectsUnknownDriver(t *testing.T) {
	cfg := config.Defaults()
	cfg.Database.Driver = "oracle"

	_, _, err := gormrepo.NewDB(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}
