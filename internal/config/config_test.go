package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 100, cfg.Cache.SearchLimit)
	assert.Equal(t, 5, cfg.Catalog.RetryAttempts)
	assert.Equal(t, 10, cfg.Ratings.ConfidenceThreshold)
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  ttl: 2h
  search_limit: 50
catalog:
  collection: JerryGarcia
`), 0o644))

	t.Setenv("DEADARCHIVE_CACHE__SEARCH_LIMIT", "25")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 25, cfg.Cache.SearchLimit)
	assert.Equal(t, "JerryGarcia", cfg.Catalog.Collection)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	cfg.Database.Driver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Events.Backend = "kafka"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Storage.Backend = "s3"
	assert.Error(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	db := Defaults().Database
	assert.Contains(t, db.DSN(), "deadarchive.db")

	db.Driver = "postgres"
	assert.Contains(t, db.DSN(), "dbname=deadarchive")

	db.Driver = "mysql"
	assert.Contains(t, db.DSN(), "@tcp(localhost:5432)/deadarchive")
}
