package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narwhalmedia/deadarchive/internal/config"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deadarchive.log")

	log, err := New("deadarchive", "production", config.LoggerConfig{
		Level:      "info",
		Format:     "json",
		OutputPath: path,
		MaxSizeMB:  1,
	})
	require.NoError(t, err)

	log.Info("cache cleanup finished")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"cache cleanup finished"`)
	assert.Contains(t, string(data), `"service":"deadarchive"`)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("deadarchive", "development", config.LoggerConfig{Level: "loud"})
	assert.Error(t, err)
}
