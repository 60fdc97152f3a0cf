package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "tracklist.db", cfg.Store.Path)
	assert.Equal(t, "https://api.deezer.com", cfg.Deezer.BaseURL)
	assert.Equal(t, "https://api.genius.com", cfg.Genius.BaseURL)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.InDelta(t, 0.80, cfg.Pipeline.SimilarityThreshold, 0.001)
	assert.InDelta(t, 0.05, cfg.Pipeline.TieMargin, 0.001)
	assert.Equal(t, 3, cfg.Pipeline.RetryMaxAttempts)
	assert.Equal(t, 5, cfg.Pipeline.BreakerFailureThreshold)
	assert.Equal(t, []string{"features", "match", "lyrics", "text"}, cfg.Merge.StageRanking)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/tracklist
pipeline:
  workers: 8
  similarity_threshold: 0.9
log:
  level: debug
  format: console
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/tracklist", cfg.Store.DatabaseURL)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.InDelta(t, 0.9, cfg.Pipeline.SimilarityThreshold, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values.
	assert.InDelta(t, 0.05, cfg.Pipeline.TieMargin, 0.001)
	assert.Equal(t, "https://api.deezer.com", cfg.Deezer.BaseURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	chtemp(t)

	t.Setenv("TRACKLIST_STORE_DRIVER", "postgres")
	t.Setenv("TRACKLIST_STORE_DATABASE_URL", "postgres://localhost/tracklist")
	t.Setenv("TRACKLIST_GENIUS_TOKEN", "gt-123")
	t.Setenv("TRACKLIST_ANTHROPIC_KEY", "sk-456")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/tracklist", cfg.Store.DatabaseURL)
	assert.Equal(t, "gt-123", cfg.Genius.Token)
	assert.Equal(t, "sk-456", cfg.Anthropic.Key)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
