package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sentence", cfg.Chunk.DefaultStrategy)
	assert.Equal(t, 200, cfg.Fetch.MinTextLength)
	assert.Equal(t, 60, cfg.Jobs.RetentionMinutes)
}

func TestLoadAppliesYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `
chunk:
  max_chunk_size: 256
  overlap: 32
batch:
  max_concurrency: 8
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.Chunk.MaxChunkSize)
	assert.Equal(t, 32, cfg.Chunk.Overlap)
	assert.Equal(t, 8, cfg.Batch.MaxConcurrency)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched fields keep defaults.
	assert.Equal(t, "duckduckgo", cfg.Search.Provider)
}

func TestLoadAppliesEnvOverYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := "batch:\n  max_concurrency: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("WEBSEARCH_MAX_CONCURRENCY", "16")
	t.Setenv("WEBSEARCH_EMBED_PROVIDER", "static")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Batch.MaxConcurrency)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrency)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunk.MaxChunkSize = 0 }},
		{"overlap >= chunk size", func(c *Config) { c.Chunk.MaxChunkSize = 10; c.Chunk.Overlap = 10 }},
		{"zero concurrency", func(c *Config) { c.Batch.MaxConcurrency = 0 }},
		{"negative rate limit", func(c *Config) { c.Batch.RateLimitMs = -1 }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown embedder", func(c *Config) { c.Embeddings.Provider = "cuda" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.DataDir = dir
	cfg.Batch.RateLimitMs = 250
	require.NoError(t, cfg.Save())

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 250, loaded.Batch.RateLimitMs)
}

func TestDirHelpers(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/tmp/ws"
	assert.Equal(t, filepath.Join("/tmp/ws", "index"), cfg.IndexDir())
	assert.Equal(t, filepath.Join("/tmp/ws", "models"), cfg.ModelsDir())
}
