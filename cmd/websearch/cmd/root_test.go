package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "websearch/internal/errors"
)

func TestRootHasSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{
		"serve", "search", "crawl", "chunk", "cache", "sitemap",
		"map", "batch-crawl", "jobs", "stats", "reset", "doctor",
		"config", "version",
	}
	var got []string
	for _, c := range root.Commands() {
		got = append(got, c.Name())
	}
	for _, name := range want {
		assert.Contains(t, got, name)
	}
}

func TestRootPersistentFlags(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"data-dir", "namespace", "offline", "debug"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing persistent flag %s", name)
	}
}

func TestLoadConfigAppliesFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	flagDataDir = dir
	flagOffline = true
	flagNamespace = "research"
	t.Cleanup(func() {
		flagDataDir = ""
		flagOffline = false
		flagNamespace = ""
	})

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, "research", cfg.Namespace.Default)
}

func TestDecodeAPIError(t *testing.T) {
	t.Run("structured envelope", func(t *testing.T) {
		body := []byte(`{"error":{"kind":"invalid_input","message":"bad url","details":{"url":"x"}}}`)
		err := decodeAPIError(400, body)

		assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))
		assert.Contains(t, err.Error(), "bad url")
	})

	t.Run("opaque body", func(t *testing.T) {
		err := decodeAPIError(503, []byte("gateway exploded"))
		assert.True(t, apperr.IsKind(err, apperr.KindHTTPStatus))
	})
}
