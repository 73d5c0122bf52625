// Package config loads and validates websearch configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML config file
// (<data-dir>/config.yaml), then WEBSEARCH_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete websearch configuration.
type Config struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`

	Fetch      FetchConfig      `yaml:"fetch" json:"fetch"`
	Chunk      ChunkConfig      `yaml:"chunk" json:"chunk"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Batch      BatchConfig      `yaml:"batch" json:"batch"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Jobs       JobsConfig       `yaml:"jobs" json:"jobs"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Namespace  NamespaceConfig  `yaml:"namespace" json:"namespace"`
}

// FetchConfig configures the page fetchers.
type FetchConfig struct {
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// TimeoutSeconds bounds a single fetch attempt, static or dynamic.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	MaxRedirects   int `yaml:"max_redirects" json:"max_redirects"`
	MaxRetries     int `yaml:"max_retries" json:"max_retries"`
	// MinTextLength is the auto-mode threshold: static results with less
	// normalized text than this trigger a dynamic re-fetch.
	MinTextLength int `yaml:"min_text_length" json:"min_text_length"`
	// CaptchaSolverURL is the endpoint of an external solving service.
	// Empty means captcha challenges fail as captcha_blocked.
	CaptchaSolverURL string `yaml:"captcha_solver_url" json:"captcha_solver_url"`
	CaptchaSolverKey string `yaml:"captcha_solver_key" json:"captcha_solver_key"`
}

// ChunkConfig configures default chunking parameters.
type ChunkConfig struct {
	DefaultStrategy string `yaml:"default_strategy" json:"default_strategy"`
	MaxChunkSize    int    `yaml:"max_chunk_size" json:"max_chunk_size"`
	Overlap         int    `yaml:"overlap" json:"overlap"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder backend: "ollama" or "static".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// BatchConfig configures batch crawl defaults.
type BatchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`
	RateLimitMs    int `yaml:"rate_limit_ms" json:"rate_limit_ms"`
	MaxURLs        int `yaml:"max_urls" json:"max_urls"`
	MaxDepth       int `yaml:"max_depth" json:"max_depth"`
}

// SearchConfig configures the web search facade.
type SearchConfig struct {
	Provider        string `yaml:"provider" json:"provider"`
	MaxResults      int    `yaml:"max_results" json:"max_results"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"`
	CacheSize       int    `yaml:"cache_size" json:"cache_size"`
}

// JobsConfig configures async job retention.
type JobsConfig struct {
	// RetentionMinutes is how long terminal job records stay queryable.
	RetentionMinutes int `yaml:"retention_minutes" json:"retention_minutes"`
	// MaxJobs caps retained jobs; older terminal jobs are evicted LRU.
	MaxJobs int `yaml:"max_jobs" json:"max_jobs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// NamespaceConfig configures namespace resolution.
type NamespaceConfig struct {
	// Default is the namespace used when neither the request argument nor
	// the request context names one.
	Default string `yaml:"default" json:"default"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Fetch: FetchConfig{
			UserAgent:      "websearch/1.0 (+https://github.com/websearch)",
			TimeoutSeconds: 30,
			MaxRedirects:   10,
			MaxRetries:     2,
			MinTextLength:  200,
		},
		Chunk: ChunkConfig{
			DefaultStrategy: "sentence",
			MaxChunkSize:    1000,
			Overlap:         0,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
		},
		Batch: BatchConfig{
			MaxConcurrency: 4,
			RateLimitMs:    1000,
			MaxURLs:        100,
			MaxDepth:       2,
		},
		Search: SearchConfig{
			Provider:        "duckduckgo",
			MaxResults:      10,
			CacheTTLSeconds: 300,
			CacheSize:       256,
		},
		Jobs: JobsConfig{
			RetentionMinutes: 60,
			MaxJobs:          1000,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8337,
		},
		Namespace: NamespaceConfig{
			Default: "default",
		},
	}
}

// DefaultDataDir returns ~/.websearch, falling back to the temp directory
// when the home directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".websearch")
	}
	return filepath.Join(home, ".websearch")
}

// Load builds the effective configuration. dataDir overrides the data
// directory when non-empty (CLI flag).
func Load(dataDir string) (*Config, error) {
	cfg := Default()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	path := filepath.Join(cfg.DataDir, "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays WEBSEARCH_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("WEBSEARCH_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("WEBSEARCH_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("WEBSEARCH_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("WEBSEARCH_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("WEBSEARCH_NAMESPACE"); v != "" {
		c.Namespace.Default = v
	}
	if v, err := strconv.Atoi(os.Getenv("WEBSEARCH_PORT")); err == nil && v > 0 {
		c.Server.Port = v
	}
	if v, err := strconv.Atoi(os.Getenv("WEBSEARCH_MAX_CONCURRENCY")); err == nil && v > 0 {
		c.Batch.MaxConcurrency = v
	}
	if v, err := strconv.Atoi(os.Getenv("WEBSEARCH_RATE_LIMIT_MS")); err == nil && v >= 0 {
		c.Batch.RateLimitMs = v
	}
}

// Validate checks invariants that later layers rely on.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Chunk.MaxChunkSize < 1 {
		return fmt.Errorf("chunk.max_chunk_size must be >= 1, got %d", c.Chunk.MaxChunkSize)
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.MaxChunkSize {
		return fmt.Errorf("chunk.overlap must be in [0, max_chunk_size), got %d", c.Chunk.Overlap)
	}
	if c.Batch.MaxConcurrency < 1 {
		return fmt.Errorf("batch.max_concurrency must be >= 1, got %d", c.Batch.MaxConcurrency)
	}
	if c.Batch.RateLimitMs < 0 {
		return fmt.Errorf("batch.rate_limit_ms must be >= 0, got %d", c.Batch.RateLimitMs)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch strings.ToLower(c.Embeddings.Provider) {
	case "ollama", "static":
	default:
		return fmt.Errorf("embeddings.provider must be ollama or static, got %q", c.Embeddings.Provider)
	}
	return nil
}

// IndexDir returns the vector index root.
func (c *Config) IndexDir() string {
	return filepath.Join(c.DataDir, "index")
}

// ModelsDir returns the embedder artifact cache.
func (c *Config) ModelsDir() string {
	return filepath.Join(c.DataDir, "models")
}

// FetchTimeout returns the fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// JobRetention returns the terminal job retention window.
func (c *Config) JobRetention() time.Duration {
	return time.Duration(c.Jobs.RetentionMinutes) * time.Minute
}

// SearchCacheTTL returns the search facade cache TTL.
func (c *Config) SearchCacheTTL() time.Duration {
	return time.Duration(c.Search.CacheTTLSeconds) * time.Second
}

// Save writes the configuration to <data-dir>/config.yaml.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(c.DataDir, "config.yaml")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, path)
}
