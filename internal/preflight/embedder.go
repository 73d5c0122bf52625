package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"websearch/internal/config"
)

// CheckEmbedder verifies that the configured embedding backend is usable.
// The static provider always passes; the ollama provider needs a reachable
// host with the configured model pulled.
func (c *Checker) CheckEmbedder(ctx context.Context, cfg config.EmbeddingsConfig) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: false, // --offline switches to static embeddings
	}

	if c.offline || strings.EqualFold(cfg.Provider, "static") {
		result.Status = StatusPass
		result.Message = "static embedder selected"
		return result
	}

	models, err := listOllamaModels(ctx, cfg.OllamaHost)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("Ollama not reachable at %s", cfg.OllamaHost)
		result.Details = "Start Ollama, or run with --offline for static embeddings"
		return result
	}

	for _, m := range models {
		if m == cfg.Model || strings.HasPrefix(m, cfg.Model+":") {
			result.Status = StatusPass
			result.Message = fmt.Sprintf("Ollama reachable, model %s available", cfg.Model)
			return result
		}
	}

	result.Status = StatusWarn
	result.Message = fmt.Sprintf("model %s not pulled", cfg.Model)
	result.Details = fmt.Sprintf("Run 'ollama pull %s'", cfg.Model)
	return result
}

// listOllamaModels queries the Ollama tags endpoint for installed models.
func listOllamaModels(ctx context.Context, host string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(host, "/")+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned %d", resp.StatusCode)
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(payload.Models))
	for _, m := range payload.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
