// Package embedding provides text embedding clients. One client is
// constructed at startup (model warm-up and connection cost paid once)
// and passed into the pipelines that need it.
package embedding

import (
	"context"
	"fmt"

	"github.com/codemind/codemind/internal/config"
)

// Client is the interface for embedding API clients
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// NewClient creates an embedding client for the configured provider,
// wrapped in an LRU cache so identical content embeds once per run.
func NewClient(cfg *config.EmbeddingConfig) (Client, error) {
	var client Client
	var err error

	switch cfg.Provider {
	case "openai":
		client, err = NewOpenAIClient(cfg)
	case "gemini":
		client, err = NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	return WrapWithCache(client, cfg.CacheSize, cfg.CacheTTL), nil
}
