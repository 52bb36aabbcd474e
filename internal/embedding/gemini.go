package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/codemind/codemind/internal/config"
)

// GeminiClient implements Client on top of the Gemini embedding API.
type GeminiClient struct {
	apiKey     string
	model      string
	dimensions int
}

// NewGeminiClient creates a new Gemini embedding client
func NewGeminiClient(cfg *config.EmbeddingConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api_key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-embedding-001"
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = 768
	}
	return &GeminiClient{
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed generates an embedding for a single text
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts
func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	dims := int32(c.dimensions)
	resp, err := client.Models.EmbedContent(ctx, c.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	embeddings := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding values returned for text %d", i)
		}
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// Dimensions returns the dimension of the embeddings
func (c *GeminiClient) Dimensions() int {
	return c.dimensions
}
