package embedding

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// WrapWithCache puts an expiring LRU in front of a Client. Repeated
// content (vendored files, generated code, re-ingestion of the same
// repo) embeds once instead of hitting the API again. Keys hash the
// text so large chunks don't pin memory twice.
func WrapWithCache(next Client, size int, ttl time.Duration) Client {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &cachedClient{
		next:  next,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type cachedClient struct {
	next  Client
	cache *expirable.LRU[string, []float32]
}

func (c *cachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if cached, ok := c.cache.Get(key); ok {
		return cloneVector(cached), nil
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneVector(vec))
	return vec, nil
}

func (c *cachedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	// Batch calls bypass the cache; the single-text path is the hot one
	// during ingestion.
	return c.next.EmbedBatch(ctx, texts)
}

func (c *cachedClient) Dimensions() int {
	return c.next.Dimensions()
}

func cacheKey(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
