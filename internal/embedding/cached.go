package embedding

import "context"

// CachedEmbedder serves repeated texts from an LRU cache. Expanded queries
// repeat across requests, so question embeddings are cached; indexing
// bypasses the cache through EmbedBatch.
type CachedEmbedder struct {
	Embedder
	cache *EmbeddingCache
}

// NewCachedEmbedder wraps e with a cache of the given capacity.
func NewCachedEmbedder(e Embedder, capacity int) *CachedEmbedder {
	if capacity <= 0 {
		capacity = 1000
	}
	return &CachedEmbedder{Embedder: e, cache: NewEmbeddingCache(capacity)}
}

// Embed returns the embedding for text, using cache when available.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := c.cache.Get(text); ok {
		return cached, nil
	}
	emb, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, emb)
	return emb, nil
}

// Stats returns the query cache statistics.
func (c *CachedEmbedder) Stats() CacheStats {
	return c.cache.Stats()
}
