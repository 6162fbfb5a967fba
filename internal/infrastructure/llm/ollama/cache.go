package ollama

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/rag-evalkit/internal/core/ports"
)

const defaultEmbedCacheSize = 1024

// CachingEmbedder memoizes query embeddings. Evaluation runs replay the
// same questions across retrieval modes, so every repeated question
// would otherwise cost an extra round trip to the embedding model.
// Document batches are embedded once at index build and bypass the cache.
type CachingEmbedder struct {
	inner   ports.Embedder
	queries *lru.Cache[string, []float32]
}

func NewCachingEmbedder(inner ports.Embedder, size int) (*CachingEmbedder, error) {
	if size <= 0 {
		size = defaultEmbedCacheSize
	}
	queries, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachingEmbedder{inner: inner, queries: queries}, nil
}

func (c *CachingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.Embed(ctx, texts)
}

func (c *CachingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := c.queries.Get(text); ok {
		return vector, nil
	}

	vector, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.queries.Add(text, vector)
	return vector, nil
}
