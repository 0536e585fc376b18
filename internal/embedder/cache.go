package embedder

import (
	"context"
	"sync"

	"github.com/54b3r/newschat-go/internal/rag"
)

// defaultCacheCapacity bounds the vector cache. At 768 float32 dimensions
// each entry is ~3KB, so the default caps memory at roughly 12MB.
const defaultCacheCapacity = 4096

// CachedEmbedder wraps another rag.Embedder with a bounded in-process cache
// keyed by exact input text. It is an optimization only: entries can be
// discarded at any time without affecting correctness, and the cache is never
// consulted as a source of truth for anything but an identical re-embed.
//
// Query texts repeat heavily in a chat workload (retries, users re-asking),
// which is where this earns its keep.
type CachedEmbedder struct {
	// inner is the real embedding provider.
	inner rag.Embedder

	// capacity is the maximum number of cached vectors.
	capacity int

	// mu protects vectors.
	mu sync.Mutex

	// vectors maps input text to its cached embedding.
	vectors map[string][]float32
}

// NewCached wraps inner with a cache of the given capacity.
// A non-positive capacity selects the default.
func NewCached(inner rag.Embedder, capacity int) *CachedEmbedder {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	return &CachedEmbedder{
		inner:    inner,
		capacity: capacity,
		vectors:  make(map[string][]float32),
	}
}

// Embed serves each text from cache when possible and embeds only the misses,
// preserving the input order in the returned slice.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int

	c.mu.Lock()
	for i, text := range texts {
		if v, ok := c.vectors[text]; ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	c.mu.Unlock()

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for j, v := range vectors {
		out[missIdx[j]] = v
		// Full reset on overflow keeps the implementation trivial; the
		// cache refills from the hot working set within a few queries.
		if len(c.vectors) >= c.capacity {
			c.vectors = make(map[string][]float32)
		}
		c.vectors[missTexts[j]] = v
	}
	c.mu.Unlock()

	return out, nil
}
