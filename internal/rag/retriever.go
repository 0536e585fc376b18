package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/newschat-go/internal/logging"
)

// Strategy selects how the retriever uses category classification.
type Strategy string

const (
	// StrategyCategoryFallback classifies the query, issues a filtered
	// search when a category matches, and tops the result set up with an
	// unfiltered search when the filtered set comes up short. This is the
	// default.
	StrategyCategoryFallback Strategy = "category-fallback"

	// StrategyPlain skips classification and always issues a single
	// unfiltered similarity search.
	StrategyPlain Strategy = "plain"
)

// RetrieverConfig tunes the category-aware retriever.
type RetrieverConfig struct {
	// Strategy selects the retrieval strategy. Defaults to
	// StrategyCategoryFallback.
	Strategy Strategy

	// DefaultLimit is the result count used when Search is called with a
	// non-positive limit. Defaults to 5.
	DefaultLimit int

	// MinScore drops results scoring below this value. Zero disables the
	// threshold (the default): a threshold improves precision but risks
	// empty results on a sparse corpus.
	MinScore float32
}

// CategoryRetriever implements Retriever by combining an Embedder and a
// VectorStore. When the query matches a category keyword it issues a
// category-filtered search first and falls back to an unfiltered search to
// fill the remainder, so topical precision degrades gracefully to general
// relevance when a category is under-populated.
type CategoryRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// cfg holds the resolved retrieval configuration.
	cfg RetrieverConfig
}

// NewRetriever constructs a CategoryRetriever from the given Embedder and
// VectorStore.
func NewRetriever(embedder Embedder, store VectorStore, cfg RetrieverConfig) (*CategoryRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyCategoryFallback
	}
	if cfg.Strategy != StrategyCategoryFallback && cfg.Strategy != StrategyPlain {
		return nil, fmt.Errorf("rag: unknown strategy %q", cfg.Strategy)
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 5
	}
	return &CategoryRetriever{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}, nil
}

// Search embeds the query and returns up to limit passages ordered by
// descending similarity score. If the vector index is unreachable the error
// wraps ErrUnavailable — an empty result list always means "nothing
// relevant", never "retrieval failed".
func (r *CategoryRetriever) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = r.cfg.DefaultLimit
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}
	vector := embeddings[0]

	var category Category
	if r.cfg.Strategy == StrategyCategoryFallback {
		category = Classify(query)
	}

	if category == "" {
		results, err := r.store.Search(ctx, vector, limit, "")
		if err != nil {
			return nil, fmt.Errorf("rag: vector search failed: %w", err)
		}
		return r.applyThreshold(results), nil
	}

	// Filtered search first, over-fetching 2x to survive deduplication
	// against the fallback set.
	filtered, err := r.store.Search(ctx, vector, 2*limit, category)
	if err != nil {
		return nil, fmt.Errorf("rag: filtered vector search failed: %w", err)
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	if len(filtered) < limit {
		logging.FromContext(ctx).Debug("rag: category under-populated, issuing fallback search",
			slog.String("category", string(category)),
			slog.Int("filtered", len(filtered)),
			slog.Int("limit", limit),
		)

		general, err := r.store.Search(ctx, vector, limit, "")
		if err != nil {
			return nil, fmt.Errorf("rag: fallback vector search failed: %w", err)
		}
		filtered = mergeResults(filtered, general, limit)
	}

	return r.applyThreshold(filtered), nil
}

// mergeResults appends entries from extra whose IDs are not already present
// in base, preserving each input's order, until base reaches limit or extra
// is exhausted.
func mergeResults(base, extra []Result, limit int) []Result {
	seen := make(map[string]bool, len(base))
	for _, r := range base {
		seen[r.ID] = true
	}
	for _, r := range extra {
		if len(base) >= limit {
			break
		}
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		base = append(base, r)
	}
	return base
}

// applyThreshold drops results below the configured minimum score.
// Results arrive sorted by descending score, so the first miss ends the scan.
func (r *CategoryRetriever) applyThreshold(results []Result) []Result {
	if r.cfg.MinScore <= 0 {
		return results
	}
	for i, res := range results {
		if res.Score < r.cfg.MinScore {
			return results[:i]
		}
	}
	return results
}
