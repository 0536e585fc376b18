// Package rag defines the interfaces for the retrieval side of the news
// chat pipeline: vector storage, query-time retrieval, and embedding.
// Concrete implementations (Qdrant, etc.) satisfy these interfaces so the
// chat layer never depends on a specific backend.
package rag

import (
	"context"
	"time"
)

// Chunk is a stored unit of ingested news text plus its provenance metadata.
// The embedding is computed once from Title + Body at ingestion time.
type Chunk struct {
	// ID is the unique identifier for this chunk, stable across re-ingestion
	// of the same source item.
	ID string

	// Title is the article headline.
	Title string

	// Body is the article text, truncated to the maximum stored length at
	// ingestion time.
	Body string

	// SourceURL is the canonical URL of the article.
	SourceURL string

	// SourceName is the human-readable publisher name.
	SourceName string

	// Category is the topical label assigned at ingestion by source grouping.
	Category Category

	// PublishedAt is the article publication timestamp.
	PublishedAt time.Time
}

// Result is a single retrieval hit. Results are ephemeral: produced fresh
// per query, never persisted or cached beyond the request.
type Result struct {
	// ID is the chunk identifier.
	ID string

	// Score is the raw similarity score assigned by the vector index.
	Score float32

	// Title is the article headline.
	Title string

	// Body is the stored article excerpt.
	Body string

	// SourceURL is the canonical URL of the article.
	SourceURL string

	// SourceName is the human-readable publisher name.
	SourceName string

	// Category is the topical label the chunk was stored under.
	Category Category

	// PublishedAt is the article publication timestamp.
	PublishedAt time.Time
}

// VectorStore is the interface for persisting and searching article embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of chunks with their pre-computed
	// embeddings. The embeddings slice must be parallel to chunks —
	// embeddings[i] is the vector for chunks[i]. Duplicate IDs overwrite.
	Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Search performs a similarity search and returns the top-limit most
	// relevant chunks for the given query embedding. A non-empty category
	// restricts the search to chunks stored under that category; the empty
	// string searches the whole collection.
	Search(ctx context.Context, queryEmbedding []float32, limit int, category Category) ([]Result, error)

	// Delete removes chunks by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the chat orchestrator to
// fetch relevant passages for a query. It combines embedding, category
// classification, and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Search returns up to limit passages relevant to the query, ordered by
	// descending similarity score.
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}
