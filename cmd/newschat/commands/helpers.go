package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/54b3r/newschat-go/internal/embedder"
	"github.com/54b3r/newschat-go/internal/rag"
)

// buildVectorStore connects to Qdrant using the standard environment
// variables and ensures the news collection exists. The collection's vector
// size follows the resolved embedding backend unless EMBEDDING_DIMENSIONS
// overrides it.
func buildVectorStore(ctx context.Context) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "newschat-articles")
	vectorSize := uint64(embedder.DefaultDimensions(embedder.ResolveBackend())) //nolint:gosec // dimensions are bounded

	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return store, nil
}

// buildRetriever constructs the category-aware retriever over an embedder and
// a fresh Qdrant store. The caller owns the returned store and must Close it.
func buildRetriever(ctx context.Context, log *slog.Logger) (rag.Retriever, *rag.QdrantStore, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	store, err := buildVectorStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	retriever, err := rag.NewRetriever(emb, store, rag.RetrieverConfig{
		DefaultLimit: getEnvInt("RETRIEVAL_LIMIT", 0),
		MinScore:     getEnvFloat32("RETRIEVAL_MIN_SCORE", 0),
	})
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create retriever: %w", err)
	}

	return retriever, store, nil
}

// getEnvOrDefault returns the value of the environment variable key, or
// fallback if it is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt parses the environment variable key as an int, returning fallback
// if it is unset or invalid.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvFloat32 parses the environment variable key as a float32, returning
// fallback if it is unset or invalid.
func getEnvFloat32(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}
