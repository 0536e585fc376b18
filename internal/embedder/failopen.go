package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"log/slog"

	"github.com/54b3r/newschat-go/internal/logging"
	"github.com/54b3r/newschat-go/internal/rag"
)

// FailOpenEmbedder wraps another rag.Embedder with an explicit availability
// policy. When FailOpen is enabled, a provider error (network, auth, rate
// limit) is swallowed and each input text receives a deterministic synthetic
// vector of the configured dimension instead, keeping the retrieval pipeline
// structurally functional in degraded mode. When disabled, provider errors
// propagate unchanged and the caller decides.
//
// Fail-open trades retrieval quality for availability — synthetic vectors
// match nothing meaningful — so the mode is a visible configuration choice
// and every fallback is logged at WARN.
type FailOpenEmbedder struct {
	// inner is the real embedding provider.
	inner rag.Embedder

	// dimensions is the vector size of synthetic fallback vectors. Must
	// match the provider's output dimension.
	dimensions int

	// failOpen enables the synthetic-vector fallback.
	failOpen bool
}

// NewFailOpen wraps inner with the given fallback policy.
func NewFailOpen(inner rag.Embedder, dimensions int, failOpen bool) *FailOpenEmbedder {
	return &FailOpenEmbedder{inner: inner, dimensions: dimensions, failOpen: failOpen}
}

// Embed delegates to the wrapped embedder. On provider failure with fail-open
// enabled it returns one synthetic vector per input text; the vectors are
// derived from a hash of each text so repeated calls are reproducible.
func (e *FailOpenEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.inner.Embed(ctx, texts)
	if err == nil {
		return vectors, nil
	}
	if !e.failOpen {
		return nil, err
	}

	logging.FromContext(ctx).Warn("embedder: provider failed, serving synthetic vectors",
		slog.Int("texts", len(texts)),
		slog.Any("error", err),
	)

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = syntheticVector(text, e.dimensions)
	}
	return out, nil
}

// syntheticVector derives a fixed-dimension pseudo-random vector from the
// text's SHA-256 digest. The same text always yields the same vector; values
// are scaled into [-1, 1).
func syntheticVector(text string, dimensions int) []float32 {
	seed := sha256.Sum256([]byte(text))

	vec := make([]float32, dimensions)
	buf := seed[:]
	for i := range vec {
		if len(buf) < 8 {
			next := sha256.Sum256(buf)
			buf = next[:]
		}
		bits := binary.BigEndian.Uint64(buf[:8])
		buf = buf[8:]
		// Map the top 32 bits onto [-1, 1).
		vec[i] = float32(int32(bits>>32)) / float32(1<<31)
	}
	return vec
}
