package embedder

import (
	"context"
	"errors"
	"testing"
)

// failingEmbedder always returns the configured error, or echoes fixed
// vectors when err is nil.
type failingEmbedder struct {
	// err is returned from every Embed call when set.
	err error
	// calls counts Embed invocations.
	calls int
}

func (f *failingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

// TestFailOpen_Disabled_PropagatesError verifies fail-closed behaviour:
// provider errors reach the caller untouched.
func TestFailOpen_Disabled_PropagatesError(t *testing.T) {
	t.Parallel()

	provErr := errors.New("429 rate limited")
	e := NewFailOpen(&failingEmbedder{err: provErr}, 8, false)

	_, err := e.Embed(context.Background(), []string{"hello"})
	if !errors.Is(err, provErr) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

// TestFailOpen_Enabled_SyntheticVectors verifies that fail-open mode serves
// one synthetic vector per input at the configured dimension.
func TestFailOpen_Enabled_SyntheticVectors(t *testing.T) {
	t.Parallel()

	e := NewFailOpen(&failingEmbedder{err: errors.New("connection refused")}, 16, true)

	vectors, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	for i, v := range vectors {
		if len(v) != 16 {
			t.Errorf("vector %d has dimension %d, want 16", i, len(v))
		}
	}
}

// TestFailOpen_SyntheticVectorsDeterministic verifies that the same text
// always yields the same synthetic vector and different texts differ.
func TestFailOpen_SyntheticVectorsDeterministic(t *testing.T) {
	t.Parallel()

	a1 := syntheticVector("breaking news", 768)
	a2 := syntheticVector("breaking news", 768)
	b := syntheticVector("other text", 768)

	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatalf("synthetic vector not deterministic at index %d", i)
		}
		if a1[i] < -1 || a1[i] >= 1 {
			t.Fatalf("component %d = %f outside [-1, 1)", i, a1[i])
		}
	}

	same := true
	for i := range a1 {
		if a1[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different texts produced identical synthetic vectors")
	}
}

// TestFailOpen_SuccessPassesThrough verifies that real vectors are returned
// unchanged when the provider succeeds.
func TestFailOpen_SuccessPassesThrough(t *testing.T) {
	t.Parallel()

	e := NewFailOpen(&failingEmbedder{}, 3, true)

	vectors, err := e.Embed(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 1 || vectors[0][0] != 1 {
		t.Fatalf("provider vectors not passed through: %v", vectors)
	}
}
