package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeEmbedder returns a fixed vector for every input text.
type fakeEmbedder struct {
	// vector is returned for each input.
	vector []float32
	// err, when set, is returned instead.
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

// fakeStore serves canned results per category and records the searches it
// received in order.
type fakeStore struct {
	// byCategory maps category ("" = unfiltered) to the full candidate list.
	byCategory map[Category][]Result
	// err, when set, fails every search.
	err error
	// searches records (category, limit) pairs in call order.
	searches []searchCall
}

type searchCall struct {
	category Category
	limit    int
}

func (f *fakeStore) Search(_ context.Context, _ []float32, limit int, category Category) ([]Result, error) {
	f.searches = append(f.searches, searchCall{category: category, limit: limit})
	if f.err != nil {
		return nil, f.err
	}
	results := f.byCategory[category]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (f *fakeStore) Upsert(context.Context, []Chunk, [][]float32) error { return nil }
func (f *fakeStore) Delete(context.Context, []string) error            { return nil }
func (f *fakeStore) Close() error                                      { return nil }

// mkResults builds n descending-score results with the given id prefix.
func mkResults(prefix string, n int, topScore float32) []Result {
	out := make([]Result, n)
	for i := range n {
		out[i] = Result{
			ID:    fmt.Sprintf("%s-%d", prefix, i),
			Score: topScore - float32(i)*0.01,
			Title: fmt.Sprintf("%s article %d", prefix, i),
		}
	}
	return out
}

func newTestRetriever(t *testing.T, store VectorStore, cfg RetrieverConfig) *CategoryRetriever {
	t.Helper()
	r, err := NewRetriever(&fakeEmbedder{vector: []float32{0.1, 0.2}}, store, cfg)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	return r
}

// ---------------------------------------------------------------------------
// Category-aware search
// ---------------------------------------------------------------------------

// TestSearch_CategoryQuery_FilteredFirst verifies that a keyword-matching
// query issues a category-filtered search before anything else, over-fetching
// 2x the requested limit.
func TestSearch_CategoryQuery_FilteredFirst(t *testing.T) {
	t.Parallel()

	store := &fakeStore{byCategory: map[Category][]Result{
		CategorySports: mkResults("sports", 10, 0.9),
	}}
	r := newTestRetriever(t, store, RetrieverConfig{})

	results, err := r.Search(context.Background(), "Tell me about the NBA finals", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(store.searches) != 1 {
		t.Fatalf("expected 1 search, got %d", len(store.searches))
	}
	if store.searches[0].category != CategorySports {
		t.Errorf("first search category = %q, want sports", store.searches[0].category)
	}
	if store.searches[0].limit != 10 {
		t.Errorf("filtered search limit = %d, want 2x requested (10)", store.searches[0].limit)
	}
	if len(results) != 5 {
		t.Errorf("got %d results, want 5", len(results))
	}
}

// TestSearch_CategoryQuery_SingleChunkSurvives verifies that when the
// category holds exactly one matching chunk, that chunk appears in the final
// result list (topped up from the unfiltered search).
func TestSearch_CategoryQuery_SingleChunkSurvives(t *testing.T) {
	t.Parallel()

	sportsChunk := Result{ID: "nba-1", Score: 0.95, Title: "NBA finals recap", Category: CategorySports}
	store := &fakeStore{byCategory: map[Category][]Result{
		CategorySports: {sportsChunk},
		"":             mkResults("general", 8, 0.5),
	}}
	r := newTestRetriever(t, store, RetrieverConfig{})

	results, err := r.Search(context.Background(), "Tell me about the NBA finals", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if results[0].ID != "nba-1" {
		t.Errorf("first result = %q, want nba-1", results[0].ID)
	}
	if len(results) != 5 {
		t.Errorf("got %d results, want 5", len(results))
	}
}

// TestSearch_Fallback_NoDuplicates verifies that ids already present in the
// filtered set are never re-added by the fallback search and the combined
// list is exactly limit long when enough candidates exist.
func TestSearch_Fallback_NoDuplicates(t *testing.T) {
	t.Parallel()

	shared := Result{ID: "shared-1", Score: 0.8, Title: "shared"}
	store := &fakeStore{byCategory: map[Category][]Result{
		CategoryCrypto: {shared, {ID: "crypto-1", Score: 0.7, Title: "crypto"}},
		"":             append([]Result{shared}, mkResults("general", 6, 0.6)...),
	}}
	r := newTestRetriever(t, store, RetrieverConfig{})

	results, err := r.Search(context.Background(), "bitcoin outlook", 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != 4 {
		t.Fatalf("got %d results, want exactly 4", len(results))
	}
	seen := map[string]bool{}
	for _, res := range results {
		if seen[res.ID] {
			t.Errorf("duplicate id %q in results", res.ID)
		}
		seen[res.ID] = true
	}
	if len(store.searches) != 2 {
		t.Fatalf("expected filtered + fallback searches, got %d", len(store.searches))
	}
	if store.searches[1].category != "" {
		t.Errorf("fallback search category = %q, want unfiltered", store.searches[1].category)
	}
}

// TestSearch_NoCategory_SingleUnfiltered verifies that a query with no
// keyword match issues exactly one unfiltered search.
func TestSearch_NoCategory_SingleUnfiltered(t *testing.T) {
	t.Parallel()

	store := &fakeStore{byCategory: map[Category][]Result{
		"": mkResults("general", 3, 0.4),
	}}
	r := newTestRetriever(t, store, RetrieverConfig{})

	results, err := r.Search(context.Background(), "something entirely untopical", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(store.searches) != 1 {
		t.Fatalf("expected 1 search, got %d", len(store.searches))
	}
	if store.searches[0].category != "" {
		t.Errorf("search category = %q, want unfiltered", store.searches[0].category)
	}
	if store.searches[0].limit != 5 {
		t.Errorf("search limit = %d, want 5", store.searches[0].limit)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want 3", len(results))
	}
}

// TestSearch_PlainStrategy_SkipsClassification verifies that the plain
// strategy never issues a filtered search even for keyword-matching queries.
func TestSearch_PlainStrategy_SkipsClassification(t *testing.T) {
	t.Parallel()

	store := &fakeStore{byCategory: map[Category][]Result{
		"": mkResults("general", 5, 0.4),
	}}
	r := newTestRetriever(t, store, RetrieverConfig{Strategy: StrategyPlain})

	if _, err := r.Search(context.Background(), "NBA finals", 5); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(store.searches) != 1 || store.searches[0].category != "" {
		t.Errorf("plain strategy issued searches %+v, want one unfiltered", store.searches)
	}
}

// TestSearch_ResultsSortedAndBounded verifies the core contract: length ≤
// limit and non-increasing score order.
func TestSearch_ResultsSortedAndBounded(t *testing.T) {
	t.Parallel()

	store := &fakeStore{byCategory: map[Category][]Result{
		CategorySports: mkResults("sports", 2, 0.9),
		"":             mkResults("general", 20, 0.5),
	}}
	r := newTestRetriever(t, store, RetrieverConfig{})

	for _, limit := range []int{1, 3, 7} {
		results, err := r.Search(context.Background(), "basketball news", limit)
		if err != nil {
			t.Fatalf("Search(limit=%d): %v", limit, err)
		}
		if len(results) > limit {
			t.Errorf("limit=%d: got %d results", limit, len(results))
		}
		for i := 1; i < len(results); i++ {
			if results[i].Score > results[i-1].Score {
				t.Errorf("limit=%d: results not in non-increasing score order at %d", limit, i)
			}
		}
	}
}

// TestSearch_MinScoreThreshold verifies that the optional threshold drops
// low-scoring tail results.
func TestSearch_MinScoreThreshold(t *testing.T) {
	t.Parallel()

	store := &fakeStore{byCategory: map[Category][]Result{
		"": {
			{ID: "a", Score: 0.9, Title: "a"},
			{ID: "b", Score: 0.5, Title: "b"},
			{ID: "c", Score: 0.1, Title: "c"},
		},
	}}
	r := newTestRetriever(t, store, RetrieverConfig{MinScore: 0.4})

	results, err := r.Search(context.Background(), "untopical", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 above threshold", len(results))
	}
}

// ---------------------------------------------------------------------------
// Failure paths
// ---------------------------------------------------------------------------

// TestSearch_StoreUnreachable verifies that an index failure surfaces as an
// error wrapping ErrUnavailable rather than an empty result list.
func TestSearch_StoreUnreachable(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: fmt.Errorf("dial tcp: connection refused (%w)", ErrUnavailable)}
	r := newTestRetriever(t, store, RetrieverConfig{})

	results, err := r.Search(context.Background(), "anything", 5)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error does not wrap ErrUnavailable: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results on failure, got %v", results)
	}
}

// TestSearch_EmbedderError verifies that embedding failure propagates when
// no fail-open wrapper is in place.
func TestSearch_EmbedderError(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{err: errors.New("rate limited")}
	store := &fakeStore{}
	r, err := NewRetriever(emb, store, RetrieverConfig{})
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	if _, err := r.Search(context.Background(), "anything", 5); err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(store.searches) != 0 {
		t.Errorf("store searched despite embed failure")
	}
}

// TestNewRetriever_UnknownStrategy verifies constructor validation.
func TestNewRetriever_UnknownStrategy(t *testing.T) {
	t.Parallel()

	_, err := NewRetriever(&fakeEmbedder{}, &fakeStore{}, RetrieverConfig{Strategy: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
