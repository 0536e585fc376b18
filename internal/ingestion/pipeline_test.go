package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/54b3r/newschat-go/internal/rag"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

type fakeStore struct {
	mu     sync.Mutex
	chunks []rag.Chunk
	err    error
}

func (f *fakeStore) Upsert(ctx context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.chunks = append(f.chunks, chunks...)
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) Search(ctx context.Context, queryEmbedding []float32, limit int, category rag.Category) ([]rag.Result, error) {
	return nil, nil
}

func (f *fakeStore) Delete(ctx context.Context, ids []string) error { return nil }
func (f *fakeStore) Close() error                                   { return nil }

type fakeMirror struct {
	mu     sync.Mutex
	chunks []rag.Chunk
	err    error
}

func (f *fakeMirror) SaveChunks(ctx context.Context, chunks []rag.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.chunks = append(f.chunks, chunks...)
	f.mu.Unlock()
	return nil
}

// feedJSON builds a NewsAPI-style response body with n well-formed articles.
func feedJSON(n int) string {
	var b strings.Builder
	b.WriteString(`{"status":"ok","articles":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b,
			`{"source":{"name":"Example Wire"},"title":"Central bank raises rates again %d","description":"The central bank raised its benchmark rate for the third consecutive meeting.","content":"","url":"https://example.com/articles/%d","publishedAt":"2026-08-29T10:00:00Z"}`,
			i, i)
	}
	b.WriteString(`]}`)
	return b.String()
}

func newFeedServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPipelineRunStoresChunks(t *testing.T) {
	t.Parallel()

	srv := newFeedServer(t, feedJSON(3), http.StatusOK)

	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	mirror := &fakeMirror{}

	p, err := NewPipeline(embedder, store, mirror, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	report, err := p.Run(context.Background(), []Source{
		{Name: "Example Wire", URL: srv.URL, Category: rag.CategoryBusiness},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.ArticlesSeen != 3 {
		t.Errorf("ArticlesSeen = %d, want 3", report.ArticlesSeen)
	}
	if report.ChunksStored != 3 {
		t.Errorf("ChunksStored = %d, want 3", report.ChunksStored)
	}
	if len(store.chunks) != 3 {
		t.Fatalf("store has %d chunks, want 3", len(store.chunks))
	}
	if len(mirror.chunks) != 3 {
		t.Errorf("mirror has %d chunks, want 3", len(mirror.chunks))
	}

	c := store.chunks[0]
	if c.Category != rag.CategoryBusiness {
		t.Errorf("chunk category = %q, want %q", c.Category, rag.CategoryBusiness)
	}
	if c.SourceName != "Example Wire" {
		t.Errorf("chunk source name = %q", c.SourceName)
	}
	if c.ID == "" {
		t.Error("chunk ID is empty")
	}
}

func TestPipelineSkipsShortArticles(t *testing.T) {
	t.Parallel()

	body := `{"status":"ok","articles":[
		{"source":{"name":"Wire"},"title":"Too short","description":"Also far too short.","url":"https://example.com/a","publishedAt":"2026-08-29T10:00:00Z"},
		{"source":{"name":"Wire"},"title":"A perfectly sized headline for testing","description":"A body long enough to pass the minimum body length threshold easily.","url":"https://example.com/b","publishedAt":"2026-08-29T10:00:00Z"}
	]}`
	srv := newFeedServer(t, body, http.StatusOK)

	store := &fakeStore{}
	p, err := NewPipeline(&fakeEmbedder{}, store, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	report, err := p.Run(context.Background(), []Source{
		{Name: "Wire", URL: srv.URL, Category: rag.CategoryWorld},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.ArticlesSkipped != 1 {
		t.Errorf("ArticlesSkipped = %d, want 1", report.ArticlesSkipped)
	}
	if report.ChunksStored != 1 {
		t.Errorf("ChunksStored = %d, want 1", report.ChunksStored)
	}
}

func TestPipelineTruncatesLongBodies(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 5000)
	body := fmt.Sprintf(
		`{"status":"ok","articles":[{"source":{"name":"Wire"},"title":"A headline long enough to keep","content":%q,"url":"https://example.com/long","publishedAt":"2026-08-29T10:00:00Z"}]}`,
		long)
	srv := newFeedServer(t, body, http.StatusOK)

	store := &fakeStore{}
	p, err := NewPipeline(&fakeEmbedder{}, store, nil, &Config{MaxBodyLen: 100})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	if _, err := p.Run(context.Background(), []Source{
		{Name: "Wire", URL: srv.URL, Category: rag.CategoryTechnology},
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.chunks) != 1 {
		t.Fatalf("store has %d chunks, want 1", len(store.chunks))
	}
	if got := len(store.chunks[0].Body); got != 100 {
		t.Errorf("body length = %d, want 100", got)
	}
}

func TestPipelineContinuesOnSourceFailure(t *testing.T) {
	t.Parallel()

	good := newFeedServer(t, feedJSON(2), http.StatusOK)
	bad := newFeedServer(t, "upstream exploded", http.StatusBadGateway)

	store := &fakeStore{}
	p, err := NewPipeline(&fakeEmbedder{}, store, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	report, err := p.Run(context.Background(), []Source{
		{Name: "Broken", URL: bad.URL, Category: rag.CategoryWorld},
		{Name: "Healthy", URL: good.URL, Category: rag.CategorySports},
	})
	if err != nil {
		t.Fatalf("Run returned error despite one healthy source: %v", err)
	}

	if len(report.SourcesFailed) != 1 {
		t.Fatalf("SourcesFailed = %v, want exactly one entry", report.SourcesFailed)
	}
	if _, ok := report.SourcesFailed["Broken"]; !ok {
		t.Errorf("expected Broken in SourcesFailed, got %v", report.SourcesFailed)
	}
	if report.ChunksStored != 2 {
		t.Errorf("ChunksStored = %d, want 2", report.ChunksStored)
	}
}

func TestPipelineAllSourcesFailed(t *testing.T) {
	t.Parallel()

	bad := newFeedServer(t, "nope", http.StatusInternalServerError)

	p, err := NewPipeline(&fakeEmbedder{}, &fakeStore{}, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	report, err := p.Run(context.Background(), []Source{
		{Name: "A", URL: bad.URL, Category: rag.CategoryWorld},
		{Name: "B", URL: bad.URL, Category: rag.CategoryCrypto},
	})
	if err == nil {
		t.Fatal("expected error when every source fails")
	}
	if len(report.SourcesFailed) != 2 {
		t.Errorf("SourcesFailed = %v, want two entries", report.SourcesFailed)
	}
}

func TestPipelineRejectsUnknownCategory(t *testing.T) {
	t.Parallel()

	p, err := NewPipeline(&fakeEmbedder{}, &fakeStore{}, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	report, err := p.Run(context.Background(), []Source{
		{Name: "Odd", URL: "http://127.0.0.1:1", Category: "gossip"},
	})
	if err == nil {
		t.Fatal("expected error for unknown category")
	}
	if _, ok := report.SourcesFailed["Odd"]; !ok {
		t.Errorf("expected Odd in SourcesFailed, got %v", report.SourcesFailed)
	}
}

func TestPipelineMirrorFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	srv := newFeedServer(t, feedJSON(1), http.StatusOK)

	store := &fakeStore{}
	mirror := &fakeMirror{err: errors.New("disk full")}

	p, err := NewPipeline(&fakeEmbedder{}, store, mirror, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	report, err := p.Run(context.Background(), []Source{
		{Name: "Wire", URL: srv.URL, Category: rag.CategoryScience},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ChunksStored != 1 {
		t.Errorf("ChunksStored = %d, want 1", report.ChunksStored)
	}
}

func TestChunkIDDeterministic(t *testing.T) {
	t.Parallel()

	a := ChunkID("https://example.com/articles/1")
	b := ChunkID("https://example.com/articles/1")
	c := ChunkID("https://example.com/articles/2")

	if a != b {
		t.Errorf("same URL produced different IDs: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different URLs produced the same ID")
	}
}

func TestFetchFeedReportsFeedError(t *testing.T) {
	t.Parallel()

	srv := newFeedServer(t, `{"status":"error","message":"apiKeyInvalid"}`, http.StatusOK)

	p, err := NewPipeline(&fakeEmbedder{}, &fakeStore{}, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	_, err = p.fetchFeed(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "apiKeyInvalid") {
		t.Errorf("expected apiKeyInvalid error, got %v", err)
	}
}

func TestFetchFeedTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	p, err := NewPipeline(&fakeEmbedder{}, &fakeStore{}, nil, &Config{HTTPTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	if _, err := p.fetchFeed(context.Background(), srv.URL); err == nil {
		t.Fatal("expected timeout error")
	}
}
