// Package ingestion implements the news ingestion pipeline.
// It fetches headline feeds for each configured source, filters and truncates
// the articles, embeds title + body, and upserts the results into the vector
// store. Each source belongs to exactly one category, which is how chunks
// acquire their topical label.
// The pipeline is invoked by the `newschat ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/newschat-go/internal/logging"
	"github.com/54b3r/newschat-go/internal/rag"
)

// Source describes one news feed to be ingested.
type Source struct {
	// Name is the human-readable publisher name stored with each chunk.
	Name string `yaml:"name"`

	// URL is the feed endpoint returning a NewsAPI-style JSON article list.
	URL string `yaml:"url"`

	// Category is the topical label assigned to every article from this
	// source.
	Category rag.Category `yaml:"category"`
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// MinTitleLen is the minimum title length for an article to be stored.
	// Defaults to 10 if zero.
	MinTitleLen int

	// MinBodyLen is the minimum body length for an article to be stored.
	// Defaults to 40 if zero.
	MinBodyLen int

	// MaxBodyLen is the maximum stored body length; longer bodies are
	// truncated. Defaults to 2000 if zero.
	MaxBodyLen int

	// EmbedBatchSize is the number of articles embedded per provider call.
	// Defaults to 16 if zero.
	EmbedBatchSize int

	// HTTPTimeout is the timeout for each feed fetch. Defaults to 30s.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with feed requests.
	UserAgent string
}

// Report summarises one ingestion run.
type Report struct {
	// SourcesTotal is the number of sources attempted.
	SourcesTotal int

	// SourcesFailed maps failed source names to their error. Partial
	// failure is expected operation, not a pipeline error.
	SourcesFailed map[string]error

	// ArticlesSeen is the number of articles fetched across all sources.
	ArticlesSeen int

	// ArticlesSkipped is the number dropped by the length thresholds.
	ArticlesSkipped int

	// ChunksStored is the number of chunks upserted into the vector store.
	ChunksStored int
}

// Mirror receives a copy of every stored chunk. It exists for the optional
// relational archive; mirror failures never abort ingestion.
type Mirror interface {
	// SaveChunks persists the chunks to the mirror.
	SaveChunks(ctx context.Context, chunks []rag.Chunk) error
}

// Pipeline orchestrates the fetch → filter → embed → upsert flow for a set
// of news sources.
type Pipeline struct {
	// embedder converts article text into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// mirror optionally archives stored chunks relationally. May be nil.
	mirror Mirror

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient is the HTTP client used for fetching feeds.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
// mirror may be nil to disable relational archiving.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, mirror Mirror, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.MinTitleLen <= 0 {
		cfg.MinTitleLen = 10
	}
	if cfg.MinBodyLen <= 0 {
		cfg.MinBodyLen = 40
	}
	if cfg.MaxBodyLen <= 0 {
		cfg.MaxBodyLen = 2000
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 16
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "newschat-go/1.0 (news ingestion)"
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		mirror:   mirror,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Run ingests all sources sequentially. A failing source is logged, recorded
// in the report, and skipped — remaining sources always proceed. The returned
// error is non-nil only when every source failed.
func (p *Pipeline) Run(ctx context.Context, sources []Source) (*Report, error) {
	log := logging.FromContext(ctx)

	report := &Report{
		SourcesTotal:  len(sources),
		SourcesFailed: make(map[string]error),
	}

	for _, src := range sources {
		if err := p.ingestSource(ctx, src, report); err != nil {
			report.SourcesFailed[src.Name] = err
			log.Warn("ingestion: source failed, skipping",
				slog.String("source", src.Name),
				slog.String("category", string(src.Category)),
				slog.Any("error", err),
			)
		}
	}

	if len(sources) > 0 && len(report.SourcesFailed) == len(sources) {
		return report, fmt.Errorf("ingestion: all %d sources failed", len(sources))
	}
	return report, nil
}

// ingestSource fetches, filters, embeds, and stores one source's articles.
func (p *Pipeline) ingestSource(ctx context.Context, src Source, report *Report) error {
	log := logging.FromContext(ctx)

	if !rag.ValidCategory(string(src.Category)) {
		return fmt.Errorf("unknown category %q for source %s", src.Category, src.Name)
	}

	articles, err := p.fetchFeed(ctx, src.URL)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", src.URL, err)
	}
	report.ArticlesSeen += len(articles)

	chunks := make([]rag.Chunk, 0, len(articles))
	for _, a := range articles {
		chunk, ok := p.chunkFromArticle(a, src)
		if !ok {
			report.ArticlesSkipped++
			continue
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		log.Info("ingestion: no storable articles", slog.String("source", src.Name))
		return nil
	}

	for start := 0; start < len(chunks); start += p.cfg.EmbedBatchSize {
		end := min(start+p.cfg.EmbedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Title + "\n" + c.Body
		}

		embeddings, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}

		if err := p.store.Upsert(ctx, batch, embeddings); err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
		report.ChunksStored += len(batch)

		if p.mirror != nil {
			if err := p.mirror.SaveChunks(ctx, batch); err != nil {
				log.Warn("ingestion: archive mirror failed",
					slog.String("source", src.Name),
					slog.Any("error", err),
				)
			}
		}
	}

	log.Info("ingestion: source done",
		slog.String("source", src.Name),
		slog.Int("stored", len(chunks)),
	)
	return nil
}

// chunkFromArticle converts a feed article into a storable chunk, applying
// the length thresholds and body truncation. Articles below the thresholds
// are never stored.
func (p *Pipeline) chunkFromArticle(a Article, src Source) (rag.Chunk, bool) {
	body := a.Content
	if body == "" {
		body = a.Description
	}

	if len(a.Title) < p.cfg.MinTitleLen || len(body) < p.cfg.MinBodyLen {
		return rag.Chunk{}, false
	}
	if len(body) > p.cfg.MaxBodyLen {
		body = body[:p.cfg.MaxBodyLen]
	}

	return rag.Chunk{
		ID:          ChunkID(a.URL),
		Title:       a.Title,
		Body:        body,
		SourceURL:   a.URL,
		SourceName:  src.Name,
		Category:    src.Category,
		PublishedAt: a.PublishedAt,
	}, true
}

// ChunkID derives a deterministic UUID from the article URL, so re-ingesting
// the same item overwrites its existing point instead of duplicating it.
func ChunkID(articleURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(articleURL)).String()
}
