package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/newschat-go/internal/archive"
	"github.com/54b3r/newschat-go/internal/embedder"
	"github.com/54b3r/newschat-go/internal/ingestion"
	"github.com/54b3r/newschat-go/internal/logging"
	"github.com/54b3r/newschat-go/internal/rag"
)

// NewIngestCmd constructs the `newschat ingest` command, which fetches the
// configured news feeds and indexes them into the Qdrant vector store.
func NewIngestCmd() *cobra.Command {
	var urls []string
	var category string
	var sourceName string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest news feeds into the vector store",
		Long: `Fetch configured news feeds and index their articles into Qdrant.

Sources come from the YAML config file (ingestion.sources); ad-hoc feeds can
be added with repeated --url flags, all sharing one --category label.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: newschat-articles)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  newschat ingest
  newschat ingest --url https://newsapi.example.com/v2/top-headlines?category=technology --category technology
  NEWSCHAT_ARCHIVE_DB=disabled newschat ingest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			sources := configuredSources()
			for _, u := range urls {
				sources = append(sources, ingestion.Source{
					Name:     sourceName,
					URL:      u,
					Category: rag.Category(category),
				})
			}
			if len(sources) == 0 {
				return fmt.Errorf("ingest: no sources configured; add ingestion.sources to the config file or pass --url")
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", embedder.ResolveBackend()))

			store, err := buildVectorStore(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			mirror, closeMirror := openArchive(log)
			defer closeMirror()

			pipeline, err := ingestion.NewPipeline(emb, store, mirror, nil)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			log.Info("starting ingestion", slog.Int("sources", len(sources)))

			report, err := pipeline.Run(ctx, sources)
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			for name, srcErr := range report.SourcesFailed {
				log.Warn("source failed", slog.String("source", name), slog.Any("error", srcErr))
			}
			log.Info("ingestion complete",
				slog.Int("sources", report.SourcesTotal),
				slog.Int("failed", len(report.SourcesFailed)),
				slog.Int("articles_seen", report.ArticlesSeen),
				slog.Int("articles_skipped", report.ArticlesSkipped),
				slog.Int("chunks_stored", report.ChunksStored),
			)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Ad-hoc feed URL to ingest (repeatable)")
	cmd.Flags().StringVarP(&category, "category", "c", "world", "Category label for --url feeds")
	cmd.Flags().StringVarP(&sourceName, "source", "s", "adhoc", "Source name for --url feeds")

	return cmd
}

// configuredSources converts the YAML ingestion source list into pipeline
// sources.
func configuredSources() []ingestion.Source {
	if loadedConfig == nil {
		return nil
	}
	sources := make([]ingestion.Source, 0, len(loadedConfig.Ingestion.Sources))
	for _, src := range loadedConfig.Ingestion.Sources {
		sources = append(sources, ingestion.Source{
			Name:     src.Name,
			URL:      src.URL,
			Category: rag.Category(src.Category),
		})
	}
	return sources
}

// openArchive opens the SQLite article archive mirror. NEWSCHAT_ARCHIVE_DB
// overrides the default path (~/.newschat/articles.db); set to "disabled" to
// skip mirroring. Failures disable the mirror with a warning — ingestion
// proceeds without it.
func openArchive(log *slog.Logger) (ingestion.Mirror, func()) {
	noop := func() {}

	dbPath := os.Getenv("NEWSCHAT_ARCHIVE_DB")
	if dbPath == "disabled" {
		log.Info("archive: disabled via NEWSCHAT_ARCHIVE_DB=disabled")
		return nil, noop
	}
	if dbPath == "" {
		var err error
		dbPath, err = archive.DefaultDBPath()
		if err != nil {
			log.Warn("archive: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, noop
		}
	}

	arc, err := archive.Open(dbPath)
	if err != nil {
		log.Warn("archive: failed to open, disabling", slog.Any("error", err))
		return nil, noop
	}
	log.Info("archive: opened", slog.String("path", dbPath))
	return arc, func() { _ = arc.Close() }
}
