package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// ErrUnavailable is wrapped by every QdrantStore error caused by the index
// being unreachable, so callers can distinguish "retrieval failed" from
// "no relevant results" with errors.Is.
var ErrUnavailable = fmt.Errorf("vector index unavailable")

// Payload field names used for every stored chunk.
const (
	fieldTitle       = "title"
	fieldBody        = "body"
	fieldSourceURL   = "source_url"
	fieldSourceName  = "source_name"
	fieldCategory    = "category"
	fieldPublishedAt = "published_at"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
// Creation races with other writers are tolerated: if a concurrent create wins,
// the existence check on the error path treats the collection as ready.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w (%w)", err, ErrUnavailable)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		if exists, existsErr := s.client.CollectionExists(ctx, s.cfg.Collection); existsErr == nil && exists {
			return nil
		}
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// Upsert stores or updates a batch of chunks with their embeddings.
// Duplicate IDs overwrite the existing point, which makes re-ingestion of the
// same source item idempotent.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("qdrant: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		payload := map[string]interface{}{
			fieldTitle:       c.Title,
			fieldBody:        c.Body,
			fieldSourceURL:   c.SourceURL,
			fieldSourceName:  c.SourceName,
			fieldCategory:    string(c.Category),
			fieldPublishedAt: c.PublishedAt.UTC().Format(time.RFC3339),
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w (%w)", err, ErrUnavailable)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-limit results.
// A non-empty category adds a keyword match filter so only chunks stored under
// that category are considered.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, limit int, category Category) ([]Result, error) {
	lim := uint64(limit) //nolint:gosec // limit is validated by the retriever

	query := &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if category != "" {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(fieldCategory, string(category)),
			},
		}
	}

	results, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w (%w)", err, ErrUnavailable)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		res, err := resultFromPayload(r.Id.GetUuid(), r.Score, r.Payload)
		if err != nil {
			return nil, fmt.Errorf("qdrant: invalid payload for point %s: %w", r.Id.GetUuid(), err)
		}
		out = append(out, res)
	}

	return out, nil
}

// resultFromPayload validates and converts a raw Qdrant payload into a Result.
// The payload is the adapter boundary: fields are checked here once so the
// rest of the pipeline can trust the struct.
func resultFromPayload(id string, score float32, payload map[string]*qdrant.Value) (Result, error) {
	res := Result{ID: id, Score: score}
	if payload == nil {
		return res, fmt.Errorf("missing payload")
	}

	get := func(field string) string {
		if v, ok := payload[field]; ok {
			return v.GetStringValue()
		}
		return ""
	}

	res.Title = get(fieldTitle)
	res.Body = get(fieldBody)
	res.SourceURL = get(fieldSourceURL)
	res.SourceName = get(fieldSourceName)

	if res.Title == "" {
		return res, fmt.Errorf("missing %q field", fieldTitle)
	}

	cat := get(fieldCategory)
	if cat != "" && !ValidCategory(cat) {
		return res, fmt.Errorf("unknown category %q", cat)
	}
	res.Category = Category(cat)

	if ts := get(fieldPublishedAt); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return res, fmt.Errorf("bad %q timestamp: %w", fieldPublishedAt, err)
		}
		res.PublishedAt = t
	}

	return res, nil
}

// Delete removes chunks from the collection by their IDs.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w (%w)", err, ErrUnavailable)
	}

	return nil
}

// Ping calls the Qdrant HealthCheck RPC. Used by readiness and health probes.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
