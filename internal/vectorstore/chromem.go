package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub006/internal/logging"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("agentmem.vectorstore.chromem")

// insertedAtKey is the metadata key carrying the write timestamp used for
// recency tie-breaking.
const insertedAtKey = "inserted_at"

// ChromemConfig holds configuration for the embedded chromem-go backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty path creates a
	// purely in-memory store; all data is lost when the process exits.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ChromemStore implements Store using chromem-go, an embeddable pure-Go
// vector database with gob-file persistence.
//
// The store never embeds text itself. Collections are created with an
// embedding function that always fails, so any code path that would trigger
// backend-side embedding surfaces immediately instead of silently bypassing
// the pipeline's provider chain and cache.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *logging.Logger
	dims   *dimensionRegistry
}

// NewChromemStore creates a ChromemStore. A non-empty path gets a persistent
// database plus an on-disk dimension registry; an empty path gets both
// in memory.
func NewChromemStore(config ChromemConfig, logger *logging.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("vectorstore")

	var (
		db   *chromem.DB
		dims *dimensionRegistry
		err  error
	)

	if config.Path == "" {
		db = chromem.NewDB()
		dims = newMemoryDimensionRegistry()
	} else {
		if err := os.MkdirAll(config.Path, 0o700); err != nil {
			return nil, fmt.Errorf("creating vector store directory %s: %w", config.Path, err)
		}
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem DB at %s: %w", config.Path, err)
		}
		dims, err = newDimensionRegistry(config.Path)
		if err != nil {
			return nil, err
		}
	}

	store := &ChromemStore{
		db:     db,
		config: config,
		logger: logger,
		dims:   dims,
	}

	logger.Info(context.Background(), "chromem vector store initialized",
		zap.String("path", config.Path),
		zap.Bool("persistent", config.Path != ""),
		zap.Bool("compress", config.Compress),
	)

	return store, nil
}

// rejectEmbedding is the embedding function handed to chromem collections.
// Vectors are always precomputed upstream; reaching this function means a
// caller passed text without an embedding.
func rejectEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("embeddings must be precomputed by the pipeline")
}

// EnsureCollection implements Store.
func (s *ChromemStore) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.EnsureCollection")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("dimensions", dimensions),
	)

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := s.dims.register(name, dimensions); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if _, err := s.db.GetOrCreateCollection(name, nil, rejectEmbedding); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Insert implements Store. Every document must carry an embedding matching
// the collection's registered width.
func (s *ChromemStore) Insert(ctx context.Context, collection string, docs []Document) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if err := authorizeTenant(ctx, collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	chromemDocs := make([]chromem.Document, len(docs))
	ids := make([]string, len(docs))

	for i, doc := range docs {
		if doc.ID == "" {
			return nil, fmt.Errorf("document at index %d has no ID", i)
		}
		if len(doc.Embedding) == 0 {
			return nil, fmt.Errorf("document %s has no embedding", doc.ID)
		}
		if err := s.dims.check(collection, len(doc.Embedding)); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		insertedAt := doc.InsertedAt
		if insertedAt.IsZero() {
			insertedAt = timeNow()
		}

		metadata := make(map[string]string, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		metadata[insertedAtKey] = insertedAt.UTC().Format(time.RFC3339Nano)

		ids[i] = doc.ID
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  metadata,
			Embedding: doc.Embedding,
		}
	}

	col := s.db.GetCollection(collection, rejectEmbedding)
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	// Concurrency 1: embeddings are precomputed, there is no parallel work.
	if err := col.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents to %s: %w", collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug(ctx, "inserted vectors",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)
	return ids, nil
}

// Search implements Store. Results are ordered by similarity, with score
// ties broken by insertion recency (newest first).
func (s *ChromemStore) Search(ctx context.Context, collection string, vector []float32, k int) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if err := authorizeTenant(ctx, collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if err := s.dims.check(collection, len(vector)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	col := s.db.GetCollection(collection, rejectEmbedding)
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	// chromem requires nResults <= document count.
	docCount := col.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = toSearchResult(r.ID, r.Content, r.Similarity, r.Metadata)
	}
	sortByScoreThenRecency(searchResults)

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")
	return searchResults, nil
}

// Delete implements Store.
func (s *ChromemStore) Delete(ctx context.Context, collection string, ids []string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("id_count", len(ids)),
	)

	if len(ids) == 0 {
		return nil
	}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if err := authorizeTenant(ctx, collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	col := s.db.GetCollection(collection, rejectEmbedding)
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// CollectionExists implements Store.
func (s *ChromemStore) CollectionExists(_ context.Context, name string) (bool, error) {
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}
	return s.db.GetCollection(name, rejectEmbedding) != nil, nil
}

// ListCollections implements Store.
func (s *ChromemStore) ListCollections(_ context.Context) ([]string, error) {
	cols := s.db.ListCollections()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetCollectionInfo implements Store.
func (s *ChromemStore) GetCollectionInfo(_ context.Context, name string) (*CollectionInfo, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	col := s.db.GetCollection(name, rejectEmbedding)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	dims, _ := s.dims.lookup(name)
	return &CollectionInfo{
		Name:       name,
		PointCount: col.Count(),
		Dimensions: dims,
	}, nil
}

// Close implements Store. chromem persists on every write, so Close has no
// flush work.
func (s *ChromemStore) Close() error {
	return nil
}

// toSearchResult converts backend metadata, lifting the insertion timestamp
// out of the metadata map.
func toSearchResult(id, content string, score float32, metadata map[string]string) SearchResult {
	result := SearchResult{
		ID:      id,
		Content: content,
		Score:   score,
	}
	if len(metadata) > 0 {
		result.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			if k == insertedAtKey {
				if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
					result.InsertedAt = t
					continue
				}
			}
			result.Metadata[k] = v
		}
	}
	return result
}

// sortByScoreThenRecency orders results by similarity descending, breaking
// ties with the newer insertion timestamp.
func sortByScoreThenRecency(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].InsertedAt.After(results[j].InsertedAt)
	})
}
