// Package vectorstore provides tenant-scoped vector storage with dimension
// validation, backed by an embedded database or an external Qdrant server.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch is returned when a vector's width does not match
	// the collection it targets. Vectors of differing widths must never be
	// mixed in one collection; the write is rejected, never coerced.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrConnectionFailed indicates the remote backend is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against security rules.
// Rejects uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// CollectionInfo contains metadata about a vector collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// PointCount is the number of vectors in the collection.
	PointCount int `json:"point_count"`

	// Dimensions is the width of vectors in this collection.
	Dimensions int `json:"dimensions"`
}

// Store is the interface for tenant-scoped vector storage.
//
// Collections are the isolation unit: every collection name is derived from
// an entity type plus a tenant identifier (see CollectionKey), so one
// tenant's vectors are never reachable from another tenant's collection.
//
// Stores operate on precomputed vectors. Embedding happens upstream in the
// provider pipeline; passing raw text to a store is not possible by design,
// which keeps the single process-wide embedding cache authoritative.
//
// Dimension discipline: the first write to a collection fixes its width.
// Every subsequent insert and search against that collection must carry
// vectors of exactly that width or the operation fails with
// ErrDimensionMismatch.
type Store interface {
	// EnsureCollection creates the collection if it does not exist and
	// registers its vector width. Calling it again with the same width is
	// a no-op; calling it with a different width returns
	// ErrDimensionMismatch.
	EnsureCollection(ctx context.Context, name string, dimensions int) error

	// Insert stores documents with their precomputed embeddings.
	// Every document must carry a non-empty embedding whose width matches
	// the collection. Returns the stored document IDs.
	Insert(ctx context.Context, collection string, docs []Document) ([]string, error)

	// Search returns up to k documents most similar to the query vector,
	// ordered by similarity (highest first). Score ties are broken by
	// recency, newer documents first.
	Search(ctx context.Context, collection string, vector []float32, k int) ([]SearchResult, error)

	// Delete removes documents by ID from a collection. Unknown IDs are
	// ignored.
	Delete(ctx context.Context, collection string, ids []string) error

	// CollectionExists reports whether a collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollectionInfo returns metadata about a collection, including its
	// registered vector width. Returns ErrCollectionNotFound if missing.
	GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	// Close releases backend resources and flushes pending state.
	Close() error
}
