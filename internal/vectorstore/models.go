package vectorstore

import "time"

// Document is a vector-bearing record to be stored.
type Document struct {
	// ID is the unique identifier for the document. Required; the caller
	// owns ID generation so the vector store stays a pure index.
	ID string

	// Content is the text the embedding was computed from. Stored verbatim
	// so search results are self-describing.
	Content string

	// Embedding is the precomputed vector. Required and non-empty; its
	// width must match the target collection.
	Embedding []float32

	// Metadata contains additional string key-value pairs carried with the
	// vector (entity type, category, source).
	Metadata map[string]string

	// InsertedAt is the write timestamp used for recency tie-breaking.
	// Zero value means "now".
	InsertedAt time.Time
}

// SearchResult is a scored document returned from similarity search.
type SearchResult struct {
	// ID is the document identifier.
	ID string

	// Content is the stored document text.
	Content string

	// Score is the cosine similarity (higher = more similar).
	Score float32

	// Metadata contains the stored document metadata.
	Metadata map[string]string

	// InsertedAt is the document's write timestamp, when recorded.
	InsertedAt time.Time
}
