// Package knowledge holds the retrieval side of the pipeline: document and
// chunk types, the overlap-aware text splitter, and the persistent embedding
// index used for similarity search.
package knowledge

import "fmt"

// Document is the unit handed to ingestion by the extraction layer.
// It is immutable once created; the core never parses raw bytes itself.
type Document struct {
	ID       string
	Text     string
	Source   string
	Metadata map[string]any
}

// Chunk is a bounded slice of a document's text, the unit of embedding and
// retrieval. Core-defined fields are first-class; Metadata carries only
// caller-supplied values copied from the parent document.
type Chunk struct {
	ID          string
	Text        string
	SourceID    string
	ChunkIndex  int
	TotalChunks int
	Metadata    map[string]any
}

// ChunkID builds the deterministic chunk identifier for a document.
// Re-ingesting the same document yields the same ids, so an upsert
// overwrites rather than duplicates.
func ChunkID(sourceID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", sourceID, index)
}

// ScoredChunk is a chunk paired with its similarity score for a query.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// CollectionInfo describes the stored collection.
type CollectionInfo struct {
	DocumentCount int `json:"documentCount"`
	Dimension     int `json:"dimension"`
}
