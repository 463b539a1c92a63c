package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Embedder computes dense vector representations for a batch of texts.
// Embeddings[i] corresponds to texts[i]. Implementations live in infra/llm.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelID() string
}

// Index is the persistent embedding index. Vectors, chunk text and metadata
// are stored in SQLite keyed by chunk id; an in-memory mirror serves search
// so a query never touches the disk. Every stored vector has the dimension
// fixed when the first vector was written.
//
// Writes are serialized and each Upsert batch is a single transaction, so a
// concurrent reader observes either the pre-batch or the post-batch state,
// never a mixture. A crash mid-write loses at most the uncommitted batch.
type Index struct {
	db       *sql.DB
	embedder Embedder

	mu      sync.RWMutex
	entries map[string]indexEntry
	dim     int
}

type indexEntry struct {
	chunk  Chunk
	vector []float32
}

// NewIndex loads all persisted vectors from db before the index accepts any
// search. Unreadable or malformed persisted state is fatal: the constructor
// returns an error wrapping ErrIndexCorrupt rather than serving from a store
// it cannot trust.
func NewIndex(db *sql.DB, embedder Embedder) (*Index, error) {
	idx := &Index{
		db:       db,
		embedder: embedder,
		entries:  make(map[string]indexEntry),
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (x *Index) load() error {
	var dimStr string
	err := x.db.QueryRow(`SELECT value FROM collection_meta WHERE key = 'dimension'`).Scan(&dimStr)
	switch {
	case err == sql.ErrNoRows:
		// fresh collection, dimension fixed on first upsert
	case err != nil:
		return fmt.Errorf("%w: read collection meta: %v", ErrIndexCorrupt, err)
	default:
		if _, scanErr := fmt.Sscanf(dimStr, "%d", &x.dim); scanErr != nil || x.dim <= 0 {
			return fmt.Errorf("%w: invalid stored dimension %q", ErrIndexCorrupt, dimStr)
		}
	}

	rows, err := x.db.Query(`SELECT id, source_id, chunk_index, total_chunks, text, metadata, embedding FROM chunk`)
	if err != nil {
		return fmt.Errorf("%w: read chunks: %v", ErrIndexCorrupt, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c        Chunk
			metaJSON sql.NullString
			vecJSON  string
		)
		if scanErr := rows.Scan(&c.ID, &c.SourceID, &c.ChunkIndex, &c.TotalChunks, &c.Text, &metaJSON, &vecJSON); scanErr != nil {
			return fmt.Errorf("%w: scan chunk: %v", ErrIndexCorrupt, scanErr)
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if metaErr := json.Unmarshal([]byte(metaJSON.String), &c.Metadata); metaErr != nil {
				return fmt.Errorf("%w: chunk %s metadata: %v", ErrIndexCorrupt, c.ID, metaErr)
			}
		}
		vec, decErr := decodeVector(vecJSON)
		if decErr != nil {
			return fmt.Errorf("%w: chunk %s embedding: %v", ErrIndexCorrupt, c.ID, decErr)
		}
		if x.dim == 0 {
			x.dim = len(vec)
		}
		if len(vec) != x.dim {
			return fmt.Errorf("%w: chunk %s has dimension %d, collection has %d", ErrIndexCorrupt, c.ID, len(vec), x.dim)
		}
		x.entries[c.ID] = indexEntry{chunk: c, vector: vec}
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return fmt.Errorf("%w: iterate chunks: %v", ErrIndexCorrupt, rowsErr)
	}
	return nil
}

// Upsert embeds every chunk in the batch and stores the results keyed by
// chunk id. All chunks belonging to a source id present in the batch are
// replaced, so re-ingesting a document overwrites its previous chunk set.
// An embedding failure aborts the whole batch: either every chunk in the
// call is stored or none are. The index never retries the embedder.
func (x *Index) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return &EmbeddingError{Err: err}
	}
	if len(vecs) != len(chunks) {
		return &EmbeddingError{Err: fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(chunks))}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dim := x.dim
	for i, vec := range vecs {
		if len(vec) == 0 {
			return &EmbeddingError{Err: fmt.Errorf("empty vector for chunk %s", chunks[i].ID)}
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return fmt.Errorf("%w: chunk %s has dimension %d, collection has %d", ErrDimensionMismatch, chunks[i].ID, len(vec), dim)
		}
	}

	if err := x.persistBatch(ctx, chunks, vecs, dim); err != nil {
		return err
	}

	// Disk committed; update the mirror under the same write lock so readers
	// see the batch atomically.
	sources := make(map[string]struct{}, 1)
	for _, c := range chunks {
		sources[c.SourceID] = struct{}{}
	}
	for id, e := range x.entries {
		if _, ok := sources[e.chunk.SourceID]; ok {
			delete(x.entries, id)
		}
	}
	for i, c := range chunks {
		x.entries[c.ID] = indexEntry{chunk: c, vector: vecs[i]}
	}
	x.dim = dim
	return nil
}

// persistBatch writes the batch in one transaction: stale chunks of the
// touched sources go first, then the new rows and the collection dimension.
func (x *Index) persistBatch(ctx context.Context, chunks []Chunk, vecs [][]float32, dim int) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	seen := make(map[string]struct{}, 1)
	for _, c := range chunks {
		if _, ok := seen[c.SourceID]; ok {
			continue
		}
		seen[c.SourceID] = struct{}{}
		if _, delErr := tx.ExecContext(ctx, `DELETE FROM chunk WHERE source_id = ?`, c.SourceID); delErr != nil {
			return fmt.Errorf("index: clear source %s: %w", c.SourceID, delErr)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i, c := range chunks {
		metaJSON, metaErr := encodeMetadata(c.Metadata)
		if metaErr != nil {
			return fmt.Errorf("index: encode metadata for %s: %w", c.ID, metaErr)
		}
		vecJSON, vecErr := encodeVector(vecs[i])
		if vecErr != nil {
			return fmt.Errorf("index: encode vector for %s: %w", c.ID, vecErr)
		}
		if _, insErr := tx.ExecContext(ctx,
			`INSERT INTO chunk (id, source_id, chunk_index, total_chunks, text, metadata, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   source_id = excluded.source_id,
			   chunk_index = excluded.chunk_index,
			   total_chunks = excluded.total_chunks,
			   text = excluded.text,
			   metadata = excluded.metadata,
			   embedding = excluded.embedding`,
			c.ID, c.SourceID, c.ChunkIndex, c.TotalChunks, c.Text, metaJSON, vecJSON, now,
		); insErr != nil {
			return fmt.Errorf("index: insert chunk %s: %w", c.ID, insErr)
		}
	}

	if _, metaErr := tx.ExecContext(ctx,
		`INSERT INTO collection_meta (key, value) VALUES ('dimension', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprintf("%d", dim),
	); metaErr != nil {
		return fmt.Errorf("index: store dimension: %w", metaErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("index: commit batch: %w", commitErr)
	}
	return nil
}

// Search embeds the query and returns the topK stored chunks with the highest
// cosine similarity, sorted by descending score with ties broken by ascending
// chunk id. An empty index yields an empty result, never an error.
func (x *Index) Search(ctx context.Context, query string, topK int) ([]ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, Validationf("query must not be empty")
	}
	if topK <= 0 {
		return nil, Validationf("topK must be positive, got %d", topK)
	}

	x.mu.RLock()
	empty := len(x.entries) == 0
	x.mu.RUnlock()
	if empty {
		return []ScoredChunk{}, nil
	}

	vecs, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}
	if len(vecs) != 1 {
		return nil, &EmbeddingError{Err: fmt.Errorf("embedder returned %d vectors for one query", len(vecs))}
	}
	queryVec := vecs[0]

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(queryVec) != x.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, collection has %d", ErrDimensionMismatch, len(queryVec), x.dim)
	}

	scored := make([]ScoredChunk, 0, len(x.entries))
	for _, e := range x.entries {
		scored = append(scored, ScoredChunk{Chunk: e.chunk, Score: cosineSimilarity(queryVec, e.vector)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.ID < scored[j].Chunk.ID
	})
	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}

// EmbeddingModel identifies the embedder the index was opened with.
func (x *Index) EmbeddingModel() string {
	return x.embedder.ModelID()
}

// CollectionInfo reports the stored chunk count and the fixed vector
// dimension (0 while the collection is empty).
func (x *Index) CollectionInfo() CollectionInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return CollectionInfo{DocumentCount: len(x.entries), Dimension: x.dim}
}

// cosineSimilarity returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// encodeVector serializes a float32 slice to JSON text, e.g. "[0.1,0.2]".
func encodeVector(vec []float32) (string, error) {
	b, err := json.Marshal(vec)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeVector is the inverse of encodeVector.
func decodeVector(jsonStr string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(jsonStr), &vec); err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	return vec, nil
}

func encodeMetadata(meta map[string]any) (sql.NullString, error) {
	if len(meta) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
