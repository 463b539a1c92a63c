// Package rag composes the splitter, the embedding index and the provider
// registry into the retrieval-augmented generation flow: ingest documents,
// retrieve relevant chunks, assemble a grounded prompt, generate an answer.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/contexta-ai/contexta/internal/domain/knowledge"
	"github.com/contexta-ai/contexta/internal/infra/llm"
)

// InsufficientContextMessage is returned by Answer when retrieval finds no
// chunks. Short-circuiting here instead of calling a provider with empty
// context avoids hallucinated answers.
const InsufficientContextMessage = "I don't have enough information to answer that question. " +
	"Please try rephrasing or ask about a different topic."

// noProviderMessage is the soft failure text when no provider is registered
// or reachable. Retrieval stays available even when generation is not.
const noProviderMessage = "No language model is currently available to generate an answer. " +
	"Please configure a provider and try again."

const systemPromptHeader = "You are a helpful assistant. Answer the question using ONLY the " +
	"context provided below. If the context does not contain enough information to answer, " +
	"say that you don't have enough information. Do not make up facts.\n\nContext:\n"

// IngestionError wraps a failure during document ingestion with the id of
// the document it occurred on.
type IngestionError struct {
	DocumentID string
	Err        error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest document %s: %v", e.DocumentID, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// IngestSummary reports what an Ingest call processed.
type IngestSummary struct {
	DocumentsIn  int `json:"documentsIn"`
	ChunksStored int `json:"chunksStored"`
}

// PipelineInfo is a read-only snapshot of the pipeline configuration and the
// state of its collaborators.
type PipelineInfo struct {
	ChunkSize      int                      `json:"chunkSize"`
	ChunkOverlap   int                      `json:"chunkOverlap"`
	TopK           int                      `json:"topK"`
	EmbeddingModel string                   `json:"embeddingModel"`
	Collection     knowledge.CollectionInfo `json:"collection"`
	Providers      []string                 `json:"providers"`
	ActiveProvider string                   `json:"activeProvider"`
}

// Pipeline orchestrates ingestion and question answering. It holds shared
// references to the index and registry; both outlive any single request.
type Pipeline struct {
	splitter *knowledge.Splitter
	index    *knowledge.Index
	registry *llm.Registry
	topK     int
	timeout  time.Duration
	log      *slog.Logger
}

// NewPipeline wires the pipeline. topK must be positive; timeout bounds each
// provider call, generation and embedding alike (0 means no bound).
func NewPipeline(splitter *knowledge.Splitter, index *knowledge.Index, registry *llm.Registry, topK int, timeout time.Duration, log *slog.Logger) (*Pipeline, error) {
	if topK <= 0 {
		return nil, knowledge.Validationf("topK must be positive, got %d", topK)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		splitter: splitter,
		index:    index,
		registry: registry,
		topK:     topK,
		timeout:  timeout,
		log:      log,
	}, nil
}

// Ingest splits each document and upserts its chunks. Documents are
// committed one at a time, so a failure on the Nth document leaves the first
// N-1 stored. An empty input is valid and yields {0, 0}.
func (p *Pipeline) Ingest(ctx context.Context, docs []knowledge.Document) (IngestSummary, error) {
	summary := IngestSummary{}
	for _, doc := range docs {
		pieces := p.splitter.Split(doc.Text)
		chunks := make([]knowledge.Chunk, len(pieces))
		for i, text := range pieces {
			chunks[i] = knowledge.Chunk{
				ID:          knowledge.ChunkID(doc.ID, i),
				Text:        text,
				SourceID:    doc.ID,
				ChunkIndex:  i,
				TotalChunks: len(pieces),
				Metadata:    doc.Metadata,
			}
		}
		upsertCtx, cancel := p.bound(ctx)
		err := p.index.Upsert(upsertCtx, chunks)
		cancel()
		if err != nil {
			return summary, &IngestionError{DocumentID: doc.ID, Err: err}
		}
		summary.DocumentsIn++
		summary.ChunksStored += len(chunks)
		p.log.Info("document ingested", "documentId", doc.ID, "chunks", len(chunks))
	}
	return summary, nil
}

// Answer retrieves the topK most relevant chunks for query and asks a
// provider for a grounded answer. With no retrieval hits it returns the
// fixed insufficient-context message without touching a provider. Provider
// failures come back as a user-facing string, not an error; a blank query is
// a ValidationError and is never softened.
func (p *Pipeline) Answer(ctx context.Context, query, provider string) (string, error) {
	searchCtx, cancel := p.bound(ctx)
	hits, err := p.index.Search(searchCtx, query, p.topK)
	cancel()
	if err != nil {
		if knowledge.IsValidation(err) {
			return "", err
		}
		p.log.Error("retrieval failed", "error", err)
		return fmt.Sprintf("Retrieval failed: %v. Please try again.", err), nil
	}
	if len(hits) == 0 {
		p.log.Info("no chunks retrieved, degraded response", "query", query)
		return InsufficientContextMessage, nil
	}

	turns := []llm.Turn{
		{Role: llm.RoleSystem, Content: buildSystemPrompt(hits)},
		{Role: llm.RoleUser, Content: query},
	}
	return p.generate(ctx, provider, turns, len(hits)), nil
}

// Chat validates the conversation and answers the last user turn. The turns
// must be non-empty and end with a user turn; anything else is a
// ValidationError.
func (p *Pipeline) Chat(ctx context.Context, turns []llm.Turn, provider string) (string, error) {
	if len(turns) == 0 {
		return "", knowledge.Validationf("conversation must contain at least one turn")
	}
	last := turns[len(turns)-1]
	if last.Role != llm.RoleUser {
		return "", knowledge.Validationf("last turn must have role %q, got %q", llm.RoleUser, last.Role)
	}
	return p.Answer(ctx, last.Content, provider)
}

// Info returns a descriptive snapshot. No side effects.
func (p *Pipeline) Info() PipelineInfo {
	return PipelineInfo{
		ChunkSize:      p.splitter.ChunkSize(),
		ChunkOverlap:   p.splitter.Overlap(),
		TopK:           p.topK,
		EmbeddingModel: p.index.EmbeddingModel(),
		Collection:     p.index.CollectionInfo(),
		Providers:      p.registry.Names(),
		ActiveProvider: p.registry.ActiveName(),
	}
}

// generate runs the provider call under the configured timeout and converts
// any failure into user-facing text. This is the only place provider errors
// are softened.
func (p *Pipeline) generate(ctx context.Context, provider string, turns []llm.Turn, retrieved int) string {
	genCtx, cancel := p.bound(ctx)
	defer cancel()
	out, err := p.registry.Generate(genCtx, provider, turns)
	if err != nil {
		p.log.Error("generation failed", "provider", provider, "retrieved", retrieved, "error", err)
		if errors.Is(err, llm.ErrNoProviderAvailable) {
			return noProviderMessage
		}
		return fmt.Sprintf("I found relevant information but could not generate an answer: %v", err)
	}
	return out
}

// bound derives a context limited by the configured timeout. The returned
// cancel func is always non-nil.
func (p *Pipeline) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return ctx, func() {}
}

func buildSystemPrompt(hits []knowledge.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString(systemPromptHeader)
	for i, hit := range hits {
		fmt.Fprintf(&sb, "\nContext %d:\n%s\n", i+1, hit.Chunk.Text)
	}
	return sb.String()
}
