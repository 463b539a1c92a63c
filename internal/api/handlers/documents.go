// HTTP handlers for document ingestion.
// POST /documents — raw text or URL; POST /upload — multipart file upload;
// GET /documents — collection stats.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/contexta-ai/contexta/internal/domain/knowledge"
	"github.com/contexta-ai/contexta/internal/domain/rag"
	"github.com/contexta-ai/contexta/internal/extract"
)

// uploads above this size are rejected before extraction
const maxUploadBytes = 10 << 20

// DocumentsHandler handles ingestion HTTP requests.
type DocumentsHandler struct {
	pipeline  *rag.Pipeline
	extractor *extract.Extractor
}

// NewDocumentsHandler creates a DocumentsHandler.
func NewDocumentsHandler(pipeline *rag.Pipeline, extractor *extract.Extractor) *DocumentsHandler {
	return &DocumentsHandler{pipeline: pipeline, extractor: extractor}
}

// ingestRequest is the JSON request body for POST /documents. Exactly one of
// Text or URL must be set.
type ingestRequest struct {
	Text     string         `json:"text,omitempty"`
	URL      string         `json:"url,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ingestResponse is the JSON response body for ingestion endpoints.
type ingestResponse struct {
	DocumentID   string `json:"documentId"`
	DocumentsIn  int    `json:"documentsIn"`
	ChunksStored int    `json:"chunksStored"`
}

// Ingest handles POST /documents.
func (h *DocumentsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if (req.Text == "") == (req.URL == "") {
		writeError(w, http.StatusBadRequest, "exactly one of text or url is required")
		return
	}

	var doc knowledge.Document
	var err error
	if req.Text != "" {
		doc, err = h.extractor.FromText(req.Text)
	} else {
		doc, err = h.extractor.FromURL(r.Context(), req.URL)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for k, v := range req.Metadata {
		doc.Metadata[k] = v
	}

	h.ingestOne(w, r, doc)
}

// Upload handles POST /upload (multipart form, field "file").
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close() //nolint:errcheck

	doc, extractErr := h.extractor.FromReader(header.Filename, file)
	if extractErr != nil {
		writeDomainError(w, extractErr)
		return
	}

	h.ingestOne(w, r, doc)
}

// Stats handles GET /documents.
func (h *DocumentsHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.pipeline.Info().Collection)
}

func (h *DocumentsHandler) ingestOne(w http.ResponseWriter, r *http.Request, doc knowledge.Document) {
	summary, err := h.pipeline.Ingest(r.Context(), []knowledge.Document{doc})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ingestResponse{
		DocumentID:   doc.ID,
		DocumentsIn:  summary.DocumentsIn,
		ChunksStored: summary.ChunksStored,
	})
}
