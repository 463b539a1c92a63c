// HTTP handler for retrieval-augmented chat.
// POST /chat — answers the last user turn grounded in stored documents.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/contexta-ai/contexta/internal/domain/rag"
	"github.com/contexta-ai/contexta/internal/infra/llm"
)

// ChatHandler handles chat HTTP requests.
type ChatHandler struct {
	pipeline *rag.Pipeline
	registry *llm.Registry
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(pipeline *rag.Pipeline, registry *llm.Registry) *ChatHandler {
	return &ChatHandler{pipeline: pipeline, registry: registry}
}

// chatRequest is the JSON request body for POST /chat.
type chatRequest struct {
	Messages []llm.Turn `json:"messages"`
	Provider string     `json:"provider,omitempty"`
}

// chatResponse is the JSON response body for POST /chat.
type chatResponse struct {
	Answer   string `json:"answer"`
	Provider string `json:"provider"`
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, turn := range req.Messages {
		if !turn.Role.Valid() {
			writeError(w, http.StatusBadRequest, "unknown role "+string(turn.Role))
			return
		}
	}

	answer, err := h.pipeline.Chat(r.Context(), req.Messages, req.Provider)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	provider := req.Provider
	if provider == "" {
		provider = h.registry.ActiveName()
	}
	writeJSON(w, http.StatusOK, chatResponse{Answer: answer, Provider: provider})
}
