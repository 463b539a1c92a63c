// HTTP handlers for provider introspection and switching.
// GET /models — registered providers; POST /models/{name}/activate — switch.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/contexta-ai/contexta/internal/infra/llm"
)

// ModelsHandler handles provider HTTP requests.
type ModelsHandler struct {
	registry *llm.Registry
}

// NewModelsHandler creates a ModelsHandler.
func NewModelsHandler(registry *llm.Registry) *ModelsHandler {
	return &ModelsHandler{registry: registry}
}

// modelEntry is a single provider in the GET /models response.
type modelEntry struct {
	Name   string        `json:"name"`
	Model  llm.ModelMeta `json:"model"`
	Active bool          `json:"active"`
}

// modelsResponse is the JSON response body for GET /models.
type modelsResponse struct {
	Models []modelEntry `json:"models"`
	Active string       `json:"active"`
}

// List handles GET /models.
func (h *ModelsHandler) List(w http.ResponseWriter, _ *http.Request) {
	active := h.registry.ActiveName()
	names := h.registry.Names()
	entries := make([]modelEntry, 0, len(names))
	for _, name := range names {
		p, err := h.registry.Get(name)
		if err != nil {
			continue
		}
		entries = append(entries, modelEntry{
			Name:   name,
			Model:  p.ModelInfo(),
			Active: name == active,
		})
	}
	writeJSON(w, http.StatusOK, modelsResponse{Models: entries, Active: active})
}

// Activate handles POST /models/{name}/activate.
func (h *ModelsHandler) Activate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.registry.SetActive(name); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": name})
}
