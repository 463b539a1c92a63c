// HTTP handler for system introspection.
// GET /system — pipeline configuration and collection state.
package handlers

import (
	"net/http"

	"github.com/contexta-ai/contexta/internal/domain/rag"
	"github.com/contexta-ai/contexta/internal/version"
)

// SystemHandler handles system introspection requests.
type SystemHandler struct {
	pipeline *rag.Pipeline
}

// NewSystemHandler creates a SystemHandler.
func NewSystemHandler(pipeline *rag.Pipeline) *SystemHandler {
	return &SystemHandler{pipeline: pipeline}
}

// systemResponse is the JSON response body for GET /system.
type systemResponse struct {
	Version  string           `json:"version"`
	Pipeline rag.PipelineInfo `json:"pipeline"`
}

// Info handles GET /system.
func (h *SystemHandler) Info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, systemResponse{
		Version:  version.Version,
		Pipeline: h.pipeline.Info(),
	})
}
