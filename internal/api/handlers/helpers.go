package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/contexta-ai/contexta/internal/domain/knowledge"
	"github.com/contexta-ai/contexta/internal/infra/llm"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeDomainError maps domain failures onto HTTP status codes:
// ValidationError is the caller's fault, an unknown provider name is 404,
// everything else is a server-side failure.
func writeDomainError(w http.ResponseWriter, err error) {
	var vErr *knowledge.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Reason)
	case errors.Is(err, llm.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
