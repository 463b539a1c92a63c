// Route registration and go-chi router setup.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/contexta-ai/contexta/internal/api/handlers"
	"github.com/contexta-ai/contexta/internal/domain/rag"
	"github.com/contexta-ai/contexta/internal/extract"
	"github.com/contexta-ai/contexta/internal/infra/llm"
)

// Deps are the shared services the router hands to handlers. All of them are
// constructed once at startup and live for the whole process.
type Deps struct {
	Pipeline      *rag.Pipeline
	Registry      *llm.Registry
	Extractor     *extract.Extractor
	MaxConcurrent int
}

// NewRouter creates and configures a new chi router with all routes.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if deps.MaxConcurrent > 0 {
		// Bounds in-flight requests so a burst of chat calls cannot pile up
		// unbounded provider and embedding work.
		r.Use(middleware.Throttle(deps.MaxConcurrent))
	}

	// Health check — used by load balancers and health probes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	chatHandler := handlers.NewChatHandler(deps.Pipeline, deps.Registry)
	docsHandler := handlers.NewDocumentsHandler(deps.Pipeline, deps.Extractor)
	modelsHandler := handlers.NewModelsHandler(deps.Registry)
	systemHandler := handlers.NewSystemHandler(deps.Pipeline)

	r.Post("/chat", chatHandler.Chat) // POST /chat

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", docsHandler.Ingest) // POST /documents
		r.Get("/", docsHandler.Stats)   // GET /documents
	})
	r.Post("/upload", docsHandler.Upload) // POST /upload

	r.Route("/models", func(r chi.Router) {
		r.Get("/", modelsHandler.List)                     // GET /models
		r.Post("/{name}/activate", modelsHandler.Activate) // POST /models/{name}/activate
	})

	r.Get("/system", systemHandler.Info) // GET /system

	return r
}
