package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/codex/internal/recordservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// outputDir is the build output directory served under /artifacts.
func NewRouter(svc *recordservice.Service, authEnabled bool, token string, sseHandler http.Handler, outputDir string) chi.Router {
	h := NewHandler(svc)
	ah := NewArtifactHandler(outputDir)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Collections.
	r.Get("/collections", h.ListCollections)
	r.Get("/collections/{name}", h.GetCollection)
	r.Get("/collections/{name}/module", h.GetModule)

	// Records.
	r.Get("/collections/{name}/records", h.ListRecords)
	r.Get("/collections/{name}/records/{id}", h.GetRecord)

	// Search.
	r.Get("/search", h.Search)

	// Declarations.
	r.Get("/declarations", h.Declarations)

	// Generated artifacts.
	r.Get("/artifacts/*", ah.ServeFile)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
