package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/dirtools/internal/treeservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *treeservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Tree queries.
	r.Get("/files", h.Files)
	r.Get("/subdirs", h.Subdirs)
	r.Get("/projects", h.Projects)
	r.Get("/excluded", h.Excluded)
	r.Get("/hash", h.Hash)

	// Snapshots.
	r.Get("/snapshots", h.ListSnapshots)
	r.Post("/snapshots", h.TakeSnapshot)
	r.Get("/snapshots/{id}", h.GetSnapshot)
	r.Delete("/snapshots/{id}", h.DeleteSnapshot)
	r.Get("/diff", h.Diff)

	// Archive download.
	r.Get("/archive", h.Archive)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
