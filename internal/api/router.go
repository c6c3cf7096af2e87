package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/prepcost/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// canEdit gates the session routes; reads and computations are always open.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(sess *session.Session, canEdit bool, sseHandler http.Handler) chi.Router {
	h := NewHandler(sess)

	r := chi.NewRouter()

	// Catalog reads.
	r.Get("/items", h.ListItems)
	r.Get("/items/{id}", h.GetItem)
	r.Get("/items/{id}/units", h.ItemUnits)
	r.Get("/items/{id}/percentages", h.ItemPercentages)
	r.Get("/base-items", h.ListBaseItems)

	// Computations on unsaved recipes.
	r.Post("/recipes/total-grams", h.TotalGrams)
	r.Post("/recipes/validate-yield", h.ValidateYield)

	// Edit session.
	r.Route("/session", func(r chi.Router) {
		r.Use(EditMiddleware(canEdit))
		r.Post("/open", h.OpenSession)
		r.Post("/cancel", h.CancelSession)
		r.Post("/diff", h.Diff)
		r.Post("/save", h.Save)
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
