// Package api implements the prepcost REST API using chi.
package api

import (
	"fmt"
	"net/http"

	"github.com/starford/prepcost/internal/apperr"
)

var errEditDenied = fmt.Errorf("edit permission required: %w", apperr.ErrForbidden)

// EditMiddleware returns middleware that guards routes which change the
// catalog or the edit session. If canEdit is false every request is refused
// with 403; callers with view permission may still use the read routes.
func EditMiddleware(canEdit bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !canEdit {
				writeError(w, "edit", errEditDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
