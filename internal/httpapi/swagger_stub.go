//go:build !swagger

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// mountDocs answers /swagger/ with a hint instead of the UI.
func mountDocs(r chi.Router) {
	r.Get("/swagger/*", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "API docs are not built in; rebuild with -tags swagger")
	})
}
