package app

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// LegacyRedirects forwards the retired /org/teams paths to /org/circles.
// Path segments and the query string are preserved.
func LegacyRedirects(r chi.Router) {
	r.Get("/org/teams", redirectTeams)
	r.Get("/org/teams/{id}", redirectTeams)
}

func redirectTeams(w http.ResponseWriter, r *http.Request) {
	target := "/org/circles"
	if chi.URLParam(r, "id") != "" {
		// Reuse the segment as the client encoded it.
		escaped := r.URL.EscapedPath()
		target += escaped[strings.LastIndex(escaped, "/"):]
	}
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusFound)
}
