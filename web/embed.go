// Package web carries the page templates and browser assets compiled into
// the binary.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var Templates embed.FS

//go:embed static
var assets embed.FS

// StaticHandler serves the stylesheet and script under prefix with a one
// hour browser cache.
func StaticHandler(prefix string) (http.Handler, error) {
	root, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, err
	}
	files := http.StripPrefix(prefix, http.FileServer(http.FS(root)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	}), nil
}
