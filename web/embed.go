// Package web carries the embedded HTML templates and static assets for the
// widget pages.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed views
var viewsFS embed.FS

//go:embed static
var staticFS embed.FS

// Views returns the HTML templates rooted at the views directory.
func Views() http.FileSystem {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// Static returns the static assets rooted at the static directory.
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
