// Package web embeds the server-rendered page templates and static assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates parses every page template into one set. Each page file is
// addressed by its base name, e.g. "home.html".
func Templates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

// Static returns the asset tree served under /static.
func Static() (fs.FS, error) {
	return fs.Sub(staticFS, "static")
}
