// Package web holds the server-rendered pages.
package web

import (
	"embed"
	"html/template"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses every page template. Pages share the header and footer
// blocks defined in layout.html.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	}).ParseFS(templateFS, "templates/*.html")
}
