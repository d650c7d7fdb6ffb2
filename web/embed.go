// Package web holds the server-rendered templates and static assets.
package web

import "embed"

// TemplatesFS holds the layout, shared partials and one file per page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the htmx event glue served under /static/.
//
//go:embed static/*.css static/*.js
var StaticFS embed.FS
