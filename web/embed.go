// Package web embeds the server-rendered pages and their assets.
package web

import "embed"

// TemplatesFS holds the page and dashboard partial templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and htmx glue script.
//
//go:embed static/*
var StaticFS embed.FS
