package web

import (
	"embed"
)

// static holds the embedded HTML page.
// The final binary includes all files under static/.
//
//go:embed static/*
var staticFiles embed.FS
