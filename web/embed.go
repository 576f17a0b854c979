// Package web embeds the browser frontend so the server binary ships
// self-contained.
package web

import "embed"

// StaticFS embeds the single-page frontend (html/css/js).
//
//go:embed static/*
var StaticFS embed.FS
