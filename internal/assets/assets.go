// Package assets provides embedded static assets served by bannerd.
//
// The static/ directory holds the banner placeholder image and any other
// assets that must be available without external storage. The embed
// directive includes all files from static/ at compile time.
package assets

import (
	"embed"
	"io/fs"
	"mime"
	"path/filepath"
	"strings"
)

// PlaceholderName is the filename of the banner placeholder image.
const PlaceholderName = "banner-placeholder.png"

// StaticFS embeds the static/ directory.
//
//go:embed all:static
var StaticFS embed.FS

// GetStaticFS returns a sub-filesystem rooted at "static/" for easier access.
func GetStaticFS() (fs.FS, error) {
	return fs.Sub(StaticFS, "static")
}

// Placeholder returns the bytes of the banner placeholder image.
func Placeholder() ([]byte, error) {
	return StaticFS.ReadFile("static/" + PlaceholderName)
}

// GetContentType returns the MIME type for a given file path based on extension.
func GetContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}

	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml; charset=utf-8"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}
