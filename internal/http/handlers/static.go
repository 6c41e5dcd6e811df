package handlers

import (
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/openhood/bannerd/internal/assets"
	"github.com/openhood/bannerd/internal/storage"
)

// StaticHandler serves the static fallback locations the resolver's
// candidate URLs point at: the uploads directory and the embedded assets,
// including the exhaustion placeholder.
type StaticHandler struct {
	uploads *storage.Sandbox
}

// NewStaticHandler creates a static handler serving uploads from the given
// sandbox. A nil sandbox disables the uploads route.
func NewStaticHandler(uploads *storage.Sandbox) *StaticHandler {
	return &StaticHandler{uploads: uploads}
}

// RegisterRoutes registers the uploads and assets routes.
func (h *StaticHandler) RegisterRoutes(router chi.Router, uploadsPath string) {
	if h.uploads != nil {
		if uploadsPath == "" {
			uploadsPath = "/uploads"
		}
		pattern := strings.TrimSuffix(uploadsPath, "/") + "/*"
		router.Get(pattern, h.ServeUpload)
		router.Head(pattern, h.ServeUpload)
	}

	router.Get("/assets/*", h.ServeAsset)
	router.Head("/assets/*", h.ServeAsset)
}

// ServeUpload serves a file from the uploads directory. The sandbox rejects
// path traversal attempts.
func (h *StaticHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" {
		http.Error(w, "file name required", http.StatusBadRequest)
		return
	}

	file, err := h.uploads.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", storage.ContentTypeFromPath(name))
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

// ServeAsset serves an embedded static asset.
func (h *StaticHandler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" {
		http.Error(w, "asset name required", http.StatusBadRequest)
		return
	}

	staticFS, err := assets.GetStaticFS()
	if err != nil {
		http.Error(w, "assets unavailable", http.StatusInternalServerError)
		return
	}

	data, err := fs.ReadFile(staticFS, name)
	if err != nil {
		http.Error(w, "asset not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", assets.GetContentType(name))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}
