package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/openhood/bannerd/internal/service"
	"github.com/openhood/bannerd/internal/storage"
)

// MediaHandler handles banner media API endpoints and file serving.
type MediaHandler struct {
	media     *service.MediaService
	converter *service.ImageConverter
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(media *service.MediaService) *MediaHandler {
	return &MediaHandler{
		media:     media,
		converter: service.NewImageConverter(),
	}
}

// Register registers the media routes with the API.
func (h *MediaHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listMedia",
		Method:      "GET",
		Path:        "/api/v1/media",
		Summary:     "List cached media",
		Description: "Returns metadata for all cached and uploaded banner media",
		Tags:        []string{"Media"},
	}, h.ListMedia)

	huma.Register(api, huma.Operation{
		OperationID: "getMediaStats",
		Method:      "GET",
		Path:        "/api/v1/media/stats",
		Summary:     "Get media cache statistics",
		Tags:        []string{"Media"},
	}, h.GetMediaStats)

	huma.Register(api, huma.Operation{
		OperationID: "rescanMediaCache",
		Method:      "POST",
		Path:        "/api/v1/media/rescan",
		Summary:     "Rescan media cache",
		Description: "Rebuilds the in-memory index from the cache directory",
		Tags:        []string{"Media"},
	}, h.RescanMedia)

	huma.Register(api, huma.Operation{
		OperationID:      "uploadMedia",
		Method:           "POST",
		Path:             "/api/v1/media/upload",
		Summary:          "Upload banner media",
		Tags:             []string{"Media"},
		RequestBody:      &huma.RequestBody{Content: map[string]*huma.MediaType{"multipart/form-data": {}}},
		SkipValidateBody: true,
	}, h.UploadMedia)

	huma.Register(api, huma.Operation{
		OperationID: "deleteMedia",
		Method:      "DELETE",
		Path:        "/api/v1/media/{id}",
		Summary:     "Delete cached media",
		Tags:        []string{"Media"},
	}, h.DeleteMedia)
}

// RegisterFileServer registers the direct media routes. This serves files at
// the endpoint the resolver's direct candidate URLs point at.
func (h *MediaHandler) RegisterFileServer(router chi.Router, directEndpoint string) {
	if directEndpoint == "" {
		directEndpoint = "/banners/media"
	}
	pattern := strings.TrimSuffix(directEndpoint, "/") + "/{filename}"
	router.Get(pattern, h.ServeMediaFile)
	router.Head(pattern, h.ServeMediaFile)
}

// ServeMediaFile serves a cached media file by filename.
func (h *MediaHandler) ServeMediaFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" {
		http.Error(w, "filename required", http.StatusBadRequest)
		return
	}

	meta := h.media.GetByFileName(filename)
	if meta == nil {
		http.Error(w, "media not found", http.StatusNotFound)
		return
	}

	file, err := h.media.OpenFile(meta)
	if err != nil {
		http.Error(w, "failed to read media file", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	contentType := meta.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeFromPath(meta.FileName())
	}
	w.Header().Set("Content-Type", contentType)
	// cached media is content-addressed, so it never changes under a filename
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	io.Copy(w, file)
}

// MediaAsset represents cached media metadata in API responses.
type MediaAsset struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
	OriginalURL string `json:"original_url,omitempty"`
	URL         string `json:"url"`
	CreatedAt   string `json:"created_at"`
	LastSeenAt  string `json:"last_seen_at"`
}

func mediaToAsset(meta *storage.CachedMediaMetadata) MediaAsset {
	return MediaAsset{
		ID:          meta.ID,
		Source:      string(meta.GetSource()),
		FileName:    meta.FileName(),
		FileSize:    meta.FileSize,
		ContentType: meta.ContentType,
		OriginalURL: meta.OriginalURL,
		URL:         "/banners/media/" + meta.FileName(),
		CreatedAt:   meta.CreatedAt.UTC().Format(time.RFC3339),
		LastSeenAt:  meta.LastSeenAt.UTC().Format(time.RFC3339),
	}
}

// ListMediaInput is the input for listing cached media.
type ListMediaInput struct {
	Source string `query:"source" enum:"cached,uploaded," doc:"Filter by media source"`
}

// ListMediaOutput is the output for listing cached media.
type ListMediaOutput struct {
	Body struct {
		Assets []MediaAsset `json:"assets"`
		Total  int          `json:"total"`
	}
}

// ListMedia returns metadata for all cached media, optionally filtered by
// source. The index is rebuilt from disk on demand to pick up external
// changes.
func (h *MediaHandler) ListMedia(ctx context.Context, input *ListMediaInput) (*ListMediaOutput, error) {
	if err := h.media.LoadIndex(ctx); err != nil {
		return nil, huma.Error500InternalServerError("Failed to scan media cache: " + err.Error())
	}

	all := h.media.All()
	assets := make([]MediaAsset, 0, len(all))
	for _, meta := range all {
		if input.Source != "" && string(meta.GetSource()) != input.Source {
			continue
		}
		assets = append(assets, mediaToAsset(meta))
	}

	resp := &ListMediaOutput{}
	resp.Body.Assets = assets
	resp.Body.Total = len(assets)
	return resp, nil
}

// MediaStatsOutput is the output for media cache statistics.
type MediaStatsOutput struct {
	Body service.MediaStats
}

// GetMediaStats returns media cache statistics.
func (h *MediaHandler) GetMediaStats(ctx context.Context, input *struct{}) (*MediaStatsOutput, error) {
	return &MediaStatsOutput{Body: *h.media.Stats()}, nil
}

// RescanMediaOutput is the output for rescanning the media cache.
type RescanMediaOutput struct {
	Body struct {
		Success   bool   `json:"success"`
		Total     int    `json:"total"`
		Timestamp string `json:"timestamp"`
	}
}

// RescanMedia rebuilds the in-memory index from disk.
func (h *MediaHandler) RescanMedia(ctx context.Context, input *struct{}) (*RescanMediaOutput, error) {
	if err := h.media.LoadIndex(ctx); err != nil {
		return nil, huma.Error500InternalServerError("Failed to rescan media cache: " + err.Error())
	}

	resp := &RescanMediaOutput{}
	resp.Body.Success = true
	resp.Body.Total = h.media.Stats().TotalFiles
	resp.Body.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return resp, nil
}

// UploadMediaInput is the input for uploading banner media.
type UploadMediaInput struct {
	RawBody multipart.Form
}

// UploadMediaOutput is the output for uploading banner media.
type UploadMediaOutput struct {
	Body MediaAsset
}

// UploadMedia handles a banner media file upload. Images are validated by
// magic bytes; videos are stored as-is.
func (h *MediaHandler) UploadMedia(ctx context.Context, input *UploadMediaInput) (*UploadMediaOutput, error) {
	files := input.RawBody.File["file"]
	if len(files) == 0 {
		return nil, huma.Error400BadRequest("No file provided")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, huma.Error400BadRequest("Failed to open uploaded file")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, huma.Error400BadRequest("Failed to read uploaded file")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detectMediaContentType(content)
	}

	if !h.converter.IsSupportedImage(contentType) && !h.converter.IsVideo(contentType) {
		return nil, huma.Error400BadRequest("Unsupported media type: " + contentType)
	}

	if h.converter.IsSupportedImage(contentType) {
		if _, _, err := h.converter.GetImageDimensions(content); err != nil {
			return nil, huma.Error400BadRequest("File is not a decodable image")
		}
	}

	meta, err := h.media.StoreUpload(bytes.NewReader(content), contentType, fileHeader.Filename)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to store upload: " + err.Error())
	}

	return &UploadMediaOutput{Body: mediaToAsset(meta)}, nil
}

// DeleteMediaInput is the input for deleting cached media.
type DeleteMediaInput struct {
	ID string `path:"id" required:"true"`
}

// DeleteMediaOutput is the output for deleting cached media.
type DeleteMediaOutput struct {
	Body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
}

// DeleteMedia deletes a cached media file and its metadata.
func (h *MediaHandler) DeleteMedia(ctx context.Context, input *DeleteMediaInput) (*DeleteMediaOutput, error) {
	if h.media.GetByID(input.ID) == nil {
		return nil, huma.Error404NotFound("Media not found")
	}

	if err := h.media.Delete(input.ID); err != nil {
		return nil, huma.Error500InternalServerError("Failed to delete media: " + err.Error())
	}

	resp := &DeleteMediaOutput{}
	resp.Body.Success = true
	resp.Body.Message = "Media deleted"
	return resp, nil
}

// detectMediaContentType detects the content type from magic bytes.
func detectMediaContentType(data []byte) string {
	if len(data) < 12 {
		return "application/octet-stream"
	}

	switch {
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46:
		return "image/gif"
	case data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46:
		if data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
			return "image/webp"
		}
		return "application/octet-stream"
	case data[4] == 0x66 && data[5] == 0x74 && data[6] == 0x79 && data[7] == 0x70:
		// ISO base media file (ftyp box)
		return "video/mp4"
	case data[0] == 0x1A && data[1] == 0x45 && data[2] == 0xDF && data[3] == 0xA3:
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}
