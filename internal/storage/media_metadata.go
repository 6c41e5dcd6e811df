package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// MediaSource indicates whether banner media was cached from a URL or
// manually uploaded.
type MediaSource string

const (
	// MediaSourceCached indicates the media was downloaded from a remote
	// URL. Cached media can be pruned when no slide references it.
	MediaSourceCached MediaSource = "cached"

	// MediaSourceUploaded indicates the media was manually uploaded.
	// Uploaded media is never automatically pruned.
	MediaSourceUploaded MediaSource = "uploaded"
)

// CachedMediaMetadata represents metadata stored alongside a cached banner
// media file.
//
// The ID is deterministic for URL-sourced media: the same normalized URL
// always produces the same ID, so media shared across slides is only
// downloaded once.
//
// Directory structure:
//   - media/cached/{hash}.{ext} for URL-sourced media (can be pruned)
//   - media/uploaded/{ulid}.{ext} for manually uploaded media
type CachedMediaMetadata struct {
	// ID is the unique identifier for this cached media file.
	// SHA256 hash of the normalized URL for cached media, ULID for uploads.
	ID string `json:"id"`

	// Source indicates whether this media was cached from URL or uploaded.
	Source MediaSource `json:"source,omitempty"`

	// OriginalURL is the source URL before normalization. Empty for uploads.
	OriginalURL string `json:"original_url"`

	// NormalizedURL is the URL after normalization. The ID is derived from
	// this, not OriginalURL.
	NormalizedURL string `json:"normalized_url,omitempty"`

	// ContentType is the MIME type of the media (e.g. "image/png").
	ContentType string `json:"content_type,omitempty"`

	// FileSize is the size of the cached file in bytes.
	FileSize int64 `json:"file_size,omitempty"`

	// CreatedAt is when the media was first cached.
	CreatedAt time.Time `json:"created_at"`

	// LastSeenAt is when this media was last referenced by a slide.
	// Used for time-based pruning of stale cached media.
	LastSeenAt time.Time `json:"last_seen_at,omitempty"`

	// SourceHint is optional context about which slide this came from.
	SourceHint string `json:"source_hint,omitempty"`
}

// NewCachedMediaMetadata creates a new metadata entry for a media URL.
// The ID is deterministic: the same normalized URL always produces the same
// ID.
func NewCachedMediaMetadata(originalURL string) *CachedMediaMetadata {
	normalized := normalizeURL(originalURL)
	now := time.Now().UTC()
	return &CachedMediaMetadata{
		ID:            computeURLHash(normalized),
		Source:        MediaSourceCached,
		OriginalURL:   originalURL,
		NormalizedURL: normalized,
		CreatedAt:     now,
		LastSeenAt:    now,
	}
}

// NewUploadedMediaMetadata creates a new metadata entry for an uploaded
// media file. Uploaded media has no URL so a ULID is the identifier.
func NewUploadedMediaMetadata() *CachedMediaMetadata {
	return &CachedMediaMetadata{
		ID:        ulid.Make().String(),
		Source:    MediaSourceUploaded,
		CreatedAt: time.Now().UTC(),
	}
}

// GetSource returns the media source, defaulting based on whether a URL is
// present.
func (m *CachedMediaMetadata) GetSource() MediaSource {
	if m.Source != "" {
		return m.Source
	}
	if m.OriginalURL != "" {
		return MediaSourceCached
	}
	return MediaSourceUploaded
}

// IsPrunable returns true if this media can be automatically pruned.
// Only cached media can be pruned; uploads are permanent.
func (m *CachedMediaMetadata) IsPrunable() bool {
	return m.GetSource() == MediaSourceCached
}

// MarkSeen updates LastSeenAt to the current time.
func (m *CachedMediaMetadata) MarkSeen() {
	m.LastSeenAt = time.Now().UTC()
}

// SourceDir returns the source-based directory name ("cached" or "uploaded").
func (m *CachedMediaMetadata) SourceDir() string {
	return string(m.GetSource())
}

// FileName returns the filename for the media file.
func (m *CachedMediaMetadata) FileName() string {
	return m.ID + m.extension()
}

// RelativeMediaPath returns the relative path for the media file.
// Format: media/{source}/{id}.{ext}
func (m *CachedMediaMetadata) RelativeMediaPath() string {
	return filepath.Join("media", m.SourceDir(), m.FileName())
}

// RelativeMetadataPath returns the relative path for the metadata file.
// Format: media/{source}/{id}.json
func (m *CachedMediaMetadata) RelativeMetadataPath() string {
	return filepath.Join("media", m.SourceDir(), m.ID+".json")
}

// extension returns the file extension based on content type, defaulting
// to .png.
func (m *CachedMediaMetadata) extension() string {
	if ext := ExtensionFromContentType(m.ContentType); ext != "" {
		return ext
	}
	return ".png"
}

// normalizeURL normalizes a URL for consistent hashing so equivalent URLs
// produce the same hash:
//   - removes the scheme (http/https treated as equivalent)
//   - lowercases the hostname and strips default ports
//   - sorts query parameters alphabetically
//   - removes trailing slashes from the path
func normalizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}

	host := strings.ToLower(parsed.Host)
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimSuffix(host, ":443")

	path := strings.TrimSuffix(parsed.Path, "/")

	query := parsed.Query()
	var sortedParams []string
	for key := range query {
		for _, val := range query[key] {
			sortedParams = append(sortedParams, key+"="+val)
		}
	}
	sort.Strings(sortedParams)

	result := host + path
	if len(sortedParams) > 0 {
		result += "?" + strings.Join(sortedParams, "&")
	}

	return result
}

// computeURLHash creates a SHA256 hash of a URL for fast lookups.
func computeURLHash(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])
}

// ExtensionFromContentType returns the file extension for a content type.
func ExtensionFromContentType(contentType string) string {
	contentType = strings.Split(contentType, ";")[0]
	contentType = strings.TrimSpace(contentType)
	contentType = strings.ToLower(contentType)

	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ""
	}
}

// ContentTypeFromPath guesses the content type from a file path extension.
func ContentTypeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
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
