package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/openhood/bannerd/internal/storage"
	"github.com/openhood/bannerd/internal/urlutil"
)

// HTTPClient defines the interface for HTTP operations.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// MediaStats holds statistics about cached banner media.
type MediaStats struct {
	TotalFiles    int   `json:"total_files"`
	TotalSize     int64 `json:"total_size"`
	CachedFiles   int   `json:"cached_files"`
	UploadedFiles int   `json:"uploaded_files"`
	CachedSize    int64 `json:"cached_size"`
	UploadedSize  int64 `json:"uploaded_size"`
}

// MediaService provides business logic for banner media caching. It uses
// file-based storage with an in-memory index for fast lookups by ID and URL.
//
// For URL-sourced media the ID is deterministic (SHA256 of the normalized
// URL), so the same URL always maps to the same cached file.
type MediaService struct {
	cache     *storage.MediaCache
	fetcher   *urlutil.ResourceFetcher
	converter *ImageConverter
	logger    *slog.Logger
	maxSize   int64

	mu    sync.RWMutex
	byID  map[string]*storage.CachedMediaMetadata
	byURL map[string]*storage.CachedMediaMetadata
}

// NewMediaService creates a new MediaService.
func NewMediaService(cache *storage.MediaCache) *MediaService {
	return &MediaService{
		cache:     cache,
		fetcher:   urlutil.NewResourceFetcher(nil),
		converter: NewImageConverter(),
		logger:    slog.Default(),
		byID:      make(map[string]*storage.CachedMediaMetadata),
		byURL:     make(map[string]*storage.CachedMediaMetadata),
	}
}

// WithHTTPClient sets the HTTP client used for remote downloads. file://
// references bypass it and read from disk.
func (s *MediaService) WithHTTPClient(client HTTPClient) *MediaService {
	s.fetcher = urlutil.NewResourceFetcher(client)
	return s
}

// WithLogger sets the logger for the service.
func (s *MediaService) WithLogger(logger *slog.Logger) *MediaService {
	s.logger = logger
	return s
}

// WithMaxSize caps the accepted media file size in bytes. Zero means no cap.
func (s *MediaService) WithMaxSize(maxSize int64) *MediaService {
	s.maxSize = maxSize
	return s
}

// LoadIndex scans the media cache directory and rebuilds the in-memory
// index. Should be called on startup.
func (s *MediaService) LoadIndex(ctx context.Context) error {
	all, err := s.cache.Scan()
	if err != nil {
		return fmt.Errorf("scanning media cache: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[string]*storage.CachedMediaMetadata, len(all))
	s.byURL = make(map[string]*storage.CachedMediaMetadata, len(all))
	for _, meta := range all {
		s.byID[meta.ID] = meta
		if meta.OriginalURL != "" {
			s.byURL[meta.OriginalURL] = meta
		}
	}

	s.logger.Info("media index loaded", slog.Int("entries", len(all)))
	return nil
}

// CacheMedia downloads media from the given URL and stores it in the cache.
// If the media is already cached, LastSeenAt is updated and the existing
// metadata returned.
func (s *MediaService) CacheMedia(ctx context.Context, mediaURL string) (*storage.CachedMediaMetadata, error) {
	if existing := s.GetByURL(mediaURL); existing != nil {
		if err := s.cache.TouchMetadata(existing); err != nil {
			s.logger.Warn("failed to touch media",
				slog.String("url", mediaURL),
				slog.String("error", err.Error()),
			)
		}
		return existing, nil
	}

	// the deterministic ID catches URL variants that normalize identically
	normalizedID := storage.NewCachedMediaMetadata(mediaURL).ID
	if existing := s.GetByID(normalizedID); existing != nil {
		if err := s.cache.TouchMetadata(existing); err != nil {
			s.logger.Warn("failed to touch media",
				slog.String("url", mediaURL),
				slog.String("error", err.Error()),
			)
		}
		s.addURLMapping(mediaURL, existing)
		return existing, nil
	}

	meta, err := s.downloadAndStore(ctx, mediaURL)
	if err != nil {
		return nil, fmt.Errorf("downloading media: %w", err)
	}

	s.add(meta)

	s.logger.Debug("cached media",
		slog.String("url", mediaURL),
		slog.String("id", meta.ID),
		slog.Int64("size", meta.FileSize),
	)

	return meta, nil
}

// StoreUpload stores a manually uploaded media file and returns its metadata.
func (s *MediaService) StoreUpload(data io.Reader, contentType, sourceHint string) (*storage.CachedMediaMetadata, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if s.maxSize > 0 && int64(len(body)) > s.maxSize {
		return nil, fmt.Errorf("upload exceeds maximum size of %d bytes", s.maxSize)
	}

	// uploads get the same webp to PNG conversion as downloads
	if contentType == "image/webp" {
		converted, _, _, convErr := s.converter.ConvertToPNG(body)
		if convErr != nil {
			return nil, fmt.Errorf("converting webp upload: %w", convErr)
		}
		body = converted
		contentType = "image/png"
	}

	meta := storage.NewUploadedMediaMetadata()
	meta.ContentType = contentType
	meta.SourceHint = sourceHint

	if err := s.cache.StoreWithMetadata(meta, bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	s.add(meta)
	return meta, nil
}

// All returns metadata for every indexed media file.
func (s *MediaService) All() []*storage.CachedMediaMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*storage.CachedMediaMetadata, 0, len(s.byID))
	for _, meta := range s.byID {
		all = append(all, meta)
	}
	return all
}

// GetByURL retrieves cached media metadata by original URL. Returns nil when
// not cached.
func (s *MediaService) GetByURL(mediaURL string) *storage.CachedMediaMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byURL[mediaURL]
}

// GetByID retrieves cached media metadata by ID. Returns nil when not found.
func (s *MediaService) GetByID(id string) *storage.CachedMediaMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

// GetByFileName retrieves cached media metadata by filename, e.g.
// "abc123.png". Falls back to a disk lookup when the index misses.
func (s *MediaService) GetByFileName(name string) *storage.CachedMediaMetadata {
	id := name
	if idx := lastDot(name); idx >= 0 {
		id = name[:idx]
	}
	if meta := s.GetByID(id); meta != nil {
		return meta
	}

	meta, err := s.cache.FindByFileName(name)
	if err != nil {
		return nil
	}
	s.add(meta)
	return meta
}

// OpenFile opens the media file for the given metadata.
func (s *MediaService) OpenFile(meta *storage.CachedMediaMetadata) (io.ReadCloser, error) {
	return s.cache.Open(meta.RelativeMediaPath())
}

// Delete removes media from both the cache and the index.
func (s *MediaService) Delete(id string) error {
	meta := s.GetByID(id)
	if meta == nil {
		return nil
	}

	s.mu.Lock()
	delete(s.byID, id)
	if meta.OriginalURL != "" {
		delete(s.byURL, meta.OriginalURL)
	}
	s.mu.Unlock()

	if err := s.cache.DeleteWithMetadata(meta); err != nil {
		return fmt.Errorf("deleting media files: %w", err)
	}
	return nil
}

// PruneStale deletes cached media not seen within the retention window.
// Returns the number of files removed. Uploaded media is never pruned.
func (s *MediaService) PruneStale(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}

	stale, err := s.cache.GetStaleMedia(time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("finding stale media: %w", err)
	}

	pruned := 0
	for _, meta := range stale {
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		if err := s.Delete(meta.ID); err != nil {
			s.logger.Warn("failed to prune media",
				slog.String("id", meta.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		pruned++
	}

	if pruned > 0 {
		s.logger.Info("pruned stale media", slog.Int("count", pruned))
	}
	return pruned, nil
}

// Stats returns statistics about cached media.
func (s *MediaService) Stats() *MediaStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &MediaStats{}
	for _, meta := range s.byID {
		stats.TotalFiles++
		stats.TotalSize += meta.FileSize
		if meta.GetSource() == storage.MediaSourceUploaded {
			stats.UploadedFiles++
			stats.UploadedSize += meta.FileSize
		} else {
			stats.CachedFiles++
			stats.CachedSize += meta.FileSize
		}
	}
	return stats
}

func (s *MediaService) add(meta *storage.CachedMediaMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[meta.ID] = meta
	if meta.OriginalURL != "" {
		s.byURL[meta.OriginalURL] = meta
	}
}

func (s *MediaService) addURLMapping(mediaURL string, meta *storage.CachedMediaMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byURL[mediaURL] = meta
}

func (s *MediaService) downloadAndStore(ctx context.Context, mediaURL string) (*storage.CachedMediaMetadata, error) {
	rc, contentType, err := s.fetcher.Fetch(ctx, mediaURL)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var body []byte
	if s.maxSize > 0 {
		body, err = io.ReadAll(io.LimitReader(rc, s.maxSize+1))
		if err == nil && int64(len(body)) > s.maxSize {
			err = fmt.Errorf("media exceeds maximum size of %d bytes", s.maxSize)
		}
	} else {
		body, err = io.ReadAll(rc)
	}
	if err != nil {
		return nil, fmt.Errorf("reading media body: %w", err)
	}

	if contentType == "" {
		contentType = "image/png"
	}

	// webp is cached as PNG so every serving path can rely on broadly
	// supported formats
	if contentType == "image/webp" {
		converted, _, _, convErr := s.converter.ConvertToPNG(body)
		if convErr != nil {
			return nil, fmt.Errorf("converting webp media: %w", convErr)
		}
		body = converted
		contentType = "image/png"
	}

	meta := storage.NewCachedMediaMetadata(mediaURL)
	meta.ContentType = contentType

	if err := s.cache.StoreWithMetadata(meta, bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("storing media: %w", err)
	}

	return meta, nil
}

// lastDot returns the index of the final dot in name, or -1.
func lastDot(name string) int {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return i
		}
		if name[i] == '/' {
			return -1
		}
	}
	return -1
}
