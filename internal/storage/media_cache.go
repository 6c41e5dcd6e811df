package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// MediaCache provides cached banner media storage operations.
// Directory structure:
//   - media/cached/   URL-sourced media (pruned based on LastSeenAt)
//   - media/uploaded/ manually uploaded media (never auto-pruned)
type MediaCache struct {
	sandbox *Sandbox
}

// NewMediaCache creates a new MediaCache in the given base directory.
func NewMediaCache(baseDir string) (*MediaCache, error) {
	sandbox, err := NewSandbox(baseDir)
	if err != nil {
		return nil, fmt.Errorf("creating sandbox: %w", err)
	}

	for _, source := range []MediaSource{MediaSourceCached, MediaSourceUploaded} {
		if err := sandbox.MkdirAll(filepath.Join("media", string(source))); err != nil {
			return nil, fmt.Errorf("creating %s media directory: %w", source, err)
		}
	}

	return &MediaCache{sandbox: sandbox}, nil
}

// BaseDir returns the absolute path to the cache base directory.
func (c *MediaCache) BaseDir() string {
	return c.sandbox.BaseDir()
}

// StoreWithMetadata stores a media file with its metadata sidecar.
// The media is stored at media/{source}/{id}.{ext} and metadata at
// media/{source}/{id}.json.
func (c *MediaCache) StoreWithMetadata(meta *CachedMediaMetadata, data io.Reader) error {
	if err := c.sandbox.AtomicWriteReader(meta.RelativeMediaPath(), data); err != nil {
		return fmt.Errorf("writing media file: %w", err)
	}

	size, err := c.sandbox.Size(meta.RelativeMediaPath())
	if err != nil {
		return fmt.Errorf("getting file size: %w", err)
	}
	meta.FileSize = size

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	if err := c.sandbox.AtomicWrite(meta.RelativeMetadataPath(), metaJSON); err != nil {
		_ = c.sandbox.Remove(meta.RelativeMediaPath())
		return fmt.Errorf("writing metadata: %w", err)
	}

	return nil
}

// Open opens a media file for reading by its relative path.
func (c *MediaCache) Open(relativePath string) (*os.File, error) {
	return c.sandbox.OpenFile(relativePath, os.O_RDONLY, 0)
}

// GetBytes reads all bytes from a media file.
func (c *MediaCache) GetBytes(relativePath string) ([]byte, error) {
	return c.sandbox.ReadFile(relativePath)
}

// Exists checks if a media file exists.
func (c *MediaCache) Exists(relativePath string) (bool, error) {
	return c.sandbox.Exists(relativePath)
}

// AbsolutePath returns the absolute filesystem path for a relative media path.
func (c *MediaCache) AbsolutePath(relativePath string) (string, error) {
	return c.sandbox.ResolvePath(relativePath)
}

// LoadMetadata loads the metadata for media by searching both source
// directories, cached/ first.
func (c *MediaCache) LoadMetadata(id string) (*CachedMediaMetadata, error) {
	for _, source := range []MediaSource{MediaSourceCached, MediaSourceUploaded} {
		metaPath := filepath.Join("media", string(source), id+".json")
		exists, _ := c.sandbox.Exists(metaPath)
		if exists {
			return c.loadMetadataByPath(metaPath)
		}
	}
	return nil, fmt.Errorf("metadata not found for id: %s", id)
}

// FindByFileName loads metadata for a media file by its filename, e.g.
// "abc123.png". Searches both source directories.
func (c *MediaCache) FindByFileName(name string) (*CachedMediaMetadata, error) {
	id := name
	if ext := filepath.Ext(name); ext != "" {
		id = name[:len(name)-len(ext)]
	}
	return c.LoadMetadata(id)
}

func (c *MediaCache) loadMetadataByPath(metaPath string) (*CachedMediaMetadata, error) {
	data, err := c.sandbox.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("reading metadata file: %w", err)
	}

	var meta CachedMediaMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}

	return &meta, nil
}

// DeleteWithMetadata deletes both the media file and its metadata sidecar.
func (c *MediaCache) DeleteWithMetadata(meta *CachedMediaMetadata) error {
	if err := c.sandbox.Remove(meta.RelativeMediaPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting media file: %w", err)
	}
	if err := c.sandbox.Remove(meta.RelativeMetadataPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting metadata file: %w", err)
	}
	return nil
}

// TouchMetadata updates the LastSeenAt timestamp in metadata and the media
// file's mtime for filesystem-based pruning tools.
func (c *MediaCache) TouchMetadata(meta *CachedMediaMetadata) error {
	meta.MarkSeen()

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	if err := c.sandbox.AtomicWrite(meta.RelativeMetadataPath(), metaJSON); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	if absPath, err := c.sandbox.ResolvePath(meta.RelativeMediaPath()); err == nil {
		now := time.Now()
		_ = os.Chtimes(absPath, now, now)
	}

	return nil
}

// GetStaleMedia returns cached media not seen since the cutoff time.
// Uploaded media is never stale.
func (c *MediaCache) GetStaleMedia(cutoff time.Time) ([]*CachedMediaMetadata, error) {
	absDir, err := c.sandbox.ResolvePath(filepath.Join("media", string(MediaSourceCached)))
	if err != nil {
		return nil, fmt.Errorf("resolving cached media directory: %w", err)
	}

	var stale []*CachedMediaMetadata

	err = filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		var meta CachedMediaMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil
		}

		switch {
		case !meta.LastSeenAt.IsZero() && meta.LastSeenAt.Before(cutoff):
			stale = append(stale, &meta)
		case meta.LastSeenAt.IsZero() && info.ModTime().Before(cutoff):
			stale = append(stale, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking cached media directory: %w", err)
	}

	return stale, nil
}

// Scan walks the media directory and returns all metadata entries.
// Used for rebuilding the in-memory index on startup.
func (c *MediaCache) Scan() ([]*CachedMediaMetadata, error) {
	mediaDir, err := c.sandbox.ResolvePath("media")
	if err != nil {
		return nil, fmt.Errorf("resolving media directory: %w", err)
	}

	var all []*CachedMediaMetadata

	err = filepath.Walk(mediaDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		var meta CachedMediaMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil
		}

		all = append(all, &meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking media directory: %w", err)
	}

	return all, nil
}
