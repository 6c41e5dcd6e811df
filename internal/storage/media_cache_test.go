package storage

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *MediaCache {
	t.Helper()
	cache, err := NewMediaCache(t.TempDir())
	require.NoError(t, err)
	return cache
}

func TestMetadataDeterministicID(t *testing.T) {
	m1 := NewCachedMediaMetadata("https://store.example/banner-images/x.png")
	m2 := NewCachedMediaMetadata("http://store.example/banner-images/x.png")
	m3 := NewCachedMediaMetadata("https://store.example/banner-images/y.png")

	// scheme is ignored in normalization
	assert.Equal(t, m1.ID, m2.ID)
	assert.NotEqual(t, m1.ID, m3.ID)
	assert.Equal(t, MediaSourceCached, m1.GetSource())
	assert.True(t, m1.IsPrunable())
}

func TestNormalizeURLQueryOrdering(t *testing.T) {
	a := NewCachedMediaMetadata("https://host/banner.png?b=2&a=1")
	b := NewCachedMediaMetadata("https://host/banner.png?a=1&b=2")
	assert.Equal(t, a.ID, b.ID)
}

func TestUploadedMetadata(t *testing.T) {
	m := NewUploadedMediaMetadata()

	assert.Len(t, m.ID, 26)
	assert.Equal(t, MediaSourceUploaded, m.GetSource())
	assert.False(t, m.IsPrunable())
	assert.Contains(t, m.RelativeMediaPath(), "uploaded")
}

func TestStoreAndLoadMetadata(t *testing.T) {
	cache := newTestCache(t)

	meta := NewCachedMediaMetadata("https://store.example/banner-images/x.png")
	meta.ContentType = "image/png"

	require.NoError(t, cache.StoreWithMetadata(meta, strings.NewReader("pngdata")))
	assert.Equal(t, int64(7), meta.FileSize)

	loaded, err := cache.LoadMetadata(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta.ID, loaded.ID)
	assert.Equal(t, "image/png", loaded.ContentType)

	data, err := cache.GetBytes(meta.RelativeMediaPath())
	require.NoError(t, err)
	assert.Equal(t, "pngdata", string(data))
}

func TestFindByFileName(t *testing.T) {
	cache := newTestCache(t)

	meta := NewCachedMediaMetadata("https://store.example/banner-images/x.png")
	meta.ContentType = "image/png"
	require.NoError(t, cache.StoreWithMetadata(meta, strings.NewReader("data")))

	found, err := cache.FindByFileName(meta.FileName())
	require.NoError(t, err)
	assert.Equal(t, meta.ID, found.ID)

	_, err = cache.FindByFileName("nope.png")
	assert.Error(t, err)
}

func TestDeleteWithMetadata(t *testing.T) {
	cache := newTestCache(t)

	meta := NewCachedMediaMetadata("https://store.example/banner-images/x.png")
	require.NoError(t, cache.StoreWithMetadata(meta, strings.NewReader("data")))
	require.NoError(t, cache.DeleteWithMetadata(meta))

	exists, err := cache.Exists(meta.RelativeMediaPath())
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = cache.LoadMetadata(meta.ID)
	assert.Error(t, err)
}

func TestDeleteWithMetadataMissingFiles(t *testing.T) {
	cache := newTestCache(t)

	meta := NewCachedMediaMetadata("https://store.example/banner-images/x.png")
	require.NoError(t, cache.StoreWithMetadata(meta, strings.NewReader("data")))

	// remove the media file behind the cache's back
	absPath, err := cache.sandbox.ResolvePath(meta.RelativeMediaPath())
	require.NoError(t, err)
	require.NoError(t, os.Remove(absPath))

	require.NoError(t, cache.DeleteWithMetadata(meta))

	// deleting again with everything already gone is still fine
	require.NoError(t, cache.DeleteWithMetadata(meta))
}

func TestGetStaleMedia(t *testing.T) {
	cache := newTestCache(t)

	stale := NewCachedMediaMetadata("https://store.example/banner-images/old.png")
	stale.LastSeenAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, cache.StoreWithMetadata(stale, strings.NewReader("old")))

	fresh := NewCachedMediaMetadata("https://store.example/banner-images/new.png")
	require.NoError(t, cache.StoreWithMetadata(fresh, strings.NewReader("new")))

	// uploads are never stale
	uploaded := NewUploadedMediaMetadata()
	uploaded.LastSeenAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, cache.StoreWithMetadata(uploaded, strings.NewReader("up")))

	results, err := cache.GetStaleMedia(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, stale.ID, results[0].ID)
}

func TestTouchMetadata(t *testing.T) {
	cache := newTestCache(t)

	meta := NewCachedMediaMetadata("https://store.example/banner-images/x.png")
	meta.LastSeenAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, cache.StoreWithMetadata(meta, strings.NewReader("data")))

	require.NoError(t, cache.TouchMetadata(meta))

	loaded, err := cache.LoadMetadata(meta.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), loaded.LastSeenAt, time.Minute)
}

func TestScan(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.StoreWithMetadata(
		NewCachedMediaMetadata("https://store.example/banner-images/a.png"), strings.NewReader("a")))
	require.NoError(t, cache.StoreWithMetadata(
		NewUploadedMediaMetadata(), strings.NewReader("b")))

	all, err := cache.Scan()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestContentTypeHelpers(t *testing.T) {
	assert.Equal(t, ".png", ExtensionFromContentType("image/png; charset=utf-8"))
	assert.Equal(t, ".mp4", ExtensionFromContentType("video/mp4"))
	assert.Equal(t, "", ExtensionFromContentType("application/pdf"))

	assert.Equal(t, "image/jpeg", ContentTypeFromPath("x.JPG"))
	assert.Equal(t, "video/webm", ContentTypeFromPath("clip.webm"))
	assert.Equal(t, "application/octet-stream", ContentTypeFromPath("file.bin"))
}
