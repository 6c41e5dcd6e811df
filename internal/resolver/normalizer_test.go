package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeObjectStorageURL(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	got := n.Normalize("https://store.example/bucket/banner-slides/x.png")
	assert.Equal(t, "/proxy/bucket/banner-slides/x.png", got)
}

func TestNormalizeProtocolRelativeURL(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	got := n.Normalize("//store.example/banner-images/slides/hero.jpg")
	assert.Equal(t, "/proxy/banner-images/slides/hero.jpg", got)
}

func TestNormalizeUndecomposableURLFallsBackToFilename(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	// single path segment, no bucket+path split possible
	got := n.Normalize("https://store.example/banner.png")
	assert.Equal(t, "/banners/media/banner.png", got)
}

func TestNormalizeRelativePathGetsLeadingSlash(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	assert.Equal(t, "/banner-images/x.png", n.Normalize("banner-images/x.png"))
	assert.Equal(t, "/banner-images/x.png", n.Normalize("/banner-images/x.png"))
}

func TestNormalizeNonBannerPassThrough(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	tests := []string{
		"",
		"https://cdn.example.com/avatars/user.png",
		"logo.svg",
		"/assets/site-header.jpg",
	}
	for _, ref := range tests {
		assert.Equal(t, ref, n.Normalize(ref), "reference %q should pass through", ref)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	paths := []string{
		"/proxy/banner-images/slides/x.png",
		"/banners/media/x.png",
		"/uploads/banner-x.png",
	}
	for _, p := range paths {
		once := n.Normalize(p)
		assert.Equal(t, p, once, "already-normalized path %q must not change", p)
		assert.Equal(t, once, n.Normalize(once))
	}
}

func TestNormalizeForceReloadAppendsCacheBust(t *testing.T) {
	opts := DefaultOptions()
	opts.ForceReload = true
	n := NewNormalizer(opts)
	n.now = func() time.Time { return time.Unix(1700000000, 0) }

	got := n.Normalize("https://store.example/bucket/banner-slides/x.png")
	assert.Equal(t, "/proxy/bucket/banner-slides/x.png?v=1700000000", got)

	// pass-through references are not busted
	assert.Equal(t, "logo.svg", n.Normalize("logo.svg"))
}

func TestNormalizeCustomMarkers(t *testing.T) {
	opts := DefaultOptions()
	opts.PathMarkers = []string{"hero", "carousel"}
	n := NewNormalizer(opts)

	assert.Equal(t, "/hero/x.png", n.Normalize("hero/x.png"))
	assert.Equal(t, "banner/x.png", n.Normalize("banner/x.png"))
}

func TestIsBannerAssetCaseInsensitive(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	assert.True(t, n.IsBannerAsset("/Banner-Images/x.png"))
	assert.True(t, n.IsBannerAsset("https://host/BANNER/x.png"))
	assert.False(t, n.IsBannerAsset("/avatars/x.png"))
}
