package resolver

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/openhood/bannerd/internal/urlutil"
)

// Normalizer turns a raw stored media reference into the first candidate URL
// of the fallback cascade. Normalization is a pure function of the reference
// and the configured options; it never fails, degrading to pass-through or a
// filename-based best guess for inputs it cannot decompose.
type Normalizer struct {
	opts Options
	// now is injectable for deterministic cache-bust values in tests.
	now func() time.Time
}

// NewNormalizer creates a Normalizer with the given options.
func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{opts: opts.normalized(), now: time.Now}
}

// Normalize produces the first candidate URL for a media reference.
//
// Rules, in order:
//   - references that do not look like banner assets pass through unchanged
//   - already-normalized local paths (proxy, direct endpoint, uploads) pass
//     through unchanged, so repeated normalization is idempotent
//   - absolute object storage URLs are rewritten to a same-origin proxy path
//     of the form {proxy}/{bucket}/{path}
//   - remote URLs that cannot be decomposed into bucket+path degrade to the
//     direct endpoint with just the filename
//   - relative paths gain a leading slash
//
// When ForceReload is set, a cache-busting query parameter is appended to
// any reference that was rewritten.
func (n *Normalizer) Normalize(reference string) string {
	if reference == "" {
		return ""
	}

	if !n.IsBannerAsset(reference) {
		return reference
	}

	if n.isNormalizedLocal(reference) {
		return reference
	}

	if urlutil.IsRemoteURL(reference) {
		return n.cacheBust(n.rewriteRemote(reference))
	}

	if !strings.HasPrefix(reference, "/") {
		return n.cacheBust("/" + reference)
	}

	return n.cacheBust(reference)
}

// IsBannerAsset reports whether a reference matches any configured banner
// path marker. Matching is case-insensitive.
func (n *Normalizer) IsBannerAsset(reference string) bool {
	lowered := strings.ToLower(reference)
	for _, marker := range n.opts.PathMarkers {
		if strings.Contains(lowered, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// isNormalizedLocal reports whether the reference is already one of the
// same-origin paths this normalizer produces.
func (n *Normalizer) isNormalizedLocal(reference string) bool {
	return strings.HasPrefix(reference, n.opts.ProxyPrefix+"/") ||
		strings.HasPrefix(reference, n.opts.DirectEndpoint+"/") ||
		strings.HasPrefix(reference, n.opts.UploadsPath+"/") ||
		reference == n.opts.PlaceholderPath
}

// rewriteRemote converts an absolute object storage URL into a same-origin
// proxy path, or falls back to the direct endpoint with just the filename.
func (n *Normalizer) rewriteRemote(reference string) string {
	raw := reference
	if strings.HasPrefix(raw, "//") {
		raw = "http:" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return n.filenameFallback(reference)
	}

	segments := urlutil.PathSegments(parsed.Path)
	if len(segments) >= 2 {
		bucket := segments[0]
		rest := strings.Join(segments[1:], "/")
		return fmt.Sprintf("%s/%s/%s", n.opts.ProxyPrefix, bucket, rest)
	}

	return n.filenameFallback(reference)
}

// filenameFallback targets the direct endpoint with just the filename, or
// returns the reference unchanged when no filename can be extracted.
func (n *Normalizer) filenameFallback(reference string) string {
	name := urlutil.FileNameFromURL(reference)
	if name == "" {
		return reference
	}
	return n.opts.DirectEndpoint + "/" + name
}

// cacheBust appends a cache-busting query parameter when ForceReload is set.
func (n *Normalizer) cacheBust(candidate string) string {
	if !n.opts.ForceReload || candidate == "" {
		return candidate
	}
	sep := "?"
	if strings.Contains(candidate, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sv=%d", candidate, sep, n.now().Unix())
}
