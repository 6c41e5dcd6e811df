// Package urlutil provides URL manipulation utilities.
package urlutil

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
)

// URL scheme constants.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeFile  = "file"
)

// NormalizeBaseURL normalizes a base URL for consistent use:
//   - Adds http:// scheme if no scheme provided
//   - Removes trailing slash for clean path joining
//
// Examples:
//
//	"www.mysite.com"       -> "http://www.mysite.com"
//	"https://mysite.com/"  -> "https://mysite.com"
//	"http://localhost:8080/" -> "http://localhost:8080"
func NormalizeBaseURL(baseURL string) string {
	if baseURL == "" {
		return ""
	}

	baseURL = strings.TrimSpace(baseURL)

	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return strings.TrimSuffix(baseURL, "/")
}

// JoinPath joins a base URL with a path, ensuring single slashes.
func JoinPath(baseURL, p string) string {
	if baseURL == "" {
		return p
	}

	baseURL = strings.TrimSuffix(baseURL, "/")

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return baseURL + p
}

// IsRemoteURL checks if a URL is a remote URL that can be fetched.
// This includes:
//   - URLs with http:// or https:// scheme
//   - Protocol-relative URLs (//example.com/...)
//
// Returns false for relative paths, empty strings, or local paths.
func IsRemoteURL(u string) bool {
	return strings.HasPrefix(u, "http://") ||
		strings.HasPrefix(u, "https://") ||
		strings.HasPrefix(u, "//")
}

// IsFileURL checks if a URL uses the file:// scheme.
func IsFileURL(u string) bool {
	return strings.HasPrefix(u, "file://")
}

// GetScheme returns the scheme of a URL (http, https, file) or empty string if unknown.
func GetScheme(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Scheme)
}

// FileNameFromURL extracts the final path segment of a URL, with any query
// string or fragment stripped. Returns empty string when the URL has no
// usable path segment.
func FileNameFromURL(u string) string {
	if u == "" {
		return ""
	}

	parsed, err := url.Parse(u)
	if err != nil {
		// fall back to manual trimming for malformed inputs
		if idx := strings.IndexAny(u, "?#"); idx >= 0 {
			u = u[:idx]
		}
		u = strings.TrimSuffix(u, "/")
		if idx := strings.LastIndex(u, "/"); idx >= 0 {
			u = u[idx+1:]
		}
		return u
	}

	name := path.Base(strings.TrimSuffix(parsed.Path, "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// PathSegments splits a URL path into its non-empty segments.
func PathSegments(p string) []string {
	parts := strings.Split(p, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// FilePathFromURL extracts the file path from a file:// URL.
func FilePathFromURL(u string) (string, error) {
	if !IsFileURL(u) {
		return "", fmt.Errorf("not a file:// URL: %s", u)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Path == "" {
		return "", fmt.Errorf("empty path in file URL: %s", u)
	}

	return parsed.Path, nil
}

// HTTPDoer is the subset of http.Client needed to fetch remote resources.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResourceFetcher retrieves banner media through a single entry point for
// http://, https://, and file:// references.
type ResourceFetcher struct {
	client HTTPDoer
}

// NewResourceFetcher creates a ResourceFetcher using the given HTTP client.
// A nil client falls back to http.DefaultClient.
func NewResourceFetcher(client HTTPDoer) *ResourceFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &ResourceFetcher{client: client}
}

// Fetch retrieves the resource at u and reports its content type, which may
// be empty when the source does not declare one. The returned reader must be
// closed by the caller.
func (f *ResourceFetcher) Fetch(ctx context.Context, u string) (io.ReadCloser, string, error) {
	switch GetScheme(u) {
	case SchemeHTTP, SchemeHTTPS:
		return f.fetchHTTP(ctx, u)
	case SchemeFile:
		return f.fetchFile(u)
	default:
		return nil, "", fmt.Errorf("unsupported URL scheme (URL: %s)", u)
	}
}

func (f *ResourceFetcher) fetchHTTP(ctx context.Context, u string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (f *ResourceFetcher) fetchFile(u string) (io.ReadCloser, string, error) {
	p, err := FilePathFromURL(u)
	if err != nil {
		return nil, "", err
	}

	file, err := os.Open(p)
	if err != nil {
		return nil, "", fmt.Errorf("opening file: %w", err)
	}

	return file, mime.TypeByExtension(path.Ext(p)), nil
}
