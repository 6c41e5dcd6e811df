// Package resolver implements banner media resolution: normalizing stored
// media references into candidate URLs and walking a deterministic fallback
// cascade until a candidate loads or the placeholder is reached.
package resolver

import "time"

// Default resolution settings.
const (
	DefaultAttemptCap      = 3
	DefaultDirectEndpoint  = "/banners/media"
	DefaultProxyPrefix     = "/proxy"
	DefaultUploadsPath     = "/uploads"
	DefaultPlaceholderPath = "/assets/banner-placeholder.png"
)

// DefaultBuckets are the object storage buckets consulted during fallback,
// in priority order.
var DefaultBuckets = []string{"banner-images", "banner-uploads"}

// DefaultPathMarkers identify references that belong to banner media.
var DefaultPathMarkers = []string{"banner"}

// Options controls normalization and fallback behaviour. The zero value is
// not usable; start from DefaultOptions.
type Options struct {
	// PathMarkers are substrings identifying banner-relevant references.
	// References matching none of them pass through normalization unchanged.
	PathMarkers []string

	// DirectEndpoint serves banner media directly by filename.
	DirectEndpoint string

	// ProxyPrefix is the same-origin prefix for object storage proxying.
	ProxyPrefix string

	// Buckets are the proxy buckets tried during fallback, in order.
	Buckets []string

	// UploadsPath is the static uploads location tried last before the
	// placeholder.
	UploadsPath string

	// PlaceholderPath is the asset shown when resolution is exhausted.
	PlaceholderPath string

	// AttemptCap bounds the number of fallback hops per media reference.
	AttemptCap int

	// AttemptDelay is an explicit pause between consecutive probe attempts.
	AttemptDelay time.Duration

	// ForceReload appends a cache-busting query parameter during
	// normalization.
	ForceReload bool
}

// DefaultOptions returns Options with the historical defaults.
func DefaultOptions() Options {
	return Options{
		PathMarkers:     DefaultPathMarkers,
		DirectEndpoint:  DefaultDirectEndpoint,
		ProxyPrefix:     DefaultProxyPrefix,
		Buckets:         DefaultBuckets,
		UploadsPath:     DefaultUploadsPath,
		PlaceholderPath: DefaultPlaceholderPath,
		AttemptCap:      DefaultAttemptCap,
	}
}

// normalized fills in zero-valued fields so downstream code can rely on them.
func (o Options) normalized() Options {
	if len(o.PathMarkers) == 0 {
		o.PathMarkers = DefaultPathMarkers
	}
	if o.DirectEndpoint == "" {
		o.DirectEndpoint = DefaultDirectEndpoint
	}
	if o.ProxyPrefix == "" {
		o.ProxyPrefix = DefaultProxyPrefix
	}
	if len(o.Buckets) == 0 {
		o.Buckets = DefaultBuckets
	}
	if o.UploadsPath == "" {
		o.UploadsPath = DefaultUploadsPath
	}
	if o.PlaceholderPath == "" {
		o.PlaceholderPath = DefaultPlaceholderPath
	}
	if o.AttemptCap <= 0 {
		o.AttemptCap = DefaultAttemptCap
	}
	return o
}
