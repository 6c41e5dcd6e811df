package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openhood/bannerd/internal/urlutil"
	"github.com/openhood/bannerd/pkg/httpclient"
)

// ProxyHandler forwards same-origin /proxy/{bucket}/... requests to the
// object store, so browsers never talk to it directly. Misses are expected
// during fallback probing, so 404s from the upstream count as acceptable
// responses and do not trip the circuit breaker.
type ProxyHandler struct {
	client      *httpclient.Client
	upstreamURL string
	buckets     map[string]bool
	logger      *slog.Logger
}

// NewProxyHandler creates a proxy handler forwarding to upstreamURL.
// Only the named buckets are reachable through the proxy.
func NewProxyHandler(upstreamURL string, buckets []string, logger *slog.Logger) *ProxyHandler {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := httpclient.DefaultConfig()
	cfg.Logger = logger
	cfg.AcceptableStatusCodes = httpclient.MustParseStatusCodes("200-299,404")

	allowed := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		allowed[b] = true
	}

	return &ProxyHandler{
		client:      newProxyClient(cfg),
		upstreamURL: urlutil.NormalizeBaseURL(upstreamURL),
		buckets:     allowed,
		logger:      logger,
	}
}

// newProxyClient builds the upstream client with the shared proxy breaker so
// the health endpoint can report its state.
func newProxyClient(cfg httpclient.Config) *httpclient.Client {
	breaker := httpclient.DefaultManager.GetOrCreate("proxy",
		cfg.CircuitThreshold, cfg.CircuitTimeout, cfg.CircuitHalfOpenMax)
	return httpclient.NewWithBreaker(cfg, breaker)
}

// RegisterRoutes registers the proxy routes on the router under prefix.
func (h *ProxyHandler) RegisterRoutes(router chi.Router, prefix string) {
	if prefix == "" {
		prefix = "/proxy"
	}
	pattern := strings.TrimSuffix(prefix, "/") + "/{bucket}/*"
	router.Get(pattern, h.ServeProxy)
	router.Head(pattern, h.ServeProxy)
}

// ServeProxy fetches the requested object from the upstream store and
// streams it back.
func (h *ProxyHandler) ServeProxy(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	objectPath := chi.URLParam(r, "*")

	if bucket == "" || objectPath == "" {
		http.Error(w, "bucket and object path required", http.StatusBadRequest)
		return
	}
	if !h.buckets[bucket] {
		http.Error(w, "unknown bucket", http.StatusForbidden)
		return
	}
	if h.upstreamURL == "" {
		http.Error(w, "object store not configured", http.StatusBadGateway)
		return
	}

	target := urlutil.JoinPath(h.upstreamURL, bucket+"/"+objectPath)

	resp, err := h.client.Get(r.Context(), target)
	if err != nil {
		h.logger.Warn("object store fetch failed",
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		http.Error(w, http.StatusText(resp.StatusCode), resp.StatusCode)
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Debug("proxy copy interrupted",
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
	}
}

// WithTimeout rebuilds the underlying client with a custom request timeout.
func (h *ProxyHandler) WithTimeout(timeout time.Duration) *ProxyHandler {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = timeout
	cfg.Logger = h.logger
	cfg.AcceptableStatusCodes = httpclient.MustParseStatusCodes("200-299,404")
	h.client = newProxyClient(cfg)
	return h
}
