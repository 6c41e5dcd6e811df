package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probeServer serves 200 for the listed paths and 404 for everything else,
// recording the order of requests.
type probeServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []string
	ok       map[string]bool
}

func newProbeServer(okPaths ...string) *probeServer {
	ps := &probeServer{ok: make(map[string]bool)}
	for _, p := range okPaths {
		ps.ok[p] = true
	}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		ps.requests = append(ps.requests, r.URL.Path)
		ps.mu.Unlock()
		if ps.ok[r.URL.Path] {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("media"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	return ps
}

func (ps *probeServer) Requests() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]string, len(ps.requests))
	copy(out, ps.requests)
	return out
}

func TestProberFirstCandidateSucceeds(t *testing.T) {
	srv := newProbeServer("/proxy/bucket/banner-slides/x.png")
	defer srv.Close()

	opts := DefaultOptions()
	seq, _ := newTestSequencer(t, "https://store.example/bucket/banner-slides/x.png", opts)
	prober := NewProber(srv.Client(), srv.URL, 0)

	result, err := prober.Resolve(context.Background(), seq)
	require.NoError(t, err)

	assert.Equal(t, StateLoaded, result.State)
	assert.Equal(t, "/proxy/bucket/banner-slides/x.png", result.URL)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, []string{"/proxy/bucket/banner-slides/x.png"}, srv.Requests())
}

func TestProberFallsBackInPriorityOrder(t *testing.T) {
	srv := newProbeServer("/proxy/banner-images/x.png")
	defer srv.Close()

	seq, _ := newTestSequencer(t, "https://store.example/bucket/banner-slides/x.png", DefaultOptions())
	prober := NewProber(srv.Client(), srv.URL, 0)

	result, err := prober.Resolve(context.Background(), seq)
	require.NoError(t, err)

	assert.Equal(t, StateLoaded, result.State)
	assert.Equal(t, "/proxy/banner-images/x.png", result.URL)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []string{
		"/proxy/bucket/banner-slides/x.png",
		"/banners/media/x.png",
		"/proxy/banner-images/x.png",
	}, srv.Requests())
}

func TestProberExhaustionYieldsPlaceholder(t *testing.T) {
	srv := newProbeServer() // everything 404s
	defer srv.Close()

	seq, _ := newTestSequencer(t, "https://store.example/bucket/banner-slides/x.png", DefaultOptions())
	prober := NewProber(srv.Client(), srv.URL, 0)

	result, err := prober.Resolve(context.Background(), seq)
	require.NoError(t, err)

	assert.Equal(t, StateExhausted, result.State)
	assert.Equal(t, DefaultPlaceholderPath, result.URL)
	assert.Equal(t, 4, result.Attempts)
}

func TestProberEmptyReferencePlaceholderWithoutProbing(t *testing.T) {
	srv := newProbeServer()
	defer srv.Close()

	seq, _ := newTestSequencer(t, "", DefaultOptions())
	prober := NewProber(srv.Client(), srv.URL, 0)

	result, err := prober.Resolve(context.Background(), seq)
	require.NoError(t, err)

	assert.Equal(t, StateExhausted, result.State)
	assert.Equal(t, DefaultPlaceholderPath, result.URL)
	assert.Equal(t, 0, result.Attempts)
	assert.Empty(t, srv.Requests())
}

func TestProberContextCancellation(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	seq, _ := newTestSequencer(t, "/banner-images/x.png", DefaultOptions())
	prober := NewProber(srv.Client(), srv.URL, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := prober.Resolve(ctx, seq)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// the in-flight probe was the only one issued
	assert.LessOrEqual(t, calls.Load(), int32(1))
}

func TestProberAttemptDelay(t *testing.T) {
	srv := newProbeServer("/banners/media/x.png")
	defer srv.Close()

	seq, _ := newTestSequencer(t, "/banner-images/x.png", DefaultOptions())
	prober := NewProber(srv.Client(), srv.URL, 30*time.Millisecond)

	start := time.Now()
	result, err := prober.Resolve(context.Background(), seq)
	require.NoError(t, err)

	assert.Equal(t, StateLoaded, result.State)
	assert.Equal(t, 2, result.Attempts)
	// one delay inserted between the two attempts
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestProberSequentialProbes(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	seq, _ := newTestSequencer(t, "/banner-images/x.png", DefaultOptions())
	prober := NewProber(srv.Client(), srv.URL, 0)

	_, err := prober.Resolve(context.Background(), seq)
	require.NoError(t, err)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestProberTransportErrorCountsAsMiss(t *testing.T) {
	// point probes at a closed server so every request errors
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	seq, _ := newTestSequencer(t, "/banner-images/x.png", DefaultOptions())
	prober := NewProber(http.DefaultClient, url, 0)

	result, err := prober.Resolve(context.Background(), seq)
	require.NoError(t, err)
	assert.Equal(t, StateExhausted, result.State)
	assert.Equal(t, DefaultPlaceholderPath, result.URL)
}
