package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/openhood/bannerd/internal/config"
	"github.com/openhood/bannerd/internal/database"
	"github.com/openhood/bannerd/internal/models"
	"github.com/openhood/bannerd/internal/repository"
	"github.com/openhood/bannerd/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probeOrigin is an httptest server that returns 200 for registered paths
// and 404 otherwise, recording each request path.
type probeOrigin struct {
	srv *httptest.Server

	mu    sync.Mutex
	ok    map[string]bool
	paths []string
}

func newProbeOrigin(t *testing.T, okPaths ...string) *probeOrigin {
	t.Helper()

	origin := &probeOrigin{ok: make(map[string]bool)}
	for _, p := range okPaths {
		origin.ok[p] = true
	}
	origin.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin.mu.Lock()
		origin.paths = append(origin.paths, r.URL.Path)
		found := origin.ok[r.URL.Path]
		origin.mu.Unlock()

		if found {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(origin.srv.Close)
	return origin
}

func (o *probeOrigin) allow(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ok[path] = true
}

func (o *probeOrigin) requests() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.paths...)
}

func newTestBannerService(t *testing.T, origin *probeOrigin) *BannerService {
	t.Helper()

	db, err := database.New(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	repo := repository.NewBannerSlideRepository(db.DB)
	svc := NewBannerService(repo)
	if origin != nil {
		svc.WithBaseURL(origin.srv.URL).WithProbeClient(origin.srv.Client())
	}
	return svc
}

func TestBannerServiceCreateValidates(t *testing.T) {
	svc := newTestBannerService(t, nil)
	ctx := context.Background()

	err := svc.Create(ctx, &models.BannerSlide{MediaRef: "/banner/x.png"})
	assert.ErrorIs(t, err, models.ErrTitleRequired)

	err = svc.Create(ctx, &models.BannerSlide{Title: "No Media"})
	assert.ErrorIs(t, err, models.ErrMediaRefRequired)

	slide := &models.BannerSlide{Title: "Valid", MediaRef: "/banner/x.png"}
	require.NoError(t, svc.Create(ctx, slide))
	assert.False(t, slide.ID.IsZero())
	assert.Equal(t, models.ResolutionPending, slide.ResolutionState)
}

func TestBannerServiceGetNotFound(t *testing.T) {
	svc := newTestBannerService(t, nil)

	_, err := svc.Get(context.Background(), models.NewULID())
	assert.ErrorIs(t, err, ErrSlideNotFound)
}

func TestBannerServiceReorder(t *testing.T) {
	svc := newTestBannerService(t, nil)
	ctx := context.Background()

	first := &models.BannerSlide{Title: "First", MediaRef: "/banner/a.png"}
	second := &models.BannerSlide{Title: "Second", MediaRef: "/banner/b.png"}
	require.NoError(t, svc.Create(ctx, first))
	require.NoError(t, svc.Create(ctx, second))

	require.NoError(t, svc.Reorder(ctx, []models.ULID{second.ID, first.ID}))

	slides, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, slides, 2)
	assert.Equal(t, "Second", slides[0].Title)
	assert.Equal(t, "First", slides[1].Title)
}

func TestBannerServiceReorderRejectsBadInput(t *testing.T) {
	svc := newTestBannerService(t, nil)
	ctx := context.Background()

	slide := &models.BannerSlide{Title: "Only", MediaRef: "/banner/a.png"}
	require.NoError(t, svc.Create(ctx, slide))

	assert.Error(t, svc.Reorder(ctx, nil))
	assert.Error(t, svc.Reorder(ctx, []models.ULID{slide.ID, slide.ID}))
	assert.ErrorIs(t, svc.Reorder(ctx, []models.ULID{models.NewULID()}), ErrSlideNotFound)
}

func TestBannerServiceStats(t *testing.T) {
	origin := newProbeOrigin(t, "/proxy/banner-images/banner-slides/good.png")
	svc := newTestBannerService(t, origin)
	ctx := context.Background()

	good := &models.BannerSlide{Title: "Good", MediaRef: "https://media.example.net/banner-images/banner-slides/good.png"}
	bad := &models.BannerSlide{Title: "Bad", MediaRef: "https://media.example.net/banner-images/banner-slides/bad.png"}
	pending := &models.BannerSlide{Title: "Pending", MediaRef: "/banner/later.png"}
	require.NoError(t, svc.Create(ctx, good))
	require.NoError(t, svc.Create(ctx, bad))
	require.NoError(t, svc.Create(ctx, pending))

	_, err := svc.Resolve(ctx, good.ID)
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, bad.ID)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalSlides)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 1, stats.Exhausted)
	assert.Equal(t, 1, stats.Pending)
	assert.Positive(t, stats.TrackedAttempts)
}

func TestBannerServiceResolveLoadedPersisted(t *testing.T) {
	origin := newProbeOrigin(t, "/proxy/banner-images/banner-slides/hero.png")
	svc := newTestBannerService(t, origin)
	ctx := context.Background()

	slide := &models.BannerSlide{
		Title:    "Hero",
		MediaRef: "https://media.example.net/banner-images/banner-slides/hero.png",
	}
	require.NoError(t, svc.Create(ctx, slide))

	result, err := svc.Resolve(ctx, slide.ID)
	require.NoError(t, err)
	assert.Equal(t, resolver.StateLoaded, result.State)
	assert.Equal(t, "/proxy/banner-images/banner-slides/hero.png", result.URL)
	assert.Equal(t, 1, result.Attempts)

	found, err := svc.Get(ctx, slide.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionLoaded, found.ResolutionState)
	assert.Equal(t, result.URL, found.ResolvedURL)
	assert.Equal(t, 1, found.ResolutionAttempts)
	assert.NotNil(t, found.LastResolvedAt)
}

func TestBannerServiceResolveFallsBackToDirectEndpoint(t *testing.T) {
	origin := newProbeOrigin(t, "/banners/media/hero.png")
	svc := newTestBannerService(t, origin)
	ctx := context.Background()

	slide := &models.BannerSlide{
		Title:    "Hero",
		MediaRef: "https://media.example.net/banner-images/banner-slides/hero.png",
	}
	require.NoError(t, svc.Create(ctx, slide))

	result, err := svc.Resolve(ctx, slide.ID)
	require.NoError(t, err)
	assert.Equal(t, resolver.StateLoaded, result.State)
	assert.Equal(t, "/banners/media/hero.png", result.URL)
	assert.Equal(t, 2, result.Attempts)

	assert.Equal(t, []string{
		"/proxy/banner-images/banner-slides/hero.png",
		"/banners/media/hero.png",
	}, origin.requests())
}

func TestBannerServiceResolveExhaustionPersistsPlaceholder(t *testing.T) {
	origin := newProbeOrigin(t)
	svc := newTestBannerService(t, origin)
	ctx := context.Background()

	slide := &models.BannerSlide{
		Title:    "Dead",
		MediaRef: "https://media.example.net/banner-images/banner-slides/gone.png",
	}
	require.NoError(t, svc.Create(ctx, slide))

	result, err := svc.Resolve(ctx, slide.ID)
	require.NoError(t, err)
	assert.Equal(t, resolver.StateExhausted, result.State)
	assert.Equal(t, resolver.DefaultPlaceholderPath, result.URL)
	assert.Equal(t, 4, result.Attempts)

	found, err := svc.Get(ctx, slide.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionExhausted, found.ResolutionState)
	assert.Equal(t, resolver.DefaultPlaceholderPath, found.ResolvedURL)
}

func TestBannerServiceRetryResolveStartsOver(t *testing.T) {
	origin := newProbeOrigin(t)
	svc := newTestBannerService(t, origin)
	ctx := context.Background()

	slide := &models.BannerSlide{
		Title:    "Flaky",
		MediaRef: "https://media.example.net/banner-images/banner-slides/flaky.png",
	}
	require.NoError(t, svc.Create(ctx, slide))

	result, err := svc.Resolve(ctx, slide.ID)
	require.NoError(t, err)
	require.Equal(t, resolver.StateExhausted, result.State)

	// a later resolve without retry stays exhausted without probing again
	result, err = svc.Resolve(ctx, slide.ID)
	require.NoError(t, err)
	assert.Equal(t, resolver.StateExhausted, result.State)
	assert.Zero(t, result.Attempts)

	origin.allow("/proxy/banner-images/banner-slides/flaky.png")

	result, err = svc.RetryResolve(ctx, slide.ID)
	require.NoError(t, err)
	assert.Equal(t, resolver.StateLoaded, result.State)
	assert.Equal(t, "/proxy/banner-images/banner-slides/flaky.png", result.URL)

	found, err := svc.Get(ctx, slide.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionLoaded, found.ResolutionState)
}

func TestBannerServiceUpdateMediaRefChangeResetsResolution(t *testing.T) {
	origin := newProbeOrigin(t)
	svc := newTestBannerService(t, origin)
	ctx := context.Background()

	slide := &models.BannerSlide{
		Title:    "Rotating",
		MediaRef: "https://media.example.net/banner-images/banner-slides/old.png",
	}
	require.NoError(t, svc.Create(ctx, slide))

	_, err := svc.Resolve(ctx, slide.ID)
	require.NoError(t, err)

	slide.MediaRef = "https://media.example.net/banner-images/banner-slides/new.png"
	require.NoError(t, svc.Update(ctx, slide))

	found, err := svc.Get(ctx, slide.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionPending, found.ResolutionState)
	assert.Empty(t, found.ResolvedURL)
	assert.Zero(t, found.ResolutionAttempts)
}

func TestBannerServiceUpdateSameMediaRefKeepsResolution(t *testing.T) {
	origin := newProbeOrigin(t, "/proxy/banner-images/banner-slides/keep.png")
	svc := newTestBannerService(t, origin)
	ctx := context.Background()

	slide := &models.BannerSlide{
		Title:    "Stable",
		MediaRef: "https://media.example.net/banner-images/banner-slides/keep.png",
	}
	require.NoError(t, svc.Create(ctx, slide))

	_, err := svc.Resolve(ctx, slide.ID)
	require.NoError(t, err)

	resolved, err := svc.Get(ctx, slide.ID)
	require.NoError(t, err)
	resolved.Title = "Stable Renamed"
	require.NoError(t, svc.Update(ctx, resolved))

	found, err := svc.Get(ctx, slide.ID)
	require.NoError(t, err)
	assert.Equal(t, "Stable Renamed", found.Title)
	assert.Equal(t, models.ResolutionLoaded, found.ResolutionState)
}

func TestBannerServiceResolveAllSkipsDisabled(t *testing.T) {
	origin := newProbeOrigin(t,
		"/proxy/banner-images/banner-slides/a.png",
		"/proxy/banner-images/banner-slides/b.png",
	)
	svc := newTestBannerService(t, origin)
	ctx := context.Background()

	first := &models.BannerSlide{
		Title:    "A",
		MediaRef: "https://media.example.net/banner-images/banner-slides/a.png",
	}
	require.NoError(t, svc.Create(ctx, first))

	second := &models.BannerSlide{
		Title:     "B",
		MediaRef:  "https://media.example.net/banner-images/banner-slides/b.png",
		SortOrder: 1,
	}
	require.NoError(t, svc.Create(ctx, second))

	disabled := &models.BannerSlide{
		Title:     "Off",
		MediaRef:  "https://media.example.net/banner-images/banner-slides/off.png",
		SortOrder: 2,
		Enabled:   models.BoolPtr(false),
	}
	require.NoError(t, svc.Create(ctx, disabled))

	settled, err := svc.ResolveAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, settled)

	found, err := svc.Get(ctx, disabled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionPending, found.ResolutionState)
}

func TestBannerServiceDeleteForgetsTrackedAttempts(t *testing.T) {
	origin := newProbeOrigin(t)
	tracker := resolver.NewMemoryTracker()
	svc := newTestBannerService(t, origin).WithTracker(tracker)
	ctx := context.Background()

	slide := &models.BannerSlide{
		Title:    "Doomed",
		MediaRef: "https://media.example.net/banner-images/banner-slides/doomed.png",
	}
	require.NoError(t, svc.Create(ctx, slide))

	_, err := svc.Resolve(ctx, slide.ID)
	require.NoError(t, err)
	require.Positive(t, tracker.Attempts(slide.MediaRef))

	require.NoError(t, svc.Delete(ctx, slide.ID))
	assert.Zero(t, tracker.Attempts(slide.MediaRef))

	_, err = svc.Get(ctx, slide.ID)
	assert.ErrorIs(t, err, ErrSlideNotFound)
}
