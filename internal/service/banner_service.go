package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"gorm.io/gorm"

	"github.com/openhood/bannerd/internal/models"
	"github.com/openhood/bannerd/internal/repository"
	"github.com/openhood/bannerd/internal/resolver"
)

// ErrSlideNotFound is returned when a banner slide does not exist.
var ErrSlideNotFound = errors.New("banner slide not found")

// BannerService provides business logic for banner slides: CRUD plus
// resolution of each slide's media reference through the fallback cascade.
//
// Tried-candidate state lives in the tracker, keyed by the original media
// reference, so a resolution interrupted by shutdown resumes where it
// stopped instead of re-probing known-dead candidates.
type BannerService struct {
	repo    repository.BannerSlideRepository
	tracker resolver.Tracker
	opts    resolver.Options
	client  resolver.HTTPClient
	baseURL string
	logger  *slog.Logger
}

// NewBannerService creates a new BannerService with default resolution
// settings.
func NewBannerService(repo repository.BannerSlideRepository) *BannerService {
	return &BannerService{
		repo:    repo,
		tracker: resolver.NewMemoryTracker(),
		opts:    resolver.DefaultOptions(),
		client:  http.DefaultClient,
		logger:  slog.Default(),
	}
}

// WithResolverOptions sets the normalization and fallback options.
func (s *BannerService) WithResolverOptions(opts resolver.Options) *BannerService {
	s.opts = opts
	return s
}

// WithProbeClient sets the HTTP client used for candidate probes.
func (s *BannerService) WithProbeClient(client resolver.HTTPClient) *BannerService {
	s.client = client
	return s
}

// WithBaseURL sets the base URL relative probe candidates resolve against.
func (s *BannerService) WithBaseURL(baseURL string) *BannerService {
	s.baseURL = baseURL
	return s
}

// WithTracker sets the attempt tracker. Useful for sharing tried-candidate
// state across services or injecting a fake in tests.
func (s *BannerService) WithTracker(tracker resolver.Tracker) *BannerService {
	s.tracker = tracker
	return s
}

// WithLogger sets the logger for the service.
func (s *BannerService) WithLogger(logger *slog.Logger) *BannerService {
	s.logger = logger
	return s
}

// Create validates and persists a new banner slide.
func (s *BannerService) Create(ctx context.Context, slide *models.BannerSlide) error {
	if err := slide.Validate(); err != nil {
		return err
	}
	slide.ClearResolution()

	if err := s.repo.Create(ctx, slide); err != nil {
		return fmt.Errorf("creating banner slide: %w", err)
	}

	s.logger.Info("banner slide created",
		slog.String("id", slide.ID.String()),
		slog.String("title", slide.Title),
	)
	return nil
}

// Get retrieves a banner slide by ID.
func (s *BannerService) Get(ctx context.Context, id models.ULID) (*models.BannerSlide, error) {
	slide, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting banner slide: %w", err)
	}
	if slide == nil {
		return nil, ErrSlideNotFound
	}
	return slide, nil
}

// List retrieves all banner slides in carousel order.
func (s *BannerService) List(ctx context.Context) ([]*models.BannerSlide, error) {
	return s.repo.GetAll(ctx)
}

// ListEnabled retrieves the enabled slides in carousel order.
func (s *BannerService) ListEnabled(ctx context.Context) ([]*models.BannerSlide, error) {
	return s.repo.GetEnabled(ctx)
}

// Count returns the number of banner slides.
func (s *BannerService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// Reorder assigns carousel positions to the given slides following their
// position in ids. Every listed slide must exist; duplicates are rejected.
func (s *BannerService) Reorder(ctx context.Context, ids []models.ULID) error {
	if len(ids) == 0 {
		return fmt.Errorf("no slide IDs given")
	}

	seen := make(map[models.ULID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("duplicate slide ID %s", id)
		}
		seen[id] = true
	}

	if err := s.repo.UpdateSortOrders(ctx, ids); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSlideNotFound
		}
		return fmt.Errorf("reordering banner slides: %w", err)
	}

	s.logger.Info("banner slides reordered", slog.Int("count", len(ids)))
	return nil
}

// ResolutionStats summarizes slide resolution outcomes and the attempts the
// tracker currently holds for them.
type ResolutionStats struct {
	TotalSlides     int `json:"total_slides"`
	Pending         int `json:"pending"`
	Loaded          int `json:"loaded"`
	Exhausted       int `json:"exhausted"`
	TrackedAttempts int `json:"tracked_attempts"`
}

// Stats tallies every slide's persisted resolution state and the tracked
// fallback attempts for its media reference.
func (s *BannerService) Stats(ctx context.Context) (*ResolutionStats, error) {
	slides, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing banner slides: %w", err)
	}

	stats := &ResolutionStats{TotalSlides: len(slides)}
	for _, slide := range slides {
		switch slide.ResolutionState {
		case models.ResolutionLoaded:
			stats.Loaded++
		case models.ResolutionExhausted:
			stats.Exhausted++
		default:
			stats.Pending++
		}
		stats.TrackedAttempts += s.tracker.Attempts(slide.MediaRef)
	}
	return stats, nil
}

// Update validates and persists changes to a banner slide. Changing the
// media reference discards the slide's resolution state and any tried
// candidates accumulated for the old reference.
func (s *BannerService) Update(ctx context.Context, slide *models.BannerSlide) error {
	if err := slide.Validate(); err != nil {
		return err
	}

	existing, err := s.repo.GetByID(ctx, slide.ID)
	if err != nil {
		return fmt.Errorf("getting banner slide: %w", err)
	}
	if existing == nil {
		return ErrSlideNotFound
	}

	if existing.MediaRef != slide.MediaRef {
		s.tracker.Reset(existing.MediaRef)
		slide.ClearResolution()
		s.logger.Debug("media reference changed, resolution state reset",
			slog.String("id", slide.ID.String()),
			slog.String("old_ref", existing.MediaRef),
			slog.String("new_ref", slide.MediaRef),
		)
	}

	if err := s.repo.Update(ctx, slide); err != nil {
		return fmt.Errorf("updating banner slide: %w", err)
	}
	return nil
}

// Delete removes a banner slide and forgets any tracked attempts for its
// media reference.
func (s *BannerService) Delete(ctx context.Context, id models.ULID) error {
	slide, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("getting banner slide: %w", err)
	}
	if slide == nil {
		return ErrSlideNotFound
	}

	s.tracker.Reset(slide.MediaRef)

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting banner slide: %w", err)
	}

	s.logger.Info("banner slide deleted", slog.String("id", id.String()))
	return nil
}

// Resolve runs the fallback cascade for a slide's media reference and
// persists the outcome. Resolution resumes from previously tried candidates
// when a prior run was interrupted or exhausted only part of the cascade.
func (s *BannerService) Resolve(ctx context.Context, id models.ULID) (*resolver.Result, error) {
	slide, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resolveSlide(ctx, slide)
}

// RetryResolve discards all tried-candidate state for a slide and runs the
// cascade again from the top. This is the manual retry path for exhausted
// slides.
func (s *BannerService) RetryResolve(ctx context.Context, id models.ULID) (*resolver.Result, error) {
	slide, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.tracker.Reset(slide.MediaRef)
	s.logger.Debug("manual retry requested",
		slog.String("id", id.String()),
		slog.String("media_ref", slide.MediaRef),
	)

	return s.resolveSlide(ctx, slide)
}

// ResolveAll resolves every enabled slide in order. Individual failures are
// logged and skipped; the first context error aborts the sweep. Returns the
// number of slides that settled.
func (s *BannerService) ResolveAll(ctx context.Context) (int, error) {
	slides, err := s.repo.GetEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing enabled slides: %w", err)
	}

	settled := 0
	for _, slide := range slides {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		if _, err := s.resolveSlide(ctx, slide); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return settled, err
			}
			s.logger.Warn("slide resolution failed",
				slog.String("id", slide.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		settled++
	}
	return settled, nil
}

func (s *BannerService) resolveSlide(ctx context.Context, slide *models.BannerSlide) (*resolver.Result, error) {
	normalizer := resolver.NewNormalizer(s.opts)
	seq := resolver.NewSequencer(slide.MediaRef, normalizer, s.tracker, s.opts)
	prober := resolver.NewProber(s.client, s.baseURL, s.opts.AttemptDelay).WithLogger(s.logger)

	result, err := prober.Resolve(ctx, seq)
	if err != nil {
		// tried state is kept in the tracker; the next run resumes here
		return nil, fmt.Errorf("resolving media reference: %w", err)
	}

	state := models.ResolutionExhausted
	if result.State == resolver.StateLoaded {
		state = models.ResolutionLoaded
	}

	if err := s.repo.UpdateResolution(ctx, slide.ID, result.URL, state, result.Attempts); err != nil {
		return nil, fmt.Errorf("persisting resolution: %w", err)
	}

	s.logger.Info("slide resolution settled",
		slog.String("id", slide.ID.String()),
		slog.String("url", result.URL),
		slog.String("state", string(state)),
		slog.Int("attempts", result.Attempts),
	)

	return &result, nil
}
