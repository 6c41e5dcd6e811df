// Package scheduler runs bannerd's recurring background jobs: pruning stale
// cached media and sweeping enabled slides so broken media references are
// discovered before a page load hits them.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openhood/bannerd/internal/service"
)

// Default schedules, 6-field cron expressions with a seconds column.
const (
	DefaultPruneSchedule = "0 0 3 * * *"
	DefaultSweepSchedule = "0 */30 * * * *"
)

// DefaultMediaRetention is how long unreferenced cached media is kept.
const DefaultMediaRetention = 7 * 24 * time.Hour

// Scheduler registers cron jobs for media pruning and slide resolution
// sweeps.
type Scheduler struct {
	mu sync.Mutex

	banners *service.BannerService
	media   *service.MediaService
	logger  *slog.Logger

	parser        cron.Parser
	pruneSchedule string
	sweepSchedule string
	retention     time.Duration

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler with the default schedules.
func NewScheduler(banners *service.BannerService, media *service.MediaService) *Scheduler {
	return &Scheduler{
		banners:       banners,
		media:         media,
		logger:        slog.Default(),
		parser:        cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		pruneSchedule: DefaultPruneSchedule,
		sweepSchedule: DefaultSweepSchedule,
		retention:     DefaultMediaRetention,
	}
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// WithPruneSchedule sets the cron expression for the media prune job.
func (s *Scheduler) WithPruneSchedule(expr string) *Scheduler {
	if expr != "" {
		s.pruneSchedule = expr
	}
	return s
}

// WithSweepSchedule sets the cron expression for the resolution sweep job.
func (s *Scheduler) WithSweepSchedule(expr string) *Scheduler {
	if expr != "" {
		s.sweepSchedule = expr
	}
	return s
}

// WithRetention sets how long unreferenced cached media is kept. Zero or
// negative disables pruning.
func (s *Scheduler) WithRetention(retention time.Duration) *Scheduler {
	s.retention = retention
	return s
}

// ValidateCron validates a cron expression against the scheduler's parser.
func (s *Scheduler) ValidateCron(expr string) error {
	_, err := s.parser.Parse(expr)
	return err
}

// Start registers the cron jobs and begins running them in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	for _, expr := range []string{s.pruneSchedule, s.sweepSchedule} {
		if _, err := s.parser.Parse(expr); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(cron.WithParser(s.parser))

	if _, err := s.cron.AddFunc(s.pruneSchedule, func() { s.runPrune(s.ctx) }); err != nil {
		return fmt.Errorf("registering prune job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.sweepSchedule, func() { s.runSweep(s.ctx) }); err != nil {
		return fmt.Errorf("registering sweep job: %w", err)
	}

	s.cron.Start()

	s.logger.Info("scheduler started",
		slog.String("prune_schedule", s.pruneSchedule),
		slog.String("sweep_schedule", s.sweepSchedule),
		slog.Duration("media_retention", s.retention),
	)
	return nil
}

// Stop cancels running jobs and waits for them to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}

	s.cancel()
	<-s.cron.Stop().Done()

	s.cron = nil
	s.ctx = nil
	s.cancel = nil

	s.logger.Info("scheduler stopped")
}

// PruneNow runs the media prune job immediately.
func (s *Scheduler) PruneNow(ctx context.Context) (int, error) {
	return s.media.PruneStale(ctx, s.retention)
}

// SweepNow runs the resolution sweep immediately.
func (s *Scheduler) SweepNow(ctx context.Context) (int, error) {
	return s.banners.ResolveAll(ctx)
}

func (s *Scheduler) runPrune(ctx context.Context) {
	pruned, err := s.PruneNow(ctx)
	if err != nil {
		s.logger.Error("media prune failed", slog.Any("error", err))
		return
	}
	if pruned > 0 {
		s.logger.Info("media prune finished", slog.Int("pruned", pruned))
	}
}

func (s *Scheduler) runSweep(ctx context.Context) {
	settled, err := s.SweepNow(ctx)
	if err != nil {
		s.logger.Error("resolution sweep failed", slog.Any("error", err))
		return
	}
	s.logger.Debug("resolution sweep finished", slog.Int("settled", settled))
}
