package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/SAP-F-2025/learning-service/internal/metrics"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

const (
	pruneAt      = "03:00"
	pruneTimeout = 2 * time.Minute
)

// StatsSource reports the live websocket connection and room counts
type StatsSource interface {
	Stats() (connections, rooms int)
}

// Scheduler runs the housekeeping jobs of the service
type Scheduler struct {
	scheduler     *gocron.Scheduler
	repo          repositories.Repository
	stats         StatsSource
	retentionDays int
	loc           *time.Location
	logger        *slog.Logger
	now           func() time.Time
}

// New creates a scheduler whose daily jobs run in loc
func New(repo repositories.Repository, stats StatsSource, retentionDays int, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		scheduler:     gocron.NewScheduler(loc),
		repo:          repo,
		stats:         stats,
		retentionDays: retentionDays,
		loc:           loc,
		logger:        logger,
		now:           time.Now,
	}
}

// Start registers the jobs and runs them in the background
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Minute().Do(s.RefreshStats); err != nil {
		return fmt.Errorf("failed to schedule stats refresh: %w", err)
	}

	if s.retentionDays > 0 {
		if _, err := s.scheduler.Every(1).Day().At(pruneAt).Do(s.pruneMarkers); err != nil {
			return fmt.Errorf("failed to schedule marker pruning: %w", err)
		}
	}

	s.scheduler.StartAsync()
	s.logger.Info("Scheduler started", "jobs", len(s.scheduler.Jobs()), "timezone", s.loc.String())
	return nil
}

// Stop terminates all scheduled jobs
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info("Scheduler stopped")
}

// RefreshStats publishes the registry gauges
func (s *Scheduler) RefreshStats() {
	if s.stats == nil {
		return
	}
	connections, rooms := s.stats.Stats()
	metrics.SetRegistryStats(connections, rooms)
	s.logger.Debug("Websocket registry stats", "connections", connections, "rooms", rooms)
}

func (s *Scheduler) pruneMarkers() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	if _, err := s.PruneMarkers(ctx); err != nil {
		s.logger.Error("Failed to prune advancement markers", "error", err)
	}
}

// PruneMarkers deletes advancement markers older than the retention window
func (s *Scheduler) PruneMarkers(ctx context.Context) (int64, error) {
	cutoff := s.now().In(s.loc).AddDate(0, 0, -s.retentionDays)

	deleted, err := s.repo.Advancement().DeleteBefore(ctx, nil, cutoff)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Pruned advancement markers", "deleted", deleted, "before", cutoff.Format(time.DateOnly))
	return deleted, nil
}
