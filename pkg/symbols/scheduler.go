package symbols

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler reloads the catalog on a cron schedule. It complements the
// file watcher for files replaced without generating inotify events.
type Scheduler struct {
	catalog  *Catalog
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler with a standard 5-field cron
// expression, e.g. "0 6 * * *" for daily at 06:00.
func NewScheduler(catalog *Catalog, schedule string) *Scheduler {
	return &Scheduler{
		catalog:  catalog,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "symbols.scheduler"),
	}
}

// Start begins scheduled reloading. An empty schedule disables the
// scheduler. The scheduler stops when the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("refresh schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", s.schedule, err)
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.catalog.Reload(); err != nil {
			s.logger.Error("scheduled catalog refresh failed", "error", err)
			return
		}
		s.logger.Info("scheduled catalog refresh completed", "symbols", s.catalog.Len())
	})
	if err != nil {
		return fmt.Errorf("scheduling catalog refresh: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("symbol refresh scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts scheduled reloading, waiting for a running reload to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("symbol refresh scheduler stopped")
}
