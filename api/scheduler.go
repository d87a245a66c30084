/*
scheduler.go - Automated nightly sync

PURPOSE:
  Keeps the current year's monthly records fresh without waiting for a
  dashboard read. On every tick it runs EnsureYear(current year) for each
  registered kind, the kinds in parallel.

DESIGN:
  - robfig/cron drives the schedule (standard 5-field spec, e.g. "0 3 * * *")
  - errgroup runs one goroutine per kind and returns the first error
  - A tick that is still running when the next one fires is skipped
  - Every kind's outcome is logged and counted (scheduler_runs_total)

USAGE:
  scheduler := NewSyncScheduler(services, m, logger)
  if err := scheduler.Start("0 3 * * *"); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - generic/reconciler.go: EnsureYear
  - metrics/metrics.go: SchedulerRun
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aneupi/finance-engine/generic"
	"github.com/aneupi/finance-engine/metrics"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runTimeout bounds one scheduled run.
const runTimeout = 5 * time.Minute

// SyncScheduler materialises the current year of every kind on a schedule.
type SyncScheduler struct {
	services []*generic.Service
	metrics  *metrics.Metrics
	logger   *zap.Logger
	clock    func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSyncScheduler creates a stopped scheduler. m may be nil.
func NewSyncScheduler(services []*generic.Service, m *metrics.Metrics, logger *zap.Logger) *SyncScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		services: services,
		metrics:  m,
		logger:   logger.Named("scheduler"),
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules RunNow with a standard cron spec.
func (s *SyncScheduler) Start(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, s.tick); err != nil {
		return err
	}
	c.Start()
	s.cron = c

	s.logger.Info("scheduler started", zap.String("schedule", spec))
	return nil
}

// Stop stops the schedule and waits for a running tick to finish.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *SyncScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if err := s.RunNow(ctx); err != nil {
		s.logger.Error("scheduled sync failed", zap.Error(err))
	}
}

// RunNow syncs the current year of every kind concurrently and returns the
// first failure.
func (s *SyncScheduler) RunNow(ctx context.Context) error {
	year := s.clock().Year()
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range s.services {
		svc := svc
		g.Go(func() error {
			kind := svc.Kind().ID
			err := svc.Reconciler().EnsureYear(gctx, year)
			if s.metrics != nil {
				s.metrics.SchedulerRun(kind, err)
			}
			if err != nil {
				s.logger.Warn("kind sync failed",
					zap.String("kind", string(kind)),
					zap.Int("year", year),
					zap.Error(err))
				return err
			}
			s.logger.Debug("kind synced",
				zap.String("kind", string(kind)),
				zap.Int("year", year))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("sync completed",
		zap.Int("year", year),
		zap.Int("kinds", len(s.services)),
		zap.Duration("duration", time.Since(start)))
	return nil
}
