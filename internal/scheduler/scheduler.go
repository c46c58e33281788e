package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/app/harvest"
	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
	"github.com/preston-bernstein/oddsharvester/internal/metrics"
)

const defaultInterval = time.Hour

// Harvester runs an upcoming-matches harvest.
type Harvester interface {
	Upcoming(ctx context.Context, req harvest.UpcomingRequest) (harvest.Run, error)
}

// Target is the listing every cycle scrapes.
type Target struct {
	Sport   domain.Sport
	League  string
	Markets []string
	// Location decides which calendar day counts as today.
	Location *time.Location
}

// Scheduler harvests upcoming matches on an interval.
type Scheduler struct {
	harvester Harvester
	target    Target
	logger    *slog.Logger
	metrics   *metrics.Recorder
	interval  time.Duration
	now       func() time.Time

	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	startMu  sync.Mutex
	started  bool

	statusMu sync.RWMutex
	status   Status
}

// Status describes the recent health of the scheduler loop.
type Status struct {
	ConsecutiveFailures int
	LastError           string
	LastAttempt         time.Time
	LastSuccess         time.Time
	LastRunID           string
}

// IsReady reports whether a cycle has succeeded recently and the loop is not failing repeatedly.
func (s Status) IsReady() bool {
	if s.LastSuccess.IsZero() {
		return false
	}
	return s.ConsecutiveFailures < 3
}

// New constructs a Scheduler. A non-positive interval runs hourly.
func New(h Harvester, target Target, logger *slog.Logger, recorder *metrics.Recorder, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if target.Location == nil {
		target.Location = time.UTC
	}
	return &Scheduler{
		harvester: h,
		target:    target,
		logger:    logger,
		metrics:   recorder,
		interval:  interval,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start runs one cycle immediately and then one per interval until ctx is
// cancelled or Stop is called. Cycles never overlap.
func (s *Scheduler) Start(ctx context.Context) {
	s.startMu.Lock()
	if s.started {
		s.startMu.Unlock()
		return
	}
	s.started = true
	s.startMu.Unlock()

	s.ticker = time.NewTicker(s.interval)

	go func() {
		logging.Info(s.logger, "scheduler started", slog.Int64(logging.FieldDurationMS, s.interval.Milliseconds()))
		s.cycle(ctx)

		for {
			select {
			case <-ctx.Done():
				s.ticker.Stop()
				logging.Info(s.logger, "scheduler stopped")
				return
			case <-s.done:
				s.ticker.Stop()
				logging.Info(s.logger, "scheduler stopped")
				return
			case <-s.ticker.C:
				s.cycle(ctx)
			}
		}
	}()
}

// Stop halts the loop. A cycle already in flight finishes on its own context.
func (s *Scheduler) Stop(ctx context.Context) error {
	_ = ctx
	s.stopOnce.Do(func() {
		close(s.done)
		if s.ticker != nil {
			s.ticker.Stop()
		}
	})
	return nil
}

func (s *Scheduler) cycle(ctx context.Context) {
	start := time.Now()
	s.recordAttempt(start)

	req := harvest.UpcomingRequest{
		Sport:   s.target.Sport,
		Date:    s.now().In(s.target.Location),
		League:  s.target.League,
		Markets: s.target.Markets,
	}
	run, err := s.harvester.Upcoming(ctx, req)
	s.metrics.RecordSchedulerCycle(time.Since(start), err)
	if err != nil {
		logging.Error(s.logger, "scheduled harvest failed", err, slog.Int64(logging.FieldDurationMS, time.Since(start).Milliseconds()))
		s.recordFailure(err, start)
		return
	}

	s.recordSuccess(start, run.ID)
	logging.Info(s.logger, "scheduled harvest finished",
		logging.FieldRunID, run.ID,
		logging.FieldCount, run.Discovered,
		"succeeded", run.Report.Succeeded,
		"failed", run.Report.Failed,
		logging.FieldDurationMS, time.Since(start).Milliseconds(),
	)
}

func (s *Scheduler) recordAttempt(at time.Time) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.LastAttempt = at
}

func (s *Scheduler) recordSuccess(at time.Time, runID string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.ConsecutiveFailures = 0
	s.status.LastError = ""
	s.status.LastSuccess = at
	s.status.LastRunID = runID
}

func (s *Scheduler) recordFailure(err error, at time.Time) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.ConsecutiveFailures++
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.status.LastAttempt = at
}

// Status returns a snapshot of the scheduler's recent health.
func (s *Scheduler) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}
