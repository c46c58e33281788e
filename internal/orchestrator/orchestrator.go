// Package orchestrator fans match tasks out to a bounded worker pool and collects their results.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/extractor"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
	"github.com/preston-bernstein/oddsharvester/internal/metrics"
	"github.com/preston-bernstein/oddsharvester/internal/proxies"
	"github.com/preston-bernstein/oddsharvester/internal/resilience"
)

const defaultConcurrency = 3

// MatchExtractor runs one attempt of a task.
type MatchExtractor interface {
	Extract(ctx context.Context, task domain.ScrapeTask, proxy *domain.ProxyEntry) (domain.MatchResult, error)
}

// Sink persists finished match results.
type Sink interface {
	Name() string
	Save(ctx context.Context, runID string, result domain.MatchResult) error
}

// Config bounds how tasks are executed.
type Config struct {
	Concurrency int
	// TaskTimeout applies to each attempt. Zero disables the deadline.
	TaskTimeout time.Duration
	Policy      resilience.Policy
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSink persists each successful result through sink.
func WithSink(sink Sink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// WithRecorder records task and market metrics.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(o *Orchestrator) {
		o.metrics = rec
	}
}

// Orchestrator schedules scrape tasks.
type Orchestrator struct {
	extractor MatchExtractor
	proxies   *proxies.Pool
	sink      Sink
	metrics   *metrics.Recorder
	cfg       Config
	logger    *slog.Logger
}

// New builds an orchestrator. A nil proxy pool runs every task without a proxy.
func New(ex MatchExtractor, pool *proxies.Pool, cfg Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	o := &Orchestrator{
		extractor: ex,
		proxies:   pool,
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes tasks with at most limit running at once and returns one result per
// task, ordered by submission index. A non-positive limit uses the configured concurrency.
func (o *Orchestrator) Run(ctx context.Context, tasks []domain.ScrapeTask, limit int) []domain.MatchResult {
	if limit <= 0 {
		limit = o.cfg.Concurrency
	}
	runID := RunID(ctx)
	logger := logging.FromContext(ctx, o.logger)
	logging.Info(logger, "scrape run starting",
		logging.FieldRunID, runID,
		logging.FieldCount, len(tasks),
		"concurrency", limit,
	)

	results := make(chan domain.MatchResult)
	collected := make([]domain.MatchResult, 0, len(tasks))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range results {
			collected = append(collected, res)
		}
	}()

	var g errgroup.Group
	g.SetLimit(limit)
	for _, task := range tasks {
		g.Go(func() error {
			results <- o.runTask(ctx, task)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-done

	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].Index < collected[j].Index
	})
	report := Summarize(collected)
	logging.Info(logger, "scrape run finished",
		logging.FieldRunID, runID,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"records", report.Records,
	)
	return collected
}

func (o *Orchestrator) runTask(ctx context.Context, task domain.ScrapeTask) domain.MatchResult {
	start := time.Now()
	logger := logging.FromContext(ctx, o.logger)
	if logger != nil {
		logger = logger.With(logging.FieldRunID, RunID(ctx), logging.FieldURL, task.Match.URL)
	}

	proxy, release := o.proxies.Acquire(ctx)
	defer release()
	if proxy != nil {
		logging.Debug(logger, "proxy assigned", logging.FieldProxy, proxy.String())
	}

	var last domain.MatchResult
	attempts, err := o.cfg.Policy.Do(logging.WithLogger(ctx, logger), func(ctx context.Context, attempt int) error {
		task.Attempts = attempt
		task.State = domain.StatePending
		attemptLogger := logger
		if attemptLogger != nil {
			attemptLogger = attemptLogger.With(logging.FieldAttempt, attempt)
		}
		res, err := o.attempt(logging.WithLogger(ctx, attemptLogger), task, proxy)
		last = res
		task.LastErr = err
		class := ""
		if err != nil {
			class = resilience.Classify(err).String()
			logging.Warn(logger, "task attempt failed",
				logging.FieldAttempt, attempt,
				"class", class,
				logging.FieldError, err,
			)
		}
		o.metrics.RecordTaskAttempt(err, class)
		return err
	})

	result := last
	result.Index = task.Index
	result.Attempts = attempts
	if result.Match.URL == "" {
		result.Match = domain.Match{URL: task.Match.URL, Sport: task.Match.Sport, League: task.Match.League}
	}
	if err != nil {
		result.State = domain.StateFailed
		result.Error = err.Error()
		result.Records = nil
		logging.Error(logger, "task failed", err, "attempts", attempts)
	} else {
		o.persist(ctx, logger, result)
	}
	o.record(result, time.Since(start))
	return result
}

// attempt runs one extraction under the per-attempt deadline, reporting expiry as a TimeoutError.
func (o *Orchestrator) attempt(ctx context.Context, task domain.ScrapeTask, proxy *domain.ProxyEntry) (domain.MatchResult, error) {
	if o.cfg.TaskTimeout <= 0 {
		return o.extractor.Extract(ctx, task, proxy)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.TaskTimeout)
	defer cancel()
	res, err := o.extractor.Extract(attemptCtx, task, proxy)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		stage, _ := extractor.StageOf(err)
		err = &domain.TimeoutError{Stage: stage, Deadline: o.cfg.TaskTimeout, Err: err}
	}
	return res, err
}

func (o *Orchestrator) persist(ctx context.Context, logger *slog.Logger, result domain.MatchResult) {
	if o.sink == nil {
		return
	}
	if err := o.sink.Save(ctx, RunID(ctx), result); err != nil {
		var se *domain.StorageError
		sink := o.sink.Name()
		if errors.As(err, &se) && se.Sink != "" {
			sink = se.Sink
		}
		o.metrics.RecordStorageError(sink)
		logging.Error(logger, "failed to persist match result", err,
			logging.FieldSink, sink,
			logging.FieldMatchID, result.Match.ID,
		)
	}
}

func (o *Orchestrator) record(result domain.MatchResult, elapsed time.Duration) {
	outcome := metrics.OutcomeSucceeded
	if !result.Succeeded() {
		outcome = metrics.OutcomeFailed
	}
	o.metrics.RecordTask(outcome, elapsed)
	for _, m := range result.Markets {
		o.metrics.RecordMarket(m.Key, m.Records, m.Status == domain.MarketSkipped)
	}
}
