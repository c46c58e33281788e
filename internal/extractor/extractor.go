package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
	"github.com/preston-bernstein/oddsharvester/internal/markets"
	"github.com/preston-bernstein/oddsharvester/internal/parser"
)

const (
	defaultSettleWait  = 3 * time.Second
	defaultHistoryWait = 2 * time.Second

	reasonUnknownMarket = "unknown market"
	reasonTabMissing    = "market tab not found"
	reasonNoPeriod      = "no requested period offered"
	reasonPeriodMissing = "period tab not found"
)

// Options tunes extraction behaviour shared by every task.
type Options struct {
	// Location is the timezone scheduled times are converted to. Defaults to UTC.
	Location *time.Location
	// History enables the per-cell odds movement sub-parse.
	History         bool
	TargetBookmaker string
	// SettleWait bounds content waits that are allowed to come up empty.
	SettleWait  time.Duration
	HistoryWait time.Duration
	Now         func() time.Time
}

// StageError records the state a match was in when it failed.
type StageError struct {
	Stage domain.TaskState
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the failing state recorded on err, if any.
func StageOf(err error) (domain.TaskState, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// Extractor turns one scrape task into a match result.
type Extractor struct {
	pages    PagePool
	registry *markets.Registry
	parser   *parser.Parser
	sel      parser.Selectors
	opts     Options
	logger   *slog.Logger
}

// New constructs an extractor.
func New(pages PagePool, registry *markets.Registry, p *parser.Parser, opts Options, logger *slog.Logger) *Extractor {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SettleWait <= 0 {
		opts.SettleWait = defaultSettleWait
	}
	if opts.HistoryWait <= 0 {
		opts.HistoryWait = defaultHistoryWait
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Extractor{
		pages:    pages,
		registry: registry,
		parser:   p,
		sel:      p.Selectors(),
		opts:     opts,
		logger:   logger,
	}
}

// matchRun is the mutable state of one Extract call.
type matchRun struct {
	task    domain.ScrapeTask
	state   domain.TaskState
	logger  *slog.Logger
	result  domain.MatchResult
	seen    map[domain.RecordKey]struct{}
	page    Page
	current string
}

func (e *Extractor) transition(run *matchRun, next domain.TaskState) {
	logging.Debug(run.logger, "match state transition",
		"from", string(run.state),
		logging.FieldState, string(next),
	)
	run.state = next
}

func (e *Extractor) fail(run *matchRun, err error) (domain.MatchResult, error) {
	stage := run.state
	e.transition(run, domain.StateFailed)
	run.result.State = domain.StateFailed
	run.result.Error = err.Error()
	return run.result, &StageError{Stage: stage, Err: err}
}

// Extract runs the match state machine. The page borrowed from the pool is released on
// every return path. A failed match returns its partial result together with the fault.
func (e *Extractor) Extract(ctx context.Context, task domain.ScrapeTask, proxy *domain.ProxyEntry) (domain.MatchResult, error) {
	logger := logging.FromContext(ctx, e.logger)
	if logger != nil {
		logger = logger.With(logging.FieldURL, task.Match.URL)
	}
	run := &matchRun{
		task:   task,
		state:  domain.StatePending,
		logger: logger,
		seen:   make(map[domain.RecordKey]struct{}),
		result: domain.MatchResult{
			Index:    task.Index,
			Match:    domain.Match{URL: task.Match.URL, Sport: task.Match.Sport, League: task.Match.League},
			Attempts: task.Attempts,
			State:    domain.StatePending,
			Records:  []domain.OddsRecord{},
		},
	}

	id, err := domain.MatchIDFromURL(task.Match.URL)
	if err != nil {
		return e.fail(run, err)
	}
	run.result.Match.ID = id

	known, unknown := e.registry.Resolve(task.Match.Sport, task.Markets)
	if len(known) == 0 {
		return e.fail(run, &domain.UnknownMarketError{Sport: task.Match.Sport, Keys: unknown, All: true})
	}

	e.transition(run, domain.StateNavigating)
	page, err := e.pages.Acquire(ctx, proxy)
	if err != nil {
		return e.fail(run, fmt.Errorf("acquire page: %w", err))
	}
	defer e.pages.Release(page)
	run.page = page

	match, err := e.open(ctx, run)
	if err != nil {
		return e.fail(run, err)
	}
	run.result.Match = match

	e.transition(run, domain.StateMarketLoop)
	for _, key := range task.Markets {
		def, lookupErr := e.registry.Lookup(task.Match.Sport, key)
		if lookupErr != nil {
			logging.Warn(run.logger, "skipping unknown market", logging.FieldMarket, key)
			run.result.Markets = append(run.result.Markets, domain.MarketOutcome{
				Key: key, Status: domain.MarketSkipped, Reason: reasonUnknownMarket,
			})
			continue
		}
		outcome, err := e.market(ctx, run, def)
		if err != nil {
			return e.fail(run, err)
		}
		run.result.Markets = append(run.result.Markets, outcome)
		if run.state != domain.StateMarketLoop {
			e.transition(run, domain.StateMarketLoop)
		}
	}

	e.transition(run, domain.StateDone)
	run.result.State = domain.StateDone
	logging.Info(run.logger, "match extracted",
		logging.FieldMatchID, run.result.Match.ID,
		logging.FieldCount, len(run.result.Records),
		"skipped_markets", len(run.result.Skipped()),
	)
	return run.result, nil
}

// open navigates to the match, rejects denial pages, prepares the page and reads the header.
func (e *Extractor) open(ctx context.Context, run *matchRun) (domain.Match, error) {
	url := run.task.Match.URL
	if err := run.page.Navigate(ctx, url); err != nil {
		return domain.Match{}, err
	}

	var blocked string
	if err := run.page.EvaluateScript(ctx, BlockedScript(), &blocked); err != nil {
		return domain.Match{}, err
	}
	if blocked != "" {
		return domain.Match{}, &domain.BlockedError{URL: url, Reason: blocked}
	}

	e.dismissCookies(ctx, run)
	var switched bool
	if err := run.page.EvaluateScript(ctx, DecimalOddsScript(e.sel.OddsFormat), &switched); err != nil && ctx.Err() == nil {
		logging.Debug(run.logger, "odds format toggle unavailable", "error", err)
	}

	if err := run.page.WaitReady(ctx, e.sel.EventHeader); err != nil {
		return domain.Match{}, err
	}
	fragment, err := run.page.QuerySnapshot(ctx, e.sel.EventHeader)
	if err != nil {
		return domain.Match{}, err
	}
	return e.parser.ParseHeader(fragment, run.task.Match, e.opts.Location)
}

func (e *Extractor) dismissCookies(ctx context.Context, run *matchRun) {
	var present bool
	if err := run.page.EvaluateScript(ctx, ExistsScript(e.sel.CookieBanner), &present); err != nil || !present {
		return
	}
	if err := run.page.Click(ctx, e.sel.CookieBanner); err != nil {
		logging.Debug(run.logger, "cookie banner dismissal failed", "error", err)
		return
	}
	logging.Debug(run.logger, "cookie banner dismissed")
}

// market selects one market's tab and parses every requested period it offers.
// Only faults that should fail the whole match are returned.
func (e *Extractor) market(ctx context.Context, run *matchRun, def domain.MarketDefinition) (domain.MarketOutcome, error) {
	outcome := domain.MarketOutcome{Key: def.Key()}
	periods := e.periodsFor(run.task, def)
	if len(periods) == 0 {
		outcome.Status, outcome.Reason = domain.MarketSkipped, reasonNoPeriod
		return outcome, nil
	}

	if run.current != def.MainTab() {
		var clicked bool
		if err := run.page.EvaluateScript(ctx, ClickTextScript(e.sel.MarketTab, def.MainTab()), &clicked); err != nil {
			return outcome, err
		}
		if !clicked {
			logging.Warn(run.logger, "market tab not found", logging.FieldMarket, def.Key(), "tab", def.MainTab())
			outcome.Status, outcome.Reason = domain.MarketSkipped, reasonTabMissing
			return outcome, nil
		}
		run.current = def.MainTab()
	}

	var missing []domain.Period
	for _, period := range periods {
		ok, err := e.selectPeriod(ctx, run, period)
		if err != nil {
			return outcome, err
		}
		if !ok {
			missing = append(missing, period)
			continue
		}
		added, err := e.parsePeriod(ctx, run, def, period)
		if err != nil {
			return outcome, err
		}
		outcome.Records += added
		outcome.Periods = append(outcome.Periods, period)
	}

	if len(outcome.Periods) == 0 {
		outcome.Status, outcome.Reason = domain.MarketSkipped, reasonPeriodMissing
		return outcome, nil
	}
	outcome.Status = domain.MarketSucceeded
	if len(missing) > 0 {
		outcome.Reason = fmt.Sprintf("%s: %v", reasonPeriodMissing, missing)
	}
	return outcome, nil
}

// periodsFor intersects the task's periods with the market's, keeping task order.
// Without requested periods the market's first period is used.
func (e *Extractor) periodsFor(task domain.ScrapeTask, def domain.MarketDefinition) []domain.Period {
	if len(task.Periods) == 0 {
		return def.Periods()[:1]
	}
	var out []domain.Period
	for _, p := range task.Periods {
		if def.SupportsPeriod(p) {
			out = append(out, p)
		}
	}
	return out
}

func (e *Extractor) selectPeriod(ctx context.Context, run *matchRun, period domain.Period) (bool, error) {
	var clicked bool
	if err := run.page.EvaluateScript(ctx, ClickTextScript(e.sel.PeriodTab, period.Label()), &clicked); err != nil {
		return false, err
	}
	// Full time is the default view when the page renders no period sub-tabs.
	return clicked || period == domain.PeriodFullTime, nil
}

// parsePeriod expands, snapshots and parses the current view, then aggregates the records.
func (e *Extractor) parsePeriod(ctx context.Context, run *matchRun, def domain.MarketDefinition, period domain.Period) (int, error) {
	e.transition(run, domain.StateExpanding)
	if def.Strategy() == domain.MultiLine {
		var clicked int
		script := ExpandScript(e.sel.GroupHeader, e.sel.Row, e.sel.LineGroupAttr, e.sel.LineHeaderAttr)
		if err := run.page.EvaluateScript(ctx, script, &clicked); err != nil {
			return 0, err
		}
		if clicked > 0 {
			if err := e.settle(ctx, run, e.sel.LineGroupSelector()+" "+e.sel.Row); err != nil {
				return 0, err
			}
		}
	} else if err := e.settle(ctx, run, e.sel.Row); err != nil {
		return 0, err
	}
	var tagged int
	if err := run.page.EvaluateScript(ctx, TagRowsScript(e.sel.Row, e.sel.OddsCell, e.sel.RowRefAttr, e.sel.CellRefAttr), &tagged); err != nil {
		return 0, err
	}

	e.transition(run, domain.StateParsing)
	fragment, err := run.page.QuerySnapshot(ctx, e.sel.Container)
	if err != nil {
		return 0, err
	}
	records, err := e.parser.Parse(fragment, def, parser.Request{
		MatchID:         run.result.Match.ID,
		Period:          period,
		CollectedAt:     e.opts.Now().UTC(),
		TargetBookmaker: e.opts.TargetBookmaker,
	})
	if err != nil {
		return 0, err
	}
	if e.opts.History {
		if records, err = e.attachHistory(ctx, run, def, records); err != nil {
			return 0, err
		}
	}

	e.transition(run, domain.StateAggregating)
	added := 0
	for _, rec := range records {
		key := rec.Key()
		if _, dup := run.seen[key]; dup {
			continue
		}
		run.seen[key] = struct{}{}
		run.result.Records = append(run.result.Records, rec)
		added++
	}
	logging.Debug(run.logger, "market period aggregated",
		logging.FieldMarket, def.Key(),
		logging.FieldPeriod, string(period),
		logging.FieldCount, added,
		"rows_tagged", tagged,
	)
	return added, nil
}

// settle waits briefly for selector. Running out of the settle window is not a fault:
// a market may legitimately render no rows.
func (e *Extractor) settle(ctx context.Context, run *matchRun, selector string) error {
	waitCtx, cancel := context.WithTimeout(ctx, e.opts.SettleWait)
	defer cancel()
	err := run.page.WaitReady(waitCtx, selector)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	logging.Debug(run.logger, "content did not settle", "selector", selector, "error", err)
	return nil
}
