// Package harvest ties discovery, match scraping and run bookkeeping together.
package harvest

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
	"github.com/preston-bernstein/oddsharvester/internal/orchestrator"
	"github.com/preston-bernstein/oddsharvester/internal/seen"
)

// Mode names the kind of harvest a run performed.
type Mode string

const (
	ModeUpcoming Mode = "scrape_upcoming"
	ModeHistoric Mode = "scrape_historic"
	ModeLinks    Mode = "match_links"
)

// ErrNoLinks is returned by Links when no match URL was supplied.
var ErrNoLinks = errors.New("no match links supplied")

// Discoverer finds match page URLs.
type Discoverer interface {
	Upcoming(ctx context.Context, sport domain.Sport, date time.Time, league string) (iter.Seq[string], error)
	Historic(ctx context.Context, sport domain.Sport, league, season string, maxPages int) (iter.Seq[string], error)
}

// Runner executes scrape tasks.
type Runner interface {
	Run(ctx context.Context, tasks []domain.ScrapeTask, limit int) []domain.MatchResult
}

// Settings are the defaults applied when a request leaves a field empty.
type Settings struct {
	Markets     []string
	Periods     []domain.Period
	Concurrency int
}

// UpcomingRequest scrapes matches scheduled on Date.
type UpcomingRequest struct {
	Sport   domain.Sport
	Date    time.Time
	League  string
	Markets []string
}

// HistoricRequest scrapes finished matches of a league season.
type HistoricRequest struct {
	Sport    domain.Sport
	League   string
	Season   string
	MaxPages int
	Markets  []string
}

// LinksRequest scrapes an explicit list of match pages.
type LinksRequest struct {
	Sport   domain.Sport
	URLs    []string
	Markets []string
}

// Run describes one finished harvest.
type Run struct {
	ID          string              `json:"runId"`
	Mode        Mode                `json:"mode"`
	Sport       domain.Sport        `json:"sport"`
	League      string              `json:"league,omitempty"`
	StartedAt   time.Time           `json:"startedAt"`
	FinishedAt  time.Time           `json:"finishedAt"`
	Discovered  int                 `json:"discovered"`
	AlreadySeen int                 `json:"alreadySeen"`
	Report      orchestrator.Report `json:"report"`

	Results []domain.MatchResult `json:"-"`
}

// Option customizes a Service.
type Option func(*Service)

// WithSeen skips historic matches already harvested by an earlier run.
func WithSeen(store seen.Store) Option {
	return func(s *Service) {
		s.seen = store
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service runs harvests and remembers the latest one.
type Service struct {
	discoverer Discoverer
	runner     Runner
	seen       seen.Store
	settings   Settings
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.RWMutex
	latest *Run
}

// NewService constructs a Service.
func NewService(d Discoverer, r Runner, settings Settings, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		discoverer: d,
		runner:     r,
		settings:   settings,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upcoming discovers and scrapes the matches listed for req.Date.
func (s *Service) Upcoming(ctx context.Context, req UpcomingRequest) (Run, error) {
	links, err := s.discoverer.Upcoming(ctx, req.Sport, req.Date, req.League)
	if err != nil {
		return Run{}, err
	}
	return s.execute(ctx, ModeUpcoming, req.Sport, req.League, collect(links), req.Markets, false)
}

// Historic discovers and scrapes the results pages of a league season.
func (s *Service) Historic(ctx context.Context, req HistoricRequest) (Run, error) {
	links, err := s.discoverer.Historic(ctx, req.Sport, req.League, req.Season, req.MaxPages)
	if err != nil {
		return Run{}, err
	}
	return s.execute(ctx, ModeHistoric, req.Sport, req.League, collect(links), req.Markets, true)
}

// Links scrapes the given match URLs in order, dropping blanks and repeats.
func (s *Service) Links(ctx context.Context, req LinksRequest) (Run, error) {
	var links []string
	seenURL := make(map[string]struct{}, len(req.URLs))
	for _, raw := range req.URLs {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		if _, dup := seenURL[u]; dup {
			continue
		}
		seenURL[u] = struct{}{}
		links = append(links, u)
	}
	if len(links) == 0 {
		return Run{}, ErrNoLinks
	}
	return s.execute(ctx, ModeLinks, req.Sport, "", links, req.Markets, false)
}

// Latest returns the most recently finished run.
func (s *Service) Latest() (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Run{}, false
	}
	return *s.latest, true
}

func (s *Service) execute(ctx context.Context, mode Mode, sport domain.Sport, league string, links []string, markets []string, skipSeen bool) (Run, error) {
	runID := orchestrator.RunID(ctx)
	if runID == "" {
		runID = orchestrator.NewRunID()
		ctx = orchestrator.WithRunID(ctx, runID)
	}
	logger := logging.FromContext(ctx, s.logger)
	if logger != nil {
		logger = logger.With(logging.FieldRunID, runID, logging.FieldSport, string(sport))
	}
	ctx = logging.WithLogger(ctx, logger)

	run := Run{
		ID:         runID,
		Mode:       mode,
		Sport:      sport,
		League:     league,
		StartedAt:  s.now(),
		Discovered: len(links),
	}

	if skipSeen && s.seen != nil {
		fresh := seen.Filter(ctx, s.seen, links, logger)
		run.AlreadySeen = len(links) - len(fresh)
		links = fresh
	}
	if len(markets) == 0 {
		markets = s.settings.Markets
	}

	logging.Info(logger, "harvest starting",
		"mode", string(mode),
		logging.FieldCount, len(links),
		"already_seen", run.AlreadySeen,
	)

	tasks := domain.NewTasks(sport, league, links, markets, s.settings.Periods)
	results := s.runner.Run(ctx, tasks, s.settings.Concurrency)

	if skipSeen && s.seen != nil {
		s.markSeen(ctx, logger, results)
	}

	run.Results = results
	run.Report = orchestrator.Summarize(results)
	run.FinishedAt = s.now()

	s.mu.Lock()
	latest := run
	s.latest = &latest
	s.mu.Unlock()

	logging.Info(logger, "harvest finished",
		"mode", string(mode),
		"succeeded", run.Report.Succeeded,
		"failed", run.Report.Failed,
		"records", run.Report.Records,
		logging.FieldDurationMS, run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	)
	return run, ctx.Err()
}

func (s *Service) markSeen(ctx context.Context, logger *slog.Logger, results []domain.MatchResult) {
	for _, res := range results {
		if !res.Succeeded() {
			continue
		}
		if err := s.seen.Mark(ctx, res.Match.URL); err != nil {
			logging.Warn(logger, "seen mark failed", logging.FieldURL, res.Match.URL, logging.FieldError, err)
		}
	}
}

func collect(seq iter.Seq[string]) []string {
	var out []string
	for link := range seq {
		out = append(out, link)
	}
	return out
}
