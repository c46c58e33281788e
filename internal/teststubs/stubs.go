package teststubs

import (
	"context"
	"encoding/json"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/extractor"
)

// StubPage is a test double for extractor.Page. Hooks take precedence over the static maps.
type StubPage struct {
	mu sync.Mutex

	// OnScript returns the value decoded into EvaluateScript's out. A nil value and
	// nil error fall through to Scripts.
	OnScript   func(js string) (any, error)
	Scripts    map[string]any
	OnSnapshot func(selector string) (string, error)
	Snapshots  map[string]string
	// OnHover runs after a hover is recorded; its error replaces HoverErr.
	OnHover func(selector string) error

	NavigateErr error
	// NavigateDelay holds Navigate until it elapses or the context ends.
	NavigateDelay time.Duration
	WaitErr       map[string]error
	HoverErr      error
	ClickErr      error

	Navigated []string
	Evaluated []string
	Hovered   []string
	Clicked   []string
	Waited    []string
}

func (p *StubPage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.Navigated = append(p.Navigated, url)
	p.mu.Unlock()
	if p.NavigateDelay > 0 {
		select {
		case <-time.After(p.NavigateDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.NavigateErr
}

func (p *StubPage) EvaluateScript(ctx context.Context, js string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Evaluated = append(p.Evaluated, js)
	p.mu.Unlock()

	var value any
	if p.OnScript != nil {
		v, err := p.OnScript(js)
		if err != nil {
			return err
		}
		value = v
	}
	if value == nil && p.Scripts != nil {
		value = p.Scripts[js]
	}
	if value == nil || out == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *StubPage) QuerySnapshot(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.OnSnapshot != nil {
		return p.OnSnapshot(selector)
	}
	return p.Snapshots[selector], nil
}

func (p *StubPage) Hover(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.Hovered = append(p.Hovered, selector)
	p.mu.Unlock()
	if p.OnHover != nil {
		return p.OnHover(selector)
	}
	return p.HoverErr
}

func (p *StubPage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.Clicked = append(p.Clicked, selector)
	p.mu.Unlock()
	return p.ClickErr
}

func (p *StubPage) WaitReady(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.Waited = append(p.Waited, selector)
	p.mu.Unlock()
	if err, ok := p.WaitErr[selector]; ok {
		return err
	}
	return ctx.Err()
}

// LastHovered returns the most recent hover target.
func (p *StubPage) LastHovered() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Hovered) == 0 {
		return ""
	}
	return p.Hovered[len(p.Hovered)-1]
}

// EvaluatedCount reports how many times js was evaluated.
func (p *StubPage) EvaluatedCount(js string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, got := range p.Evaluated {
		if got == js {
			n++
		}
	}
	return n
}

// StubPagePool is a test double for extractor.PagePool.
type StubPagePool struct {
	Page    extractor.Page
	NewPage func() extractor.Page
	Err     error

	Acquired atomic.Int32
	Released atomic.Int32

	mu      sync.Mutex
	Proxies []*domain.ProxyEntry
}

func (s *StubPagePool) Acquire(ctx context.Context, proxy *domain.ProxyEntry) (extractor.Page, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.Acquired.Add(1)
	s.mu.Lock()
	s.Proxies = append(s.Proxies, proxy)
	s.mu.Unlock()
	if s.NewPage != nil {
		return s.NewPage(), nil
	}
	return s.Page, nil
}

func (s *StubPagePool) Release(extractor.Page) {
	s.Released.Add(1)
}

// StubExtractor is a test double for orchestrator.MatchExtractor that tracks concurrency.
type StubExtractor struct {
	// Fn produces the attempt's outcome; task.Attempts carries the 1-based attempt number.
	Fn    func(ctx context.Context, task domain.ScrapeTask, proxy *domain.ProxyEntry) (domain.MatchResult, error)
	Delay time.Duration

	Calls     atomic.Int32
	active    atomic.Int32
	MaxActive atomic.Int32
}

func (s *StubExtractor) Extract(ctx context.Context, task domain.ScrapeTask, proxy *domain.ProxyEntry) (domain.MatchResult, error) {
	s.Calls.Add(1)
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		peak := s.MaxActive.Load()
		if n <= peak || s.MaxActive.CompareAndSwap(peak, n) {
			break
		}
	}
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return domain.MatchResult{Index: task.Index, State: domain.StateFailed}, ctx.Err()
		}
	}
	if s.Fn != nil {
		return s.Fn(ctx, task, proxy)
	}
	return domain.MatchResult{
		Index: task.Index,
		Match: domain.Match{URL: task.Match.URL, Sport: task.Match.Sport},
		State: domain.StateDone,
	}, nil
}

// StubSink is a test double for orchestrator.Sink.
type StubSink struct {
	SinkName string
	Err      error

	mu    sync.Mutex
	Saved []domain.MatchResult
	RunID string
}

func (s *StubSink) Name() string {
	if s.SinkName == "" {
		return "stub"
	}
	return s.SinkName
}

func (s *StubSink) Save(ctx context.Context, runID string, result domain.MatchResult) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Saved = append(s.Saved, result)
	s.RunID = runID
	return nil
}

// SavedCount returns how many results were stored.
func (s *StubSink) SavedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Saved)
}

// StubDiscoverer is a test double for match discovery.
type StubDiscoverer struct {
	Links []string
	Err   error
	Calls atomic.Int32
}

func (d *StubDiscoverer) Upcoming(ctx context.Context, sport domain.Sport, date time.Time, league string) (iter.Seq[string], error) {
	d.Calls.Add(1)
	return d.seq()
}

func (d *StubDiscoverer) Historic(ctx context.Context, sport domain.Sport, league, season string, maxPages int) (iter.Seq[string], error) {
	d.Calls.Add(1)
	return d.seq()
}

func (d *StubDiscoverer) seq() (iter.Seq[string], error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return slices.Values(d.Links), nil
}
