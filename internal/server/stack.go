package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/app/harvest"
	"github.com/preston-bernstein/oddsharvester/internal/browser"
	"github.com/preston-bernstein/oddsharvester/internal/config"
	"github.com/preston-bernstein/oddsharvester/internal/discovery"
	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/extractor"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
	"github.com/preston-bernstein/oddsharvester/internal/markets"
	"github.com/preston-bernstein/oddsharvester/internal/metrics"
	"github.com/preston-bernstein/oddsharvester/internal/orchestrator"
	"github.com/preston-bernstein/oddsharvester/internal/parser"
	"github.com/preston-bernstein/oddsharvester/internal/proxies"
	"github.com/preston-bernstein/oddsharvester/internal/resilience"
	"github.com/preston-bernstein/oddsharvester/internal/seen"
	"github.com/preston-bernstein/oddsharvester/internal/storage"
)

// Stack is the assembled harvesting pipeline shared by the CLI and the server.
type Stack struct {
	Harvest  *harvest.Service
	Local    *storage.Local
	Location *time.Location

	closers []func()
}

// Close releases browsers, pools and connections in reverse build order.
func (s *Stack) Close() {
	if s == nil {
		return
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// newPagePool is overridable so tests never launch a browser.
var newPagePool = func(cfg browser.Config, logger *slog.Logger) (extractor.PagePool, func()) {
	pool := browser.NewPool(cfg, logger)
	return pool, pool.Close
}

// BuildStack wires registry, parser, browser, proxies, storage, discovery and
// the seen set from cfg.
func BuildStack(ctx context.Context, cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*Stack, error) {
	stack := &Stack{}
	fail := func(err error) (*Stack, error) {
		stack.Close()
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Scrape.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scrape timezone: %w", err)
	}
	stack.Location = loc

	registry, err := loadRegistry(cfg.RegistryFile)
	if err != nil {
		return nil, err
	}
	selectors := parser.DefaultSelectors()
	if cfg.SelectorsFile != "" {
		if selectors, err = parser.LoadSelectors(cfg.SelectorsFile); err != nil {
			return nil, fmt.Errorf("selectors: %w", err)
		}
	}
	periods, err := parsePeriods(cfg.Scrape.Periods)
	if err != nil {
		return nil, err
	}

	policy := resilience.DefaultPolicy()
	policy.MaxAttempts = cfg.Scrape.MaxAttempts
	policy.Initial = cfg.Scrape.BackoffInitial
	policy.Max = cfg.Scrape.BackoffMax

	pages, closePages := newPagePool(browser.Config{
		Headless:          cfg.Browser.Headless,
		UserAgent:         cfg.Browser.UserAgent,
		Locale:            cfg.Browser.Locale,
		TimezoneID:        cfg.Browser.TimezoneID,
		ExecPath:          cfg.Browser.ExecPath,
		WindowWidth:       cfg.Browser.WindowWidth,
		WindowHeight:      cfg.Browser.WindowHeight,
		MaxPages:          cfg.Browser.MaxPages,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
	}, logger)
	stack.closers = append(stack.closers, closePages)

	sinks, err := buildSinks(ctx, cfg.Storage, logger)
	if err != nil {
		return fail(err)
	}
	stack.Local = sinks.local
	stack.closers = append(stack.closers, sinks.closers...)

	store, closeSeen, err := buildSeen(ctx, cfg.Seen)
	if err != nil {
		return fail(err)
	}
	if closeSeen != nil {
		stack.closers = append(stack.closers, closeSeen)
	}

	ex := extractor.New(pages, registry, parser.New(selectors, logger), extractor.Options{
		Location:        loc,
		History:         cfg.Scrape.OddsHistory,
		TargetBookmaker: cfg.Scrape.TargetBookmaker,
		SettleWait:      cfg.Scrape.SettleWait,
		HistoryWait:     cfg.Scrape.HistoryWait,
	}, logger)

	proxyPool := proxies.NewPool(proxies.ParseEntries(cfg.Browser.Proxies, logger), cfg.Browser.ProxyWait, logger)
	logging.Info(logger, "proxy pool ready", logging.FieldCount, proxyPool.Len())

	runner := orchestrator.New(ex, proxyPool, orchestrator.Config{
		Concurrency: cfg.Scrape.Concurrency,
		TaskTimeout: cfg.Scrape.TaskTimeout,
		Policy:      policy,
	}, logger, orchestrator.WithSink(sinks.sink), orchestrator.WithRecorder(recorder))

	var fetcher discovery.Fetcher = discovery.NewPageFetcher(pages, discovery.DefaultSelectors(), cfg.Scrape.SettleWait, logger)
	fetcher = discovery.NewRateLimitedFetcher(fetcher, cfg.Scrape.ListingInterval, logger)
	fetcher = discovery.NewRetryingFetcher(fetcher, policy, logger)
	disc := discovery.New(fetcher, discovery.Options{
		BaseURL:         cfg.Browser.BaseURL,
		PageConcurrency: cfg.Scrape.PageConcurrency,
	}, logger)

	stack.Harvest = harvest.NewService(disc, runner, harvest.Settings{
		Markets:     cfg.Scrape.Markets,
		Periods:     periods,
		Concurrency: cfg.Scrape.Concurrency,
	}, logger, harvest.WithSeen(store))
	return stack, nil
}

func loadRegistry(path string) (*markets.Registry, error) {
	base := markets.Default()
	if path == "" {
		return base, nil
	}
	reg, err := markets.LoadFile(path, base)
	if err != nil {
		return nil, fmt.Errorf("market registry: %w", err)
	}
	return reg, nil
}

func parsePeriods(raw []string) ([]domain.Period, error) {
	out := make([]domain.Period, 0, len(raw))
	for _, r := range raw {
		p, ok := domain.ParsePeriod(r)
		if !ok {
			return nil, fmt.Errorf("unknown period %q", r)
		}
		out = append(out, p)
	}
	return out, nil
}

func buildSeen(ctx context.Context, cfg config.SeenConfig) (seen.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return seen.NewMemory(cfg.TTL), nil, nil
	}
	rdb, err := seen.NewRedis(ctx, seen.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		TTL:      cfg.TTL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("seen store: %w", err)
	}
	return rdb, func() { _ = rdb.Close() }, nil
}
