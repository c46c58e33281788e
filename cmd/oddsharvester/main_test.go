package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/app/harvest"
	"github.com/preston-bernstein/oddsharvester/internal/config"
	"github.com/preston-bernstein/oddsharvester/internal/discovery"
	"github.com/preston-bernstein/oddsharvester/internal/metrics"
	"github.com/preston-bernstein/oddsharvester/internal/orchestrator"
	"github.com/preston-bernstein/oddsharvester/internal/resilience"
	"github.com/preston-bernstein/oddsharvester/internal/server"
	"github.com/preston-bernstein/oddsharvester/internal/testutil"
	"github.com/preston-bernstein/oddsharvester/internal/teststubs"
)

// Smoke test to ensure main honors SKIP_SERVER_RUN and does not block test runs.
func TestMainSkipsWhenEnvSet(t *testing.T) {
	t.Setenv("SKIP_SERVER_RUN", "1")
	main()
}

type stubbedStack struct {
	disc   *teststubs.StubDiscoverer
	ex     *teststubs.StubExtractor
	cfg    config.Config
	builds int
}

func stubHarvest(t *testing.T, links ...string) *stubbedStack {
	t.Helper()
	st := &stubbedStack{
		disc: &teststubs.StubDiscoverer{Links: links},
		ex:   &teststubs.StubExtractor{},
	}
	orig := buildStack
	buildStack = func(_ context.Context, cfg config.Config, logger *slog.Logger, _ *metrics.Recorder) (*server.Stack, error) {
		st.cfg = cfg
		st.builds++
		runner := orchestrator.New(st.ex, nil, orchestrator.Config{
			Concurrency: 2,
			Policy:      resilience.Policy{MaxAttempts: 1, Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 2},
		}, logger)
		svc := harvest.NewService(st.disc, runner, harvest.Settings{Markets: cfg.Scrape.Markets, Concurrency: 2}, logger)
		return &server.Stack{Harvest: svc, Location: time.UTC}, nil
	}
	t.Cleanup(func() { buildStack = orig })
	return st
}

func decodeRun(t *testing.T, out *bytes.Buffer) harvest.Run {
	t.Helper()
	var run harvest.Run
	if err := json.Unmarshal(out.Bytes(), &run); err != nil {
		t.Fatalf("decode run: %v (%s)", err, out.String())
	}
	return run
}

func TestRunRequiresKnownCommand(t *testing.T) {
	if err := run(context.Background(), nil, io.Discard, io.Discard); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(context.Background(), []string{"scrape_everything"}, io.Discard, io.Discard); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error for unknown command, got %v", err)
	}
}

func TestScrapeUpcomingPrintsRun(t *testing.T) {
	st := stubHarvest(t, testutil.MatchURL("aaa11111"), testutil.MatchURL("bbb22222"))
	var out bytes.Buffer

	err := run(context.Background(), []string{cmdUpcoming, "-sport", "tennis", "-markets", "match_winner, over_under_sets", "-concurrency_tasks", "4"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decodeRun(t, &out)
	if got.Mode != harvest.ModeUpcoming || got.Sport != "tennis" || got.Report.Succeeded != 2 {
		t.Fatalf("unexpected run %+v", got)
	}
	if st.cfg.Scrape.Concurrency != 4 || len(st.cfg.Scrape.Markets) != 2 || st.cfg.Scrape.Markets[1] != "over_under_sets" {
		t.Fatalf("expected flags to override config, got %+v", st.cfg.Scrape)
	}
}

func TestScrapeUpcomingRejectsPastDate(t *testing.T) {
	stubHarvest(t)
	err := run(context.Background(), []string{cmdUpcoming, "-date", "20000101"}, io.Discard, io.Discard)
	if !errors.Is(err, discovery.ErrInvalidDate) {
		t.Fatalf("expected invalid date, got %v", err)
	}
}

func TestScrapeHistoricValidatesSeasonFirst(t *testing.T) {
	st := stubHarvest(t)
	err := run(context.Background(), []string{cmdHistoric, "-league", "england-premier-league", "-season", "2022-2024"}, io.Discard, io.Discard)
	if !errors.Is(err, discovery.ErrInvalidSeason) {
		t.Fatalf("expected invalid season, got %v", err)
	}
	if st.builds != 0 {
		t.Fatal("stack should not be built for an invalid season")
	}
}

func TestScrapeHistoricPassesMaxPages(t *testing.T) {
	st := stubHarvest(t, testutil.MatchURL("aaa11111"))
	var out bytes.Buffer

	err := run(context.Background(), []string{cmdHistoric, "-league", "england-premier-league", "-season", "2022-2023", "-max_pages", "2"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := decodeRun(t, &out); got.Mode != harvest.ModeHistoric || got.League != "england-premier-league" {
		t.Fatalf("unexpected run %+v", got)
	}
	if st.cfg.Scrape.MaxPages != 2 {
		t.Fatalf("expected max pages override, got %d", st.cfg.Scrape.MaxPages)
	}
}

func TestMatchLinksAcceptsFlagsAndArgs(t *testing.T) {
	st := stubHarvest(t)
	var out bytes.Buffer

	args := []string{cmdLinks, "-match_links", testutil.MatchURL("aaa11111"), testutil.MatchURL("bbb22222"), testutil.MatchURL("aaa11111")}
	if err := run(context.Background(), args, &out, io.Discard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := decodeRun(t, &out)
	if got.Mode != harvest.ModeLinks || got.Discovered != 2 {
		t.Fatalf("expected two distinct links, got %+v", got)
	}
	if st.disc.Calls.Load() != 0 {
		t.Fatal("explicit links should skip discovery")
	}
}

func TestMatchLinksRequiresURLs(t *testing.T) {
	stubHarvest(t)
	if err := run(context.Background(), []string{cmdLinks}, io.Discard, io.Discard); !errors.Is(err, harvest.ErrNoLinks) {
		t.Fatalf("expected ErrNoLinks, got %v", err)
	}
}

func TestServeAppliesServerFlags(t *testing.T) {
	var got config.Config
	orig := runServer
	runServer = func(_ context.Context, cfg config.Config, _ *slog.Logger) error {
		got = cfg
		return nil
	}
	t.Cleanup(func() { runServer = orig })

	if err := run(context.Background(), []string{cmdServe, "-port", "4100", "-schedule_interval", "15m"}, io.Discard, io.Discard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Port != "4100" || got.ScheduleInterval != 15*time.Minute {
		t.Fatalf("unexpected server config port=%s interval=%s", got.Port, got.ScheduleInterval)
	}
}

func TestRunReportsInvalidConfig(t *testing.T) {
	stubHarvest(t)
	err := run(context.Background(), []string{cmdUpcoming, "-format", "xml"}, io.Discard, io.Discard)
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestApplyOnlyCopiesSetFlags(t *testing.T) {
	fs := flag.NewFlagSet(cmdUpcoming, flag.ContinueOnError)
	opts := bindFlags(fs, cmdUpcoming)
	if err := fs.Parse([]string{"-headless=false", "-proxies", "http://p1:8080 user pass", "-proxies", "socks5://p2:1080"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := config.Defaults()
	cfg.Scrape.Sport = "basketball"
	opts.apply(fs, &cfg)

	if cfg.Browser.Headless {
		t.Fatal("expected headless flag to win")
	}
	if len(cfg.Browser.Proxies) != 2 || cfg.Browser.Proxies[1] != "socks5://p2:1080" {
		t.Fatalf("unexpected proxies %v", cfg.Browser.Proxies)
	}
	if cfg.Scrape.Sport != "basketball" {
		t.Fatalf("unset flags must not reset config, got sport %q", cfg.Scrape.Sport)
	}
}
