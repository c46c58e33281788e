package extractor_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/extractor"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
	"github.com/preston-bernstein/oddsharvester/internal/markets"
	"github.com/preston-bernstein/oddsharvester/internal/parser"
	"github.com/preston-bernstein/oddsharvester/internal/testutil"
	"github.com/preston-bernstein/oddsharvester/internal/teststubs"
)

const headerJSON = `{"eventBody":{"startDate":1710093600,"homeResult":"2","awayResult":"1"},"eventData":{"home":"Arsenal","away":"Chelsea","tournamentName":"Premier League"}}`

var fixedNow = time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)

// site fakes a match page whose body depends on the selected market and period tabs.
type site struct {
	sel    parser.Selectors
	header string
	// bodies maps "<main tab>|<period label>" to the rendered container HTML.
	bodies  map[string]string
	tab     string
	period  string
	blocked string
	page    *teststubs.StubPage
}

func newSite(bodies map[string]string) *site {
	s := &site{
		sel:    parser.DefaultSelectors(),
		header: testutil.EventHeader(headerJSON),
		bodies: bodies,
		period: domain.PeriodFullTime.Label(),
	}
	s.page = &teststubs.StubPage{
		OnScript:   s.script,
		OnSnapshot: s.snapshot,
	}
	return s
}

func (s *site) script(js string) (any, error) {
	if js == extractor.BlockedScript() {
		return s.blocked, nil
	}
	for key := range s.bodies {
		tab, period, _ := strings.Cut(key, "|")
		if js == extractor.ClickTextScript(s.sel.MarketTab, tab) {
			s.tab = tab
			return true, nil
		}
		if js == extractor.ClickTextScript(s.sel.PeriodTab, period) {
			s.period = period
			return true, nil
		}
	}
	return nil, nil
}

func (s *site) snapshot(selector string) (string, error) {
	switch selector {
	case s.sel.EventHeader:
		return testutil.MarketPage(s.header), nil
	case s.sel.Container:
		return testutil.MarketPage(s.bodies[s.tab+"|"+s.period]), nil
	}
	return "", nil
}

func registry(t *testing.T, defs ...domain.MarketDefinition) *markets.Registry {
	t.Helper()
	reg, err := markets.NewRegistry(defs...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func oneXTwo(periods ...domain.Period) domain.MarketDefinition {
	return domain.MustMarketDefinition(domain.MarketSpec{
		Sport: domain.SportFootball, Key: "1x2", MainTab: "1X2",
		Labels: []string{"1", "X", "2"}, Periods: periods,
	})
}

func overUnder() domain.MarketDefinition {
	return domain.MustMarketDefinition(domain.MarketSpec{
		Sport: domain.SportFootball, Key: "over_under", MainTab: "Over/Under",
		Labels: []string{"odds_over", "odds_under"}, Strategy: domain.MultiLine,
	})
}

func newExtractor(pool extractor.PagePool, reg *markets.Registry, opts extractor.Options) *extractor.Extractor {
	opts.Now = func() time.Time { return fixedNow }
	return extractor.New(pool, reg, parser.New(parser.DefaultSelectors(), nil), opts, nil)
}

func task(markets ...string) domain.ScrapeTask {
	return domain.ScrapeTask{
		Index:   4,
		Match:   domain.MatchRef{URL: testutil.MatchURL("AbCd1234"), Sport: domain.SportFootball},
		Markets: markets,
		State:   domain.StatePending,
	}
}

func oneXTwoBody() string {
	return testutil.OddsRow("bet365", "2.10", "3.30", "3.40") + testutil.OddsRow("Pinnacle", "2.05", "3.35", "3.45")
}

func TestUnknownMarketIsSkippedAndMatchSucceeds(t *testing.T) {
	s := newSite(map[string]string{"1X2|Full Time": oneXTwoBody()})
	pool := &teststubs.StubPagePool{Page: s.page}
	ex := newExtractor(pool, registry(t, oneXTwo()), extractor.Options{})

	res, err := ex.Extract(context.Background(), task("1x2", "bogus_market"), nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !res.Succeeded() || res.State != domain.StateDone {
		t.Fatalf("expected DONE, got %s", res.State)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records for 1x2, got %d", len(res.Records))
	}
	for _, r := range res.Records {
		if r.Market != "1x2" || r.MatchID != "AbCd1234" {
			t.Fatalf("unexpected record %+v", r)
		}
	}
	bogus, ok := res.Outcome("bogus_market")
	if !ok || bogus.Status != domain.MarketSkipped || bogus.Reason == "" {
		t.Fatalf("expected skip reason for bogus_market, got %+v", bogus)
	}
	if m, _ := res.Outcome("1x2"); m.Status != domain.MarketSucceeded || m.Records != 2 {
		t.Fatalf("unexpected 1x2 outcome %+v", m)
	}
	if res.Match.HomeTeam != "Arsenal" || res.Index != 4 {
		t.Fatalf("expected header fields and index, got %+v", res.Match)
	}
	if pool.Acquired.Load() != 1 || pool.Released.Load() != 1 {
		t.Fatalf("expected page acquired and released once, got %d/%d", pool.Acquired.Load(), pool.Released.Load())
	}
}

func TestStateTransitionsAreLoggedInOrder(t *testing.T) {
	s := newSite(map[string]string{"1X2|Full Time": oneXTwoBody()})
	ex := newExtractor(&teststubs.StubPagePool{Page: s.page}, registry(t, oneXTwo()), extractor.Options{})
	logger, buf := testutil.NewLevelBufferLogger(slog.LevelDebug)

	if _, err := ex.Extract(logging.WithLogger(context.Background(), logger), task("1x2"), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	last := -1
	for _, state := range []domain.TaskState{domain.StateNavigating, domain.StateMarketLoop, domain.StateParsing, domain.StateAggregating, domain.StateDone} {
		idx := strings.Index(out, "state="+string(state))
		if idx < 0 || idx < last {
			t.Fatalf("expected %s after previous states in log:\n%s", state, out)
		}
		last = idx
	}
}

func TestAllUnknownMarketsFailWithoutNavigating(t *testing.T) {
	pool := &teststubs.StubPagePool{Page: &teststubs.StubPage{}}
	ex := newExtractor(pool, registry(t, oneXTwo()), extractor.Options{})

	res, err := ex.Extract(context.Background(), task("bogus", "also_bogus"), nil)
	um, ok := domain.AsUnknownMarketError(err)
	if !ok || !um.All || len(um.Keys) != 2 {
		t.Fatalf("expected all-unknown error, got %v", err)
	}
	if res.State != domain.StateFailed {
		t.Fatalf("expected FAILED, got %s", res.State)
	}
	if pool.Acquired.Load() != 0 {
		t.Fatal("expected no page to be acquired")
	}
}

func TestHeaderFailureFailsMatchAndReleasesPage(t *testing.T) {
	s := newSite(map[string]string{"1X2|Full Time": oneXTwoBody()})
	s.header = "<p>no header here</p>"
	pool := &teststubs.StubPagePool{Page: s.page}
	ex := newExtractor(pool, registry(t, oneXTwo()), extractor.Options{})

	res, err := ex.Extract(context.Background(), task("1x2"), nil)
	if _, ok := domain.AsHeaderParseError(err); !ok {
		t.Fatalf("expected header parse error, got %v", err)
	}
	if stage, ok := extractor.StageOf(err); !ok || stage != domain.StateNavigating {
		t.Fatalf("expected failure in NAVIGATING, got %q", stage)
	}
	if res.State != domain.StateFailed || res.Error == "" {
		t.Fatalf("expected FAILED with error, got %+v", res)
	}
	if pool.Released.Load() != 1 {
		t.Fatal("expected page released on failure")
	}
}

func TestMalformedURLFailsBeforeAcquiringPage(t *testing.T) {
	pool := &teststubs.StubPagePool{Page: &teststubs.StubPage{}}
	ex := newExtractor(pool, registry(t, oneXTwo()), extractor.Options{})
	tk := task("1x2")
	tk.Match.URL = "https://www.oddsportal.com/"
	_, err := ex.Extract(context.Background(), tk, nil)
	if _, ok := domain.AsMalformedURLError(err); !ok {
		t.Fatalf("expected malformed url error, got %v", err)
	}
	if pool.Acquired.Load() != 0 {
		t.Fatal("expected no page acquired")
	}
}

func TestNavigationErrorPropagates(t *testing.T) {
	page := &teststubs.StubPage{NavigateErr: &domain.NavigationError{URL: "u", Timeout: true}}
	pool := &teststubs.StubPagePool{Page: page}
	ex := newExtractor(pool, registry(t, oneXTwo()), extractor.Options{})

	_, err := ex.Extract(context.Background(), task("1x2"), nil)
	if nav, ok := domain.AsNavigationError(err); !ok || !nav.Timeout {
		t.Fatalf("expected navigation timeout, got %v", err)
	}
	if pool.Released.Load() != 1 {
		t.Fatal("expected page released")
	}
}

func TestBlockedPageIsReported(t *testing.T) {
	s := newSite(map[string]string{"1X2|Full Time": oneXTwoBody()})
	s.blocked = "captcha challenge"
	ex := newExtractor(&teststubs.StubPagePool{Page: s.page}, registry(t, oneXTwo()), extractor.Options{})

	_, err := ex.Extract(context.Background(), task("1x2"), nil)
	if b, ok := domain.AsBlockedError(err); !ok || b.Reason != "captcha challenge" {
		t.Fatalf("expected blocked error, got %v", err)
	}
}

func TestMissingTabIsSoftFailure(t *testing.T) {
	s := newSite(map[string]string{"1X2|Full Time": oneXTwoBody()})
	ex := newExtractor(&teststubs.StubPagePool{Page: s.page}, registry(t, oneXTwo(), overUnder()), extractor.Options{})

	res, err := ex.Extract(context.Background(), task("over_under", "1x2"), nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	ou, _ := res.Outcome("over_under")
	if ou.Status != domain.MarketSkipped || !strings.Contains(ou.Reason, "tab") {
		t.Fatalf("expected tab skip, got %+v", ou)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 1x2 records to survive, got %d", len(res.Records))
	}
}

func TestMultiLineMarketExpandsOnceAndParsesLines(t *testing.T) {
	body := testutil.LineGroup("Over/Under +2.5", testutil.OddsRow("bet365", "1.90", "1.95"), testutil.OddsRow("Pinnacle", "1.92", "1.97")) +
		testutil.LineGroup("Over/Under +3.5", testutil.OddsRow("bet365", "2.60", "1.50"))
	s := newSite(map[string]string{"Over/Under|Full Time": body})
	ex := newExtractor(&teststubs.StubPagePool{Page: s.page}, registry(t, overUnder()), extractor.Options{})

	res, err := ex.Extract(context.Background(), task("over_under"), nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("expected 3 line records, got %d", len(res.Records))
	}
	if res.Records[2].LineValue() != "3.5" {
		t.Fatalf("expected document order, got %+v", res.Records[2])
	}
	sel := parser.DefaultSelectors()
	expand := extractor.ExpandScript(sel.GroupHeader, sel.Row, sel.LineGroupAttr, sel.LineHeaderAttr)
	if n := s.page.EvaluatedCount(expand); n != 1 {
		t.Fatalf("expected a single bulk expand, got %d", n)
	}
}

func TestRequestedPeriodsAreParsedSeparately(t *testing.T) {
	s := newSite(map[string]string{
		"1X2|Full Time": oneXTwoBody(),
		"1X2|1st Half":  testutil.OddsRow("bet365", "2.90", "2.10", "4.00"),
	})
	def := oneXTwo(domain.PeriodFullTime, domain.PeriodFirstHalf)
	ex := newExtractor(&teststubs.StubPagePool{Page: s.page}, registry(t, def), extractor.Options{})

	tk := task("1x2")
	tk.Periods = []domain.Period{domain.PeriodFullTime, domain.PeriodFirstHalf, domain.PeriodSecondSet}
	res, err := ex.Extract(context.Background(), tk, nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("expected 2 full-time + 1 first-half records, got %d", len(res.Records))
	}
	if res.Records[2].Period != domain.PeriodFirstHalf || res.Records[2].Odds["1"] != 2.9 {
		t.Fatalf("unexpected first-half record %+v", res.Records[2])
	}
	outcome, _ := res.Outcome("1x2")
	if len(outcome.Periods) != 2 {
		t.Fatalf("expected both supported periods, got %v", outcome.Periods)
	}
}

func TestHistoryIsAttachedPerCell(t *testing.T) {
	s := newSite(map[string]string{"1X2|Full Time": testutil.OddsRowRef("r0", "bet365", "2.10", "3.30", "3.40")})
	sel := parser.DefaultSelectors()
	inner := s.page.OnSnapshot
	s.page.OnSnapshot = func(selector string) (string, error) {
		if selector == sel.HistoryOverlay {
			if s.page.LastHovered() == sel.CellRefSelector("r0", 0) {
				return testutil.HistoryOverlay([2]string{"08 Mar, 14:30", "2.00"}, [2]string{"09 Mar, 10:00", "2.10"}), nil
			}
			return testutil.HistoryOverlay(), nil
		}
		return inner(selector)
	}
	ex := newExtractor(&teststubs.StubPagePool{Page: s.page}, registry(t, oneXTwo()), extractor.Options{History: true})

	res, err := ex.Extract(context.Background(), task("1x2"), nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	rec := res.Records[0]
	if len(rec.History["1"]) != 2 || rec.History["1"][1].Odds != 2.1 {
		t.Fatalf("expected history for label 1, got %+v", rec.History)
	}
	if _, ok := rec.History["X"]; ok {
		t.Fatalf("expected no history for X, got %+v", rec.History["X"])
	}
	if len(s.page.Hovered) != 3 {
		t.Fatalf("expected one hover per odds cell, got %v", s.page.Hovered)
	}
}

// stickyOverlay keeps the odds movement overlay of the first hovered cell mounted
// until a pointer-leave is dispatched on that cell, as the live page does.
type stickyOverlay struct {
	sel     parser.Selectors
	cells   []string
	moves   map[string][2]string
	closing bool
	owner   string
}

func attachStickyOverlay(s *site, row string, moves ...[2]string) *stickyOverlay {
	o := &stickyOverlay{sel: s.sel, moves: make(map[string][2]string), closing: true}
	for i, m := range moves {
		cell := s.sel.CellRefSelector(row, i)
		o.cells = append(o.cells, cell)
		o.moves[cell] = m
	}
	script, snapshot := s.page.OnScript, s.page.OnSnapshot
	s.page.OnHover = func(selector string) error {
		if o.owner == "" {
			o.owner = selector
		}
		return nil
	}
	s.page.OnScript = func(js string) (any, error) {
		if js == extractor.ExistsScript(o.sel.HistoryOverlay) {
			return o.owner != "", nil
		}
		for _, cell := range o.cells {
			if js == extractor.LeaveScript(cell) {
				if o.closing && cell == o.owner {
					o.owner = ""
				}
				return true, nil
			}
		}
		return script(js)
	}
	s.page.OnSnapshot = func(selector string) (string, error) {
		if selector == o.sel.HistoryOverlay {
			if o.owner == "" {
				return "", nil
			}
			return testutil.HistoryOverlay(o.moves[o.owner]), nil
		}
		return snapshot(selector)
	}
	return o
}

func TestHistoryWaitsForPreviousOverlayToClose(t *testing.T) {
	s := newSite(map[string]string{"1X2|Full Time": testutil.OddsRowRef("r0", "bet365", "2.10", "3.30", "3.40")})
	o := attachStickyOverlay(s, "r0",
		[2]string{"08 Mar, 14:30", "2.00"},
		[2]string{"08 Mar, 15:00", "3.20"},
		[2]string{"08 Mar, 16:00", "3.50"},
	)
	ex := newExtractor(&teststubs.StubPagePool{Page: s.page}, registry(t, oneXTwo()), extractor.Options{History: true})

	res, err := ex.Extract(context.Background(), task("1x2"), nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	rec := res.Records[0]
	want := map[string]float64{"1": 2.0, "X": 3.2, "2": 3.5}
	for label, odds := range want {
		if len(rec.History[label]) != 1 || rec.History[label][0].Odds != odds {
			t.Fatalf("expected label %s to carry its own movement %.2f, got %+v", label, odds, rec.History)
		}
	}
	for _, cell := range o.cells[:2] {
		if s.page.EvaluatedCount(extractor.LeaveScript(cell)) != 1 {
			t.Fatalf("expected pointer to leave %s once", cell)
		}
	}
	if s.page.EvaluatedCount(extractor.LeaveScript(o.cells[2])) != 0 {
		t.Fatalf("expected no leave for the last cell")
	}
}

func TestHistorySkipsCellsWhileOverlayStaysOpen(t *testing.T) {
	s := newSite(map[string]string{"1X2|Full Time": testutil.OddsRowRef("r0", "bet365", "2.10", "3.30", "3.40")})
	o := attachStickyOverlay(s, "r0",
		[2]string{"08 Mar, 14:30", "2.00"},
		[2]string{"08 Mar, 15:00", "3.20"},
		[2]string{"08 Mar, 16:00", "3.50"},
	)
	o.closing = false
	ex := newExtractor(&teststubs.StubPagePool{Page: s.page}, registry(t, oneXTwo()),
		extractor.Options{History: true, HistoryWait: 20 * time.Millisecond})

	res, err := ex.Extract(context.Background(), task("1x2"), nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	rec := res.Records[0]
	if len(rec.History["1"]) != 1 || rec.History["1"][0].Odds != 2.0 {
		t.Fatalf("expected history for label 1, got %+v", rec.History)
	}
	if len(rec.History) != 1 {
		t.Fatalf("expected stale overlay not to be reused, got %+v", rec.History)
	}
	if len(s.page.Hovered) != 1 {
		t.Fatalf("expected later cells not to be hovered, got %v", s.page.Hovered)
	}
	if n := s.page.EvaluatedCount(extractor.LeaveScript(o.cells[0])); n != 2 {
		t.Fatalf("expected each later cell to retry leaving the open cell, got %d", n)
	}
}

func TestHistoryNotCollectedUnlessRequested(t *testing.T) {
	s := newSite(map[string]string{"1X2|Full Time": testutil.OddsRowRef("r0", "bet365", "2.10", "3.30", "3.40")})
	ex := newExtractor(&teststubs.StubPagePool{Page: s.page}, registry(t, oneXTwo()), extractor.Options{})
	if _, err := ex.Extract(context.Background(), task("1x2"), nil); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(s.page.Hovered) != 0 {
		t.Fatalf("expected no hover interactions, got %v", s.page.Hovered)
	}
}

func TestPoolErrorFailsMatch(t *testing.T) {
	pool := &teststubs.StubPagePool{Err: domain.ErrNoPage}
	ex := newExtractor(pool, registry(t, oneXTwo()), extractor.Options{})
	_, err := ex.Extract(context.Background(), task("1x2"), &domain.ProxyEntry{Server: "http://p:1"})
	if !errors.Is(err, domain.ErrNoPage) {
		t.Fatalf("expected ErrNoPage, got %v", err)
	}
}

func TestProxyIsHandedToPool(t *testing.T) {
	s := newSite(map[string]string{"1X2|Full Time": oneXTwoBody()})
	pool := &teststubs.StubPagePool{Page: s.page}
	ex := newExtractor(pool, registry(t, oneXTwo()), extractor.Options{})
	proxy := &domain.ProxyEntry{Server: "http://p:1"}
	if _, err := ex.Extract(context.Background(), task("1x2"), proxy); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(pool.Proxies) != 1 || pool.Proxies[0] != proxy {
		t.Fatalf("expected proxy passed to pool, got %+v", pool.Proxies)
	}
}
