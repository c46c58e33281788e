package discovery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/resilience"
	"github.com/preston-bernstein/oddsharvester/internal/testutil"
	"github.com/preston-bernstein/oddsharvester/internal/teststubs"
)

type mapFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *mapFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if err := f.errs[url]; err != nil {
		return "", err
	}
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return html, nil
}

func pagination(pages ...string) string {
	var b strings.Builder
	for _, p := range pages {
		fmt.Fprintf(&b, `<a class="pagination-link">%s</a>`, p)
	}
	b.WriteString(`<a class="pagination-link" rel="next">Next</a>`)
	return b.String()
}

func TestURLBuilder(t *testing.T) {
	b := NewURLBuilder("")
	date := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	got, err := b.Upcoming(domain.SportFootball, date, "")
	if err != nil || got != "https://www.oddsportal.com/matches/football/20250201/" {
		t.Fatalf("unexpected upcoming url %q err %v", got, err)
	}
	got, err = b.Upcoming(domain.SportFootball, date, "england-premier-league")
	if err != nil || got != "https://www.oddsportal.com/football/england/premier-league/" {
		t.Fatalf("unexpected league upcoming url %q err %v", got, err)
	}
	got, err = b.Historic(domain.SportFootball, "england-premier-league", "2023-2024")
	if err != nil || got != "https://www.oddsportal.com/football/england/premier-league-2023-2024/results/" {
		t.Fatalf("unexpected historic url %q err %v", got, err)
	}
	got, err = b.Historic(domain.SportTennis, "atp-paris", "current")
	if err != nil || got != "https://www.oddsportal.com/tennis/france/atp-paris/results/" {
		t.Fatalf("unexpected current season url %q err %v", got, err)
	}
	if _, err := b.Historic(domain.SportFootball, "narnia-league", ""); !errors.Is(err, ErrUnknownLeague) {
		t.Fatalf("expected unknown league, got %v", err)
	}
	if _, err := b.Historic(domain.SportFootball, "italy-serie-a", "2023"); !errors.Is(err, ErrInvalidSeason) {
		t.Fatalf("expected invalid season, got %v", err)
	}

	custom := NewURLBuilder("http://127.0.0.1:8080/")
	if custom.Base() != "http://127.0.0.1:8080" {
		t.Fatalf("expected trimmed base, got %q", custom.Base())
	}
}

func TestValidateSeason(t *testing.T) {
	for _, ok := range []string{"2023-2024", "1999-2000"} {
		if err := ValidateSeason(ok); err != nil {
			t.Fatalf("expected %q valid, got %v", ok, err)
		}
	}
	for _, bad := range []string{"2023-2025", "2023/2024", "23-24", "2024-2023", ""} {
		if err := ValidateSeason(bad); err == nil {
			t.Fatalf("expected %q invalid", bad)
		}
	}
}

func TestParseUpcomingDate(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	for _, raw := range []string{"20250310", "2025-03-11"} {
		if _, err := ParseUpcomingDate(raw, now, nil); err != nil {
			t.Fatalf("expected %q accepted, got %v", raw, err)
		}
	}
	for _, raw := range []string{"20250309", "2025-13-01", "tomorrow"} {
		if _, err := ParseUpcomingDate(raw, now, nil); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("expected %q rejected, got %v", raw, err)
		}
	}
}

func TestLeagues(t *testing.T) {
	leagues := Leagues(domain.SportTennis)
	if !slices.Equal(leagues, []string{"atp-dubai", "atp-paris"}) {
		t.Fatalf("unexpected tennis leagues %v", leagues)
	}
	if len(Leagues(domain.SportRugbyLeague)) != 0 {
		t.Fatal("expected no rugby leagues")
	}
}

func TestExtractMatchLinks(t *testing.T) {
	html := testutil.MatchLinks(
		"/football/england/premier-league/arsenal-chelsea-AbCd1234/",
		"/football/england/premier-league/",
		"/football/england/premier-league/arsenal-chelsea-AbCd1234/#1X2",
		"/tennis/france/atp-paris/nadal-federer-Xy12/",
		"https://www.oddsportal.com/football/spain/laliga/real-madrid-barcelona-Qw98Er76/",
	) + `<div class="other"><a href="/football/italy/serie-a/x-y-Zz11/">outside</a></div>`

	links := ExtractMatchLinks(html, DefaultBaseURL, domain.SportFootball, Selectors{})
	want := []string{
		"https://www.oddsportal.com/football/england/premier-league/arsenal-chelsea-AbCd1234/",
		"https://www.oddsportal.com/football/spain/laliga/real-madrid-barcelona-Qw98Er76/",
	}
	if !slices.Equal(links, want) {
		t.Fatalf("unexpected links %v", links)
	}

	all := ExtractMatchLinks(html, DefaultBaseURL, "", Selectors{})
	if len(all) != 3 {
		t.Fatalf("expected links from every sport, got %v", all)
	}
}

func TestPageNumbers(t *testing.T) {
	if got := PageNumbers(pagination("3", "1", "2", "2"), Selectors{}, 0); !slices.Equal(got, []int{1, 2, 3}) {
		t.Fatalf("unexpected pages %v", got)
	}
	if got := PageNumbers(pagination("1", "2", "3", "4"), Selectors{}, 2); !slices.Equal(got, []int{1, 2}) {
		t.Fatalf("expected capped pages, got %v", got)
	}
	if got := PageNumbers("<div>no pages</div>", Selectors{}, 5); !slices.Equal(got, []int{1}) {
		t.Fatalf("expected first page only, got %v", got)
	}
}

func TestUpcomingReturnsLinks(t *testing.T) {
	url := "https://www.oddsportal.com/matches/football/20250201/"
	f := &mapFetcher{pages: map[string]string{
		url: testutil.MatchLinks("/football/england/premier-league/a-b-Id1/", "/football/england/premier-league/c-d-Id2/"),
	}}
	d := New(f, Options{}, nil)
	seq, err := d.Upcoming(context.Background(), domain.SportFootball, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), "")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got := slices.Collect(seq); len(got) != 2 {
		t.Fatalf("expected 2 links, got %v", got)
	}
}

func TestUpcomingFetchFailure(t *testing.T) {
	d := New(&mapFetcher{}, Options{}, nil)
	if _, err := d.Upcoming(context.Background(), domain.SportFootball, time.Now(), ""); err == nil {
		t.Fatal("expected fetch failure")
	}
	if _, err := d.Upcoming(context.Background(), domain.SportFootball, time.Now(), "nowhere"); !errors.Is(err, ErrUnknownLeague) {
		t.Fatalf("expected unknown league, got %v", err)
	}
}

func TestHistoricFansOutAndDedupes(t *testing.T) {
	base := "https://www.oddsportal.com/football/england/premier-league-2023-2024/results/"
	first := pagination("1", "2", "3", "4") + testutil.MatchLinks(
		"/football/england/premier-league-2023-2024/a-b-Id1/",
		"/football/england/premier-league-2023-2024/c-d-Id2/",
	)
	f := &mapFetcher{
		pages: map[string]string{
			base: first,
			base + "#/page/2": testutil.MatchLinks(
				"/football/england/premier-league-2023-2024/c-d-Id2/",
				"/football/england/premier-league-2023-2024/e-f-Id3/",
			),
			base + "#/page/3": testutil.MatchLinks("/football/england/premier-league-2023-2024/g-h-Id4/"),
		},
		errs: map[string]error{base + "#/page/4": errors.New("boom")},
	}
	d := New(f, Options{PageConcurrency: 2}, nil)
	seq, err := d.Historic(context.Background(), domain.SportFootball, "england-premier-league", "2023-2024", 0)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	got := slices.Collect(seq)
	want := []string{
		"https://www.oddsportal.com/football/england/premier-league-2023-2024/a-b-Id1/",
		"https://www.oddsportal.com/football/england/premier-league-2023-2024/c-d-Id2/",
		"https://www.oddsportal.com/football/england/premier-league-2023-2024/e-f-Id3/",
		"https://www.oddsportal.com/football/england/premier-league-2023-2024/g-h-Id4/",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected links %v", got)
	}
	if len(f.calls) != 4 {
		t.Fatalf("expected listing plus three pages fetched once, got %v", f.calls)
	}
}

func TestHistoricRespectsMaxPages(t *testing.T) {
	base := "https://www.oddsportal.com/football/italy/serie-a/results/"
	f := &mapFetcher{pages: map[string]string{
		base:              pagination("1", "2", "3"),
		base + "#/page/2": testutil.MatchLinks("/football/italy/serie-a/a-b-Id1/"),
	}}
	d := New(f, Options{}, nil)
	seq, err := d.Historic(context.Background(), domain.SportFootball, "italy-serie-a", "", 2)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got := slices.Collect(seq); len(got) != 1 {
		t.Fatalf("expected 1 link, got %v", got)
	}
	if len(f.calls) != 2 {
		t.Fatalf("expected 2 fetches, got %v", f.calls)
	}
}

func TestPageFetcherSnapshotsBody(t *testing.T) {
	page := &teststubs.StubPage{
		Snapshots: map[string]string{"body": "<body>listing</body>"},
		Scripts:   map[string]any{scrollScript: 100},
	}
	pool := &teststubs.StubPagePool{Page: page}
	f := NewPageFetcher(pool, Selectors{}, 10*time.Millisecond, nil)

	html, err := f.Fetch(context.Background(), "https://example.test/list/")
	if err != nil || html != "<body>listing</body>" {
		t.Fatalf("unexpected fetch %q err %v", html, err)
	}
	if pool.Released.Load() != 1 {
		t.Fatal("expected page released")
	}
	if n := page.EvaluatedCount(scrollScript); n != 2 {
		t.Fatalf("expected scrolling to stop once height settles, got %d", n)
	}
}

func TestPageFetcherBlocked(t *testing.T) {
	page := &teststubs.StubPage{OnScript: func(js string) (any, error) {
		if strings.Contains(js, "captcha") {
			return "captcha challenge", nil
		}
		return nil, nil
	}}
	f := NewPageFetcher(&teststubs.StubPagePool{Page: page}, Selectors{}, 0, nil)
	_, err := f.Fetch(context.Background(), "https://example.test/list/")
	if _, ok := domain.AsBlockedError(err); !ok {
		t.Fatalf("expected blocked error, got %v", err)
	}
}

type flakyFetcher struct {
	failures int
	calls    int
}

func (f *flakyFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", &domain.NavigationError{URL: url, Timeout: true}
	}
	return "ok", nil
}

func TestRetryingFetcher(t *testing.T) {
	inner := &flakyFetcher{failures: 2}
	policy := resilience.Policy{MaxAttempts: 3, Initial: time.Millisecond, Max: time.Millisecond}
	got, err := NewRetryingFetcher(inner, policy, nil).Fetch(context.Background(), "u")
	if err != nil || got != "ok" || inner.calls != 3 {
		t.Fatalf("expected success on third call, got %q err %v calls %d", got, err, inner.calls)
	}

	exhausted := &flakyFetcher{failures: 5}
	if _, err := NewRetryingFetcher(exhausted, policy, nil).Fetch(context.Background(), "u"); err == nil || exhausted.calls != 3 {
		t.Fatalf("expected failure after 3 calls, got %v calls %d", err, exhausted.calls)
	}
}

func TestRateLimitedFetcher(t *testing.T) {
	inner := &flakyFetcher{}
	if NewRateLimitedFetcher(inner, 0, nil) != Fetcher(inner) {
		t.Fatal("expected zero interval to return inner fetcher")
	}
	limited := NewRateLimitedFetcher(inner, 5*time.Millisecond, nil)
	start := time.Now()
	for range 2 {
		if _, err := limited.Fetch(context.Background(), "u"); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatal("expected calls to be spaced by the interval")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRateLimitedFetcher(inner, time.Hour, nil).Fetch(ctx, "u"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
