// Package discovery finds match page links on upcoming and results listings.
package discovery

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
)

const defaultPageConcurrency = 3

// Options configure a Discoverer.
type Options struct {
	BaseURL         string
	PageConcurrency int
	Selectors       Selectors
}

// Discoverer turns listing pages into match links.
type Discoverer struct {
	fetcher     Fetcher
	urls        URLBuilder
	sel         Selectors
	concurrency int
	logger      *slog.Logger
}

// New builds a Discoverer that loads listings through fetcher.
func New(fetcher Fetcher, opts Options, logger *slog.Logger) *Discoverer {
	if opts.PageConcurrency <= 0 {
		opts.PageConcurrency = defaultPageConcurrency
	}
	return &Discoverer{
		fetcher:     fetcher,
		urls:        NewURLBuilder(opts.BaseURL),
		sel:         opts.Selectors.withDefaults(),
		concurrency: opts.PageConcurrency,
		logger:      logger,
	}
}

// URLs exposes the builder used for listings.
func (d *Discoverer) URLs() URLBuilder { return d.urls }

// Upcoming returns the match links listed for date, optionally narrowed to a league.
func (d *Discoverer) Upcoming(ctx context.Context, sport domain.Sport, date time.Time, league string) (iter.Seq[string], error) {
	listing, err := d.urls.Upcoming(sport, date, league)
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx, d.logger)
	logging.Info(logger, "fetching upcoming matches", logging.FieldURL, listing, logging.FieldSport, sport)

	html, err := d.fetcher.Fetch(ctx, listing)
	if err != nil {
		return nil, fmt.Errorf("fetch upcoming listing: %w", err)
	}
	links := ExtractMatchLinks(html, d.urls.Base(), sport, d.sel)
	if len(links) == 0 {
		logging.Warn(logger, "no match links found", logging.FieldURL, listing)
	}
	return slices.Values(links), nil
}

// Historic returns the match links of a league season, reading at most maxPages
// result pages. A non-positive maxPages reads every page.
func (d *Discoverer) Historic(ctx context.Context, sport domain.Sport, league, season string, maxPages int) (iter.Seq[string], error) {
	listing, err := d.urls.Historic(sport, league, season)
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx, d.logger)
	logging.Info(logger, "fetching historic matches", logging.FieldURL, listing, logging.FieldSport, sport)

	first, err := d.fetcher.Fetch(ctx, listing)
	if err != nil {
		return nil, fmt.Errorf("fetch results listing: %w", err)
	}
	pages := PageNumbers(first, d.sel, maxPages)
	logging.Info(logger, "result pages selected", "pages", pages)

	perPage := make([][]string, len(pages))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, n := range pages {
		if n == 1 {
			perPage[i] = ExtractMatchLinks(first, d.urls.Base(), sport, d.sel)
			continue
		}
		g.Go(func() error {
			pageURL := fmt.Sprintf("%s#/page/%d", listing, n)
			html, err := d.fetcher.Fetch(ctx, pageURL)
			if err != nil {
				logging.Error(logger, "result page failed", err, "page", n, logging.FieldURL, pageURL)
				return nil
			}
			perPage[i] = ExtractMatchLinks(html, d.urls.Base(), sport, d.sel)
			logging.Debug(logger, "result page read", "page", n, logging.FieldCount, len(perPage[i]))
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	links := dedupe(perPage)
	logging.Info(logger, "match links collected", logging.FieldCount, len(links))
	return slices.Values(links), nil
}

func dedupe(groups [][]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range groups {
		for _, link := range group {
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			out = append(out, link)
		}
	}
	return out
}
