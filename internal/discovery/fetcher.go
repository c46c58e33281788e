package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/extractor"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
	"github.com/preston-bernstein/oddsharvester/internal/resilience"
)

const (
	defaultSettle     = 3 * time.Second
	defaultMaxScrolls = 10
)

// scrollScript scrolls to the bottom of the listing and evaluates to the new page height.
const scrollScript = `(() => { window.scrollTo(0, document.body.scrollHeight); return document.body.scrollHeight; })()`

// Fetcher returns the rendered HTML of a listing page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// PageFetcher renders listing pages in a browser page borrowed from the pool.
type PageFetcher struct {
	pages      extractor.PagePool
	sel        Selectors
	settle     time.Duration
	maxScrolls int
	logger     *slog.Logger
}

// NewPageFetcher builds a fetcher over pages. A non-positive settle uses three seconds.
func NewPageFetcher(pages extractor.PagePool, sel Selectors, settle time.Duration, logger *slog.Logger) *PageFetcher {
	if settle <= 0 {
		settle = defaultSettle
	}
	return &PageFetcher{
		pages:      pages,
		sel:        sel.withDefaults(),
		settle:     settle,
		maxScrolls: defaultMaxScrolls,
		logger:     logger,
	}
}

// Fetch navigates to url, scrolls until the listing stops growing and snapshots the body.
func (f *PageFetcher) Fetch(ctx context.Context, url string) (string, error) {
	page, err := f.pages.Acquire(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("acquire page: %w", err)
	}
	defer f.pages.Release(page)

	if err := page.Navigate(ctx, url); err != nil {
		return "", err
	}
	var blocked string
	if err := page.EvaluateScript(ctx, extractor.BlockedScript(), &blocked); err != nil {
		return "", err
	}
	if blocked != "" {
		return "", &domain.BlockedError{URL: url, Reason: blocked}
	}

	waitCtx, cancel := context.WithTimeout(ctx, f.settle)
	err = page.WaitReady(waitCtx, f.sel.EventRow)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logging.Debug(logging.FromContext(ctx, f.logger), "no event rows rendered", logging.FieldURL, url)
	}

	f.scroll(ctx, page)
	return page.QuerySnapshot(ctx, "body")
}

func (f *PageFetcher) scroll(ctx context.Context, page extractor.Page) {
	var last int
	for range f.maxScrolls {
		var height int
		if err := page.EvaluateScript(ctx, scrollScript, &height); err != nil || height <= last {
			return
		}
		last = height
	}
}

// rateLimitedFetcher enforces a minimum interval between fetches.
type rateLimitedFetcher struct {
	next     Fetcher
	interval time.Duration
	ticker   *time.Ticker
	logger   *slog.Logger
}

// NewRateLimitedFetcher returns a Fetcher that waits for the interval between calls.
// A non-positive interval returns next unchanged.
func NewRateLimitedFetcher(next Fetcher, interval time.Duration, logger *slog.Logger) Fetcher {
	if interval <= 0 {
		return next
	}
	return &rateLimitedFetcher{
		next:     next,
		interval: interval,
		ticker:   time.NewTicker(interval),
		logger:   logger,
	}
}

func (f *rateLimitedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	select {
	case <-ctx.Done():
		logging.Warn(f.logger, "rate-limited fetch canceled", logging.FieldURL, url)
		return "", ctx.Err()
	case <-f.ticker.C:
	}
	return f.next.Fetch(ctx, url)
}

// retryingFetcher retries retryable listing fetch failures with the resilience policy.
type retryingFetcher struct {
	inner  Fetcher
	policy resilience.Policy
	logger *slog.Logger
}

// NewRetryingFetcher wraps inner with retries.
func NewRetryingFetcher(inner Fetcher, policy resilience.Policy, logger *slog.Logger) Fetcher {
	return &retryingFetcher{inner: inner, policy: policy, logger: logger}
}

func (f *retryingFetcher) Fetch(ctx context.Context, url string) (string, error) {
	var html string
	ctx = logging.WithLogger(ctx, logging.FromContext(ctx, f.logger))
	attempts, err := f.policy.Do(ctx, func(ctx context.Context, _ int) error {
		out, err := f.inner.Fetch(ctx, url)
		if err != nil {
			return err
		}
		html = out
		return nil
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.Warn(logging.FromContext(ctx, f.logger), "listing fetch failed",
				logging.FieldURL, url,
				logging.FieldAttempt, attempts,
				logging.FieldError, err,
			)
		}
		return "", err
	}
	return html, nil
}
