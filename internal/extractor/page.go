// Package extractor drives one match page through navigation, market selection and parsing.
package extractor

import (
	"context"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
)

// Page is the browser capability the extractor consumes.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// EvaluateScript runs js and decodes its JSON-serialisable result into out (which may be nil).
	EvaluateScript(ctx context.Context, js string, out any) error
	// QuerySnapshot returns the outer HTML of the first element matching selector.
	QuerySnapshot(ctx context.Context, selector string) (string, error)
	Hover(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	// WaitReady blocks until an element matching selector is present.
	WaitReady(ctx context.Context, selector string) error
}

// PagePool lends pages to one task at a time.
type PagePool interface {
	Acquire(ctx context.Context, proxy *domain.ProxyEntry) (Page, error)
	Release(page Page)
}
