package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/extractor"
)

// Page is one browser tab.
type Page struct {
	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
	once       sync.Once
}

var _ extractor.Page = (*Page)(nil)

// run executes actions on the tab, bounded by the caller's context.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()
	err := p.run(navCtx, chromedp.Navigate(url))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &domain.NavigationError{URL: url, Timeout: errors.Is(err, context.DeadlineExceeded), Err: err}
}

func (p *Page) EvaluateScript(ctx context.Context, js string, out any) error {
	var discard json.RawMessage
	if out == nil {
		out = &discard
	}
	err := p.run(ctx, chromedp.Evaluate(js, out))
	if errors.Is(err, chromedp.ErrJSUndefined) || errors.Is(err, chromedp.ErrJSNull) {
		return nil
	}
	return scriptError("evaluate", "", err)
}

func (p *Page) QuerySnapshot(ctx context.Context, selector string) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.Evaluate(snapshotScript(selector), &html)); err != nil {
		return "", scriptError("snapshot", selector, err)
	}
	return html, nil
}

// Hover moves the mouse to the centre of the first element matching selector.
func (p *Page) Hover(ctx context.Context, selector string) error {
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var nodes []*cdp.Node
		if err := chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)).Do(ctx); err != nil {
			return err
		}
		if len(nodes) == 0 {
			return errNotFound
		}
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(nodes[0].NodeID).Do(ctx); err != nil {
			return err
		}
		box, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
		if err != nil {
			return err
		}
		x, y := center(box.Content)
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
	return scriptError("hover", selector, err)
}

func (p *Page) Click(ctx context.Context, selector string) error {
	return scriptError("click", selector, p.run(ctx, chromedp.Click(selector, chromedp.ByQuery)))
}

func (p *Page) WaitReady(ctx context.Context, selector string) error {
	err := p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return scriptError("wait", selector, err)
}

// scriptError maps devtools failures onto domain faults. Context errors pass through.
func scriptError(op, selector string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := err.Error()
	for _, marker := range errDetachedMarkers {
		if strings.Contains(msg, marker) {
			return &domain.ScriptError{Op: op, Selector: selector, Detached: true, Err: err}
		}
	}
	return &domain.ScriptError{Op: op, Selector: selector, Err: err}
}

func snapshotScript(selector string) string {
	quoted, _ := json.Marshal(selector)
	return fmt.Sprintf(`(() => { const el = document.querySelector(%s); return el ? el.outerHTML : ""; })()`, quoted)
}

// center returns the midpoint of a DOM quad (four x,y pairs).
func center(quad dom.Quad) (float64, float64) {
	if len(quad) < 8 {
		return 0, 0
	}
	x := (quad[0] + quad[2] + quad[4] + quad[6]) / 4
	y := (quad[1] + quad[3] + quad[5] + quad[7]) / 4
	return x, y
}
