// Package browser implements extractor pages on top of headless Chrome via chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/extractor"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
)

const (
	defaultMaxPages          = 3
	defaultNavigationTimeout = 20 * time.Second
	defaultWidth             = 1920
	defaultHeight            = 1080
	directKey                = ""
)

// Config controls how browsers are launched and pages are prepared.
type Config struct {
	Headless          bool
	UserAgent         string
	Locale            string
	TimezoneID        string
	ExecPath          string
	WindowWidth       int
	WindowHeight      int
	MaxPages          int
	NavigationTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = defaultNavigationTimeout
	}
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		c.WindowWidth, c.WindowHeight = defaultWidth, defaultHeight
	}
	return c
}

// instance is one browser process; proxies are per process in Chrome.
type instance struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Pool lends tabs from one browser per proxy, bounded by MaxPages open tabs.
type Pool struct {
	cfg    Config
	logger *slog.Logger
	slots  chan struct{}

	mu       sync.Mutex
	browsers map[string]*instance
	closed   bool
}

// NewPool prepares a pool. Browsers start lazily on first use.
func NewPool(cfg Config, logger *slog.Logger) *Pool {
	cfg = cfg.withDefaults()
	return &Pool{
		cfg:      cfg,
		logger:   logger,
		slots:    make(chan struct{}, cfg.MaxPages),
		browsers: make(map[string]*instance),
	}
}

var _ extractor.PagePool = (*Pool)(nil)

// Acquire opens a fresh tab routed through proxy. A nil proxy connects directly.
func (p *Pool) Acquire(ctx context.Context, proxy *domain.ProxyEntry) (extractor.Page, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrNoPage, ctx.Err())
	}

	inst, err := p.instance(proxy)
	if err != nil {
		<-p.slots
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(inst.ctx)
	page := &Page{ctx: tabCtx, cancel: cancel, navTimeout: p.cfg.NavigationTimeout}
	if err := chromedp.Run(tabCtx, p.setup(tabCtx, proxy)...); err != nil {
		cancel()
		<-p.slots
		return nil, fmt.Errorf("%w: prepare tab: %w", domain.ErrNoPage, err)
	}
	return page, nil
}

// Release closes the tab and frees its slot.
func (p *Pool) Release(page extractor.Page) {
	pg, ok := page.(*Page)
	if !ok || pg == nil {
		return
	}
	pg.once.Do(func() {
		pg.cancel()
		<-p.slots
	})
}

// Close shuts down every browser process.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for key, inst := range p.browsers {
		inst.cancel()
		delete(p.browsers, key)
	}
}

func (p *Pool) instance(proxy *domain.ProxyEntry) (*instance, error) {
	key := directKey
	if proxy != nil {
		key = proxy.Server
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("%w: pool closed", domain.ErrNoPage)
	}
	if inst, ok := p.browsers[key]; ok {
		return inst, nil
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(p.cfg, proxy)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			logging.Debug(p.logger, "chrome devtools error", "detail", fmt.Sprintf(format, args...))
		}),
	)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: start browser: %w", domain.ErrNoPage, err)
	}
	inst := &instance{
		ctx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}
	p.browsers[key] = inst
	logging.Info(p.logger, "browser started", logging.FieldProxy, key, "headless", p.cfg.Headless)
	return inst, nil
}

// setup applies locale and timezone emulation and answers proxy auth challenges.
func (p *Pool) setup(tabCtx context.Context, proxy *domain.ProxyEntry) []chromedp.Action {
	var actions []chromedp.Action
	if p.cfg.TimezoneID != "" {
		actions = append(actions, emulation.SetTimezoneOverride(p.cfg.TimezoneID))
	}
	if p.cfg.Locale != "" {
		actions = append(actions, emulation.SetLocaleOverride().WithLocale(p.cfg.Locale))
	}
	if p.cfg.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(p.cfg.UserAgent).WithAcceptLanguage(p.cfg.Locale))
	}
	if proxy != nil && proxy.HasCredentials() {
		listenForAuth(tabCtx, *proxy)
		actions = append(actions, fetch.Enable().WithHandleAuthRequests(true))
	}
	return actions
}

func listenForAuth(tabCtx context.Context, proxy domain.ProxyEntry) {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch ev := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				_ = chromedp.Run(tabCtx, fetch.ContinueWithAuth(ev.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: proxy.Username,
					Password: proxy.Password,
				}))
			}()
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(tabCtx, fetch.ContinueRequest(ev.RequestID))
			}()
		}
	})
}

func allocatorOptions(cfg Config, proxy *domain.ProxyEntry) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if proxy != nil && proxy.Server != "" {
		opts = append(opts, chromedp.ProxyServer(proxy.Server))
	}
	return opts
}

// errDetachedMarkers are devtools messages raised when the node or frame went away mid-action.
var errDetachedMarkers = []string{
	"detached",
	"Cannot find context with specified id",
	"Execution context was destroyed",
	"No node with given id",
	"Could not find node with given id",
}

var errNotFound = errors.New("no element matches selector")
