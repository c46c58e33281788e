// Package proxies rotates a fixed list of upstream proxies across concurrent tasks.
package proxies

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
)

const defaultAcquireWait = 2 * time.Second

// ParseEntries reads "scheme://host:port [user pass]" lines. Invalid lines are skipped with a warning.
func ParseEntries(lines []string, logger *slog.Logger) []domain.ProxyEntry {
	var out []domain.ProxyEntry
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 1 && len(fields) != 3 {
			logging.Warn(logger, "skipping proxy entry with unexpected field count", "fields", len(fields))
			continue
		}
		u, err := url.Parse(fields[0])
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "socks5") {
			logging.Warn(logger, "skipping proxy entry with invalid server", logging.FieldProxy, fields[0])
			continue
		}
		entry := domain.ProxyEntry{Server: u.Scheme + "://" + u.Host}
		if len(fields) == 3 {
			entry.Username, entry.Password = fields[1], fields[2]
		}
		out = append(out, entry)
	}
	return out
}

// Pool hands out proxies round-robin; an entry is held by at most one task at a time.
type Pool struct {
	mu      sync.Mutex
	entries []domain.ProxyEntry
	next    int
	changed chan struct{}
	wait    time.Duration
	logger  *slog.Logger
}

// NewPool builds a pool over entries. A non-positive wait uses the default.
func NewPool(entries []domain.ProxyEntry, wait time.Duration, logger *slog.Logger) *Pool {
	if wait <= 0 {
		wait = defaultAcquireWait
	}
	cp := make([]domain.ProxyEntry, len(entries))
	copy(cp, entries)
	for i := range cp {
		cp[i].InUse = false
	}
	return &Pool{
		entries: cp,
		changed: make(chan struct{}),
		wait:    wait,
		logger:  logger,
	}
}

// Len reports how many proxies the pool rotates over.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Acquire reserves the next free proxy. It returns a nil entry straight away when the
// pool is empty, and after the acquire wait when every entry stays busy. The returned
// release func is always safe to call, and only the first call has an effect.
func (p *Pool) Acquire(ctx context.Context) (*domain.ProxyEntry, func()) {
	if p == nil || len(p.entries) == 0 {
		return nil, func() {}
	}
	timer := time.NewTimer(p.wait)
	defer timer.Stop()
	for {
		idx, entry, changed := p.tryAcquire()
		if idx >= 0 {
			var once sync.Once
			return &entry, func() { once.Do(func() { p.release(idx) }) }
		}
		select {
		case <-changed:
		case <-timer.C:
			logging.Warn(p.logger, "all proxies busy, continuing without proxy")
			return nil, func() {}
		case <-ctx.Done():
			return nil, func() {}
		}
	}
}

// tryAcquire returns the reserved index, or -1 and a channel closed on the next release.
func (p *Pool) tryAcquire() (int, domain.ProxyEntry, <-chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.entries)
	for i := 0; i < n; i++ {
		idx := (p.next + i) % n
		if !p.entries[idx].InUse {
			p.entries[idx].InUse = true
			p.next = (idx + 1) % n
			return idx, p.entries[idx], nil
		}
	}
	return -1, domain.ProxyEntry{}, p.changed
}

func (p *Pool) release(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[idx].InUse = false
	close(p.changed)
	p.changed = make(chan struct{})
}

// Snapshot returns a copy of the entries with their current assignment state.
func (p *Pool) Snapshot() []domain.ProxyEntry {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ProxyEntry, len(p.entries))
	copy(out, p.entries)
	return out
}
