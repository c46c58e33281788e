// Package seen remembers which finished matches were already harvested so later historic runs skip them.
package seen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/preston-bernstein/oddsharvester/internal/logging"
)

const (
	defaultTTL    = 24 * time.Hour
	defaultPrefix = "oddsharvester:seen:"
)

// Store is a set of keys with expiry.
type Store interface {
	Has(ctx context.Context, key string) (bool, error)
	// Mark records key. An existing entry keeps its original expiry.
	Mark(ctx context.Context, key string) error
}

// Filter drops keys already in store, keeping order. Lookup errors keep the key.
func Filter(ctx context.Context, store Store, keys []string, logger *slog.Logger) []string {
	if store == nil {
		return keys
	}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		ok, err := store.Has(ctx, key)
		if err != nil {
			logging.Warn(logger, "seen lookup failed", "key", key, "error", err)
		}
		if ok {
			continue
		}
		out = append(out, key)
	}
	return out
}

// Memory is an in-process Store.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items map[string]time.Time
}

// NewMemory builds a Memory store. A non-positive ttl uses one day.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, items: make(map[string]time.Time)}
}

func (m *Memory) Has(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.items[key]
	if !ok {
		return false, nil
	}
	if !m.now().Before(exp) {
		delete(m.items, key)
		return false, nil
	}
	return true, nil
}

func (m *Memory) Mark(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.items[key]; ok && m.now().Before(exp) {
		return nil
	}
	m.items[key] = m.now().Add(m.ttl)
	return nil
}

// RedisConfig holds connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// Redis is a Store shared across processes.
type Redis struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	close  func() error
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("seen: redis address required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("seen: redis ping: %w", err)
	}
	r := NewRedisWithClient(rdb, cfg.TTL, cfg.Prefix)
	r.close = rdb.Close
	return r, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb redis.Cmdable, ttl time.Duration, prefix string) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("seen: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *Redis) Mark(ctx context.Context, key string) error {
	if err := r.rdb.SetNX(ctx, r.key(key), 1, r.ttl).Err(); err != nil {
		return fmt.Errorf("seen: setnx %s: %w", key, err)
	}
	return nil
}

// Close closes the client when this store opened it.
func (r *Redis) Close() error {
	if r == nil || r.close == nil {
		return nil
	}
	return r.close()
}
