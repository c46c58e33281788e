package seen

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/testutil"
)

func TestMemoryExpires(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(time.Hour)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := m.Has(ctx, "a"); ok {
		t.Fatal("expected empty store")
	}
	_ = m.Mark(ctx, "a")
	if ok, _ := m.Has(ctx, "a"); !ok {
		t.Fatal("expected key marked")
	}

	now = now.Add(30 * time.Minute)
	_ = m.Mark(ctx, "a")
	now = now.Add(31 * time.Minute)
	if ok, _ := m.Has(ctx, "a"); ok {
		t.Fatal("expected re-mark to keep the original expiry")
	}
}

type failingStore struct{}

func (failingStore) Has(context.Context, string) (bool, error) { return false, errors.New("down") }
func (failingStore) Mark(context.Context, string) error        { return errors.New("down") }

func TestFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	_ = m.Mark(ctx, "b")
	if got := Filter(ctx, m, []string{"a", "b", "c"}, nil); !slices.Equal(got, []string{"a", "c"}) {
		t.Fatalf("unexpected filtered keys %v", got)
	}
	if got := Filter(ctx, nil, []string{"a"}, nil); len(got) != 1 {
		t.Fatal("expected nil store to keep everything")
	}

	logger, buf := testutil.NewBufferLogger()
	if got := Filter(ctx, failingStore{}, []string{"a", "b"}, logger); len(got) != 2 {
		t.Fatalf("expected lookup errors to keep keys, got %v", got)
	}
	if buf.Len() == 0 {
		t.Fatal("expected lookup failure logged")
	}
}

func TestRedisDefaults(t *testing.T) {
	r := NewRedisWithClient(nil, 0, "")
	if r.ttl != defaultTTL || r.key("x") != "oddsharvester:seen:x" {
		t.Fatalf("unexpected defaults ttl=%s key=%s", r.ttl, r.key("x"))
	}
	if err := r.Close(); err != nil {
		t.Fatalf("expected no-op close, got %v", err)
	}
	if _, err := NewRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatal("expected address required")
	}
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("ODDSHARVESTER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ODDSHARVESTER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, RedisConfig{Addr: addr, TTL: time.Minute, Prefix: "oddsharvester:test:" + time.Now().Format("150405.000") + ":"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer r.Close()
	if ok, _ := r.Has(ctx, "m1"); ok {
		t.Fatal("expected fresh key absent")
	}
	if err := r.Mark(ctx, "m1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if ok, _ := r.Has(ctx, "m1"); !ok {
		t.Fatal("expected key present")
	}
}
