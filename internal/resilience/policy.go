package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/preston-bernstein/oddsharvester/internal/logging"
)

const (
	defaultMaxAttempts = 3
	defaultInitial     = 500 * time.Millisecond
	defaultMax         = 10 * time.Second
	defaultMultiplier  = 2.0
	defaultJitter      = 0.5
)

// Policy bounds how a task is retried.
type Policy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	// Jitter is the randomization factor applied to each delay, in [0,1].
	Jitter float64
}

// DefaultPolicy retries up to three attempts with jittered exponential delays.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: defaultMaxAttempts,
		Initial:     defaultInitial,
		Max:         defaultMax,
		Multiplier:  defaultMultiplier,
		Jitter:      defaultJitter,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.Initial <= 0 {
		p.Initial = defaultInitial
	}
	if p.Max < p.Initial {
		p.Max = p.Initial
	}
	if p.Multiplier < 1 {
		p.Multiplier = defaultMultiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

func (p Policy) exponential() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.Initial,
		RandomizationFactor: p.Jitter,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.Max,
		// Attempts are capped by MaxAttempts, not wall time.
		MaxElapsedTime: 0,
		Stop:           backoff.Stop,
		Clock:          backoff.SystemClock,
	}
	b.Reset()
	return b
}

// Backoff returns the delay to wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	b := p.exponential()
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Do runs op until it succeeds, returns a fatal fault, or MaxAttempts is spent.
// It returns the number of attempts made and the last fault.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) (int, error) {
	p = p.withDefaults()
	logger := logging.FromContext(ctx, nil)

	attempts := 0
	schedule := backoff.WithContext(backoff.WithMaxRetries(p.exponential(), uint64(p.MaxAttempts-1)), ctx)
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op(ctx, attempts)
		if err == nil {
			return nil
		}
		if Classify(err) == Fatal {
			return backoff.Permanent(err)
		}
		return err
	}, schedule, func(err error, next time.Duration) {
		logging.Warn(logger, "retrying task after fault",
			logging.FieldAttempt, attempts,
			"max_attempts", p.MaxAttempts,
			"backoff_ms", next.Milliseconds(),
			"error", err,
		)
	})
	return attempts, err
}
