package ai

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// backoff is the retry policy shared by all runtimes: capped exponential
// delays with jitter, or the provider's Retry-After when it sent one.
type backoff struct {
	attempts int
	base     time.Duration
	max      time.Duration
}

func newBackoff(attempts int, base, max time.Duration, defaults backoff) backoff {
	b := backoff{attempts: attempts, base: base, max: max}
	if b.attempts <= 0 {
		b.attempts = defaults.attempts
	}
	if b.base <= 0 {
		b.base = defaults.base
	}
	if b.max <= 0 {
		b.max = defaults.max
	}
	return b
}

// run calls fn until it succeeds, fails permanently or attempts run out.
func (b backoff) run(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := b.base
	var err error
	for attempt := 1; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = fn(ctx)
		if err == nil || !transient(err) || attempt >= b.attempts {
			return err
		}
		wait := withJitter(delay)
		if b.max > 0 && wait > b.max {
			wait = b.max
		}
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			wait = rl.RetryAfter
		}
		if serr := sleep(ctx, wait); serr != nil {
			return err
		}
		delay *= 2
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// withJitter returns d with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	out := time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
	if out <= 0 {
		return d
	}
	return out
}
