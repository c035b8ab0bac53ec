// Package retry wraps outbound calls with capped exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/angelmondragon/shopchat-core/pkg/config"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialDelay   = 200 * time.Millisecond
	defaultMultiplier     = 2.0
	defaultMaxDelay       = 5 * time.Second
	defaultJitterFraction = 0.1
)

var (
	jitterMu     sync.Mutex
	jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Policy controls how many times fn is invoked and how long to wait in between.
// Delay before attempt n+1 is min(MaxDelay, InitialDelay*Multiplier^(n-1)) plus
// up to JitterFraction of that base.
type Policy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	JitterFraction float64

	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry observes every failed attempt that will be retried.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// FromConfig builds a Policy from the shared retry configuration.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay,
		Multiplier:   cfg.Multiplier,
		MaxDelay:     cfg.MaxDelay,
	}.normalized()
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = defaultInitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = defaultMultiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	} else if p.JitterFraction == 0 {
		p.JitterFraction = defaultJitterFraction
	}
	return p
}

// BaseDelay returns the un-jittered wait after the given failed attempt (1-based).
func (p Policy) BaseDelay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	scaled := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if scaled >= float64(p.MaxDelay) || math.IsInf(scaled, 0) {
		return p.MaxDelay
	}
	return time.Duration(scaled)
}

// Delay returns BaseDelay plus a random jitter in [0, JitterFraction*base).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	base := p.BaseDelay(attempt)
	window := int64(float64(base) * p.JitterFraction)
	if window <= 0 {
		return base
	}
	jitterMu.Lock()
	jitter := time.Duration(jitterSource.Int63n(window))
	jitterMu.Unlock()
	return base + jitter
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Classify marks coded errors whose metadata says they are not retryable as
// Permanent. Untyped errors are treated as transient.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if !pkgerrors.MetadataFor(pkgerrors.CodeOf(err)).Retryable {
		return Permanent(err)
	}
	return err
}

// Do invokes fn until it succeeds, returns a Permanent error, the context ends,
// or MaxAttempts invocations have failed. The last error from fn is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for calls that produce a result.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var zero T
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if attempt >= p.MaxAttempts {
			return zero, err
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return zero, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
