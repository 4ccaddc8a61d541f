package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	defaultRetryAttempts     = 3
	defaultMalformedAttempts = 2
	defaultRetryBaseDelay    = 2 * time.Second
	defaultRetryMaxDelay     = 30 * time.Second
	defaultRetryJitter       = 0.2
	defaultCallTimeout       = 120 * time.Second
)

// Policy describes how a single external call is retried. The zero value is
// usable and falls back to package defaults.
type Policy struct {
	MaxAttempts       int
	MalformedAttempts int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Jitter            float64
	Timeout           time.Duration

	// Sleep overrides the wait between attempts (tests).
	Sleep func(context.Context, time.Duration) error
	// OnRetry is invoked before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Rand returns a value in [0,1) for jitter.
	Rand func() float64
}

// DefaultPolicy returns the standard external call policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       defaultRetryAttempts,
		MalformedAttempts: defaultMalformedAttempts,
		BaseDelay:         defaultRetryBaseDelay,
		MaxDelay:          defaultRetryMaxDelay,
		Jitter:            defaultRetryJitter,
		Timeout:           defaultCallTimeout,
	}
}

// RetryAfterHint is implemented by errors that carry a server-provided delay.
type RetryAfterHint interface {
	RetryAfter() time.Duration
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt
// budget for its error kind is spent.
func (p Policy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	_, err := Retry(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Retry is the value-returning form of Policy.Do.
func Retry[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		return zero, errors.New("retry: nil context")
	}
	var lastErr error
	attempt := 0
	for {
		attempt++
		value, err := attemptOnce(ctx, p.timeout(), fn)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt >= p.limitFor(err) {
			break
		}
		delay := p.delayFor(err, attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := p.wait(ctx, delay); err != nil {
			return zero, err
		}
	}
	if attempt <= 1 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, lastErr)
}

func attemptOnce[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	value, err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: call exceeded %s: %w", ErrTimeout, timeout, err)
	}
	return value, err
}

func (p Policy) limitFor(err error) int {
	switch Classify(err) {
	case KindTransient:
		if p.MaxAttempts > 0 {
			return p.MaxAttempts
		}
		return defaultRetryAttempts
	case KindMalformed:
		if p.MalformedAttempts > 0 {
			return p.MalformedAttempts
		}
		return defaultMalformedAttempts
	default:
		return 1
	}
}

func (p Policy) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return defaultCallTimeout
}

// Backoff returns the delay before the retry following the given 1-based
// attempt, without jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base < 0 {
		return 0
	}
	if base == 0 {
		base = defaultRetryBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if attempt <= 0 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (p Policy) delayFor(err error, attempt int) time.Duration {
	var hint RetryAfterHint
	if errors.As(err, &hint) {
		if d := hint.RetryAfter(); d > 0 {
			maxDelay := p.MaxDelay
			if maxDelay <= 0 {
				maxDelay = defaultRetryMaxDelay
			}
			return min(d, maxDelay)
		}
	}
	delay := p.Backoff(attempt)
	if p.Jitter <= 0 || delay <= 0 {
		return delay
	}
	random := rand.Float64
	if p.Rand != nil {
		random = p.Rand
	}
	spread := float64(delay) * p.Jitter
	return time.Duration(float64(delay) - spread + 2*spread*random())
}

func (p Policy) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
