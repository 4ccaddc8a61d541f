package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"letterpod/internal/services"
)

type hintedErr struct{ after time.Duration }

func (e hintedErr) Error() string             { return "rate limited" }
func (e hintedErr) RetryAfter() time.Duration { return e.after }
func (e hintedErr) Unwrap() error             { return services.ErrTransient }

func recordingPolicy(delays *[]time.Duration) services.Policy {
	p := services.DefaultPolicy()
	p.Jitter = 0
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return p
}

func TestPolicyRetriesTransientWithBackoff(t *testing.T) {
	var delays []time.Duration
	p := recordingPolicy(&delays)
	p.MaxAttempts = 4
	p.BaseDelay = time.Second
	p.MaxDelay = 3 * time.Second

	calls := 0
	err := p.Do(context.Background(), "synthesize", func(context.Context) error {
		calls++
		return services.Wrap(services.ErrTransient, "rendering", "synthesize", "503", nil)
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay[%d] = %s, want %s", i, delays[i], want[i])
		}
	}
	if !errors.Is(err, services.ErrTransient) || !strings.Contains(err.Error(), "failed after 4 attempts") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestPolicyMalformedUsesSmallerBudget(t *testing.T) {
	var delays []time.Duration
	p := recordingPolicy(&delays)
	p.MalformedAttempts = 2

	calls := 0
	_ = p.Do(context.Background(), "generate", func(context.Context) error {
		calls++
		return services.Wrap(services.ErrMalformed, "assembling", "", "empty", nil)
	})
	if calls != 2 {
		t.Fatalf("expected 2 calls for malformed, got %d", calls)
	}
}

func TestPolicyDoesNotRetryConstraintOrFatal(t *testing.T) {
	var delays []time.Duration
	p := recordingPolicy(&delays)
	for _, marker := range []error{services.ErrConstraint, services.ErrFatal, errors.New("plain")} {
		calls := 0
		err := p.Do(context.Background(), "op", func(context.Context) error {
			calls++
			return services.Wrap(marker, "", "", "", nil)
		})
		if calls != 1 {
			t.Fatalf("expected single call for %v, got %d", marker, calls)
		}
		if strings.Contains(err.Error(), "failed after") {
			t.Fatalf("single attempt should not be annotated: %v", err)
		}
	}
}

func TestPolicyHonoursRetryAfterHint(t *testing.T) {
	var delays []time.Duration
	p := recordingPolicy(&delays)
	p.MaxAttempts = 2
	p.MaxDelay = 10 * time.Second

	_ = p.Do(context.Background(), "op", func(context.Context) error {
		return hintedErr{after: 7 * time.Second}
	})
	if len(delays) != 1 || delays[0] != 7*time.Second {
		t.Fatalf("expected retry-after delay, got %v", delays)
	}
}

func TestRetryReturnsValueOnRecovery(t *testing.T) {
	var delays []time.Duration
	p := recordingPolicy(&delays)
	var retried []int
	p.OnRetry = func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) }

	calls := 0
	got, err := services.Retry(context.Background(), p, "fetch", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", services.Wrap(services.ErrTransient, "", "", "", nil)
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("Retry() = %q, %v", got, err)
	}
	if len(retried) != 2 {
		t.Fatalf("expected two retry notifications, got %v", retried)
	}
}

func TestPolicyAttemptTimeoutIsTransient(t *testing.T) {
	var delays []time.Duration
	p := recordingPolicy(&delays)
	p.MaxAttempts = 2
	p.Timeout = 5 * time.Millisecond

	calls := 0
	err := p.Do(context.Background(), "slow", func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	if calls != 2 {
		t.Fatalf("expected timeout to be retried, got %d calls", calls)
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
}

func TestPolicyStopsOnParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := services.DefaultPolicy()
	calls := 0
	err := p.Do(ctx, "op", func(context.Context) error {
		calls++
		cancel()
		return services.Wrap(services.ErrTransient, "", "", "", nil)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	p := services.Policy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	if got := p.Backoff(10); got != 5*time.Second {
		t.Fatalf("Backoff(10) = %s", got)
	}
	if got := (services.Policy{BaseDelay: -1}).Backoff(3); got != 0 {
		t.Fatalf("negative base should disable delay, got %s", got)
	}
}
