package runlock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"letterpod/internal/services"
)

func TestFileLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.lock")
	first, err := NewFileLock(path)
	if err != nil {
		t.Fatalf("NewFileLock: %v", err)
	}
	second, err := NewFileLock(path)
	if err != nil {
		t.Fatalf("NewFileLock: %v", err)
	}
	ctx := context.Background()

	if err := Acquire(ctx, first); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	err = Acquire(ctx, second)
	if !errors.Is(err, ErrHeld) || !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := Acquire(ctx, second); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = second.Release(ctx)
}

type fakeRedis struct {
	values map[string]string
	ttl    time.Duration
	err    error
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttl = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLockReleasesOnlyOwnToken(t *testing.T) {
	store := &fakeRedis{values: map[string]string{}}
	a := newRedisLock(store, "", 0)
	b := newRedisLock(store, "", 0)
	ctx := context.Background()

	if err := Acquire(ctx, a); err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	if store.ttl != 2*time.Hour {
		t.Fatalf("expected default ttl, got %s", store.ttl)
	}
	if err := Acquire(ctx, b); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected b to be refused, got %v", err)
	}
	if err := b.Release(ctx); err != nil {
		t.Fatalf("release without holding: %v", err)
	}
	if _, held := store.values["letterpod:run-lock"]; !held {
		t.Fatal("b must not release a's lease")
	}
	if err := a.Release(ctx); err != nil {
		t.Fatalf("release a: %v", err)
	}
	if err := Acquire(ctx, b); err != nil {
		t.Fatalf("acquire b after release: %v", err)
	}
	if got := b.Describe(); got != "redis:letterpod:run-lock" {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestRedisLockConnectionErrorIsTransient(t *testing.T) {
	lock := newRedisLock(&fakeRedis{values: map[string]string{}, err: errors.New("dial tcp: refused")}, "k", time.Minute)
	_, err := lock.TryAcquire(context.Background())
	if services.Classify(err) != services.KindTransient {
		t.Fatalf("expected transient error, got %v", err)
	}
}
