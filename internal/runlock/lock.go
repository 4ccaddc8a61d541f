// Package runlock guarantees at most one active pipeline run. A local file
// lock serves single-host installs; Redis serves schedulers spread across
// hosts.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"letterpod/internal/services"
)

// ErrHeld reports that another run holds the lock.
var ErrHeld = fmt.Errorf("%w: another run is in progress", services.ErrConflict)

// Lock is a non-blocking mutual exclusion lock around one run.
type Lock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	Describe() string
}

// Acquire takes the lock or fails with ErrHeld.
func Acquire(ctx context.Context, lock Lock) error {
	ok, err := lock.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	return nil
}

// FileLock wraps an advisory flock.
type FileLock struct {
	path string
	fl   *flock.Flock
}

// NewFileLock creates the lock file's parent directory if needed.
func NewFileLock(path string) (*FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return &FileLock{path: path, fl: flock.New(path)}, nil
}

func (l *FileLock) TryAcquire(context.Context) (bool, error) {
	ok, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	return ok, nil
}

func (l *FileLock) Release(context.Context) error {
	return l.fl.Unlock()
}

func (l *FileLock) Describe() string { return "file:" + l.path }

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type redisAPI interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLock is a SET NX PX lease released by token.
type RedisLock struct {
	client redisAPI
	key    string
	ttl    time.Duration
	token  string
}

// RedisConfig addresses the lock server.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// NewRedisLock connects a client for the lock.
func NewRedisLock(cfg RedisConfig) *RedisLock {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisLock(client, cfg.Key, cfg.TTL)
}

func newRedisLock(client redisAPI, key string, ttl time.Duration) *RedisLock {
	if key == "" {
		key = "letterpod:run-lock"
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisLock{client: client, key: key, ttl: ttl}
}

func (l *RedisLock) TryAcquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "runlock", "acquire", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return services.Wrap(services.ErrTransient, "runlock", "release", l.key, err)
	}
	l.token = ""
	return nil
}

func (l *RedisLock) Describe() string { return "redis:" + l.key }

// Close closes the Redis connection.
func (l *RedisLock) Close() error {
	if c, ok := l.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
