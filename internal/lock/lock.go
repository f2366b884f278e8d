package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld means another holder owns the lock.
var ErrHeld = errors.New("lock held")

// Locker grants exclusive passes. Release is safe to call once per
// successful Acquire.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// RedisLocker is a single-key lease. The TTL bounds how long a crashed holder
// blocks others.
type RedisLocker struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLocker(opt *redis.Options, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{Client: redis.NewClient(opt), Key: key, TTL: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, l.Key, token, l.TTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.Client, []string{l.Key}, token).Err()
	}, nil
}

func (l *RedisLocker) Close() error {
	if l == nil || l.Client == nil {
		return nil
	}
	return l.Client.Close()
}

// LocalLocker serializes passes inside one process.
type LocalLocker struct {
	mu   sync.Mutex
	held bool
}

func (l *LocalLocker) Acquire(ctx context.Context) (func(context.Context) error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, ErrHeld
	}
	l.held = true
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			l.held = false
			l.mu.Unlock()
		})
		return nil
	}, nil
}
