package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a lease could not be obtained in time.
var ErrLockTimeout = errors.New("timed out waiting for lock")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key's expiry only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker hands out short leases on keys using SET NX PX.
type RedisLocker struct {
	client        *redis.Client
	namespace     string
	ttl           time.Duration
	retryInterval time.Duration
}

// NewRedisLocker builds a locker. Leases expire after ttl even if never released.
func NewRedisLocker(r *Redis, namespace string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:        r.Client,
		namespace:     namespace,
		ttl:           ttl,
		retryInterval: 50 * time.Millisecond,
	}
}

// Acquire blocks until the lease is held, ctx is done, or one ttl has elapsed.
// A held lease is renewed every ttl/3 until release, so it outlives calls that
// take longer than ttl.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return nil, errors.New("redis client not configured")
	}
	fullKey := l.namespace + ":lock:" + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := l.client.SetNX(waitCtx, fullKey, token, l.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return nil, ErrLockTimeout
			}
			return nil, err
		}
		if ok {
			stop := make(chan struct{})
			stopped := make(chan struct{})
			go l.keepAlive(fullKey, token, stop, stopped)

			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-stopped
					releaseCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
					defer done()
					_ = releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err()
				})
			}, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrLockTimeout
		case <-time.After(l.retryInterval):
		}
	}
}

// keepAlive renews the lease until stop is closed. It gives up once the lease
// is lost or Redis stops answering; the key then expires on its own.
func (l *RedisLocker) keepAlive(key, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	interval := l.ttl / 3
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			held, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil || held == 0 {
				return
			}
		}
	}
}
