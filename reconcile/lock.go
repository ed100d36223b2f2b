package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

var ErrLockNotObtained = errors.New("lock not obtained")

// Locker serializes work on one key across instances. It is best-effort: callers proceed without it.
type Locker interface {
	Obtain(ctx context.Context, key string) (release func(), err error)
}

type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewRedisLocker returns a Locker over redislock; a nil client yields a no-op locker.
func NewRedisLocker(client *redislock.Client, ttl time.Duration) Locker {
	if client == nil {
		return noopLocker{}
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLocker{client: client, ttl: ttl}
}

func (l *redisLocker) Obtain(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 10),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}

type noopLocker struct{}

func (noopLocker) Obtain(context.Context, string) (func(), error) {
	return func() {}, nil
}
