package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"formulary/internal/apperr"
	"formulary/internal/log"
)

const retryInterval = 50 * time.Millisecond

// Redis is a Locker shared by every process connected to the same Redis.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewRedis builds a Locker whose locks expire after ttl if never released.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{client: redislock.New(client), ttl: ttl}
}

// Lock obtains each key in turn, retrying until the ttl elapses. Keys
// already obtained are released when a later key cannot be.
func (r *Redis) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryInterval), int(r.ttl/retryInterval)),
	}

	held := make([]*redislock.Lock, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				log.Warn(ctx, "failed to release stock lock", "key", held[i].Key(), "error", err)
			}
		}
	}

	for _, key := range keys {
		l, err := r.client.Obtain(ctx, "lock:"+key, r.ttl, opts)
		if err != nil {
			release()
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, fmt.Errorf("lock %s: %w", key, apperr.ErrConflict)
			}
			return nil, apperr.Storage("obtain lock", err)
		}
		held = append(held, l)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}
