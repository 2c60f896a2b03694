package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultExpiry     = 10 * time.Second
	DefaultTries      = 32
	DefaultRetryDelay = 50 * time.Millisecond
	keyPrefix         = "fintrack:lock:"
)

// Redis is a keyed locker shared by every replica connected to the same
// Redis server.
type Redis struct {
	rs         *redsync.Redsync
	logger     *zap.Logger
	expiry     time.Duration
	tries      int
	retryDelay time.Duration
}

type RedisOption func(*Redis)

func WithExpiry(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.expiry = d
		}
	}
}

func WithTries(n int) RedisOption {
	return func(r *Redis) {
		if n > 0 {
			r.tries = n
		}
	}
}

func WithRetryDelay(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d >= 0 {
			r.retryDelay = d
		}
	}
}

func NewRedis(client redis.UniversalClient, logger *zap.Logger, opts ...RedisOption) *Redis {
	r := &Redis{
		rs:         redsync.New(goredis.NewPool(client)),
		logger:     logger,
		expiry:     DefaultExpiry,
		tries:      DefaultTries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire locks every key in sorted order. On failure the keys already held
// are released before returning.
func (r *Redis) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	held := make([]*redsync.Mutex, 0, len(keys))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			ok, err := held[i].UnlockContext(context.Background())
			if !ok || err != nil {
				r.logger.Warn("failed to release lock",
					zap.String("lock_key", held[i].Name()),
					zap.Bool("unlock_ok", ok),
					zap.Error(err),
				)
			}
		}
	}

	for _, key := range keys {
		m := r.rs.NewMutex(keyPrefix+key,
			redsync.WithExpiry(r.expiry),
			redsync.WithTries(r.tries),
			redsync.WithRetryDelay(r.retryDelay),
		)
		if err := m.LockContext(ctx); err != nil {
			release()
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		held = append(held, m)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}
