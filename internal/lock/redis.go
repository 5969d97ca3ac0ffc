package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/deepreview/socratic/internal/logger"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions tunes a RedisLocker.
type RedisOptions struct {
	// Prefix is prepended to every key. Default "deepreview:lock:".
	Prefix string

	// TTL bounds how long a crashed holder can block others. It must exceed
	// the longest expected critical section.
	TTL time.Duration

	// RetryInterval is the poll period while waiting. Default 100ms.
	RetryInterval time.Duration
}

// RedisLocker implements Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	client redis.UniversalClient
	opts   RedisOptions
	log    *logger.Logger
}

func NewRedis(client redis.UniversalClient, opts RedisOptions, log *logger.Logger) *RedisLocker {
	if opts.Prefix == "" {
		opts.Prefix = "deepreview:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 100 * time.Millisecond
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisLocker{client: client, opts: opts, log: log.With("component", "lock")}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	full := l.opts.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.opts.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, full, token, l.opts.TTL).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return func() { l.release(full, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) release(key, token string) {
	// The caller's context may already be done; release regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		l.log.Warn("release lock", "key", key, "error", err)
	}
}
