package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	keyPrefix     = "lock:"
	retryInterval = 25 * time.Millisecond
)

// releaseScript deletes the key only while it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds keys in Redis so that several replicas share one lock space.
// A key expires after ttl if its holder dies without releasing it.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
}

// NewRedis returns a RedisLocker on client
func NewRedis(client redis.UniversalClient, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	waitCtx, cancel := waitContext(ctx, l.wait)
	defer cancel()

	name := keyPrefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, name, token, l.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, timeoutErr(ctx)
			}
			return nil, err
		}
		if ok {
			return l.releaser(name, token), nil
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			return nil, timeoutErr(ctx)
		}
	}
}

func (l *RedisLocker) releaser(name, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must run even when the request context is already done
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{name}, token).Err(); err != nil {
				log.Warn().Err(err).Str("key", name).Msg("Failed to release lock")
			}
		})
	}
}
