package redisad

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"review_sync/internal/domain"
)

// Deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a single-instance SET NX lock. Expiry bounds how long a crashed holder blocks others.
type Locker struct{ c *redis.Client }

func NewLocker(c *redis.Client) *Locker { return &Locker{c: c} }

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.c.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrLocked
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.c, []string{key}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("lock release failed; it will expire")
		}
	}, nil
}
