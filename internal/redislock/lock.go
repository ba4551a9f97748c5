package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// luaReleaseIfMatch deletes the lock only when its value still matches the
// token, so a slow holder cannot release a lock re-acquired by someone else.
const luaReleaseIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

func lockKey(transactionUUID string) string {
	return fmt.Sprintf("settlement:lock:%s", transactionUUID)
}

// Lock is a best-effort cross-process guard keyed by transaction UUID. The
// database claim is the authority; this only cuts down duplicate concurrent
// work when the webhook and redirect callbacks race.
type Lock struct {
	rdb *rd.Client
	ttl time.Duration
}

func New(rdb *rd.Client, ttl time.Duration) *Lock {
	return &Lock{rdb: rdb, ttl: ttl}
}

// Acquire takes the per-transaction lock. The returned token is required to
// release. ok=false means another process is reconciling this transaction
// right now.
func (l *Lock) Acquire(ctx context.Context, transactionUUID string) (token string, ok bool, err error) {
	token = uuid.New().String()
	ok, err = l.rdb.SetNX(ctx, lockKey(transactionUUID), token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Lock) Release(ctx context.Context, transactionUUID, token string) error {
	_, err := l.rdb.Eval(ctx, luaReleaseIfMatch, []string{lockKey(transactionUUID)}, token).Int()
	return err
}
