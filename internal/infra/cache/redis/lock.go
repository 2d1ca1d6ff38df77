package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"staybook/internal/app/policies"
)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// StayLocks is a SET NX PX lock per stay for multi-process deployments. TTL
// bounds how long a crashed holder can block a stay; Wait bounds how long a
// caller retries before policies.ErrLockTimeout.
type StayLocks struct {
	rdb    goredis.Cmdable
	prefix string

	TTL   time.Duration
	Wait  time.Duration
	Retry time.Duration
}

func NewStayLocks(rdb goredis.Cmdable, prefix string, ttl, wait time.Duration) *StayLocks {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StayLocks{rdb: rdb, prefix: prefix, TTL: ttl, Wait: wait, Retry: 25 * time.Millisecond}
}

func (l *StayLocks) key(stayID string) string {
	return l.prefix + "stays:lock:" + stayID
}

func (l *StayLocks) Lock(ctx context.Context, stayID string) (func(), error) {
	key := l.key(stayID)
	token := uuid.NewString()

	var deadline <-chan time.Time
	if l.Wait > 0 {
		timer := time.NewTimer(l.Wait)
		defer timer.Stop()
		deadline = timer.C
	}
	retry := l.Retry
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, classify("redis lock", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, policies.ErrLockTimeout
		case <-time.After(retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.rdb, []string{key}, token).Err()
		})
	}, nil
}

var _ policies.StayLocker = (*StayLocks)(nil)
