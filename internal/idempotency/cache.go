package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ordercore/saga-platform/internal/platform/logger"
)

const cacheKeyPrefix = "idempotency:replay:"

// cachedReplayTTL bounds how long a finalized response stays in the Redis
// fast path. The durable record in MySQL has no TTL (§4.3 policy); this is
// purely an acceleration layer, never the source of truth.
const cachedReplayTTL = 24 * time.Hour

// setReplayScript atomically caches a finalized response with its TTL: a
// crash between SET and EXPIRE must never leave a replay entry cached
// forever.
var setReplayScript = redis.NewScript(`
redis.call('SET', KEYS[1], ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1
`)

type cachedReplay struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// CachedStore wraps a durable Store with a Redis-backed read-through cache
// for finalized replay responses, reducing MySQL load under client retry
// storms on the same idempotency key. Acquire falls back to the durable
// store on any cache miss or Redis error — Redis is an accelerator, never a
// dependency the saga can fail on.
type CachedStore struct {
	inner Store
	rdb   *redis.Client
}

// NewCachedStore wraps store with a Redis fast path.
func NewCachedStore(store Store, rdb *redis.Client) *CachedStore {
	return &CachedStore{inner: store, rdb: rdb}
}

// Acquire checks the Redis cache first; a hit returns an immediate replay
// without touching MySQL. A miss (or Redis error) falls through to the
// durable store, which remains authoritative.
func (c *CachedStore) Acquire(ctx context.Context, key, resourcePath, bodyHash string) (AcquireResult, error) {
	if cached, ok := c.getCached(ctx, key); ok {
		return AcquireResult{Outcome: OutcomeReplay, ResponseStatus: cached.Status, ResponseBody: cached.Body}, nil
	}

	return c.inner.Acquire(ctx, key, resourcePath, bodyHash)
}

// Finalize delegates to the durable store, then best-effort populates the
// Redis cache for subsequent fast-path replays.
func (c *CachedStore) Finalize(ctx context.Context, key string, status int, body string) error {
	if err := c.inner.Finalize(ctx, key, status, body); err != nil {
		return err
	}

	if status >= 200 && status < 300 {
		c.setCached(ctx, key, cachedReplay{Status: status, Body: body})
	}
	return nil
}

func (c *CachedStore) getCached(ctx context.Context, key string) (cachedReplay, bool) {
	if c.rdb == nil {
		return cachedReplay{}, false
	}

	raw, err := c.rdb.Get(ctx, cacheKeyPrefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.FromContext(ctx).Debug().Err(err).Msg("Idempotency Redis cache недоступен, используем MySQL")
		}
		return cachedReplay{}, false
	}

	var cached cachedReplay
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return cachedReplay{}, false
	}
	return cached, true
}

func (c *CachedStore) setCached(ctx context.Context, key string, cached cachedReplay) {
	if c.rdb == nil {
		return
	}

	encoded, err := json.Marshal(cached)
	if err != nil {
		return
	}

	if _, err := setReplayScript.Run(ctx, c.rdb, []string{cacheKeyPrefix + key}, string(encoded), int(cachedReplayTTL.Seconds())).Result(); err != nil {
		logger.FromContext(ctx).Debug().Err(err).Msg("Не удалось закэшировать idempotency replay")
	}
}
