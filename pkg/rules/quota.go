package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsar-sentinel/core/pkg/identity"
)

// QuotaBackend is the interface a fixed-window rate limiter implements.
// Unlike a continuous-refill token bucket, this enforces an exact
// boundary property: within any single calendar minute, exactly the
// tier's quota of operations are allowed and the next one is denied, with
// the counter resetting at the minute boundary.
type QuotaBackend interface {
	// Allow increments the window counter for key and reports whether the
	// call is within limit for the current window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// QuotaStore wraps a QuotaBackend with the per-tier limit lookup.
type QuotaStore struct {
	backend QuotaBackend
	window  time.Duration
}

// NewQuotaStore constructs a QuotaStore over backend, windowed at window
// (one minute by default).
func NewQuotaStore(backend QuotaBackend, window time.Duration) *QuotaStore {
	return &QuotaStore{backend: backend, window: window}
}

// Allow reports whether agent's next operation is within its tier's quota
// for the current fixed window.
func (q *QuotaStore) Allow(agent identity.Address, tier identity.Tier) bool {
	ok, err := q.backend.Allow(context.Background(), string(agent), tier.QuotaPerMinute(), q.window)
	if err != nil {
		return false // fail closed
	}
	return ok
}

// InMemoryQuota is a process-local fixed-window counter store, suitable
// for a single sentineld instance or for tests.
type InMemoryQuota struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	now     func() time.Time
}

type fixedWindow struct {
	windowStart time.Time
	count       int
}

// NewInMemoryQuota constructs an InMemoryQuota.
func NewInMemoryQuota() *InMemoryQuota {
	return &InMemoryQuota{
		windows: make(map[string]*fixedWindow),
		now:     time.Now,
	}
}

// Allow implements QuotaBackend.
func (q *InMemoryQuota) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	w, ok := q.windows[key]
	if !ok || now.Sub(w.windowStart) >= window {
		w = &fixedWindow{windowStart: windowFloor(now, window)}
		q.windows[key] = w
	}

	if w.count >= limit {
		return false, nil
	}
	w.count++
	return true, nil
}

func windowFloor(t time.Time, window time.Duration) time.Time {
	return t.Truncate(window)
}

// redisFixedWindowScript implements INCR+EXPIRE fixed-window counting
// atomically: the counter for key is incremented; if this is the first
// increment of the window, an expiry is set so the counter resets at the
// window boundary.
// KEYS[1] = quota key
// ARGV[1] = limit
// ARGV[2] = window seconds
var redisFixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local count = redis.call("INCR", key)
if count == 1 then
    redis.call("EXPIRE", key, window)
end

if count > limit then
    return 0
end
return 1
`)

// RedisQuota implements QuotaBackend against a shared Redis instance, for
// multi-instance sentineld deployments.
type RedisQuota struct {
	client *redis.Client
}

// NewRedisQuota constructs a RedisQuota.
func NewRedisQuota(addr string) *RedisQuota {
	return &RedisQuota{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Allow implements QuotaBackend.
func (q *RedisQuota) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	res, err := redisFixedWindowScript.Run(ctx, q.client, []string{"quota:" + key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return false, fmt.Errorf("rules: redis quota script: %w", err)
	}
	allowed, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("rules: unexpected redis quota script response %T", res)
	}
	return allowed == 1, nil
}
