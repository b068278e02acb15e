package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pulsar-sentinel/core/pkg/identity"
)

// RedisNonceCache implements NonceBackend against a shared Redis instance,
// so multiple sentineld instances behind a load balancer share a single
// consistent view of which nonces have been issued and consumed. Put sets
// a key with a TTL matching the challenge's remaining lifetime; Take uses
// GETDEL so the read-and-consume is atomic across concurrent instances.
type RedisNonceCache struct {
	client *redis.Client
}

// NewRedisNonceCache constructs a RedisNonceCache against addr.
func NewRedisNonceCache(addr string) *RedisNonceCache {
	return &RedisNonceCache{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *RedisNonceCache) key(agentID identity.Address, nonce string) string {
	return fmt.Sprintf("auth:nonce:%s:%s", agentID, nonce)
}

// Put implements NonceBackend.
func (r *RedisNonceCache) Put(ctx context.Context, c *Challenge) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("auth: marshal challenge: %w", err)
	}

	ttl := c.ExpiresAt.Sub(c.IssuedAt)
	if ttl <= 0 {
		ttl = NonceLifetime
	}

	if err := r.client.Set(ctx, r.key(c.AgentID, c.Nonce), data, ttl).Err(); err != nil {
		return fmt.Errorf("auth: store challenge in redis: %w", err)
	}
	return nil
}

// Take implements NonceBackend.
func (r *RedisNonceCache) Take(ctx context.Context, agentID identity.Address, nonce string) (*Challenge, error) {
	data, err := r.client.GetDel(ctx, r.key(agentID, nonce)).Bytes()
	if err == redis.Nil {
		return nil, ErrNonceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("auth: fetch challenge from redis: %w", err)
	}

	var c Challenge
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("auth: unmarshal challenge: %w", err)
	}
	return &c, nil
}
