package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pulsar-sentinel/core/pkg/identity"
)

// NonceRateLimiter caps how often a single wallet address may request a
// fresh challenge, independent of the per-tier capability quota enforced
// by the Rule Engine (that one governs signed operations; this one
// governs the unsigned challenge-issuance endpoint itself, which has no
// signature to attribute abuse to). A continuous-refill token bucket
// fits here, unlike the fixed-window exact-boundary requirement the
// capability quota has.
type NonceRateLimiter struct {
	mu       sync.Mutex
	limiters map[identity.Address]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewNonceRateLimiter builds a limiter allowing rps nonce requests per
// second per address, with burst allowance.
func NewNonceRateLimiter(rps float64, burst int) *NonceRateLimiter {
	return &NonceRateLimiter{
		limiters: make(map[identity.Address]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether agentID may issue another nonce right now.
func (l *NonceRateLimiter) Allow(agentID identity.Address) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[agentID]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[agentID] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// Prune drops limiter entries untouched since before cutoff, bounding
// memory growth across the lifetime of a long-running sentineld process.
func (l *NonceRateLimiter) Prune(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for addr, limiter := range l.limiters {
		if limiter.TokensAt(cutoff) >= float64(l.burst) {
			delete(l.limiters, addr)
		}
	}
}
