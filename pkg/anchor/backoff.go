package anchor

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffPolicy is the exponential-backoff shape for anchor submission
// retries: delay = min(BaseMs * 2^attempt, MaxMs) + deterministic jitter.
type BackoffPolicy struct {
	BaseMs      int64
	MaxMs       int64
	MaxJitterMs int64
	MaxAttempts int
}

// DefaultPolicy is a conservative retry shape for testnet/mainnet
// submission: 500ms base, capped at 30s, up to 6 attempts.
var DefaultPolicy = BackoffPolicy{
	BaseMs:      500,
	MaxMs:       30_000,
	MaxJitterMs: 250,
	MaxAttempts: 6,
}

// computeDelay returns the delay before attemptIndex (0-based), combining
// exponential backoff with jitter deterministically seeded from
// (batchID, attemptIndex) so repeated test runs produce identical timing.
func computeDelay(batchID string, attemptIndex int, policy BackoffPolicy) time.Duration {
	factor := int64(1)
	if attemptIndex > 0 {
		if attemptIndex > 30 {
			factor = 1 << 30
		} else {
			factor = 1 << attemptIndex
		}
	}

	baseDelay := policy.BaseMs * factor
	if baseDelay > policy.MaxMs {
		baseDelay = policy.MaxMs
	}

	jitter := deterministicJitter(batchID, attemptIndex, policy.MaxJitterMs)
	return time.Duration(baseDelay+jitter) * time.Millisecond
}

func deterministicJitter(batchID string, attemptIndex int, maxJitterMs int64) int64 {
	if maxJitterMs == 0 {
		return 0
	}
	seed := fmt.Sprintf("anchor:%s:%d", batchID, attemptIndex)
	hash := sha256.Sum256([]byte(seed))
	basis := binary.BigEndian.Uint64(hash[:8])
	return int64(basis % uint64(maxJitterMs))
}

// deterministicBackOff implements the cenkalti/backoff.BackOff interface
// over computeDelay, so the coordinator's retry loop uses the same
// deterministic jitter shape as the rest of this schedule rather than
// library-default randomized jitter.
type deterministicBackOff struct {
	batchID string
	policy  BackoffPolicy
	attempt int
}

func newDeterministicBackOff(batchID string, policy BackoffPolicy) *deterministicBackOff {
	return &deterministicBackOff{batchID: batchID, policy: policy}
}

func (b *deterministicBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.attempt > b.policy.MaxAttempts {
		return backoff.Stop
	}
	return computeDelay(b.batchID, b.attempt, b.policy)
}

func (b *deterministicBackOff) Reset() {
	b.attempt = 0
}
