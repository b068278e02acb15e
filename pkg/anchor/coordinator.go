package anchor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v5"
)

// ErrAllSinksExhausted is returned once both the primary sink's retry
// budget and the secondary fallback sink (when configured) have failed.
var ErrAllSinksExhausted = errors.New("anchor: primary and fallback sinks both failed")

// Coordinator submits sealed batch roots to a primary Sink, retrying
// transient failures with deterministic backoff, and falling
// back to a secondary sink if the primary is exhausted or permanently
// rejects the submission. The secondary's concrete network is left
// undefined on purpose: this package treats it as any Sink, leaving the
// operator free to wire a second real network or a no-op.
type Coordinator struct {
	primary   Sink
	secondary Sink // nil if no fallback is configured
	policy    BackoffPolicy
	log       *slog.Logger
}

// NewCoordinator constructs a Coordinator. secondary may be nil.
func NewCoordinator(primary, secondary Sink, policy BackoffPolicy, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{primary: primary, secondary: secondary, policy: policy, log: log}
}

// Submit anchors rootHash under batchID, retrying the primary sink per
// policy and falling back to the secondary sink (if configured) when the
// primary is exhausted.
func (c *Coordinator) Submit(ctx context.Context, rootHash, batchID string) (Receipt, error) {
	receipt, err := c.submitWithRetry(ctx, c.primary, rootHash, batchID)
	if err == nil {
		return receipt, nil
	}

	var sinkErr *SinkError
	permanentOnFirstTry := errors.As(err, &sinkErr) && !sinkErr.Kind.retryable()
	c.log.Warn("anchor: primary sink submission failed", "batch_id", batchID, "error", err, "permanent", permanentOnFirstTry)

	if c.secondary == nil {
		return "", fmt.Errorf("%w: %v", ErrAllSinksExhausted, err)
	}

	receipt, fallbackErr := c.submitWithRetry(ctx, c.secondary, rootHash, batchID)
	if fallbackErr != nil {
		c.log.Error("anchor: fallback sink submission failed", "batch_id", batchID, "error", fallbackErr)
		return "", fmt.Errorf("%w: primary=%v secondary=%v", ErrAllSinksExhausted, err, fallbackErr)
	}
	return receipt, nil
}

func (c *Coordinator) submitWithRetry(ctx context.Context, sink Sink, rootHash, batchID string) (Receipt, error) {
	backOff := newDeterministicBackOff(batchID, c.policy)

	operation := func() (Receipt, error) {
		receipt, err := sink.Submit(ctx, rootHash, batchID)
		if err == nil {
			return receipt, nil
		}

		var sinkErr *SinkError
		if errors.As(err, &sinkErr) && !sinkErr.Kind.retryable() {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	return backoff.Retry(ctx, operation, backoff.WithBackOff(backOff), backoff.WithMaxTries(uint(c.policy.MaxAttempts)))
}
