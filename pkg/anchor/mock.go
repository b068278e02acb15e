package anchor

import (
	"context"
	"fmt"
	"sync"
)

// NoopSink is a Sink that succeeds immediately on every submission, with
// full confirmation. Useful where anchoring is configured off or in tests
// that don't exercise retry/fallback behavior.
type NoopSink struct{}

func (NoopSink) Submit(_ context.Context, _, batchID string) (Receipt, error) {
	return Receipt("noop:" + batchID), nil
}

func (NoopSink) Confirmations(context.Context, Receipt) (int, error) {
	return 1, nil
}

// ScriptedSink is a test Sink whose Submit behavior is driven by a
// caller-supplied sequence of outcomes, one per call, so coordinator retry
// and fallback logic can be exercised deterministically.
type ScriptedSink struct {
	mu       sync.Mutex
	outcomes []ScriptedOutcome
	calls    int
	confirms int
}

// ScriptedOutcome is one programmed response to a Submit call.
type ScriptedOutcome struct {
	Receipt Receipt
	Err     error
}

// NewScriptedSink constructs a ScriptedSink that returns outcomes in order,
// one per Submit call; calls beyond len(outcomes) repeat the last entry.
func NewScriptedSink(outcomes ...ScriptedOutcome) *ScriptedSink {
	return &ScriptedSink{outcomes: outcomes, confirms: 1}
}

// WithConfirmations sets the confirmation count Confirmations reports.
func (s *ScriptedSink) WithConfirmations(n int) *ScriptedSink {
	s.confirms = n
	return s
}

func (s *ScriptedSink) Submit(_ context.Context, rootHash, batchID string) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	if idx >= len(s.outcomes) {
		idx = len(s.outcomes) - 1
	}
	s.calls++
	if idx < 0 {
		return "", fmt.Errorf("anchor: scripted sink has no outcomes configured")
	}

	outcome := s.outcomes[idx]
	if outcome.Err != nil {
		return "", outcome.Err
	}
	if outcome.Receipt != "" {
		return outcome.Receipt, nil
	}
	return Receipt(fmt.Sprintf("scripted:%s:%s", batchID, rootHash)), nil
}

func (s *ScriptedSink) Confirmations(context.Context, Receipt) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirms, nil
}

// CallCount reports how many times Submit has been invoked.
func (s *ScriptedSink) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
