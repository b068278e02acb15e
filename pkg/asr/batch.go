package asr

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulsar-sentinel/core/pkg/merkle"
)

// BatchStatus tracks a Batch through its anchoring lifecycle:
// Open -> Closed -> Submitted -> Confirmed | Failed.
type BatchStatus string

const (
	BatchOpen      BatchStatus = "Open"
	BatchClosed    BatchStatus = "Closed"
	BatchSubmitted BatchStatus = "Submitted"
	BatchConfirmed BatchStatus = "Confirmed"
	BatchFailed    BatchStatus = "Failed"
)

// validTransitions enumerates the only allowed status transitions.
var validTransitions = map[BatchStatus][]BatchStatus{
	BatchOpen:      {BatchClosed},
	BatchClosed:    {BatchSubmitted},
	BatchSubmitted: {BatchConfirmed, BatchFailed},
}

// Batch groups records into a Merkle tree for anchoring.
type Batch struct {
	BatchID   string
	Status    BatchStatus
	OpenedAt  time.Time
	Records   []*Record
	Tree      *merkle.Tree
	RootHex   string
	Receipt   string // anchor receipt id, set once Submitted
}

// ErrInvalidTransition is returned when a Batch status transition is not
// permitted.
type ErrInvalidTransition struct {
	From, To BatchStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("asr: invalid batch transition %s -> %s", e.From, e.To)
}

func (b *Batch) transition(to BatchStatus) error {
	for _, allowed := range validTransitions[b.Status] {
		if allowed == to {
			b.Status = to
			return nil
		}
	}
	return &ErrInvalidTransition{From: b.Status, To: to}
}

func newBatch(now time.Time) *Batch {
	return &Batch{
		BatchID:  uuid.NewString(),
		Status:   BatchOpen,
		OpenedAt: now,
	}
}

// addToBatch appends record to the current open batch, opening one if
// necessary, and seals it if it has reached batchMax records or
// batchMaxAge has elapsed since it opened. Caller holds p.mu.
func (p *Pipeline) addToBatch(record *Record) error {
	if p.current == nil {
		p.current = newBatch(p.now())
	}

	p.current.Records = append(p.current.Records, record)

	age := p.now().Sub(p.current.OpenedAt)
	if len(p.current.Records) >= p.batchMax || age >= p.batchMaxAge {
		return p.sealCurrent()
	}
	return nil
}

// FlushBatch forces the current open batch to seal regardless of size or
// age, used when an operator or scenario test needs a deterministic seal
// point.
func (p *Pipeline) FlushBatch() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || len(p.current.Records) == 0 {
		return nil
	}
	return p.sealCurrent()
}

func (p *Pipeline) sealCurrent() error {
	b := p.current
	p.current = nil

	signatures := make([][]byte, 0, len(b.Records))
	for _, r := range b.Records {
		sig, err := r.SignatureBytes()
		if err != nil {
			return fmt.Errorf("asr: decode signature for batch %s: %w", b.BatchID, err)
		}
		signatures = append(signatures, sig)
	}

	tree, err := merkle.Build(signatures)
	if err != nil {
		return fmt.Errorf("asr: build merkle tree for batch %s: %w", b.BatchID, err)
	}
	b.Tree = tree
	b.RootHex = tree.RootHex()

	if err := b.transition(BatchClosed); err != nil {
		return err
	}

	p.sealed = append(p.sealed, b)
	if p.onSeal != nil {
		p.onSeal(b)
	}
	return nil
}

// SealedBatches returns every batch that has reached at least Closed.
func (p *Pipeline) SealedBatches() []*Batch {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Batch, len(p.sealed))
	copy(out, p.sealed)
	return out
}

// MarkSubmitted transitions a sealed batch to Submitted, recording the
// anchor coordinator's tracking receipt.
func (b *Batch) MarkSubmitted(receipt string) error {
	if err := b.transition(BatchSubmitted); err != nil {
		return err
	}
	b.Receipt = receipt
	return nil
}

// MarkConfirmed transitions a Submitted batch to Confirmed.
func (b *Batch) MarkConfirmed() error {
	return b.transition(BatchConfirmed)
}

// MarkFailed transitions a Submitted batch to Failed.
func (b *Batch) MarkFailed() error {
	return b.transition(BatchFailed)
}
