package asr

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pulsar-sentinel/core/pkg/canonicalize"
	"github.com/pulsar-sentinel/core/pkg/identity"
	"github.com/pulsar-sentinel/core/pkg/store"
)

// Event is the caller-supplied input to Submit; asr_id, timestamp, and
// signature are computed by the pipeline, not the caller.
type Event struct {
	AgentID     identity.Address
	Action      string
	ThreatLevel ThreatLevel
	PQCStatus   PQCStatus
	Metadata    canonicalize.Value
}

// Pipeline owns durable submission, per-agent timestamp monotonicity, and
// batch sealing for the ASR store.
type Pipeline struct {
	mu          sync.Mutex
	store       *store.Store
	segments    *store.SegmentWriter
	index       *store.SQLiteIndex
	lastByAgent map[identity.Address]time.Time

	batchMax    int
	batchMaxAge time.Duration
	current     *Batch
	sealed      []*Batch
	onSeal      func(*Batch)

	now func() time.Time
}

// NewPipeline constructs a Pipeline backed by s, sealing a batch once it
// reaches batchMax records or batchMaxAge has elapsed since the batch
// opened.
func NewPipeline(s *store.Store, batchMax int, batchMaxAge time.Duration) *Pipeline {
	return &Pipeline{
		store:       s,
		lastByAgent: make(map[identity.Address]time.Time),
		batchMax:    batchMax,
		batchMaxAge: batchMaxAge,
		now:         time.Now,
	}
}

// SetSegmentWriter attaches a SegmentWriter so every submitted record is
// also durably written to the on-disk segment log, not just held in the
// in-memory Store. Without one, Submit is durable only within the current
// process's lifetime.
func (p *Pipeline) SetSegmentWriter(w *store.SegmentWriter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.segments = w
}

// SetIndex attaches a SQLiteIndex so every submitted record's index row
// survives a restart, letting records_for queries resume without a full
// segment replay.
func (p *Pipeline) SetIndex(idx *store.SQLiteIndex) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = idx
}

// OnSeal registers a callback invoked synchronously whenever a batch is
// sealed (Open -> Closed), e.g. to hand it to the anchor coordinator.
func (p *Pipeline) OnSeal(fn func(*Batch)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSeal = fn
}

// Submit durably appends a signed Record for ev and returns its asr_id.
// Per-agent timestamps are strictly monotonic: each record's timestamp is
// max(previous_timestamp_for_agent + 1ms, now).
func (p *Pipeline) Submit(ev Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now().UTC()
	ts := now
	if prev, ok := p.lastByAgent[ev.AgentID]; ok {
		floor := prev.Add(time.Millisecond)
		if floor.After(ts) {
			ts = floor
		}
	}
	p.lastByAgent[ev.AgentID] = ts

	asrID, err := newASRID()
	if err != nil {
		return "", fmt.Errorf("asr: generate asr_id: %w", err)
	}

	record := &Record{
		ASRID:       asrID,
		Timestamp:   ts,
		AgentID:     ev.AgentID,
		Action:      ev.Action,
		ThreatLevel: ev.ThreatLevel,
		PQCStatus:   ev.PQCStatus,
		Metadata:    ev.Metadata,
	}

	if err := record.Sign(); err != nil {
		return "", fmt.Errorf("asr: sign record: %w", err)
	}

	canonicalBytes, err := record.Canonical()
	if err != nil {
		return "", fmt.Errorf("asr: canonicalize record: %w", err)
	}

	entry, err := p.store.Append(record.ASRID, string(record.AgentID), record.Timestamp, canonicalBytes)
	if err != nil {
		return "", fmt.Errorf("asr: durable append: %w", err)
	}

	if p.segments != nil {
		if err := p.segments.Append(canonicalBytes); err != nil {
			return "", fmt.Errorf("asr: persist segment: %w", err)
		}
	}
	if p.index != nil {
		if err := p.index.Record(context.Background(), entry, canonicalize.HashBytes(canonicalBytes)); err != nil {
			return "", fmt.Errorf("asr: persist index: %w", err)
		}
	}

	if err := p.addToBatch(record); err != nil {
		return "", err
	}

	return record.ASRID, nil
}

// newASRID generates a record identifier: 16 random bytes, hex-encoded and
// prefixed asr_.
func newASRID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return "asr_" + hex.EncodeToString(buf[:]), nil
}

// RecordsFor returns the full, signature-verifiable records for agentID
// matching filter, reconstructed from the durable store's canonical JSON.
func (p *Pipeline) RecordsFor(agentID identity.Address, filter store.Filter) ([]*Record, error) {
	entries := p.store.RecordsFor(string(agentID), filter)
	out := make([]*Record, 0, len(entries))
	for _, e := range entries {
		var record Record
		if err := json.Unmarshal(e.RecordJCS, &record); err != nil {
			return nil, fmt.Errorf("asr: decode stored record %s: %w", e.ASRID, err)
		}
		out = append(out, &record)
	}
	return out, nil
}
