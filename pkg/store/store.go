// Package store implements the ASR pipeline's durable backing store: an
// append-only, hash-chained log of signed records with a queryable index.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pulsar-sentinel/core/pkg/canonicalize"
)

var (
	// ErrNotFound is returned when an asr_id has no corresponding entry.
	ErrNotFound = errors.New("store: entry not found")
	// ErrChainBroken is returned by VerifyChain when hash chaining has
	// been violated, indicating tampering or corruption.
	ErrChainBroken = errors.New("store: hash chain is broken")
)

// Entry is one append-only, hash-chained record in the durable store.
type Entry struct {
	Sequence     uint64
	ASRID        string
	AgentID      string
	Timestamp    time.Time
	RecordJCS    []byte // canonical JSON of the ASR record
	PreviousHash string
	EntryHash    string
}

// Store is an in-memory, mutex-guarded append-only log with hash chaining
// and a secondary index by asr_id and agent_id. SQLiteIndex (index_sqlite.go)
// persists the same index durably; Store itself is the authoritative,
// process-local view used by the ASR pipeline's hot path.
type Store struct {
	mu        sync.RWMutex
	entries   []*Entry
	byASRID   map[string]*Entry
	byAgent   map[string][]*Entry
	sequence  uint64
	chainHead string
}

// New creates an empty Store with a genesis chain head.
func New() *Store {
	return &Store{
		byASRID:   make(map[string]*Entry),
		byAgent:   make(map[string][]*Entry),
		chainHead: "genesis",
	}
}

// Append adds a new entry for a signed, canonicalized ASR record,
// chaining it onto the current head.
func (s *Store) Append(asrID, agentID string, timestamp time.Time, recordJCS []byte) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++
	entry := &Entry{
		Sequence:     s.sequence,
		ASRID:        asrID,
		AgentID:      agentID,
		Timestamp:    timestamp,
		RecordJCS:    recordJCS,
		PreviousHash: s.chainHead,
	}
	entry.EntryHash = s.computeEntryHash(entry)
	s.chainHead = entry.EntryHash

	s.entries = append(s.entries, entry)
	s.byASRID[asrID] = entry
	s.byAgent[agentID] = append(s.byAgent[agentID], entry)

	return entry, nil
}

func (s *Store) computeEntryHash(e *Entry) string {
	hashable := map[string]interface{}{
		"sequence":      int64(e.Sequence),
		"asr_id":        e.ASRID,
		"agent_id":      e.AgentID,
		"timestamp":     e.Timestamp.UTC().Format(time.RFC3339Nano),
		"record_hash":   canonicalize.HashBytes(e.RecordJCS),
		"previous_hash": e.PreviousHash,
	}
	h, _ := canonicalize.CanonicalHash(hashable)
	return h
}

// Get retrieves an entry by asr_id.
func (s *Store) Get(asrID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byASRID[asrID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, asrID)
	}
	return e, nil
}

// Filter describes retrieval criteria for records_for(agent, filter).
type Filter struct {
	StartTime *time.Time
	EndTime   *time.Time
	MaxResults int
}

func (f Filter) matches(e *Entry) bool {
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}

// RecordsFor returns entries for agentID matching filter, in insertion order.
func (s *Store) RecordsFor(agentID string, filter Filter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*Entry, 0)
	for _, e := range s.byAgent[agentID] {
		if filter.matches(e) {
			results = append(results, e)
			if filter.MaxResults > 0 && len(results) >= filter.MaxResults {
				break
			}
		}
	}
	return results
}

// All returns every entry in sequence order.
func (s *Store) All() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ChainHead returns the current hash chain head.
func (s *Store) ChainHead() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chainHead
}

// VerifyChain recomputes every entry hash and confirms the chain is
// unbroken from genesis to the current head. This is the supplemented
// "hash-chain verification beyond Merkle batches" capability.
func (s *Store) VerifyChain() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expectedPrev := "genesis"
	for i, e := range s.entries {
		if e.PreviousHash != expectedPrev {
			return fmt.Errorf("%w: entry %d has previous_hash %s, expected %s", ErrChainBroken, i, e.PreviousHash, expectedPrev)
		}
		computed := s.computeEntryHash(e)
		if computed != e.EntryHash {
			return fmt.Errorf("%w: entry %d hash mismatch", ErrChainBroken, i)
		}
		expectedPrev = e.EntryHash
	}
	return nil
}

// Size returns the number of entries appended so far.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
