// Package auth implements the Wallet-signature Auth Protocol: nonce
// issuance, secp256k1 signature recovery against the claimed wallet
// address, and JWT session token minting.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pulsar-sentinel/core/pkg/identity"
)

// NonceLifetime is the default validity window for an issued nonce
// (NONCE_LIFETIME_SEC, 5 minutes).
const NonceLifetime = 5 * time.Minute

var (
	ErrNonceNotFound = errors.New("auth: nonce not found or expired")
	ErrNonceUsed     = errors.New("auth: nonce already used")
)

// ChallengeMessageTemplate is the fixed message format an agent signs to
// prove control of its wallet key. %s placeholders are agent address,
// nonce hex, and expiry in RFC3339.
const ChallengeMessageTemplate = "PULSAR-SENTINEL-AUTH:%s:%s:%s"

// Challenge is a single-use authentication nonce issued for an agent.
type Challenge struct {
	AgentID   identity.Address
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	used      bool
}

// Message returns the exact string the agent's wallet must sign.
func (c *Challenge) Message() string {
	return fmt.Sprintf(ChallengeMessageTemplate, c.AgentID, c.Nonce, c.ExpiresAt.UTC().Format(time.RFC3339))
}

// NonceBackend stores and retrieves single-use challenges. An in-memory
// implementation suits a single sentineld instance; a Redis-backed one
// shares state across a fleet.
type NonceBackend interface {
	Put(ctx context.Context, c *Challenge) error
	Take(ctx context.Context, agentID identity.Address, nonce string) (*Challenge, error)
}

// InMemoryNonceStore is a process-local NonceBackend guarded by a mutex,
// with lazy expiry on access.
type InMemoryNonceStore struct {
	mu      sync.Mutex
	byKey   map[string]*Challenge
	now     func() time.Time
}

// NewInMemoryNonceStore constructs an InMemoryNonceStore.
func NewInMemoryNonceStore() *InMemoryNonceStore {
	return &InMemoryNonceStore{
		byKey: make(map[string]*Challenge),
		now:   time.Now,
	}
}

func nonceKey(agentID identity.Address, nonce string) string {
	return string(agentID) + ":" + nonce
}

// Put implements NonceBackend.
func (s *InMemoryNonceStore) Put(_ context.Context, c *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[nonceKey(c.AgentID, c.Nonce)] = c
	return nil
}

// Take implements NonceBackend, consuming the challenge so it cannot be
// replayed, and failing if it has expired or was already consumed.
func (s *InMemoryNonceStore) Take(_ context.Context, agentID identity.Address, nonce string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nonceKey(agentID, nonce)
	c, ok := s.byKey[key]
	if !ok {
		return nil, ErrNonceNotFound
	}
	if c.used {
		return nil, ErrNonceUsed
	}
	if s.now().After(c.ExpiresAt) {
		delete(s.byKey, key)
		return nil, ErrNonceNotFound
	}

	c.used = true
	delete(s.byKey, key)
	return c, nil
}

// IssueNonce generates a fresh 32-byte random challenge for agentID, valid
// for NonceLifetime, and records it in backend.
func IssueNonce(ctx context.Context, backend NonceBackend, agentID identity.Address, now time.Time) (*Challenge, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("auth: generate nonce: %w", err)
	}

	c := &Challenge{
		AgentID:   agentID,
		Nonce:     hex.EncodeToString(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(NonceLifetime),
	}
	if err := backend.Put(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
