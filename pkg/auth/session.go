package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pulsar-sentinel/core/pkg/identity"
)

// SessionLifetime is the default validity window for a minted session
// token (SESSION_LIFETIME_SEC, 1 hour).
const SessionLifetime = time.Hour

var ErrSessionInvalid = errors.New("auth: session token invalid or expired")

// ErrNonceRateLimited is returned by IssueNonce when the requesting
// address has exceeded its challenge-issuance rate.
var ErrNonceRateLimited = errors.New("auth: nonce issuance rate limited")

// SessionClaims is the JWT payload carried by a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role identity.Role `json:"role"`
	Tier identity.Tier `json:"tier"`
}

// Authenticator wires nonce issuance, signature verification, and session
// token minting into the full wallet-signature auth protocol.
type Authenticator struct {
	nonces   NonceBackend
	agents   AgentLookup
	signKey  []byte
	lifetime time.Duration
	now      func() time.Time
	limiter  *NonceRateLimiter
}

// AgentLookup resolves an agent's current role and tier at authentication
// time, so the minted session reflects the governance state rather than a
// caller-supplied claim.
type AgentLookup interface {
	Lookup(agentID identity.Address) (*identity.Agent, error)
}

// AgentRegistrar is an optional capability an AgentLookup implementation
// may also provide, letting the Authenticator promote a first-time
// signer from RoleNone to RoleUser, per the invariant that role equals
// None exactly when the agent has never completed the auth protocol.
type AgentRegistrar interface {
	Promote(agentID identity.Address)
}

// NewAuthenticator constructs an Authenticator. signKey is the HMAC-SHA256
// secret used to sign session tokens.
func NewAuthenticator(nonces NonceBackend, agents AgentLookup, signKey []byte) *Authenticator {
	return &Authenticator{
		nonces:   nonces,
		agents:   agents,
		signKey:  signKey,
		lifetime: SessionLifetime,
		now:      time.Now,
	}
}

// SetRateLimiter attaches a NonceRateLimiter, capping how often a single
// address may call IssueNonce. Without one, issuance is unlimited.
func (a *Authenticator) SetRateLimiter(l *NonceRateLimiter) {
	a.limiter = l
}

// IssueNonce starts an authentication attempt for agentID.
func (a *Authenticator) IssueNonce(ctx context.Context, agentID identity.Address) (*Challenge, error) {
	if a.limiter != nil && !a.limiter.Allow(agentID) {
		return nil, ErrNonceRateLimited
	}
	return IssueNonce(ctx, a.nonces, agentID, a.now())
}

// VerifyAndIssueSession completes an authentication attempt: it consumes
// the nonce, checks the signature recovers to agentID, and on success
// mints a signed session token carrying the agent's current role and tier.
func (a *Authenticator) VerifyAndIssueSession(ctx context.Context, agentID identity.Address, nonce, signatureHex string) (string, error) {
	if _, err := Verify(ctx, a.nonces, agentID, nonce, signatureHex, a.now()); err != nil {
		return "", err
	}

	agent, err := a.agents.Lookup(agentID)
	if err != nil {
		return "", fmt.Errorf("auth: lookup agent: %w", err)
	}
	if agent.IsBanned() || agent.Revoked {
		return "", ErrSignatureInvalid
	}

	if agent.Role == identity.RoleNone {
		if registrar, ok := a.agents.(AgentRegistrar); ok {
			registrar.Promote(agentID)
			agent.Role = identity.RoleUser
		}
	}

	now := a.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(agentID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.lifetime)),
		},
		Role: agent.Role,
		Tier: agent.Tier,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.signKey)
}

// ParseSession validates a session token and returns its claims.
func (a *Authenticator) ParseSession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return a.signKey, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return nil, ErrSessionInvalid
	}
	return claims, nil
}
