// Package rules implements the Rule Engine & Access Control capability
// decision pipeline: role-gated and signature-required state mutation, heir
// transfer eligibility, three-strike bans, and tier lockdown, plus the
// capability gate that composes them with the per-tier quota.
package rules

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/pulsar-sentinel/core/pkg/identity"
	"github.com/pulsar-sentinel/core/pkg/threat"
)

// Decision is the outcome of a capability check.
type Decision string

const (
	Allow Decision = "allow"
	Deny  Decision = "deny"
)

// Capability identifies an operation an agent is attempting.
type Capability string

const (
	CapReadOnly      Capability = "read_only"
	CapStateMutation Capability = "state_mutation"
	CapAdmin         Capability = "admin"
)

// ReadOnlySet is the set of capabilities still permitted for a Critical-tier
// agent; everything else is locked down.
var ReadOnlySet = map[Capability]bool{
	CapReadOnly: true,
}

// requiredRole returns the minimum role an agent must hold to exercise cap.
// Roles are ordered (None < User < Sentinel < Admin); holding a higher role
// than required satisfies the gate.
func requiredRole(cap Capability) identity.Role {
	if cap == CapAdmin {
		return identity.RoleAdmin
	}
	return identity.RoleUser
}

// Engine evaluates capability decisions and owns the strike/ban and
// quota state the rules reference.
type Engine struct {
	mu      sync.Mutex
	strikes map[identity.Address]int
	banned  map[identity.Address]bool
	quota   *QuotaStore

	celEnv   *cel.Env
	programs map[string]cel.Program
	policies []string

	strikeThreshold int
	heirInactivity  time.Duration
	now             func() time.Time
}

// NewEngine constructs an Engine. strikeThreshold and heirInactivity come
// from configuration (STRIKE_THRESHOLD, HEIR_INACTIVITY_DAYS).
func NewEngine(quota *QuotaStore, strikeThreshold int, heirInactivity time.Duration) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("agent", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("operation", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("rules: create CEL environment: %w", err)
	}

	return &Engine{
		strikes:         make(map[identity.Address]int),
		banned:          make(map[identity.Address]bool),
		quota:           quota,
		celEnv:          env,
		programs:        make(map[string]cel.Program),
		strikeThreshold: strikeThreshold,
		heirInactivity:  heirInactivity,
		now:             time.Now,
	}, nil
}

// AddPolicy registers an additional CEL deny predicate, evaluated over
// (agent, operation) for every Decide call. This is the extension point
// operators use to add governance rules beyond the hard-coded baseline
// (e.g. restricting a capability to a specific tier) without a redeploy.
// A predicate that evaluates true denies the request.
func (e *Engine) AddPolicy(expr string) error {
	if _, _, err := e.celEnv.Compile(expr); err != nil {
		return fmt.Errorf("rules: invalid policy expression: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = append(e.policies, expr)
	return nil
}

// agentContext projects an Agent into the map[string]interface{} shape CEL
// policy expressions evaluate against.
func agentContext(agent *identity.Agent) map[string]interface{} {
	return map[string]interface{}{
		"address": string(agent.Address),
		"role":    agent.Role.String(),
		"tier":    agent.Tier.String(),
		"banned":  agent.IsBanned(),
		"revoked": agent.Revoked,
	}
}

// evaluate compiles (with caching) and evaluates a CEL boolean predicate
// over (agent, operation), failing closed (returning false) on any error.
func (e *Engine) evaluate(expr string, agent map[string]interface{}, operation string) bool {
	e.mu.Lock()
	prg, ok := e.programs[expr]
	if !ok {
		ast, issues := e.celEnv.Compile(expr)
		if issues != nil && issues.Err() != nil {
			e.mu.Unlock()
			return false
		}
		p, err := e.celEnv.Program(ast)
		if err != nil {
			e.mu.Unlock()
			return false
		}
		e.programs[expr] = p
		prg = p
	}
	e.mu.Unlock()

	out, _, err := prg.Eval(map[string]interface{}{"agent": agent, "operation": operation})
	if err != nil {
		return false
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false
	}
	return val
}

// Strike records a governance violation for agent, returning true if this
// strike bans the agent (reaches strikeThreshold).
func (e *Engine) Strike(agent identity.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.strikes[agent]++
	if e.strikes[agent] >= e.strikeThreshold {
		e.banned[agent] = true
	}
	return e.banned[agent]
}

// ResetStrikes clears an agent's strike count and ban status. This is the
// admin-only introspection/reset capability named in the governance
// scenarios.
func (e *Engine) ResetStrikes(agent identity.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.strikes, agent)
	delete(e.banned, agent)
}

// BanState reports an agent's current strike count and ban status.
func (e *Engine) BanState(agent identity.Address) (strikes int, banned bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strikes[agent], e.banned[agent]
}

// CapabilityRequest is the input to Decide.
type CapabilityRequest struct {
	Agent        *identity.Agent
	Capability   Capability
	Tier         threat.Tier
	HasSignature bool
}

// Decide evaluates the full capability decision pipeline: banned agents
// are denied outright, the agent must hold the role required for the
// capability, any state-mutating capability requires a verified signature,
// Critical-tier agents are locked to ReadOnlySet, and the remainder is
// gated on the per-tier quota.
func (e *Engine) Decide(req CapabilityRequest) Decision {
	_, banned := e.BanState(req.Agent.Address)
	if banned {
		return Deny
	}

	if req.Agent.Role < requiredRole(req.Capability) {
		return Deny // AccessViolation: required role not held
	}

	if req.Capability != CapReadOnly && !req.HasSignature {
		return Deny // unsigned state mutation
	}

	if req.Tier == threat.TierCritical && !ReadOnlySet[req.Capability] {
		return Deny
	}

	if e.quota != nil && !e.quota.Allow(req.Agent.Address, req.Agent.Tier) {
		return Deny
	}

	e.mu.Lock()
	policies := append([]string(nil), e.policies...)
	e.mu.Unlock()

	agentCtx := agentContext(req.Agent)
	for _, policy := range policies {
		if e.evaluate(policy, agentCtx, string(req.Capability)) {
			return Deny
		}
	}

	return Allow
}

// EligibleForHeirTransfer reports whether agent has been inactive long
// enough (HEIR_INACTIVITY_DAYS) to permit a heir-transfer claim. Heir
// transfer reassigns only the agent's key-ownership reference, not any
// broader notion of "assets".
func (e *Engine) EligibleForHeirTransfer(agent *identity.Agent) bool {
	if agent.Heir == nil {
		return false
	}
	return agent.InactiveFor(e.now()) >= e.heirInactivity
}

// HeirClaimMessage is the canonical message an heir must sign to claim an
// inactive agent's key-ownership reference.
func HeirClaimMessage(agent identity.Address, heir identity.Address, asOf time.Time) string {
	return fmt.Sprintf("PULSAR-HEIR-CLAIM:%s:%s:%s", agent, heir, asOf.UTC().Format(time.RFC3339))
}
