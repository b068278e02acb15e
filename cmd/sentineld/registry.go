package main

import (
	"fmt"
	"sync"

	"github.com/pulsar-sentinel/core/pkg/identity"
)

// AgentDirectory is a process-local registry of known agents, the minimal
// AgentLookup implementation sentineld needs to resolve role/tier at
// authentication time. A production deployment would back this with the
// same sqlite index used for the ASR store; in-memory is sufficient for
// this entrypoint and for tests.
type AgentDirectory struct {
	mu     sync.RWMutex
	agents map[identity.Address]*identity.Agent
}

// NewAgentDirectory constructs an empty AgentDirectory.
func NewAgentDirectory() *AgentDirectory {
	return &AgentDirectory{agents: make(map[identity.Address]*identity.Agent)}
}

// Register adds or replaces an agent record.
func (d *AgentDirectory) Register(agent *identity.Agent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agents[agent.Address] = agent
}

// Lookup implements auth.AgentLookup.
func (d *AgentDirectory) Lookup(agentID identity.Address) (*identity.Agent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	agent, ok := d.agents[agentID]
	if !ok {
		// First contact: a never-before-seen wallet address authenticates
		// as RoleNone/TierLegacyBuilder until an admin upgrades its tier,
		// per the invariant role = None iff the agent has never authenticated.
		return &identity.Agent{Address: agentID, Role: identity.RoleNone, Tier: identity.TierLegacyBuilder}, nil
	}
	return agent, nil
}

// Promote implements auth.AgentRegistrar, registering a first-time signer
// as RoleUser at its default tier.
func (d *AgentDirectory) Promote(agentID identity.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.agents[agentID]; ok {
		return
	}
	d.agents[agentID] = &identity.Agent{Address: agentID, Role: identity.RoleUser, Tier: identity.TierLegacyBuilder}
}

// Get returns the agent record for agentID if known.
func (d *AgentDirectory) Get(agentID identity.Address) (*identity.Agent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	agent, ok := d.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("sentineld: unknown agent %s", agentID)
	}
	return agent, nil
}
