// Package identity defines the Agent identity model shared by the Hybrid
// PQC Engine, ASR pipeline, Threat Engine, and Rule Engine.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the agent's governance role.
type Role int

const (
	RoleNone Role = iota
	RoleUser
	RoleSentinel
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "None"
	case RoleUser:
		return "User"
	case RoleSentinel:
		return "Sentinel"
	case RoleAdmin:
		return "Admin"
	default:
		return "Unknown"
	}
}

// Tier is the agent's subscription tier, which determines its rate quota.
type Tier int

const (
	TierLegacyBuilder Tier = iota
	TierSentinelCore
	TierAutonomousGuild
)

func (t Tier) String() string {
	switch t {
	case TierLegacyBuilder:
		return "LegacyBuilder"
	case TierSentinelCore:
		return "SentinelCore"
	case TierAutonomousGuild:
		return "AutonomousGuild"
	default:
		return "Unknown"
	}
}

// QuotaPerMinute returns the tier's per-minute capability operation quota.
func (t Tier) QuotaPerMinute() int {
	switch t {
	case TierLegacyBuilder:
		return 5
	case TierSentinelCore:
		return 10
	case TierAutonomousGuild:
		return 100
	default:
		return 0
	}
}

// ErrInvalidAddress is returned when a string is not a well-formed agent address.
var ErrInvalidAddress = errors.New("identity: invalid agent address")

// Address is a 20-byte blockchain address, canonicalized to lowercase
// hexadecimal with a 0x prefix.
type Address string

// NewAddress canonicalizes raw (which may be mixed-case, with or without a
// 0x prefix) into an Address, validating it is exactly 20 bytes.
func NewAddress(raw string) (Address, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s) != 40 {
		return "", fmt.Errorf("%w: %q is not 20 bytes of hex", ErrInvalidAddress, raw)
	}
	lower := strings.ToLower(s)
	for _, c := range lower {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", fmt.Errorf("%w: %q contains non-hex characters", ErrInvalidAddress, raw)
		}
	}
	return Address("0x" + lower), nil
}

func (a Address) String() string { return string(a) }

// Agent is the per-address governance record. Role==RoleNone iff the agent
// has never authenticated; StrikeCount==3 iff the agent is banned.
type Agent struct {
	Address      Address
	Role         Role
	Tier         Tier
	StrikeCount  int
	LastActivity time.Time
	Heir         *Address
	Revoked      bool
}

// IsBanned reports whether the agent has accumulated the maximum strikes.
func (a *Agent) IsBanned() bool {
	return a.StrikeCount >= 3
}

// Authenticated reports whether the agent has ever completed the auth
// protocol, per the invariant role = None ⇔ agent has never authenticated.
func (a *Agent) Authenticated() bool {
	return a.Role != RoleNone
}

// Touch records activity, resetting the heir-transfer inactivity clock.
func (a *Agent) Touch(now time.Time) {
	a.LastActivity = now
}

// InactiveFor reports how long the agent has been inactive as of now.
func (a *Agent) InactiveFor(now time.Time) time.Duration {
	if a.LastActivity.IsZero() {
		return 0
	}
	return now.Sub(a.LastActivity)
}
