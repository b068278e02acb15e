package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RegionalProfile overlays deployment-specific tuning (anchor network
// choice, stricter quotas, alternate rotation cadence) on top of the
// environment-derived Config, keyed by a short region/deployment code.
type RegionalProfile struct {
	Name             string `yaml:"name" json:"name"`
	Code             string `yaml:"code" json:"code"`
	AnchorNetwork    string `yaml:"anchor_network" json:"anchor_network"`
	RateLimitDefault int    `yaml:"rate_limit_default,omitempty" json:"rate_limit_default,omitempty"`
	KeyRotationDays  int    `yaml:"key_rotation_days,omitempty" json:"key_rotation_days,omitempty"`
}

// LoadProfile loads a regional profile YAML by code from profilesDir,
// expecting a file named profile_<code>.yaml.
func LoadProfile(profilesDir, code string) (*RegionalProfile, error) {
	code = strings.ToLower(code)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: load profile %q: %w", code, err)
	}

	var profile RegionalProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("config: parse profile %q: %w", code, err)
	}
	if profile.Code == "" {
		profile.Code = code
	}
	return &profile, nil
}

// ApplyProfile overlays non-zero profile fields onto cfg, returning a new
// Config rather than mutating the argument.
func ApplyProfile(cfg *Config, profile *RegionalProfile) *Config {
	merged := *cfg
	if profile.AnchorNetwork != "" {
		merged.AnchorNetwork = profile.AnchorNetwork
	}
	if profile.RateLimitDefault != 0 {
		merged.RateLimitDefault = profile.RateLimitDefault
	}
	if profile.KeyRotationDays != 0 {
		merged.KeyRotationDays = profile.KeyRotationDays
	}
	return &merged
}
