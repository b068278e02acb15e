// Package config loads PULSAR SENTINEL's runtime configuration from the
// environment, with an optional YAML overlay for per-deployment profiles.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the runtime-tunable parameters governing the substrate.
type Config struct {
	PQCSecurityLevel  string // "768" or "1024"
	KeyRotationDays   int
	RateLimitDefault  int
	StrikeThreshold   int
	HeirInactivity    time.Duration
	AnchorNetwork     string
	BatchMax          int
	BatchMaxAge       time.Duration
	SessionLifetime   time.Duration
	NonceLifetime     time.Duration
	LogFormat         string // "json" or "text"
	SQLitePath        string
	SegmentDir        string
	RedisAddr         string
}

// Load reads configuration from the environment, falling back to
// production-sane defaults for anything unset.
func Load() *Config {
	return &Config{
		PQCSecurityLevel: getEnv("PQC_SECURITY_LEVEL", "768"),
		KeyRotationDays:  getEnvInt("KEY_ROTATION_DAYS", 90),
		RateLimitDefault: getEnvInt("RATE_LIMIT_DEFAULT", 10),
		StrikeThreshold:  getEnvInt("STRIKE_THRESHOLD", 3),
		HeirInactivity:   time.Duration(getEnvInt("HEIR_INACTIVITY_DAYS", 90)) * 24 * time.Hour,
		AnchorNetwork:    getEnv("ANCHOR_NETWORK", "testnet"),
		BatchMax:         getEnvInt("BATCH_MAX", 50),
		BatchMaxAge:      time.Duration(getEnvInt("BATCH_MAX_AGE_SEC", 30)) * time.Second,
		SessionLifetime:  time.Duration(getEnvInt("SESSION_LIFETIME_SEC", 3600)) * time.Second,
		NonceLifetime:    time.Duration(getEnvInt("NONCE_LIFETIME_SEC", 300)) * time.Second,
		LogFormat:        getEnv("PULSAR_LOG_FORMAT", "json"),
		SQLitePath:       getEnv("PULSAR_SQLITE_PATH", "./data/pulsar.db"),
		SegmentDir:       getEnv("PULSAR_SEGMENT_DIR", "./data/asr"),
		RedisAddr:        getEnv("PULSAR_REDIS_ADDR", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
