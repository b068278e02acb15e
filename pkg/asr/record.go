// Package asr implements the Agent State Record pipeline: record
// construction and signing, synchronous durable submission, batching into
// Merkle trees, and evidence-pack export.
package asr

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pulsar-sentinel/core/pkg/canonicalize"
	"github.com/pulsar-sentinel/core/pkg/identity"
)

// ThreatLevel is the record's severity on the Info..Critical scale.
type ThreatLevel int

const (
	ThreatInfo     ThreatLevel = 1
	ThreatLow      ThreatLevel = 2
	ThreatElevated ThreatLevel = 3
	ThreatHigh     ThreatLevel = 4
	ThreatCritical ThreatLevel = 5
)

// PQCStatus records the PQC posture of the operation the record describes.
type PQCStatus string

const (
	PQCStatusSafe     PQCStatus = "Safe"
	PQCStatusWarning  PQCStatus = "Warning"
	PQCStatusCritical PQCStatus = "Critical"
)

// Record is one Agent State Record, in the exact field order required for
// deterministic canonicalization and signing.
type Record struct {
	ASRID       string              `json:"asr_id"`
	Timestamp   time.Time           `json:"timestamp"`
	AgentID     identity.Address    `json:"agent_id"`
	Action      string              `json:"action"`
	ThreatLevel ThreatLevel         `json:"threat_level"`
	PQCStatus   PQCStatus           `json:"pqc_status"`
	Metadata    canonicalize.Value  `json:"metadata"`
	Signature   string              `json:"signature,omitempty"`
}

// signingView is the subset of fields that are signed: signature itself
// is excluded since it cannot sign itself.
type signingView struct {
	ASRID       string      `json:"asr_id"`
	Timestamp   string      `json:"timestamp"`
	AgentID     string      `json:"agent_id"`
	Action      string      `json:"action"`
	ThreatLevel ThreatLevel `json:"threat_level"`
	PQCStatus   PQCStatus   `json:"pqc_status"`
	Metadata    interface{} `json:"metadata"`
}

func (r *Record) signingViewJCS() ([]byte, error) {
	view := signingView{
		ASRID:       r.ASRID,
		Timestamp:   r.Timestamp.UTC().Format(time.RFC3339Nano),
		AgentID:     r.AgentID.String(),
		Action:      r.Action,
		ThreatLevel: r.ThreatLevel,
		PQCStatus:   r.PQCStatus,
		Metadata:    r.Metadata.ToAny(),
	}
	return canonicalize.JCS(view)
}

// Sign computes r.Signature as the SHA-256 digest of the record's canonical
// bytes with the signature field omitted. This is a keyless tamper-evidence
// digest, not a cryptographic signature: anyone holding the record can
// recompute and check it, which is what makes Merkle proof verification and
// independent audit possible without access to a private key.
func (r *Record) Sign() error {
	msg, err := r.signingViewJCS()
	if err != nil {
		return fmt.Errorf("asr: canonicalize for signing: %w", err)
	}
	digest := sha256.Sum256(msg)
	r.Signature = hex.EncodeToString(digest[:])
	return nil
}

// Verify recomputes the record's signature digest from its current fields
// and reports whether it matches r.Signature.
func (r *Record) Verify() (bool, error) {
	msg, err := r.signingViewJCS()
	if err != nil {
		return false, fmt.Errorf("asr: canonicalize for verification: %w", err)
	}
	digest := sha256.Sum256(msg)
	want, err := hex.DecodeString(r.Signature)
	if err != nil {
		return false, fmt.Errorf("asr: decode signature: %w", err)
	}
	return bytes.Equal(digest[:], want), nil
}

// SignatureBytes decodes r.Signature, the 32-byte digest batched directly
// as a Merkle leaf.
func (r *Record) SignatureBytes() ([]byte, error) {
	return hex.DecodeString(r.Signature)
}

// Canonical returns the record's full canonical JSON form, including the
// signature, for durable storage.
func (r *Record) Canonical() ([]byte, error) {
	return canonicalize.JCS(r)
}
