package asr

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pulsar-sentinel/core/pkg/identity"
	"github.com/pulsar-sentinel/core/pkg/store"
)

// ErrEmptyAgentID is returned when ExportRequest.AgentID is empty.
var ErrEmptyAgentID = errors.New("asr: agent_id must not be empty")

// ErrInvalidTimeRange is returned when start_time is after end_time.
var ErrInvalidTimeRange = errors.New("asr: start_time must be before end_time")

// ExportRequest describes the scope of an evidence-pack export.
type ExportRequest struct {
	AgentID   identity.Address
	StartTime time.Time
	EndTime   time.Time
}

// Exporter builds evidence packs from a backing Store.
type Exporter struct {
	store *store.Store
}

// NewExporter constructs an Exporter over s.
func NewExporter(s *store.Store) *Exporter {
	return &Exporter{store: s}
}

// ExportPack builds a zip evidence pack with records.json, manifest.json,
// and a README, returning the zip bytes and its SHA-256 checksum.
func (e *Exporter) ExportPack(req ExportRequest) ([]byte, string, error) {
	if req.AgentID == "" {
		return nil, "", ErrEmptyAgentID
	}
	if !req.StartTime.IsZero() && !req.EndTime.IsZero() && req.StartTime.After(req.EndTime) {
		return nil, "", ErrInvalidTimeRange
	}

	filter := store.Filter{}
	if !req.StartTime.IsZero() {
		filter.StartTime = &req.StartTime
	}
	if !req.EndTime.IsZero() {
		filter.EndTime = &req.EndTime
	}

	entries := e.store.RecordsFor(string(req.AgentID), filter)

	recordsJSON, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("asr: marshal records: %w", err)
	}

	manifest := map[string]interface{}{
		"agent_id":     string(req.AgentID),
		"generated_at": time.Now().UTC(),
		"record_count": len(entries),
		"chain_head":   e.store.ChainHead(),
		"period": map[string]interface{}{
			"start": req.StartTime,
			"end":   req.EndTime,
		},
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("asr: marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	f, err := w.Create("records.json")
	if err != nil {
		return nil, "", err
	}
	if _, err := f.Write(recordsJSON); err != nil {
		return nil, "", err
	}

	f, err = w.Create("manifest.json")
	if err != nil {
		return nil, "", err
	}
	if _, err := f.Write(manifestJSON); err != nil {
		return nil, "", err
	}

	f, err = w.Create("README.txt")
	if err != nil {
		return nil, "", err
	}
	if _, err := fmt.Fprintf(f, "Evidence pack for agent %s\nGenerated at %s\n", req.AgentID, time.Now().UTC()); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	zipBytes := buf.Bytes()
	checksum := sha256.Sum256(zipBytes)
	return zipBytes, hex.EncodeToString(checksum[:]), nil
}
