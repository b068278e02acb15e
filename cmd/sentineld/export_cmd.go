package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pulsar-sentinel/core/internal/config"
	"github.com/pulsar-sentinel/core/pkg/asr"
	"github.com/pulsar-sentinel/core/pkg/identity"
	"github.com/pulsar-sentinel/core/pkg/store"
)

// runExportCmd implements `sentineld export`: replays the on-disk segment
// log and writes an evidence pack (records.json, manifest.json, README.txt
// zipped together) for one agent, scoped to an optional time window.
//
// Exit codes:
//
//	0 = success
//	1 = no matching records
//	2 = usage or I/O error
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var agentID, segmentDir, out, start, end string
	cmd.StringVar(&agentID, "agent-id", "", "agent wallet address to export (required)")
	cmd.StringVar(&segmentDir, "segment-dir", "", "segment log directory (defaults to PULSAR_SEGMENT_DIR)")
	cmd.StringVar(&out, "out", "evidence_pack.zip", "output zip path")
	cmd.StringVar(&start, "start", "", "RFC3339 start time (optional)")
	cmd.StringVar(&end, "end", "", "RFC3339 end time (optional)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if agentID == "" {
		fmt.Fprintln(stderr, "Error: --agent-id is required")
		return 2
	}

	req := asr.ExportRequest{AgentID: identity.Address(agentID)}
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			fmt.Fprintf(stderr, "Error: invalid --start: %v\n", err)
			return 2
		}
		req.StartTime = t
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			fmt.Fprintf(stderr, "Error: invalid --end: %v\n", err)
			return 2
		}
		req.EndTime = t
	}

	if segmentDir == "" {
		segmentDir = config.Load().SegmentDir
	}

	s, err := store.LoadFromSegments(segmentDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: replay segments from %s: %v\n", segmentDir, err)
		return 2
	}

	exporter := asr.NewExporter(s)
	zipBytes, checksum, err := exporter.ExportPack(req)
	if err != nil {
		fmt.Fprintf(stderr, "Error: export pack: %v\n", err)
		return 2
	}

	filter := store.Filter{}
	if !req.StartTime.IsZero() {
		filter.StartTime = &req.StartTime
	}
	if !req.EndTime.IsZero() {
		filter.EndTime = &req.EndTime
	}
	if len(s.RecordsFor(agentID, filter)) == 0 {
		fmt.Fprintf(stderr, "no matching records for %s\n", agentID)
		return 1
	}

	if err := os.WriteFile(out, zipBytes, 0640); err != nil {
		fmt.Fprintf(stderr, "Error: write %s: %v\n", out, err)
		return 2
	}

	fmt.Fprintf(stdout, "wrote %s (sha256 %s)\n", out, checksum)
	return 0
}
