package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/pulsar-sentinel/core/internal/config"
	"github.com/pulsar-sentinel/core/pkg/store"
)

// runVerifyCmd implements `sentineld verify`: replays the segment log
// under the configured segment directory into a fresh Store and confirms
// the hash chain is unbroken from genesis to head. A running sentineld
// holds its Store in memory, so this command's job is specifically to
// validate what actually made it to durable storage on disk, independent
// of any in-process state.
//
// Exit codes:
//
//	0 = chain verified intact
//	1 = chain is broken or missing entries
//	2 = usage or I/O error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var segmentDir string
	cmd.StringVar(&segmentDir, "segment-dir", "", "segment log directory (defaults to PULSAR_SEGMENT_DIR)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if segmentDir == "" {
		segmentDir = config.Load().SegmentDir
	}

	s, err := store.LoadFromSegments(segmentDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: replay segments from %s: %v\n", segmentDir, err)
		return 2
	}

	if s.Size() == 0 {
		fmt.Fprintf(stdout, "no entries found under %s\n", segmentDir)
		return 0
	}

	if err := s.VerifyChain(); err != nil {
		fmt.Fprintf(stderr, "chain verification FAILED: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "chain verified: %d entries, head %s\n", s.Size(), s.ChainHead())
	return 0
}
