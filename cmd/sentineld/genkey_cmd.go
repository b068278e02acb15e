package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"

	"github.com/pulsar-sentinel/core/pkg/pqc"
)

// runGenKeyCmd implements `sentineld genkey`: generates a hybrid PQC
// keypair for the Hybrid PQC Engine, printing it as hex to stdout.
//
// Exit codes:
//
//	0 = success
//	2 = invalid arguments
func runGenKeyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("genkey", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var level int
	cmd.IntVar(&level, "level", 768, "ML-KEM security level: 768 or 1024")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	var kemLevel pqc.Level
	switch level {
	case 768:
		kemLevel = pqc.MlKem768
	case 1024:
		kemLevel = pqc.MlKem1024
	default:
		fmt.Fprintf(stderr, "Error: --level must be 768 or 1024, got %d\n", level)
		return 2
	}

	kp, err := pqc.GenerateKeypair(kemLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Error: generate keypair: %v\n", err)
		return 2
	}

	fmt.Fprintf(stdout, "pqc_level:  %s\n", kp.Level)
	fmt.Fprintf(stdout, "key_id:     %s\n", kp.KeyID)
	fmt.Fprintf(stdout, "public_key: %s\n", hex.EncodeToString(kp.Public))
	fmt.Fprintf(stdout, "seed:       %s\n", hex.EncodeToString(kp.Seed))

	return 0
}
