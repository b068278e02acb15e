// Command sentineld runs the PULSAR SENTINEL security substrate: the
// Hybrid PQC Engine, ASR pipeline, Threat Engine, Rule Engine, Auth
// Protocol, and Anchor Sink, wired together behind an operations CLI.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the CLI entrypoint, separated from main for testability.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		runServer(stdout, stderr)
		return 0
	}

	switch args[1] {
	case "server", "serve":
		runServer(stdout, stderr)
		return 0
	case "genkey":
		return runGenKeyCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "sentineld: PULSAR SENTINEL security substrate")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  sentineld <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  server   Run sentineld (default)")
	fmt.Fprintln(w, "  genkey   Generate a hybrid PQC keypair")
	fmt.Fprintln(w, "  verify   Verify the ASR hash chain")
	fmt.Fprintln(w, "  export   Export an evidence pack for an agent's ASR history")
	fmt.Fprintln(w, "  help     Show this help")
}
