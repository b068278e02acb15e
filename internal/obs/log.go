// Package obs wires structured logging for PULSAR SENTINEL. It never logs
// key material, signatures, passwords, or session tokens; callers pass
// only identifiers (agent_id, asr_id, batch_id, key_id) as log fields.
package obs

import (
	"log/slog"
	"os"
)

// NewLogger builds a slog.Logger whose handler is chosen by format
// ("json" or "text"), writing to stderr so stdout stays free for CLI
// output.
func NewLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// WithAgent returns a logger scoped to a single agent's operations.
func WithAgent(logger *slog.Logger, agentID string) *slog.Logger {
	return logger.With(slog.String("agent_id", agentID))
}

// WithBatch returns a logger scoped to a single ASR batch.
func WithBatch(logger *slog.Logger, batchID string) *slog.Logger {
	return logger.With(slog.String("batch_id", batchID))
}
