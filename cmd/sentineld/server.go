package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulsar-sentinel/core/internal/config"
	"github.com/pulsar-sentinel/core/internal/obs"
	"github.com/pulsar-sentinel/core/pkg/anchor"
	"github.com/pulsar-sentinel/core/pkg/asr"
	"github.com/pulsar-sentinel/core/pkg/auth"
	"github.com/pulsar-sentinel/core/pkg/identity"
	"github.com/pulsar-sentinel/core/pkg/rules"
	"github.com/pulsar-sentinel/core/pkg/store"
	"github.com/pulsar-sentinel/core/pkg/threat"
)

// Services bundles the wired subsystems a running sentineld instance owns.
type Services struct {
	Config    *config.Config
	Log       *slog.Logger
	Store     *store.Store
	Pipeline  *asr.Pipeline
	Threat    *threat.Engine
	Rules     *rules.Engine
	Auth      *auth.Authenticator
	Anchor    *anchor.Coordinator
	Directory *AgentDirectory
}

// NewServices wires every subsystem named in the component design:
// Crypto Primitives -> ASR Pipeline -> Threat Engine -> Rule Engine ->
// Auth Protocol -> Anchor Sink, in that dependency order.
func NewServices(cfg *config.Config, sessionSecret []byte) (*Services, error) {
	log := obs.NewLogger(cfg.LogFormat)

	auditStore := store.New()
	pipeline := asr.NewPipeline(auditStore, cfg.BatchMax, cfg.BatchMaxAge)

	segments, err := store.NewSegmentWriter(cfg.SegmentDir, 64*1024*1024)
	if err != nil {
		return nil, err
	}
	pipeline.SetSegmentWriter(segments)

	if idx, err := store.OpenSQLiteIndex(cfg.SQLitePath); err != nil {
		log.Warn("sqlite index unavailable, records_for will rely on in-memory state only", "error", err)
	} else {
		pipeline.SetIndex(idx)
	}

	threatEngine := threat.NewEngine(24 * time.Hour)

	var quotaBackend rules.QuotaBackend = rules.NewInMemoryQuota()
	if cfg.RedisAddr != "" {
		quotaBackend = rules.NewRedisQuota(cfg.RedisAddr)
	}
	quota := rules.NewQuotaStore(quotaBackend, time.Minute)
	ruleEngine, err := rules.NewEngine(quota, cfg.StrikeThreshold, cfg.HeirInactivity)
	if err != nil {
		return nil, err
	}

	directory := NewAgentDirectory()
	var nonces auth.NonceBackend = auth.NewInMemoryNonceStore()
	if cfg.RedisAddr != "" {
		nonces = auth.NewRedisNonceCache(cfg.RedisAddr)
	}
	authn := auth.NewAuthenticator(nonces, directory, sessionSecret)
	authn.SetRateLimiter(auth.NewNonceRateLimiter(1, 5))

	coordinator := anchor.NewCoordinator(anchor.NoopSink{}, nil, anchor.DefaultPolicy, log)

	// Seal events hand the batch's Merkle root to the anchor coordinator;
	// a failure here is logged, not fatal, since anchoring is best-effort
	// relative to the durable local hash chain (store.VerifyChain remains
	// authoritative even if the chain never reaches a public ledger).
	pipeline.OnSeal(func(b *asr.Batch) {
		if _, err := coordinator.Submit(context.Background(), b.RootHex, b.BatchID); err != nil {
			log.Error("anchor submission failed", "batch_id", b.BatchID, "error", err)
			return
		}
		log.Info("batch anchored", "batch_id", b.BatchID, "root", b.RootHex)
	})

	threatEngine.OnTransition(func(agentID identity.Address, from, to threat.Tier) {
		log.Warn("threat tier transition", "agent_id", agentID.String(), "from", from, "to", to)
	})

	return &Services{
		Config:    cfg,
		Log:       log,
		Store:     auditStore,
		Pipeline:  pipeline,
		Threat:    threatEngine,
		Rules:     ruleEngine,
		Auth:      authn,
		Anchor:    coordinator,
		Directory: directory,
	}, nil
}

func runServer(stdout, stderr io.Writer) {
	cfg := config.Load()

	sessionSecret := []byte(envOr("PULSAR_SESSION_SECRET", "dev-only-insecure-secret"))

	svc, err := NewServices(cfg, sessionSecret)
	if err != nil {
		obs.NewLogger(cfg.LogFormat).Error("failed to wire services", "error", err)
		os.Exit(1)
	}

	svc.Log.Info("sentineld ready",
		"pqc_security_level", cfg.PQCSecurityLevel,
		"anchor_network", cfg.AnchorNetwork,
		"batch_max", cfg.BatchMax,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	svc.Log.Info("sentineld shutting down")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
