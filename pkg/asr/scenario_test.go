package asr_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pulsar-sentinel/core/pkg/anchor"
	"github.com/pulsar-sentinel/core/pkg/asr"
	"github.com/pulsar-sentinel/core/pkg/canonicalize"
	"github.com/pulsar-sentinel/core/pkg/identity"
	"github.com/pulsar-sentinel/core/pkg/merkle"
	"github.com/pulsar-sentinel/core/pkg/pqc"
	"github.com/pulsar-sentinel/core/pkg/rules"
	"github.com/pulsar-sentinel/core/pkg/store"
	"github.com/pulsar-sentinel/core/pkg/threat"
)

func testAddress(t *testing.T, fill byte) identity.Address {
	t.Helper()
	raw := bytes.Repeat([]byte{fill}, 20)
	addr, err := identity.NewAddress("0x" + hexString(raw))
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	return addr
}

func hexString(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0x0f]
	}
	return string(out)
}

// TestScenarioHybridRoundTrip (S1): generate a keypair, encrypt a message,
// decrypt it back, and confirm the envelope carries the expected prefix.
func TestScenarioHybridRoundTrip(t *testing.T) {
	kp, err := pqc.GenerateKeypair(pqc.MlKem768)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	envelope, err := pqc.EncryptHybrid(kp.Public, pqc.MlKem768, kp.KeyID, []byte("hello quantum"), nil)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !bytes.HasPrefix(envelope, []byte{'P', 'S', 'H', '1', 0x01}) {
		t.Fatalf("envelope missing expected header, got % x", envelope[:5])
	}

	recovered, err := pqc.DecryptHybrid(kp, kp.KeyID, envelope, nil)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(recovered) != "hello quantum" {
		t.Fatalf("got %q, want %q", recovered, "hello quantum")
	}
}

// TestScenarioAESPasswordRoundTrip (S2): correct password round-trips,
// wrong password fails closed with the authentication error.
func TestScenarioAESPasswordRoundTrip(t *testing.T) {
	envelope, err := pqc.EncryptAES("correct horse", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	recovered, err := pqc.DecryptAES("correct horse", envelope)
	if err != nil {
		t.Fatalf("decrypt with correct password: %v", err)
	}
	if string(recovered) != "secret" {
		t.Fatalf("got %q, want %q", recovered, "secret")
	}

	if _, err := pqc.DecryptAES("wrong horse", envelope); err == nil {
		t.Fatal("expected decrypt with wrong password to fail")
	} else if err != pqc.ErrAuthenticationFailed {
		t.Fatalf("got error %v, want ErrAuthenticationFailed", err)
	}
}

// TestScenarioRateLimitBoundary (S3): a SentinelCore-tier agent may submit
// exactly its per-minute quota of capability requests; the next one is
// denied.
func TestScenarioRateLimitBoundary(t *testing.T) {
	quota := rules.NewQuotaStore(rules.NewInMemoryQuota(), time.Minute)
	engine, err := rules.NewEngine(quota, 3, 90*24*time.Hour)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	agent := &identity.Agent{
		Address: testAddress(t, 0x11),
		Role:    identity.RoleUser,
		Tier:    identity.TierSentinelCore,
	}

	limit := agent.Tier.QuotaPerMinute()
	if limit != 10 {
		t.Fatalf("expected SentinelCore quota of 10, got %d", limit)
	}

	allowed := 0
	for i := 0; i < limit; i++ {
		decision := engine.Decide(rules.CapabilityRequest{
			Agent:        agent,
			Capability:   rules.CapStateMutation,
			Tier:         threat.TierSafe,
			HasSignature: true,
		})
		if decision == rules.Allow {
			allowed++
		}
	}
	if allowed != limit {
		t.Fatalf("expected all %d in-window calls to be allowed, got %d", limit, allowed)
	}

	eleventh := engine.Decide(rules.CapabilityRequest{
		Agent:        agent,
		Capability:   rules.CapStateMutation,
		Tier:         threat.TierSafe,
		HasSignature: true,
	})
	if eleventh != rules.Deny {
		t.Fatal("expected the 11th call within the window to be denied")
	}
}

// TestScenarioThreeStrikeBan (S4): three strikes bans the agent; a fourth
// state-mutating request is denied; resetting strikes restores access.
func TestScenarioThreeStrikeBan(t *testing.T) {
	quota := rules.NewQuotaStore(rules.NewInMemoryQuota(), time.Minute)
	engine, err := rules.NewEngine(quota, 3, 90*24*time.Hour)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	agent := &identity.Agent{
		Address: testAddress(t, 0x22),
		Role:    identity.RoleUser,
		Tier:    identity.TierAutonomousGuild,
	}

	var banned bool
	for i := 0; i < 3; i++ {
		banned = engine.Strike(agent.Address)
	}
	if !banned {
		t.Fatal("expected the third strike to ban the agent")
	}

	decision := engine.Decide(rules.CapabilityRequest{
		Agent:        agent,
		Capability:   rules.CapStateMutation,
		Tier:         threat.TierSafe,
		HasSignature: true,
	})
	if decision != rules.Deny {
		t.Fatal("expected a banned agent's request to be denied")
	}

	engine.ResetStrikes(agent.Address)
	decision = engine.Decide(rules.CapabilityRequest{
		Agent:        agent,
		Capability:   rules.CapStateMutation,
		Tier:         threat.TierSafe,
		HasSignature: true,
	})
	if decision != rules.Allow {
		t.Fatal("expected the next request to succeed after reset_strikes")
	}
}

// TestScenarioMerkleAnchoring (S5): 50 events seal into a 50-leaf batch,
// every record's proof verifies against the sealed root, and tampering
// with one record's signature breaks only that record's proof.
func TestScenarioMerkleAnchoring(t *testing.T) {
	s := store.New()
	pipeline := asr.NewPipeline(s, 50, time.Hour)
	agent := testAddress(t, 0x33)

	var sealed *asr.Batch
	pipeline.OnSeal(func(b *asr.Batch) { sealed = b })

	for i := 0; i < 50; i++ {
		if _, err := pipeline.Submit(asr.Event{
			AgentID:     agent,
			Action:      "heartbeat",
			ThreatLevel: asr.ThreatInfo,
			PQCStatus:   asr.PQCStatusSafe,
			Metadata:    canonicalize.Null(),
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	if sealed == nil {
		t.Fatal("expected a batch to seal after 50 records")
	}
	if len(sealed.Records) != 50 {
		t.Fatalf("expected 50 sealed records, got %d", len(sealed.Records))
	}

	for i, record := range sealed.Records {
		proof, err := sealed.Tree.Prove(i)
		if err != nil {
			t.Fatalf("prove leaf %d: %v", i, err)
		}
		if !merkle.Verify(*proof, sealed.RootHex) {
			t.Fatalf("leaf %d proof did not verify against the sealed root", i)
		}
		sigBytes, err := record.SignatureBytes()
		if err != nil {
			t.Fatalf("leaf %d signature bytes: %v", i, err)
		}
		if !merkle.VerifySignature(sigBytes, *proof) {
			t.Fatalf("leaf %d proof did not bind to its own signature", i)
		}
	}

	tampered, err := sealed.Tree.Prove(0)
	if err != nil {
		t.Fatalf("prove leaf 0: %v", err)
	}
	tamperedSig, err := sealed.Records[0].SignatureBytes()
	if err != nil {
		t.Fatalf("signature bytes: %v", err)
	}
	tamperedSig[0] ^= 0xFF
	if merkle.VerifySignature(tamperedSig, *tampered) {
		t.Fatal("expected tampered signature to break proof binding")
	}

	coordinator := anchor.NewCoordinator(anchor.NoopSink{}, nil, anchor.BackoffPolicy{MaxAttempts: 1}, nil)
	receipt, err := coordinator.Submit(context.Background(), sealed.RootHex, sealed.BatchID)
	if err != nil {
		t.Fatalf("anchor submit: %v", err)
	}
	if err := sealed.MarkSubmitted(string(receipt)); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}
	if err := sealed.MarkConfirmed(); err != nil {
		t.Fatalf("mark confirmed: %v", err)
	}
	if sealed.Status != asr.BatchConfirmed {
		t.Fatalf("expected batch to be Confirmed, got %s", sealed.Status)
	}
}

// TestScenarioTierTransition (S6): one quantum-risk event raises PTS from 0
// to 50, transitioning Safe -> Caution exactly once.
func TestScenarioTierTransition(t *testing.T) {
	engine := threat.NewEngine(24 * time.Hour)
	agent := testAddress(t, 0x44)

	var transitions []string
	engine.OnTransition(func(a identity.Address, from, to threat.Tier) {
		transitions = append(transitions, string(from)+"->"+string(to))
	})

	pts, tier, _ := engine.Score(agent)
	if pts != 0 || tier != threat.TierSafe {
		t.Fatalf("expected a fresh agent at PTS=0/Safe, got %v/%v", pts, tier)
	}

	engine.Record(agent, threat.EventQuantumRisk)

	pts, tier, _ = engine.Score(agent)
	if pts != 50 {
		t.Fatalf("expected PTS=50 after one quantum-risk event, got %v", pts)
	}
	if tier != threat.TierCaution {
		t.Fatalf("expected Caution tier at PTS=50, got %v", tier)
	}
	if len(transitions) != 1 || transitions[0] != "Safe->Caution" {
		t.Fatalf("expected exactly one Safe->Caution transition, got %v", transitions)
	}
}
