package threat

import (
	"testing"
	"time"

	"github.com/pulsar-sentinel/core/pkg/identity"
)

func agentAddr(t *testing.T, suffix byte) identity.Address {
	t.Helper()
	raw := make([]byte, 40)
	for i := range raw {
		raw[i] = '0'
	}
	raw[39] = suffix
	addr, err := identity.NewAddress("0x" + string(raw))
	if err != nil {
		t.Fatal(err)
	}
	return addr
}

func TestPTSFormula(t *testing.T) {
	f := Factors{QuantumRisk: 1, AccessViolations: 10, RateLimitHits: 5, SignatureFailures: 2}
	got := f.pts()
	want := 50*1 + 0.3*10 + 0.2*5 + 0.1*2
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPTSClampedTo1000(t *testing.T) {
	f := Factors{QuantumRisk: 100}
	if got := f.pts(); got != 1000 {
		t.Fatalf("expected clamp to 1000, got %v", got)
	}
}

func TestTierThresholds(t *testing.T) {
	cases := []struct {
		pts  float64
		tier Tier
	}{
		{0, TierSafe},
		{49.9, TierSafe},
		{50, TierCaution},
		{149.9, TierCaution},
		{150, TierCritical},
		{1000, TierCritical},
	}
	for _, c := range cases {
		if got := tierFor(c.pts); got != c.tier {
			t.Errorf("tierFor(%v) = %v, want %v", c.pts, got, c.tier)
		}
	}
}

func TestRecordEvictsOutsideWindow(t *testing.T) {
	e := NewEngine(time.Hour)
	agent := agentAddr(t, '1')

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }
	e.Record(agent, EventAccessViolation)

	e.now = func() time.Time { return base.Add(2 * time.Hour) }
	pts, tier, factors := e.Score(agent)
	if factors.AccessViolations != 0 {
		t.Fatalf("expected the old event to have aged out, got %+v", factors)
	}
	if pts != 0 || tier != TierSafe {
		t.Fatalf("expected a clean score after eviction, got pts=%v tier=%v", pts, tier)
	}
}

func TestTierTransitionFiresOnce(t *testing.T) {
	e := NewEngine(24 * time.Hour)
	agent := agentAddr(t, '2')

	var transitions []Tier
	e.OnTransition(func(_ identity.Address, from, to Tier) {
		transitions = append(transitions, to)
	})

	// One quantum-risk event pushes PTS to 50, crossing into Caution.
	e.Record(agent, EventQuantumRisk)
	// A second event raises it to 100, still Caution - must not re-fire.
	e.Record(agent, EventQuantumRisk)
	// A third event reaches 150, crossing into Critical: one further transition.
	e.Record(agent, EventQuantumRisk)

	if len(transitions) != 2 {
		t.Fatalf("expected exactly 2 transitions (Safe->Caution, Caution->Critical), got %v", transitions)
	}
	if transitions[0] != TierCaution || transitions[1] != TierCritical {
		t.Fatalf("unexpected transition sequence: %v", transitions)
	}
}
