// Package threat implements the Threat Score & Governance Rule Engine's
// scoring half: per-agent sliding-window event counters and the PTS
// (Points Toward Threat Score) formula.
package threat

import (
	"sync"
	"time"

	"github.com/pulsar-sentinel/core/pkg/identity"
)

// EventKind identifies which counter an observed event increments.
type EventKind int

const (
	EventQuantumRisk EventKind = iota
	EventAccessViolation
	EventRateLimitHit
	EventSignatureFailure
)

// Tier classifies an agent's threat posture.
type Tier string

const (
	TierSafe     Tier = "Safe"
	TierCaution  Tier = "Caution"
	TierCritical Tier = "Critical"
)

// tierFor maps a PTS value to its Tier per the thresholds Safe<50,
// Caution 50-150, Critical>=150.
func tierFor(pts float64) Tier {
	switch {
	case pts < 50:
		return TierSafe
	case pts < 150:
		return TierCaution
	default:
		return TierCritical
	}
}

// Factors is the raw per-category event count behind a computed score.
type Factors struct {
	QuantumRisk      int
	AccessViolations int
	RateLimitHits    int
	SignatureFailures int
}

// pts computes the PTS formula: 50*q + 0.3*v + 0.2*r + 0.1*s, clamped to
// [0, 1000].
func (f Factors) pts() float64 {
	score := 50*float64(f.QuantumRisk) + 0.3*float64(f.AccessViolations) + 0.2*float64(f.RateLimitHits) + 0.1*float64(f.SignatureFailures)
	if score < 0 {
		return 0
	}
	if score > 1000 {
		return 1000
	}
	return score
}

type timestampedEvent struct {
	at   time.Time
	kind EventKind
}

// window holds an agent's event history and the tier last reported for it,
// so a tier change can be detected and emitted exactly once.
type window struct {
	events   []timestampedEvent
	lastTier Tier
}

// Engine tracks per-agent sliding windows and emits TierTransition exactly
// once per tier change.
type Engine struct {
	mu         sync.Mutex
	windowSize time.Duration
	byAgent    map[identity.Address]*window
	onTransition func(agent identity.Address, from, to Tier)
	now        func() time.Time
}

// NewEngine constructs an Engine with the given sliding-window duration
// (24h by default).
func NewEngine(windowSize time.Duration) *Engine {
	return &Engine{
		windowSize: windowSize,
		byAgent:    make(map[identity.Address]*window),
		now:        time.Now,
	}
}

// OnTransition registers a callback invoked synchronously whenever an
// agent's tier changes.
func (e *Engine) OnTransition(fn func(agent identity.Address, from, to Tier)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTransition = fn
}

// Record observes one event of kind for agent at the current time.
func (e *Engine) Record(agent identity.Address, kind EventKind) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w := e.windowFor(agent)
	w.events = append(w.events, timestampedEvent{at: e.now(), kind: kind})
	e.evaluateTransition(agent, w)
}

func (e *Engine) windowFor(agent identity.Address) *window {
	w, ok := e.byAgent[agent]
	if !ok {
		w = &window{lastTier: TierSafe}
		e.byAgent[agent] = w
	}
	return w
}

// Score returns the agent's current PTS, tier, and contributing factors,
// evicting events that have aged out of the sliding window first.
func (e *Engine) Score(agent identity.Address) (float64, Tier, Factors) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w := e.windowFor(agent)
	e.evict(w)
	factors := e.factorsOf(w)
	pts := factors.pts()
	return pts, tierFor(pts), factors
}

func (e *Engine) evict(w *window) {
	cutoff := e.now().Add(-e.windowSize)
	live := w.events[:0]
	for _, ev := range w.events {
		if ev.at.After(cutoff) {
			live = append(live, ev)
		}
	}
	w.events = live
}

func (e *Engine) factorsOf(w *window) Factors {
	var f Factors
	for _, ev := range w.events {
		switch ev.kind {
		case EventQuantumRisk:
			f.QuantumRisk++
		case EventAccessViolation:
			f.AccessViolations++
		case EventRateLimitHit:
			f.RateLimitHits++
		case EventSignatureFailure:
			f.SignatureFailures++
		}
	}
	return f
}

func (e *Engine) evaluateTransition(agent identity.Address, w *window) {
	e.evict(w)
	factors := e.factorsOf(w)
	newTier := tierFor(factors.pts())
	if newTier != w.lastTier {
		old := w.lastTier
		w.lastTier = newTier
		if e.onTransition != nil {
			e.onTransition(agent, old, newTier)
		}
	}
}
