//go:build property
// +build property

package asr

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pulsar-sentinel/core/pkg/canonicalize"
	"github.com/pulsar-sentinel/core/pkg/identity"
)

// TestSubmitTimestampsAlwaysStrictlyAdvance: for any sequence of clock
// readings (including ones that go backwards or stay flat, simulating clock
// skew), every record submitted for the same agent gets a strictly
// increasing timestamp.
func TestSubmitTimestampsAlwaysStrictlyAdvance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("per-agent timestamps strictly advance regardless of clock jitter", prop.ForAll(
		func(offsetsMillis []int) bool {
			p := newTestPipeline(t, 1000, time.Hour)
			agent, _ := identity.NewAddress("0x" + "3333333333333333333333333333333333333333")

			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			idx := 0
			p.now = func() time.Time {
				offset := 0
				if idx < len(offsetsMillis) {
					offset = offsetsMillis[idx]
				}
				idx++
				return base.Add(time.Duration(offset) * time.Millisecond)
			}

			var timestamps []time.Time
			n := len(offsetsMillis)
			if n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				asrID, err := p.Submit(Event{
					AgentID:     agent,
					Action:      "ping",
					ThreatLevel: ThreatInfo,
					PQCStatus:   PQCStatusSafe,
					Metadata:    canonicalize.Null(),
				})
				if err != nil {
					return false
				}
				entry, err := p.store.Get(asrID)
				if err != nil {
					return false
				}
				timestamps = append(timestamps, entry.Timestamp)
			}

			for i := 1; i < len(timestamps); i++ {
				if !timestamps[i].After(timestamps[i-1]) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-1000, 1000)),
	))

	properties.TestingRun(t)
}
