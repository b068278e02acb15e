//go:build property
// +build property

package rules_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pulsar-sentinel/core/pkg/rules"
)

// TestQuotaBoundaryAllowsExactlyLimit: for any limit L and any number of
// calls N within a single window, exactly min(N, L) calls are allowed.
func TestQuotaBoundaryAllowsExactlyLimit(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("exactly min(calls, limit) are allowed within one window", prop.ForAll(
		func(limit, calls int) bool {
			backend := rules.NewInMemoryQuota()
			key := "agent-quota-prop"

			want := calls
			if want > limit {
				want = limit
			}

			allowed := 0
			for i := 0; i < calls; i++ {
				ok, err := backend.Allow(context.Background(), key, limit, 1_000_000_000_000) // effectively one window for the test's duration
				if err != nil {
					return false
				}
				if ok {
					allowed++
				}
			}
			return allowed == want
		},
		gen.IntRange(1, 50),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
