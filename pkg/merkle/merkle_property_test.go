//go:build property
// +build property

package merkle_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pulsar-sentinel/core/pkg/merkle"
)

// TestMerkleInclusionProofSoundness: every leaf's proof verifies against
// the tree's own root, and a proof never verifies against a different
// signature than the one it was built for.
func TestMerkleInclusionProofSoundness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("every leaf proves inclusion under its own tree's root", prop.ForAll(
		func(n int) bool {
			signatures := make([][]byte, n)
			for i := range signatures {
				sig := make([]byte, 32)
				sig[0], sig[1], sig[2], sig[3] = byte(i), byte(i>>8), 0xAA, byte(n)
				signatures[i] = sig
			}
			tree, err := merkle.Build(signatures)
			if err != nil {
				return false
			}
			for i := range signatures {
				proof, err := tree.Prove(i)
				if err != nil {
					return false
				}
				if !merkle.Verify(*proof, tree.RootHex()) {
					return false
				}
				if !merkle.VerifySignature(signatures[i], *proof) {
					return false
				}
				// A proof must not attest to any other signature in the batch.
				for j := range signatures {
					if j == i {
						continue
					}
					if merkle.VerifySignature(signatures[j], *proof) {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 64),
	))

	properties.TestingRun(t)
}

// TestMerkleProofRejectsForeignRoot: a valid proof from one batch must
// never verify against another batch's root.
func TestMerkleProofRejectsForeignRoot(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("a proof never verifies against an unrelated root", prop.ForAll(
		func(n, m int) bool {
			if n == m {
				return true
			}
			a := make([][]byte, n)
			for i := range a {
				sig := make([]byte, 32)
				sig[0], sig[1], sig[2] = byte(i), 0x01, byte(n)
				a[i] = sig
			}
			b := make([][]byte, m)
			for i := range b {
				sig := make([]byte, 32)
				sig[0], sig[1], sig[2] = byte(i), 0x02, byte(m)
				b[i] = sig
			}

			treeA, err := merkle.Build(a)
			if err != nil {
				return false
			}
			treeB, err := merkle.Build(b)
			if err != nil {
				return false
			}
			if treeA.RootHex() == treeB.RootHex() {
				return true // extremely unlikely hash collision; don't fail spuriously
			}

			proof, err := treeA.Prove(0)
			if err != nil {
				return false
			}
			return !merkle.Verify(*proof, treeB.RootHex())
		},
		gen.IntRange(1, 32),
		gen.IntRange(1, 32),
	))

	properties.TestingRun(t)
}
