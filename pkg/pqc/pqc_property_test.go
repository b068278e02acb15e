//go:build property
// +build property

package pqc_test

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pulsar-sentinel/core/pkg/pqc"
)

// TestHybridRoundTripProperty: decrypt_hybrid(encrypt_hybrid(m)) == m for any m.
func TestHybridRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	kp, err := pqc.GenerateKeypair(pqc.MlKem768)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	properties.Property("hybrid encrypt/decrypt is a round trip for any plaintext", prop.ForAll(
		func(msg string) bool {
			envelope, err := pqc.EncryptHybrid(kp.Public, pqc.MlKem768, kp.KeyID, []byte(msg), nil)
			if err != nil {
				return false
			}
			recovered, err := pqc.DecryptHybrid(kp, kp.KeyID, envelope, nil)
			if err != nil {
				return false
			}
			return bytes.Equal(recovered, []byte(msg))
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestHybridNonMalleability: flipping any single byte of a hybrid envelope
// must never decrypt to a value different from "authentication failure",
// i.e. it must never silently succeed and return a different plaintext.
func TestHybridNonMalleability(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	kp, err := pqc.GenerateKeypair(pqc.MlKem768)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	envelope, err := pqc.EncryptHybrid(kp.Public, pqc.MlKem768, kp.KeyID, []byte("fixed-plaintext"), nil)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	properties.Property("tampering with any byte never yields a different valid plaintext", prop.ForAll(
		func(idx int, flip int) bool {
			flipByte := byte(flip % 255) + 1 // never zero
			i := idx % len(envelope)
			tampered := bytes.Clone(envelope)
			tampered[i] ^= flipByte

			recovered, err := pqc.DecryptHybrid(kp, kp.KeyID, tampered, nil)
			if err != nil {
				return true // authentication correctly failed
			}
			// If it didn't fail, it must be byte-identical to the original.
			return bytes.Equal(recovered, []byte("fixed-plaintext")) && bytes.Equal(tampered, envelope)
		},
		gen.IntRange(0, 1<<20),
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t)
}
