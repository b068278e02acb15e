package pqc

import (
	"bytes"
	"testing"
	"time"
)

func TestHybridRoundTrip768(t *testing.T) {
	kp, err := GenerateKeypair(MlKem768)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	plaintext := []byte("quantum-resistant agent state record")
	aad := []byte("asr-batch-7")

	envelope, err := EncryptHybrid(kp.Public, MlKem768, kp.KeyID, plaintext, aad)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	recovered, err := DecryptHybrid(kp, kp.KeyID, envelope, aad)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(recovered, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", recovered, plaintext)
	}
}

func TestHybridRoundTrip1024(t *testing.T) {
	kp, err := GenerateKeypair(MlKem1024)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	plaintext := []byte("tier transition event payload")
	envelope, err := EncryptHybrid(kp.Public, MlKem1024, kp.KeyID, plaintext, nil)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	recovered, err := DecryptHybrid(kp, kp.KeyID, envelope, nil)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(recovered, plaintext) {
		t.Fatalf("round trip mismatch")
	}
}

func TestHybridTamperedCiphertextFails(t *testing.T) {
	kp, err := GenerateKeypair(MlKem768)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	envelope, err := EncryptHybrid(kp.Public, MlKem768, kp.KeyID, []byte("payload"), nil)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	tampered := bytes.Clone(envelope)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := DecryptHybrid(kp, kp.KeyID, tampered, nil); err == nil {
		t.Fatal("expected authentication failure on tampered ciphertext")
	}
}

func TestHybridAlgorithmMismatch(t *testing.T) {
	kp768, err := GenerateKeypair(MlKem768)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	kp1024, err := GenerateKeypair(MlKem1024)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	envelope, err := EncryptHybrid(kp768.Public, MlKem768, kp768.KeyID, []byte("x"), nil)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := DecryptHybrid(kp1024, kp768.KeyID, envelope, nil); err == nil {
		t.Fatal("expected algorithm mismatch error")
	}
}

func TestAESPasswordRoundTrip(t *testing.T) {
	envelope, err := EncryptAES("correct horse battery staple", []byte("sealed operator secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	recovered, err := DecryptAES("correct horse battery staple", envelope)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(recovered) != "sealed operator secret" {
		t.Fatalf("got %q", recovered)
	}
}

func TestAESWrongPasswordFails(t *testing.T) {
	envelope, err := EncryptAES("correct-password", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptAES("wrong-password", envelope); err == nil {
		t.Fatal("expected authentication failure for wrong password")
	}
}

func TestKeypairStaleness(t *testing.T) {
	kp, err := GenerateKeypair(MlKem768)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	if kp.IsStale(time.Now()) {
		t.Fatal("freshly generated key should not be stale")
	}
	if !kp.IsStale(kp.CreatedAt.Add(RotationInterval + time.Second)) {
		t.Fatal("key past rotation interval should be stale")
	}
}

func TestRotateProducesDistinctKey(t *testing.T) {
	kp, err := GenerateKeypair(MlKem768)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	rotated, err := kp.Rotate()
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.KeyID == kp.KeyID {
		t.Fatal("rotated key should have a distinct key_id")
	}
	if bytes.Equal(rotated.Public, kp.Public) {
		t.Fatal("rotated key should have distinct public key material")
	}
}
