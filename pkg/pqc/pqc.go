// Package pqc implements the Hybrid PQC Engine: ML-KEM-768/1024 key
// encapsulation combined with AES-256-GCM for confidentiality, plus a
// password-based AES-256-CBC+HMAC path for operators without a keypair.
//
// The shared-secret and derived-AES-key byte slices are zeroed as soon as
// they are no longer needed; callers must not retain references to the
// slices returned from internal helper functions.
package pqc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/mlkem"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// Level selects the ML-KEM security parameter set.
type Level int

const (
	MlKem768  Level = 1
	MlKem1024 Level = 2
)

func (l Level) String() string {
	switch l {
	case MlKem768:
		return "ML-KEM-768"
	case MlKem1024:
		return "ML-KEM-1024"
	default:
		return "unknown"
	}
}

// hkdfSalt is the fixed HKDF salt used to derive the AES data-encryption key
// from the ML-KEM shared secret.
const hkdfSalt = "PULSAR-HYBRID-v1"

// pbkdf2Iterations is the minimum PBKDF2-SHA256 iteration count for the
// password-based envelope, chosen comfortably above OWASP's current floor.
const pbkdf2Iterations = 600_000

// RotationInterval is the default key lifetime before a Keypair is
// considered stale and a rotate() call is required.
const RotationInterval = 90 * 24 * time.Hour

// Typed error sentinels returned by this package; wrap with fmt.Errorf and
// %w so callers can errors.Is against these.
var (
	ErrMalformed           = errors.New("pqc: malformed envelope")
	ErrAuthenticationFailed = errors.New("pqc: authentication tag mismatch")
	ErrAlgorithmMismatch   = errors.New("pqc: algorithm mismatch")
	ErrStaleKey            = errors.New("pqc: key past rotation interval")
)

// Keypair is an ML-KEM encapsulation/decapsulation pair plus the bookkeeping
// needed to enforce the key-rotation invariant:
// created_at + RotationInterval < now ⇒ stale.
type Keypair struct {
	Level     Level
	Public    []byte // encapsulation key bytes
	Seed      []byte // 64-byte decapsulation seed
	KeyID     string
	CreatedAt time.Time

	decap768  *mlkem.DecapsulationKey768
	decap1024 *mlkem.DecapsulationKey1024
}

// GenerateKeypair creates a fresh ML-KEM keypair at the requested level.
func GenerateKeypair(level Level) (*Keypair, error) {
	now := time.Now()
	kp := &Keypair{Level: level, CreatedAt: now}

	switch level {
	case MlKem768:
		dk, err := mlkem.GenerateKey768()
		if err != nil {
			return nil, fmt.Errorf("pqc: ML-KEM-768 keygen: %w", err)
		}
		kp.decap768 = dk
		kp.Public = dk.EncapsulationKey().Bytes()
		kp.Seed = dk.Bytes()
	case MlKem1024:
		dk, err := mlkem.GenerateKey1024()
		if err != nil {
			return nil, fmt.Errorf("pqc: ML-KEM-1024 keygen: %w", err)
		}
		kp.decap1024 = dk
		kp.Public = dk.EncapsulationKey().Bytes()
		kp.Seed = dk.Bytes()
	default:
		return nil, fmt.Errorf("%w: level %d", ErrAlgorithmMismatch, level)
	}

	kp.KeyID = deriveKeyID(kp.Public, kp.CreatedAt)
	return kp, nil
}

// KeypairFromSeed rehydrates a Keypair from a previously generated seed.
func KeypairFromSeed(level Level, seed []byte, createdAt time.Time) (*Keypair, error) {
	kp := &Keypair{Level: level, Seed: seed, CreatedAt: createdAt}

	switch level {
	case MlKem768:
		dk, err := mlkem.NewDecapsulationKey768(seed)
		if err != nil {
			return nil, fmt.Errorf("pqc: rehydrate ML-KEM-768: %w", err)
		}
		kp.decap768 = dk
		kp.Public = dk.EncapsulationKey().Bytes()
	case MlKem1024:
		dk, err := mlkem.NewDecapsulationKey1024(seed)
		if err != nil {
			return nil, fmt.Errorf("pqc: rehydrate ML-KEM-1024: %w", err)
		}
		kp.decap1024 = dk
		kp.Public = dk.EncapsulationKey().Bytes()
	default:
		return nil, fmt.Errorf("%w: level %d", ErrAlgorithmMismatch, level)
	}

	kp.KeyID = deriveKeyID(kp.Public, kp.CreatedAt)
	return kp, nil
}

// IsStale reports whether the keypair has exceeded RotationInterval as of now.
func (kp *Keypair) IsStale(now time.Time) bool {
	return kp.CreatedAt.Add(RotationInterval).Before(now)
}

// Rotate produces a fresh Keypair at the same level, independent of kp.
// The caller is responsible for re-encrypting/re-wrapping any material
// protected under the old key_id.
func (kp *Keypair) Rotate() (*Keypair, error) {
	return GenerateKeypair(kp.Level)
}

func deriveKeyID(public []byte, createdAt time.Time) string {
	h := sha256.New()
	h.Write(public)
	h.Write([]byte(createdAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func (kp *Keypair) encapsulate() (sharedSecret, ciphertext []byte, err error) {
	switch kp.Level {
	case MlKem768:
		ek, err := mlkem.NewEncapsulationKey768(kp.Public)
		if err != nil {
			return nil, nil, fmt.Errorf("pqc: parse encapsulation key: %w", err)
		}
		ss, ct := ek.Encapsulate()
		return ss, ct, nil
	case MlKem1024:
		ek, err := mlkem.NewEncapsulationKey1024(kp.Public)
		if err != nil {
			return nil, nil, fmt.Errorf("pqc: parse encapsulation key: %w", err)
		}
		ss, ct := ek.Encapsulate()
		return ss, ct, nil
	default:
		return nil, nil, fmt.Errorf("%w: level %d", ErrAlgorithmMismatch, kp.Level)
	}
}

func (kp *Keypair) decapsulate(ciphertext []byte) ([]byte, error) {
	switch kp.Level {
	case MlKem768:
		if kp.decap768 == nil {
			return nil, fmt.Errorf("%w: no decapsulation key loaded", ErrAlgorithmMismatch)
		}
		ss, err := kp.decap768.Decapsulate(ciphertext)
		if err != nil {
			return nil, fmt.Errorf("pqc: decapsulate: %w", err)
		}
		return ss, nil
	case MlKem1024:
		if kp.decap1024 == nil {
			return nil, fmt.Errorf("%w: no decapsulation key loaded", ErrAlgorithmMismatch)
		}
		ss, err := kp.decap1024.Decapsulate(ciphertext)
		if err != nil {
			return nil, fmt.Errorf("pqc: decapsulate: %w", err)
		}
		return ss, nil
	default:
		return nil, fmt.Errorf("%w: level %d", ErrAlgorithmMismatch, kp.Level)
	}
}

// EncryptHybrid implements the 5-step hybrid algorithm: ML-KEM encapsulate
// against the recipient's public key, HKDF-SHA256 derive an AES-256 key
// from the shared secret, generate a random 12-byte nonce, seal plaintext
// with AES-256-GCM, and zeroize the shared secret and derived key before
// returning.
func EncryptHybrid(recipientPublic []byte, level Level, keyID string, plaintext, aad []byte) ([]byte, error) {
	var ek interface {
		Encapsulate() ([]byte, []byte)
	}

	switch level {
	case MlKem768:
		k, err := mlkem.NewEncapsulationKey768(recipientPublic)
		if err != nil {
			return nil, fmt.Errorf("pqc: invalid recipient key: %w", err)
		}
		ek = k
	case MlKem1024:
		k, err := mlkem.NewEncapsulationKey1024(recipientPublic)
		if err != nil {
			return nil, fmt.Errorf("pqc: invalid recipient key: %w", err)
		}
		ek = k
	default:
		return nil, fmt.Errorf("%w: level %d", ErrAlgorithmMismatch, level)
	}

	sharedSecret, kemCiphertext := ek.Encapsulate()
	defer zero(sharedSecret)

	aesKey := make([]byte, 32)
	hkdfReader := hkdf.New(sha256.New, sharedSecret, []byte(hkdfSalt), []byte(keyID))
	if _, err := io.ReadFull(hkdfReader, aesKey); err != nil {
		return nil, fmt.Errorf("pqc: HKDF derive: %w", err)
	}
	defer zero(aesKey)

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("pqc: aes cipher init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("pqc: gcm init: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("pqc: nonce generation: %w", err)
	}

	aeadCiphertext := gcm.Seal(nil, nonce, plaintext, aad)

	return encodeHybridEnvelope(level, kemCiphertext, nonce, aeadCiphertext), nil
}

// DecryptHybrid reverses EncryptHybrid using the recipient's Keypair.
func DecryptHybrid(kp *Keypair, keyID string, envelope, aad []byte) ([]byte, error) {
	level, kemCiphertext, nonce, aeadCiphertext, err := decodeHybridEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	if level != kp.Level {
		return nil, fmt.Errorf("%w: envelope is %s, key is %s", ErrAlgorithmMismatch, level, kp.Level)
	}

	sharedSecret, err := kp.decapsulate(kemCiphertext)
	if err != nil {
		return nil, err
	}
	defer zero(sharedSecret)

	aesKey := make([]byte, 32)
	hkdfReader := hkdf.New(sha256.New, sharedSecret, []byte(hkdfSalt), []byte(keyID))
	if _, err := io.ReadFull(hkdfReader, aesKey); err != nil {
		return nil, fmt.Errorf("pqc: HKDF derive: %w", err)
	}
	defer zero(aesKey)

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("pqc: aes cipher init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("pqc: gcm init: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, aeadCiphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	return plaintext, nil
}

// EncryptAES implements the password-based envelope: PBKDF2-SHA256 derives
// a 64-byte key from password and a fresh 16-byte salt, the first 32 bytes
// become the AES-256-CBC key and the last 32 the HMAC-SHA256 key
// (encrypt-then-MAC), plaintext is PKCS#7 padded before encryption.
func EncryptAES(password string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("pqc: salt generation: %w", err)
	}

	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 64, sha256.New)
	defer zero(derived)
	aesKey, hmacKey := derived[:32], derived[32:]

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("pqc: aes cipher init: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("pqc: iv generation: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cbc := cipher.NewCBCEncrypter(block, iv)
	cbc.CryptBlocks(ciphertext, padded)

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(salt)
	mac.Write(iv)
	mac.Write(ciphertext)
	tag := mac.Sum(nil)

	return encodeAESEnvelope(salt, iv, tag, ciphertext), nil
}

// DecryptAES reverses EncryptAES, verifying the HMAC tag in constant time
// before attempting decryption.
func DecryptAES(password string, envelope []byte) ([]byte, error) {
	salt, iv, tag, ciphertext, err := decodeAESEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 64, sha256.New)
	defer zero(derived)
	aesKey, hmacKey := derived[:32], derived[32:]

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(salt)
	mac.Write(iv)
	mac.Write(ciphertext)
	expected := mac.Sum(nil)

	if subtle.ConstantTimeCompare(expected, tag) != 1 {
		return nil, ErrAuthenticationFailed
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("pqc: aes cipher init: %w", err)
	}
	if len(ciphertext)%aes.BlockSize != 0 || len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: ciphertext not block-aligned", ErrMalformed)
	}

	plain := make([]byte, len(ciphertext))
	cbc := cipher.NewCBCDecrypter(block, iv)
	cbc.CryptBlocks(plain, ciphertext)

	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return unpadded, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid padding bytes")
		}
	}
	return data[:len(data)-padLen], nil
}
