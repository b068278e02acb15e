package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pulsar-sentinel/core/pkg/identity"
)

var (
	ErrSignatureInvalid = errors.New("auth: signature does not recover to the claimed address")
	ErrChallengeExpired = errors.New("auth: challenge expired")
)

// ethSignedMessageHash reproduces the go-ethereum personal_sign prefix so
// signatures from standard wallet tooling (MetaMask, WalletConnect, and
// similar) verify against the exact bytes the wallet actually signed.
func ethSignedMessageHash(message string) common.Hash {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256Hash([]byte(prefixed))
}

// recoverAddress recovers the signing address from a hex-encoded
// (0x-prefixed) 65-byte secp256k1 signature over message.
func recoverAddress(message, signatureHex string) (common.Address, error) {
	sigBytes, err := hexutil.Decode(signatureHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("auth: decode signature: %w", err)
	}
	if len(sigBytes) != 65 {
		return common.Address{}, fmt.Errorf("auth: signature must be 65 bytes, got %d", len(sigBytes))
	}
	// Wallets commonly encode the recovery id as 27/28; go-ethereum's
	// SigToPub expects 0/1.
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}

	hash := ethSignedMessageHash(message)
	pubKey, err := crypto.SigToPub(hash.Bytes(), sigBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("auth: recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// Verify consumes the outstanding nonce challenge for agentID and confirms
// signatureHex recovers to agentID's address over the challenge message.
// On success it returns the now-spent Challenge so the caller can mint a
// session token from it.
func Verify(ctx context.Context, backend NonceBackend, agentID identity.Address, nonce, signatureHex string, now time.Time) (*Challenge, error) {
	c, err := backend.Take(ctx, agentID, nonce)
	if err != nil {
		return nil, err
	}
	if now.After(c.ExpiresAt) {
		return nil, ErrChallengeExpired
	}

	recovered, err := recoverAddress(c.Message(), signatureHex)
	if err != nil {
		return nil, err
	}

	expected := common.HexToAddress(string(agentID))
	if subtle.ConstantTimeCompare(recovered.Bytes(), expected.Bytes()) != 1 {
		return nil, ErrSignatureInvalid
	}

	return c, nil
}
