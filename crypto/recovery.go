package crypto

import (
	"strings"

	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/internal/util"
)

const (
	// RecoveryKeySize is the number of random bytes behind a recovery key.
	RecoveryKeySize = 32
	// MinRecoveryKeyLength is the shortest candidate worth unwrapping with.
	MinRecoveryKeyLength = 40
)

// GenerateRecoveryKey returns 32 random bytes, base64 encoded. The key is
// shown to the user once and never stored in plaintext.
func GenerateRecoveryKey() (string, error) {
	raw, err := util.RandomBytes(RecoveryKeySize)
	if err != nil {
		return "", failure.E(failure.Other, "generating recovery key", err)
	}
	defer util.WipeBytes(raw)
	return util.Base64Encode(raw), nil
}

// WrapVerifier encrypts the verifier hash with the recovery key standing in
// for the passphrase.
func WrapVerifier(verifierHash, recoveryKey string) (string, error) {
	return Encrypt([]byte(verifierHash), recoveryKey)
}

// UnwrapVerifier recovers the verifier hash from a recovery envelope.
func UnwrapVerifier(envelope, recoveryKey string) (string, error) {
	plain, err := Decrypt(envelope, recoveryKey)
	if err != nil {
		return "", err
	}
	defer util.WipeBytes(plain)
	return string(plain), nil
}

// ValidateRecoveryKey rejects obviously wrong candidates before any KDF work
// is spent on them.
func ValidateRecoveryKey(candidate string) error {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return failure.E(failure.MalformedInput, "recovery key is required")
	}
	if len(candidate) < MinRecoveryKeyLength {
		return failure.E(failure.MalformedInput, "recovery key is too short")
	}
	if _, err := util.Base64Decode(candidate); err != nil {
		return failure.E(failure.MalformedInput, "invalid recovery key format")
	}
	return nil
}
