// Package crypto is the key derivation and authenticated encryption engine
// behind the vault: PBKDF2-HMAC-SHA256 keys, AES-256-GCM envelopes, the
// SHA-256 verifier hash and the recovery-key wrapping built on top of them.
package crypto

import (
	"crypto/subtle"

	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/internal/util"
)

// KeySize is the derived AES-256 key length.
const KeySize = util.AESKeySize

// Iterations is the fixed PBKDF2 work factor.
const Iterations = 100_000

var kdfParams = util.DefaultPBKDF2Params()

// DeriveKey derives a 256-bit key from passphrase and a 16-byte salt with
// PBKDF2-HMAC-SHA256 at 100 000 iterations. The caller owns the returned
// key and should wipe it when done.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, failure.Errorf(failure.MalformedInput, "salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	pass := []byte(passphrase)
	defer util.WipeBytes(pass)
	key, err := util.DerivePBKDF2Key(pass, salt, kdfParams)
	if err != nil {
		return nil, failure.E(failure.Other, "deriving key", err)
	}
	return key, nil
}

// Encrypt seals plaintext under a key derived from passphrase with a fresh
// random salt and IV, returning the base64 envelope.
func Encrypt(plaintext []byte, passphrase string) (string, error) {
	salt, err := util.RandomBytes(SaltSize)
	if err != nil {
		return "", failure.E(failure.Other, "generating salt", err)
	}
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return "", err
	}
	defer util.WipeBytes(key)

	// util.SealAESGCM returns iv || ciphertext || tag.
	sealed, err := util.SealAESGCM(plaintext, key)
	if err != nil {
		return "", failure.E(failure.Other, "encrypting", err)
	}
	env := Envelope{
		Salt:       salt,
		Nonce:      sealed[:NonceSize],
		Ciphertext: sealed[NonceSize:],
	}
	return env.String(), nil
}

// Decrypt opens an envelope produced by Encrypt. Malformed base64, a
// truncated envelope, a wrong passphrase and a tampered ciphertext all yield
// the same failure.ErrAuthFailure.
func Decrypt(envelope, passphrase string) ([]byte, error) {
	env, err := ParseEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	key, err := DeriveKey(passphrase, env.Salt)
	if err != nil {
		return nil, errAuth()
	}
	defer util.WipeBytes(key)

	plaintext, err := util.OpenAESGCM(env.sealed(), key)
	if err != nil {
		return nil, errAuth()
	}
	return plaintext, nil
}

// HashPassword returns the verifier hash: unsalted SHA-256 of the passphrase
// as 64 lowercase hex characters. It gates unlocking only and is never used
// as key material.
func HashPassword(passphrase string) string {
	pass := []byte(passphrase)
	defer util.WipeBytes(pass)
	return util.SHA256Hex(pass)
}

// VerifierMatches compares two verifier hashes in constant time.
func VerifierMatches(stored, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}
