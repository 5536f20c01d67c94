package util

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Params configures PBKDF2-HMAC-SHA256 key derivation.
type PBKDF2Params struct {
	Iterations int `json:"iterations"`
	KeyLen     int `json:"key_len"`
	SaltLen    int `json:"salt_len"`
}

// DefaultPBKDF2Params returns the parameters every vault envelope uses.
func DefaultPBKDF2Params() PBKDF2Params {
	return PBKDF2Params{
		Iterations: 100_000,
		KeyLen:     32,
		SaltLen:    16,
	}
}

func DerivePBKDF2Key(passphrase []byte, salt []byte, params PBKDF2Params) ([]byte, error) {
	if params.KeyLen != AESKeySize {
		return nil, fmt.Errorf("pbkdf2 key length must be %d bytes", AESKeySize)
	}
	if params.Iterations < 1 {
		return nil, fmt.Errorf("pbkdf2 iterations must be positive")
	}
	if len(salt) != params.SaltLen {
		return nil, fmt.Errorf("pbkdf2 salt must be %d bytes, got %d", params.SaltLen, len(salt))
	}
	return pbkdf2.Key(passphrase, salt, params.Iterations, params.KeyLen, sha256.New), nil
}
