package crypto

import (
	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/internal/util"
)

const (
	// SaltSize is the PBKDF2 salt length at the head of every envelope.
	SaltSize = 16
	// NonceSize is the AES-GCM IV length following the salt.
	NonceSize = util.GCMNonceSize
	// TagSize is the GCM authentication tag length at the tail.
	TagSize = util.GCMTagSize

	minEnvelopeSize = SaltSize + NonceSize + TagSize
)

// Envelope is the decoded byte layout salt(16) || iv(12) || ciphertext || tag.
// Envelopes are immutable: re-encryption always produces a new one.
type Envelope struct {
	Salt       []byte
	Nonce      []byte
	Ciphertext []byte // includes the trailing GCM tag
}

// ParseEnvelope splits a base64 envelope at its fixed offsets into
// independently owned slices. Every failure
// is reported as failure.ErrAuthFailure so that callers cannot tell a corrupt
// envelope from a wrong key.
func ParseEnvelope(s string) (Envelope, error) {
	raw, err := util.Base64Decode(s)
	if err != nil || len(raw) < minEnvelopeSize {
		return Envelope{}, errAuth()
	}
	return Envelope{
		Salt:       util.CopyBytes(raw[:SaltSize]),
		Nonce:      util.CopyBytes(raw[SaltSize : SaltSize+NonceSize]),
		Ciphertext: util.CopyBytes(raw[SaltSize+NonceSize:]),
	}, nil
}

// Bytes returns the concatenated raw layout.
func (e Envelope) Bytes() []byte {
	out := make([]byte, 0, len(e.Salt)+len(e.Nonce)+len(e.Ciphertext))
	out = append(out, e.Salt...)
	out = append(out, e.Nonce...)
	out = append(out, e.Ciphertext...)
	return out
}

// String returns the base64 storage form.
func (e Envelope) String() string {
	return util.Base64Encode(e.Bytes())
}

// sealed returns iv || ciphertext || tag, the form util.OpenAESGCM expects.
func (e Envelope) sealed() []byte {
	out := make([]byte, 0, len(e.Nonce)+len(e.Ciphertext))
	out = append(out, e.Nonce...)
	out = append(out, e.Ciphertext...)
	return out
}

func errAuth() error {
	return failure.E(failure.AuthFailure, "unable to decrypt: wrong key or corrupted data")
}
