// Package vault is the authentication gate and record store of a single-user
// credential vault. A master passphrase is checked against a stored SHA-256
// verifier before any key derivation happens; the record payload is a JSON
// array encrypted wholesale under the passphrase.
package vault

import "encoding"

// Storage slot names.
const (
	SlotMasterHash       = "master_hash"
	SlotEncryptedVault   = "encrypted_vault"
	SlotRecoveryEnvelope = "recovery_envelope"
	SlotOrphanedVault    = "orphaned_vault"
)

const (
	// MinPassphraseLength is the hard floor for a master passphrase.
	MinPassphraseLength = 8
	// RecommendedPassphraseLength is the enforced policy length.
	RecommendedPassphraseLength = 12
	// MaxFieldSize bounds each record field.
	MaxFieldSize = 64 << 10
)

// State is the authentication state of a Session.
type State int

const (
	Locked State = iota
	AwaitingFirstEnrollment
	Unlocked
)

var _ encoding.TextMarshaler = State(0)

func (s State) String() string {
	switch s {
	case AwaitingFirstEnrollment:
		return "awaiting_first_enrollment"
	case Unlocked:
		return "unlocked"
	default:
		return "locked"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Record is one stored credential.
type Record struct {
	ID         int64  `json:"id"`
	Site       string `json:"site"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	TOTPSecret string `json:"totpSecret,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

// NewRecord holds the caller-supplied fields of a record being added.
type NewRecord struct {
	Site       string `json:"site"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	TOTPSecret string `json:"totpSecret,omitempty"`
}

// RecordUpdate lists the fields to change. Nil fields are left alone; an
// empty TOTPSecret removes the second factor.
type RecordUpdate struct {
	Site       *string `json:"site,omitempty"`
	Username   *string `json:"username,omitempty"`
	Password   *string `json:"password,omitempty"`
	TOTPSecret *string `json:"totpSecret,omitempty"`
}

func (u RecordUpdate) apply(r Record) Record {
	if u.Site != nil {
		r.Site = *u.Site
	}
	if u.Username != nil {
		r.Username = *u.Username
	}
	if u.Password != nil {
		r.Password = *u.Password
	}
	if u.TOTPSecret != nil {
		r.TOTPSecret = *u.TOTPSecret
	}
	return r
}
