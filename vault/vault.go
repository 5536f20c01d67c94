package vault

import (
	"context"
	"log/slog"
	"time"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/lockbox/crypto"
	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/storage"
	"github.com/jmcleod/lockbox/totp"
)

// Vault is a stateless handle over the slot store. All in-memory secrets
// live in the Session returned by Unlock.
type Vault struct {
	repo   storage.Repository
	now    func() time.Time
	issuer string
}

// New creates a Vault handle for the given storage backend.
func New(repo storage.Repository, opts ...Option) *Vault {
	v := &Vault{
		repo:   repo,
		now:    time.Now,
		issuer: totp.DefaultIssuer,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Enrolled reports whether a master verifier is on record.
func (v *Vault) Enrolled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok, err := v.getSlot(SlotMasterHash)
	return ok, err
}

// Unlock checks passphrase against the stored verifier and returns a session.
//
// With no verifier on record the passphrase is enrolled: the verifier and a
// recovery envelope are written in one batch and the session starts in
// AwaitingFirstEnrollment holding the recovery key, which the caller must
// show to the user and confirm with ConfirmRecoverySaved.
//
// A policy failure or a wrong passphrase returns no session.
func (v *Vault) Unlock(ctx context.Context, passphrase string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidatePassphrase(passphrase); err != nil {
		return nil, err
	}

	stored, ok, err := v.getSlot(SlotMasterHash)
	if err != nil {
		return nil, err
	}
	candidate := crypto.HashPassword(passphrase)

	if !ok {
		return v.enroll(ctx, passphrase, candidate)
	}
	if !crypto.VerifierMatches(stored, candidate) {
		slog.Warn("unlock rejected: wrong passphrase")
		return nil, failure.E(failure.WrongPassphrase, "incorrect master password")
	}

	slog.Info("vault unlocked")
	return newSession(v, Unlocked, passphrase, ""), nil
}

func (v *Vault) enroll(ctx context.Context, passphrase, verifier string) (*Session, error) {
	recoveryKey, envelope, err := newRecoveryEnvelope(verifier)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err = v.repo.Batch(func(tx storage.BatchTx) error {
		if err := tx.Put(SlotMasterHash, verifier); err != nil {
			return err
		}
		return tx.Put(SlotRecoveryEnvelope, envelope)
	})
	if err != nil {
		return nil, failure.E(failure.Other, "enrolling master password", err)
	}

	slog.Info("vault enrolled")
	return newSession(v, AwaitingFirstEnrollment, passphrase, recoveryKey), nil
}

// newRecoveryEnvelope generates a fresh recovery key and wraps verifier
// under it.
func newRecoveryEnvelope(verifier string) (recoveryKey, envelope string, err error) {
	recoveryKey, err = crypto.GenerateRecoveryKey()
	if err != nil {
		return "", "", err
	}
	envelope, err = crypto.WrapVerifier(verifier, recoveryKey)
	if err != nil {
		return "", "", err
	}
	return recoveryKey, envelope, nil
}

// Reset erases every slot: verifier, payload, recovery envelope and any
// orphaned payload. Sessions opened before Reset keep no usable state.
func (v *Vault) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.repo.Clear(); err != nil {
		return failure.E(failure.Other, "clearing storage", err)
	}
	slog.Warn("vault reset: all slots cleared")
	return nil
}

func newSession(v *Vault, state State, passphrase, recoveryKey string) *Session {
	s := &Session{
		vault:      v,
		state:      state,
		passphrase: memguard.NewEnclave([]byte(passphrase)),
	}
	if recoveryKey != "" {
		s.recoveryKey = memguard.NewEnclave([]byte(recoveryKey))
	}
	return s
}
