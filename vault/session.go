package vault

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/lockbox/crypto"
	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/storage"
)

// Session holds the unlocked passphrase for one user session. Callers must
// call Lock when done to discard it. Methods are safe for concurrent use and
// serialize on the session.
//
// Derived keys are not cached: every payload write uses a fresh salt, so each
// encrypt and decrypt derives its own key and wipes it on return.
type Session struct {
	vault *Vault

	mu          sync.Mutex
	state       State
	passphrase  *memguard.Enclave
	recoveryKey *memguard.Enclave
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RecoveryKey returns the one-time recovery key. It is only available while
// the session is AwaitingFirstEnrollment.
func (s *Session) RecoveryKey() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Locked:
		return "", ErrLocked
	case Unlocked:
		return "", failure.E(failure.NotFound, "recovery key has already been confirmed")
	}
	return openString(s.recoveryKey)
}

// ConfirmRecoverySaved records that the user saved the recovery key. The key
// is destroyed and the session becomes Unlocked.
func (s *Session) ConfirmRecoverySaved() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Locked:
		return ErrLocked
	case Unlocked:
		return nil
	}
	s.recoveryKey = nil
	s.state = Unlocked
	slog.Info("recovery key confirmed")
	return nil
}

// Lock discards the passphrase and any pending recovery key. Persisted state
// is untouched. Lock is idempotent.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Locked {
		return
	}
	s.passphrase = nil
	s.recoveryKey = nil
	s.state = Locked
	slog.Info("vault locked")
}

// ChangePassphrase re-encrypts the payload under newPassphrase and replaces
// the verifier and recovery envelope. The session moves to
// AwaitingFirstEnrollment holding the new recovery key; the old recovery key
// no longer works.
func (s *Session) ChangePassphrase(ctx context.Context, newPassphrase string) error {
	if err := ValidatePassphrase(newPassphrase); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pass, err := s.unlockedPassphrase(ctx)
	if err != nil {
		return err
	}

	records, err := s.vault.loadRecords(pass)
	if err != nil {
		return err
	}
	payload, err := encryptRecords(records, newPassphrase)
	if err != nil {
		return err
	}
	verifier := crypto.HashPassword(newPassphrase)
	recoveryKey, envelope, err := newRecoveryEnvelope(verifier)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err = s.vault.repo.Batch(func(tx storage.BatchTx) error {
		if err := tx.Put(SlotEncryptedVault, payload); err != nil {
			return err
		}
		if err := tx.Put(SlotMasterHash, verifier); err != nil {
			return err
		}
		return tx.Put(SlotRecoveryEnvelope, envelope)
	})
	if err != nil {
		return failure.E(failure.Other, "changing master password", err)
	}

	s.passphrase = memguard.NewEnclave([]byte(newPassphrase))
	s.recoveryKey = memguard.NewEnclave([]byte(recoveryKey))
	s.state = AwaitingFirstEnrollment
	slog.Info("master password changed", slog.Int("records", len(records)))
	return nil
}

// unlockedPassphrase returns the passphrase if the session is Unlocked.
// The caller must hold s.mu.
func (s *Session) unlockedPassphrase(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch s.state {
	case Locked:
		return "", ErrLocked
	case AwaitingFirstEnrollment:
		return "", ErrRecoveryPending
	}
	return openString(s.passphrase)
}

func openString(e *memguard.Enclave) (string, error) {
	if e == nil {
		return "", ErrLocked
	}
	buf, err := e.Open()
	if err != nil {
		return "", fmt.Errorf("opening enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}
