package vault

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jmcleod/lockbox/crypto"
	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/storage"
)

// Recovery is proof that the caller holds the current recovery key. It is
// consumed by SetNewMasterPassword.
type Recovery struct {
	verifier string
}

// VerifierHash returns the recovered verifier hash of the forgotten
// passphrase.
func (r *Recovery) VerifierHash() string {
	return r.verifier
}

// RecoverAccount unwraps the recovery envelope with candidate. The candidate
// is checked for format before any key derivation. The recovered verifier
// must match the one on record; a key from a replaced envelope fails.
//
// Recovery resets the gate only. The payload stays encrypted under the
// forgotten passphrase; see SetNewMasterPassword.
func (v *Vault) RecoverAccount(ctx context.Context, candidate string) (*Recovery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := crypto.ValidateRecoveryKey(candidate); err != nil {
		return nil, err
	}

	envelope, ok, err := v.getSlot(SlotRecoveryEnvelope)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, failure.E(failure.IrrecoverableLoss, "no recovery envelope on record; the vault cannot be recovered")
	}
	verifier, err := crypto.UnwrapVerifier(envelope, trimKey(candidate))
	if err != nil {
		slog.Warn("recovery rejected: recovery key did not open envelope")
		return nil, failure.E(failure.AuthFailure, "invalid recovery key")
	}

	stored, ok, err := v.getSlot(SlotMasterHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, failure.E(failure.IrrecoverableLoss, "no master password on record; the vault cannot be recovered")
	}
	if !crypto.VerifierMatches(stored, verifier) {
		return nil, failure.E(failure.AuthFailure, "recovery key has been replaced")
	}

	slog.Info("recovery key accepted")
	return &Recovery{verifier: verifier}, nil
}

// SetNewMasterPassword completes recovery. The payload encrypted under the
// forgotten passphrase cannot be re-encrypted from the verifier, so it is
// moved to the orphaned slot (see Session.ReclaimOrphaned) and the vault
// starts empty under newPassphrase. A fresh recovery key replaces the used
// one; the returned session is AwaitingFirstEnrollment holding it.
//
// A Recovery can be used once: after the verifier changes it no longer
// matches.
func (v *Vault) SetNewMasterPassword(ctx context.Context, rec *Recovery, newPassphrase string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, failure.E(failure.MalformedInput, "recovery is required")
	}
	if err := ValidatePassphrase(newPassphrase); err != nil {
		return nil, err
	}

	stored, ok, err := v.getSlot(SlotMasterHash)
	if err != nil {
		return nil, err
	}
	if !ok || !crypto.VerifierMatches(stored, rec.verifier) {
		return nil, failure.E(failure.AuthFailure, "recovery has expired; start again")
	}
	payload, hasPayload, err := v.getSlot(SlotEncryptedVault)
	if err != nil {
		return nil, err
	}

	verifier := crypto.HashPassword(newPassphrase)
	recoveryKey, envelope, err := newRecoveryEnvelope(verifier)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err = v.repo.Batch(func(tx storage.BatchTx) error {
		if hasPayload {
			if err := tx.Put(SlotOrphanedVault, payload); err != nil {
				return err
			}
			if err := tx.Delete(SlotEncryptedVault); err != nil {
				return err
			}
		}
		if err := tx.Put(SlotMasterHash, verifier); err != nil {
			return err
		}
		return tx.Put(SlotRecoveryEnvelope, envelope)
	})
	if err != nil {
		return nil, failure.E(failure.Other, "setting new master password", err)
	}

	slog.Warn("master password reset by recovery key", slog.Bool("payload_orphaned", hasPayload))
	return newSession(v, AwaitingFirstEnrollment, newPassphrase, recoveryKey), nil
}

func trimKey(s string) string {
	return strings.TrimSpace(s)
}
