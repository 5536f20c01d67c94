package vault

import (
	"errors"

	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/storage"
)

var (
	// ErrLocked is returned by every Session method after Lock.
	ErrLocked = failure.ErrLocked
	// ErrRecoveryPending is returned by record operations while the one-time
	// recovery key has not been confirmed as saved.
	ErrRecoveryPending = &failure.Error{Kind: failure.PolicyViolation, Detail: "recovery key must be confirmed before the vault can be used"}
)

// getSlot reads slot, reporting a missing slot as ok=false rather than an
// error.
func (v *Vault) getSlot(slot string) (value string, ok bool, err error) {
	value, err = v.repo.Get(slot)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, failure.E(failure.Other, "reading "+slot, err)
	}
	return value, true, nil
}
