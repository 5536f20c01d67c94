package vault

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/jmcleod/lockbox/crypto"
	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/internal/util"
	"github.com/jmcleod/lockbox/storage"
	"github.com/jmcleod/lockbox/totp"
)

const createdAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Records returns every record in insertion order.
func (s *Session) Records(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pass, err := s.unlockedPassphrase(ctx)
	if err != nil {
		return nil, err
	}
	return s.vault.loadRecords(pass)
}

// Record returns the record with the given id.
func (s *Session) Record(ctx context.Context, id int64) (Record, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return Record{}, err
	}
	i, err := indexOf(records, id)
	if err != nil {
		return Record{}, err
	}
	return records[i], nil
}

// AddRecord appends a record and re-encrypts the payload.
func (s *Session) AddRecord(ctx context.Context, nr NewRecord) (Record, error) {
	var added Record
	err := s.mutate(ctx, func(records []Record) ([]Record, error) {
		now := s.vault.now().UTC()
		r := Record{
			ID:         nextID(records, now.UnixMilli()),
			Site:       nr.Site,
			Username:   nr.Username,
			Password:   nr.Password,
			TOTPSecret: nr.TOTPSecret,
			CreatedAt:  now.Format(createdAtLayout),
		}
		if err := validateRecord(r); err != nil {
			return nil, err
		}
		added = r
		return append(records, r), nil
	})
	return added, err
}

// UpdateRecord merges u into the record with the given id. The id and
// creation time never change.
func (s *Session) UpdateRecord(ctx context.Context, id int64, u RecordUpdate) (Record, error) {
	var updated Record
	err := s.mutate(ctx, func(records []Record) ([]Record, error) {
		i, err := indexOf(records, id)
		if err != nil {
			return nil, err
		}
		r := u.apply(records[i])
		if err := validateRecord(r); err != nil {
			return nil, err
		}
		records[i] = r
		updated = r
		return records, nil
	})
	return updated, err
}

// DeleteRecord removes the record with the given id.
func (s *Session) DeleteRecord(ctx context.Context, id int64) error {
	return s.mutate(ctx, func(records []Record) ([]Record, error) {
		i, err := indexOf(records, id)
		if err != nil {
			return nil, err
		}
		return slices.Delete(records, i, i+1), nil
	})
}

// AttachTOTP stores secret as the record's second factor once code proves
// the user's authenticator produces matching codes.
func (s *Session) AttachTOTP(ctx context.Context, id int64, secret, code string) (Record, error) {
	if _, err := totp.DecodeSecret(secret); err != nil {
		return Record{}, err
	}
	if !totp.VerifyAt(secret, code, s.vault.now(), totp.Window) {
		return Record{}, failure.E(failure.AuthFailure, "invalid verification code")
	}
	return s.UpdateRecord(ctx, id, RecordUpdate{TOTPSecret: &secret})
}

// TOTPCode returns the current code for the record's second factor.
func (s *Session) TOTPCode(ctx context.Context, id int64) (totp.Code, error) {
	r, err := s.Record(ctx, id)
	if err != nil {
		return totp.Code{}, err
	}
	if r.TOTPSecret == "" {
		return totp.Code{}, failure.Errorf(failure.NotFound, "record %d has no two-factor secret", id)
	}
	return totp.CodeAt(r.TOTPSecret, s.vault.now())
}

// ProvisioningURI returns the otpauth URI for a secret being attached to
// account.
func (s *Session) ProvisioningURI(secret, account string) string {
	return totp.ProvisioningURI(secret, account, s.vault.issuer)
}

// mutate loads the payload, applies fn and writes the result as a new
// envelope.
func (s *Session) mutate(ctx context.Context, fn func([]Record) ([]Record, error)) error {
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
	records, err = fn(records)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.vault.saveRecords(records, pass)
}

func (v *Vault) loadRecords(passphrase string) ([]Record, error) {
	env, ok, err := v.getSlot(SlotEncryptedVault)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Record{}, nil
	}
	return decryptRecords(env, passphrase)
}

func (v *Vault) saveRecords(records []Record, passphrase string) error {
	env, err := encryptRecords(records, passphrase)
	if err != nil {
		return err
	}
	if err := v.repo.Put(SlotEncryptedVault, env); err != nil {
		return failure.E(failure.Other, "writing vault payload", err)
	}
	slog.Debug("vault payload written", slog.Int("records", len(records)))
	return nil
}

func encryptRecords(records []Record, passphrase string) (string, error) {
	if records == nil {
		records = []Record{}
	}
	plaintext, err := json.Marshal(records)
	if err != nil {
		return "", failure.E(failure.Other, "encoding records", err)
	}
	defer util.WipeBytes(plaintext)
	return crypto.Encrypt(plaintext, passphrase)
}

func decryptRecords(envelope, passphrase string) ([]Record, error) {
	plaintext, err := crypto.Decrypt(envelope, passphrase)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(plaintext)

	var records []Record
	if err := json.Unmarshal(plaintext, &records); err != nil {
		return nil, failure.E(failure.MalformedInput, "decoding records", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func indexOf(records []Record, id int64) (int, error) {
	i := slices.IndexFunc(records, func(r Record) bool { return r.ID == id })
	if i < 0 {
		return -1, failure.Errorf(failure.NotFound, "record %d", id)
	}
	return i, nil
}

// nextID returns candidate, bumped until no record uses it.
func nextID(records []Record, candidate int64) int64 {
	for slices.ContainsFunc(records, func(r Record) bool { return r.ID == candidate }) {
		candidate++
	}
	return candidate
}

// ReclaimOrphaned merges a payload orphaned by account recovery back into the
// vault. oldPassphrase is the passphrase that was forgotten at recovery
// time. Records whose id collides with a current record get a fresh id. It
// returns the number of records merged.
func (s *Session) ReclaimOrphaned(ctx context.Context, oldPassphrase string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pass, err := s.unlockedPassphrase(ctx)
	if err != nil {
		return 0, err
	}

	orphan, ok, err := s.vault.getSlot(SlotOrphanedVault)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, failure.E(failure.NotFound, "no orphaned vault")
	}
	recovered, err := decryptRecords(orphan, oldPassphrase)
	if err != nil {
		return 0, err
	}
	current, err := s.vault.loadRecords(pass)
	if err != nil {
		return 0, err
	}

	base := s.vault.now().UnixMilli()
	for _, r := range recovered {
		if slices.ContainsFunc(current, func(c Record) bool { return c.ID == r.ID }) {
			r.ID = nextID(current, max(base, r.ID))
		}
		current = append(current, r)
	}

	payload, err := encryptRecords(current, pass)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	err = s.vault.repo.Batch(func(tx storage.BatchTx) error {
		if err := tx.Put(SlotEncryptedVault, payload); err != nil {
			return err
		}
		return tx.Delete(SlotOrphanedVault)
	})
	if err != nil {
		return 0, failure.E(failure.Other, "merging orphaned vault", err)
	}
	slog.Info("orphaned vault reclaimed", slog.Int("records", len(recovered)))
	return len(recovered), nil
}

// HasOrphaned reports whether a payload orphaned by account recovery is
// waiting to be reclaimed.
func (v *Vault) HasOrphaned(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok, err := v.getSlot(SlotOrphanedVault)
	return ok, err
}

