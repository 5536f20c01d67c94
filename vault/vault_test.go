package vault

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmcleod/lockbox/crypto"
	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/storage"
	"github.com/jmcleod/lockbox/storage/memory"
	"github.com/jmcleod/lockbox/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassphrase = "correct horse battery staple"

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestVault(t *testing.T) (*Vault, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	return New(repo, WithClock(func() time.Time { return fixedNow })), repo
}

// enrollTestVault enrolls testPassphrase and returns an Unlocked session
// together with the recovery key that was issued.
func enrollTestVault(t *testing.T) (*Vault, *Session, string) {
	t.Helper()
	v, _ := newTestVault(t)
	s, err := v.Unlock(t.Context(), testPassphrase)
	require.NoError(t, err)
	rk, err := s.RecoveryKey()
	require.NoError(t, err)
	require.NoError(t, s.ConfirmRecoverySaved())
	t.Cleanup(s.Lock)
	return v, s, rk
}

func TestUnlock_PolicyViolation(t *testing.T) {
	v, repo := newTestVault(t)

	_, err := v.Unlock(t.Context(), "short")
	assert.ErrorIs(t, err, &failure.Error{Kind: failure.PolicyViolation, Detail: "master password must be at least 8 characters"})

	_, err = v.Unlock(t.Context(), "elevenchars")
	assert.ErrorIs(t, err, &failure.Error{Kind: failure.PolicyViolation, Detail: "for security, use at least 12 characters"})
	assert.NotErrorIs(t, err, failure.ErrWrongPassphrase)

	// Twelve code points, more bytes.
	_, err = v.Unlock(t.Context(), "ééééééééééé")
	assert.ErrorIs(t, err, failure.ErrPolicyViolation)
	_, err = v.Unlock(t.Context(), "éééééééééééé")
	assert.NoError(t, err)

	_, err = repo.Get(SlotMasterHash)
	require.NoError(t, err)
}

func TestUnlock_EnrollmentFlow(t *testing.T) {
	ctx := t.Context()
	v, repo := newTestVault(t)

	enrolled, err := v.Enrolled(ctx)
	require.NoError(t, err)
	assert.False(t, enrolled)

	s, err := v.Unlock(ctx, testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, AwaitingFirstEnrollment, s.State())

	hash, err := repo.Get(SlotMasterHash)
	require.NoError(t, err)
	assert.Equal(t, crypto.HashPassword(testPassphrase), hash)
	_, err = repo.Get(SlotRecoveryEnvelope)
	require.NoError(t, err)

	rk, err := s.RecoveryKey()
	require.NoError(t, err)
	require.NoError(t, crypto.ValidateRecoveryKey(rk))

	_, err = s.Records(ctx)
	assert.ErrorIs(t, err, ErrRecoveryPending)

	require.NoError(t, s.ConfirmRecoverySaved())
	assert.Equal(t, Unlocked, s.State())
	_, err = s.RecoveryKey()
	assert.ErrorIs(t, err, failure.ErrNotFound)

	records, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEndToEnd(t *testing.T) {
	ctx := t.Context()
	v, s, rk := enrollTestVault(t)
	originalHash := crypto.HashPassword(testPassphrase)

	s.Lock()
	assert.Equal(t, Locked, s.State())

	s2, err := v.Unlock(ctx, testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, Unlocked, s2.State())
	_, err = s2.RecoveryKey()
	assert.Error(t, err, "no new recovery key on a later unlock")
	s2.Lock()

	_, err = v.Unlock(ctx, "correct horse battery stapler")
	assert.ErrorIs(t, err, failure.ErrWrongPassphrase)

	rec, err := v.RecoverAccount(ctx, rk)
	require.NoError(t, err)
	assert.Equal(t, originalHash, rec.VerifierHash())

	_, err = v.RecoverAccount(ctx, "bad-key")
	assert.ErrorIs(t, err, failure.ErrMalformedInput)

	other, err := crypto.GenerateRecoveryKey()
	require.NoError(t, err)
	_, err = v.RecoverAccount(ctx, other)
	assert.ErrorIs(t, err, failure.ErrAuthFailure)
}

func TestSession_LockedRejectsEverything(t *testing.T) {
	ctx := t.Context()
	_, s, _ := enrollTestVault(t)
	s.Lock()
	s.Lock()

	_, err := s.Records(ctx)
	assert.ErrorIs(t, err, ErrLocked)
	_, err = s.AddRecord(ctx, NewRecord{Site: "a", Username: "b", Password: "c"})
	assert.ErrorIs(t, err, ErrLocked)
	assert.ErrorIs(t, s.DeleteRecord(ctx, 1), ErrLocked)
	assert.ErrorIs(t, s.ConfirmRecoverySaved(), ErrLocked)
	_, err = s.RecoveryKey()
	assert.ErrorIs(t, err, ErrLocked)
	assert.ErrorIs(t, s.ChangePassphrase(ctx, "another long passphrase"), ErrLocked)
	assert.Nil(t, s.passphrase)
	assert.Nil(t, s.recoveryKey)
}

func TestSession_LockDuringEnrollmentDiscardsKey(t *testing.T) {
	v, _ := newTestVault(t)
	s, err := v.Unlock(t.Context(), testPassphrase)
	require.NoError(t, err)
	s.Lock()
	_, err = s.RecoveryKey()
	assert.ErrorIs(t, err, ErrLocked)
	assert.Nil(t, s.recoveryKey)
}

func TestRecords_CRUD(t *testing.T) {
	ctx := t.Context()
	_, s, _ := enrollTestVault(t)

	a, err := s.AddRecord(ctx, NewRecord{Site: "example.com", Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, fixedNow.UnixMilli(), a.ID)
	assert.Equal(t, "2024-03-01T12:00:00.000Z", a.CreatedAt)

	b, err := s.AddRecord(ctx, NewRecord{Site: "example.org", Username: "bob", Password: "swordfish"})
	require.NoError(t, err)
	assert.Equal(t, a.ID+1, b.ID, "colliding id is bumped")

	_, err = s.AddRecord(ctx, NewRecord{Site: "x", Username: " ", Password: "p"})
	assert.ErrorIs(t, err, &failure.Error{Kind: failure.PolicyViolation, Detail: "username is required"})

	newPass := "correct-horse"
	u, err := s.UpdateRecord(ctx, a.ID, RecordUpdate{Password: &newPass})
	require.NoError(t, err)
	assert.Equal(t, "correct-horse", u.Password)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, a.CreatedAt, u.CreatedAt)

	empty := ""
	_, err = s.UpdateRecord(ctx, a.ID, RecordUpdate{Site: &empty})
	assert.ErrorIs(t, err, failure.ErrPolicyViolation)

	_, err = s.UpdateRecord(ctx, 42, RecordUpdate{Password: &newPass})
	assert.ErrorIs(t, err, failure.ErrNotFound)

	require.NoError(t, s.DeleteRecord(ctx, b.ID))
	assert.ErrorIs(t, s.DeleteRecord(ctx, b.ID), failure.ErrNotFound)

	records, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, u, records[0])

	got, err := s.Record(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestRecords_EncryptedAtRest(t *testing.T) {
	ctx := t.Context()
	v, repo := newTestVault(t)
	s, err := v.Unlock(ctx, testPassphrase)
	require.NoError(t, err)
	require.NoError(t, s.ConfirmRecoverySaved())

	_, err = s.AddRecord(ctx, NewRecord{Site: "bank.example", Username: "alice", Password: "s3cret-pass"})
	require.NoError(t, err)
	first, err := repo.Get(SlotEncryptedVault)
	require.NoError(t, err)
	assert.NotContains(t, first, "s3cret-pass")

	_, err = s.AddRecord(ctx, NewRecord{Site: "mail.example", Username: "alice", Password: "another"})
	require.NoError(t, err)
	second, err := repo.Get(SlotEncryptedVault)
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "every mutation writes a new envelope")

	plain, err := crypto.Decrypt(second, testPassphrase)
	require.NoError(t, err)
	assert.Contains(t, string(plain), `"site":"mail.example"`)
}

func TestAttachTOTP(t *testing.T) {
	ctx := t.Context()
	_, s, _ := enrollTestVault(t)
	r, err := s.AddRecord(ctx, NewRecord{Site: "example.com", Username: "alice", Password: "hunter2"})
	require.NoError(t, err)

	secret, err := totp.GenerateSecret()
	require.NoError(t, err)
	code, err := totp.CodeAt(secret, fixedNow)
	require.NoError(t, err)

	_, err = s.AttachTOTP(ctx, r.ID, secret, "000000")
	if code.Value != "000000" {
		assert.ErrorIs(t, err, failure.ErrAuthFailure)
	}

	got, err := s.AttachTOTP(ctx, r.ID, secret, code.Value)
	require.NoError(t, err)
	assert.Equal(t, secret, got.TOTPSecret)

	current, err := s.TOTPCode(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, code, current)

	assert.Contains(t, s.ProvisioningURI(secret, "alice"), "otpauth://totp/Lockbox%3Aalice?secret="+secret)

	none := ""
	_, err = s.UpdateRecord(ctx, r.ID, RecordUpdate{TOTPSecret: &none})
	require.NoError(t, err)
	_, err = s.TOTPCode(ctx, r.ID)
	assert.ErrorIs(t, err, failure.ErrNotFound)
}

func TestChangePassphrase(t *testing.T) {
	ctx := t.Context()
	v, s, oldKey := enrollTestVault(t)
	_, err := s.AddRecord(ctx, NewRecord{Site: "example.com", Username: "alice", Password: "hunter2"})
	require.NoError(t, err)

	assert.ErrorIs(t, s.ChangePassphrase(ctx, "too short"), failure.ErrPolicyViolation)

	const newPassphrase = "a completely different passphrase"
	require.NoError(t, s.ChangePassphrase(ctx, newPassphrase))
	assert.Equal(t, AwaitingFirstEnrollment, s.State())
	newKey, err := s.RecoveryKey()
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, newKey)
	require.NoError(t, s.ConfirmRecoverySaved())

	_, err = v.Unlock(ctx, testPassphrase)
	assert.ErrorIs(t, err, failure.ErrWrongPassphrase)

	s2, err := v.Unlock(ctx, newPassphrase)
	require.NoError(t, err)
	records, err := s2.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "hunter2", records[0].Password)

	_, err = v.RecoverAccount(ctx, oldKey)
	assert.ErrorIs(t, err, failure.ErrAuthFailure)
	_, err = v.RecoverAccount(ctx, newKey)
	assert.NoError(t, err)
}

func TestRecovery_ResetsGateAndOrphansPayload(t *testing.T) {
	ctx := t.Context()
	v, s, rk := enrollTestVault(t)
	_, err := s.AddRecord(ctx, NewRecord{Site: "example.com", Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
	s.Lock()

	rec, err := v.RecoverAccount(ctx, rk)
	require.NoError(t, err)

	_, err = v.SetNewMasterPassword(ctx, rec, "short")
	assert.ErrorIs(t, err, failure.ErrPolicyViolation)

	const newPassphrase = "my brand new passphrase"
	s2, err := v.SetNewMasterPassword(ctx, rec, newPassphrase)
	require.NoError(t, err)
	assert.Equal(t, AwaitingFirstEnrollment, s2.State())
	newKey, err := s2.RecoveryKey()
	require.NoError(t, err)
	assert.NotEqual(t, rk, newKey)
	require.NoError(t, s2.ConfirmRecoverySaved())

	// Single use.
	_, err = v.SetNewMasterPassword(ctx, rec, "yet another passphrase")
	assert.ErrorIs(t, err, failure.ErrAuthFailure)
	// The used key belongs to a replaced envelope.
	_, err = v.RecoverAccount(ctx, rk)
	assert.ErrorIs(t, err, failure.ErrAuthFailure)

	records, err := s2.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	has, err := v.HasOrphaned(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	_, err = s2.ReclaimOrphaned(ctx, "not the old passphrase")
	assert.ErrorIs(t, err, failure.ErrAuthFailure)

	_, err = s2.AddRecord(ctx, NewRecord{Site: "new.example", Username: "alice", Password: "fresh"})
	require.NoError(t, err)

	n, err := s2.ReclaimOrphaned(ctx, testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err = s2.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].ID, records[1].ID)
	assert.Equal(t, "hunter2", records[1].Password)

	has, err = v.HasOrphaned(ctx)
	require.NoError(t, err)
	assert.False(t, has)
	_, err = s2.ReclaimOrphaned(ctx, testPassphrase)
	assert.ErrorIs(t, err, failure.ErrNotFound)
}

func TestRecoverAccount_MissingEnvelopeIsPermanent(t *testing.T) {
	ctx := t.Context()
	v, repo := newTestVault(t)
	rk, err := crypto.GenerateRecoveryKey()
	require.NoError(t, err)

	_, err = v.RecoverAccount(ctx, rk)
	require.ErrorIs(t, err, failure.ErrIrrecoverableLoss)
	assert.True(t, failure.KindOf(err).Permanent())

	require.NoError(t, repo.Put(SlotRecoveryEnvelope, "garbage"))
	_, err = v.RecoverAccount(ctx, rk)
	assert.ErrorIs(t, err, failure.ErrAuthFailure)
}

func TestReset(t *testing.T) {
	ctx := t.Context()
	v, repo := newTestVault(t)
	s, err := v.Unlock(ctx, testPassphrase)
	require.NoError(t, err)
	require.NoError(t, s.ConfirmRecoverySaved())

	require.NoError(t, v.Reset(ctx))
	for _, slot := range []string{SlotMasterHash, SlotRecoveryEnvelope, SlotEncryptedVault} {
		_, err := repo.Get(slot)
		assert.ErrorIs(t, err, storage.ErrNotFound, slot)
	}

	s2, err := v.Unlock(ctx, "a different passphrase")
	require.NoError(t, err)
	assert.Equal(t, AwaitingFirstEnrollment, s2.State())
}

func TestUnlock_ContextCancelled(t *testing.T) {
	v, _ := newTestVault(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := v.Unlock(ctx, testPassphrase)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_ConcurrentAdds(t *testing.T) {
	ctx := t.Context()
	_, s, _ := enrollTestVault(t)

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			_, err := s.AddRecord(ctx, NewRecord{Site: "example.com", Username: "alice", Password: "hunter2"})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	records, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 4)
}
