// Package storagetest holds the behaviour every storage.Repository backend
// must share. Backend packages call Run from their own tests.
package storagetest

import (
	"errors"
	"testing"

	"github.com/jmcleod/lockbox/storage"
)

var errAbort = errors.New("abort batch")

// Run exercises repo. The repository must start empty.
func Run(t *testing.T, repo storage.Repository) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.Get("missing")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("PutGet", func(t *testing.T) {
		if err := repo.Put("master_hash", "abc"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := repo.Get("master_hash")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != "abc" {
			t.Errorf("expected %q, got %q", "abc", got)
		}
	})

	t.Run("LatestWins", func(t *testing.T) {
		repo.Put("encrypted_vault", "v1") //nolint:errcheck
		if err := repo.Put("encrypted_vault", "v2"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, _ := repo.Get("encrypted_vault")
		if got != "v2" {
			t.Errorf("expected v2, got %q", got)
		}
	})

	t.Run("EmptyValue", func(t *testing.T) {
		if err := repo.Put("empty", ""); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := repo.Get("empty")
		if err != nil {
			t.Fatalf("empty value should be stored, got %v", err)
		}
		if got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo.Put("to-delete", "x") //nolint:errcheck
		if err := repo.Delete("to-delete"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Get("to-delete"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := repo.Delete("never-existed"); err != nil {
			t.Errorf("deleting a missing slot should succeed, got %v", err)
		}
	})

	t.Run("BatchCommit", func(t *testing.T) {
		err := repo.Batch(func(tx storage.BatchTx) error {
			if err := tx.Put("a", "1"); err != nil {
				return err
			}
			if err := tx.Put("b", "2"); err != nil {
				return err
			}
			return tx.Delete("master_hash")
		})
		if err != nil {
			t.Fatalf("Batch failed: %v", err)
		}
		if v, _ := repo.Get("a"); v != "1" {
			t.Errorf("expected a=1, got %q", v)
		}
		if v, _ := repo.Get("b"); v != "2" {
			t.Errorf("expected b=2, got %q", v)
		}
		if _, err := repo.Get("master_hash"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected master_hash deleted, got %v", err)
		}
	})

	t.Run("BatchRollback", func(t *testing.T) {
		repo.Put("keep", "original") //nolint:errcheck
		err := repo.Batch(func(tx storage.BatchTx) error {
			tx.Put("keep", "changed")    //nolint:errcheck
			tx.Put("new-slot", "added") //nolint:errcheck
			return errAbort
		})
		if !errors.Is(err, errAbort) {
			t.Fatalf("expected errAbort, got %v", err)
		}
		if v, _ := repo.Get("keep"); v != "original" {
			t.Errorf("rollback failed: keep=%q", v)
		}
		if _, err := repo.Get("new-slot"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("rollback failed: new-slot present, err=%v", err)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		repo.Put("x", "1") //nolint:errcheck
		if err := repo.Clear(); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		for _, slot := range []string{"x", "a", "b", "keep", "encrypted_vault"} {
			if _, err := repo.Get(slot); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("expected %s cleared, got %v", slot, err)
			}
		}
		if err := repo.Put("after-clear", "ok"); err != nil {
			t.Fatalf("Put after Clear failed: %v", err)
		}
	})
}
