package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/jmcleod/lockbox/storage/storagetest"
)

func TestSQLiteStorage(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "lockbox.sqlite"))
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	defer s.Close()

	storagetest.Run(t, s)
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	defer s.Close()

	storagetest.Run(t, s)
}
