// Package sqlite implements storage.Repository on a single SQLite file using
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmcleod/lockbox/storage"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `CREATE TABLE IF NOT EXISTS slots (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=FULL",
	"PRAGMA busy_timeout=5000",
}

// Store implements storage.Repository backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Repository = (*Store)(nil)

// Open opens (creating if needed) the database at path and ensures the
// schema exists. Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serialises
	// writers on file databases.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(slot string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM slots WHERE name = ?`, slot).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", slot, storage.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) Put(slot, value string) error {
	_, err := s.db.Exec(upsertSQL, slot, value)
	return err
}

func (s *Store) Delete(slot string) error {
	_, err := s.db.Exec(`DELETE FROM slots WHERE name = ?`, slot)
	return err
}

func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM slots`)
	return err
}

func (s *Store) Batch(fn func(tx storage.BatchTx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&sqliteBatchTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

const upsertSQL = `INSERT INTO slots (name, value) VALUES (?, ?)
	ON CONFLICT(name) DO UPDATE SET value = excluded.value`

type sqliteBatchTx struct {
	tx *sql.Tx
}

func (b *sqliteBatchTx) Put(slot, value string) error {
	_, err := b.tx.Exec(upsertSQL, slot, value)
	return err
}

func (b *sqliteBatchTx) Delete(slot string) error {
	_, err := b.tx.Exec(`DELETE FROM slots WHERE name = ?`, slot)
	return err
}
