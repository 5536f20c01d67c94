// Package postgres implements storage.Repository backed by PostgreSQL.
//
// Every slot is one row in the slots table keyed by name. Batches run in a
// single transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/lockbox/storage"
)

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string, ensures
// the schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const (
	upsertSQL = `INSERT INTO slots (name, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET value = $2, updated_at = now()`
	deleteSQL = `DELETE FROM slots WHERE name = $1`
)

func (s *Store) Get(slot string) (string, error) {
	var value string
	err := s.pool.QueryRow(context.Background(),
		`SELECT value FROM slots WHERE name = $1`, slot).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", slot, storage.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) Put(slot, value string) error {
	_, err := s.pool.Exec(context.Background(), upsertSQL, slot, value)
	return err
}

func (s *Store) Delete(slot string) error {
	_, err := s.pool.Exec(context.Background(), deleteSQL, slot)
	return err
}

func (s *Store) Clear() error {
	_, err := s.pool.Exec(context.Background(), `DELETE FROM slots`)
	return err
}

func (s *Store) Batch(fn func(tx storage.BatchTx) error) error {
	pgTx, err := s.pool.Begin(context.Background())
	if err != nil {
		return err
	}
	defer pgTx.Rollback(context.Background()) //nolint:errcheck

	if err := fn(&pgBatchTx{tx: pgTx}); err != nil {
		return err
	}
	return pgTx.Commit(context.Background())
}

type pgBatchTx struct {
	tx pgx.Tx
}

var _ storage.BatchTx = (*pgBatchTx)(nil)

func (btx *pgBatchTx) Put(slot, value string) error {
	_, err := btx.tx.Exec(context.Background(), upsertSQL, slot, value)
	return err
}

func (btx *pgBatchTx) Delete(slot string) error {
	_, err := btx.tx.Exec(context.Background(), deleteSQL, slot)
	return err
}
