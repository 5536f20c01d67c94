// Package bbolt provides a BBolt-backed storage repository.
package bbolt

import (
	"fmt"

	"github.com/jmcleod/lockbox/storage"
	"go.etcd.io/bbolt"
)

// DefaultBucket holds every slot.
const DefaultBucket = "lockbox"

// Store implements storage.Repository backed by a BBolt database.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db, bucket: []byte(DefaultBucket)}
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(slot string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("%s: %w", slot, storage.ErrNotFound)
		}
		data := b.Get([]byte(slot))
		if data == nil {
			return fmt.Errorf("%s: %w", slot, storage.ErrNotFound)
		}
		// data is only valid for the life of the transaction.
		value = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) Put(slot, value string) error {
	return s.Batch(func(tx storage.BatchTx) error {
		return tx.Put(slot, value)
	})
}

func (s *Store) Delete(slot string) error {
	return s.Batch(func(tx storage.BatchTx) error {
		return tx.Delete(slot)
	})
}

func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(s.bucket) == nil {
			return nil
		}
		return tx.DeleteBucket(s.bucket)
	})
}

func (s *Store) Batch(fn func(tx storage.BatchTx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return fn(&boltBatchTx{bucket: b})
	})
}

type boltBatchTx struct {
	bucket *bbolt.Bucket
}

func (tx *boltBatchTx) Put(slot, value string) error {
	return tx.bucket.Put([]byte(slot), []byte(value))
}

func (tx *boltBatchTx) Delete(slot string) error {
	return tx.bucket.Delete([]byte(slot))
}
