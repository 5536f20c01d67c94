// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"maps"
	"sync"

	"github.com/jmcleod/lockbox/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Repository struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]string)}
}

func (r *Repository) Get(slot string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[slot]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (r *Repository) Put(slot, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[slot] = value
	return nil
}

func (r *Repository) Delete(slot string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, slot)
	return nil
}

func (r *Repository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.data)
	return nil
}

// Batch executes fn within a batch transaction. On error, all writes are rolled back.
func (r *Repository) Batch(fn func(tx storage.BatchTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := maps.Clone(r.data)
	if err := fn(&memoryBatchTx{data: r.data}); err != nil {
		r.data = snapshot
		return err
	}
	return nil
}

type memoryBatchTx struct {
	data map[string]string
}

func (tx *memoryBatchTx) Put(slot, value string) error {
	tx.data[slot] = value
	return nil
}

func (tx *memoryBatchTx) Delete(slot string) error {
	delete(tx.data, slot)
	return nil
}
