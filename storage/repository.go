// Package storage provides the slot store the vault persists into. A slot is
// a named string value; the vault keeps its verifier hash, encrypted payload
// and recovery envelope in separate slots.
package storage

import "errors"

// ErrNotFound is returned by Get when a slot has never been written or has
// been deleted.
var ErrNotFound = errors.New("slot not found")

// BatchTx writes slots within an atomic transaction. Either every write in
// the batch is persisted or none is.
type BatchTx interface {
	Put(slot, value string) error
	Delete(slot string) error
}

// Repository is a durable map of slot name to string value. The latest
// successful write to a slot wins. Deleting a missing slot is not an error.
type Repository interface {
	Get(slot string) (string, error)
	Put(slot, value string) error
	Delete(slot string) error
	Batch(fn func(tx BatchTx) error) error
	// Clear removes every slot.
	Clear() error
}
