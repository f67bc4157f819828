// Package kv defines the durable store contract the engine persists
// through. The engine is the only writer: backends do not need MVCC or
// cross-process locking, only an all-or-nothing commit for one batch
// of writes.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key has no value.
	ErrNotFound = errors.New("kv: key not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("kv: store is closed")
)

// Tx stages writes for one atomic commit. Operations are applied in the
// order they were staged; DeletePrefix runs before puts of the same batch
// so a reset followed by fresh writes behaves as expected.
type Tx interface {
	// Put stages a write.
	Put(key string, value []byte)

	// Delete stages a single-key delete. Deleting a missing key is a no-op.
	Delete(key string)

	// DeletePrefix stages removal of every key with the prefix.
	DeletePrefix(prefix string)
}

// Store is the durable key-value contract.
type Store interface {
	// Get returns the value for a key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all key-value pairs with the given prefix.
	List(ctx context.Context, prefix string) (map[string][]byte, error)

	// Transact runs fn against a staging transaction and commits the
	// staged operations atomically. If fn returns an error nothing is
	// written. A commit error means nothing was written either.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	// Close releases backend resources. Further calls fail with ErrClosed.
	Close() error
}

// Op is one staged operation.
type Op struct {
	// Kind is the operation type.
	Kind OpKind

	// Key is the target key, or the prefix for OpDeletePrefix.
	Key string

	// Value is the payload for OpPut.
	Value []byte
}

// OpKind enumerates staged operation types.
type OpKind int

const (
	OpPut OpKind = iota
	OpDelete
	OpDeletePrefix
)

// Batch is the common Tx implementation backends hand to Transact
// callbacks. It records operations in order; the backend applies them.
type Batch struct {
	ops []Op
}

// Put implements Tx.
func (b *Batch) Put(key string, value []byte) {
	// Copy so the caller can reuse its buffer after staging.
	v := make([]byte, len(value))
	copy(v, value)
	b.ops = append(b.ops, Op{Kind: OpPut, Key: key, Value: v})
}

// Delete implements Tx.
func (b *Batch) Delete(key string) {
	b.ops = append(b.ops, Op{Kind: OpDelete, Key: key})
}

// DeletePrefix implements Tx.
func (b *Batch) DeletePrefix(prefix string) {
	b.ops = append(b.ops, Op{Kind: OpDeletePrefix, Key: prefix})
}

// Ops returns the staged operations in order.
func (b *Batch) Ops() []Op {
	return b.ops
}

// Empty reports whether nothing was staged.
func (b *Batch) Empty() bool {
	return len(b.ops) == 0
}
