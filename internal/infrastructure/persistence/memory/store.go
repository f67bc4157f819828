// Package memory implements the kv.Store contract on a plain map.
// It is the default backend for fresh installs and the reference
// implementation the durable backends are tested against.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/kv"
)

// Store is an in-memory key-value store with atomic batch commits.
type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get implements kv.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, kv.ErrClosed
	}
	raw, ok := s.data[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// List implements kv.Store.
func (s *Store) List(_ context.Context, prefix string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, kv.ErrClosed
	}
	out := make(map[string][]byte)
	for key, raw := range s.data {
		if strings.HasPrefix(key, prefix) {
			v := make([]byte, len(raw))
			copy(v, raw)
			out[key] = v
		}
	}
	return out, nil
}

// Transact implements kv.Store. The staged batch is applied under the
// write lock, so readers never observe a half-applied commit.
func (s *Store) Transact(_ context.Context, fn func(tx kv.Tx) error) error {
	batch := &kv.Batch{}
	if err := fn(batch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kv.ErrClosed
	}
	for _, op := range batch.Ops() {
		switch op.Kind {
		case kv.OpPut:
			s.data[op.Key] = op.Value
		case kv.OpDelete:
			delete(s.data, op.Key)
		case kv.OpDeletePrefix:
			for key := range s.data {
				if strings.HasPrefix(key, op.Key) {
					delete(s.data, key)
				}
			}
		}
	}
	return nil
}

// Close implements kv.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored keys. Handy in tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
