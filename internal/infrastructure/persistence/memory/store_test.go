package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/kv"
)

func TestStore_GetPutRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_, err := store.Get(ctx, "progress")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	err = store.Transact(ctx, func(tx kv.Tx) error {
		tx.Put("progress", []byte(`{"xp":100}`))
		return nil
	})
	require.NoError(t, err)

	raw, err := store.Get(ctx, "progress")
	require.NoError(t, err)
	assert.Equal(t, `{"xp":100}`, string(raw))
}

func TestStore_TransactIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	boom := errors.New("boom")
	err := store.Transact(ctx, func(tx kv.Tx) error {
		tx.Put("a", []byte("1"))
		tx.Put("b", []byte("2"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, kv.ErrNotFound, "failed transaction must write nothing")
	assert.Equal(t, 0, store.Len())
}

func TestStore_ListByPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Transact(ctx, func(tx kv.Tx) error {
		tx.Put("completion:bug-1", []byte("a"))
		tx.Put("completion:bug-2", []byte("b"))
		tx.Put("unlock:first_fix", []byte("c"))
		return nil
	}))

	out, err := store.List(ctx, "completion:")
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Contains(t, out, "completion:bug-1")
	assert.NotContains(t, out, "unlock:first_fix")
}

func TestStore_DeleteAndDeletePrefix(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Transact(ctx, func(tx kv.Tx) error {
		tx.Put("progress", []byte("p"))
		tx.Put("completion:bug-1", []byte("a"))
		tx.Put("completion:bug-2", []byte("b"))
		return nil
	}))

	require.NoError(t, store.Transact(ctx, func(tx kv.Tx) error {
		tx.Delete("progress")
		tx.DeletePrefix("completion:")
		return nil
	}))

	assert.Equal(t, 0, store.Len())
}

func TestStore_DeletePrefixThenPutInSameBatch(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Transact(ctx, func(tx kv.Tx) error {
		tx.Put("completion:bug-1", []byte("old"))
		return nil
	}))

	// Reset and first new write in one commit: the put must survive.
	require.NoError(t, store.Transact(ctx, func(tx kv.Tx) error {
		tx.DeletePrefix("completion:")
		tx.Put("completion:bug-9", []byte("new"))
		return nil
	}))

	raw, err := store.Get(ctx, "completion:bug-9")
	require.NoError(t, err)
	assert.Equal(t, "new", string(raw))
	assert.Equal(t, 1, store.Len())
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Close())

	_, err := store.Get(ctx, "x")
	assert.ErrorIs(t, err, kv.ErrClosed)
	err = store.Transact(ctx, func(tx kv.Tx) error { tx.Put("x", nil); return nil })
	assert.ErrorIs(t, err, kv.ErrClosed)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Transact(ctx, func(tx kv.Tx) error {
		tx.Put("k", []byte("abc"))
		return nil
	}))

	raw, err := store.Get(ctx, "k")
	require.NoError(t, err)
	raw[0] = 'X'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}
