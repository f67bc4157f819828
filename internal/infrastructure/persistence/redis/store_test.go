package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/kv"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	store := NewStoreWithClient(client)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestStore_GetPutRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.Get(ctx, "progress")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Transact(ctx, func(tx kv.Tx) error {
		tx.Put("progress", []byte(`{"xp":250}`))
		return nil
	}))

	raw, err := store.Get(ctx, "progress")
	require.NoError(t, err)
	assert.Equal(t, `{"xp":250}`, string(raw))
}

func TestStore_KeysAreNamespaced(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	require.NoError(t, store.Transact(ctx, func(tx kv.Tx) error {
		tx.Put("wallet", []byte("w"))
		return nil
	}))

	assert.True(t, mr.Exists(Namespace+"wallet"))
	assert.False(t, mr.Exists("wallet"))
}

func TestStore_ListByPrefix(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	require.NoError(t, store.Transact(ctx, func(tx kv.Tx) error {
		tx.Put("completion:bug-1", []byte("a"))
		tx.Put("completion:bug-2", []byte("b"))
		tx.Put("unlock:first_fix", []byte("c"))
		return nil
	}))
	// Foreign keys outside the namespace must never leak into results.
	mr.Set("completion:foreign", "x")

	out, err := store.List(ctx, "completion:")
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "a", string(out["completion:bug-1"]))
	assert.Equal(t, "b", string(out["completion:bug-2"]))
}

func TestStore_TransactFnErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	err := store.Transact(ctx, func(tx kv.Tx) error {
		tx.Put("progress", []byte("p"))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, mr.Exists(Namespace+"progress"))
}

func TestStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Transact(ctx, func(tx kv.Tx) error {
		tx.Put("completion:bug-1", []byte("a"))
		tx.Put("completion:bug-2", []byte("b"))
		tx.Put("progress", []byte("p"))
		return nil
	}))

	require.NoError(t, store.Transact(ctx, func(tx kv.Tx) error {
		tx.DeletePrefix("completion:")
		return nil
	}))

	out, err := store.List(ctx, "completion:")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = store.Get(ctx, "progress")
	assert.NoError(t, err, "other keys survive a prefix delete")
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.Get(ctx, "x")
	assert.ErrorIs(t, err, kv.ErrClosed)
	err = store.Transact(ctx, func(tx kv.Tx) error { return nil })
	assert.ErrorIs(t, err, kv.ErrClosed)
}
