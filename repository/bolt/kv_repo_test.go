package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "authstate.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "pending-email", "a@b.com"))

	value, ok, err := store.Get(ctx, "pending-email")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a@b.com", value)

	require.NoError(t, store.Delete(ctx, "pending-email"))
	_, ok, err = store.Get(ctx, "pending-email")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetOverwrites(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Set(ctx, "k", "first"))
	require.NoError(t, store.Set(ctx, "k", "second"))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", value)
}

func TestEmptyValueIsPresent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Set(ctx, "k", ""))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, value)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Delete(ctx, "never-set"))
}

func TestKeys(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)

	require.NoError(t, store.Set(ctx, "verification-resend-cooldown", "1"))
	require.NoError(t, store.Set(ctx, "password-reset-cooldown", "2"))

	keys, err = store.Keys(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t,
		[]string{"verification-resend-cooldown", "password-reset-cooldown"}, keys)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "authstate.db")

	store, err := Open(path, "authstate")
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "k", "survives"))
	require.NoError(t, store.Close())

	store, err = Open(path, "authstate")
	require.NoError(t, err)
	defer store.Close()

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "survives", value)
}
