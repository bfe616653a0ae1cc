package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetline/msggate/internal/docstore"
	"github.com/fleetline/msggate/internal/docstore/bolt"
)

func openTestStore(t *testing.T) *bolt.Store {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := bolt.Open("  ")
	require.Error(t, err)
}

func TestMergeGetRoundTrip(t *testing.T) {
	store := openTestStore(t)

	err := store.Merge(context.Background(), "acme", docstore.Patch{
		Status:        docstore.Ptr(docstore.StatusReady),
		InstanceName:  docstore.Ptr("vm-1"),
		SecretCounter: docstore.Ptr(2),
	})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "vm-1", got.InstanceName)
	assert.Equal(t, 2, got.SecretCounter)
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestMergeUpsertsAndPreserves(t *testing.T) {
	store := openTestStore(t)

	err := store.Merge(context.Background(), "acme", docstore.Patch{
		SecretCounter: docstore.Ptr(9),
	})
	require.NoError(t, err)

	err = store.Merge(context.Background(), "acme", docstore.Patch{
		Status:       docstore.Ptr(docstore.StatusReady),
		InstanceName: docstore.Ptr("vm-2"),
	})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, docstore.StatusReady, got.Status)
	assert.Equal(t, "vm-2", got.InstanceName)
	assert.Equal(t, 9, got.SecretCounter)
}

func TestList(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Merge(context.Background(), "a", docstore.Patch{}))
	require.NoError(t, store.Merge(context.Background(), "b", docstore.Patch{}))

	recs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
