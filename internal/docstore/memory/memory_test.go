package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetline/msggate/internal/docstore"
	"github.com/fleetline/msggate/internal/docstore/memory"
)

func TestGetMissingRecord(t *testing.T) {
	store := memory.New()

	_, err := store.Get(context.Background(), "acme")
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestMergeAndGet(t *testing.T) {
	store := memory.New()

	err := store.Merge(context.Background(), "acme", docstore.Patch{
		Status:        docstore.Ptr(docstore.StatusReady),
		InstanceName:  docstore.Ptr("vm-1"),
		LastUpdated:   docstore.Ptr(time.Now()),
		SecretCounter: docstore.Ptr(4),
	})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "vm-1", got.InstanceName)
	assert.Equal(t, 4, got.SecretCounter)
}

func TestMergePreservesUnpatchedFields(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Merge(context.Background(), "acme", docstore.Patch{
		Status:        docstore.Ptr(docstore.StatusReady),
		InstanceName:  docstore.Ptr("vm-1"),
		SecretCounter: docstore.Ptr(7),
	}))

	err := store.Merge(context.Background(), "acme", docstore.Patch{
		Status:       docstore.Ptr(docstore.StatusDisconnected),
		InstanceName: docstore.Ptr(""),
	})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, docstore.StatusDisconnected, got.Status)
	assert.Empty(t, got.InstanceName)
	assert.Equal(t, 7, got.SecretCounter, "merge must not clobber the secret counter")
}

func TestMergeCreatesMissingRecord(t *testing.T) {
	store := memory.New()

	err := store.Merge(context.Background(), "acme", docstore.Patch{
		Status: docstore.Ptr(docstore.StatusDisconnected),
	})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.TenantID)
	assert.Equal(t, docstore.StatusDisconnected, got.Status)
}

func TestCounterDefaultsToOne(t *testing.T) {
	rec := docstore.OwnershipRecord{TenantID: "acme"}
	assert.Equal(t, 1, rec.Counter())

	rec.SecretCounter = 3
	assert.Equal(t, 3, rec.Counter())
}

func TestList(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Merge(context.Background(), "a", docstore.Patch{}))
	require.NoError(t, store.Merge(context.Background(), "b", docstore.Patch{}))

	recs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
