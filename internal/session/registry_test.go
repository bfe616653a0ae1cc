package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryPutGetRemove(t *testing.T) {
	r := NewRegistry()
	s := &Session{TenantID: "acme", state: StateInitializing}

	r.put(s)

	got, ok := r.Get("acme")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.remove("acme"))
	assert.False(t, r.remove("acme"), "second remove reports absence")
	_, ok = r.Get("acme")
	assert.False(t, ok)
}

func TestRegistryPutReplaces(t *testing.T) {
	r := NewRegistry()
	r.put(&Session{TenantID: "acme"})
	replacement := &Session{TenantID: "acme"}
	r.put(replacement)

	got, ok := r.Get("acme")
	require.True(t, ok)
	assert.Same(t, replacement, got)
	assert.Equal(t, 1, r.Len(), "at most one session per tenant")
}

func TestRegistryListAndEvict(t *testing.T) {
	r := NewRegistry()
	r.put(&Session{TenantID: "a"})
	r.put(&Session{TenantID: "b"})

	assert.Len(t, r.List(), 2)

	assert.True(t, r.Evict("a"))
	assert.False(t, r.Evict("a"))
	assert.Equal(t, 1, r.Len())
}
