package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryLastConnectWins(t *testing.T) {
	r := NewRegistry()
	h1 := newFakeClient("c1", "u1")
	h2 := newFakeClient("c2", "u1")

	require.Nil(t, r.Register("u1", h1))
	prev := r.Register("u1", h2)
	require.Same(t, h1, prev)
	require.False(t, h1.isClosed(), "registry must not close the superseded handle")

	got, ok := r.Resolve("u1")
	require.True(t, ok)
	require.Same(t, h2, got)
	require.True(t, r.Current(h2))
	require.False(t, r.Current(h1))
	require.Equal(t, 1, r.Len())
}

func TestRegistryRegisterSameHandleTwice(t *testing.T) {
	r := NewRegistry()
	h := newFakeClient("c1", "u1")
	require.Nil(t, r.Register("u1", h))
	require.Nil(t, r.Register("u1", h))
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", newFakeClient("c1", "u1"))
	r.Register("u2", newFakeClient("c2", "u2"))

	r.Remove("u1")
	r.Remove("u1")
	r.Remove("nobody")

	_, ok := r.Resolve("u1")
	require.False(t, ok)
	require.Equal(t, []string{"u2"}, r.UserIDs())
}
