package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAdd(t *testing.T) {
	r := NewRegistry()
	p := newFakePeer("127.0.0.1:1111")
	require.NoError(t, r.Add(p))
	assert.Equal(t, 1, r.Count())
	assert.Same(t, Peer(p), r.Get(p.Addr()))

	require.Error(t, r.Add(newFakePeer("127.0.0.1:1111")))
	assert.Equal(t, 1, r.Count())
}

func TestRegistryHandshakeIndices(t *testing.T) {
	r := NewRegistry()
	a := newFakePeer("127.0.0.1:1111")
	b := newFakePeer("127.0.0.1:2222")
	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))

	require.NoError(t, r.Handshake(a.Addr(), "A", "cli", nil))
	require.NoError(t, r.Handshake(b.Addr(), "B", "player", []string{"play"}))

	assert.Same(t, Peer(a), r.ResolveUUID("A"))
	assert.Same(t, Peer(b), r.ResolveUUID("B"))
	require.Len(t, r.ResolveRole("player"), 1)
	assert.True(t, b.ServesHandle("play"))
	assert.True(t, a.Handshaked())

	// Unknown identities resolve to nothing.
	assert.Nil(t, r.ResolveUUID("C"))
	assert.Empty(t, r.ResolveRole("search"))

	// A uuid claimed by another peer is rejected.
	err := r.Handshake(a.Addr(), "B", "cli", nil)
	require.Error(t, err)
	assert.Equal(t, KindRegistration, KindOf(err))
}

func TestRegistryReHandshakeOverwrites(t *testing.T) {
	r := NewRegistry()
	p := newFakePeer("127.0.0.1:1111")
	require.NoError(t, r.Add(p))
	require.NoError(t, r.Handshake(p.Addr(), "A", "cli", []string{"one"}))
	require.NoError(t, r.Handshake(p.Addr(), "A2", "player", nil))

	assert.Nil(t, r.ResolveUUID("A"))
	assert.Same(t, Peer(p), r.ResolveUUID("A2"))
	assert.Empty(t, r.ResolveRole("cli"))
	require.Len(t, r.ResolveRole("player"), 1)
	assert.False(t, p.ServesHandle("one"))
}

func TestRegistryRoleOrderDeterministic(t *testing.T) {
	r := NewRegistry()
	peers := []*fakePeer{
		newFakePeer("127.0.0.1:1111"),
		newFakePeer("127.0.0.1:2222"),
		newFakePeer("127.0.0.1:3333"),
	}
	for _, p := range peers {
		require.NoError(t, r.Add(p))
		require.NoError(t, r.Handshake(p.Addr(), "", "player", nil))
	}
	resolved := r.ResolveRole("player")
	require.Len(t, resolved, 3)
	for i, p := range peers {
		assert.Same(t, Peer(p), resolved[i])
	}
}

func TestRegistryDrop(t *testing.T) {
	r := NewRegistry()
	p := newFakePeer("127.0.0.1:1111")
	require.NoError(t, r.Add(p))
	require.NoError(t, r.Handshake(p.Addr(), "A", "cli", nil))

	calls := 0
	p.OnExit(func() error {
		calls++
		return nil
	})
	p.OnExit(func() error {
		calls++
		return errors.New("boom")
	})

	reason := errors.New("test drop")
	dropped, ok, err := r.Drop(p.Addr(), reason)
	require.True(t, ok)
	require.Error(t, err)
	assert.Same(t, Peer(p), dropped)
	assert.Equal(t, 2, calls)
	assert.True(t, p.isClosed())

	// Primary and secondary indices are all clean.
	assert.Nil(t, r.Get(p.Addr()))
	assert.Nil(t, r.ResolveUUID("A"))
	assert.Empty(t, r.ResolveRole("cli"))
	assert.Zero(t, r.Count())

	// Repeated drops and drops after close are tolerated, callbacks do
	// not run twice.
	_, ok, err = r.Drop(p.Addr(), reason)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, calls)
}
