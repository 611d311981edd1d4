package network

import (
	"sync"
)

// Registry owns the set of active peers. The primary key is the transport
// address; role and uuid secondary indices are kept consistent with it on
// handshake and on drop. All mutations are serialized, readers extract peer
// handles before releasing the lock and never do I/O under it.
type Registry struct {
	mtx   sync.RWMutex
	peers map[string]Peer
	order []string
	roles map[string][]string
	uuids map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[string]Peer),
		roles: make(map[string][]string),
		uuids: make(map[string]string),
	}
}

// Add inserts a freshly accepted peer. It fails if the address is already
// present.
func (r *Registry) Add(p Peer) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	addr := p.Addr()
	if _, ok := r.peers[addr]; ok {
		return Errorf(KindInternal, "peer %s: %w", addr, errAlreadyConnected)
	}
	r.peers[addr] = p
	r.order = append(r.order, addr)
	return nil
}

// Get returns the peer registered under addr, nil if there is none.
func (r *Registry) Get(addr string) Peer {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.peers[addr]
}

// List returns all registered peers in insertion order.
func (r *Registry) List() []Peer {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	peers := make([]Peer, 0, len(r.peers))
	for _, addr := range r.order {
		if p, ok := r.peers[addr]; ok {
			peers = append(peers, p)
		}
	}
	return peers
}

// Count returns the number of registered peers.
func (r *Registry) Count() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.peers)
}

// Handshake records the identity claimed by the peer on addr and reindexes
// it. A repeated handshake replaces the previous identity, the stale uuid
// and role entries are evicted.
func (r *Registry) Handshake(addr string, uuid string, role string, handles []string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	p, ok := r.peers[addr]
	if !ok {
		return Errorf(KindInternal, "handshake from unregistered peer %s", addr)
	}
	if uuid != "" {
		if prev, ok := r.uuids[uuid]; ok && prev != addr {
			return Errorf(KindRegistration, "uuid %q already claimed by %s", uuid, prev)
		}
	}
	oldUUID, oldRole := p.Identity()
	if oldRole != "" {
		r.roles[oldRole] = removeString(r.roles[oldRole], addr)
		if len(r.roles[oldRole]) == 0 {
			delete(r.roles, oldRole)
		}
	}
	if oldUUID != "" && r.uuids[oldUUID] == addr {
		delete(r.uuids, oldUUID)
	}
	p.SetIdentity(uuid, role, handles)
	if role != "" {
		r.roles[role] = append(r.roles[role], addr)
	}
	if uuid != "" {
		r.uuids[uuid] = addr
	}
	return nil
}

// ResolveUUID returns the peer that claimed the given uuid.
func (r *Registry) ResolveUUID(uuid string) Peer {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	addr, ok := r.uuids[uuid]
	if !ok {
		return nil
	}
	return r.peers[addr]
}

// ResolveRole returns the peers that claimed the given role, in handshake
// order. Resolution is deterministic for a given registry state.
func (r *Registry) ResolveRole(role string) []Peer {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	addrs := r.roles[role]
	if len(addrs) == 0 {
		return nil
	}
	peers := make([]Peer, 0, len(addrs))
	for _, addr := range addrs {
		if p, ok := r.peers[addr]; ok {
			peers = append(peers, p)
		}
	}
	return peers
}

// Drop removes the peer from the primary map and both secondary indices,
// fires its close signal and runs its exit callbacks. It tolerates repeated
// calls and calls racing the close signal; the bool result reports whether
// this call removed the peer. An exit callback failure is returned but the
// drop still completes.
func (r *Registry) Drop(addr string, reason error) (Peer, bool, error) {
	r.mtx.Lock()
	p, ok := r.peers[addr]
	if !ok {
		r.mtx.Unlock()
		return nil, false, nil
	}
	delete(r.peers, addr)
	r.order = removeString(r.order, addr)
	uuid, role := p.Identity()
	if role != "" {
		r.roles[role] = removeString(r.roles[role], addr)
		if len(r.roles[role]) == 0 {
			delete(r.roles, role)
		}
	}
	if uuid != "" && r.uuids[uuid] == addr {
		delete(r.uuids, uuid)
	}
	r.mtx.Unlock()

	p.Close(reason)
	return p, true, p.RunExitCallbacks()
}

func removeString(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

