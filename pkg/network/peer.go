package network

import (
	"net"
)

// Peer represents one connected app. The registry is the only owner of
// peers, everything else works through shared handles extracted from it.
type Peer interface {
	// Addr is the peer's transport address, the registry primary key.
	Addr() string
	// RemoteAddr returns the remote endpoint of the connection.
	RemoteAddr() net.Addr
	// Identity returns the uuid and role claimed at handshake, both empty
	// until then.
	Identity() (uuid string, role string)
	// SetIdentity records the handshake identity and exported handles.
	SetIdentity(uuid string, role string, handles []string)
	// ServesHandle tells whether the peer exported the named handle.
	ServesHandle(name string) bool
	// ExportsHandles tells whether the peer exported any handles at all.
	ExportsHandles() bool
	// Handshaked tells whether the peer has completed a handshake.
	Handshaked() bool
	// EnqueueFrame puts an encoded frame on the write queue. It never
	// blocks and fails only when the peer is being dropped.
	EnqueueFrame(frame []byte) error
	// EnqueueMessage encodes v and puts it on the write queue.
	EnqueueMessage(v any) error
	// OnExit registers a callback run exactly once when the peer is
	// dropped.
	OnExit(f func() error)
	// RunExitCallbacks runs the registered exit callbacks once, returning
	// the first error. Subsequent calls are no-ops.
	RunExitCallbacks() error
	// Close fires the close signal. It is idempotent, the first reason
	// wins.
	Close(reason error)
	// Done is closed once the close signal has fired.
	Done() <-chan struct{}
}
