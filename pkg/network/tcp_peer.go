package network

import (
	"encoding/json"
	"net"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/pai-dev/pai-go/pkg/network/wqueue"
)

// Peer session states.
const (
	stateConnected int32 = iota
	stateHandshook
	stateClosing
	stateClosed
)

// TCPPeer is one accepted TCP connection. Three concurrent activities drive
// it: the read loop, the write loop and the close watcher built into
// Close/Done.
type TCPPeer struct {
	conn   net.Conn
	server *Server
	addr   string

	queue  *wqueue.Queue[[]byte]
	state  *atomic.Int32
	closed *atomic.Bool
	done   chan struct{}
	reason *atomic.Error

	identMtx sync.RWMutex
	uuid     string
	role     string
	handles  map[string]struct{}

	exitMtx  sync.Mutex
	exitFns  []func() error
	exitDone bool

	log *zap.Logger
}

var _ Peer = (*TCPPeer)(nil)

// NewTCPPeer returns a TCPPeer for the given connection. The server may be
// nil in tests, then close notifications go nowhere.
func NewTCPPeer(conn net.Conn, s *Server) *TCPPeer {
	log := zap.NewNop()
	if s != nil {
		log = s.log
	}
	return &TCPPeer{
		conn:   conn,
		server: s,
		addr:   conn.RemoteAddr().String(),
		queue:  wqueue.New[[]byte](),
		state:  atomic.NewInt32(stateConnected),
		closed: atomic.NewBool(false),
		done:   make(chan struct{}),
		reason: atomic.NewError(nil),
		log:    log,
	}
}

// Addr implements the Peer interface.
func (p *TCPPeer) Addr() string {
	return p.addr
}

// RemoteAddr implements the Peer interface.
func (p *TCPPeer) RemoteAddr() net.Addr {
	return p.conn.RemoteAddr()
}

// Identity implements the Peer interface.
func (p *TCPPeer) Identity() (string, string) {
	p.identMtx.RLock()
	defer p.identMtx.RUnlock()
	return p.uuid, p.role
}

// SetIdentity implements the Peer interface. The first successful identity
// moves the session into the handshook state; re-handshakes replace the
// previous identity and handle set.
func (p *TCPPeer) SetIdentity(uuid string, role string, handles []string) {
	p.identMtx.Lock()
	p.uuid = uuid
	p.role = role
	p.handles = nil
	if len(handles) > 0 {
		p.handles = make(map[string]struct{}, len(handles))
		for _, h := range handles {
			p.handles[h] = struct{}{}
		}
	}
	p.identMtx.Unlock()
	p.state.CompareAndSwap(stateConnected, stateHandshook)
}

// ServesHandle implements the Peer interface.
func (p *TCPPeer) ServesHandle(name string) bool {
	p.identMtx.RLock()
	defer p.identMtx.RUnlock()
	_, ok := p.handles[name]
	return ok
}

// ExportsHandles implements the Peer interface.
func (p *TCPPeer) ExportsHandles() bool {
	p.identMtx.RLock()
	defer p.identMtx.RUnlock()
	return len(p.handles) > 0
}

// Handshaked implements the Peer interface.
func (p *TCPPeer) Handshaked() bool {
	return p.state.Load() == stateHandshook
}

// EnqueueFrame implements the Peer interface.
func (p *TCPPeer) EnqueueFrame(frame []byte) error {
	if err := p.queue.Push(frame); err != nil {
		return Errorf(KindRecoverable, "enqueue to %s: %w", p.addr, err)
	}
	return nil
}

// EnqueueMessage implements the Peer interface.
func (p *TCPPeer) EnqueueMessage(v any) error {
	frame, err := json.Marshal(v)
	if err != nil {
		return Errorf(KindInternal, "encode outbound message for %s: %w", p.addr, err)
	}
	return p.EnqueueFrame(frame)
}

// OnExit implements the Peer interface.
func (p *TCPPeer) OnExit(f func() error) {
	p.exitMtx.Lock()
	defer p.exitMtx.Unlock()
	p.exitFns = append(p.exitFns, f)
}

// RunExitCallbacks implements the Peer interface. Callbacks must not depend
// on ordering; all of them run even when one fails, the first error is
// returned.
func (p *TCPPeer) RunExitCallbacks() error {
	p.exitMtx.Lock()
	if p.exitDone {
		p.exitMtx.Unlock()
		return nil
	}
	p.exitDone = true
	fns := p.exitFns
	p.exitFns = nil
	p.exitMtx.Unlock()

	var first error
	for _, f := range fns {
		if err := f(); err != nil && first == nil {
			first = err
		}
	}
	p.state.Store(stateClosed)
	return first
}

// Close implements the Peer interface. The first call stores the reason,
// fires the one-shot close signal, closes the queue and the socket and asks
// the server to run the drop path. Later calls are no-ops.
func (p *TCPPeer) Close(reason error) {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.reason.Store(reason)
	p.state.Store(stateClosing)
	close(p.done)
	p.queue.Close()
	_ = p.conn.Close()
	if p.server != nil {
		p.server.requestDrop(p, reason)
	}
}

// Done implements the Peer interface.
func (p *TCPPeer) Done() <-chan struct{} {
	return p.done
}

// CloseReason returns the error recorded by the first Close.
func (p *TCPPeer) CloseReason() error {
	return p.reason.Load()
}

// handleConn runs the read loop. Each decoded frame goes to the server's
// handler; fatal errors close the session, everything else was already
// answered by the handler.
func (p *TCPPeer) handleConn() {
	limit := uint32(DefaultMaxFrameSize)
	if p.server != nil && p.server.MaxFrameSize > 0 {
		limit = p.server.MaxFrameSize
	}
	var err error
	for {
		var frame []byte
		frame, err = ReadFrame(p.conn, limit)
		if err != nil {
			break
		}
		if herr := p.server.handler.ServeFrame(p, frame); herr != nil {
			if IsFatal(herr) {
				err = herr
				break
			}
			p.log.Warn("failed handling frame",
				zap.String("addr", p.addr),
				zap.Error(herr))
		}
	}
	p.Close(err)
}

// writeLoop drains the outbound queue onto the socket, one frame per queued
// message, in enqueue order. Close shuts the socket at once, so frames still
// queued at that point are not delivered: the first failed write ends the
// loop.
func (p *TCPPeer) writeLoop() {
	limit := uint32(DefaultMaxFrameSize)
	if p.server != nil && p.server.MaxFrameSize > 0 {
		limit = p.server.MaxFrameSize
	}
	for {
		frame, ok := p.queue.Pop()
		if !ok {
			return
		}
		if err := WriteFrame(p.conn, frame, limit); err != nil {
			p.Close(err)
			return
		}
	}
}
