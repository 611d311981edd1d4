package network

import (
	"encoding/json"
	"net"
	"sync"
)

// fakePeer implements the Peer interface for registry and router tests,
// recording everything enqueued on it.
type fakePeer struct {
	addr string

	mtx      sync.Mutex
	frames   [][]byte
	uuid     string
	role     string
	handles  map[string]struct{}
	shook    bool
	closed   bool
	reason   error
	exitFns  []func() error
	exitDone bool
	dropped  bool

	done chan struct{}
}

func newFakePeer(addr string) *fakePeer {
	return &fakePeer{
		addr: addr,
		done: make(chan struct{}),
	}
}

func (p *fakePeer) Addr() string { return p.addr }

func (p *fakePeer) RemoteAddr() net.Addr {
	a, _ := net.ResolveTCPAddr("tcp", p.addr)
	return a
}

func (p *fakePeer) Identity() (string, string) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.uuid, p.role
}

func (p *fakePeer) SetIdentity(uuid string, role string, handles []string) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.uuid, p.role = uuid, role
	p.handles = nil
	if len(handles) > 0 {
		p.handles = make(map[string]struct{})
		for _, h := range handles {
			p.handles[h] = struct{}{}
		}
	}
	p.shook = true
}

func (p *fakePeer) ServesHandle(name string) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	_, ok := p.handles[name]
	return ok
}

func (p *fakePeer) ExportsHandles() bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return len(p.handles) > 0
}

func (p *fakePeer) Handshaked() bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.shook
}

func (p *fakePeer) EnqueueFrame(frame []byte) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.closed {
		return Errorf(KindRecoverable, "enqueue to %s: %w", p.addr, errQueueClosed)
	}
	p.frames = append(p.frames, frame)
	return nil
}

func (p *fakePeer) EnqueueMessage(v any) error {
	frame, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.EnqueueFrame(frame)
}

func (p *fakePeer) OnExit(f func() error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.exitFns = append(p.exitFns, f)
}

func (p *fakePeer) RunExitCallbacks() error {
	p.mtx.Lock()
	if p.exitDone {
		p.mtx.Unlock()
		return nil
	}
	p.exitDone = true
	fns := p.exitFns
	p.mtx.Unlock()
	var first error
	for _, f := range fns {
		if err := f(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (p *fakePeer) Close(reason error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.reason = reason
	close(p.done)
}

func (p *fakePeer) Done() <-chan struct{} { return p.done }

func (p *fakePeer) sentFrames() [][]byte {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return append([][]byte(nil), p.frames...)
}

func (p *fakePeer) isClosed() bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.closed
}
