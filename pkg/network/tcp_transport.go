package network

import (
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"
)

// TCPTransport allows network communication over TCP.
type TCPTransport struct {
	server   *Server
	listener net.Listener
	bindAddr string
	lock     sync.RWMutex
	quit     bool
	log      *zap.Logger
}

// NewTCPTransport returns a new TCPTransport that will listen for new
// incoming peer connections.
func NewTCPTransport(s *Server, bindAddr string, log *zap.Logger) *TCPTransport {
	return &TCPTransport{
		log:      log,
		server:   s,
		bindAddr: bindAddr,
	}
}

// Accept binds the listener and starts accepting connections. The bind error
// is reported through the server's error channel; accept errors after Close
// end the loop silently.
func (t *TCPTransport) Accept() {
	l, err := net.Listen("tcp", t.bindAddr)
	if err != nil {
		t.log.Error("failed to bind listener", zap.String("addr", t.bindAddr), zap.Error(err))
		t.server.reportError(err)
		return
	}

	t.lock.Lock()
	if t.quit {
		t.lock.Unlock()
		_ = l.Close()
		return
	}
	t.listener = l
	t.lock.Unlock()
	t.server.setAnnouncedAddr(l.Addr().String())

	for {
		conn, err := l.Accept()
		if err != nil {
			t.lock.RLock()
			quit := t.quit
			t.lock.RUnlock()
			if !quit && !errors.Is(err, net.ErrClosed) {
				t.log.Warn("TCP accept error", zap.Error(err))
				continue
			}
			return
		}
		t.server.addPeer(NewTCPPeer(conn, t.server))
	}
}

// Close closes the listener and stops the accept loop.
func (t *TCPTransport) Close() {
	t.lock.Lock()
	t.quit = true
	l := t.listener
	t.lock.Unlock()
	if l != nil {
		_ = l.Close()
	}
}

// Addr returns the bound listener address, empty before Accept succeeds.
func (t *TCPTransport) Addr() string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}
