package network

import (
	"errors"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ServerConfig holds the Server configuration.
type ServerConfig struct {
	// BindAddress is the address:port the TCP listener binds to.
	BindAddress string
	// MaxFrameSize bounds incoming and outgoing frames. Values below the
	// protocol minimum are raised to the default.
	MaxFrameSize uint32
}

// FrameHandler consumes decoded frames on behalf of the server. The router
// and the RPC dispatcher both implement it; the mode is fixed when the
// server is built.
type FrameHandler interface {
	// ServeFrame handles one frame read from p. A fatal returned error
	// closes the session, anything else is logged and the session
	// continues.
	ServeFrame(p Peer, frame []byte) error
	// DroppedPeer is called after p has been removed from the registry so
	// the handler can clean up per-peer state.
	DroppedPeer(p Peer)
}

type peerDrop struct {
	peer   Peer
	reason error
}

// Server is the device manager hub. It owns the transport, the peer registry
// and the peer lifecycle; message semantics live in the attached
// FrameHandler.
type Server struct {
	ServerConfig

	transport *TCPTransport
	registry  *Registry
	handler   FrameHandler

	register   chan Peer
	unregister chan peerDrop
	quit       chan struct{}
	finished   chan struct{}
	shutdown   *atomic.Bool
	announced  *atomic.String
	errChan    chan<- error

	log *zap.Logger
}

// NewServer returns a new Server, initialized with the given configuration.
// A handler must be attached with SetHandler before Start.
func NewServer(config ServerConfig, log *zap.Logger) (*Server, error) {
	if log == nil {
		return nil, errors.New("logger is a required parameter")
	}
	if config.MaxFrameSize < MinFrameSizeLimit {
		config.MaxFrameSize = DefaultMaxFrameSize
	}
	s := &Server{
		ServerConfig: config,
		registry:     NewRegistry(),
		register:     make(chan Peer),
		unregister:   make(chan peerDrop),
		quit:         make(chan struct{}),
		finished:     make(chan struct{}),
		shutdown:     atomic.NewBool(false),
		announced:    atomic.NewString(config.BindAddress),
		log:          log,
	}
	s.transport = NewTCPTransport(s, config.BindAddress, log)
	return s, nil
}

// SetHandler attaches the frame handler. It must be called exactly once
// before Start.
func (s *Server) SetHandler(h FrameHandler) {
	s.handler = h
}

// Registry returns the peer registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Addr returns the address the server announces to peers. After a
// successful bind it is the concrete listener address.
func (s *Server) Addr() string {
	return s.announced.Load()
}

// Start starts the server and its underlying transport and blocks until
// Shutdown. Fatal errors (a failed bind) are delivered on errChan.
func (s *Server) Start(errChan chan<- error) {
	if s.handler == nil {
		panic("network: Start called without a frame handler")
	}
	s.errChan = errChan
	s.log.Info("device manager started", zap.String("addr", s.BindAddress))
	go s.transport.Accept()
	s.run()
}

// Shutdown disconnects all peers and stops listening. It may be called from
// any goroutine, including handler callbacks.
func (s *Server) Shutdown() {
	if s.shutdown.CompareAndSwap(false, true) {
		close(s.quit)
	}
}

// Done is closed once the server loop has drained after Shutdown.
func (s *Server) Done() <-chan struct{} {
	return s.finished
}

// DropPeer asks the server to drop the given peer. Used by the router's
// `stop` action and safe to call concurrently with shutdown.
func (s *Server) DropPeer(p Peer, reason error) {
	s.requestDrop(p, reason)
}

// addPeer hands a freshly accepted peer to the server loop.
func (s *Server) addPeer(p Peer) {
	select {
	case s.register <- p:
	case <-s.quit:
		p.Close(errServerShutdown)
	}
}

// requestDrop schedules the drop path for p without ever blocking the
// caller: the close signal can fire on the server loop itself (registry.Drop
// closes the peer), so a blocking send here would deadlock. During shutdown
// the loop is gone and the drop runs inline; dropPeer tolerates all of these
// paths racing.
func (s *Server) requestDrop(p Peer, reason error) {
	drop := peerDrop{peer: p, reason: reason}
	select {
	case s.unregister <- drop:
	case <-s.quit:
		s.dropPeer(p, reason)
	default:
		go func() {
			select {
			case s.unregister <- drop:
			case <-s.quit:
				s.dropPeer(p, reason)
			}
		}()
	}
}

func (s *Server) reportError(err error) {
	if s.errChan != nil {
		select {
		case s.errChan <- err:
		case <-s.quit:
		}
	}
}

func (s *Server) setAnnouncedAddr(addr string) {
	s.announced.Store(addr)
}

// run manages peer connects and disconnects until shutdown, then closes the
// transport and every remaining peer.
func (s *Server) run() {
	defer close(s.finished)
	for {
		select {
		case <-s.quit:
			s.transport.Close()
			for _, p := range s.registry.List() {
				s.dropPeer(p, errServerShutdown)
			}
			s.log.Info("device manager stopped")
			return
		case p := <-s.register:
			if err := s.registry.Add(p); err != nil {
				s.log.Warn("failed to register peer",
					zap.String("addr", p.Addr()),
					zap.Error(err))
				p.Close(err)
				continue
			}
			if tp, ok := p.(*TCPPeer); ok {
				go tp.handleConn()
				go tp.writeLoop()
			}
			s.log.Info("new peer connected",
				zap.String("addr", p.Addr()),
				zap.Int("peerCount", s.registry.Count()))
			updatePeersConnectedMetric(s.registry.Count())
		case drop := <-s.unregister:
			s.dropPeer(drop.peer, drop.reason)
		}
	}
}

// dropPeer runs the drop path once per peer: registry removal, close
// signal, exit callbacks and handler cleanup. It can run from the loop or
// inline during shutdown; the registry makes repeats no-ops.
func (s *Server) dropPeer(p Peer, reason error) {
	_, ok, err := s.registry.Drop(p.Addr(), reason)
	if !ok {
		return
	}
	if err != nil {
		s.log.Warn("peer exit callbacks failed",
			zap.String("addr", p.Addr()),
			zap.Error(err))
	}
	s.handler.DroppedPeer(p)
	reasonStr := "EOF"
	if reason != nil {
		reasonStr = reason.Error()
	}
	s.log.Info("peer disconnected",
		zap.String("addr", p.Addr()),
		zap.String("reason", reasonStr),
		zap.Int("peerCount", s.registry.Count()))
	updatePeersConnectedMetric(s.registry.Count())
}
