package network

import (
	"context"

	"go.uber.org/zap"

	"github.com/pai-dev/pai-go/pkg/network/payload"
)

// Searcher is the filesystem index collaborator behind the manager `search`
// action.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

type actionFunc func(p Peer, env *payload.Envelope) (resp any, reply bool, err error)

// Router is the message-bus frame handler: it resolves envelope
// destinations, dispatches manager-local verbs and forwards everything else
// to peers.
type Router struct {
	server   *Server
	registry *Registry
	search   Searcher
	actions  map[string]actionFunc
	log      *zap.Logger
}

// NewRouter returns a router attached to the given server.
func NewRouter(s *Server, search Searcher, log *zap.Logger) *Router {
	r := &Router{
		server:   s,
		registry: s.Registry(),
		search:   search,
		log:      log,
	}
	r.actions = map[string]actionFunc{
		payload.ActionHandshake: r.handleHandshake,
		payload.ActionSearch:    r.handleSearch,
		payload.ActionStop:      r.handleStop,
		payload.ActionQuit:      r.handleQuit,
	}
	return r
}

// ServeFrame implements the FrameHandler interface. Decode failures close
// the session; handling failures are converted into an error envelope sent
// back to the peer.
func (r *Router) ServeFrame(p Peer, frame []byte) error {
	env, err := payload.Decode(frame)
	if err != nil {
		return NewError(KindTransport, err)
	}
	env.EnsureID()
	if env.Sender.Addr == "" {
		env.Sender.Addr = r.server.Addr()
	}
	env.Route = append(env.Route, r.server.Addr())
	r.log.Debug("got msg",
		zap.String("addr", p.Addr()),
		zap.String("action", env.Action),
		zap.String("msg_id", env.MsgID))

	if err := r.route(p, env); err != nil {
		if IsFatal(err) {
			return err
		}
		r.replyError(p, env, err)
	}
	return nil
}

// DroppedPeer implements the FrameHandler interface. Registry and queue
// cleanup already happened on the drop path.
func (r *Router) DroppedPeer(p Peer) {}

// route resolves the destination in the documented order: broadcast, uuid,
// reserved manager roles, role index.
func (r *Router) route(p Peer, env *payload.Envelope) error {
	if env.Dest.Broadcast {
		return r.broadcast(env)
	}
	if env.Dest.UUID != "" {
		if target := r.registry.ResolveUUID(env.Dest.UUID); target != nil {
			return r.forward(p, env, target)
		}
	}
	if env.Dest.Role == payload.RoleManager || env.Dest.Role == payload.RoleDevice {
		return r.local(p, env)
	}
	if env.Dest.Role != "" {
		if targets := r.registry.ResolveRole(env.Dest.Role); len(targets) > 0 {
			return r.forward(p, env, targets[0])
		}
	}
	return Errorf(KindRouting, "%w: role %q uuid %q",
		ErrUnknownDestination, env.Dest.Role, env.Dest.UUID)
}

// local dispatches a manager verb and returns the envelope to the sender
// unless the verb suppresses the reply.
func (r *Router) local(p Peer, env *payload.Envelope) error {
	fn, ok := r.actions[env.Action]
	if !ok {
		return Errorf(KindProtocol, "%w %q", ErrUnknownAction, env.Action)
	}
	resp, reply, err := fn(p, env)
	if err != nil {
		return err
	}
	if !reply {
		return nil
	}
	if resp != nil {
		if err := env.SetResp(resp); err != nil {
			return NewError(KindInternal, err)
		}
	}
	env.ReturnToSender()
	if err := p.EnqueueMessage(env); err != nil {
		r.log.Debug("failed to answer dropped peer",
			zap.String("addr", p.Addr()),
			zap.Error(err))
	}
	return nil
}

// forward sends the envelope to the resolved peer; role resolution with
// several candidates deterministically picked the first one. The ack copy,
// when requested and meaningful, is enqueued strictly after the destination
// copy.
func (r *Router) forward(p Peer, env *payload.Envelope, target Peer) error {
	if env.Action == "" {
		return Errorf(KindProtocol, "no action specified in forwarded message %s", env.MsgID)
	}
	if target.ExportsHandles() && !target.ServesHandle(env.Action) {
		_, role := target.Identity()
		return Errorf(KindRouting, "action %q is not satisfiable under a known app with role %q",
			env.Action, role)
	}
	frame, err := env.Encode()
	if err != nil {
		return NewError(KindInternal, err)
	}
	if err := target.EnqueueFrame(frame); err != nil {
		r.log.Warn("failed to forward to dropped peer",
			zap.String("addr", target.Addr()),
			zap.Error(err))
		return nil
	}
	if !env.SendAck {
		return nil
	}
	ackPeer := p
	if env.Sender.UUID != "" {
		if sender := r.registry.ResolveUUID(env.Sender.UUID); sender != nil {
			ackPeer = sender
		}
	}
	if ackPeer.Addr() == target.Addr() {
		return nil
	}
	env.Action = payload.ActionAck
	if err := ackPeer.EnqueueMessage(env); err != nil {
		r.log.Warn("failed to ack dropped peer",
			zap.String("addr", ackPeer.Addr()),
			zap.Error(err))
	}
	return nil
}

// broadcast enqueues one copy per registered peer, the sender included.
func (r *Router) broadcast(env *payload.Envelope) error {
	frame, err := env.Encode()
	if err != nil {
		return NewError(KindInternal, err)
	}
	for _, target := range r.registry.List() {
		if err := target.EnqueueFrame(frame); err != nil {
			r.log.Warn("failed to broadcast to dropped peer",
				zap.String("addr", target.Addr()),
				zap.Error(err))
		}
	}
	return nil
}

// replyError converts a handling failure into an error envelope on the
// offending peer's write queue.
func (r *Router) replyError(p Peer, env *payload.Envelope, cause error) {
	r.log.Error("failed handling message",
		zap.String("addr", p.Addr()),
		zap.String("msg_id", env.MsgID),
		zap.Error(cause))
	env.Action = "error"
	env.SetError(ErrorChain(cause))
	env.ReturnToSender()
	if err := p.EnqueueMessage(env); err != nil {
		r.log.Debug("failed to report error to dropped peer",
			zap.String("addr", p.Addr()),
			zap.Error(err))
	}
}

func (r *Router) handleHandshake(p Peer, env *payload.Envelope) (any, bool, error) {
	err := r.registry.Handshake(p.Addr(), env.Sender.UUID, env.Sender.Role, env.HandshakeHandles())
	if err != nil {
		return nil, false, err
	}
	uuid, role := p.Identity()
	r.log.Info("registered app",
		zap.String("addr", p.Addr()),
		zap.String("uuid", uuid),
		zap.String("role", role))
	return nil, true, nil
}

func (r *Router) handleSearch(p Peer, env *payload.Envelope) (any, bool, error) {
	if r.search == nil {
		return nil, false, Errorf(KindRouting, "no search index attached")
	}
	query, err := env.StringArg(0)
	if err != nil {
		return nil, false, Errorf(KindProtocol, "search: %w", err)
	}
	results, err := r.search.Search(context.Background(), query)
	if err != nil {
		return nil, false, Errorf(KindRouting, "search %q: %w", query, err)
	}
	r.log.Info("completed search",
		zap.String("query", query),
		zap.Int("results", len(results)))
	if results == nil {
		results = []string{}
	}
	return results, true, nil
}

func (r *Router) handleStop(p Peer, env *payload.Envelope) (any, bool, error) {
	r.server.DropPeer(p, errStopRequested)
	return nil, false, nil
}

// handleQuit sends close to every registered peer and shuts the server
// down. Peers are removed by their own close paths.
func (r *Router) handleQuit(p Peer, env *payload.Envelope) (any, bool, error) {
	r.log.Info("quit requested", zap.String("addr", p.Addr()))
	for _, peer := range r.registry.List() {
		peer.Close(errServerShutdown)
	}
	r.server.Shutdown()
	return nil, false, nil
}
