package rpc

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pai-dev/pai-go/pkg/network"
)

// RegisterAppArgs is the register_app argument schema.
type RegisterAppArgs struct {
	Handles []string `json:"handles"`
}

// RegisterAppResponse lists the method names that were actually installed.
// Partial success is permitted, the caller sees which names succeeded.
type RegisterAppResponse struct {
	Registered []string `json:"registered"`
}

// RegistrationService implements the reserved register_app method: peers
// list methods they will serve and the dispatcher forwards matching calls
// to them through the in-flight table.
type RegistrationService struct {
	registry *Dispatcher
	clients  *network.Registry
	router   *Inflight
	log      *zap.Logger
}

// NewRegistrationService wires the dispatcher, the peer registry and the
// in-flight table together.
func NewRegistrationService(registry *Dispatcher, clients *network.Registry, router *Inflight, log *zap.Logger) *RegistrationService {
	return &RegistrationService{
		registry: registry,
		clients:  clients,
		router:   router,
		log:      log,
	}
}

// RegisterEndpoints implements the Service interface.
func (s *RegistrationService) RegisterEndpoints(r Registry) error {
	return r.Register(RegisterAppMethod, s.registerApp)
}

func (s *RegistrationService) registerApp(ctx context.Context, caller string, req *Message) (any, error) {
	var args RegisterAppArgs
	if err := req.UnmarshalArgs(&args); err != nil {
		return nil, err
	}
	server := s.clients.Get(caller)
	if server == nil {
		return nil, fmt.Errorf("no registered client for %s", caller)
	}

	var registered []string
	for _, handle := range args.Handles {
		// A failed registration is not an error here: it is the app's
		// responsibility to notice a handle it requested is missing
		// from the response and fail if it must have it.
		if err := s.registry.Register(handle, s.forwarder(server)); err != nil {
			s.log.Warn("skipping handle registration",
				zap.String("addr", caller),
				zap.Error(err))
			continue
		}
		registered = append(registered, handle)
	}
	// Registering methods doubles as the handshake in dispatcher mode:
	// the peer is handshook and its exported handles are recorded.
	uuid, role := server.Identity()
	server.SetIdentity(uuid, role, registered)
	server.OnExit(s.releaseHandles(caller, registered))
	s.log.Info("registered app handles",
		zap.String("addr", caller),
		zap.Strings("handles", registered))
	return RegisterAppResponse{Registered: registered}, nil
}

// forwarder builds the dispatcher callback forwarding calls for one handle
// to the app peer serving it. The in-flight entry is created before the
// request is enqueued so the response cannot race the registration.
func (s *RegistrationService) forwarder(app network.Peer) Handler {
	appAddr := app.Addr()
	return func(ctx context.Context, caller string, req *Message) (any, error) {
		frame, err := req.Encode()
		if err != nil {
			return nil, err
		}
		continuation := s.router.Wait(req.MsgID, caller, appAddr)
		if err := app.EnqueueFrame(frame); err != nil {
			s.router.Forget(req.MsgID)
			return nil, fmt.Errorf("receiving end for server %s dropped", appAddr)
		}
		select {
		case resp, ok := <-continuation:
			if !ok {
				return nil, fmt.Errorf("Server disconnected while handling request to %s", req.MsgID)
			}
			return resp.Resp, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// releaseHandles builds the exit callback unregistering everything the app
// registered once it disconnects.
func (s *RegistrationService) releaseHandles(addr string, handles []string) func() error {
	return func() error {
		var err error
		for _, handle := range handles {
			if !s.registry.Unregister(handle) {
				err = fmt.Errorf("handle %q already released at deregistration of %s", handle, addr)
			}
		}
		return err
	}
}
