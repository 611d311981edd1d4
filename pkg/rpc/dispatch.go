package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pai-dev/pai-go/pkg/network"
)

// ErrUnknownMethod is replied when the call names no registered method.
var ErrUnknownMethod = errors.New("unknown method")

// ErrAlreadyRegistered is returned on method name collision.
var ErrAlreadyRegistered = errors.New("method already registered")

// Handler serves one method. The caller address identifies the peer the
// request arrived on. A nil result means no response is sent at all;
// otherwise the result is marshaled into the response slot. Handlers may
// block (forwarding handlers wait for the serving peer), they always run off
// the read loop.
type Handler func(ctx context.Context, caller string, req *Message) (any, error)

// Registry is the interface services register their endpoints against.
type Registry interface {
	Register(name string, h Handler) error
	Unregister(name string) bool
}

// Dispatcher maps method names to handlers. Handles are cloned out from
// under the lock before invocation, registration never blocks a running
// call.
type Dispatcher struct {
	mtx     sync.RWMutex
	handles map[string]Handler
	log     *zap.Logger
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handles: make(map[string]Handler),
		log:     log,
	}
}

// Register implements the Registry interface. A name may be registered at
// most once.
func (d *Dispatcher) Register(name string, h Handler) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if _, ok := d.handles[name]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	d.handles[name] = h
	return nil
}

// Unregister implements the Registry interface.
func (d *Dispatcher) Unregister(name string) bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if _, ok := d.handles[name]; !ok {
		return false
	}
	delete(d.handles, name)
	return true
}

// AddService registers all endpoints of the given service.
func (d *Dispatcher) AddService(s Service) error {
	return s.RegisterEndpoints(d)
}

// Dispatch invokes the method named by req and returns the response message
// to enqueue on the caller, nil when the handler produced no response.
// Handler failures and unknown methods become structured error responses,
// they never close the session.
func (d *Dispatcher) Dispatch(ctx context.Context, caller string, req *Message) *Message {
	d.mtx.RLock()
	handle, ok := d.handles[req.Call]
	d.mtx.RUnlock()
	if !ok {
		return errorResponse(req, fmt.Errorf("%w %q", ErrUnknownMethod, req.Call))
	}
	result, err := handle(ctx, caller, req)
	if err != nil {
		d.log.Warn("rpc handler failed",
			zap.String("call", req.Call),
			zap.String("msg_id", req.MsgID),
			zap.Error(err))
		return errorResponse(req, err)
	}
	if result == nil {
		return nil
	}
	resp, err := json.Marshal(result)
	if err != nil {
		return errorResponse(req, fmt.Errorf("encode response for %q: %w", req.Call, err))
	}
	req.Resp = resp
	return req
}

// errorResponse fills the response slot of req with the structured error
// built from the cause chain.
func errorResponse(req *Message, cause error) *Message {
	resp := ErrorResponse{Error: cause.Error(), Chain: network.ErrorChain(cause)}
	data, err := json.Marshal(resp)
	if err != nil {
		data = []byte(`{"error":"internal error"}`)
	}
	req.Resp = data
	return req
}
