package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/pai-dev/pai-go/pkg/network"
)

// DispatchHandler is the dispatcher-mode frame handler. Requests are served
// on their own goroutines so forwarding handlers can block on the in-flight
// continuation without stalling the read loop; responses are correlated
// through the in-flight table.
type DispatchHandler struct {
	dispatcher *Dispatcher
	inflight   *Inflight
	ctx        context.Context
	cancel     context.CancelFunc
	log        *zap.Logger
}

// NewDispatchHandler returns a handler serving the given dispatcher.
func NewDispatchHandler(d *Dispatcher, table *Inflight, log *zap.Logger) *DispatchHandler {
	ctx, cancel := context.WithCancel(context.Background())
	return &DispatchHandler{
		dispatcher: d,
		inflight:   table,
		ctx:        ctx,
		cancel:     cancel,
		log:        log,
	}
}

// Shutdown cancels every handler still running.
func (h *DispatchHandler) Shutdown() {
	h.cancel()
}

// ServeFrame implements the network.FrameHandler interface.
func (h *DispatchHandler) ServeFrame(p network.Peer, frame []byte) error {
	msg, err := Decode(frame)
	if err != nil {
		return network.NewError(network.KindTransport, err)
	}
	if msg.IsResponse() {
		return h.serveResponse(p, msg)
	}
	msg.EnsureID()
	go h.serveRequest(p, msg)
	return nil
}

// DroppedPeer implements the network.FrameHandler interface. Exit callbacks
// already released the methods the peer registered; the in-flight sweep
// errors its waiters and discards its pending answers.
func (h *DispatchHandler) DroppedPeer(p network.Peer) {
	h.inflight.DropClient(p.Addr())
}

// serveResponse delivers a response frame to its waiting continuation. A
// response nothing waits for is a protocol error reported back to the
// sender.
func (h *DispatchHandler) serveResponse(p network.Peer, msg *Message) error {
	if h.inflight.Complete(msg.MsgID, msg) {
		return nil
	}
	h.log.Warn("unexpected response",
		zap.String("addr", p.Addr()),
		zap.String("msg_id", msg.MsgID))
	reply := errorResponse(msg, fmt.Errorf("unexpected response to %s", msg.MsgID))
	if err := enqueue(p, reply); err != nil {
		h.log.Debug("failed to report unexpected response", zap.Error(err))
	}
	return nil
}

func (h *DispatchHandler) serveRequest(p network.Peer, msg *Message) {
	resp := h.dispatcher.Dispatch(h.ctx, p.Addr(), msg)
	if resp == nil {
		return
	}
	if err := enqueue(p, resp); err != nil {
		h.log.Warn("failed to answer dropped peer",
			zap.String("addr", p.Addr()),
			zap.String("msg_id", msg.MsgID),
			zap.Error(err))
	}
}

func enqueue(p network.Peer, msg *Message) error {
	frame, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.EnqueueFrame(frame)
}
