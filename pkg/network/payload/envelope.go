// Package payload defines the JSON envelope routed between apps.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Reserved action names interpreted by the manager itself.
const (
	ActionHandshake = "handshake"
	ActionSearch    = "search"
	ActionStop      = "stop"
	ActionQuit      = "quit"
	ActionAck       = "ack"
)

// Reserved destination roles resolving to the manager itself.
const (
	RoleManager = "manager"
	RoleDevice  = "device"
)

var jsonNull = []byte("null")

// Endpoint identifies one side of an exchange. All fields are optional, an
// app fills them in during the handshake.
type Endpoint struct {
	UUID string `json:"uuid,omitempty"`
	Role string `json:"role,omitempty"`
	Addr string `json:"addr,omitempty"`
}

// Dest names the target of an envelope. Broadcast overrides the other
// fields. IntraDevice is carried on the wire but not interpreted, it belongs
// to the unfinished federation drafts.
type Dest struct {
	Broadcast   bool   `json:"broadcast,omitempty"`
	Role        string `json:"role,omitempty"`
	UUID        string `json:"uuid,omitempty"`
	Addr        string `json:"addr,omitempty"`
	IntraDevice *bool  `json:"intra_device,omitempty"`
}

// Dest converts a sender view into the destination used for replies.
func (e Endpoint) Dest() Dest {
	return Dest{Role: e.Role, UUID: e.UUID, Addr: e.Addr}
}

// Envelope is one request or response. MsgID is assigned once at first entry
// into the manager and never rewritten; a present Resp marks the envelope as
// a response. Fields not listed here are preserved on forwarding.
type Envelope struct {
	MsgID    string            `json:"msg_id"`
	ParentID string            `json:"parent_id,omitempty"`
	SendAck  bool              `json:"send_ack,omitempty"`
	Route    []string          `json:"route,omitempty"`
	Sender   Endpoint          `json:"sender"`
	Dest     Dest              `json:"dest"`
	Action   string            `json:"action,omitempty"`
	Args     []json.RawMessage `json:"args,omitempty"`
	Resp     json.RawMessage   `json:"resp,omitempty"`
	Body     json.RawMessage   `json:"body,omitempty"`

	extra map[string]json.RawMessage
}

var knownEnvelopeFields = []string{
	"msg_id", "parent_id", "send_ack", "route",
	"sender", "dest", "action", "args", "resp", "body",
}

type envelopeAlias Envelope

// UnmarshalJSON decodes the known envelope fields and stashes everything
// else so that forwarding keeps unknown fields intact.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var alias envelopeAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, k := range knownEnvelopeFields {
		delete(fields, k)
	}
	if len(fields) == 0 {
		fields = nil
	}
	alias.extra = fields
	*e = Envelope(alias)
	return nil
}

// MarshalJSON encodes the envelope together with any preserved unknown
// fields.
func (e Envelope) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(envelopeAlias(e))
	if err != nil {
		return nil, err
	}
	if len(e.extra) == 0 {
		return data, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, v := range e.extra {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}
	return json.Marshal(fields)
}

// Decode parses one frame into an envelope.
func Decode(frame []byte) (*Envelope, error) {
	e := new(Envelope)
	if err := json.Unmarshal(frame, e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return e, nil
}

// Encode serializes the envelope into a frame body.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// EnsureID assigns a fresh msg_id if the envelope carries none and returns
// the effective id.
func (e *Envelope) EnsureID() string {
	if e.MsgID == "" {
		e.MsgID = uuid.New().String()
	}
	return e.MsgID
}

// IsResponse tells whether the envelope already carries a response value.
func (e *Envelope) IsResponse() bool {
	return len(e.Resp) != 0 && !bytes.Equal(e.Resp, jsonNull)
}

// ReturnToSender rewrites the destination with the recorded sender view.
func (e *Envelope) ReturnToSender() {
	e.Dest = e.Sender.Dest()
}

// SetResp marshals v into the response slot.
func (e *Envelope) SetResp(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	e.Resp = data
	return nil
}

// ErrorResponse is the structured error placed into Resp when handling
// fails.
type ErrorResponse struct {
	Error string   `json:"error"`
	Chain []string `json:"chain"`
}

// SetError fills the response slot with a structured error built from the
// message chain.
func (e *Envelope) SetError(chain []string) {
	var msg string
	if len(chain) > 0 {
		msg = chain[0]
	}
	// Filling Resp from a static struct can't fail to marshal.
	_ = e.SetResp(ErrorResponse{Error: msg, Chain: chain})
}

// StringArg extracts args[i] as a string.
func (e *Envelope) StringArg(i int) (string, error) {
	if i >= len(e.Args) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	var s string
	if err := json.Unmarshal(e.Args[i], &s); err != nil {
		return "", fmt.Errorf("argument %d is not a string", i)
	}
	return s, nil
}

// handshakeArgs mirrors the optional first handshake argument listing the
// action handles exported by the app.
type handshakeArgs struct {
	RegisteredHandles []string `json:"registered_handles"`
}

// HandshakeHandles extracts the exported handle list from a handshake
// request, if present.
func (e *Envelope) HandshakeHandles() []string {
	if len(e.Args) == 0 {
		return nil
	}
	var args handshakeArgs
	if err := json.Unmarshal(e.Args[0], &args); err != nil {
		return nil
	}
	return args.RegisteredHandles
}
