// Package rpc reshapes the manager core as an RPC framework: the same
// framed transport, but routing is by method name and a dispatcher forwards
// calls to in-process services or to peers registered to serve them.
package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// RegisterAppMethod is the reserved method peers call to serve methods
// themselves.
const RegisterAppMethod = "register_app"

var jsonNull = []byte("null")

// Message is the RPC wire envelope. A present Resp marks it as a response;
// responses carry the msg_id of their request.
type Message struct {
	MsgID string          `json:"msg_id"`
	Call  string          `json:"call"`
	Args  json.RawMessage `json:"args,omitempty"`
	Resp  json.RawMessage `json:"resp,omitempty"`
}

// Decode parses one frame into a message.
func Decode(frame []byte) (*Message, error) {
	m := new(Message)
	if err := json.Unmarshal(frame, m); err != nil {
		return nil, fmt.Errorf("decode rpc message: %w", err)
	}
	return m, nil
}

// Encode serializes the message into a frame body.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// EnsureID assigns a fresh msg_id if the message carries none and returns
// the effective id.
func (m *Message) EnsureID() string {
	if m.MsgID == "" {
		m.MsgID = uuid.New().String()
	}
	return m.MsgID
}

// IsResponse tells whether the message already carries a response value.
func (m *Message) IsResponse() bool {
	return len(m.Resp) != 0 && !bytes.Equal(m.Resp, jsonNull)
}

// UnmarshalArgs decodes the call arguments into v.
func (m *Message) UnmarshalArgs(v any) error {
	if len(m.Args) == 0 {
		return fmt.Errorf("call %q: missing arguments", m.Call)
	}
	if err := json.Unmarshal(m.Args, v); err != nil {
		return fmt.Errorf("call %q: bad arguments: %w", m.Call, err)
	}
	return nil
}

// ErrorResponse is the structured error placed into Resp when a handler
// fails.
type ErrorResponse struct {
	Error string   `json:"error"`
	Chain []string `json:"chain"`
}
