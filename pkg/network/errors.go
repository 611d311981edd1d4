package network

import (
	"errors"
	"fmt"
)

// ErrorKind classifies errors crossing the session boundary. Transport and
// internal errors close the session, everything else is replied to the peer
// as an error envelope and the session stays open.
type ErrorKind int

const (
	// KindTransport is a frame decode/encode failure or unexpected EOF.
	KindTransport ErrorKind = iota
	// KindProtocol is an unknown action, an unexpected response or a
	// malformed envelope.
	KindProtocol
	// KindRegistration is a method name collision on registration.
	KindRegistration
	// KindRouting is an unknown or drained destination.
	KindRouting
	// KindRecoverable is a failed enqueue due to a concurrent peer drop.
	KindRecoverable
	// KindInternal is an invariant violation.
	KindInternal
)

var (
	errAlreadyConnected = errors.New("already connected")
	errServerShutdown   = errors.New("server shutdown")
	errStopRequested    = errors.New("stop requested")
	errQueueClosed      = errors.New("write queue closed")

	// ErrUnknownAction is replied when the action names no manager verb.
	ErrUnknownAction = errors.New("unknown action")
	// ErrUnknownDestination is replied when destination resolution fails.
	ErrUnknownDestination = errors.New("unknown destination")
)

// Error carries an ErrorKind along the cause chain.
type Error struct {
	Kind ErrorKind
	Err  error
}

// NewError wraps err with the given kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Errorf is NewError with fmt.Errorf formatting.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err. Unclassified errors are treated as
// protocol errors, the session survives them.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProtocol
}

// IsFatal tells whether err must close the session it occurred on.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindInternal:
		return true
	default:
		return false
	}
}

// ErrorChain unwraps err into the list of messages put into error envelopes.
func ErrorChain(err error) []string {
	var chain []string
	for ; err != nil; err = errors.Unwrap(err) {
		chain = append(chain, err.Error())
	}
	return chain
}
