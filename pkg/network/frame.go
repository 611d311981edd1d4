package network

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultMaxFrameSize is the frame size limit used when the server config
// carries none. The protocol requires at least 1 MiB.
const DefaultMaxFrameSize = 16 * 1024 * 1024

// MinFrameSizeLimit is the smallest limit a configuration may set.
const MinFrameSizeLimit = 1024 * 1024

// ErrFrameTooBig is returned for frames exceeding the configured limit.
var ErrFrameTooBig = NewError(KindTransport, fmt.Errorf("frame exceeds size limit"))

// ReadFrame reads one length-delimited frame: a 4-byte big-endian length
// prefix followed by that many bytes of payload.
func ReadFrame(r io.Reader, limit uint32) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, NewError(KindTransport, fmt.Errorf("read frame header: %w", err))
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > limit {
		return nil, ErrFrameTooBig
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, NewError(KindTransport, fmt.Errorf("read frame body: %w", err))
	}
	return buf, nil
}

// WriteFrame writes one length-delimited frame.
func WriteFrame(w io.Writer, frame []byte, limit uint32) error {
	if uint64(len(frame)) > uint64(limit) {
		return ErrFrameTooBig
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(frame)))
	if _, err := w.Write(prefix[:]); err != nil {
		return NewError(KindTransport, fmt.Errorf("write frame header: %w", err))
	}
	if _, err := w.Write(frame); err != nil {
		return NewError(KindTransport, fmt.Errorf("write frame body: %w", err))
	}
	return nil
}
