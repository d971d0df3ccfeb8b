package protocol

import (
	"errors"
	"fmt"
)

// ErrShortRead is returned when the peer closes the connection in the
// middle of a frame (header or body).
var ErrShortRead = errors.New("short read: connection closed mid-frame")

// ProtocolError is a framing-level violation: invalid length prefix,
// non-UTF-8 body, or a body that is not a JSON object with a type tag.
// The session that produced it is closed.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}
