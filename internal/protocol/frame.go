package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/netsiege/netsiege/internal/constants"
)

// ReadFrame reads one length-prefixed frame body from r.
// Returns io.EOF on a clean close before the header, ErrShortRead when the
// peer closes mid-frame, *ProtocolError on an invalid length prefix.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [constants.FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortRead
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length == 0 || length > constants.MaxFrameSize {
		return nil, protocolErrorf("invalid frame length %d", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, ErrShortRead
		}
		return nil, fmt.Errorf("reading frame body: %w", err)
	}
	return body, nil
}

// ReadMessage reads and decodes one message from r.
func ReadMessage(r io.Reader) (Message, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return Decode(body)
}

// WriteMessage encodes msg and emits header+body as a single write, so a
// frame is never interleaved with another writer's bytes.
func WriteMessage(w io.Writer, msg Message) error {
	body, err := Encode(msg)
	if err != nil {
		return err
	}

	frame, err := appendFrame(nil, body)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// EncodeFrame returns the full on-wire bytes (header + body) for msg.
func EncodeFrame(msg Message) ([]byte, error) {
	body, err := Encode(msg)
	if err != nil {
		return nil, err
	}
	return appendFrame(nil, body)
}

func appendFrame(dst, body []byte) ([]byte, error) {
	if len(body) > constants.MaxFrameSize {
		return nil, protocolErrorf("frame body %d exceeds limit %d", len(body), constants.MaxFrameSize)
	}
	var header [constants.FrameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	dst = append(dst, header[:]...)
	return append(dst, body...), nil
}
