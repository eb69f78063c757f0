// Package skinny implements the SCCP wire format: frame boundaries on a TCP
// stream and the versioned payload layouts of every message the driver
// sends or receives.
//
// A frame on the wire is
//
//	length    u32 LE  bytes following the header (message id and payload)
//	reserved  u32 LE  protocol version tag on frames from v17 on, else 0
//	id        u32 LE
//	payload
//
// Integers are little endian. IP address fields are carried in network
// order and are never byte swapped.
package skinny

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMalformed reports a frame whose length or content violates the
	// bounds of any known message. The session must be torn down.
	ErrMalformed = errors.New("skinny: malformed frame")

	// ErrUnknownVariant reports a message id with no decoder for the
	// negotiated protocol version. The frame can be skipped.
	ErrUnknownVariant = errors.New("skinny: unknown message variant")

	// ErrTruncated reports a stream that closed in the middle of a frame.
	ErrTruncated = errors.New("skinny: truncated frame")
)

const (
	headerSize = 8

	// MaxPayload is the size of the largest known payload,
	// UserToDeviceDataVersion1 with a full XML body.
	MaxPayload = 40 + XMLMessageSize

	// MaxFrameLength bounds the length word of a frame.
	MaxFrameLength = 4 + MaxPayload
)

// Frame is one undecoded message.
type Frame struct {
	Reserved uint32
	ID       MessageID
	Payload  []byte
}

// ReadFrame reads the next frame from r. A clean EOF before the first header
// byte is returned as io.EOF.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("header: %w", ErrTruncated)
		}
		return Frame{}, err
	}
	length := binary.LittleEndian.Uint32(hdr[0:4])
	if length < 4 || length > MaxFrameLength {
		return Frame{}, fmt.Errorf("length %d: %w", length, ErrMalformed)
	}
	f := Frame{Reserved: binary.LittleEndian.Uint32(hdr[4:8])}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("body of %d bytes: %w", length, ErrTruncated)
		}
		return Frame{}, err
	}
	f.ID = MessageID(binary.LittleEndian.Uint32(body[0:4]))
	f.Payload = body[4:]
	return f, nil
}

// WriteFrame writes f to w in a single call.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Payload) > MaxPayload {
		return fmt.Errorf("%s payload %d bytes: %w", f.ID, len(f.Payload), ErrMalformed)
	}
	out := make([]byte, 0, headerSize+4+len(f.Payload))
	out = binary.LittleEndian.AppendUint32(out, uint32(4+len(f.Payload)))
	out = binary.LittleEndian.AppendUint32(out, f.Reserved)
	out = binary.LittleEndian.AppendUint32(out, uint32(f.ID))
	out = append(out, f.Payload...)
	_, err := w.Write(out)
	return err
}

// Reserved returns the header tag used on frames sent at version ver.
func Reserved(ver uint8) uint32 {
	if ver >= 17 {
		return uint32(ver)
	}
	return 0
}

// Encode lays out msg for protocol version ver.
func Encode(msg Message, ver uint8) Frame {
	w := &writer{}
	msg.encode(w, ver)
	return Frame{Reserved: Reserved(ver), ID: msg.ID(), Payload: w.buf}
}

// Decode selects the layout of f by message id and ver and parses it.
func Decode(f Frame, ver uint8) (Message, error) {
	m, err := newMessage(f.ID, ver)
	if err != nil {
		return nil, err
	}
	m.decode(&reader{buf: f.Payload}, ver)
	return m, nil
}

// WriteMessage encodes msg at ver and writes it to w.
func WriteMessage(w io.Writer, msg Message, ver uint8) error {
	return WriteFrame(w, Encode(msg, ver))
}
