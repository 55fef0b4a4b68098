package ipc

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/pkg/errors"
)

// HeaderSize is the length of the stream frame header.
const HeaderSize = 4

// Message is one received payload.
type Message struct {
	// Addr is the sender. For stream messages it is the remote end of the
	// accepted connection.
	Addr net.Addr
	// Payload holds the received bytes, at most the caller's buffer size.
	Payload []byte
	// Size is the length the transport reported for the message. It is larger
	// than len(Payload) when a datagram was truncated and the platform
	// reports the original length.
	Size int

	truncated bool
}

// Length returns the length of the received payload.
func (m *Message) Length() int { return len(m.Payload) }

// Body returns the received payload.
func (m *Message) Body() []byte { return m.Payload }

// Truncated reports whether the transport cut the datagram to fit the
// receive buffer. Stream messages are never truncated.
func (m *Message) Truncated() bool {
	return m.truncated || m.Size > len(m.Payload)
}

// Codec is the interface for message encoding and decoding on a stream.
//
// Decode reads from an io.Reader so that the codec controls exactly how many
// bytes belong to one message, which recovers message boundaries from the
// byte stream.
type Codec interface {
	// Decode reads and decodes one complete message from the reader.
	Decode(r io.Reader) (*Message, error)
	// Encode encodes a Message into raw bytes for transmission.
	Encode(*Message) ([]byte, error)
}

// FrameCodec implements Codec with a 4-byte big-endian length prefix.
type FrameCodec struct {
	// MaxSize bounds header plus payload. Zero means defaultMaxMessageSize.
	MaxSize int
}

// Decode reads one frame from r.
func (c FrameCodec) Decode(r io.Reader) (*Message, error) {
	maxSize := c.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxMessageSize
	}
	payload, err := ReadFrame(r, maxSize)
	if err != nil {
		return nil, err
	}
	return &Message{Payload: payload, Size: len(payload)}, nil
}

// Encode prefixes the message body with its length.
func (c FrameCodec) Encode(m *Message) ([]byte, error) {
	if c.MaxSize > 0 && HeaderSize+len(m.Payload) > c.MaxSize {
		return nil, errors.Wrapf(ErrOversizedMessage, "encode %d bytes, limit %d", len(m.Payload), c.MaxSize)
	}
	if uint64(len(m.Payload)) > maxFramePayload {
		return nil, errors.Wrapf(ErrOversizedMessage, "encode %d bytes", len(m.Payload))
	}
	return EncodeFrame(m.Payload), nil
}

const maxFramePayload = 1<<32 - 1

// EncodeFrame returns payload preceded by its big-endian length. The result
// is exactly len(payload)+4 bytes. Payloads longer than 4 GiB - 1 cannot be
// framed; callers go through Encode or WriteFrame for that check.
func EncodeFrame(payload []byte) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame
}

// WriteFrame writes one frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > maxFramePayload {
		return errors.Wrapf(ErrOversizedMessage, "write %d bytes", len(payload))
	}
	_, err := w.Write(EncodeFrame(payload))
	return err
}

// ReadFrame reads one frame from r. The declared length is checked against
// maxSize before any payload buffer is allocated. EOF before the header or
// payload is complete yields ErrTruncatedMessage.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize < HeaderSize {
		return nil, errors.Wrapf(ErrInvalidSize, "max size %d", maxSize)
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, readError(err, "read header")
	}

	size := binary.BigEndian.Uint32(header[:])
	if uint64(size)+HeaderSize > uint64(maxSize) {
		return nil, errors.Wrapf(ErrOversizedMessage, "declared %d bytes, limit %d", size, maxSize-HeaderSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, readError(err, "read payload of %d bytes", size)
	}
	return payload, nil
}

func readError(err error, format string, args ...any) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrapf(ErrTruncatedMessage, format, args...)
	}
	return timeoutError(err, format, args...)
}
