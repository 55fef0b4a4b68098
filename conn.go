package ipc

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Listener is a stream endpoint that accepts one length-prefixed message per
// connection. It is meant to be driven by a single goroutine.
//
// Wire format: [4-byte big-endian length][length bytes of payload]. The peer
// closes its side after the payload; the listener never reads a second frame
// from the same connection.
type Listener struct {
	listener *net.TCPListener
	logger   Logger
	opts     options

	closed atomic.Bool
}

// ListenStream binds and listens on address.
// Returns a *BindError if the address cannot be bound.
func ListenStream(address string, opt ...Option) (*Listener, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, newBindError("resolve", address, err)
	}
	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, newBindError("listen", address, err)
	}

	opts := newOptions(opt)
	l := &Listener{listener: listener, logger: opts.logger, opts: opts}
	l.logger.Debug("stream listener bound", "addr", l.Addr(),
		"stream_read_timeout", opts.streamReadTimeout)
	return l, nil
}

// Poll makes one non-blocking accept attempt.
//
// It returns nil, nil when no connection is pending. Otherwise it reads one
// frame from the accepted connection and returns it; a zero-length frame is
// a non-nil message with an empty payload. A header declaring more than
// maxSize-4 payload bytes fails with ErrOversizedMessage before the payload
// is allocated. Failures after the accept are returned as *FrameError: they
// spoil only that connection and the listener stays usable. The connection
// is closed once Poll returns.
func (l *Listener) Poll(maxSize int) (*Message, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if maxSize < HeaderSize {
		return nil, errors.Wrapf(ErrInvalidSize, "max size %d", maxSize)
	}

	conn, err := acceptNonblock(l.listener)
	if err != nil {
		return nil, errors.Wrap(err, "accept")
	}
	if conn == nil {
		return nil, nil
	}
	defer conn.Close()

	from := conn.RemoteAddr()
	l.logger.Debug("accepted connection", "addr", l.Addr(), "remote_addr", from)

	if err := conn.SetReadDeadline(time.Now().Add(l.opts.streamReadTimeout)); err != nil {
		return nil, &FrameError{Addr: from, Err: errors.Wrap(err, "set read deadline")}
	}
	payload, err := ReadFrame(conn, maxSize)
	if err != nil {
		return nil, &FrameError{Addr: from, Err: err}
	}

	return &Message{Addr: from, Payload: payload, Size: len(payload)}, nil
}

// Serve polls the listener until ctx is canceled or h returns an error.
// A handler returning ErrStop ends Serve with a nil error.
func (l *Listener) Serve(ctx context.Context, h Handler) error {
	return serve(ctx, l, h, l.opts, l.Addr().String())
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close stops accepting connections. Safe to call multiple times.
func (l *Listener) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	l.logger.Debug("stream listener closed", "addr", l.Addr())
	return l.listener.Close()
}

// SendFrame dials address, writes payload as one frame and closes the write
// side so the listener sees the end of the message.
func SendFrame(ctx context.Context, address string, payload []byte) error {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return errors.Wrapf(err, "dial %s", address)
	}
	conn := c.(*net.TCPConn)
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	_ = conn.SetNoDelay(true)

	if err := WriteFrame(conn, payload); err != nil {
		return timeoutError(err, "write frame to %s", address)
	}
	return errors.Wrap(conn.CloseWrite(), "close write")
}
