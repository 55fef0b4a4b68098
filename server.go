// Package ipc exchanges discrete messages between processes over raw sockets.
//
// Two transports are offered. The datagram pair (Server, Client) uses UDP:
// message boundaries are datagram boundaries, and delivery or ordering is
// whatever UDP provides. The stream Listener uses TCP with one message per
// accepted connection, framed by a 4-byte big-endian length prefix.
//
// Receiving endpoints never block: Poll makes one attempt and returns a nil
// message when nothing is pending. Only Client.SendAndWait and the frame read
// of an accepted stream block, each bounded by a deadline.
package ipc

import (
	"context"
	"io"
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Server is a bound datagram endpoint that is polled for incoming messages.
// It is meant to be driven by a single goroutine.
type Server struct {
	conn   *net.UDPConn
	logger Logger
	opts   options

	closed atomic.Bool
}

// Listen binds a datagram server to address ("host:port").
// Returns a *BindError if the address cannot be bound.
func Listen(address string, opt ...Option) (*Server, error) {
	conn, err := listenUDP(address)
	if err != nil {
		return nil, err
	}

	opts := newOptions(opt)
	s := &Server{conn: conn, logger: opts.logger, opts: opts}
	s.logger.Debug("datagram server bound", "addr", s.Addr())
	return s, nil
}

func listenUDP(address string) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, newBindError("resolve", address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, newBindError("bind", address, err)
	}
	return conn, nil
}

// Poll makes one non-blocking receive attempt with a buffer of maxSize bytes.
//
// It returns nil, nil when no datagram is queued or when a zero-length
// datagram arrives. A datagram larger than maxSize is cut to maxSize by the
// transport; the returned message reports this through Truncated and, where
// the platform provides it, the original Size.
func (s *Server) Poll(maxSize int) (*Message, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if maxSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "max size %d", maxSize)
	}

	buf := make([]byte, maxSize)
	d, ok, err := recvNonblock(s.conn, buf)
	if err != nil {
		return nil, errors.Wrap(err, "poll")
	}
	if !ok || d.size == 0 {
		return nil, nil
	}

	return &Message{
		Addr:      d.from,
		Payload:   buf[:d.n],
		Size:      d.size,
		truncated: d.truncated,
	}, nil
}

// Send transmits payload to dst as a single datagram and returns the number
// of bytes sent. There is no acknowledgment and no retry.
func (s *Server) Send(payload []byte, dst net.Addr) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return sendTo(s.conn, payload, dst)
}

func sendTo(conn *net.UDPConn, payload []byte, dst net.Addr) (int, error) {
	n, err := conn.WriteTo(payload, dst)
	if err != nil {
		return n, errors.Wrapf(closedError(err), "send to %v", dst)
	}
	if n != len(payload) {
		return n, errors.Wrapf(io.ErrShortWrite, "sent %d of %d bytes to %v", n, len(payload), dst)
	}
	return n, nil
}

// Serve polls the server until ctx is canceled or h returns an error.
// A handler returning ErrStop ends Serve with a nil error.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	return serve(ctx, s, h, s.opts, s.Addr().String())
}

// Addr returns the bound local address.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Close releases the socket. Safe to call multiple times.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.logger.Debug("datagram server closed", "addr", s.Addr())
	return s.conn.Close()
}
