package ipc

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Client is a bound datagram endpoint that sends messages and can wait for a
// single reply. It is meant to be driven by a single goroutine.
type Client struct {
	conn   *net.UDPConn
	logger Logger
	opts   options

	closed atomic.Bool
}

// Bind binds a datagram client to address. Use port 0 for an OS-assigned
// ephemeral port. The read timeout defaults to 500ms.
func Bind(address string, opt ...Option) (*Client, error) {
	conn, err := listenUDP(address)
	if err != nil {
		return nil, err
	}

	opts := newOptions(opt)
	c := &Client{conn: conn, logger: opts.logger, opts: opts}
	c.logger.Debug("datagram client bound", "addr", c.Addr(), "read_timeout", opts.readTimeout)
	return c, nil
}

// Send transmits payload to dst as a single datagram.
func (c *Client) Send(payload []byte, dst net.Addr) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	return sendTo(c.conn, payload, dst)
}

// SendAndWait sends payload to dst and then blocks for one reply of at most
// maxResponseSize bytes, bounded by the read timeout.
//
// Returns ErrTimeout (test with errors.Is) when no reply arrives in time, and
// nil, nil for a zero-length reply. Replies are accepted from any source
// unless PinSourceOption is set; without pinning, checking msg.Addr is the
// caller's job. A reply larger than maxResponseSize is cut to fit; Truncated
// reports it and, on Linux, Size carries the original length.
func (c *Client) SendAndWait(payload []byte, dst net.Addr, maxResponseSize int) (*Message, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if maxResponseSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "max response size %d", maxResponseSize)
	}

	n, err := sendTo(c.conn, payload, dst)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("sent message", "to", dst, "size", n)

	var deadline time.Time
	if c.opts.readTimeout > 0 {
		deadline = time.Now().Add(c.opts.readTimeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, closedError(err)
	}

	buf := make([]byte, maxResponseSize)
	for {
		d, err := recvWait(c.conn, buf)
		if err != nil {
			return nil, timeoutError(err, "wait for reply from %v", dst)
		}

		if c.opts.pinSource && !sameAddr(d.from, dst) {
			c.logger.Debug("dropped reply from unexpected source", "from", d.from, "want", dst)
			continue
		}

		if d.size == 0 {
			return nil, nil
		}
		return &Message{
			Addr:      d.from,
			Payload:   buf[:d.n],
			Size:      d.size,
			truncated: d.truncated,
		}, nil
	}
}

// SetReadTimeout changes how long SendAndWait waits. Zero waits forever.
func (c *Client) SetReadTimeout(timeout time.Duration) {
	if timeout < 0 {
		timeout = 0
	}
	c.opts.readTimeout = timeout
}

// ReadTimeout returns the current SendAndWait bound; zero means no bound.
func (c *Client) ReadTimeout() time.Duration {
	return c.opts.readTimeout
}

// Addr returns the bound local address.
func (c *Client) Addr() net.Addr {
	return c.conn.LocalAddr()
}

// Close releases the socket. Safe to call multiple times.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// sameAddr compares a reply source with the expected peer. IPv4-mapped IPv6
// sources compare equal to their IPv4 form.
func sameAddr(addr net.Addr, want net.Addr) bool {
	from, ok := addr.(*net.UDPAddr)
	if !ok || from == nil {
		return false
	}
	w, ok := want.(*net.UDPAddr)
	if !ok {
		resolved, err := net.ResolveUDPAddr("udp", want.String())
		if err != nil {
			return false
		}
		w = resolved
	}
	return from.Port == w.Port && from.IP.Equal(w.IP)
}
