package ipc

import (
	"fmt"
	"net"
	"os"

	"github.com/pkg/errors"
)

// Errors returned by endpoint operations.
var (
	// ErrClosed is returned when operating on a closed endpoint.
	ErrClosed = errors.New("endpoint closed")
	// ErrTimeout is returned when a bounded wait expires before a message arrives.
	// It means "no response yet", not corruption.
	ErrTimeout = errors.New("timed out waiting for message")
	// ErrOversizedMessage is returned when a frame header declares more bytes
	// than the caller's buffer budget allows.
	ErrOversizedMessage = errors.New("message too large")
	// ErrTruncatedMessage is returned when the peer closes the stream before
	// the declared number of bytes arrived.
	ErrTruncatedMessage = errors.New("truncated message")
	// ErrInvalidSize is returned for a non-positive buffer size.
	ErrInvalidSize = errors.New("invalid message size")
	// ErrStop may be returned by a Handler to end Serve without error.
	ErrStop = errors.New("stop serving")
)

// Bind failure kinds. A *BindError matches one of these with errors.Is when
// the cause is recognised.
var (
	// ErrAddrInUse means the address is already bound, possibly by another
	// endpoint in this process.
	ErrAddrInUse = errors.New("address already bound")
	// ErrPermission means the process may not bind the address.
	ErrPermission = errors.New("permission denied")
	// ErrAddrUnavailable means the address is not local or cannot be resolved.
	ErrAddrUnavailable = errors.New("address unavailable")
)

// BindError records a failed bind or listen. It is fatal to the endpoint and
// never retried.
type BindError struct {
	Op   string
	Addr string
	Kind error // one of ErrAddrInUse, ErrPermission, ErrAddrUnavailable, or nil
	Err  error
}

func (e *BindError) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Addr, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Is reports whether target is the classified kind of this failure.
func (e *BindError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// FrameError records a failure reading the frame of one accepted stream
// connection. Only that connection is affected; polling may continue.
type FrameError struct {
	Addr net.Addr
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("read frame from %v: %v", e.Addr, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

func newBindError(op, addr string, err error) *BindError {
	return &BindError{Op: op, Addr: addr, Kind: bindKind(err), Err: err}
}

// bindKind classifies resolver errors here; errno values are handled in
// the platform file.
func bindKind(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrAddrUnavailable
	}
	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return ErrAddrUnavailable
	}
	return errnoKind(err)
}

// timeoutError converts a deadline expiry into ErrTimeout and leaves other
// errors untouched.
func timeoutError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return errors.Wrapf(ErrTimeout, format, args...)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrapf(ErrTimeout, format, args...)
	}
	return errors.Wrapf(err, format, args...)
}

// closedError maps the runtime's use-of-closed-connection error to ErrClosed.
func closedError(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}
