package ipc

import (
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/pkg/errors"
)

func TestBindError(t *testing.T) {
	cause := &net.OpError{Op: "listen", Net: "udp", Err: os.NewSyscallError("bind", syscall.EADDRINUSE)}
	err := error(newBindError("bind", "127.0.0.1:1", cause))

	if !errors.Is(err, ErrAddrInUse) {
		t.Error("expected ErrAddrInUse")
	}
	if errors.Is(err, ErrPermission) {
		t.Error("unexpected ErrPermission")
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		t.Error("cause should stay reachable through Unwrap")
	}
}

func TestBindErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"in use", syscall.EADDRINUSE, ErrAddrInUse},
		{"access", syscall.EACCES, ErrPermission},
		{"not available", syscall.EADDRNOTAVAIL, ErrAddrUnavailable},
		{"dns", &net.DNSError{Err: "no such host", Name: "nowhere.invalid"}, ErrAddrUnavailable},
		{"other", io.EOF, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newBindError("bind", "x", tt.err)
			if e.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", e.Kind, tt.want)
			}
			if e.Error() == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestTimeoutError(t *testing.T) {
	if err := timeoutError(nil, "op"); err != nil {
		t.Errorf("nil error wrapped as %v", err)
	}

	err := timeoutError(os.ErrDeadlineExceeded, "wait")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}

	err = timeoutError(io.ErrClosedPipe, "wait")
	if errors.Is(err, ErrTimeout) || !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("unexpected classification: %v", err)
	}
}

func TestClosedError(t *testing.T) {
	if closedError(net.ErrClosed) != ErrClosed {
		t.Error("net.ErrClosed should map to ErrClosed")
	}
	if closedError(io.EOF) != io.EOF {
		t.Error("other errors should pass through")
	}
}
