//go:build unix

package ipc

import (
	"net"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// msgTrunc is the recvmsg flag reporting a datagram cut to the buffer.
const msgTrunc = unix.MSG_TRUNC

// datagram is one raw receive result. size is the length the kernel reported,
// which exceeds n when the datagram did not fit the buffer and the platform
// reports the real length.
type datagram struct {
	n         int
	size      int
	truncated bool
	from      net.Addr
}

// recvNonblock performs exactly one receive attempt on conn. It returns
// ok == false when no datagram is queued.
func recvNonblock(conn *net.UDPConn, buf []byte) (datagram, bool, error) {
	return recv(conn, buf, false)
}

// recvWait blocks until a datagram arrives or the read deadline set on conn
// expires, in which case the runtime's deadline error is returned.
func recvWait(conn *net.UDPConn, buf []byte) (datagram, error) {
	d, _, err := recv(conn, buf, true)
	return d, err
}

func recv(conn *net.UDPConn, buf []byte, wait bool) (d datagram, ok bool, err error) {
	rc, err := conn.SyscallConn()
	if err != nil {
		return d, false, err
	}

	var (
		n, recvflags int
		from         unix.Sockaddr
		opErr        error
	)
	err = rc.Read(func(fd uintptr) bool {
		for {
			n, _, recvflags, from, opErr = unix.Recvmsg(int(fd), buf, nil, recvFlags)
			if opErr == unix.EINTR {
				continue
			}
			// Returning false parks on the poller until readable or deadline.
			return !(wait && wouldBlock(opErr))
		}
	})
	if err != nil {
		return d, false, closedError(err)
	}
	if wouldBlock(opErr) {
		return d, false, nil
	}
	if opErr != nil {
		return d, false, os.NewSyscallError("recvmsg", opErr)
	}

	d.size = n
	d.n = n
	if d.n > len(buf) {
		d.n = len(buf)
	}
	d.truncated = recvflags&msgTrunc != 0 || d.size > len(buf)
	d.from = sockaddrToUDP(from)
	return d, true, nil
}

// acceptNonblock performs exactly one accept attempt on l. It returns a nil
// connection when none is pending.
//
// A listener's RawConn rejects Read, so the accept runs under Control; the
// listening descriptor is already non-blocking and EAGAIN means nothing is
// pending.
func acceptNonblock(l *net.TCPListener) (*net.TCPConn, error) {
	rc, err := l.SyscallConn()
	if err != nil {
		return nil, err
	}

	var (
		nfd   int
		opErr error
	)
	err = rc.Control(func(fd uintptr) {
		for {
			nfd, opErr = acceptCloexec(int(fd))
			if opErr != unix.EINTR {
				return
			}
		}
	})
	if err != nil {
		return nil, closedError(err)
	}
	if wouldBlock(opErr) || opErr == unix.ECONNABORTED {
		return nil, nil
	}
	if opErr != nil {
		return nil, os.NewSyscallError("accept", opErr)
	}

	f := os.NewFile(uintptr(nfd), "tcp")
	defer f.Close()

	// FileConn dups the descriptor and registers it with the runtime poller.
	c, err := net.FileConn(f)
	if err != nil {
		return nil, errors.Wrap(err, "wrap accepted socket")
	}
	tc, ok := c.(*net.TCPConn)
	if !ok {
		c.Close()
		return nil, errors.Errorf("accepted %T, want *net.TCPConn", c)
	}
	return tc, nil
}

func wouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

func sockaddrToUDP(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.UDPAddr{IP: net.IP(append([]byte(nil), a.Addr[:]...)), Port: a.Port}
	case *unix.SockaddrInet6:
		addr := &net.UDPAddr{IP: net.IP(append([]byte(nil), a.Addr[:]...)), Port: a.Port}
		if a.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(a.ZoneId)); err == nil {
				addr.Zone = ifi.Name
			}
		}
		return addr
	}
	return nil
}

func errnoKind(err error) error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return nil
	}
	switch errno {
	case unix.EADDRINUSE:
		return ErrAddrInUse
	case unix.EACCES, unix.EPERM:
		return ErrPermission
	case unix.EADDRNOTAVAIL, unix.ENETUNREACH, unix.EAFNOSUPPORT:
		return ErrAddrUnavailable
	}
	return nil
}
