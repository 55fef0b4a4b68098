package ipc

import "golang.org/x/sys/unix"

// MSG_TRUNC as an input flag makes Linux return the real datagram length.
const recvFlags = unix.MSG_DONTWAIT | unix.MSG_TRUNC

func acceptCloexec(fd int) (int, error) {
	nfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	return nfd, err
}
