//go:build linux

// File: internal/transfer/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw non-blocking socket operations for Linux.

package transfer

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// sockOpen creates a non-blocking TCP socket for the address family
// of ip.
func sockOpen(ip net.IP) (int, error) {
	family := unix.AF_INET
	if ip.To4() == nil {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket create: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return fd, nil
}

func sockaddr(ip net.IP, port int) unix.Sockaddr {
	if v4 := ip.To4(); v4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], v4)
		return sa
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return sa
}

// sockConnect starts or re-checks a non-blocking connect. It returns
// done=true once the socket is connected, done=false while the
// connect is still in flight.
func sockConnect(fd int, ip net.IP, port int) (done bool, err error) {
	err = unix.Connect(fd, sockaddr(ip, port))
	switch err {
	case nil, unix.EISCONN:
		return true, nil
	case unix.EINPROGRESS, unix.EALREADY, unix.EINTR:
		return false, nil
	default:
		return false, fmt.Errorf("connect: %w", err)
	}
}

// sockRead reads into p. again=true means no data was available.
// n == 0 with nil err and again=false means orderly EOF.
func sockRead(fd int, p []byte) (n int, again bool, err error) {
	n, err = unix.Read(fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, true, nil
		}
		return 0, false, fmt.Errorf("read: %w", err)
	}
	return n, false, nil
}

// sockWrite writes p. again=true means the send buffer is full.
func sockWrite(fd int, p []byte) (n int, again bool, err error) {
	n, err = unix.Write(fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, true, nil
		}
		return 0, false, fmt.Errorf("write: %w", err)
	}
	return n, false, nil
}

func sockClose(fd int) error {
	return unix.Close(fd)
}
