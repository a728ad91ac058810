// ABOUTME: Raw non-blocking TCP sockets for the poll loop
// ABOUTME: Wraps a connected fd as a framing source and vectored writer

package reactor

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/harper/linerpc/internal/framing"
)

const listenBacklog = 128

// listenTCP opens a non-blocking listening socket on addr ("host:port").
// The resolved address is returned so callers can discover an ephemeral
// port.
func listenTCP(addr string) (int, *net.TCPAddr, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, nil, fmt.Errorf("reactor: resolve %q: %w", addr, err)
	}

	family := unix.AF_INET
	if tcpAddr.IP.To4() == nil && tcpAddr.IP != nil {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, nil, fmt.Errorf("reactor: socket: %w", err)
	}

	cleanup := func(err error) (int, *net.TCPAddr, error) {
		unix.Close(fd)
		return -1, nil, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return cleanup(fmt.Errorf("reactor: SO_REUSEADDR: %w", err))
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return cleanup(fmt.Errorf("reactor: set nonblock: %w", err))
	}
	unix.CloseOnExec(fd)

	sa, err := sockaddrFromTCPAddr(family, tcpAddr)
	if err != nil {
		return cleanup(err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		return cleanup(fmt.Errorf("reactor: bind %s: %w", tcpAddr, err))
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		return cleanup(fmt.Errorf("reactor: listen: %w", err))
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		return cleanup(fmt.Errorf("reactor: getsockname: %w", err))
	}
	return fd, tcpAddrFromSockaddr(bound), nil
}

func sockaddrFromTCPAddr(family int, a *net.TCPAddr) (unix.Sockaddr, error) {
	if family == unix.AF_INET6 {
		sa := &unix.SockaddrInet6{Port: a.Port}
		copy(sa.Addr[:], a.IP.To16())
		return sa, nil
	}
	sa := &unix.SockaddrInet4{Port: a.Port}
	if ip4 := a.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	return sa, nil
}

func tcpAddrFromSockaddr(sa unix.Sockaddr) *net.TCPAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}
	}
	return nil
}

func sockaddrString(sa unix.Sockaddr) string {
	if a := tcpAddrFromSockaddr(sa); a != nil {
		return a.String()
	}
	return "unknown"
}

// connFD adapts a connected non-blocking fd to the framing layer. Reads
// translate EAGAIN into framing.ErrWouldBlock and a zero-byte read into a
// graceful close; writes gather with writev.
type connFD struct {
	fd int
}

func (c connFD) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		switch {
		case err == nil:
			if n <= 0 {
				return 0, framing.ErrClosed
			}
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, framing.ErrWouldBlock
		default:
			return 0, fmt.Errorf("reactor: read: %w", err)
		}
	}
}

func (c connFD) Writev(bufs [][]byte) (int, error) {
	for {
		n, err := unix.Writev(c.fd, bufs)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, framing.ErrWouldBlock
		default:
			return 0, fmt.Errorf("reactor: writev: %w", err)
		}
	}
}
