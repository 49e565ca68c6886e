//go:build unix

package transport

import (
	"errors"
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// Socket is a non-blocking stream socket. Dial may return before the
// connection is established; the caller completes the handshake by waiting
// for writability and calling CheckConnect.
type Socket struct {
	fd         int
	addr       string
	connecting bool
	closed     bool
}

// Dial opens a non-blocking socket to addr. network is "tcp" or "unix".
// When the connect is still in progress on return, Connecting reports true.
func Dial(network, addr string) (*Socket, error) {
	var (
		domain int
		sa     unix.Sockaddr
	)

	switch network {
	case "tcp":
		tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", addr, err)
		}
		if ip4 := tcpAddr.IP.To4(); ip4 != nil {
			sa4 := &unix.SockaddrInet4{Port: tcpAddr.Port}
			copy(sa4.Addr[:], ip4)
			domain, sa = unix.AF_INET, sa4
		} else {
			sa6 := &unix.SockaddrInet6{Port: tcpAddr.Port}
			copy(sa6.Addr[:], tcpAddr.IP.To16())
			domain, sa = unix.AF_INET6, sa6
		}
	case "unix":
		domain, sa = unix.AF_UNIX, &unix.SockaddrUnix{Name: addr}
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblock: %w", err)
	}

	s := &Socket{fd: fd, addr: addr}
	switch err := unix.Connect(fd, sa); {
	case err == nil:
	case errors.Is(err, unix.EINPROGRESS):
		s.connecting = true
	default:
		unix.Close(fd)
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return s, nil
}

// Connecting reports whether the non-blocking connect is still in progress.
func (s *Socket) Connecting() bool {
	return s.connecting
}

// CheckConnect resolves an in-progress connect after the socket became
// writable, surfacing the pending socket error if the connect failed.
func (s *Socket) CheckConnect() error {
	v, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return fmt.Errorf("getsockopt SO_ERROR: %w", err)
	}
	if v != 0 {
		return fmt.Errorf("connect %s: %w", s.addr, unix.Errno(v))
	}
	s.connecting = false
	return nil
}

func (s *Socket) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, p)
		switch {
		case err == nil:
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK):
			return 0, ErrWouldBlock
		default:
			return 0, fmt.Errorf("read: %w", err)
		}
	}
}

func (s *Socket) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(s.fd, p)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK):
			return 0, ErrWouldBlock
		default:
			return 0, fmt.Errorf("write: %w", err)
		}
	}
}

func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := unix.Close(s.fd); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Fd returns the underlying file descriptor for readiness polling.
func (s *Socket) Fd() int {
	return s.fd
}

// Addr returns the peer address the socket was dialed with.
func (s *Socket) Addr() string {
	return s.addr
}

// Socketpair returns two connected non-blocking sockets. It backs loopback
// tests and in-process wiring.
func Socketpair() (*Socket, *Socket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, nil, fmt.Errorf("set nonblock: %w", err)
		}
	}
	a := &Socket{fd: fds[0], addr: "socketpair"}
	b := &Socket{fd: fds[1], addr: "socketpair"}
	return a, b, nil
}
