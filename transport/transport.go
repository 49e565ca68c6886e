// Package transport provides the byte-stream boundary the async connection
// is built on: a non-blocking socket with an explicit would-block signal and
// a readiness poll over its file descriptor. Name resolution and socket
// setup live here; the connection core above never touches the network
// directly.
package transport

import (
	"errors"
)

// ErrWouldBlock is returned by Read and Write when the operation cannot make
// progress without blocking. It is not a failure; retry after the next
// readiness event.
var ErrWouldBlock = errors.New("operation would block")

// Conn is the connection handle the async core drives. Read returns io.EOF
// when the peer closed the stream and ErrWouldBlock when no bytes are
// available; Write returns ErrWouldBlock when the kernel buffer is full.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	Fd() int
}
