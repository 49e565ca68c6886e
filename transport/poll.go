//go:build unix

package transport

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Poll blocks until fd is readable, writable (when pollWrite is set), the
// timeout expires, or an error occurs. A negative timeout blocks
// indefinitely. Hangups and error conditions are reported as readability so
// the subsequent read surfaces the precise failure.
func Poll(fd int, pollWrite bool, timeout time.Duration) (readable, writable bool, err error) {
	events := int16(unix.POLLIN)
	if pollWrite {
		events |= unix.POLLOUT
	}
	pfds := []unix.PollFd{{Fd: int32(fd), Events: events}}

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		// Round sub-millisecond timeouts up so a small positive timeout
		// still blocks instead of degrading into a busy poll.
		if ms == 0 && timeout > 0 {
			ms = 1
		}
	}

	for {
		n, perr := unix.Poll(pfds, ms)
		if errors.Is(perr, unix.EINTR) {
			continue
		}
		if perr != nil {
			return false, false, fmt.Errorf("poll: %w", perr)
		}
		if n == 0 {
			return false, false, nil
		}
		re := pfds[0].Revents
		readable = re&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
		writable = re&unix.POLLOUT != 0
		return readable, writable, nil
	}
}
