//go:build unix

package strand

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/strand-kv/strand-go/transport"
)

// PollResult reports what one driver iteration did.
type PollResult int

const (
	// PollTimeout: no socket activity within the poll interval.
	PollTimeout PollResult = iota
	// PollActivity: at least one readiness event was handled.
	PollActivity
	// PollError: the connection failed; it is torn down and Err is set.
	PollError
	// PollClosed: the connection has reached its terminal state.
	PollClosed
)

var pollResultNames = map[PollResult]string{
	PollTimeout:  "timeout",
	PollActivity: "activity",
	PollError:    "error",
	PollClosed:   "closed",
}

func (r PollResult) String() string {
	return pollResultNames[r]
}

// Poll waits up to timeout for socket readiness and runs the matching
// readable/writable handlers. Write readiness is only requested while
// output is pending or the connect is still in flight, so an idle
// connection does not spin on an always-writable socket.
func (c *Conn) Poll(timeout time.Duration) PollResult {
	if c.Closed() {
		return PollClosed
	}

	pollWrite := c.out.pending() > 0 || c.state == StateConnecting || c.state == StateDisconnecting
	readable, writable, err := transport.Poll(c.tr.Fd(), pollWrite, timeout)
	if err != nil {
		c.fail(KindIO, err)
		return PollError
	}
	if !readable && !writable {
		return PollTimeout
	}

	if writable {
		if err := c.HandleWritable(); err != nil {
			return PollError
		}
	}
	if readable && !c.Closed() {
		if err := c.HandleReadable(); err != nil {
			if c.err != nil {
				return PollError
			}
			return PollClosed
		}
	}
	if c.Closed() {
		return PollClosed
	}
	return PollActivity
}

// RunLoop drives the connection until stop is set or the connection ends.
// Each iteration polls for at most interval, so a raised stop flag is
// observed within one interval even on a silent connection. Returns the
// connection error, or nil after a clean shutdown or stop.
func (c *Conn) RunLoop(stop *atomic.Bool, interval time.Duration) error {
	for !stop.Load() {
		switch c.Poll(interval) {
		case PollError, PollClosed:
			return c.Err()
		}
	}
	return c.Err()
}

// Loop drives a connection on a background goroutine.
type Loop struct {
	stop atomic.Bool
	done chan struct{}
	once sync.Once
	err  error
}

// StartLoop spawns a goroutine running c.RunLoop with the given poll
// interval. The connection must not be driven by any other goroutine while
// the loop runs.
func StartLoop(c *Conn, interval time.Duration) *Loop {
	l := &Loop{done: make(chan struct{})}
	go func() {
		defer close(l.done)
		l.err = c.RunLoop(&l.stop, interval)
	}()
	return l
}

// Stop raises the stop flag and joins the loop goroutine. It is safe to
// call more than once; later calls return the same result.
func (l *Loop) Stop() error {
	l.once.Do(func() {
		l.stop.Store(true)
	})
	<-l.done
	return l.err
}

// Done is closed when the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
