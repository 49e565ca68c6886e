package strand

import (
	"github.com/strand-kv/strand-go/resp"
)

// ReplyHandler receives a decoded reply, or a connection error when the
// reply will never arrive. Exactly one of reply and err is non-nil.
type ReplyHandler func(c *Conn, reply *resp.Reply, err error)

// callback is one pending handler. pendingSubs counts outstanding
// acknowledgments for subscription bookkeeping; unsubSent marks entries an
// unsubscribe has been issued for.
type callback struct {
	fn          ReplyHandler
	pendingSubs int
	unsubSent   bool
}

// callbackQueue is a FIFO of pending handlers over a growable ring.
// Replies arrive in submission order, so push and pop are the only
// operations the protocol needs.
type callbackQueue struct {
	buf  []callback
	head int
	n    int
}

func (q *callbackQueue) len() int {
	return q.n
}

func (q *callbackQueue) push(cb callback) {
	if q.n == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.n)%len(q.buf)] = cb
	q.n++
}

func (q *callbackQueue) pop() (callback, bool) {
	if q.n == 0 {
		return callback{}, false
	}
	cb := q.buf[q.head]
	q.buf[q.head] = callback{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return cb, true
}

// peek returns the head in place so counters on it can be updated.
func (q *callbackQueue) peek() (*callback, bool) {
	if q.n == 0 {
		return nil, false
	}
	return &q.buf[q.head], true
}

func (q *callbackQueue) grow() {
	newCap := len(q.buf) * 2
	if newCap == 0 {
		newCap = 8
	}
	nb := make([]callback, newCap)
	for i := 0; i < q.n; i++ {
		nb[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = nb
	q.head = 0
}
