package strand

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/panjf2000/ants/v2"
	"github.com/strand-kv/strand-go/alloc"
	"github.com/strand-kv/strand-go/resp"
	"github.com/strand-kv/strand-go/transport"
)

const readBufferSize = 16 * 1024

// State tracks the connection lifecycle. Disconnected is terminal; a new
// connection must be created to reconnect.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

var stateNames = map[State]string{
	StateConnecting:    "connecting",
	StateConnected:     "connected",
	StateDisconnecting: "disconnecting",
	StateDisconnected:  "disconnected",
}

func (s State) String() string {
	return stateNames[s]
}

// ConnectHandler is notified once when the connection is established or the
// connect attempt fails.
type ConnectHandler func(c *Conn, err error)

// DisconnectHandler is notified exactly once when the connection is torn
// down; err is nil for an application-requested disconnect.
type DisconnectHandler func(c *Conn, err error)

// PushHandler receives out-of-band push replies that are not pub/sub
// messages, and pub/sub messages with no matching registration.
type PushHandler func(c *Conn, reply *resp.Reply)

// Conn multiplexes pipelined requests over one transport connection,
// matching replies to handlers in submission order and fanning pub/sub
// messages out to the channel and pattern registries.
//
// A Conn must be driven by exactly one goroutine at a time; its queues and
// buffers are deliberately unlocked. Callers that share a Conn across
// goroutines must provide their own synchronization.
type Conn struct {
	tr  transport.Conn
	rd  *resp.Reader
	out outbound
	a   alloc.Allocator

	replies callbackQueue
	sub     *subscriptions

	state        State
	wasConnected bool
	err          *Error

	onConnect    ConnectHandler
	onDisconnect DisconnectHandler
	onPush       PushHandler

	subscribed bool
	monitoring bool

	pool     *ants.Pool
	poolSize int

	maxBuf      int
	maxElements int64

	addr string
	l    *slog.Logger
}

// NewConn binds an established (or still-connecting) transport connection.
// Transport setup, TLS and timeouts belong to the transport layer; the Conn
// only drives the handle it is given.
func NewConn(tr transport.Conn, opts ...Option) (*Conn, error) {
	c := &Conn{
		tr:           tr,
		a:            alloc.Default(),
		sub:          newSubscriptions(),
		state:        StateConnected,
		wasConnected: true,
		maxBuf:       resp.DefaultMaxBufferSize,
		maxElements:  resp.DefaultMaxElements,
		l:            slog.Default(),
	}
	if cs, ok := tr.(interface{ Connecting() bool }); ok && cs.Connecting() {
		c.state = StateConnecting
		c.wasConnected = false
	}
	if as, ok := tr.(interface{ Addr() string }); ok {
		c.addr = as.Addr()
	}
	for _, opt := range opts {
		opt(c)
	}

	c.rd = resp.NewReader(
		resp.WithAllocator(c.a),
		resp.WithMaxBufferSize(c.maxBuf),
		resp.WithMaxElements(c.maxElements),
	)

	if c.poolSize > 0 {
		pool, err := ants.NewPool(c.poolSize)
		if err != nil {
			return nil, fmt.Errorf("new handler pool: %w", err)
		}
		c.pool = pool
	}

	if c.state == StateConnected && c.onConnect != nil {
		c.onConnect(c, nil)
	}
	return c, nil
}

// Connect dials addr ("tcp" host:port or "unix" path) without blocking on
// handshake completion. The connect handler fires from the driver once the
// socket is writable.
func Connect(network, addr string, opts ...Option) (*Conn, error) {
	sock, err := transport.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	c, err := NewConn(sock, opts...)
	if err != nil {
		sock.Close()
		return nil, err
	}
	return c, nil
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return c.state
}

// Closed reports whether the connection has reached its terminal state.
func (c *Conn) Closed() bool {
	return c.state == StateDisconnected
}

// Err returns the fatal connection error, if any.
func (c *Conn) Err() error {
	if c.err == nil {
		return nil
	}
	return c.err
}

// RemoteAddr returns the peer address the connection was dialed with.
func (c *Conn) RemoteAddr() string {
	return c.addr
}

// SendCommand formats a command, queues it for transmission and registers h
// for its reply. SUBSCRIBE, PSUBSCRIBE, UNSUBSCRIBE, PUNSUBSCRIBE and
// MONITOR receive their protocol-specific bookkeeping: subscription
// handlers live in the channel/pattern registry rather than the FIFO queue.
func (c *Conn) SendCommand(h ReplyHandler, args ...string) error {
	if len(args) == 0 {
		return ErrEmptyCommand
	}
	if c.state == StateDisconnecting || c.state == StateDisconnected {
		return ErrConnClosed
	}

	name := strings.ToLower(args[0])
	pattern := strings.HasPrefix(name, "p")
	if (name == "subscribe" || name == "psubscribe") && len(args) < 2 {
		return ErrNoChannels
	}

	buf, err := c.a.Bytes(resp.CommandLength(args...))
	if err != nil {
		return newError(KindOOM, err)
	}
	buf = resp.AppendCommand(buf[:0], args...)

	if err := c.out.queue(c.a, buf); err != nil {
		return newError(KindOOM, err)
	}

	switch name {
	case "subscribe", "psubscribe":
		for _, ch := range args[1:] {
			c.sub.add(pattern, ch, h)
		}
		c.subscribed = true
	case "unsubscribe", "punsubscribe":
		names := args[1:]
		expected := len(names)
		if expected == 0 {
			// Unsubscribe-all: one acknowledgment per registered name, or a
			// single nil-named acknowledgment when nothing is registered.
			names = c.sub.names(pattern)
			expected = max(len(names), 1)
		}
		for _, nm := range names {
			if e, ok := c.sub.get(pattern, nm); ok {
				e.unsubSent = true
			}
		}
		c.sub.pendingUnsubs += expected
		if h != nil {
			c.sub.replies.push(callback{fn: h, pendingSubs: expected, unsubSent: true})
		}
	case "monitor":
		c.monitoring = true
		c.replies.push(callback{fn: h})
	default:
		c.replies.push(callback{fn: h})
	}
	statCommands.Inc()
	return nil
}

// EnqueueCommand queues an already-formatted request and registers h on the
// regular reply queue. Either both the output append and the handler
// registration take effect, or neither does.
func (c *Conn) EnqueueCommand(formatted []byte, h ReplyHandler) error {
	if c.state == StateDisconnecting || c.state == StateDisconnected {
		return ErrConnClosed
	}
	if err := c.out.queue(c.a, formatted); err != nil {
		return newError(KindOOM, err)
	}
	c.replies.push(callback{fn: h})
	statCommands.Inc()
	return nil
}

// HandleReadable drains the socket into the parser and delivers every
// completed reply. It is called by the driver when the socket is readable.
func (c *Conn) HandleReadable() error {
	switch c.state {
	case StateDisconnected:
		return ErrConnClosed
	case StateConnecting:
		if err := c.completeConnect(); err != nil {
			return err
		}
	}

	buf := alloc.Get(readBufferSize)[:readBufferSize]
	defer alloc.Put(buf)

	var readErr error
	for {
		n, err := c.tr.Read(buf)
		if n > 0 {
			statBytesRead.Add(n)
			if ferr := c.rd.Feed(buf[:n]); ferr != nil {
				return c.fail(classify(ferr), ferr)
			}
		}
		if err != nil {
			if errors.Is(err, transport.ErrWouldBlock) {
				break
			}
			readErr = err
			break
		}
		if n < len(buf) {
			break
		}
	}

	// Deliver what was decoded before surfacing a read failure, so replies
	// that arrived with the final bytes are not lost.
	if err := c.processReplies(); err != nil {
		return err
	}
	if readErr != nil {
		if errors.Is(readErr, io.EOF) {
			return c.fail(KindEOF, readErr)
		}
		return c.fail(KindIO, readErr)
	}
	return nil
}

// HandleWritable flushes the output buffer as far as the transport accepts.
// Partial writes leave the remainder queued for the next writable event.
func (c *Conn) HandleWritable() error {
	switch c.state {
	case StateDisconnected:
		return ErrConnClosed
	case StateConnecting:
		if err := c.completeConnect(); err != nil {
			return err
		}
	}

	n, err := c.out.flush(c.tr)
	if n > 0 {
		statBytesWritten.Add(n)
	}
	if err != nil {
		return c.fail(KindIO, err)
	}
	if c.state == StateDisconnecting && c.out.pending() == 0 {
		c.teardown(nil)
	}
	return nil
}

// Disconnect requests a graceful disconnect: pending output is still
// flushed by the driver, then the connection is torn down. Pending reply
// handlers are invoked with ErrConnClosed.
func (c *Conn) Disconnect() {
	switch c.state {
	case StateDisconnected, StateDisconnecting:
		return
	case StateConnecting:
		c.teardown(nil)
		return
	}
	if c.out.pending() == 0 {
		c.teardown(nil)
		return
	}
	c.state = StateDisconnecting
}

// Close tears the connection down immediately, discarding unflushed output.
func (c *Conn) Close() {
	c.teardown(nil)
}

func (c *Conn) completeConnect() error {
	if cc, ok := c.tr.(interface{ CheckConnect() error }); ok {
		if err := cc.CheckConnect(); err != nil {
			c.err = newError(KindIO, err)
			if c.onConnect != nil {
				c.onConnect(c, c.err)
			}
			c.teardown(c.err)
			return c.err
		}
	}
	c.state = StateConnected
	c.wasConnected = true
	c.l.Debug("connected", "addr", c.addr)
	if c.onConnect != nil {
		c.onConnect(c, nil)
	}
	return nil
}

func (c *Conn) processReplies() error {
	for c.state != StateDisconnected {
		obj, err := c.rd.GetReply()
		if err != nil {
			return c.fail(classify(err), err)
		}
		if obj == nil {
			return nil
		}
		c.handleReply(obj.(*resp.Reply))
	}
	if c.err != nil {
		return c.err
	}
	return ErrConnClosed
}

func (c *Conn) handleReply(rep *resp.Reply) {
	if kind, ok := c.subscribeKind(rep); ok {
		c.handleSubscribeReply(kind, rep)
		return
	}

	if rep.Type == resp.TypePush {
		statPushMessages.Inc()
		if c.onPush != nil {
			c.dispatch(func() { c.onPush(c, rep) })
			return
		}
		c.l.Debug("push reply without handler", "reply", rep)
		return
	}

	cb, ok := c.replies.pop()
	if !ok {
		// A reply with no pending handler means the stream is desynchronized
		// (or the server pushed an error outside any request).
		if rep.IsError() {
			c.fail(KindOther, errors.New(rep.Text()))
			return
		}
		c.fail(KindOther, errUnexpectedReply)
		return
	}
	statReplies.Inc()
	if cb.fn != nil {
		cb.fn(c, rep, nil)
	}
	// Monitor mode reuses one handler for the endless feed of status lines.
	if c.monitoring && c.state == StateConnected {
		c.replies.push(cb)
	}
}

var subscribeKinds = map[string]struct{}{
	"subscribe":    {},
	"unsubscribe":  {},
	"psubscribe":   {},
	"punsubscribe": {},
	"message":      {},
	"pmessage":     {},
}

// subscribeKind classifies pub/sub-shaped replies: push replies always, and
// plain arrays only while the connection is in subscribed mode.
func (c *Conn) subscribeKind(rep *resp.Reply) (string, bool) {
	if rep.Type != resp.TypePush && !(c.subscribed && rep.Type == resp.TypeArray) {
		return "", false
	}
	if rep.Len() < 2 {
		return "", false
	}
	head := rep.Index(0)
	if head == nil || (head.Type != resp.TypeString && head.Type != resp.TypeStatus) {
		return "", false
	}
	kind := strings.ToLower(head.Text())
	if _, ok := subscribeKinds[kind]; !ok {
		return "", false
	}
	return kind, true
}

func (c *Conn) handleSubscribeReply(kind string, rep *resp.Reply) {
	pattern := kind[0] == 'p'
	base := kind
	if pattern {
		base = kind[1:]
	}
	name := rep.Index(1).Text()

	switch base {
	case "subscribe":
		e, ok := c.sub.get(pattern, name)
		if !ok {
			c.l.Warn("subscribe ack for unknown name", "name", name)
			return
		}
		e.pendingSubs--
		if e.fn != nil {
			e.fn(c, rep, nil)
		}

	case "unsubscribe":
		// Registry entries are retired by name, not by queue position.
		if e, ok := c.sub.get(pattern, name); ok && e.unsubSent && e.pendingSubs <= 0 {
			c.sub.remove(pattern, name)
		}
		if c.sub.pendingUnsubs > 0 {
			c.sub.pendingUnsubs--
			if head, ok := c.sub.replies.peek(); ok && head.unsubSent {
				head.pendingSubs--
				fn := head.fn
				if head.pendingSubs <= 0 {
					c.sub.replies.pop()
				}
				if fn != nil {
					fn(c, rep, nil)
				}
			}
		}
		if cnt := rep.Index(2); cnt != nil && cnt.Type == resp.TypeInteger && cnt.Integer == 0 {
			c.subscribed = false
		}

	case "message":
		statPushMessages.Inc()
		if e, ok := c.sub.get(pattern, name); ok && e.fn != nil {
			fn := e.fn
			c.dispatch(func() { fn(c, rep, nil) })
			return
		}
		if c.onPush != nil {
			c.dispatch(func() { c.onPush(c, rep) })
			return
		}
		c.l.Debug("message for unknown name", "name", name)
	}
}

// dispatch runs a message handler inline, or on the worker pool when
// asynchronous handlers were requested.
func (c *Conn) dispatch(fn func()) {
	if c.pool != nil {
		if err := c.pool.Submit(fn); err == nil {
			return
		}
	}
	fn()
}

func (c *Conn) fail(kind Kind, err error) error {
	if c.err == nil {
		c.err = newError(kind, err)
	}
	c.teardown(c.err)
	return c.err
}

// teardown finishes the connection: every still-pending handler in both
// queues and both registries is invoked exactly once with an error, then
// the disconnect handler fires exactly once.
func (c *Conn) teardown(deliver error) {
	if c.state == StateDisconnected {
		return
	}
	c.state = StateDisconnected

	if deliver == nil {
		deliver = ErrConnClosed
	}
	for {
		cb, ok := c.replies.pop()
		if !ok {
			break
		}
		if cb.fn != nil {
			cb.fn(c, nil, deliver)
		}
	}
	for {
		cb, ok := c.sub.replies.pop()
		if !ok {
			break
		}
		if cb.fn != nil {
			cb.fn(c, nil, deliver)
		}
	}
	for _, pattern := range []bool{false, true} {
		for _, name := range c.sub.names(pattern) {
			if e, ok := c.sub.get(pattern, name); ok && e.fn != nil {
				e.fn(c, nil, deliver)
			}
			c.sub.remove(pattern, name)
		}
	}

	_ = c.tr.Close()
	if c.pool != nil {
		c.pool.Release()
	}
	statDisconnects.Inc()
	c.l.Debug("disconnected", "addr", c.addr, "err", c.Err())

	if c.onDisconnect != nil && c.wasConnected {
		c.onDisconnect(c, c.Err())
	}
}
