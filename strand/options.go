package strand

import (
	"log/slog"

	"github.com/strand-kv/strand-go/alloc"
)

// Option configures a Conn at construction time.
type Option func(*Conn)

// WithLogger sets the connection logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.l = l
		}
	}
}

// WithAllocator routes the connection's buffer allocations (parser buffer,
// decoded payloads, outbound chunks) through a.
func WithAllocator(a alloc.Allocator) Option {
	return func(c *Conn) {
		if a != nil {
			c.a = a
		}
	}
}

// WithConnectHandler registers h to fire once when the connection is
// established, or with an error when the connect attempt fails.
func WithConnectHandler(h ConnectHandler) Option {
	return func(c *Conn) {
		c.onConnect = h
	}
}

// WithDisconnectHandler registers h to fire exactly once at teardown.
func WithDisconnectHandler(h DisconnectHandler) Option {
	return func(c *Conn) {
		c.onDisconnect = h
	}
}

// WithPushHandler registers h for out-of-band push replies that no
// channel or pattern registration claims.
func WithPushHandler(h PushHandler) Option {
	return func(c *Conn) {
		c.onPush = h
	}
}

// WithMaxElements caps the element count of a single aggregate reply.
func WithMaxElements(n int64) Option {
	return func(c *Conn) {
		c.maxElements = n
	}
}

// WithMaxBufferSize caps the idle parser buffer size.
func WithMaxBufferSize(n int) Option {
	return func(c *Conn) {
		c.maxBuf = n
	}
}

// WithAsyncHandlers runs pub/sub message and push handlers on a worker
// pool of the given size instead of inline on the driving goroutine. Reply
// handlers for regular commands always run inline to preserve ordering.
func WithAsyncHandlers(poolSize int) Option {
	return func(c *Conn) {
		c.poolSize = poolSize
	}
}
