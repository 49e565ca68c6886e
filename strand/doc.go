// Package strand implements a non-blocking, callback-driven client
// connection for RESP-speaking servers.
//
// A Conn pipelines commands over one transport connection: each command
// registers a handler, and replies are matched to handlers in submission
// order. Pub/sub subscriptions live in a separate registry keyed by
// channel or pattern name, because pushed messages interleave freely with
// regular replies.
//
// The connection itself holds no locks. Exactly one goroutine drives it at
// a time, either by calling HandleReadable/HandleWritable from an external
// event loop, or through the built-in poll driver:
//
//	c, err := strand.Connect("tcp", "localhost:6379")
//	if err != nil {
//		return err
//	}
//	c.SendCommand(func(c *strand.Conn, r *resp.Reply, err error) {
//		// runs on the driving goroutine
//	}, "PING")
//	loop := strand.StartLoop(c, 100*time.Millisecond)
//	defer loop.Stop()
//
// Handlers run on the driving goroutine (or, with WithAsyncHandlers, on a
// worker pool for pub/sub messages) and may send further commands but must
// not block.
package strand
