// Package resp implements the wire format of the Strand key-value protocol:
// an incremental reply decoder that accepts arbitrarily fragmented input,
// the default reply value model, a pluggable builder boundary for embedders
// that materialize replies into their own types, and the request encoder.
//
// The Reader never performs I/O. Callers feed it raw bytes as they arrive
// and drain completed replies:
//
//	rd := resp.NewReader()
//	if err := rd.Feed(chunk); err != nil { ... }
//	for {
//		v, err := rd.GetReply()
//		if err != nil || v == nil {
//			break
//		}
//		reply := v.(*resp.Reply)
//		...
//	}
//
// Protocol and allocation errors are terminal: the reader must be discarded
// and replaced, since a stream that failed to parse cannot be resynchronized.
package resp
