package strand

import (
	"errors"
	"net"

	"github.com/strand-kv/strand-go/alloc"
	"github.com/strand-kv/strand-go/transport"
)

// outbound accumulates formatted requests until the socket is writable.
// Data is staged as a vector of chunks; a partial write leaves the
// remainder of the head chunk in place for the next writable event.
type outbound struct {
	v  net.Buffers
	pb int64 // pending bytes
}

func (o *outbound) pending() int64 {
	return o.pb
}

// queue appends data to the vector. Any allocation happens before the
// vector or the byte count is touched, so a failed queue leaves no trace.
func (o *outbound) queue(a alloc.Allocator, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	fill := 0
	if len(o.v) > 0 {
		last := o.v[len(o.v)-1]
		if free := cap(last) - len(last); free > 0 {
			fill = min(free, len(data))
		}
	}

	var chunk []byte
	if len(data) > fill {
		var err error
		chunk, err = a.Bytes(len(data) - fill)
		if err != nil {
			return err
		}
		copy(chunk, data[fill:])
	}

	if fill > 0 {
		last := &o.v[len(o.v)-1]
		*last = append(*last, data[:fill]...)
	}
	if chunk != nil {
		o.v = append(o.v, chunk)
	}
	o.pb += int64(len(data))
	return nil
}

// flush writes as much of the vector as the transport accepts, returning
// the number of bytes written. A would-block result is not an error.
func (o *outbound) flush(tr transport.Conn) (int, error) {
	total := 0
	for len(o.v) > 0 {
		head := o.v[0]
		n, err := tr.Write(head)
		total += n
		o.pb -= int64(n)
		if n < len(head) {
			o.v[0] = head[n:]
			if errors.Is(err, transport.ErrWouldBlock) {
				return total, nil
			}
			if err != nil {
				return total, err
			}
			continue
		}
		o.v[0] = nil
		o.v = o.v[1:]
		if len(o.v) == 0 {
			o.v = nil
		}
	}
	return total, nil
}
