package resp

import (
	"github.com/strand-kv/strand-go/alloc"
)

// ReadTask is one frame in the reader's container stack. Builders receive
// the frame so they can attach a new value to its parent container and see
// the type being decoded.
type ReadTask struct {
	Type     Type
	Elements int64 // declared element count of a container, -1 before the header is read
	Idx      int   // index within the parent container
	Obj      any
	Parent   *ReadTask
}

// ReplyBuilder materializes decoded values. The reader never builds a
// concrete type itself; embedders can supply their own builder to decode
// straight into an application representation. A builder error is fatal for
// the reader that called it.
type ReplyBuilder interface {
	// CreateString is called for string, status, error, bignumber and
	// verbatim payloads; the frame's Type distinguishes them. The payload
	// slice aliases the read buffer and must be copied.
	CreateString(task *ReadTask, payload []byte) (any, error)

	// CreateArray is called for all container types with the final child
	// count (map and attribute counts are already doubled).
	CreateArray(task *ReadTask, n int) (any, error)

	CreateInteger(task *ReadTask, v int64) (any, error)

	// CreateDouble receives both the parsed value and the raw text.
	CreateDouble(task *ReadTask, v float64, raw []byte) (any, error)

	CreateNil(task *ReadTask) (any, error)
	CreateBool(task *ReadTask, v bool) (any, error)

	// Free releases a value produced by this builder, for builders that
	// manage buffers outside the garbage collector.
	Free(obj any)
}

// defaultBuilder produces *Reply values, copying payloads through the
// reader's allocator.
type defaultBuilder struct {
	a alloc.Allocator
}

// maxPrealloc caps how many child slots a container reserves up front. A
// declared count is attacker-controlled and arrives before any element, so
// capacity beyond this grows only as children actually complete.
const maxPrealloc = 1 << 16

// attach appends r to its parent container. Children complete strictly in
// index order, so append keeps Elements aligned with task.Idx.
func (b *defaultBuilder) attach(task *ReadTask, r *Reply) {
	if task.Parent == nil {
		return
	}
	parent := task.Parent.Obj.(*Reply)
	parent.Elements = append(parent.Elements, r)
}

func (b *defaultBuilder) CreateString(task *ReadTask, payload []byte) (any, error) {
	buf, err := b.a.Bytes(len(payload))
	if err != nil {
		return nil, err
	}
	copy(buf, payload)

	r := &Reply{Type: task.Type, Str: buf}
	if task.Type == TypeVerbatimString {
		r.Verbatim = string(buf[:3])
		r.Str = buf[4:]
	}
	b.attach(task, r)
	return r, nil
}

func (b *defaultBuilder) CreateArray(task *ReadTask, n int) (any, error) {
	r := &Reply{Type: task.Type}
	if n > 0 {
		r.Elements = make([]*Reply, 0, min(n, maxPrealloc))
	}
	b.attach(task, r)
	return r, nil
}

func (b *defaultBuilder) CreateInteger(task *ReadTask, v int64) (any, error) {
	r := &Reply{Type: TypeInteger, Integer: v}
	b.attach(task, r)
	return r, nil
}

func (b *defaultBuilder) CreateDouble(task *ReadTask, v float64, raw []byte) (any, error) {
	buf, err := b.a.Bytes(len(raw))
	if err != nil {
		return nil, err
	}
	copy(buf, raw)

	r := &Reply{Type: TypeDouble, Double: v, Str: buf}
	b.attach(task, r)
	return r, nil
}

func (b *defaultBuilder) CreateNil(task *ReadTask) (any, error) {
	r := &Reply{Type: TypeNil}
	b.attach(task, r)
	return r, nil
}

func (b *defaultBuilder) CreateBool(task *ReadTask, v bool) (any, error) {
	r := &Reply{Type: TypeBool, Bool: v}
	b.attach(task, r)
	return r, nil
}

func (b *defaultBuilder) Free(any) {}
