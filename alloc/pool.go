package alloc

import (
	"sync"
)

// Size classes for pooled scratch buffers. Command frames are usually tiny,
// read chunks and bulk payloads dominate the upper classes.
const (
	sizeTiny   = 64
	sizeSmall  = 512
	sizeMedium = 4096
	sizeLarge  = 65536
)

var poolTiny = &sync.Pool{
	New: func() any {
		b := [sizeTiny]byte{}
		return &b
	},
}

var poolSmall = &sync.Pool{
	New: func() any {
		b := [sizeSmall]byte{}
		return &b
	},
}

var poolMedium = &sync.Pool{
	New: func() any {
		b := [sizeMedium]byte{}
		return &b
	},
}

var poolLarge = &sync.Pool{
	New: func() any {
		b := [sizeLarge]byte{}
		return &b
	},
}

// Get returns a zero-length scratch buffer with capacity of at least sz.
// Buffers above the largest size class come from the heap and are not pooled.
func Get(sz int) []byte {
	switch {
	case sz <= sizeTiny:
		return poolTiny.Get().(*[sizeTiny]byte)[:0]
	case sz <= sizeSmall:
		return poolSmall.Get().(*[sizeSmall]byte)[:0]
	case sz <= sizeMedium:
		return poolMedium.Get().(*[sizeMedium]byte)[:0]
	case sz <= sizeLarge:
		return poolLarge.Get().(*[sizeLarge]byte)[:0]
	default:
		return make([]byte, 0, sz)
	}
}

// Put returns a buffer obtained from Get to its size class. Buffers with
// foreign capacities are dropped for the garbage collector.
func Put(b []byte) {
	switch cap(b) {
	case sizeTiny:
		poolTiny.Put((*[sizeTiny]byte)(b[0:sizeTiny]))
	case sizeSmall:
		poolSmall.Put((*[sizeSmall]byte)(b[0:sizeSmall]))
	case sizeMedium:
		poolMedium.Put((*[sizeMedium]byte)(b[0:sizeMedium]))
	case sizeLarge:
		poolLarge.Put((*[sizeLarge]byte)(b[0:sizeLarge]))
	default:
	}
}

// Pooled is an Allocator drawing from the size-class pools. Callers that
// know a buffer's lifetime can hand it back with Put; buffers that escape
// are reclaimed by the garbage collector like any other slice.
type Pooled struct{}

func (Pooled) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrOutOfMemory
	}
	return Get(n)[:n], nil
}

func (Pooled) BytesZeroed(count, size int) ([]byte, error) {
	n, ok := checkedMul(count, size)
	if !ok {
		return nil, ErrOutOfMemory
	}
	b := Get(n)[:n]
	clear(b)
	return b, nil
}

func (Pooled) Grow(b []byte, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrOutOfMemory
	}
	if cap(b) >= n {
		return b, nil
	}
	nb := Get(n)
	nb = nb[:len(b)]
	copy(nb, b)
	Put(b)
	return nb, nil
}
