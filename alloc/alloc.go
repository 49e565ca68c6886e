package alloc

import (
	"errors"
	"math/bits"
	"sync/atomic"
)

// ErrOutOfMemory is returned when an allocator cannot satisfy a request.
var ErrOutOfMemory = errors.New("out of memory")

// Allocator is the single source of byte buffers for the parser and the
// connection. Implementations may fail; callers must treat a returned error
// as fatal for the operation that needed the buffer.
type Allocator interface {
	// Bytes returns a slice of length n with capacity of at least n.
	Bytes(n int) ([]byte, error)

	// BytesZeroed returns a zeroed slice of length count*size. It fails
	// instead of wrapping when count*size would overflow.
	BytesZeroed(count, size int) ([]byte, error)

	// Grow returns a slice with the same contents and length as b and a
	// capacity of at least n. The original slice must not be used after a
	// successful Grow.
	Grow(b []byte, n int) ([]byte, error)
}

// Heap allocates from the Go runtime heap. It never fails.
type Heap struct{}

func (Heap) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrOutOfMemory
	}
	return make([]byte, n), nil
}

func (Heap) BytesZeroed(count, size int) ([]byte, error) {
	n, ok := checkedMul(count, size)
	if !ok {
		return nil, ErrOutOfMemory
	}
	return make([]byte, n), nil
}

func (Heap) Grow(b []byte, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrOutOfMemory
	}
	if cap(b) >= n {
		return b, nil
	}
	newCap := cap(b) * 2
	if newCap < n {
		newCap = n
	}
	nb := make([]byte, len(b), newCap)
	copy(nb, b)
	return nb, nil
}

// checkedMul multiplies two non-negative sizes, reporting overflow.
func checkedMul(count, size int) (int, bool) {
	if count < 0 || size < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(count), uint64(size))
	if hi != 0 || lo > uint64(maxInt) {
		return 0, false
	}
	return int(lo), true
}

const maxInt = int(^uint(0) >> 1)

var defaultAllocator atomic.Pointer[Allocator]

func init() {
	Reset()
}

// Default returns the process-wide allocator.
func Default() Allocator {
	return *defaultAllocator.Load()
}

// Set overrides the process-wide allocator. It is intended to be called once
// at startup, before any reader or connection is created.
func Set(a Allocator) {
	defaultAllocator.Store(&a)
}

// Reset restores the process-wide allocator to the heap allocator.
func Reset() {
	var a Allocator = Heap{}
	defaultAllocator.Store(&a)
}

// Bounded wraps an allocator with a total byte budget. Requests past the
// budget fail with ErrOutOfMemory. Released bytes are not returned to the
// budget; Bounded exists to make allocation failure reachable in tests and
// in embedders that need a hard cap.
func Bounded(inner Allocator, limit int64) Allocator {
	return &bounded{inner: inner, limit: limit}
}

type bounded struct {
	inner Allocator
	limit int64
	used  atomic.Int64
}

func (b *bounded) reserve(n int) error {
	if b.used.Add(int64(n)) > b.limit {
		b.used.Add(int64(-n))
		return ErrOutOfMemory
	}
	return nil
}

func (b *bounded) Bytes(n int) ([]byte, error) {
	if err := b.reserve(n); err != nil {
		return nil, err
	}
	return b.inner.Bytes(n)
}

func (b *bounded) BytesZeroed(count, size int) ([]byte, error) {
	n, ok := checkedMul(count, size)
	if !ok {
		return nil, ErrOutOfMemory
	}
	if err := b.reserve(n); err != nil {
		return nil, err
	}
	return b.inner.Bytes(n)
}

func (b *bounded) Grow(bs []byte, n int) ([]byte, error) {
	if n > cap(bs) {
		if err := b.reserve(n - cap(bs)); err != nil {
			return nil, err
		}
	}
	return b.inner.Grow(bs, n)
}
