package resp

import (
	"math"
	"strings"
	"testing"

	"github.com/strand-kv/strand-go/alloc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustReply(t *testing.T, r *Reader) *Reply {
	t.Helper()
	obj, err := r.GetReply()
	require.NoError(t, err)
	require.NotNil(t, obj)
	return obj.(*Reply)
}

func decode(t *testing.T, in string) *Reply {
	t.Helper()
	r := NewReader()
	require.NoError(t, r.Feed([]byte(in)))
	return mustReply(t, r)
}

func TestReaderSimpleTypes(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		check func(t *testing.T, rep *Reply)
	}{
		{"status", "+OK\r\n", func(t *testing.T, rep *Reply) {
			assert.Equal(t, TypeStatus, rep.Type)
			assert.Equal(t, "OK", rep.Text())
		}},
		{"error", "-ERR unknown command\r\n", func(t *testing.T, rep *Reply) {
			assert.Equal(t, TypeError, rep.Type)
			assert.True(t, rep.IsError())
			assert.Equal(t, "ERR unknown command", rep.Text())
		}},
		{"integer", ":42\r\n", func(t *testing.T, rep *Reply) {
			assert.Equal(t, TypeInteger, rep.Type)
			assert.EqualValues(t, 42, rep.Integer)
		}},
		{"negative integer", ":-9007\r\n", func(t *testing.T, rep *Reply) {
			assert.EqualValues(t, -9007, rep.Integer)
		}},
		{"min int64", ":-9223372036854775808\r\n", func(t *testing.T, rep *Reply) {
			assert.EqualValues(t, math.MinInt64, rep.Integer)
		}},
		{"max int64", ":9223372036854775807\r\n", func(t *testing.T, rep *Reply) {
			assert.EqualValues(t, math.MaxInt64, rep.Integer)
		}},
		{"bulk string", "$5\r\nhello\r\n", func(t *testing.T, rep *Reply) {
			assert.Equal(t, TypeString, rep.Type)
			assert.Equal(t, "hello", rep.Text())
		}},
		{"empty bulk string", "$0\r\n\r\n", func(t *testing.T, rep *Reply) {
			assert.Equal(t, TypeString, rep.Type)
			assert.Empty(t, rep.Str)
		}},
		{"bulk string with crlf payload", "$6\r\nab\r\ncd\r\n", func(t *testing.T, rep *Reply) {
			assert.Equal(t, "ab\r\ncd", rep.Text())
		}},
		{"null bulk string", "$-1\r\n", func(t *testing.T, rep *Reply) {
			assert.True(t, rep.IsNil())
		}},
		{"null array", "*-1\r\n", func(t *testing.T, rep *Reply) {
			assert.True(t, rep.IsNil())
		}},
		{"resp3 nil", "_\r\n", func(t *testing.T, rep *Reply) {
			assert.True(t, rep.IsNil())
		}},
		{"bool true", "#t\r\n", func(t *testing.T, rep *Reply) {
			assert.Equal(t, TypeBool, rep.Type)
			assert.True(t, rep.Bool)
		}},
		{"bool false", "#f\r\n", func(t *testing.T, rep *Reply) {
			assert.False(t, rep.Bool)
		}},
		{"double", ",3.14\r\n", func(t *testing.T, rep *Reply) {
			assert.Equal(t, TypeDouble, rep.Type)
			assert.InDelta(t, 3.14, rep.Double, 1e-9)
			assert.Equal(t, "3.14", rep.Text())
		}},
		{"double inf", ",inf\r\n", func(t *testing.T, rep *Reply) {
			assert.True(t, math.IsInf(rep.Double, 1))
		}},
		{"big number", "(3492890328409238509324850943850943825024385\r\n", func(t *testing.T, rep *Reply) {
			assert.Equal(t, TypeBigNumber, rep.Type)
			assert.Equal(t, "3492890328409238509324850943850943825024385", rep.Text())
		}},
		{"verbatim string", "=15\r\ntxt:Some string\r\n", func(t *testing.T, rep *Reply) {
			assert.Equal(t, TypeVerbatimString, rep.Type)
			assert.Equal(t, "txt", rep.Verbatim)
			assert.Equal(t, "Some string", rep.Text())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, decode(t, tt.in))
		})
	}
}

func TestReaderArray(t *testing.T) {
	rep := decode(t, "*2\r\n$3\r\nfoo\r\n:42\r\n")

	require.Equal(t, TypeArray, rep.Type)
	require.Equal(t, 2, rep.Len())
	assert.Equal(t, TypeString, rep.Index(0).Type)
	assert.Equal(t, "foo", rep.Index(0).Text())
	assert.Equal(t, TypeInteger, rep.Index(1).Type)
	assert.EqualValues(t, 42, rep.Index(1).Integer)
}

func TestReaderNestedContainers(t *testing.T) {
	rep := decode(t, "*3\r\n*2\r\n:1\r\n:2\r\n*0\r\n$3\r\nend\r\n")

	require.Equal(t, 3, rep.Len())
	inner := rep.Index(0)
	require.Equal(t, 2, inner.Len())
	assert.EqualValues(t, 1, inner.Index(0).Integer)
	assert.EqualValues(t, 2, inner.Index(1).Integer)
	assert.Zero(t, rep.Index(1).Len())
	assert.Equal(t, "end", rep.Index(2).Text())
}

func TestReaderMapDoublesElementCount(t *testing.T) {
	rep := decode(t, "%2\r\n+first\r\n:1\r\n+second\r\n:2\r\n")

	require.Equal(t, TypeMap, rep.Type)
	require.Equal(t, 4, rep.Len())
	assert.Equal(t, "first", rep.Index(0).Text())
	assert.EqualValues(t, 1, rep.Index(1).Integer)
	assert.Equal(t, "second", rep.Index(2).Text())
	assert.EqualValues(t, 2, rep.Index(3).Integer)
}

func TestReaderSetPushAttribute(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		rep := decode(t, "~2\r\n+a\r\n+b\r\n")
		assert.Equal(t, TypeSet, rep.Type)
		assert.Equal(t, 2, rep.Len())
	})

	t.Run("push", func(t *testing.T) {
		rep := decode(t, ">3\r\n+message\r\n+updates\r\n$5\r\nhello\r\n")
		require.Equal(t, TypePush, rep.Type)
		require.Equal(t, 3, rep.Len())
		assert.Equal(t, "message", rep.Index(0).Text())
		assert.Equal(t, "updates", rep.Index(1).Text())
		assert.Equal(t, "hello", rep.Index(2).Text())
	})

	t.Run("attribute", func(t *testing.T) {
		rep := decode(t, "|1\r\n+ttl\r\n:3600\r\n")
		require.Equal(t, TypeAttribute, rep.Type)
		require.Equal(t, 2, rep.Len())
		assert.Equal(t, "ttl", rep.Index(0).Text())
		assert.EqualValues(t, 3600, rep.Index(1).Integer)
	})
}

func TestReaderFragmentedInput(t *testing.T) {
	in := "*2\r\n*1\r\n$3\r\nfoo\r\n$6\r\nbarbaz\r\n"
	r := NewReader()

	// Feed a single byte at a time; the reply must only surface with the
	// last byte, with no spurious errors or partial results before it.
	for i := 0; i < len(in)-1; i++ {
		require.NoError(t, r.Feed([]byte{in[i]}))
		obj, err := r.GetReply()
		require.NoError(t, err)
		require.Nil(t, obj, "premature reply after %d bytes", i+1)
	}
	require.NoError(t, r.Feed([]byte{in[len(in)-1]}))

	rep := mustReply(t, r)
	require.Equal(t, 2, rep.Len())
	assert.Equal(t, "foo", rep.Index(0).Index(0).Text())
	assert.Equal(t, "barbaz", rep.Index(1).Text())
}

func TestReaderPipelinedReplies(t *testing.T) {
	r := NewReader()
	require.NoError(t, r.Feed([]byte("+OK\r\n:7\r\n$2\r\nhi\r\n")))

	assert.Equal(t, "OK", mustReply(t, r).Text())
	assert.EqualValues(t, 7, mustReply(t, r).Integer)
	assert.Equal(t, "hi", mustReply(t, r).Text())

	obj, err := r.GetReply()
	require.NoError(t, err)
	assert.Nil(t, obj)
}

func TestReaderEmptyBuffer(t *testing.T) {
	r := NewReader()
	obj, err := r.GetReply()
	require.NoError(t, err)
	assert.Nil(t, obj)
}

func TestReaderProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{"unknown type byte", "@foo\r\n", "unknown type byte"},
		{"bad integer", ":abc\r\n", "bad integer"},
		{"integer overflow", ":99999999999999999999\r\n", "bad integer"},
		{"empty integer", ":\r\n", "bad integer"},
		{"bad double", ",xyz\r\n", "bad double"},
		{"bad nil", "_x\r\n", "bad nil"},
		{"bad bool", "#x\r\n", "bad bool"},
		{"bad big number", "(12ab\r\n", "bad big number"},
		{"bad bulk length", "$abc\r\n", "bad bulk string length"},
		{"negative bulk length", "$-2\r\n", "bulk string length out of range"},
		{"bad multi-bulk length", "*abc\r\n", "bad multi-bulk length"},
		{"negative multi-bulk length", "*-2\r\n", "multi-bulk length out of range"},
		{"verbatim without format", "=4\r\nabcd\r\n", "verbatim string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader()
			require.NoError(t, r.Feed([]byte(tt.in)))

			obj, err := r.GetReply()
			require.Error(t, err)
			assert.Nil(t, obj)

			var perr *ProtocolError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, err.Error(), tt.msg)

			// The reader is terminal after a protocol error.
			assert.ErrorIs(t, r.Err(), err)
			assert.ErrorIs(t, r.Feed([]byte("+OK\r\n")), err)
			_, err2 := r.GetReply()
			assert.ErrorIs(t, err2, err)
		})
	}
}

func TestReaderHostileBulkLength(t *testing.T) {
	// Lengths near the platform maximum must become a protocol error, not
	// overflow the availability math.
	for _, in := range []string{
		"$9223372036854775805\r\n",
		"$9223372036854775807\r\n",
	} {
		t.Run(in[1:len(in)-2], func(t *testing.T) {
			r := NewReader()
			require.NoError(t, r.Feed([]byte(in)))

			obj, err := r.GetReply()
			assert.Nil(t, obj)
			require.Error(t, err)

			var perr *ProtocolError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, err.Error(), "bulk string length out of range")
		})
	}

	// A large but representable length is simply incomplete input.
	r := NewReader()
	require.NoError(t, r.Feed([]byte("$2147483647\r\n")))
	obj, err := r.GetReply()
	require.NoError(t, err)
	assert.Nil(t, obj)
}

func TestReaderHugeDeclaredArray(t *testing.T) {
	// A container header declaring billions of elements must not reserve
	// memory for them up front; the reply just stays incomplete until the
	// elements actually arrive.
	for _, in := range []string{
		"*4294967295\r\n:1\r\n:2\r\n",
		"%2147483647\r\n+k\r\n+v\r\n",
	} {
		r := NewReader()
		require.NoError(t, r.Feed([]byte(in)))

		obj, err := r.GetReply()
		require.NoError(t, err)
		assert.Nil(t, obj)
	}
}

func TestReaderMaxElements(t *testing.T) {
	r := NewReader(WithMaxElements(4))
	require.NoError(t, r.Feed([]byte("*5\r\n")))

	_, err := r.GetReply()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multi-bulk length out of range")

	r = NewReader(WithMaxElements(4))
	require.NoError(t, r.Feed([]byte("*4\r\n:1\r\n:2\r\n:3\r\n:4\r\n")))
	assert.Equal(t, 4, mustReply(t, r).Len())
}

func TestReaderAllocationFailure(t *testing.T) {
	r := NewReader(WithAllocator(alloc.Bounded(alloc.Heap{}, 16)))

	err := r.Feed([]byte("$100\r\n" + strings.Repeat("x", 100) + "\r\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, alloc.ErrOutOfMemory)
	assert.Error(t, r.Err())
}

func TestReaderCompaction(t *testing.T) {
	r := NewReader()

	// Push the cursor well past the compaction threshold within one buffer,
	// then make sure a reply split across the boundary still decodes.
	var in strings.Builder
	for i := 0; i < 400; i++ {
		in.WriteString(":1\r\n")
	}
	in.WriteString("$10\r\n01234")
	require.NoError(t, r.Feed([]byte(in.String())))

	for i := 0; i < 400; i++ {
		assert.EqualValues(t, 1, mustReply(t, r).Integer)
	}
	obj, err := r.GetReply()
	require.NoError(t, err)
	require.Nil(t, obj)

	require.NoError(t, r.Feed([]byte("56789\r\n")))
	assert.Equal(t, "0123456789", mustReply(t, r).Text())
}

func TestReaderLargeBulkString(t *testing.T) {
	payload := strings.Repeat("v", 3*DefaultMaxBufferSize)
	r := NewReader()

	require.NoError(t, r.Feed([]byte("$49152\r\n"+payload+"\r\n")))
	rep := mustReply(t, r)
	assert.Len(t, rep.Str, len(payload))

	// Decoding continues after the oversized reply.
	require.NoError(t, r.Feed([]byte("+OK\r\n")))
	assert.Equal(t, "OK", mustReply(t, r).Text())
}

func TestReaderSplitCRLF(t *testing.T) {
	r := NewReader()

	require.NoError(t, r.Feed([]byte(":12\r")))
	obj, err := r.GetReply()
	require.NoError(t, err)
	require.Nil(t, obj)

	require.NoError(t, r.Feed([]byte("\n")))
	assert.EqualValues(t, 12, mustReply(t, r).Integer)
}

// countingBuilder materializes replies as element counts instead of values.
type countingBuilder struct {
	frees int
}

func (b *countingBuilder) attach(task *ReadTask, v any) any {
	if task.Parent != nil {
		counts := task.Parent.Obj.([]any)
		counts[task.Idx] = v
	}
	return v
}

func (b *countingBuilder) CreateString(task *ReadTask, payload []byte) (any, error) {
	return b.attach(task, len(payload)), nil
}

func (b *countingBuilder) CreateArray(task *ReadTask, n int) (any, error) {
	arr := make([]any, n)
	if task.Parent != nil {
		task.Parent.Obj.([]any)[task.Idx] = arr
	}
	return arr, nil
}

func (b *countingBuilder) CreateInteger(task *ReadTask, v int64) (any, error) {
	return b.attach(task, v), nil
}

func (b *countingBuilder) CreateDouble(task *ReadTask, v float64, raw []byte) (any, error) {
	return b.attach(task, v), nil
}

func (b *countingBuilder) CreateNil(task *ReadTask) (any, error) {
	return b.attach(task, nil), nil
}

func (b *countingBuilder) CreateBool(task *ReadTask, v bool) (any, error) {
	return b.attach(task, v), nil
}

func (b *countingBuilder) Free(any) { b.frees++ }

func TestReaderCustomBuilder(t *testing.T) {
	r := NewReader(WithBuilder(&countingBuilder{}))
	require.NoError(t, r.Feed([]byte("*3\r\n$5\r\nhello\r\n:9\r\n$-1\r\n")))

	obj, err := r.GetReply()
	require.NoError(t, err)

	arr, ok := obj.([]any)
	require.True(t, ok)
	require.Len(t, arr, 3)
	assert.Equal(t, 5, arr[0])
	assert.EqualValues(t, 9, arr[1])
	assert.Nil(t, arr[2])
}

func TestReaderPayloadDoesNotAliasBuffer(t *testing.T) {
	r := NewReader()
	in := []byte("$3\r\nfoo\r\n")
	require.NoError(t, r.Feed(in))
	rep := mustReply(t, r)

	// Mutate the source and keep reading; the decoded payload must hold.
	for i := range in {
		in[i] = 'z'
	}
	require.NoError(t, r.Feed([]byte("$3\r\nbar\r\n")))
	_ = mustReply(t, r)
	assert.Equal(t, "foo", rep.Text())
}
