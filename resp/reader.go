package resp

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/strand-kv/strand-go/alloc"
)

const (
	// DefaultMaxBufferSize bounds how much consumed-but-unreleased buffer an
	// idle reader retains.
	DefaultMaxBufferSize = 16 * 1024

	// DefaultMaxElements bounds the declared element count of a single
	// container reply.
	DefaultMaxElements = (1 << 32) - 1

	// compactThreshold is how far the cursor may advance before the consumed
	// prefix is discarded.
	compactThreshold = 1024
)

// ProtocolError reports malformed wire input. A reader that produced one is
// terminal and must be discarded; the byte stream cannot be resynchronized.
type ProtocolError struct {
	msg string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.msg
}

// Reader incrementally decodes replies from a protocol byte stream. Feed
// appends raw network bytes; GetReply returns at most one completed
// top-level value per call and (nil, nil) while more bytes are needed.
// A Reader is not safe for concurrent use.
type Reader struct {
	err error

	buf []byte
	pos int

	maxBuf      int
	maxElements int64

	tasks []*ReadTask
	ridx  int
	reply any

	fn ReplyBuilder
	a  alloc.Allocator
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithBuilder replaces the default *Reply builder.
func WithBuilder(fn ReplyBuilder) ReaderOption {
	return func(r *Reader) {
		r.fn = fn
	}
}

// WithAllocator routes the reader's buffer allocations through a.
func WithAllocator(a alloc.Allocator) ReaderOption {
	return func(r *Reader) {
		r.a = a
	}
}

// WithMaxBufferSize overrides DefaultMaxBufferSize.
func WithMaxBufferSize(n int) ReaderOption {
	return func(r *Reader) {
		r.maxBuf = n
	}
}

// WithMaxElements overrides DefaultMaxElements. Zero disables the bound.
func WithMaxElements(n int64) ReaderOption {
	return func(r *Reader) {
		r.maxElements = n
	}
}

// NewReader returns a ready Reader.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{
		maxBuf:      DefaultMaxBufferSize,
		maxElements: DefaultMaxElements,
		ridx:        -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.a == nil {
		r.a = alloc.Default()
	}
	if r.fn == nil {
		r.fn = &defaultBuilder{a: r.a}
	}
	return r
}

// Err returns the terminal error, if any.
func (r *Reader) Err() error {
	return r.err
}

// Feed appends raw bytes to the read buffer.
func (r *Reader) Feed(p []byte) error {
	if r.err != nil {
		return r.err
	}
	if len(p) == 0 {
		return nil
	}

	// Release an oversized buffer once everything in it has been consumed.
	if r.pos > 0 && r.pos == len(r.buf) {
		r.buf = r.buf[:0]
		r.pos = 0
		if cap(r.buf) > r.maxBuf {
			r.buf = nil
		}
	}

	need := len(r.buf) + len(p)
	if cap(r.buf) < need {
		nb, err := r.a.Grow(r.buf, need)
		if err != nil {
			r.err = fmt.Errorf("grow read buffer: %w", err)
			return r.err
		}
		r.buf = nb
	}
	r.buf = append(r.buf, p...)
	return nil
}

// GetReply attempts to decode one top-level reply from buffered bytes.
// It returns (nil, nil) when the buffer does not yet hold a complete reply.
func (r *Reader) GetReply() (any, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.pos == len(r.buf) {
		return nil, nil
	}

	if r.ridx == -1 {
		if len(r.tasks) == 0 {
			r.tasks = append(r.tasks, &ReadTask{})
		}
		root := r.tasks[0]
		root.Type, root.Elements, root.Idx, root.Obj, root.Parent = typeNone, -1, -1, nil, nil
		r.ridx = 0
	}

	for r.ridx >= 0 {
		if !r.processItem() {
			break
		}
	}

	if r.err != nil {
		return nil, r.err
	}

	// Discard the consumed prefix once the cursor has moved far enough.
	if r.pos >= compactThreshold {
		n := copy(r.buf, r.buf[r.pos:])
		r.buf = r.buf[:n]
		r.pos = 0
	}

	if r.ridx == -1 {
		reply := r.reply
		r.reply = nil
		return reply, nil
	}
	return nil, nil
}

func (r *Reader) setProtocolError(format string, args ...any) {
	r.err = &ProtocolError{msg: fmt.Sprintf(format, args...)}
}

// processItem advances the current frame by one step. It returns false when
// more input is needed or a terminal error was recorded.
func (r *Reader) processItem() bool {
	cur := r.tasks[r.ridx]

	if cur.Type == typeNone {
		if r.pos >= len(r.buf) {
			return false
		}
		tag := r.buf[r.pos]
		typ, ok := typeForTag(tag)
		if !ok {
			r.setProtocolError("unknown type byte %q", tag)
			return false
		}
		cur.Type = typ
		r.pos++
	}

	switch cur.Type {
	case TypeStatus, TypeError, TypeInteger, TypeDouble, TypeNil, TypeBool, TypeBigNumber:
		return r.processLineItem(cur)
	case TypeString, TypeVerbatimString:
		return r.processBulkItem(cur)
	default:
		return r.processAggregateItem(cur)
	}
}

// peekLine locates the next CRLF-terminated line without consuming it.
// size covers the line plus its terminator.
func (r *Reader) peekLine() (line []byte, size int, ok bool) {
	rest := r.buf[r.pos:]
	i := bytes.IndexByte(rest, '\r')
	for i >= 0 {
		if i+1 >= len(rest) {
			return nil, 0, false
		}
		if rest[i+1] == '\n' {
			return rest[:i], i + 2, true
		}
		j := bytes.IndexByte(rest[i+1:], '\r')
		if j < 0 {
			return nil, 0, false
		}
		i += 1 + j
	}
	return nil, 0, false
}

func (r *Reader) readLine() ([]byte, bool) {
	line, size, ok := r.peekLine()
	if !ok {
		return nil, false
	}
	r.pos += size
	return line, true
}

func (r *Reader) complete(obj any) {
	if r.ridx == 0 {
		r.reply = obj
	}
	r.moveToNextTask()
}

func (r *Reader) processLineItem(cur *ReadTask) bool {
	line, ok := r.readLine()
	if !ok {
		return false
	}

	var (
		obj any
		err error
	)
	switch cur.Type {
	case TypeInteger:
		v, perr := parseInt(line)
		if perr != nil {
			r.setProtocolError("bad integer value")
			return false
		}
		obj, err = r.fn.CreateInteger(cur, v)
	case TypeDouble:
		v, pok := parseDouble(line)
		if !pok {
			r.setProtocolError("bad double value")
			return false
		}
		obj, err = r.fn.CreateDouble(cur, v, line)
	case TypeNil:
		if len(line) != 0 {
			r.setProtocolError("bad nil value")
			return false
		}
		obj, err = r.fn.CreateNil(cur)
	case TypeBool:
		if len(line) != 1 || (line[0] != 't' && line[0] != 'f') {
			r.setProtocolError("bad bool value")
			return false
		}
		obj, err = r.fn.CreateBool(cur, line[0] == 't')
	case TypeBigNumber:
		if !validBigNumber(line) {
			r.setProtocolError("bad big number value")
			return false
		}
		obj, err = r.fn.CreateString(cur, line)
	default: // status, error
		obj, err = r.fn.CreateString(cur, line)
	}
	if err != nil {
		r.err = err
		return false
	}
	r.complete(obj)
	return true
}

func (r *Reader) processBulkItem(cur *ReadTask) bool {
	line, headerLen, ok := r.peekLine()
	if !ok {
		return false
	}
	n, perr := parseInt(line)
	if perr != nil {
		r.setProtocolError("bad bulk string length")
		return false
	}
	// The header and trailing CRLF must fit alongside the payload in one
	// addressable buffer, so the bound accounts for them.
	if n < -1 || n > int64(maxIntValue)-int64(headerLen)-2 {
		r.setProtocolError("bulk string length out of range")
		return false
	}

	var (
		obj any
		err error
	)
	if n == -1 {
		// Null bulk string.
		obj, err = r.fn.CreateNil(cur)
		if err != nil {
			r.err = err
			return false
		}
		r.pos += headerLen
	} else {
		total := headerLen + int(n) + 2
		if total > len(r.buf)-r.pos {
			return false
		}
		payload := r.buf[r.pos+headerLen : r.pos+headerLen+int(n)]
		if cur.Type == TypeVerbatimString && (n < 4 || payload[3] != ':') {
			r.setProtocolError("verbatim string content type missing or incorrectly encoded")
			return false
		}
		obj, err = r.fn.CreateString(cur, payload)
		if err != nil {
			r.err = err
			return false
		}
		r.pos += total
	}
	r.complete(obj)
	return true
}

func (r *Reader) processAggregateItem(cur *ReadTask) bool {
	line, ok := r.readLine()
	if !ok {
		return false
	}
	n, perr := parseInt(line)
	if perr != nil {
		r.setProtocolError("bad multi-bulk length")
		return false
	}
	if n < -1 || (r.maxElements > 0 && n > r.maxElements) {
		r.setProtocolError("multi-bulk length out of range")
		return false
	}

	if n == -1 {
		// Null container.
		obj, err := r.fn.CreateNil(cur)
		if err != nil {
			r.err = err
			return false
		}
		r.complete(obj)
		return true
	}

	// Maps and attributes declare pair counts.
	if cur.Type == TypeMap || cur.Type == TypeAttribute {
		n *= 2
	}

	obj, err := r.fn.CreateArray(cur, int(n))
	if err != nil {
		r.err = err
		return false
	}
	cur.Elements = n
	cur.Obj = obj
	if r.ridx == 0 {
		r.reply = obj
	}
	if n > 0 {
		r.pushTask(cur)
	} else {
		r.moveToNextTask()
	}
	return true
}

func (r *Reader) pushTask(parent *ReadTask) {
	r.ridx++
	if r.ridx == len(r.tasks) {
		r.tasks = append(r.tasks, &ReadTask{})
	}
	t := r.tasks[r.ridx]
	t.Type, t.Elements, t.Idx, t.Obj, t.Parent = typeNone, -1, 0, nil, parent
}

func (r *Reader) moveToNextTask() {
	for r.ridx >= 0 {
		if r.ridx == 0 {
			r.ridx = -1
			return
		}
		cur, prv := r.tasks[r.ridx], r.tasks[r.ridx-1]
		if int64(cur.Idx) == prv.Elements-1 {
			r.ridx--
			continue
		}
		cur.Type, cur.Elements, cur.Obj = typeNone, -1, nil
		cur.Idx++
		return
	}
}

const maxIntValue = int(^uint(0) >> 1)

// parseInt is a strict base-10 parser over a raw line. It rejects empty
// input, stray characters and overflow.
func parseInt(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}

	neg := false
	i := 0
	switch b[0] {
	case '-':
		neg = true
		i = 1
	case '+':
		i = 1
	}
	if i == len(b) {
		return 0, strconv.ErrSyntax
	}

	limit := uint64(math.MaxInt64)
	if neg {
		limit++
	}
	var n uint64
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, strconv.ErrSyntax
		}
		d := uint64(b[i] - '0')
		if n > (limit-d)/10 {
			return 0, strconv.ErrRange
		}
		n = n*10 + d
	}
	if neg {
		return -int64(n), nil
	}
	return int64(n), nil
}

func parseDouble(b []byte) (float64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func validBigNumber(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	i := 0
	if b[0] == '-' || b[0] == '+' {
		i = 1
	}
	if i == len(b) {
		return false
	}
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return false
		}
	}
	return true
}
