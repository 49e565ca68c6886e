package strand

import (
	"errors"
	"io"

	"github.com/strand-kv/strand-go/alloc"
	"github.com/strand-kv/strand-go/resp"
)

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrEmptyCommand = errors.New("empty command")
	ErrNoChannels   = errors.New("no channels or patterns given")

	errUnexpectedReply = errors.New("reply without pending callback")
)

// Kind classifies a connection failure.
type Kind int

const (
	KindNone Kind = iota
	KindIO
	KindEOF
	KindProtocol
	KindOOM
	KindTimeout
	KindOther
)

var kindNames = map[Kind]string{
	KindIO:       "io",
	KindEOF:      "eof",
	KindProtocol: "protocol",
	KindOOM:      "oom",
	KindTimeout:  "timeout",
	KindOther:    "other",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "none"
}

// Error is a fatal connection error. It is stored on the connection and
// delivered to every callback that was still pending at disconnect.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// classify maps parser and transport failures onto the error taxonomy.
func classify(err error) Kind {
	var perr *resp.ProtocolError
	switch {
	case errors.Is(err, io.EOF):
		return KindEOF
	case errors.As(err, &perr):
		return KindProtocol
	case errors.Is(err, alloc.ErrOutOfMemory):
		return KindOOM
	case errors.Is(err, ErrConnClosed):
		return KindOther
	default:
		return KindIO
	}
}
