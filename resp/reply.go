package resp

import (
	"strconv"
	"strings"
)

// Type identifies the decoded shape of a reply.
type Type int

const (
	typeNone Type = iota

	TypeString
	TypeArray
	TypeInteger
	TypeNil
	TypeStatus
	TypeError
	TypeDouble
	TypeBool
	TypeMap
	TypeSet
	TypeAttribute
	TypePush
	TypeBigNumber
	TypeVerbatimString
)

var typeNames = map[Type]string{
	TypeString:         "string",
	TypeArray:          "array",
	TypeInteger:        "integer",
	TypeNil:            "nil",
	TypeStatus:         "status",
	TypeError:          "error",
	TypeDouble:         "double",
	TypeBool:           "bool",
	TypeMap:            "map",
	TypeSet:            "set",
	TypeAttribute:      "attribute",
	TypePush:           "push",
	TypeBigNumber:      "bignumber",
	TypeVerbatimString: "verbatim",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "unknown"
}

// typeForTag maps a wire tag byte to a reply type.
func typeForTag(b byte) (Type, bool) {
	switch b {
	case '+':
		return TypeStatus, true
	case '-':
		return TypeError, true
	case ':':
		return TypeInteger, true
	case '$':
		return TypeString, true
	case '*':
		return TypeArray, true
	case '_':
		return TypeNil, true
	case ',':
		return TypeDouble, true
	case '#':
		return TypeBool, true
	case '(':
		return TypeBigNumber, true
	case '=':
		return TypeVerbatimString, true
	case '%':
		return TypeMap, true
	case '~':
		return TypeSet, true
	case '|':
		return TypeAttribute, true
	case '>':
		return TypePush, true
	}
	return typeNone, false
}

// Reply is the default materialization of a decoded protocol value. The
// payload field in use depends on Type; container types carry their children
// in Elements in arrival order (map and attribute replies alternate keys and
// values).
type Reply struct {
	Type    Type
	Integer int64
	Double  float64
	Bool    bool

	// Str holds the payload of string, status, error, bignumber, double
	// (raw text) and verbatim replies.
	Str []byte

	// Verbatim holds the 3-character content type of a verbatim string.
	Verbatim string

	Elements []*Reply
}

// Text returns the string payload, or "" for payload-free replies.
func (r *Reply) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Str)
}

// IsNil reports whether the reply is a protocol nil.
func (r *Reply) IsNil() bool {
	return r == nil || r.Type == TypeNil
}

// IsError reports whether the reply is a protocol-level error reply.
func (r *Reply) IsError() bool {
	return r != nil && r.Type == TypeError
}

// Len returns the number of child elements of a container reply.
func (r *Reply) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Elements)
}

// Index returns the i-th child of a container reply, or nil when out of
// range.
func (r *Reply) Index(i int) *Reply {
	if r == nil || i < 0 || i >= len(r.Elements) {
		return nil
	}
	return r.Elements[i]
}

// String renders the reply for logs and interactive tools.
func (r *Reply) String() string {
	if r == nil {
		return "(nil)"
	}
	switch r.Type {
	case TypeStatus, TypeString, TypeBigNumber, TypeVerbatimString:
		return string(r.Str)
	case TypeError:
		return "(error) " + string(r.Str)
	case TypeInteger:
		return strconv.FormatInt(r.Integer, 10)
	case TypeDouble:
		return strconv.FormatFloat(r.Double, 'g', -1, 64)
	case TypeBool:
		if r.Bool {
			return "true"
		}
		return "false"
	case TypeNil:
		return "(nil)"
	case TypeArray, TypeMap, TypeSet, TypeAttribute, TypePush:
		parts := make([]string, len(r.Elements))
		for i, e := range r.Elements {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "(unknown)"
	}
}
