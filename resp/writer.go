package resp

import (
	"strconv"
)

var crlf = []byte{'\r', '\n'}

// CommandLength returns the exact encoded size of a command, letting callers
// size a buffer before formatting.
func CommandLength(args ...string) int {
	n := 1 + intLen(int64(len(args))) + 2
	for _, a := range args {
		n += 1 + intLen(int64(len(a))) + 2 + len(a) + 2
	}
	return n
}

// AppendCommand appends the request encoding of a command (an array of bulk
// strings) to dst and returns the extended slice.
func AppendCommand(dst []byte, args ...string) []byte {
	dst = append(dst, '*')
	dst = strconv.AppendInt(dst, int64(len(args)), 10)
	dst = append(dst, crlf...)
	for _, a := range args {
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(a)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, a...)
		dst = append(dst, crlf...)
	}
	return dst
}

// AppendCommandBytes is AppendCommand for binary arguments.
func AppendCommandBytes(dst []byte, args ...[]byte) []byte {
	dst = append(dst, '*')
	dst = strconv.AppendInt(dst, int64(len(args)), 10)
	dst = append(dst, crlf...)
	for _, a := range args {
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(a)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, a...)
		dst = append(dst, crlf...)
	}
	return dst
}

func intLen(v int64) int {
	if v == 0 {
		return 1
	}
	n := 0
	if v < 0 {
		n++
		v = -v
	}
	for v > 0 {
		n++
		v /= 10
	}
	return n
}
