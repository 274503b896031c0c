package stream

import (
	"bytes"
	"strings"
)

// LineFramer accumulates raw byte chunks and yields complete
// newline-terminated lines. Buffering happens at the byte level, so a
// multi-byte UTF-8 rune or the frame marker itself may straddle chunk
// boundaries without corruption. A trailing unterminated line stays
// buffered; at end of stream it is not a valid frame and the caller
// discards it.
type LineFramer struct {
	buf []byte
}

// Push appends a chunk and returns every complete line it closes, in
// order. A trailing "\r" is stripped so CRLF streams frame the same as
// LF streams.
func (f *LineFramer) Push(chunk []byte) []string {
	f.buf = append(f.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, strings.TrimSuffix(string(f.buf[:i]), "\r"))
		f.buf = f.buf[i+1:]
	}
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return lines
}

// Pending returns the number of buffered bytes of the current partial
// line.
func (f *LineFramer) Pending() int {
	return len(f.buf)
}
