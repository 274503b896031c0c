package stream

import (
	"io"
	"log/slog"
)

// Decoder reads an HTTP response body chunk by chunk and produces
// decoded events. Malformed frames are logged and skipped; a read
// error ends the sequence without yielding a partial frame.
type Decoder struct {
	r       io.Reader
	framer  LineFramer
	lines   []string
	buf     []byte
	err     error
	skipped int
}

// NewDecoder creates a Decoder over the given reader.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, buf: make([]byte, 4096)}
}

// Next returns the next event, io.EOF when the stream is exhausted, or
// the underlying read error. Lines that are not frames are consumed
// silently; frames that fail to parse are logged, counted, and
// skipped.
func (d *Decoder) Next() (*Event, error) {
	for {
		for len(d.lines) > 0 {
			line := d.lines[0]
			d.lines = d.lines[1:]

			ev, err := ParseFrame(line)
			if err != nil {
				slog.Warn("skipping malformed stream frame", "error", err)
				d.skipped++
				continue
			}
			if ev != nil {
				return ev, nil
			}
		}

		if d.err != nil {
			return nil, d.err
		}

		n, err := d.r.Read(d.buf)
		if n > 0 {
			d.lines = d.framer.Push(d.buf[:n])
		}
		if err != nil {
			// A pending partial line is an unterminated frame and is
			// discarded, per the wire contract.
			d.err = err
		}
	}
}

// Skipped returns the number of malformed frames discarded so far.
func (d *Decoder) Skipped() int {
	return d.skipped
}
