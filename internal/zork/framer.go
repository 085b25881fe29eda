package zork

import "bytes"

// lineFramer splits a byte stream into newline-delimited messages,
// tolerating a preceding CR, per spec.md §4.1. Feed is the only entry
// point: a chunk with no terminator is appended to the internal buffer and
// yields nothing; a chunk with one or more terminators yields every
// complete message it can extract (including ones spanning earlier
// chunks) and retains the trailing partial fragment. Empty messages are
// dropped. A lineFramer is strictly in order and is not safe for
// concurrent use by more than one reader goroutine.
type lineFramer struct {
	buf []byte
}

// Feed appends chunk to the internal buffer and returns every complete
// message now available, in arrival order.
func (f *lineFramer) Feed(chunk []byte) [][]byte {
	f.buf = append(f.buf, chunk...)

	var out [][]byte
	start := 0
	for {
		idx := bytes.IndexByte(f.buf[start:], '\n')
		if idx < 0 {
			break
		}
		end := start + idx
		line := bytes.TrimSuffix(f.buf[start:end], []byte("\r"))
		if len(line) > 0 {
			out = append(out, append([]byte(nil), line...))
		}
		start = end + 1
	}

	f.buf = append([]byte(nil), f.buf[start:]...)
	return out
}
