package flate

import (
	"fmt"
	"io"
)

// byteSource is a refillable buffer over an upstream io.Reader. It hands out
// contiguous slices of buffered bytes (rangeBytes), lets a caller give
// some of those bytes back when it turned out not to need them
// (returnBytes), and shifts the buffer down instead of growing it once the
// read cursor passes the midpoint.
//
// Grounded on ByteInput in the original C++ implementation this package
// was ported from.
type byteSource struct {
	r        io.Reader
	buf      []byte
	position int
	filled   int
}

func newByteSource(r io.Reader, size int) *byteSource {
	return &byteSource{
		r:   r,
		buf: make([]byte, size),
	}
}

func (b *byteSource) refillSome() (int, error) {
	if b.position > len(b.buf)/2 {
		copy(b.buf, b.buf[b.position:b.filled])
		b.filled -= b.position
		b.position = 0
	}
	n, err := b.r.Read(b.buf[b.filled:])
	b.filled += n
	if n > 0 {
		return n, nil
	}
	return 0, err
}

// rangeBytes returns up to size bytes starting at the read cursor, advancing
// the cursor by however many it actually returns. It may return fewer than
// size bytes, including zero at end of stream; callers that need an exact
// count loop or use readFull.
func (b *byteSource) rangeBytes(size int) ([]byte, error) {
	var err error
	if b.position+size >= b.filled {
		_, err = b.refillSome()
	}
	start := b.position
	available := size
	if max := b.filled - start; available > max {
		available = max
	}
	b.position += available
	if available == 0 && err != nil && err != io.EOF {
		return nil, err
	}
	return b.buf[start : start+available], nil
}

// readFull reads exactly n bytes, refilling as many times as necessary, and
// fails with ErrTruncated if the upstream reader runs dry first.
func (b *byteSource) readFull(n int) ([]byte, error) {
	for b.position+n > b.filled {
		added, err := b.refillSome()
		if added == 0 {
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("flate: reading input: %w", err)
			}
			return nil, ErrTruncated
		}
	}
	start := b.position
	b.position += n
	return b.buf[start : start+n], nil
}

// returnBytes un-reads amount bytes most recently handed out by rangeBytes
// or readFull, moving the cursor back. Used by the bit reader to give back
// whole bytes it buffered but never consumed.
func (b *byteSource) returnBytes(amount int) {
	b.position -= amount
}
