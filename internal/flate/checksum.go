package flate

import "hash/crc32"

// Checksum is fed every byte that leaves the output buffer, in order, and
// is asked for a final value once the stream is exhausted. gzip's trailer
// needs CRC-32; callers that don't care can plug in NoChecksum instead and
// skip the per-byte cost entirely.
type Checksum interface {
	Feed(p []byte)
	Sum() uint32
}

// NoChecksum does nothing. Use it when the caller isn't going to verify a
// trailer, such as when decompressing to find a file's size only.
type NoChecksum struct{}

func (NoChecksum) Feed([]byte)  {}
func (NoChecksum) Sum() uint32 { return 0 }

// CRC32 computes the CRC-32 (IEEE) gzip trailers are checked against.
type CRC32 struct {
	state uint32
}

func (c *CRC32) Feed(p []byte) {
	c.state = crc32.Update(c.state, crc32.IEEETable, p)
}

func (c *CRC32) Sum() uint32 {
	return c.state
}
