package main

import (
	"bufio"
	"fmt"
)

type format int

const (
	formatUnknown format = iota
	formatGzip
	formatXZ
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// sniff inspects the leading bytes of a *bufio.Reader without consuming
// them, so the matching decoder can start reading from the beginning of
// the file. Grounded on the magic-byte dispatch the teacher's probe.go
// used to choose between its own archive formats.
func sniff(r *bufio.Reader) (format, error) {
	peeked, err := r.Peek(len(xzMagic))
	if err != nil && len(peeked) == 0 {
		return formatUnknown, fmt.Errorf("reading magic bytes: %w", err)
	}

	if hasPrefix(peeked, gzipMagic) {
		return formatGzip, nil
	}
	if hasPrefix(peeked, xzMagic) {
		return formatXZ, nil
	}
	return formatUnknown, nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if b[i] != p {
			return false
		}
	}
	return true
}
