// Package gzip implements a streaming reader for the gzip container
// format (RFC 1952), layered strictly on top of internal/flate's external
// interfaces: the filler io.Reader, the drain-by-Consume contract, and the
// pluggable Checksum used to verify the trailer.
package gzip

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/elliotnunn/gzflate/internal/flate"
)

var (
	// ErrNotGzip means the input didn't start with the gzip magic bytes.
	ErrNotGzip = errors.New("gzip: not a gzip stream")

	// ErrChecksumMismatch means the trailing CRC-32 didn't match the
	// decompressed data actually produced.
	ErrChecksumMismatch = errors.New("gzip: checksum mismatch")

	// ErrHeaderChecksumMismatch means FHCRC was set but didn't match the
	// CRC-16 (the low 16 bits of a CRC-32) of the header bytes preceding it.
	ErrHeaderChecksumMismatch = errors.New("gzip: header checksum mismatch")

	// ErrSizeMismatch means the trailing ISIZE didn't match the
	// decompressed size actually produced (mod 2^32).
	ErrSizeMismatch = errors.New("gzip: size mismatch")
)

// Config controls how a Reader verifies what it decompresses, and how big
// the underlying flate.Decoder's buffers are.
type Config struct {
	// VerifyChecksum makes Read check the trailing CRC-32 and ISIZE
	// against what was actually produced once the member ends.
	VerifyChecksum bool
	Flate          flate.Config
}

// DefaultConfig verifies the trailer, the safer default for anything that
// isn't deliberately trading integrity for speed.
var DefaultConfig = Config{VerifyChecksum: true}

// Reader decompresses a single gzip member from an underlying io.Reader.
// It implements io.Reader. Like the flate.Decoder it wraps, it is not safe
// for concurrent use, and it decompresses exactly one member — RFC 1952
// permits concatenating members into one stream, but doing so is out of
// scope here (see DESIGN.md).
type Reader struct {
	r    io.Reader
	hdr  Header
	dec  *flate.Decoder
	crc  *flate.CRC32
	cfg  Config
	isize uint32

	pending  []byte
	finished bool
}

// NewReader reads and parses a gzip member's header from r and returns a
// Reader ready to decompress its body.
func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderConfig(r, DefaultConfig)
}

// NewReaderConfig is like NewReader but lets the caller tune verification
// and the underlying flate.Decoder's buffer sizes.
func NewReaderConfig(r io.Reader, cfg Config) (*Reader, error) {
	gr := &Reader{r: r, cfg: cfg}
	if err := gr.readHeader(); err != nil {
		return nil, err
	}

	fcfg := cfg.Flate
	if cfg.VerifyChecksum {
		gr.crc = &flate.CRC32{}
		fcfg.Checksum = gr.crc
	} else {
		fcfg.Checksum = flate.NoChecksum{}
	}
	gr.dec = flate.NewDecoder(r, fcfg)
	return gr, nil
}

// Header returns the parsed gzip header fields (name, comment, mtime, OS,
// extra data).
func (r *Reader) Header() Header {
	return r.hdr
}

// Read implements io.Reader. It returns io.EOF once the member's trailer
// has been read and, if verification is on, checked.
func (r *Reader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.finished {
			return 0, io.EOF
		}
		workToDo, err := r.dec.ParseSome()
		if err != nil {
			return 0, fmt.Errorf("gzip: decompressing: %w", err)
		}
		r.pending = r.dec.Consume(0)
		r.isize += uint32(len(r.pending))
		if !workToDo {
			if err := r.checkTrailer(); err != nil {
				return 0, err
			}
			r.finished = true
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *Reader) checkTrailer() error {
	trailer, err := r.dec.ReadRaw(8)
	if err != nil {
		return fmt.Errorf("gzip: reading trailer: %w", err)
	}
	wantCRC := binary.LittleEndian.Uint32(trailer[0:4])
	wantSize := binary.LittleEndian.Uint32(trailer[4:8])

	if r.cfg.VerifyChecksum {
		if wantSize != r.isize {
			return ErrSizeMismatch
		}
		if r.crc.Sum() != wantCRC {
			return ErrChecksumMismatch
		}
	}
	return nil
}

// DecompressAll decompresses an entire gzip member read from r and returns
// its contents, verifying the trailer. A convenience wrapper around Reader
// for callers that want the whole thing in memory, grounded on the
// whole-buffer helpers in the reference implementation this package was
// ported from.
func DecompressAll(r io.Reader) ([]byte, error) {
	gr, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(gr)
}
