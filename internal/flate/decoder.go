// Package flate implements a streaming, resumable DEFLATE (RFC 1951)
// decoder. It decodes incrementally: ParseSome decodes until either the
// block stream is exhausted or the output buffer fills up, and the caller
// drains decoded bytes with Consume between calls.
package flate

import (
	"fmt"
	"io"
)

// codeCodingReorder maps the order code-length-alphabet lengths are
// transmitted in to the symbol they describe, per RFC 1951 3.2.7.
var codeCodingReorder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

type blockState uint8

const (
	stateIdle blockState = iota
	stateStored
	stateHuffman
)

type copyState struct {
	length   int
	distance int
}

func (c *copyState) start(length, distance int) {
	c.length = length
	c.distance = distance
}

// resume copies as much of the pending back-reference as the output buffer
// has room for, returning true if there's still more to copy once the
// caller has drained some output.
func (c *copyState) resume(out *outputBuffer) (blocked bool, err error) {
	if c.length == 0 {
		return false, nil
	}
	copying := out.available()
	if copying > c.length {
		copying = c.length
	}
	if err := out.repeat(copying, c.distance); err != nil {
		return false, err
	}
	c.length -= copying
	return c.length > 0, nil
}

// Config carries the tunables from the DEFLATE resource model: buffer
// sizes and the checksum plug-in. Zero-valued fields fall back to
// DefaultConfig's values via NewDecoder.
type Config struct {
	MaxOutputBufferSize int
	MinOutputBufferSize int
	InputBufferSize     int
	Checksum            Checksum
}

// DefaultConfig mirrors the reference settings: 100000-byte output and
// input buffers, with 32 KiB of output history (the DEFLATE window) kept
// across Consume calls.
var DefaultConfig = Config{
	MaxOutputBufferSize: 100000,
	MinOutputBufferSize: 32768,
	InputBufferSize:     100000,
	Checksum:            NoChecksum{},
}

// Decoder is a resumable DEFLATE decoder sitting on top of an io.Reader. It
// is not safe for concurrent use: ParseSome and Consume must be called
// from a single goroutine, one at a time.
type Decoder struct {
	in  *byteSource
	out *outputBuffer
	br  bitReader

	state   blockState
	wasLast bool

	storedRemaining int
	copy            copyState
	lit, dist       *huffmanTable

	dynLit, dynDist, codeLenTable *huffmanTable
}

// NewDecoder creates a Decoder reading compressed DEFLATE data from r.
func NewDecoder(r io.Reader, cfg Config) *Decoder {
	if cfg.MaxOutputBufferSize == 0 {
		cfg.MaxOutputBufferSize = DefaultConfig.MaxOutputBufferSize
	}
	if cfg.MinOutputBufferSize == 0 {
		cfg.MinOutputBufferSize = DefaultConfig.MinOutputBufferSize
	}
	if cfg.InputBufferSize == 0 {
		cfg.InputBufferSize = DefaultConfig.InputBufferSize
	}
	if cfg.Checksum == nil {
		cfg.Checksum = NoChecksum{}
	}

	d := &Decoder{
		in:           newByteSource(r, cfg.InputBufferSize),
		out:          newOutputBuffer(cfg.MaxOutputBufferSize, cfg.MinOutputBufferSize, cfg.Checksum),
		dynLit:       newHuffmanTable(288),
		dynDist:      newHuffmanTable(31),
		codeLenTable: newHuffmanTable(19),
	}
	d.br.init(d.in)
	return d
}

// Consume drains decoded output, keeping bytesToKeep bytes of history
// around for back-references still to come. The returned slice is only
// valid until the next call to Consume or ParseSome.
func (d *Decoder) Consume(bytesToKeep int) []byte {
	return d.out.consume(bytesToKeep)
}

// ReadRaw reads n bytes directly from the underlying byte source, bypassing
// the bit reader. Valid only after ParseSome has returned (false, nil); a
// container format (gzip) uses it to read a trailer that follows the
// DEFLATE stream at the next byte boundary.
func (d *Decoder) ReadRaw(n int) ([]byte, error) {
	return d.in.readFull(n)
}

// ParseSome decodes until the output buffer fills (returns true — call
// Consume and call ParseSome again) or the stream ends (returns false,
// nil). A non-nil error ends the stream; the Decoder must not be reused.
func (d *Decoder) ParseSome() (workToDo bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("flate: internal error: %v", r)
		}
	}()
	return d.parseSome()
}

func (d *Decoder) parseSome() (bool, error) {
	for {
		switch d.state {
		case stateStored:
			blocked, err := d.parseStored()
			if err != nil {
				return false, err
			}
			if blocked {
				return true, nil
			}
			d.state = stateIdle
		case stateHuffman:
			blocked, err := d.huffmanBlock()
			if err != nil {
				return false, err
			}
			if blocked {
				return true, nil
			}
			d.state = stateIdle
		}

		if d.wasLast {
			d.br.release()
			d.out.done()
			return false, nil
		}

		final, err := d.br.bitsForward(1)
		if err != nil {
			return false, err
		}
		btype, err := d.br.bitsForward(2)
		if err != nil {
			return false, err
		}
		d.wasLast = final == 1

		switch btype {
		case 0b00:
			d.br.release()
			header, err := d.in.readFull(4)
			if err != nil {
				return false, err
			}
			length := int(header[0]) | int(header[1])<<8
			antiLength := int(header[2]) | int(header[3])<<8
			if (^length)&0xffff != antiLength {
				return false, ErrInvalidStoredLength
			}
			d.storedRemaining = length
			d.state = stateStored
		case 0b01:
			d.lit = fixedLiteralTable
			d.dist = fixedDistanceTable
			d.state = stateHuffman
		case 0b10:
			if err := d.readDynamicTables(); err != nil {
				return false, err
			}
			d.lit = d.dynLit
			d.dist = d.dynDist
			d.state = stateHuffman
		default:
			return false, ErrReservedBlockType
		}
	}
}

// parseStored copies a stored (BTYPE 00) block's literal bytes straight
// from the byte source to the output buffer.
func (d *Decoder) parseStored() (blocked bool, err error) {
	for d.storedRemaining > 0 {
		if d.out.available() == 0 {
			return true, nil
		}
		want := d.storedRemaining
		if room := d.out.available(); want > room {
			want = room
		}
		chunk, err := d.in.rangeBytes(want)
		if err != nil {
			return false, err
		}
		if len(chunk) == 0 {
			return false, ErrTruncated
		}
		d.out.putBytes(chunk)
		d.storedRemaining -= len(chunk)
	}
	return false, nil
}

// huffmanBlock decodes literals and back-references from a fixed or
// dynamic Huffman block, sharing the same loop for both: only d.lit and
// d.dist differ between them.
func (d *Decoder) huffmanBlock() (blocked bool, err error) {
	if d.copy.length > 0 {
		blocked, err = d.copy.resume(d.out)
		if err != nil {
			return false, err
		}
		if blocked {
			return true, nil
		}
	}

	for d.out.available() > 0 {
		sym, err := d.lit.decode(&d.br)
		if err != nil {
			return false, err
		}
		if sym < 256 {
			d.out.putByte(byte(sym))
			continue
		}
		if sym == 256 {
			return false, nil
		}
		if sym > 285 {
			return false, ErrUnknownHuffmanCode
		}

		length, err := decodeLength(&d.br, sym)
		if err != nil {
			return false, err
		}
		distSym, err := d.dist.decode(&d.br)
		if err != nil {
			return false, err
		}
		distance, err := decodeDistance(&d.br, distSym)
		if err != nil {
			return false, err
		}

		d.copy.start(length, distance)
		blocked, err = d.copy.resume(d.out)
		if err != nil {
			return false, err
		}
		if blocked {
			return true, nil
		}
	}
	return true, nil
}

// decodeLength turns a length symbol (257..285) into an actual match
// length, reading extra bits for symbols that don't have a fixed length.
func decodeLength(br *bitReader, sym int) (int, error) {
	partOfSize := sym - 254
	if partOfSize > 10 {
		return br.parseLongerSize(partOfSize)
	}
	return partOfSize, nil
}

// decodeDistance turns a distance symbol into an actual back-reference
// distance, reading extra bits for symbols beyond the first four. The two
// reserved distance symbols (30 and 31) are rejected with ErrBadDistance.
func decodeDistance(br *bitReader, distSym int) (int, error) {
	if distSym > 29 {
		return 0, ErrBadDistance
	}
	distance := distSym + 1
	if distance > 4 {
		return br.parseLongerDistance(distance)
	}
	return distance, nil
}

// readDynamicTables parses a dynamic block's header: HLIT/HDIST/HCLEN,
// the code-length alphabet's own Huffman table, and then the literal and
// distance tables it describes.
func (d *Decoder) readDynamicTables() error {
	extraCodes, err := d.br.bitsForward(5)
	if err != nil {
		return err
	}
	if extraCodes > 29 {
		return ErrTooManyCodes
	}
	codeCount := 257 + extraCodes

	distCount, err := d.br.bitsForward(5)
	if err != nil {
		return err
	}
	distCount++
	if distCount > 31 {
		return ErrTooManyCodes
	}

	codeLenCount, err := d.br.bitsForward(4)
	if err != nil {
		return err
	}
	codeLenCount += 4
	if codeLenCount > 19 {
		return ErrTooManyCodes
	}

	var codeCodingLengths [19]int
	for i := 0; i < codeLenCount; i++ {
		v, err := d.br.bitsForward(3)
		if err != nil {
			return err
		}
		codeCodingLengths[codeCodingReorder[i]] = v
	}
	if err := d.codeLenTable.init(codeCodingLengths[:]); err != nil {
		return err
	}

	litLengths, err := readLengths(&d.br, d.codeLenTable, codeCount)
	if err != nil {
		return err
	}
	if err := d.dynLit.init(litLengths); err != nil {
		return err
	}

	distLengths, err := readLengths(&d.br, d.codeLenTable, distCount)
	if err != nil {
		return err
	}
	if err := d.dynDist.init(distLengths); err != nil {
		return err
	}
	return nil
}

// readLengths decodes count code lengths (each 0..18) from br using
// codeLenTable, expanding the two run-length codes (16 repeats the
// previous length, 17 and 18 repeat a zero length) into lengths.
func readLengths(br *bitReader, codeLenTable *huffmanTable, count int) ([]int, error) {
	lengths := make([]int, count)
	for i := 0; i < count; {
		sym, err := codeLenTable.decode(br)
		if err != nil {
			return nil, err
		}
		switch {
		case sym < 16:
			lengths[i] = sym
			i++
		case sym == 16:
			if i == 0 {
				return nil, ErrInvalidRepeatCode
			}
			n, err := br.bitsForward(2)
			if err != nil {
				return nil, err
			}
			n += 3
			if i+n > count {
				return nil, ErrTooManyCodes
			}
			prev := lengths[i-1]
			for j := 0; j < n; j++ {
				lengths[i+j] = prev
			}
			i += n
		case sym == 17:
			n, err := br.bitsForward(3)
			if err != nil {
				return nil, err
			}
			n += 3
			if i+n > count {
				return nil, ErrTooManyCodes
			}
			i += n
		case sym == 18:
			n, err := br.bitsForward(7)
			if err != nil {
				return nil, err
			}
			n += 11
			if i+n > count {
				return nil, ErrTooManyCodes
			}
			i += n
		default:
			return nil, ErrUnknownHuffmanCode
		}
	}
	return lengths, nil
}
