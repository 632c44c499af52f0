package flate

import (
	"bytes"
	"compress/flate"
	"hash/crc32"
	"io"
	"testing/iotest"
	"math/rand/v2"
	"testing"
)

// decodeAll runs a Decoder to completion, draining Consume after every
// ParseSome call, the way a real caller must.
func decodeAll(t *testing.T, r io.Reader) []byte {
	t.Helper()
	d := NewDecoder(r, Config{})
	var out []byte
	for {
		workToDo, err := d.ParseSome()
		if err != nil {
			t.Fatalf("ParseSome: %v", err)
		}
		out = append(out, d.Consume(0)...)
		if !workToDo {
			return out
		}
	}
}

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		t.Fatalf("flate.NewWriter: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestRoundTripAgainstStandardLibrary(t *testing.T) {
	cases := map[string][]byte{
		"empty":      {},
		"one byte":   []byte("x"),
		"repeated":   bytes.Repeat([]byte("ab"), 5000),
		"hello":      []byte("Hello, Hello, Hello, world!"),
		"binary":     {0, 1, 2, 3, 255, 254, 0, 0, 0, 1},
		"long runs":  bytes.Repeat([]byte{0x42}, 1<<20),
		"near empty": {0xAA},
	}

	rng := rand.New(rand.NewPCG(1, 2))
	random := make([]byte, 1<<16)
	for i := range random {
		random[i] = byte(rng.IntN(256))
	}
	cases["random"] = random

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			compressed := deflate(t, data)
			got := decodeAll(t, bytes.NewReader(compressed))
			if !bytes.Equal(got, data) {
				t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(data))
			}
		})
	}
}

func TestStoredBlock(t *testing.T) {
	data := []byte("this is not compressed at all, just stored literally")
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.NoCompression)
	if err != nil {
		t.Fatalf("flate.NewWriter: %v", err)
	}
	w.Write(data)
	w.Close()

	got := decodeAll(t, bytes.NewReader(buf.Bytes()))
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestConcreteScenarios(t *testing.T) {
	cases := []struct {
		name string
		hex  string
		want string
	}{
		{"empty fixed block", "03 00", ""},
		{"hello fixed block", "f3 48 cd c9 c9 07 00", "Hello"},
		{"stored block", "01 05 00 fa ff 48 65 6c 6c 6f", "Hello"},
		{"fixed block literals with space", "f3 48 cd c9 c9 57 08 cf 2f ca 49 01 00", "Hello World"},
		{"back-reference overlap, distance one", "4b 04 03 00", "aaaaaa"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			raw := mustDecodeHex(t, c.hex)
			got := decodeAll(t, bytes.NewReader(raw))
			if string(got) != c.want {
				t.Fatalf("got %q, want %q", got, c.want)
			}
		})
	}
}

// TestStoredThenFixedBlock covers byte-alignment: a stored block discards
// its trailing sub-byte padding and realigns to the next byte boundary, so
// a fixed Huffman block immediately following it must still decode
// correctly. Hand-traced: BFINAL=0/BTYPE=00 header, LEN=3/NLEN=^3, the
// literal bytes "foo", then a final fixed block spelling "bar".
func TestStoredThenFixedBlock(t *testing.T) {
	raw := mustDecodeHex(t, "00 03 00 fc ff 66 6f 6f 4b 4a 2c 02 00")
	got := decodeAll(t, bytes.NewReader(raw))
	if string(got) != "foobar" {
		t.Fatalf("got %q, want %q", got, "foobar")
	}
}

// TestStoredBlockLengthMismatchErrors covers scenario E6: a stored block
// whose NLEN doesn't complement LEN must be rejected rather than silently
// trusting either field.
func TestStoredBlockLengthMismatchErrors(t *testing.T) {
	// BFINAL=1/BTYPE=00, LEN=5, NLEN=0xFFFB instead of the correct 0xFFFA.
	raw := mustDecodeHex(t, "01 05 00 fb ff")
	d := NewDecoder(bytes.NewReader(raw), Config{})
	_, err := d.ParseSome()
	if err != ErrInvalidStoredLength {
		t.Fatalf("got %v, want ErrInvalidStoredLength", err)
	}
}

// TestMaximumCopyConcreteVector exercises the longest possible DEFLATE
// back-reference (length 258, distance 1) through the full bit-level
// pipeline rather than only at the outputBuffer level.
func TestMaximumCopyConcreteVector(t *testing.T) {
	raw := mustDecodeHex(t, "4b 1c 05 00")
	got := decodeAll(t, bytes.NewReader(raw))
	want := bytes.Repeat([]byte("a"), 259)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %d bytes, want %d bytes of 'a'", len(got), len(want))
	}
}

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	var clean []byte
	for _, c := range s {
		if c == ' ' {
			continue
		}
		clean = append(clean, byte(c))
	}
	out := make([]byte, len(clean)/2)
	for i := range out {
		hi := hexDigit(t, clean[i*2])
		lo := hexDigit(t, clean[i*2+1])
		out[i] = hi<<4 | lo
	}
	return out
}

func hexDigit(t *testing.T, c byte) byte {
	t.Helper()
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	t.Fatalf("bad hex digit %q", c)
	return 0
}

func TestSuspendAndResume(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 2000)
	compressed := deflate(t, data)

	d := NewDecoder(bytes.NewReader(compressed), Config{
		MaxOutputBufferSize: 32768*2 + 258,
		MinOutputBufferSize: 32768,
		InputBufferSize:     64, // force many small refills
	})
	var out []byte
	for {
		workToDo, err := d.ParseSome()
		if err != nil {
			t.Fatalf("ParseSome: %v", err)
		}
		out = append(out, d.Consume(0)...)
		if !workToDo {
			break
		}
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("mismatch with small input buffer: got %d bytes, want %d", len(out), len(data))
	}
}

func TestTruncatedStreamErrors(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 1000)
	compressed := deflate(t, data)
	truncated := compressed[:len(compressed)/2]

	d := NewDecoder(bytes.NewReader(truncated), Config{})
	var sawErr error
	for {
		workToDo, err := d.ParseSome()
		if err != nil {
			sawErr = err
			break
		}
		d.Consume(0)
		if !workToDo {
			break
		}
	}
	if sawErr == nil {
		t.Fatal("expected an error decoding a truncated stream")
	}
}

func TestCorruptedBlockTypeErrors(t *testing.T) {
	// A single byte whose low 3 bits are BFINAL=1, BTYPE=11 (reserved).
	d := NewDecoder(bytes.NewReader([]byte{0b111}), Config{})
	_, err := d.ParseSome()
	if err != ErrReservedBlockType {
		t.Fatalf("got %v, want ErrReservedBlockType", err)
	}
}

func TestChecksumFeedsEveryByte(t *testing.T) {
	data := []byte("checksum should see every decompressed byte exactly once")
	compressed := deflate(t, data)

	cs := &CRC32{}
	d := NewDecoder(bytes.NewReader(compressed), Config{Checksum: cs})
	for {
		workToDo, err := d.ParseSome()
		if err != nil {
			t.Fatalf("ParseSome: %v", err)
		}
		d.Consume(0)
		if !workToDo {
			break
		}
	}

	want := crc32.ChecksumIEEE(data)
	if cs.Sum() != want {
		t.Fatalf("got crc %x, want %x", cs.Sum(), want)
	}
}

// TestChunkInvarianceAcrossBufferSizes decodes the same compressed bytes
// with two very differently shaped decode strategies (large buffers drained
// in one go, versus tiny input and output buffers forcing many
// ParseSome/Consume round trips) and checks the two outputs agree with each
// other, not merely that one of them happens to match the plaintext.
func TestChunkInvarianceAcrossBufferSizes(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 500)
	compressed := deflate(t, data)

	whole := decodeAll(t, bytes.NewReader(compressed))

	d := NewDecoder(bytes.NewReader(compressed), Config{
		MaxOutputBufferSize: 600,
		MinOutputBufferSize: 300,
		InputBufferSize:     17,
	})
	var chunked []byte
	for {
		workToDo, err := d.ParseSome()
		if err != nil {
			t.Fatalf("ParseSome: %v", err)
		}
		chunked = append(chunked, d.Consume(0)...)
		if !workToDo {
			break
		}
	}

	if !bytes.Equal(whole, chunked) {
		t.Fatalf("decode strategies disagree: %d bytes vs %d bytes", len(whole), len(chunked))
	}
	if !bytes.Equal(chunked, data) {
		t.Fatalf("chunked decode mismatch with source data")
	}
}

// TestFillerGranularity checks that a source willing to hand back only one
// byte per Read call (iotest.OneByteReader, the standard library's stand-in
// for a maximally stingy reader) still decodes correctly.
func TestFillerGranularity(t *testing.T) {
	data := []byte("one byte at a time is still a stream of bytes")
	compressed := deflate(t, data)

	got := decodeAll(t, iotest.OneByteReader(bytes.NewReader(compressed)))
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

// decodeAllChecked is like decodeAll but reports the error instead of
// failing the test, and feeds a CRC32 so callers can compare checksums.
func decodeAllChecked(r io.Reader) ([]byte, uint32, error) {
	cs := &CRC32{}
	d := NewDecoder(r, Config{Checksum: cs})
	var out []byte
	for {
		workToDo, err := d.ParseSome()
		if err != nil {
			return out, 0, err
		}
		out = append(out, d.Consume(0)...)
		if !workToDo {
			return out, cs.Sum(), nil
		}
	}
}

// TestSingleBitFlipsAreDetected exhaustively flips every bit of a valid
// compressed stream and decodes the result with a checksum attached. The
// only outcomes allowed for a flipped stream are: an error, or successful
// decode whose checksum no longer matches the original (a harmless flip,
// such as one landing in stored-block padding, producing the original
// output back is also fine). What must never happen is silent wrong output
// that still checksums clean.
func TestSingleBitFlipsAreDetected(t *testing.T) {
	data := []byte("flip every bit of this compressed stream and see what happens")
	compressed := deflate(t, data)

	original, wantSum, err := decodeAllChecked(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("decoding the unmodified stream failed: %v", err)
	}
	if !bytes.Equal(original, data) || wantSum != crc32.ChecksumIEEE(data) {
		t.Fatalf("sanity check on the unmodified stream failed")
	}

	for byteIdx := range compressed {
		for bit := 0; bit < 8; bit++ {
			flipped := bytes.Clone(compressed)
			flipped[byteIdx] ^= 1 << bit

			got, sum, err := decodeAllChecked(bytes.NewReader(flipped))
			if err != nil {
				continue
			}
			if !bytes.Equal(got, data) {
				if sum == wantSum {
					t.Fatalf("byte %d bit %d: output changed but checksum still matches (undetected corruption)", byteIdx, bit)
				}
				continue
			}
		}
	}
}
