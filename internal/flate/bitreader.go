package flate

import "math/bits"

// minimumBits is the refill threshold. RFC 1951 never requires reading a
// single field longer than 16 bits, so keeping at least that many live bits
// after every refill means callers never need to refill mid-field.
const minimumBits = 16

// forwardMasks[n] keeps the low n bits of a value, n in [0,16].
var forwardMasks = [17]uint32{
	0x0000, 0x0001, 0x0003, 0x0007, 0x000f, 0x001f, 0x003f, 0x007f, 0x00ff,
	0x01ff, 0x03ff, 0x07ff, 0x0fff, 0x1fff, 0x3fff, 0x7fff, 0xffff,
}

// bitReader is a 64-bit shift register sitting on top of a byteSource. The
// lowest live bit is always the next bit in transmission order (DEFLATE
// packs bits LSB-first within a byte).
//
// Grounded on BitReader in the original C++ implementation this package was
// ported from, including its bit-reversal trick for peeking Huffman
// codewords: RFC 1951 assigns canonical codewords MSB-first, so the byte
// peeked off the register is bit-reversed before being matched against a
// canonically-built code table.
type bitReader struct {
	src      *byteSource
	data     uint64 // low bitsLeft bits valid
	bitsLeft uint
}

func (br *bitReader) init(src *byteSource) {
	br.src = src
	br.data = 0
	br.bitsLeft = 0
}

func (br *bitReader) refill() error {
	if br.bitsLeft >= minimumBits {
		return nil
	}
	chunk, err := br.src.rangeBytes(8 - minimumBits/8)
	if err != nil {
		return err
	}
	var word uint64
	for i := len(chunk) - 1; i >= 0; i-- {
		word = word<<8 | uint64(chunk[i])
	}
	br.data |= word << br.bitsLeft
	br.bitsLeft += uint(len(chunk)) * 8
	return nil
}

// bitsForward reads amount (<=16) bits in natural transmission order, i.e.
// as the numeric value DEFLATE uses for lengths, counts and extra bits.
func (br *bitReader) bitsForward(amount int) (int, error) {
	if err := br.refill(); err != nil {
		return 0, err
	}
	if uint(amount) > br.bitsLeft {
		return 0, ErrTruncated
	}
	result := uint32(br.data) & forwardMasks[amount]
	br.data >>= uint(amount)
	br.bitsLeft -= uint(amount)
	return int(result), nil
}

// peekByteAndConsume exposes the next 8 bits, bit-reversed so that a
// Huffman codeword appears MSB-first, and consumes however many of them
// consume (the functor's return value) turns out to actually belong to the
// codeword.
func (br *bitReader) peekByteAndConsume(consume func(peeked byte) int) error {
	if err := br.refill(); err != nil {
		return err
	}
	pulled := bits.Reverse8(byte(br.data))
	n := consume(pulled)
	if uint(n) > br.bitsLeft {
		return ErrTruncated
	}
	br.data >>= uint(n)
	br.bitsLeft -= uint(n)
	return nil
}

// release returns any whole unused bytes to the byte source and resets the
// register, used when a stored block needs to realign to a byte boundary.
func (br *bitReader) release() {
	whole := br.bitsLeft / 8
	if whole > 0 {
		br.src.returnBytes(int(whole))
	}
	br.data = 0
	br.bitsLeft = 0
}

// parseLongerSize generalises the RFC 1951 3.2.5 length table: partOfSize
// is the length symbol's value minus 254 (i.e. 3..31), and the result is
// the actual match length once extra bits have been read.
func (br *bitReader) parseLongerSize(partOfSize int) (int, error) {
	if partOfSize == 31 {
		return 258, nil
	}
	size := partOfSize
	nextBits := (size - 7) >> 2
	additional, err := br.bitsForward(nextBits)
	if err != nil {
		return 0, err
	}
	size++
	size = (((size&0x3)<<nextBits | additional)) + ((1 << (size >> 2)) + 3)
	return size, nil
}

// distanceOffsets is the base distance for each of the 30 distance codes,
// per RFC 1951 3.2.5.
var distanceOffsets = [30]int{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33,
	49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}

// parseLongerDistance generalises the RFC 1951 3.2.5 distance table:
// partOfDistance is the distance symbol's value plus 1 (i.e. 5..30).
func (br *bitReader) parseLongerDistance(partOfDistance int) (int, error) {
	readMore := (partOfDistance - 3) >> 1
	moreBits, err := br.bitsForward(readMore)
	if err != nil {
		return 0, err
	}
	return distanceOffsets[partOfDistance-1] + moreBits, nil
}
