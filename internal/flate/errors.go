package flate

import "errors"

// Error kinds a Decoder can return. All of them are fatal for the stream:
// once ParseSome returns a non-nil error, the Decoder must not be reused.
var (
	// ErrTruncated means the upstream filler returned no more bytes while
	// the decoder still needed input.
	ErrTruncated = errors.New("flate: truncated stream")

	// ErrInvalidStoredLength means a stored block's LEN and NLEN fields
	// were not complementary.
	ErrInvalidStoredLength = errors.New("flate: invalid stored block length")

	// ErrReservedBlockType means a block header declared BTYPE 11.
	ErrReservedBlockType = errors.New("flate: reserved block type")

	// ErrOverSubscribedHuffman means a canonical Huffman code length
	// vector demanded more codes at some length than bits allow.
	ErrOverSubscribedHuffman = errors.New("flate: over-subscribed huffman code")

	// ErrUnknownHuffmanCode means no codeword matched the peeked bits at
	// any length, including the 8-bit first stage.
	ErrUnknownHuffmanCode = errors.New("flate: unknown huffman code")

	// ErrInvalidRepeatCode means code-length symbol 16 appeared before
	// any length had been assigned.
	ErrInvalidRepeatCode = errors.New("flate: repeat code with no previous length")

	// ErrBadDistance means a back-reference pointed further back than
	// the output produced so far, or further than RFC 1951 allows.
	ErrBadDistance = errors.New("flate: invalid distance")

	// ErrTooManyCodes means HLIT, HDIST or HCLEN exceeded its legal range.
	ErrTooManyCodes = errors.New("flate: too many codes declared")
)
