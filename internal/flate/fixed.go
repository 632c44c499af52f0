package flate

// The fixed Huffman tables from RFC 1951 3.2.6, built once at package init
// and shared read-only by every fixed-Huffman block. Building them through
// the same huffmanTable.init used for dynamic blocks (rather than the
// hand-split 7-bit peek scheme the format also permits) means fixed and
// dynamic blocks share one decode path; see DESIGN.md for why.
var (
	fixedLiteralTable *huffmanTable
	fixedDistanceTable *huffmanTable
)

func init() {
	litLengths := make([]int, 288)
	for i := 0; i < 144; i++ {
		litLengths[i] = 8
	}
	for i := 144; i < 256; i++ {
		litLengths[i] = 9
	}
	for i := 256; i < 280; i++ {
		litLengths[i] = 7
	}
	for i := 280; i < 288; i++ {
		litLengths[i] = 8
	}
	fixedLiteralTable = newHuffmanTable(288)
	if err := fixedLiteralTable.init(litLengths); err != nil {
		panic("flate: building fixed literal/length table: " + err.Error())
	}

	distLengths := make([]int, 30)
	for i := range distLengths {
		distLengths[i] = 5
	}
	fixedDistanceTable = newHuffmanTable(31)
	if err := fixedDistanceTable.init(distLengths); err != nil {
		panic("flate: building fixed distance table: " + err.Error())
	}
}
