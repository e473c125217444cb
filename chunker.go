package chunker

import "io"

const (
	KiB = 1024
	MiB = 1024 * KiB

	// bufSize is the size of the read-ahead buffer the chunkers fill from
	// their source.
	bufSize = 512 * KiB
)

// A Chunk is one content-defined piece of the input stream. Its end was cut
// when the rolling fingerprint had the value stored in Cut.
type Chunk struct {
	// Start is the offset of the chunk within the overall stream.
	Start uint
	// Length is the number of bytes in the chunk.
	Length uint
	// Cut is the fingerprint value at the cut point.
	Cut uint64
	// Data contains the chunk's contents. It aliases the scratch buffer
	// passed to Next.
	Data []byte
}

// Reader returns an io.Reader for the chunk's region of r.
func (c *Chunk) Reader(r io.ReaderAt) io.Reader {
	return io.NewSectionReader(r, int64(c.Start), int64(c.Length))
}

// Splitter is the part of the chunker API shared by all implementations.
// buf is a preallocated scratch buffer for the chunk's contents; an
// implementation may grow it and must not assume buf != nil. Next returns a
// nil error iff the chunk is non-nil, and io.EOF once the stream is
// exhausted.
type Splitter interface {
	Next(buf []byte) (*Chunk, error)
}
