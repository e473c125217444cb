package chunker

import (
	"io"

	"github.com/pkg/errors"
)

const (
	// windowSize is the number of bytes covered by the rolling fingerprint.
	windowSize = 64

	// MinSize is the default minimal size of a chunk.
	MinSize = 512 * KiB
	// MaxSize is the default maximal size of a chunk.
	MaxSize = 8 * MiB

	// DefaultAverageBits yields chunks of about 1 MiB on average.
	DefaultAverageBits = 20
)

// ErrNotInitialized is returned by Next when the chunker was created
// without a polynomial.
var ErrNotInitialized = errors.New("chunker: polynomial is not set")

// A Chunker splits a stream into content-defined chunks using a rolling
// Rabin fingerprint over an irreducible polynomial. It buffers input from
// the reader and emits one chunk per call to Next.
type Chunker struct {
	pol      Pol
	polShift uint
	tables   *tables

	rd     io.Reader
	closed bool
	err    error

	window [windowSize]byte
	wpos   int

	buf  []byte
	bpos uint
	bmax uint

	start uint
	count uint
	pos   uint

	// pre is the number of bytes to ingest without fingerprinting before
	// the cut predicate applies; it keeps every chunk at minSize or above.
	pre uint

	digest uint64

	minSize, maxSize uint
	splitmask        uint64
}

// New returns a Chunker based on polynomial pol that reads from rd.
func New(rd io.Reader, pol Pol) *Chunker {
	return NewWithBoundaries(rd, pol, MinSize, MaxSize)
}

// NewWithBoundaries returns a Chunker based on polynomial pol that reads
// from rd and custom min and max size boundaries. min must be at least
// windowSize and max at least min; violating either panics.
func NewWithBoundaries(rd io.Reader, pol Pol, min, max uint) *Chunker {
	c := &Chunker{
		buf: make([]byte, bufSize),
	}
	c.ResetWithBoundaries(rd, pol, min, max)

	return c
}

// Reset reinitializes the chunker with a new reader and polynomial,
// restoring the default boundaries and split mask.
func (c *Chunker) Reset(rd io.Reader, pol Pol) {
	c.ResetWithBoundaries(rd, pol, MinSize, MaxSize)
}

// ResetWithBoundaries reinitializes the chunker with a new reader,
// polynomial and custom min and max size boundaries. The read-ahead buffer
// is reused.
func (c *Chunker) ResetWithBoundaries(rd io.Reader, pol Pol, min, max uint) {
	if min < windowSize {
		panic("chunker: minimal chunk size is smaller than the sliding window")
	}
	if max < min {
		panic("chunker: maximal chunk size is smaller than the minimal size")
	}

	*c = Chunker{
		buf:       c.buf,
		rd:        rd,
		pol:       pol,
		minSize:   min,
		maxSize:   max,
		splitmask: (1 << DefaultAverageBits) - 1,
	}
	if c.buf == nil {
		c.buf = make([]byte, bufSize)
	}

	c.reset()
}

// SetAverageBits sets the number of zero bits of the fingerprint that
// produce a cut point, so chunks of 2^averageBits bytes are created on
// average. Reset restores the default of DefaultAverageBits.
func (c *Chunker) SetAverageBits(averageBits int) {
	c.splitmask = (1 << uint64(averageBits)) - 1
}

// reset prepares the fingerprint state for a new chunk. It keeps the
// stream position, the buffered data and any recorded stream error.
func (c *Chunker) reset() {
	if c.pol == 0 {
		// Next reports ErrNotInitialized; nothing to precompute.
		return
	}

	c.polShift = uint(c.pol.Deg() - 8)
	c.tables = tablesForPol(c.pol)

	c.window = [windowSize]byte{}
	c.wpos = 0
	c.digest = 0
	c.count = 0

	// Seed the window with a known non-zero byte so that streams of null
	// bytes do not keep the fingerprint collapsed at zero.
	c.slide(1)
	c.start = c.pos

	// Do not evaluate the cut predicate before at least minSize bytes
	// have been accumulated into the chunk.
	c.pre = c.minSize - windowSize
}

// Next returns the next content-defined chunk of the stream, writing the
// chunk's bytes into buf from its start (the length of buf is ignored, its
// capacity is reused). The returned chunk's Data aliases buf (grown if
// needed), so the caller may reuse one scratch buffer across calls. Once
// the stream is exhausted, the trailing bytes are returned as a final
// (possibly short) chunk and every following call yields (nil, io.EOF)
// until Reset. Errors from the reader are returned as they occur; the
// chunker state is undefined afterwards and must be Reset before reuse.
func (c *Chunker) Next(buf []byte) (*Chunk, error) {
	if c.tables == nil {
		return nil, ErrNotInitialized
	}

	data := buf[:0]

	for {
		if c.bpos >= c.bmax {
			if c.err == nil {
				n, err := io.ReadFull(c.rd, c.buf)

				// A short fill can only mean that the stream ended;
				// remember it so the reader is never touched again.
				if err == io.ErrUnexpectedEOF {
					err = io.EOF
				}
				if err != nil && err != io.EOF {
					c.err = errors.Wrap(err, "chunker: reading source")
					c.bpos = 0
					c.bmax = 0

					return nil, c.err
				}

				c.err = err
				c.bpos = 0
				c.bmax = uint(n)
			}

			if c.bpos >= c.bmax {
				// No buffered bytes left and the source is done.
				if c.err == io.EOF && !c.closed {
					c.closed = true

					// Emit whatever has accumulated as the last chunk.
					if c.count > 0 {
						return &Chunk{
							Start:  c.start,
							Length: c.count,
							Cut:    c.digest,
							Data:   data,
						}, nil
					}
				}

				return nil, c.err
			}
		}

		// Dismiss phase: bytes below the minimum-size threshold belong to
		// the chunk but are not fingerprinted.
		if c.pre > 0 {
			n := c.bmax - c.bpos
			if c.pre > n {
				c.pre -= n
				data = append(data, c.buf[c.bpos:c.bmax]...)

				c.count += n
				c.pos += n
				c.bpos = c.bmax

				continue
			}

			data = append(data, c.buf[c.bpos:c.bpos+c.pre]...)

			c.bpos += c.pre
			c.count += c.pre
			c.pos += c.pre
			c.pre = 0
		}

		// Scan phase: run the rolling hash in local registers and look
		// for a cut point.
		add := c.count
		digest := c.digest
		win := c.window
		wpos := c.wpos
		tabout := &c.tables.out
		tabmod := &c.tables.mod
		polShift := c.polShift

		for _, b := range c.buf[c.bpos:c.bmax] {
			// slide b into the window
			out := win[wpos]
			win[wpos] = b
			digest ^= uint64(tabout[out])
			wpos = (wpos + 1) % windowSize

			// append b to the digest; the XOR with the mod table entry
			// reduces modulo the polynomial and clears the top eight
			// bits in one step
			index := digest >> polShift
			digest <<= 8
			digest |= uint64(b)
			digest ^= uint64(tabmod[index])

			add++
			if add < c.minSize {
				continue
			}

			if digest&c.splitmask == 0 || add >= c.maxSize {
				i := add - c.count - 1
				data = append(data, c.buf[c.bpos:c.bpos+i+1]...)
				c.count = add
				c.pos += i + 1
				c.bpos += i + 1

				chunk := &Chunk{
					Start:  c.start,
					Length: c.count,
					Cut:    digest,
					Data:   data,
				}

				c.reset()

				return chunk, nil
			}
		}

		// The buffer ran out without a cut: commit the registers and
		// keep the scanned bytes.
		c.digest = digest
		c.window = win
		c.wpos = wpos

		steps := c.bmax - c.bpos
		if steps > 0 {
			data = append(data, c.buf[c.bpos:c.bpos+steps]...)
		}
		c.count += steps
		c.pos += steps
		c.bpos = c.bmax
	}
}

func (c *Chunker) append(b byte) {
	index := c.digest >> c.polShift
	c.digest <<= 8
	c.digest |= uint64(b)

	c.digest ^= uint64(c.tables.mod[index])
}

func (c *Chunker) slide(b byte) {
	out := c.window[c.wpos]
	c.window[c.wpos] = b
	c.digest ^= uint64(c.tables.out[out])
	c.wpos = (c.wpos + 1) % windowSize

	c.append(b)
}
