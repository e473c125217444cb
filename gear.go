package chunker

import (
	"io"
	"math/rand"
)

// A Gear splits a stream with the gear rolling hash. It is cheaper per
// byte than the Rabin chunker, but enforces no minimum or maximum chunk
// size: a chunk ends wherever the masked digest hits zero, or at the end
// of the stream.
type Gear struct {
	lb     LazyBuf
	table  [256]uint32
	digest uint32
	mask   uint32
	start  uint
}

// newGearTable fills the per-byte mixing table from r. Two chunkers built
// from the same seed produce identical cut points.
func newGearTable(r *rand.Rand) (table [256]uint32) {
	for i := range table {
		table[i] = r.Uint32()
	}

	return
}

// NewGear returns a Gear chunker whose mixing table is derived from seed.
// Reset must be called with a reader before the first Next.
func NewGear(seed int64) *Gear {
	return &Gear{
		table: newGearTable(rand.New(rand.NewSource(seed))),
		mask:  1<<DefaultAverageBits - 1,
	}
}

// Reset initializes the chunker to read from r.
func (g *Gear) Reset(r io.Reader) {
	g.lb.Reader = r
	g.lb.Pos = 0
	g.lb.end = 0
	g.lb.err = nil
	g.digest = 0
	g.start = 0
	g.slide(1)
}

// Next implements the Splitter interface.
func (g *Gear) Next(buf []byte) (*Chunk, error) {
	data := buf[:0]

	if g.lb.Pos == g.lb.end && !g.lb.Update() {
		return nil, g.lb.err
	}

	seg := g.lb.Pos

	for {
		b := g.lb.Buf[g.lb.Pos]
		g.lb.Pos++
		g.slide(b)

		if g.digest&g.mask == 0 {
			data = append(data, g.lb.Buf[seg:g.lb.Pos]...)
			return g.emit(data), nil
		}

		if g.lb.Pos == g.lb.end {
			data = append(data, g.lb.Buf[seg:g.lb.end]...)

			if !g.lb.Update() {
				if g.lb.err == io.EOF && len(data) > 0 {
					return g.emit(data), nil
				}

				return nil, g.lb.err
			}

			seg = 0
		}
	}
}

func (g *Gear) emit(data []byte) *Chunk {
	c := &Chunk{
		Start:  g.start,
		Length: uint(len(data)),
		Cut:    uint64(g.digest),
		Data:   data,
	}
	g.start += c.Length

	return c
}

func (g *Gear) slide(b byte) {
	g.digest <<= 1
	g.digest += g.table[b]
}
