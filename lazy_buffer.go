package chunker

import "io"

// LazyBuf pulls bytes from a reader through a fixed-size buffer, refilling
// it on demand. Once the reader has failed, no further reads are issued.
type LazyBuf struct {
	io.Reader
	Buf [bufSize]byte
	Pos int
	end int
	err error

	// onUpdate, if set, is invoked right before a refill triggered by
	// Next, while the old buffer contents are still intact.
	onUpdate func(*LazyBuf)
}

// Next returns the next byte of the stream, refilling the buffer when it
// runs out. After exhaustion it returns zero; check err to distinguish a
// real zero byte from the end of the stream.
func (b *LazyBuf) Next() (x byte) {
	if b.Pos == b.end {
		if b.err != nil {
			return
		} else if b.onUpdate != nil {
			b.onUpdate(b)
		}

		if !b.Update() {
			return
		}
	}

	x = b.Buf[b.Pos]
	b.Pos++

	return
}

// Update refills the buffer and reports whether any bytes are available.
func (b *LazyBuf) Update() bool {
	b.Pos = 0
	b.end = 0

	if b.err != nil {
		return false
	}

	b.end, b.err = io.ReadFull(b.Reader, b.Buf[:])

	if b.err == io.ErrUnexpectedEOF {
		b.err = io.EOF
	}

	return b.end != 0
}
