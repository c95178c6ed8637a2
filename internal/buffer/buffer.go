// Package buffer implements the append-only byte region used by every
// Server connection for its input, output, and pending buffers
// (spec.md §3).
package buffer

// Buffer is a growable byte region. Bytes [0, Avail) hold valid content;
// Consume shifts the remainder down to the front. The zero value is a
// usable empty buffer.
type Buffer struct {
	data  []byte
	avail int
}

// New allocates a Buffer with the given initial capacity.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Avail returns the number of valid bytes currently held.
func (b *Buffer) Avail() int { return b.avail }

// Bytes returns the valid content as a slice; it aliases the buffer's
// backing array and is only valid until the next mutating call.
func (b *Buffer) Bytes() []byte { return b.data[:b.avail] }

// Append grows the buffer if necessary and appends p to the end.
func (b *Buffer) Append(p []byte) {
	b.grow(len(p))
	copy(b.data[b.avail:b.avail+len(p)], p)
	b.avail += len(p)
}

// grow ensures capacity for n additional bytes beyond avail.
func (b *Buffer) grow(n int) {
	need := b.avail + n
	if need <= cap(b.data) {
		b.data = b.data[:need]
		return
	}
	newCap := cap(b.data)*2 + n
	if newCap < need {
		newCap = need
	}
	nd := make([]byte, need, newCap)
	copy(nd, b.data[:b.avail])
	b.data = nd
}

// Peek returns the first n valid bytes without consuming them. It panics
// if n > Avail, matching the codec's invariant of only peeking complete
// regions it has already confirmed are present.
func (b *Buffer) Peek(n int) []byte {
	if n > b.avail {
		panic("buffer: peek past avail")
	}
	return b.data[:n]
}

// Consume removes the first n bytes, shifting the remainder to the front.
func (b *Buffer) Consume(n int) {
	if n > b.avail {
		panic("buffer: consume past avail")
	}
	copy(b.data, b.data[n:b.avail])
	b.avail -= n
	b.data = b.data[:b.avail]
}

// Reset discards all content without releasing the backing array.
func (b *Buffer) Reset() {
	b.avail = 0
	b.data = b.data[:0]
}

// AppendTo moves the entirety of src's content to the end of b, then
// resets src. Used for the pending -> output transfer on READY (spec.md §4.3).
func (b *Buffer) AppendTo(src *Buffer) {
	if src.avail == 0 {
		return
	}
	b.Append(src.Bytes())
	src.Reset()
}
