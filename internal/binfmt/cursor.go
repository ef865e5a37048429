package binfmt

// Cursor reads big-endian integers from an immutable buffer. Reads past the
// end return zero and are counted, never reported.
type Cursor struct {
	buf      []byte
	pos      int
	overruns int
}

func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

// Remaining is the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Overruns counts reads that found the buffer exhausted.
func (c *Cursor) Overruns() int { return c.overruns }

func (c *Cursor) U8() uint8 {
	if c.pos >= len(c.buf) {
		c.overruns++
		return 0
	}
	b := c.buf[c.pos]
	c.pos++
	return b
}

func (c *Cursor) U16() uint16 {
	hi := uint16(c.U8())
	lo := uint16(c.U8())
	return hi<<8 | lo
}

func (c *Cursor) U32() uint32 {
	hi := uint32(c.U16())
	lo := uint32(c.U16())
	return hi<<16 | lo
}

// Bytes reads an n-byte block, zero-filled past the end.
func (c *Cursor) Bytes(n int) []byte {
	out := make([]byte, n)
	avail := min(n, c.Remaining())
	copy(out, c.buf[c.pos:c.pos+avail])
	c.pos += avail
	if avail < n {
		c.overruns += n - avail
	}
	return out
}
