package textfmt

import (
	"kernelfuzz/internal/source"
)

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\v', '\f':
		return true
	}
	return false
}

// lineCursor hands out the whitespace-delimited tokens of one record line.
type lineCursor struct {
	file source.FileID
	line []byte
	base uint32 // file offset of line[0]
	pos  int
}

func (c *lineCursor) reset(file source.FileID, line []byte, base uint32) {
	c.file, c.line, c.base, c.pos = file, line, base, 0
}

func (c *lineCursor) skipSpace() {
	for c.pos < len(c.line) && isSpace(c.line[c.pos]) {
		c.pos++
	}
}

func (c *lineCursor) span(start, end int) source.Span {
	return source.Span{File: c.file, Start: c.base + uint32(start), End: c.base + uint32(end)} //nolint:gosec // line offsets fit the file
}

// next returns the next token, or ok == false with an empty span at the end
// of the line.
func (c *lineCursor) next() (tok string, sp source.Span, ok bool) {
	c.skipSpace()
	start := c.pos
	for c.pos < len(c.line) && !isSpace(c.line[c.pos]) {
		c.pos++
	}
	if start == c.pos {
		return "", c.span(c.pos, c.pos), false
	}
	return string(c.line[start:c.pos]), c.span(start, c.pos), true
}

// peekEmpty reports whether only whitespace remains.
func (c *lineCursor) peekEmpty() bool {
	c.skipSpace()
	return c.pos == len(c.line)
}

// remaining returns the span of the unconsumed, non-blank tail.
func (c *lineCursor) remaining() source.Span {
	c.skipSpace()
	end := len(c.line)
	for end > c.pos && isSpace(c.line[end-1]) {
		end--
	}
	return c.span(c.pos, end)
}

// lineSpan covers the whole record line.
func (c *lineCursor) lineSpan() source.Span {
	return c.span(0, len(c.line))
}
