// Package strpool holds the interned string pool the binary format refers to
// by 16-bit index.
package strpool

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"fortio.org/safecast"
)

// Placeholder is returned by Lookup on an empty pool.
const Placeholder = "foo42"

// MaxLen is the number of entries a 16-bit index can address.
const MaxLen = 1 << 16

var (
	ErrFull    = errors.New("strpool: pool is full")
	ErrNewline = errors.New("strpool: string contains a newline")
)

// Pool is an ordered list of strings. Lookups never fail.
type Pool struct {
	strs  []string
	index map[string]uint16
}

// New builds a pool from strs in order.
func New(strs ...string) *Pool {
	p := &Pool{index: make(map[string]uint16, len(strs))}
	for _, s := range strs {
		p.add(s)
	}
	return p
}

func (p *Pool) add(s string) {
	if len(p.strs) < MaxLen {
		if _, seen := p.index[s]; !seen {
			p.index[s] = uint16(len(p.strs)) //nolint:gosec // len < MaxLen
		}
	}
	p.strs = append(p.strs, s)
}

// Parse splits data into lines. A trailing newline does not start an extra
// entry; empty lines in the middle are kept as empty strings.
func Parse(data []byte) *Pool {
	p := New()
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(nil, len(data)+1)
	sc.Split(scanLines)
	for sc.Scan() {
		p.add(sc.Text())
	}
	return p
}

// scanLines is bufio.ScanLines without the carriage-return stripping: pool
// entries are raw bytes.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Read parses a pool from r.
func Read(r io.Reader) (*Pool, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("strpool: read: %w", err)
	}
	return Parse(data), nil
}

func (p *Pool) Len() int { return len(p.strs) }

// Strings returns the entries; do not modify.
func (p *Pool) Strings() []string { return p.strs }

// Lookup resolves idx modulo the pool size.
func (p *Pool) Lookup(idx uint16) string {
	if len(p.strs) == 0 {
		return Placeholder
	}
	return p.strs[int(idx)%len(p.strs)]
}

// Intern returns the index of s, appending it if it is new.
func (p *Pool) Intern(s string) (uint16, error) {
	if idx, ok := p.index[s]; ok {
		return idx, nil
	}
	if strings.IndexByte(s, '\n') >= 0 {
		return 0, fmt.Errorf("%w: %q", ErrNewline, s)
	}
	idx, err := safecast.Conv[uint16](len(p.strs))
	if err != nil {
		return 0, ErrFull
	}
	p.add(s)
	return idx, nil
}

// Bytes renders the pool in its file form, one entry per line.
func (p *Pool) Bytes() []byte {
	var buf bytes.Buffer
	for _, s := range p.strs {
		buf.WriteString(s)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
