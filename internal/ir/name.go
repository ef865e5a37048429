package ir

import (
	"strconv"
	"strings"
)

// NameKind discriminates the Name variants.
type NameKind uint8

const (
	NameAnonymous NameKind = iota
	NameString
	NameNumeric
)

// Name is a hierarchical identifier rooted at the anonymous name.
type Name struct {
	parent *Name
	kind   NameKind
	str    string
	num    uint64
	depth  uint32
	digest Digest
}

var anonymousName = func() *Name {
	w := newDigestWriter(nameDomainKey, uint8(NameAnonymous))
	return &Name{kind: NameAnonymous, digest: w.sum()}
}()

// Anonymous returns the canonical anonymous name.
func Anonymous() *Name { return anonymousName }

// NameStr returns parent.s. A nil parent means anonymous.
func NameStr(parent *Name, s string) *Name {
	parent = orAnonymous(parent)
	w := newDigestWriter(nameDomainKey, uint8(NameString))
	w.digest(parent.digest)
	w.bytes([]byte(s))
	return &Name{parent: parent, kind: NameString, str: s, depth: parent.depth + 1, digest: w.sum()}
}

// NameNum returns parent.n. A nil parent means anonymous.
func NameNum(parent *Name, n uint64) *Name {
	parent = orAnonymous(parent)
	w := newDigestWriter(nameDomainKey, uint8(NameNumeric))
	w.digest(parent.digest)
	w.u64(n)
	return &Name{parent: parent, kind: NameNumeric, num: n, depth: parent.depth + 1, digest: w.sum()}
}

// ParseName builds a name from dotted notation; purely numeric segments become
// numeric components. The empty string is anonymous.
func ParseName(dotted string) *Name {
	n := Anonymous()
	if dotted == "" {
		return n
	}
	for _, part := range strings.Split(dotted, ".") {
		if v, err := strconv.ParseUint(part, 10, 64); err == nil {
			n = NameNum(n, v)
			continue
		}
		n = NameStr(n, part)
	}
	return n
}

func orAnonymous(n *Name) *Name {
	if n == nil {
		return anonymousName
	}
	return n
}

func (n *Name) Kind() NameKind { return orAnonymous(n).kind }

// IsAnonymous reports whether n is the anonymous name.
func (n *Name) IsAnonymous() bool { return orAnonymous(n).kind == NameAnonymous }

// Parent returns the prefix; anonymous for anonymous.
func (n *Name) Parent() *Name {
	n = orAnonymous(n)
	if n.parent == nil {
		return anonymousName
	}
	return n.parent
}

// Str returns the string component of a NameString.
func (n *Name) Str() string { return orAnonymous(n).str }

// Num returns the numeric component of a NameNumeric.
func (n *Name) Num() uint64 { return orAnonymous(n).num }

// Depth is the number of components.
func (n *Name) Depth() int { return int(orAnonymous(n).depth) }

// Digest returns the structural digest.
func (n *Name) Digest() Digest { return orAnonymous(n).digest }

// Equal compares names structurally.
func (n *Name) Equal(other *Name) bool {
	return orAnonymous(n).digest == orAnonymous(other).digest
}

// Components returns the components from the root outwards.
func (n *Name) Components() []*Name {
	n = orAnonymous(n)
	out := make([]*Name, n.depth)
	for cur := n; cur.kind != NameAnonymous; cur = cur.parent {
		out[cur.depth-1] = cur
	}
	return out
}

// maxRenderedComponents caps String output for pathological fuzz chains.
const maxRenderedComponents = 64

func (n *Name) String() string {
	n = orAnonymous(n)
	if n.kind == NameAnonymous {
		return "[anonymous]"
	}
	comps := n.Components()
	var sb strings.Builder
	start := 0
	if len(comps) > maxRenderedComponents {
		start = len(comps) - maxRenderedComponents
		sb.WriteString("…")
	}
	for i := start; i < len(comps); i++ {
		if i > start || start > 0 {
			sb.WriteByte('.')
		}
		c := comps[i]
		if c.kind == NameNumeric {
			sb.WriteString(strconv.FormatUint(c.num, 10))
		} else {
			sb.WriteString(c.str)
		}
	}
	return sb.String()
}
