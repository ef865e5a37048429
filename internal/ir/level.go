package ir

import (
	"strconv"
	"strings"
)

// LevelKind discriminates universe level expressions.
type LevelKind uint8

const (
	LevelZero LevelKind = iota
	LevelSucc
	LevelMax
	LevelIMax
	LevelParam
)

func (k LevelKind) String() string {
	switch k {
	case LevelZero:
		return "zero"
	case LevelSucc:
		return "succ"
	case LevelMax:
		return "max"
	case LevelIMax:
		return "imax"
	case LevelParam:
		return "param"
	default:
		return "level(" + strconv.Itoa(int(k)) + ")"
	}
}

// Level is a universe level expression.
type Level struct {
	kind   LevelKind
	lhs    *Level
	rhs    *Level
	param  *Name
	digest Digest
}

var zeroLevel = func() *Level {
	w := newDigestWriter(levelDomainKey, uint8(LevelZero))
	return &Level{kind: LevelZero, digest: w.sum()}
}()

// Zero returns the canonical zero level.
func Zero() *Level { return zeroLevel }

func orZero(l *Level) *Level {
	if l == nil {
		return zeroLevel
	}
	return l
}

// Succ returns l+1.
func Succ(l *Level) *Level {
	l = orZero(l)
	w := newDigestWriter(levelDomainKey, uint8(LevelSucc))
	w.digest(l.digest)
	return &Level{kind: LevelSucc, lhs: l, digest: w.sum()}
}

// Max returns max(a, b).
func Max(a, b *Level) *Level { return mkBinaryLevel(LevelMax, a, b) }

// IMax returns imax(a, b).
func IMax(a, b *Level) *Level { return mkBinaryLevel(LevelIMax, a, b) }

func mkBinaryLevel(kind LevelKind, a, b *Level) *Level {
	a, b = orZero(a), orZero(b)
	w := newDigestWriter(levelDomainKey, uint8(kind))
	w.digest(a.digest)
	w.digest(b.digest)
	return &Level{kind: kind, lhs: a, rhs: b, digest: w.sum()}
}

// Param returns a universe parameter reference.
func Param(n *Name) *Level {
	n = orAnonymous(n)
	w := newDigestWriter(levelDomainKey, uint8(LevelParam))
	w.digest(n.digest)
	return &Level{kind: LevelParam, param: n, digest: w.sum()}
}

func (l *Level) Kind() LevelKind { return orZero(l).kind }

// Pred returns the argument of a Succ.
func (l *Level) Pred() *Level { return orZero(l).lhs }

// Lhs and Rhs return the operands of Max and IMax.
func (l *Level) Lhs() *Level { return orZero(l).lhs }
func (l *Level) Rhs() *Level { return orZero(l).rhs }

// ParamName returns the name of a Param.
func (l *Level) ParamName() *Name { return orZero(l).param }

func (l *Level) Digest() Digest { return orZero(l).digest }

func (l *Level) Equal(other *Level) bool {
	return orZero(l).digest == orZero(other).digest
}

// renderBudget bounds the number of nodes String visits; shared DAGs from the
// lenient decoder would otherwise expand exponentially.
const renderBudget = 512

func (l *Level) String() string {
	var sb strings.Builder
	budget := renderBudget
	writeLevel(&sb, orZero(l), &budget)
	return sb.String()
}

func writeLevel(sb *strings.Builder, l *Level, budget *int) {
	if *budget <= 0 {
		sb.WriteString("…")
		return
	}
	*budget--
	switch l.kind {
	case LevelZero:
		sb.WriteByte('0')
	case LevelSucc:
		// цепочку succ над нулём печатаем числом
		n, base := 0, l
		for base.kind == LevelSucc {
			n++
			base = base.lhs
		}
		if base.kind == LevelZero {
			sb.WriteString(strconv.Itoa(n))
			return
		}
		writeLevelAtom(sb, base, budget)
		sb.WriteString("+")
		sb.WriteString(strconv.Itoa(n))
	case LevelMax, LevelIMax:
		sb.WriteString(l.kind.String())
		sb.WriteByte(' ')
		writeLevelAtom(sb, l.lhs, budget)
		sb.WriteByte(' ')
		writeLevelAtom(sb, l.rhs, budget)
	case LevelParam:
		sb.WriteString(l.param.String())
	}
}

func writeLevelAtom(sb *strings.Builder, l *Level, budget *int) {
	if l.kind == LevelMax || l.kind == LevelIMax || (l.kind == LevelSucc && l.lhs.kind != LevelZero) {
		sb.WriteByte('(')
		writeLevel(sb, l, budget)
		sb.WriteByte(')')
		return
	}
	writeLevel(sb, l, budget)
}
