// Package kernel defines the consumer side of decoding: a kernel admits
// declarations into persistent environments. ScopeKernel is the reference
// implementation; it checks that declarations are well scoped and does no
// type checking.
package kernel

import (
	"fmt"
	"runtime/debug"

	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/ir"
)

// Environment is an immutable set of admitted declarations. Add returns a
// new environment and leaves the receiver usable.
type Environment interface {
	Add(d ir.Declaration) (Environment, error)
	Contains(n *ir.Name) bool
	Len() int
}

// Kernel creates empty environments.
type Kernel interface {
	Name() string
	Empty() Environment
	// TypeChecks reports whether admission implies well-typedness. Only
	// then does an admitted False probe mean unsoundness.
	TypeChecks() bool
}

type ErrorKind uint8

const (
	KindAlreadyDeclared ErrorKind = iota + 1
	KindUnknownConstant
	KindLooseBoundVar
	KindUndeclaredUniv
	KindDuplicateUnivParam
	KindMalformedDecl
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindAlreadyDeclared:
		return "already declared"
	case KindUnknownConstant:
		return "unknown constant"
	case KindLooseBoundVar:
		return "loose bound variable"
	case KindUndeclaredUniv:
		return "undeclared universe parameter"
	case KindDuplicateUnivParam:
		return "duplicate universe parameter"
	case KindMalformedDecl:
		return "malformed declaration"
	case KindPanic:
		return "kernel panic"
	}
	return fmt.Sprintf("kernel error(%d)", uint8(k))
}

// Code maps the kind onto its diagnostic code.
func (k ErrorKind) Code() diag.Code {
	switch k {
	case KindAlreadyDeclared:
		return diag.KernelAlreadyDeclared
	case KindUnknownConstant:
		return diag.KernelUnknownConstant
	case KindLooseBoundVar:
		return diag.KernelLooseBoundVar
	case KindUndeclaredUniv:
		return diag.KernelUndeclaredUniv
	case KindDuplicateUnivParam:
		return diag.KernelDuplicateUnivParm
	case KindMalformedDecl:
		return diag.KernelMalformedDecl
	case KindPanic:
		return diag.KernelPanic
	}
	return diag.UnknownCode
}

// Error is a rejected declaration.
type Error struct {
	Kind ErrorKind
	Decl *ir.Name // declaration being added, nil for quotients
	Name *ir.Name // offending constant or universe, if any
	Msg  string
}

func (e *Error) Error() string {
	var msg string
	switch {
	case e.Name != nil:
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Name)
	default:
		msg = e.Kind.String()
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Decl != nil {
		return fmt.Sprintf("kernel: %s: %s", e.Decl, msg)
	}
	return "kernel: " + msg
}

// Is matches errors of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Name == nil && t.Decl == nil
}

// Sentinels for errors.Is.
var (
	ErrAlreadyDeclared    = &Error{Kind: KindAlreadyDeclared}
	ErrUnknownConstant    = &Error{Kind: KindUnknownConstant}
	ErrLooseBoundVar      = &Error{Kind: KindLooseBoundVar}
	ErrUndeclaredUniv     = &Error{Kind: KindUndeclaredUniv}
	ErrDuplicateUnivParam = &Error{Kind: KindDuplicateUnivParam}
	ErrMalformedDecl      = &Error{Kind: KindMalformedDecl}
	ErrPanic              = &Error{Kind: KindPanic}
)

// Admit adds d to env and converts a panic inside the kernel into an error
// of kind KindPanic. On error env is returned unchanged.
func Admit(env Environment, d ir.Declaration) (next Environment, err error) {
	defer func() {
		if r := recover(); r != nil {
			next = env
			err = &Error{Kind: KindPanic, Decl: d.Name, Msg: fmt.Sprintf("%v\n%s", r, debug.Stack())}
		}
	}()
	next, err = env.Add(d)
	if err != nil {
		return env, err
	}
	return next, nil
}

// AdmitAll adds decls in order and stops at the first rejection. It returns
// the environment reached and the index of the failing declaration, or
// len(decls) when all were admitted.
func AdmitAll(env Environment, decls []ir.Declaration) (Environment, int, error) {
	for i := range decls {
		next, err := Admit(env, decls[i])
		if err != nil {
			return env, i, err
		}
		env = next
	}
	return env, len(decls), nil
}
