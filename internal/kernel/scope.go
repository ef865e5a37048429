package kernel

import (
	"kernelfuzz/internal/ir"
)

// ScopeKernel admits a declaration when
//   - its constant names are non-anonymous and not yet declared
//   - its universe parameters are distinct and cover every parameter used
//   - every referenced constant is declared (an inductive declaration may
//     refer to its own types and constructors)
//   - its types and values are closed terms
type ScopeKernel struct{}

func (ScopeKernel) Name() string     { return "scope" }
func (ScopeKernel) TypeChecks() bool { return false }

func (ScopeKernel) Empty() Environment { return emptyScopeEnv }

// Constants introduced by a quotient declaration.
var quotConstants = []*ir.Name{
	ir.ParseName("Quot"),
	ir.ParseName("Quot.mk"),
	ir.ParseName("Quot.lift"),
	ir.ParseName("Quot.ind"),
}

// flattenDepth bounds the layer chain a lookup walks.
const flattenDepth = 32

// scopeEnv is a persistent set of constant names: a chain of small layers
// over a flattened base.
type scopeEnv struct {
	parent *scopeEnv
	names  map[ir.Digest]*ir.Name
	depth  int
	size   int
}

var emptyScopeEnv = &scopeEnv{names: map[ir.Digest]*ir.Name{}}

func (e *scopeEnv) Len() int { return e.size }

func (e *scopeEnv) Contains(n *ir.Name) bool {
	d := n.Digest()
	for cur := e; cur != nil; cur = cur.parent {
		if _, ok := cur.names[d]; ok {
			return true
		}
	}
	return false
}

func (e *scopeEnv) extend(names []*ir.Name) *scopeEnv {
	layer := make(map[ir.Digest]*ir.Name, len(names))
	for _, n := range names {
		layer[n.Digest()] = n
	}
	next := &scopeEnv{parent: e, names: layer, depth: e.depth + 1, size: e.size + len(names)}
	if next.depth < flattenDepth {
		return next
	}
	flat := make(map[ir.Digest]*ir.Name, next.size)
	for cur := next; cur != nil; cur = cur.parent {
		for d, n := range cur.names {
			flat[d] = n
		}
	}
	return &scopeEnv{names: flat, size: next.size}
}

func (e *scopeEnv) Add(d ir.Declaration) (Environment, error) {
	introduced, err := e.introduced(d)
	if err != nil {
		return nil, err
	}
	local := make(map[ir.Digest]struct{}, len(introduced))
	for _, n := range introduced {
		local[n.Digest()] = struct{}{}
	}

	params := make(map[ir.Digest]struct{}, len(d.Params))
	for _, p := range d.Params {
		if _, dup := params[p.Digest()]; dup {
			return nil, &Error{Kind: KindDuplicateUnivParam, Decl: d.Name, Name: p}
		}
		params[p.Digest()] = struct{}{}
	}

	w := newWalker()
	w.onParam = func(n *ir.Name) error {
		if _, ok := params[n.Digest()]; !ok {
			return &Error{Kind: KindUndeclaredUniv, Decl: d.Name, Name: n}
		}
		return nil
	}
	w.onConst = func(n *ir.Name) error {
		if _, ok := local[n.Digest()]; ok && d.Kind == ir.DeclInductive {
			return nil
		}
		if !e.Contains(n) {
			return &Error{Kind: KindUnknownConstant, Decl: d.Name, Name: n}
		}
		return nil
	}
	for _, t := range terms(d) {
		if t == nil {
			return nil, &Error{Kind: KindMalformedDecl, Decl: d.Name, Msg: "missing term"}
		}
		if r := w.looseRange(t); r > 0 {
			return nil, &Error{Kind: KindLooseBoundVar, Decl: d.Name, Msg: "term is not closed"}
		}
		if err := w.visit(t); err != nil {
			return nil, err
		}
	}
	return e.extend(introduced), nil
}

// introduced lists the new constants of d and rejects clashes.
func (e *scopeEnv) introduced(d ir.Declaration) ([]*ir.Name, error) {
	var names []*ir.Name
	switch d.Kind {
	case ir.DeclQuotient:
		names = quotConstants
	case ir.DeclInductive:
		if len(d.Types) == 0 {
			return nil, &Error{Kind: KindMalformedDecl, Msg: "inductive declaration without types"}
		}
		names = d.Constants()
	default:
		names = d.Constants()
	}
	seen := make(map[ir.Digest]struct{}, len(names))
	for _, n := range names {
		if n.IsAnonymous() {
			return nil, &Error{Kind: KindMalformedDecl, Decl: d.Name, Msg: "anonymous constant name"}
		}
		if _, dup := seen[n.Digest()]; dup || e.Contains(n) {
			return nil, &Error{Kind: KindAlreadyDeclared, Decl: d.Name, Name: n}
		}
		seen[n.Digest()] = struct{}{}
	}
	return names, nil
}

// terms lists every term of d that must be well scoped.
func terms(d ir.Declaration) []*ir.Term {
	switch d.Kind {
	case ir.DeclQuotient:
		return nil
	case ir.DeclAxiom:
		return []*ir.Term{d.Type}
	case ir.DeclInductive:
		var out []*ir.Term
		for _, t := range d.Types {
			out = append(out, t.Type)
			for _, c := range t.Ctors {
				out = append(out, c.Type)
			}
		}
		return out
	default:
		return []*ir.Term{d.Type, d.Value}
	}
}
