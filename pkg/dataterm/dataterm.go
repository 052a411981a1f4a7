// Package dataterm implements the derived-term schema (spec component C8):
// a structurally-generic specialization of the handle surface (pkg/aterm)
// into named domain types — variables, applications, abstractions,
// quantifiers, lists and integers — each identified by a predicate over its
// underlying node and constructed through a designated head symbol.
//
// The schema adds no runtime dispatch: Derived[P] is exactly one term field
// wide, and P is a phantom type parameter whose zero value supplies the
// predicate. This is the same "generic wrapper specialized by a type
// parameter that carries no data of its own" shape pkg/lock.BFVector[T]
// uses for its element type, applied here to a marker type instead of a
// data type.
package dataterm

import (
	"github.com/mcrl2-org/go-aterm/pkg/aterm"
	"github.com/mcrl2-org/go-aterm/pkg/lock"
	"github.com/mcrl2-org/go-aterm/pkg/pool"
	"github.com/mcrl2-org/go-aterm/pkg/protection"
	"github.com/mcrl2-org/go-aterm/pkg/symbol"
)

// Debug controls whether the schema predicate runs on every conversion.
// Release builds (Debug == false) skip it entirely (spec.md §4.8).
var Debug = true

func debugAssert(cond bool, msg string) {
	if Debug && !cond {
		panic("dataterm: " + msg)
	}
}

// Predicate identifies which pool nodes belong to a derived schema type. P
// is instantiated as a zero-size marker struct, so Check is effectively a
// static dispatch resolved at compile time.
type Predicate interface {
	Check(n *pool.Node) bool
}

// Reserved head symbols for the schema types this package builds. These
// follow the naming a data-expression library in this domain uses for its
// internal representation of variables, applications and binders.
const (
	symVariable    = "DataVarId"
	symApplication = "DataAppl"
	symBinder      = "Binder"
	symForall      = "Forall"
	symExists      = "Exists"
)

// KindLambda is the binder kind for NewAbstraction callers building a
// lambda abstraction rather than a quantifier.
const KindLambda = "Lambda"

func hasHeadArity(n *pool.Node, name string, arity int) bool {
	return n.Symbol().Name() == name && n.Arity() == arity
}

// Variable identifies a data-expression variable: DataVarId(name, sort).
type Variable struct{}

func (Variable) Check(n *pool.Node) bool { return hasHeadArity(n, symVariable, 2) }

// Application identifies a function application: DataAppl(head, arg0, ...).
type Application struct{}

func (Application) Check(n *pool.Node) bool {
	return n.Symbol().Name() == symApplication && n.Arity() >= 1
}

// Abstraction identifies a binder term: Binder(kind, vars, body).
type Abstraction struct{}

func (Abstraction) Check(n *pool.Node) bool { return hasHeadArity(n, symBinder, 3) }

// Quantifier identifies a Binder whose kind constant is Forall or Exists.
type Quantifier struct{}

func (Quantifier) Check(n *pool.Node) bool {
	if !hasHeadArity(n, symBinder, 3) {
		return false
	}
	kind := n.Arg(0).Symbol().Name()
	return kind == symForall || kind == symExists
}

// List identifies any list-shaped node: the reserved empty-list constant or
// a cons cell built from the reserved list constructor.
type List struct{}

func (List) Check(n *pool.Node) bool { return n.IsList() }

// Int identifies a machine-integer node.
type Int struct{}

func (Int) Check(n *pool.Node) bool { return n.IsInt() }

// Derived is a strong handle specialized to schema P. It contains exactly
// one term field (spec.md §4.8's "the wrapper contains exactly one term
// field" constraint).
type Derived[P Predicate] struct {
	term *aterm.OwnedTerm
}

// wrap asserts node satisfies P's predicate (debug builds only) and roots
// it as a strong handle in set.
func wrap[P Predicate](set *protection.Set, node *pool.Node) *Derived[P] {
	var p P
	debugAssert(p.Check(node), "node does not satisfy the schema predicate")
	return &Derived[P]{term: aterm.NewOwned(set, node)}
}

// Node returns the underlying pool node.
func (d *Derived[P]) Node() *pool.Node { return d.term.Node() }

// Clone delegates to the underlying term's Clone, per spec.md §4.8's
// "clone ... delegate to the underlying term."
func (d *Derived[P]) Clone() *Derived[P] {
	return &Derived[P]{term: d.term.Clone()}
}

// Drop delegates to the underlying term's Drop.
func (d *Derived[P]) Drop() { d.term.Drop() }

// Equal delegates to the underlying term's pointer equality.
func (d *Derived[P]) Equal(other *Derived[P]) bool {
	if other == nil {
		return false
	}
	return d.term.Equal(other.term)
}

// String delegates to the underlying term's textual printing.
func (d *Derived[P]) String() string { return d.term.String() }

// Ref returns a borrowed variant with the same schema, delegating to the
// underlying term's Ref (spec.md §4.8's "borrow-copy delegate[s] to the
// underlying term").
func (d *Derived[P]) Ref() BorrowedDerived[P] {
	return BorrowedDerived[P]{ref: d.term.Ref()}
}

// BorrowedDerived is the borrowed counterpart of Derived: a bare node
// pointer typed to schema P, with the same lifetime discipline as
// aterm.TermRef.
type BorrowedDerived[P Predicate] struct {
	ref aterm.TermRef
}

// RefOf wraps a raw node directly, asserting the schema predicate in debug
// builds without touching any protection set.
func RefOf[P Predicate](node *pool.Node) BorrowedDerived[P] {
	var p P
	debugAssert(p.Check(node), "node does not satisfy the schema predicate")
	return BorrowedDerived[P]{ref: aterm.RefOf(node)}
}

// Node returns the underlying pool node.
func (b BorrowedDerived[P]) Node() *pool.Node { return b.ref.Node() }

// String delegates to the underlying term's textual printing.
func (b BorrowedDerived[P]) String() string { return b.ref.String() }

// ToOwned upgrades the borrow into a strong, schema-typed handle.
func (b BorrowedDerived[P]) ToOwned(set *protection.Set) *Derived[P] {
	return &Derived[P]{term: b.ref.ToOwned(set)}
}

// NewVariable constructs DataVarId(name, sort), where name is itself a
// nullary constant node carrying the variable's identifier.
func NewVariable(p *pool.Pool, tbl *symbol.Table, r *lock.Reader, set *protection.Set, name string, sort *pool.Node) *Derived[Variable] {
	nameSym := tbl.Intern(r, name, 0)
	nameNode, _ := p.Create(r, nameSym, nil)
	varSym := tbl.Intern(r, symVariable, 2)
	n, _ := p.Create(r, varSym, []*pool.Node{nameNode, sort})
	return wrap[Variable](set, n)
}

// NewApplication constructs DataAppl(head, args...).
func NewApplication(p *pool.Pool, tbl *symbol.Table, r *lock.Reader, set *protection.Set, head *pool.Node, args []*pool.Node) *Derived[Application] {
	applSym := tbl.Intern(r, symApplication, 1+len(args))
	n, _ := p.Create(r, applSym, append([]*pool.Node{head}, args...))
	return wrap[Application](set, n)
}

// buildBinder constructs the raw Binder(kind, varList, body) node without
// rooting it, so callers can wrap it under whichever schema fits.
func buildBinder(p *pool.Pool, tbl *symbol.Table, r *lock.Reader, kind string, varList, body *pool.Node) *pool.Node {
	kindSym := tbl.Intern(r, kind, 0)
	kindNode, _ := p.Create(r, kindSym, nil)
	binderSym := tbl.Intern(r, symBinder, 3)
	n, _ := p.Create(r, binderSym, []*pool.Node{kindNode, varList, body})
	return n
}

// NewAbstraction constructs Binder(kind, varList, body), where kind names
// the binding operator (e.g. Lambda) and varList is a list node of bound
// variables (see pkg/pool's list shape).
func NewAbstraction(p *pool.Pool, tbl *symbol.Table, r *lock.Reader, set *protection.Set, kind string, varList, body *pool.Node) *Derived[Abstraction] {
	return wrap[Abstraction](set, buildBinder(p, tbl, r, kind, varList, body))
}

// NewForall constructs a universally-quantified Binder term.
func NewForall(p *pool.Pool, tbl *symbol.Table, r *lock.Reader, set *protection.Set, varList, body *pool.Node) *Derived[Quantifier] {
	return wrap[Quantifier](set, buildBinder(p, tbl, r, symForall, varList, body))
}

// NewExists constructs an existentially-quantified Binder term.
func NewExists(p *pool.Pool, tbl *symbol.Table, r *lock.Reader, set *protection.Set, varList, body *pool.Node) *Derived[Quantifier] {
	return wrap[Quantifier](set, buildBinder(p, tbl, r, symExists, varList, body))
}

// NewList constructs a list term from elems, in order.
func NewList(p *pool.Pool, r *lock.Reader, set *protection.Set, elems []*pool.Node) *Derived[List] {
	n := p.EmptyList(r)
	for i := len(elems) - 1; i >= 0; i-- {
		n = p.Cons(r, elems[i], n)
	}
	return wrap[List](set, n)
}

// NewInt constructs an integer term carrying value.
func NewInt(p *pool.Pool, r *lock.Reader, set *protection.Set, value uint64) *Derived[Int] {
	n, _ := p.CreateInt(r, value)
	return wrap[Int](set, n)
}
