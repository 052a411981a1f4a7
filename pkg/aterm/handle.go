// Package aterm implements the public handle surface (spec component C6):
// owned and borrowed references to pool nodes, plus the bulk-protected
// container that amortizes rooting cost across many terms at once.
package aterm

import (
	"github.com/mcrl2-org/go-aterm/pkg/pool"
	"github.com/mcrl2-org/go-aterm/pkg/protection"
	"github.com/mcrl2-org/go-aterm/pkg/symbol"
)

// Debug controls whether handle-level invariant checks run; false mimics a
// release build and skips them entirely (spec.md §7).
var Debug = true

func debugAssert(cond bool, msg string) {
	if Debug && !cond {
		panic("aterm: " + msg)
	}
}

// OwnedTerm is a strong handle: a node pointer plus one entry in its owning
// thread's protection set. Clone adds a new entry; Drop removes it. Equality
// is pointer equality on the underlying node (spec.md §4.6).
type OwnedTerm struct {
	node *pool.Node
	set  *protection.Set
	id   protection.HandleID
	live bool
}

// NewOwned roots node in set and returns a strong handle to it.
func NewOwned(set *protection.Set, node *pool.Node) *OwnedTerm {
	debugAssert(node != nil, "NewOwned called with a nil node")
	return &OwnedTerm{node: node, set: set, id: set.AddStrong(node), live: true}
}

// Node returns the underlying node pointer. Callers must not retain it past
// the OwnedTerm's Drop.
func (o *OwnedTerm) Node() *pool.Node {
	debugAssert(o.live, "Node called on a dropped OwnedTerm")
	return o.node
}

// Clone roots the same node again with a new, independently dropped entry.
func (o *OwnedTerm) Clone() *OwnedTerm {
	debugAssert(o.live, "Clone called on a dropped OwnedTerm")
	return NewOwned(o.set, o.node)
}

// Drop releases this handle's entry in its owning protection set. Calling
// Drop twice on the same handle is a caller error, guarded in debug builds.
func (o *OwnedTerm) Drop() {
	debugAssert(o.live, "Drop called twice on the same OwnedTerm")
	if !o.live {
		return
	}
	o.set.RemoveStrong(o.id)
	o.live = false
}

// Equal reports whether two owned terms name the same node.
func (o *OwnedTerm) Equal(other *OwnedTerm) bool {
	if other == nil {
		return false
	}
	return o.node == other.node
}

// Ref produces a borrowed handle from this strong handle. Creating a
// TermRef never touches the protection set (spec.md §4.6); it does capture
// enough to check, later and only in debug builds, that the root backing it
// is still alive.
func (o *OwnedTerm) Ref() TermRef {
	debugAssert(o.live, "Ref called on a dropped OwnedTerm")
	return TermRef{node: o.node, set: o.set, id: o.id}
}

// Symbol, Arity, Arg, Args, String, IsInt, AsInt, IsList and IsEmptyList
// delegate straight to the underlying node; navigation never needs the
// guarding lock because nodes are immutable once published (spec.md §4.3).
func (o *OwnedTerm) Symbol() *symbol.Symbol { return o.node.Symbol() }
func (o *OwnedTerm) Arity() int             { return o.node.Arity() }
func (o *OwnedTerm) Arg(i int) *pool.Node   { return o.node.Arg(i) }
func (o *OwnedTerm) Args() []*pool.Node     { return o.node.Args() }
func (o *OwnedTerm) String() string         { return o.node.String() }
func (o *OwnedTerm) IsInt() bool            { return o.node.IsInt() }
func (o *OwnedTerm) AsInt() uint64          { return o.node.AsInt() }
func (o *OwnedTerm) IsList() bool           { return o.node.IsList() }
func (o *OwnedTerm) IsEmptyList() bool      { return o.node.IsEmptyList() }

// TermRef is a borrowed handle: a bare node pointer whose validity is tied
// to some strong handle or protected container remaining alive for at least
// as long as the TermRef is used. Go has no compile-time lifetimes, so this
// contract is documentation plus the debug assertions below — the same
// trade-off borrow analysis in a linear type system makes explicit at the
// type level but Go can only check dynamically.
//
// A TermRef produced by RefOf carries no root of its own (set and id are
// left zero); it is for callers that already hold some other live root for
// node's lifetime and are not borrowing from a specific OwnedTerm. A TermRef
// produced by OwnedTerm.Ref captures the root's HandleID, so a stale
// dereference — one made after that root was dropped — is caught by
// checkLive instead of silently reading a node the collector may have swept
// (spec.md §8's dangling-borrow-without-a-root precondition).
type TermRef struct {
	node *pool.Node
	set  *protection.Set
	id   protection.HandleID
}

// RefOf wraps a raw node pointer directly, for callers (pkg/dataterm,
// BulkContainer.Ref) that already hold a live node and do not need a fresh
// strong root.
func RefOf(node *pool.Node) TermRef {
	return TermRef{node: node}
}

// checkLive panics, in debug builds, if this TermRef was taken from a strong
// root that has since been dropped. A TermRef with no captured root (id
// zero, from RefOf) has nothing to check and always passes.
func (t TermRef) checkLive() {
	if t.id == 0 {
		return
	}
	debugAssert(t.set.Alive(t.id), "TermRef used after its root was dropped")
}

// Node returns the underlying node pointer.
func (t TermRef) Node() *pool.Node { t.checkLive(); return t.node }

func (t TermRef) Symbol() *symbol.Symbol { t.checkLive(); return t.node.Symbol() }
func (t TermRef) Arity() int             { t.checkLive(); return t.node.Arity() }
func (t TermRef) Arg(i int) *pool.Node   { t.checkLive(); return t.node.Arg(i) }
func (t TermRef) Args() []*pool.Node     { t.checkLive(); return t.node.Args() }
func (t TermRef) String() string         { t.checkLive(); return t.node.String() }
func (t TermRef) IsInt() bool            { t.checkLive(); return t.node.IsInt() }
func (t TermRef) AsInt() uint64          { t.checkLive(); return t.node.AsInt() }
func (t TermRef) IsList() bool           { t.checkLive(); return t.node.IsList() }
func (t TermRef) IsEmptyList() bool      { t.checkLive(); return t.node.IsEmptyList() }

// ToOwned is the cheap-return wrapper: it upgrades a borrow into a strong
// handle rooted in set, performing exactly one protection-set insertion
// (spec.md §4.6).
func (t TermRef) ToOwned(set *protection.Set) *OwnedTerm {
	t.checkLive()
	return NewOwned(set, t.node)
}

// Transfer moves ownership of an OwnedTerm from its current thread to
// target, per the cross-thread move rule this design settled on: reference
// counts are never touched, only protection-set membership moves. The
// source handle is consumed (its own Drop must not be called afterwards);
// this is the local counterpart of a channel send moving a value out of the
// sender's scope rather than copying it.
func Transfer(o *OwnedTerm, target *protection.Set) *OwnedTerm {
	debugAssert(o.live, "Transfer called on a dropped OwnedTerm")
	o.set.RemoveStrong(o.id)
	o.live = false
	return NewOwned(target, o.node)
}
