// Package pool implements the hash-consed term pool (spec component C3):
// the process-wide store of term nodes, keyed by (symbol, argument pointers)
// so that any two structurally equal terms share one node.
package pool

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/mcrl2-org/go-aterm/pkg/symbol"
)

// Shape classifies a Node the way spec.md §3 does: application, integer, or
// list. A node's shape is determined solely by its head symbol (invariant
// I3), so Shape is derived rather than stored independently once a node
// exists, but is cached for cheap dispatch.
type Shape uint8

const (
	// ShapeApplication is a symbol applied to zero or more argument nodes.
	ShapeApplication Shape = iota
	// ShapeInt is a node carrying a single uint64 payload under the
	// reserved integer symbol.
	ShapeInt
	// ShapeList is either the reserved empty-list constant or a cons node
	// built from the reserved list symbol of arity 2.
	ShapeList
)

// Node is an immutable term node. Once published into the Pool it is never
// mutated except for its mark bit, which the collector flips under exclusive
// access (spec.md §3, invariant "a node is mutated only in its mark bit").
type Node struct {
	symbol *symbol.Symbol
	args   []*Node // length == symbol.Arity(); empty for integer nodes
	intVal uint64  // valid only when shape == ShapeInt
	shape  Shape

	mark uint32 // atomic; touched only by the collector under exclusive access
	refs int32  // atomic; explicit protections directly naming this node
}

// Symbol returns the node's head symbol.
func (n *Node) Symbol() *symbol.Symbol { return n.symbol }

// Arity returns the number of arguments; for integer and empty-list nodes
// this is always their symbol's arity (0).
func (n *Node) Arity() int { return len(n.args) }

// Arg returns the argument at index i. Navigating an out-of-range index is
// an invariant violation (spec.md §7): it panics unconditionally, since a
// caller passing a bad index has already broken the arity contract this
// package publishes.
func (n *Node) Arg(i int) *Node {
	if i < 0 || i >= len(n.args) {
		panic(fmt.Sprintf("pool: argument index %d out of range [0,%d)", i, len(n.args)))
	}
	return n.args[i]
}

// Args returns the node's argument slice directly; callers must not mutate
// it, since nodes are immutable after publication.
func (n *Node) Args() []*Node { return n.args }

// Shape reports which of the three term shapes this node has.
func (n *Node) Shape() Shape { return n.shape }

// IsInt reports whether n carries an integer payload.
func (n *Node) IsInt() bool { return n.shape == ShapeInt }

// IsList reports whether n is the empty-list constant or a cons node.
func (n *Node) IsList() bool { return n.shape == ShapeList }

// IsEmptyList reports whether n is specifically the reserved empty-list
// constant, as opposed to a cons cell.
func (n *Node) IsEmptyList() bool { return n.shape == ShapeList && len(n.args) == 0 }

// AsInt returns the node's integer payload; the caller must have checked
// IsInt first (an invariant violation otherwise, matching spec.md §7).
func (n *Node) AsInt() uint64 {
	if n.shape != ShapeInt {
		panic("pool: AsInt called on a non-integer node")
	}
	return n.intVal
}

func (n *Node) String() string {
	switch n.shape {
	case ShapeInt:
		return fmt.Sprintf("%d", n.intVal)
	case ShapeList:
		if len(n.args) == 0 {
			return "[]"
		}
		var b strings.Builder
		b.WriteByte('[')
		cur := n
		first := true
		for cur.shape == ShapeList && len(cur.args) == 2 {
			if !first {
				b.WriteByte(',')
			}
			first = false
			b.WriteString(cur.args[0].String())
			cur = cur.args[1]
		}
		b.WriteByte(']')
		return b.String()
	default:
		if len(n.args) == 0 {
			return n.symbol.Name()
		}
		var b strings.Builder
		b.WriteString(n.symbol.Name())
		b.WriteByte('(')
		for i, a := range n.args {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(a.String())
		}
		b.WriteByte(')')
		return b.String()
	}
}

// MarkBit reports whether the collector has marked n as reachable during the
// current collection cycle. Only pkg/gc should call SetMarkBit; ordinary
// consumers only ever read it for diagnostics.
func (n *Node) MarkBit() bool {
	return atomic.LoadUint32(&n.mark) != 0
}

// SetMarkBit sets or clears n's mark bit. Must only be called by the
// collector while it holds exclusive access to the guarding lock
// (spec.md §4.5 step 2 and step 4).
func (n *Node) SetMarkBit(marked bool) {
	var v uint32
	if marked {
		v = 1
	}
	atomic.StoreUint32(&n.mark, v)
}

// IncRef increments n's explicit reference count, for a holder that pins n
// directly outside any protection set. OwnedTerm and BulkContainer root
// nodes through protection sets and do not call it.
func (n *Node) IncRef() {
	atomic.AddInt32(&n.refs, 1)
}

// DecRef decrements n's explicit reference count.
func (n *Node) DecRef() {
	atomic.AddInt32(&n.refs, -1)
}

// RefCount returns n's current explicit reference count (invariant I4's
// lower bound on liveness independent of the root-reachability walk).
func (n *Node) RefCount() int32 {
	return atomic.LoadInt32(&n.refs)
}
