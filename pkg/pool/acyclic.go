package pool

import "github.com/mcrl2-org/go-aterm/pkg/symbol"

// Debug controls whether debug-only invariant checks run. Set false to mimic
// a release build; the checks are skipped entirely rather than downgraded,
// matching spec.md §7's release-build "undefined behavior at the call site"
// stance for invariant violations.
var Debug = true

// debugCheckAcyclic asserts invariant I2 (the argument relation is a DAG)
// before a new application node is published. Because Create only ever
// receives args that are themselves already-published *Node values, a cycle
// can only be introduced by a caller that fabricates a *Node outside the
// pool's own Create/CreateInt path; this walk is a DFS with an on-stack set,
// the same shape used for cycle detection over object graphs (grounded on
// the Tarjan-style on-stack bookkeeping in gavlooth-purple_go's
// memory/scc.go).
func debugCheckAcyclic(sym *symbol.Symbol, args []*Node) {
	if !Debug {
		return
	}
	onStack := make(map[*Node]bool, len(args))
	for _, a := range args {
		if a == nil {
			panic("pool: nil argument passed to Create")
		}
		if walkHasCycle(a, onStack) {
			panic("pool: argument graph contains a cycle, violating invariant I2")
		}
	}
	_ = sym
}

func walkHasCycle(n *Node, onStack map[*Node]bool) bool {
	if onStack[n] {
		return true
	}
	if len(n.args) == 0 {
		return false
	}
	onStack[n] = true
	for _, a := range n.args {
		if walkHasCycle(a, onStack) {
			return true
		}
	}
	delete(onStack, n)
	return false
}
