package pool

import (
	"strconv"

	"github.com/mcrl2-org/go-aterm/pkg/lock"
	"github.com/mcrl2-org/go-aterm/pkg/symbol"
)

// key is the hash-consing key for an application node: a symbol pointer plus
// its argument pointers. Two nodes with equal keys are the same node
// (invariant I1); Go's comparable-slice restriction means we build the key
// from a string of pointer values rather than using a slice directly as a
// map key.
type key struct {
	symbol *symbol.Symbol
	argsig string // packed pointer values of the arguments, order-preserving
}

// Pool is the process-wide hash-consed store of term nodes (spec.md §4.3).
// Lookups run under shared access to the guarding lock; an insertion after a
// missed lookup takes exclusive access.
type Pool struct {
	lockSet *lock.BFLock
	nodes   map[key]*Node

	intSymbol   *symbol.Symbol
	listSymbol  *symbol.Symbol
	emptySymbol *symbol.Symbol
}

// New creates an empty term pool guarded by l, with the three reserved
// symbols already interned via tbl (spec.md §3: "a small number of symbols
// are designated as built-in").
func New(l *lock.BFLock, tbl *symbol.Table, r *lock.Reader) *Pool {
	p := &Pool{
		lockSet:     l,
		nodes:       make(map[key]*Node),
		intSymbol:   tbl.InternReserved(r, "<aterm_int>", 0),
		listSymbol:  tbl.InternReserved(r, "<list_constructor>", 2),
		emptySymbol: tbl.InternReserved(r, "<empty_list>", 0),
	}
	return p
}

// IntSymbol, ListSymbol and EmptySymbol expose the reserved built-in symbols
// so pkg/aterm and pkg/dataterm can recognize and construct the int/list
// shapes without re-interning them.
func (p *Pool) IntSymbol() *symbol.Symbol   { return p.intSymbol }
func (p *Pool) ListSymbol() *symbol.Symbol  { return p.listSymbol }
func (p *Pool) EmptySymbol() *symbol.Symbol { return p.emptySymbol }

func packArgs(args []*Node) string {
	buf := make([]byte, len(args)*8)
	for i, a := range args {
		v := nodeAddr(a)
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(v >> (8 * b))
		}
	}
	return string(buf)
}

// nodeAddr is its own tiny function instead of being inlined so that the
// pointer-to-integer conversion (needed only to build a hashable key, never
// dereferenced as such) is auditable in one spot.
func nodeAddr(n *Node) uintptr { return uintptrOf(n) }

// Create looks up or inserts an application node for (sym, args). It returns
// the existing node on a hit, found under shared access; on a miss it takes
// exclusive access, looks again, and allocates a new node if still absent.
// Every arg must itself be a *Node already returned by this Pool.
func (p *Pool) Create(r *lock.Reader, sym *symbol.Symbol, args []*Node) (n *Node, inserted bool) {
	if len(args) != sym.Arity() {
		panic("pool: argument count does not match symbol arity")
	}
	debugCheckAcyclic(sym, args)

	k := key{symbol: sym, argsig: packArgs(args)}

	r.Lock()
	n, ok := p.nodes[k]
	r.Unlock()
	if ok {
		return n, false
	}

	g := p.lockSet.Lock()
	defer g.Unlock()

	if n, ok := p.nodes[k]; ok {
		return n, false
	}

	shape := ShapeApplication
	if sym == p.listSymbol || sym == p.emptySymbol {
		shape = ShapeList
	}

	n = &Node{symbol: sym, args: append([]*Node(nil), args...), shape: shape}
	p.nodes[k] = n
	return n, true
}

// CreateInt looks up or inserts the integer node carrying value.
func (p *Pool) CreateInt(r *lock.Reader, value uint64) (n *Node, inserted bool) {
	k := key{symbol: p.intSymbol, argsig: strconv.FormatUint(value, 16)}

	r.Lock()
	n, ok := p.nodes[k]
	r.Unlock()
	if ok {
		return n, false
	}

	g := p.lockSet.Lock()
	defer g.Unlock()

	if n, ok := p.nodes[k]; ok {
		return n, false
	}

	n = &Node{symbol: p.intSymbol, intVal: value, shape: ShapeInt}
	p.nodes[k] = n
	return n, true
}

// EmptyList returns the reserved empty-list constant, interning it on first
// use.
func (p *Pool) EmptyList(r *lock.Reader) *Node {
	n, _ := p.Create(r, p.emptySymbol, nil)
	return n
}

// Cons builds (or looks up) a list cell head :: tail.
func (p *Pool) Cons(r *lock.Reader, head, tail *Node) *Node {
	n, _ := p.Create(r, p.listSymbol, []*Node{head, tail})
	return n
}

// Size returns the number of nodes currently in the pool.
func (p *Pool) Size(r *lock.Reader) int {
	r.Lock()
	defer r.Unlock()
	return len(p.nodes)
}

// Capacity reports the pool's live size as a lower bound on its capacity,
// since Go maps don't expose a true bucket capacity;
// pkg/termstore's metrics treat it as advisory, matching spec.md §4.3's
// "capacity()" being a metrics-only operation.
func (p *Pool) Capacity(r *lock.Reader) int {
	return p.Size(r)
}

// Sweep removes every node for which keep returns false. It must be called
// only by the collector while holding exclusive access to the guarding lock.
func (p *Pool) Sweep(keep func(*Node) bool) (removed int) {
	for k, n := range p.nodes {
		if !keep(n) {
			delete(p.nodes, k)
			removed++
		}
	}
	return removed
}

// All returns every node currently in the pool, for use by the collector's
// mark/sweep walk and by debug-only introspection. Must be called under at
// least shared access.
func (p *Pool) All() []*Node {
	out := make([]*Node, 0, len(p.nodes))
	for _, n := range p.nodes {
		out = append(out, n)
	}
	return out
}

// Lock exposes the pool's guarding lock so pkg/termstore can register
// readers and the collector can acquire exclusive access.
func (p *Pool) Lock() *lock.BFLock { return p.lockSet }
