// Package symbol implements the function-symbol table (spec component C2):
// a process-wide, reference-counted set of (name, arity) pairs. Symbols are
// interned so that identity reduces to a pointer comparison, and reserved
// built-in symbols (used by the integer and list term shapes) are pinned for
// the lifetime of the process.
package symbol

import (
	"fmt"
	"sync/atomic"

	"github.com/mcrl2-org/go-aterm/pkg/lock"
)

// Symbol is an interned (name, arity) pair. Its address is its identity: two
// Symbols compare equal (via ==) iff they were interned from the same
// (name, arity).
type Symbol struct {
	name  string
	arity int
	refs  atomic.Int64
}

// Name returns the symbol's name.
func (s *Symbol) Name() string { return s.name }

// Arity returns the symbol's arity; zero means the symbol denotes a constant.
func (s *Symbol) Arity() int { return s.arity }

// RefCount returns the current explicit reference count, mostly useful for
// diagnostics and tests.
func (s *Symbol) RefCount() int64 { return s.refs.Load() }

func (s *Symbol) String() string { return fmt.Sprintf("%s/%d", s.name, s.arity) }

type key struct {
	name  string
	arity int
}

// Table is the process-wide symbol table. Reads (lookups) run under shared
// access to the guarding lock; insertions upgrade to exclusive access, per
// spec.md §4.2.
type Table struct {
	lockSet *lock.BFLock
	entries map[key]*Symbol
}

// NewTable creates an empty symbol table guarded by its own busy-forbidden
// lock. Most consumers should not call this directly; pkg/termstore owns the
// single process-wide instance and shares one lock between the symbol table
// and the term pool via NewTableWithLock.
func NewTable() *Table {
	return &Table{lockSet: lock.New(), entries: make(map[key]*Symbol)}
}

// NewTableWithLock lets pkg/termstore share a single BFLock across the
// symbol table and the term pool, since both are protected by the same
// readers-writer discipline in the original design.
func NewTableWithLock(l *lock.BFLock) *Table {
	return &Table{lockSet: l, entries: make(map[key]*Symbol)}
}

// Guard exposes the table's lock so pkg/termstore can register per-thread
// readers against it as part of a single combined registration step.
func (t *Table) Guard() *lock.BFLock { return t.lockSet }

// Intern returns the unique Symbol for (name, arity), creating it if this is
// the first request for that pair, and increments its reference count.
func (t *Table) Intern(r *lock.Reader, name string, arity int) *Symbol {
	k := key{name, arity}

	r.Lock()
	sym, ok := t.entries[k]
	r.Unlock()

	if ok {
		sym.refs.Add(1)
		return sym
	}

	g := t.lockSet.Lock()
	defer g.Unlock()

	// Another writer may have inserted the same key while we waited.
	if sym, ok := t.entries[k]; ok {
		sym.refs.Add(1)
		return sym
	}

	sym = &Symbol{name: name, arity: arity}
	sym.refs.Store(1)
	t.entries[k] = sym
	return sym
}

// InternReserved interns a symbol without it ever being eligible for
// removal by Drop; used at pool initialization for the built-in empty-list,
// cons, and integer symbols.
func (t *Table) InternReserved(r *lock.Reader, name string, arity int) *Symbol {
	sym := t.Intern(r, name, arity)
	sym.refs.Add(1 << 32) // an effectively-permanent extra reference
	return sym
}

// Drop decrements sym's reference count; when it reaches zero the entry is
// removed from the table under exclusive access.
func (t *Table) Drop(sym *Symbol) {
	if sym.refs.Add(-1) > 0 {
		return
	}

	g := t.lockSet.Lock()
	defer g.Unlock()

	if sym.refs.Load() != 0 {
		// A concurrent Intern raced us back to life between the atomic
		// decrement above and acquiring exclusive access.
		return
	}

	k := key{sym.name, sym.arity}
	if cur, ok := t.entries[k]; ok && cur == sym {
		delete(t.entries, k)
	}
}

// Len returns the number of interned symbols; callers should hold at least
// shared access on the table's guarding lock for a consistent read.
func (t *Table) Len(r *lock.Reader) int {
	r.Lock()
	defer r.Unlock()
	return len(t.entries)
}

// Lookup returns the symbol for (name, arity) without interning it, or nil.
func (t *Table) Lookup(r *lock.Reader, name string, arity int) *Symbol {
	r.Lock()
	defer r.Unlock()
	return t.entries[key{name, arity}]
}
