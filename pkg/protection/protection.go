// Package protection implements per-thread protection sets (spec component
// C4): the root registries that keep a thread's live terms visible to the
// collector without any cross-thread synchronization on the common path.
package protection

import (
	"sync"
	"sync/atomic"

	"github.com/mcrl2-org/go-aterm/pkg/lock"
	"github.com/mcrl2-org/go-aterm/pkg/pool"
)

// HandleID names one entry in a Set's strong root map. It is meaningful only
// within the Set that issued it.
type HandleID uint64

var nextHandleID uint64

func newHandleID() HandleID {
	return HandleID(atomic.AddUint64(&nextHandleID, 1))
}

// ContainerToken names a registered container callback so it can be
// unregistered later, mirroring the constraint-reference release pattern
// (each registration gets an id, release is a map delete keyed by that id).
type ContainerToken uint64

// Callback enumerates the roots a bulk-protected container currently holds.
// It is invoked by the collector while the owning thread is forbidden and
// quiet, so it may read the container's internal state without its own
// synchronization.
type Callback func() []*pool.Node

// Set is one thread's protection set, P_t in the design: a strong root map,
// a scoped stack, and a registry of container callbacks, plus a back
// pointer to the thread's reader handle on the pool's guarding lock.
//
// A handle's creation or destruction touches only the Set of the thread that
// owns it; the collector observes every Set only while holding exclusive
// access on the guarding lock, which is what makes that access race-free
// without a per-Set mutex of its own.
type Set struct {
	reader *lock.Reader

	strong map[HandleID]*pool.Node
	scoped []*pool.Node

	containers    map[ContainerToken]Callback
	nextContainer uint64
}

// NewSet creates an empty protection set backed by reader, the thread's
// registered handle on the pool's guarding lock.
func NewSet(reader *lock.Reader) *Set {
	return &Set{
		reader:     reader,
		strong:     make(map[HandleID]*pool.Node),
		containers: make(map[ContainerToken]Callback),
	}
}

// Reader returns the thread's reader handle on the pool's guarding lock.
func (s *Set) Reader() *lock.Reader { return s.reader }

// AddStrong roots n as an explicit, independently released entry and
// returns the id needed to remove it again (OwnedTerm's backing store).
func (s *Set) AddStrong(n *pool.Node) HandleID {
	id := newHandleID()
	s.strong[id] = n
	return id
}

// RemoveStrong drops the strong root named by id. Removing an id twice, or
// one this Set never issued, is a caller error and is a no-op here — the
// caller (OwnedTerm.Drop) is responsible for calling this exactly once.
func (s *Set) RemoveStrong(id HandleID) {
	delete(s.strong, id)
}

// Alive reports whether id still names a live strong root. HandleIDs are
// never reused (newHandleID only ever counts up), so this is sufficient to
// tell a borrow taken from a still-rooted handle apart from one taken from a
// handle that has since been dropped — the debug-mode check backing
// pkg/aterm's stale-borrow detection.
func (s *Set) Alive(id HandleID) bool {
	_, ok := s.strong[id]
	return ok
}

// PushScoped pushes a scoped root, released in LIFO order by PopScoped. This
// backs stack-discipline term acquisition, the same shape as the region
// hierarchy's enter/exit discipline it is grounded on.
func (s *Set) PushScoped(n *pool.Node) {
	s.scoped = append(s.scoped, n)
}

// PopScoped releases the most recently pushed scoped root. Calling it on an
// empty stack is a caller error and panics, matching the region context's
// refusal to exit past its root.
func (s *Set) PopScoped() *pool.Node {
	if len(s.scoped) == 0 {
		panic("protection: PopScoped called on an empty scoped stack")
	}
	n := s.scoped[len(s.scoped)-1]
	s.scoped[len(s.scoped)-1] = nil
	s.scoped = s.scoped[:len(s.scoped)-1]
	return n
}

// ScopedDepth reports how many scoped roots are currently held, mainly for
// tests and diagnostics.
func (s *Set) ScopedDepth() int { return len(s.scoped) }

// RegisterContainer adds cb to the set of callbacks invoked during marking
// and returns a token that later unregisters it.
func (s *Set) RegisterContainer(cb Callback) ContainerToken {
	s.nextContainer++
	tok := ContainerToken(s.nextContainer)
	s.containers[tok] = cb
	return tok
}

// UnregisterContainer removes a previously registered callback.
func (s *Set) UnregisterContainer(tok ContainerToken) {
	delete(s.containers, tok)
}

// AppendRoots appends every root currently held by this Set (strong,
// scoped, and every container callback's roots) onto stack, and returns the
// extended slice. Called by the collector only while holding exclusive
// access on the guarding lock (spec.md §4.5 step 3).
func (s *Set) AppendRoots(stack []*pool.Node) []*pool.Node {
	for _, n := range s.strong {
		stack = append(stack, n)
	}
	stack = append(stack, s.scoped...)
	for _, cb := range s.containers {
		stack = append(stack, cb()...)
	}
	return stack
}

// Registry tracks every thread's protection set. pkg/termstore owns the one
// process-wide instance and registers a Set for each worker thread before it
// touches the pool, matching spec.md §5's "each worker thread registers
// once with C1 and C4 before touching the pool."
type Registry struct {
	mu   sync.Mutex
	sets map[*Set]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[*Set]struct{})}
}

// Register adds set to the registry. Must be called by the owning thread
// before it performs any pool operation.
func (reg *Registry) Register(set *Set) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.sets[set] = struct{}{}
}

// Unregister removes set from the registry at thread teardown.
func (reg *Registry) Unregister(set *Set) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.sets, set)
}

// All returns every registered Set. The collector calls this only while
// holding exclusive access on the guarding lock, at which point every
// thread is forbidden and quiet and cannot register or unregister
// concurrently (spec.md §4.4's non-mutation guarantee).
func (reg *Registry) All() []*Set {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Set, 0, len(reg.sets))
	for s := range reg.sets {
		out = append(out, s)
	}
	return out
}

// Len reports how many threads are currently registered.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.sets)
}
