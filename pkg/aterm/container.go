package aterm

import (
	"sync"

	"github.com/mcrl2-org/go-aterm/pkg/pool"
	"github.com/mcrl2-org/go-aterm/pkg/protection"
)

// BulkContainer is a bulk-protected container: it registers a single
// callback in a protection set and internally stores raw node pointers,
// amortizing one root's cost across every node it holds (spec.md §4.6). It
// is the aterm-domain specialization of the container-callback registry
// protection sets define, the way gavlooth-purple_go/pkg/memory/region.go's
// RegionContext specializes generic scope machinery per consumer rather
// than exposing a bare callback slot to every caller.
type BulkContainer struct {
	set   *protection.Set
	token protection.ContainerToken

	mu    sync.Mutex
	nodes []*pool.Node
}

// NewBulkContainer creates an empty container rooted through set.
func NewBulkContainer(set *protection.Set) *BulkContainer {
	c := &BulkContainer{set: set}
	c.token = set.RegisterContainer(c.roots)
	return c
}

// roots is the callback invoked by the collector during marking. It is only
// ever called while the owning thread is forbidden and quiet on the
// guarding lock, so no other goroutine can be inside Add/Get concurrently;
// the mutex guards against the owning thread itself mutating the container
// from a second goroutine, which the design does not forbid.
func (c *BulkContainer) roots() []*pool.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*pool.Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}

// Add appends a node to the container. The node must already be a
// published pool node (e.g. from OwnedTerm.Node or TermRef.Node); Add does
// not itself create or intern anything.
func (c *BulkContainer) Add(n *pool.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = append(c.nodes, n)
}

// Get returns the node at index i.
func (c *BulkContainer) Get(i int) *pool.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodes[i]
}

// Len reports how many nodes the container currently holds.
func (c *BulkContainer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// Ref returns a borrowed handle to the node at index i, valid for as long as
// the container itself remains alive.
func (c *BulkContainer) Ref(i int) TermRef {
	return RefOf(c.Get(i))
}

// Close unregisters the container's callback. After Close, nodes held only
// by this container are no longer protected against collection.
func (c *BulkContainer) Close() {
	c.set.UnregisterContainer(c.token)
}
