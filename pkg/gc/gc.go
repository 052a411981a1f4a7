// Package gc implements the stop-the-world mark/sweep collector (spec
// component C5) that reclaims term-pool nodes no thread can reach.
package gc

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcrl2-org/go-aterm/pkg/lock"
	"github.com/mcrl2-org/go-aterm/pkg/pool"
	"github.com/mcrl2-org/go-aterm/pkg/protection"
)

// Stats accumulates collector activity across the process lifetime, the
// same shape as gavlooth-purple_go's running-totals structs for its own
// memory disciplines (memory/symmetric.go's SymmetricStats), specialized to
// what a mark/sweep pass over a term pool actually produces.
type Stats struct {
	Collections  int64
	NodesMarked  int64
	NodesSwept   int64
	LastDuration time.Duration
}

// Collector runs stop-the-world mark/sweep over a term pool, coordinated
// through the pool's guarding lock: the collector is the lock's sole writer.
type Collector struct {
	lockSet  *lock.BFLock
	pool     *pool.Pool
	registry *protection.Registry

	automatic     atomic.Bool
	loadThreshold atomic.Int64 // node count above which a background trigger fires
	markDepth     atomic.Int64 // 0 means unbounded

	mu    sync.Mutex
	stats Stats
}

// New creates a collector guarding pool through l and walking every thread
// registered in registry. Automatic collection starts disabled; callers
// (pkg/termstore) enable it once the pool is initialized.
func New(l *lock.BFLock, p *pool.Pool, registry *protection.Registry) *Collector {
	c := &Collector{lockSet: l, pool: p, registry: registry}
	c.loadThreshold.Store(1 << 20) // generous default, overridden by config
	return c
}

// SetAutomatic enables or disables background collection triggers (spec.md
// §4.5: "Automatic collection can be globally disabled").
func (c *Collector) SetAutomatic(enabled bool) { c.automatic.Store(enabled) }

// Automatic reports whether background collection is currently enabled.
func (c *Collector) Automatic() bool { return c.automatic.Load() }

// SetLoadFactorThreshold sets the pool size above which ShouldCollect
// recommends a collection.
func (c *Collector) SetLoadFactorThreshold(nodes int64) {
	c.loadThreshold.Store(nodes)
}

// SetMarkDepthLimit bounds the size of the mark stack, guarding against a
// pathologically deep argument graph the same way spec.md §6's
// MARK_DEPTH_LIMIT environment variable is meant to; a limit of 0 means
// unbounded. Exceeding the limit is an invariant violation and panics
// (spec.md §7's fatal-error class), since the algorithm's explicit stack
// stands in for what would otherwise be call-stack recursion depth.
func (c *Collector) SetMarkDepthLimit(limit int) {
	c.markDepth.Store(int64(limit))
}

// ShouldCollect reports whether the pool has grown past the configured
// threshold and automatic collection is enabled; pkg/termstore's background
// policy calls this on each tick.
func (c *Collector) ShouldCollect(currentSize int) bool {
	return c.automatic.Load() && int64(currentSize) >= c.loadThreshold.Load()
}

// Stats returns a snapshot of the collector's running totals.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// CollectNow runs one full mark/sweep pass, following spec.md §4.5's
// algorithm exactly: acquire exclusive access, clear marks, push every
// thread's roots plus every externally-referenced node, mark transitively,
// sweep the unmarked remainder, release.
func (c *Collector) CollectNow() Stats {
	guard := c.lockSet.Lock()
	defer guard.Unlock()

	start := time.Now()
	nodes := c.pool.All()

	for _, n := range nodes {
		n.SetMarkBit(false)
	}

	var stack []*pool.Node
	for _, set := range c.registry.All() {
		stack = set.AppendRoots(stack)
	}
	// A node with a non-zero explicit reference count is reachable even if
	// no thread currently holds it in a protection set (spec.md §4.5's edge
	// case for opaque external holders such as bulk-protected containers
	// that have not yet registered a callback, or handles mid-construction).
	for _, n := range nodes {
		if n.RefCount() > 0 {
			stack = append(stack, n)
		}
	}

	limit := c.markDepth.Load()
	marked := int64(0)
	for len(stack) > 0 {
		if limit > 0 && int64(len(stack)) > limit {
			panic("gc: mark stack exceeded MARK_DEPTH_LIMIT")
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.MarkBit() {
			continue
		}
		n.SetMarkBit(true)
		marked++
		for _, a := range n.Args() {
			if !a.MarkBit() {
				stack = append(stack, a)
			}
		}
	}

	removed := c.pool.Sweep(func(n *pool.Node) bool { return n.MarkBit() })

	c.mu.Lock()
	c.stats.Collections++
	c.stats.NodesMarked += marked
	c.stats.NodesSwept += int64(removed)
	c.stats.LastDuration = time.Since(start)
	snapshot := c.stats
	c.mu.Unlock()

	return snapshot
}
