// Package lock implements the busy-forbidden readers-writer protocol used to
// guard the shared term store. It is optimized for the case where reads vastly
// outnumber writes and where a reader's fast path never touches a cache line
// shared with any other reader.
package lock

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// BFLock is a busy-forbidden readers-writer lock. Readers must register with
// NewReader before their first acquisition; the lock keeps a fixed-order list
// of every registered reader so that an exclusive acquirer can forbid and then
// wait on each of them in turn.
type BFLock struct {
	mu      sync.Mutex // guards readers only; never held across a spin-wait
	readers []*Reader
}

// Reader is a per-goroutine registration handle. Its busy/forbidden flags live
// on their own cache line-sized allocation so that one reader's fast path
// never bounces another reader's cache line.
type Reader struct {
	lock      *BFLock
	index     int
	busy      atomic.Bool
	forbidden atomic.Bool
	_         [48]byte // pad Reader past a typical 64-byte cache line
}

// New creates an unlocked busy-forbidden lock with no registered readers.
func New() *BFLock {
	return &BFLock{}
}

// NewReader registers a new reader with the lock and returns its handle. The
// handle must be used from a single goroutine at a time; unregister it with
// Unregister at goroutine teardown.
func (l *BFLock) NewReader() *Reader {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := &Reader{lock: l, index: len(l.readers)}
	l.readers = append(l.readers, r)
	return r
}

// Unregister removes a reader from the lock's fixed-order list. The reader
// must not hold shared access at the time of the call.
func (l *BFLock) Unregister(r *Reader) {
	l.mu.Lock()
	defer l.mu.Unlock()

	debugAssert(!r.busy.Load(), "cannot unregister a reader that is still busy")
	l.readers[r.index] = nil
}

// Lock acquires shared (read) access for r. Multiple calls from the same
// reader nest correctly only through RecursiveReader.LockRecursive; a plain reader
// must not call Lock again before Unlock.
func (r *Reader) Lock() {
	debugAssert(!r.busy.Load(), "cannot acquire read access again inside a reader section")

	for {
		r.busy.Store(true)
		if !r.forbidden.Load() {
			return
		}

		// A writer has set forbidden; step out of its way and wait for it to
		// finish before retrying, so the writer never spins forever on us.
		r.busy.Store(false)
		r.lock.waitForWriter()
	}
}

// Unlock releases shared access. It reports whether the reader is now fully
// out of its critical section (always true for a plain Reader;
// RecursiveReader.UnlockRecursive reports this according to nesting depth).
func (r *Reader) Unlock() bool {
	debugAssert(r.busy.Load(), "cannot release read access that was never acquired")
	r.busy.Store(false)
	return true
}

// waitForWriter blocks briefly while any writer holds the readers list mutex,
// which is only held for the duration of an exclusive section plus the spin
// that drains busy readers.
func (l *BFLock) waitForWriter() {
	l.mu.Lock()
	//nolint:staticcheck // intentionally empty: waiting for the writer's mutex to become available is the synchronization.
	l.mu.Unlock()
}

// ExclusiveGuard represents held exclusive access; release it with Unlock.
type ExclusiveGuard struct {
	lock     *BFLock
	forbidOn []*Reader
}

// Lock acquires exclusive (write) access. Every currently registered reader
// is forbidden in registration order to avoid convoys, then the writer spins
// until each one reports it is no longer busy.
func (l *BFLock) Lock() *ExclusiveGuard {
	l.mu.Lock()

	forbidOn := make([]*Reader, 0, len(l.readers))
	for _, r := range l.readers {
		if r == nil {
			continue
		}
		debugAssert(!r.forbidden.Load(), "reader is already forbidden by another writer")
		r.forbidden.Store(true)
		forbidOn = append(forbidOn, r)
	}

	for _, r := range forbidOn {
		for r.busy.Load() {
			// Busy-spin: the writer is expected to be rare and the wait is
			// bounded by whatever pool operation the reader is mid-flight on.
		}
	}

	return &ExclusiveGuard{lock: l, forbidOn: forbidOn}
}

// Unlock releases exclusive access, clearing forbidden on every reader that
// was forbidden by the matching Lock call and unblocking anyone spinning on
// waitForWriter.
func (g *ExclusiveGuard) Unlock() {
	for _, r := range g.forbidOn {
		r.forbidden.Store(false)
	}
	g.lock.mu.Unlock()
}

// IsLocked reports whether this reader currently holds shared access.
func (r *Reader) IsLocked() bool {
	return r.busy.Load()
}

// IsForbidden reports whether a writer currently forbids this reader from
// acquiring shared access.
func (r *Reader) IsForbidden() bool {
	return r.forbidden.Load()
}

// Debug controls whether debugAssert panics (true, the default for tests) or
// is a no-op (set false to mimic a release build, per spec.md §7).
var Debug = true

func debugAssert(cond bool, format string, args ...any) {
	if Debug && !cond {
		panic(fmt.Sprintf("lock: invariant violation: "+format, args...))
	}
}
