package lock

// RecursiveReader wraps a Reader with a per-handle nesting depth so repeated
// LockRecursive calls from the same goroutine are free after the first. Only
// LockRecursive/UnlockRecursive go through the depth counter: code that calls
// Lock on the underlying Reader directly (as pkg/pool and pkg/symbol do) while
// this handle holds shared access trips the Reader's re-entry assertion.
type RecursiveReader struct {
	reader *Reader
	depth  int

	writeCalls         int
	readRecursiveCalls int
}

// NewRecursiveReader registers a new reader with l and wraps it for recursive
// shared acquisition.
func NewRecursiveReader(l *BFLock) *RecursiveReader {
	return &RecursiveReader{reader: l.NewReader()}
}

// Reader returns the underlying non-recursive reader handle, e.g. to
// unregister it from the lock at teardown.
func (rr *RecursiveReader) Reader() *Reader {
	return rr.reader
}

// LockRecursive acquires shared access, incrementing the nesting depth if the
// calling goroutine already holds it instead of re-entering the protocol.
func (rr *RecursiveReader) LockRecursive() {
	rr.readRecursiveCalls++
	if rr.depth == 0 {
		rr.reader.Lock()
	}
	rr.depth++
}

// UnlockRecursive decrements the nesting depth, releasing shared access on
// the lock only once the depth returns to zero. It reports whether shared
// access was actually released.
func (rr *RecursiveReader) UnlockRecursive() bool {
	debugAssert(rr.depth > 0, "cannot release a recursive read lock that was never acquired")
	rr.depth--
	if rr.depth == 0 {
		rr.reader.Unlock()
		return true
	}
	return false
}

// Lock acquires a non-recursive shared section; it must not be called while
// the reader already holds any recursive shared access.
func (rr *RecursiveReader) Lock() {
	debugAssert(rr.depth == 0, "cannot call Lock inside a read section")
	rr.reader.Lock()
}

// Unlock releases the section acquired by Lock.
func (rr *RecursiveReader) Unlock() {
	rr.reader.Unlock()
}

// LockExclusive acquires exclusive access on the underlying lock. It must not
// be called while the reader holds any shared access, recursive or not.
func (rr *RecursiveReader) LockExclusive(l *BFLock) *ExclusiveGuard {
	debugAssert(rr.depth == 0, "cannot call write() inside a read section")
	rr.writeCalls++
	rr.depth = 1
	g := l.Lock()
	return g
}

// UnlockExclusive must be paired with LockExclusive; it clears the depth that
// LockExclusive set so a subsequent LockRecursive call re-enters the protocol.
func (rr *RecursiveReader) UnlockExclusive(g *ExclusiveGuard) {
	g.Unlock()
	rr.depth--
}

// Depth reports the current recursive nesting depth (0 when unlocked).
func (rr *RecursiveReader) Depth() int {
	return rr.depth
}

// WriteCallCount reports how many times LockExclusive has been called,
// mirroring the diagnostic counters kept by the original recursive lock.
func (rr *RecursiveReader) WriteCallCount() int {
	return rr.writeCalls
}

// ReadRecursiveCallCount reports how many times LockRecursive has been
// called, including nested calls that only bumped the depth counter.
func (rr *RecursiveReader) ReadRecursiveCallCount() int {
	return rr.readRecursiveCalls
}
