package lock

import "sync/atomic"

// BFVector is the append-only, indexed generalization of BFLock: readers may
// read any index without acquiring a lock at all, while writers rebuild the
// backing array under exclusive access and atomically publish it. No other
// package in this module uses it; pkg/protection and pkg/symbol keep their
// tables in plain maps.
type BFVector[T any] struct {
	lock *BFLock
	data atomic.Pointer[[]T]
}

// NewBFVector creates an empty vector guarded by a fresh BFLock.
func NewBFVector[T any]() *BFVector[T] {
	v := &BFVector[T]{lock: New()}
	empty := make([]T, 0)
	v.data.Store(&empty)
	return v
}

// Get reads the element at index without acquiring any lock; it observes
// whatever snapshot of the backing array was last published by Append or
// Rebuild.
func (v *BFVector[T]) Get(index int) T {
	s := *v.data.Load()
	return s[index]
}

// Len returns the number of elements in the last published snapshot.
func (v *BFVector[T]) Len() int {
	return len(*v.data.Load())
}

// Append adds value to the vector under this vector's own exclusive access
// and publishes a new snapshot, returning the index the value was stored at.
func (v *BFVector[T]) Append(value T) int {
	g := v.lock.Lock()
	defer g.Unlock()

	old := *v.data.Load()
	next := make([]T, len(old)+1)
	copy(next, old)
	next[len(old)] = value
	v.data.Store(&next)
	return len(old)
}

// Rebuild replaces the backing array wholesale with a copy of next, under
// exclusive access.
func (v *BFVector[T]) Rebuild(next []T) {
	g := v.lock.Lock()
	defer g.Unlock()
	cp := append([]T(nil), next...)
	v.data.Store(&cp)
}

// Snapshot returns the currently published backing slice itself, not a copy;
// callers must not modify it.
func (v *BFVector[T]) Snapshot() []T {
	return *v.data.Load()
}
