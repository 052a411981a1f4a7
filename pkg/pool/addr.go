package pool

import "unsafe"

// uintptrOf converts a node pointer to an integer for use inside a hash-cons
// key. The integer is never converted back to a pointer and never outlives
// the node it names, so it does not defeat the garbage collector; it mirrors
// the address-as-identity trick the storage layer uses when it hashes a
// symbol by its own address (merc/crates/aterm/src/storage/symbol_pool.rs,
// SharedSymbol::index).
func uintptrOf(n *Node) uintptr {
	return uintptr(unsafe.Pointer(n))
}
