// Package array provides Array, a growable sequence whose storage comes from
// an alloc.Allocator.
//
// Capacity grows by amortized doubling: Grow(k) resizes to
// max(Len()+k, Cap()*2) and is a no-op when k more elements already fit.
// Growth may move the storage, so slices and pointers obtained from At, Ptr,
// Slice or Items are invalid after any operation that grows the array.
//
// Out of range indexes and invalid ranges are fatal contract violations.
// An empty array reports absence through Tail returning nil.
//
// The sort functions permute a key slice and any number of parallel
// sequences with the same swaps, so keys and values stay paired:
//
//	keys := array.From(a, 3, 1, 2)
//	vals := array.From(alloc.Heap(), "c", "a", "b")
//	array.Quicksort(keys.Items(), vals)
package array
