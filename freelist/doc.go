// Package freelist implements a general purpose allocator over a reserved
// virtual address range.
//
// # Overview
//
// The allocator reserves its maximum size once and commits pages lazily.
// Committed memory is tiled by blocks; every block starts with a signed size
// header (negative = allocated, positive = free):
//
//	allocated: [size<0][ ... pad ... ][back][payload ............]
//	free:      [size>0][back][next][prev][ ......................]
//
// back is the distance from the block start to the payload and sits right
// before the payload, so Free can find the header for any alignment. A freed
// block keeps its back word, and the header sign then catches a double free.
//
// Free blocks form one doubly linked list ordered by address. Allocation is
// first fit and splits blocks whose remainder can hold a minimum block. When
// nothing fits, more pages are committed and appended as a free block.
//
// # Coalescing
//
// Free merges the released block with the free blocks directly before and
// after it, so the list never holds two adjacent free blocks.
//
// # Thread Safety
//
// All operations take the allocator's mutex. Blocks may be allocated on one
// goroutine and freed on another.
package freelist
