// Package alloc defines the allocator capability every memkit container and
// allocator is built on.
//
// # Overview
//
// An Allocator is a small value wrapping one Impl. Impl has a single
// operation, Op, that dispatches on a Command:
//
//   - CmdAlloc: return size zeroed bytes aligned to align
//   - CmdFree: give a block back (arenas and the heap ignore this)
//   - CmdExtend: grow a block in place, or return nil
//   - CmdRealloc: extend or move, preserving the common prefix
//   - CmdReset: rewind an arena to a restore point
//
// Allocators are passed by value and compared with ==. The zero Allocator is
// unbound; containers bind it to Heap() on first growth.
//
// # Typed storage
//
// Make, Resize and Release size typed slices through an Allocator:
//
//	items := alloc.Make[int32](a, 64)
//	items = alloc.Resize(a, items, 128)
//	alloc.Release(a, items)
//
// Memory that does not come from Heap() is invisible to the garbage
// collector, so element types stored there must be pointer-free. Asking an
// arena or free-list allocator for a pointer-bearing type is a contract
// violation.
//
// # Failure model
//
// Programmer errors (bad alignment, size overflow, exhausted reservations)
// are fatal: they are logged and raised as a *contract.Violation panic.
//
// # Thread Safety
//
// Heap() is safe for concurrent use. Arena allocators are not; the free-list
// allocator serializes internally.
package alloc
