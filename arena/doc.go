// Package arena implements bump allocation over reserved virtual memory and
// the scratch arena pool built on top of it.
//
// # Arenas
//
// An Arena reserves its maximum size up front and commits pages as the
// cursor advances. Allocation rounds the cursor up to the requested alignment
// and bumps it; nothing is freed individually. Mark captures the cursor and
// Reset rewinds to it in O(1):
//
//	a, err := arena.New(arena.Options{Reserve: 256 << 20})
//	if err != nil {
//	    return err
//	}
//	defer a.Release()
//
//	mark := a.Mark()
//	buf := a.Alloc(4096, 64)
//	// ... use buf ...
//	a.Reset(mark) // buf is now invalid
//
// Exceeding the reservation is a fatal contract violation.
//
// # Scratch arenas
//
// A Pool owns PoolSize arenas and hands them out with stack discipline. Each
// goroutine that needs temporaries owns its own Pool and passes it
// explicitly:
//
//	s := pool.Acquire(out) // never hand out the arena backing out
//	defer s.Release()
//	tmp := alloc.Make[int32](s.Allocator(), n)
//
// Release rewinds the arena to the point captured by Acquire. Scratches
// must be released in reverse acquisition order, and acquiring more than
// PoolSize at once is fatal.
//
// # Thread Safety
//
// Neither Arena nor Pool is safe for concurrent use.
package arena
