// Package vm reserves ranges of virtual address space and commits pages into
// them on demand.
//
// A Region is reserved once at its maximum size. Only the committed prefix
// [0, Committed()) may be touched; growing it is a page-granular Commit call.
// Pages are zero when first committed and again after Decommit.
//
// Memory handed out by a Region is not scanned by the garbage collector and
// must never hold Go pointers.
package vm

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/joshuapare/memkit/internal/sizes"
)

var (
	// ErrReserve indicates the operating system refused the address range.
	ErrReserve = errors.New("vm: reserve failed")

	// ErrCommit indicates pages inside the reservation could not be committed.
	ErrCommit = errors.New("vm: commit failed")

	// ErrExhausted indicates a commit request beyond the reserved size.
	ErrExhausted = errors.New("vm: reservation exhausted")

	// ErrReleased indicates use of a region after Release.
	ErrReleased = errors.New("vm: region released")
)

// PageSize returns the operating system page size.
func PageSize() int {
	return os.Getpagesize()
}

// Region is a reserved range of virtual memory with a committed prefix.
//
// NOT thread-safe. Owners serialize access themselves.
type Region struct {
	mem       []byte // whole reservation, as returned by reserve
	committed int
	pageSize  int
}

// Reserve reserves size bytes (rounded up to the page size) without
// committing any of them.
func Reserve(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrReserve, size)
	}
	page := PageSize()
	rounded, ok := sizes.AddOverflowSafe(size, page-1)
	if !ok {
		return nil, fmt.Errorf("%w: size %d overflows", ErrReserve, size)
	}
	rounded &^= page - 1

	mem, err := reserve(rounded)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes: %w", ErrReserve, rounded, err)
	}
	return &Region{mem: mem, pageSize: page}, nil
}

// Commit makes at least the first n bytes of the region usable.
// Requests at or below the committed size are no-ops.
func (r *Region) Commit(n int) error {
	if r.mem == nil {
		return ErrReleased
	}
	if n <= r.committed {
		return nil
	}
	if n > len(r.mem) {
		return fmt.Errorf("%w: need %d of %d bytes", ErrExhausted, n, len(r.mem))
	}
	target := min(sizes.AlignUp(n, r.pageSize), len(r.mem))
	if err := commit(r.mem[r.committed:target]); err != nil {
		return fmt.Errorf("%w: [%d,%d): %w", ErrCommit, r.committed, target, err)
	}
	r.committed = target
	return nil
}

// Decommit returns pages past the first keep bytes (rounded up to a page) to
// the operating system.
func (r *Region) Decommit(keep int) error {
	if r.mem == nil {
		return ErrReleased
	}
	keep = min(sizes.AlignUp(max(keep, 0), r.pageSize), r.committed)
	if keep == r.committed {
		return nil
	}
	if err := decommit(r.mem[keep:r.committed]); err != nil {
		return fmt.Errorf("vm: decommit [%d,%d): %w", keep, r.committed, err)
	}
	r.committed = keep
	return nil
}

// Release unmaps the whole reservation. Further calls are no-ops.
func (r *Region) Release() error {
	if r.mem == nil {
		return nil
	}
	mem := r.mem
	r.mem, r.committed = nil, 0
	return release(mem)
}

// Bytes returns the committed prefix of the region.
func (r *Region) Bytes() []byte {
	return r.mem[:r.committed:r.committed]
}

// Committed returns the number of usable bytes.
func (r *Region) Committed() int { return r.committed }

// Reserved returns the size of the reservation.
func (r *Region) Reserved() int { return len(r.mem) }

// PageSize returns the commit granularity of the region.
func (r *Region) PageSize() int { return r.pageSize }

// Released reports whether Release has been called.
func (r *Region) Released() bool { return r.mem == nil }

// Base returns the address of the first byte of the reservation.
func (r *Region) Base() uintptr {
	if len(r.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(r.mem)))
}

// Offset returns the offset of b's first byte inside the committed prefix.
func (r *Region) Offset(b []byte) (int, bool) {
	if len(b) == 0 || r.mem == nil {
		return 0, false
	}
	p := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	base := r.Base()
	if p < base || p >= base+uintptr(r.committed) {
		return 0, false
	}
	return int(p - base), true
}
