package arena

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/dustin/go-humanize"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/internal/contract"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/internal/sizes"
	"github.com/joshuapare/memkit/internal/vm"
)

const (
	// DefaultReserve is the address space reserved when Options.Reserve is 0.
	DefaultReserve = 64 << 20

	// DefaultCommitStep is the commit granularity when Options.CommitStep is 0.
	DefaultCommitStep = 64 << 10
)

// Options configures New. Zero fields take the defaults above.
type Options struct {
	Reserve    int    // Maximum arena size in bytes
	CommitStep int    // Bytes committed per growth step, rounded to the page size
	Name       string // Label used in logs and Stats
}

// Stats is a snapshot of arena usage.
type Stats struct {
	Name      string
	Used      int   // Current cursor
	Peak      int   // Highest cursor since creation
	Committed int   // Bytes currently backed by memory
	Reserved  int   // Maximum size
	Allocs    int64 // Alloc calls, including those made by Realloc
	Resets    int64
}

func (s Stats) String() string {
	return fmt.Sprintf("%s: used=%s peak=%s committed=%s reserved=%s allocs=%d resets=%d",
		s.Name,
		humanize.IBytes(uint64(s.Used)),
		humanize.IBytes(uint64(s.Peak)),
		humanize.IBytes(uint64(s.Committed)),
		humanize.IBytes(uint64(s.Reserved)),
		s.Allocs, s.Resets)
}

// Arena is a bump allocator. Not goroutine-safe.
type Arena struct {
	name   string
	region *vm.Region // nil when backed by a caller buffer
	mem    []byte     // usable prefix; grows with commits
	base   uintptr
	limit  int // reserved size
	step   int

	off  int // cursor
	last int // start of the most recent allocation, -1 if none
	peak int

	allocs int64
	resets int64

	released bool
}

// New reserves an arena. Only the reservation can fail; later growth failures
// are fatal.
func New(opts Options) (*Arena, error) {
	if opts.Reserve <= 0 {
		opts.Reserve = DefaultReserve
	}
	if opts.CommitStep <= 0 {
		opts.CommitStep = DefaultCommitStep
	}
	if opts.Name == "" {
		opts.Name = "arena"
	}

	region, err := vm.Reserve(opts.Reserve)
	if err != nil {
		return nil, fmt.Errorf("arena %s: %w", opts.Name, err)
	}

	return &Arena{
		name:   opts.Name,
		region: region,
		base:   region.Base(),
		limit:  region.Reserved(),
		step:   sizes.AlignUp(opts.CommitStep, region.PageSize()),
		last:   -1,
	}, nil
}

// NewBuffer returns an arena over buf. The arena never grows beyond len(buf).
func NewBuffer(buf []byte) *Arena {
	var base uintptr
	if len(buf) > 0 {
		base = uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	}
	return &Arena{
		name:  "buffer",
		mem:   buf[:len(buf):len(buf)],
		base:  base,
		limit: len(buf),
		last:  -1,
	}
}

// Allocator returns the capability wrapping a.
func (a *Arena) Allocator() alloc.Allocator {
	return alloc.New(a)
}

func (a *Arena) String() string {
	return "arena." + a.name
}

// Op implements alloc.Impl.
func (a *Arena) Op(cmd alloc.Command, old []byte, size, align int) []byte {
	switch cmd {
	case alloc.CmdAlloc:
		return a.Alloc(size, align)
	case alloc.CmdFree:
		// Arenas reclaim only through Reset.
		a.checkLive("arena.Free")
		return nil
	case alloc.CmdExtend:
		return a.Extend(old, size)
	case alloc.CmdRealloc:
		return a.Realloc(old, size, align)
	case alloc.CmdReset:
		a.Reset(size)
		return nil
	}
	contract.Failf("arena.Op", "unknown command %v", cmd)
	return nil
}

// Alloc returns size zeroed bytes aligned to align (0 selects 16).
func (a *Arena) Alloc(size, align int) []byte {
	a.checkLive("arena.Alloc")
	align, ok := sizes.NormalizeAlign(align)
	if !ok {
		contract.Failf("arena.Alloc", "alignment %d is not a power of two", align)
	}
	if size < 0 {
		contract.Failf("arena.Alloc", "negative size %d", size)
	}

	start := int(sizes.AlignUpPtr(a.base+uintptr(a.off), align) - a.base)
	end, ok := sizes.AddOverflowSafe(start, size)
	if !ok || end > a.limit {
		contract.Failf("arena.Alloc", "%s exhausted: need %d bytes at offset %d, reserved %d",
			a.name, size, start, a.limit)
	}
	a.ensure(end)

	a.allocs++
	a.last = start
	a.moveTo(end)

	b := a.mem[start:end:end]
	clear(b)
	return b
}

// Extend grows old in place when it is the most recent allocation and the
// reservation has room. It returns nil otherwise.
func (a *Arena) Extend(old []byte, size int) []byte {
	a.checkLive("arena.Extend")
	start, ok := a.offsetOf(old)
	if !ok || start != a.last || start+len(old) != a.off {
		return nil
	}
	end, ok := sizes.AddOverflowSafe(start, size)
	if !ok || size < 0 || end > a.limit {
		return nil
	}
	a.ensure(end)
	a.moveTo(end)

	b := a.mem[start:end:end]
	if size > len(old) {
		clear(b[len(old):])
	}
	return b
}

// Realloc extends old in place when possible, otherwise copies it into a new
// allocation. The old bytes stay allocated until the next Reset.
func (a *Arena) Realloc(old []byte, size, align int) []byte {
	if b := a.Extend(old, size); b != nil {
		return b
	}
	b := a.Alloc(size, align)
	copy(b, old)
	return b
}

// Mark returns a restore point for Reset.
func (a *Arena) Mark() int {
	return a.off
}

// Reset rewinds the cursor to mark, invalidating every allocation made after
// it. Memory contents are left untouched.
func (a *Arena) Reset(mark int) {
	a.checkLive("arena.Reset")
	if mark < 0 || mark > a.off {
		contract.Failf("arena.Reset", "restore point %d outside [0,%d]", mark, a.off)
	}
	a.off = mark
	a.last = -1
	a.resets++
}

// Trim returns committed pages beyond the cursor to the operating system,
// keeping one commit step of slack.
func (a *Arena) Trim() error {
	a.checkLive("arena.Trim")
	if a.region == nil {
		return nil
	}
	if err := a.region.Decommit(a.off + a.step); err != nil {
		return fmt.Errorf("arena %s: %w", a.name, err)
	}
	a.mem = a.region.Bytes()
	return nil
}

// Release gives the reservation back. The arena is unusable afterwards.
func (a *Arena) Release() error {
	if a.released {
		return nil
	}
	a.released = true
	a.mem = nil
	if a.region != nil {
		return a.region.Release()
	}
	return nil
}

// Stats returns a snapshot of the arena counters.
func (a *Arena) Stats() Stats {
	return Stats{
		Name:      a.name,
		Used:      a.off,
		Peak:      a.peak,
		Committed: len(a.mem),
		Reserved:  a.limit,
		Allocs:    a.allocs,
		Resets:    a.resets,
	}
}

// ensure commits memory so that [0, end) is usable.
func (a *Arena) ensure(end int) {
	if end <= len(a.mem) {
		return
	}
	if a.region == nil {
		contract.Failf("arena.Alloc", "%s exhausted: need %d of %d bytes", a.name, end, a.limit)
	}
	target := min(sizes.AlignUp(end, a.step), a.limit)
	if err := a.region.Commit(target); err != nil {
		contract.Failf("arena.Alloc", "%s: %v", a.name, err)
	}
	a.mem = a.region.Bytes()
	logger.With("arena").Debug("commit",
		slog.String("arena", a.name),
		slog.Int("committed", len(a.mem)),
		slog.Int("reserved", a.limit),
	)
}

func (a *Arena) moveTo(end int) {
	a.off = end
	if end > a.peak {
		a.peak = end
	}
}

func (a *Arena) offsetOf(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	p := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	if p < a.base || p >= a.base+uintptr(a.off) {
		return 0, false
	}
	return int(p - a.base), true
}

func (a *Arena) checkLive(op string) {
	if a.released {
		contract.Failf(op, "%s used after Release", a.name)
	}
}

var _ alloc.Impl = (*Arena)(nil)
