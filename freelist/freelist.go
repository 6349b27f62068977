package freelist

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/internal/contract"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/internal/sizes"
	"github.com/joshuapare/memkit/internal/vm"
)

const (
	// blockAlign is the granularity of block offsets and sizes.
	blockAlign = 16

	// headerSize is the minimum distance from a block start to its payload:
	// the size word plus the back-offset word.
	headerSize = 16

	// minBlock is the smallest block that can sit on the free list: the size
	// word, a word left for the back offset, then next and prev.
	minBlock = 32

	// nilOff terminates the free list.
	nilOff = -1

	// DefaultGrowStep is the commit granularity when Options.GrowStep is 0.
	DefaultGrowStep = 256 << 10
)

// Options configures New.
type Options struct {
	Reserve  int    // Maximum size in bytes; required
	GrowStep int    // Bytes committed per growth, rounded to the page size
	Name     string // Label used in logs
}

// Stats holds allocator counters.
type Stats struct {
	Reserved    int
	Committed   int
	InUse       int // Bytes held by allocated blocks, headers included
	FreeBlocks  int
	FreeBytes   int
	LargestFree int

	AllocCalls       int64
	FreeCalls        int64
	ExtendCalls      int64
	ExtendInPlace    int64
	Splits           int64
	CoalesceForward  int64
	CoalesceBackward int64
	Grows            int64
}

func (s Stats) String() string {
	return fmt.Sprintf("committed=%s/%s in-use=%s free=%s in %d blocks (largest %s) allocs=%d frees=%d splits=%d coalesce=%d/%d grows=%d",
		humanize.IBytes(uint64(s.Committed)), humanize.IBytes(uint64(s.Reserved)),
		humanize.IBytes(uint64(s.InUse)), humanize.IBytes(uint64(s.FreeBytes)), s.FreeBlocks,
		humanize.IBytes(uint64(s.LargestFree)),
		s.AllocCalls, s.FreeCalls, s.Splits, s.CoalesceBackward, s.CoalesceForward, s.Grows)
}

// Allocator is a mutex-guarded, address-ordered free-list allocator.
type Allocator struct {
	mu sync.Mutex

	name   string
	region *vm.Region
	mem    []byte // committed prefix of region
	base   uintptr
	step   int

	freeHead int // offset of the first free block, nilOff when empty
	inUse    int

	stats Stats
}

// New reserves opts.Reserve bytes. Nothing is committed until the first
// allocation.
func New(opts Options) (*Allocator, error) {
	if opts.Reserve <= 0 {
		return nil, fmt.Errorf("freelist: reserve must be positive, got %d", opts.Reserve)
	}
	if opts.GrowStep <= 0 {
		opts.GrowStep = DefaultGrowStep
	}
	if opts.Name == "" {
		opts.Name = "freelist"
	}
	region, err := vm.Reserve(opts.Reserve)
	if err != nil {
		return nil, fmt.Errorf("freelist %s: %w", opts.Name, err)
	}
	return &Allocator{
		name:     opts.Name,
		region:   region,
		base:     region.Base(),
		step:     sizes.AlignUp(opts.GrowStep, region.PageSize()),
		freeHead: nilOff,
	}, nil
}

// Allocator returns the capability wrapping fl.
func (fl *Allocator) Allocator() alloc.Allocator {
	return alloc.New(fl)
}

func (fl *Allocator) String() string {
	return "freelist." + fl.name
}

// Op implements alloc.Impl.
func (fl *Allocator) Op(cmd alloc.Command, old []byte, size, align int) []byte {
	switch cmd {
	case alloc.CmdAlloc:
		return fl.Alloc(size, align)
	case alloc.CmdFree:
		fl.Free(old)
		return nil
	case alloc.CmdExtend:
		return fl.Extend(old, size)
	case alloc.CmdRealloc:
		return fl.Realloc(old, size, align)
	case alloc.CmdReset:
		fl.Reset()
		return nil
	}
	contract.Failf("freelist.Op", "unknown command %v", cmd)
	return nil
}

// Alloc returns size zeroed bytes aligned to align (0 selects 16).
func (fl *Allocator) Alloc(size, align int) []byte {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.alloc(size, align)
}

// Free returns a block obtained from fl and merges it with free neighbours.
func (fl *Allocator) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.free(b)
}

// Extend grows b in place, absorbing block slack or the following free block
// and committing more memory when b's block is the last one. It returns nil
// when the block cannot grow in place.
func (fl *Allocator) Extend(b []byte, size int) []byte {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.extend(b, size)
}

// Realloc extends b in place or moves it to a new block.
func (fl *Allocator) Realloc(b []byte, size, align int) []byte {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if len(b) > 0 {
		if nb := fl.extend(b, size); nb != nil {
			return nb
		}
	}
	nb := fl.alloc(size, align)
	copy(nb, b)
	if len(b) > 0 {
		fl.free(b)
	}
	return nb
}

// Reset frees every block at once. Outstanding slices become invalid.
func (fl *Allocator) Reset() {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	fl.inUse = 0
	fl.freeHead = nilOff
	if len(fl.mem) == 0 {
		return
	}
	fl.freeHead = 0
	fl.writeFree(0, len(fl.mem), nilOff, nilOff)
}

// Close releases the reservation. It fails while blocks are allocated.
func (fl *Allocator) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.inUse > 0 {
		return fmt.Errorf("%w: %d bytes", ErrInUse, fl.inUse)
	}
	fl.mem = nil
	fl.freeHead = nilOff
	return fl.region.Release()
}

// Stats returns a snapshot of the counters, walking the free list.
func (fl *Allocator) Stats() Stats {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	s := fl.stats
	s.Reserved = fl.region.Reserved()
	s.Committed = len(fl.mem)
	s.InUse = fl.inUse
	for off := fl.freeHead; off != nilOff; off = fl.next(off) {
		sz := fl.size(off)
		s.FreeBlocks++
		s.FreeBytes += sz
		s.LargestFree = max(s.LargestFree, sz)
	}
	return s
}

func (fl *Allocator) alloc(size, align int) []byte {
	if fl.region.Released() {
		contract.Failf("freelist.Alloc", "%s used after Close", fl.name)
	}
	align, ok := sizes.NormalizeAlign(align)
	if !ok {
		contract.Failf("freelist.Alloc", "alignment %d is not a power of two", align)
	}
	if size < 0 {
		contract.Failf("freelist.Alloc", "negative size %d", size)
	}
	fl.stats.AllocCalls++
	if size == 0 {
		return []byte{}
	}

	off, payload, need := fl.findFit(size, align)
	if off == nilOff {
		// Worst case padding is align-1 past the header.
		want, ok := sizes.AddOverflowSafe(size, headerSize+align+minBlock)
		if !ok {
			contract.Failf("freelist.Alloc", "size %d overflows", size)
		}
		// The new pages merge with a free block ending at the committed top.
		want = max(want-fl.trailingFree(), 1)
		room := fl.region.Reserved() - len(fl.mem)
		if room == 0 {
			fl.exhausted(size)
		}
		fl.grow(min(want, room))
		off, payload, need = fl.findFit(size, align)
		if off == nilOff {
			fl.exhausted(size)
		}
	}

	fl.take(off, need)
	putI64(fl.mem, payload-8, int64(payload-off))

	b := fl.mem[payload : payload+size : payload+size]
	clear(b)
	return b
}

// findFit walks the free list for the first block that can hold size bytes
// at the requested alignment.
func (fl *Allocator) findFit(size, align int) (off, payload, need int) {
	for off = fl.freeHead; off != nilOff; off = fl.next(off) {
		payload = fl.payloadOffset(off, align)
		need = blockSize(payload-off, size)
		if need <= fl.size(off) {
			return off, payload, need
		}
	}
	return nilOff, 0, 0
}

// take marks the free block at off allocated with need bytes, returning any
// large enough tail to the free list in the block's place.
func (fl *Allocator) take(off, need int) {
	bsize := fl.size(off)
	prev, next := fl.prev(off), fl.next(off)

	if rem := bsize - need; rem >= minBlock {
		fl.stats.Splits++
		tail := off + need
		fl.writeFree(tail, rem, prev, next)
		fl.relink(prev, next, tail)
	} else {
		need = bsize
		fl.unlink(prev, next)
	}
	putI64(fl.mem, off, -int64(need))
	fl.inUse += need
}

func (fl *Allocator) free(b []byte) {
	off, bsize := fl.blockOf("freelist.Free", b)
	fl.stats.FreeCalls++
	fl.inUse -= bsize
	// A positive header stays behind if the block merges backward.
	putI64(fl.mem, off, int64(bsize))
	fl.insertFree(off, bsize)
}

// insertFree links [off, off+size) into the address-ordered list and merges
// it with adjacent free blocks.
func (fl *Allocator) insertFree(off, size int) {
	prev := nilOff
	next := fl.freeHead
	for next != nilOff && next < off {
		prev, next = next, fl.next(next)
	}

	if next != nilOff && off+size == next {
		fl.stats.CoalesceForward++
		size += fl.size(next)
		next = fl.next(next)
	}
	if prev != nilOff && prev+fl.size(prev) == off {
		fl.stats.CoalesceBackward++
		fl.writeFree(prev, fl.size(prev)+size, fl.prev(prev), next)
		if next != nilOff {
			fl.setPrev(next, prev)
		}
		return
	}

	fl.writeFree(off, size, prev, next)
	fl.relink(prev, next, off)
}

func (fl *Allocator) extend(b []byte, size int) []byte {
	if size < 0 {
		contract.Failf("freelist.Extend", "negative size %d", size)
	}
	if len(b) == 0 {
		return nil
	}
	fl.stats.ExtendCalls++
	off, bsize := fl.blockOf("freelist.Extend", b)
	payload, _ := fl.region.Offset(b)
	need := blockSize(payload-off, size)

	if need > bsize {
		next := off + bsize
		avail := bsize
		if next < len(fl.mem) && fl.rawSize(next) > 0 {
			avail += fl.size(next)
		}
		if avail < need && off+avail == len(fl.mem) {
			if off+need > fl.region.Reserved() {
				return nil
			}
			fl.grow(need - avail)
		}
		if next >= len(fl.mem) || fl.rawSize(next) <= 0 {
			return nil
		}
		nsize := fl.size(next)
		if bsize+nsize < need {
			return nil
		}
		fl.unlink(fl.prev(next), fl.next(next))
		fl.stats.CoalesceForward++
		fl.inUse += nsize
		bsize += nsize
		putI64(fl.mem, off, -int64(bsize))
	}

	if rem := bsize - need; rem >= minBlock {
		fl.stats.Splits++
		putI64(fl.mem, off, -int64(need))
		fl.inUse -= rem
		fl.insertFree(off+need, rem)
	}

	fl.stats.ExtendInPlace++
	nb := fl.mem[payload : payload+size : payload+size]
	if size > len(b) {
		clear(nb[len(b):])
	}
	return nb
}

// trailingFree returns the size of the free block ending at the committed
// top, or 0.
func (fl *Allocator) trailingFree() int {
	last := nilOff
	for off := fl.freeHead; off != nilOff; off = fl.next(off) {
		last = off
	}
	if last == nilOff || last+fl.size(last) != len(fl.mem) {
		return 0
	}
	return fl.size(last)
}

func (fl *Allocator) exhausted(size int) {
	contract.Failf("freelist.Alloc", "%s reservation exhausted: no block for %d bytes, %d of %d committed",
		fl.name, size, len(fl.mem), fl.region.Reserved())
}

// grow commits at least n more bytes and frees them as one block at the end
// of the committed range.
func (fl *Allocator) grow(n int) {
	old := len(fl.mem)
	want, ok := sizes.AddOverflowSafe(old, n)
	if !ok || want > fl.region.Reserved() {
		contract.Failf("freelist.Alloc", "%s reservation exhausted: need %d more bytes, %d of %d committed",
			fl.name, n, old, fl.region.Reserved())
	}
	target := min(sizes.AlignUp(want, fl.step), fl.region.Reserved())
	if err := fl.region.Commit(target); err != nil {
		contract.Failf("freelist.Alloc", "%s: %v", fl.name, err)
	}
	fl.mem = fl.region.Bytes()
	fl.stats.Grows++
	logger.With("freelist").Debug("grow",
		slog.String("allocator", fl.name),
		slog.Int("committed", len(fl.mem)),
		slog.Int("reserved", fl.region.Reserved()),
	)
	fl.insertFree(old, len(fl.mem)-old)
}

// blockOf validates that b was returned by fl and is still allocated.
func (fl *Allocator) blockOf(op string, b []byte) (off, size int) {
	payload, ok := fl.region.Offset(b)
	if !ok || payload < headerSize {
		contract.Failf(op, "block does not belong to %s", fl.name)
	}
	back := int(getI64(fl.mem, payload-8))
	off = payload - back
	if back < headerSize || off < 0 || off%blockAlign != 0 {
		contract.Failf(op, "block at payload offset %d is not allocated (corrupt header or double free)", payload)
	}
	raw := fl.rawSize(off)
	if raw >= 0 {
		contract.Failf(op, "block at offset %d is not allocated (double free?)", off)
	}
	size = int(-raw)
	if payload+len(b) > off+size {
		contract.Failf(op, "slice overruns its block at offset %d", off)
	}
	return off, size
}

func (fl *Allocator) payloadOffset(off, align int) int {
	return int(sizes.AlignUpPtr(fl.base+uintptr(off+headerSize), align) - fl.base)
}

func blockSize(pad, size int) int {
	return max(sizes.AlignUp(pad+size, blockAlign), minBlock)
}

// Free-list links. prev/next of nilOff address the list head.

func (fl *Allocator) relink(prev, next, off int) {
	if prev == nilOff {
		fl.freeHead = off
	} else {
		fl.setNext(prev, off)
	}
	if next != nilOff {
		fl.setPrev(next, off)
	}
}

func (fl *Allocator) unlink(prev, next int) {
	if prev == nilOff {
		fl.freeHead = next
	} else {
		fl.setNext(prev, next)
	}
	if next != nilOff {
		fl.setPrev(next, prev)
	}
}

func (fl *Allocator) writeFree(off, size, prev, next int) {
	putI64(fl.mem, off, int64(size))
	putI64(fl.mem, off+16, int64(next))
	putI64(fl.mem, off+24, int64(prev))
}

func (fl *Allocator) rawSize(off int) int64 { return getI64(fl.mem, off) }
func (fl *Allocator) size(off int) int      { return int(getI64(fl.mem, off)) }
func (fl *Allocator) next(off int) int      { return int(getI64(fl.mem, off+16)) }
func (fl *Allocator) prev(off int) int      { return int(getI64(fl.mem, off+24)) }

func (fl *Allocator) setNext(off, v int) { putI64(fl.mem, off+16, int64(v)) }
func (fl *Allocator) setPrev(off, v int) { putI64(fl.mem, off+24, int64(v)) }

func getI64(b []byte, off int) int64 {
	return int64(binary.LittleEndian.Uint64(b[off : off+8]))
}

func putI64(b []byte, off int, v int64) {
	binary.LittleEndian.PutUint64(b[off:off+8], uint64(v))
}

var _ alloc.Impl = (*Allocator)(nil)
