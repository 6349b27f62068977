package alloc

import (
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/memkit/internal/contract"
	"github.com/joshuapare/memkit/internal/sizes"
)

// HeapStats counts traffic through Heap(), including Make, Resize and
// Release on it. Bytes are requested sizes.
type HeapStats struct {
	Allocs   int64
	Reallocs int64
	Frees    int64
	Bytes    int64
}

type heap struct {
	allocs   atomic.Int64
	reallocs atomic.Int64
	frees    atomic.Int64
	bytes    atomic.Int64
}

var defaultHeap = &heap{}

// Heap returns the process-wide allocator backed by the Go heap. Free is a
// no-op: the garbage collector reclaims blocks once they are unreachable.
func Heap() Allocator {
	return Allocator{impl: defaultHeap}
}

// ReadHeapStats returns a snapshot of the heap allocator counters.
func ReadHeapStats() HeapStats {
	return HeapStats{
		Allocs:   defaultHeap.allocs.Load(),
		Reallocs: defaultHeap.reallocs.Load(),
		Frees:    defaultHeap.frees.Load(),
		Bytes:    defaultHeap.bytes.Load(),
	}
}

func (h *heap) String() string { return "alloc.Heap" }

func (h *heap) Op(cmd Command, old []byte, size, align int) []byte {
	switch cmd {
	case CmdAlloc:
		return h.alloc(size, align)
	case CmdFree:
		h.frees.Add(1)
		return nil
	case CmdExtend:
		// Slack left by alignment padding is usable in place.
		return inPlace(old, size)
	case CmdRealloc:
		h.reallocs.Add(1)
		if b := inPlace(old, size); b != nil {
			return b
		}
		b := h.alloc(size, align)
		copy(b, old)
		return b
	case CmdReset:
		return nil
	}
	contract.Failf("heap.Op", "unknown command %v", cmd)
	return nil
}

// alloc over-allocates by align-1 bytes and slices off the misaligned head.
func (h *heap) alloc(size, align int) []byte {
	align, ok := sizes.NormalizeAlign(align)
	if !ok {
		contract.Failf("heap.Alloc", "alignment %d is not a power of two", align)
	}
	if size < 0 {
		contract.Failf("heap.Alloc", "negative size %d", size)
	}
	h.countAlloc(size)
	if size == 0 {
		return []byte{}
	}
	total, ok := sizes.AddOverflowSafe(size, align-1)
	if !ok {
		contract.Failf("heap.Alloc", "size %d overflows with alignment %d", size, align)
	}
	buf := make([]byte, total)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	shift := int(sizes.AlignUpPtr(addr, align) - addr)
	return buf[shift : shift+size : total]
}

func (h *heap) countAlloc(size int) {
	h.allocs.Add(1)
	h.bytes.Add(int64(size))
}

func inPlace(old []byte, size int) []byte {
	if size < 0 || size > cap(old) {
		return nil
	}
	b := old[:size]
	if size > len(old) {
		clear(b[len(old):])
	}
	return b
}
