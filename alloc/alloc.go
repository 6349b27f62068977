package alloc

import (
	"fmt"

	"github.com/joshuapare/memkit/internal/contract"
)

// Command selects the operation performed by Impl.Op.
type Command uint8

const (
	CmdAlloc Command = iota
	CmdFree
	CmdExtend
	CmdRealloc
	CmdReset
)

var commandNames = [...]string{
	CmdAlloc:   "alloc",
	CmdFree:    "free",
	CmdExtend:  "extend",
	CmdRealloc: "realloc",
	CmdReset:   "reset",
}

func (c Command) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("Command(%d)", uint8(c))
}

// Impl is the dispatch side of an Allocator.
//
// old carries both the previous block and its size (len(old)). For CmdReset,
// size is the restore point. CmdExtend returns nil when the block cannot grow
// in place; every other failure is fatal inside the implementation.
type Impl interface {
	Op(cmd Command, old []byte, size, align int) []byte
}

// Allocator is the capability token passed by value into containers.
// Two Allocators are equal when they wrap the same implementation.
type Allocator struct {
	impl Impl
}

// New wraps impl. Implementations should be pointers so that equality means
// identity.
func New(impl Impl) Allocator {
	return Allocator{impl: impl}
}

// Bound reports whether a has an implementation.
func (a Allocator) Bound() bool {
	return a.impl != nil
}

// Impl returns the wrapped implementation (nil when unbound).
func (a Allocator) Impl() Impl {
	return a.impl
}

// OrHeap returns a, or Heap() when a is unbound.
func (a Allocator) OrHeap() Allocator {
	if a.impl == nil {
		return Heap()
	}
	return a
}

func (a Allocator) mustBind(op string) Impl {
	if a.impl == nil {
		contract.Failf(op, "allocator is unbound")
	}
	return a.impl
}

// Alloc returns size zeroed bytes aligned to align (0 selects 16).
func (a Allocator) Alloc(size, align int) []byte {
	return a.mustBind("alloc.Alloc").Op(CmdAlloc, nil, size, align)
}

// Free returns b to the allocator it came from.
func (a Allocator) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	a.mustBind("alloc.Free").Op(CmdFree, b, 0, 0)
}

// Extend grows b in place to size bytes. It returns nil when the allocator
// cannot do so; the caller then falls back to Realloc.
func (a Allocator) Extend(b []byte, size int) []byte {
	return a.mustBind("alloc.Extend").Op(CmdExtend, b, size, 0)
}

// Realloc returns a block of size bytes holding the first min(len(b), size)
// bytes of b. b must not be used afterwards.
func (a Allocator) Realloc(b []byte, size, align int) []byte {
	return a.mustBind("alloc.Realloc").Op(CmdRealloc, b, size, align)
}

// Reset rewinds an arena allocator to mark, invalidating everything allocated
// after it.
func (a Allocator) Reset(mark int) {
	a.mustBind("alloc.Reset").Op(CmdReset, nil, mark, 0)
}

func (a Allocator) String() string {
	if a.impl == nil {
		return "alloc.Allocator(unbound)"
	}
	if s, ok := a.impl.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("alloc.Allocator(%T)", a.impl)
}
