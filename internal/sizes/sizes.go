// Package sizes provides overflow-checked size arithmetic and alignment
// helpers shared by the allocators and containers.
package sizes

import (
	"fmt"
	"math"
	"math/bits"
)

// DefaultAlign is the alignment used when a caller passes 0.
// It satisfies every Go scalar type and SSE-width vectors.
const DefaultAlign = 16

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// MulOverflowSafe multiplies two non-negative ints, returning ok = false on
// overflow or when either operand is negative.
func MulOverflowSafe(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt {
		return 0, false
	}
	return int(lo), true
}

// Bytes returns count*elemSize, or an error describing the overflow.
//
// This is the recommended way to size typed storage before allocating:
//
//	n, err := sizes.Bytes(capacity, int(unsafe.Sizeof(zero)))
//	if err != nil {
//	    contract.Failf("alloc.Make", "%v", err)
//	}
func Bytes(count, elemSize int) (int, error) {
	if count < 0 {
		return 0, fmt.Errorf("negative count: %d", count)
	}
	if elemSize < 0 {
		return 0, fmt.Errorf("negative element size: %d", elemSize)
	}
	total, ok := MulOverflowSafe(count, elemSize)
	if !ok {
		return 0, fmt.Errorf("overflow: count=%d * elemSize=%d", count, elemSize)
	}
	return total, nil
}

// IsPow2 reports whether n is a positive power of two.
func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NormalizeAlign maps 0 to DefaultAlign and reports whether the result is a
// usable alignment.
func NormalizeAlign(align int) (int, bool) {
	if align == 0 {
		return DefaultAlign, true
	}
	return align, IsPow2(align)
}

// AlignUp returns n aligned up to the next multiple of align (a power of two).
//
// Example:
//
//	AlignUp(1, 8)  = 8
//	AlignUp(8, 8)  = 8
//	AlignUp(9, 16) = 16
func AlignUp(n, align int) int {
	mask := align - 1
	return (n + mask) &^ mask
}

// AlignUpPtr is AlignUp for addresses.
func AlignUpPtr(p uintptr, align int) uintptr {
	mask := uintptr(align - 1)
	return (p + mask) &^ mask
}

// CeilPow2 returns the smallest power of two >= n (1 for n <= 1).
func CeilPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
