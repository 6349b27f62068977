package array

import (
	"iter"
	"slices"
	"unsafe"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/internal/contract"
)

// Array is a growable sequence. The zero value is empty and binds to the Go
// heap on first growth.
type Array[T any] struct {
	items []T // len(items) is the capacity
	n     int
	alloc alloc.Allocator
}

// New returns an empty array bound to a.
func New[T any](a alloc.Allocator) *Array[T] {
	return &Array[T]{alloc: a}
}

// WithCapacity returns an empty array bound to a with room for n elements.
func WithCapacity[T any](a alloc.Allocator, n int) *Array[T] {
	arr := New[T](a)
	arr.Grow(n)
	return arr
}

// From returns an array bound to a holding values.
func From[T any](a alloc.Allocator, values ...T) *Array[T] {
	arr := WithCapacity[T](a, len(values))
	arr.AddSlice(values...)
	return arr
}

// Allocator returns the allocator backing the array.
func (a *Array[T]) Allocator() alloc.Allocator { return a.alloc }

// Len returns the number of elements.
func (a *Array[T]) Len() int { return a.n }

// Cap returns the number of elements the storage can hold.
func (a *Array[T]) Cap() int { return len(a.items) }

// Grow makes room for at least additional more elements.
func (a *Array[T]) Grow(additional int) {
	if additional < 0 {
		contract.Failf("array.Grow", "negative growth %d", additional)
	}
	need := a.n + additional
	if need <= len(a.items) {
		return
	}
	a.reserve(max(need, len(a.items)*2))
}

// reserve resizes the storage to exactly c elements, c >= a.n.
func (a *Array[T]) reserve(c int) {
	if !a.alloc.Bound() {
		a.alloc = alloc.Heap()
	}
	a.items = alloc.Resize(a.alloc, a.items, c)
}

// Add appends v and returns its index.
func (a *Array[T]) Add(v T) int {
	a.Grow(1)
	a.items[a.n] = v
	a.n++
	return a.n - 1
}

// AddSlice appends values in order. values may be a view of a itself.
func (a *Array[T]) AddSlice(values ...T) {
	if a.n+len(values) > len(a.items) && a.aliases(values) {
		// Growth may free the old storage before values is read.
		values = slices.Clone(values)
	}
	a.Grow(len(values))
	a.n += copy(a.items[a.n:], values)
}

// Insert places v at index at, shifting later elements right. at may equal
// Len.
func (a *Array[T]) Insert(at int, v T) {
	if at < 0 || at > a.n {
		contract.Failf("array.Insert", "position %d beyond length %d", at, a.n)
	}
	a.Grow(1)
	copy(a.items[at+1:a.n+1], a.items[at:a.n])
	a.items[at] = v
	a.n++
}

// Remove deletes the element at i, preserving order.
func (a *Array[T]) Remove(i int) T {
	contract.Index("array.Remove", i, a.n)
	v := a.items[i]
	copy(a.items[i:], a.items[i+1:a.n])
	a.n--
	clear(a.items[a.n : a.n+1])
	return v
}

// RemoveUnsorted deletes the element at i by moving the last element into
// its place. Order is not preserved.
func (a *Array[T]) RemoveUnsorted(i int) T {
	contract.Index("array.RemoveUnsorted", i, a.n)
	v := a.items[i]
	a.n--
	a.items[i] = a.items[a.n]
	clear(a.items[a.n : a.n+1])
	return v
}

// Replace removes [start, end) and inserts values in its place. values may
// be a view of a itself.
func (a *Array[T]) Replace(start, end int, values ...T) {
	contract.Range("array.Replace", start, end, a.n)
	if a.aliases(values) {
		values = slices.Clone(values)
	}
	removed := end - start
	delta := len(values) - removed

	switch {
	case delta > 0:
		a.Grow(delta)
		copy(a.items[end+delta:a.n+delta], a.items[end:a.n])
	case delta < 0:
		copy(a.items[end+delta:], a.items[end:a.n])
		clear(a.items[a.n+delta : a.n])
	}
	copy(a.items[start:], values)
	a.n += delta
}

// SetGrow stores v at i, growing the array to i+1 elements if needed. Gap
// elements are zero.
func (a *Array[T]) SetGrow(i int, v T) {
	if i < 0 {
		contract.Failf("array.SetGrow", "negative index %d", i)
	}
	if i >= a.n {
		a.Resize(i + 1)
	}
	a.items[i] = v
}

// Resize sets the length to n, zeroing new elements.
func (a *Array[T]) Resize(n int) {
	if n < 0 {
		contract.Failf("array.Resize", "negative length %d", n)
	}
	if n > a.n {
		a.Grow(n - a.n)
	} else {
		clear(a.items[n:a.n])
	}
	a.n = n
}

// At returns the element at i.
func (a *Array[T]) At(i int) T {
	contract.Index("array.At", i, a.n)
	return a.items[i]
}

// Ptr returns a pointer to the element at i, valid until the array grows.
func (a *Array[T]) Ptr(i int) *T {
	contract.Index("array.Ptr", i, a.n)
	return &a.items[i]
}

// Set stores v at i.
func (a *Array[T]) Set(i int, v T) {
	contract.Index("array.Set", i, a.n)
	a.items[i] = v
}

// Pop removes and returns the last element.
func (a *Array[T]) Pop() T {
	if a.n == 0 {
		contract.Failf("array.Pop", "empty array")
	}
	a.n--
	v := a.items[a.n]
	clear(a.items[a.n : a.n+1])
	return v
}

// Tail returns a pointer to the last element, or nil when empty.
func (a *Array[T]) Tail() *T {
	if a.n == 0 {
		return nil
	}
	return &a.items[a.n-1]
}

// Slice returns a view of [start, end). The view shares storage with a.
func (a *Array[T]) Slice(start, end int) []T {
	contract.Range("array.Slice", start, end, a.n)
	return a.items[start:end:end]
}

// Items returns a view of all elements.
func (a *Array[T]) Items() []T {
	return a.items[:a.n:a.n]
}

// Swap exchanges the elements at i and j.
func (a *Array[T]) Swap(i, j int) {
	contract.Index("array.Swap", i, a.n)
	contract.Index("array.Swap", j, a.n)
	a.items[i], a.items[j] = a.items[j], a.items[i]
}

// All yields index/element pairs front to back.
func (a *Array[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < a.n; i++ {
			if !yield(i, a.items[i]) {
				return
			}
		}
	}
}

// Backward yields index/element pairs back to front.
func (a *Array[T]) Backward() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := a.n - 1; i >= 0; i-- {
			if !yield(i, a.items[i]) {
				return
			}
		}
	}
}

// CopyFrom replaces the contents with a copy of src. src may be a view of a
// itself.
func (a *Array[T]) CopyFrom(src []T) {
	if a.aliases(src) {
		src = slices.Clone(src)
	}
	a.Clear()
	a.AddSlice(src...)
}

// Clear removes all elements and keeps the storage.
func (a *Array[T]) Clear() {
	clear(a.items[:a.n])
	a.n = 0
}

// aliases reports whether s starts inside a's storage.
func (a *Array[T]) aliases(s []T) bool {
	if len(s) == 0 || len(a.items) == 0 {
		return false
	}
	size := unsafe.Sizeof(a.items[0])
	if size == 0 {
		return false
	}
	lo := uintptr(unsafe.Pointer(unsafe.SliceData(a.items)))
	hi := lo + uintptr(len(a.items))*size
	p := uintptr(unsafe.Pointer(unsafe.SliceData(s)))
	return p >= lo && p < hi
}

// Free returns the storage to the allocator. The array stays bound and can
// be reused.
func (a *Array[T]) Free() {
	if a.items != nil {
		alloc.Release(a.alloc, a.items)
	}
	a.items = nil
	a.n = 0
}
