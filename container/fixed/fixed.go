// Package fixed provides Fixed, a sequence whose capacity is set at
// construction and never changes. Adding past the capacity is a fatal
// contract violation rather than a reallocation, so pointers into a Fixed
// stay valid for its lifetime.
package fixed

import (
	"iter"

	"github.com/joshuapare/memkit/internal/contract"
)

// Cloner is implemented by element types whose copies need more than an
// assignment, such as reference counted handles. CopyFrom calls Clone on
// each copied element.
type Cloner[T any] interface {
	Clone() T
}

// Fixed is a bounded sequence backed by one array allocated in New.
type Fixed[T any] struct {
	items []T // len(items) is the capacity
	n     int
}

// New returns an empty sequence holding at most capacity elements.
func New[T any](capacity int) *Fixed[T] {
	if capacity < 0 {
		contract.Failf("fixed.New", "negative capacity %d", capacity)
	}
	return &Fixed[T]{items: make([]T, capacity)}
}

// FromSlice returns a sequence with the given capacity holding the first
// capacity elements of src. Extra elements are dropped.
func FromSlice[T any](capacity int, src []T) *Fixed[T] {
	f := New[T](capacity)
	f.n = copy(f.items, src)
	return f
}

func (f *Fixed[T]) Len() int { return f.n }
func (f *Fixed[T]) Cap() int { return len(f.items) }

// Full reports whether Add would overflow.
func (f *Fixed[T]) Full() bool { return f.n == len(f.items) }

// Add appends v and returns its index.
func (f *Fixed[T]) Add(v T) int {
	if f.n == len(f.items) {
		contract.Failf("fixed.Add", "capacity %d exceeded", len(f.items))
	}
	f.items[f.n] = v
	f.n++
	return f.n - 1
}

// Insert places v at index at, shifting later elements right.
func (f *Fixed[T]) Insert(at int, v T) {
	if at < 0 || at > f.n {
		contract.Failf("fixed.Insert", "position %d beyond length %d", at, f.n)
	}
	if f.n == len(f.items) {
		contract.Failf("fixed.Insert", "capacity %d exceeded", len(f.items))
	}
	copy(f.items[at+1:f.n+1], f.items[at:f.n])
	f.items[at] = v
	f.n++
}

// Remove deletes the element at i, preserving order.
func (f *Fixed[T]) Remove(i int) T {
	contract.Index("fixed.Remove", i, f.n)
	v := f.items[i]
	copy(f.items[i:], f.items[i+1:f.n])
	f.n--
	clear(f.items[f.n : f.n+1])
	return v
}

// RemoveUnsorted deletes the element at i by moving the last element into
// its place.
func (f *Fixed[T]) RemoveUnsorted(i int) T {
	contract.Index("fixed.RemoveUnsorted", i, f.n)
	v := f.items[i]
	f.n--
	f.items[i] = f.items[f.n]
	clear(f.items[f.n : f.n+1])
	return v
}

// Pop removes and returns the last element.
func (f *Fixed[T]) Pop() T {
	if f.n == 0 {
		contract.Failf("fixed.Pop", "empty sequence")
	}
	f.n--
	v := f.items[f.n]
	clear(f.items[f.n : f.n+1])
	return v
}

// Tail returns a pointer to the last element, or nil when empty.
func (f *Fixed[T]) Tail() *T {
	if f.n == 0 {
		return nil
	}
	return &f.items[f.n-1]
}

func (f *Fixed[T]) At(i int) T {
	contract.Index("fixed.At", i, f.n)
	return f.items[i]
}

func (f *Fixed[T]) Ptr(i int) *T {
	contract.Index("fixed.Ptr", i, f.n)
	return &f.items[i]
}

func (f *Fixed[T]) Set(i int, v T) {
	contract.Index("fixed.Set", i, f.n)
	f.items[i] = v
}

// Slice returns a view of [start, end).
func (f *Fixed[T]) Slice(start, end int) []T {
	contract.Range("fixed.Slice", start, end, f.n)
	return f.items[start:end:end]
}

// Items returns a view of all elements.
func (f *Fixed[T]) Items() []T {
	return f.items[:f.n:f.n]
}

// Clear removes all elements.
func (f *Fixed[T]) Clear() {
	clear(f.items[:f.n])
	f.n = 0
}

// All yields index/element pairs front to back.
func (f *Fixed[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < f.n; i++ {
			if !yield(i, f.items[i]) {
				return
			}
		}
	}
}

// Backward yields index/element pairs back to front.
func (f *Fixed[T]) Backward() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := f.n - 1; i >= 0; i-- {
			if !yield(i, f.items[i]) {
				return
			}
		}
	}
}

// CopyFrom replaces the contents with src's elements. Only the first
// src.Len() slots are written. Elements implementing Cloner are copied via
// Clone. Copying f into itself does nothing.
func (f *Fixed[T]) CopyFrom(src *Fixed[T]) {
	if f == src {
		return
	}
	if src.n > len(f.items) {
		contract.Failf("fixed.CopyFrom", "source length %d exceeds capacity %d", src.n, len(f.items))
	}
	for i, v := range src.items[:src.n] {
		if c, ok := any(v).(Cloner[T]); ok {
			v = c.Clone()
		}
		f.items[i] = v
	}
	if src.n < f.n {
		clear(f.items[src.n:f.n])
	}
	f.n = src.n
}

// Index returns the index of the first element equal to v, or -1.
func Index[T comparable](f *Fixed[T], v T) int {
	for i, x := range f.Items() {
		if x == v {
			return i
		}
	}
	return -1
}

// Contains reports whether f holds v.
func Contains[T comparable](f *Fixed[T], v T) bool {
	return Index(f, v) >= 0
}
