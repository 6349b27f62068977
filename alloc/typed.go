package alloc

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/joshuapare/memkit/internal/contract"
	"github.com/joshuapare/memkit/internal/sizes"
)

// Make returns n zeroed elements of T allocated from a (Heap() when unbound).
func Make[T any](a Allocator, n int) []T {
	if n < 0 {
		contract.Failf("alloc.Make", "negative length %d", n)
	}
	if n == 0 {
		return nil
	}
	a = a.OrHeap()
	if a.onGoHeap() {
		defaultHeap.countAlloc(n * sizeOf[T]())
		return make([]T, n)
	}
	if sizeOf[T]() == 0 {
		return make([]T, n)
	}
	requirePointerFree[T]("alloc.Make")
	b := a.Alloc(byteSize[T]("alloc.Make", n), alignOf[T]())
	return fromBytes[T](b, n)
}

// Resize returns storage for n elements holding the first min(len(s), n)
// elements of s. s must be storage previously returned by Make or Resize on
// the same allocator, with len(s) equal to its capacity. Growth tries an
// in-place Extend before falling back to Realloc; new elements are zero.
func Resize[T any](a Allocator, s []T, n int) []T {
	switch {
	case n < 0:
		contract.Failf("alloc.Resize", "negative length %d", n)
	case n == len(s):
		return s
	case len(s) == 0:
		return Make[T](a, n)
	case n == 0:
		Release(a, s)
		return nil
	}

	a = a.OrHeap()
	if a.onGoHeap() {
		defaultHeap.reallocs.Add(1)
		defaultHeap.countAlloc(n * sizeOf[T]())
	}
	if a.onGoHeap() || sizeOf[T]() == 0 {
		ns := make([]T, n)
		copy(ns, s)
		return ns
	}
	requirePointerFree[T]("alloc.Resize")

	old := toBytes(s)
	size := byteSize[T]("alloc.Resize", n)
	if n > len(s) {
		if b := a.Extend(old, size); b != nil {
			return fromBytes[T](b, n)
		}
	}
	return fromBytes[T](a.Realloc(old, size, alignOf[T]()), n)
}

// Release returns s to a.
func Release[T any](a Allocator, s []T) {
	if len(s) == 0 {
		return
	}
	a = a.OrHeap()
	if a.onGoHeap() {
		defaultHeap.frees.Add(1)
		return
	}
	if sizeOf[T]() == 0 {
		return
	}
	a.Free(toBytes(s))
}

// PointerFree reports whether values of T can live in memory the garbage
// collector does not scan.
func PointerFree[T any]() bool {
	return pointerFree(reflect.TypeFor[T]())
}

func (a Allocator) onGoHeap() bool {
	_, ok := a.impl.(*heap)
	return ok
}

func sizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

func alignOf[T any]() int {
	var zero T
	return int(unsafe.Alignof(zero))
}

func byteSize[T any](op string, n int) int {
	size, err := sizes.Bytes(n, sizeOf[T]())
	if err != nil {
		contract.Failf(op, "%v", err)
	}
	return size
}

func requirePointerFree[T any](op string) {
	if !PointerFree[T]() {
		contract.Failf(op, "%v holds pointers and cannot be stored outside the Go heap",
			reflect.TypeFor[T]())
	}
}

func fromBytes[T any](b []byte, n int) []T {
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

func toBytes[T any](s []T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*sizeOf[T]())
}

var pointerFreeCache sync.Map // reflect.Type -> bool

func pointerFree(t reflect.Type) bool {
	if v, ok := pointerFreeCache.Load(t); ok {
		return v.(bool)
	}
	free := scanPointerFree(t)
	pointerFreeCache.Store(t, free)
	return free
}

func scanPointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || scanPointerFree(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if !scanPointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
