package array

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/arena"
	"github.com/joshuapare/memkit/freelist"
	"github.com/joshuapare/memkit/internal/testutil"
)

func newTestArena(t testing.TB) *arena.Arena {
	t.Helper()
	a, err := arena.New(arena.Options{Reserve: 8 << 20, Name: "array-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Release() })
	return a
}

// requireInvariant checks 0 <= Len <= Cap.
func requireInvariant[T any](t *testing.T, a *Array[T]) {
	t.Helper()
	require.GreaterOrEqual(t, a.Len(), 0)
	require.LessOrEqual(t, a.Len(), a.Cap())
}

// TestArray_AddThree covers appending to an empty array.
func TestArray_AddThree(t *testing.T) {
	var a Array[int]
	assert.Equal(t, 0, a.Add(1))
	assert.Equal(t, 1, a.Add(2))
	assert.Equal(t, 2, a.Add(3))

	assert.Equal(t, 3, a.Len())
	assert.GreaterOrEqual(t, a.Cap(), 3)
	assert.Equal(t, []int{1, 2, 3}, a.Items())
	assert.True(t, a.Allocator() == alloc.Heap(), "zero value binds to the heap on growth")
}

func TestArray_GrowthPolicy(t *testing.T) {
	a := New[int](alloc.Heap())
	a.Grow(5)
	assert.Equal(t, 5, a.Cap())

	a.Grow(3)
	assert.Equal(t, 5, a.Cap(), "growing within capacity is a no-op")

	a.Resize(5)
	a.Grow(1)
	assert.Equal(t, 10, a.Cap(), "capacity doubles")

	a.Grow(30)
	assert.Equal(t, 35, a.Cap(), "large requests grow to exactly the need")
}

// TestArray_GrowthPreservesOrder compares one-at-a-time and bulk insertion.
func TestArray_GrowthPreservesOrder(t *testing.T) {
	ar := newTestArena(t)
	one := New[uint32](ar.Allocator())
	bulk := New[uint32](ar.Allocator())

	var want []uint32
	for i := range uint32(1000) {
		want = append(want, i*7)
		one.Add(i * 7)
		requireInvariant(t, one)
	}
	bulk.AddSlice(want...)

	assert.Equal(t, want, one.Items())
	assert.Equal(t, one.Items(), bulk.Items())
}

func TestArray_Insert(t *testing.T) {
	a := From(alloc.Heap(), 1, 2, 4)
	a.Insert(2, 3)
	a.Insert(0, 0)
	a.Insert(a.Len(), 5)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, a.Items())

	v := testutil.RequireViolation(t, func() { a.Insert(7, 9) })
	assert.Equal(t, "array.Insert", v.Op)
}

// TestArray_Remove checks ordered removal at every index.
func TestArray_Remove(t *testing.T) {
	orig := []int{10, 11, 12, 13, 14, 15}
	for i := range orig {
		a := From(alloc.Heap(), orig...)
		got := a.Remove(i)
		assert.Equal(t, orig[i], got)
		assert.Equal(t, slices.Delete(slices.Clone(orig), i, i+1), a.Items())
		requireInvariant(t, a)
	}
}

// TestArray_RemoveUnsorted checks that the multiset loses exactly one element.
func TestArray_RemoveUnsorted(t *testing.T) {
	orig := []int{5, 3, 5, 8, 1}
	for i := range orig {
		a := From(alloc.Heap(), orig...)
		a.RemoveUnsorted(i)

		want := slices.Delete(slices.Clone(orig), i, i+1)
		got := slices.Clone(a.Items())
		slices.Sort(want)
		slices.Sort(got)
		assert.Equal(t, want, got)
	}

	a := From(alloc.Heap(), 1, 2, 3, 4)
	a.RemoveUnsorted(0)
	assert.Equal(t, []int{4, 2, 3}, a.Items(), "last element fills the hole")
}

func TestArray_Replace(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		values     []int
		want       []int
	}{
		{"longer", 1, 3, []int{9, 9, 9, 9}, []int{0, 9, 9, 9, 9, 3, 4}},
		{"shorter", 1, 4, []int{7}, []int{0, 7, 4}},
		{"same length", 2, 4, []int{8, 8}, []int{0, 1, 8, 8, 4}},
		{"pure insert", 5, 5, []int{5, 6}, []int{0, 1, 2, 3, 4, 5, 6}},
		{"pure delete", 0, 2, nil, []int{2, 3, 4}},
		{"everything", 0, 5, []int{1}, []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ar := newTestArena(t)
			a := From(ar.Allocator(), 0, 1, 2, 3, 4)
			a.Replace(tt.start, tt.end, tt.values...)
			assert.Equal(t, tt.want, a.Items())
			requireInvariant(t, a)
		})
	}

	a := From(alloc.Heap(), 0, 1, 2)
	testutil.RequireViolation(t, func() { a.Replace(2, 1) })
	testutil.RequireViolation(t, func() { a.Replace(0, 4) })
}

func TestArray_SetGrow(t *testing.T) {
	a := From(alloc.Heap(), 1, 2)
	a.SetGrow(5, 6)
	assert.Equal(t, []int{1, 2, 0, 0, 0, 6}, a.Items())
	a.SetGrow(0, 9)
	assert.Equal(t, 9, a.At(0))
	assert.Equal(t, 6, a.Len())
}

func TestArray_ResizeZeroesReusedSlots(t *testing.T) {
	a := From(alloc.Heap(), 1, 2, 3)
	a.Resize(1)
	a.Resize(3)
	assert.Equal(t, []int{1, 0, 0}, a.Items())
}

func TestArray_Access(t *testing.T) {
	a := From(alloc.Heap(), 1, 2, 3)
	*a.Ptr(1) = 20
	a.Set(2, 30)
	assert.Equal(t, 20, a.At(1))
	assert.Equal(t, 30, *a.Tail())

	assert.Equal(t, []int{20, 30}, a.Slice(1, 3))
	assert.Len(t, a.Slice(3, 3), 0)

	for _, fn := range []func(){
		func() { a.At(3) },
		func() { a.At(-1) },
		func() { a.Set(3, 0) },
		func() { a.Ptr(5) },
		func() { a.Slice(2, 4) },
		func() { a.Slice(2, 1) },
	} {
		testutil.RequireViolation(t, fn)
	}
}

func TestArray_PopAndTail(t *testing.T) {
	a := From(alloc.Heap(), 1, 2)
	assert.Equal(t, 2, a.Pop())
	assert.Equal(t, 1, a.Pop())
	assert.Nil(t, a.Tail())
	testutil.RequireViolation(t, func() { a.Pop() })
}

func TestArray_Iterators(t *testing.T) {
	a := From(alloc.Heap(), "a", "b", "c")

	var fwd []string
	for _, v := range a.All() {
		fwd = append(fwd, v)
	}
	assert.Equal(t, []string{"a", "b", "c"}, fwd)

	var idx []int
	for i := range a.Backward() {
		idx = append(idx, i)
	}
	assert.Equal(t, []int{2, 1, 0}, idx)

	// Early exit and restart.
	n := 0
	for range a.All() {
		n++
		break
	}
	for range a.All() {
		n++
	}
	assert.Equal(t, 4, n)
}

func TestArray_Search(t *testing.T) {
	type entry struct {
		id   int
		name string
	}
	a := From(alloc.Heap(), entry{1, "one"}, entry{2, "two"}, entry{3, "three"})

	assert.Equal(t, 1, IndexBy(a, func(e entry) string { return e.name }, "two"))
	assert.Equal(t, -1, IndexBy(a, func(e entry) int { return e.id }, 7))
	assert.Equal(t, 2, a.IndexFunc(func(e entry) bool { return e.id > 2 }))

	nums := From(alloc.Heap(), 4, 5, 6)
	assert.Equal(t, 2, Index(nums, 6))
	assert.True(t, Contains(nums, 5))
	assert.False(t, Contains(nums, 7))
}

func TestArray_CopyClearFree(t *testing.T) {
	ar := newTestArena(t)
	a := From(ar.Allocator(), 1, 2, 3, 4)
	a.CopyFrom([]int{7, 8})
	assert.Equal(t, []int{7, 8}, a.Items())

	c := a.Cap()
	a.Clear()
	assert.Zero(t, a.Len())
	assert.Equal(t, c, a.Cap(), "clear keeps storage")

	a.Free()
	assert.Zero(t, a.Cap())
	a.Add(1)
	assert.Equal(t, []int{1}, a.Items(), "a freed array is reusable")
}

// TestArray_RejectsPointersOffHeap covers element types the arena cannot hold.
func TestArray_RejectsPointersOffHeap(t *testing.T) {
	ar := newTestArena(t)
	a := New[*int](ar.Allocator())
	testutil.RequireViolation(t, func() { a.Add(nil) })
}

func BenchmarkArray_Add(b *testing.B) {
	ar, err := arena.New(arena.Options{Reserve: 1 << 30})
	require.NoError(b, err)
	defer ar.Release()

	b.ReportAllocs()
	for b.Loop() {
		mark := ar.Mark()
		a := New[uint64](ar.Allocator())
		for i := range uint64(1024) {
			a.Add(i)
		}
		ar.Reset(mark)
	}
}

func newTestFreelist(t testing.TB) *freelist.Allocator {
	t.Helper()
	fl, err := freelist.New(freelist.Options{Reserve: 8 << 20, Name: "array-test"})
	require.NoError(t, err)
	t.Cleanup(func() {
		fl.Reset()
		_ = fl.Close()
	})
	return fl
}

// TestArray_AddSliceOfItself tests self-append when growth has to move the
// storage and the old block is freed.
func TestArray_AddSliceOfItself(t *testing.T) {
	fl := newTestFreelist(t)
	a := From(fl.Allocator(), 1, 2, 3, 4)
	fl.Alloc(64, 0) // blocks in-place growth
	old := &a.Items()[0]

	a.AddSlice(a.Items()...)
	assert.Equal(t, []int{1, 2, 3, 4, 1, 2, 3, 4}, a.Items())
	assert.NotSame(t, old, &a.Items()[0], "storage moved")

	a.AddSlice(a.Slice(6, 8)...)
	assert.Equal(t, []int{1, 2, 3, 4, 1, 2, 3, 4, 3, 4}, a.Items())
}

// TestArray_ReplaceWithItself tests splicing a view of the same array.
func TestArray_ReplaceWithItself(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		from, to   int
		want       []int
	}{
		{"grow and move", 1, 2, 0, 5, []int{0, 0, 1, 2, 3, 4, 2, 3, 4}},
		{"grow in place", 4, 4, 0, 2, []int{0, 1, 2, 3, 0, 1, 4}},
		{"shrink", 0, 4, 3, 5, []int{3, 4, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fl := newTestFreelist(t)
			a := WithCapacity[int](fl.Allocator(), 8)
			a.AddSlice(0, 1, 2, 3, 4)
			fl.Alloc(64, 0)

			a.Replace(tt.start, tt.end, a.Slice(tt.from, tt.to)...)
			assert.Equal(t, tt.want, a.Items())
		})
	}
}

func TestArray_CopyFromItself(t *testing.T) {
	fl := newTestFreelist(t)
	a := From(fl.Allocator(), 1, 2, 3, 4)
	a.CopyFrom(a.Slice(2, 4))
	assert.Equal(t, []int{3, 4}, a.Items())
}

// TestArray_FreelistBacked grows, shrinks and frees arrays interleaved with
// other blocks on the free-list allocator.
func TestArray_FreelistBacked(t *testing.T) {
	fl := newTestFreelist(t)
	a := New[uint64](fl.Allocator())
	b := New[uint64](fl.Allocator())
	for i := range uint64(5000) {
		a.Add(i)
		b.Add(i * 3)
	}
	for i := range 5000 {
		require.Equal(t, uint64(i), a.At(i))
		require.Equal(t, uint64(i*3), b.At(i))
	}

	a.Replace(0, 4000)
	assert.Equal(t, uint64(4000), a.At(0))

	a.Free()
	b.Free()
	assert.Zero(t, fl.Stats().InUse)
}
