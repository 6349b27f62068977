package arena

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/internal/testutil"
	"github.com/joshuapare/memkit/internal/vm"
)

func newTestArena(t testing.TB, reserve int) *Arena {
	t.Helper()
	a, err := New(Options{Reserve: reserve, CommitStep: vm.PageSize(), Name: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Release() })
	return a
}

func addr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// TestArena_BumpAllocation tests sequential, aligned, non-overlapping allocations.
func TestArena_BumpAllocation(t *testing.T) {
	a := newTestArena(t, 1<<20)

	var prevEnd uintptr
	for i, align := range []int{1, 8, 16, 64, 256, 4} {
		b := a.Alloc(10+i, align)
		require.Len(t, b, 10+i)
		assert.Zero(t, addr(b)%uintptr(align), "alignment %d", align)
		assert.GreaterOrEqual(t, addr(b), prevEnd, "allocations must not overlap")
		prevEnd = addr(b) + uintptr(len(b))
	}
	assert.Equal(t, int64(6), a.Stats().Allocs)
}

// TestArena_CommitsLazily tests that pages are committed only as the cursor advances.
func TestArena_CommitsLazily(t *testing.T) {
	page := vm.PageSize()
	a := newTestArena(t, 16*page)
	assert.Zero(t, a.Stats().Committed)

	a.Alloc(page+1, 1)
	st := a.Stats()
	assert.Equal(t, 2*page, st.Committed)
	assert.Equal(t, 16*page, st.Reserved)
}

// TestArena_ExhaustionIsFatal tests the reserve limit.
func TestArena_ExhaustionIsFatal(t *testing.T) {
	page := vm.PageSize()
	a := newTestArena(t, page)
	a.Alloc(page-8, 1)

	v := testutil.RequireViolation(t, func() { a.Alloc(16, 1) })
	assert.Contains(t, v.Reason, "exhausted")
}

// TestArena_ResetRewinds tests O(1) rewinding to a restore point.
func TestArena_ResetRewinds(t *testing.T) {
	a := newTestArena(t, 1<<20)
	a.Alloc(100, 8)
	mark := a.Mark()

	first := a.Alloc(64, 8)
	testutil.Pattern(first, 1)
	a.Reset(mark)
	assert.Equal(t, mark, a.Mark())

	again := a.Alloc(64, 8)
	assert.Equal(t, addr(first), addr(again), "reset should hand out the same memory")
	for _, c := range again {
		require.Zero(t, c, "allocations are zeroed even after reset")
	}
	assert.Equal(t, int64(1), a.Stats().Resets)
	assert.Equal(t, int(addr(first)-a.base)+64, a.Stats().Peak)
}

// TestArena_ResetBeyondCursorIsFatal tests restore point validation.
func TestArena_ResetBeyondCursorIsFatal(t *testing.T) {
	a := newTestArena(t, 1<<20)
	a.Alloc(8, 8)
	testutil.RequireViolation(t, func() { a.Reset(9) })
	testutil.RequireViolation(t, func() { a.Reset(-1) })
}

// TestArena_ExtendLastAllocation tests in-place growth of the newest block only.
func TestArena_ExtendLastAllocation(t *testing.T) {
	a := newTestArena(t, 1<<20)

	first := a.Alloc(16, 8)
	testutil.Pattern(first, 9)
	grown := a.Extend(first, 48)
	require.NotNil(t, grown)
	assert.Equal(t, addr(first), addr(grown))
	assert.True(t, testutil.HasPattern(grown[:16], 9))
	assert.Equal(t, 48, a.Mark()-int(addr(first)-a.base))

	second := a.Alloc(8, 8)
	assert.Nil(t, a.Extend(grown, 64), "only the most recent allocation can grow")
	assert.NotNil(t, a.Extend(second, 32))
}

// TestArena_Realloc tests the move fallback.
func TestArena_Realloc(t *testing.T) {
	a := newTestArena(t, 1<<20)
	first := a.Alloc(16, 8)
	testutil.Pattern(first, 4)
	a.Alloc(8, 8)

	moved := a.Realloc(first, 32, 8)
	assert.NotEqual(t, addr(first), addr(moved))
	assert.True(t, testutil.HasPattern(moved[:16], 4))
}

// TestArena_AllocatorDispatch tests the capability wrapper.
func TestArena_AllocatorDispatch(t *testing.T) {
	a := newTestArena(t, 1<<20)
	al := a.Allocator()
	assert.True(t, al == a.Allocator())
	assert.Equal(t, "arena.test", al.String())

	mark := a.Mark()
	b := al.Alloc(32, 16)
	al.Free(b) // no-op
	assert.Equal(t, mark+32, a.Mark())
	al.Reset(mark)
	assert.Equal(t, mark, a.Mark())

	s := alloc.Make[uint64](al, 100)
	s = alloc.Resize(al, s, 200)
	assert.Len(t, s, 200)
}

// TestArena_UseAfterRelease tests that released arenas reject use.
func TestArena_UseAfterRelease(t *testing.T) {
	a, err := New(Options{Reserve: 1 << 16})
	require.NoError(t, err)
	require.NoError(t, a.Release())
	require.NoError(t, a.Release())
	testutil.RequireViolation(t, func() { a.Alloc(1, 1) })
}

// TestArena_Trim tests returning committed pages.
func TestArena_Trim(t *testing.T) {
	page := vm.PageSize()
	a := newTestArena(t, 64*page)
	a.Alloc(32*page, 1)
	a.Reset(0)
	require.NoError(t, a.Trim())
	assert.Equal(t, page, a.Stats().Committed)

	b := a.Alloc(8*page, 1)
	assert.Len(t, b, 8*page)
}

// TestArena_Buffer tests the fixed-buffer variant.
func TestArena_Buffer(t *testing.T) {
	a := NewBuffer(make([]byte, 128))
	a.Alloc(100, 1)
	testutil.RequireViolation(t, func() { a.Alloc(64, 1) })
	a.Reset(0)
	assert.Len(t, a.Alloc(128, 1), 128)
	require.NoError(t, a.Trim())
}

func TestStats_String(t *testing.T) {
	a := newTestArena(t, 1<<20)
	a.Alloc(2048, 8)
	s := a.Stats().String()
	assert.True(t, strings.HasPrefix(s, "test: used=2.0 KiB"), s)
}

// TestArena_CommitLogsWithCurrentLogger tests that an arena built before
// logging is configured still logs its commits.
func TestArena_CommitLogsWithCurrentLogger(t *testing.T) {
	a := newTestArena(t, 1<<20)

	var buf bytes.Buffer
	logger.Init(logger.Options{Enabled: true, Writer: &buf, Level: slog.LevelDebug})
	t.Cleanup(func() { logger.Init(logger.Options{}) })

	a.Alloc(64, 0)
	assert.Contains(t, buf.String(), "msg=commit")
	assert.Contains(t, buf.String(), "component=arena")
	assert.Contains(t, buf.String(), "arena=test")
}
