package freelist

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// checkInvariants walks the committed range block by block and the free list
// node by node and verifies they agree.
func checkInvariants(fl *Allocator) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	freeInTiling := map[int]int{}
	inUse := 0
	prevFree := false
	for off := 0; off < len(fl.mem); {
		raw := int(fl.rawSize(off))
		size := max(raw, -raw)
		if size < minBlock || size%blockAlign != 0 || off+size > len(fl.mem) {
			return fmt.Errorf("bad block size %d at offset %d", raw, off)
		}
		if raw > 0 {
			if prevFree {
				return fmt.Errorf("adjacent free blocks at offset %d", off)
			}
			freeInTiling[off] = size
		} else {
			inUse += size
		}
		prevFree = raw > 0
		off += size
	}
	if inUse != fl.inUse {
		return fmt.Errorf("in-use accounting %d, tiling says %d", fl.inUse, inUse)
	}

	prev := nilOff
	seen := 0
	for off := fl.freeHead; off != nilOff; off = fl.next(off) {
		if _, ok := freeInTiling[off]; !ok {
			return fmt.Errorf("free list node %d is not a free block", off)
		}
		if fl.prev(off) != prev {
			return fmt.Errorf("node %d has prev %d, want %d", off, fl.prev(off), prev)
		}
		if prev != nilOff && off <= prev {
			return fmt.Errorf("free list out of address order at %d", off)
		}
		prev = off
		seen++
	}
	if seen != len(freeInTiling) {
		return fmt.Errorf("free list holds %d blocks, tiling has %d", seen, len(freeInTiling))
	}
	return nil
}

// TestAllocator_RandomOpsKeepInvariants performs random alloc, free, extend
// and realloc steps and validates the block layout after each.
func TestAllocator_RandomOpsKeepInvariants(t *testing.T) {
	fl := newTestAllocator(t, 16<<20)
	rng := rand.New(rand.NewPCG(42, 0))

	type live struct {
		b    []byte
		seed byte
	}
	var blocks []live
	for i := range 2000 {
		switch op := rng.IntN(10); {
		case op < 5 || len(blocks) == 0:
			b := fl.Alloc(1+rng.IntN(2048), 1<<rng.IntN(8))
			seed := byte(i)
			fillSeed(b, seed)
			blocks = append(blocks, live{b, seed})
		case op < 8:
			j := rng.IntN(len(blocks))
			require.True(t, hasSeed(blocks[j].b, blocks[j].seed), "step %d: block %d corrupted", i, j)
			fl.Free(blocks[j].b)
			blocks[j] = blocks[len(blocks)-1]
			blocks = blocks[:len(blocks)-1]
		default:
			j := rng.IntN(len(blocks))
			old := len(blocks[j].b)
			nb := fl.Realloc(blocks[j].b, 1+rng.IntN(4096), 0)
			require.True(t, hasSeed(nb[:min(old, len(nb))], blocks[j].seed), "step %d: realloc lost data", i)
			fillSeed(nb, blocks[j].seed)
			blocks[j].b = nb
		}
		require.NoError(t, checkInvariants(fl), "step %d", i)
	}

	for _, l := range blocks {
		fl.Free(l.b)
	}
	require.NoError(t, checkInvariants(fl))
	st := fl.Stats()
	require.Zero(t, st.InUse)
	require.Equal(t, 1, st.FreeBlocks)
}

func fillSeed(b []byte, seed byte) {
	for i := range b {
		b[i] = seed + byte(i)
	}
}

func hasSeed(b []byte, seed byte) bool {
	for i := range b {
		if b[i] != seed+byte(i) {
			return false
		}
	}
	return true
}

// Benchmark_Alloc_SmallBlocks benchmarks first fit with small blocks.
func Benchmark_Alloc_SmallBlocks(b *testing.B) {
	fl, err := New(Options{Reserve: 1 << 30})
	if err != nil {
		b.Fatal(err)
	}
	defer fl.Close()

	b.ReportAllocs()
	i := 0
	for b.Loop() {
		fl.Alloc(64+(i%64)*2, 0) // 64-190 bytes
		i++
		if i%10000 == 0 {
			fl.Reset()
		}
	}
	fl.Reset()
}

// Benchmark_AllocFree_Churn benchmarks a steady state of frees and reuses.
func Benchmark_AllocFree_Churn(b *testing.B) {
	fl, err := New(Options{Reserve: 1 << 30})
	if err != nil {
		b.Fatal(err)
	}
	defer fl.Close()

	rng := rand.New(rand.NewPCG(1, 1))
	blocks := make([][]byte, 256)
	for i := range blocks {
		blocks[i] = fl.Alloc(16+rng.IntN(1024), 0)
	}

	b.ReportAllocs()
	for b.Loop() {
		j := rng.IntN(len(blocks))
		fl.Free(blocks[j])
		blocks[j] = fl.Alloc(16+rng.IntN(1024), 0)
	}
	fl.Reset()
}
