package main

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/arena"
	"github.com/joshuapare/memkit/container/array"
	"github.com/joshuapare/memkit/container/fixed"
	"github.com/joshuapare/memkit/container/hashmap"
)

var (
	containersN    int
	containersSeed uint64
)

func init() {
	cmd := newContainersCmd()
	cmd.Flags().IntVarP(&containersN, "n", "n", 100000, "Number of elements")
	cmd.Flags().Uint64Var(&containersSeed, "seed", 1, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newContainersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "containers",
		Short: "Exercise the containers on scratch arenas and the Go heap",
		Long: `The containers command fills an array with random keys, sorts it
together with a parallel index array, builds a hash map from key to
index and looks every key up again. The workload runs once on scratch
arenas and once on the Go heap.

Example:
  memctl containers
  memctl containers -n 1000000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContainers()
		},
	}
}

// ContainersRun describes one pass of the workload.
type ContainersRun struct {
	Backend  string
	Elapsed  time.Duration
	MapCap   int
	Smallest []uint64
	Scratch  []arena.Stats `json:",omitempty"`
}

// ContainersReport is the containers command output.
type ContainersReport struct {
	N    int
	Runs []ContainersRun
}

func runContainers() error {
	if containersN <= 0 {
		return fmt.Errorf("-n must be positive")
	}

	pool, err := arena.NewPool(arena.PoolOptions{})
	if err != nil {
		return fmt.Errorf("failed to create scratch pool: %w", err)
	}
	defer pool.Close()

	report := ContainersReport{N: containersN}

	var scratchRun ContainersRun
	pool.With(func(keysScratch *arena.Scratch) {
		// The map gets its own slot so rewinding it leaves the arrays intact.
		pool.With(func(mapScratch *arena.Scratch) {
			scratchRun, err = containerWorkload("scratch", keysScratch.Allocator(), mapScratch.Allocator())
			scratchRun.Scratch = []arena.Stats{keysScratch.Arena().Stats(), mapScratch.Arena().Stats()}
		}, keysScratch.Allocator())
	})
	if err != nil {
		return err
	}
	report.Runs = append(report.Runs, scratchRun)

	heapRun, err := containerWorkload("heap", alloc.Heap(), alloc.Heap())
	if err != nil {
		return err
	}
	report.Runs = append(report.Runs, heapRun)

	if jsonOut {
		return printJSON(report)
	}
	printInfo("Container workload: %d elements\n", report.N)
	for _, run := range report.Runs {
		printInfo("  %-8s %v (map capacity %d)\n", run.Backend, run.Elapsed, run.MapCap)
		printVerbose("    smallest keys: %v\n", run.Smallest)
		for _, st := range run.Scratch {
			printInfo("    %s\n", st)
		}
	}
	return nil
}

func containerWorkload(backend string, arrays, maps alloc.Allocator) (ContainersRun, error) {
	start := time.Now()
	r := rand.New(rand.NewPCG(containersSeed, 0))

	keys := array.WithCapacity[uint64](arrays, containersN)
	idx := array.New[uint32](arrays)
	for i := range containersN {
		keys.Add(r.Uint64())
		idx.Add(uint32(i))
	}
	original := slices.Clone(keys.Items())

	array.Quicksort(keys.Items(), idx)
	if !slices.IsSorted(keys.Items()) {
		return ContainersRun{}, fmt.Errorf("%s: keys not sorted", backend)
	}

	m := hashmap.New[uint64, uint32](maps)
	for i, k := range keys.All() {
		m.Set(k, idx.At(i))
	}
	for i, k := range original {
		pos := m.Find(k)
		if pos == nil || original[*pos] != k {
			return ContainersRun{}, fmt.Errorf("%s: key %d (index %d) lost", backend, k, i)
		}
	}

	smallest := fixed.FromSlice(8, keys.Items())
	run := ContainersRun{
		Backend:  backend,
		Elapsed:  time.Since(start),
		MapCap:   m.Cap(),
		Smallest: slices.Clone(smallest.Items()),
	}
	m.Free()
	idx.Free()
	keys.Free()
	return run, nil
}
