package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/freelist"
)

var (
	freelistMax     string
	freelistOps     int
	freelistMaxSize int
	freelistSeed    uint64
)

func init() {
	cmd := newFreelistCmd()
	cmd.Flags().StringVar(&freelistMax, "max", "256MiB", "Address space to reserve")
	cmd.Flags().IntVar(&freelistOps, "ops", 100000, "Number of alloc/free operations")
	cmd.Flags().IntVar(&freelistMaxSize, "max-size", 4096, "Maximum allocation size in bytes")
	cmd.Flags().Uint64Var(&freelistSeed, "seed", 1, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newFreelistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "freelist",
		Short: "Run a random alloc/free workload on the free-list allocator",
		Long: `The freelist command runs a seeded mix of allocations and frees,
prints the allocator state at peak, then frees everything and checks
that the committed range coalesces back into a single free block.

Example:
  memctl freelist
  memctl freelist --ops 1000000 --max-size 65536 --seed 7
  memctl freelist --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFreelist()
		},
	}
}

// FreelistReport is the freelist command output.
type FreelistReport struct {
	Ops       int
	PeakLive  int
	AtPeak    freelist.Stats
	AfterFree freelist.Stats
}

func runFreelist() error {
	reserve, err := parseSize("max", freelistMax)
	if err != nil {
		return err
	}
	if freelistOps < 0 || freelistMaxSize <= 0 {
		return fmt.Errorf("--ops must be non-negative and --max-size positive")
	}

	fl, err := freelist.New(freelist.Options{Reserve: reserve, Name: "memctl"})
	if err != nil {
		return fmt.Errorf("failed to create allocator: %w", err)
	}
	defer fl.Close()

	r := rand.New(rand.NewPCG(freelistSeed, 0))
	report := FreelistReport{Ops: freelistOps}
	var live [][]byte
	for range freelistOps {
		// Allocate more than free so the heap grows over the run.
		if len(live) == 0 || r.IntN(10) < 6 {
			live = append(live, fl.Alloc(1+r.IntN(freelistMaxSize), 1<<r.IntN(7)))
			if len(live) > report.PeakLive {
				report.PeakLive = len(live)
				report.AtPeak = fl.Stats()
			}
			continue
		}
		i := r.IntN(len(live))
		fl.Free(live[i])
		live[i] = live[len(live)-1]
		live = live[:len(live)-1]
	}
	printVerbose("freeing %d live blocks\n", len(live))
	for _, b := range live {
		fl.Free(b)
	}
	report.AfterFree = fl.Stats()

	if jsonOut {
		return printJSON(report)
	}
	printInfo("Free-list workload: %d operations, peak %d live blocks\n", report.Ops, report.PeakLive)
	printInfo("  at peak:    %s\n", report.AtPeak)
	printInfo("  after free: %s\n", report.AfterFree)
	if report.AfterFree.InUse != 0 || report.AfterFree.FreeBlocks > 1 {
		return fmt.Errorf("allocator did not coalesce: %d bytes in use, %d free blocks",
			report.AfterFree.InUse, report.AfterFree.FreeBlocks)
	}
	return nil
}
