package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/arena"
)

var (
	arenaReserve string
	arenaAllocs  int
	arenaSize    int
	arenaCycles  int
	arenaSeed    uint64
)

func init() {
	cmd := newArenaCmd()
	cmd.Flags().StringVar(&arenaReserve, "reserve", "64MiB", "Address space to reserve")
	cmd.Flags().IntVar(&arenaAllocs, "allocs", 10000, "Allocations per cycle")
	cmd.Flags().IntVar(&arenaSize, "size", 256, "Maximum allocation size in bytes")
	cmd.Flags().IntVar(&arenaCycles, "cycles", 4, "Mark/reset cycles")
	cmd.Flags().Uint64Var(&arenaSeed, "seed", 1, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newArenaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "arena",
		Short: "Run a bump allocation workload on an arena",
		Long: `The arena command reserves an arena, runs several cycles of random
allocations each followed by a reset to the cycle's mark, and prints
the arena statistics.

Example:
  memctl arena
  memctl arena --reserve 1GiB --allocs 100000 --size 4096
  memctl arena --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArena()
		},
	}
}

// ArenaReport is the arena command output.
type ArenaReport struct {
	Cycles     int
	AllocBytes int
	Stats      arena.Stats
}

func runArena() error {
	reserve, err := parseSize("reserve", arenaReserve)
	if err != nil {
		return err
	}
	if arenaAllocs < 0 || arenaSize <= 0 || arenaCycles < 0 {
		return fmt.Errorf("--allocs and --cycles must be non-negative and --size positive")
	}

	a, err := arena.New(arena.Options{Reserve: reserve, Name: "memctl"})
	if err != nil {
		return fmt.Errorf("failed to create arena: %w", err)
	}
	defer a.Release()

	r := rand.New(rand.NewPCG(arenaSeed, 0))
	report := ArenaReport{Cycles: arenaCycles}
	for c := range arenaCycles {
		mark := a.Mark()
		for range arenaAllocs {
			n := 1 + r.IntN(arenaSize)
			a.Alloc(n, 1<<r.IntN(5))
			report.AllocBytes += n
		}
		printVerbose("cycle %d: cursor %s\n", c, bytesStr(a.Mark()))
		a.Reset(mark)
	}
	report.Stats = a.Stats()

	if jsonOut {
		return printJSON(report)
	}
	printInfo("Arena workload: %d cycles x %d allocations (%s requested)\n",
		report.Cycles, arenaAllocs, bytesStr(report.AllocBytes))
	printInfo("  %s\n", report.Stats)
	return nil
}
