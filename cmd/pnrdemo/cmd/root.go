package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose     bool
	fixturePath string
	gridWidth   int
	gridHeight  int
	numCells    int
	seed        int64
	budgetBased bool
)

var rootCmd = &cobra.Command{
	Use:   "pnrdemo",
	Short: "FPGA place-and-route demo over a synthetic fabric",
	Long: `pnrdemo builds a synthetic LUT4 fabric and a synthetic netlist, then
runs the placer and/or router against it and prints a progress summary.

There is no vendor bitstream or device-file reader here: the fabric is
either generated as a square LUT4 grid sized to fit --cells cells, or
loaded from a compact textual fixture file via --fixture.

Examples:
  pnrdemo run --cells 64 -v
  pnrdemo place --cells 128 --fixture testdata/medium.fx
  pnrdemo route --cells 64 --budget-based`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose progress output")
	rootCmd.PersistentFlags().StringVarP(&fixturePath, "fixture", "f", "", "load the fabric from a textual fixture file instead of generating one")
	rootCmd.PersistentFlags().IntVar(&gridWidth, "width", 0, "generated grid width (0 = auto-sized to --cells)")
	rootCmd.PersistentFlags().IntVar(&gridHeight, "height", 0, "generated grid height (0 = same as width)")
	rootCmd.PersistentFlags().IntVarP(&numCells, "cells", "c", 32, "number of LUT4 cells in the synthetic netlist")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 1, "RNG seed for netlist generation, placement, and routing")
	rootCmd.PersistentFlags().BoolVar(&budgetBased, "budget-based", false, "use budget-based timing cost instead of direct criticality")
}
