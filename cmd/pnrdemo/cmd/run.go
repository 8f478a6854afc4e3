package cmd

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a fabric/netlist and run placement followed by routing",
	RunE:  runAll,
}

func init() {
	runCmd.Flags().StringVar(&heatmapPath, "heatmap", "", "write a CSV wire-usage heatmap to this path")
	rootCmd.AddCommand(runCmd)
}

func runAll(cmd *cobra.Command, args []string) error {
	dev, nl, _, err := doPlace()
	if err != nil {
		return err
	}
	_, err = doRoute(dev, nl)
	return err
}
