package cmd

import (
	"fmt"
	"os"

	"github.com/fabricpnr/corepnr/pkg/fabric/simfabric"
	"github.com/fabricpnr/corepnr/pkg/netlist"
	"github.com/fabricpnr/corepnr/pkg/route"
	"github.com/spf13/cobra"
)

var heatmapPath string

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Generate a fabric/netlist, place it, then route it",
	RunE:  runRoute,
}

func init() {
	routeCmd.Flags().StringVar(&heatmapPath, "heatmap", "", "write a CSV wire-usage heatmap to this path")
	rootCmd.AddCommand(routeCmd)
}

func runRoute(cmd *cobra.Command, args []string) error {
	dev, nl, _, err := doPlace()
	if err != nil {
		return err
	}
	_, err = doRoute(dev, nl)
	return err
}

// doRoute builds a Router over an already-placed device/netlist and runs
// the negotiated-congestion loop to completion, printing a congestion
// summary and (if --heatmap is set) a CSV wire-usage grid.
func doRoute(dev *simfabric.Device, nl *netlist.MemNetlist) (*route.Router, error) {
	cfg := route.DefaultConfig()
	cfg.Seed = seed

	r, err := route.NewRouter(dev, nl, cfg)
	if err != nil {
		return nil, fmt.Errorf("pnrdemo: %w", err)
	}
	if err := r.Run(); err != nil {
		return nil, fmt.Errorf("pnrdemo: routing failed: %w", err)
	}

	wireUse, overused, overuse, archFail := r.Totals()
	fmt.Printf("routing: %d iterations, wire_use=%d overused_wires=%d overuse=%d arch_fail=%d\n",
		r.Iterations, wireUse, overused, overuse, archFail)

	if heatmapPath != "" {
		f, err := os.Create(heatmapPath)
		if err != nil {
			return nil, fmt.Errorf("pnrdemo: %w", err)
		}
		defer f.Close()
		if err := r.WriteHeatmap(f, false); err != nil {
			return nil, fmt.Errorf("pnrdemo: writing heatmap: %w", err)
		}
	}

	return r, nil
}
