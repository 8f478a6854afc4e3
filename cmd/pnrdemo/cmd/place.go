package cmd

import (
	"fmt"

	"github.com/fabricpnr/corepnr/pkg/fabric/simfabric"
	"github.com/fabricpnr/corepnr/pkg/netlist"
	"github.com/fabricpnr/corepnr/pkg/place"
	"github.com/spf13/cobra"
)

var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Generate a fabric/netlist and run placement only",
	RunE:  runPlace,
}

func init() {
	rootCmd.AddCommand(placeCmd)
}

func runPlace(cmd *cobra.Command, args []string) error {
	_, _, _, err := doPlace()
	return err
}

// doPlace builds a device/netlist pair, runs Placer.Place, and returns
// everything route.go and run.go need to continue without regenerating
// the design.
func doPlace() (dev *simfabric.Device, nl *netlist.MemNetlist, placer *place.Placer, err error) {
	d, err := buildDevice()
	if err != nil {
		return nil, nil, nil, err
	}
	n, err := genNetlist(d, numCells, seed)
	if err != nil {
		return nil, nil, nil, err
	}
	oracle := buildOracle(d, n)

	cfg := place.DefaultConfig()
	cfg.Seed = seed
	cfg.BudgetBased = budgetBased
	cfg.SlackRedistIter = 5
	cfg.Logger = cobraLogger{verbose: verbose}

	p, err := place.NewPlacer(d, n, oracle, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pnrdemo: %w", err)
	}
	if err := p.Place(false); err != nil {
		return nil, nil, nil, fmt.Errorf("pnrdemo: placement failed: %w", err)
	}

	wirelen, timingCost, iters := p.Totals()
	fmt.Printf("placement: %d cells, %d iterations, wirelen=%d timing=%.1f\n", numCells, iters, wirelen, timingCost)

	return d, n, p, nil
}
