package cmd

import (
	"fmt"
	"math"

	"github.com/fabricpnr/corepnr/pkg/fabric"
	"github.com/fabricpnr/corepnr/pkg/fabric/simfabric"
	"github.com/fabricpnr/corepnr/pkg/netlist"
	"github.com/fabricpnr/corepnr/pkg/timing"
)

// lutType is the single site type every synthetic netlist this demo
// generates targets; a real vendor architecture would carry many bel
// types, but one 4-input/1-output combinational cell is enough to
// exercise the placer and router end to end.
const lutType = "LUT4"

var lutPins = simfabric.BelTypeSpec{
	Name:    lutType,
	Inputs:  []string{"I0", "I1", "I2", "I3"},
	Outputs: []string{"O"},
}

// buildDevice loads a device from --fixture if given, or else generates
// a square LUT4 grid just large enough for --cells cells plus headroom
// for the placer to move things around in.
func buildDevice() (*simfabric.Device, error) {
	if fixturePath != "" {
		parser, err := simfabric.NewFixtureParser()
		if err != nil {
			return nil, fmt.Errorf("pnrdemo: %w", err)
		}
		dev, err := parser.ParseFile(fixturePath)
		if err != nil {
			return nil, fmt.Errorf("pnrdemo: %w", err)
		}
		return dev, nil
	}

	side := gridWidth
	if side == 0 {
		side = int(math.Ceil(math.Sqrt(float64(numCells) * 1.5)))
		if side < 2 {
			side = 2
		}
	}
	height := side
	if gridHeight != 0 {
		height = gridHeight
	}
	return simfabric.NewGrid(simfabric.Config{
		Width:  side,
		Height: height,
		Types:  []simfabric.BelTypeSpec{lutPins},
	}), nil
}

// genNetlist builds a synthetic design of numCells LUT4 cells wired in a
// chain (cell i's output drives cell i+1's I0) plus a handful of extra
// fan-out edges derived deterministically from seed, so the placer and
// router both have real wirelength/congestion pressure to resolve
// instead of a trivial single-fanout chain.
func genNetlist(dev *simfabric.Device, numCells int, seed int64) (*netlist.MemNetlist, error) {
	available := 0
	for _, b := range dev.Bels() {
		if dev.BelType(b) == lutType {
			available++
		}
	}
	if numCells > available {
		return nil, fmt.Errorf("pnrdemo: requested %d cells but the device only has %d %s bels; pass a larger --width/--height or a bigger --fixture", numCells, available, lutType)
	}

	nl := netlist.NewMemNetlist()
	for i := 0; i < numCells; i++ {
		nl.AddCell(fabric.CellId(i), lutType)
	}

	rng := fabric.NewDeterministicRNG(seed)
	netID := fabric.NetId(0)
	for i := 0; i < numCells; i++ {
		users := []netlist.UserPin{}
		if i+1 < numCells {
			users = append(users, netlist.UserPin{Cell: fabric.CellId(i + 1), Port: "I0"})
		}
		extra := rng.Intn(3)
		for k := 0; k < extra; k++ {
			target := fabric.CellId(rng.Intn(numCells))
			if int(target) == i {
				continue
			}
			port := []string{"I1", "I2", "I3"}[rng.Intn(3)]
			users = append(users, netlist.UserPin{Cell: target, Port: port})
		}
		if len(users) == 0 {
			continue
		}
		nl.AddNet(netID, netlist.Driver{Cell: fabric.CellId(i), Port: "O"}, users)
		netID++
	}
	return nl, nil
}

// buildOracle wires a timing.ManhattanEstimator, wrapped in a
// timing.BudgetOracle with a per-arc budget of twice the predicted delay plus one
// when --budget-based is set (spec's BudgetBased timing-cost variant).
func buildOracle(dev fabric.Device, nl *netlist.MemNetlist) timing.Oracle {
	base := timing.NewManhattanEstimator(dev)
	if !budgetBased {
		return base
	}
	bo := timing.NewBudgetOracle(base)
	for _, id := range nl.Nets() {
		n := nl.Net(id)
		budgets := make([]timing.Budget, len(n.Users))
		for i := range n.Users {
			budgets[i] = timing.Budget{DelayBudget: base.PredictDelay(id, i).Raw*2 + 1}
		}
		bo.SetBudget(id, budgets)
	}
	return bo
}

type cobraLogger struct{ verbose bool }

func (l cobraLogger) Printf(format string, args ...interface{}) {
	if l.verbose {
		fmt.Printf(format+"\n", args...)
	}
}
