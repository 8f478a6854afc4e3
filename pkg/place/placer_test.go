package place

import (
	"testing"

	"github.com/fabricpnr/corepnr/pkg/fabric"
	"github.com/fabricpnr/corepnr/pkg/fabric/simfabric"
	"github.com/fabricpnr/corepnr/pkg/netlist"
	"github.com/fabricpnr/corepnr/pkg/timing"
)

func testDevice(t *testing.T, side int) *simfabric.Device {
	t.Helper()
	return simfabric.NewGrid(simfabric.Config{
		Width:  side,
		Height: side,
		Types: []simfabric.BelTypeSpec{
			{Name: "LUT4", Inputs: []string{"I0", "I1", "I2", "I3"}, Outputs: []string{"O"}},
		},
	})
}

// chainNetlist builds numCells LUT4 cells wired driver-to-I0 in a chain,
// the same shape the demo CLI's synthetic netlist uses.
func chainNetlist(numCells int) *netlist.MemNetlist {
	nl := netlist.NewMemNetlist()
	for i := 0; i < numCells; i++ {
		nl.AddCell(fabric.CellId(i), "LUT4")
	}
	for i := 0; i < numCells-1; i++ {
		nl.AddNet(fabric.NetId(i), netlist.Driver{Cell: fabric.CellId(i), Port: "O"},
			[]netlist.UserPin{{Cell: fabric.CellId(i + 1), Port: "I0"}})
	}
	return nl
}

func TestPlacerPlacesEveryCellOnDistinctBels(t *testing.T) {
	dev := testDevice(t, 4)
	nl := chainNetlist(10)
	oracle := timing.NewManhattanEstimator(dev)

	cfg := DefaultConfig()
	cfg.NumWorkers = 2
	p, err := NewPlacer(dev, nl, oracle, cfg)
	if err != nil {
		t.Fatalf("NewPlacer() error = %v", err)
	}
	if err := p.Place(false); err != nil {
		t.Fatalf("Place() error = %v", err)
	}

	seen := make(map[fabric.BelId]fabric.CellId)
	for _, id := range nl.Cells() {
		bel := nl.CellBel(id)
		if bel == fabric.NilBel {
			t.Fatalf("cell %d left unplaced", id)
		}
		if other, ok := seen[bel]; ok {
			t.Fatalf("bel %d occupied by both cell %d and cell %d", bel, other, id)
		}
		seen[bel] = id
		if dev.GetBoundBelCell(bel) != id {
			t.Fatalf("device binding for bel %d is cell %d, want %d", bel, dev.GetBoundBelCell(bel), id)
		}
	}

	wirelen, _, iters := p.Totals()
	if iters == 0 {
		t.Fatalf("Iterations = 0, want > 0")
	}
	if wirelen < 0 {
		t.Fatalf("wirelen cost = %d, want >= 0", wirelen)
	}
}

func TestPlacerRefinementKeepsExistingPlacement(t *testing.T) {
	dev := testDevice(t, 4)
	nl := chainNetlist(8)
	oracle := timing.NewManhattanEstimator(dev)

	cfg := DefaultConfig()
	cfg.NumWorkers = 2
	p, err := NewPlacer(dev, nl, oracle, cfg)
	if err != nil {
		t.Fatalf("NewPlacer() error = %v", err)
	}
	if err := p.Place(false); err != nil {
		t.Fatalf("initial Place() error = %v", err)
	}

	before := p.CurrMetric()
	if err := p.Place(true); err != nil {
		t.Fatalf("refine Place() error = %v", err)
	}
	after := p.CurrMetric()

	for _, id := range nl.Cells() {
		if nl.CellBel(id) == fabric.NilBel {
			t.Fatalf("cell %d unplaced after refinement", id)
		}
	}
	if after > before*1.5+1 {
		t.Fatalf("refinement made the metric much worse: before=%.2f after=%.2f", before, after)
	}
}

func TestPlacerRespectsPreplacedStrongBinding(t *testing.T) {
	dev := testDevice(t, 4)
	nl := chainNetlist(4)
	oracle := timing.NewManhattanEstimator(dev)

	pinned := dev.BelAt(0, 0, 0, "LUT4")
	dev.BindBel(pinned, 0, fabric.StrengthUser)
	nl.PlaceCell(0, pinned)

	cfg := DefaultConfig()
	cfg.NumWorkers = 2
	p, err := NewPlacer(dev, nl, oracle, cfg)
	if err != nil {
		t.Fatalf("NewPlacer() error = %v", err)
	}
	if err := p.Place(false); err != nil {
		t.Fatalf("Place() error = %v", err)
	}

	if got := nl.CellBel(0); got != pinned {
		t.Fatalf("pre-placed cell 0 moved from bel %d to %d", pinned, got)
	}
}

// TestPlacerPreservesChainOffsetThroughRefinement constrains two already
// -placed cells into a chain, then runs a refinement pass and checks
// that every chain move trySwapChain performs keeps the child at exactly
// the relative offset it held the moment the chain was formed (spec:
// discover_chain / try_swap_chain never letting a chain drift out of
// shape).
func TestPlacerPreservesChainOffsetThroughRefinement(t *testing.T) {
	dev := testDevice(t, 6)
	nl := chainNetlist(6)
	oracle := timing.NewManhattanEstimator(dev)

	cfg := DefaultConfig()
	cfg.NumWorkers = 2
	p, err := NewPlacer(dev, nl, oracle, cfg)
	if err != nil {
		t.Fatalf("NewPlacer() error = %v", err)
	}
	if err := p.Place(false); err != nil {
		t.Fatalf("initial Place() error = %v", err)
	}

	nl.Constrain(0, 1)

	baseLoc := dev.BelLocation(nl.CellBel(0))
	childLoc := dev.BelLocation(nl.CellBel(1))
	wantRelX, wantRelY, wantZ := childLoc.X-baseLoc.X, childLoc.Y-baseLoc.Y, childLoc.Z

	if err := p.Place(true); err != nil {
		t.Fatalf("refine Place() error = %v", err)
	}

	newBaseLoc := dev.BelLocation(nl.CellBel(0))
	newChildLoc := dev.BelLocation(nl.CellBel(1))
	gotRelX, gotRelY := newChildLoc.X-newBaseLoc.X, newChildLoc.Y-newBaseLoc.Y
	if gotRelX != wantRelX || gotRelY != wantRelY || newChildLoc.Z != wantZ {
		t.Fatalf("chain offset drifted: want (%d,%d,z=%d), got (%d,%d,z=%d)",
			wantRelX, wantRelY, wantZ, gotRelX, gotRelY, newChildLoc.Z)
	}
}

// TestPlacerRejectsChainMoveOutOfRegion pins a chain base's region to its
// own current tile, so every candidate trySwapChain considers for the
// base violates the base's region and must be rejected — the chain (and
// its child) should therefore never move during refinement.
func TestPlacerRejectsChainMoveOutOfRegion(t *testing.T) {
	dev := testDevice(t, 6)
	nl := chainNetlist(6)
	oracle := timing.NewManhattanEstimator(dev)

	cfg := DefaultConfig()
	cfg.NumWorkers = 2
	p, err := NewPlacer(dev, nl, oracle, cfg)
	if err != nil {
		t.Fatalf("NewPlacer() error = %v", err)
	}
	if err := p.Place(false); err != nil {
		t.Fatalf("initial Place() error = %v", err)
	}

	nl.Constrain(0, 1)
	baseLoc := dev.BelLocation(nl.CellBel(0))
	nl.SetRegion(0, fabric.BoundingBox{X0: baseLoc.X, Y0: baseLoc.Y, X1: baseLoc.X, Y1: baseLoc.Y})
	wantBase, wantChild := nl.CellBel(0), nl.CellBel(1)

	if err := p.Place(true); err != nil {
		t.Fatalf("refine Place() error = %v", err)
	}

	if got := nl.CellBel(0); got != wantBase {
		t.Fatalf("chain base moved out of its single-tile region: %d -> %d", wantBase, got)
	}
	if got := nl.CellBel(1); got != wantChild {
		t.Fatalf("chain child moved even though its base is region-pinned: %d -> %d", wantChild, got)
	}
}

// TestPlacerRespectsCellRegion pins an ordinary (non-chain) cell's region
// to its current tile after initial placement, then refines. Without the
// per-candidate region filter in fastBels.randomBelForCell and the
// matching check in trySwapPosition, the SA loop would happily propose
// and accept moves for this cell outside its region.
func TestPlacerRespectsCellRegion(t *testing.T) {
	dev := testDevice(t, 6)
	nl := chainNetlist(6)
	oracle := timing.NewManhattanEstimator(dev)

	cfg := DefaultConfig()
	cfg.NumWorkers = 2
	p, err := NewPlacer(dev, nl, oracle, cfg)
	if err != nil {
		t.Fatalf("NewPlacer() error = %v", err)
	}
	if err := p.Place(false); err != nil {
		t.Fatalf("initial Place() error = %v", err)
	}

	pinnedLoc := dev.BelLocation(nl.CellBel(3))
	nl.SetRegion(3, fabric.BoundingBox{X0: pinnedLoc.X, Y0: pinnedLoc.Y, X1: pinnedLoc.X, Y1: pinnedLoc.Y})
	wantBel := nl.CellBel(3)

	if err := p.Place(true); err != nil {
		t.Fatalf("refine Place() error = %v", err)
	}

	if got := nl.CellBel(3); got != wantBel {
		t.Fatalf("region-pinned cell 3 moved from bel %d to %d", wantBel, got)
	}
	loc := dev.BelLocation(nl.CellBel(3))
	if loc != pinnedLoc {
		t.Fatalf("region-pinned cell 3's location changed: %v -> %v", pinnedLoc, loc)
	}
}

func TestPlacerErrorsWhenDeviceHasNoRoomForCells(t *testing.T) {
	dev := testDevice(t, 1) // 1 LUT4 bel
	nl := chainNetlist(3)
	oracle := timing.NewManhattanEstimator(dev)

	p, err := NewPlacer(dev, nl, oracle, DefaultConfig())
	if err != nil {
		t.Fatalf("NewPlacer() error = %v", err)
	}
	if err := p.Place(false); err == nil {
		t.Fatalf("expected Place() to fail when there are more cells than bels")
	}
}
