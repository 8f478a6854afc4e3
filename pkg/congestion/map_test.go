package congestion

import (
	"testing"

	"github.com/fabricpnr/corepnr/pkg/fabric"
)

func TestPresentWireCostUncontested(t *testing.T) {
	wd := NewWireData()
	m := &Map{wires: map[fabric.WireId]*WireData{1: wd}}
	wd.bindPip(0, fabric.NilPip)

	if got := m.PresentWireCost(1, 0, 0.5); got != 1.0 {
		t.Fatalf("PresentWireCost() = %v, want 1.0", got)
	}
}

func TestPresentWireCostContested(t *testing.T) {
	wd := NewWireData()
	m := &Map{wires: map[fabric.WireId]*WireData{1: wd}}
	wd.bindPip(0, fabric.NilPip)
	wd.bindPip(1, fabric.NilPip)

	// net 0 sees one other source at weight 0.5 -> 1 + 1*0.5
	if got := m.PresentWireCost(1, 0, 0.5); got != 1.5 {
		t.Fatalf("PresentWireCost() = %v, want 1.5", got)
	}
	// a net not yet on the wire sees two other sources
	if got := m.PresentWireCost(1, 2, 0.5); got != 2.0 {
		t.Fatalf("PresentWireCost() = %v, want 2.0", got)
	}
}

func TestBindPipRejectsConflictingDriver(t *testing.T) {
	wd := NewWireData()
	if ok := wd.bindPip(0, 10); !ok {
		t.Fatalf("first bind should succeed")
	}
	if ok := wd.bindPip(0, 11); ok {
		t.Fatalf("second bind with a different driving pip should fail")
	}
	if ok := wd.bindPip(0, 10); !ok {
		t.Fatalf("rebinding the same pip should succeed (refcount++)")
	}
	if got := wd.ArcRefcount(0); got != 2 {
		t.Fatalf("ArcRefcount() = %d, want 2", got)
	}
}

func TestUnbindPipErasesAtZero(t *testing.T) {
	wd := NewWireData()
	wd.bindPip(0, 5)
	wd.bindPip(0, 5)
	wd.unbindPip(0)
	if !wd.HasNet(0) {
		t.Fatalf("wire should still carry net 0 after one of two unbinds")
	}
	wd.unbindPip(0)
	if wd.HasNet(0) {
		t.Fatalf("wire should no longer carry net 0 after refcount reaches 0")
	}
}

func TestUpdateCongestionHistoryMonotonic(t *testing.T) {
	wd := NewWireData()
	m := &Map{wires: map[fabric.WireId]*WireData{1: wd}}
	wd.bindPip(0, fabric.NilPip)
	wd.bindPip(1, fabric.NilPip)

	before := wd.HistCongCost
	totals := m.UpdateCongestion(1.0)
	if totals.OverusedWires != 1 {
		t.Fatalf("OverusedWires = %d, want 1", totals.OverusedWires)
	}
	if wd.HistCongCost <= before {
		t.Fatalf("HistCongCost did not grow: before=%v after=%v", before, wd.HistCongCost)
	}
	if len(totals.FailedNetUdata) != 2 {
		t.Fatalf("FailedNetUdata = %v, want 2 entries", totals.FailedNetUdata)
	}

	// A second pass with no change must not decrease history cost.
	mid := wd.HistCongCost
	m.UpdateCongestion(1.0)
	if wd.HistCongCost < mid {
		t.Fatalf("HistCongCost decreased across iterations: %v -> %v", mid, wd.HistCongCost)
	}
}
