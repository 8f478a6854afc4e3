package congestion

import "github.com/fabricpnr/corepnr/pkg/fabric"

// Map is the congestion map: one WireData per device wire. It is mutated
// without locks by the router's worker goroutines; correctness rests on
// the caller partitioning work so that no two workers ever touch the
// same wire within an iteration (spec §5/§9). Map itself performs no
// synchronization — wrapping it in a mutex here would defeat the point of
// the spatial-disjointness design.
type Map struct {
	wires map[fabric.WireId]*WireData
}

// NewMap allocates a WireData for every wire in the device, seeding
// bound_nets from any pre-existing strong bindings (spec: setup_wires).
func NewMap(dev fabric.Device, udata func(fabric.NetId) int) *Map {
	m := &Map{wires: make(map[fabric.WireId]*WireData)}
	for _, w := range dev.Wires() {
		wd := NewWireData()
		m.wires[w] = wd
		if net := dev.GetBoundWireNet(w); net != fabric.NilNet && !dev.CheckWireAvail(w) {
			idx := udata(net)
			if idx >= 0 {
				wd.bindPip(idx, fabric.NilPip)
			}
		}
	}
	return m
}

// Wire returns the WireData for w, which must already exist (every
// device wire is allocated in NewMap).
func (m *Map) Wire(w fabric.WireId) *WireData {
	return m.wires[w]
}

// PresentWireCost is the negotiated-congestion present-use penalty
// (spec §4.2): 1.0 if no other net uses the wire, else
// 1 + other_sources * currCongWeight.
func (m *Map) PresentWireCost(w fabric.WireId, netUdata int, currCongWeight float64) float64 {
	wd := m.wires[w]
	otherSources := wd.BoundNetCount()
	if wd.HasNet(netUdata) {
		otherSources--
	}
	if otherSources <= 0 {
		return 1.0
	}
	return 1 + float64(otherSources)*currCongWeight
}

// BindPip binds one arc's use of a wire through a driving pip (nil pip
// for a net's source wire). Returns false on a structural inconsistency
// (a different pip already drives this wire for this net).
func (m *Map) BindPip(w fabric.WireId, netUdata int, pip fabric.PipId) bool {
	return m.wires[w].bindPip(netUdata, pip)
}

// UnbindPip reverses one arc's use of a wire.
func (m *Map) UnbindPip(w fabric.WireId, netUdata int) {
	m.wires[w].unbindPip(netUdata)
}

// CongestionTotals summarizes one pass of UpdateCongestion.
type CongestionTotals struct {
	TotalWireUse   int
	OverusedWires  int
	TotalOveruse   int
	FailedNetUdata map[int]struct{}
}

// UpdateCongestion walks every wire, accumulating history cost on
// overused wires and collecting the set of nets that must be retried
// (spec §4.1 step 3). hist_cong_cost only ever grows here, preserving
// the history-monotonicity invariant.
func (m *Map) UpdateCongestion(histCongWeight float64) CongestionTotals {
	totals := CongestionTotals{FailedNetUdata: make(map[int]struct{})}
	for _, wd := range m.wires {
		totals.TotalWireUse += wd.BoundNetCount()
		overuse := wd.BoundNetCount() - 1
		if overuse > 0 {
			wd.HistCongCost += float64(overuse) * histCongWeight
			totals.TotalOveruse += overuse
			totals.OverusedWires++
			wd.ForEachNet(func(n int) {
				totals.FailedNetUdata[n] = struct{}{}
			})
		}
	}
	return totals
}
