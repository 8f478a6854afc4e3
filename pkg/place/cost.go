package place

import (
	"math"

	"github.com/fabricpnr/corepnr/pkg/fabric"
	"github.com/fabricpnr/corepnr/pkg/netlist"
)

// cellPortRef is one entry in a cell's reverse port index: which net the
// cell participates in, and whether as the driver or as a numbered user
// pin (spec: fast_port_to_user, generalized to also cover the driver
// side so add_move_cell can walk a cell's ports without access to the
// netlist's own per-cell port map, which this module's Netlist contract
// does not expose).
type cellPortRef struct {
	net      fabric.NetId
	isDriver bool
	user     int
}

// buildCellPorts indexes every net's driver and user pins by cell, once,
// at placer construction (spec: build_port_index).
func buildCellPorts(nl netlist.Netlist) map[fabric.CellId][]cellPortRef {
	out := make(map[fabric.CellId][]cellPortRef)
	for _, id := range nl.Nets() {
		net := nl.Net(id)
		if net.Driver.Cell != fabric.NilCell {
			out[net.Driver.Cell] = append(out[net.Driver.Cell], cellPortRef{net: id, isDriver: true})
		}
		for i, u := range net.Users {
			out[u.Cell] = append(out[u.Cell], cellPortRef{net: id, user: i})
		}
	}
	return out
}

// ignoreNet reports whether a net should be skipped entirely by cost
// accounting: undriven, or driven by an unplaced cell, or architecture
// global (spec: ignore_net).
func (p *Placer) ignoreNet(id fabric.NetId) bool {
	net := p.nl.Net(id)
	if net.Driver.Cell == fabric.NilCell {
		return true
	}
	if p.nl.CellBel(net.Driver.Cell) == fabric.NilBel {
		return true
	}
	return p.nl.IsGlobal(id)
}

func (p *Placer) resolveBel(cell fabric.CellId, moved map[fabric.CellId]fabric.BelId) fabric.BelId {
	if moved != nil {
		if b, ok := moved[cell]; ok {
			return b
		}
	}
	return p.nl.CellBel(cell)
}

// netBoundsFor computes a net's bounding box, optionally viewing it
// through a tentative move's not-yet-committed cell/bel overrides (spec:
// get_net_bounds).
func (p *Placer) netBoundsFor(id fabric.NetId, moved map[fabric.CellId]fabric.BelId) fabric.BoundingBox {
	net := p.nl.Net(id)
	bb := fabric.EmptyBoundingBox()
	dloc := p.dev.BelLocation(p.resolveBel(net.Driver.Cell, moved))
	bb.Extend(dloc.X, dloc.Y)
	for _, u := range net.Users {
		bel := p.resolveBel(u.Cell, moved)
		if bel == fabric.NilBel {
			continue
		}
		uloc := p.dev.BelLocation(bel)
		bb.Extend(uloc.X, uloc.Y)
	}
	return bb
}

// criticalityFor returns an arc's criticality, 0 if no timing data has
// been computed for this net or user index.
func (p *Placer) criticalityFor(net fabric.NetId, user int) float64 {
	nc, ok := p.netCrit[net]
	if !ok || user >= len(nc.Criticality) {
		return 0
	}
	return nc.Criticality[user]
}

// timingCost returns one arc's criticality-weighted delay (spec:
// get_timing_cost). Both Config.BudgetBased and criticality-oracle modes
// are folded into a single formula here: a timing.BudgetOracle already
// converts budget-vs-delay comparison into a criticality value in its
// Criticalities() implementation, so by the time this placer sees it,
// "criticality" means the same thing in both modes (an Open Question
// resolution recorded in DESIGN.md).
func (p *Placer) timingCost(net fabric.NetId, user int, moved map[fabric.CellId]fabric.BelId) float64 {
	if p.oracle == nil {
		return 0
	}
	crit := p.criticalityFor(net, user)
	if crit <= 0 {
		return 0
	}
	n := p.nl.Net(net)
	usr := n.Users[user]
	var delay fabric.Delay
	_, driverMoved := moved[n.Driver.Cell]
	_, userMoved := moved[usr.Cell]
	if moved != nil && (driverMoved || userMoved) {
		srcBel := p.resolveBel(n.Driver.Cell, moved)
		dstBel := p.resolveBel(usr.Cell, moved)
		srcWire := p.dev.BelPinWire(srcBel, n.Driver.Port)
		dstWire := p.dev.BelPinWire(dstBel, usr.Port)
		delay = p.oracle.EstimateDelay(srcWire, dstWire)
	} else {
		delay = p.oracle.PredictDelay(net, user)
	}
	return delay.MaxDelay().Raw * math.Pow(crit, p.Config.CritExp)
}

// setupCosts rebuilds net_bounds and net_arc_tcost from scratch, called
// once at the start of placement and again whenever criticalities are
// refreshed (spec: setup_costs).
func (p *Placer) setupCosts() {
	for _, id := range p.nl.Nets() {
		if p.ignoreNet(id) {
			continue
		}
		idx := p.udata.Index(id)
		p.netBounds[idx] = p.netBoundsFor(id, nil)
		net := p.nl.Net(id)
		if p.oracle != nil && len(net.Users) < p.Config.TimingFanoutThresh {
			for i := range net.Users {
				p.netArcTCost[idx][i] = p.timingCost(id, i, nil)
			}
		}
	}
}

func (p *Placer) totalWirelenCost() int {
	total := 0
	for _, bb := range p.netBounds {
		total += bb.HPWL()
	}
	return total
}

func (p *Placer) totalTimingCost() float64 {
	total := 0.0
	for _, arcs := range p.netArcTCost {
		for _, c := range arcs {
			total += c
		}
	}
	return total
}

// currMetric is the combined wirelength/timing objective the SA schedule
// reports for progress logging (spec: curr_metric).
func (p *Placer) currMetric() float64 {
	return p.Config.Lambda*p.currTimingCost + (1-p.Config.Lambda)*float64(p.currWirelenCost)
}

// addMoveCell walks one cell's ports, marking every net whose bounding
// box may have changed (the cell's old location was on the boundary, or
// its new location exceeds the current bounds) and, when timing-driven,
// every arc whose delay may have changed: every user on an output port,
// or the specific user index on an input port (spec: add_move_cell).
func (p *Placer) addMoveCell(mc *moveChangeData, cell fabric.CellId, oldBel fabric.BelId, moved map[fabric.CellId]fabric.BelId) {
	currLoc := p.dev.BelLocation(p.resolveBel(cell, moved))
	oldLoc := p.dev.BelLocation(oldBel)
	for _, ref := range p.cellPorts[cell] {
		if p.ignoreNet(ref.net) {
			continue
		}
		idx := p.udata.Index(ref.net)
		bb := p.netBounds[idx]
		if bb.TouchesBounds(oldLoc.X, oldLoc.Y) || !bb.IsInsideInclusive(currLoc.X, currLoc.Y) {
			mc.markBoundsChanged(idx)
		}
		if p.oracle == nil {
			continue
		}
		net := p.nl.Net(ref.net)
		if len(net.Users) >= p.Config.TimingFanoutThresh {
			continue
		}
		if ref.isDriver {
			for i := range net.Users {
				mc.markArcChanged(idx, len(net.Users), i)
			}
		} else {
			mc.markArcChanged(idx, len(net.Users), ref.user)
		}
	}
}

// computeCostChanges evaluates the new bounding box and timing cost for
// every net/arc addMoveCell flagged, recording the deltas without
// touching the placer's committed tables (spec: compute_cost_changes).
func (p *Placer) computeCostChanges(mc *moveChangeData, moved map[fabric.CellId]fabric.BelId) {
	for _, idx := range mc.boundsChangedNets {
		oldHPWL := p.netBounds[idx].HPWL()
		bb := p.netBoundsFor(p.netByUdata[idx], moved)
		mc.newNetBounds = append(mc.newNetBounds, boundsUpdate{idx, bb})
		mc.wirelenDelta += bb.HPWL() - oldHPWL
	}
	if p.oracle == nil {
		return
	}
	for _, ref := range mc.changedArcs {
		oldCost := p.netArcTCost[ref.netIdx][ref.user]
		newCost := p.timingCost(p.netByUdata[ref.netIdx], ref.user, moved)
		mc.newArcCosts = append(mc.newArcCosts, arcCostUpdate{ref, newCost})
		mc.timingDelta += newCost - oldCost
	}
}

// commitCostChanges installs a move's evaluated deltas into the placer's
// committed cost tables and running totals (spec: commit_cost_changes).
func (p *Placer) commitCostChanges(mc *moveChangeData) {
	for _, u := range mc.newNetBounds {
		p.netBounds[u.netIdx] = u.bb
	}
	for _, u := range mc.newArcCosts {
		p.netArcTCost[u.ref.netIdx][u.ref.user] = u.cost
	}
	p.currWirelenCost += mc.wirelenDelta
	p.currTimingCost += mc.timingDelta
}
