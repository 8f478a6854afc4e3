// Package route implements the negotiated-congestion router: arc search
// (backwards BFS prelude + forward A*), per-net ripup/reroute, spatial
// partitioning for lock-free concurrent routing, and the outer iteration
// loop that raises curr_cong_weight until every net is legally routed.
package route

import (
	"math"

	"github.com/fabricpnr/corepnr/pkg/congestion"
	"github.com/fabricpnr/corepnr/pkg/fabric"
	"github.com/fabricpnr/corepnr/pkg/netstate"
)

// delayCost converts a fabric.Delay into the router's scalar cost units.
// The device model is expected to already express delay in the units the
// router should optimize for, so this is a pass-through apart from
// MaxDelay's clamping of negative values to zero.
func delayCost(d fabric.Delay) float64 {
	return d.MaxDelay().Raw
}

// ScoreWireForArc is the router's edge weight when exploring wire via
// pip towards one user of net: base delay cost scaled by historical and
// present congestion, discounted by how many arcs of this net already
// use the wire, plus a small centroid-bias term that nudges the search
// towards the net's center of mass on ties (spec: score_wire_for_arc).
func ScoreWireForArc(dev fabric.Device, cong *congestion.Map, nd *netstate.NetData, netUdata, numUsers int, wire fabric.WireId, pip fabric.PipId, currCongWeight float64) float64 {
	wd := cong.Wire(wire)
	baseCost := delayCost(dev.PipDelay(pip)) + delayCost(dev.WireDelay(wire)) + dev.DelayEpsilon()
	presentCost := cong.PresentWireCost(wire, netUdata, currCongWeight)
	histCost := wd.HistCongCost

	sourceUses := wd.ArcRefcount(netUdata)

	biasCost := 0.0
	if pip != fabric.NilPip && nd.HPWL > 0 {
		pl := dev.PipLocation(pip)
		dist := math.Abs(float64(pl.X-nd.Cx)) + math.Abs(float64(pl.Y-nd.Cy))
		biasCost = 0.5 * (baseCost / float64(numUsers)) * (dist / float64(nd.HPWL))
	}

	return baseCost*histCost*presentCost/(1+float64(sourceUses)) + biasCost
}

// GetTogoCost is the A* admissible-ish remainder estimate from wire to
// sink: a topology-independent delay lower bound, discounted by existing
// arc reuse on wire and floored so the ipin cost is never lost (spec:
// get_togo_cost). The caller inflates this by 1.75 to bias the search
// towards finishing arcs quickly (spec §4.3).
func GetTogoCost(dev fabric.Device, cong *congestion.Map, netUdata int, wire, sink fabric.WireId) float64 {
	wd := cong.Wire(wire)
	sourceUses := wd.ArcRefcount(netUdata)

	ipinCost := delayCost(dev.WireDelay(sink)) + dev.DelayEpsilon()
	remainder := delayCost(dev.EstimateDelay(wire, sink)) - ipinCost
	if remainder < 0 {
		remainder = 0
	}
	return remainder/(1+float64(sourceUses)) + ipinCost
}

// TogoInflation is the inadmissible-heuristic inflation factor applied
// to GetTogoCost during forward search (spec §4.3): it trades optimality
// for a search that converges quickly enough to run every iteration.
const TogoInflation = 1.75
