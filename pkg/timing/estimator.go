package timing

import (
	"math"

	"github.com/fabricpnr/corepnr/pkg/fabric"
)

// ManhattanEstimator is a topology-independent Oracle used in place of a
// real static timing analyzer: EstimateDelay is the Manhattan distance
// between pip locations times a fixed per-unit delay, PredictDelay is
// that fixed per-unit delay for every arc, and it reports no criticality
// at all (see Criticalities). It is
// deliberately simple — the timing analyzer's internals are out of scope
// (spec §1) and this exists only so the demo CLI and tests have
// something to hand the router/placer that satisfies the Oracle
// contract.
type ManhattanEstimator struct {
	Device       fabric.Device
	DelayPerUnit float64
}

// NewManhattanEstimator builds an estimator with a reasonable default
// delay-per-unit-distance.
func NewManhattanEstimator(dev fabric.Device) *ManhattanEstimator {
	return &ManhattanEstimator{Device: dev, DelayPerUnit: 0.1}
}

// EstimateDelay returns a Manhattan-distance-based delay lower bound
// between two wires, using each wire's driving/downhill pip locations as
// a proxy for wire location (wires themselves have no location in the
// fabric.Device contract; pips do).
func (m *ManhattanEstimator) EstimateDelay(src, dst fabric.WireId) fabric.Delay {
	sl, sok := m.wireLoc(src)
	dl, dok := m.wireLoc(dst)
	if !sok || !dok {
		return fabric.Delay{Raw: m.DelayPerUnit}
	}
	dist := math.Abs(float64(dl.X-sl.X)) + math.Abs(float64(dl.Y-sl.Y))
	return fabric.Delay{Raw: dist * m.DelayPerUnit}
}

func (m *ManhattanEstimator) wireLoc(w fabric.WireId) (fabric.Loc, bool) {
	if up := m.Device.PipsUphill(w); len(up) > 0 {
		return m.Device.PipLocation(up[0]), true
	}
	if down := m.Device.PipsDownhill(w); len(down) > 0 {
		return m.Device.PipLocation(down[0]), true
	}
	return fabric.Loc{}, false
}

// PredictDelay is not meaningful without a routed topology for (net,
// user); it returns the constant DelayPerUnit for every arc as a
// placeholder a caller may override by wiring a real Oracle.
func (m *ManhattanEstimator) PredictDelay(net fabric.NetId, user int) fabric.Delay {
	return fabric.Delay{Raw: m.DelayPerUnit}
}

// Criticalities returns an empty map; ManhattanEstimator has no
// criticality model of its own. Callers that need non-zero criticality
// should wire BudgetOracle or a real timing analyzer instead.
func (m *ManhattanEstimator) Criticalities() map[fabric.NetId]NetCriticality {
	return map[fabric.NetId]NetCriticality{}
}
