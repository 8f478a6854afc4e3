package place

import "github.com/fabricpnr/corepnr/pkg/fabric"

// arcRef identifies one arc by the dense net index and user-pin index,
// the same coordinate system netArcTCost is indexed by.
type arcRef struct {
	netIdx int
	user   int
}

type boundsUpdate struct {
	netIdx int
	bb     fabric.BoundingBox
}

type arcCostUpdate struct {
	ref  arcRef
	cost float64
}

// moveChangeData accumulates the nets/arcs a tentative move touches,
// deduplicated via parallel boolean arrays so the same structure can be
// reused across many evaluated moves without reallocating (spec §4.8,
// grounded on placer_prefine.cc::MoveChangeData). addMoveCell populates
// the dirty lists; computeCostChanges turns them into deltas relative to
// the placer's committed cost tables; commitCostChanges installs the new
// values. A rejected move simply calls reset and never commits.
type moveChangeData struct {
	boundsChangedNets []int
	changedArcs       []arcRef

	alreadyBoundsChanged []bool
	alreadyChangedArcs   [][]bool

	newNetBounds []boundsUpdate
	newArcCosts  []arcCostUpdate

	wirelenDelta int
	timingDelta  float64
}

func newMoveChangeData(numNets int) *moveChangeData {
	return &moveChangeData{
		alreadyBoundsChanged: make([]bool, numNets),
		alreadyChangedArcs:   make([][]bool, numNets),
	}
}

// sizeArcs lazily grows the per-net dedup row for changedArcs to match a
// net's current user count. markArcChanged calls it every time it marks
// an arc, so a row is allocated the first time any arc of that net is
// marked.
func (mc *moveChangeData) sizeArcs(netIdx, numUsers int) {
	if len(mc.alreadyChangedArcs[netIdx]) < numUsers {
		mc.alreadyChangedArcs[netIdx] = make([]bool, numUsers)
	}
}

func (mc *moveChangeData) reset() {
	for _, idx := range mc.boundsChangedNets {
		mc.alreadyBoundsChanged[idx] = false
	}
	for _, ref := range mc.changedArcs {
		mc.alreadyChangedArcs[ref.netIdx][ref.user] = false
	}
	mc.boundsChangedNets = mc.boundsChangedNets[:0]
	mc.changedArcs = mc.changedArcs[:0]
	mc.newNetBounds = mc.newNetBounds[:0]
	mc.newArcCosts = mc.newArcCosts[:0]
	mc.wirelenDelta = 0
	mc.timingDelta = 0
}

func (mc *moveChangeData) markBoundsChanged(netIdx int) {
	if !mc.alreadyBoundsChanged[netIdx] {
		mc.boundsChangedNets = append(mc.boundsChangedNets, netIdx)
		mc.alreadyBoundsChanged[netIdx] = true
	}
}

func (mc *moveChangeData) markArcChanged(netIdx, numUsers, user int) {
	mc.sizeArcs(netIdx, numUsers)
	if !mc.alreadyChangedArcs[netIdx][user] {
		mc.changedArcs = append(mc.changedArcs, arcRef{netIdx, user})
		mc.alreadyChangedArcs[netIdx][user] = true
	}
}
