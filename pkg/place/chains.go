package place

import (
	"math"

	"github.com/fabricpnr/corepnr/pkg/fabric"
)

// isConstrained reports whether a cell participates in a chain, either as
// a parent or as a rigidly-attached child; such cells never move through
// the single-cell proposal path, only through trySwapChain.
func (p *Placer) isConstrained(cell fabric.CellId) bool {
	return p.nl.ConstraintParent(cell) != fabric.NilCell || len(p.nl.ConstraintChildren(cell)) > 0
}

// regionOK reports whether bel falls inside cell's region constraint, or
// true if the cell is unconstrained (spec: check_cell_bel_region).
func (p *Placer) regionOK(cell fabric.CellId, bel fabric.BelId) bool {
	bb, ok := p.nl.Region(cell)
	if !ok {
		return true
	}
	loc := p.dev.BelLocation(bel)
	return bb.IsInsideInclusive(loc.X, loc.Y)
}

type chainMember struct {
	cell       fabric.CellId
	relX, relY int
	z          int
}

// discoverChain walks a chain's parent/child tree, recording every
// member's offset relative to baseLoc (the chain base's current
// location). The offset is read live off each member's current bel
// rather than stored anywhere, so a chain's shape is whatever its
// members currently form (spec: discover_chain).
func (p *Placer) discoverChain(baseLoc fabric.Loc, cell fabric.CellId, out *[]chainMember) {
	loc := p.dev.BelLocation(p.nl.CellBel(cell))
	*out = append(*out, chainMember{cell: cell, relX: loc.X - baseLoc.X, relY: loc.Y - baseLoc.Y, z: loc.Z})
	for _, child := range p.nl.ConstraintChildren(cell) {
		p.discoverChain(baseLoc, child, out)
	}
}

// swapCellBels moves cell onto newBel, displacing whatever cell
// currently occupies it (if any) back onto cell's old bel, and returns
// cell's old bel so the caller can revert (spec: swap_cell_bels).
func (p *Placer) swapCellBels(cell fabric.CellId, newBel fabric.BelId) fabric.BelId {
	oldBel := p.nl.CellBel(cell)
	bound := p.dev.GetBoundBelCell(newBel)
	if bound != fabric.NilCell {
		p.dev.UnbindBel(newBel)
	}
	p.dev.UnbindBel(oldBel)

	strength := fabric.StrengthWeak
	if p.isConstrained(cell) {
		strength = fabric.StrengthStrong
	}
	p.dev.BindBel(newBel, cell, strength)
	p.nl.PlaceCell(cell, newBel)

	if bound != fabric.NilCell {
		boundStrength := fabric.StrengthWeak
		if p.isConstrained(bound) {
			boundStrength = fabric.StrengthStrong
		}
		p.dev.BindBel(oldBel, bound, boundStrength)
		p.nl.PlaceCell(bound, oldBel)
	}
	return oldBel
}

// trySwapChain attempts to move an entire chain to a new base bel: every
// member is relocated to the same offset from newBase as it held from
// the chain's old base, rejecting the whole move if any target tile
// doesn't exist, has the wrong type, is held by a strong/constrained cell
// outside this chain, or leaves either a chain member or the cell it
// displaced outside its own region constraint. Applied moves are
// reverted in reverse order on rejection (spec: try_swap_chain).
func (p *Placer) trySwapChain(cell fabric.CellId, newBase fabric.BelId) bool {
	baseLoc := p.dev.BelLocation(p.nl.CellBel(cell))
	var members []chainMember
	p.discoverChain(baseLoc, cell, &members)
	newBaseLoc := p.dev.BelLocation(newBase)

	inChain := make(map[fabric.CellId]bool, len(members))
	for _, m := range members {
		inChain[m.cell] = true
	}

	type dest struct {
		cell fabric.CellId
		bel  fabric.BelId
	}
	dests := make([]dest, 0, len(members))
	for _, m := range members {
		target := fabric.Loc{X: newBaseLoc.X + m.relX, Y: newBaseLoc.Y + m.relY, Z: m.z}
		targetBel, ok := p.locIndex[target]
		if !ok {
			return false
		}
		if p.dev.BelType(targetBel) != p.nl.CellType(m.cell) {
			return false
		}
		bound := p.dev.GetBoundBelCell(targetBel)
		if bound != fabric.NilCell && !inChain[bound] &&
			(p.dev.BelStrength(targetBel) >= fabric.StrengthStrong || p.isConstrained(bound)) {
			return false
		}
		dests = append(dests, dest{m.cell, targetBel})
	}

	type moveRec struct {
		cell   fabric.CellId
		oldBel fabric.BelId
	}
	moves := make([]moveRec, 0, len(dests))
	for _, d := range dests {
		oldBel := p.swapCellBels(d.cell, d.bel)
		moves = append(moves, moveRec{d.cell, oldBel})
	}

	revert := func() {
		for i := len(moves) - 1; i >= 0; i-- {
			p.swapCellBels(moves[i].cell, moves[i].oldBel)
		}
	}

	mc := p.chainMoveChange
	mc.reset()
	for _, mv := range moves {
		newBel := p.nl.CellBel(mv.cell)
		if !p.dev.IsBelLocationValid(newBel) || !p.dev.IsBelLocationValid(mv.oldBel) {
			revert()
			return false
		}
		if !p.regionOK(mv.cell, newBel) {
			revert()
			return false
		}
		p.addMoveCell(mc, mv.cell, mv.oldBel, nil)
		if bound := p.dev.GetBoundBelCell(mv.oldBel); bound != fabric.NilCell {
			if !p.regionOK(bound, mv.oldBel) {
				revert()
				return false
			}
			p.addMoveCell(mc, bound, newBel, nil)
		}
	}

	p.computeCostChanges(mc, nil)
	delta := p.Config.Lambda*(mc.timingDelta/nonzero(p.lastTimingCost)) +
		(1-p.Config.Lambda)*(float64(mc.wirelenDelta)/nonzero(float64(p.lastWirelenCost)))
	p.nMove++

	accept := delta < 0 || (p.temp > 1e-9 && rngUnit(p.rng) <= math.Exp(-delta/p.temp))
	if !accept {
		revert()
		return false
	}
	p.nAccept++
	p.commitCostChanges(mc)
	return true
}

// nonzero guards a division denominator against zero, matching the
// teacher's epsilon-clamped cost ratios without baking a magic constant
// into every call site.
func nonzero(v float64) float64 {
	const epsilon = 1e-20
	if v < epsilon && v > -epsilon {
		return epsilon
	}
	return v
}
