package place

import (
	"fmt"
	"math"
	"sort"

	"github.com/fabricpnr/corepnr/pkg/fabric"
	"github.com/fabricpnr/corepnr/pkg/netlist"
	"github.com/fabricpnr/corepnr/pkg/timing"
)

// Legalizer externally resolves relative-constraint violations once the
// SA loop's search diameter has shrunk below the point where ordinary
// single-cell/chain moves can fix them (spec: legalise_relative_constraints).
// A nil Legalizer simply disables the threshold check.
type Legalizer interface {
	// Legalize may reposition cells directly through dev/nl and reports
	// whether it moved anything, which tells Place to reclassify its
	// autoplaced/chain-base worklists and keep annealing.
	Legalize(dev fabric.Device, nl netlist.Netlist) bool
}

// Config tunes the placer's annealing schedule, cost weighting, and
// worker pool. The zero value is not usable; construct one with
// DefaultConfig and override selectively.
type Config struct {
	// MinBelsForGridPick: bel types with fewer instances than this
	// collapse their spatial index to a single bucket (spec:
	// minBelsForGridPick).
	MinBelsForGridPick int
	// StartTemp is the initial SA temperature for a from-scratch
	// placement; refine mode always starts at 1e-7 regardless.
	StartTemp float64
	// ConstraintWeight weights the distance-to-constraint-satisfaction
	// term in the single-cell swap delta (spec: constraintWeight). Under
	// this module's single-level chain model that distance is always
	// zero (see DESIGN.md), so the term is evaluated but never
	// non-zero; the field still exists for interface fidelity with a
	// host that enforces looser constraint semantics.
	ConstraintWeight float64
	// TimingFanoutThresh: nets with at least this many users skip
	// per-move timing cost tracking entirely (spec: timingFanoutThresh).
	TimingFanoutThresh int
	// BudgetBased switches the criticality refresh cadence from "every
	// iteration" to "every SlackRedistIter iterations" (spec:
	// budgetBased / slack_redist_iter); the cost formula itself is the
	// same regardless (see cost.go's timingCost doc comment).
	BudgetBased bool
	// SlackRedistIter is the iteration period for criticality refresh
	// when BudgetBased is set; <= 0 disables periodic refresh entirely.
	SlackRedistIter int
	// Lambda weights timing cost against wirelength cost in the combined
	// SA delta and in CurrMetric.
	Lambda float64
	// CritExp is the exponent criticality is raised to in the per-arc
	// timing cost (spec: crit_exp).
	CritExp float64
	// NumWorkers is the fixed worker-pool size for move evaluation.
	NumWorkers int
	// StrictLegality: if true, a post-placement validity violation is a
	// fatal error; if false, it is reported to Logger and Place still
	// returns success (mirrors the teacher's ctx->force toggle).
	StrictLegality bool
	// Seed drives the placer's deterministic RNG.
	Seed int64
	// Legalizer, if set, is invoked once the SA diameter first drops
	// below the legalisation threshold.
	Legalizer Legalizer
	// Logger receives progress messages; nil disables all logging.
	Logger Logger
}

// DefaultConfig matches the teacher-derived constants used throughout
// this package (temp = 10, crit_exp = 8, lambda = 0.5).
func DefaultConfig() Config {
	return Config{
		MinBelsForGridPick: 64,
		StartTemp:          10,
		ConstraintWeight:   10,
		TimingFanoutThresh: 16,
		Lambda:             0.5,
		CritExp:            8,
		NumWorkers:         8,
		Seed:               1,
	}
}

// Placer runs the parallel simulated-annealing placement refiner (spec
// §4.7–§4.8) against a fabric.Device and netlist.Netlist. Build one with
// NewPlacer and drive it with Place.
type Placer struct {
	Config Config

	dev    fabric.Device
	nl     netlist.Netlist
	oracle timing.Oracle

	fb       *fastBels
	locIndex map[fabric.Loc]fabric.BelId

	udata       *netlist.UdataTable
	netByUdata  []fabric.NetId
	netBounds   []fabric.BoundingBox
	netArcTCost [][]float64
	cellPorts   map[fabric.CellId][]cellPortRef

	netCrit map[fabric.NetId]timing.NetCriticality

	lastWirelenCost int
	currWirelenCost int
	lastTimingCost  float64
	currTimingCost  float64

	rng      fabric.RNG
	temp     float64
	diameter int
	maxX     int
	maxY     int

	nMove, nAccept int

	requireLegal bool

	chainMoveChange *moveChangeData
	swapMoveChange  *moveChangeData

	autoplaced []fabric.CellId
	chainBases []fabric.CellId

	// Iterations is the number of SA outer-loop passes the last Place
	// call completed.
	Iterations int
}

// NewPlacer builds a Placer, indexing the device's bels by type/location
// but making no placement decisions yet (spec: ParallelRefinementPlacer's
// constructor).
func NewPlacer(dev fabric.Device, nl netlist.Netlist, oracle timing.Oracle, cfg Config) (*Placer, error) {
	fb := newFastBels(dev, cfg.MinBelsForGridPick)

	locIndex := make(map[fabric.Loc]fabric.BelId)
	for _, b := range dev.Bels() {
		locIndex[dev.BelLocation(b)] = b
	}

	udata := netlist.NewUdataTable(nl.Nets())
	netByUdata := make([]fabric.NetId, udata.Len())
	netBounds := make([]fabric.BoundingBox, udata.Len())
	netArcTCost := make([][]float64, udata.Len())
	for _, id := range nl.Nets() {
		idx := udata.Index(id)
		netByUdata[idx] = id
		netArcTCost[idx] = make([]float64, len(nl.Net(id).Users))
	}

	p := &Placer{
		Config:          cfg,
		dev:             dev,
		nl:              nl,
		oracle:          oracle,
		fb:              fb,
		locIndex:        locIndex,
		udata:           udata,
		netByUdata:      netByUdata,
		netBounds:       netBounds,
		netArcTCost:     netArcTCost,
		cellPorts:       buildCellPorts(nl),
		rng:             fabric.NewDeterministicRNG(cfg.Seed),
		chainMoveChange: newMoveChangeData(udata.Len()),
		swapMoveChange:  newMoveChangeData(udata.Len()),
	}
	p.maxX, p.maxY = fb.maxX, fb.maxY
	return p, nil
}

// Place runs either the initial placement + SA pass (refine == false) or
// a refinement-only SA pass over an already-placed design (refine ==
// true, starting from a near-zero temperature and small diameter) (spec:
// ParallelRefinementPlacer::place).
func (p *Placer) Place(refine bool) error {
	p.autoplaced = p.autoplaced[:0]
	p.chainBases = p.chainBases[:0]

	if !refine {
		placed := 0
		for _, id := range p.nl.Cells() {
			if bel := p.nl.CellBel(id); bel != fabric.NilBel {
				p.fb.lock(bel)
				placed++
			} else {
				p.autoplaced = append(p.autoplaced, id)
			}
		}
		p.logf("placed %d cells from existing constraints", placed)
		sort.Slice(p.autoplaced, func(i, j int) bool { return p.autoplaced[i] < p.autoplaced[j] })
		p.shuffle(p.autoplaced)

		p.logf("creating initial placement for %d cells", len(p.autoplaced))
		for _, id := range p.autoplaced {
			if err := p.placeInitial(id); err != nil {
				return err
			}
		}
		p.diameter = max(p.maxX, p.maxY) + 1
		p.temp = p.Config.StartTemp
		p.requireLegal = true
	} else {
		for _, id := range p.nl.Cells() {
			switch {
			case p.nl.ConstraintParent(id) != fabric.NilCell:
				// a non-base chain member: moved only as part of its chain
			case len(p.nl.ConstraintChildren(id)) > 0:
				p.chainBases = append(p.chainBases, id)
			default:
				p.autoplaced = append(p.autoplaced, id)
			}
		}
		p.requireLegal = false
		p.diameter = 3
		p.temp = 1e-7
	}

	p.refreshCriticalities()
	p.setupCosts()
	p.currWirelenCost = p.totalWirelenCost()
	p.currTimingCost = p.totalTimingCost()
	p.lastWirelenCost = p.currWirelenCost
	p.lastTimingCost = p.currTimingCost

	avgWirelen := float64(p.currWirelenCost)
	minWirelen := p.currWirelenCost
	nNoProgress := 0
	minNoProgress := 5
	if refine {
		minNoProgress = 1
	}
	const legaliseDia = 4

	pool := newWorkerPool(p, p.Config.NumWorkers)
	defer pool.kill()

	for iter := 1; ; iter++ {
		p.nMove, p.nAccept = 0, 0
		improved := false

		for m := 0; m < 15; m++ {
			pool.run(p.autoplaced)
			for _, cb := range p.chainBases {
				baseLoc := p.dev.BelLocation(p.nl.CellBel(cb))
				args := p.belSearchArgs(cb, baseLoc, baseLoc.Z)
				tryBase := p.fb.randomBelForCell(p.dev, args, p.rng.Intn)
				if tryBase != fabric.NilBel && tryBase != p.nl.CellBel(cb) {
					p.trySwapChain(cb, tryBase)
				}
			}
		}

		if p.currWirelenCost < minWirelen {
			minWirelen = p.currWirelenCost
			improved = true
		}
		if improved {
			nNoProgress = 0
		} else {
			nNoProgress++
		}

		if p.temp <= 1e-7 && nNoProgress >= minNoProgress {
			p.logf("iteration %d: converged, temp=%g timing=%.0f wirelen=%d", iter, p.temp, p.currTimingCost, p.currWirelenCost)
			p.Iterations = iter
			break
		}

		raccept := 0.0
		if p.nMove > 0 {
			raccept = float64(p.nAccept) / float64(p.nMove)
		}
		M := max(p.maxX, p.maxY) + 1

		if float64(p.currWirelenCost) < 0.95*avgWirelen {
			avgWirelen = 0.8*avgWirelen + 0.2*float64(p.currWirelenCost)
		} else {
			diamNext := float64(p.diameter) * (1.0 - 0.44 + raccept)
			p.diameter = clampInt(int(diamNext+0.5), 1, M)
			switch {
			case raccept > 0.96:
				p.temp *= 0.5
			case raccept > 0.8:
				p.temp *= 0.9
			case raccept > 0.15 && p.diameter > 1:
				p.temp *= 0.95
			default:
				p.temp *= 0.8
			}
		}

		if p.diameter < legaliseDia && p.requireLegal {
			if p.Config.Legalizer != nil && p.Config.Legalizer.Legalize(p.dev, p.nl) {
				p.reclassifyWorklists()
				p.shuffle(p.autoplaced)
			}
			p.requireLegal = false
		} else if p.Config.BudgetBased && p.Config.SlackRedistIter > 0 && iter%p.Config.SlackRedistIter == 0 {
			p.refreshCriticalities()
		}

		if !p.Config.BudgetBased {
			p.refreshCriticalities()
		}
		p.setupCosts()
		p.currWirelenCost = p.totalWirelenCost()
		p.currTimingCost = p.totalTimingCost()
		p.lastWirelenCost = p.currWirelenCost
		p.lastTimingCost = p.currTimingCost

		if iter%5 == 0 || iter == 1 {
			p.logf("iteration %d: temp=%g timing=%.0f wirelen=%d", iter, p.temp, p.currTimingCost, p.currWirelenCost)
		}
		p.Iterations = iter
	}

	return p.checkValidity()
}

func (p *Placer) reclassifyWorklists() {
	p.autoplaced = p.autoplaced[:0]
	p.chainBases = p.chainBases[:0]
	for _, id := range p.nl.Cells() {
		switch {
		case p.nl.ConstraintParent(id) != fabric.NilCell:
		case len(p.nl.ConstraintChildren(id)) > 0:
			p.chainBases = append(p.chainBases, id)
		default:
			p.autoplaced = append(p.autoplaced, id)
		}
	}
}

func (p *Placer) refreshCriticalities() {
	if p.oracle == nil {
		return
	}
	p.netCrit = p.oracle.Criticalities()
}

func (p *Placer) logf(format string, args ...interface{}) {
	if p.Config.Logger != nil {
		p.Config.Logger.Printf(format, args...)
	}
}

func (p *Placer) belSearchArgs(cell fabric.CellId, curLoc fabric.Loc, forceZ int) randomBelForCellArgs {
	bb, ok := p.nl.Region(cell)
	return randomBelForCellArgs{
		Cell:      cell,
		CellType:  p.nl.CellType(cell),
		CurLoc:    curLoc,
		Diameter:  p.diameter,
		Bounds:    bb,
		HasBounds: ok,
		ForceZ:    forceZ,
	}
}

// placeInitial finds a random free bel of cell's type, ripping up at most
// maxRipupIters occupants along the way if every candidate is taken, and
// chains onward to re-place whatever it displaced (spec: place_initial).
const maxRipupIters = 25

func (p *Placer) placeInitial(cell fabric.CellId) error {
	iters := maxRipupIters
	for {
		cellType := p.nl.CellType(cell)
		if bel := p.nl.CellBel(cell); bel != fabric.NilBel {
			p.dev.UnbindBel(bel)
			p.nl.PlaceCell(cell, fabric.NilBel)
		}

		bestBel, ripupBel := fabric.NilBel, fabric.NilBel
		bestScore, bestRipupScore := uint64(math.MaxUint64), uint64(math.MaxUint64)
		ripupTarget := fabric.NilCell

		bounds, hasBounds := p.nl.Region(cell)
		for _, bel := range p.dev.Bels() {
			if p.dev.BelType(bel) != cellType {
				continue
			}
			if hasBounds {
				loc := p.dev.BelLocation(bel)
				if !bounds.IsInsideInclusive(loc.X, loc.Y) {
					continue
				}
			}
			if !p.dev.IsValidBelForCell(cell, cellType, bel) {
				continue
			}
			occ := p.dev.GetBoundBelCell(bel)
			if occ == fabric.NilCell {
				if score := uint64(p.rng.Int63()); score <= bestScore {
					bestScore, bestBel = score, bel
				}
			} else if p.dev.BelStrength(bel) < fabric.StrengthStrong {
				if score := uint64(p.rng.Int63()); score <= bestRipupScore {
					bestRipupScore, ripupTarget, ripupBel = score, occ, bel
				}
			}
		}

		if bestBel == fabric.NilBel {
			if iters == 0 || ripupBel == fabric.NilBel {
				return structuralErrorf("no available bel of type %q for cell %d", cellType, cell)
			}
			iters--
			p.dev.UnbindBel(ripupBel)
			p.nl.PlaceCell(ripupTarget, fabric.NilBel)
			bestBel = ripupBel
		} else {
			ripupTarget = fabric.NilCell
		}

		p.dev.BindBel(bestBel, cell, fabric.StrengthWeak)
		p.nl.PlaceCell(cell, bestBel)

		if ripupTarget == fabric.NilCell {
			return nil
		}
		cell = ripupTarget
	}
}

// trySwapPosition attempts a single-cell swap "for real": apply it,
// check architecture legality, compute the cost delta (including the
// always-zero constraint-distance term, see Config.ConstraintWeight's
// doc comment), and apply the Metropolis acceptance rule, reverting on
// any failure (spec: try_swap_position). Called only by the coordinator,
// serially, after a worker's proposal survives to the apply phase.
func (p *Placer) trySwapPosition(cell fabric.CellId, newBel fabric.BelId) bool {
	if p.isConstrained(cell) {
		return false
	}
	oldBel := p.nl.CellBel(cell)
	otherCell := p.dev.GetBoundBelCell(newBel)
	if otherCell != fabric.NilCell && (p.isConstrained(otherCell) || p.dev.BelStrength(newBel) > fabric.StrengthWeak) {
		return false
	}

	oldDist := p.constraintDistance(cell)
	if otherCell != fabric.NilCell {
		oldDist += p.constraintDistance(otherCell)
	}

	p.dev.UnbindBel(oldBel)
	if otherCell != fabric.NilCell {
		p.dev.UnbindBel(newBel)
	}
	p.dev.BindBel(newBel, cell, fabric.StrengthWeak)
	p.nl.PlaceCell(cell, newBel)
	if otherCell != fabric.NilCell {
		p.dev.BindBel(oldBel, otherCell, fabric.StrengthWeak)
		p.nl.PlaceCell(otherCell, oldBel)
	}

	if !p.dev.IsBelLocationValid(newBel) || (otherCell != fabric.NilCell && !p.dev.IsBelLocationValid(oldBel)) {
		p.undoSwap(cell, oldBel, otherCell, newBel)
		return false
	}
	if !p.regionOK(cell, newBel) || (otherCell != fabric.NilCell && !p.regionOK(otherCell, oldBel)) {
		p.undoSwap(cell, oldBel, otherCell, newBel)
		return false
	}

	mc := p.swapMoveChange
	mc.reset()
	p.addMoveCell(mc, cell, oldBel, nil)
	if otherCell != fabric.NilCell {
		p.addMoveCell(mc, otherCell, newBel, nil)
	}
	p.computeCostChanges(mc, nil)

	newDist := p.constraintDistance(cell)
	if otherCell != fabric.NilCell {
		newDist += p.constraintDistance(otherCell)
	}

	delta := p.Config.Lambda*(mc.timingDelta/nonzero(p.lastTimingCost)) +
		(1-p.Config.Lambda)*(float64(mc.wirelenDelta)/nonzero(float64(p.lastWirelenCost)))
	delta += (p.Config.ConstraintWeight / nonzero(p.temp)) * float64(newDist-oldDist) / nonzero(float64(p.lastWirelenCost))

	if delta < 0 || (p.temp > 1e-8 && rngUnit(p.rng) <= math.Exp(-delta/p.temp)) {
		p.commitCostChanges(mc)
		return true
	}
	p.undoSwap(cell, oldBel, otherCell, newBel)
	return false
}

func (p *Placer) undoSwap(cell fabric.CellId, oldBel fabric.BelId, otherCell fabric.CellId, newBel fabric.BelId) {
	p.dev.UnbindBel(newBel)
	if otherCell != fabric.NilCell {
		p.dev.UnbindBel(oldBel)
	}
	p.dev.BindBel(oldBel, cell, fabric.StrengthWeak)
	p.nl.PlaceCell(cell, oldBel)
	if otherCell != fabric.NilCell {
		p.dev.BindBel(newBel, otherCell, fabric.StrengthWeak)
		p.nl.PlaceCell(otherCell, newBel)
	}
}

// constraintDistance reports how far a cell sits from satisfying its
// chain's relative layout. Under this module's model a chain only ever
// moves through trySwapChain, which applies every member's offset
// atomically or not at all, so a placed chain member is by construction
// always exactly at its expected offset: this always returns 0. The
// hook exists so Config.ConstraintWeight is genuinely evaluated rather
// than silently ignored, for a host with looser constraint semantics to
// extend (see DESIGN.md).
func (p *Placer) constraintDistance(cell fabric.CellId) int {
	return 0
}

// evaluateBatch is the worker-thread body: for every cell in ws.cells,
// derive a per-cell deterministic RNG from the batch seed and the cell's
// identity, propose one random move, evaluate its cost delta against the
// placer's last-committed totals (never the real device state directly),
// and record an accepted proposal without touching the device or netlist
// (spec: move_evaluator_thread).
func (p *Placer) evaluateBatch(ws *workerState) {
	for i := range ws.cells {
		ec := &ws.cells[i]
		cell := ec.cell
		oldBel := p.nl.CellBel(cell)

		state := ws.seed ^ uint64(cell)
		state ^= uint64(oldBel) << 32
		crng := newCellRNG(state)

		args := p.belSearchArgs(cell, p.dev.BelLocation(oldBel), -1)
		tryBel := p.fb.randomBelForCell(p.dev, args, crng.intn)
		if tryBel == fabric.NilBel || tryBel == oldBel {
			continue
		}
		bound := p.dev.GetBoundBelCell(tryBel)
		if bound != fabric.NilCell && (p.dev.BelStrength(tryBel) >= fabric.StrengthStrong || p.isConstrained(bound)) {
			continue
		}

		ws.moved[cell] = tryBel
		p.addMoveCell(ws.mc, cell, oldBel, ws.moved)
		if bound != fabric.NilCell {
			ws.moved[bound] = oldBel
			p.addMoveCell(ws.mc, bound, tryBel, ws.moved)
		}
		p.computeCostChanges(ws.mc, ws.moved)
		costDelta := p.Config.Lambda*(ws.mc.timingDelta/nonzero(p.lastTimingCost)) +
			(1-p.Config.Lambda)*(float64(ws.mc.wirelenDelta)/nonzero(float64(p.lastWirelenCost)))
		ws.mc.reset()
		delete(ws.moved, cell)
		if bound != fabric.NilCell {
			delete(ws.moved, bound)
		}

		ws.moves++
		if costDelta < 0 || (p.temp > 1e-9 && crng.unit() <= math.Exp(-costDelta/p.temp)) {
			ec.proposal = tryBel
			ws.accepted++
		}
	}
}

// checkValidity runs the final post-placement legality pass: every bel's
// occupant (if any) must satisfy architecture-specific placement rules,
// and every region-constrained cell must still sit inside its region
// (spec: place()'s trailing validity-check loop plus
// get_constraints_distance). A violation is fatal under
// Config.StrictLegality, otherwise logged and ignored.
func (p *Placer) checkValidity() error {
	var violations []error
	for _, b := range p.dev.Bels() {
		cell := p.dev.GetBoundBelCell(b)
		cellDesc := "no cell"
		if cell != fabric.NilCell {
			cellDesc = fmt.Sprintf("cell %d", cell)
		}
		switch {
		case !p.dev.IsBelLocationValid(b):
			violations = append(violations, violationf("", "bel %d has an invalid placement (%s)", b, cellDesc))
		case cell != fabric.NilCell && !p.regionOK(cell, b):
			violations = append(violations, violationf("", "bel %d holds %s outside its region", b, cellDesc))
		}
	}
	if len(violations) == 0 {
		return nil
	}
	if p.Config.StrictLegality {
		return violations[0]
	}
	for _, v := range violations {
		p.logf("warning: %v", v)
	}
	return nil
}

// shuffle reorders cells in place by shuffling their dense int ids (so
// the permutation depends only on the RNG state and the *set* of ids,
// not on incoming order) and mapping back (spec: ctx->shuffle, applied
// to autoplaced; mirrors pkg/route's shuffleQueue).
func (p *Placer) shuffle(cells []fabric.CellId) {
	idxs := make([]int, len(cells))
	byID := make(map[int]fabric.CellId, len(cells))
	for i, c := range cells {
		idxs[i] = int(c)
		byID[int(c)] = c
	}
	p.rng.SortedShuffle(idxs)
	for i, v := range idxs {
		cells[i] = byID[v]
	}
}

// rngUnit draws a uniform float in [0, 1] from an RNG that only exposes
// Int63, for Metropolis acceptance checks in the serial coordinator path.
func rngUnit(rng fabric.RNG) float64 {
	const mask = 0x3fffffff
	return float64(rng.Int63()&mask) / float64(mask)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// Totals reports the placer's most recent cost summary, useful for
// progress logging by callers.
func (p *Placer) Totals() (wirelenCost int, timingCost float64, iterations int) {
	return p.currWirelenCost, p.currTimingCost, p.Iterations
}

// CurrMetric is the combined wirelength/timing objective value as of the
// most recent committed cost update (spec: curr_metric).
func (p *Placer) CurrMetric() float64 {
	return p.currMetric()
}
