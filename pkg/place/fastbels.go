package place

import "github.com/fabricpnr/corepnr/pkg/fabric"

type belTypeInfo struct {
	idx, count int
}

// fastBels buckets every bel by type and then by (x, y) tile, mirroring
// the teacher's nested fast_bels vector so the placer can pick a random
// bel of a given type within a square radius without scanning every bel
// in the device (spec: fast_bels / random_bel_for_cell).
type fastBels struct {
	types              map[string]belTypeInfo
	bels               [][][][]fabric.BelId // [typeIdx][x][y] -> bels at that tile, any z
	maxX, maxY         int
	locked             map[fabric.BelId]bool
	minBelsForGridPick int
}

// newFastBels indexes every bel the device reports. Bel types with fewer
// than minBelsForGridPick instances collapse their whole population into
// the (0, 0) bucket, so spatially-rare types (global buffers, PLLs) don't
// leave most of the grid pick empty (spec: minBelsForGridPick).
func newFastBels(dev fabric.Device, minBelsForGridPick int) *fastBels {
	fb := &fastBels{
		types:              make(map[string]belTypeInfo),
		locked:             make(map[fabric.BelId]bool),
		minBelsForGridPick: minBelsForGridPick,
	}
	bels := dev.Bels()
	for _, b := range bels {
		t := dev.BelType(b)
		info, ok := fb.types[t]
		if !ok {
			info = belTypeInfo{idx: len(fb.types)}
		}
		info.count++
		fb.types[t] = info
	}
	for _, b := range bels {
		t := dev.BelType(b)
		info := fb.types[t]
		loc := dev.BelLocation(b)
		x, y := loc.X, loc.Y
		if info.count < fb.minBelsForGridPick {
			x, y = 0, 0
		}
		for len(fb.bels) <= info.idx {
			fb.bels = append(fb.bels, nil)
		}
		for len(fb.bels[info.idx]) <= x {
			fb.bels[info.idx] = append(fb.bels[info.idx], nil)
		}
		for len(fb.bels[info.idx][x]) <= y {
			fb.bels[info.idx][x] = append(fb.bels[info.idx][x], nil)
		}
		fb.bels[info.idx][x][y] = append(fb.bels[info.idx][x][y], b)
		if loc.X > fb.maxX {
			fb.maxX = loc.X
		}
		if loc.Y > fb.maxY {
			fb.maxY = loc.Y
		}
	}
	return fb
}

// lock marks a bel as never eligible for a move proposal, used for cells
// placed via an explicit user constraint before the SA loop starts.
func (fb *fastBels) lock(b fabric.BelId) {
	fb.locked[b] = true
}

// randomBelForCellArgs bundles randomBelForCell's search constraints so
// the call site (the SA worker, the chain-base picker) doesn't have to
// repeat every parameter in order.
type randomBelForCellArgs struct {
	Cell      fabric.CellId
	CellType  string
	CurLoc    fabric.Loc
	Diameter  int
	Bounds    fabric.BoundingBox
	HasBounds bool
	ForceZ    int // -1 means "any z"
}

const randomBelMaxAttempts = 10000

// randomBelForCell picks a random bel of the requested type within a
// square radius of the cell's current location, biasing the search
// window toward a region's bounds if the cell has one and then rejecting
// any drawn candidate that still falls outside those bounds, skipping
// locked bels and bels the device rejects for this cell (spec:
// random_bel_for_cell / check_cell_bel_region). It returns fabric.NilBel
// if no candidate is found within a bounded number of probes — the
// teacher loops forever, which this rewrite declines to do since an
// unsatisfiable search (e.g. a too-small region) must still return
// control to the caller.
func (fb *fastBels) randomBelForCell(dev fabric.Device, args randomBelForCellArgs, rng func(int) int) fabric.BelId {
	info, ok := fb.types[args.CellType]
	if !ok || info.idx >= len(fb.bels) {
		return fabric.NilBel
	}

	dx, dy := args.Diameter, args.Diameter
	cx, cy := args.CurLoc.X, args.CurLoc.Y
	if args.HasBounds {
		if bw := args.Bounds.X1 - args.Bounds.X0 + 1; bw < dx {
			dx = bw
		}
		if bh := args.Bounds.Y1 - args.Bounds.Y0 + 1; bh < dy {
			dy = bh
		}
		cx = min(max(cx, args.Bounds.X0), args.Bounds.X1)
		cy = min(max(cy, args.Bounds.Y0), args.Bounds.Y1)
	}
	collapsed := info.count < fb.minBelsForGridPick

	for attempt := 0; attempt < randomBelMaxAttempts; attempt++ {
		var nx, ny int
		if collapsed {
			nx, ny = 0, 0
		} else {
			nx = rng(2*dx+1) + max(cx-dx, 0)
			ny = rng(2*dy+1) + max(cy-dy, 0)
		}
		col := fb.bels[info.idx]
		if nx >= len(col) {
			continue
		}
		row := col[nx]
		if ny >= len(row) {
			continue
		}
		bucket := row[ny]
		if len(bucket) == 0 {
			continue
		}
		bel := bucket[rng(len(bucket))]
		if args.ForceZ != -1 && dev.BelLocation(bel).Z != args.ForceZ {
			continue
		}
		if fb.locked[bel] {
			continue
		}
		if args.HasBounds {
			loc := dev.BelLocation(bel)
			if !args.Bounds.IsInsideInclusive(loc.X, loc.Y) {
				continue
			}
		}
		if !dev.IsValidBelForCell(args.Cell, args.CellType, bel) {
			continue
		}
		return bel
	}
	return fabric.NilBel
}
