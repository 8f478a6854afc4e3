package fabric

// Loc is an (x, y, z) placement coordinate. z distinguishes multiple bels
// sharing an (x, y) tile (e.g. LUT slots within a logic tile).
type Loc struct {
	X, Y, Z int
}

// BoundingBox is an inclusive axis-aligned rectangle over device (x, y)
// coordinates, used for arc and net bounding boxes and for placer region
// and partition bounds.
type BoundingBox struct {
	X0, Y0, X1, Y1 int
}

// EmptyBoundingBox returns a bounding box initialized to the "nothing
// included yet" extremes, ready to be grown with Extend.
func EmptyBoundingBox() BoundingBox {
	return BoundingBox{
		X0: int(^uint(0) >> 1),
		Y0: int(^uint(0) >> 1),
		X1: -int(^uint(0)>>1) - 1,
		Y1: -int(^uint(0)>>1) - 1,
	}
}

// Extend grows the box to include (x, y).
func (b *BoundingBox) Extend(x, y int) {
	if x < b.X0 {
		b.X0 = x
	}
	if x > b.X1 {
		b.X1 = x
	}
	if y < b.Y0 {
		b.Y0 = y
	}
	if y > b.Y1 {
		b.Y1 = y
	}
}

// Union grows the box to include another box.
func (b *BoundingBox) Union(o BoundingBox) {
	if o.X0 > o.X1 || o.Y0 > o.Y1 {
		return
	}
	b.Extend(o.X0, o.Y0)
	b.Extend(o.X1, o.Y1)
}

// IsInsideInclusive reports whether (x, y) lies within the box, inclusive
// of the boundary.
func (b BoundingBox) IsInsideInclusive(x, y int) bool {
	return x >= b.X0 && x <= b.X1 && y >= b.Y0 && y <= b.Y1
}

// TouchesBounds reports whether (x, y) lies exactly on the box's
// boundary, used by the placer to decide whether a move might have
// changed a net's bounding box.
func (b BoundingBox) TouchesBounds(x, y int) bool {
	return x == b.X0 || x == b.X1 || y == b.Y0 || y == b.Y1
}

// HPWL returns the half-perimeter wirelength of the box.
func (b BoundingBox) HPWL() int {
	return (b.X1 - b.X0) + (b.Y1 - b.Y0)
}

// Expanded returns a copy of the box grown by marginX/marginY on every
// side, used by the router's bounding-box-constrained search.
func (b BoundingBox) Expanded(marginX, marginY int) BoundingBox {
	return BoundingBox{
		X0: b.X0 - marginX,
		Y0: b.Y0 - marginY,
		X1: b.X1 + marginX,
		Y1: b.Y1 + marginY,
	}
}
