package route

import (
	"sort"

	"github.com/fabricpnr/corepnr/pkg/fabric"
)

// PartitionNets computes the median-centroid split point used to bucket
// nets into four spatial quadrants plus a straddle bin (spec §5): find
// the x (resp. y) value such that half the nets have their centroid at
// or below it. Nets whose bounding box lies entirely within one
// quadrant (plus the router's bounding-box margin) can be routed by
// that quadrant's worker without ever touching a wire another worker
// might also touch.
func (r *Router) PartitionNets() {
	xs := make([]int, 0, len(r.nets))
	ys := make([]int, 0, len(r.nets))
	for _, nd := range r.nets {
		xs = append(xs, nd.Cx)
		ys = append(ys, nd.Cy)
	}
	r.midX = medianSplit(xs)
	r.midY = medianSplit(ys)
}

// medianSplit returns the value at the halfway point of the sorted
// multiset of centroid coordinates, matching the teacher's
// histogram-accumulation approach without needing a separate histogram.
func medianSplit(vs []int) int {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]int(nil), vs...)
	sort.Ints(sorted)
	return sorted[len(sorted)/2]
}

// quadrant identifies which of the router's N+1 worker bins a net's
// bounding box falls into: 0-3 are the TL/TR/BL/BR quadrants strictly
// inside the split lines (margin-expanded), N is the straddle bin
// routed single-threaded.
func quadrant(bb fabric.BoundingBox, midX, midY, marginX, marginY int) int {
	lx, rx := midX-marginX, midX+marginX
	ly, ry := midY-marginY, midY+marginY
	switch {
	case bb.X0 < lx && bb.X1 < lx && bb.Y0 < ly && bb.Y1 < ly:
		return 0
	case bb.X0 >= rx && bb.X1 >= rx && bb.Y0 < ly && bb.Y1 < ly:
		return 1
	case bb.X0 < lx && bb.X1 < lx && bb.Y0 >= ry && bb.Y1 >= ry:
		return 2
	case bb.X0 >= rx && bb.X1 >= rx && bb.Y0 >= ry && bb.Y1 >= ry:
		return 3
	default:
		return 4
	}
}
