package netstate

import "github.com/fabricpnr/corepnr/pkg/fabric"

// NetData is one net's arcs (ordered by user-pin index) plus its
// aggregate bounding box, centroid, and HPWL.
type NetData struct {
	Arcs []ArcData
	BB   fabric.BoundingBox
	// Cx, Cy is the integer-averaged centroid over driver + users.
	Cx, Cy int
	// HPWL is the net's half-perimeter wirelength, always >= 1.
	HPWL int
}
