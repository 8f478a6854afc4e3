// Package netstate holds the router's per-net and per-arc state: route
// trees, bounding boxes, centroids, and HPWL (spec §3 PerNetData /
// PerArcData), plus the setup passes that populate them and the
// find-reserved-wires pass that seeds single-predecessor chains.
package netstate

import "github.com/fabricpnr/corepnr/pkg/fabric"

// ArcData is one (net, user-pin) pair's route tree: wire -> driving pip,
// with the source wire mapping to fabric.NilPip.
type ArcData struct {
	// Wires maps a wire in this arc's route tree to the pip that drives
	// it (NilPip for the source wire).
	Wires map[fabric.WireId]fabric.PipId
	// BB is the arc's device-provided bounding box.
	BB fabric.BoundingBox
}

func newArcData() ArcData {
	return ArcData{Wires: make(map[fabric.WireId]fabric.PipId)}
}

// Clear empties the route tree, used by rip-up.
func (a *ArcData) Clear() {
	for w := range a.Wires {
		delete(a.Wires, w)
	}
}
