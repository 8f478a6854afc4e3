// Package congestion implements the negotiated-congestion router's
// per-wire state: how many arcs of which nets currently use each wire,
// accumulated historical congestion cost, and reservation/availability
// flags (spec §3 PerWireData).
package congestion

import "github.com/fabricpnr/corepnr/pkg/fabric"

// netUse records how many arcs of a net currently traverse a wire, and
// which pip drives the wire for that net (a net may share a wire across
// multiple arcs only via the same driving pip).
type netUse struct {
	arcRefcount int
	drivingPip  fabric.PipId
}

// WireData is the per-wire congestion/availability record. The zero
// value is a correct "unused, undriven, available" wire.
type WireData struct {
	// boundNets maps net dense-udata -> use record. A wire is overused
	// iff len(boundNets) > 1.
	boundNets map[int]netUse
	// HistCongCost accumulates cost across router iterations and never
	// decreases within a run (spec invariant: history monotonicity).
	HistCongCost float64
	// Unavailable marks a wire locked by a binding stronger than
	// STRENGTH_STRONG.
	Unavailable bool
	// ReservedNet restricts the wire to a single net's udata, or -1 if
	// unreserved.
	ReservedNet int
}

// NewWireData returns a fresh WireData with the default history cost of
// 1.0 (spec: hist_cong_cost is real, >= 1.0).
func NewWireData() *WireData {
	return &WireData{
		boundNets:    make(map[int]netUse),
		HistCongCost: 1.0,
		ReservedNet:  -1,
	}
}

// BoundNetCount returns the number of distinct nets currently using the
// wire.
func (w *WireData) BoundNetCount() int {
	return len(w.boundNets)
}

// ArcRefcount returns how many arcs of netUdata currently traverse the
// wire (0 if the net does not use it).
func (w *WireData) ArcRefcount(netUdata int) int {
	return w.boundNets[netUdata].arcRefcount
}

// DrivingPip returns the pip that drives the wire for netUdata, and
// whether the net uses the wire at all.
func (w *WireData) DrivingPip(netUdata int) (fabric.PipId, bool) {
	u, ok := w.boundNets[netUdata]
	if !ok {
		return fabric.NilPip, false
	}
	return u.drivingPip, true
}

// HasNet reports whether netUdata currently uses this wire.
func (w *WireData) HasNet(netUdata int) bool {
	_, ok := w.boundNets[netUdata]
	return ok
}

// ForEachNet calls fn for every net currently using the wire.
func (w *WireData) ForEachNet(fn func(netUdata int)) {
	for n := range w.boundNets {
		fn(n)
	}
}

// bindPip increments netUdata's arc refcount on the wire, recording pip
// as the driving pip on first use. Returns false if a different pip is
// already driving the wire for this net (a structural inconsistency the
// caller should treat as fatal).
func (w *WireData) bindPip(netUdata int, pip fabric.PipId) bool {
	u := w.boundNets[netUdata]
	u.arcRefcount++
	if u.arcRefcount == 1 {
		u.drivingPip = pip
	} else if u.drivingPip != pip {
		return false
	}
	w.boundNets[netUdata] = u
	return true
}

// unbindPip decrements netUdata's arc refcount, erasing the entry once
// it reaches zero.
func (w *WireData) unbindPip(netUdata int) {
	u, ok := w.boundNets[netUdata]
	if !ok {
		return
	}
	u.arcRefcount--
	if u.arcRefcount <= 0 {
		delete(w.boundNets, netUdata)
		return
	}
	w.boundNets[netUdata] = u
}
