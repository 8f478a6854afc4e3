package route

import (
	"github.com/fabricpnr/corepnr/pkg/fabric"
	"github.com/fabricpnr/corepnr/pkg/netlist"
	"github.com/fabricpnr/corepnr/pkg/netstate"
)

// portWireOrNil resolves a port to a wire, treating "cell unplaced" or
// "no such pin" as fabric.NilWire rather than an error: bind_and_check
// skips such arcs rather than failing on them (spec: bind_and_check
// checks src/dst against WireId(), the C++ zero value).
func portWireOrNil(nl netlist.Netlist, dev fabric.Device, cell fabric.CellId, port string) (fabric.WireId, error) {
	w, err := netstate.PortWire(nl, dev, cell, port)
	if err != nil {
		return fabric.NilWire, nil
	}
	return w, nil
}

// BindAndCheck commits one arc's discovered route tree to the device's
// real binding table at STRENGTH_WEAK, walking from the sink back to
// the source and stopping early if it runs into routing the device
// already owns for this net. It fails (and rips the arc back up) if any
// wire or pip along the way is unavailable — a sign the soft-routed
// tree raced a concurrent structural change since congestion resolved
// (spec: bind_and_check).
func (r *Router) BindAndCheck(netID fabric.NetId, userIdx int) bool {
	net := r.nl.Net(netID)
	if net.Driver.Cell == fabric.NilCell {
		return true
	}
	usr := net.Users[userIdx]

	srcWire, err := portWireOrNil(r.nl, r.dev, net.Driver.Cell, net.Driver.Port)
	if err != nil || srcWire == fabric.NilWire {
		return true
	}
	dstWire, err := portWireOrNil(r.nl, r.dev, usr.Cell, usr.Port)
	if err != nil || dstWire == fabric.NilWire || r.dev.GetBoundWireNet(dstWire) == netID {
		return true
	}

	nd := r.nets[netID]
	arc := &nd.Arcs[userIdx]
	if len(arc.Wires) == 0 {
		return true
	}

	var toBind []fabric.PipId
	cursor := dstWire
	success := true
	for cursor != srcWire {
		if !r.dev.CheckWireAvail(cursor) {
			if r.dev.GetBoundWireNet(cursor) == netID {
				break
			}
			success = false
			break
		}
		pip, ok := arc.Wires[cursor]
		if !ok {
			// Structural inconsistency: the route tree doesn't actually
			// connect src to dst. This is a caller/model bug, not a
			// congestion failure, so surface it instead of silently
			// treating the arc as failed.
			panic(&StructuralError{Net: netID, Msg: "incomplete route tree for arc"})
		}
		if !r.dev.CheckPipAvail(pip) {
			success = false
			break
		}
		toBind = append(toBind, pip)
		cursor = r.dev.PipSrcWire(pip)
	}

	netUdata := r.udata.Index(netID)
	if success {
		if r.dev.GetBoundWireNet(srcWire) == fabric.NilNet {
			r.dev.BindWire(srcWire, netID, fabric.StrengthWeak)
		}
		for _, p := range toBind {
			r.dev.BindWire(r.dev.PipDstWire(p), netID, fabric.StrengthWeak)
			r.dev.BindPip(p, netID, fabric.StrengthWeak)
		}
	} else {
		r.ripupArc(netUdata, arc)
		r.markFailed(netID)
	}
	return success
}

// BindAndCheckAll commits every net's soft-routed arcs to the device's
// real binding table, first clearing out any of the device's own
// (weak-or-lower) prior bindings for that net (spec: bind_and_check_all).
// Called once congestion has been fully resolved (overused_wires == 0).
func (r *Router) BindAndCheckAll() bool {
	success := true
	for _, netID := range r.netsByUdata {
		net := r.nl.Net(netID)
		if net.Driver.Cell == fabric.NilCell {
			continue
		}
		for _, w := range r.boundWiresOf(netID) {
			r.dev.UnbindWire(w)
		}
		for i := range net.Users {
			if !r.BindAndCheck(netID, i) {
				r.archFail++
				success = false
			}
		}
	}
	return success
}

// boundWiresOf returns every wire the device currently has bound to net
// at STRENGTH_WEAK (CheckWireAvail still reports it free), which
// BindAndCheckAll must release before re-committing the router's freshly
// discovered routes.
func (r *Router) boundWiresOf(netID fabric.NetId) []fabric.WireId {
	var out []fabric.WireId
	for _, w := range r.dev.Wires() {
		if r.dev.GetBoundWireNet(w) == netID && r.dev.CheckWireAvail(w) {
			out = append(out, w)
		}
	}
	return out
}
