package route

import (
	"github.com/fabricpnr/corepnr/pkg/fabric"
	"github.com/fabricpnr/corepnr/pkg/netstate"
)

// bindPipInternal records wire -> pip in the arc's route tree and
// registers the binding in the congestion map. pip is fabric.NilPip for
// an arc's source wire.
func (r *Router) bindPipInternal(netUdata int, ad *arcHandle, wire fabric.WireId, pip fabric.PipId) {
	r.cong.BindPip(wire, netUdata, pip)
	ad.arc.Wires[wire] = pip
}

// unbindPipInternal reverses bindPipInternal. If dontTouchArc is set the
// route-tree entry is left in place (used by ripupArc, which clears the
// whole map itself afterwards).
func (r *Router) unbindPipInternal(netUdata int, arc *netstate.ArcData, wire fabric.WireId, dontTouchArc bool) {
	r.cong.UnbindPip(wire, netUdata)
	if !dontTouchArc {
		delete(arc.Wires, wire)
	}
}

// ripupArc tears down one arc's entire route tree.
func (r *Router) ripupArc(netUdata int, arc *netstate.ArcData) {
	for wire := range arc.Wires {
		r.unbindPipInternal(netUdata, arc, wire, true)
	}
	arc.Clear()
}

// checkArcRouting reports whether an arc's existing route tree is still
// a legal, uncongested path from src to dst (spec: check_arc_routing).
// A net whose routing is still legal after an iteration's rip-ups is
// left untouched rather than rerouted from scratch.
func (r *Router) checkArcRouting(arc *netstate.ArcData, src, dst fabric.WireId) bool {
	cursor := dst
	for {
		pip, ok := arc.Wires[cursor]
		if !ok {
			break
		}
		if r.cong.Wire(cursor).BoundNetCount() != 1 {
			return false
		}
		if pip == fabric.NilPip {
			break
		}
		cursor = r.dev.PipSrcWire(pip)
	}
	return cursor == src
}

// RouteNet routes every arc of a net that needs it: arcs whose existing
// routing is still legal are left alone, the rest are ripped up and
// routed fresh. In multi-threaded mode an arc that can't be routed
// within its bounding box is reported as a failure rather than retried
// unboundedly, since relaxing the bound isn't safe to do concurrently
// (spec: route_net).
func (r *Router) RouteNet(t *ThreadContext, netID fabric.NetId, isMT bool) (bool, error) {
	net := r.nl.Net(netID)
	if net.Driver.Cell == fabric.NilCell {
		return true, nil
	}

	for k := range t.processedSinks {
		delete(t.processedSinks, k)
	}
	t.routeArcs = t.routeArcs[:0]

	srcWire, err := netstate.PortWire(r.nl, r.dev, net.Driver.Cell, net.Driver.Port)
	if err != nil {
		if isMT {
			return false, nil
		}
		return false, structuralErrorf(netID, "%v", err)
	}

	nd := r.nets[netID]
	for i, usr := range net.Users {
		dstWire, err := netstate.PortWire(r.nl, r.dev, usr.Cell, usr.Port)
		if err != nil {
			if isMT {
				continue
			}
			return false, structuralErrorf(netID, "%v", err)
		}
		arc := &nd.Arcs[i]
		if r.checkArcRouting(arc, srcWire, dstWire) {
			continue
		}
		r.ripupArc(r.udata.Index(netID), arc)
		t.routeArcs = append(t.routeArcs, i)
	}

	haveFailures := false
	for _, i := range t.routeArcs {
		res, err := r.RouteArc(t, netID, i, isMT, true)
		if err != nil {
			return false, err
		}
		if res == ArcFatal {
			return false, nil
		}
		if res != ArcRetryWithoutBB {
			continue
		}
		if isMT {
			haveFailures = true
			continue
		}
		res2, err := r.RouteArc(t, netID, i, isMT, false)
		if err != nil {
			return false, err
		}
		if res2 != ArcSuccess {
			return false, structuralErrorf(netID, "failed to route arc %d even without a bounding box", i)
		}
	}
	return !haveFailures, nil
}
