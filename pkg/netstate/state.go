package netstate

import (
	"fmt"

	"github.com/fabricpnr/corepnr/pkg/congestion"
	"github.com/fabricpnr/corepnr/pkg/fabric"
	"github.com/fabricpnr/corepnr/pkg/netlist"
)

// SetupNets builds one NetData per routable net (globals are skipped, per
// netlist.IsGlobal), resolving every driver/user port to a device wire
// through the cell's placed bel. It fails if any port has no wire, which
// means the cell is unplaced or the architecture binding is broken
// (spec: setup_nets).
func SetupNets(nl netlist.Netlist, dev fabric.Device, udata *netlist.UdataTable) (map[fabric.NetId]*NetData, error) {
	out := make(map[fabric.NetId]*NetData)
	for _, id := range nl.Nets() {
		if nl.IsGlobal(id) {
			continue
		}
		net := nl.Net(id)
		srcWire, err := PortWire(nl, dev, net.Driver.Cell, net.Driver.Port)
		if err != nil {
			return nil, fmt.Errorf("net %d: driver: %w", id, err)
		}

		nd := &NetData{
			Arcs: make([]ArcData, len(net.Users)),
			BB:   fabric.EmptyBoundingBox(),
		}
		driverLoc := dev.BelLocation(nl.CellBel(net.Driver.Cell))
		nd.BB.Extend(driverLoc.X, driverLoc.Y)
		cx, cy, n := driverLoc.X, driverLoc.Y, 1

		for i, user := range net.Users {
			dstWire, err := PortWire(nl, dev, user.Cell, user.Port)
			if err != nil {
				return nil, fmt.Errorf("net %d: user %d: %w", id, i, err)
			}
			arc := newArcData()
			arc.BB = dev.RouteBoundingBox(srcWire, dstWire)
			nd.Arcs[i] = arc
			nd.BB.Union(arc.BB)

			loc := dev.BelLocation(nl.CellBel(user.Cell))
			nd.BB.Extend(loc.X, loc.Y)
			cx += loc.X
			cy += loc.Y
			n++
		}
		nd.Cx, nd.Cy = cx/n, cy/n
		nd.HPWL = nd.BB.HPWL()
		if nd.HPWL < 1 {
			nd.HPWL = 1
		}

		out[id] = nd
	}
	return out, nil
}

// PortWire resolves a cell's named port to the device wire attached to
// its placed bel's pin.
func PortWire(nl netlist.Netlist, dev fabric.Device, cell fabric.CellId, port string) (fabric.WireId, error) {
	bel := nl.CellBel(cell)
	if bel == fabric.NilBel {
		return fabric.NilWire, fmt.Errorf("cell %d is unplaced", cell)
	}
	w := dev.BelPinWire(bel, port)
	if w == fabric.NilWire {
		return fabric.NilWire, fmt.Errorf("cell %d has no wire on port %q", cell, port)
	}
	return w, nil
}

// IsWireUndriveable reports whether a wire can never be reached by the
// router: it has no uphill pip and no bel pin capable of driving it
// (spec: is_wire_undriveable). Neither the router's search nor
// ReserveWiresForArc calls it, so undriveable wires are not filtered out
// of either.
func IsWireUndriveable(dev fabric.Device, w fabric.WireId) bool {
	if len(dev.PipsUphill(w)) > 0 {
		return false
	}
	return !dev.HasDrivingBelPin(w)
}

// ReserveWiresForArc walks backward from dst towards src along chains of
// wires that have exactly one uphill pip, marking each such wire
// reserved for netUdata in the congestion map. These single-predecessor
// wires can only ever carry this one net, so reserving them lets the
// search prune them instantly for every other net (spec:
// reserve_wires_for_arc). The walk stops at src, at a wire with more
// than one uphill option, or at a wire already reserved for a different
// net.
func ReserveWiresForArc(dev fabric.Device, cong *congestion.Map, netUdata int, src, dst fabric.WireId) {
	w := dst
	for w != src {
		ups := dev.PipsUphill(w)
		if len(ups) != 1 {
			return
		}
		wd := cong.Wire(w)
		if wd.ReservedNet != -1 && wd.ReservedNet != netUdata {
			return
		}
		wd.ReservedNet = netUdata
		w = dev.PipSrcWire(ups[0])
	}
}

// FindAllReservedWires runs ReserveWiresForArc over every arc of every
// net, seeding the congestion map's reservation table before routing
// begins (spec: find_all_reserved_wires).
func FindAllReservedWires(dev fabric.Device, cong *congestion.Map, nl netlist.Netlist, nets map[fabric.NetId]*NetData, udata *netlist.UdataTable) {
	for id, nd := range nets {
		idx := udata.Index(id)
		if idx < 0 {
			continue
		}
		net := nl.Net(id)
		srcWire, err := PortWire(nl, dev, net.Driver.Cell, net.Driver.Port)
		if err != nil {
			continue
		}
		for i, user := range net.Users {
			dstWire, err := PortWire(nl, dev, user.Cell, user.Port)
			if err != nil {
				continue
			}
			_ = nd.Arcs[i]
			ReserveWiresForArc(dev, cong, idx, srcWire, dstWire)
		}
	}
}
