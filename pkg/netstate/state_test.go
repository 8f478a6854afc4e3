package netstate

import (
	"testing"

	"github.com/fabricpnr/corepnr/pkg/congestion"
	"github.com/fabricpnr/corepnr/pkg/fabric"
	"github.com/fabricpnr/corepnr/pkg/netlist"
)

// fakeDevice is a minimal fabric.Device double: two bels wired through a
// chain of pass-through wires, enough to exercise SetupNets and the
// reserved-wire walk without pulling in pkg/fabric/simfabric.
type fakeDevice struct {
	locs        map[fabric.BelId]fabric.Loc
	pins        map[fabric.BelId]map[string]fabric.WireId
	pipsUphill  map[fabric.WireId][]fabric.PipId
	pipSrc      map[fabric.PipId]fabric.WireId
	pipDst      map[fabric.PipId]fabric.WireId
	drivingPin  map[fabric.WireId]bool
	allWires    []fabric.WireId
	boundWire   map[fabric.WireId]fabric.NetId
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		locs:       make(map[fabric.BelId]fabric.Loc),
		pins:       make(map[fabric.BelId]map[string]fabric.WireId),
		pipsUphill: make(map[fabric.WireId][]fabric.PipId),
		pipSrc:     make(map[fabric.PipId]fabric.WireId),
		pipDst:     make(map[fabric.PipId]fabric.WireId),
		drivingPin: make(map[fabric.WireId]bool),
		boundWire:  make(map[fabric.WireId]fabric.NetId),
	}
}

func (d *fakeDevice) setPin(b fabric.BelId, pin string, w fabric.WireId, driving bool) {
	if d.pins[b] == nil {
		d.pins[b] = make(map[string]fabric.WireId)
	}
	d.pins[b][pin] = w
	d.drivingPin[w] = driving
	d.allWires = append(d.allWires, w)
}

func (d *fakeDevice) chain(from, to fabric.WireId, pip fabric.PipId) {
	d.pipSrc[pip] = from
	d.pipDst[pip] = to
	d.pipsUphill[to] = append(d.pipsUphill[to], pip)
	d.allWires = append(d.allWires, from, to)
}

func (d *fakeDevice) Bels() []fabric.BelId { return nil }
func (d *fakeDevice) Wires() []fabric.WireId {
	return d.allWires
}
func (d *fakeDevice) Pips() []fabric.PipId { return nil }

func (d *fakeDevice) PipsUphill(w fabric.WireId) []fabric.PipId   { return d.pipsUphill[w] }
func (d *fakeDevice) PipsDownhill(w fabric.WireId) []fabric.PipId { return nil }
func (d *fakeDevice) PipSrcWire(p fabric.PipId) fabric.WireId     { return d.pipSrc[p] }
func (d *fakeDevice) PipDstWire(p fabric.PipId) fabric.WireId     { return d.pipDst[p] }

func (d *fakeDevice) PipDelay(p fabric.PipId) fabric.Delay        { return fabric.Delay{} }
func (d *fakeDevice) WireDelay(w fabric.WireId) fabric.Delay      { return fabric.Delay{} }
func (d *fakeDevice) EstimateDelay(src, dst fabric.WireId) fabric.Delay {
	return fabric.Delay{}
}
func (d *fakeDevice) DelayEpsilon() float64 { return 0.001 }

func (d *fakeDevice) PipLocation(p fabric.PipId) fabric.Loc  { return fabric.Loc{} }
func (d *fakeDevice) BelLocation(b fabric.BelId) fabric.Loc  { return d.locs[b] }
func (d *fakeDevice) RouteBoundingBox(src, dst fabric.WireId) fabric.BoundingBox {
	return fabric.EmptyBoundingBox()
}

func (d *fakeDevice) BindWire(w fabric.WireId, net fabric.NetId, strength fabric.Strength) {
	d.boundWire[w] = net
}
func (d *fakeDevice) UnbindWire(w fabric.WireId) { delete(d.boundWire, w) }
func (d *fakeDevice) BindPip(p fabric.PipId, net fabric.NetId, strength fabric.Strength) {}
func (d *fakeDevice) UnbindPip(p fabric.PipId)                                          {}
func (d *fakeDevice) CheckWireAvail(w fabric.WireId) bool                               { return true }
func (d *fakeDevice) CheckPipAvail(p fabric.PipId) bool                                 { return true }
func (d *fakeDevice) GetBoundWireNet(w fabric.WireId) fabric.NetId {
	if n, ok := d.boundWire[w]; ok {
		return n
	}
	return fabric.NilNet
}
func (d *fakeDevice) GetBoundPipNet(p fabric.PipId) fabric.NetId { return fabric.NilNet }

func (d *fakeDevice) BindBel(b fabric.BelId, cell fabric.CellId, strength fabric.Strength) {}
func (d *fakeDevice) UnbindBel(b fabric.BelId)                                             {}
func (d *fakeDevice) GetBoundBelCell(b fabric.BelId) fabric.CellId                         { return fabric.NilCell }
func (d *fakeDevice) BelStrength(b fabric.BelId) fabric.Strength                           { return fabric.StrengthWeak }
func (d *fakeDevice) BelType(b fabric.BelId) string                                        { return "" }
func (d *fakeDevice) IsValidBelForCell(cell fabric.CellId, cellType string, bel fabric.BelId) bool {
	return true
}
func (d *fakeDevice) IsBelLocationValid(b fabric.BelId) bool { return true }

func (d *fakeDevice) BelPinWire(b fabric.BelId, pin string) fabric.WireId {
	w, ok := d.pins[b][pin]
	if !ok {
		return fabric.NilWire
	}
	return w
}

func (d *fakeDevice) HasDrivingBelPin(w fabric.WireId) bool { return d.drivingPin[w] }

func (d *fakeDevice) RNG() fabric.RNG { return fabric.NewDeterministicRNG(1) }

func TestSetupNetsResolvesPortsAndComputesHPWL(t *testing.T) {
	dev := newFakeDevice()
	dev.locs[0] = fabric.Loc{X: 0, Y: 0}
	dev.locs[1] = fabric.Loc{X: 3, Y: 4}
	dev.setPin(0, "O", 100, true)
	dev.setPin(1, "I", 101, false)

	nl := netlist.NewMemNetlist()
	nl.AddCell(0, "LUT4")
	nl.AddCell(1, "DFF")
	nl.PlaceCell(0, 0)
	nl.PlaceCell(1, 1)
	nl.AddNet(0, netlist.Driver{Cell: 0, Port: "O"}, []netlist.UserPin{{Cell: 1, Port: "I"}})

	udata := netlist.NewUdataTable(nl.Nets())
	nets, err := SetupNets(nl, dev, udata)
	if err != nil {
		t.Fatalf("SetupNets() error = %v", err)
	}
	nd, ok := nets[0]
	if !ok {
		t.Fatalf("net 0 missing from result")
	}
	if nd.Cx != 1 || nd.Cy != 2 {
		t.Fatalf("centroid = (%d, %d), want (1, 2)", nd.Cx, nd.Cy)
	}
	if nd.HPWL != (3 + 4) {
		t.Fatalf("HPWL = %d, want 7", nd.HPWL)
	}
	if len(nd.Arcs) != 1 {
		t.Fatalf("len(Arcs) = %d, want 1", len(nd.Arcs))
	}
}

func TestSetupNetsFailsOnUnplacedDriver(t *testing.T) {
	dev := newFakeDevice()
	nl := netlist.NewMemNetlist()
	nl.AddCell(0, "LUT4")
	nl.AddCell(1, "DFF")
	nl.AddNet(0, netlist.Driver{Cell: 0, Port: "O"}, []netlist.UserPin{{Cell: 1, Port: "I"}})

	udata := netlist.NewUdataTable(nl.Nets())
	if _, err := SetupNets(nl, dev, udata); err == nil {
		t.Fatalf("expected error for unplaced driver cell")
	}
}

func TestIsWireUndriveable(t *testing.T) {
	dev := newFakeDevice()
	dev.setPin(0, "O", 100, true)
	dev.setPin(1, "I", 101, false)
	dev.chain(100, 200, 1)

	if IsWireUndriveable(dev, 100) {
		t.Fatalf("wire 100 has a driving bel pin, should be driveable")
	}
	if IsWireUndriveable(dev, 200) {
		t.Fatalf("wire 200 has an uphill pip, should be driveable")
	}
	if !IsWireUndriveable(dev, 999) {
		t.Fatalf("wire 999 has neither an uphill pip nor a driving bel pin")
	}
}

func TestReserveWiresForArcWalksSinglePredecessorChain(t *testing.T) {
	dev := newFakeDevice()
	// src(100) --pip1--> mid(150) --pip2--> dst(200), each with exactly
	// one uphill pip, so the whole chain should be reserved.
	dev.chain(100, 150, 1)
	dev.chain(150, 200, 2)

	cong := congestion.NewMap(dev, func(fabric.NetId) int { return -1 })
	ReserveWiresForArc(dev, cong, 7, 100, 200)

	if cong.Wire(150).ReservedNet != 7 {
		t.Fatalf("mid wire ReservedNet = %d, want 7", cong.Wire(150).ReservedNet)
	}
	if cong.Wire(200).ReservedNet != 7 {
		t.Fatalf("dst wire ReservedNet = %d, want 7", cong.Wire(200).ReservedNet)
	}
	if cong.Wire(100).ReservedNet != -1 {
		t.Fatalf("src wire should not be reserved, got %d", cong.Wire(100).ReservedNet)
	}
}

func TestReserveWiresForArcStopsAtBranch(t *testing.T) {
	dev := newFakeDevice()
	dev.chain(100, 200, 1)
	dev.chain(101, 200, 2) // wire 200 now has two uphill pips

	cong := congestion.NewMap(dev, func(fabric.NetId) int { return -1 })
	ReserveWiresForArc(dev, cong, 7, 100, 200)

	if cong.Wire(200).ReservedNet != -1 {
		t.Fatalf("branching wire must not be reserved, got %d", cong.Wire(200).ReservedNet)
	}
}
