package route

import (
	"testing"

	"github.com/fabricpnr/corepnr/pkg/fabric"
	"github.com/fabricpnr/corepnr/pkg/netlist"
)

// fakeDevice is a small hand-wired fabric.Device double used to exercise
// the router end to end without pulling in pkg/fabric/simfabric. Every
// wire/pip id is just a small int picked by the test; bounding boxes are
// left wide open so tests exercise congestion resolution rather than
// bounding-box geometry.
type fakeDevice struct {
	locs       map[fabric.BelId]fabric.Loc
	pins       map[fabric.BelId]map[string]fabric.WireId
	driving    map[fabric.WireId]bool
	pipsUphill map[fabric.WireId][]fabric.PipId
	pipsDown   map[fabric.WireId][]fabric.PipId
	pipSrc     map[fabric.PipId]fabric.WireId
	pipDst     map[fabric.PipId]fabric.WireId
	allWires   []fabric.WireId
	allPips    []fabric.PipId

	boundWire map[fabric.WireId]fabric.NetId
	boundPip  map[fabric.PipId]fabric.NetId
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		locs:       make(map[fabric.BelId]fabric.Loc),
		pins:       make(map[fabric.BelId]map[string]fabric.WireId),
		driving:    make(map[fabric.WireId]bool),
		pipsUphill: make(map[fabric.WireId][]fabric.PipId),
		pipsDown:   make(map[fabric.WireId][]fabric.PipId),
		pipSrc:     make(map[fabric.PipId]fabric.WireId),
		pipDst:     make(map[fabric.PipId]fabric.WireId),
		boundWire:  make(map[fabric.WireId]fabric.NetId),
		boundPip:   make(map[fabric.PipId]fabric.NetId),
	}
}

func (d *fakeDevice) addWire(w fabric.WireId) {
	for _, existing := range d.allWires {
		if existing == w {
			return
		}
	}
	d.allWires = append(d.allWires, w)
}

func (d *fakeDevice) setPin(b fabric.BelId, pin string, w fabric.WireId, driving bool) {
	if d.pins[b] == nil {
		d.pins[b] = make(map[string]fabric.WireId)
	}
	d.pins[b][pin] = w
	d.driving[w] = driving
	d.addWire(w)
}

func (d *fakeDevice) addPip(p fabric.PipId, from, to fabric.WireId) {
	d.pipSrc[p] = from
	d.pipDst[p] = to
	d.pipsUphill[to] = append(d.pipsUphill[to], p)
	d.pipsDown[from] = append(d.pipsDown[from], p)
	d.allPips = append(d.allPips, p)
	d.addWire(from)
	d.addWire(to)
}

func (d *fakeDevice) Bels() []fabric.BelId   { return nil }
func (d *fakeDevice) Wires() []fabric.WireId { return d.allWires }
func (d *fakeDevice) Pips() []fabric.PipId   { return d.allPips }

func (d *fakeDevice) PipsUphill(w fabric.WireId) []fabric.PipId   { return d.pipsUphill[w] }
func (d *fakeDevice) PipsDownhill(w fabric.WireId) []fabric.PipId { return d.pipsDown[w] }
func (d *fakeDevice) PipSrcWire(p fabric.PipId) fabric.WireId     { return d.pipSrc[p] }
func (d *fakeDevice) PipDstWire(p fabric.PipId) fabric.WireId     { return d.pipDst[p] }

func (d *fakeDevice) PipDelay(p fabric.PipId) fabric.Delay   { return fabric.Delay{Raw: 1} }
func (d *fakeDevice) WireDelay(w fabric.WireId) fabric.Delay { return fabric.Delay{Raw: 0} }
func (d *fakeDevice) EstimateDelay(src, dst fabric.WireId) fabric.Delay {
	return fabric.Delay{Raw: 1}
}
func (d *fakeDevice) DelayEpsilon() float64 { return 0.01 }

func (d *fakeDevice) PipLocation(p fabric.PipId) fabric.Loc { return fabric.Loc{} }
func (d *fakeDevice) BelLocation(b fabric.BelId) fabric.Loc { return d.locs[b] }
func (d *fakeDevice) RouteBoundingBox(src, dst fabric.WireId) fabric.BoundingBox {
	return fabric.BoundingBox{X0: -100, Y0: -100, X1: 100, Y1: 100}
}

func (d *fakeDevice) BindWire(w fabric.WireId, net fabric.NetId, strength fabric.Strength) {
	d.boundWire[w] = net
}
func (d *fakeDevice) UnbindWire(w fabric.WireId) { delete(d.boundWire, w) }
func (d *fakeDevice) BindPip(p fabric.PipId, net fabric.NetId, strength fabric.Strength) {
	d.boundPip[p] = net
}
func (d *fakeDevice) UnbindPip(p fabric.PipId)          { delete(d.boundPip, p) }
func (d *fakeDevice) CheckWireAvail(w fabric.WireId) bool { return true }
func (d *fakeDevice) CheckPipAvail(p fabric.PipId) bool   { return true }
func (d *fakeDevice) GetBoundWireNet(w fabric.WireId) fabric.NetId {
	if n, ok := d.boundWire[w]; ok {
		return n
	}
	return fabric.NilNet
}
func (d *fakeDevice) GetBoundPipNet(p fabric.PipId) fabric.NetId {
	if n, ok := d.boundPip[p]; ok {
		return n
	}
	return fabric.NilNet
}

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
func (d *fakeDevice) HasDrivingBelPin(w fabric.WireId) bool { return d.driving[w] }
func (d *fakeDevice) RNG() fabric.RNG                       { return fabric.NewDeterministicRNG(42) }

// chainPathTo reports whether, walking the device's bound pips for net
// starting at dst, the chain terminates at src.
func chainPathTo(dev *fakeDevice, net fabric.NetId, src, dst fabric.WireId) bool {
	cursor := dst
	for cursor != src {
		found := false
		for _, p := range dev.pipsUphill[cursor] {
			if dev.boundPip[p] == net {
				cursor = dev.pipSrc[p]
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestRouterRoutesSimpleNet(t *testing.T) {
	dev := newFakeDevice()
	dev.locs[0], dev.locs[1] = fabric.Loc{X: 0, Y: 0}, fabric.Loc{X: 2, Y: 0}
	dev.setPin(0, "O", 100, true)
	dev.setPin(1, "I", 200, false)
	dev.addPip(1, 100, 150)
	dev.addPip(2, 150, 200)

	nl := netlist.NewMemNetlist()
	nl.AddCell(0, "LUT4")
	nl.AddCell(1, "DFF")
	nl.PlaceCell(0, 0)
	nl.PlaceCell(1, 1)
	nl.AddNet(0, netlist.Driver{Cell: 0, Port: "O"}, []netlist.UserPin{{Cell: 1, Port: "I"}})

	r, err := NewRouter(dev, nl, DefaultConfig())
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if dev.GetBoundWireNet(200) != 0 {
		t.Fatalf("sink wire not bound to net 0")
	}
	if !chainPathTo(dev, 0, 100, 200) {
		t.Fatalf("no bound pip chain from source to sink")
	}
	totalWireUse, overused, _, archFail := r.Totals()
	if overused != 0 {
		t.Fatalf("overusedWires = %d, want 0", overused)
	}
	if archFail != 0 {
		t.Fatalf("archFail = %d, want 0", archFail)
	}
	if totalWireUse == 0 {
		t.Fatalf("totalWireUse = 0, want > 0")
	}
}

// TestRouterResolvesCongestionBetweenTwoNets wires two nets that both
// want to cross a single shared wire, with an alternate path available
// only to net 1. Negotiated congestion should eventually push one net
// onto a path that leaves the shared wire used by a single net.
func TestRouterResolvesCongestionBetweenTwoNets(t *testing.T) {
	dev := newFakeDevice()
	dev.locs[0], dev.locs[1] = fabric.Loc{X: 0, Y: 0}, fabric.Loc{X: 0, Y: 1}
	dev.locs[2], dev.locs[3] = fabric.Loc{X: 4, Y: 0}, fabric.Loc{X: 4, Y: 1}

	dev.setPin(0, "O", 10, true)  // net0 driver
	dev.setPin(1, "O", 11, true)  // net1 driver
	dev.setPin(2, "I", 20, false) // net0 sink
	dev.setPin(3, "I", 21, false) // net1 sink

	const shared fabric.WireId = 50
	const alt fabric.WireId = 51

	// net0: driver0 -> shared -> sink0 (only path)
	dev.addPip(1, 10, shared)
	dev.addPip(2, shared, 20)
	// net1: driver1 -> shared -> sink1 (contested) or driver1 -> alt -> sink1
	dev.addPip(3, 11, shared)
	dev.addPip(4, shared, 21)
	dev.addPip(5, 11, alt)
	dev.addPip(6, alt, 21)

	nl := netlist.NewMemNetlist()
	nl.AddCell(0, "LUT4")
	nl.AddCell(1, "LUT4")
	nl.AddCell(2, "DFF")
	nl.AddCell(3, "DFF")
	nl.PlaceCell(0, 0)
	nl.PlaceCell(1, 1)
	nl.PlaceCell(2, 2)
	nl.PlaceCell(3, 3)
	nl.AddNet(0, netlist.Driver{Cell: 0, Port: "O"}, []netlist.UserPin{{Cell: 2, Port: "I"}})
	nl.AddNet(1, netlist.Driver{Cell: 1, Port: "O"}, []netlist.UserPin{{Cell: 3, Port: "I"}})

	cfg := DefaultConfig()
	cfg.MaxIterations = 50
	r, err := NewRouter(dev, nl, cfg)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if dev.GetBoundWireNet(shared) == fabric.NilNet {
		t.Fatalf("shared wire ended up unbound")
	}
	if !chainPathTo(dev, 0, 10, 20) {
		t.Fatalf("net 0 has no complete bound path")
	}
	if !chainPathTo(dev, 1, 11, 21) {
		t.Fatalf("net 1 has no complete bound path")
	}
	_, overused, _, _ := r.Totals()
	if overused != 0 {
		t.Fatalf("overusedWires = %d, want 0 after convergence", overused)
	}
}

func TestNewRouterFailsOnUnplacedDriver(t *testing.T) {
	dev := newFakeDevice()
	nl := netlist.NewMemNetlist()
	nl.AddCell(0, "LUT4")
	nl.AddCell(1, "DFF")
	nl.AddNet(0, netlist.Driver{Cell: 0, Port: "O"}, []netlist.UserPin{{Cell: 1, Port: "I"}})

	if _, err := NewRouter(dev, nl, DefaultConfig()); err == nil {
		t.Fatalf("expected error for unplaced driver cell")
	}
}
