// Package simfabric provides an in-memory fabric.Device test double: a
// rectangular island-style fabric with configurable bel sites per tile
// and a regular wire/pip mesh connecting them, satisfying the
// adjacency-symmetry invariant pkg/fabric.Device documents. It exists so
// pkg/route and pkg/place can be exercised end to end without a real
// vendor device database, the same role pkg/jtag/simulator.go's
// SimAdapter plays for hardware the teacher has no physical access to.
package simfabric

import (
	"fmt"

	"github.com/fabricpnr/corepnr/pkg/fabric"
)

// BelTypeSpec describes one kind of site the grid can instantiate: its
// architecture type name and the input/output pin names it exposes.
type BelTypeSpec struct {
	Name    string
	Inputs  []string
	Outputs []string
}

// Config describes the rectangular grid to build: Width x Height tiles,
// each populated with one bel per entry in Types (so a tile with
// len(Types) == 2 has bels at z == 0 and z == 1).
type Config struct {
	Width, Height int
	Types         []BelTypeSpec
}

type belInfo struct {
	loc     fabric.Loc
	belType string
	pins    map[string]fabric.WireId
}

type pipInfo struct {
	src, dst fabric.WireId
	delay    fabric.Delay
}

// Device is a complete in-memory fabric.Device: every wire/pip/bel is a
// small dense int id, and routing goes driver-stub -> tile local bus ->
// row bus -> destination column's local bus -> sink-stub, giving full
// any-to-any reachability in at most two long-wire hops (spec:
// RouteBoundingBox's admissible Manhattan region over this mesh).
type Device struct {
	cfg Config

	bels    []fabric.BelId
	belInfo map[fabric.BelId]*belInfo

	wires    []fabric.WireId
	wireLoc  map[fabric.WireId]fabric.Loc
	drivenBy map[fabric.WireId]bool // true if some bel output pin attaches here

	pips       []fabric.PipId
	pipInfo    map[fabric.PipId]pipInfo
	pipsUphill map[fabric.WireId][]fabric.PipId
	pipsDown   map[fabric.WireId][]fabric.PipId

	boundWire map[fabric.WireId]fabric.NetId
	wireStr   map[fabric.WireId]fabric.Strength
	boundPip  map[fabric.PipId]fabric.NetId

	boundBel   map[fabric.BelId]fabric.CellId
	belStr     map[fabric.BelId]fabric.Strength
	nextWire   fabric.WireId
	nextPip    fabric.PipId
	nextBel    fabric.BelId
	localWire  map[fabric.Loc]fabric.WireId
	rowWire    []fabric.WireId
	colWire    []fabric.WireId
	rng        fabric.RNG
}

// NewGrid builds a Width x Height grid device from cfg, wiring every
// tile's bels into the local/row/column bus mesh.
func NewGrid(cfg Config) *Device {
	d := &Device{
		cfg:        cfg,
		belInfo:    make(map[fabric.BelId]*belInfo),
		wireLoc:    make(map[fabric.WireId]fabric.Loc),
		drivenBy:   make(map[fabric.WireId]bool),
		pipInfo:    make(map[fabric.PipId]pipInfo),
		pipsUphill: make(map[fabric.WireId][]fabric.PipId),
		pipsDown:   make(map[fabric.WireId][]fabric.PipId),
		boundWire:  make(map[fabric.WireId]fabric.NetId),
		wireStr:    make(map[fabric.WireId]fabric.Strength),
		boundPip:   make(map[fabric.PipId]fabric.NetId),
		boundBel:   make(map[fabric.BelId]fabric.CellId),
		belStr:     make(map[fabric.BelId]fabric.Strength),
		localWire:  make(map[fabric.Loc]fabric.WireId),
		rng:        fabric.NewDeterministicRNG(1),
	}

	for y := 0; y < cfg.Height; y++ {
		d.rowWire = append(d.rowWire, d.newWire(fabric.Loc{X: -1, Y: y}))
	}
	for x := 0; x < cfg.Width; x++ {
		d.colWire = append(d.colWire, d.newWire(fabric.Loc{X: x, Y: -1}))
	}

	for x := 0; x < cfg.Width; x++ {
		for y := 0; y < cfg.Height; y++ {
			loc := fabric.Loc{X: x, Y: y}
			local := d.newWire(loc)
			d.localWire[loc] = local

			d.newPip(local, d.rowWire[y])
			d.newPip(d.rowWire[y], local)
			d.newPip(local, d.colWire[x])
			d.newPip(d.colWire[x], local)

			for z, spec := range cfg.Types {
				b := d.newBel(fabric.Loc{X: x, Y: y, Z: z}, spec.Name)
				info := d.belInfo[b]
				for _, pin := range spec.Outputs {
					w := d.newWire(loc)
					d.drivenBy[w] = true
					info.pins[pin] = w
					d.newPip(w, local)
				}
				for _, pin := range spec.Inputs {
					w := d.newWire(loc)
					info.pins[pin] = w
					d.newPip(local, w)
				}
			}
		}
	}
	return d
}

func (d *Device) newWire(loc fabric.Loc) fabric.WireId {
	w := d.nextWire
	d.nextWire++
	d.wires = append(d.wires, w)
	d.wireLoc[w] = loc
	return w
}

func (d *Device) newPip(src, dst fabric.WireId) fabric.PipId {
	p := d.nextPip
	d.nextPip++
	d.pips = append(d.pips, p)
	d.pipInfo[p] = pipInfo{src: src, dst: dst, delay: fabric.Delay{Raw: 1}}
	d.pipsUphill[dst] = append(d.pipsUphill[dst], p)
	d.pipsDown[src] = append(d.pipsDown[src], p)
	return p
}

func (d *Device) newBel(loc fabric.Loc, belType string) fabric.BelId {
	b := d.nextBel
	d.nextBel++
	d.bels = append(d.bels, b)
	d.belInfo[b] = &belInfo{loc: loc, belType: belType, pins: make(map[string]fabric.WireId)}
	d.boundBel[b] = fabric.NilCell
	return b
}

func (d *Device) Bels() []fabric.BelId   { return append([]fabric.BelId(nil), d.bels...) }
func (d *Device) Wires() []fabric.WireId { return append([]fabric.WireId(nil), d.wires...) }
func (d *Device) Pips() []fabric.PipId   { return append([]fabric.PipId(nil), d.pips...) }

func (d *Device) PipsUphill(w fabric.WireId) []fabric.PipId   { return d.pipsUphill[w] }
func (d *Device) PipsDownhill(w fabric.WireId) []fabric.PipId { return d.pipsDown[w] }
func (d *Device) PipSrcWire(p fabric.PipId) fabric.WireId     { return d.pipInfo[p].src }
func (d *Device) PipDstWire(p fabric.PipId) fabric.WireId     { return d.pipInfo[p].dst }

func (d *Device) PipDelay(p fabric.PipId) fabric.Delay  { return d.pipInfo[p].delay }
func (d *Device) WireDelay(w fabric.WireId) fabric.Delay { return fabric.Delay{Raw: 0.1} }

// EstimateDelay returns the Manhattan tile distance between the two
// wires' locations, one pip-delay unit per tile step. It is not a lower
// bound on this mesh: a row or column bus crosses any number of tiles
// through two pips, so distant tiles are overestimated.
func (d *Device) EstimateDelay(src, dst fabric.WireId) fabric.Delay {
	a, b := d.wireLoc[src], d.wireLoc[dst]
	dx, dy := abs(a.X-b.X), abs(a.Y-b.Y)
	return fabric.Delay{Raw: float64(dx + dy)}
}

func (d *Device) DelayEpsilon() float64 { return 0.01 }

func (d *Device) PipLocation(p fabric.PipId) fabric.Loc {
	return d.wireLoc[d.pipInfo[p].dst]
}
func (d *Device) BelLocation(b fabric.BelId) fabric.Loc { return d.belInfo[b].loc }

// RouteBoundingBox returns the tile-aligned Manhattan rectangle spanning
// src and dst, expanded by one tile on every side. Row and column bus
// wires sit at coordinate -1 on their long axis (see NewGrid), so a pip
// onto a bus falls inside this box only when the box reaches x == -1
// (row bus) or y == -1 (column bus).
func (d *Device) RouteBoundingBox(src, dst fabric.WireId) fabric.BoundingBox {
	a, b := d.wireLoc[src], d.wireLoc[dst]
	bb := fabric.EmptyBoundingBox()
	bb.Extend(a.X, a.Y)
	bb.Extend(b.X, b.Y)
	return bb.Expanded(1, 1)
}

func (d *Device) BindWire(w fabric.WireId, net fabric.NetId, strength fabric.Strength) {
	d.boundWire[w] = net
	d.wireStr[w] = strength
}
func (d *Device) UnbindWire(w fabric.WireId) {
	delete(d.boundWire, w)
	delete(d.wireStr, w)
}
func (d *Device) BindPip(p fabric.PipId, net fabric.NetId, strength fabric.Strength) {
	d.boundPip[p] = net
	dst := d.pipInfo[p].dst
	d.boundWire[dst] = net
	d.wireStr[dst] = strength
}
func (d *Device) UnbindPip(p fabric.PipId) {
	delete(d.boundPip, p)
	delete(d.boundWire, d.pipInfo[p].dst)
	delete(d.wireStr, d.pipInfo[p].dst)
}
func (d *Device) CheckWireAvail(w fabric.WireId) bool {
	_, bound := d.boundWire[w]
	return !bound || d.wireStr[w] <= fabric.StrengthWeak
}
func (d *Device) CheckPipAvail(p fabric.PipId) bool {
	return d.CheckWireAvail(d.pipInfo[p].dst)
}
func (d *Device) GetBoundWireNet(w fabric.WireId) fabric.NetId {
	if net, ok := d.boundWire[w]; ok {
		return net
	}
	return fabric.NilNet
}
func (d *Device) GetBoundPipNet(p fabric.PipId) fabric.NetId {
	if net, ok := d.boundPip[p]; ok {
		return net
	}
	return fabric.NilNet
}

func (d *Device) BindBel(b fabric.BelId, cell fabric.CellId, strength fabric.Strength) {
	d.boundBel[b] = cell
	d.belStr[b] = strength
}
func (d *Device) UnbindBel(b fabric.BelId) {
	d.boundBel[b] = fabric.NilCell
	delete(d.belStr, b)
}
func (d *Device) GetBoundBelCell(b fabric.BelId) fabric.CellId { return d.boundBel[b] }
func (d *Device) BelStrength(b fabric.BelId) fabric.Strength   { return d.belStr[b] }
func (d *Device) BelType(b fabric.BelId) string                { return d.belInfo[b].belType }

// IsValidBelForCell reports whether cellType matches the bel's own type;
// this fixture has no further per-cell placement legality rules.
func (d *Device) IsValidBelForCell(cell fabric.CellId, cellType string, bel fabric.BelId) bool {
	return d.belInfo[bel].belType == cellType
}

// IsBelLocationValid always holds: a rectangular grid with one bel per
// type per tile has no placement-adjacency legality rule (e.g. carry
// chain continuity) for this fixture to violate.
func (d *Device) IsBelLocationValid(b fabric.BelId) bool { return true }

func (d *Device) BelPinWire(b fabric.BelId, pin string) fabric.WireId {
	info, ok := d.belInfo[b]
	if !ok {
		return fabric.NilWire
	}
	w, ok := info.pins[pin]
	if !ok {
		return fabric.NilWire
	}
	return w
}

func (d *Device) HasDrivingBelPin(w fabric.WireId) bool { return d.drivenBy[w] }

func (d *Device) RNG() fabric.RNG { return d.rng }

// BelAt returns the bel of the given type at (x, y, z), or fabric.NilBel
// if no such bel exists. It is a linear scan over every bel, used by
// tests to pick specific sites.
func (d *Device) BelAt(x, y, z int, belType string) fabric.BelId {
	for _, b := range d.bels {
		info := d.belInfo[b]
		if info.loc.X == x && info.loc.Y == y && info.loc.Z == z && info.belType == belType {
			return b
		}
	}
	return fabric.NilBel
}

func (d *Device) String() string {
	return fmt.Sprintf("simfabric.Device{%dx%d, %d bels, %d wires, %d pips}",
		d.cfg.Width, d.cfg.Height, len(d.bels), len(d.wires), len(d.pips))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
