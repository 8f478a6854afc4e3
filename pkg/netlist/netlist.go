// Package netlist defines the netlist contract the router and placer
// consume: cells, nets, and user pins, indexed by the small integer
// identifiers defined in pkg/fabric. Like pkg/fabric, the netlist itself
// is an external collaborator; MemNetlist is the in-memory test double.
package netlist

import "github.com/fabricpnr/corepnr/pkg/fabric"

// UserPin is one sink of a net: a cell and the input port it drives.
type UserPin struct {
	Cell fabric.CellId
	Port string
}

// Driver is a net's source: a cell and the output port driving the net,
// or a zero-value Driver (Cell == fabric.NilCell) for an undriven net.
type Driver struct {
	Cell fabric.CellId
	Port string
}

// Net aggregates one net's driver and ordered user pins. User-pin order
// is significant: arcs are indexed by position in Users, and that index
// is the "user" identifier threaded through PerArcData, timing
// criticality, and incremental cost tracking.
type Net struct {
	Driver Driver
	Users  []UserPin
}

// Netlist is the contract the router/placer read cell and net topology
// from. Mutation (moving a cell's bel, ripping up wires) happens through
// the fabric.Device binding table, not through this interface; Netlist
// only reports static topology and cell/bel state.
type Netlist interface {
	// Nets returns every net id in the design.
	Nets() []fabric.NetId
	// Net returns the net's driver/users.
	Net(id fabric.NetId) Net
	// Cells returns every cell id in the design.
	Cells() []fabric.CellId
	// CellType returns a cell's architecture type.
	CellType(id fabric.CellId) string
	// CellBel returns the bel currently bound to a cell, or
	// fabric.NilBel if unplaced.
	CellBel(id fabric.CellId) fabric.BelId
	// PlaceCell records the bel a cell currently occupies. The placer
	// calls this every time it moves a cell so that CellBel and the
	// device's own binding table (fabric.Device.BindBel/UnbindBel) never
	// drift apart.
	PlaceCell(id fabric.CellId, bel fabric.BelId)
	// IsGlobal reports whether a net is architecture-global (e.g. a
	// clock distributed via dedicated resources) and should be skipped
	// by the router and the placer's wirelength cost.
	IsGlobal(id fabric.NetId) bool

	// ConstraintParent returns the cell a cell is rigidly attached to as
	// part of a chain, or fabric.NilCell if it is unconstrained or is
	// itself a chain base.
	ConstraintParent(id fabric.CellId) fabric.CellId
	// ConstraintChildren returns the cells rigidly attached to this one.
	ConstraintChildren(id fabric.CellId) []fabric.CellId
	// Region returns the bounding box a cell's placement is confined to
	// and whether the cell is region-constrained at all; an
	// unconstrained cell may be placed anywhere its type fits.
	Region(id fabric.CellId) (fabric.BoundingBox, bool)
}
