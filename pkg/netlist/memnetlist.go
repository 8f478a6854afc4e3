package netlist

import "github.com/fabricpnr/corepnr/pkg/fabric"

// MemNetlist is a minimal in-memory Netlist used by tests and the demo
// CLI, grounded on the teacher's in-memory test doubles
// (pkg/jtag/chain_simulator.go, pkg/jtag/simulator.go's SimAdapter):
// plain structs built directly by the caller rather than parsed from any
// vendor format.
type MemNetlist struct {
	nets      map[fabric.NetId]Net
	netOrder  []fabric.NetId
	globals   map[fabric.NetId]bool
	cellTypes map[fabric.CellId]string
	cellBels  map[fabric.CellId]fabric.BelId
	cellOrder []fabric.CellId

	constrParent   map[fabric.CellId]fabric.CellId
	constrChildren map[fabric.CellId][]fabric.CellId
	regions        map[fabric.CellId]fabric.BoundingBox
}

// NewMemNetlist builds an empty netlist ready for AddCell/AddNet calls.
func NewMemNetlist() *MemNetlist {
	return &MemNetlist{
		nets:           make(map[fabric.NetId]Net),
		globals:        make(map[fabric.NetId]bool),
		cellTypes:      make(map[fabric.CellId]string),
		cellBels:       make(map[fabric.CellId]fabric.BelId),
		constrParent:   make(map[fabric.CellId]fabric.CellId),
		constrChildren: make(map[fabric.CellId][]fabric.CellId),
		regions:        make(map[fabric.CellId]fabric.BoundingBox),
	}
}

// AddCell registers a cell of the given architecture type, initially
// unplaced.
func (m *MemNetlist) AddCell(id fabric.CellId, cellType string) {
	if _, ok := m.cellTypes[id]; !ok {
		m.cellOrder = append(m.cellOrder, id)
	}
	m.cellTypes[id] = cellType
	if _, ok := m.cellBels[id]; !ok {
		m.cellBels[id] = fabric.NilBel
	}
}

// PlaceCell binds a cell to a bel directly (bypassing the placer),
// useful for building pre-placed test fixtures.
func (m *MemNetlist) PlaceCell(id fabric.CellId, bel fabric.BelId) {
	m.cellBels[id] = bel
}

// AddNet registers a net with the given driver and user pins.
func (m *MemNetlist) AddNet(id fabric.NetId, driver Driver, users []UserPin) {
	if _, ok := m.nets[id]; !ok {
		m.netOrder = append(m.netOrder, id)
	}
	m.nets[id] = Net{Driver: driver, Users: append([]UserPin(nil), users...)}
}

// SetGlobal marks a net as architecture-global.
func (m *MemNetlist) SetGlobal(id fabric.NetId, global bool) {
	m.globals[id] = global
}

func (m *MemNetlist) Nets() []fabric.NetId {
	return append([]fabric.NetId(nil), m.netOrder...)
}

func (m *MemNetlist) Net(id fabric.NetId) Net {
	return m.nets[id]
}

func (m *MemNetlist) Cells() []fabric.CellId {
	return append([]fabric.CellId(nil), m.cellOrder...)
}

func (m *MemNetlist) CellType(id fabric.CellId) string {
	return m.cellTypes[id]
}

func (m *MemNetlist) CellBel(id fabric.CellId) fabric.BelId {
	bel, ok := m.cellBels[id]
	if !ok {
		return fabric.NilBel
	}
	return bel
}

func (m *MemNetlist) IsGlobal(id fabric.NetId) bool {
	return m.globals[id]
}

// Constrain rigidly attaches child to parent, forming (or extending) a
// chain. The relative offset between them is whatever their placed bel
// locations currently are; the placer reads that back live rather than
// storing it, so chain members may be placed in any order.
func (m *MemNetlist) Constrain(parent, child fabric.CellId) {
	m.constrParent[child] = parent
	m.constrChildren[parent] = append(m.constrChildren[parent], child)
}

// SetRegion confines a cell's placement to bb.
func (m *MemNetlist) SetRegion(id fabric.CellId, bb fabric.BoundingBox) {
	m.regions[id] = bb
}

func (m *MemNetlist) ConstraintParent(id fabric.CellId) fabric.CellId {
	p, ok := m.constrParent[id]
	if !ok {
		return fabric.NilCell
	}
	return p
}

func (m *MemNetlist) ConstraintChildren(id fabric.CellId) []fabric.CellId {
	return append([]fabric.CellId(nil), m.constrChildren[id]...)
}

func (m *MemNetlist) Region(id fabric.CellId) (fabric.BoundingBox, bool) {
	bb, ok := m.regions[id]
	return bb, ok
}
