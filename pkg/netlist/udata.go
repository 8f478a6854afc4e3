package netlist

import "github.com/fabricpnr/corepnr/pkg/fabric"

// UdataTable assigns a dense, array-indexable integer to every net in a
// netlist without mutating the netlist itself. nextpnr stamps this index
// directly onto NetInfo::udata; spec §9 calls that out as an
// implementation detail a host may forbid, recommending a side table
// instead when the host's netlist entities can't carry extra fields.
type UdataTable struct {
	byNet   map[fabric.NetId]int
	byIndex []fabric.NetId
}

// NewUdataTable assigns dense indices to nets in the order given. Callers
// typically pass nl.Nets() directly, but the order is the caller's choice
// (e.g. sorted for determinism).
func NewUdataTable(nets []fabric.NetId) *UdataTable {
	t := &UdataTable{
		byNet:   make(map[fabric.NetId]int, len(nets)),
		byIndex: make([]fabric.NetId, len(nets)),
	}
	for i, n := range nets {
		t.byNet[n] = i
		t.byIndex[i] = n
	}
	return t
}

// Index returns the dense index for a net id.
func (t *UdataTable) Index(n fabric.NetId) int {
	idx, ok := t.byNet[n]
	if !ok {
		return -1
	}
	return idx
}

// NetAt returns the net id for a dense index.
func (t *UdataTable) NetAt(idx int) fabric.NetId {
	return t.byIndex[idx]
}

// Len returns the number of nets indexed.
func (t *UdataTable) Len() int {
	return len(t.byIndex)
}
