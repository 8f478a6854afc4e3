// Package fabric defines the device-model contract shared by the router
// and placer: opaque bel/wire/pip/net identifiers, geometry, delay, and
// binding-strength types, plus the Device interface itself.
//
// The device model is an external collaborator: this package only
// describes the shape a real fabric database must have. pkg/fabric/simfabric
// provides a concrete in-memory Device for tests and the demo CLI.
package fabric

// BelId identifies a physical primitive site (LUT, flip-flop, IO buffer).
// Real ids start at 0; NilBel is the sentinel "no bel".
type BelId int32

// WireId identifies a unique electrical wire segment. Real ids start at
// 0; NilWire is the sentinel "no wire".
type WireId int32

// PipId identifies a programmable interconnect point. Real ids start at
// 0; NilPip is the sentinel "no pip".
type PipId int32

// NilBel, NilWire, and NilPip are the sentinel identifiers returned when
// no bel/wire/pip applies (e.g. an unbound cell, or a pip's absence on a
// source wire's route-tree entry). Real ids are always >= 0, so -1 is
// safe as a sentinel.
const (
	NilBel  BelId = -1
	NilWire WireId = -1
	NilPip  PipId = -1
)

// NetId identifies a net in the external netlist.
type NetId int32

// NilNet is the sentinel "no net" identifier.
const NilNet NetId = -1

// CellId identifies a cell (logic instance) in the external netlist.
type CellId int32

// NilCell is the sentinel "no cell" identifier.
const NilCell CellId = -1
