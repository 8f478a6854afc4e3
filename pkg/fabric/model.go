package fabric

// Device is the contract the router and placer consume from the fabric
// database. It is immutable except for the binding table (bindWire/
// bindPip/bindBel and their inverses), which the router and placer use
// to commit final results; in-flight congestion/placement state lives in
// the core's own data structures, not here.
//
// Implementations must satisfy the adjacency-symmetry invariant: for
// every wire w, every uphill pip of w appears in the downhill list of
// its source wire, and symmetrically for downhill pips and destination
// wires.
type Device interface {
	// Bels returns every bel in the device.
	Bels() []BelId
	// Wires returns every wire in the device.
	Wires() []WireId
	// Pips returns every pip in the device.
	Pips() []PipId

	// PipsUphill returns the pips that can drive the given wire.
	PipsUphill(w WireId) []PipId
	// PipsDownhill returns the pips the given wire can drive.
	PipsDownhill(w WireId) []PipId
	// PipSrcWire returns a pip's source wire.
	PipSrcWire(p PipId) WireId
	// PipDstWire returns a pip's destination wire.
	PipDstWire(p PipId) WireId

	// PipDelay estimates the delay of traversing a pip.
	PipDelay(p PipId) Delay
	// WireDelay estimates the delay contribution of a wire.
	WireDelay(w WireId) Delay
	// EstimateDelay gives a topology-independent lower-bound delay
	// estimate between two wires, used as the A* admissible remainder.
	EstimateDelay(src, dst WireId) Delay
	// DelayEpsilon is a small constant added to delay sums to keep costs
	// strictly positive.
	DelayEpsilon() float64

	// PipLocation returns a pip's (x, y, z) location.
	PipLocation(p PipId) Loc
	// BelLocation returns a bel's (x, y, z) location.
	BelLocation(b BelId) Loc
	// RouteBoundingBox returns the bounding box a route between two wires
	// should be constrained to.
	RouteBoundingBox(src, dst WireId) BoundingBox

	// BindWire commits a wire to a net at the given strength.
	BindWire(w WireId, net NetId, strength Strength)
	// UnbindWire clears a wire's binding.
	UnbindWire(w WireId)
	// BindPip commits a pip to a net at the given strength.
	BindPip(p PipId, net NetId, strength Strength)
	// UnbindPip clears a pip's binding.
	UnbindPip(p PipId)
	// CheckWireAvail reports whether a wire is free to bind (or already
	// bound at STRENGTH_WEAK, rippable by the caller).
	CheckWireAvail(w WireId) bool
	// CheckPipAvail reports whether a pip is free to bind.
	CheckPipAvail(p PipId) bool
	// GetBoundWireNet returns the net currently bound to a wire, or
	// NilNet.
	GetBoundWireNet(w WireId) NetId
	// GetBoundPipNet returns the net currently bound to a pip, or NilNet.
	GetBoundPipNet(p PipId) NetId

	// BindBel commits a bel to a cell at the given strength.
	BindBel(b BelId, cell CellId, strength Strength)
	// UnbindBel clears a bel's binding.
	UnbindBel(b BelId)
	// GetBoundBelCell returns the cell bound to a bel, or NilCell if free.
	GetBoundBelCell(b BelId) CellId
	// BelStrength returns the strength of a bel's current binding,
	// meaningless if the bel is unbound. Used by the placer to refuse to
	// displace STRENGTH_STRONG/STRENGTH_USER occupants.
	BelStrength(b BelId) Strength
	// BelType returns a bel's architecture type (e.g. "LUT4", "DFF").
	BelType(b BelId) string
	// IsValidBelForCell reports whether a cell type may legally occupy a
	// bel.
	IsValidBelForCell(cell CellId, cellType string, bel BelId) bool
	// IsBelLocationValid reports whether the current occupant (if any)
	// of a bel satisfies architecture-specific placement legality.
	IsBelLocationValid(b BelId) bool

	// BelPinWire returns the wire attached to a bel's named pin, or
	// NilWire if the bel has no such pin. Used to resolve a cell's
	// driver/user ports to device wires once the cell is placed.
	BelPinWire(b BelId, pin string) WireId

	// HasDrivingBelPin reports whether any bel pin attached to the wire
	// is an output or bidirectional pin (i.e. not purely a sink). Used
	// together with PipsUphill to decide whether a wire is
	// "driveable" (spec: find_all_reserved_wires).
	HasDrivingBelPin(w WireId) bool

	// RNG returns the device's deterministic random source.
	RNG() RNG
}
