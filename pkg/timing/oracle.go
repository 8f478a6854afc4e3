// Package timing defines the timing-oracle contract consumed by the
// router and placer (spec §6): per-arc criticality and delay prediction,
// driven externally by a static timing analyzer this module never sees.
package timing

import "github.com/fabricpnr/corepnr/pkg/fabric"

// NetCriticality holds one net's per-user-pin criticality, a scalar in
// [0, 1] reflecting slack proximity (1.0 is the most critical).
type NetCriticality struct {
	Criticality []float64
}

// Oracle is the contract an external static timing analyzer exposes.
type Oracle interface {
	// Criticalities returns per-net, per-arc criticality for the current
	// placement/routing topology.
	Criticalities() map[fabric.NetId]NetCriticality
	// PredictDelay estimates the delay of one arc given the current
	// routing topology.
	PredictDelay(net fabric.NetId, user int) fabric.Delay
	// EstimateDelay gives a topology-independent delay lower bound
	// between two wires (used by the router's A* togo-cost).
	EstimateDelay(src, dst fabric.WireId) fabric.Delay
}
