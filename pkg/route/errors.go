package route

import (
	"fmt"

	"github.com/fabricpnr/corepnr/pkg/fabric"
)

// StructuralError reports an inconsistency in the device model or
// netlist that the router cannot route around: a missing port wire, an
// incomplete route tree, or similar. It is always a caller bug, never a
// routing failure (those are reported as unrouted nets, not errors).
type StructuralError struct {
	Net fabric.NetId
	Msg string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("router: net %d: %s", e.Net, e.Msg)
}

func structuralErrorf(net fabric.NetId, format string, args ...interface{}) error {
	return &StructuralError{Net: net, Msg: fmt.Sprintf(format, args...)}
}
