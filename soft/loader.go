package soft

import (
	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/engine"
	"github.com/wippyai/offload/handle"
)

// Name is the backend's registry name.
const Name = "softref"

type loader struct{}

// Load builds a fresh backend instance. Every activation gets its own
// handle arena; handles never cross activations.
func (loader) Load() (*dispatch.Table, error) {
	b := engine.New(Name, NewRunner(0), engine.Config{})
	return b.Table(), nil
}

// LoadIO provides the surface extension as typed no-ops: there is no
// display to bind, but the table loads and validates so callers can
// exercise the extension path.
func (loader) LoadIO() (*dispatch.IOTable, error) {
	return &dispatch.IOTable{
		AllocationSetSurface: func(ctx, alloc handle.Handle, surface any) error { return nil },
		AllocationIoSend:     func(ctx, alloc handle.Handle) error { return nil },
	}, nil
}

func init() {
	dispatch.Register(Name, loader{})
}
