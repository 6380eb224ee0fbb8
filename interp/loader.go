package interp

import (
	"context"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/engine"
)

// Name is the backend's registry name.
const Name = "inc"

type loader struct{}

func (loader) Load() (*dispatch.Table, error) {
	b := engine.New(Name, NewRunner(context.Background()), engine.Config{})
	return b.Table(), nil
}

func init() {
	dispatch.Register(Name, loader{})
}
