package engine

import (
	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/handle"
)

// sampler holds filtering and wrap state for scripts that sample
// allocations. The engine only stores it; runners read it through the
// bound object handle.
type sampler struct {
	mag, min            dispatch.SamplerValue
	wrapS, wrapT, wrapR dispatch.SamplerValue
	aniso               float32
}

// SamplerCreate mints a sampler.
func (b *Backend) SamplerCreate(ctx handle.Handle, mag, min, wrapS, wrapT, wrapR dispatch.SamplerValue, aniso float32) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	s := &sampler{
		mag:   mag,
		min:   min,
		wrapS: wrapS,
		wrapT: wrapT,
		wrapR: wrapR,
		aniso: aniso,
	}
	return b.mint(c, handle.KindSampler, s)
}
