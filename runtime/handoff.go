package runtime

import (
	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
)

// Handoff runs launches on an incremental backend over memory owned by
// a primary backend's allocations. The two contexts belong to different
// activated tables; their handles never mix, so sharing happens through
// raw memory export plus a pair of drain barriers around every launch.
type Handoff struct {
	primary *Context
	inc     *Context
}

// NewHandoff pairs a primary context with an incremental one.
func NewHandoff(primary, inc *Context) (*Handoff, error) {
	if primary == nil || inc == nil {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "handoff needs both contexts")
	}
	if primary.rt == inc.rt {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "handoff requires two distinct backends")
	}
	return &Handoff{primary: primary, inc: inc}, nil
}

// Primary returns the producing context.
func (h *Handoff) Primary() *Context { return h.primary }

// Inc returns the incremental context.
func (h *Handoff) Inc() *Context { return h.inc }

// ShareAllocation exports a primary allocation's base-level memory and
// wraps it in an incremental-backend allocation without copying. Writes
// on either side land in the same bytes; coherence is governed by the
// launch barriers.
//
// Only leaf-element allocations can be shared: a structured element has
// no portable creation parameters to mirror.
func (h *Handoff) ShareAllocation(a *Allocation) (*Allocation, error) {
	if a.ctx != h.primary {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "allocation does not belong to the primary context")
	}
	elem := a.typ.elem
	if elem == nil || elem.dataType == dispatch.DataNone {
		return nil, errors.Unsupported(errors.PhaseRuntime, "sharing structured-element allocations")
	}

	mem, _, err := h.primary.rt.tab.AllocationGetPointer(
		h.primary.h, a.h, 0, dispatch.FacePositiveX, 0, 0)
	if err != nil {
		return nil, err
	}

	incElem, err := h.inc.NewElement(elem.dataType, elem.kind, elem.normalized, elem.vecSize)
	if err != nil {
		return nil, err
	}
	incType, err := h.inc.NewType(incElem, a.typ.dimX, a.typ.dimY, a.typ.dimZ, false, false, a.typ.yuv)
	if err != nil {
		return nil, err
	}
	incH, err := h.inc.rt.tab.AllocationCreateTyped(
		h.inc.h, incType.h, dispatch.MipmapNone, dispatch.UsageShared, mem)
	if err != nil {
		return nil, err
	}
	return &Allocation{ctx: h.inc, h: incH, typ: incType}, nil
}

// ForEach launches a kernel on the incremental backend, bracketed by
// the mandatory barrier pair: the primary context is drained before the
// launch so its pending writes are visible, and the incremental context
// is drained before returning so the results are visible to the
// primary.
func (h *Handoff) ForEach(s *Script, slot uint32, in, out *Allocation, params []byte, clip *dispatch.ScriptCall) error {
	if s.ctx != h.inc {
		return errors.InvalidInput(errors.PhaseExecute, "script does not belong to the incremental context")
	}
	if err := h.primary.Finish(); err != nil {
		return err
	}
	if err := s.ForEach(slot, in, out, params, clip); err != nil {
		return err
	}
	return h.inc.Finish()
}

// Invoke runs a plain invokable on the incremental backend with the
// same barrier pair as ForEach.
func (h *Handoff) Invoke(s *Script, slot uint32, params []byte) error {
	if s.ctx != h.inc {
		return errors.InvalidInput(errors.PhaseExecute, "script does not belong to the incremental context")
	}
	if err := h.primary.Finish(); err != nil {
		return err
	}
	if err := s.InvokeV(slot, params); err != nil {
		return err
	}
	return h.inc.Finish()
}
