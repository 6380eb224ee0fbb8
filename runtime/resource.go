package runtime

import (
	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/handle"
)

// Element describes a data type. The wrapper retains the creation
// parameters so the element can be mirrored onto another backend.
type Element struct {
	ctx *Context
	h   handle.Handle

	dataType   dispatch.DataType
	kind       dispatch.DataKind
	normalized bool
	vecSize    uint32
}

// NewElement creates a leaf element.
func (c *Context) NewElement(dt dispatch.DataType, dk dispatch.DataKind, normalized bool, vecSize uint32) (*Element, error) {
	h, err := c.rt.tab.ElementCreate(c.h, dt, dk, normalized, vecSize)
	if err != nil {
		return nil, err
	}
	return &Element{ctx: c, h: h, dataType: dt, kind: dk, normalized: normalized, vecSize: vecSize}, nil
}

// NewStructElement creates a structured element from parallel arrays of
// members, names and array sizes.
func (c *Context) NewStructElement(members []*Element, names []string, arraySizes []uint32) (*Element, error) {
	ids := make([]handle.Handle, len(members))
	for i, m := range members {
		ids[i] = m.h
	}
	h, err := c.rt.tab.ElementCreate2(c.h, ids, names, arraySizes)
	if err != nil {
		return nil, err
	}
	return &Element{ctx: c, h: h}, nil
}

// Handle exposes the raw element handle.
func (e *Element) Handle() handle.Handle { return e.h }

// SubElements lists the structured element's direct members.
func (e *Element) SubElements(cap int) ([]dispatch.SubElement, error) {
	out := make([]dispatch.SubElement, cap)
	n, err := e.ctx.rt.tab.ElementGetSubElements(e.ctx.h, e.h, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// Type is an element plus shape.
type Type struct {
	ctx  *Context
	h    handle.Handle
	elem *Element

	dimX, dimY, dimZ uint32
	mips, faces      bool
	yuv              dispatch.YUVFormat
}

// NewType creates a shaped type over an element.
func (c *Context) NewType(elem *Element, dimX, dimY, dimZ uint32, mips, faces bool, yuv dispatch.YUVFormat) (*Type, error) {
	h, err := c.rt.tab.TypeCreate(c.h, elem.h, dimX, dimY, dimZ, mips, faces, yuv)
	if err != nil {
		return nil, err
	}
	return &Type{ctx: c, h: h, elem: elem, dimX: dimX, dimY: dimY, dimZ: dimZ, mips: mips, faces: faces, yuv: yuv}, nil
}

// Handle exposes the raw type handle.
func (t *Type) Handle() handle.Handle { return t.h }

// Dims returns the type's base dimensions.
func (t *Type) Dims() (x, y, z uint32) { return t.dimX, t.dimY, t.dimZ }

// Allocation is a typed buffer instance.
type Allocation struct {
	ctx *Context
	h   handle.Handle
	typ *Type

	// pixels is non-nil for bitmap-backed allocations; Destroy unlocks.
	pixels pixelLock
}

type pixelLock interface {
	UnlockPixels() error
}

// NewAllocation creates a backend-managed allocation.
func (c *Context) NewAllocation(t *Type, mips dispatch.MipmapControl, usage dispatch.UsageFlags) (*Allocation, error) {
	h, err := c.rt.tab.AllocationCreateTyped(c.h, t.h, mips, usage, nil)
	if err != nil {
		return nil, err
	}
	return &Allocation{ctx: c, h: h, typ: t}, nil
}

// Handle exposes the raw allocation handle.
func (a *Allocation) Handle() handle.Handle { return a.h }

// Type returns the creating type wrapper.
func (a *Allocation) Type() *Type { return a.typ }

// Data1D writes a linear element run.
func (a *Allocation) Data1D(off, lod, count uint32, p []byte) error {
	return a.ctx.rt.tab.AllocationData1D(a.ctx.h, a.h, off, lod, count, p)
}

// Read1D reads a linear element run.
func (a *Allocation) Read1D(off, lod, count uint32, buf []byte) error {
	return a.ctx.rt.tab.AllocationRead1D(a.ctx.h, a.h, off, lod, count, buf)
}

// Data2D writes a rectangle of one lod/face slice.
func (a *Allocation) Data2D(xoff, yoff, lod uint32, face dispatch.CubemapFace, w, h uint32, p []byte) error {
	return a.ctx.rt.tab.AllocationData2D(a.ctx.h, a.h, xoff, yoff, lod, face, w, h, p)
}

// Read2D reads a rectangle of one lod/face slice.
func (a *Allocation) Read2D(xoff, yoff, lod uint32, face dispatch.CubemapFace, w, h uint32, buf []byte) error {
	return a.ctx.rt.tab.AllocationRead2D(a.ctx.h, a.h, xoff, yoff, lod, face, w, h, buf)
}

// Data3D writes a box region of a 3D allocation.
func (a *Allocation) Data3D(xoff, yoff, zoff, lod, w, h, d uint32, p []byte) error {
	return a.ctx.rt.tab.AllocationData3D(a.ctx.h, a.h, xoff, yoff, zoff, lod, w, h, d, p)
}

// Read3D reads a box region of a 3D allocation.
func (a *Allocation) Read3D(xoff, yoff, zoff, lod, w, h, d uint32, buf []byte) error {
	return a.ctx.rt.tab.AllocationRead3D(a.ctx.h, a.h, xoff, yoff, zoff, lod, w, h, d, buf)
}

// Read copies the entire backing store.
func (a *Allocation) Read(buf []byte) error {
	return a.ctx.rt.tab.AllocationRead(a.ctx.h, a.h, buf)
}

// SyncAll is the coherence barrier between usage domains.
func (a *Allocation) SyncAll(usage dispatch.UsageFlags) error {
	return a.ctx.rt.tab.AllocationSyncAll(a.ctx.h, a.h, usage)
}

// Resize1D changes the first dimension of a simple 1D allocation.
func (a *Allocation) Resize1D(dimX uint32) error {
	return a.ctx.rt.tab.AllocationResize1D(a.ctx.h, a.h, dimX)
}

// GenerateMipmaps fills the mip chain from the base level.
func (a *Allocation) GenerateMipmaps() error {
	return a.ctx.rt.tab.AllocationGenerateMipmaps(a.ctx.h, a.h)
}

// Destroy releases the allocation, unlocking bitmap-backed pixels.
func (a *Allocation) Destroy() error {
	err := a.ctx.rt.tab.ObjDestroy(a.ctx.h, a.h)
	if a.pixels != nil {
		if uerr := a.pixels.UnlockPixels(); uerr != nil && err == nil {
			err = uerr
		}
		a.pixels = nil
	}
	return err
}

// NewSampler creates a sampler state object.
func (c *Context) NewSampler(mag, min, wrapS, wrapT, wrapR dispatch.SamplerValue, aniso float32) (handle.Handle, error) {
	return c.rt.tab.SamplerCreate(c.h, mag, min, wrapS, wrapT, wrapR, aniso)
}

// Script is one compiled program on a context.
type Script struct {
	ctx *Context
	h   handle.Handle
}

// NewScript compiles script source through the backend's runner.
func (c *Context) NewScript(resName, cacheDir string, src []byte) (*Script, error) {
	h, err := c.rt.tab.ScriptCCreate(c.h, resName, cacheDir, src)
	if err != nil {
		return nil, err
	}
	return &Script{ctx: c, h: h}, nil
}

// NewIntrinsic builds a fixed-function program over an element.
func (c *Context) NewIntrinsic(id uint32, elem *Element) (*Script, error) {
	h, err := c.rt.tab.ScriptIntrinsicCreate(c.h, id, elem.h)
	if err != nil {
		return nil, err
	}
	return &Script{ctx: c, h: h}, nil
}

// Handle exposes the raw script handle.
func (s *Script) Handle() handle.Handle { return s.h }

// SetTimeZone records the timezone string the script observes.
func (s *Script) SetTimeZone(tz string) error {
	return s.ctx.rt.tab.ScriptSetTimeZone(s.ctx.h, s.h, []byte(tz))
}

// BindAllocation binds allocation memory to a script global slot.
func (s *Script) BindAllocation(a *Allocation, slot uint32) error {
	var h handle.Handle
	if a != nil {
		h = a.h
	}
	return s.ctx.rt.tab.ScriptBindAllocation(s.ctx.h, s.h, h, slot)
}

// SetVarI sets a 32-bit integer global.
func (s *Script) SetVarI(slot uint32, v int32) error {
	return s.ctx.rt.tab.ScriptSetVarI(s.ctx.h, s.h, slot, v)
}

// SetVarJ sets a 64-bit integer global.
func (s *Script) SetVarJ(slot uint32, v int64) error {
	return s.ctx.rt.tab.ScriptSetVarJ(s.ctx.h, s.h, slot, v)
}

// SetVarF sets a float global.
func (s *Script) SetVarF(slot uint32, v float32) error {
	return s.ctx.rt.tab.ScriptSetVarF(s.ctx.h, s.h, slot, v)
}

// SetVarD sets a double global.
func (s *Script) SetVarD(slot uint32, v float64) error {
	return s.ctx.rt.tab.ScriptSetVarD(s.ctx.h, s.h, slot, v)
}

// SetVarV sets a raw byte-payload global.
func (s *Script) SetVarV(slot uint32, data []byte) error {
	return s.ctx.rt.tab.ScriptSetVarV(s.ctx.h, s.h, slot, data)
}

// SetVarObj binds an object handle into a global slot.
func (s *Script) SetVarObj(slot uint32, obj handle.Handle) error {
	return s.ctx.rt.tab.ScriptSetVarObj(s.ctx.h, s.h, slot, obj)
}

// Invoke queues a plain invokable call.
func (s *Script) Invoke(slot uint32) error {
	return s.ctx.rt.tab.ScriptInvoke(s.ctx.h, s.h, slot)
}

// InvokeV queues an invokable call with parameters.
func (s *Script) InvokeV(slot uint32, params []byte) error {
	return s.ctx.rt.tab.ScriptInvokeV(s.ctx.h, s.h, slot, params)
}

// ForEach queues a kernel launch over the allocation domain.
func (s *Script) ForEach(slot uint32, in, out *Allocation, params []byte, clip *dispatch.ScriptCall) error {
	var inH, outH handle.Handle
	if in != nil {
		inH = in.h
	}
	if out != nil {
		outH = out.h
	}
	return s.ctx.rt.tab.ScriptForEach(s.ctx.h, s.h, slot, inH, outH, params, clip)
}

// KernelID names one forEach entry point for closure graphs.
func (s *Script) KernelID(slot, sig uint32) (handle.Handle, error) {
	return s.ctx.rt.tab.ScriptKernelIDCreate(s.ctx.h, s.h, slot, sig)
}

// FieldID names one global slot for closure binding.
func (s *Script) FieldID(slot uint32) (handle.Handle, error) {
	return s.ctx.rt.tab.ScriptFieldIDCreate(s.ctx.h, s.h, slot)
}
