package engine

import (
	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
	"github.com/wippyai/offload/handle"
)

// allocation is a typed buffer instance. The shape is a private copy of
// the creating Type so Resize1D can grow it without touching the
// immutable Type object. data may be externally supplied host memory
// (zero-copy) or backend-managed.
type allocation struct {
	t        typ
	elem     *element
	usage    dispatch.UsageFlags
	mips     dispatch.MipmapControl
	data     []byte
	external bool
}

func (b *Backend) newAllocation(c *context, t *typ, mips dispatch.MipmapControl, usage dispatch.UsageFlags, hostMem []byte) (handle.Handle, error) {
	e, err := b.element(t.elem)
	if err != nil {
		return 0, err
	}

	size := t.totalSize()
	a := &allocation{
		t:     *t,
		elem:  e,
		usage: usage,
		mips:  mips,
	}
	if hostMem != nil {
		if len(hostMem) != size {
			return 0, errors.SizeMismatch(errors.PhaseCreate, len(hostMem), size)
		}
		a.data = hostMem
		a.external = true
	} else {
		a.data = make([]byte, size)
	}
	return b.mint(c, handle.KindAllocation, a)
}

// AllocationCreateTyped mints an allocation of a Type. A non-nil
// hostMem becomes the backing store without copying; its length must
// match the type's layout exactly.
func (b *Backend) AllocationCreateTyped(ctx, typH handle.Handle, mips dispatch.MipmapControl, usage dispatch.UsageFlags, hostMem []byte) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	t, err := b.typ(typH)
	if err != nil {
		return 0, err
	}
	return b.newAllocation(c, t, mips, usage, hostMem)
}

// AllocationCreateFromBitmap mints a backend-managed allocation seeded
// from locked bitmap pixels (one-shot copy into the base level).
func (b *Backend) AllocationCreateFromBitmap(ctx, typH handle.Handle, mips dispatch.MipmapControl, pixels []byte, usage dispatch.UsageFlags) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	t, err := b.typ(typH)
	if err != nil {
		return 0, err
	}
	if len(pixels) != t.lodSize(0) {
		return 0, errors.SizeMismatch(errors.PhaseCreate, len(pixels), t.lodSize(0))
	}

	h, err := b.newAllocation(c, t, mips, usage, nil)
	if err != nil {
		return 0, err
	}
	a, _ := b.allocation(h)
	copy(a.data, pixels)
	return h, nil
}

// AllocationCubeCreateFromBitmap mints a cubemap allocation from a
// bitmap holding the six faces stacked in face order.
func (b *Backend) AllocationCubeCreateFromBitmap(ctx, typH handle.Handle, mips dispatch.MipmapControl, pixels []byte, usage dispatch.UsageFlags) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	t, err := b.typ(typH)
	if err != nil {
		return 0, err
	}
	if !t.faces {
		return 0, errors.InvalidInput(errors.PhaseCreate, "type has no cubemap faces")
	}
	want := t.lodSize(0) * dispatch.CubeFaceCount
	if len(pixels) != want {
		return 0, errors.SizeMismatch(errors.PhaseCreate, len(pixels), want)
	}

	h, err := b.newAllocation(c, t, mips, usage, nil)
	if err != nil {
		return 0, err
	}
	a, _ := b.allocation(h)
	faceBytes := t.lodSize(0)
	for f := 0; f < dispatch.CubeFaceCount; f++ {
		off, err := a.t.baseOffset(0, dispatch.CubemapFace(f))
		if err != nil {
			return 0, err
		}
		copy(a.data[off:off+faceBytes], pixels[f*faceBytes:(f+1)*faceBytes])
	}
	return h, nil
}

// AllocationGetType mints a Type describing the allocation's current
// shape. Resize1D changes the shape, so this may differ from the Type
// the allocation was created with.
func (b *Backend) AllocationGetType(ctx, alloc handle.Handle) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return 0, err
	}
	t := a.t
	return b.mint(c, handle.KindType, &t)
}

// AllocationSyncAll is the coherence barrier between usage domains: it
// drains the context queue so script-domain writes become visible to
// the requested domain. Write/Read never sync implicitly.
func (b *Backend) AllocationSyncAll(ctx, alloc handle.Handle, usage dispatch.UsageFlags) error {
	c, err := b.context(ctx)
	if err != nil {
		return err
	}
	if _, err := b.allocation(alloc); err != nil {
		return err
	}
	_ = usage
	return c.fence()
}

// AllocationResize1D changes the first dimension of a 1D allocation.
// Contents in [0, min(old,new)) are preserved; the grown region is
// backend-defined (this backend zero-fills).
func (b *Backend) AllocationResize1D(ctx, alloc handle.Handle, dimX uint32) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return err
	}
	if a.t.dimY > 0 || a.t.mips || a.t.faces {
		return errors.InvalidInput(errors.PhaseTransfer, "resize requires a simple 1D allocation")
	}
	if a.external {
		return errors.InvalidInput(errors.PhaseTransfer, "cannot resize externally backed allocation")
	}
	if dimX == 0 {
		return errors.InvalidInput(errors.PhaseTransfer, "resize to zero length")
	}

	newData := make([]byte, int(dimX)*a.t.elemSize)
	copy(newData, a.data)
	a.data = newData
	a.t.dimX = dimX
	return nil
}

// view builds the runner-facing window for one lod/face slice.
func (a *allocation) view(lod uint32, face dispatch.CubemapFace) (*AllocView, error) {
	off, err := a.t.baseOffset(lod, face)
	if err != nil {
		return nil, err
	}
	x, y, z := a.t.lodDims(lod)
	return &AllocView{
		Bytes:    a.data[off : off+a.t.lodSize(lod)],
		ElemSize: a.t.elemSize,
		DimX:     x,
		DimY:     y,
		DimZ:     z,
	}, nil
}

// AllocationGetPointer exposes the live backing store of one lod/face
// slice for the cross-backend zero-copy path, with the row stride in
// bytes. The returned slice aliases allocation memory; coherence is the
// caller's problem, governed by SyncAll and the drain protocol.
func (b *Backend) AllocationGetPointer(ctx, alloc handle.Handle, lod uint32, face dispatch.CubemapFace, z, array uint32) ([]byte, int, error) {
	if _, err := b.context(ctx); err != nil {
		return nil, 0, err
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return nil, 0, err
	}
	if array != 0 {
		return nil, 0, errors.Unsupported(errors.PhaseTransfer, "array dimension")
	}

	off, err := a.t.baseOffset(lod, face)
	if err != nil {
		return nil, 0, err
	}
	lx, ly, lz := a.t.lodDims(lod)
	stride := int(lx) * a.t.elemSize

	size := a.t.lodSize(lod)
	if z > 0 {
		if lz == 0 || z >= lz {
			return nil, 0, errors.OutOfRange(errors.PhaseTransfer, []string{"z"}, int(z), int(lz))
		}
		slice := int(lx) * int(ly) * a.t.elemSize
		off += int(z) * slice
		size = slice
	}
	return a.data[off : off+size : off+size], stride, nil
}

// AllocationCopyToBitmap copies the base level into locked bitmap
// pixels.
func (b *Backend) AllocationCopyToBitmap(ctx, alloc handle.Handle, pixels []byte) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return err
	}
	if len(pixels) != a.t.lodSize(0) {
		return errors.SizeMismatch(errors.PhaseTransfer, len(pixels), a.t.lodSize(0))
	}
	off, err := a.t.baseOffset(0, dispatch.FacePositiveX)
	if err != nil {
		return err
	}
	copy(pixels, a.data[off:off+len(pixels)])
	return nil
}

// AllocationGenerateMipmaps fills the mip chain by box-filtering each
// level from the previous one. Supported for elements with one-byte
// channels; anything else reports unsupported.
func (b *Backend) AllocationGenerateMipmaps(ctx, alloc handle.Handle) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return err
	}
	if !a.t.mips {
		return errors.InvalidInput(errors.PhaseTransfer, "allocation has no mip chain")
	}
	if a.elem.fields != nil || a.elem.dataType.ByteSize() != 1 {
		return errors.Unsupported(errors.PhaseTransfer, "mipmap generation for non-byte-channel elements")
	}

	channels := a.t.elemSize
	for f := 0; f < a.t.faceCount(); f++ {
		face := dispatch.CubemapFace(f)
		for lod := 1; lod < a.t.lodCount(); lod++ {
			if err := a.downsample(uint32(lod), face, channels); err != nil {
				return err
			}
		}
	}
	return nil
}

// downsample box-filters lod-1 into lod for one face.
func (a *allocation) downsample(lod uint32, face dispatch.CubemapFace, channels int) error {
	srcOff, err := a.t.baseOffset(lod-1, face)
	if err != nil {
		return err
	}
	dstOff, err := a.t.baseOffset(lod, face)
	if err != nil {
		return err
	}
	sx, sy, _ := a.t.lodDims(lod - 1)
	dx, dy, _ := a.t.lodDims(lod)
	if dy == 0 {
		dy = 1
	}
	if sy == 0 {
		sy = 1
	}

	es := a.t.elemSize
	for y := uint32(0); y < dy; y++ {
		for x := uint32(0); x < dx; x++ {
			for ch := 0; ch < channels; ch++ {
				sum, n := 0, 0
				for oy := uint32(0); oy < 2; oy++ {
					for ox := uint32(0); ox < 2; ox++ {
						px, py := x*2+ox, y*2+oy
						if px >= sx || py >= sy {
							continue
						}
						sum += int(a.data[srcOff+(int(py)*int(sx)+int(px))*es+ch])
						n++
					}
				}
				a.data[dstOff+(int(y)*int(dx)+int(x))*es+ch] = byte(sum / n)
			}
		}
	}
	return nil
}
