package engine

import (
	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
	"github.com/wippyai/offload/handle"
)

// Transfer operations copy between caller memory and allocation
// storage. The declared byte length must match the element count times
// the element size exactly; short and long buffers are both rejected, and
// a failed transfer never partially writes.

// AllocationData1D writes a linear run of elements at a mip level.
func (b *Backend) AllocationData1D(ctx, alloc handle.Handle, xoff, lod, count uint32, data []byte) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return err
	}
	off, n, err := a.span1D(xoff, lod, count, len(data))
	if err != nil {
		return err
	}
	copy(a.data[off:off+n], data)
	return nil
}

// AllocationRead1D reads a linear run of elements at a mip level.
func (b *Backend) AllocationRead1D(ctx, alloc handle.Handle, xoff, lod, count uint32, buf []byte) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return err
	}
	off, n, err := a.span1D(xoff, lod, count, len(buf))
	if err != nil {
		return err
	}
	copy(buf, a.data[off:off+n])
	return nil
}

// span1D validates a linear element run against the lod slice and the
// caller buffer, returning the byte offset and length.
func (a *allocation) span1D(xoff, lod, count uint32, bufLen int) (off, n int, err error) {
	base, err := a.t.baseOffset(lod, dispatch.FacePositiveX)
	if err != nil {
		return 0, 0, err
	}
	elems := a.t.lodSize(lod) / a.t.elemSize
	if int(xoff)+int(count) > elems {
		return 0, 0, errors.OutOfRange(errors.PhaseTransfer, []string{"x"}, int(xoff)+int(count), elems)
	}
	n = int(count) * a.t.elemSize
	if bufLen != n {
		return 0, 0, errors.SizeMismatch(errors.PhaseTransfer, bufLen, n)
	}
	return base + int(xoff)*a.t.elemSize, n, nil
}

// AllocationElementData1D patches one named component of each element
// in a 1D run. The allocation's element must be structured and the
// data length must be a whole multiple of the component size.
func (b *Backend) AllocationElementData1D(ctx, alloc handle.Handle, xoff, lod, compIdx uint32, data []byte) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return err
	}
	if a.elem.fields == nil {
		return errors.InvalidInput(errors.PhaseTransfer, "element data requires a structured element")
	}
	if int(compIdx) >= len(a.elem.fields) {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"component"}, int(compIdx), len(a.elem.fields))
	}
	f := a.elem.fields[compIdx]
	if f.size == 0 || len(data)%f.size != 0 {
		return errors.SizeMismatch(errors.PhaseTransfer, len(data), f.size)
	}
	count := len(data) / f.size

	base, err := a.t.baseOffset(lod, dispatch.FacePositiveX)
	if err != nil {
		return err
	}
	elems := a.t.lodSize(lod) / a.t.elemSize
	if int(xoff)+count > elems {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"x"}, int(xoff)+count, elems)
	}
	for i := 0; i < count; i++ {
		dst := base + (int(xoff)+i)*a.t.elemSize + f.offset
		copy(a.data[dst:dst+f.size], data[i*f.size:(i+1)*f.size])
	}
	return nil
}

// AllocationData2D writes a rectangular region of one lod/face slice.
func (b *Backend) AllocationData2D(ctx, alloc handle.Handle, xoff, yoff, lod uint32, face dispatch.CubemapFace, w, h uint32, data []byte) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return err
	}
	return a.rect2D(xoff, yoff, lod, face, w, h, data, false)
}

// AllocationRead2D reads a rectangular region of one lod/face slice.
func (b *Backend) AllocationRead2D(ctx, alloc handle.Handle, xoff, yoff, lod uint32, face dispatch.CubemapFace, w, h uint32, buf []byte) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return err
	}
	return a.rect2D(xoff, yoff, lod, face, w, h, buf, true)
}

// rect2D validates a rectangle and copies it row by row, in either
// direction.
func (a *allocation) rect2D(xoff, yoff, lod uint32, face dispatch.CubemapFace, w, h uint32, buf []byte, read bool) error {
	if a.t.dimY == 0 {
		return errors.InvalidInput(errors.PhaseTransfer, "2D transfer on a 1D allocation")
	}
	base, err := a.t.baseOffset(lod, face)
	if err != nil {
		return err
	}
	lx, ly, _ := a.t.lodDims(lod)
	if int(xoff)+int(w) > int(lx) {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"x"}, int(xoff)+int(w), int(lx))
	}
	if int(yoff)+int(h) > int(ly) {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"y"}, int(yoff)+int(h), int(ly))
	}
	es := a.t.elemSize
	rowBytes := int(w) * es
	if len(buf) != rowBytes*int(h) {
		return errors.SizeMismatch(errors.PhaseTransfer, len(buf), rowBytes*int(h))
	}

	pitch := int(lx) * es
	for row := 0; row < int(h); row++ {
		dst := base + (int(yoff)+row)*pitch + int(xoff)*es
		src := row * rowBytes
		if read {
			copy(buf[src:src+rowBytes], a.data[dst:dst+rowBytes])
		} else {
			copy(a.data[dst:dst+rowBytes], buf[src:src+rowBytes])
		}
	}
	return nil
}

// AllocationData3D writes a box region of a 3D allocation at a mip
// level.
func (b *Backend) AllocationData3D(ctx, alloc handle.Handle, xoff, yoff, zoff, lod, w, h, d uint32, data []byte) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return err
	}
	return a.box3D(xoff, yoff, zoff, lod, w, h, d, data, false)
}

// AllocationRead3D reads a box region of a 3D allocation at a mip
// level.
func (b *Backend) AllocationRead3D(ctx, alloc handle.Handle, xoff, yoff, zoff, lod, w, h, d uint32, buf []byte) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return err
	}
	return a.box3D(xoff, yoff, zoff, lod, w, h, d, buf, true)
}

// box3D validates a box and copies it row by row, in either direction.
func (a *allocation) box3D(xoff, yoff, zoff, lod, w, h, d uint32, buf []byte, read bool) error {
	if a.t.dimZ == 0 {
		return errors.InvalidInput(errors.PhaseTransfer, "3D transfer on a non-3D allocation")
	}
	base, err := a.t.baseOffset(lod, dispatch.FacePositiveX)
	if err != nil {
		return err
	}
	lx, ly, lz := a.t.lodDims(lod)
	if int(xoff)+int(w) > int(lx) {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"x"}, int(xoff)+int(w), int(lx))
	}
	if int(yoff)+int(h) > int(ly) {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"y"}, int(yoff)+int(h), int(ly))
	}
	if int(zoff)+int(d) > int(lz) {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"z"}, int(zoff)+int(d), int(lz))
	}
	es := a.t.elemSize
	rowBytes := int(w) * es
	if len(buf) != rowBytes*int(h)*int(d) {
		return errors.SizeMismatch(errors.PhaseTransfer, len(buf), rowBytes*int(h)*int(d))
	}

	pitch := int(lx) * es
	slice := pitch * int(ly)
	for plane := 0; plane < int(d); plane++ {
		for row := 0; row < int(h); row++ {
			off := base + (int(zoff)+plane)*slice + (int(yoff)+row)*pitch + int(xoff)*es
			ext := (plane*int(h) + row) * rowBytes
			if read {
				copy(buf[ext:ext+rowBytes], a.data[off:off+rowBytes])
			} else {
				copy(a.data[off:off+rowBytes], buf[ext:ext+rowBytes])
			}
		}
	}
	return nil
}

// AllocationRead copies the entire backing store, all levels and faces.
func (b *Backend) AllocationRead(ctx, alloc handle.Handle, buf []byte) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return err
	}
	if len(buf) != len(a.data) {
		return errors.SizeMismatch(errors.PhaseTransfer, len(buf), len(a.data))
	}
	copy(buf, a.data)
	return nil
}

// AllocationCopy2DRange copies a rectangle between two allocations (or
// two regions of one). Overlapping same-allocation copies stage through
// a scratch buffer so the source is read before any destination write.
func (b *Backend) AllocationCopy2DRange(ctx, dst handle.Handle, dstX, dstY, dstLod uint32, dstFace dispatch.CubemapFace, w, h uint32, src handle.Handle, srcX, srcY, srcLod uint32, srcFace dispatch.CubemapFace) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	da, err := b.allocation(dst)
	if err != nil {
		return err
	}
	sa, err := b.allocation(src)
	if err != nil {
		return err
	}
	if da.t.elemSize != sa.t.elemSize {
		return errors.SizeMismatch(errors.PhaseTransfer, sa.t.elemSize, da.t.elemSize)
	}

	sx, sy, _ := sa.t.lodDims(srcLod)
	if int(w) > int(sx) {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"w"}, int(w), int(sx))
	}
	if int(h) > int(sy) {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"h"}, int(h), int(sy))
	}
	tmp := make([]byte, int(w)*int(h)*sa.t.elemSize)
	if err := sa.rect2D(srcX, srcY, srcLod, srcFace, w, h, tmp, true); err != nil {
		return err
	}
	return da.rect2D(dstX, dstY, dstLod, dstFace, w, h, tmp, false)
}

// AllocationCopy3DRange copies a box between two 3D allocations.
func (b *Backend) AllocationCopy3DRange(ctx, dst handle.Handle, dstX, dstY, dstZ, dstLod, w, h, d uint32, src handle.Handle, srcX, srcY, srcZ, srcLod uint32) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	da, err := b.allocation(dst)
	if err != nil {
		return err
	}
	sa, err := b.allocation(src)
	if err != nil {
		return err
	}
	if da.t.elemSize != sa.t.elemSize {
		return errors.SizeMismatch(errors.PhaseTransfer, sa.t.elemSize, da.t.elemSize)
	}

	es := sa.t.elemSize
	sx, sy, _ := sa.t.lodDims(srcLod)
	if int(w) > int(sx) {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"w"}, int(w), int(sx))
	}
	if int(h) > int(sy) {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"h"}, int(h), int(sy))
	}
	tmp := make([]byte, int(w)*int(h)*es)
	for plane := 0; plane < int(d); plane++ {
		if err := sa.box2DSlice(srcX, srcY, int(srcZ)+plane, srcLod, w, h, tmp, true); err != nil {
			return err
		}
		if err := da.box2DSlice(dstX, dstY, int(dstZ)+plane, dstLod, w, h, tmp, false); err != nil {
			return err
		}
	}
	return nil
}

// box2DSlice copies one z plane of a 3D box transfer.
func (a *allocation) box2DSlice(xoff, yoff uint32, z int, lod, w, h uint32, buf []byte, read bool) error {
	if a.t.dimZ == 0 {
		return errors.InvalidInput(errors.PhaseTransfer, "3D transfer on a non-3D allocation")
	}
	base, err := a.t.baseOffset(lod, dispatch.FacePositiveX)
	if err != nil {
		return err
	}
	lx, ly, lz := a.t.lodDims(lod)
	if int(xoff)+int(w) > int(lx) {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"x"}, int(xoff)+int(w), int(lx))
	}
	if int(yoff)+int(h) > int(ly) {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"y"}, int(yoff)+int(h), int(ly))
	}
	if z >= int(lz) {
		return errors.OutOfRange(errors.PhaseTransfer, []string{"z"}, z, int(lz))
	}

	es := a.t.elemSize
	rowBytes := int(w) * es
	pitch := int(lx) * es
	slice := pitch * int(ly)
	for row := 0; row < int(h); row++ {
		at := base + z*slice + (int(yoff)+row)*pitch + int(xoff)*es
		off := row * rowBytes
		if read {
			copy(buf[off:off+rowBytes], a.data[at:at+rowBytes])
		} else {
			copy(a.data[at:at+rowBytes], buf[off:off+rowBytes])
		}
	}
	return nil
}
