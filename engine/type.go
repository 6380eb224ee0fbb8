package engine

import (
	"fmt"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
	"github.com/wippyai/offload/handle"
)

// typ is an element plus shape: dimensions, mip chain, cubemap faces,
// and a packed-YUV tag. Immutable once created.
type typ struct {
	elem     handle.Handle
	elemSize int
	dimX     uint32
	dimY     uint32
	dimZ     uint32
	mips     bool
	faces    bool
	yuv      dispatch.YUVFormat
}

// TypeCreate mints a shaped type over an element.
func (b *Backend) TypeCreate(ctx, elem handle.Handle, dimX, dimY, dimZ uint32, mips, faces bool, yuv dispatch.YUVFormat) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	e, err := b.element(elem)
	if err != nil {
		return 0, err
	}
	if dimX == 0 {
		return 0, errors.InvalidInput(errors.PhaseCreate, "type requires dimX >= 1")
	}
	if dimZ > 0 && dimY == 0 {
		return 0, errors.InvalidInput(errors.PhaseCreate, "3D type requires dimY >= 1")
	}
	if faces && (dimY == 0 || dimZ > 0) {
		return 0, errors.InvalidInput(errors.PhaseCreate, "cubemap faces require a 2D type")
	}
	if mips && dimY > 0 && dimX != dimY && dimZ == 0 && faces {
		return 0, errors.InvalidInput(errors.PhaseCreate, "cubemap mip chain requires square faces")
	}

	t := &typ{
		elem:     elem,
		elemSize: e.size,
		dimX:     dimX,
		dimY:     dimY,
		dimZ:     dimZ,
		mips:     mips,
		faces:    faces,
		yuv:      yuv,
	}
	return b.mint(c, handle.KindType, t)
}

// lodCount is the number of mip levels, 1 when the chain is disabled.
func (t *typ) lodCount() int {
	if !t.mips {
		return 1
	}
	n := 1
	x, y, z := t.dimX, t.dimY, t.dimZ
	for x > 1 || y > 1 || z > 1 {
		x = halve(x)
		y = halve(y)
		z = halve(z)
		n++
	}
	return n
}

func halve(d uint32) uint32 {
	if d <= 1 {
		return d
	}
	return d / 2
}

// lodDims returns the dimensions at a mip level. Dimensions that are 0
// at the base stay 0.
func (t *typ) lodDims(lod uint32) (x, y, z uint32) {
	x, y, z = t.dimX, t.dimY, t.dimZ
	for i := uint32(0); i < lod; i++ {
		x = halve(x)
		y = halve(y)
		z = halve(z)
	}
	return x, y, z
}

// lodSize is the byte size of one face slice at a mip level.
func (t *typ) lodSize(lod uint32) int {
	x, y, z := t.lodDims(lod)
	n := int(x)
	if y > 0 {
		n *= int(y)
	}
	if z > 0 {
		n *= int(z)
	}
	return n * t.elemSize
}

// faceSize is the byte size of one face's full mip chain.
func (t *typ) faceSize() int {
	total := 0
	for lod := 0; lod < t.lodCount(); lod++ {
		total += t.lodSize(uint32(lod))
	}
	return total
}

// faceCount is 6 for cubemaps, else 1.
func (t *typ) faceCount() int {
	if t.faces {
		return dispatch.CubeFaceCount
	}
	return 1
}

// totalSize is the byte size of the whole allocation backing store.
func (t *typ) totalSize() int {
	return t.faceSize() * t.faceCount()
}

// baseOffset is the byte offset of (lod, face) within the backing
// store: face-major, each face holding its mip chain in order.
func (t *typ) baseOffset(lod uint32, face dispatch.CubemapFace) (int, error) {
	if int(lod) >= t.lodCount() {
		return 0, errors.OutOfRange(errors.PhaseTransfer, []string{"lod"}, int(lod), t.lodCount())
	}
	f := int(face)
	if f < 0 || f >= t.faceCount() {
		return 0, errors.OutOfRange(errors.PhaseTransfer, []string{"face"}, f, t.faceCount())
	}
	off := f * t.faceSize()
	for l := uint32(0); l < lod; l++ {
		off += t.lodSize(l)
	}
	return off, nil
}

func (t *typ) String() string {
	return fmt.Sprintf("type{%dx%dx%d elem=%dB mips=%v faces=%v}",
		t.dimX, t.dimY, t.dimZ, t.elemSize, t.mips, t.faces)
}
