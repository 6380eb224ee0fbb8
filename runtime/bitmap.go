package runtime

import (
	"fmt"

	"github.com/wippyai/offload"
	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
)

// bitmapElement maps a pixel format onto an element creation call.
func (c *Context) bitmapElement(f offload.PixelFormat) (*Element, error) {
	switch f {
	case offload.PixelFormatRGBA8888:
		return c.NewElement(dispatch.DataUnsigned8, dispatch.KindPixelRGBA, true, 4)
	case offload.PixelFormatRGB565:
		return c.NewElement(dispatch.DataUnsigned565, dispatch.KindPixelRGB, true, 1)
	case offload.PixelFormatRGBA4444:
		return c.NewElement(dispatch.DataUnsigned4444, dispatch.KindPixelRGBA, true, 1)
	default:
		return nil, errors.InvalidInput(errors.PhaseCreate, fmt.Sprintf("pixel format %s", f))
	}
}

// TypeForBitmap builds the element and 2D type matching a bitmap.
func (c *Context) TypeForBitmap(info offload.BitmapInfo) (*Type, error) {
	elem, err := c.bitmapElement(info.Format)
	if err != nil {
		return nil, err
	}
	return c.NewType(elem, uint32(info.Width), uint32(info.Height), 0, false, false, dispatch.YUVNone)
}

// lockChecked locks the buffer and validates the pixel count against
// the declared geometry.
func lockChecked(pb offload.PixelBuffer) ([]byte, offload.BitmapInfo, error) {
	info := pb.Info()
	want := info.SizeBytes()
	if want == 0 {
		return nil, info, errors.InvalidInput(errors.PhaseCreate, fmt.Sprintf("pixel format %s", info.Format))
	}
	if info.Stride != 0 && info.Stride != info.Width*info.Format.BytesPerPixel() {
		return nil, info, errors.Unsupported(errors.PhaseCreate, "row-padded bitmaps")
	}
	pixels, err := pb.LockPixels()
	if err != nil {
		return nil, info, errors.Wrap(errors.PhaseCreate, errors.KindInvalidInput, err, "lock pixels")
	}
	if len(pixels) != want {
		pb.UnlockPixels()
		return nil, info, errors.SizeMismatch(errors.PhaseCreate, len(pixels), want)
	}
	return pixels, info, nil
}

// AllocationFromBitmap creates a backend-managed allocation seeded by a
// one-shot copy of the bitmap's pixels. The buffer is unlocked before
// returning.
func (c *Context) AllocationFromBitmap(pb offload.PixelBuffer, mips dispatch.MipmapControl, usage dispatch.UsageFlags) (*Allocation, error) {
	pixels, info, err := lockChecked(pb)
	if err != nil {
		return nil, err
	}
	defer pb.UnlockPixels()

	t, err := c.TypeForBitmap(info)
	if err != nil {
		return nil, err
	}
	h, err := c.rt.tab.AllocationCreateFromBitmap(c.h, t.h, mips, pixels, usage)
	if err != nil {
		return nil, err
	}
	return &Allocation{ctx: c, h: h, typ: t}, nil
}

// BitmapBackedAllocation creates an allocation whose backing store IS
// the bitmap's locked pixel memory: writes through the allocation land
// in the bitmap without copying. The pixels stay locked until the
// allocation is destroyed.
func (c *Context) BitmapBackedAllocation(pb offload.PixelBuffer, usage dispatch.UsageFlags) (*Allocation, error) {
	pixels, info, err := lockChecked(pb)
	if err != nil {
		return nil, err
	}

	t, err := c.TypeForBitmap(info)
	if err != nil {
		pb.UnlockPixels()
		return nil, err
	}
	h, err := c.rt.tab.AllocationCreateTyped(c.h, t.h, dispatch.MipmapNone, usage, pixels)
	if err != nil {
		pb.UnlockPixels()
		return nil, err
	}
	return &Allocation{ctx: c, h: h, typ: t, pixels: pb}, nil
}

// CubeAllocationFromBitmap creates a cubemap allocation from a bitmap
// holding the six faces stacked vertically.
func (c *Context) CubeAllocationFromBitmap(pb offload.PixelBuffer, mips dispatch.MipmapControl, usage dispatch.UsageFlags) (*Allocation, error) {
	info := pb.Info()
	if info.Height%6 != 0 {
		return nil, errors.InvalidInput(errors.PhaseCreate, "cubemap bitmap height must be a multiple of 6")
	}
	pixels, _, err := lockChecked(pb)
	if err != nil {
		return nil, err
	}
	defer pb.UnlockPixels()

	elem, err := c.bitmapElement(info.Format)
	if err != nil {
		return nil, err
	}
	face := uint32(info.Height / 6)
	t, err := c.NewType(elem, uint32(info.Width), face, 0, false, true, dispatch.YUVNone)
	if err != nil {
		return nil, err
	}
	h, err := c.rt.tab.AllocationCubeCreateFromBitmap(c.h, t.h, mips, pixels, usage)
	if err != nil {
		return nil, err
	}
	return &Allocation{ctx: c, h: h, typ: t}, nil
}

// CopyFromBitmap overwrites the allocation's base level with the
// bitmap's pixels.
func (a *Allocation) CopyFromBitmap(pb offload.PixelBuffer) error {
	pixels, info, err := lockChecked(pb)
	if err != nil {
		return err
	}
	defer pb.UnlockPixels()
	return a.Data2D(0, 0, 0, dispatch.FacePositiveX, uint32(info.Width), uint32(info.Height), pixels)
}

// CopyToBitmap copies the allocation's base level into the bitmap.
func (a *Allocation) CopyToBitmap(pb offload.PixelBuffer) error {
	pixels, _, err := lockChecked(pb)
	if err != nil {
		return err
	}
	defer pb.UnlockPixels()
	return a.ctx.rt.tab.AllocationCopyToBitmap(a.ctx.h, a.h, pixels)
}
