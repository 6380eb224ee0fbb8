package runtime

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/wippyai/offload"
	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
	"github.com/wippyai/offload/soft"
)

func init() {
	soft.RegisterScript("double", &soft.ScriptDef{
		Kernels: []soft.Kernel{
			func(env *soft.Env, in, out []byte, x, y, z uint32) error {
				out[0] = in[0] * 2
				return nil
			},
		},
	})
}

func openSoft(t *testing.T) (*Runtime, *Context) {
	t.Helper()
	rt, err := Open(soft.Name)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ctx, err := rt.NewContext(dispatch.ContextTypeNormal)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	t.Cleanup(func() {
		ctx.Destroy()
		rt.Close()
	})
	return rt, ctx
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("no-such-backend"); err == nil {
		t.Fatal("Expected activation failure")
	}
}

func TestWrappers_RoundTrip(t *testing.T) {
	_, ctx := openSoft(t)

	elem, err := ctx.NewElement(dispatch.DataUnsigned8, dispatch.KindUser, false, 1)
	if err != nil {
		t.Fatalf("NewElement failed: %v", err)
	}
	typ, err := ctx.NewType(elem, 8, 0, 0, false, false, dispatch.YUVNone)
	if err != nil {
		t.Fatalf("NewType failed: %v", err)
	}
	in, err := ctx.NewAllocation(typ, dispatch.MipmapNone, dispatch.UsageScript)
	if err != nil {
		t.Fatalf("NewAllocation failed: %v", err)
	}
	out, err := ctx.NewAllocation(typ, dispatch.MipmapNone, dispatch.UsageScript)
	if err != nil {
		t.Fatalf("NewAllocation failed: %v", err)
	}

	if err := in.Data1D(0, 0, 8, []byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatalf("Data1D failed: %v", err)
	}

	scr, err := ctx.NewScript("double", "", nil)
	if err != nil {
		t.Fatalf("NewScript failed: %v", err)
	}
	if err := scr.ForEach(0, in, out, nil, nil); err != nil {
		t.Fatalf("ForEach failed: %v", err)
	}
	if err := ctx.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got := make([]byte, 8)
	if err := out.Read1D(0, 0, 8, got); err != nil {
		t.Fatalf("Read1D failed: %v", err)
	}
	want := []byte{2, 4, 6, 8, 10, 12, 14, 16}
	if !bytes.Equal(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
}

func TestMessage_TooLargeMapping(t *testing.T) {
	_, ctx := openSoft(t)

	payload := []byte("twelve bytes")
	if err := ctx.SendMessage(7, payload); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	_, n, err := ctx.GetMessage(make([]byte, 4))
	var oe *errors.Error
	if !stderrors.As(err, &oe) || oe.Kind != errors.KindMessageTooLarge {
		t.Fatalf("Expected message_too_large, got %v", err)
	}
	if n != len(payload) {
		t.Fatalf("Expected required size %d, got %d", len(payload), n)
	}

	// The message is still queued; retry with the reported size
	buf := make([]byte, n)
	id, n, err := ctx.GetMessage(buf)
	if err != nil {
		t.Fatalf("GetMessage retry failed: %v", err)
	}
	if id != 7 || !bytes.Equal(buf[:n], payload) {
		t.Fatalf("Expected message back, got id %d %q", id, buf[:n])
	}
}

func TestIOExtension_SoftStub(t *testing.T) {
	rt, _ := openSoft(t)
	if !rt.HasIO() {
		t.Fatal("Expected the soft backend to load the IO stub")
	}
}

// memBitmap is an in-memory PixelBuffer.
type memBitmap struct {
	info    offload.BitmapInfo
	pixels  []byte
	locks   int
	unlocks int
}

func newMemBitmap(w, h int, f offload.PixelFormat) *memBitmap {
	return &memBitmap{
		info:   offload.BitmapInfo{Width: w, Height: h, Stride: w * f.BytesPerPixel(), Format: f},
		pixels: make([]byte, w*h*f.BytesPerPixel()),
	}
}

func (m *memBitmap) Info() offload.BitmapInfo { return m.info }

func (m *memBitmap) LockPixels() ([]byte, error) {
	m.locks++
	return m.pixels, nil
}

func (m *memBitmap) UnlockPixels() error {
	m.unlocks++
	return nil
}

func TestBitmap_CopyInOut(t *testing.T) {
	_, ctx := openSoft(t)

	bm := newMemBitmap(2, 2, offload.PixelFormatRGBA8888)
	for i := range bm.pixels {
		bm.pixels[i] = byte(i)
	}

	a, err := ctx.AllocationFromBitmap(bm, dispatch.MipmapNone, dispatch.UsageScript)
	if err != nil {
		t.Fatalf("AllocationFromBitmap failed: %v", err)
	}
	if bm.locks != bm.unlocks {
		t.Fatalf("Lock/unlock unbalanced: %d locks, %d unlocks", bm.locks, bm.unlocks)
	}

	// Mutating the bitmap afterwards must not affect the copy
	bm.pixels[0] = 0xFF
	got := make([]byte, 16)
	if err := a.Read(got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got[0] != 0 {
		t.Fatal("AllocationFromBitmap should copy, not alias")
	}

	// And copy back out
	dst := newMemBitmap(2, 2, offload.PixelFormatRGBA8888)
	if err := a.CopyToBitmap(dst); err != nil {
		t.Fatalf("CopyToBitmap failed: %v", err)
	}
	if dst.pixels[1] != 1 || dst.pixels[15] != 15 {
		t.Fatalf("CopyToBitmap wrote wrong bytes: %v", dst.pixels)
	}
}

func TestBitmap_BackedAllocationAliases(t *testing.T) {
	_, ctx := openSoft(t)

	bm := newMemBitmap(2, 2, offload.PixelFormatRGB565)
	a, err := ctx.BitmapBackedAllocation(bm, dispatch.UsageShared)
	if err != nil {
		t.Fatalf("BitmapBackedAllocation failed: %v", err)
	}
	if bm.locks != 1 || bm.unlocks != 0 {
		t.Fatalf("Pixels should stay locked: %d locks, %d unlocks", bm.locks, bm.unlocks)
	}

	// Writing through the allocation lands in the bitmap
	if err := a.Data1D(0, 0, 1, []byte{0xAB, 0xCD}); err != nil {
		t.Fatalf("Data1D failed: %v", err)
	}
	if bm.pixels[0] != 0xAB || bm.pixels[1] != 0xCD {
		t.Fatalf("Expected write-through, bitmap holds %v", bm.pixels[:2])
	}

	if err := a.Destroy(); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if bm.unlocks != 1 {
		t.Fatal("Destroy must unlock the pixels")
	}
}

func TestBitmap_UnknownFormat(t *testing.T) {
	_, ctx := openSoft(t)

	bm := &memBitmap{info: offload.BitmapInfo{Width: 2, Height: 2, Format: offload.PixelFormatUnknown}}
	if _, err := ctx.AllocationFromBitmap(bm, dispatch.MipmapNone, dispatch.UsageScript); err == nil {
		t.Fatal("Expected rejection of unknown pixel format")
	}
}
