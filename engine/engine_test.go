package engine

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
	"github.com/wippyai/offload/handle"
)

// stubProgram is an in-memory Program: globals are a slot map, kernels
// run a configurable function (default: copy input to output, adding
// one to every byte).
type stubProgram struct {
	mu      sync.Mutex
	kernels int
	globals map[int][]byte
	bound   map[int]*AllocView
	invoked []int
	kernel  func(slot int, in, out *AllocView, params []byte, clip *dispatch.ScriptCall) error
	closed  bool
}

func newStubProgram(kernels int) *stubProgram {
	p := &stubProgram{
		kernels: kernels,
		globals: make(map[int][]byte),
		bound:   make(map[int]*AllocView),
	}
	p.kernel = func(slot int, in, out *AllocView, params []byte, clip *dispatch.ScriptCall) error {
		if in == nil || out == nil {
			return nil
		}
		for i := range out.Bytes {
			out.Bytes[i] = in.Bytes[i] + 1
		}
		return nil
	}
	return p
}

func (p *stubProgram) KernelCount() int { return p.kernels }

func (p *stubProgram) SetGlobal(slot int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	p.globals[slot] = buf
	return nil
}

func (p *stubProgram) Global(slot int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.globals[slot], nil
}

func (p *stubProgram) BindAllocation(slot int, view *AllocView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bound[slot] = view
	return nil
}

func (p *stubProgram) Invoke(slot int, params []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invoked = append(p.invoked, slot)
	return nil
}

func (p *stubProgram) InvokeKernel(slot int, in, out *AllocView, params []byte, clip *dispatch.ScriptCall) error {
	return p.kernel(slot, in, out, params, clip)
}

func (p *stubProgram) Close() error {
	p.closed = true
	return nil
}

type stubRunner struct {
	mu    sync.Mutex
	progs []*stubProgram
}

func (r *stubRunner) Name() string { return "stub" }

func (r *stubRunner) Compile(resName, cacheDir string, src []byte) (Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := newStubProgram(4)
	r.progs = append(r.progs, p)
	return p, nil
}

func (r *stubRunner) CompileIntrinsic(id uint32, elemSize int) (Program, error) {
	if id > 10 {
		return nil, fmt.Errorf("no intrinsic %d", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := newStubProgram(1)
	r.progs = append(r.progs, p)
	return p, nil
}

// newTestContext spins up a backend, device and context.
func newTestContext(t *testing.T) (*Backend, *stubRunner, handle.Handle) {
	t.Helper()
	r := &stubRunner{}
	b := New("stub", r, Config{})
	t.Cleanup(func() { b.Close() })

	dev, err := b.DeviceCreate()
	if err != nil {
		t.Fatalf("DeviceCreate failed: %v", err)
	}
	ctx, err := b.ContextCreate(dev, 1, 23, dispatch.ContextTypeNormal)
	if err != nil {
		t.Fatalf("ContextCreate failed: %v", err)
	}
	return b, r, ctx
}

// alloc1D creates a u8 1D allocation of n elements.
func alloc1D(t *testing.T, b *Backend, ctx handle.Handle, n uint32) handle.Handle {
	t.Helper()
	elem, err := b.ElementCreate(ctx, dispatch.DataUnsigned8, dispatch.KindUser, false, 1)
	if err != nil {
		t.Fatalf("ElementCreate failed: %v", err)
	}
	typ, err := b.TypeCreate(ctx, elem, n, 0, 0, false, false, dispatch.YUVNone)
	if err != nil {
		t.Fatalf("TypeCreate failed: %v", err)
	}
	a, err := b.AllocationCreateTyped(ctx, typ, dispatch.MipmapNone, dispatch.UsageScript, nil)
	if err != nil {
		t.Fatalf("AllocationCreateTyped failed: %v", err)
	}
	return a
}

func TestAllocation_RoundTrip1D(t *testing.T) {
	b, _, ctx := newTestContext(t)
	a := alloc1D(t, b, ctx, 16)

	in := []byte{1, 2, 3, 4}
	if err := b.AllocationData1D(ctx, a, 4, 0, 4, in); err != nil {
		t.Fatalf("Data1D failed: %v", err)
	}

	out := make([]byte, 4)
	if err := b.AllocationRead1D(ctx, a, 4, 0, 4, out); err != nil {
		t.Fatalf("Read1D failed: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Fatalf("Expected %v, got %v", in, out)
	}

	// Untouched region stays zero
	if err := b.AllocationRead1D(ctx, a, 0, 0, 4, out); err != nil {
		t.Fatalf("Read1D failed: %v", err)
	}
	if !bytes.Equal(out, []byte{0, 0, 0, 0}) {
		t.Fatalf("Expected zeros, got %v", out)
	}
}

func TestAllocation_SizeMismatch(t *testing.T) {
	b, _, ctx := newTestContext(t)
	a := alloc1D(t, b, ctx, 16)

	// Declared 4 elements, provided 3 bytes
	err := b.AllocationData1D(ctx, a, 0, 0, 4, []byte{1, 2, 3})
	var oe *errors.Error
	if !stderrors.As(err, &oe) || oe.Kind != errors.KindSizeMismatch {
		t.Fatalf("Expected size mismatch, got %v", err)
	}

	// Out of range run
	err = b.AllocationData1D(ctx, a, 14, 0, 4, []byte{1, 2, 3, 4})
	if err == nil {
		t.Fatal("Expected out of range error")
	}

	// Whole-store read needs the exact length
	err = b.AllocationRead(ctx, a, make([]byte, 15))
	if err == nil {
		t.Fatal("Expected size mismatch on short read buffer")
	}
}

func TestAllocation_HostMemory(t *testing.T) {
	b, _, ctx := newTestContext(t)
	elem, _ := b.ElementCreate(ctx, dispatch.DataUnsigned8, dispatch.KindUser, false, 1)
	typ, _ := b.TypeCreate(ctx, elem, 8, 0, 0, false, false, dispatch.YUVNone)

	host := make([]byte, 8)
	a, err := b.AllocationCreateTyped(ctx, typ, dispatch.MipmapNone, dispatch.UsageShared, host)
	if err != nil {
		t.Fatalf("AllocationCreateTyped failed: %v", err)
	}

	// Writes land in the caller's buffer without copying
	if err := b.AllocationData1D(ctx, a, 0, 0, 2, []byte{9, 8}); err != nil {
		t.Fatalf("Data1D failed: %v", err)
	}
	if host[0] != 9 || host[1] != 8 {
		t.Fatalf("Expected host memory write-through, got %v", host[:2])
	}

	// Wrong host buffer length is rejected
	if _, err := b.AllocationCreateTyped(ctx, typ, dispatch.MipmapNone, dispatch.UsageShared, make([]byte, 7)); err == nil {
		t.Fatal("Expected size mismatch for short host memory")
	}
}

func TestAllocation_MipFaceAddressing(t *testing.T) {
	b, _, ctx := newTestContext(t)
	elem, _ := b.ElementCreate(ctx, dispatch.DataUnsigned8, dispatch.KindUser, false, 1)
	typ, _ := b.TypeCreate(ctx, elem, 4, 4, 0, true, true, dispatch.YUVNone)
	a, err := b.AllocationCreateTyped(ctx, typ, dispatch.MipmapFull, dispatch.UsageScript, nil)
	if err != nil {
		t.Fatalf("AllocationCreateTyped failed: %v", err)
	}

	// Write distinct values into (lod 1, face 2) and (lod 0, face 0)
	lod1 := []byte{7, 7, 7, 7} // 2x2
	if err := b.AllocationData2D(ctx, a, 0, 0, 1, dispatch.FacePositiveY, 2, 2, lod1); err != nil {
		t.Fatalf("Data2D lod1 failed: %v", err)
	}
	lod0 := bytes.Repeat([]byte{3}, 16)
	if err := b.AllocationData2D(ctx, a, 0, 0, 0, dispatch.FacePositiveX, 4, 4, lod0); err != nil {
		t.Fatalf("Data2D lod0 failed: %v", err)
	}

	out := make([]byte, 4)
	if err := b.AllocationRead2D(ctx, a, 0, 0, 1, dispatch.FacePositiveY, 2, 2, out); err != nil {
		t.Fatalf("Read2D failed: %v", err)
	}
	if !bytes.Equal(out, lod1) {
		t.Fatalf("Expected %v at lod 1 face 2, got %v", lod1, out)
	}

	// Levels past the chain end are rejected
	if err := b.AllocationData2D(ctx, a, 0, 0, 9, dispatch.FacePositiveX, 1, 1, []byte{1}); err == nil {
		t.Fatal("Expected out of range lod")
	}
}

func TestAllocation_Resize1D(t *testing.T) {
	b, _, ctx := newTestContext(t)
	a := alloc1D(t, b, ctx, 4)

	if err := b.AllocationData1D(ctx, a, 0, 0, 4, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Data1D failed: %v", err)
	}
	if err := b.AllocationResize1D(ctx, a, 8); err != nil {
		t.Fatalf("Resize1D failed: %v", err)
	}

	out := make([]byte, 8)
	if err := b.AllocationRead1D(ctx, a, 0, 0, 8, out); err != nil {
		t.Fatalf("Read1D failed: %v", err)
	}
	want := []byte{1, 2, 3, 4, 0, 0, 0, 0}
	if !bytes.Equal(out, want) {
		t.Fatalf("Expected %v after grow, got %v", want, out)
	}

	// Shrink keeps the prefix
	if err := b.AllocationResize1D(ctx, a, 2); err != nil {
		t.Fatalf("Resize1D shrink failed: %v", err)
	}
	out = make([]byte, 2)
	if err := b.AllocationRead1D(ctx, a, 0, 0, 2, out); err != nil {
		t.Fatalf("Read1D failed: %v", err)
	}
	if !bytes.Equal(out, []byte{1, 2}) {
		t.Fatalf("Expected prefix preserved, got %v", out)
	}
}

func TestElement_Structured(t *testing.T) {
	b, _, ctx := newTestContext(t)

	f32, _ := b.ElementCreate(ctx, dispatch.DataFloat32, dispatch.KindUser, false, 1)
	u16, _ := b.ElementCreate(ctx, dispatch.DataUnsigned16, dispatch.KindUser, false, 1)

	st, err := b.ElementCreate2(ctx,
		[]handle.Handle{f32, u16},
		[]string{"weight", "count"},
		[]uint32{0, 0})
	if err != nil {
		t.Fatalf("ElementCreate2 failed: %v", err)
	}

	out := make([]dispatch.SubElement, 4)
	n, err := b.ElementGetSubElements(ctx, st, out)
	if err != nil {
		t.Fatalf("ElementGetSubElements failed: %v", err)
	}
	if n != 2 || out[0].Name != "weight" || out[1].Name != "count" {
		t.Fatalf("Unexpected sub-elements: %d %+v", n, out[:n])
	}
	if out[0].ID != f32 {
		t.Fatal("Sub-element id does not round-trip")
	}

	// Mismatched parallel arrays are rejected
	_, err = b.ElementCreate2(ctx, []handle.Handle{f32}, []string{"a", "b"}, []uint32{0})
	if err == nil {
		t.Fatal("Expected size mismatch for uneven arrays")
	}
}

func TestAllocation_ElementData1D(t *testing.T) {
	b, _, ctx := newTestContext(t)

	u8, _ := b.ElementCreate(ctx, dispatch.DataUnsigned8, dispatch.KindUser, false, 1)
	u16, _ := b.ElementCreate(ctx, dispatch.DataUnsigned16, dispatch.KindUser, false, 1)
	st, err := b.ElementCreate2(ctx,
		[]handle.Handle{u8, u16},
		[]string{"tag", "value"},
		[]uint32{0, 0})
	if err != nil {
		t.Fatalf("ElementCreate2 failed: %v", err)
	}
	typ, _ := b.TypeCreate(ctx, st, 4, 0, 0, false, false, dispatch.YUVNone)
	a, err := b.AllocationCreateTyped(ctx, typ, dispatch.MipmapNone, dispatch.UsageScript, nil)
	if err != nil {
		t.Fatalf("AllocationCreateTyped failed: %v", err)
	}

	// Patch the one-byte "tag" component of elements 1 and 2
	if err := b.AllocationElementData1D(ctx, a, 1, 0, 0, []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("ElementData1D failed: %v", err)
	}

	out := make([]byte, 12) // 4 elements x 3 bytes
	if err := b.AllocationRead(ctx, a, out); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if out[3] != 0xAA || out[6] != 0xBB {
		t.Fatalf("Component patch landed wrong: %v", out)
	}
	if out[0] != 0 || out[4] != 0 {
		t.Fatalf("Neighboring components disturbed: %v", out)
	}
}

func TestAllocation_Copy2DRange(t *testing.T) {
	b, _, ctx := newTestContext(t)
	elem, _ := b.ElementCreate(ctx, dispatch.DataUnsigned8, dispatch.KindUser, false, 1)
	typ, _ := b.TypeCreate(ctx, elem, 4, 4, 0, false, false, dispatch.YUVNone)

	src, _ := b.AllocationCreateTyped(ctx, typ, dispatch.MipmapNone, dispatch.UsageScript, nil)
	dst, _ := b.AllocationCreateTyped(ctx, typ, dispatch.MipmapNone, dispatch.UsageScript, nil)

	fill := bytes.Repeat([]byte{5}, 4)
	if err := b.AllocationData2D(ctx, src, 0, 0, 0, dispatch.FacePositiveX, 2, 2, fill); err != nil {
		t.Fatalf("Data2D failed: %v", err)
	}
	if err := b.AllocationCopy2DRange(ctx, dst, 2, 2, 0, dispatch.FacePositiveX, 2, 2, src, 0, 0, 0, dispatch.FacePositiveX); err != nil {
		t.Fatalf("Copy2DRange failed: %v", err)
	}

	out := make([]byte, 4)
	if err := b.AllocationRead2D(ctx, dst, 2, 2, 0, dispatch.FacePositiveX, 2, 2, out); err != nil {
		t.Fatalf("Read2D failed: %v", err)
	}
	if !bytes.Equal(out, fill) {
		t.Fatalf("Expected %v, got %v", fill, out)
	}
}

func TestForEach_Async(t *testing.T) {
	b, _, ctx := newTestContext(t)
	in := alloc1D(t, b, ctx, 8)
	out := alloc1D(t, b, ctx, 8)

	if err := b.AllocationData1D(ctx, in, 0, 0, 8, []byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatalf("Data1D failed: %v", err)
	}

	scr, err := b.ScriptCCreate(ctx, "copy", "", []byte("src"))
	if err != nil {
		t.Fatalf("ScriptCCreate failed: %v", err)
	}
	if err := b.ScriptForEach(ctx, scr, 0, in, out, nil, nil); err != nil {
		t.Fatalf("ScriptForEach failed: %v", err)
	}
	if err := b.ContextFinish(ctx); err != nil {
		t.Fatalf("ContextFinish failed: %v", err)
	}

	got := make([]byte, 8)
	if err := b.AllocationRead1D(ctx, out, 0, 0, 8, got); err != nil {
		t.Fatalf("Read1D failed: %v", err)
	}
	want := []byte{2, 3, 4, 5, 6, 7, 8, 9}
	if !bytes.Equal(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
}

func TestForEach_FaultOnMessageQueue(t *testing.T) {
	b, r, ctx := newTestContext(t)
	in := alloc1D(t, b, ctx, 4)
	out := alloc1D(t, b, ctx, 4)

	scr, err := b.ScriptCCreate(ctx, "boom", "", nil)
	if err != nil {
		t.Fatalf("ScriptCCreate failed: %v", err)
	}
	r.progs[0].kernel = func(slot int, in, out *AllocView, params []byte, clip *dispatch.ScriptCall) error {
		return fmt.Errorf("divide by zero")
	}

	// The launch itself succeeds; the fault arrives on the queue
	if err := b.ScriptForEach(ctx, scr, 0, in, out, nil, nil); err != nil {
		t.Fatalf("ScriptForEach failed: %v", err)
	}
	if err := b.ContextFinish(ctx); err != nil {
		t.Fatalf("ContextFinish failed: %v", err)
	}

	msg, ok, err := b.GetErrorMessage(ctx)
	if err != nil {
		t.Fatalf("GetErrorMessage failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected a pending error message")
	}
	if msg == "" {
		t.Fatal("Expected fault detail text")
	}
}

func TestMessage_DrainProtocol(t *testing.T) {
	b, _, ctx := newTestContext(t)

	payload := []byte("hello from the backend")
	if err := b.ContextSendMessage(ctx, 42, payload); err != nil {
		t.Fatalf("ContextSendMessage failed: %v", err)
	}

	info, err := b.ContextPeekMessage(ctx)
	if err != nil {
		t.Fatalf("ContextPeekMessage failed: %v", err)
	}
	if info.ID != 42 || info.Length != len(payload) {
		t.Fatalf("Unexpected head: %+v", info)
	}

	// Too-small buffer leaves the message queued
	small := make([]byte, 4)
	id, n, err := b.ContextGetMessage(ctx, small)
	if err != nil {
		t.Fatalf("ContextGetMessage failed: %v", err)
	}
	if id != MessageNone || n != len(payload) {
		t.Fatalf("Expected (0, %d) for short buffer, got (%d, %d)", len(payload), id, n)
	}

	// Retry with the reported size consumes it
	buf := make([]byte, n)
	id, n, err = b.ContextGetMessage(ctx, buf)
	if err != nil {
		t.Fatalf("ContextGetMessage failed: %v", err)
	}
	if id != 42 || !bytes.Equal(buf[:n], payload) {
		t.Fatalf("Expected message back, got id %d %q", id, buf[:n])
	}

	// Queue is now empty
	info, _ = b.ContextPeekMessage(ctx)
	if info.ID != MessageNone {
		t.Fatalf("Expected empty queue, got %+v", info)
	}
}

func TestContextDestroy_InvalidatesHandles(t *testing.T) {
	b, _, ctx := newTestContext(t)
	a := alloc1D(t, b, ctx, 4)

	if err := b.ContextDestroy(ctx); err != nil {
		t.Fatalf("ContextDestroy failed: %v", err)
	}

	if err := b.AllocationData1D(ctx, a, 0, 0, 1, []byte{1}); err == nil {
		t.Fatal("Expected invalid handle after context destroy")
	}
}

func TestScript_GlobalsAndInvoke(t *testing.T) {
	b, r, ctx := newTestContext(t)

	scr, err := b.ScriptCCreate(ctx, "globals", "", nil)
	if err != nil {
		t.Fatalf("ScriptCCreate failed: %v", err)
	}
	if err := b.ScriptSetVarI(ctx, scr, 0, -7); err != nil {
		t.Fatalf("SetVarI failed: %v", err)
	}
	if err := b.ScriptSetVarF(ctx, scr, 1, 1.5); err != nil {
		t.Fatalf("SetVarF failed: %v", err)
	}
	if err := b.ScriptInvoke(ctx, scr, 2); err != nil {
		t.Fatalf("ScriptInvoke failed: %v", err)
	}
	if err := b.ContextFinish(ctx); err != nil {
		t.Fatalf("ContextFinish failed: %v", err)
	}

	p := r.progs[0]
	if got := p.globals[0]; !bytes.Equal(got, []byte{0xF9, 0xFF, 0xFF, 0xFF}) {
		t.Fatalf("int global encoded wrong: %v", got)
	}
	if len(p.invoked) != 1 || p.invoked[0] != 2 {
		t.Fatalf("Expected invoke of slot 2, got %v", p.invoked)
	}
}

func TestAllocation_GetPointer(t *testing.T) {
	b, _, ctx := newTestContext(t)
	elem, _ := b.ElementCreate(ctx, dispatch.DataUnsigned8, dispatch.KindUser, false, 1)
	typ, _ := b.TypeCreate(ctx, elem, 4, 2, 0, false, false, dispatch.YUVNone)
	a, _ := b.AllocationCreateTyped(ctx, typ, dispatch.MipmapNone, dispatch.UsageShared, nil)

	mem, stride, err := b.AllocationGetPointer(ctx, a, 0, dispatch.FacePositiveX, 0, 0)
	if err != nil {
		t.Fatalf("GetPointer failed: %v", err)
	}
	if stride != 4 || len(mem) != 8 {
		t.Fatalf("Unexpected view: stride %d len %d", stride, len(mem))
	}

	// The view aliases live storage
	mem[0] = 0x5A
	out := make([]byte, 1)
	if err := b.AllocationRead1D(ctx, a, 0, 0, 1, out); err != nil {
		t.Fatalf("Read1D failed: %v", err)
	}
	if out[0] != 0x5A {
		t.Fatal("GetPointer view does not alias allocation storage")
	}

	// Array dimension is not supported
	if _, _, err := b.AllocationGetPointer(ctx, a, 0, dispatch.FacePositiveX, 0, 1); err == nil {
		t.Fatal("Expected unsupported for array != 0")
	}
}

func TestAllocation_GenerateMipmaps(t *testing.T) {
	b, _, ctx := newTestContext(t)
	elem, _ := b.ElementCreate(ctx, dispatch.DataUnsigned8, dispatch.KindUser, false, 1)
	typ, _ := b.TypeCreate(ctx, elem, 4, 4, 0, true, false, dispatch.YUVNone)
	a, _ := b.AllocationCreateTyped(ctx, typ, dispatch.MipmapFull, dispatch.UsageScript, nil)

	base := bytes.Repeat([]byte{8}, 16)
	if err := b.AllocationData2D(ctx, a, 0, 0, 0, dispatch.FacePositiveX, 4, 4, base); err != nil {
		t.Fatalf("Data2D failed: %v", err)
	}
	if err := b.AllocationGenerateMipmaps(ctx, a); err != nil {
		t.Fatalf("GenerateMipmaps failed: %v", err)
	}

	out := make([]byte, 4)
	if err := b.AllocationRead2D(ctx, a, 0, 0, 1, dispatch.FacePositiveX, 2, 2, out); err != nil {
		t.Fatalf("Read2D failed: %v", err)
	}
	if !bytes.Equal(out, []byte{8, 8, 8, 8}) {
		t.Fatalf("Box filter of constant image should be constant, got %v", out)
	}
}

func TestAllocation_Box3D(t *testing.T) {
	b, _, ctx := newTestContext(t)

	elem, _ := b.ElementCreate(ctx, dispatch.DataUnsigned8, dispatch.KindUser, false, 1)
	typ, _ := b.TypeCreate(ctx, elem, 4, 4, 4, false, false, dispatch.YUVNone)
	a, _ := b.AllocationCreateTyped(ctx, typ, dispatch.MipmapNone, dispatch.UsageScript, nil)

	// A 2x2x2 box at (1,1,1)
	box := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := b.AllocationData3D(ctx, a, 1, 1, 1, 0, 2, 2, 2, box); err != nil {
		t.Fatalf("Data3D failed: %v", err)
	}

	got := make([]byte, 8)
	if err := b.AllocationRead3D(ctx, a, 1, 1, 1, 0, 2, 2, 2, got); err != nil {
		t.Fatalf("Read3D failed: %v", err)
	}
	if !bytes.Equal(got, box) {
		t.Fatalf("Expected %v, got %v", box, got)
	}

	// Corners outside the written box stayed zero
	corner := make([]byte, 1)
	if err := b.AllocationRead3D(ctx, a, 0, 0, 0, 0, 1, 1, 1, corner); err != nil {
		t.Fatalf("Read3D failed: %v", err)
	}
	if corner[0] != 0 {
		t.Fatalf("Expected untouched corner, got %d", corner[0])
	}

	// Out-of-range box
	if err := b.AllocationData3D(ctx, a, 3, 3, 3, 0, 2, 2, 2, box); err == nil {
		t.Fatal("Expected out-of-range rejection")
	}
	// 3D transfer on a 1D allocation
	flat := alloc1D(t, b, ctx, 8)
	if err := b.AllocationData3D(ctx, flat, 0, 0, 0, 0, 2, 2, 2, box); err == nil {
		t.Fatal("Expected rejection on a 1D allocation")
	}
}

func TestAllocation_OffsetOverflowRejected(t *testing.T) {
	b, _, ctx := newTestContext(t)

	elem, _ := b.ElementCreate(ctx, dispatch.DataUnsigned8, dispatch.KindUser, false, 1)
	plane, _ := b.TypeCreate(ctx, elem, 4, 4, 0, false, false, dispatch.YUVNone)
	a2, _ := b.AllocationCreateTyped(ctx, plane, dispatch.MipmapNone, dispatch.UsageScript, nil)
	vol, _ := b.TypeCreate(ctx, elem, 4, 4, 4, false, false, dispatch.YUVNone)
	a3, _ := b.AllocationCreateTyped(ctx, vol, dispatch.MipmapNone, dispatch.UsageScript, nil)

	// Offsets near MaxUint32 must fail the range check, not wrap past it
	var oe *errors.Error
	buf := []byte{1, 2}
	if err := b.AllocationData2D(ctx, a2, math.MaxUint32, 0, 0, dispatch.FacePositiveX, 2, 1, buf); !stderrors.As(err, &oe) || oe.Kind != errors.KindOutOfRange {
		t.Fatalf("Expected out_of_range on x offset, got %v", err)
	}
	if err := b.AllocationData2D(ctx, a2, 0, math.MaxUint32, 0, dispatch.FacePositiveX, 1, 2, buf); !stderrors.As(err, &oe) || oe.Kind != errors.KindOutOfRange {
		t.Fatalf("Expected out_of_range on y offset, got %v", err)
	}
	if err := b.AllocationData3D(ctx, a3, 0, 0, math.MaxUint32, 0, 1, 1, 2, buf); !stderrors.As(err, &oe) || oe.Kind != errors.KindOutOfRange {
		t.Fatalf("Expected out_of_range on z offset, got %v", err)
	}
	if err := b.AllocationCopy3DRange(ctx, a3, 0, 0, 0, 0, 1, 1, 2, a3, 0, 0, math.MaxUint32, 0); !stderrors.As(err, &oe) || oe.Kind != errors.KindOutOfRange {
		t.Fatalf("Expected out_of_range on copy source z, got %v", err)
	}
	if err := b.AllocationCopy2DRange(ctx, a2, 0, 0, 0, dispatch.FacePositiveX, math.MaxUint32, math.MaxUint32, a2, 0, 0, 0, dispatch.FacePositiveX); !stderrors.As(err, &oe) || oe.Kind != errors.KindOutOfRange {
		t.Fatalf("Expected out_of_range on oversized copy extent, got %v", err)
	}
}
