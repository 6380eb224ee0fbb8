package runtime

import (
	"bytes"
	"testing"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/engine"
	"github.com/wippyai/offload/handle"
	"github.com/wippyai/offload/interp"
	"github.com/wippyai/offload/soft"
)

// plusOneModule is a hand-assembled core wasm module exporting "memory"
// and "kernel0" (inPtr, outPtr, x, y, z): out[0] = in[0] + 1.
var plusOneModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic + version
	// type: (i32 x5) -> ()
	0x01, 0x09, 0x01, 0x60, 0x05, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x00,
	// function: one func of type 0
	0x03, 0x02, 0x01, 0x00,
	// memory: min 1 page
	0x05, 0x03, 0x01, 0x00, 0x01,
	// exports: "memory", "kernel0"
	0x07, 0x14, 0x02,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x07, 'k', 'e', 'r', 'n', 'e', 'l', '0', 0x00, 0x00,
	// code: out[0] = in[0] + 1
	0x0a, 0x11, 0x01, 0x0f, 0x00,
	0x20, 0x01, // local.get outPtr
	0x20, 0x00, // local.get inPtr
	0x2d, 0x00, 0x00, // i32.load8_u
	0x41, 0x01, // i32.const 1
	0x6a,             // i32.add
	0x3a, 0x00, 0x00, // i32.store8
	0x0b, // end
}

type tableLoader struct{ tab *dispatch.Table }

func (l tableLoader) Load() (*dispatch.Table, error) { return l.tab, nil }

func u8Alloc(t *testing.T, ctx *Context, dimX uint32) *Allocation {
	t.Helper()
	elem, err := ctx.NewElement(dispatch.DataUnsigned8, dispatch.KindUser, false, 1)
	if err != nil {
		t.Fatalf("NewElement failed: %v", err)
	}
	typ, err := ctx.NewType(elem, dimX, 0, 0, false, false, dispatch.YUVNone)
	if err != nil {
		t.Fatalf("NewType failed: %v", err)
	}
	a, err := ctx.NewAllocation(typ, dispatch.MipmapNone, dispatch.UsageScript)
	if err != nil {
		t.Fatalf("NewAllocation failed: %v", err)
	}
	return a
}

func TestHandoff_RequiresDistinctBackends(t *testing.T) {
	rt, ctx := openSoft(t)

	other, err := rt.NewContext(dispatch.ContextTypeNormal)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	defer other.Destroy()

	if _, err := NewHandoff(ctx, other); err == nil {
		t.Fatal("Expected rejection of same-runtime handoff")
	}
	if _, err := NewHandoff(nil, ctx); err == nil {
		t.Fatal("Expected rejection of nil context")
	}
}

func TestHandoff_BarrierOrdering(t *testing.T) {
	var events []string
	rec := func(tag string) { events = append(events, tag) }

	primTab := engine.New("handoff-prim", soft.NewRunner(0), engine.Config{}).Table()
	incTab := engine.New("handoff-inc", soft.NewRunner(0), engine.Config{}).Table()

	primFinish := primTab.ContextFinish
	primTab.ContextFinish = func(ctx handle.Handle) error {
		rec("finish primary")
		return primFinish(ctx)
	}
	incForEach := incTab.ScriptForEach
	incTab.ScriptForEach = func(ctx, script handle.Handle, slot uint32, in, out handle.Handle, params []byte, sc *dispatch.ScriptCall) error {
		rec("forEach inc")
		return incForEach(ctx, script, slot, in, out, params, sc)
	}
	incFinish := incTab.ContextFinish
	incTab.ContextFinish = func(ctx handle.Handle) error {
		rec("finish inc")
		return incFinish(ctx)
	}

	dispatch.Register("handoff-prim", tableLoader{primTab})
	dispatch.Register("handoff-inc", tableLoader{incTab})

	openNamed := func(name string) (*Runtime, *Context) {
		rt, err := Open(name)
		if err != nil {
			t.Fatalf("Open(%q) failed: %v", name, err)
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
	_, prim := openNamed("handoff-prim")
	_, inc := openNamed("handoff-inc")

	h, err := NewHandoff(prim, inc)
	if err != nil {
		t.Fatalf("NewHandoff failed: %v", err)
	}

	in := u8Alloc(t, inc, 4)
	out := u8Alloc(t, inc, 4)
	scr, err := inc.NewScript("double", "", nil)
	if err != nil {
		t.Fatalf("NewScript failed: %v", err)
	}

	events = events[:0]
	if err := h.ForEach(scr, 0, in, out, nil, nil); err != nil {
		t.Fatalf("Handoff ForEach failed: %v", err)
	}

	want := []string{"finish primary", "forEach inc", "finish inc"}
	if len(events) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("Expected events %v, got %v", want, events)
		}
	}
}

func TestHandoff_ShareAllocation(t *testing.T) {
	_, prim := openSoft(t)

	incRT, err := Open(interp.Name)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", interp.Name, err)
	}
	inc, err := incRT.NewContext(dispatch.ContextTypeNormal)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	t.Cleanup(func() {
		inc.Destroy()
		incRT.Close()
	})

	h, err := NewHandoff(prim, inc)
	if err != nil {
		t.Fatalf("NewHandoff failed: %v", err)
	}

	src := u8Alloc(t, prim, 8)
	dst := u8Alloc(t, prim, 8)
	if err := src.Data1D(0, 0, 8, []byte{10, 20, 30, 40, 50, 60, 70, 80}); err != nil {
		t.Fatalf("Data1D failed: %v", err)
	}

	sharedIn, err := h.ShareAllocation(src)
	if err != nil {
		t.Fatalf("ShareAllocation failed: %v", err)
	}
	sharedOut, err := h.ShareAllocation(dst)
	if err != nil {
		t.Fatalf("ShareAllocation failed: %v", err)
	}

	scr, err := inc.NewScript("plus-one", "", plusOneModule)
	if err != nil {
		t.Fatalf("NewScript failed: %v", err)
	}
	if err := h.ForEach(scr, 0, sharedIn, sharedOut, nil, nil); err != nil {
		t.Fatalf("Handoff ForEach failed: %v", err)
	}

	// The result is read through the PRIMARY allocation: the two sides
	// alias the same bytes.
	got := make([]byte, 8)
	if err := dst.Read1D(0, 0, 8, got); err != nil {
		t.Fatalf("Read1D failed: %v", err)
	}
	want := []byte{11, 21, 31, 41, 51, 61, 71, 81}
	if !bytes.Equal(got, want) {
		t.Fatalf("Expected %v through the primary view, got %v", want, got)
	}
}

func TestHandoff_ShareRejectsForeignAllocation(t *testing.T) {
	_, prim := openSoft(t)

	incRT, err := Open(interp.Name)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", interp.Name, err)
	}
	inc, err := incRT.NewContext(dispatch.ContextTypeNormal)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	t.Cleanup(func() {
		inc.Destroy()
		incRT.Close()
	})

	h, err := NewHandoff(prim, inc)
	if err != nil {
		t.Fatalf("NewHandoff failed: %v", err)
	}

	foreign := u8Alloc(t, inc, 4)
	if _, err := h.ShareAllocation(foreign); err == nil {
		t.Fatal("Expected rejection of an allocation from the inc context")
	}
}

func TestHandoff_ShareRejectsStructuredElement(t *testing.T) {
	_, prim := openSoft(t)

	incRT, err := Open(interp.Name)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", interp.Name, err)
	}
	inc, err := incRT.NewContext(dispatch.ContextTypeNormal)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	t.Cleanup(func() {
		inc.Destroy()
		incRT.Close()
	})

	h, err := NewHandoff(prim, inc)
	if err != nil {
		t.Fatalf("NewHandoff failed: %v", err)
	}

	m, err := prim.NewElement(dispatch.DataUnsigned8, dispatch.KindUser, false, 1)
	if err != nil {
		t.Fatalf("NewElement failed: %v", err)
	}
	structured, err := prim.NewStructElement([]*Element{m, m}, []string{"a", "b"}, []uint32{0, 0})
	if err != nil {
		t.Fatalf("NewStructElement failed: %v", err)
	}
	typ, err := prim.NewType(structured, 4, 0, 0, false, false, dispatch.YUVNone)
	if err != nil {
		t.Fatalf("NewType failed: %v", err)
	}
	a, err := prim.NewAllocation(typ, dispatch.MipmapNone, dispatch.UsageScript)
	if err != nil {
		t.Fatalf("NewAllocation failed: %v", err)
	}

	if _, err := h.ShareAllocation(a); err == nil {
		t.Fatal("Expected structured elements to be unsupported for sharing")
	}
}
