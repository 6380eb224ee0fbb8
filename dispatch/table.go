package dispatch

import (
	"fmt"
	"reflect"

	"github.com/wippyai/offload/handle"
)

// Table is the capability surface of one activated backend: a fixed,
// enumerated set of entry points. Activation is all-or-nothing (a
// Table with any nil entry never escapes Activate), so callers may
// invoke entries without per-call nil checks.
//
// Tables are plain values. Multiple tables (primary, software fallback,
// incremental) coexist in one process and are never merged; a handle
// minted by one backend is meaningless to another backend's table.
type Table struct {
	// Device and context lifecycle.
	DeviceCreate          func() (handle.Handle, error)
	DeviceDestroy         func(dev handle.Handle) error
	DeviceSetConfig       func(dev handle.Handle, param DeviceParam, value int32) error
	ContextCreate         func(dev handle.Handle, version, sdkVersion uint32, ct ContextType) (handle.Handle, error)
	ContextDestroy        func(ctx handle.Handle) error
	ContextFinish         func(ctx handle.Handle) error
	ContextDump           func(ctx handle.Handle, bits int32) error
	ContextSetPriority    func(ctx handle.Handle, priority int32) error
	ContextSendMessage    func(ctx handle.Handle, id uint32, data []byte) error
	ContextPeekMessage    func(ctx handle.Handle) (MessageInfo, error)
	ContextGetMessage     func(ctx handle.Handle, buf []byte) (id uint32, n int, err error)
	ContextInitToClient   func(ctx handle.Handle) error
	ContextDeinitToClient func(ctx handle.Handle) error
	ObjDestroy            func(ctx, obj handle.Handle) error

	// Element, type and sampler creation.
	ElementCreate         func(ctx handle.Handle, dt DataType, dk DataKind, normalized bool, vecSize uint32) (handle.Handle, error)
	ElementCreate2        func(ctx handle.Handle, ids []handle.Handle, names []string, arraySizes []uint32) (handle.Handle, error)
	ElementGetSubElements func(ctx, elem handle.Handle, out []SubElement) (int, error)
	TypeCreate            func(ctx, elem handle.Handle, dimX, dimY, dimZ uint32, mips, faces bool, yuv YUVFormat) (handle.Handle, error)
	SamplerCreate         func(ctx handle.Handle, mag, min, wrapS, wrapT, wrapR SamplerValue, aniso float32) (handle.Handle, error)

	// Allocation creation and transfer.
	AllocationCreateTyped          func(ctx, typ handle.Handle, mips MipmapControl, usage UsageFlags, hostMem []byte) (handle.Handle, error)
	AllocationCreateFromBitmap     func(ctx, typ handle.Handle, mips MipmapControl, pixels []byte, usage UsageFlags) (handle.Handle, error)
	AllocationCubeCreateFromBitmap func(ctx, typ handle.Handle, mips MipmapControl, pixels []byte, usage UsageFlags) (handle.Handle, error)
	AllocationGetType              func(ctx, alloc handle.Handle) (handle.Handle, error)
	AllocationSyncAll              func(ctx, alloc handle.Handle, usage UsageFlags) error
	AllocationGenerateMipmaps      func(ctx, alloc handle.Handle) error
	AllocationResize1D             func(ctx, alloc handle.Handle, dimX uint32) error
	AllocationData1D               func(ctx, alloc handle.Handle, xoff, lod, count uint32, data []byte) error
	AllocationElementData1D        func(ctx, alloc handle.Handle, xoff, lod, compIdx uint32, data []byte) error
	AllocationData2D               func(ctx, alloc handle.Handle, xoff, yoff, lod uint32, face CubemapFace, w, h uint32, data []byte) error
	AllocationData3D               func(ctx, alloc handle.Handle, xoff, yoff, zoff, lod, w, h, d uint32, data []byte) error
	AllocationRead                 func(ctx, alloc handle.Handle, buf []byte) error
	AllocationRead1D               func(ctx, alloc handle.Handle, xoff, lod, count uint32, buf []byte) error
	AllocationRead2D               func(ctx, alloc handle.Handle, xoff, yoff, lod uint32, face CubemapFace, w, h uint32, buf []byte) error
	AllocationRead3D               func(ctx, alloc handle.Handle, xoff, yoff, zoff, lod, w, h, d uint32, buf []byte) error
	AllocationCopy2DRange          func(ctx, dst handle.Handle, dstX, dstY, dstLod uint32, dstFace CubemapFace, w, h uint32, src handle.Handle, srcX, srcY, srcLod uint32, srcFace CubemapFace) error
	AllocationCopy3DRange          func(ctx, dst handle.Handle, dstX, dstY, dstZ, dstLod, w, h, d uint32, src handle.Handle, srcX, srcY, srcZ, srcLod uint32) error
	AllocationGetPointer           func(ctx, alloc handle.Handle, lod uint32, face CubemapFace, z, array uint32) (mem []byte, stride int, err error)
	AllocationCopyToBitmap         func(ctx, alloc handle.Handle, pixels []byte) error

	// Script loading, globals and launches.
	ScriptCCreate         func(ctx handle.Handle, resName, cacheDir string, src []byte) (handle.Handle, error)
	ScriptIntrinsicCreate func(ctx handle.Handle, id uint32, elem handle.Handle) (handle.Handle, error)
	ScriptBindAllocation  func(ctx, script, alloc handle.Handle, slot uint32) error
	ScriptSetTimeZone     func(ctx, script handle.Handle, tz []byte) error
	ScriptInvoke          func(ctx, script handle.Handle, slot uint32) error
	ScriptInvokeV         func(ctx, script handle.Handle, slot uint32, params []byte) error
	ScriptForEach         func(ctx, script handle.Handle, slot uint32, in, out handle.Handle, params []byte, sc *ScriptCall) error
	ScriptSetVarI         func(ctx, script handle.Handle, slot uint32, value int32) error
	ScriptSetVarJ         func(ctx, script handle.Handle, slot uint32, value int64) error
	ScriptSetVarF         func(ctx, script handle.Handle, slot uint32, value float32) error
	ScriptSetVarD         func(ctx, script handle.Handle, slot uint32, value float64) error
	ScriptSetVarV         func(ctx, script handle.Handle, slot uint32, data []byte) error
	ScriptSetVarVE        func(ctx, script handle.Handle, slot uint32, data []byte, elem handle.Handle, dims []uint32) error
	ScriptSetVarObj       func(ctx, script handle.Handle, slot uint32, obj handle.Handle) error
	ScriptKernelIDCreate  func(ctx, script handle.Handle, slot uint32, sig uint32) (handle.Handle, error)
	ScriptFieldIDCreate   func(ctx, script handle.Handle, slot uint32) (handle.Handle, error)

	// Closure graphs and script groups.
	ClosureCreate        func(ctx, kernelID, returnValue handle.Handle, fieldIDs []handle.Handle, values []ClosureValue, depClosures, depFieldIDs []handle.Handle) (handle.Handle, error)
	InvokeClosureCreate  func(ctx, invokeID handle.Handle, params []byte, fieldIDs []handle.Handle, values []ClosureValue) (handle.Handle, error)
	ClosureSetArg        func(ctx, closure handle.Handle, index uint32, value ClosureValue) error
	ClosureSetGlobal     func(ctx, closure, fieldID handle.Handle, value ClosureValue) error
	ScriptGroup2Create   func(ctx handle.Handle, name, cacheDir string, closures []handle.Handle) (handle.Handle, error)
	ScriptGroupCreate    func(ctx handle.Handle, kernels, src, dstK, dstF, types []handle.Handle) (handle.Handle, error)
	ScriptGroupSetInput  func(ctx, group, kernelID, alloc handle.Handle) error
	ScriptGroupSetOutput func(ctx, group, kernelID, alloc handle.Handle) error
	ScriptGroupExecute   func(ctx, group handle.Handle) error
}

// IOTable is the optional, separately loaded extension surface for
// display-target binding. Its absence never blocks core activation.
type IOTable struct {
	AllocationSetSurface func(ctx, alloc handle.Handle, surface any) error
	AllocationIoSend     func(ctx, alloc handle.Handle) error
}

// validateTable checks that every entry point resolved. It reports the
// first missing entry by field name so activation failures are
// diagnosable.
func validateTable(v any) error {
	rv := reflect.ValueOf(v).Elem()
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() == reflect.Func && f.IsNil() {
			return fmt.Errorf("entry point %s did not resolve", rt.Field(i).Name)
		}
	}
	return nil
}
