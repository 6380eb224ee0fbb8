package engine

import "github.com/wippyai/offload/dispatch"

// Table materializes the backend's full capability surface. Backends
// hand this to dispatch.Register through their Loader; activation then
// proves every entry point resolved.
func (b *Backend) Table() *dispatch.Table {
	return &dispatch.Table{
		DeviceCreate:          b.DeviceCreate,
		DeviceDestroy:         b.DeviceDestroy,
		DeviceSetConfig:       b.DeviceSetConfig,
		ContextCreate:         b.ContextCreate,
		ContextDestroy:        b.ContextDestroy,
		ContextFinish:         b.ContextFinish,
		ContextDump:           b.ContextDump,
		ContextSetPriority:    b.ContextSetPriority,
		ContextSendMessage:    b.ContextSendMessage,
		ContextPeekMessage:    b.ContextPeekMessage,
		ContextGetMessage:     b.ContextGetMessage,
		ContextInitToClient:   b.ContextInitToClient,
		ContextDeinitToClient: b.ContextDeinitToClient,
		ObjDestroy:            b.ObjDestroy,

		ElementCreate:         b.ElementCreate,
		ElementCreate2:        b.ElementCreate2,
		ElementGetSubElements: b.ElementGetSubElements,
		TypeCreate:            b.TypeCreate,
		SamplerCreate:         b.SamplerCreate,

		AllocationCreateTyped:          b.AllocationCreateTyped,
		AllocationCreateFromBitmap:     b.AllocationCreateFromBitmap,
		AllocationCubeCreateFromBitmap: b.AllocationCubeCreateFromBitmap,
		AllocationGetType:              b.AllocationGetType,
		AllocationSyncAll:              b.AllocationSyncAll,
		AllocationGenerateMipmaps:      b.AllocationGenerateMipmaps,
		AllocationResize1D:             b.AllocationResize1D,
		AllocationData1D:               b.AllocationData1D,
		AllocationElementData1D:        b.AllocationElementData1D,
		AllocationData2D:               b.AllocationData2D,
		AllocationData3D:               b.AllocationData3D,
		AllocationRead:                 b.AllocationRead,
		AllocationRead1D:               b.AllocationRead1D,
		AllocationRead2D:               b.AllocationRead2D,
		AllocationRead3D:               b.AllocationRead3D,
		AllocationCopy2DRange:          b.AllocationCopy2DRange,
		AllocationCopy3DRange:          b.AllocationCopy3DRange,
		AllocationGetPointer:           b.AllocationGetPointer,
		AllocationCopyToBitmap:         b.AllocationCopyToBitmap,

		ScriptCCreate:         b.ScriptCCreate,
		ScriptIntrinsicCreate: b.ScriptIntrinsicCreate,
		ScriptBindAllocation:  b.ScriptBindAllocation,
		ScriptSetTimeZone:     b.ScriptSetTimeZone,
		ScriptInvoke:          b.ScriptInvoke,
		ScriptInvokeV:         b.ScriptInvokeV,
		ScriptForEach:         b.ScriptForEach,
		ScriptSetVarI:         b.ScriptSetVarI,
		ScriptSetVarJ:         b.ScriptSetVarJ,
		ScriptSetVarF:         b.ScriptSetVarF,
		ScriptSetVarD:         b.ScriptSetVarD,
		ScriptSetVarV:         b.ScriptSetVarV,
		ScriptSetVarVE:        b.ScriptSetVarVE,
		ScriptSetVarObj:       b.ScriptSetVarObj,
		ScriptKernelIDCreate:  b.ScriptKernelIDCreate,
		ScriptFieldIDCreate:   b.ScriptFieldIDCreate,

		ClosureCreate:        b.ClosureCreate,
		InvokeClosureCreate:  b.InvokeClosureCreate,
		ClosureSetArg:        b.ClosureSetArg,
		ClosureSetGlobal:     b.ClosureSetGlobal,
		ScriptGroup2Create:   b.ScriptGroup2Create,
		ScriptGroupCreate:    b.ScriptGroupCreate,
		ScriptGroupSetInput:  b.ScriptGroupSetInput,
		ScriptGroupSetOutput: b.ScriptGroupSetOutput,
		ScriptGroupExecute:   b.ScriptGroupExecute,
	}
}
