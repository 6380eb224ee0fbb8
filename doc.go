// Package offload provides a data-parallel kernel offload runtime with
// interchangeable execution backends.
//
// A process activates a backend by name and receives a capability table:
// a fixed, enumerated set of operations covering device and context
// lifecycle, typed resource creation, bulk memory transfer, kernel
// launches, and deferred closure graphs. Backends are never linked at
// compile time against callers; everything flows through the table.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	offload/         Root package with external collaborator interfaces
//	├── runtime/     High-level API for contexts, resources and launches
//	├── dispatch/    Capability tables, driver ABI types, backend registry
//	├── engine/      Backend execution core with a pluggable kernel runner
//	├── soft/        Software-fallback backend (pure Go kernels)
//	├── interp/      Incremental backend (wazero-interpreted wasm kernels)
//	├── handle/      Type-tagged, generation-checked handle arena
//	└── errors/      Structured error types for debugging
//
// # Quick Start
//
// Activate a backend and run a kernel over an allocation:
//
//	rt, err := runtime.Activate("softref")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	ctx, _ := rt.NewContext(runtime.ContextOptions{})
//	defer ctx.Destroy()
//
//	elem, _ := ctx.ElementCreate(dispatch.DataFloat32, dispatch.KindUser, false, 1)
//	typ, _ := ctx.TypeCreate(elem, 1024, 0, 0, false, false, dispatch.YUVNone)
//	alloc, _ := ctx.AllocationCreateTyped(typ, dispatch.MipmapNone, dispatch.UsageScript)
//
//	script, _ := ctx.ScriptCCreate("saxpy", "", nil)
//	ctx.ForEach(script, 0, alloc, alloc, nil, nil)
//	ctx.Finish()
//
// # Backends
//
// Exactly one primary-or-fallback backend is active per process; the
// incremental backend may be activated independently and can address
// memory owned by the other backend's allocations through the explicit
// zero-copy transfer path. Cross-backend launches are bracketed by the
// mandatory drain protocol; see package runtime.
//
// Kernel faults are asynchronous: they surface on the context's message
// queue, not from the call that queued the work.
package offload
