// Package dispatch defines the backend capability surface and the
// registry that activates backends by name.
//
// A backend is usable only through its Table: a fixed, enumerated set
// of entry points covering device/context lifecycle, element/type/
// sampler creation, allocation transfer, script launches, and closure
// graphs. Activate resolves a registered Loader and validates that
// every required entry point is present: partial resolution is a hard
// activation failure, and a failed activation leaves the process in
// exactly its pre-activation state.
//
// The smaller IOTable (surface binding, IO send) loads separately and
// is optional.
//
// The package also owns the driver ABI value types shared by all
// backends: data types and kinds, usage flags, cubemap faces, mipmap
// control, sampler values, launch clip regions, and closure value
// bindings.
//
// There is no process-wide active table: tables are plain
// values held by their callers, so a primary and an incremental backend
// can be live at once without interference.
package dispatch
