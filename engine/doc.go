// Package engine implements the backend execution core shared by the
// in-process backends: devices, contexts with asynchronous work queues,
// typed elements and shapes, allocations with 1D/2D/3D transfer
// addressing, scripts, and deferred closure graphs.
//
// The engine is kernel-agnostic. Actual kernel execution is delegated
// to a Runner, the opaque "invoke kernel K with bound arguments"
// contract: package soft supplies a pure-Go runner and package interp a
// wazero-interpreted one. Everything else (handle minting, transfer
// size validation, mip/face addressing, topological group execution,
// the context message queue) lives here once.
//
// A Backend's capability table is obtained from Table and registered
// with package dispatch by the backend packages.
//
// Operations on a single context are cooperative: the caller serializes
// them. Kernel launches are queued and run on the context's worker
// goroutine; ContextFinish is the only fence. Kernel faults never
// surface from the launching call; they are posted to the context's
// message queue.
package engine
