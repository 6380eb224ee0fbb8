// Package interp is the incremental backend: script sources are core
// WebAssembly modules executed by wazero's interpreter. It registers
// itself with the dispatch registry under the name "inc".
//
// Kernel ABI: a module exports its linear memory as "memory" and its
// forEach entry points as "kernel0", "kernel1", ... with signature
// (inPtr, outPtr, x, y, z i32). Invokables are exported as "invoke0",
// "invoke1", ... with signature (paramsPtr, paramsLen i32). The engine
// stages one element at inPtr, calls the kernel, and reads the result
// back from outPtr.
package interp
