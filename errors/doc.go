// Package errors provides structured error types for the offload library.
//
// Errors are categorized by Phase (where the error occurred) and Kind
// (error category). The Error type includes context: field path, the
// offending value, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseTransfer, errors.KindSizeMismatch).
//		Path("alloc", "data1d").
//		Detail("declared %d bytes, computed %d", got, want).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.SizeMismatch(errors.PhaseTransfer, got, want)
//	err := errors.InvalidHandle(errors.PhaseRuntime, "script", uint64(h))
//
// All errors implement the standard error interface and support
// errors.Is/As; Is matches on the Phase+Kind pair.
//
// Creation operations in this library fail soft: they
// return the zero handle plus an error rather than panicking, and
// backend-internal kernel faults are not returned at all; they arrive
// later on the context message queue as KindKernelFault.
package errors
