// Package runtime is the high-level caller API over the dispatch
// layer: backend activation, context and resource wrappers, bitmap
// interop, messaging, and the cross-backend handoff protocol that
// brackets incremental launches with drain barriers.
//
// Everything here goes through an activated capability table; the
// package holds no backend state of its own beyond the handles it
// wraps.
package runtime
