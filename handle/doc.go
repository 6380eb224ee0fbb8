// Package handle implements the opaque handle space shared by all
// backends.
//
// Every backend-owned object (device, context, element, type,
// allocation, script, closure, script group, sampler) is referenced by
// a flat 64-bit Handle minted from a per-backend Arena. A handle packs
// an arena slot, a generation counter, and a kind tag; resolving it
// checks all three, so a destroyed handle or an allocation handle
// passed where a script handle is expected fails fast instead of
// reaching backend state.
//
// Handle 0 is reserved and always invalid: creation failures return it
// as the sentinel.
package handle
