// Package soft is the software-fallback backend: kernels are plain Go
// functions looked up in a process-wide script registry, executed row
// by row with bounded parallelism. It registers itself with the
// dispatch registry under the name "softref" and is always available,
// which makes it the activation fallback of last resort.
package soft
