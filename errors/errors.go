package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseActivate Phase = "activate" // backend activation
	PhaseCreate   Phase = "create"   // resource creation
	PhaseTransfer Phase = "transfer" // allocation data movement
	PhaseExecute  Phase = "execute"  // kernel and graph execution
	PhaseMessage  Phase = "message"  // context message queue
	PhaseRuntime  Phase = "runtime"  // everything else
)

// Kind categorizes the error
type Kind string

const (
	KindBackendUnavailable Kind = "backend_unavailable"
	KindInvalidHandle      Kind = "invalid_handle"
	KindSizeMismatch       Kind = "size_mismatch"
	KindInvalidGraph       Kind = "invalid_graph"
	KindMessageTooLarge    Kind = "message_too_large"
	KindNotFound           Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
	KindOutOfRange         Kind = "out_of_range"
	KindUnsupported        Kind = "unsupported"
	KindKernelFault        Kind = "kernel_fault"
	KindClosed             Kind = "closed"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// BackendUnavailable reports a failed all-or-nothing activation.
func BackendUnavailable(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseActivate,
		Kind:   KindBackendUnavailable,
		Detail: fmt.Sprintf("backend %q", name),
		Cause:  cause,
	}
}

// InvalidHandle reports a stale or mistyped handle.
func InvalidHandle(phase Phase, what string, handle uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("%s handle 0x%x", what, handle),
		Value:  handle,
	}
}

// SizeMismatch reports a declared length disagreeing with the computed
// requirement.
func SizeMismatch(phase Phase, declared, computed int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindSizeMismatch,
		Detail: fmt.Sprintf("declared %d bytes, computed %d", declared, computed),
		Value:  declared,
	}
}

// InvalidGraph reports a cycle or dangling dependency in a closure group.
func InvalidGraph(detail string) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindInvalidGraph,
		Detail: detail,
	}
}

// MessageTooLarge reports a consumer buffer smaller than the queued message.
func MessageTooLarge(have, need int) *Error {
	return &Error{
		Phase:  PhaseMessage,
		Kind:   KindMessageTooLarge,
		Detail: fmt.Sprintf("buffer %d bytes, message %d", have, need),
		Value:  need,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// OutOfRange creates an out of range error
func OutOfRange(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfRange,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of range (length %d)", index, length),
		Value:  index,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// KernelFault wraps a fault raised by a running kernel. Kernel faults
// are delivered asynchronously through the context message queue.
func KernelFault(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindKernelFault,
		Detail: detail,
		Cause:  cause,
	}
}

// Closed reports use of a destroyed context or backend.
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
