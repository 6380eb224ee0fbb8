package engine

import (
	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
	"github.com/wippyai/offload/handle"
)

// Config holds construction options for a Backend.
type Config struct {
	// QueueDepth is the per-context work queue capacity. 0 means a
	// reasonable default.
	QueueDepth int
}

// AllocView is the runner-facing window onto an allocation's memory:
// the raw element storage of one lod/face slice plus its shape.
type AllocView struct {
	Bytes    []byte
	ElemSize int
	DimX     uint32
	DimY     uint32 // 0 for 1D
	DimZ     uint32 // 0 for 1D/2D
}

// Elements returns the element count of the view's domain.
func (v *AllocView) Elements() int {
	n := int(v.DimX)
	if v.DimY > 0 {
		n *= int(v.DimY)
	}
	if v.DimZ > 0 {
		n *= int(v.DimZ)
	}
	return n
}

// Runner is the opaque kernel execution contract a backend plugs into
// the engine. The engine never interprets kernel code; it only compiles
// script sources through the runner and invokes slots on the resulting
// programs.
type Runner interface {
	// Name identifies the runner in logs and error details.
	Name() string

	// Compile loads a script's source into an executable program.
	Compile(resName, cacheDir string, src []byte) (Program, error)

	// CompileIntrinsic builds one of the fixed-function programs, or
	// reports unsupported.
	CompileIntrinsic(id uint32, elemSize int) (Program, error)
}

// Program is one compiled script: indexed global slots and indexed
// entry points. Slot indexes are assigned by the program at compile
// time and are stable for its lifetime.
type Program interface {
	// KernelCount reports how many forEach entry points the program has.
	KernelCount() int

	// SetGlobal binds raw bytes to a global slot.
	SetGlobal(slot int, data []byte) error

	// Global reads back the current raw bytes of a global slot. Closure
	// graphs use this to carry a producer's output into a consumer.
	Global(slot int) ([]byte, error)

	// BindAllocation binds allocation memory to a global slot.
	BindAllocation(slot int, view *AllocView) error

	// Invoke calls a plain invokable function.
	Invoke(slot int, params []byte) error

	// InvokeKernel runs a forEach kernel over the launch domain. Either
	// view may be nil; clip of nil means the full domain.
	InvokeKernel(slot int, in, out *AllocView, params []byte, clip *dispatch.ScriptCall) error

	// Close releases the program.
	Close() error
}

// Backend is one in-process backend instance: a handle arena plus a
// kernel runner. All capability-table entry points are methods on it.
type Backend struct {
	name   string
	arena  *handle.Arena
	runner Runner
	cfg    Config
}

// New creates a backend around a kernel runner.
func New(name string, r Runner, cfg Config) *Backend {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}
	return &Backend{
		name:   name,
		arena:  handle.NewArena(),
		runner: r,
		cfg:    cfg,
	}
}

// Name returns the backend's registered name.
func (b *Backend) Name() string { return b.name }

// Close tears the backend down, invalidating every live handle.
func (b *Backend) Close() error {
	return b.arena.Close()
}

// resolution helpers: each converts an opaque handle into the typed
// object or an invalid_handle error.

func (b *Backend) context(h handle.Handle) (*context, error) {
	v, ok := b.arena.Get(h, handle.KindContext)
	if !ok {
		return nil, errors.InvalidHandle(errors.PhaseRuntime, "context", uint64(h))
	}
	return v.(*context), nil
}

func (b *Backend) device(h handle.Handle) (*device, error) {
	v, ok := b.arena.Get(h, handle.KindDevice)
	if !ok {
		return nil, errors.InvalidHandle(errors.PhaseRuntime, "device", uint64(h))
	}
	return v.(*device), nil
}

func (b *Backend) element(h handle.Handle) (*element, error) {
	v, ok := b.arena.Get(h, handle.KindElement)
	if !ok {
		return nil, errors.InvalidHandle(errors.PhaseRuntime, "element", uint64(h))
	}
	return v.(*element), nil
}

func (b *Backend) typ(h handle.Handle) (*typ, error) {
	v, ok := b.arena.Get(h, handle.KindType)
	if !ok {
		return nil, errors.InvalidHandle(errors.PhaseRuntime, "type", uint64(h))
	}
	return v.(*typ), nil
}

func (b *Backend) allocation(h handle.Handle) (*allocation, error) {
	v, ok := b.arena.Get(h, handle.KindAllocation)
	if !ok {
		return nil, errors.InvalidHandle(errors.PhaseRuntime, "allocation", uint64(h))
	}
	return v.(*allocation), nil
}

func (b *Backend) script(h handle.Handle) (*script, error) {
	v, ok := b.arena.Get(h, handle.KindScript)
	if !ok {
		return nil, errors.InvalidHandle(errors.PhaseRuntime, "script", uint64(h))
	}
	return v.(*script), nil
}

func (b *Backend) kernelID(h handle.Handle) (*kernelID, error) {
	v, ok := b.arena.Get(h, handle.KindKernelID)
	if !ok {
		return nil, errors.InvalidHandle(errors.PhaseRuntime, "kernel id", uint64(h))
	}
	return v.(*kernelID), nil
}

func (b *Backend) fieldID(h handle.Handle) (*fieldID, error) {
	v, ok := b.arena.Get(h, handle.KindFieldID)
	if !ok {
		return nil, errors.InvalidHandle(errors.PhaseRuntime, "field id", uint64(h))
	}
	return v.(*fieldID), nil
}

func (b *Backend) closure(h handle.Handle) (*closure, error) {
	v, ok := b.arena.Get(h, handle.KindClosure)
	if !ok {
		return nil, errors.InvalidHandle(errors.PhaseRuntime, "closure", uint64(h))
	}
	return v.(*closure), nil
}

func (b *Backend) scriptGroup(h handle.Handle) (*scriptGroup, error) {
	v, ok := b.arena.Get(h, handle.KindScriptGroup)
	if !ok {
		return nil, errors.InvalidHandle(errors.PhaseRuntime, "script group", uint64(h))
	}
	return v.(*scriptGroup), nil
}

// mint registers an object in the arena and records context ownership
// so ContextDestroy can invalidate it.
func (b *Backend) mint(ctx *context, kind handle.Kind, value any) (handle.Handle, error) {
	h, err := b.arena.Create(kind, value)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseCreate, errors.KindClosed, err, kind.String())
	}
	if ctx != nil {
		ctx.owned = append(ctx.owned, h)
	}
	return h, nil
}
