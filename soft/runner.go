package soft

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/engine"
	"github.com/wippyai/offload/errors"
)

// Kernel is one forEach entry point: called once per element with the
// element's input and output byte slices. in or out may be nil when the
// launch has no allocation on that side.
type Kernel func(env *Env, in, out []byte, x, y, z uint32) error

// Invokable is one plain invoked function.
type Invokable func(env *Env, params []byte) error

// ScriptDef is a registered script: its kernels, invokables, and the
// number of global slots it exposes.
type ScriptDef struct {
	Kernels    []Kernel
	Invokables []Invokable
	Globals    int
}

// Env gives kernels access to their program's globals and bound
// allocations.
type Env struct {
	p *program
}

// Global reads a global slot. Missing slots read as nil.
func (e *Env) Global(slot int) []byte {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return e.p.globals[slot]
}

// Bound returns the allocation view bound to a slot, or nil.
func (e *Env) Bound(slot int) *engine.AllocView {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return e.p.bound[slot]
}

var scripts = struct {
	sync.RWMutex
	defs map[string]*ScriptDef
}{defs: make(map[string]*ScriptDef)}

// RegisterScript makes a script definition loadable by name. Script
// sources on this backend are names, not code: ScriptCCreate resolves
// the source bytes (or, when empty, the resource name) here.
func RegisterScript(name string, def *ScriptDef) {
	scripts.Lock()
	defer scripts.Unlock()
	scripts.defs[name] = def
}

// Runner executes registered Go kernels.
type Runner struct {
	workers int
}

// NewRunner builds a runner with the given row-parallelism cap.
// workers <= 0 means GOMAXPROCS.
func NewRunner(workers int) *Runner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{workers: workers}
}

func (r *Runner) Name() string { return Name }

// Compile resolves a registered script. The source bytes carry the
// registered name; an empty source falls back to the resource name.
func (r *Runner) Compile(resName, cacheDir string, src []byte) (engine.Program, error) {
	name := string(src)
	if name == "" {
		name = resName
	}
	scripts.RLock()
	def, ok := scripts.defs[name]
	scripts.RUnlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseCreate, "registered script", name)
	}
	return newProgram(def, r.workers), nil
}

// CompileIntrinsic builds one of the built-in fixed-function programs.
func (r *Runner) CompileIntrinsic(id uint32, elemSize int) (engine.Program, error) {
	def, err := intrinsicDef(id, elemSize)
	if err != nil {
		return nil, err
	}
	return newProgram(def, r.workers), nil
}

// program is a live script instance: a definition plus its global and
// binding state.
type program struct {
	def     *ScriptDef
	workers int

	mu      sync.Mutex
	globals map[int][]byte
	bound   map[int]*engine.AllocView
}

func newProgram(def *ScriptDef, workers int) *program {
	return &program{
		def:     def,
		workers: workers,
		globals: make(map[int][]byte),
		bound:   make(map[int]*engine.AllocView),
	}
}

func (p *program) KernelCount() int { return len(p.def.Kernels) }

func (p *program) SetGlobal(slot int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	p.globals[slot] = buf
	return nil
}

func (p *program) Global(slot int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.globals[slot], nil
}

func (p *program) BindAllocation(slot int, view *engine.AllocView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if view == nil {
		delete(p.bound, slot)
		return nil
	}
	p.bound[slot] = view
	return nil
}

func (p *program) Invoke(slot int, params []byte) error {
	if slot < 0 || slot >= len(p.def.Invokables) {
		return errors.OutOfRange(errors.PhaseExecute, []string{"invokable"}, slot, len(p.def.Invokables))
	}
	return p.def.Invokables[slot](&Env{p: p}, params)
}

// InvokeKernel runs one kernel over the launch domain. Rows are fanned
// out across workers; within a row elements run in x order.
func (p *program) InvokeKernel(slot int, in, out *engine.AllocView, params []byte, clip *dispatch.ScriptCall) error {
	if slot < 0 || slot >= len(p.def.Kernels) {
		return errors.OutOfRange(errors.PhaseExecute, []string{"kernel"}, slot, len(p.def.Kernels))
	}
	kern := p.def.Kernels[slot]
	env := &Env{p: p}

	dom := in
	if dom == nil {
		dom = out
	}
	if dom == nil {
		return errors.InvalidInput(errors.PhaseExecute, "kernel launch without a domain")
	}

	x0, x1 := uint32(0), dom.DimX
	y0, y1 := uint32(0), max32(dom.DimY, 1)
	z0, z1 := uint32(0), max32(dom.DimZ, 1)
	if clip != nil {
		x0, x1 = clampRange(clip.XStart, clip.XEnd, dom.DimX)
		y0, y1 = clampRange(clip.YStart, clip.YEnd, max32(dom.DimY, 1))
		z0, z1 = clampRange(clip.ZStart, clip.ZEnd, max32(dom.DimZ, 1))
	}

	var g errgroup.Group
	g.SetLimit(p.workers)
	for z := z0; z < z1; z++ {
		for y := y0; y < y1; y++ {
			z, y := z, y
			g.Go(func() error {
				for x := x0; x < x1; x++ {
					var inB, outB []byte
					if in != nil {
						inB = elemAt(in, x, y, z)
					}
					if out != nil {
						outB = elemAt(out, x, y, z)
					}
					if err := kern(env, inB, outB, x, y, z); err != nil {
						return fmt.Errorf("kernel %d at (%d,%d,%d): %w", slot, x, y, z, err)
					}
				}
				return nil
			})
		}
	}
	return g.Wait()
}

func (p *program) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.globals = nil
	p.bound = nil
	return nil
}

// elemAt slices the element at (x, y, z) out of a view.
func elemAt(v *engine.AllocView, x, y, z uint32) []byte {
	i := int(x)
	if v.DimY > 0 {
		i += int(y) * int(v.DimX)
	}
	if v.DimZ > 0 {
		i += int(z) * int(v.DimX) * int(v.DimY)
	}
	off := i * v.ElemSize
	return v.Bytes[off : off+v.ElemSize]
}

func clampRange(start, end, dim uint32) (uint32, uint32) {
	if end == 0 || end > dim {
		end = dim
	}
	if start > end {
		start = end
	}
	return start, end
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
