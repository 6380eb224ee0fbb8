package interp

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/engine"
	"github.com/wippyai/offload/errors"
)

// Runner executes wasm kernel modules on wazero's interpreter. The
// interpreter trades speed for zero native dependencies, which is the
// point of an incremental fallback.
type Runner struct {
	ctx context.Context
	rt  wazero.Runtime

	mu     sync.Mutex
	serial int
}

// NewRunner builds a runner with its own wazero runtime.
func NewRunner(ctx context.Context) *Runner {
	cfg := wazero.NewRuntimeConfigInterpreter()
	return &Runner{
		ctx: ctx,
		rt:  wazero.NewRuntimeWithConfig(ctx, cfg),
	}
}

func (r *Runner) Name() string { return Name }

// Close tears down the wazero runtime and every instantiated module.
func (r *Runner) Close() error {
	return r.rt.Close(r.ctx)
}

// Compile compiles and instantiates a wasm module and resolves its
// kernel and invokable exports.
func (r *Runner) Compile(resName, cacheDir string, src []byte) (engine.Program, error) {
	compiled, err := r.rt.CompileModule(r.ctx, src)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", resName, err)
	}

	r.mu.Lock()
	r.serial++
	name := fmt.Sprintf("%s-%d", resName, r.serial)
	r.mu.Unlock()

	mod, err := r.rt.InstantiateModule(r.ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", resName, err)
	}

	mem := mod.ExportedMemory("memory")
	if mem == nil {
		mod.Close(r.ctx)
		return nil, fmt.Errorf("module %s does not export memory", resName)
	}

	var kernels, invokables []api.Function
	for i := 0; ; i++ {
		fn := mod.ExportedFunction(fmt.Sprintf("kernel%d", i))
		if fn == nil {
			break
		}
		kernels = append(kernels, fn)
	}
	for i := 0; ; i++ {
		fn := mod.ExportedFunction(fmt.Sprintf("invoke%d", i))
		if fn == nil {
			break
		}
		invokables = append(invokables, fn)
	}

	return &program{
		ctx:        r.ctx,
		mod:        mod,
		mem:        mem,
		kernels:    kernels,
		invokables: invokables,
		globals:    make(map[int][]byte),
		bound:      make(map[int]*engine.AllocView),
	}, nil
}

// CompileIntrinsic reports unsupported: fixed-function programs belong
// to the software backend; this backend runs only caller-supplied
// modules.
func (r *Runner) CompileIntrinsic(id uint32, elemSize int) (engine.Program, error) {
	return nil, errors.Unsupported(errors.PhaseCreate, "intrinsics on the wasm backend")
}

// program is one instantiated wasm module. Globals and allocation
// bindings are held host-side; kernels see only the staged element.
type program struct {
	ctx context.Context
	mod api.Module
	mem api.Memory

	kernels    []api.Function
	invokables []api.Function

	mu      sync.Mutex
	globals map[int][]byte
	bound   map[int]*engine.AllocView
}

func (p *program) KernelCount() int { return len(p.kernels) }

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

// stage reserves two element-sized scratch windows at the top of the
// module's linear memory.
func (p *program) stage(elemSize int) (inOff, outOff uint32, err error) {
	window := uint32(elemSize)
	if window < 64 {
		window = 64
	}
	size := p.mem.Size()
	if 2*window > size {
		return 0, 0, fmt.Errorf("module memory too small for %d-byte elements", elemSize)
	}
	return size - 2*window, size - window, nil
}

func (p *program) Invoke(slot int, params []byte) error {
	if slot < 0 || slot >= len(p.invokables) {
		return errors.OutOfRange(errors.PhaseExecute, []string{"invokable"}, slot, len(p.invokables))
	}
	off := uint32(0)
	if len(params) > 0 {
		inOff, _, err := p.stage(len(params))
		if err != nil {
			return err
		}
		if !p.mem.Write(inOff, params) {
			return fmt.Errorf("stage %d param bytes", len(params))
		}
		off = inOff
	}
	_, err := p.invokables[slot].Call(p.ctx, uint64(off), uint64(len(params)))
	return err
}

// InvokeKernel walks the launch domain, staging one element per call.
// The module instance is single-threaded, so the walk is sequential.
func (p *program) InvokeKernel(slot int, in, out *engine.AllocView, params []byte, clip *dispatch.ScriptCall) error {
	if slot < 0 || slot >= len(p.kernels) {
		return errors.OutOfRange(errors.PhaseExecute, []string{"kernel"}, slot, len(p.kernels))
	}
	dom := in
	if dom == nil {
		dom = out
	}
	if dom == nil {
		return errors.InvalidInput(errors.PhaseExecute, "kernel launch without a domain")
	}

	elemSize := dom.ElemSize
	if out != nil && out.ElemSize > elemSize {
		elemSize = out.ElemSize
	}
	inOff, outOff, err := p.stage(elemSize)
	if err != nil {
		return err
	}

	x0, x1 := uint32(0), dom.DimX
	y0, y1 := uint32(0), dim(dom.DimY)
	z0, z1 := uint32(0), dim(dom.DimZ)
	if clip != nil {
		x0, x1 = clampRange(clip.XStart, clip.XEnd, dom.DimX)
		y0, y1 = clampRange(clip.YStart, clip.YEnd, dim(dom.DimY))
		z0, z1 = clampRange(clip.ZStart, clip.ZEnd, dim(dom.DimZ))
	}

	fn := p.kernels[slot]
	for z := z0; z < z1; z++ {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				if in != nil {
					if !p.mem.Write(inOff, elem(in, x, y, z)) {
						return fmt.Errorf("stage input element at (%d,%d,%d)", x, y, z)
					}
				}
				if _, err := fn.Call(p.ctx, uint64(inOff), uint64(outOff), uint64(x), uint64(y), uint64(z)); err != nil {
					return fmt.Errorf("kernel %d at (%d,%d,%d): %w", slot, x, y, z, err)
				}
				if out != nil {
					res, ok := p.mem.Read(outOff, uint32(out.ElemSize))
					if !ok {
						return fmt.Errorf("read output element at (%d,%d,%d)", x, y, z)
					}
					copy(elem(out, x, y, z), res)
				}
			}
		}
	}
	return nil
}

func (p *program) Close() error {
	return p.mod.Close(p.ctx)
}

func elem(v *engine.AllocView, x, y, z uint32) []byte {
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

func dim(d uint32) uint32 {
	if d == 0 {
		return 1
	}
	return d
}

func clampRange(start, end, d uint32) (uint32, uint32) {
	if end == 0 || end > d {
		end = d
	}
	if start > end {
		start = end
	}
	return start, end
}
