package engine

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
	"github.com/wippyai/offload/handle"
)

// script wraps one compiled program together with the launch-side state
// the engine tracks for it.
type script struct {
	prog     Program
	resName  string
	timeZone string
}

func (s *script) Drop() {
	if s.prog != nil {
		s.prog.Close()
		s.prog = nil
	}
}

// kernelID names one forEach entry point of a script. Closure graphs
// reference kernels through these rather than raw slots.
type kernelID struct {
	script handle.Handle
	slot   uint32
	sig    uint32
}

// fieldID names one global slot of a script for closure binding.
type fieldID struct {
	script handle.Handle
	slot   uint32
}

// ScriptCCreate compiles script source through the backend's runner.
func (b *Backend) ScriptCCreate(ctx handle.Handle, resName, cacheDir string, src []byte) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	prog, err := b.runner.Compile(resName, cacheDir, src)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseCreate, errors.KindInvalidInput, err,
			fmt.Sprintf("compile %q on %s", resName, b.runner.Name()))
	}
	return b.mint(c, handle.KindScript, &script{prog: prog, resName: resName})
}

// ScriptIntrinsicCreate builds a fixed-function program specialized to
// an element size.
func (b *Backend) ScriptIntrinsicCreate(ctx handle.Handle, id uint32, elem handle.Handle) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	e, err := b.element(elem)
	if err != nil {
		return 0, err
	}
	prog, err := b.runner.CompileIntrinsic(id, e.size)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseCreate, errors.KindUnsupported, err,
			fmt.Sprintf("intrinsic %d on %s", id, b.runner.Name()))
	}
	return b.mint(c, handle.KindScript, &script{prog: prog, resName: fmt.Sprintf("intrinsic-%d", id)})
}

// ScriptBindAllocation binds allocation memory to a script global. A
// zero allocation handle unbinds the slot.
func (b *Backend) ScriptBindAllocation(ctx, scr, alloc handle.Handle, slot uint32) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	s, err := b.script(scr)
	if err != nil {
		return err
	}
	if alloc == 0 {
		return s.prog.BindAllocation(int(slot), nil)
	}
	a, err := b.allocation(alloc)
	if err != nil {
		return err
	}
	v, err := a.view(0, dispatch.FacePositiveX)
	if err != nil {
		return err
	}
	return s.prog.BindAllocation(int(slot), v)
}

// ScriptSetTimeZone records the timezone string scripts see.
func (b *Backend) ScriptSetTimeZone(ctx, scr handle.Handle, tz []byte) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	s, err := b.script(scr)
	if err != nil {
		return err
	}
	s.timeZone = string(tz)
	return nil
}

// Script globals. Scalar setters encode little-endian into the slot.

func (b *Backend) ScriptSetVarI(ctx, scr handle.Handle, slot uint32, value int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(value))
	return b.setVar(ctx, scr, slot, buf[:])
}

func (b *Backend) ScriptSetVarJ(ctx, scr handle.Handle, slot uint32, value int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(value))
	return b.setVar(ctx, scr, slot, buf[:])
}

func (b *Backend) ScriptSetVarF(ctx, scr handle.Handle, slot uint32, value float32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(value))
	return b.setVar(ctx, scr, slot, buf[:])
}

func (b *Backend) ScriptSetVarD(ctx, scr handle.Handle, slot uint32, value float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(value))
	return b.setVar(ctx, scr, slot, buf[:])
}

func (b *Backend) ScriptSetVarV(ctx, scr handle.Handle, slot uint32, data []byte) error {
	return b.setVar(ctx, scr, slot, data)
}

// ScriptSetVarVE sets a structured global. The element and dims
// describe the payload layout; the byte length must match the element
// storage times the dim product.
func (b *Backend) ScriptSetVarVE(ctx, scr handle.Handle, slot uint32, data []byte, elem handle.Handle, dims []uint32) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	e, err := b.element(elem)
	if err != nil {
		return err
	}
	want := e.size
	for _, d := range dims {
		if d > 0 {
			want *= int(d)
		}
	}
	if len(data) != want {
		return errors.SizeMismatch(errors.PhaseExecute, len(data), want)
	}
	return b.setVar(ctx, scr, slot, data)
}

// ScriptSetVarObj binds an object handle into a global slot, encoded as
// its 64-bit value.
func (b *Backend) ScriptSetVarObj(ctx, scr handle.Handle, slot uint32, obj handle.Handle) error {
	if _, _, live := b.arena.Lookup(obj); !live {
		return errors.InvalidHandle(errors.PhaseExecute, "object", uint64(obj))
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(obj))
	return b.setVar(ctx, scr, slot, buf[:])
}

func (b *Backend) setVar(ctx, scr handle.Handle, slot uint32, data []byte) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	s, err := b.script(scr)
	if err != nil {
		return err
	}
	return s.prog.SetGlobal(int(slot), data)
}

// ScriptInvoke queues a plain invokable call. It returns as soon as the
// call is queued; ContextFinish observes its completion and faults are
// posted to the message queue.
func (b *Backend) ScriptInvoke(ctx, scr handle.Handle, slot uint32) error {
	return b.ScriptInvokeV(ctx, scr, slot, nil)
}

// ScriptInvokeV queues an invokable call with a parameter blob.
func (b *Backend) ScriptInvokeV(ctx, scr handle.Handle, slot uint32, params []byte) error {
	c, err := b.context(ctx)
	if err != nil {
		return err
	}
	s, err := b.script(scr)
	if err != nil {
		return err
	}
	p := cloneBytes(params)
	name := s.resName
	return c.enqueue(func() {
		if err := s.prog.Invoke(int(slot), p); err != nil {
			c.postError(fmt.Sprintf("invoke %s slot %d: %v", name, slot, err))
		}
	})
}

// ScriptForEach queues a kernel launch over the allocation domain. The
// handles are validated now; the launch itself runs on the context
// worker, and a kernel fault surfaces on the message queue, never as a
// return value.
func (b *Backend) ScriptForEach(ctx, scr handle.Handle, slot uint32, in, out handle.Handle, params []byte, sc *dispatch.ScriptCall) error {
	c, err := b.context(ctx)
	if err != nil {
		return err
	}
	s, err := b.script(scr)
	if err != nil {
		return err
	}
	if int(slot) >= s.prog.KernelCount() {
		return errors.OutOfRange(errors.PhaseExecute, []string{"kernel"}, int(slot), s.prog.KernelCount())
	}
	if in == 0 && out == 0 {
		return errors.InvalidInput(errors.PhaseExecute, "forEach needs an input or output allocation")
	}

	var inA, outA *allocation
	if in != 0 {
		if inA, err = b.allocation(in); err != nil {
			return err
		}
	}
	if out != 0 {
		if outA, err = b.allocation(out); err != nil {
			return err
		}
	}

	p := cloneBytes(params)
	var clip *dispatch.ScriptCall
	if sc != nil {
		cp := *sc
		clip = &cp
	}
	name := s.resName
	return c.enqueue(func() {
		var inV, outV *AllocView
		var err error
		if inA != nil {
			if inV, err = inA.view(0, dispatch.FacePositiveX); err != nil {
				c.postError(fmt.Sprintf("forEach %s: %v", name, err))
				return
			}
		}
		if outA != nil {
			if outV, err = outA.view(0, dispatch.FacePositiveX); err != nil {
				c.postError(fmt.Sprintf("forEach %s: %v", name, err))
				return
			}
		}
		if err := s.prog.InvokeKernel(int(slot), inV, outV, p, clip); err != nil {
			c.postError(fmt.Sprintf("forEach %s slot %d: %v", name, slot, err))
		}
	})
}

// ScriptKernelIDCreate names a forEach entry point for closure graphs.
func (b *Backend) ScriptKernelIDCreate(ctx, scr handle.Handle, slot uint32, sig uint32) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	s, err := b.script(scr)
	if err != nil {
		return 0, err
	}
	if int(slot) >= s.prog.KernelCount() {
		return 0, errors.OutOfRange(errors.PhaseCreate, []string{"kernel"}, int(slot), s.prog.KernelCount())
	}
	return b.mint(c, handle.KindKernelID, &kernelID{script: scr, slot: slot, sig: sig})
}

// ScriptFieldIDCreate names a global slot for closure binding.
func (b *Backend) ScriptFieldIDCreate(ctx, scr handle.Handle, slot uint32) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := b.script(scr); err != nil {
		return 0, err
	}
	return b.mint(c, handle.KindFieldID, &fieldID{script: scr, slot: slot})
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
