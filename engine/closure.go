package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
	"github.com/wippyai/offload/handle"
)

// closure is one deferred launch: a kernel or invokable plus bound
// globals. Deferred values are resolved from dependency closures when
// the owning group executes; the k-th deferred field draws from the
// k-th dependency pair.
type closure struct {
	kernel      handle.Handle // kernelID; slot is the invokable for invoke closures
	isInvoke    bool
	params      []byte
	returnValue handle.Handle // output allocation for kernel closures

	fieldIDs []handle.Handle
	values   []dispatch.ClosureValue

	deps      []handle.Handle // closure handles, parallel with depFields
	depFields []handle.Handle // fieldID handles on the producing closure's script

	args []dispatch.ClosureValue
}

// scriptGroup is either a closure graph (v2) or a legacy kernel chain.
type scriptGroup struct {
	name     string
	closures []handle.Handle

	legacy *legacyGroup
}

// legacyGroup is the original fixed-topology group: kernels joined by
// typed links, with explicit per-kernel input and output bindings.
type legacyGroup struct {
	kernels  []handle.Handle // kernelID handles
	linkSrc  []handle.Handle // producing kernelID per link
	linkDstK []handle.Handle // consuming kernelID (zero when the link feeds a field)
	linkDstF []handle.Handle // consuming fieldID (zero when the link feeds a kernel)
	linkType []handle.Handle // intermediate Type per link

	inputs  map[handle.Handle]handle.Handle // kernelID -> allocation
	outputs map[handle.Handle]handle.Handle
}

// ClosureCreate builds a kernel closure. fieldIDs and values are
// parallel arrays, as are depClosures and depFieldIDs; every referenced
// dependency closure must already exist, so graphs are built bottom-up
// and forward references cannot occur.
func (b *Backend) ClosureCreate(ctx, kernel, returnValue handle.Handle, fieldIDs []handle.Handle, values []dispatch.ClosureValue, depClosures, depFieldIDs []handle.Handle) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := b.kernelID(kernel); err != nil {
		return 0, err
	}
	if returnValue != 0 {
		if _, err := b.allocation(returnValue); err != nil {
			return 0, err
		}
	}
	cl, err := b.newClosure(kernel, false, nil, returnValue, fieldIDs, values, depClosures, depFieldIDs)
	if err != nil {
		return 0, err
	}
	return b.mint(c, handle.KindClosure, cl)
}

// InvokeClosureCreate builds an invoke closure. Invoke closures have no
// launch domain and no dependencies of their own beyond bound fields.
func (b *Backend) InvokeClosureCreate(ctx, invokeID handle.Handle, params []byte, fieldIDs []handle.Handle, values []dispatch.ClosureValue) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := b.kernelID(invokeID); err != nil {
		return 0, err
	}
	cl, err := b.newClosure(invokeID, true, cloneBytes(params), 0, fieldIDs, values, nil, nil)
	if err != nil {
		return 0, err
	}
	return b.mint(c, handle.KindClosure, cl)
}

func (b *Backend) newClosure(kernel handle.Handle, isInvoke bool, params []byte, returnValue handle.Handle, fieldIDs []handle.Handle, values []dispatch.ClosureValue, depClosures, depFieldIDs []handle.Handle) (*closure, error) {
	if len(fieldIDs) != len(values) {
		return nil, errors.New(errors.PhaseCreate, errors.KindSizeMismatch).
			Detail("closure arrays disagree: %d field ids, %d values", len(fieldIDs), len(values)).
			Build()
	}
	if len(depClosures) != len(depFieldIDs) {
		return nil, errors.New(errors.PhaseCreate, errors.KindSizeMismatch).
			Detail("dependency arrays disagree: %d closures, %d field ids", len(depClosures), len(depFieldIDs)).
			Build()
	}
	deferred := 0
	for _, v := range values {
		if v.Deferred {
			deferred++
		}
	}
	if deferred > len(depClosures) {
		return nil, errors.InvalidInput(errors.PhaseCreate,
			fmt.Sprintf("%d deferred values but only %d dependencies", deferred, len(depClosures)))
	}
	for i, fid := range fieldIDs {
		if _, err := b.fieldID(fid); err != nil {
			return nil, err
		}
		if !values[i].Deferred && values[i].Object != 0 {
			if _, _, live := b.arena.Lookup(values[i].Object); !live {
				return nil, errors.InvalidHandle(errors.PhaseCreate, "bound object", uint64(values[i].Object))
			}
		}
	}
	for i, dep := range depClosures {
		if _, err := b.closure(dep); err != nil {
			return nil, err
		}
		if _, err := b.fieldID(depFieldIDs[i]); err != nil {
			return nil, err
		}
	}

	return &closure{
		kernel:      kernel,
		isInvoke:    isInvoke,
		params:      params,
		returnValue: returnValue,
		fieldIDs:    append([]handle.Handle(nil), fieldIDs...),
		values:      append([]dispatch.ClosureValue(nil), values...),
		deps:        append([]handle.Handle(nil), depClosures...),
		depFields:   append([]handle.Handle(nil), depFieldIDs...),
	}, nil
}

// ClosureSetArg rebinds one launch argument. Argument 0 of a kernel
// closure is its input allocation.
func (b *Backend) ClosureSetArg(ctx, cl handle.Handle, index uint32, value dispatch.ClosureValue) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	co, err := b.closure(cl)
	if err != nil {
		return err
	}
	for int(index) >= len(co.args) {
		co.args = append(co.args, dispatch.ClosureValue{})
	}
	co.args[index] = value
	return nil
}

// ClosureSetGlobal rebinds one global field of a closure, replacing the
// creation-time value for that field id or adding a new binding.
func (b *Backend) ClosureSetGlobal(ctx, cl, fid handle.Handle, value dispatch.ClosureValue) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	co, err := b.closure(cl)
	if err != nil {
		return err
	}
	if _, err := b.fieldID(fid); err != nil {
		return err
	}
	for i, f := range co.fieldIDs {
		if f == fid {
			co.values[i] = value
			return nil
		}
	}
	co.fieldIDs = append(co.fieldIDs, fid)
	co.values = append(co.values, value)
	return nil
}

// ScriptGroup2Create assembles closures into an executable group. The
// graph is not validated here; validation happens at execution, and a
// group that fails validation leaves every output untouched.
func (b *Backend) ScriptGroup2Create(ctx handle.Handle, name, cacheDir string, closures []handle.Handle) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	if len(closures) == 0 {
		return 0, errors.InvalidInput(errors.PhaseCreate, "script group needs at least one closure")
	}
	for _, cl := range closures {
		if _, err := b.closure(cl); err != nil {
			return 0, err
		}
	}
	_ = cacheDir
	g := &scriptGroup{
		name:     name,
		closures: append([]handle.Handle(nil), closures...),
	}
	return b.mint(c, handle.KindScriptGroup, g)
}

// ScriptGroupCreate assembles the legacy fixed-topology group: kernels
// plus typed links from producing kernels to consuming kernels or
// fields. The four link arrays are parallel.
func (b *Backend) ScriptGroupCreate(ctx handle.Handle, kernels, src, dstK, dstF, types []handle.Handle) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	if len(kernels) == 0 {
		return 0, errors.InvalidInput(errors.PhaseCreate, "script group needs at least one kernel")
	}
	if len(src) != len(dstK) || len(src) != len(dstF) || len(src) != len(types) {
		return 0, errors.New(errors.PhaseCreate, errors.KindSizeMismatch).
			Detail("link arrays disagree: %d src, %d dstK, %d dstF, %d types",
				len(src), len(dstK), len(dstF), len(types)).
			Build()
	}
	for _, k := range kernels {
		if _, err := b.kernelID(k); err != nil {
			return 0, err
		}
	}
	for i := range src {
		if _, err := b.kernelID(src[i]); err != nil {
			return 0, err
		}
		if dstK[i] == 0 && dstF[i] == 0 {
			return 0, errors.InvalidInput(errors.PhaseCreate, fmt.Sprintf("link %d has no destination", i))
		}
		if dstK[i] != 0 {
			if _, err := b.kernelID(dstK[i]); err != nil {
				return 0, err
			}
		}
		if dstF[i] != 0 {
			if _, err := b.fieldID(dstF[i]); err != nil {
				return 0, err
			}
		}
		if _, err := b.typ(types[i]); err != nil {
			return 0, err
		}
	}

	g := &scriptGroup{
		legacy: &legacyGroup{
			kernels:  append([]handle.Handle(nil), kernels...),
			linkSrc:  append([]handle.Handle(nil), src...),
			linkDstK: append([]handle.Handle(nil), dstK...),
			linkDstF: append([]handle.Handle(nil), dstF...),
			linkType: append([]handle.Handle(nil), types...),
			inputs:   make(map[handle.Handle]handle.Handle),
			outputs:  make(map[handle.Handle]handle.Handle),
		},
	}
	return b.mint(c, handle.KindScriptGroup, g)
}

// ScriptGroupSetInput binds the external input allocation of one kernel
// in a legacy group.
func (b *Backend) ScriptGroupSetInput(ctx, group, kernel, alloc handle.Handle) error {
	return b.legacyBind(ctx, group, kernel, alloc, true)
}

// ScriptGroupSetOutput binds the external output allocation of one
// kernel in a legacy group.
func (b *Backend) ScriptGroupSetOutput(ctx, group, kernel, alloc handle.Handle) error {
	return b.legacyBind(ctx, group, kernel, alloc, false)
}

func (b *Backend) legacyBind(ctx, group, kernel, alloc handle.Handle, input bool) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	g, err := b.scriptGroup(group)
	if err != nil {
		return err
	}
	if g.legacy == nil {
		return errors.InvalidInput(errors.PhaseExecute, "input/output binding applies to legacy groups only")
	}
	if _, err := b.kernelID(kernel); err != nil {
		return err
	}
	if _, err := b.allocation(alloc); err != nil {
		return err
	}
	if input {
		g.legacy.inputs[kernel] = alloc
	} else {
		g.legacy.outputs[kernel] = alloc
	}
	return nil
}

// ScriptGroupExecute validates the group's dependency graph and, only
// if the whole graph is valid, queues its closures in dependency order.
// Validation failure is synchronous and guarantees no output was
// written.
func (b *Backend) ScriptGroupExecute(ctx, group handle.Handle) error {
	c, err := b.context(ctx)
	if err != nil {
		return err
	}
	g, err := b.scriptGroup(group)
	if err != nil {
		return err
	}
	if g.legacy != nil {
		return b.legacyExecute(c, g.legacy)
	}

	order, err := b.topoOrder(g)
	if err != nil {
		return err
	}
	return c.enqueue(func() {
		for _, cl := range order {
			co, err := b.closure(cl)
			if err != nil {
				c.postError(fmt.Sprintf("group %s: %v", g.name, err))
				return
			}
			if err := b.runClosure(co); err != nil {
				c.postError(fmt.Sprintf("group %s: %v", g.name, err))
				return
			}
		}
	})
}

// topoOrder is a stable Kahn sort: among ready closures, caller order
// wins. A dependency outside the group or a cycle is an invalid graph.
func (b *Backend) topoOrder(g *scriptGroup) ([]handle.Handle, error) {
	index := make(map[handle.Handle]int, len(g.closures))
	for i, cl := range g.closures {
		index[cl] = i
	}

	indeg := make([]int, len(g.closures))
	dependents := make([][]int, len(g.closures))
	for i, cl := range g.closures {
		co, err := b.closure(cl)
		if err != nil {
			return nil, err
		}
		seen := make(map[int]bool)
		for _, dep := range co.deps {
			j, ok := index[dep]
			if !ok {
				return nil, errors.InvalidGraph(
					fmt.Sprintf("closure %d depends on a closure outside the group", i))
			}
			if seen[j] {
				continue
			}
			seen[j] = true
			indeg[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	order := make([]handle.Handle, 0, len(g.closures))
	done := make([]bool, len(g.closures))
	for len(order) < len(g.closures) {
		next := -1
		for i := range g.closures {
			if !done[i] && indeg[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, errors.InvalidGraph("closure dependency cycle")
		}
		done[next] = true
		order = append(order, g.closures[next])
		for _, d := range dependents[next] {
			indeg[d]--
		}
	}
	return order, nil
}

// runClosure resolves bound and deferred fields, then launches. Runs on
// the context worker.
func (b *Backend) runClosure(co *closure) error {
	kid, err := b.kernelID(co.kernel)
	if err != nil {
		return err
	}
	s, err := b.script(kid.script)
	if err != nil {
		return err
	}

	depIdx := 0
	for i, fid := range co.fieldIDs {
		f, err := b.fieldID(fid)
		if err != nil {
			return err
		}
		fs, err := b.script(f.script)
		if err != nil {
			return err
		}
		v := co.values[i]
		if v.Deferred {
			if depIdx >= len(co.deps) {
				return errors.InvalidGraph("deferred value without a dependency")
			}
			data, err := b.producedValue(co.deps[depIdx], co.depFields[depIdx])
			depIdx++
			if err != nil {
				return err
			}
			if err := fs.prog.SetGlobal(int(f.slot), data); err != nil {
				return err
			}
			continue
		}
		if err := b.applyValue(fs.prog, int(f.slot), v); err != nil {
			return err
		}
	}

	if co.isInvoke {
		return s.prog.Invoke(int(kid.slot), co.params)
	}

	var inV, outV *AllocView
	if len(co.args) > 0 && co.args[0].Object != 0 {
		a, err := b.allocation(co.args[0].Object)
		if err != nil {
			return err
		}
		if inV, err = a.view(0, dispatch.FacePositiveX); err != nil {
			return err
		}
	}
	if co.returnValue != 0 {
		a, err := b.allocation(co.returnValue)
		if err != nil {
			return err
		}
		if outV, err = a.view(0, dispatch.FacePositiveX); err != nil {
			return err
		}
	}
	return s.prog.InvokeKernel(int(kid.slot), inV, outV, nil, nil)
}

// producedValue reads a dependency closure's output field after it ran.
func (b *Backend) producedValue(dep, fid handle.Handle) ([]byte, error) {
	f, err := b.fieldID(fid)
	if err != nil {
		return nil, err
	}
	fs, err := b.script(f.script)
	if err != nil {
		return nil, err
	}
	return fs.prog.Global(int(f.slot))
}

// applyValue binds one non-deferred closure value into a global slot.
func (b *Backend) applyValue(prog Program, slot int, v dispatch.ClosureValue) error {
	if v.Object != 0 {
		if a, err := b.allocation(v.Object); err == nil {
			view, err := a.view(0, dispatch.FacePositiveX)
			if err != nil {
				return err
			}
			return prog.BindAllocation(slot, view)
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v.Object))
		return prog.SetGlobal(slot, buf[:])
	}
	return prog.SetGlobal(slot, v.Bytes)
}

// legacyExecute orders the legacy chain by its links, materializes
// intermediate allocations from the link types, and queues the kernels.
func (b *Backend) legacyExecute(c *context, g *legacyGroup) error {
	index := make(map[handle.Handle]int, len(g.kernels))
	scripts := make([]handle.Handle, len(g.kernels))
	for i, k := range g.kernels {
		index[k] = i
		kid, err := b.kernelID(k)
		if err != nil {
			return err
		}
		scripts[i] = kid.script
	}

	// Per-kernel resolved input/output, starting from explicit bindings.
	inputs := make([]handle.Handle, len(g.kernels))
	outputs := make([]handle.Handle, len(g.kernels))
	for k, a := range g.inputs {
		if i, ok := index[k]; ok {
			inputs[i] = a
		}
	}
	for k, a := range g.outputs {
		if i, ok := index[k]; ok {
			outputs[i] = a
		}
	}

	indeg := make([]int, len(g.kernels))
	dependents := make([][]int, len(g.kernels))
	// Per source kernel, fields to rebind after it runs.
	fieldLinks := make([][]fieldLink, len(g.kernels))

	for li := range g.linkSrc {
		si, ok := index[g.linkSrc[li]]
		if !ok {
			return errors.InvalidGraph(fmt.Sprintf("link %d source is not in the group", li))
		}
		t, err := b.typ(g.linkType[li])
		if err != nil {
			return err
		}
		mid, err := b.newAllocation(c, t, dispatch.MipmapNone, dispatch.UsageScript, nil)
		if err != nil {
			return err
		}
		outputs[si] = mid

		if g.linkDstK[li] != 0 {
			di, ok := index[g.linkDstK[li]]
			if !ok {
				return errors.InvalidGraph(fmt.Sprintf("link %d destination is not in the group", li))
			}
			inputs[di] = mid
			indeg[di]++
			dependents[si] = append(dependents[si], di)
		} else {
			// A field destination orders the source before every
			// kernel of the consuming script, so the rebind lands
			// before any of them reads the global.
			f, err := b.fieldID(g.linkDstF[li])
			if err != nil {
				return err
			}
			linked := false
			for di := range g.kernels {
				if scripts[di] != f.script {
					continue
				}
				linked = true
				indeg[di]++
				dependents[si] = append(dependents[si], di)
			}
			if !linked {
				return errors.InvalidGraph(fmt.Sprintf("link %d destination field is not in the group", li))
			}
			fieldLinks[si] = append(fieldLinks[si], fieldLink{fid: g.linkDstF[li], alloc: mid})
		}
	}

	order := make([]int, 0, len(g.kernels))
	done := make([]bool, len(g.kernels))
	for len(order) < len(g.kernels) {
		next := -1
		for i := range g.kernels {
			if !done[i] && indeg[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return errors.InvalidGraph("kernel link cycle")
		}
		done[next] = true
		order = append(order, next)
		for _, d := range dependents[next] {
			indeg[d]--
		}
	}

	return c.enqueue(func() {
		for _, i := range order {
			if err := b.legacyRunKernel(g.kernels[i], inputs[i], outputs[i], fieldLinks[i]); err != nil {
				c.postError(fmt.Sprintf("script group kernel %d: %v", i, err))
				return
			}
		}
	})
}

// fieldLink rebinds an intermediate allocation into a script field
// after its producer runs.
type fieldLink struct {
	fid   handle.Handle
	alloc handle.Handle
}

func (b *Backend) legacyRunKernel(kernel, in, out handle.Handle, fields []fieldLink) error {
	kid, err := b.kernelID(kernel)
	if err != nil {
		return err
	}
	s, err := b.script(kid.script)
	if err != nil {
		return err
	}

	var inV, outV *AllocView
	if in != 0 {
		a, err := b.allocation(in)
		if err != nil {
			return err
		}
		if inV, err = a.view(0, dispatch.FacePositiveX); err != nil {
			return err
		}
	}
	if out != 0 {
		a, err := b.allocation(out)
		if err != nil {
			return err
		}
		if outV, err = a.view(0, dispatch.FacePositiveX); err != nil {
			return err
		}
	}
	if err := s.prog.InvokeKernel(int(kid.slot), inV, outV, nil, nil); err != nil {
		return err
	}

	for _, fl := range fields {
		f, err := b.fieldID(fl.fid)
		if err != nil {
			return err
		}
		fs, err := b.script(f.script)
		if err != nil {
			return err
		}
		a, err := b.allocation(fl.alloc)
		if err != nil {
			return err
		}
		view, err := a.view(0, dispatch.FacePositiveX)
		if err != nil {
			return err
		}
		if err := fs.prog.BindAllocation(int(f.slot), view); err != nil {
			return err
		}
	}
	return nil
}
