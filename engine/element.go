package engine

import (
	"fmt"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
	"github.com/wippyai/offload/handle"
)

// subField is one direct member of a structured element.
type subField struct {
	elem      handle.Handle
	name      string
	arraySize uint32
	offset    int
	size      int
}

// element is a leaf or structured data-type descriptor. Immutable once
// created.
type element struct {
	dataType   dispatch.DataType
	kind       dispatch.DataKind
	normalized bool
	vecSize    uint32

	fields []subField // non-nil for structured elements
	size   int        // bytes per element
}

// scalarElementSize computes the storage of one element: base size
// times vector width, with 3-vectors padded to 4 slots.
func scalarElementSize(dt dispatch.DataType, vecSize uint32) int {
	n := vecSize
	if n == 3 {
		n = 4
	}
	return dt.ByteSize() * int(n)
}

// ElementCreate mints a leaf element descriptor.
func (b *Backend) ElementCreate(ctx handle.Handle, dt dispatch.DataType, dk dispatch.DataKind, normalized bool, vecSize uint32) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	if dt.ByteSize() == 0 {
		return 0, errors.InvalidInput(errors.PhaseCreate, fmt.Sprintf("data type %d has no storage", dt))
	}
	if vecSize < 1 || vecSize > 4 {
		return 0, errors.InvalidInput(errors.PhaseCreate, fmt.Sprintf("vector size %d out of [1,4]", vecSize))
	}

	e := &element{
		dataType:   dt,
		kind:       dk,
		normalized: normalized,
		vecSize:    vecSize,
		size:       scalarElementSize(dt, vecSize),
	}
	return b.mint(c, handle.KindElement, e)
}

// ElementCreate2 builds a structured element from parallel arrays of
// sub-element ids, field names, and per-field array sizes. The three
// arrays must have equal length.
func (b *Backend) ElementCreate2(ctx handle.Handle, ids []handle.Handle, names []string, arraySizes []uint32) (handle.Handle, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) != len(names) || len(ids) != len(arraySizes) {
		return 0, errors.New(errors.PhaseCreate, errors.KindSizeMismatch).
			Detail("parallel arrays disagree: %d ids, %d names, %d array sizes",
				len(ids), len(names), len(arraySizes)).
			Build()
	}
	if len(ids) == 0 {
		return 0, errors.InvalidInput(errors.PhaseCreate, "structured element needs at least one field")
	}

	fields := make([]subField, len(ids))
	offset := 0
	for i, id := range ids {
		sub, err := b.element(id)
		if err != nil {
			return 0, err
		}
		n := arraySizes[i]
		if n == 0 {
			n = 1
		}
		fields[i] = subField{
			elem:      id,
			name:      names[i],
			arraySize: arraySizes[i],
			offset:    offset,
			size:      sub.size,
		}
		offset += sub.size * int(n)
	}

	e := &element{
		dataType: dispatch.DataNone,
		kind:     dispatch.KindUser,
		fields:   fields,
		size:     offset,
	}
	return b.mint(c, handle.KindElement, e)
}

// ElementGetSubElements fills out with the direct sub-fields of a
// structured element, up to the caller-supplied capacity, and returns
// how many entries were written. A leaf element reports zero fields.
func (b *Backend) ElementGetSubElements(ctx, elem handle.Handle, out []dispatch.SubElement) (int, error) {
	if _, err := b.context(ctx); err != nil {
		return 0, err
	}
	e, err := b.element(elem)
	if err != nil {
		return 0, err
	}

	n := len(e.fields)
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = dispatch.SubElement{
			ID:        e.fields[i].elem,
			Name:      e.fields[i].name,
			ArraySize: e.fields[i].arraySize,
		}
	}
	return n, nil
}

// fieldIndex locates a structured field by name.
func (e *element) fieldIndex(name string) int {
	for i := range e.fields {
		if e.fields[i].name == name {
			return i
		}
	}
	return -1
}
