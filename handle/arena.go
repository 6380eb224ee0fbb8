package handle

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("handle arena closed")

// Dropper is implemented by values that need a destructor when their
// handle is released.
type Dropper interface {
	Drop()
}

// Arena is a generation-checked slot arena minting typed handles.
// Handles are unique within the arena that minted them; an arena never
// accepts another arena's handles except by coincidence of packing,
// which the generation check defeats in practice.
type Arena struct {
	entries  []entry
	freeList []uint32
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value any
	gen   uint32
	kind  Kind
	valid bool
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Create stores a value and returns its handle.
func (a *Arena) Create(kind Kind, value any) (Handle, error) {
	if kind == KindInvalid {
		return 0, errors.New("cannot mint an invalid-kind handle")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrClosed
	}

	if len(a.freeList) > 0 {
		slot := a.freeList[len(a.freeList)-1]
		a.freeList = a.freeList[:len(a.freeList)-1]
		e := &a.entries[slot-1]
		e.value = value
		e.kind = kind
		e.valid = true
		return pack(slot, e.gen, kind), nil
	}

	a.entries = append(a.entries, entry{value: value, kind: kind, valid: true})
	return pack(uint32(len(a.entries)), 0, kind), nil
}

// Get retrieves a value, checking both the kind tag and the generation.
// A mismatch on either returns (nil, false).
func (a *Arena) Get(h Handle, kind Kind) (any, bool) {
	if h == 0 || h.Kind() != kind {
		return nil, false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.lookup(h)
	if !ok || e.kind != kind {
		return nil, false
	}
	return e.value, true
}

// Lookup retrieves a value of any kind, still generation-checked.
func (a *Arena) Lookup(h Handle) (any, Kind, bool) {
	if h == 0 {
		return nil, KindInvalid, false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.lookup(h)
	if !ok {
		return nil, KindInvalid, false
	}
	return e.value, e.kind, true
}

// lookup resolves a handle to its live entry. Caller holds a.mu.
func (a *Arena) lookup(h Handle) (*entry, bool) {
	slot := h.slot()
	if slot == 0 || int(slot) > len(a.entries) {
		return nil, false
	}
	e := &a.entries[slot-1]
	if !e.valid || e.gen&genMask != h.gen() {
		return nil, false
	}
	return e, true
}

// Drop releases a handle of any kind and returns its value. The slot's
// generation is bumped so the released handle is dead forever.
func (a *Arena) Drop(h Handle) (any, bool) {
	if h == 0 {
		return nil, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.lookup(h)
	if !ok {
		return nil, false
	}

	value := e.value
	e.valid = false
	e.value = nil
	e.kind = KindInvalid
	e.gen++
	a.freeList = append(a.freeList, h.slot())

	return value, true
}

// Close invalidates every live handle, running Drop destructors.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	for i := range a.entries {
		if a.entries[i].valid {
			if d, ok := a.entries[i].value.(Dropper); ok {
				d.Drop()
			}
			a.entries[i].valid = false
			a.entries[i].value = nil
		}
	}

	a.entries = nil
	a.freeList = nil
	return nil
}

// Len returns the number of live handles.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	count := 0
	for _, e := range a.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over live handles until fn returns false.
func (a *Arena) Each(fn func(Handle, Kind, any) bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for i, e := range a.entries {
		if e.valid {
			if !fn(pack(uint32(i+1), e.gen, e.kind), e.kind, e.value) {
				break
			}
		}
	}
}
