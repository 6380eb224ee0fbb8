package handle

// Handle is an opaque reference to a backend-owned object. Handles
// cross every API boundary as flat 64-bit integers; 0 is the universal
// invalid/absent sentinel.
//
// Internally a handle packs an arena slot, a generation counter, and a
// kind tag, so stale or mistyped handles are rejected deterministically
// instead of corrupting state.
type Handle uint64

const (
	slotBits = 32
	genBits  = 24

	slotMask = 1<<slotBits - 1
	genMask  = 1<<genBits - 1
)

// Kind tags the object type a handle refers to.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindDevice
	KindContext
	KindElement
	KindType
	KindAllocation
	KindScript
	KindKernelID
	KindFieldID
	KindClosure
	KindScriptGroup
	KindSampler
)

var kindNames = [...]string{
	"invalid", "device", "context", "element", "type", "allocation",
	"script", "kernelid", "fieldid", "closure", "scriptgroup", "sampler",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// pack builds a handle from slot (1-based), generation and kind.
func pack(slot uint32, gen uint32, kind Kind) Handle {
	return Handle(slot) | Handle(gen&genMask)<<slotBits | Handle(kind)<<(slotBits+genBits)
}

// Kind extracts the kind tag.
func (h Handle) Kind() Kind {
	return Kind(h >> (slotBits + genBits))
}

func (h Handle) slot() uint32 {
	return uint32(h & slotMask)
}

func (h Handle) gen() uint32 {
	return uint32(h>>slotBits) & genMask
}
