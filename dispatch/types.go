package dispatch

import (
	"github.com/wippyai/offload/handle"
)

// DataType is the base numeric or object kind of an element.
type DataType int32

const (
	DataNone DataType = iota
	DataFloat16
	DataFloat32
	DataFloat64
	DataSigned8
	DataSigned16
	DataSigned32
	DataSigned64
	DataUnsigned8
	DataUnsigned16
	DataUnsigned32
	DataUnsigned64
	DataBoolean
	DataUnsigned565
	DataUnsigned4444
	DataUnsigned8888
)

// ByteSize returns the storage size of one scalar of the type, or 0 for
// DataNone and unknown values.
func (t DataType) ByteSize() int {
	switch t {
	case DataFloat16, DataSigned16, DataUnsigned16, DataUnsigned565, DataUnsigned4444:
		return 2
	case DataFloat32, DataSigned32, DataUnsigned32:
		return 4
	case DataFloat64, DataSigned64, DataUnsigned64:
		return 8
	case DataSigned8, DataUnsigned8, DataBoolean:
		return 1
	case DataUnsigned8888:
		return 4
	}
	return 0
}

// DataKind is the semantic role of an element (color channel layout for
// pixel data, or plain user data).
type DataKind int32

const (
	KindUser DataKind = iota
	KindPixelL
	KindPixelA
	KindPixelLA
	KindPixelRGB
	KindPixelRGBA
	KindPixelDepth
	KindPixelYUV
)

// YUVFormat tags a Type as a packed-YUV layout.
type YUVFormat int32

const (
	YUVNone YUVFormat = 0
	YUV420  YUVFormat = 0x32315659
	YUVNV21 YUVFormat = 0x11
)

// UsageFlags declare which memory domains an allocation is visible to.
// Crossing domains requires an explicit AllocationSyncAll barrier.
type UsageFlags uint32

const (
	UsageScript         UsageFlags = 1 << 0
	UsageGraphicsTex    UsageFlags = 1 << 1
	UsageGraphicsVertex UsageFlags = 1 << 2
	UsageGraphicsConst  UsageFlags = 1 << 3
	UsageGraphicsTarget UsageFlags = 1 << 4
	UsageIOInput        UsageFlags = 1 << 5
	UsageIOOutput       UsageFlags = 1 << 6
	UsageShared         UsageFlags = 1 << 7
)

// CubemapFace selects one face of a cubemap allocation.
type CubemapFace int32

const (
	FacePositiveX CubemapFace = iota
	FaceNegativeX
	FacePositiveY
	FaceNegativeY
	FacePositiveZ
	FaceNegativeZ

	cubeFaces = 6
)

// CubeFaceCount is the number of faces in a cubemap allocation.
const CubeFaceCount = cubeFaces

// MipmapControl selects mip chain behavior at allocation creation.
type MipmapControl int32

const (
	MipmapNone MipmapControl = iota
	MipmapFull
	MipmapOnSyncToTexture
)

// SamplerValue configures one sampler parameter.
type SamplerValue int32

const (
	SamplerNearest SamplerValue = iota
	SamplerLinear
	SamplerLinearMipLinear
	SamplerWrap
	SamplerClamp
	SamplerLinearMipNearest
	SamplerMirroredRepeat
)

// ContextType selects the execution flavor of a context.
type ContextType int32

const (
	ContextTypeNormal ContextType = iota
	ContextTypeDebug
	ContextTypeProfile
)

// DeviceParam names a configurable device knob.
type DeviceParam int32

const (
	DeviceParamForceSoftware DeviceParam = iota
	DeviceParamThreadCount
)

// ScriptCall is the optional clip region of a kernel launch: element
// coordinates in [Start, End) per axis. A nil *ScriptCall means the
// full domain.
type ScriptCall struct {
	XStart, XEnd uint32
	YStart, YEnd uint32
	ZStart, ZEnd uint32
}

// MessageInfo describes the head of a context's client-bound queue
// without consuming it. ID 0 means no message is pending.
type MessageInfo struct {
	ID     uint32
	SubID  uint32
	Length int
}

// SubElement is one direct sub-field of a structured element.
type SubElement struct {
	ID        handle.Handle
	Name      string
	ArraySize uint32
}

// ClosureValue is one bound global or argument of a closure. Exactly
// one interpretation applies: Deferred means the value is produced by a
// dependency closure at execution time; otherwise Object (when nonzero)
// binds a handle, and Bytes binds an immediate payload.
type ClosureValue struct {
	Bytes    []byte
	Object   handle.Handle
	Deferred bool
}

// Immediate builds an immediate byte-payload closure value.
func Immediate(b []byte) ClosureValue {
	return ClosureValue{Bytes: b}
}

// BoundObject builds a closure value binding an object handle.
func BoundObject(h handle.Handle) ClosureValue {
	return ClosureValue{Object: h}
}

// DeferredValue builds the "resolve from a dependency closure" sentinel.
func DeferredValue() ClosureValue {
	return ClosureValue{Deferred: true}
}
