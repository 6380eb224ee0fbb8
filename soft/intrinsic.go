package soft

import (
	"encoding/binary"
	"math"

	"github.com/wippyai/offload/errors"
)

// Fixed-function program IDs, matching the numbering scripts use when
// asking a backend for an intrinsic.
const (
	IntrinsicColorMatrix uint32 = 3
	IntrinsicLUT         uint32 = 4
	IntrinsicBlur        uint32 = 5
	IntrinsicBlend       uint32 = 7
)

// Global slots the intrinsic programs read their parameters from.
const (
	slotMatrix = 0 // ColorMatrix: 16 little-endian float32s, row major
	slotLUT    = 0 // LUT: 256 bytes per channel, channel major
	slotSource = 0 // Blur: bound source allocation
)

func intrinsicDef(id uint32, elemSize int) (*ScriptDef, error) {
	switch id {
	case IntrinsicBlend:
		return blendDef(elemSize), nil
	case IntrinsicColorMatrix:
		if elemSize != 4 {
			return nil, errors.Unsupported(errors.PhaseCreate, "color matrix needs a 4-byte element")
		}
		return colorMatrixDef(), nil
	case IntrinsicLUT:
		if elemSize != 4 {
			return nil, errors.Unsupported(errors.PhaseCreate, "lut needs a 4-byte element")
		}
		return lutDef(), nil
	case IntrinsicBlur:
		return blurDef(elemSize), nil
	default:
		return nil, errors.Unsupported(errors.PhaseCreate, "intrinsic id")
	}
}

// blendDef: kernel 0 copies source over destination.
func blendDef(elemSize int) *ScriptDef {
	return &ScriptDef{
		Kernels: []Kernel{
			func(env *Env, in, out []byte, x, y, z uint32) error {
				copy(out, in)
				return nil
			},
		},
		Globals: 1,
	}
}

// colorMatrixDef: 4x4 matrix over RGBA bytes. An unset matrix is the
// identity.
func colorMatrixDef() *ScriptDef {
	return &ScriptDef{
		Kernels: []Kernel{
			func(env *Env, in, out []byte, x, y, z uint32) error {
				m := matrixFrom(env.Global(slotMatrix))
				var src [4]float32
				for i := 0; i < 4; i++ {
					src[i] = float32(in[i])
				}
				for row := 0; row < 4; row++ {
					acc := float32(0)
					for col := 0; col < 4; col++ {
						acc += m[row*4+col] * src[col]
					}
					out[row] = clampByte(acc)
				}
				return nil
			},
		},
		Globals: 1,
	}
}

func matrixFrom(data []byte) [16]float32 {
	var m [16]float32
	if len(data) != 64 {
		for i := 0; i < 4; i++ {
			m[i*4+i] = 1
		}
		return m
	}
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return m
}

func clampByte(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v + 0.5)
}

// lutDef: per-channel 256-entry lookup over RGBA bytes. An unset table
// passes values through.
func lutDef() *ScriptDef {
	return &ScriptDef{
		Kernels: []Kernel{
			func(env *Env, in, out []byte, x, y, z uint32) error {
				table := env.Global(slotLUT)
				if len(table) != 1024 {
					copy(out, in)
					return nil
				}
				for ch := 0; ch < 4; ch++ {
					out[ch] = table[ch*256+int(in[ch])]
				}
				return nil
			},
		},
		Globals: 1,
	}
}

// blurDef: 3x3 box filter reading the full source view bound at slot 0.
// Without a bound source it degrades to a copy.
func blurDef(elemSize int) *ScriptDef {
	return &ScriptDef{
		Kernels: []Kernel{
			func(env *Env, in, out []byte, x, y, z uint32) error {
				src := env.Bound(slotSource)
				if src == nil {
					copy(out, in)
					return nil
				}
				h := src.DimY
				if h == 0 {
					h = 1
				}
				for ch := 0; ch < elemSize; ch++ {
					sum, n := 0, 0
					for dy := -1; dy <= 1; dy++ {
						for dx := -1; dx <= 1; dx++ {
							sx, sy := int(x)+dx, int(y)+dy
							if sx < 0 || sy < 0 || sx >= int(src.DimX) || sy >= int(h) {
								continue
							}
							off := (sy*int(src.DimX) + sx) * src.ElemSize
							sum += int(src.Bytes[off+ch])
							n++
						}
					}
					out[ch] = byte(sum / n)
				}
				return nil
			},
		},
		Globals: 1,
	}
}
