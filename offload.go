package offload

// PixelFormat identifies the byte layout of an external pixel buffer.
type PixelFormat int32

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatRGBA8888
	PixelFormatRGB565
	PixelFormatRGBA4444
)

// BytesPerPixel returns the storage size of one pixel, or 0 for an
// unknown format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatRGBA8888:
		return 4
	case PixelFormatRGB565, PixelFormatRGBA4444:
		return 2
	}
	return 0
}

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA8888:
		return "rgba8888"
	case PixelFormatRGB565:
		return "rgb565"
	case PixelFormatRGBA4444:
		return "rgba4444"
	}
	return "unknown"
}

// BitmapInfo describes a locked pixel buffer.
type BitmapInfo struct {
	Width  int
	Height int
	Stride int // bytes per row
	Format PixelFormat
}

// PixelBuffer is an externally owned bitmap whose pixels can be locked
// for direct access. Implementations are supplied by the embedding
// application; this library never computes pixel layout beyond the
// format's bytes-per-pixel.
//
// LockPixels returns the raw pixel storage; the slice stays valid until
// the matching UnlockPixels call. Callers must pair every successful
// lock with an unlock before returning.
type PixelBuffer interface {
	Info() BitmapInfo
	LockPixels() ([]byte, error)
	UnlockPixels() error
}

// SizeBytes returns the total pixel storage size implied by the info.
func (i BitmapInfo) SizeBytes() int {
	return i.Width * i.Height * i.Format.BytesPerPixel()
}
