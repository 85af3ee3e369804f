// Package packed provides growable structure-of-array buffers laid out so they
// can be uploaded to the GPU as data textures without conversion.
package packed

import (
	"errors"
	"fmt"
)

// Packed array errors.
var (
	ErrUnsupportedChannels = errors.New("unsupported channel count")
	ErrBadStructSize       = errors.New("struct size must be positive")
	ErrBadSnapshot         = errors.New("bad array snapshot")
)

// MaxTextureSize is the texture row width every allocation is aligned to.
const MaxTextureSize = 4096

// Pixel types (GL enums).
const (
	TypeInt       uint32 = 0x1404
	TypeFloat     uint32 = 0x1406
	TypeHalfFloat uint32 = 0x140B
)

// Pixel formats (GL enums).
const (
	FormatRed         uint32 = 0x1903
	FormatRedInteger  uint32 = 0x8D94
	FormatRG          uint32 = 0x8227
	FormatRGInteger   uint32 = 0x8228
	FormatRGB         uint32 = 0x1907
	FormatRGBInteger  uint32 = 0x8D98
	FormatRGBA        uint32 = 0x1908
	FormatRGBAInteger uint32 = 0x8D99
)

// Internal (sized) formats (GL enums).
const (
	InternalR32I    uint32 = 0x8235
	InternalRG32I   uint32 = 0x823B
	InternalRGB32I  uint32 = 0x8D83
	InternalRGBA32I uint32 = 0x8D82
	InternalR16F    uint32 = 0x822D
	InternalRG16F   uint32 = 0x822F
	InternalRGB16F  uint32 = 0x881B
	InternalRGBA16F uint32 = 0x881A
	InternalR32F    uint32 = 0x822E
	InternalRG32F   uint32 = 0x8230
	InternalRGB32F  uint32 = 0x8815
	InternalRGBA32F uint32 = 0x8814
)

// Format describes how an array maps onto a data texture.
type Format struct {
	ByteCount      int    // bytes per channel
	Channels       int    // channels per pixel
	InternalFormat uint32 // sized GL format
	PixelFormat    uint32 // GL pixel format
	Type           uint32 // GL pixel type
}

// TextureParameter is the texture an array uploads to: its format and a
// size of MaxTextureSize pixels by whole rows.
type TextureParameter struct {
	Format
	Width  int
	Height int
}

// Record is the book-keeping shared by every array. All values are in raw
// element units, not records.
type Record struct {
	Stride     int // elements per record, a multiple of Channels
	Used       int
	GPUSize    int // Used at the time of the last upload
	AlteredMin int
	AlteredMax int
}

// Interval is a half-open range of raw elements.
type Interval struct {
	Start int
	End   int
}

// Len returns the number of elements in the interval.
func (i Interval) Len() int {
	return i.End - i.Start
}

var (
	intFormats = [...][2]uint32{
		{FormatRedInteger, InternalR32I},
		{FormatRGInteger, InternalRG32I},
		{FormatRGBInteger, InternalRGB32I},
		{FormatRGBAInteger, InternalRGBA32I},
	}
	floatFormats = [...][2]uint32{
		{FormatRed, InternalR32F},
		{FormatRG, InternalRG32F},
		{FormatRGB, InternalRGB32F},
		{FormatRGBA, InternalRGBA32F},
	}
	halfFormats = [...][2]uint32{
		{FormatRed, InternalR16F},
		{FormatRG, InternalRG16F},
		{FormatRGB, InternalRGB16F},
		{FormatRGBA, InternalRGBA16F},
	}
)

func newFormat(table [4][2]uint32, byteCount, channels int, typ uint32) (Format, error) {
	if channels < 1 || channels > len(table) {
		return Format{}, fmt.Errorf("%w: %d", ErrUnsupportedChannels, channels)
	}
	entry := table[channels-1]
	return Format{
		ByteCount:      byteCount,
		Channels:       channels,
		InternalFormat: entry[1],
		PixelFormat:    entry[0],
		Type:           typ,
	}, nil
}

func newRecord(structSize, channels int) (Record, error) {
	if structSize <= 0 {
		return Record{}, fmt.Errorf("%w: %d", ErrBadStructSize, structSize)
	}
	return Record{
		Stride:     (structSize + channels - 1) / channels * channels,
		AlteredMin: 0,
		AlteredMax: -1,
	}, nil
}
