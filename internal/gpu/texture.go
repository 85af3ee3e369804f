// Package gpu uploads packed mesh arrays as data textures.
//
// Every array becomes a texture MaxTextureSize pixels wide. After the first
// upload only the rows touched since the last one are sent again; a buffer
// that grew is re-created.
package gpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/midgard-mesh/pkg/packed"
)

// ErrNoContext is returned when no OpenGL context could be initialized.
var ErrNoContext = errors.New("gpu: no OpenGL context")

// Source is a packed array that can be uploaded.
type Source interface {
	TextureParameter() packed.TextureParameter
	Pixels() int
	Ptr(offset int) unsafe.Pointer
	Interval(formatChannel int) packed.Interval
	IsAltered() bool
	IsLengthAltered() bool
	ResetCounter()
	ResetLength()
}

var (
	_ Source = (*packed.Int32Array)(nil)
	_ Source = (*packed.Float32Array)(nil)
	_ Source = (*packed.Float16Array)(nil)
)

// Texture is one uploaded array, or a stack of arrays in a 2D array texture.
type Texture struct {
	ID     uint32
	Target uint32
	Width  int32
	Height int32
	Depth  int32
}

// rows returns the rows [first, last] covering the raw elements in iv.
func rows(iv packed.Interval, channels int) (first, last int32) {
	rowLen := packed.MaxTextureSize * channels
	return int32(iv.Start / rowLen), int32((iv.End - 1) / rowLen)
}

func newTexture(target uint32, width, height, depth int32) *Texture {
	t := &Texture{Target: target, Width: width, Height: height, Depth: depth}
	gl.GenTextures(1, &t.ID)
	gl.BindTexture(target, t.ID)
	gl.TexParameteri(target, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(target, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	return t
}

func (t *Texture) fits(src Source, depth int) bool {
	return t != nil &&
		int(t.Width)*int(t.Height) == src.Pixels() &&
		int(t.Depth) == depth
}

// Delete frees the texture.
func (t *Texture) Delete() {
	if t != nil && t.ID != 0 {
		gl.DeleteTextures(1, &t.ID)
		t.ID = 0
	}
}

// Upload sends src to t, creating or re-creating the texture when needed,
// and returns the texture now holding it. Nothing is sent for an unchanged
// array.
func Upload(t *Texture, src Source) (*Texture, error) {
	if src.Pixels() == 0 {
		return t, nil
	}
	tp := src.TextureParameter()
	format := tp.Format
	if !t.fits(src, 1) {
		t.Delete()
		t = newTexture(gl.TEXTURE_2D, int32(tp.Width), int32(tp.Height), 1)
		gl.TexImage2D(gl.TEXTURE_2D, 0, int32(format.InternalFormat),
			t.Width, t.Height, 0, format.PixelFormat, format.Type, src.Ptr(0))
	} else if src.IsAltered() {
		first, last := rows(src.Interval(format.Channels), format.Channels)
		gl.BindTexture(gl.TEXTURE_2D, t.ID)
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, first, t.Width, last-first+1,
			format.PixelFormat, format.Type, src.Ptr(int(first)*packed.MaxTextureSize*format.Channels))
	} else {
		return t, nil
	}
	src.ResetCounter()
	src.ResetLength()
	return t, glError("upload")
}

// UploadLayers sends the UV layers of uvs to a 2D array texture, one layer
// per slice.
func UploadLayers(t *Texture, uvs *packed.TexCoordArray) (*Texture, error) {
	depth := uvs.Depth()
	if depth == 0 || uvs.Layer(0).Pixels() == 0 {
		return t, nil
	}
	first := uvs.Layer(0)
	tp := first.TextureParameter()
	format := tp.Format
	if !t.fits(first, depth) {
		t.Delete()
		t = newTexture(gl.TEXTURE_2D_ARRAY, int32(tp.Width), int32(tp.Height), int32(depth))
		gl.TexImage3D(gl.TEXTURE_2D_ARRAY, 0, int32(format.InternalFormat),
			t.Width, t.Height, t.Depth, 0, format.PixelFormat, format.Type, nil)
		for i := range depth {
			layer := uvs.Layer(i)
			gl.TexSubImage3D(gl.TEXTURE_2D_ARRAY, 0, 0, 0, int32(i), t.Width, t.Height, 1,
				format.PixelFormat, format.Type, layer.Ptr(0))
			layer.ResetCounter()
			layer.ResetLength()
		}
		return t, glError("upload layers")
	}

	gl.BindTexture(gl.TEXTURE_2D_ARRAY, t.ID)
	for i := range depth {
		layer := uvs.Layer(i)
		if !layer.IsAltered() {
			continue
		}
		lo, hi := rows(layer.Interval(format.Channels), format.Channels)
		gl.TexSubImage3D(gl.TEXTURE_2D_ARRAY, 0, 0, lo, int32(i), t.Width, hi-lo+1, 1,
			format.PixelFormat, format.Type, layer.Ptr(int(lo)*packed.MaxTextureSize*format.Channels))
		layer.ResetCounter()
		layer.ResetLength()
	}
	return t, glError("upload layers")
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("gpu: %s: GL error 0x%x", op, code)
	}
	return nil
}
