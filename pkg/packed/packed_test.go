package packed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArray_Formats(t *testing.T) {
	tests := []struct {
		name     string
		create   func() (Format, error)
		internal uint32
		pixel    uint32
		typ      uint32
	}{
		{"int32 x1", func() (Format, error) { a, err := NewInt32Array(1, 1, 0); return fmtOf(a, err) }, InternalR32I, FormatRedInteger, TypeInt},
		{"int32 x4", func() (Format, error) { a, err := NewInt32Array(4, 4, 0); return fmtOf(a, err) }, InternalRGBA32I, FormatRGBAInteger, TypeInt},
		{"float32 x2", func() (Format, error) { a, err := NewFloat32Array(2, 2, 0); return fmtOf(a, err) }, InternalRG32F, FormatRG, TypeFloat},
		{"float32 x3", func() (Format, error) { a, err := NewFloat32Array(3, 3, 0); return fmtOf(a, err) }, InternalRGB32F, FormatRGB, TypeFloat},
		{"float16 x2", func() (Format, error) { a, err := NewFloat16Array(2, 2, 0); return fmtOf(a, err) }, InternalRG16F, FormatRG, TypeHalfFloat},
		{"float16 x3", func() (Format, error) { a, err := NewFloat16Array(6, 3, 0); return fmtOf(a, err) }, InternalRGB16F, FormatRGB, TypeHalfFloat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := tt.create()
			require.NoError(t, err)
			assert.Equal(t, tt.internal, f.InternalFormat)
			assert.Equal(t, tt.pixel, f.PixelFormat)
			assert.Equal(t, tt.typ, f.Type)
		})
	}
}

type formatter interface{ Format() Format }

func fmtOf[A formatter](a A, err error) (Format, error) {
	if err != nil {
		return Format{}, err
	}
	return a.Format(), nil
}

func TestNewArray_UnsupportedChannels(t *testing.T) {
	_, err := NewInt32Array(4, 5, 0)
	assert.ErrorIs(t, err, ErrUnsupportedChannels)

	_, err = NewFloat32Array(1, 0, 0)
	assert.ErrorIs(t, err, ErrUnsupportedChannels)

	_, err = NewFloat16Array(2, 7, 0)
	assert.ErrorIs(t, err, ErrUnsupportedChannels)

	_, err = NewInt32Array(0, 1, 0)
	assert.ErrorIs(t, err, ErrBadStructSize)
}

func TestStrideRoundsUpToChannels(t *testing.T) {
	a, err := NewFloat32Array(3, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, a.Stride())

	b, err := NewInt32Array(4, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Stride())

	c, err := NewFloat16Array(6, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, c.Stride())
}

func TestAlloc_GrowsAndPreservesRecords(t *testing.T) {
	a, err := NewInt32Array(4, 4, 1)
	require.NoError(t, err)
	initial := len(a.Buffer())
	assert.Equal(t, MaxTextureSize*4, initial)

	n := initial/4 + 10
	for i := 0; i < n; i++ {
		idx := a.Alloc()
		require.Equal(t, i, idx)
		a.Set(idx, 0, int32(i))
		a.Set(idx, 3, int32(-i))
	}
	assert.Equal(t, n, a.Len())
	assert.Greater(t, len(a.Buffer()), initial)
	assert.Zero(t, len(a.Buffer())%(MaxTextureSize*4), "buffer aligned to texture rows")

	for i := 0; i < n; i++ {
		assert.Equal(t, int32(i), a.Get(i, 0))
		assert.Equal(t, int32(-i), a.Get(i, 3))
	}
}

func TestExpand_DefaultGrowth(t *testing.T) {
	a, err := NewFloat32Array(1, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, MaxTextureSize, len(a.Buffer()))

	a.Expand(0)
	// 1.5x of one row, rounded up to two rows.
	assert.Equal(t, 2*MaxTextureSize, len(a.Buffer()))

	a.Expand(10)
	assert.Equal(t, 2*MaxTextureSize, len(a.Buffer()), "never shrinks")
}

func TestAllocEx(t *testing.T) {
	a, err := NewFloat32Array(3, 3, 0)
	require.NoError(t, err)

	first := a.AllocEx(5000)
	assert.Equal(t, 0, first)
	assert.Equal(t, 5000, a.Len())
	assert.Equal(t, 5000*3*4, a.ByteLength())

	next := a.AllocEx(2)
	assert.Equal(t, 5000, next)
	assert.Equal(t, 5002, a.Len())
	assert.Len(t, a.UsedBuffer(), 5002*3)
}

func TestDirtyInterval(t *testing.T) {
	a, err := NewInt32Array(4, 4, 16)
	require.NoError(t, err)
	a.AllocEx(8)
	a.ResetCounter()
	assert.False(t, a.IsAltered())
	assert.Equal(t, Interval{}, a.Interval(4))

	assert.True(t, a.Set(2, 1, 7))
	assert.False(t, a.Set(2, 1, 7), "same value is not a change")
	assert.True(t, a.IsAltered())
	assert.Equal(t, Interval{Start: 8, End: 12}, a.Interval(4))

	a.Set(5, 3, 1)
	assert.Equal(t, Interval{Start: 8, End: 24}, a.Interval(4))

	changed := a.Changed()
	assert.Equal(t, 8*4, changed.ByteOffset)
	assert.Len(t, changed.Data, 16)
	assert.Equal(t, int32(7), changed.Data[1])

	a.ResetCounter()
	assert.False(t, a.IsAltered())
}

func TestDirtyInterval_NoCheck(t *testing.T) {
	a, err := NewFloat32Array(3, 3, 4)
	require.NoError(t, err)
	a.AllocEx(4)
	a.ResetCounter()

	a.SetCheck(false)
	assert.True(t, a.SetVec3(1, 0, [3]float32{1, 2, 3}))
	assert.False(t, a.IsAltered())
	assert.Equal(t, [3]float32{1, 2, 3}, a.GetVec3(1, 0))

	a.SetCheck(true)
	a.Set(3, 2, 9)
	assert.Equal(t, Interval{Start: 9, End: 12}, a.Interval(3))
}

func TestLengthAltered(t *testing.T) {
	a, err := NewInt32Array(1, 1, 0)
	require.NoError(t, err)
	assert.False(t, a.IsLengthAltered())
	a.Alloc()
	assert.True(t, a.IsLengthAltered())
	a.ResetLength()
	assert.False(t, a.IsLengthAltered())
}

func TestFloat16Array(t *testing.T) {
	a, err := NewFloat16Array(6, 3, 2)
	require.NoError(t, err)
	a.AllocEx(2)

	a.SetVec3(1, 3, [3]float32{0.5, -2, 1024})
	assert.Equal(t, [3]float32{0.5, -2, 1024}, a.GetVec3(1, 3))

	a.Set(0, 0, 1.0/3.0)
	assert.InDelta(t, 1.0/3.0, a.Get(0, 0), 1e-3)

	a.SetVec2(0, 1, [2]float32{0.25, 0.75})
	sum := a.AddToVec2([2]float32{1, 1}, 0, 1)
	assert.Equal(t, [2]float32{1.25, 1.75}, sum)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	a, err := NewFloat32Array(3, 3, 0)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		idx := a.Alloc()
		a.SetVec3(idx, 0, [3]float32{float32(i), float32(i * 2), float32(i * 3)})
	}

	s := a.Snapshot()
	b, err := RehydrateFloat32(s)
	require.NoError(t, err)

	assert.Equal(t, a.Record(), b.Record())
	assert.Equal(t, a.Format(), b.Format())
	assert.Equal(t, a.UsedBuffer(), b.UsedBuffer())
	assert.False(t, b.Checking())

	// rehydrated arrays share the buffer
	b.Set(4, 1, 42)
	assert.Equal(t, float32(42), a.Get(4, 1))
}

func TestRehydrate_BadSnapshot(t *testing.T) {
	a, err := NewInt32Array(2, 2, 0)
	require.NoError(t, err)
	a.AllocEx(3)

	s := a.Snapshot()
	s.Record.Used = len(s.Data) + 2
	_, err = RehydrateInt32(s)
	assert.ErrorIs(t, err, ErrBadSnapshot)

	s = a.Snapshot()
	s.Format.Type = TypeFloat
	_, err = RehydrateInt32(s)
	assert.ErrorIs(t, err, ErrBadSnapshot)

	_, err = RehydrateTexCoord(TexCoordSnapshot{})
	assert.ErrorIs(t, err, ErrBadSnapshot)
}

func TestTexCoordArray(t *testing.T) {
	uvs, err := NewTexCoordArray(2, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, uvs.Depth())

	assert.Equal(t, 0, uvs.Alloc())
	assert.Equal(t, 1, uvs.AllocEx(3))
	assert.Equal(t, 4, uvs.Len())
	assert.Equal(t, 4, uvs.Layer(1).Len())

	uvs.Set(2, 1, [2]float32{0.5, 0.25})
	assert.Equal(t, [2]float32{0.5, 0.25}, uvs.Get(2, 1))
	assert.Equal(t, [2]float32{0, 0}, uvs.Get(2, 0))

	sum := uvs.AddTo([2]float32{0.5, 0.5}, 2, 1)
	assert.Equal(t, [2]float32{1, 0.75}, sum)

	back, err := RehydrateTexCoord(uvs.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, uvs.Get(2, 1), back.Get(2, 1))
	assert.Equal(t, uvs.Len(), back.Len())

	_, err = NewTexCoordArray(0, 1)
	assert.ErrorIs(t, err, ErrUnsupportedChannels)
}

func TestEditRollback(t *testing.T) {
	a, err := NewInt32Array(2, 2, 0)
	require.NoError(t, err)
	a.AllocEx(2)
	a.Set(0, 0, 5)
	a.Set(1, 1, 6)
	before := a.Record()

	a.BeginEdit()
	a.Set(0, 0, 50)
	idx := a.AllocEx(MaxTextureSize * 2)
	a.Set(idx, 1, 9)
	a.Set(1, 1, 60)
	a.RollbackEdit()

	assert.Equal(t, before, a.Record())
	assert.Equal(t, int32(5), a.Get(0, 0))
	assert.Equal(t, int32(6), a.Get(1, 1))
	assert.Equal(t, int32(0), a.Buffer()[idx*2+1])

	a.BeginEdit()
	a.Set(0, 0, 7)
	a.CommitEdit()
	assert.Equal(t, int32(7), a.Get(0, 0))
}

func TestTextureParameter(t *testing.T) {
	a, err := NewInt32Array(4, 4, 5000)
	require.NoError(t, err)

	tp := a.TextureParameter()
	assert.Equal(t, MaxTextureSize, tp.Width)
	assert.Equal(t, 2, tp.Height, "5000 pixels take two rows")
	assert.Equal(t, FormatRGBAInteger, tp.PixelFormat)
	assert.Equal(t, InternalRGBA32I, tp.InternalFormat)
	assert.Equal(t, TypeInt, tp.Type)
	assert.Equal(t, a.Pixels(), tp.Width*tp.Height)
}
