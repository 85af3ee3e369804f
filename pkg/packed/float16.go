package packed

import "github.com/x448/float16"

// Float16Array stores float32 values as half floats. The buffer holds the
// raw binary16 bits, ready for a HALF_FLOAT texture.
type Float16Array struct {
	array[uint16]
}

// NewFloat16Array creates a half-float array of structSize-field records
// packed into pixels of channels values, with room for capacity records.
func NewFloat16Array(structSize, channels, capacity int) (*Float16Array, error) {
	format, err := newFormat(halfFormats, 2, channels, TypeHalfFloat)
	if err != nil {
		return nil, err
	}
	a, err := newArray[uint16](format, structSize, capacity)
	if err != nil {
		return nil, err
	}
	return &Float16Array{a}, nil
}

// RehydrateFloat16 rebuilds an array from a snapshot. Change tracking starts
// switched off.
func RehydrateFloat16(s Snapshot[uint16]) (*Float16Array, error) {
	a, err := rehydrate(s, TypeHalfFloat)
	if err != nil {
		return nil, err
	}
	return &Float16Array{a}, nil
}

func toHalf(v float32) uint16 {
	return float16.Fromfloat32(v).Bits()
}

func fromHalf(bits uint16) float32 {
	return float16.Frombits(bits).Float32()
}

// Get returns one field of a record.
func (a *Float16Array) Get(index, field int) float32 {
	return fromHalf(a.getRaw(index, field))
}

// Set writes one field of a record and reports whether the stored bits changed.
func (a *Float16Array) Set(index, field int, v float32) bool {
	return a.setField(index, field, toHalf(v))
}

// GetVec2 returns two consecutive fields.
func (a *Float16Array) GetVec2(index, field int) [2]float32 {
	i := index*a.rec.Stride + field
	return [2]float32{fromHalf(a.data[i]), fromHalf(a.data[i+1])}
}

// GetVec3 returns three consecutive fields.
func (a *Float16Array) GetVec3(index, field int) [3]float32 {
	i := index*a.rec.Stride + field
	return [3]float32{fromHalf(a.data[i]), fromHalf(a.data[i+1]), fromHalf(a.data[i+2])}
}

// SetVec2 writes two consecutive fields.
func (a *Float16Array) SetVec2(index, field int, v [2]float32) bool {
	i := index*a.rec.Stride + field
	changed := a.setRaw(i, toHalf(v[0]))
	changed = a.setRaw(i+1, toHalf(v[1])) || changed
	return changed
}

// SetVec3 writes three consecutive fields.
func (a *Float16Array) SetVec3(index, field int, v [3]float32) bool {
	i := index*a.rec.Stride + field
	changed := a.setRaw(i, toHalf(v[0]))
	changed = a.setRaw(i+1, toHalf(v[1])) || changed
	changed = a.setRaw(i+2, toHalf(v[2])) || changed
	return changed
}

// AddToVec2 adds two consecutive fields to v.
func (a *Float16Array) AddToVec2(v [2]float32, index, field int) [2]float32 {
	i := index*a.rec.Stride + field
	v[0] += fromHalf(a.data[i])
	v[1] += fromHalf(a.data[i+1])
	return v
}
