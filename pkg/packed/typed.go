package packed

// Get returns one field of a record.
func (a *array[T]) Get(index, field int) T {
	return a.getRaw(index, field)
}

// Set writes one field of a record and reports whether the value changed.
func (a *array[T]) Set(index, field int, v T) bool {
	return a.setField(index, field, v)
}

// GetVec2 returns two consecutive fields.
func (a *array[T]) GetVec2(index, field int) [2]T {
	i := index*a.rec.Stride + field
	return [2]T{a.data[i], a.data[i+1]}
}

// GetVec3 returns three consecutive fields.
func (a *array[T]) GetVec3(index, field int) [3]T {
	i := index*a.rec.Stride + field
	return [3]T{a.data[i], a.data[i+1], a.data[i+2]}
}

// GetVec4 returns four consecutive fields.
func (a *array[T]) GetVec4(index, field int) [4]T {
	i := index*a.rec.Stride + field
	return [4]T{a.data[i], a.data[i+1], a.data[i+2], a.data[i+3]}
}

// SetVec2 writes two consecutive fields.
func (a *array[T]) SetVec2(index, field int, v [2]T) bool {
	i := index*a.rec.Stride + field
	changed := a.setRaw(i, v[0])
	changed = a.setRaw(i+1, v[1]) || changed
	return changed
}

// SetVec3 writes three consecutive fields.
func (a *array[T]) SetVec3(index, field int, v [3]T) bool {
	i := index*a.rec.Stride + field
	changed := a.setRaw(i, v[0])
	changed = a.setRaw(i+1, v[1]) || changed
	changed = a.setRaw(i+2, v[2]) || changed
	return changed
}

// SetVec4 writes four consecutive fields.
func (a *array[T]) SetVec4(index, field int, v [4]T) bool {
	i := index*a.rec.Stride + field
	changed := a.setRaw(i, v[0])
	changed = a.setRaw(i+1, v[1]) || changed
	changed = a.setRaw(i+2, v[2]) || changed
	changed = a.setRaw(i+3, v[3]) || changed
	return changed
}

// Int32Array stores int32 records as an integer texture.
type Int32Array struct {
	array[int32]
}

// NewInt32Array creates an array of structSize-field records packed into
// pixels of channels integers, with room for capacity records.
func NewInt32Array(structSize, channels, capacity int) (*Int32Array, error) {
	format, err := newFormat(intFormats, 4, channels, TypeInt)
	if err != nil {
		return nil, err
	}
	a, err := newArray[int32](format, structSize, capacity)
	if err != nil {
		return nil, err
	}
	return &Int32Array{a}, nil
}

// RehydrateInt32 rebuilds an array from a snapshot. Change tracking starts
// switched off.
func RehydrateInt32(s Snapshot[int32]) (*Int32Array, error) {
	a, err := rehydrate(s, TypeInt)
	if err != nil {
		return nil, err
	}
	return &Int32Array{a}, nil
}

// Float32Array stores float32 records as a float texture.
type Float32Array struct {
	array[float32]
}

// NewFloat32Array creates an array of structSize-field records packed into
// pixels of channels floats, with room for capacity records.
func NewFloat32Array(structSize, channels, capacity int) (*Float32Array, error) {
	format, err := newFormat(floatFormats, 4, channels, TypeFloat)
	if err != nil {
		return nil, err
	}
	a, err := newArray[float32](format, structSize, capacity)
	if err != nil {
		return nil, err
	}
	return &Float32Array{a}, nil
}

// RehydrateFloat32 rebuilds an array from a snapshot. Change tracking starts
// switched off.
func RehydrateFloat32(s Snapshot[float32]) (*Float32Array, error) {
	a, err := rehydrate(s, TypeFloat)
	if err != nil {
		return nil, err
	}
	return &Float32Array{a}, nil
}

// AddToVec2 adds two consecutive fields to v.
func (a *Float32Array) AddToVec2(v [2]float32, index, field int) [2]float32 {
	i := index*a.rec.Stride + field
	v[0] += a.data[i]
	v[1] += a.data[i+1]
	return v
}
