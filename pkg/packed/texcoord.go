package packed

import "fmt"

// TexCoordArray holds one 2-channel half-float array per UV layer. All layers
// are allocated together so a record index addresses the same element in
// every layer.
type TexCoordArray struct {
	layers []*Float16Array
}

// TexCoordSnapshot is the transferable form of a TexCoordArray.
type TexCoordSnapshot struct {
	Layers []Snapshot[uint16]
}

// NewTexCoordArray creates layers UV arrays with room for capacity records.
func NewTexCoordArray(layers, capacity int) (*TexCoordArray, error) {
	if layers < 1 {
		return nil, fmt.Errorf("%w: %d uv layers", ErrUnsupportedChannels, layers)
	}
	t := &TexCoordArray{layers: make([]*Float16Array, 0, layers)}
	for i := 0; i < layers; i++ {
		uv, err := NewFloat16Array(2, 2, capacity)
		if err != nil {
			return nil, err
		}
		t.layers = append(t.layers, uv)
	}
	return t, nil
}

// RehydrateTexCoord rebuilds a TexCoordArray from a snapshot.
func RehydrateTexCoord(s TexCoordSnapshot) (*TexCoordArray, error) {
	if len(s.Layers) == 0 {
		return nil, fmt.Errorf("%w: no uv layers", ErrBadSnapshot)
	}
	t := &TexCoordArray{layers: make([]*Float16Array, 0, len(s.Layers))}
	for _, layer := range s.Layers {
		uv, err := RehydrateFloat16(layer)
		if err != nil {
			return nil, err
		}
		t.layers = append(t.layers, uv)
	}
	return t, nil
}

// Snapshot returns the structural copy of every layer.
func (t *TexCoordArray) Snapshot() TexCoordSnapshot {
	s := TexCoordSnapshot{Layers: make([]Snapshot[uint16], 0, len(t.layers))}
	for _, uv := range t.layers {
		s.Layers = append(s.Layers, uv.Snapshot())
	}
	return s
}

// Depth returns the number of layers.
func (t *TexCoordArray) Depth() int {
	return len(t.layers)
}

// Layer returns one layer.
func (t *TexCoordArray) Layer(layer int) *Float16Array {
	return t.layers[layer]
}

// Format returns the texture description shared by all layers.
func (t *TexCoordArray) Format() Format {
	return t.layers[0].Format()
}

// Len returns the number of records in use.
func (t *TexCoordArray) Len() int {
	return t.layers[0].Len()
}

// ByteLength returns the bytes in use by one layer.
func (t *TexCoordArray) ByteLength() int {
	return t.layers[0].ByteLength()
}

// Buffers returns the backing buffer of every layer.
func (t *TexCoordArray) Buffers() [][]uint16 {
	out := make([][]uint16, len(t.layers))
	for i, uv := range t.layers {
		out[i] = uv.Buffer()
	}
	return out
}

// UsedBuffers returns the used part of every layer.
func (t *TexCoordArray) UsedBuffers() [][]uint16 {
	out := make([][]uint16, len(t.layers))
	for i, uv := range t.layers {
		out[i] = uv.UsedBuffer()
	}
	return out
}

// Changed returns the dirty records of every layer.
func (t *TexCoordArray) Changed() []Changed[uint16] {
	out := make([]Changed[uint16], len(t.layers))
	for i, uv := range t.layers {
		out[i] = uv.Changed()
	}
	return out
}

// Intervals returns the dirty interval of every layer.
func (t *TexCoordArray) Intervals(formatChannel int) []Interval {
	out := make([]Interval, len(t.layers))
	for i, uv := range t.layers {
		out[i] = uv.Interval(formatChannel)
	}
	return out
}

// Alloc appends one record to every layer.
func (t *TexCoordArray) Alloc() int {
	index := -1
	for _, uv := range t.layers {
		index = uv.Alloc()
	}
	return index
}

// AllocEx appends count records to every layer.
func (t *TexCoordArray) AllocEx(count int) int {
	index := -1
	for _, uv := range t.layers {
		index = uv.AllocEx(count)
	}
	return index
}

// SetCheck switches change tracking for every layer.
func (t *TexCoordArray) SetCheck(on bool) {
	for _, uv := range t.layers {
		uv.SetCheck(on)
	}
}

// ResetCounter clears every layer's dirty interval.
func (t *TexCoordArray) ResetCounter() {
	for _, uv := range t.layers {
		uv.ResetCounter()
	}
}

// Get returns the uv of a record in a layer.
func (t *TexCoordArray) Get(index, layer int) [2]float32 {
	return t.layers[layer].GetVec2(index, 0)
}

// Set writes the uv of a record in a layer.
func (t *TexCoordArray) Set(index, layer int, uv [2]float32) bool {
	return t.layers[layer].SetVec2(index, 0, uv)
}

// AddTo adds the uv of a record in a layer to uv.
func (t *TexCoordArray) AddTo(uv [2]float32, index, layer int) [2]float32 {
	return t.layers[layer].AddToVec2(uv, index, 0)
}

// BeginEdit starts journaling every layer.
func (t *TexCoordArray) BeginEdit() {
	for _, uv := range t.layers {
		uv.BeginEdit()
	}
}

// CommitEdit keeps every layer's writes.
func (t *TexCoordArray) CommitEdit() {
	for _, uv := range t.layers {
		uv.CommitEdit()
	}
}

// RollbackEdit undoes every layer's writes since BeginEdit.
func (t *TexCoordArray) RollbackEdit() {
	for _, uv := range t.layers {
		uv.RollbackEdit()
	}
}
