package packed

import "unsafe"

type element interface {
	~int32 | ~float32 | ~uint16
}

// array is the storage shared by all typed arrays. Records are addressed as
// (index, field) and stored at index*Stride+field.
type array[T element] struct {
	format  Format
	rec     Record
	data    []T
	noCheck bool

	// edit journal, see BeginEdit
	recording bool
	saved     Record
	undo      []undoEntry[T]
}

type undoEntry[T element] struct {
	index int
	value T
}

// Changed is the dirty part of an array aligned to whole records.
type Changed[T element] struct {
	ByteOffset int
	Data       []T
}

// Format returns the texture description of the array.
func (a *array[T]) Format() Format {
	return a.format
}

// Record returns a copy of the array's book-keeping.
func (a *array[T]) Record() Record {
	return a.rec
}

// Stride returns the number of raw elements per record.
func (a *array[T]) Stride() int {
	return a.rec.Stride
}

// Len returns the number of records in use.
func (a *array[T]) Len() int {
	return a.rec.Used / a.rec.Stride
}

// Cap returns the number of records the buffer holds without growing.
func (a *array[T]) Cap() int {
	return len(a.data) / a.rec.Stride
}

// ByteLength returns the number of bytes in use.
func (a *array[T]) ByteLength() int {
	return a.rec.Used * a.format.ByteCount
}

// Buffer returns the whole backing buffer including the unused tail.
func (a *array[T]) Buffer() []T {
	return a.data
}

// UsedBuffer returns the used part of the backing buffer.
func (a *array[T]) UsedBuffer() []T {
	return a.data[:a.rec.Used]
}

// Pixels returns the backing buffer length in pixels.
func (a *array[T]) Pixels() int {
	return len(a.data) / a.format.Channels
}

// TextureParameter returns the format and size of the texture holding the
// whole backing buffer.
func (a *array[T]) TextureParameter() TextureParameter {
	return TextureParameter{
		Format: a.format,
		Width:  MaxTextureSize,
		Height: a.Pixels() / MaxTextureSize,
	}
}

// Ptr returns a pointer to the raw element at offset, for GPU uploads.
func (a *array[T]) Ptr(offset int) unsafe.Pointer {
	return unsafe.Pointer(&a.data[offset])
}

// Alloc appends one record and returns its index.
func (a *array[T]) Alloc() int {
	index := a.rec.Used / a.rec.Stride
	a.rec.Used += a.rec.Stride
	if a.rec.Used > len(a.data) {
		a.Expand(0)
	}
	return index
}

// AllocEx appends count records and returns the index of the first one.
func (a *array[T]) AllocEx(count int) int {
	index := a.rec.Used / a.rec.Stride
	a.rec.Used += a.rec.Stride * count
	if a.rec.Used > len(a.data) {
		a.Expand(a.rec.Used)
	}
	return index
}

func (a *array[T]) allocateSize(size int) int {
	ch := a.format.Channels
	pixels := (size + ch - 1) / ch
	rows := (pixels + MaxTextureSize - 1) / MaxTextureSize
	return rows * MaxTextureSize * ch
}

// Expand grows the buffer to hold at least size raw elements, rounded up to
// whole texture rows. A size of zero grows by half of the current length.
// The buffer never shrinks.
func (a *array[T]) Expand(size int) {
	if size <= 0 {
		size = MaxTextureSize * a.format.Channels
		if a.data != nil {
			size = len(a.data) * 3 / 2
		}
	}
	if size < a.rec.Used {
		size = a.rec.Used
	}
	n := a.allocateSize(size)
	if n <= len(a.data) {
		return
	}
	grown := make([]T, n)
	copy(grown, a.data)
	a.data = grown
}

func (a *array[T]) setRaw(i int, v T) bool {
	if a.recording && a.data[i] != v {
		a.undo = append(a.undo, undoEntry[T]{index: i, value: a.data[i]})
	}
	if a.noCheck {
		a.data[i] = v
		return true
	}
	if a.data[i] == v {
		return false
	}
	a.data[i] = v
	if i < a.rec.AlteredMin {
		a.rec.AlteredMin = i
	}
	if i > a.rec.AlteredMax {
		a.rec.AlteredMax = i
	}
	return true
}

func (a *array[T]) getRaw(index, field int) T {
	return a.data[index*a.rec.Stride+field]
}

func (a *array[T]) setField(index, field int, v T) bool {
	return a.setRaw(index*a.rec.Stride+field, v)
}

// SetValues copies values into the buffer starting at raw offset, bypassing
// change tracking.
func (a *array[T]) SetValues(offset int, values []T) {
	copy(a.data[offset:], values)
}

// SetCheck turns change tracking on or off. Bulk writers such as subdivision
// switch it off since the whole buffer is uploaded afterwards anyway.
func (a *array[T]) SetCheck(on bool) {
	a.noCheck = !on
}

// Checking reports whether writes update the dirty interval.
func (a *array[T]) Checking() bool {
	return !a.noCheck
}

// IsAltered reports whether there are writes not yet uploaded.
func (a *array[T]) IsAltered() bool {
	return a.rec.AlteredMin <= a.rec.AlteredMax
}

// IsLengthAltered reports whether the used length changed since the last upload.
func (a *array[T]) IsLengthAltered() bool {
	return a.rec.GPUSize != a.rec.Used
}

// ResetCounter clears the dirty interval after an upload.
func (a *array[T]) ResetCounter() {
	a.rec.AlteredMin = len(a.data)
	a.rec.AlteredMax = -1
}

// ResetLength records the used length as uploaded.
func (a *array[T]) ResetLength() {
	a.rec.GPUSize = a.rec.Used
}

// Changed returns the dirty records and their byte offset in the buffer.
func (a *array[T]) Changed() Changed[T] {
	stride := a.rec.Stride
	if !a.IsAltered() {
		return Changed[T]{}
	}
	start := a.rec.AlteredMin / stride * stride
	end := (a.rec.AlteredMax/stride + 1) * stride
	return Changed[T]{
		ByteOffset: start * a.format.ByteCount,
		Data:       a.data[start:end],
	}
}

// Interval returns the dirty range aligned to formatChannel elements, or an
// empty interval when nothing changed.
func (a *array[T]) Interval(formatChannel int) Interval {
	if !a.IsAltered() {
		return Interval{}
	}
	return Interval{
		Start: a.rec.AlteredMin / formatChannel * formatChannel,
		End:   (a.rec.AlteredMax/formatChannel + 1) * formatChannel,
	}
}

// BeginEdit starts journaling writes so RollbackEdit can restore the array
// to its current contents and length. Capacity gained meanwhile is kept.
func (a *array[T]) BeginEdit() {
	a.recording = true
	a.saved = a.rec
	a.undo = a.undo[:0]
}

// CommitEdit stops journaling and keeps every write.
func (a *array[T]) CommitEdit() {
	a.recording = false
	a.undo = a.undo[:0]
}

// RollbackEdit undoes every write and allocation since BeginEdit.
func (a *array[T]) RollbackEdit() {
	for i := len(a.undo) - 1; i >= 0; i-- {
		u := a.undo[i]
		a.data[u.index] = u.value
	}
	a.rec = a.saved
	a.recording = false
	a.undo = a.undo[:0]
}

// Snapshot returns a structural copy of the array. The snapshot shares the
// backing buffer, so writes through a rehydrated array are visible here.
func (a *array[T]) Snapshot() Snapshot[T] {
	return Snapshot[T]{Format: a.format, Record: a.rec, Data: a.data}
}

func newArray[T element](format Format, structSize, capacity int) (array[T], error) {
	rec, err := newRecord(structSize, format.Channels)
	if err != nil {
		return array[T]{}, err
	}
	a := array[T]{format: format, rec: rec}
	a.Expand(capacity * rec.Stride)
	return a, nil
}
