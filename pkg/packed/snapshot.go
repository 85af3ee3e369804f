package packed

import "fmt"

// Snapshot is the transferable form of an array: its texture description,
// book-keeping and backing buffer.
type Snapshot[T element] struct {
	Format Format
	Record Record
	Data   []T
}

func rehydrate[T element](s Snapshot[T], typ uint32) (array[T], error) {
	switch {
	case s.Format.Type != typ:
		return array[T]{}, fmt.Errorf("%w: pixel type 0x%X, expected 0x%X", ErrBadSnapshot, s.Format.Type, typ)
	case s.Format.Channels < 1 || s.Record.Stride <= 0 || s.Record.Stride%s.Format.Channels != 0:
		return array[T]{}, fmt.Errorf("%w: stride %d with %d channels", ErrBadSnapshot, s.Record.Stride, s.Format.Channels)
	case s.Record.Used < 0 || s.Record.Used%s.Record.Stride != 0 || s.Record.Used > len(s.Data):
		return array[T]{}, fmt.Errorf("%w: used %d of %d", ErrBadSnapshot, s.Record.Used, len(s.Data))
	}
	return array[T]{format: s.Format, rec: s.Record, data: s.Data, noCheck: true}, nil
}
