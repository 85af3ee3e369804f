package mesh

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/pkg/packed"
)

// hole table slots
const (
	holeFreeCount = 0
	holeFreeHead  = 1
	holeFirstSlot = 2
)

// HoleTable stores one boundary half-edge per hole and keeps released
// slots on an intrusive free list rooted in its first two records.
//
// Live and free slots are told apart by sign. When boundary half-edges are
// non-negative (PolyMesh) a free slot stores -1-next, otherwise (TriMesh,
// whose boundary edges are negative) it stores next directly.
type HoleTable struct {
	topo     HoleTopology
	arr      *packed.Int32Array
	negEdges bool
	log      *zap.Logger
}

func newHoleTable(topo HoleTopology, negEdges bool, log *zap.Logger) (*HoleTable, error) {
	arr, err := packed.NewInt32Array(1, 1, 0)
	if err != nil {
		return nil, err
	}
	arr.AllocEx(holeFirstSlot)
	return &HoleTable{topo: topo, arr: arr, negEdges: negEdges, log: log}, nil
}

func rehydrateHoleTable(topo HoleTopology, negEdges bool, s packed.Snapshot[int32], log *zap.Logger) (*HoleTable, error) {
	arr, err := packed.RehydrateInt32(s)
	if err != nil {
		return nil, fmt.Errorf("holes: %w", err)
	}
	if arr.Len() < holeFirstSlot {
		return nil, fmt.Errorf("%w: hole table without header", ErrBadSnapshot)
	}
	return &HoleTable{topo: topo, arr: arr, negEdges: negEdges, log: log}, nil
}

// Snapshot returns the transferable form.
func (ht *HoleTable) Snapshot() packed.Snapshot[int32] {
	return ht.arr.Snapshot()
}

// Array returns the backing array.
func (ht *HoleTable) Array() *packed.Int32Array {
	return ht.arr
}

func (ht *HoleTable) slot(h Hole) int {
	s := -int(h)
	if s < holeFirstSlot || s >= ht.arr.Len() {
		panic(fmt.Sprintf("mesh: hole %d out of range", h))
	}
	return s
}

func (ht *HoleTable) isLive(value int32) bool {
	if ht.negEdges {
		return value < 0
	}
	return value >= 0
}

func (ht *HoleTable) encodeNext(slot int) int32 {
	if ht.negEdges {
		return int32(slot)
	}
	return int32(-1 - slot)
}

func (ht *HoleTable) decodeNext(value int32) int {
	if ht.negEdges {
		return int(value)
	}
	return int(-1 - value)
}

// Len returns the number of hole slots, free or live.
func (ht *HoleTable) Len() int {
	return ht.arr.Len() - holeFirstSlot
}

// FreeCount returns the number of slots on the free list.
func (ht *HoleTable) FreeCount() int {
	return int(ht.arr.Get(holeFreeCount, 0))
}

// Alloc returns a hole, reusing a freed slot when there is one.
func (ht *HoleTable) Alloc() Hole {
	placeholder := int32(0)
	if ht.negEdges {
		placeholder = -1
	}
	if n := ht.FreeCount(); n > 0 {
		s := int(ht.arr.Get(holeFreeHead, 0))
		ht.arr.Set(holeFreeHead, 0, int32(ht.decodeNext(ht.arr.Get(s, 0))))
		ht.arr.Set(holeFreeCount, 0, int32(n-1))
		ht.arr.Set(s, 0, placeholder)
		return Hole(-s)
	}
	s := ht.arr.Alloc()
	ht.arr.Set(s, 0, placeholder)
	return Hole(-s)
}

// Free releases h to the free list.
func (ht *HoleTable) Free(h Hole) error {
	s := -int(h)
	if s < holeFirstSlot || s >= ht.arr.Len() || !ht.isLive(ht.arr.Get(s, 0)) {
		return fmt.Errorf("%w: %d", ErrInvalidHole, h)
	}
	ht.arr.Set(s, 0, ht.encodeNext(int(ht.arr.Get(holeFreeHead, 0))))
	ht.arr.Set(holeFreeHead, 0, int32(s))
	ht.arr.Set(holeFreeCount, 0, int32(ht.FreeCount()+1))
	return nil
}

// IsFree reports whether h is not a live hole.
func (ht *HoleTable) IsFree(h Hole) bool {
	s := -int(h)
	if s < holeFirstSlot || s >= ht.arr.Len() {
		return true
	}
	return !ht.isLive(ht.arr.Get(s, 0))
}

// HalfEdge returns a boundary half-edge of h.
func (ht *HoleTable) HalfEdge(h Hole) HalfEdge {
	return HalfEdge(ht.arr.Get(ht.slot(h), 0))
}

// SetHalfEdge sets the boundary half-edge of h.
func (ht *HoleTable) SetHalfEdge(h Hole, e HalfEdge) {
	ht.arr.Set(ht.slot(h), 0, int32(e))
}

// Holes returns every live hole in slot order.
func (ht *HoleTable) Holes() []Hole {
	var out []Hole
	for s := holeFirstSlot; s < ht.arr.Len(); s++ {
		if ht.isLive(ht.arr.Get(s, 0)) {
			out = append(out, Hole(-s))
		}
	}
	return out
}

// Edges iterates the boundary loop of h.
func (ht *HoleTable) Edges(h Hole) *EdgeIter {
	return LoopIter(ht.topo, ht.HalfEdge(h))
}

// CopyFrom replaces the table with the contents of src, free list included.
func (ht *HoleTable) CopyFrom(src *HoleTable) {
	need := src.arr.Len() - ht.arr.Len()
	if need > 0 {
		ht.arr.AllocEx(need)
	}
	ht.arr.SetValues(0, src.arr.UsedBuffer())
}

// releaseAll frees every live hole, last slot first, so that subsequent
// allocations hand the slots out in their original order.
func (ht *HoleTable) releaseAll() {
	holes := ht.Holes()
	for i := len(holes) - 1; i >= 0; i-- {
		_ = ht.Free(holes[i])
	}
}

// SanityCheck verifies the free list and that every edge of each hole loop
// is a boundary edge tagged with that hole.
func (ht *HoleTable) SanityCheck() bool {
	return len(ht.sanityReport()) == 0
}

func (ht *HoleTable) sanityReport() []string {
	var issues []string

	count := 0
	for s := int(ht.arr.Get(holeFreeHead, 0)); s != 0; {
		if s < holeFirstSlot || s >= ht.arr.Len() || ht.isLive(ht.arr.Get(s, 0)) || count > ht.Len() {
			issues = append(issues, fmt.Sprintf("hole free list broken at slot %d", s))
			break
		}
		count++
		s = ht.decodeNext(ht.arr.Get(s, 0))
	}
	if count != ht.FreeCount() {
		issues = append(issues, fmt.Sprintf("hole free list holds %d slots, counter says %d", count, ht.FreeCount()))
	}

	limit := ht.topo.Len() + 1
	for _, h := range ht.Holes() {
		start := ht.HalfEdge(h)
		e := start
		for steps := 0; ; steps++ {
			if !ht.topo.IsBoundary(e) {
				issues = append(issues, fmt.Sprintf("hole %d: half-edge %d has a face", h, e))
				break
			}
			if got := ht.topo.HoleOf(e); got != h {
				issues = append(issues, fmt.Sprintf("hole %d: half-edge %d tagged %d", h, e, got))
				break
			}
			e = ht.topo.Next(e)
			if e == start {
				break
			}
			if steps > limit {
				issues = append(issues, fmt.Sprintf("hole %d: loop does not close", h))
				break
			}
		}
	}
	for _, msg := range issues {
		ht.log.Warn("hole sanity", zap.String("issue", msg))
	}
	return issues
}
