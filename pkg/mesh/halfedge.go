package mesh

import (
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/pkg/packed"
)

// half-edge record fields
const (
	hePrev   = 0
	heNext   = 1
	heFace   = 2
	heOrigin = 3
	heSize   = 4
)

// HalfEdgeArray is the explicit half-edge store of a PolyMesh. Half-edges
// come in pairs: winged edge w owns half-edges 2w and 2w+1.
//
// Released winged edges are kept on a free list: a free winged edge has
// origin -1 on its even half-edge, whose next field links to the following
// free winged edge (-1 ends the list).
type HalfEdgeArray struct {
	hEdges    *packed.Int32Array
	wEdges    *packed.Float32Array
	attrs     *Attributes
	freeHead  WingedEdge
	freeCount int
	log       *zap.Logger
}

// HalfEdgeSnapshot is the transferable form of a HalfEdgeArray.
type HalfEdgeSnapshot struct {
	HalfEdges  packed.Snapshot[int32]
	WEdges     packed.Snapshot[float32]
	Attributes AttributeSnapshot
	FreeHead   WingedEdge
	FreeCount  int
}

func newHalfEdgeArray(capacity, uvLayers int, log *zap.Logger) (*HalfEdgeArray, error) {
	hEdges, err := packed.NewInt32Array(heSize, 4, capacity*2)
	if err != nil {
		return nil, err
	}
	wEdges, err := packed.NewFloat32Array(1, 1, capacity)
	if err != nil {
		return nil, err
	}
	attrs, err := newAttributes(uvLayers, capacity*2)
	if err != nil {
		return nil, err
	}
	return &HalfEdgeArray{hEdges: hEdges, wEdges: wEdges, attrs: attrs, freeHead: -1, log: log}, nil
}

func rehydrateHalfEdgeArray(s HalfEdgeSnapshot, log *zap.Logger) (*HalfEdgeArray, error) {
	hEdges, err := packed.RehydrateInt32(s.HalfEdges)
	if err != nil {
		return nil, fmt.Errorf("half-edges: %w", err)
	}
	wEdges, err := packed.RehydrateFloat32(s.WEdges)
	if err != nil {
		return nil, fmt.Errorf("winged edges: %w", err)
	}
	attrs, err := rehydrateAttributes(s.Attributes)
	if err != nil {
		return nil, fmt.Errorf("half-edge attributes: %w", err)
	}
	if hEdges.Len() != wEdges.Len()*2 {
		return nil, fmt.Errorf("%w: %d half-edges for %d winged edges", ErrBadSnapshot, hEdges.Len(), wEdges.Len())
	}
	return &HalfEdgeArray{
		hEdges:    hEdges,
		wEdges:    wEdges,
		attrs:     attrs,
		freeHead:  s.FreeHead,
		freeCount: s.FreeCount,
		log:       log,
	}, nil
}

// Snapshot returns the transferable form.
func (ha *HalfEdgeArray) Snapshot() HalfEdgeSnapshot {
	return HalfEdgeSnapshot{
		HalfEdges:  ha.hEdges.Snapshot(),
		WEdges:     ha.wEdges.Snapshot(),
		Attributes: ha.attrs.Snapshot(),
		FreeHead:   ha.freeHead,
		FreeCount:  ha.freeCount,
	}
}

func (ha *HalfEdgeArray) editables() []editable {
	return []editable{ha.hEdges, ha.wEdges, ha.attrs.attrs, ha.attrs.uvs}
}

func (ha *HalfEdgeArray) setCheck(on bool) {
	ha.hEdges.SetCheck(on)
	ha.wEdges.SetCheck(on)
	ha.attrs.setCheck(on)
}

// Array returns the half-edge records for GPU upload.
func (ha *HalfEdgeArray) Array() *packed.Int32Array {
	return ha.hEdges
}

// WEdgeArray returns the winged-edge sharpness array for GPU upload.
func (ha *HalfEdgeArray) WEdgeArray() *packed.Float32Array {
	return ha.wEdges
}

// Attributes returns the per half-edge attributes.
func (ha *HalfEdgeArray) Attributes() *Attributes {
	return ha.attrs
}

// Len returns the number of half-edge slots.
func (ha *HalfEdgeArray) Len() int {
	return ha.hEdges.Len()
}

// WLen returns the number of winged-edge slots.
func (ha *HalfEdgeArray) WLen() int {
	return ha.wEdges.Len()
}

// Pair returns the opposite half-edge.
func (ha *HalfEdgeArray) Pair(h HalfEdge) HalfEdge {
	return h ^ 1
}

// Next returns the following half-edge in h's loop.
func (ha *HalfEdgeArray) Next(h HalfEdge) HalfEdge {
	return HalfEdge(ha.hEdges.Get(int(h), heNext))
}

// Prev returns the preceding half-edge in h's loop.
func (ha *HalfEdgeArray) Prev(h HalfEdge) HalfEdge {
	return HalfEdge(ha.hEdges.Get(int(h), hePrev))
}

// LinkNext makes next follow h.
func (ha *HalfEdgeArray) LinkNext(h, next HalfEdge) {
	ha.hEdges.Set(int(h), heNext, int32(next))
	ha.hEdges.Set(int(next), hePrev, int32(h))
}

// Origin returns the vertex h leaves.
func (ha *HalfEdgeArray) Origin(h HalfEdge) Vertex {
	return Vertex(ha.hEdges.Get(int(h), heOrigin))
}

// SetOrigin sets the vertex h leaves.
func (ha *HalfEdgeArray) SetOrigin(h HalfEdge, v Vertex) {
	ha.hEdges.Set(int(h), heOrigin, int32(v))
}

// Destination returns the vertex h arrives at.
func (ha *HalfEdgeArray) Destination(h HalfEdge) Vertex {
	return ha.Origin(h ^ 1)
}

// Face returns the face or hole on h's side, or NoFace.
func (ha *HalfEdgeArray) Face(h HalfEdge) Face {
	return Face(ha.hEdges.Get(int(h), heFace))
}

// SetFace sets the face or hole on h's side.
func (ha *HalfEdgeArray) SetFace(h HalfEdge, f Face) {
	ha.hEdges.Set(int(h), heFace, int32(f))
}

// IsBoundary reports whether h has no face.
func (ha *HalfEdgeArray) IsBoundary(h HalfEdge) bool {
	return ha.Face(h) < 0
}

// HoleOf returns the hole on h's side.
func (ha *HalfEdgeArray) HoleOf(h HalfEdge) Hole {
	return Hole(ha.Face(h))
}

// SetHoleOf assigns h to hole.
func (ha *HalfEdgeArray) SetHoleOf(h HalfEdge, hole Hole) {
	ha.SetFace(h, hole.Face())
}

// WEdge returns the winged edge of h.
func (ha *HalfEdgeArray) WEdge(h HalfEdge) WingedEdge {
	return WingedEdge(h >> 1)
}

// Sharpness returns the sharpness of h's winged edge.
func (ha *HalfEdgeArray) Sharpness(h HalfEdge) float32 {
	return ha.wEdges.Get(int(h>>1), 0)
}

// WSharpness returns the sharpness of w.
func (ha *HalfEdgeArray) WSharpness(w WingedEdge) float32 {
	return ha.wEdges.Get(int(w), 0)
}

// SetSharpness sets the sharpness of w.
func (ha *HalfEdgeArray) SetSharpness(w WingedEdge, s float32) {
	ha.wEdges.Set(int(w), 0, s)
}

// IsFree reports whether w is on the free list.
func (ha *HalfEdgeArray) IsFree(w WingedEdge) bool {
	return ha.hEdges.Get(int(w)*2, heOrigin) < 0
}

// FreeCount returns the number of winged edges on the free list.
func (ha *HalfEdgeArray) FreeCount() int {
	return ha.freeCount
}

// AllocWEdge returns the left half-edge of a winged edge from beg to end,
// reusing a free one when available. Both half-edges have no face and form
// a two-element loop.
func (ha *HalfEdgeArray) AllocWEdge(beg, end Vertex) HalfEdge {
	var w WingedEdge
	if ha.freeCount > 0 {
		w = ha.freeHead
		ha.freeHead = WingedEdge(ha.hEdges.Get(int(w)*2, heNext))
		ha.freeCount--
	} else {
		w = WingedEdge(ha.wEdges.Alloc())
		ha.hEdges.AllocEx(2)
		ha.attrs.allocEx(2)
	}
	left := HalfEdge(w * 2)
	right := left + 1
	ha.SetOrigin(left, beg)
	ha.SetOrigin(right, end)
	ha.SetFace(left, NoFace)
	ha.SetFace(right, NoFace)
	ha.LinkNext(left, right)
	ha.LinkNext(right, left)
	ha.SetSharpness(w, 0)
	return left
}

// AllocEx appends n winged edges without initializing them and returns the
// first.
func (ha *HalfEdgeArray) AllocEx(n int) WingedEdge {
	w := ha.wEdges.AllocEx(n)
	ha.hEdges.AllocEx(n * 2)
	ha.attrs.allocEx(n * 2)
	return WingedEdge(w)
}

// Free puts the winged edge of h on the free list.
func (ha *HalfEdgeArray) Free(h HalfEdge) {
	ha.LinkFree(ha.WEdge(h), ha.freeHead)
	ha.freeHead = ha.WEdge(h)
	ha.freeCount++
}

// LinkFree marks w free and links it to next without touching the list
// head, so a chain can be built in place and attached with ConcatFree.
func (ha *HalfEdgeArray) LinkFree(w, next WingedEdge) {
	left := int(w) * 2
	ha.hEdges.Set(left, heOrigin, -1)
	ha.hEdges.Set(left, heNext, int32(next))
	ha.hEdges.Set(left, heFace, int32(NoFace))
	ha.hEdges.Set(left+1, heFace, int32(NoFace))
}

// ConcatFree prepends the chain head..tail of n linked free winged edges to
// the free list.
func (ha *HalfEdgeArray) ConcatFree(head, tail WingedEdge, n int) {
	if n == 0 {
		return
	}
	ha.hEdges.Set(int(tail)*2, heNext, int32(ha.freeHead))
	ha.freeHead = head
	ha.freeCount += n
}

// FreeWEdges yields the free list in order.
func (ha *HalfEdgeArray) FreeWEdges() iter.Seq[WingedEdge] {
	return func(yield func(WingedEdge) bool) {
		w := ha.freeHead
		for i := 0; i < ha.freeCount && w >= 0; i++ {
			if !yield(w) {
				return
			}
			w = WingedEdge(ha.hEdges.Get(int(w)*2, heNext))
		}
	}
}

// WingedEdges yields every live winged edge.
func (ha *HalfEdgeArray) WingedEdges() iter.Seq[WingedEdge] {
	return func(yield func(WingedEdge) bool) {
		for w := 0; w < ha.WLen(); w++ {
			if ha.IsFree(WingedEdge(w)) {
				continue
			}
			if !yield(WingedEdge(w)) {
				return
			}
		}
	}
}

// HalfEdges yields both half-edges of every live winged edge.
func (ha *HalfEdgeArray) HalfEdges() iter.Seq[HalfEdge] {
	return func(yield func(HalfEdge) bool) {
		for w := range ha.WingedEdges() {
			if !yield(HalfEdge(w*2)) || !yield(HalfEdge(w*2+1)) {
				return
			}
		}
	}
}

// Boundaries returns every live half-edge without a face.
func (ha *HalfEdgeArray) Boundaries() []HalfEdge {
	var out []HalfEdge
	for h := range ha.HalfEdges() {
		if ha.IsBoundary(h) {
			out = append(out, h)
		}
	}
	return out
}

// SanityCheck verifies loop links, the free list counter and that loops do
// not mix faces.
func (ha *HalfEdgeArray) SanityCheck() bool {
	return len(ha.sanityReport()) == 0
}

func (ha *HalfEdgeArray) sanityReport() []string {
	var issues []string
	for h := range ha.HalfEdges() {
		next := ha.Next(h)
		if ha.Prev(next) != h {
			issues = append(issues, fmt.Sprintf("half-edge %d: prev(next) is %d", h, ha.Prev(next)))
		}
		if ha.Origin(next) != ha.Destination(h) {
			issues = append(issues, fmt.Sprintf("half-edge %d: next %d does not start at its end", h, next))
		}
		if ha.Face(next) != ha.Face(h) {
			issues = append(issues, fmt.Sprintf("half-edge %d: next %d belongs to face %d, not %d", h, next, ha.Face(next), ha.Face(h)))
		}
		if ha.Pair(ha.Pair(h)) != h {
			issues = append(issues, fmt.Sprintf("half-edge %d: pair is not an involution", h))
		}
	}

	n := 0
	for w := range ha.FreeWEdges() {
		if !ha.IsFree(w) {
			issues = append(issues, fmt.Sprintf("winged edge %d on free list is live", w))
		}
		n++
	}
	if n != ha.freeCount {
		issues = append(issues, fmt.Sprintf("free list holds %d winged edges, counter says %d", n, ha.freeCount))
	}
	for _, msg := range issues {
		ha.log.Warn("half-edge sanity", zap.String("issue", msg))
	}
	return issues
}
