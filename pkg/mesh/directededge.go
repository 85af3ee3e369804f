package mesh

import (
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/pkg/packed"
)

// directed edge record fields
const (
	dePair   = 0
	deWEdge  = 1
	deOrigin = 2
	deSize   = 3
)

// free (boundary) edge record fields. Slot 0 is the free-list header: its
// next field holds the first free handle (0 when empty) and its pair field
// the number of free slots.
const (
	fePair = 0
	fePrev = 1
	feNext = 2
	feHole = 3
	feSize = 4
)

// DirectedEdgeArray is the edge store of a TriMesh. Triangle t owns directed
// edges 3t..3t+2 whose next and prev are implied by the index. Boundary
// edges live in a separate table and are addressed by negative handles -s,
// s >= 1, with explicit pair, prev, next and hole fields. A released
// boundary slot has hole 0.
type DirectedEdgeArray struct {
	dEdges *packed.Int32Array
	fEdges *packed.Int32Array
	wLeft  *packed.Int32Array
	wSharp *packed.Float32Array
	attrs  *Attributes
	log    *zap.Logger
}

// DirectedEdgeSnapshot is the transferable form of a DirectedEdgeArray.
type DirectedEdgeSnapshot struct {
	DEdges     packed.Snapshot[int32]
	FEdges     packed.Snapshot[int32]
	WLeft      packed.Snapshot[int32]
	WSharp     packed.Snapshot[float32]
	Attributes AttributeSnapshot
}

func newDirectedEdgeArray(capacity, uvLayers int, log *zap.Logger) (*DirectedEdgeArray, error) {
	dEdges, err := packed.NewInt32Array(deSize, 3, capacity*3)
	if err != nil {
		return nil, err
	}
	fEdges, err := packed.NewInt32Array(feSize, 4, capacity)
	if err != nil {
		return nil, err
	}
	fEdges.Alloc()
	wLeft, err := packed.NewInt32Array(1, 1, capacity*2)
	if err != nil {
		return nil, err
	}
	wSharp, err := packed.NewFloat32Array(1, 1, capacity*2)
	if err != nil {
		return nil, err
	}
	attrs, err := newAttributes(uvLayers, capacity*3)
	if err != nil {
		return nil, err
	}
	return &DirectedEdgeArray{dEdges: dEdges, fEdges: fEdges, wLeft: wLeft, wSharp: wSharp, attrs: attrs, log: log}, nil
}

func rehydrateDirectedEdgeArray(s DirectedEdgeSnapshot, log *zap.Logger) (*DirectedEdgeArray, error) {
	dEdges, err := packed.RehydrateInt32(s.DEdges)
	if err != nil {
		return nil, fmt.Errorf("directed edges: %w", err)
	}
	fEdges, err := packed.RehydrateInt32(s.FEdges)
	if err != nil {
		return nil, fmt.Errorf("free edges: %w", err)
	}
	wLeft, err := packed.RehydrateInt32(s.WLeft)
	if err != nil {
		return nil, fmt.Errorf("winged edges: %w", err)
	}
	wSharp, err := packed.RehydrateFloat32(s.WSharp)
	if err != nil {
		return nil, fmt.Errorf("winged edge sharpness: %w", err)
	}
	attrs, err := rehydrateAttributes(s.Attributes)
	if err != nil {
		return nil, fmt.Errorf("directed edge attributes: %w", err)
	}
	if fEdges.Len() < 1 || dEdges.Len()%3 != 0 || wLeft.Len() != wSharp.Len() {
		return nil, fmt.Errorf("%w: inconsistent directed edge arrays", ErrBadSnapshot)
	}
	return &DirectedEdgeArray{dEdges: dEdges, fEdges: fEdges, wLeft: wLeft, wSharp: wSharp, attrs: attrs, log: log}, nil
}

// Snapshot returns the transferable form.
func (da *DirectedEdgeArray) Snapshot() DirectedEdgeSnapshot {
	return DirectedEdgeSnapshot{
		DEdges:     da.dEdges.Snapshot(),
		FEdges:     da.fEdges.Snapshot(),
		WLeft:      da.wLeft.Snapshot(),
		WSharp:     da.wSharp.Snapshot(),
		Attributes: da.attrs.Snapshot(),
	}
}

func (da *DirectedEdgeArray) editables() []editable {
	return []editable{da.dEdges, da.fEdges, da.wLeft, da.wSharp, da.attrs.attrs, da.attrs.uvs}
}

func (da *DirectedEdgeArray) setCheck(on bool) {
	da.dEdges.SetCheck(on)
	da.fEdges.SetCheck(on)
	da.wLeft.SetCheck(on)
	da.wSharp.SetCheck(on)
	da.attrs.setCheck(on)
}

// Array returns the directed edge records for GPU upload.
func (da *DirectedEdgeArray) Array() *packed.Int32Array {
	return da.dEdges
}

// WEdgeArray returns the winged-edge sharpness array for GPU upload.
func (da *DirectedEdgeArray) WEdgeArray() *packed.Float32Array {
	return da.wSharp
}

// Attributes returns the per directed edge attributes.
func (da *DirectedEdgeArray) Attributes() *Attributes {
	return da.attrs
}

// Len returns the number of directed edges plus boundary slots, an upper
// bound on the length of any cycle.
func (da *DirectedEdgeArray) Len() int {
	return da.dEdges.Len() + da.fEdges.Len()
}

// DLen returns the number of directed edges.
func (da *DirectedEdgeArray) DLen() int {
	return da.dEdges.Len()
}

// FLen returns the number of boundary slots including the header.
func (da *DirectedEdgeArray) FLen() int {
	return da.fEdges.Len()
}

// WLen returns the number of winged edges.
func (da *DirectedEdgeArray) WLen() int {
	return da.wLeft.Len()
}

// FaceAndIndex splits a directed edge into its triangle and corner.
func FaceAndIndex(d HalfEdge) (Face, int) {
	return Face(d / 3), int(d % 3)
}

// Pair returns the opposite edge.
func (da *DirectedEdgeArray) Pair(h HalfEdge) HalfEdge {
	if h >= 0 {
		return HalfEdge(da.dEdges.Get(int(h), dePair))
	}
	return HalfEdge(da.fEdges.Get(int(-h), fePair))
}

// SetPair sets the opposite edge of h only.
func (da *DirectedEdgeArray) SetPair(h, pair HalfEdge) {
	if h >= 0 {
		da.dEdges.Set(int(h), dePair, int32(pair))
	} else {
		da.fEdges.Set(int(-h), fePair, int32(pair))
	}
}

// Next returns the following edge of h's triangle or boundary loop.
func (da *DirectedEdgeArray) Next(h HalfEdge) HalfEdge {
	if h >= 0 {
		return h/3*3 + (h+1)%3
	}
	return HalfEdge(da.fEdges.Get(int(-h), feNext))
}

// Prev returns the preceding edge of h's triangle or boundary loop.
func (da *DirectedEdgeArray) Prev(h HalfEdge) HalfEdge {
	if h >= 0 {
		return h/3*3 + (h+2)%3
	}
	return HalfEdge(da.fEdges.Get(int(-h), fePrev))
}

// LinkNext makes next follow h. Only boundary links are stored; the
// implied links inside a triangle are left alone.
func (da *DirectedEdgeArray) LinkNext(h, next HalfEdge) {
	if h < 0 {
		da.fEdges.Set(int(-h), feNext, int32(next))
	}
	if next < 0 {
		da.fEdges.Set(int(-next), fePrev, int32(h))
	}
}

// Origin returns the vertex h leaves.
func (da *DirectedEdgeArray) Origin(h HalfEdge) Vertex {
	if h >= 0 {
		return Vertex(da.dEdges.Get(int(h), deOrigin))
	}
	return da.Origin(da.Next(da.Pair(h)))
}

// SetOrigin sets the vertex directed edge d leaves.
func (da *DirectedEdgeArray) SetOrigin(d HalfEdge, v Vertex) {
	da.dEdges.Set(int(d), deOrigin, int32(v))
}

// Destination returns the vertex h arrives at.
func (da *DirectedEdgeArray) Destination(h HalfEdge) Vertex {
	if h >= 0 {
		return da.Origin(da.Next(h))
	}
	return da.Origin(da.Pair(h))
}

// IsBoundary reports whether h is a boundary edge.
func (da *DirectedEdgeArray) IsBoundary(h HalfEdge) bool {
	return h < 0
}

// WEdge returns the winged edge of h.
func (da *DirectedEdgeArray) WEdge(h HalfEdge) WingedEdge {
	if h < 0 {
		h = da.Pair(h)
	}
	return WingedEdge(da.dEdges.Get(int(h), deWEdge))
}

// SetWEdge sets the winged edge of directed edge d.
func (da *DirectedEdgeArray) SetWEdge(d HalfEdge, w WingedEdge) {
	da.dEdges.Set(int(d), deWEdge, int32(w))
}

// Left returns the directed edge that owns w.
func (da *DirectedEdgeArray) Left(w WingedEdge) HalfEdge {
	return HalfEdge(da.wLeft.Get(int(w), 0))
}

// SetLeft sets the directed edge that owns w.
func (da *DirectedEdgeArray) SetLeft(w WingedEdge, d HalfEdge) {
	da.wLeft.Set(int(w), 0, int32(d))
}

// Sharpness returns the sharpness of h's winged edge.
func (da *DirectedEdgeArray) Sharpness(h HalfEdge) float32 {
	return da.wSharp.Get(int(da.WEdge(h)), 0)
}

// WSharpness returns the sharpness of w.
func (da *DirectedEdgeArray) WSharpness(w WingedEdge) float32 {
	return da.wSharp.Get(int(w), 0)
}

// SetSharpness sets the sharpness of w.
func (da *DirectedEdgeArray) SetSharpness(w WingedEdge, s float32) {
	da.wSharp.Set(int(w), 0, s)
}

// HoleOf returns the hole of boundary edge h.
func (da *DirectedEdgeArray) HoleOf(h HalfEdge) Hole {
	if h >= 0 {
		return Hole(NoFace)
	}
	return Hole(da.fEdges.Get(int(-h), feHole))
}

// SetHoleOf assigns boundary edge h to hole.
func (da *DirectedEdgeArray) SetHoleOf(h HalfEdge, hole Hole) {
	da.fEdges.Set(int(-h), feHole, int32(hole))
}

// AllocTriangle appends three directed edges and returns the first.
func (da *DirectedEdgeArray) AllocTriangle() HalfEdge {
	d := da.dEdges.AllocEx(3)
	da.attrs.allocEx(3)
	return HalfEdge(d)
}

// AllocEx appends n triangles' worth of directed edges without initializing
// them and returns the first edge.
func (da *DirectedEdgeArray) AllocEx(n int) HalfEdge {
	d := da.dEdges.AllocEx(n * 3)
	da.attrs.allocEx(n * 3)
	return HalfEdge(d)
}

// AllocWEdge creates a smooth winged edge owned by d.
func (da *DirectedEdgeArray) AllocWEdge(d HalfEdge) WingedEdge {
	w := WingedEdge(da.wLeft.Alloc())
	da.wSharp.Alloc()
	da.SetLeft(w, d)
	da.SetSharpness(w, 0)
	da.SetWEdge(d, w)
	return w
}

// AllocWEdgeEx appends n uninitialized winged edges and returns the first.
func (da *DirectedEdgeArray) AllocWEdgeEx(n int) WingedEdge {
	w := da.wLeft.AllocEx(n)
	da.wSharp.AllocEx(n)
	return WingedEdge(w)
}

// FreeCount returns the number of released boundary slots.
func (da *DirectedEdgeArray) FreeCount() int {
	return int(da.fEdges.Get(0, fePair))
}

// FreeHead returns the first released boundary slot, or 0 when none is.
func (da *DirectedEdgeArray) FreeHead() HalfEdge {
	return HalfEdge(da.fEdges.Get(0, feNext))
}

// AllocBoundary returns an unassigned boundary edge, reusing a released slot
// when there is one.
func (da *DirectedEdgeArray) AllocBoundary() HalfEdge {
	var f HalfEdge
	if head := da.FreeHead(); head != 0 {
		f = head
		da.fEdges.Set(0, feNext, da.fEdges.Get(int(-f), feNext))
		da.fEdges.Set(0, fePair, int32(da.FreeCount()-1))
	} else {
		f = HalfEdge(-da.fEdges.Alloc())
	}
	da.fEdges.Set(int(-f), feHole, int32(NoFace))
	return f
}

// AllocBoundaryEx appends n uninitialized boundary slots and returns the
// handle of the first.
func (da *DirectedEdgeArray) AllocBoundaryEx(n int) HalfEdge {
	return HalfEdge(-da.fEdges.AllocEx(n))
}

// FreeBoundary releases boundary edge f.
func (da *DirectedEdgeArray) FreeBoundary(f HalfEdge) {
	da.LinkFreeBoundary(f, da.FreeHead())
	da.SetFreeList(f, da.FreeCount()+1)
}

// LinkFreeBoundary marks f released and links it to next without touching
// the list header.
func (da *DirectedEdgeArray) LinkFreeBoundary(f, next HalfEdge) {
	da.fEdges.Set(int(-f), feNext, int32(next))
	da.fEdges.Set(int(-f), feHole, 0)
}

// SetFreeList sets the header of the released boundary slots.
func (da *DirectedEdgeArray) SetFreeList(head HalfEdge, count int) {
	da.fEdges.Set(0, feNext, int32(head))
	da.fEdges.Set(0, fePair, int32(count))
}

// IsFreeBoundary reports whether boundary slot f is released.
func (da *DirectedEdgeArray) IsFreeBoundary(f HalfEdge) bool {
	return da.fEdges.Get(int(-f), feHole) == 0
}

// FreeBoundaries yields the released boundary slots in list order.
func (da *DirectedEdgeArray) FreeBoundaries() iter.Seq[HalfEdge] {
	return func(yield func(HalfEdge) bool) {
		f := da.FreeHead()
		for i := 0; i < da.FreeCount() && f < 0; i++ {
			if !yield(f) {
				return
			}
			f = HalfEdge(da.fEdges.Get(int(-f), feNext))
		}
	}
}

// HalfEdges yields every directed edge.
func (da *DirectedEdgeArray) HalfEdges() iter.Seq[HalfEdge] {
	return func(yield func(HalfEdge) bool) {
		for d := 0; d < da.DLen(); d++ {
			if !yield(HalfEdge(d)) {
				return
			}
		}
	}
}

// WingedEdges yields every winged edge.
func (da *DirectedEdgeArray) WingedEdges() iter.Seq[WingedEdge] {
	return func(yield func(WingedEdge) bool) {
		for w := 0; w < da.WLen(); w++ {
			if !yield(WingedEdge(w)) {
				return
			}
		}
	}
}

// Boundaries returns every live boundary edge.
func (da *DirectedEdgeArray) Boundaries() []HalfEdge {
	var out []HalfEdge
	for s := 1; s < da.FLen(); s++ {
		f := HalfEdge(-s)
		if !da.IsFreeBoundary(f) {
			out = append(out, f)
		}
	}
	return out
}

// SanityCheck verifies pairing, winged edge ownership, boundary links and
// the free list counter.
func (da *DirectedEdgeArray) SanityCheck() bool {
	return len(da.sanityReport()) == 0
}

func (da *DirectedEdgeArray) sanityReport() []string {
	var issues []string
	for d := range da.HalfEdges() {
		p := da.Pair(d)
		if da.Pair(p) != d {
			issues = append(issues, fmt.Sprintf("directed edge %d: pair(pair) is %d", d, da.Pair(p)))
			continue
		}
		if da.Origin(p) != da.Destination(d) {
			issues = append(issues, fmt.Sprintf("directed edge %d: pair %d does not start at its end", d, p))
		}
		w := da.WEdge(d)
		if int(w) < 0 || int(w) >= da.WLen() {
			issues = append(issues, fmt.Sprintf("directed edge %d: winged edge %d out of range", d, w))
			continue
		}
		if l := da.Left(w); l != d && l != p {
			issues = append(issues, fmt.Sprintf("directed edge %d: winged edge %d owned by %d", d, w, l))
		}
		if p >= 0 && da.WEdge(p) != w {
			issues = append(issues, fmt.Sprintf("directed edge %d: pair %d has winged edge %d", d, p, da.WEdge(p)))
		}
	}

	for _, f := range da.Boundaries() {
		if p := da.Pair(f); p < 0 || da.Pair(p) != f {
			issues = append(issues, fmt.Sprintf("boundary edge %d: bad pair %d", f, p))
			continue
		}
		next := da.Next(f)
		if next >= 0 || da.Prev(next) != f {
			issues = append(issues, fmt.Sprintf("boundary edge %d: bad next %d", f, next))
			continue
		}
		if da.Origin(next) != da.Destination(f) {
			issues = append(issues, fmt.Sprintf("boundary edge %d: next %d does not start at its end", f, next))
		}
	}

	n := 0
	for f := range da.FreeBoundaries() {
		if !da.IsFreeBoundary(f) {
			issues = append(issues, fmt.Sprintf("boundary slot %d on free list is live", f))
		}
		n++
	}
	if n != da.FreeCount() {
		issues = append(issues, fmt.Sprintf("free list holds %d boundary slots, counter says %d", n, da.FreeCount()))
	}
	for _, msg := range issues {
		da.log.Warn("directed edge sanity", zap.String("issue", msg))
	}
	return issues
}
