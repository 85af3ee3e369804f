package mesh

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/pkg/math"
	"github.com/Faultbox/midgard-mesh/pkg/packed"
)

const (
	vertexValence = 0
	vertexCrease  = 1
)

// VertexTable stores one outgoing half-edge, valence, crease and position per
// vertex. A vertex without an outgoing half-edge is isolated.
type VertexTable struct {
	topo       EdgeTopology
	hEdge      *packed.Int32Array
	attr       *packed.Float32Array
	pts        *packed.Float32Array
	valenceMax int
	log        *zap.Logger
}

// VertexSnapshot is the transferable form of a VertexTable.
type VertexSnapshot struct {
	HalfEdges  packed.Snapshot[int32]
	Attrs      packed.Snapshot[float32]
	Points     packed.Snapshot[float32]
	ValenceMax int
}

func newVertexTable(topo EdgeTopology, capacity int, log *zap.Logger) (*VertexTable, error) {
	hEdge, err := packed.NewInt32Array(1, 1, capacity)
	if err != nil {
		return nil, err
	}
	attr, err := packed.NewFloat32Array(2, 2, capacity)
	if err != nil {
		return nil, err
	}
	pts, err := packed.NewFloat32Array(3, 3, capacity)
	if err != nil {
		return nil, err
	}
	return &VertexTable{topo: topo, hEdge: hEdge, attr: attr, pts: pts, log: log}, nil
}

func rehydrateVertexTable(topo EdgeTopology, s VertexSnapshot, log *zap.Logger) (*VertexTable, error) {
	hEdge, err := packed.RehydrateInt32(s.HalfEdges)
	if err != nil {
		return nil, fmt.Errorf("vertex half-edges: %w", err)
	}
	attr, err := packed.RehydrateFloat32(s.Attrs)
	if err != nil {
		return nil, fmt.Errorf("vertex attributes: %w", err)
	}
	pts, err := packed.RehydrateFloat32(s.Points)
	if err != nil {
		return nil, fmt.Errorf("vertex points: %w", err)
	}
	if hEdge.Len() != attr.Len() || hEdge.Len() != pts.Len() {
		return nil, fmt.Errorf("%w: vertex arrays disagree on length", ErrBadSnapshot)
	}
	return &VertexTable{topo: topo, hEdge: hEdge, attr: attr, pts: pts, valenceMax: s.ValenceMax, log: log}, nil
}

// Snapshot returns the transferable form.
func (vt *VertexTable) Snapshot() VertexSnapshot {
	return VertexSnapshot{
		HalfEdges:  vt.hEdge.Snapshot(),
		Attrs:      vt.attr.Snapshot(),
		Points:     vt.pts.Snapshot(),
		ValenceMax: vt.valenceMax,
	}
}

func (vt *VertexTable) editables() []editable {
	return []editable{vt.hEdge, vt.attr, vt.pts}
}

func (vt *VertexTable) setCheck(on bool) {
	vt.hEdge.SetCheck(on)
	vt.attr.SetCheck(on)
	vt.pts.SetCheck(on)
}

// Alloc appends an isolated vertex.
func (vt *VertexTable) Alloc() Vertex {
	v := vt.hEdge.Alloc()
	vt.attr.Alloc()
	vt.pts.Alloc()
	vt.hEdge.Set(v, 0, int32(NoHalfEdge))
	return Vertex(v)
}

// AllocEx appends n vertices and returns the first. Their half-edge slots
// are zero and must be set by the caller.
func (vt *VertexTable) AllocEx(n int) Vertex {
	v := vt.hEdge.AllocEx(n)
	vt.attr.AllocEx(n)
	vt.pts.AllocEx(n)
	return Vertex(v)
}

// Len returns the number of vertex records.
func (vt *VertexTable) Len() int {
	return vt.hEdge.Len()
}

// IsFree reports whether v has no edges.
func (vt *VertexTable) IsFree(v Vertex) bool {
	return vt.HalfEdge(v) < 0
}

// HalfEdge returns an outgoing half-edge of v, or NoHalfEdge.
func (vt *VertexTable) HalfEdge(v Vertex) HalfEdge {
	return HalfEdge(vt.hEdge.Get(int(v), 0))
}

// SetHalfEdge sets the outgoing half-edge of v.
func (vt *VertexTable) SetHalfEdge(v Vertex, h HalfEdge) {
	vt.hEdge.Set(int(v), 0, int32(h))
}

// Valence returns the number of edges around v.
func (vt *VertexTable) Valence(v Vertex) int {
	return int(vt.attr.Get(int(v), vertexValence))
}

// SetValence sets the valence of v.
func (vt *VertexTable) SetValence(v Vertex, n int) {
	vt.attr.Set(int(v), vertexValence, float32(n))
}

// Crease returns the crease of v: -1 corner, 0 smooth, otherwise the
// sharpness of its crease.
func (vt *VertexTable) Crease(v Vertex) float32 {
	return vt.attr.Get(int(v), vertexCrease)
}

// SetCrease sets the crease of v.
func (vt *VertexTable) SetCrease(v Vertex, c float32) {
	vt.attr.Set(int(v), vertexCrease, c)
}

// Pt returns the position of v.
func (vt *VertexTable) Pt(v Vertex) math.Vec3 {
	return math.Vec3FromArray(vt.pts.GetVec3(int(v), 0))
}

// SetPt sets the position of v.
func (vt *VertexTable) SetPt(v Vertex, p math.Vec3) {
	vt.pts.SetVec3(int(v), 0, p.Array())
}

// CopyPt copies the position of src in from to v.
func (vt *VertexTable) CopyPt(v Vertex, from *VertexTable, src Vertex) {
	vt.pts.SetVec3(int(v), 0, from.pts.GetVec3(int(src), 0))
}

// PositionBuffer returns the used positions, three floats per vertex.
func (vt *VertexTable) PositionBuffer() []float32 {
	return vt.pts.UsedBuffer()
}

// Points returns the position array for GPU upload.
func (vt *VertexTable) Points() *packed.Float32Array {
	return vt.pts
}

// HalfEdges returns the half-edge array for GPU upload.
func (vt *VertexTable) HalfEdges() *packed.Int32Array {
	return vt.hEdge
}

// Attrs returns the valence and crease array for GPU upload.
func (vt *VertexTable) Attrs() *packed.Float32Array {
	return vt.attr
}

// ValenceMax returns the largest valence seen by ComputeValence.
func (vt *VertexTable) ValenceMax() int {
	return vt.valenceMax
}

// SetValenceMax sets the largest valence, used when a mesh is built without
// ComputeValence, for example by subdivision.
func (vt *VertexTable) SetValenceMax(n int) {
	vt.valenceMax = n
}

// OutEdges iterates the half-edges leaving v.
func (vt *VertexTable) OutEdges(v Vertex) *EdgeIter {
	h := vt.HalfEdge(v)
	return newEdgeIter(vt.topo, h, stepOut, h < 0)
}

// InEdges iterates the half-edges arriving at v.
func (vt *VertexTable) InEdges(v Vertex) *EdgeIter {
	h := vt.HalfEdge(v)
	return newEdgeIter(vt.topo, h, stepIn, h < 0)
}

// FindFreeInEdge returns a boundary half-edge arriving at v.
func (vt *VertexTable) FindFreeInEdge(v Vertex) (HalfEdge, bool) {
	it := vt.InEdges(v)
	for in, ok := it.Next(); ok; in, ok = it.Next() {
		if vt.topo.IsBoundary(in) {
			return in, true
		}
	}
	return 0, false
}

// LinkEdge inserts the half-edge pair (out, in) into the edge cycle of v,
// where out leaves v and in arrives at v.
func (vt *VertexTable) LinkEdge(v Vertex, out, in HalfEdge) error {
	outEdge := vt.HalfEdge(v)
	if outEdge < 0 {
		vt.SetHalfEdge(v, out)
		return nil
	}

	free, ok := vt.FindFreeInEdge(v)
	if !ok {
		vt.log.Debug("no free in-edge", zap.Int32("vertex", int32(v)))
		return fmt.Errorf("%w: %d", ErrComplexVertex, v)
	}
	next := vt.topo.Next(free)
	vt.topo.LinkNext(free, out)
	vt.topo.LinkNext(in, next)
	if out < outEdge {
		vt.SetHalfEdge(v, out)
	}
	return nil
}

// UnlinkEdge removes the half-edge pair (out, in) from the edge cycle of v.
// It reverses LinkEdge.
func (vt *VertexTable) UnlinkEdge(v Vertex, out, in HalfEdge) {
	prev := vt.topo.Prev(out)
	if vt.HalfEdge(v) == out {
		if prev == in {
			vt.SetHalfEdge(v, NoHalfEdge)
			return
		}
		vt.SetHalfEdge(v, vt.topo.Pair(prev))
	}
	vt.topo.LinkNext(prev, vt.topo.Next(in))
}

// ComputeValence recomputes valence and crease of every vertex and the
// largest valence. A vertex touching a boundary or three or more sharp edges
// is a corner, exactly two sharp edges make a crease with the smaller
// sharpness, anything else is smooth.
func (vt *VertexTable) ComputeValence() {
	vt.valenceMax = 0
	for i := 0; i < vt.Len(); i++ {
		v := Vertex(i)
		if vt.IsFree(v) {
			continue
		}
		valence, sharp := 0, 0
		corner := false
		var minSharp float32
		it := vt.OutEdges(v)
		for h, ok := it.Next(); ok; h, ok = it.Next() {
			valence++
			s := vt.topo.Sharpness(h)
			switch {
			case s < 0:
				corner = true
			case s > 0:
				if sharp == 0 || s < minSharp {
					minSharp = s
				}
				sharp++
			}
		}

		vt.SetValence(v, valence)
		switch {
		case corner || sharp > 2:
			vt.SetCrease(v, -1)
		case sharp == 2:
			vt.SetCrease(v, minSharp)
		default:
			vt.SetCrease(v, 0)
		}
		if valence > vt.valenceMax {
			vt.valenceMax = valence
		}
	}
}

// SanityCheck verifies that every out-edge cycle closes and only holds
// half-edges leaving its vertex.
func (vt *VertexTable) SanityCheck() bool {
	return len(vt.sanityReport()) == 0
}

func (vt *VertexTable) sanityReport() []string {
	var issues []string
	limit := vt.topo.Len() + 1
	for i := 0; i < vt.Len(); i++ {
		v := Vertex(i)
		start := vt.HalfEdge(v)
		if start < 0 {
			continue
		}
		h := start
		steps := 0
		for {
			if o := vt.topo.Origin(h); o != v {
				issues = append(issues, fmt.Sprintf("vertex %d: out-edge %d starts at %d", v, h, o))
				break
			}
			h = vt.topo.Next(vt.topo.Pair(h))
			steps++
			if h == start {
				break
			}
			if steps > limit {
				issues = append(issues, fmt.Sprintf("vertex %d: out-edge cycle does not close", v))
				break
			}
		}
	}
	for _, msg := range issues {
		vt.log.Warn("vertex sanity", zap.String("issue", msg))
	}
	return issues
}

// Stat returns the number of vertex records and how many are isolated.
func (vt *VertexTable) Stat() (total, isolated int) {
	for i := 0; i < vt.Len(); i++ {
		if vt.IsFree(Vertex(i)) {
			isolated++
		}
	}
	return vt.Len(), isolated
}
