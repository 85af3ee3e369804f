package mesh

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/internal/logger"
	"github.com/Faultbox/midgard-mesh/pkg/material"
	"github.com/Faultbox/midgard-mesh/pkg/math"
)

// Kind tells the two mesh representations apart.
type Kind uint8

const (
	// KindPoly is a PolyMesh.
	KindPoly Kind = iota
	// KindTri is a TriMesh.
	KindTri
)

func (k Kind) String() string {
	switch k {
	case KindPoly:
		return "poly"
	case KindTri:
		return "tri"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Options configures a new mesh.
type Options struct {
	// Capacity is the number of records each table reserves up front.
	Capacity int
	// UVLayers is the number of texture coordinate layers, at least one.
	UVLayers int
}

func (o Options) withDefaults() Options {
	if o.UVLayers < 1 {
		o.UVLayers = 1
	}
	if o.Capacity < 0 {
		o.Capacity = 0
	}
	return o
}

// FaceResult is a successfully inserted face and its half-edge loop.
type FaceResult struct {
	Face Face
	Loop []HalfEdge
}

// Mesh is the behavior PolyMesh and TriMesh share.
type Mesh interface {
	Kind() Kind
	Vertices() *VertexTable
	Holes() *HoleTable
	Edges() HoleTopology
	Faces() FaceTable
	Attributes() *Attributes
	AttributeInterpolator() *Interpolator
	Usage() *material.Usage

	AddVertex(p math.Vec3) Vertex
	AddFace(verts ...Vertex) (FaceResult, error)
	AddFaceEx(verts []Vertex, m material.Handle) (FaceResult, error)
	FindHalfEdge(from, to Vertex) (HalfEdge, bool)
	DoneEdit()

	IsEmpty() bool
	SanityCheck() bool
	SanityReport() []string
	Stat() Stat

	ComputeNormals()
	MakePullBuffer() PullBuffer
	TransformPoints(m math.Mat4)
	SetTracking(on bool)

	AddNameGroup(name string, start Face) *NameGroup
	NameGroups() []*NameGroup
}

var (
	_ Mesh = (*PolyMesh)(nil)
	_ Mesh = (*TriMesh)(nil)
)

// FaceTable is the face side of a mesh.
type FaceTable interface {
	FaceTopology
	Edges(f Face) *EdgeIter
	EdgeCount(f Face) int
	Normal(f Face) math.Vec3
	SetNormal(f Face, n math.Vec3)
	SetMaterial(f Face, m material.Handle)
	Usage() *material.Usage
}

// NameGroup labels the faces [Start, End) of a mesh.
type NameGroup struct {
	Name  string
	Start Face
	End   Face
}

// Finalize closes the group at end.
func (g *NameGroup) Finalize(end Face) {
	g.End = end
}

// Stat counts the records of a mesh.
type Stat struct {
	Vertices          int
	IsolatedVertices  int
	HalfEdges         int
	WingedEdges       int
	FreeWingedEdges   int
	Faces             int
	Holes             int
	FreeHoles         int
	BoundaryEdges     int
	FreeBoundaryEdges int
	ValenceMax        int
}

func (s Stat) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Vertices Count: %d (isolated %d);\n", s.Vertices, s.IsolatedVertices)
	fmt.Fprintf(&b, "HalfEdges Count: %d;\n", s.HalfEdges)
	fmt.Fprintf(&b, "WingedEdges Count: %d (free %d);\n", s.WingedEdges, s.FreeWingedEdges)
	fmt.Fprintf(&b, "Faces Count: %d;\n", s.Faces)
	fmt.Fprintf(&b, "Holes Count: %d (free %d);\n", s.Holes, s.FreeHoles)
	fmt.Fprintf(&b, "Boundary Edges Count: %d (free %d);\n", s.BoundaryEdges, s.FreeBoundaryEdges)
	fmt.Fprintf(&b, "Valence Max: %d;", s.ValenceMax)
	return b.String()
}

type editable interface {
	BeginEdit()
	CommitEdit()
	RollbackEdit()
}

// base holds the tables both mesh kinds own.
type base struct {
	vertices *VertexTable
	holes    *HoleTable
	groups   []*NameGroup
	log      *zap.Logger

	journal []editable
	// scalar state outside the packed arrays, restored on rollback
	save    func() func()
	restore func()
}

func newLogger(kind Kind) *zap.Logger {
	return logger.Named("mesh").With(zap.Stringer("kind", kind))
}

func (b *base) begin() {
	for _, e := range b.journal {
		e.BeginEdit()
	}
	b.restore = nil
	if b.save != nil {
		b.restore = b.save()
	}
}

func (b *base) commit() {
	for _, e := range b.journal {
		e.CommitEdit()
	}
	b.restore = nil
}

func (b *base) rollback() {
	for _, e := range b.journal {
		e.RollbackEdit()
	}
	if b.restore != nil {
		b.restore()
		b.restore = nil
	}
}

// Vertices returns the vertex table.
func (b *base) Vertices() *VertexTable {
	return b.vertices
}

// Holes returns the hole table.
func (b *base) Holes() *HoleTable {
	return b.holes
}

// AddVertex appends an isolated vertex at p.
func (b *base) AddVertex(p math.Vec3) Vertex {
	v := b.vertices.Alloc()
	b.vertices.SetPt(v, p)
	return v
}

// AddNameGroup opens a face group starting at start.
func (b *base) AddNameGroup(name string, start Face) *NameGroup {
	g := &NameGroup{Name: name, Start: start, End: start}
	b.groups = append(b.groups, g)
	return g
}

// NameGroups returns the face groups in creation order.
func (b *base) NameGroups() []*NameGroup {
	return b.groups
}

// TransformPoints applies m to every vertex position.
func (b *base) TransformPoints(m math.Mat4) {
	for i := 0; i < b.vertices.Len(); i++ {
		v := Vertex(i)
		b.vertices.SetPt(v, m.TransformPoint(b.vertices.Pt(v)))
	}
}

func (b *base) checkLoop(verts []Vertex) error {
	if len(verts) < 3 {
		return fmt.Errorf("%w: %d vertices", ErrBadPolygon, len(verts))
	}
	n := b.vertices.Len()
	for i, v := range verts {
		if v < 0 || int(v) >= n {
			return fmt.Errorf("%w: vertex %d out of range", ErrBadPolygon, v)
		}
		for _, u := range verts[:i] {
			if u == v {
				return fmt.Errorf("%w: vertex %d repeated", ErrBadPolygon, v)
			}
		}
	}
	return nil
}

// findHalfEdge searches the out-edges of from for one arriving at to.
func findHalfEdge(vt *VertexTable, topo EdgeTopology, from, to Vertex) (HalfEdge, bool) {
	it := vt.OutEdges(from)
	for h, ok := it.Next(); ok; h, ok = it.Next() {
		if topo.Destination(h) == to {
			return h, true
		}
	}
	return 0, false
}

// assignHoles groups every unassigned boundary edge into a hole and makes
// its winged edge infinitely sharp. Existing holes are released first so
// the ids are handed out again in loop order.
func assignHoles(topo HoleTopology, holes *HoleTable) {
	holes.releaseAll()
	boundaries := topo.Boundaries()
	for _, h := range boundaries {
		topo.SetHoleOf(h, Hole(NoFace))
	}
	for _, h := range boundaries {
		if topo.HoleOf(h) != Hole(NoFace) {
			continue
		}
		hole := holes.Alloc()
		holes.SetHalfEdge(hole, h)
		it := LoopIter(topo, h)
		for e, ok := it.Next(); ok; e, ok = it.Next() {
			topo.SetHoleOf(e, hole)
			setSharpness(topo, e, -1)
		}
	}
}

func setSharpness(topo EdgeTopology, h HalfEdge, s float32) {
	switch t := topo.(type) {
	case *HalfEdgeArray:
		t.SetSharpness(t.WEdge(h), s)
	case *DirectedEdgeArray:
		t.SetSharpness(t.WEdge(h), s)
	}
}

// computeNormals sets every face corner's normal and each face normal.
func computeNormals(vt *VertexTable, topo EdgeTopology, faces FaceTable, attrs *Attributes) {
	for i := 0; i < faces.Len(); i++ {
		f := Face(i)
		if faces.IsFree(f) {
			continue
		}
		var newell math.Vec3
		it := faces.Edges(f)
		for h, ok := it.Next(); ok; h, ok = it.Next() {
			p0 := vt.Pt(topo.Origin(topo.Prev(h)))
			p1 := vt.Pt(topo.Origin(h))
			p2 := vt.Pt(topo.Origin(topo.Next(h)))
			attrs.SetNormal(h, p2.Sub(p1).Cross(p0.Sub(p1)).Normalize())

			newell.X += (p1.Y - p2.Y) * (p1.Z + p2.Z)
			newell.Y += (p1.Z - p2.Z) * (p1.X + p2.X)
			newell.Z += (p1.X - p2.X) * (p1.Y + p2.Y)
		}
		faces.SetNormal(f, newell.Normalize())
	}
}

func stat(m Mesh) Stat {
	var s Stat
	s.Vertices, s.IsolatedVertices = m.Vertices().Stat()
	s.Faces = m.Faces().Len()
	s.Holes = len(m.Holes().Holes())
	s.FreeHoles = m.Holes().FreeCount()
	s.BoundaryEdges = len(m.Edges().Boundaries())
	s.ValenceMax = m.Vertices().ValenceMax()
	return s
}
