package mesh

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/pkg/material"
	"github.com/Faultbox/midgard-mesh/pkg/packed"
)

// TriMesh is a triangle mesh over directed edges.
type TriMesh struct {
	base
	edges *DirectedEdgeArray
	faces *TriangleTable
}

// TriMeshSnapshot is the transferable form of a TriMesh.
type TriMeshSnapshot struct {
	Vertices VertexSnapshot
	Edges    DirectedEdgeSnapshot
	Faces    TriangleSnapshot
	Holes    packed.Snapshot[int32]
}

// NewTriMesh creates an empty triangle mesh whose faces reference materials
// in depot.
func NewTriMesh(depot material.Depot, opts Options) (*TriMesh, error) {
	opts = opts.withDefaults()
	log := newLogger(KindTri)

	edges, err := newDirectedEdgeArray(opts.Capacity, opts.UVLayers, log)
	if err != nil {
		return nil, err
	}
	m := &TriMesh{edges: edges}
	m.log = log
	if m.vertices, err = newVertexTable(edges, opts.Capacity, log); err != nil {
		return nil, err
	}
	if m.faces, err = newTriangleTable(edges, depot, opts.Capacity, log); err != nil {
		return nil, err
	}
	if m.holes, err = newHoleTable(edges, true, log); err != nil {
		return nil, err
	}
	m.wire()
	return m, nil
}

// RehydrateTriMesh rebuilds a TriMesh from a snapshot. The arrays share the
// snapshot's buffers and start with change tracking off.
func RehydrateTriMesh(s TriMeshSnapshot, depot material.Depot) (*TriMesh, error) {
	log := newLogger(KindTri)
	edges, err := rehydrateDirectedEdgeArray(s.Edges, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	m := &TriMesh{edges: edges}
	m.log = log
	if m.vertices, err = rehydrateVertexTable(edges, s.Vertices, log); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	if m.faces, err = rehydrateTriangleTable(edges, depot, s.Faces, log); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	if m.faces.Len()*3 != edges.DLen() {
		return nil, fmt.Errorf("%w: %d triangles for %d directed edges", ErrBadSnapshot, m.faces.Len(), edges.DLen())
	}
	if m.holes, err = rehydrateHoleTable(edges, true, s.Holes, log); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	m.wire()
	return m, nil
}

func (m *TriMesh) wire() {
	m.journal = append(m.journal, m.vertices.editables()...)
	m.journal = append(m.journal, m.edges.editables()...)
	m.journal = append(m.journal, m.faces.editables()...)
	m.journal = append(m.journal, m.holes.arr)
}

// Dehydrate returns the transferable form of the mesh.
func (m *TriMesh) Dehydrate() TriMeshSnapshot {
	return TriMeshSnapshot{
		Vertices: m.vertices.Snapshot(),
		Edges:    m.edges.Snapshot(),
		Faces:    m.faces.Snapshot(),
		Holes:    m.holes.Snapshot(),
	}
}

// Kind returns KindTri.
func (m *TriMesh) Kind() Kind {
	return KindTri
}

// Edges returns the directed edge store.
func (m *TriMesh) Edges() HoleTopology {
	return m.edges
}

// DirectedEdges returns the directed edge store.
func (m *TriMesh) DirectedEdges() *DirectedEdgeArray {
	return m.edges
}

// Faces returns the triangle table.
func (m *TriMesh) Faces() FaceTable {
	return m.faces
}

// Triangles returns the triangle table.
func (m *TriMesh) Triangles() *TriangleTable {
	return m.faces
}

// Attributes returns the per directed edge attributes.
func (m *TriMesh) Attributes() *Attributes {
	return m.edges.attrs
}

// Usage returns the material references of the faces.
func (m *TriMesh) Usage() *material.Usage {
	return m.faces.usage
}

// AttributeInterpolator returns an accumulator over the edge attributes.
func (m *TriMesh) AttributeInterpolator() *Interpolator {
	return m.edges.attrs.Interpolator()
}

// IsEmpty reports whether the mesh has no triangles.
func (m *TriMesh) IsEmpty() bool {
	return m.faces.Len() == 0
}

// SetTracking turns change tracking of every array on or off.
func (m *TriMesh) SetTracking(on bool) {
	m.vertices.setCheck(on)
	m.edges.setCheck(on)
	m.faces.setCheck(on)
	m.holes.arr.SetCheck(on)
}

// FindHalfEdge returns the edge from one vertex to another, directed or
// boundary.
func (m *TriMesh) FindHalfEdge(from, to Vertex) (HalfEdge, bool) {
	return findHalfEdge(m.vertices, m.edges, from, to)
}

// MakeAdjacent relinks the boundary around a vertex so out follows in.
func (m *TriMesh) MakeAdjacent(in, out HalfEdge) error {
	return makeAdjacent(m.edges, in, out)
}

// AddFace inserts a triangle with the default material.
func (m *TriMesh) AddFace(verts ...Vertex) (FaceResult, error) {
	return m.AddFaceEx(verts, m.faces.usage.Default())
}

// AddFaceEx inserts the triangle verts with material mat. A boundary edge
// running along a side is glued to it; a side already taken by another
// triangle in the same direction, or a closed vertex fan, rejects the
// triangle and leaves the mesh exactly as it was.
func (m *TriMesh) AddFaceEx(verts []Vertex, mat material.Handle) (FaceResult, error) {
	if len(verts) != 3 {
		return FaceResult{}, fmt.Errorf("%w: %d vertices", ErrNotTriangle, len(verts))
	}
	if err := m.checkLoop(verts); err != nil {
		return FaceResult{}, err
	}

	m.begin()
	res, err := m.addTriangle([3]Vertex(verts), mat)
	if err != nil {
		m.rollback()
		m.log.Debug("triangle rejected", zap.Int32s("vertices", []int32{int32(verts[0]), int32(verts[1]), int32(verts[2])}), zap.Error(err))
		return FaceResult{}, err
	}
	m.commit()
	m.faces.usage.AddRef(mat, 1)
	return res, nil
}

// gap is where a new triangle's corner is spliced into the boundary cycle
// of a vertex: in is a boundary edge arriving at the vertex, out its
// successor leaving it.
type gap struct {
	in, out  HalfEdge
	isolated bool
}

func (m *TriMesh) addTriangle(v [3]Vertex, mat material.Handle) (FaceResult, error) {
	da := m.edges

	// boundary edges running along the new triangle's sides
	var glued [3]bool
	var along [3]HalfEdge
	for i := range 3 {
		h, found := m.FindHalfEdge(v[i], v[(i+1)%3])
		if !found {
			continue
		}
		if h >= 0 {
			return FaceResult{}, fmt.Errorf("%w: %d -> %d", ErrNonManifold, v[i], v[(i+1)%3])
		}
		glued[i], along[i] = true, h
	}

	for i := range 3 {
		p := (i + 2) % 3
		if glued[p] && glued[i] {
			if err := makeAdjacent(da, along[p], along[i]); err != nil {
				return FaceResult{}, err
			}
		}
	}

	var gaps [3]gap
	for i := range 3 {
		p := (i + 2) % 3
		switch {
		case glued[i]:
			gaps[i] = gap{in: da.Prev(along[i]), out: along[i]}
		case glued[p]:
			gaps[i] = gap{in: along[p], out: da.Next(along[p])}
		case m.vertices.IsFree(v[i]):
			gaps[i] = gap{isolated: true}
		default:
			in, ok := m.vertices.FindFreeInEdge(v[i])
			if !ok {
				return FaceResult{}, fmt.Errorf("%w: %d", ErrComplexVertex, v[i])
			}
			gaps[i] = gap{in: in, out: da.Next(in)}
		}
	}

	t := da.AllocTriangle()
	f := m.faces.alloc(mat)
	var tri, twin [3]HalfEdge
	for i := range 3 {
		tri[i] = t + HalfEdge(i)
		da.SetOrigin(tri[i], v[i])
		twin[i] = da.AllocBoundary()
		da.SetPair(tri[i], twin[i])
		da.SetPair(twin[i], tri[i])
	}

	// the twins run against the triangle: twin i arrives at v[i] and is
	// followed by twin i-1 unless a gap sits in between
	for i := range 3 {
		p := (i + 2) % 3
		if gaps[i].isolated {
			da.LinkNext(twin[i], twin[p])
			m.vertices.SetHalfEdge(v[i], tri[i])
			continue
		}
		da.LinkNext(gaps[i].in, twin[p])
		da.LinkNext(twin[i], gaps[i].out)
	}

	// a glued side now forms a detached two-edge loop with its twin
	for i := range 3 {
		if !glued[i] {
			da.AllocWEdge(tri[i])
			continue
		}
		c := da.Pair(along[i])
		da.SetPair(tri[i], c)
		da.SetPair(c, tri[i])
		w := da.WEdge(c)
		da.SetWEdge(tri[i], w)
		if da.WSharpness(w) < 0 {
			da.SetSharpness(w, 0)
		}
		da.FreeBoundary(along[i])
		da.FreeBoundary(twin[i])
	}

	return FaceResult{Face: f, Loop: tri[:]}, nil
}

// DoneEdit closes an editing batch: boundary loops become holes with
// infinitely sharp edges, then valence and crease are recomputed.
func (m *TriMesh) DoneEdit() {
	assignHoles(m.edges, m.holes)
	m.vertices.ComputeValence()
}

// SanityCheck reports whether every table is consistent. Violations are
// logged.
func (m *TriMesh) SanityCheck() bool {
	return len(m.SanityReport()) == 0
}

// SanityReport returns every consistency violation found.
func (m *TriMesh) SanityReport() []string {
	var issues []string
	issues = append(issues, m.vertices.sanityReport()...)
	issues = append(issues, m.edges.sanityReport()...)
	issues = append(issues, m.holes.sanityReport()...)
	return issues
}

// Stat counts the records of the mesh.
func (m *TriMesh) Stat() Stat {
	s := stat(m)
	s.HalfEdges = m.edges.DLen()
	s.WingedEdges = m.edges.WLen()
	s.FreeBoundaryEdges = m.edges.FreeCount()
	return s
}

// ComputeNormals sets the corner and face normals from the positions.
func (m *TriMesh) ComputeNormals() {
	computeNormals(m.vertices, m.edges, m.faces, m.edges.attrs)
}

// MakePullBuffer recomputes normals and returns the draw input.
func (m *TriMesh) MakePullBuffer() PullBuffer {
	return makePullBuffer(m)
}

// Reserve appends uninitialized records for subdivision output: vertices,
// winged edges and triangles (three directed edges each). It returns the
// first index of each.
func (m *TriMesh) Reserve(vertices, wEdges, faces int) (Vertex, WingedEdge, Face) {
	v := m.vertices.AllocEx(vertices)
	w := m.edges.AllocWEdgeEx(wEdges)
	m.edges.AllocEx(faces)
	return v, w, m.faces.allocEx(faces)
}

// AssignMaterial sets the material of f without touching references. The
// caller accounts for them through Usage.
func (m *TriMesh) AssignMaterial(f Face, mat material.Handle) {
	m.faces.setMaterialRaw(f, mat)
}
