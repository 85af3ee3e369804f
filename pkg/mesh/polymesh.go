package mesh

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/pkg/material"
	"github.com/Faultbox/midgard-mesh/pkg/packed"
)

// PolyMesh is a mesh of arbitrary polygons over an explicit half-edge store.
type PolyMesh struct {
	base
	edges *HalfEdgeArray
	faces *PolygonTable
}

// PolyMeshSnapshot is the transferable form of a PolyMesh.
type PolyMeshSnapshot struct {
	Vertices VertexSnapshot
	Edges    HalfEdgeSnapshot
	Faces    PolygonSnapshot
	Holes    packed.Snapshot[int32]
}

// NewPolyMesh creates an empty polygon mesh whose faces reference materials
// in depot.
func NewPolyMesh(depot material.Depot, opts Options) (*PolyMesh, error) {
	opts = opts.withDefaults()
	log := newLogger(KindPoly)

	edges, err := newHalfEdgeArray(opts.Capacity, opts.UVLayers, log)
	if err != nil {
		return nil, err
	}
	m := &PolyMesh{edges: edges}
	m.log = log
	if m.vertices, err = newVertexTable(edges, opts.Capacity, log); err != nil {
		return nil, err
	}
	if m.faces, err = newPolygonTable(edges, depot, opts.Capacity, log); err != nil {
		return nil, err
	}
	if m.holes, err = newHoleTable(edges, false, log); err != nil {
		return nil, err
	}
	m.wire()
	return m, nil
}

// RehydratePolyMesh rebuilds a PolyMesh from a snapshot. The arrays share
// the snapshot's buffers and start with change tracking off.
func RehydratePolyMesh(s PolyMeshSnapshot, depot material.Depot) (*PolyMesh, error) {
	log := newLogger(KindPoly)
	edges, err := rehydrateHalfEdgeArray(s.Edges, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	m := &PolyMesh{edges: edges}
	m.log = log
	if m.vertices, err = rehydrateVertexTable(edges, s.Vertices, log); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	if m.faces, err = rehydratePolygonTable(edges, depot, s.Faces, log); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	if m.holes, err = rehydrateHoleTable(edges, false, s.Holes, log); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	m.wire()
	return m, nil
}

func (m *PolyMesh) wire() {
	m.journal = append(m.journal, m.vertices.editables()...)
	m.journal = append(m.journal, m.edges.editables()...)
	m.journal = append(m.journal, m.faces.editables()...)
	m.journal = append(m.journal, m.holes.arr)
	m.save = func() func() {
		head, count := m.edges.freeHead, m.edges.freeCount
		return func() {
			m.edges.freeHead, m.edges.freeCount = head, count
		}
	}
}

// Dehydrate returns the transferable form of the mesh.
func (m *PolyMesh) Dehydrate() PolyMeshSnapshot {
	return PolyMeshSnapshot{
		Vertices: m.vertices.Snapshot(),
		Edges:    m.edges.Snapshot(),
		Faces:    m.faces.Snapshot(),
		Holes:    m.holes.Snapshot(),
	}
}

// Kind returns KindPoly.
func (m *PolyMesh) Kind() Kind {
	return KindPoly
}

// Edges returns the half-edge store.
func (m *PolyMesh) Edges() HoleTopology {
	return m.edges
}

// HalfEdges returns the half-edge store.
func (m *PolyMesh) HalfEdges() *HalfEdgeArray {
	return m.edges
}

// Faces returns the polygon table.
func (m *PolyMesh) Faces() FaceTable {
	return m.faces
}

// Polygons returns the polygon table.
func (m *PolyMesh) Polygons() *PolygonTable {
	return m.faces
}

// Attributes returns the per half-edge attributes.
func (m *PolyMesh) Attributes() *Attributes {
	return m.edges.attrs
}

// Usage returns the material references of the faces.
func (m *PolyMesh) Usage() *material.Usage {
	return m.faces.usage
}

// IsEmpty reports whether the mesh has no faces.
func (m *PolyMesh) IsEmpty() bool {
	return m.faces.Len() == 0
}

// SetTracking turns change tracking of every array on or off.
func (m *PolyMesh) SetTracking(on bool) {
	m.vertices.setCheck(on)
	m.edges.setCheck(on)
	m.faces.setCheck(on)
	m.holes.arr.SetCheck(on)
}

// FindHalfEdge returns the half-edge from one vertex to another.
func (m *PolyMesh) FindHalfEdge(from, to Vertex) (HalfEdge, bool) {
	return findHalfEdge(m.vertices, m.edges, from, to)
}

// MakeAdjacent relinks the boundary around a vertex so out follows in.
func (m *PolyMesh) MakeAdjacent(in, out HalfEdge) error {
	return makeAdjacent(m.edges, in, out)
}

// AddFace inserts a polygon with the default material.
func (m *PolyMesh) AddFace(verts ...Vertex) (FaceResult, error) {
	return m.AddFaceEx(verts, m.faces.usage.Default())
}

// AddFaceEx inserts the polygon verts with material mat. Existing boundary
// edges are reused; an edge that already has a face on this side, or a
// vertex without room for another fan, rejects the polygon and leaves the
// mesh exactly as it was.
func (m *PolyMesh) AddFaceEx(verts []Vertex, mat material.Handle) (FaceResult, error) {
	if err := m.checkLoop(verts); err != nil {
		return FaceResult{}, err
	}

	m.begin()
	res, err := m.addPolygon(verts, mat)
	if err != nil {
		m.rollback()
		m.log.Debug("polygon rejected", zap.Int("sides", len(verts)), zap.Error(err))
		return FaceResult{}, err
	}
	m.commit()
	m.faces.usage.AddRef(mat, 1)
	return res, nil
}

func (m *PolyMesh) addPolygon(verts []Vertex, mat material.Handle) (FaceResult, error) {
	f := m.faces.alloc(mat)
	loop := make([]HalfEdge, 0, len(verts))

	prevHalf, nextHalf := NoHalfEdge, NoHalfEdge
	for i, v0 := range verts {
		j := i + 1
		if j == len(verts) {
			j = 0
			nextHalf = loop[0]
		}
		v1 := verts[j]

		h, found := m.FindHalfEdge(v0, v1)
		if !found {
			var err error
			if h, err = m.addEdge(v0, v1, prevHalf, nextHalf); err != nil {
				return FaceResult{}, err
			}
		} else if !m.edges.IsBoundary(h) {
			return FaceResult{}, fmt.Errorf("%w: %d -> %d", ErrNonManifold, v0, v1)
		} else if m.edges.Sharpness(h) < 0 {
			// a former boundary edge becomes interior
			m.edges.SetSharpness(m.edges.WEdge(h), 0)
		}
		prevHalf = h
		loop = append(loop, h)
		m.edges.SetFace(h, f)
	}

	for i, in := range loop {
		out := loop[(i+1)%len(loop)]
		if err := makeAdjacent(m.edges, in, out); err != nil {
			return FaceResult{}, errors.Join(ErrNonManifold, err)
		}
	}

	m.faces.SetHalfEdge(f, loop[0])
	return FaceResult{Face: f, Loop: loop}, nil
}

// addEdge creates the winged edge beg->end and links it into the edge
// cycles of both vertices, directly after prevHalf or before nextHalf when
// those are known.
func (m *PolyMesh) addEdge(beg, end Vertex, prevHalf, nextHalf HalfEdge) (HalfEdge, error) {
	left := m.edges.AllocWEdge(beg, end)
	right := left + 1

	if prevHalf >= 0 {
		m.edges.LinkNext(right, m.edges.Next(prevHalf))
		m.edges.LinkNext(prevHalf, left)
	} else if err := m.vertices.LinkEdge(beg, left, right); err != nil {
		m.edges.Free(left)
		return 0, err
	}

	if nextHalf >= 0 {
		m.edges.LinkNext(m.edges.Prev(nextHalf), right)
		m.edges.LinkNext(left, nextHalf)
	} else if err := m.vertices.LinkEdge(end, right, left); err != nil {
		m.vertices.UnlinkEdge(beg, left, right)
		m.edges.Free(left)
		return 0, err
	}
	return left, nil
}

// DoneEdit closes an editing batch: boundary loops become holes with
// infinitely sharp edges, then valence and crease are recomputed.
func (m *PolyMesh) DoneEdit() {
	assignHoles(m.edges, m.holes)
	m.vertices.ComputeValence()
}

// SanityCheck reports whether every table is consistent. Violations are
// logged.
func (m *PolyMesh) SanityCheck() bool {
	return len(m.SanityReport()) == 0
}

// SanityReport returns every consistency violation found.
func (m *PolyMesh) SanityReport() []string {
	var issues []string
	issues = append(issues, m.vertices.sanityReport()...)
	issues = append(issues, m.edges.sanityReport()...)
	issues = append(issues, m.faces.sanityReport()...)
	issues = append(issues, m.holes.sanityReport()...)
	return issues
}

// Stat counts the records of the mesh.
func (m *PolyMesh) Stat() Stat {
	s := stat(m)
	s.HalfEdges = m.edges.Len()
	s.WingedEdges = m.edges.WLen()
	s.FreeWingedEdges = m.edges.FreeCount()
	return s
}

// ComputeNormals sets the corner and face normals from the positions.
func (m *PolyMesh) ComputeNormals() {
	computeNormals(m.vertices, m.edges, m.faces, m.edges.attrs)
}

// Reserve appends uninitialized records for subdivision output: vertices,
// winged edges (two half-edges each) and polygons. It returns the first
// index of each.
func (m *PolyMesh) Reserve(vertices, wEdges, faces int) (Vertex, WingedEdge, Face) {
	return m.vertices.AllocEx(vertices), m.edges.AllocEx(wEdges), m.faces.allocEx(faces)
}

// AssignMaterial sets the material of f without touching references. The
// caller accounts for them through Usage.
func (m *PolyMesh) AssignMaterial(f Face, mat material.Handle) {
	m.faces.setMaterialRaw(f, mat)
}

// MakePullBuffer recomputes normals and returns the draw input.
func (m *PolyMesh) MakePullBuffer() PullBuffer {
	return makePullBuffer(m)
}

// AttributeInterpolator returns an accumulator over the half-edge
// attributes.
func (m *PolyMesh) AttributeInterpolator() *Interpolator {
	return m.edges.attrs.Interpolator()
}
