package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-mesh/pkg/material"
	"github.com/Faultbox/midgard-mesh/pkg/math"
)

func newMesh(t *testing.T, kind Kind) Mesh {
	t.Helper()
	depot := material.NewMemoryDepot()
	var (
		m   Mesh
		err error
	)
	switch kind {
	case KindPoly:
		m, err = NewPolyMesh(depot, Options{Capacity: 16})
	default:
		m, err = NewTriMesh(depot, Options{Capacity: 16})
	}
	require.NoError(t, err)
	return m
}

func addVertices(m Mesh, n int) {
	for i := 0; i < n; i++ {
		m.AddVertex(math.Vec3{X: float32(i), Y: float32(i % 3), Z: 0})
	}
}

func mustAdd(t *testing.T, m Mesh, verts ...Vertex) FaceResult {
	t.Helper()
	res, err := m.AddFace(verts...)
	require.NoError(t, err, "face %v", verts)
	return res
}

var kinds = []Kind{KindPoly, KindTri}

func TestSingleTriangle(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			m := newMesh(t, kind)
			addVertices(m, 3)
			res := mustAdd(t, m, 0, 1, 2)
			assert.Equal(t, Face(0), res.Face)
			assert.Len(t, res.Loop, 3)
			m.DoneEdit()

			require.True(t, m.SanityCheck(), m.SanityReport())
			s := m.Stat()
			assert.Equal(t, 3, s.Vertices)
			assert.Zero(t, s.IsolatedVertices)
			assert.Equal(t, 3, s.WingedEdges)
			assert.Equal(t, 1, s.Faces)
			assert.Equal(t, 1, s.Holes)
			assert.Equal(t, 3, s.BoundaryEdges)
			assert.Equal(t, 2, s.ValenceMax)

			for v := Vertex(0); v < 3; v++ {
				assert.Equal(t, 2, m.Vertices().Valence(v))
				assert.Equal(t, float32(-1), m.Vertices().Crease(v), "boundary vertices are corners")
			}
			for _, h := range res.Loop {
				assert.Equal(t, float32(-1), m.Edges().Sharpness(h))
			}

			holes := m.Holes().Holes()
			require.Equal(t, []Hole{FirstHole}, holes)
			loop := m.Holes().Edges(holes[0]).Collect()
			assert.Len(t, loop, 3)
			for _, h := range loop {
				assert.True(t, m.Edges().IsBoundary(h))
				assert.Equal(t, FirstHole, m.Edges().HoleOf(h))
			}
		})
	}
}

func TestSingleTriangle_DirectedEdges(t *testing.T) {
	m := newMesh(t, KindTri).(*TriMesh)
	addVertices(m, 3)
	mustAdd(t, m, 0, 1, 2)

	da := m.DirectedEdges()
	assert.Equal(t, 3, da.DLen())
	assert.Equal(t, 4, da.FLen(), "header plus three boundary edges")
	assert.Equal(t, 3, da.WLen())
	for d := HalfEdge(0); d < 3; d++ {
		f := da.Pair(d)
		assert.Less(t, int32(f), int32(0))
		assert.Equal(t, d, da.Pair(f))
		assert.Equal(t, da.Origin(d), da.Destination(f))
		assert.Equal(t, d, da.Left(da.WEdge(d)))
	}
	face, corner := FaceAndIndex(4)
	assert.Equal(t, Face(1), face)
	assert.Equal(t, 1, corner)
}

func TestSingleQuad(t *testing.T) {
	m := newMesh(t, KindPoly)
	addVertices(m, 4)
	res := mustAdd(t, m, 0, 1, 2, 3)
	m.DoneEdit()

	require.True(t, m.SanityCheck(), m.SanityReport())
	assert.Equal(t, []HalfEdge{0, 2, 4, 6}, res.Loop)
	assert.Equal(t, 4, m.Faces().EdgeCount(res.Face))

	s := m.Stat()
	assert.Equal(t, 8, s.HalfEdges)
	assert.Equal(t, 4, s.WingedEdges)
	assert.Equal(t, 1, s.Holes)
	assert.Equal(t, 4, s.BoundaryEdges)
	for v := Vertex(0); v < 4; v++ {
		assert.Equal(t, 2, m.Vertices().Valence(v))
		assert.Equal(t, float32(-1), m.Vertices().Crease(v))
	}
	assert.Equal(t, []HalfEdge{0, 2, 4, 6}, m.Faces().Edges(res.Face).Collect())
}

func TestTwoQuadsShareEdge(t *testing.T) {
	m := newMesh(t, KindPoly)
	addVertices(m, 6)
	mustAdd(t, m, 0, 1, 4, 3)
	mustAdd(t, m, 1, 2, 5, 4)
	m.DoneEdit()

	require.True(t, m.SanityCheck(), m.SanityReport())
	s := m.Stat()
	assert.Equal(t, 7, s.WingedEdges)
	assert.Equal(t, 2, s.Faces)
	assert.Equal(t, 1, s.Holes)
	assert.Equal(t, 6, s.BoundaryEdges)
	assert.Equal(t, 3, s.ValenceMax)

	assert.Equal(t, 3, m.Vertices().Valence(1))
	assert.Equal(t, 3, m.Vertices().Valence(4))
	assert.Equal(t, 2, m.Vertices().Valence(0))

	h, ok := m.FindHalfEdge(4, 1)
	require.True(t, ok)
	assert.False(t, m.Edges().IsBoundary(h))
	assert.False(t, m.Edges().IsBoundary(m.Edges().Pair(h)))
	assert.Equal(t, float32(0), m.Edges().Sharpness(h), "interior edge is smooth")
}

func TestTwoTrianglesShareEdge(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			m := newMesh(t, kind)
			addVertices(m, 4)
			mustAdd(t, m, 0, 1, 2)
			mustAdd(t, m, 2, 1, 3)
			m.DoneEdit()

			require.True(t, m.SanityCheck(), m.SanityReport())
			s := m.Stat()
			assert.Equal(t, 5, s.WingedEdges)
			assert.Equal(t, 2, s.Faces)
			assert.Equal(t, 1, s.Holes)
			assert.Equal(t, 4, s.BoundaryEdges)
			assert.Equal(t, 3, m.Vertices().Valence(1))
			assert.Equal(t, 3, m.Vertices().Valence(2))
			assert.Equal(t, 2, m.Vertices().Valence(3))
			if kind == KindTri {
				assert.Equal(t, 6, s.HalfEdges)
				assert.Equal(t, 2, s.FreeBoundaryEdges)
			}
		})
	}
}

func TestBoundarySlotReuse(t *testing.T) {
	m := newMesh(t, KindTri).(*TriMesh)
	addVertices(m, 5)
	mustAdd(t, m, 0, 1, 2)
	mustAdd(t, m, 2, 1, 3)
	require.Equal(t, 2, m.DirectedEdges().FreeCount())

	mustAdd(t, m, 3, 1, 4)
	m.DoneEdit()

	da := m.DirectedEdges()
	assert.Equal(t, 8, da.FLen(), "two released slots reused, one appended")
	assert.Equal(t, 2, da.FreeCount())
	assert.Len(t, da.Boundaries(), 5)
	require.True(t, m.SanityCheck(), m.SanityReport())
}

func TestClosedFan(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			m := newMesh(t, kind)
			addVertices(m, 7)
			mustAdd(t, m, 0, 1, 2)
			mustAdd(t, m, 0, 2, 3)
			mustAdd(t, m, 0, 3, 4)
			mustAdd(t, m, 0, 4, 1)
			m.DoneEdit()

			require.True(t, m.SanityCheck(), m.SanityReport())
			assert.Equal(t, 4, m.Vertices().Valence(0))
			assert.Equal(t, float32(0), m.Vertices().Crease(0), "interior vertex is smooth")
			assert.Equal(t, 4, m.Vertices().ValenceMax())
			assert.Equal(t, 4, m.Stat().BoundaryEdges)

			_, ok := m.Vertices().FindFreeInEdge(0)
			assert.False(t, ok)

			before := m.Stat()
			_, err := m.AddFace(0, 5, 6)
			assert.ErrorIs(t, err, ErrComplexVertex)
			assert.Equal(t, before, m.Stat())
		})
	}
}

func TestBridgeSeparateFans(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			m := newMesh(t, kind)
			addVertices(m, 7)
			mustAdd(t, m, 0, 1, 2)
			mustAdd(t, m, 0, 3, 4)
			mustAdd(t, m, 0, 5, 6)
			// joins the first and last fan, so the boundary around vertex 0
			// has to be relinked
			mustAdd(t, m, 0, 6, 3)
			m.DoneEdit()

			require.True(t, m.SanityCheck(), m.SanityReport())
			s := m.Stat()
			assert.Equal(t, 10, s.WingedEdges)
			assert.Equal(t, 4, s.Faces)
			assert.Equal(t, 1, s.Holes)
			assert.Equal(t, 8, s.BoundaryEdges)
			assert.Equal(t, 6, m.Vertices().Valence(0))
			assert.Equal(t, float32(-1), m.Vertices().Crease(0))

			hole := m.Holes().Holes()[0]
			assert.Len(t, m.Holes().Edges(hole).Collect(), 8)
		})
	}
}

func TestNonManifoldRollback(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			m := newMesh(t, kind)
			addVertices(m, 5)
			mustAdd(t, m, 0, 1, 2)
			mustAdd(t, m, 2, 1, 3)
			m.DoneEdit()

			before := m.Stat()
			vHalf := append([]int32(nil), m.Vertices().HalfEdges().UsedBuffer()...)
			refs := m.Usage().Count(m.Usage().Default())

			// 4 -> 1 is new, 1 -> 2 is taken by the first triangle
			_, err := m.AddFace(4, 1, 2)
			assert.ErrorIs(t, err, ErrNonManifold)

			assert.Equal(t, before, m.Stat())
			assert.Equal(t, vHalf, m.Vertices().HalfEdges().UsedBuffer())
			assert.Equal(t, refs, m.Usage().Count(m.Usage().Default()))
			assert.True(t, m.Vertices().IsFree(4))
			assert.True(t, m.SanityCheck(), m.SanityReport())

			mustAdd(t, m, 1, 4, 3)
			m.DoneEdit()
			assert.True(t, m.SanityCheck(), m.SanityReport())
		})
	}
}

func TestPolyRollbackRestoresEdges(t *testing.T) {
	m := newMesh(t, KindPoly).(*PolyMesh)
	addVertices(m, 7)
	mustAdd(t, m, 0, 1, 4, 3)
	mustAdd(t, m, 1, 2, 5, 4)
	m.DoneEdit()

	edges := append([]int32(nil), m.HalfEdges().Array().UsedBuffer()...)
	rec := m.HalfEdges().Array().Record()

	// 6 -> 1 gets created and linked before 1 -> 4 is found taken
	_, err := m.AddFace(6, 1, 4)
	require.ErrorIs(t, err, ErrNonManifold)

	assert.Equal(t, rec, m.HalfEdges().Array().Record())
	assert.Equal(t, edges, m.HalfEdges().Array().UsedBuffer())
	assert.Equal(t, 2, m.Faces().Len())
	assert.True(t, m.Vertices().IsFree(6))
}

func TestBadPolygons(t *testing.T) {
	m := newMesh(t, KindPoly)
	addVertices(m, 4)

	_, err := m.AddFace(0, 1)
	assert.ErrorIs(t, err, ErrBadPolygon)
	_, err = m.AddFace(0, 1, 1)
	assert.ErrorIs(t, err, ErrBadPolygon)
	_, err = m.AddFace(0, 1, 9)
	assert.ErrorIs(t, err, ErrBadPolygon)
	assert.True(t, m.IsEmpty())

	tri := newMesh(t, KindTri)
	addVertices(tri, 4)
	_, err = tri.AddFace(0, 1, 2, 3)
	assert.ErrorIs(t, err, ErrNotTriangle)
	assert.True(t, tri.IsEmpty())
}

func TestHoleTable(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			ht := newMesh(t, kind).Holes()
			a := ht.Alloc()
			b := ht.Alloc()
			assert.Equal(t, FirstHole, a)
			assert.Equal(t, FirstHole-1, b)
			assert.Equal(t, 2, ht.Len())

			require.NoError(t, ht.Free(a))
			assert.True(t, ht.IsFree(a))
			assert.Equal(t, 1, ht.FreeCount())
			assert.ErrorIs(t, ht.Free(a), ErrInvalidHole)
			assert.Equal(t, []Hole{b}, ht.Holes())

			require.NoError(t, ht.Free(b))
			assert.Equal(t, b, ht.Alloc(), "last freed first reused")
			assert.Equal(t, a, ht.Alloc())
			assert.Zero(t, ht.FreeCount())
			assert.Equal(t, 2, ht.Len())

			assert.Panics(t, func() { ht.HalfEdge(FirstHole - 5) })
		})
	}
}

func TestDoneEditKeepsHoleIDs(t *testing.T) {
	m := newMesh(t, KindPoly)
	addVertices(m, 8)
	mustAdd(t, m, 0, 1, 2, 3)
	mustAdd(t, m, 4, 5, 6, 7)
	m.DoneEdit()
	first := m.Holes().Holes()
	require.Len(t, first, 2)

	m.DoneEdit()
	assert.Equal(t, first, m.Holes().Holes())
	assert.Zero(t, m.Holes().FreeCount())
	assert.True(t, m.SanityCheck(), m.SanityReport())
}

func TestVertexLinkUnlink(t *testing.T) {
	m := newMesh(t, KindPoly).(*PolyMesh)
	addVertices(m, 3)
	vt, ha := m.Vertices(), m.HalfEdges()

	e0 := ha.AllocWEdge(0, 1)
	require.NoError(t, vt.LinkEdge(0, e0, e0+1))
	require.NoError(t, vt.LinkEdge(1, e0+1, e0))
	e1 := ha.AllocWEdge(0, 2)
	require.NoError(t, vt.LinkEdge(0, e1, e1+1))
	require.NoError(t, vt.LinkEdge(2, e1+1, e1))

	assert.Equal(t, []HalfEdge{e0, e1}, vt.OutEdges(0).Collect())
	assert.Equal(t, []HalfEdge{e0 + 1, e1 + 1}, vt.InEdges(0).Collect())

	vt.UnlinkEdge(0, e1, e1+1)
	assert.Equal(t, []HalfEdge{e0}, vt.OutEdges(0).Collect())

	vt.UnlinkEdge(0, e0, e0+1)
	assert.True(t, vt.IsFree(0))
	assert.Empty(t, vt.OutEdges(0).Collect())
}

func TestEdgeIterReset(t *testing.T) {
	m := newMesh(t, KindPoly)
	addVertices(m, 4)
	res := mustAdd(t, m, 0, 1, 2, 3)

	it := m.Faces().Edges(res.Face)
	first := it.Collect()
	_, ok := it.Next()
	assert.False(t, ok)
	it.Reset()
	assert.Equal(t, first, it.Collect())

	var zero EdgeIter
	_, ok = zero.Next()
	assert.False(t, ok)
}

func TestWingedEdgeFreeList(t *testing.T) {
	m := newMesh(t, KindPoly).(*PolyMesh)
	ha := m.HalfEdges()
	a := ha.AllocWEdge(0, 1)
	b := ha.AllocWEdge(1, 2)
	ha.Free(a)
	ha.Free(b)
	assert.Equal(t, 2, ha.FreeCount())
	assert.True(t, ha.IsFree(ha.WEdge(a)))

	var free []WingedEdge
	for w := range ha.FreeWEdges() {
		free = append(free, w)
	}
	assert.Equal(t, []WingedEdge{ha.WEdge(b), ha.WEdge(a)}, free)

	c := ha.AllocWEdge(2, 3)
	assert.Equal(t, b, c, "most recently freed is reused")
	assert.Equal(t, 1, ha.FreeCount())
	assert.Equal(t, 2, ha.WLen())

	var live []WingedEdge
	for w := range ha.WingedEdges() {
		live = append(live, w)
	}
	assert.Equal(t, []WingedEdge{ha.WEdge(c)}, live)
}

func TestNormalsAndPullBuffer(t *testing.T) {
	m := newMesh(t, KindPoly)
	m.AddVertex(math.Vec3{X: 0, Y: 0, Z: 0})
	m.AddVertex(math.Vec3{X: 1, Y: 0, Z: 0})
	m.AddVertex(math.Vec3{X: 1, Y: 1, Z: 0})
	m.AddVertex(math.Vec3{X: 0, Y: 1, Z: 0})
	res := mustAdd(t, m, 0, 1, 2, 3)

	pb := m.MakePullBuffer()
	up := math.Vec3{Z: 1}
	assert.Equal(t, up, m.Faces().Normal(res.Face))
	for _, h := range res.Loop {
		assert.Equal(t, up, m.Attributes().Normal(h))
	}

	require.Equal(t, 2, pb.Triangles())
	var verts []Vertex
	for _, c := range pb.Corners {
		verts = append(verts, c.Vertex)
		assert.Equal(t, m.Usage().Default(), c.Material)
	}
	assert.Equal(t, []Vertex{0, 1, 2, 0, 2, 3}, verts)
	assert.Len(t, pb.Int32s(), 18)
	require.Len(t, pb.Materials, 1)
	assert.Equal(t, "default", pb.Materials[0]["name"])
}

func TestMaterialReferences(t *testing.T) {
	depot := material.NewMemoryDepot()
	red := depot.Create(material.Uniforms{"name": "red"})
	m, err := NewTriMesh(depot, Options{})
	require.NoError(t, err)
	addVertices(m, 4)

	_, err = m.AddFaceEx([]Vertex{0, 1, 2}, red)
	require.NoError(t, err)
	res, err := m.AddFace(2, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, depot.RefCount(red))
	assert.Equal(t, 1, depot.RefCount(depot.Default()))

	m.Faces().SetMaterial(res.Face, red)
	assert.Equal(t, 2, depot.RefCount(red))
	assert.Zero(t, depot.RefCount(depot.Default()))
	assert.Equal(t, red, m.Faces().Material(res.Face))
}

func TestTransformPoints(t *testing.T) {
	m := newMesh(t, KindTri)
	v := m.AddVertex(math.Vec3{X: 1, Y: 2, Z: 3})
	m.TransformPoints(math.Translate(1, 1, 1))
	assert.Equal(t, math.Vec3{X: 2, Y: 3, Z: 4}, m.Vertices().Pt(v))
}

func TestNameGroups(t *testing.T) {
	m := newMesh(t, KindPoly)
	addVertices(m, 4)
	g := m.AddNameGroup("body", 0)
	res := mustAdd(t, m, 0, 1, 2, 3)
	g.Finalize(res.Face + 1)
	require.Len(t, m.NameGroups(), 1)
	assert.Equal(t, NameGroup{Name: "body", Start: 0, End: 1}, *m.NameGroups()[0])
}

func TestStatString(t *testing.T) {
	m := newMesh(t, KindPoly)
	addVertices(m, 4)
	mustAdd(t, m, 0, 1, 2, 3)
	m.DoneEdit()
	out := m.Stat().String()
	assert.Contains(t, out, "Vertices Count: 4")
	assert.Contains(t, out, "WingedEdges Count: 4")
	assert.Contains(t, out, "Holes Count: 1")
}

func TestDehydrateRoundTrip(t *testing.T) {
	depot := material.NewMemoryDepot()

	t.Run("poly", func(t *testing.T) {
		m, err := NewPolyMesh(depot, Options{})
		require.NoError(t, err)
		addVertices(m, 6)
		mustAdd(t, m, 0, 1, 4, 3)
		mustAdd(t, m, 1, 2, 5, 4)
		m.DoneEdit()

		back, err := RehydratePolyMesh(m.Dehydrate(), depot)
		require.NoError(t, err)
		assert.Equal(t, m.Stat(), back.Stat())
		assert.True(t, back.SanityCheck(), back.SanityReport())
		assert.False(t, back.Vertices().Points().Checking())

		back.Vertices().SetPt(2, math.Vec3{X: 9})
		assert.Equal(t, float32(9), m.Vertices().Pt(2).X, "buffers are shared")
	})

	t.Run("tri", func(t *testing.T) {
		m, err := NewTriMesh(depot, Options{})
		require.NoError(t, err)
		addVertices(m, 4)
		mustAdd(t, m, 0, 1, 2)
		mustAdd(t, m, 2, 1, 3)
		m.DoneEdit()

		back, err := RehydrateTriMesh(m.Dehydrate(), depot)
		require.NoError(t, err)
		assert.Equal(t, m.Stat(), back.Stat())
		assert.True(t, back.SanityCheck(), back.SanityReport())
	})

	t.Run("bad", func(t *testing.T) {
		m, err := NewTriMesh(depot, Options{})
		require.NoError(t, err)
		s := m.Dehydrate()
		s.Holes.Record.Used = 0
		_, err = RehydrateTriMesh(s, depot)
		assert.ErrorIs(t, err, ErrBadSnapshot)
	})
}
