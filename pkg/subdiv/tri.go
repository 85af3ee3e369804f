package subdiv

import (
	"fmt"

	"github.com/Faultbox/midgard-mesh/pkg/material"
	"github.com/Faultbox/midgard-mesh/pkg/math"
	"github.com/Faultbox/midgard-mesh/pkg/mesh"
)

// Triangle schemes share one destination layout. Vertex v keeps its index
// and the edge point of winged edge w is V+w. Triangle f becomes 4f..4f+3
// with directed edges 12f..12f+11: triangle 4f+i is the corner at v_i
// (v_i, m_i, m_{i-1}) and 4f+3 joins the three edge points. Winged edge w
// splits into 2w and 2w+1, the inner edges of triangle f are 2W+3f+i.
// Boundary slot s splits into slots 2s and 2s+1.

// aTable and bTable hold, per corner k, the offsets inside a refined
// triangle of the two other directed edges leaving edge point m_k.
var (
	aTable = [3]mesh.HalfEdge{5, 8, 2}
	bTable = [3]mesh.HalfEdge{10, 11, 9}
)

func prepareTri(s Scheme, src mesh.Mesh) (*Level, error) {
	tm, ok := src.(*mesh.TriMesh)
	if !ok {
		return nil, fmt.Errorf("%w: %s refines tri meshes, got %s", ErrMeshKind, s.Name(), src.Kind())
	}
	dst, err := mesh.NewTriMesh(tm.Usage().Depot(), mesh.Options{UVLayers: tm.Attributes().Layers()})
	if err != nil {
		return nil, err
	}
	dst.SetTracking(false)

	tris := tm.Triangles()
	de := tm.DirectedEdges()
	lay := &layout{
		vertices: tm.Vertices().Len(),
		faces:    tris.Len(),
		wEdges:   de.WLen(),
		refs:     make(map[material.Handle]int),
	}
	lay.edgeBase = lay.vertices
	for i := range lay.faces {
		lay.refs[tris.Material(mesh.Face(i))] += 4
	}

	dst.Reserve(lay.vertices+lay.wEdges, 2*lay.wEdges+3*lay.faces, 4*lay.faces)
	dst.DirectedEdges().AllocBoundaryEx(2*de.FLen() - 1)
	dst.Holes().CopyFrom(tm.Holes())
	dst.Vertices().SetValenceMax(max(tm.Vertices().ValenceMax(), 6))
	return newTriLevel(s, tm, dst, lay), nil
}

// pairLo returns the refined pair of the first half of h.
func pairLo(de *mesh.DirectedEdgeArray, h mesh.HalfEdge) mesh.HalfEdge {
	p := de.Pair(h)
	if p < 0 {
		return 2*p - 1
	}
	f, k := mesh.FaceAndIndex(p)
	return mesh.HalfEdge(12*int(f) + (3*k+5)%9)
}

// pairHi returns the refined pair of the second half of h.
func pairHi(de *mesh.DirectedEdgeArray, h mesh.HalfEdge) mesh.HalfEdge {
	p := de.Pair(h)
	if p < 0 {
		return 2 * p
	}
	f, k := mesh.FaceAndIndex(p)
	return mesh.HalfEdge(12*int(f) + 3*k)
}

// wEdgeLo returns the winged edge of the first half of h, one of the halves
// of w. The half starting at the owner's origin is 2w+1.
func wEdgeLo(de *mesh.DirectedEdgeArray, w mesh.WingedEdge, h mesh.HalfEdge) mesh.WingedEdge {
	if de.Left(w) == h {
		return 2*w + 1
	}
	return 2 * w
}

// wEdgeHi returns the winged edge of the second half of h.
func wEdgeHi(de *mesh.DirectedEdgeArray, w mesh.WingedEdge, h mesh.HalfEdge) mesh.WingedEdge {
	if de.Left(w) == h {
		return 2 * w
	}
	return 2*w + 1
}

// childEdge returns the refined directed edge leaving the origin of h.
func childEdge(h mesh.HalfEdge) mesh.HalfEdge {
	f, k := mesh.FaceAndIndex(h)
	return mesh.HalfEdge(12*int(f) + 3*k)
}

// setTriEdge writes edge point p of w together with its sharpness,
// connectivity and the attributes of the directed edges leaving it.
func setTriEdge(l *Level, w mesh.WingedEdge, left, right mesh.HalfEdge, p math.Vec3, s float32) {
	dst := l.tri.dst
	dv, de := dst.Vertices(), dst.DirectedEdges()
	ep := l.edgePoint(w)

	valence := 6
	if right < 0 {
		valence = 4
	}
	next := nextSharpness(s)
	dv.SetPt(ep, p)
	dv.SetHalfEdge(ep, childEdge(left)+1)
	dv.SetValence(ep, valence)
	dv.SetCrease(ep, next)
	de.SetSharpness(2*w, next)
	de.SetSharpness(2*w+1, next)

	se := l.tri.src.DirectedEdges()
	attrs := dst.Attributes()
	for _, h := range [2]mesh.HalfEdge{left, right} {
		if h < 0 {
			continue
		}
		_, k := mesh.FaceAndIndex(h)
		d := childEdge(h)
		base := d - mesh.HalfEdge(3*k)
		l.attr.Init(h)
		l.attr.CopyTo(attrs, d)
		l.attr.Add(se.Next(h))
		l.attr.Interpolate(2)
		l.attr.CopyTo(attrs, d+1)
		l.attr.CopyTo(attrs, base+aTable[k])
		l.attr.CopyTo(attrs, base+bTable[k])
	}
}

// setTriVertex writes the refined position p of v with its connectivity.
func setTriVertex(l *Level, v mesh.Vertex, p math.Vec3) {
	sv, dv := l.tri.src.Vertices(), l.tri.dst.Vertices()
	dv.SetPt(v, p)
	h := sv.HalfEdge(v)
	if h < 0 {
		dv.SetHalfEdge(v, mesh.NoHalfEdge)
		dv.SetValence(v, 0)
		dv.SetCrease(v, 0)
		return
	}
	dv.SetHalfEdge(v, childEdge(h))
	dv.SetValence(v, sv.Valence(v))
	dv.SetCrease(v, nextSharpness(sv.Crease(v)))
}

// touchesBoundary reports whether v has a boundary edge.
func touchesBoundary(de *mesh.DirectedEdgeArray, sv *mesh.VertexTable, v mesh.Vertex) bool {
	h0 := sv.HalfEdge(v)
	if h0 < 0 {
		return false
	}
	for h := h0; ; {
		if h < 0 {
			return true
		}
		if h = de.Next(de.Pair(h)); h == h0 {
			return false
		}
	}
}

// subdivideTriFaces builds the four triangles of every source triangle in
// [start, stop).
func subdivideTriFaces(l *Level, start, stop int) {
	src, dst := l.tri.src, l.tri.dst
	se, de := src.DirectedEdges(), dst.DirectedEdges()
	tris := src.Triangles()
	nw := l.layout.wEdges

	for i := start; i < stop; i++ {
		s := mesh.HalfEdge(3 * i)
		d := mesh.HalfEdge(12 * i)
		mat := tris.Material(mesh.Face(i))

		var w [3]mesh.WingedEdge
		for k := range 3 {
			w[k] = se.WEdge(s + mesh.HalfEdge(k))
		}
		for k := range 3 {
			j := (k + 2) % 3
			h, hj := s+mesh.HalfEdge(k), s+mesh.HalfEdge(j)
			corner := d + mesh.HalfEdge(3*k)
			inner, last := corner+1, corner+2
			mid := d + 9 + mesh.HalfEdge(k)

			de.SetOrigin(corner, se.Origin(h))
			de.SetPair(corner, pairLo(se, h))
			de.SetWEdge(corner, wEdgeLo(se, w[k], h))
			if se.Left(w[k]) == h {
				de.SetLeft(2*w[k]+1, corner)
			}

			iw := mesh.WingedEdge(2*nw + 3*i + k)
			de.SetOrigin(inner, l.edgePoint(w[k]))
			de.SetOrigin(mid, l.edgePoint(w[j]))
			de.SetPair(inner, mid)
			de.SetPair(mid, inner)
			de.SetWEdge(inner, iw)
			de.SetWEdge(mid, iw)
			de.SetLeft(iw, inner)
			de.SetSharpness(iw, 0)

			de.SetOrigin(last, l.edgePoint(w[j]))
			de.SetPair(last, pairHi(se, hj))
			de.SetWEdge(last, wEdgeHi(se, w[j], hj))
			if se.Left(w[j]) == hj {
				de.SetLeft(2*w[j], last)
			}

			dst.AssignMaterial(mesh.Face(4*i+k), mat)
		}
		dst.AssignMaterial(mesh.Face(4*i+3), mat)
	}
}

// subdivideTriHoles splits every boundary slot in two, keeping hole ids and
// the released slots.
func subdivideTriHoles(l *Level) {
	src, dst := l.tri.src, l.tri.dst
	se, de := src.DirectedEdges(), dst.DirectedEdges()

	for s := 1; s < se.FLen(); s++ {
		b := mesh.HalfEdge(-s)
		lo := 2 * b
		hi := lo - 1
		if se.IsFreeBoundary(b) {
			de.LinkFreeBoundary(lo, hi)
			de.LinkFreeBoundary(hi, 2*se.Next(b))
			continue
		}
		de.SetPair(lo, pairLo(se, b))
		de.SetPair(hi, pairHi(se, b))
		de.LinkNext(lo, hi)
		de.LinkNext(hi, 2*se.Next(b))
		hole := se.HoleOf(b)
		de.SetHoleOf(lo, hole)
		de.SetHoleOf(hi, hole)
	}
	// slot 1 has no source and heads the released slots
	de.LinkFreeBoundary(-1, 2*se.FreeHead())
	de.SetFreeList(-1, 2*se.FreeCount()+1)

	holes, dholes := src.Holes(), dst.Holes()
	for _, h := range holes.Holes() {
		dholes.SetHalfEdge(h, 2*holes.HalfEdge(h))
	}
}
