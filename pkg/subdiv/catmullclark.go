package subdiv

import (
	"fmt"

	"github.com/Faultbox/midgard-mesh/pkg/material"
	"github.com/Faultbox/midgard-mesh/pkg/math"
	"github.com/Faultbox/midgard-mesh/pkg/mesh"
)

// CatmullClark refines polygon meshes into quad meshes with semi-sharp
// creases.
//
// Destination layout: vertex v keeps its index, the face point of polygon f
// is V+f and the edge point of winged edge w is V+F+w. Winged edge w splits
// into 4w..4w+3, so its half-edges map to 8w..8w+7: 4w and 4w+2 are the two
// halves of the old edge, 4w+1 and 4w+3 the spokes to the left and right
// face points. Spokes next to a hole are released.
type CatmullClark struct{}

// Name returns "catmull-clark".
func (CatmullClark) Name() string { return "catmull-clark" }

// Kind returns mesh.KindPoly.
func (CatmullClark) Kind() mesh.Kind { return mesh.KindPoly }

// Prepare allocates the destination of one level.
func (CatmullClark) Prepare(src mesh.Mesh) (*Level, error) {
	pm, ok := src.(*mesh.PolyMesh)
	if !ok {
		return nil, fmt.Errorf("%w: catmull-clark refines poly meshes, got %s", ErrMeshKind, src.Kind())
	}
	dst, err := mesh.NewPolyMesh(pm.Usage().Depot(), mesh.Options{UVLayers: pm.Attributes().Layers()})
	if err != nil {
		return nil, err
	}
	dst.SetTracking(false)

	polys := pm.Polygons()
	lay := &layout{
		vertices: pm.Vertices().Len(),
		faces:    polys.Len(),
		wEdges:   pm.HalfEdges().WLen(),
		refs:     make(map[material.Handle]int),
	}
	lay.edgeBase = lay.vertices + lay.faces
	lay.faceStart = make([]int32, lay.faces+1)
	quads, maxSides := 0, 0
	for i := range lay.faces {
		lay.faceStart[i] = int32(quads)
		f := mesh.Face(i)
		if polys.IsFree(f) {
			continue
		}
		n := polys.EdgeCount(f)
		quads += n
		maxSides = max(maxSides, n)
		lay.refs[polys.Material(f)] += n
	}
	lay.faceStart[lay.faces] = int32(quads)

	dst.Reserve(lay.edgeBase+lay.wEdges, 4*lay.wEdges, quads)
	dst.Holes().CopyFrom(pm.Holes())
	dst.Vertices().SetValenceMax(max(pm.Vertices().ValenceMax(), maxSides, 4))
	return newPolyLevel(CatmullClark{}, pm, dst, lay), nil
}

// RefineFacePoints places every face point at the centroid of its polygon
// and averages the corner attributes onto the spokes leaving it.
func (CatmullClark) RefineFacePoints(l *Level, start, stop int) {
	src, dst := l.poly.src, l.poly.dst
	polys, he := src.Polygons(), src.HalfEdges()
	sv, dv := src.Vertices(), dst.Vertices()
	attrs := dst.Attributes()

	for i := start; i < stop; i++ {
		f := mesh.Face(i)
		fp := l.facePoint(f)
		if polys.IsFree(f) {
			dv.SetHalfEdge(fp, mesh.NoHalfEdge)
			dv.SetValence(fp, 0)
			dv.SetCrease(fp, 0)
			continue
		}

		l.loop = l.loop[:0]
		l.attr.Reset()
		var sum math.Vec3
		h0 := polys.HalfEdge(f)
		for h := h0; ; {
			l.loop = append(l.loop, h)
			sum = sum.Add(sv.Pt(he.Origin(h)))
			l.attr.Add(h)
			if h = he.Next(h); h == h0 {
				break
			}
		}

		n := len(l.loop)
		dv.SetPt(fp, sum.Scale(1/float32(n)))
		dv.SetHalfEdge(fp, h0*4+3)
		dv.SetValence(fp, n)
		dv.SetCrease(fp, 0)
		l.attr.Interpolate(float32(n))
		for _, h := range l.loop {
			l.attr.CopyTo(attrs, h*4+3)
		}
	}
}

// RefineEdges computes the edge points. Boundary and sharp edges use the
// midpoint, smooth ones also weigh in the two face points, and fractional
// sharpness blends the two rules.
func (CatmullClark) RefineEdges(l *Level, start, stop int) {
	src, dst := l.poly.src, l.poly.dst
	he, dhe := src.HalfEdges(), dst.HalfEdges()
	sv, dv := src.Vertices(), dst.Vertices()
	attrs := dst.Attributes()

	for i := start; i < stop; i++ {
		w := mesh.WingedEdge(i)
		ep := l.edgePoint(w)
		if he.IsFree(w) {
			dv.SetHalfEdge(ep, mesh.NoHalfEdge)
			dv.SetValence(ep, 0)
			dv.SetCrease(ep, 0)
			continue
		}

		left := mesh.HalfEdge(w * 2)
		right := left + 1
		s := he.WSharpness(w)
		mid := sv.Pt(he.Origin(left)).Add(sv.Pt(he.Origin(right)))
		boundary := he.IsBoundary(left) || he.IsBoundary(right)

		var p math.Vec3
		if s < 0 || s >= 1 || boundary {
			p = mid.Scale(0.5)
		} else {
			u := 0.25*(1-s) + 0.5*s
			v := 0.25 * (1 - s)
			faces := dv.Pt(l.facePoint(he.Face(left))).Add(dv.Pt(l.facePoint(he.Face(right))))
			p = mid.Scale(u).Add(faces.Scale(v))
		}

		valence := 4
		if boundary {
			valence = 3
		}
		next := nextSharpness(s)
		dv.SetPt(ep, p)
		dv.SetHalfEdge(ep, mesh.HalfEdge(8*w+4))
		dv.SetValence(ep, valence)
		dv.SetCrease(ep, next)

		dhe.SetSharpness(4*w, next)
		dhe.SetSharpness(4*w+1, 0)
		dhe.SetSharpness(4*w+2, next)
		dhe.SetSharpness(4*w+3, 0)

		b := mesh.HalfEdge(8 * w)
		if !he.IsBoundary(left) {
			l.attr.Init(left)
			l.attr.CopyTo(attrs, b)
			l.attr.Add(he.Next(left))
			l.attr.Interpolate(2)
			l.attr.CopyTo(attrs, b+4)
			l.attr.CopyTo(attrs, b+2)
		}
		if !he.IsBoundary(right) {
			l.attr.Init(right)
			l.attr.CopyTo(attrs, b+5)
			l.attr.Add(he.Next(right))
			l.attr.Interpolate(2)
			l.attr.CopyTo(attrs, b+1)
			l.attr.CopyTo(attrs, b+6)
		}
	}
}

// RefineVertices moves the original vertices. Corners stay, crease vertices
// follow their two sharp neighbours and smooth ones the face and edge points
// around them.
func (CatmullClark) RefineVertices(l *Level, start, stop int) {
	src, dst := l.poly.src, l.poly.dst
	he := src.HalfEdges()
	sv, dv := src.Vertices(), dst.Vertices()

	for i := start; i < stop; i++ {
		v := mesh.Vertex(i)
		p := sv.Pt(v)
		h0 := sv.HalfEdge(v)
		if h0 < 0 {
			dv.SetPt(v, p)
			dv.SetHalfEdge(v, mesh.NoHalfEdge)
			dv.SetValence(v, 0)
			dv.SetCrease(v, 0)
			continue
		}

		n := sv.Valence(v)
		c := sv.Crease(v)
		switch {
		case c < 0:
			// corner
		case c >= 1:
			p = ccCreasePoint(he, sv, h0, p)
		case c == 0:
			p = ccSmoothPoint(l, he, dv, h0, p, n)
		default:
			p = ccSmoothPoint(l, he, dv, h0, p, n).Lerp(ccCreasePoint(he, sv, h0, p), c)
		}

		dv.SetPt(v, p)
		dv.SetHalfEdge(v, 4*h0+h0&1)
		dv.SetValence(v, n)
		dv.SetCrease(v, nextSharpness(c))
	}
}

func ccCreasePoint(he *mesh.HalfEdgeArray, sv *mesh.VertexTable, h0 mesh.HalfEdge, p math.Vec3) math.Vec3 {
	var sum math.Vec3
	for h := h0; ; {
		if he.Sharpness(h) > 0 {
			sum = sum.Add(sv.Pt(he.Destination(h)))
		}
		if h = he.Next(he.Pair(h)); h == h0 {
			break
		}
	}
	return sum.Scale(1.0 / 8).Add(p.Scale(6.0 / 8))
}

// ccSmoothPoint evaluates (Q + 2R + (n-3)S)/n from the refined edge points:
// the sum of 4E - F over the edges equals nS + sum(P) + sum(F).
func ccSmoothPoint(l *Level, he *mesh.HalfEdgeArray, dv *mesh.VertexTable, h0 mesh.HalfEdge, p math.Vec3, n int) math.Vec3 {
	var sum math.Vec3
	for h := h0; ; {
		sum = sum.ScaleAndAdd(dv.Pt(l.edgePoint(he.WEdge(h))), 4)
		sum = sum.Sub(dv.Pt(l.facePoint(he.Face(h))))
		if h = he.Next(he.Pair(h)); h == h0 {
			break
		}
	}
	fn := float32(n)
	return sum.Scale(1 / (fn * fn)).Add(p.Scale(1 - 3/fn))
}

// ccPartA returns the child half-edges of h leaving its origin and leaving
// its edge point towards the face point.
func ccPartA(h mesh.HalfEdge) (mesh.HalfEdge, mesh.HalfEdge) {
	b := 8 * (h >> 1)
	if h&1 == 0 {
		return b, b + 2
	}
	return b + 5, b + 6
}

// ccPartB returns the child half-edges of h leaving the face point and
// leaving the edge point towards h's destination.
func ccPartB(h mesh.HalfEdge) (mesh.HalfEdge, mesh.HalfEdge) {
	b := 8 * (h >> 1)
	if h&1 == 0 {
		return b + 3, b + 4
	}
	return b + 7, b + 1
}

// ccHolePart returns the two halves of boundary half-edge h.
func ccHolePart(h mesh.HalfEdge) (mesh.HalfEdge, mesh.HalfEdge) {
	b := 8 * (h >> 1)
	if h&1 == 0 {
		return b, b + 4
	}
	return b + 5, b + 1
}

// SubdivideFaces replaces every n-gon by n quads, one per corner, each
// running face point, previous edge point, corner, next edge point.
func (CatmullClark) SubdivideFaces(l *Level, start, stop int) {
	src, dst := l.poly.src, l.poly.dst
	polys, dpolys := src.Polygons(), dst.Polygons()
	he, dhe := src.HalfEdges(), dst.HalfEdges()

	for i := start; i < stop; i++ {
		f := mesh.Face(i)
		if polys.IsFree(f) {
			continue
		}
		fc := l.facePoint(f)
		mat := polys.Material(f)
		q := mesh.Face(l.layout.faceStart[i])

		h0 := polys.HalfEdge(f)
		prev := he.Prev(h0)
		for h := h0; ; q++ {
			a0, a1 := ccPartA(h)
			b0, b1 := ccPartB(prev)
			dhe.SetOrigin(a0, he.Origin(h))
			dhe.SetOrigin(a1, l.edgePoint(he.WEdge(h)))
			dhe.SetOrigin(b0, fc)
			dhe.SetOrigin(b1, l.edgePoint(he.WEdge(prev)))

			dhe.LinkNext(b0, b1)
			dhe.LinkNext(b1, a0)
			dhe.LinkNext(a0, a1)
			dhe.LinkNext(a1, b0)
			for _, e := range [4]mesh.HalfEdge{b0, b1, a0, a1} {
				dhe.SetFace(e, q)
			}
			dpolys.SetHalfEdge(q, b0)
			dst.AssignMaterial(q, mat)

			prev = h
			if h = he.Next(h); h == h0 {
				break
			}
		}
	}
}

// SubdivideHoles splits every hole loop at the edge points and releases the
// winged edges no face uses: the children of released source edges and the
// spokes that would point into a hole.
func (CatmullClark) SubdivideHoles(l *Level) {
	src, dst := l.poly.src, l.poly.dst
	he, dhe := src.HalfEdges(), dst.HalfEdges()
	holes, dholes := src.Holes(), dst.Holes()

	var free []mesh.WingedEdge
	for w := range he.FreeWEdges() {
		free = append(free, 4*w, 4*w+1, 4*w+2, 4*w+3)
	}

	for _, hole := range holes.Holes() {
		e0 := holes.HalfEdge(hole)
		for e := e0; ; {
			p0, p1 := ccHolePart(e)
			dhe.SetOrigin(p0, he.Origin(e))
			dhe.SetOrigin(p1, l.edgePoint(he.WEdge(e)))
			dhe.SetFace(p0, hole.Face())
			dhe.SetFace(p1, hole.Face())

			next := he.Next(e)
			n0, _ := ccHolePart(next)
			dhe.LinkNext(p0, p1)
			dhe.LinkNext(p1, n0)

			w := he.WEdge(e)
			if e&1 == 0 {
				free = append(free, 4*w+1)
			} else {
				free = append(free, 4*w+3)
			}
			if e = next; e == e0 {
				break
			}
		}
		dholes.SetHalfEdge(hole, 4*e0+e0&1)
	}

	for i, w := range free {
		next := mesh.WingedEdge(-1)
		if i+1 < len(free) {
			next = free[i+1]
		}
		dhe.LinkFree(w, next)
	}
	if len(free) > 0 {
		l.layout.free = freeChain{head: free[0], tail: free[len(free)-1], n: len(free)}
	}
}
