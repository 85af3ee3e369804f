package subdiv

import (
	"github.com/Faultbox/midgard-mesh/pkg/math"
	"github.com/Faultbox/midgard-mesh/pkg/mesh"
)

// Loop is the approximating triangle scheme with semi-sharp creases.
type Loop struct{}

// Name returns "loop".
func (Loop) Name() string { return "loop" }

// Kind returns mesh.KindTri.
func (Loop) Kind() mesh.Kind { return mesh.KindTri }

// Prepare allocates the destination of one level.
func (Loop) Prepare(src mesh.Mesh) (*Level, error) {
	return prepareTri(Loop{}, src)
}

// RefineFacePoints does nothing: triangle schemes have no face points.
func (Loop) RefineFacePoints(*Level, int, int) {}

// RefineEdges computes the edge points:
//
//	sharp or boundary: (A + B) / 2
//	smooth:            3/8 (A + B) + 1/8 (C + D)
//
// with C and D the opposite corners. Fractional sharpness blends the two.
func (Loop) RefineEdges(l *Level, start, stop int) {
	se := l.tri.src.DirectedEdges()
	sv := l.tri.src.Vertices()

	for i := start; i < stop; i++ {
		w := mesh.WingedEdge(i)
		left := se.Left(w)
		right := se.Pair(left)
		s := se.WSharpness(w)
		ab := sv.Pt(se.Origin(left)).Add(sv.Pt(se.Destination(left)))

		var p math.Vec3
		if s < 0 || s >= 1 || right < 0 {
			p = ab.Scale(0.5)
		} else {
			q, r := float32(3.0/8), float32(1.0/8)
			if s > 0 {
				q = q*(1-s) + 0.5*s
				r *= 1 - s
			}
			cd := sv.Pt(se.Origin(se.Prev(left))).Add(sv.Pt(se.Origin(se.Prev(right))))
			p = ab.Scale(q).Add(cd.Scale(r))
		}
		setTriEdge(l, w, left, right, p, s)
	}
}

// RefineVertices moves the original vertices with weight beta per
// neighbour, 3/16 at valence 3 and 3/(8k) otherwise. Corners stay and
// crease vertices use 3/4 of themselves and 1/8 of each sharp neighbour.
func (Loop) RefineVertices(l *Level, start, stop int) {
	se := l.tri.src.DirectedEdges()
	sv := l.tri.src.Vertices()

	for i := start; i < stop; i++ {
		v := mesh.Vertex(i)
		p := sv.Pt(v)
		h0 := sv.HalfEdge(v)
		if c := sv.Crease(v); h0 >= 0 && c >= 0 {
			var all, sharp math.Vec3
			for h := h0; ; {
				d := sv.Pt(se.Destination(h))
				all = all.Add(d)
				if se.Sharpness(h) > 0 {
					sharp = sharp.Add(d)
				}
				if h = se.Next(se.Pair(h)); h == h0 {
					break
				}
			}

			k := float32(sv.Valence(v))
			beta := 3 / (8 * k)
			if sv.Valence(v) == 3 {
				beta = 3.0 / 16
			}
			switch {
			case c >= 1:
				p = p.Scale(0.75).Add(sharp.Scale(1.0 / 8))
			case c == 0:
				p = p.Scale(1 - k*beta).Add(all.Scale(beta))
			default:
				sm := 1 - c
				p = p.Scale(sm*(1-k*beta) + 0.75*c).
					Add(all.Scale(beta * sm)).
					Add(sharp.Scale(c / 8))
			}
		}
		setTriVertex(l, v, p)
	}
}

// SubdivideFaces splits every triangle into four.
func (Loop) SubdivideFaces(l *Level, start, stop int) {
	subdivideTriFaces(l, start, stop)
}

// SubdivideHoles splits the boundary loops.
func (Loop) SubdivideHoles(l *Level) {
	subdivideTriHoles(l)
}
