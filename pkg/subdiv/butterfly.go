package subdiv

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-mesh/pkg/math"
	"github.com/Faultbox/midgard-mesh/pkg/mesh"
)

// Butterfly is the interpolating Modified Butterfly scheme (Zorin,
// Schröder, Sweldens). Original vertices keep their positions.
type Butterfly struct{}

// regular 10-point stencil; wK is the tension parameter
const (
	wK = -1.0 / 16
	aK = 1.0/2 - wK
	bK = 1.0/8 + 2*wK
	cK = -1.0/16 - wK
	dK = wK
)

var butterflyStencil = [4]float32{bK, cK, dK, cK}

// butterflyCoefficients returns the weights of the ring around an
// extraordinary vertex of valence n, the vertex's own weight last.
func butterflyCoefficients(n int) []float32 {
	switch n {
	case 3:
		return []float32{5.0 / 12, -1.0 / 12, -1.0 / 12, 3.0 / 4}
	case 4:
		return []float32{3.0 / 8, 0, -1.0 / 8, 0, 3.0 / 4}
	}
	coeff := make([]float32, n+1)
	var sum float32
	inv := 1 / float32(n)
	for j := range n {
		t := 2 * math32.Pi * float32(j) * inv
		coeff[j] = (0.25 + math32.Cos(t) + 0.5*math32.Cos(2*t)) * inv
		sum += coeff[j]
	}
	coeff[n] = 1 - sum
	return coeff
}

// Name returns "butterfly".
func (Butterfly) Name() string { return "butterfly" }

// Kind returns mesh.KindTri.
func (Butterfly) Kind() mesh.Kind { return mesh.KindTri }

// Prepare allocates the destination of one level and the stencil weights
// up to the largest valence of the source.
func (Butterfly) Prepare(src mesh.Mesh) (*Level, error) {
	l, err := prepareTri(Butterfly{}, src)
	if err != nil {
		return nil, err
	}
	maxValence := src.Vertices().ValenceMax()
	l.layout.coeffs = make([][]float32, maxValence+1)
	for n := 3; n <= maxValence; n++ {
		l.layout.coeffs[n] = butterflyCoefficients(n)
	}
	return l, nil
}

func (l *Level) butterflyCoeffs(n int) []float32 {
	if n < len(l.layout.coeffs) && l.layout.coeffs[n] != nil {
		return l.layout.coeffs[n]
	}
	return butterflyCoefficients(n)
}

// RefineFacePoints does nothing: triangle schemes have no face points.
func (Butterfly) RefineFacePoints(*Level, int, int) {}

// RefineEdges computes the edge points. Boundary edges use the 4-point
// curve rule along their hole, interior edges next to a boundary fall back
// to the midpoint, and the rest use the 10-point stencil when both ends are
// regular (valence 6) or the extraordinary stencil of the irregular ends.
func (Butterfly) RefineEdges(l *Level, start, stop int) {
	se := l.tri.src.DirectedEdges()
	sv := l.tri.src.Vertices()

	for i := start; i < stop; i++ {
		w := mesh.WingedEdge(i)
		left := se.Left(w)
		right := se.Pair(left)
		a, b := se.Origin(left), se.Destination(left)
		va, vb := sv.Valence(a), sv.Valence(b)
		ab := sv.Pt(a).Add(sv.Pt(b))

		var p math.Vec3
		switch {
		case right < 0:
			c := se.Destination(se.Next(right))
			d := se.Origin(se.Prev(right))
			p = ab.Scale(9.0 / 16).Sub(sv.Pt(c).Add(sv.Pt(d)).Scale(1.0 / 16))
		case va < 3 || vb < 3 || touchesBoundary(se, sv, a) || touchesBoundary(se, sv, b):
			p = ab.Scale(0.5)
		case va == 6 && vb == 6:
			p = butterflyRegular(se, sv, left, right, ab)
		case va != 6 && vb != 6:
			p = butterflyExtraordinary(se, sv, a, left, l.butterflyCoeffs(va)).
				Add(butterflyExtraordinary(se, sv, b, right, l.butterflyCoeffs(vb))).
				Scale(0.5)
		case va != 6:
			p = butterflyExtraordinary(se, sv, a, left, l.butterflyCoeffs(va))
		default:
			p = butterflyExtraordinary(se, sv, b, right, l.butterflyCoeffs(vb))
		}
		setTriEdge(l, w, left, right, p, se.WSharpness(w))
	}
}

// butterflyRegular walks the wings around both ends of left, from the
// far side of the opposite edge up to the near side.
func butterflyRegular(se *mesh.DirectedEdgeArray, sv *mesh.VertexTable, left, right mesh.HalfEdge, ab math.Vec3) math.Vec3 {
	p := ab.Scale(aK)
	for _, e := range [2][2]mesh.HalfEdge{{left, right}, {right, left}} {
		lt, rt := e[0], e[1]
		end := se.Pair(se.Prev(lt))
		cur := se.Next(rt)
		for i := 0; i < len(butterflyStencil) && cur != end; i++ {
			in := se.Pair(cur)
			p = p.ScaleAndAdd(sv.Pt(se.Origin(in)), butterflyStencil[i])
			cur = se.Next(in)
		}
	}
	return p
}

// butterflyExtraordinary applies the ring stencil of v, starting with the
// neighbour h points at.
func butterflyExtraordinary(se *mesh.DirectedEdgeArray, sv *mesh.VertexTable, v mesh.Vertex, h mesh.HalfEdge, coeff []float32) math.Vec3 {
	n := len(coeff) - 1
	p := sv.Pt(v).Scale(coeff[n])
	cur := h
	for i := range n {
		in := se.Pair(cur)
		p = p.ScaleAndAdd(sv.Pt(se.Origin(in)), coeff[i])
		if cur = se.Next(in); cur == h {
			break
		}
	}
	return p
}

// RefineVertices keeps the original positions.
func (Butterfly) RefineVertices(l *Level, start, stop int) {
	sv := l.tri.src.Vertices()
	for i := start; i < stop; i++ {
		v := mesh.Vertex(i)
		setTriVertex(l, v, sv.Pt(v))
	}
}

// SubdivideFaces splits every triangle into four.
func (Butterfly) SubdivideFaces(l *Level, start, stop int) {
	subdivideTriFaces(l, start, stop)
}

// SubdivideHoles splits the boundary loops.
func (Butterfly) SubdivideHoles(l *Level) {
	subdivideTriHoles(l)
}
