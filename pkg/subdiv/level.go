package subdiv

import (
	"fmt"

	"github.com/Faultbox/midgard-mesh/pkg/material"
	"github.com/Faultbox/midgard-mesh/pkg/mesh"
)

// Pass names. The parallel driver uses them as message names.
const (
	PhaseRefineFace    = "refineFace"
	PhaseRefineEdge    = "refineEdge"
	PhaseRefineVertex  = "refineVertex"
	PhaseSubdivideFace = "subdivideFace"
	PhaseSubdivideHole = "subdivideHole"
)

// Phase is one pass of a level over Len elements.
type Phase struct {
	Name string
	Len  int
}

// freeChain is a run of released winged edges linked in place by the hole
// pass and attached to the destination free list by Finish.
type freeChain struct {
	head, tail mesh.WingedEdge
	n          int
}

// layout is the part of a level computed once by Prepare and shared by all
// views of the level.
type layout struct {
	vertices int
	faces    int
	wEdges   int
	// first destination vertex of the edge points
	edgeBase int

	// faceStart[f] is the first destination quad of polygon f; the last
	// entry is the number of quads.
	faceStart []int32
	// butterfly stencil weights by valence
	coeffs [][]float32
	// material references the destination takes over
	refs map[material.Handle]int

	free freeChain
}

// Level is one subdivision step from Src into the preallocated Dst.
type Level struct {
	Src mesh.Mesh
	Dst mesh.Mesh

	scheme Scheme
	depot  material.Depot
	poly   struct{ src, dst *mesh.PolyMesh }
	tri    struct{ src, dst *mesh.TriMesh }
	layout *layout

	// per view scratch
	attr *mesh.Interpolator
	loop []mesh.HalfEdge
}

func newPolyLevel(s Scheme, src, dst *mesh.PolyMesh, lay *layout) *Level {
	l := &Level{Src: src, Dst: dst, scheme: s, depot: src.Usage().Depot(), layout: lay}
	l.poly.src, l.poly.dst = src, dst
	l.attr = src.AttributeInterpolator()
	return l
}

func newTriLevel(s Scheme, src, dst *mesh.TriMesh, lay *layout) *Level {
	l := &Level{Src: src, Dst: dst, scheme: s, depot: src.Usage().Depot(), layout: lay}
	l.tri.src, l.tri.dst = src, dst
	l.attr = src.AttributeInterpolator()
	return l
}

// Phases returns the passes of the level in execution order.
func (l *Level) Phases() []Phase {
	lay := l.layout
	var phases []Phase
	if l.poly.src != nil {
		phases = append(phases, Phase{PhaseRefineFace, lay.faces})
	}
	return append(phases,
		Phase{PhaseRefineEdge, lay.wEdges},
		Phase{PhaseRefineVertex, lay.vertices},
		Phase{PhaseSubdivideFace, lay.faces},
		Phase{PhaseSubdivideHole, 1},
	)
}

// Run executes the elements [start, stop) of pass fn.
func (l *Level) Run(fn string, start, stop int) error {
	switch fn {
	case PhaseRefineFace:
		l.scheme.RefineFacePoints(l, start, stop)
	case PhaseRefineEdge:
		l.scheme.RefineEdges(l, start, stop)
	case PhaseRefineVertex:
		l.scheme.RefineVertices(l, start, stop)
	case PhaseSubdivideFace:
		l.scheme.SubdivideFaces(l, start, stop)
	case PhaseSubdivideHole:
		if start < stop {
			l.scheme.SubdivideHoles(l)
		}
	default:
		return fmt.Errorf("%w: %q", ErrPhase, fn)
	}
	return nil
}

// Finish attaches the released winged edges, takes the material references
// of the new faces, carries name groups over and turns change tracking back
// on. It must run once, after every pass.
func (l *Level) Finish() mesh.Mesh {
	lay := l.layout
	if l.poly.dst != nil && lay.free.n > 0 {
		l.poly.dst.HalfEdges().ConcatFree(lay.free.head, lay.free.tail, lay.free.n)
	}
	usage := l.Dst.Usage()
	for h, n := range lay.refs {
		usage.AddRef(h, n)
	}
	for _, g := range l.Src.NameGroups() {
		l.Dst.AddNameGroup(g.Name, l.childFace(g.Start)).Finalize(l.childFace(g.End))
	}
	l.Dst.SetTracking(true)
	return l.Dst
}

func (l *Level) facePoint(f mesh.Face) mesh.Vertex {
	return mesh.Vertex(l.layout.vertices + int(f))
}

func (l *Level) edgePoint(w mesh.WingedEdge) mesh.Vertex {
	return mesh.Vertex(l.layout.edgeBase + int(w))
}

// childFace maps a source face boundary to the first face refined from it.
func (l *Level) childFace(f mesh.Face) mesh.Face {
	if l.poly.src != nil {
		if int(f) >= len(l.layout.faceStart) {
			return mesh.Face(l.layout.faceStart[len(l.layout.faceStart)-1])
		}
		return mesh.Face(l.layout.faceStart[f])
	}
	return f * 4
}

// levelSnapshot is a level in transferable form. Views rehydrated from it
// share the buffers of both meshes and the layout.
type levelSnapshot struct {
	scheme  Scheme
	depot   material.Depot
	layout  *layout
	kind    mesh.Kind
	polySrc mesh.PolyMeshSnapshot
	polyDst mesh.PolyMeshSnapshot
	triSrc  mesh.TriMeshSnapshot
	triDst  mesh.TriMeshSnapshot
}

func (l *Level) dehydrate() *levelSnapshot {
	s := &levelSnapshot{scheme: l.scheme, depot: l.depot, layout: l.layout}
	if l.poly.src != nil {
		s.kind = mesh.KindPoly
		s.polySrc, s.polyDst = l.poly.src.Dehydrate(), l.poly.dst.Dehydrate()
	} else {
		s.kind = mesh.KindTri
		s.triSrc, s.triDst = l.tri.src.Dehydrate(), l.tri.dst.Dehydrate()
	}
	return s
}

// view rebuilds a level over the shared buffers with its own scratch state.
func (s *levelSnapshot) view() (*Level, error) {
	if s.kind == mesh.KindPoly {
		src, err := mesh.RehydratePolyMesh(s.polySrc, s.depot)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		dst, err := mesh.RehydratePolyMesh(s.polyDst, s.depot)
		if err != nil {
			return nil, fmt.Errorf("destination: %w", err)
		}
		return newPolyLevel(s.scheme, src, dst, s.layout), nil
	}
	src, err := mesh.RehydrateTriMesh(s.triSrc, s.depot)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	dst, err := mesh.RehydrateTriMesh(s.triDst, s.depot)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	return newTriLevel(s.scheme, src, dst, s.layout), nil
}

// nextSharpness is the sharpness one level down: boundaries stay infinitely
// sharp, sharp edges lose one unit and fractional ones become smooth.
func nextSharpness(s float32) float32 {
	switch {
	case s < 0:
		return s
	case s >= 1:
		return s - 1
	default:
		return 0
	}
}
