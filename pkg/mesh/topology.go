package mesh

import (
	"fmt"

	"github.com/Faultbox/midgard-mesh/pkg/material"
)

// EdgeTopology is the connectivity both edge encodings provide.
type EdgeTopology interface {
	// Len returns the number of half-edge slots in use.
	Len() int
	Pair(h HalfEdge) HalfEdge
	Next(h HalfEdge) HalfEdge
	Prev(h HalfEdge) HalfEdge
	Origin(h HalfEdge) Vertex
	Destination(h HalfEdge) Vertex
	// IsBoundary reports whether no face lies on h's side.
	IsBoundary(h HalfEdge) bool
	// LinkNext makes next follow h in its loop.
	LinkNext(h, next HalfEdge)
	WEdge(h HalfEdge) WingedEdge
	Sharpness(h HalfEdge) float32
}

// HoleTopology is an EdgeTopology whose boundary edges record their hole.
type HoleTopology interface {
	EdgeTopology
	HoleOf(h HalfEdge) Hole
	SetHoleOf(h HalfEdge, hole Hole)
	// Boundaries returns every boundary half-edge.
	Boundaries() []HalfEdge
}

// FaceTopology is the face side of a mesh.
type FaceTopology interface {
	Len() int
	HalfEdge(f Face) HalfEdge
	Material(f Face) material.Handle
	IsFree(f Face) bool
}

type iterStep uint8

const (
	stepOut  iterStep = iota // next(pair(h)) around a vertex
	stepIn                   // same walk, yielding pair(h)
	stepNext                 // next(h) around a face or hole
)

// EdgeIter walks a closed cycle of half-edges once. The zero value is an
// exhausted iterator.
type EdgeIter struct {
	topo    EdgeTopology
	start   HalfEdge
	current HalfEdge
	done    bool
	step    iterStep
}

func newEdgeIter(topo EdgeTopology, start HalfEdge, step iterStep, empty bool) *EdgeIter {
	return &EdgeIter{topo: topo, start: start, current: start, done: empty || topo == nil, step: step}
}

// OutEdgeIter walks the half-edges leaving the origin of start.
func OutEdgeIter(topo EdgeTopology, start HalfEdge) *EdgeIter {
	return newEdgeIter(topo, start, stepOut, false)
}

// LoopIter walks the face or hole loop containing start.
func LoopIter(topo EdgeTopology, start HalfEdge) *EdgeIter {
	return newEdgeIter(topo, start, stepNext, false)
}

// Next returns the next half-edge of the cycle.
func (it *EdgeIter) Next() (HalfEdge, bool) {
	if it.done || it.topo == nil {
		return 0, false
	}
	h := it.current
	switch it.step {
	case stepNext:
		it.current = it.topo.Next(h)
	default:
		it.current = it.topo.Next(it.topo.Pair(h))
	}
	if it.current == it.start {
		it.done = true
	}
	if it.step == stepIn {
		return it.topo.Pair(h), true
	}
	return h, true
}

// Reset restarts the walk from its first half-edge.
func (it *EdgeIter) Reset() {
	it.current = it.start
	it.done = it.topo == nil
}

// Collect drains the iterator into a slice.
func (it *EdgeIter) Collect() []HalfEdge {
	var out []HalfEdge
	for h, ok := it.Next(); ok; h, ok = it.Next() {
		out = append(out, h)
	}
	return out
}

// makeAdjacent relinks the boundary so that out directly follows in. Both
// must be boundary half-edges meeting at one vertex. It fails when no other
// free gap exists around the vertex to park the edges that sat between them.
func makeAdjacent(topo EdgeTopology, in, out HalfEdge) error {
	if topo.Next(in) == out {
		return nil
	}

	b := topo.Next(in)
	d := topo.Prev(out)

	g, ok := findFreeGap(topo, out, in)
	if !ok {
		return fmt.Errorf("%w: no free gap at vertex %d", ErrComplexVertex, topo.Origin(out))
	}

	if g == d {
		topo.LinkNext(in, out)
		topo.LinkNext(d, b)
		return nil
	}
	h := topo.Next(g)
	topo.LinkNext(in, out)
	topo.LinkNext(g, b)
	topo.LinkNext(d, h)
	return nil
}

// findFreeGap searches the in-edges of out's origin, starting at pair(out)
// and stopping before reaching before, for a boundary half-edge.
func findFreeGap(topo EdgeTopology, out, before HalfEdge) (HalfEdge, bool) {
	g := topo.Pair(out)
	for i := 0; i <= topo.Len() && g != before; i++ {
		if topo.IsBoundary(g) {
			return g, true
		}
		g = topo.Pair(topo.Next(g))
	}
	return 0, false
}
