// Package mesh implements editable polygon and triangle meshes whose
// topology lives in packed, texture-uploadable arrays.
//
// A PolyMesh stores arbitrary polygons with an explicit half-edge structure.
// A TriMesh stores triangles only, using directed edges whose next and prev
// are implied by the edge index. Both share the vertex table, the hole table
// and the per-half-edge attribute arrays.
package mesh

import "errors"

// Vertex identifies a vertex record.
type Vertex int32

// HalfEdge identifies a directed edge. In a TriMesh, negative values are free
// (boundary) edges.
type HalfEdge int32

// WingedEdge identifies an undirected edge record.
type WingedEdge int32

// Face identifies a face record. Negative values below NoFace are holes.
type Face int32

// Hole identifies a boundary loop. Holes share the negative range of Face,
// starting at FirstHole.
type Hole int32

const (
	// NoFace marks a boundary edge not yet assigned to a hole.
	NoFace Face = -1
	// NoHalfEdge marks a vertex without edges.
	NoHalfEdge HalfEdge = -1
	// FirstHole is the handle of the first hole slot.
	FirstHole Hole = -2
)

// IsHole reports whether f refers to a hole.
func (f Face) IsHole() bool {
	return f < NoFace
}

// Face returns the face handle a poly half-edge uses to refer to the hole.
func (h Hole) Face() Face {
	return Face(h)
}

var (
	// ErrNonManifold is returned when a new face would reuse an edge that
	// already has faces on both sides.
	ErrNonManifold = errors.New("mesh: non-manifold edge")
	// ErrComplexVertex is returned when a vertex has no free gap to fan a
	// new face into.
	ErrComplexVertex = errors.New("mesh: complex vertex")
	// ErrBadPolygon is returned for loops with too few or repeated vertices.
	ErrBadPolygon = errors.New("mesh: invalid polygon")
	// ErrNotTriangle is returned when a TriMesh is given a non-triangle.
	ErrNotTriangle = errors.New("mesh: not a triangle")
	// ErrInvalidHole is returned for operations on a free hole slot.
	ErrInvalidHole = errors.New("mesh: invalid hole")
	// ErrBadSnapshot is returned when a snapshot cannot be rehydrated.
	ErrBadSnapshot = errors.New("mesh: bad snapshot")
)
