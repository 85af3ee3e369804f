package mesh

import "github.com/Faultbox/midgard-mesh/pkg/material"

// PullVertex is one corner of a triangle drawn by vertex pulling.
type PullVertex struct {
	HalfEdge HalfEdge
	Vertex   Vertex
	Material material.Handle
}

// PullBuffer is the input of a vertex-pulling draw: triangle corners as
// (half-edge, vertex, material) triples and the uniforms of every material
// the mesh uses.
type PullBuffer struct {
	Corners   []PullVertex
	Materials []material.Uniforms
}

// Triangles returns the number of triangles in the buffer.
func (pb PullBuffer) Triangles() int {
	return len(pb.Corners) / 3
}

// Int32s flattens the corners for upload.
func (pb PullBuffer) Int32s() []int32 {
	out := make([]int32, 0, len(pb.Corners)*3)
	for _, c := range pb.Corners {
		out = append(out, int32(c.HalfEdge), int32(c.Vertex), int32(c.Material))
	}
	return out
}

// makePullBuffer fan-triangulates every face: corner 0 is shared by each
// triangle of a polygon. Normals are recomputed first.
func makePullBuffer(m Mesh) PullBuffer {
	m.ComputeNormals()

	faces := m.Faces()
	edges := m.Edges()
	var pb PullBuffer
	for i := 0; i < faces.Len(); i++ {
		f := Face(i)
		if faces.IsFree(f) {
			continue
		}
		mat := faces.Material(f)
		var first, last PullVertex
		n := 0
		it := faces.Edges(f)
		for h, ok := it.Next(); ok; h, ok = it.Next() {
			corner := PullVertex{HalfEdge: h, Vertex: edges.Origin(h), Material: mat}
			switch {
			case n == 0:
				first = corner
			case n > 2:
				pb.Corners = append(pb.Corners, first, last)
			}
			pb.Corners = append(pb.Corners, corner)
			last = corner
			n++
		}
	}

	for _, e := range m.Usage().Entries() {
		pb.Materials = append(pb.Materials, m.Usage().Uniforms(e.Handle))
	}
	return pb
}
