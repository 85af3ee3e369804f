// Package primitive builds the small meshes meshtool and the tests work on.
package primitive

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Faultbox/midgard-mesh/pkg/material"
	"github.com/Faultbox/midgard-mesh/pkg/math"
	"github.com/Faultbox/midgard-mesh/pkg/mesh"
)

// ErrUnknown is returned by Build for a name it does not know.
var ErrUnknown = errors.New("primitive: unknown primitive")

// Shape is the raw description of a primitive: points and faces given as
// counter-clockwise vertex loops seen from outside.
type Shape struct {
	Points []math.Vec3
	Faces  [][]mesh.Vertex
}

// Build inserts the shape into a new mesh of the given kind. Faces with more
// than three corners are fan-triangulated for a TriMesh.
func (s Shape) Build(depot material.Depot, kind mesh.Kind, opts mesh.Options) (mesh.Mesh, error) {
	if opts.Capacity == 0 {
		opts.Capacity = len(s.Points)
	}

	var (
		m   mesh.Mesh
		err error
	)
	switch kind {
	case mesh.KindPoly:
		m, err = mesh.NewPolyMesh(depot, opts)
	case mesh.KindTri:
		m, err = mesh.NewTriMesh(depot, opts)
	default:
		return nil, fmt.Errorf("primitive: unsupported mesh kind %s", kind)
	}
	if err != nil {
		return nil, err
	}

	for _, p := range s.Points {
		m.AddVertex(p)
	}
	for i, f := range s.Faces {
		if kind == mesh.KindTri && len(f) > 3 {
			for j := 1; j+1 < len(f); j++ {
				if _, err := m.AddFace(f[0], f[j], f[j+1]); err != nil {
					return nil, fmt.Errorf("face %d: %w", i, err)
				}
			}
			continue
		}
		if _, err := m.AddFace(f...); err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
	}
	m.DoneEdit()
	return m, nil
}

// Cube is an axis aligned cube of edge length size centred on the origin.
// Vertex i has x, y and z on the positive side when bit 0, 1 and 2 are set.
func Cube(size float32) Shape {
	h := size / 2
	pts := make([]math.Vec3, 8)
	for i := range pts {
		p := math.Vec3{X: -h, Y: -h, Z: -h}
		if i&1 != 0 {
			p.X = h
		}
		if i&2 != 0 {
			p.Y = h
		}
		if i&4 != 0 {
			p.Z = h
		}
		pts[i] = p
	}
	return Shape{
		Points: pts,
		Faces: [][]mesh.Vertex{
			{0, 2, 3, 1}, // -z
			{4, 5, 7, 6}, // +z
			{0, 1, 5, 4}, // -y
			{2, 6, 7, 3}, // +y
			{0, 4, 6, 2}, // -x
			{1, 3, 7, 5}, // +x
		},
	}
}

// Tetrahedron is the regular tetrahedron inscribed in the cube [-1, 1]^3.
func Tetrahedron() Shape {
	return Shape{
		Points: []math.Vec3{
			{X: 1, Y: 1, Z: 1},
			{X: 1, Y: -1, Z: -1},
			{X: -1, Y: 1, Z: -1},
			{X: -1, Y: -1, Z: 1},
		},
		Faces: [][]mesh.Vertex{
			{0, 1, 2},
			{0, 3, 1},
			{0, 2, 3},
			{1, 3, 2},
		},
	}
}

// Octahedron has its six vertices on the unit axes: +x, -x, +y, -y, +z, -z.
func Octahedron() Shape {
	return Shape{
		Points: []math.Vec3{
			{X: 1}, {X: -1},
			{Y: 1}, {Y: -1},
			{Z: 1}, {Z: -1},
		},
		Faces: [][]mesh.Vertex{
			{0, 2, 4}, {2, 1, 4}, {1, 3, 4}, {3, 0, 4},
			{2, 0, 5}, {1, 2, 5}, {3, 1, 5}, {0, 3, 5},
		},
	}
}

// Grid is an nx by ny grid of unit quads in the z = 0 plane, facing +z.
// The vertex at column i and row j is j*(nx+1)+i.
func Grid(nx, ny int) Shape {
	pts := make([]math.Vec3, 0, (nx+1)*(ny+1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			pts = append(pts, math.Vec3{X: float32(i), Y: float32(j)})
		}
	}
	idx := func(i, j int) mesh.Vertex { return mesh.Vertex(j*(nx+1) + i) }
	faces := make([][]mesh.Vertex, 0, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			faces = append(faces, []mesh.Vertex{idx(i, j), idx(i+1, j), idx(i+1, j+1), idx(i, j+1)})
		}
	}
	return Shape{Points: pts, Faces: faces}
}

// Quad is the unit square.
func Quad() Shape {
	return Grid(1, 1)
}

// Triangle is the right triangle (0,0,0), (1,0,0), (0,1,0).
func Triangle() Shape {
	return Shape{
		Points: []math.Vec3{{}, {X: 1}, {Y: 1}},
		Faces:  [][]mesh.Vertex{{0, 1, 2}},
	}
}

var registry = map[string]func() Shape{
	"cube":        func() Shape { return Cube(2) },
	"tetrahedron": Tetrahedron,
	"octahedron":  Octahedron,
	"grid":        func() Shape { return Grid(4, 4) },
	"quad":        Quad,
	"triangle":    Triangle,
}

// Names returns the primitives Build knows, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build creates the named primitive as a mesh of the given kind.
func Build(name string, depot material.Depot, kind mesh.Kind, opts mesh.Options) (mesh.Mesh, error) {
	shape, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return shape().Build(depot, kind, opts)
}
