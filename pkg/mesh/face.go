package mesh

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/pkg/material"
	"github.com/Faultbox/midgard-mesh/pkg/math"
	"github.com/Faultbox/midgard-mesh/pkg/packed"
)

// faceBase is the part of a face table both mesh kinds share: the material
// usage map and one normal per face.
type faceBase struct {
	usage   *material.Usage
	normals *packed.Float32Array
	log     *zap.Logger
}

func newFaceBase(depot material.Depot, capacity int, log *zap.Logger) (faceBase, error) {
	normals, err := packed.NewFloat32Array(3, 3, capacity)
	if err != nil {
		return faceBase{}, err
	}
	return faceBase{usage: material.NewUsage(depot), normals: normals, log: log}, nil
}

// Usage returns the material references held by the faces.
func (fb *faceBase) Usage() *material.Usage {
	return fb.usage
}

// Normals returns the face normal array for GPU upload.
func (fb *faceBase) Normals() *packed.Float32Array {
	return fb.normals
}

// Normal returns the normal of f.
func (fb *faceBase) Normal(f Face) math.Vec3 {
	return math.Vec3FromArray(fb.normals.GetVec3(int(f), 0))
}

// SetNormal sets the normal of f.
func (fb *faceBase) SetNormal(f Face, n math.Vec3) {
	fb.normals.SetVec3(int(f), 0, n.Array())
}

// polygon record fields
const (
	polyHalfEdge = 0
	polyMaterial = 1
)

// PolygonTable stores one boundary half-edge and a material per polygon.
type PolygonTable struct {
	faceBase
	edges *HalfEdgeArray
	arr   *packed.Int32Array
}

// PolygonSnapshot is the transferable form of a PolygonTable.
type PolygonSnapshot struct {
	Faces   packed.Snapshot[int32]
	Normals packed.Snapshot[float32]
}

func newPolygonTable(edges *HalfEdgeArray, depot material.Depot, capacity int, log *zap.Logger) (*PolygonTable, error) {
	base, err := newFaceBase(depot, capacity, log)
	if err != nil {
		return nil, err
	}
	arr, err := packed.NewInt32Array(2, 2, capacity)
	if err != nil {
		return nil, err
	}
	return &PolygonTable{faceBase: base, edges: edges, arr: arr}, nil
}

func rehydratePolygonTable(edges *HalfEdgeArray, depot material.Depot, s PolygonSnapshot, log *zap.Logger) (*PolygonTable, error) {
	arr, err := packed.RehydrateInt32(s.Faces)
	if err != nil {
		return nil, fmt.Errorf("polygons: %w", err)
	}
	normals, err := packed.RehydrateFloat32(s.Normals)
	if err != nil {
		return nil, fmt.Errorf("polygon normals: %w", err)
	}
	return &PolygonTable{
		faceBase: faceBase{usage: material.NewUsage(depot), normals: normals, log: log},
		edges:    edges,
		arr:      arr,
	}, nil
}

// Snapshot returns the transferable form.
func (pt *PolygonTable) Snapshot() PolygonSnapshot {
	return PolygonSnapshot{Faces: pt.arr.Snapshot(), Normals: pt.normals.Snapshot()}
}

func (pt *PolygonTable) editables() []editable {
	return []editable{pt.arr, pt.normals}
}

func (pt *PolygonTable) setCheck(on bool) {
	pt.arr.SetCheck(on)
	pt.normals.SetCheck(on)
}

// Array returns the polygon records for GPU upload.
func (pt *PolygonTable) Array() *packed.Int32Array {
	return pt.arr
}

// Len returns the number of polygon records.
func (pt *PolygonTable) Len() int {
	return pt.arr.Len()
}

// alloc appends a polygon with material m without taking a reference.
func (pt *PolygonTable) alloc(m material.Handle) Face {
	f := pt.arr.Alloc()
	pt.normals.Alloc()
	pt.arr.Set(f, polyHalfEdge, int32(NoHalfEdge))
	pt.arr.Set(f, polyMaterial, int32(m))
	return Face(f)
}

// allocEx appends n uninitialized polygons and returns the first.
func (pt *PolygonTable) allocEx(n int) Face {
	f := pt.arr.AllocEx(n)
	pt.normals.AllocEx(n)
	return Face(f)
}

// IsFree reports whether f has no edges.
func (pt *PolygonTable) IsFree(f Face) bool {
	return pt.HalfEdge(f) < 0
}

// HalfEdge returns the first half-edge of f.
func (pt *PolygonTable) HalfEdge(f Face) HalfEdge {
	return HalfEdge(pt.arr.Get(int(f), polyHalfEdge))
}

// SetHalfEdge sets the first half-edge of f.
func (pt *PolygonTable) SetHalfEdge(f Face, h HalfEdge) {
	pt.arr.Set(int(f), polyHalfEdge, int32(h))
}

// Material returns the material of f.
func (pt *PolygonTable) Material(f Face) material.Handle {
	return material.Handle(pt.arr.Get(int(f), polyMaterial))
}

// SetMaterial assigns m to f and moves the reference.
func (pt *PolygonTable) SetMaterial(f Face, m material.Handle) {
	old := pt.Material(f)
	if old == m {
		return
	}
	pt.usage.Swap(old, m)
	pt.arr.Set(int(f), polyMaterial, int32(m))
}

func (pt *PolygonTable) setMaterialRaw(f Face, m material.Handle) {
	pt.arr.Set(int(f), polyMaterial, int32(m))
}

// Edges iterates the half-edges of f.
func (pt *PolygonTable) Edges(f Face) *EdgeIter {
	h := pt.HalfEdge(f)
	return newEdgeIter(pt.edges, h, stepNext, h < 0)
}

// EdgeCount returns the number of sides of f.
func (pt *PolygonTable) EdgeCount(f Face) int {
	n := 0
	it := pt.Edges(f)
	for _, ok := it.Next(); ok; _, ok = it.Next() {
		n++
	}
	return n
}

// SanityCheck verifies that every half-edge of a face loop points back to
// the face.
func (pt *PolygonTable) SanityCheck() bool {
	return len(pt.sanityReport()) == 0
}

func (pt *PolygonTable) sanityReport() []string {
	var issues []string
	limit := pt.edges.Len() + 1
	for i := 0; i < pt.Len(); i++ {
		f := Face(i)
		if pt.IsFree(f) {
			continue
		}
		start := pt.HalfEdge(f)
		h := start
		for steps := 0; ; steps++ {
			if got := pt.edges.Face(h); got != f {
				issues = append(issues, fmt.Sprintf("face %d: half-edge %d belongs to %d", f, h, got))
				break
			}
			h = pt.edges.Next(h)
			if h == start {
				break
			}
			if steps > limit {
				issues = append(issues, fmt.Sprintf("face %d: loop does not close", f))
				break
			}
		}
	}
	for _, msg := range issues {
		pt.log.Warn("face sanity", zap.String("issue", msg))
	}
	return issues
}

// TriangleTable stores a material per triangle. Triangle f owns directed
// edges 3f, 3f+1 and 3f+2, so no edge pointer is stored.
type TriangleTable struct {
	faceBase
	edges *DirectedEdgeArray
	mats  *packed.Int32Array
}

// TriangleSnapshot is the transferable form of a TriangleTable.
type TriangleSnapshot struct {
	Materials packed.Snapshot[int32]
	Normals   packed.Snapshot[float32]
}

func newTriangleTable(edges *DirectedEdgeArray, depot material.Depot, capacity int, log *zap.Logger) (*TriangleTable, error) {
	base, err := newFaceBase(depot, capacity, log)
	if err != nil {
		return nil, err
	}
	mats, err := packed.NewInt32Array(1, 1, capacity)
	if err != nil {
		return nil, err
	}
	return &TriangleTable{faceBase: base, edges: edges, mats: mats}, nil
}

func rehydrateTriangleTable(edges *DirectedEdgeArray, depot material.Depot, s TriangleSnapshot, log *zap.Logger) (*TriangleTable, error) {
	mats, err := packed.RehydrateInt32(s.Materials)
	if err != nil {
		return nil, fmt.Errorf("triangles: %w", err)
	}
	normals, err := packed.RehydrateFloat32(s.Normals)
	if err != nil {
		return nil, fmt.Errorf("triangle normals: %w", err)
	}
	return &TriangleTable{
		faceBase: faceBase{usage: material.NewUsage(depot), normals: normals, log: log},
		edges:    edges,
		mats:     mats,
	}, nil
}

// Snapshot returns the transferable form.
func (tt *TriangleTable) Snapshot() TriangleSnapshot {
	return TriangleSnapshot{Materials: tt.mats.Snapshot(), Normals: tt.normals.Snapshot()}
}

func (tt *TriangleTable) editables() []editable {
	return []editable{tt.mats, tt.normals}
}

func (tt *TriangleTable) setCheck(on bool) {
	tt.mats.SetCheck(on)
	tt.normals.SetCheck(on)
}

// Array returns the material array for GPU upload.
func (tt *TriangleTable) Array() *packed.Int32Array {
	return tt.mats
}

// Len returns the number of triangles.
func (tt *TriangleTable) Len() int {
	return tt.mats.Len()
}

func (tt *TriangleTable) alloc(m material.Handle) Face {
	f := tt.mats.Alloc()
	tt.normals.Alloc()
	tt.mats.Set(f, 0, int32(m))
	return Face(f)
}

func (tt *TriangleTable) allocEx(n int) Face {
	f := tt.mats.AllocEx(n)
	tt.normals.AllocEx(n)
	return Face(f)
}

// IsFree is always false: triangles are never released.
func (tt *TriangleTable) IsFree(Face) bool {
	return false
}

// HalfEdge returns the first directed edge of f.
func (tt *TriangleTable) HalfEdge(f Face) HalfEdge {
	return HalfEdge(f * 3)
}

// Material returns the material of f.
func (tt *TriangleTable) Material(f Face) material.Handle {
	return material.Handle(tt.mats.Get(int(f), 0))
}

// SetMaterial assigns m to f and moves the reference.
func (tt *TriangleTable) SetMaterial(f Face, m material.Handle) {
	old := tt.Material(f)
	if old == m {
		return
	}
	tt.usage.Swap(old, m)
	tt.mats.Set(int(f), 0, int32(m))
}

func (tt *TriangleTable) setMaterialRaw(f Face, m material.Handle) {
	tt.mats.Set(int(f), 0, int32(m))
}

// Edges iterates the three directed edges of f.
func (tt *TriangleTable) Edges(f Face) *EdgeIter {
	return LoopIter(tt.edges, HalfEdge(f*3))
}

// EdgeCount returns 3.
func (tt *TriangleTable) EdgeCount(Face) int {
	return 3
}
