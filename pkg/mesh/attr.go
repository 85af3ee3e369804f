package mesh

import (
	"github.com/Faultbox/midgard-mesh/pkg/math"
	"github.com/Faultbox/midgard-mesh/pkg/packed"
)

// per half-edge attribute fields
const (
	attrColor  = 0
	attrNormal = 3
	attrSize   = 6
)

// Attributes holds the per half-edge color, normal and UV layers. Records
// are addressed by non-negative half-edge handles.
type Attributes struct {
	attrs *packed.Float16Array
	uvs   *packed.TexCoordArray
}

// AttributeSnapshot is the transferable form of Attributes.
type AttributeSnapshot struct {
	Attrs packed.Snapshot[uint16]
	UVs   packed.TexCoordSnapshot
}

func newAttributes(layers, capacity int) (*Attributes, error) {
	attrs, err := packed.NewFloat16Array(attrSize, 3, capacity)
	if err != nil {
		return nil, err
	}
	uvs, err := packed.NewTexCoordArray(layers, capacity)
	if err != nil {
		return nil, err
	}
	return &Attributes{attrs: attrs, uvs: uvs}, nil
}

func rehydrateAttributes(s AttributeSnapshot) (*Attributes, error) {
	attrs, err := packed.RehydrateFloat16(s.Attrs)
	if err != nil {
		return nil, err
	}
	uvs, err := packed.RehydrateTexCoord(s.UVs)
	if err != nil {
		return nil, err
	}
	return &Attributes{attrs: attrs, uvs: uvs}, nil
}

// Snapshot returns the transferable form.
func (a *Attributes) Snapshot() AttributeSnapshot {
	return AttributeSnapshot{Attrs: a.attrs.Snapshot(), UVs: a.uvs.Snapshot()}
}

func (a *Attributes) alloc() {
	a.attrs.Alloc()
	a.uvs.Alloc()
}

func (a *Attributes) allocEx(n int) {
	a.attrs.AllocEx(n)
	a.uvs.AllocEx(n)
}

func (a *Attributes) setCheck(on bool) {
	a.attrs.SetCheck(on)
	a.uvs.SetCheck(on)
}

// Len returns the number of records.
func (a *Attributes) Len() int {
	return a.attrs.Len()
}

// Layers returns the number of UV layers.
func (a *Attributes) Layers() int {
	return a.uvs.Depth()
}

// Array returns the color and normal array for GPU upload.
func (a *Attributes) Array() *packed.Float16Array {
	return a.attrs
}

// UVs returns the UV layers for GPU upload.
func (a *Attributes) UVs() *packed.TexCoordArray {
	return a.uvs
}

// Color returns the color of h.
func (a *Attributes) Color(h HalfEdge) math.Vec3 {
	return math.Vec3FromArray(a.attrs.GetVec3(int(h), attrColor))
}

// SetColor sets the color of h.
func (a *Attributes) SetColor(h HalfEdge, c math.Vec3) {
	a.attrs.SetVec3(int(h), attrColor, c.Array())
}

// Normal returns the normal of h.
func (a *Attributes) Normal(h HalfEdge) math.Vec3 {
	return math.Vec3FromArray(a.attrs.GetVec3(int(h), attrNormal))
}

// SetNormal sets the normal of h.
func (a *Attributes) SetNormal(h HalfEdge, n math.Vec3) {
	a.attrs.SetVec3(int(h), attrNormal, n.Array())
}

// UV returns the texture coordinate of h in layer.
func (a *Attributes) UV(h HalfEdge, layer int) math.Vec2 {
	return math.Vec2FromArray(a.uvs.Get(int(h), layer))
}

// SetUV sets the texture coordinate of h in layer.
func (a *Attributes) SetUV(h HalfEdge, layer int, uv math.Vec2) {
	a.uvs.Set(int(h), layer, uv.Array())
}

// Interpolator returns a fresh accumulator over a. Each goroutine needs its
// own.
func (a *Attributes) Interpolator() *Interpolator {
	return &Interpolator{src: a, uv: make([]math.Vec2, a.Layers())}
}

// Interpolator averages attributes of several half-edges and writes the
// result to half-edges of another mesh.
type Interpolator struct {
	src    *Attributes
	color  math.Vec3
	normal math.Vec3
	uv     []math.Vec2
}

// Reset clears the accumulator.
func (ip *Interpolator) Reset() {
	ip.color = math.Vec3{}
	ip.normal = math.Vec3{}
	for i := range ip.uv {
		ip.uv[i] = math.Vec2{}
	}
}

// Init resets the accumulator to the attributes of h.
func (ip *Interpolator) Init(h HalfEdge) {
	ip.Reset()
	ip.Add(h)
}

// Add accumulates the attributes of h.
func (ip *Interpolator) Add(h HalfEdge) {
	ip.color = ip.color.Add(ip.src.Color(h))
	ip.normal = ip.normal.Add(ip.src.Normal(h))
	for i := range ip.uv {
		ip.uv[i] = ip.uv[i].Add(ip.src.UV(h, i))
	}
}

// Interpolate divides the accumulated sum by divisor.
func (ip *Interpolator) Interpolate(divisor float32) {
	s := 1 / divisor
	ip.color = ip.color.Scale(s)
	ip.normal = ip.normal.Scale(s)
	for i := range ip.uv {
		ip.uv[i] = ip.uv[i].Scale(s)
	}
}

// CopyTo writes the accumulated attributes to h of dst.
func (ip *Interpolator) CopyTo(dst *Attributes, h HalfEdge) {
	dst.SetColor(h, ip.color)
	dst.SetNormal(h, ip.normal)
	for i := range ip.uv {
		if i < dst.Layers() {
			dst.SetUV(h, i, ip.uv[i])
		}
	}
}
