package gpu

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/internal/logger"
	"github.com/Faultbox/midgard-mesh/pkg/mesh"
)

// Uploader keeps the textures of one mesh in sync with its arrays.
// IMPORTANT: all methods must run on the thread owning the GL context.
type Uploader struct {
	textures map[string]*Texture
	uvs      *Texture
	pull     uint32
	pullLen  int
	log      *zap.Logger
}

// NewUploader loads the OpenGL entry points of the current context.
func NewUploader() (*Uploader, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoContext, err)
	}
	u := &Uploader{
		textures: make(map[string]*Texture),
		log:      logger.Named("gpu"),
	}
	u.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)
	return u, nil
}

// sources lists the arrays of m by texture name.
func sources(m mesh.Mesh) map[string]Source {
	vt := m.Vertices()
	src := map[string]Source{
		"points":      vt.Points(),
		"vertexEdges": vt.HalfEdges(),
		"vertexAttrs": vt.Attrs(),
		"holes":       m.Holes().Array(),
		"edgeAttrs":   m.Attributes().Array(),
	}
	switch m := m.(type) {
	case *mesh.PolyMesh:
		src["halfEdges"] = m.HalfEdges().Array()
		src["wEdges"] = m.HalfEdges().WEdgeArray()
		src["faces"] = m.Polygons().Array()
		src["faceNormals"] = m.Polygons().Normals()
	case *mesh.TriMesh:
		src["dEdges"] = m.DirectedEdges().Array()
		src["wEdges"] = m.DirectedEdges().WEdgeArray()
		src["faces"] = m.Triangles().Array()
		src["faceNormals"] = m.Triangles().Normals()
	}
	return src
}

// Sync uploads every array of m that changed since the previous call and
// returns the names of the textures it touched.
func (u *Uploader) Sync(m mesh.Mesh) ([]string, error) {
	var touched []string
	for name, src := range sources(m) {
		before := u.textures[name]
		altered := before == nil || src.IsAltered() || src.IsLengthAltered()
		t, err := Upload(before, src)
		if err != nil {
			return touched, fmt.Errorf("%s: %w", name, err)
		}
		u.textures[name] = t
		if altered && t != nil {
			touched = append(touched, name)
		}
	}

	uvs := m.Attributes().UVs()
	before := u.uvs
	t, err := UploadLayers(before, uvs)
	if err != nil {
		return touched, fmt.Errorf("uvs: %w", err)
	}
	if t != before {
		touched = append(touched, "uvs")
	}
	u.uvs = t

	u.log.Debug("mesh synced", zap.Strings("textures", touched))
	return touched, nil
}

// UploadPullBuffer stores the vertex-pulling corners of m in an array
// buffer and returns the number of triangles.
func (u *Uploader) UploadPullBuffer(m mesh.Mesh) (int, error) {
	pb := m.MakePullBuffer()
	data := pb.Int32s()
	if len(data) == 0 {
		return 0, nil
	}
	if u.pull == 0 {
		gl.GenBuffers(1, &u.pull)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, u.pull)
	size := len(data) * int(unsafe.Sizeof(data[0]))
	if len(data) > u.pullLen {
		gl.BufferData(gl.ARRAY_BUFFER, size, unsafe.Pointer(&data[0]), gl.DYNAMIC_DRAW)
		u.pullLen = len(data)
	} else {
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, size, unsafe.Pointer(&data[0]))
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if err := glError("pull buffer"); err != nil {
		return 0, err
	}
	u.log.Debug("pull buffer uploaded",
		zap.Int("triangles", pb.Triangles()),
		zap.Int("materials", len(pb.Materials)),
	)
	return pb.Triangles(), nil
}

// Texture returns the texture uploaded under name, or nil.
func (u *Uploader) Texture(name string) *Texture {
	if name == "uvs" {
		return u.uvs
	}
	return u.textures[name]
}

// Close deletes every texture and buffer.
func (u *Uploader) Close() {
	for name, t := range u.textures {
		t.Delete()
		delete(u.textures, name)
	}
	u.uvs.Delete()
	u.uvs = nil
	if u.pull != 0 {
		gl.DeleteBuffers(1, &u.pull)
		u.pull = 0
	}
}
