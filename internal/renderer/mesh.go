package renderer

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// PrimitiveType selects the rasterization topology of a mesh.
type PrimitiveType int

const (
	PrimitiveTriangles PrimitiveType = iota
	PrimitivePoints
	PrimitiveLines
	PrimitiveLineStrip
	PrimitiveLineLoop
	PrimitiveTriangleStrip
	PrimitiveTriangleFan
)

func glPrimitive(p PrimitiveType) uint32 {
	switch p {
	case PrimitivePoints:
		return gl.POINTS
	case PrimitiveLines:
		return gl.LINES
	case PrimitiveLineStrip:
		return gl.LINE_STRIP
	case PrimitiveLineLoop:
		return gl.LINE_LOOP
	case PrimitiveTriangleStrip:
		return gl.TRIANGLE_STRIP
	case PrimitiveTriangleFan:
		return gl.TRIANGLE_FAN
	}
	return gl.TRIANGLES
}

// Vertex is the interleaved layout every surface program consumes.
type Vertex struct {
	Position mgl32.Vec3
	TexCoord mgl32.Vec2
	Normal   mgl32.Vec3
	Color    [4]uint8
	Tangent  mgl32.Vec4
}

const vertexStride = 3*4 + 2*4 + 3*4 + 4 + 4*4

// Mesh is GPU-resident geometry. The caller owns the lifetime; the renderer
// never frees meshes it did not create.
type Mesh struct {
	VAO, VBO, EBO uint32

	VertexCount int32
	IndexCount  int32
	Primitive   PrimitiveType

	// Object-space bounds used for culling. A zero AABB is never culled.
	AABB AABB

	// LayerMask gates submission against the renderer's active layers.
	// Zero means all layers.
	LayerMask uint32
}

// Attribute locations shared by every surface program.
const (
	attribPosition = 0
	attribTexCoord = 1
	attribNormal   = 2
	attribColor    = 3
	attribTangent  = 4

	attribBoneIDs     = 5
	attribBoneWeights = 6

	attribInstancePosition = 10
	attribInstanceRotation = 11
	attribInstanceScale    = 12
	attribInstanceColor    = 13
)

func setupVertexAttribs() {
	gl.EnableVertexAttribArray(attribPosition)
	gl.VertexAttribPointerWithOffset(attribPosition, 3, gl.FLOAT, false, vertexStride, 0)

	gl.EnableVertexAttribArray(attribTexCoord)
	gl.VertexAttribPointerWithOffset(attribTexCoord, 2, gl.FLOAT, false, vertexStride, 12)

	gl.EnableVertexAttribArray(attribNormal)
	gl.VertexAttribPointerWithOffset(attribNormal, 3, gl.FLOAT, false, vertexStride, 20)

	gl.EnableVertexAttribArray(attribColor)
	gl.VertexAttribPointerWithOffset(attribColor, 4, gl.UNSIGNED_BYTE, true, vertexStride, 32)

	gl.EnableVertexAttribArray(attribTangent)
	gl.VertexAttribPointerWithOffset(attribTangent, 4, gl.FLOAT, false, vertexStride, 36)

	// Skinning and instancing attributes default to constants until a pose
	// texture or instance buffer provides real data.
	gl.VertexAttribI4i(attribBoneIDs, 0, 0, 0, 0)
	gl.VertexAttrib4f(attribBoneWeights, 0, 0, 0, 0)

	gl.VertexAttribDivisor(attribInstancePosition, 1)
	gl.VertexAttrib3f(attribInstancePosition, 0, 0, 0)
	gl.VertexAttribDivisor(attribInstanceRotation, 1)
	gl.VertexAttrib4f(attribInstanceRotation, 0, 0, 0, 1)
	gl.VertexAttribDivisor(attribInstanceScale, 1)
	gl.VertexAttrib3f(attribInstanceScale, 1, 1, 1)
	gl.VertexAttribDivisor(attribInstanceColor, 1)
	gl.VertexAttrib4f(attribInstanceColor, 1, 1, 1, 1)
}

// UploadMesh creates the GL buffers for the given geometry and computes its
// object-space bounds. indices may be nil for non-indexed meshes.
func UploadMesh(verts []Vertex, indices []uint32) *Mesh {
	m := &Mesh{
		VertexCount: int32(len(verts)),
		IndexCount:  int32(len(indices)),
		Primitive:   PrimitiveTriangles,
		AABB:        computeBounds(verts),
	}

	gl.GenVertexArrays(1, &m.VAO)
	gl.BindVertexArray(m.VAO)

	gl.GenBuffers(1, &m.VBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.VBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*vertexStride, gl.Ptr(verts), gl.STATIC_DRAW)

	if len(indices) > 0 {
		gl.GenBuffers(1, &m.EBO)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.EBO)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)
	}

	setupVertexAttribs()
	gl.BindVertexArray(0)
	return m
}

// Unload frees the mesh's GL buffers.
func (m *Mesh) Unload() {
	if m.VAO != 0 {
		gl.DeleteVertexArrays(1, &m.VAO)
	}
	if m.VBO != 0 {
		gl.DeleteBuffers(1, &m.VBO)
	}
	if m.EBO != 0 {
		gl.DeleteBuffers(1, &m.EBO)
	}
	*m = Mesh{}
}

func computeBounds(verts []Vertex) AABB {
	if len(verts) == 0 {
		return AABB{}
	}
	box := AABB{Min: verts[0].Position, Max: verts[0].Position}
	for _, v := range verts[1:] {
		for i := 0; i < 3; i++ {
			box.Min[i] = min32(box.Min[i], v.Position[i])
			box.Max[i] = max32(box.Max[i], v.Position[i])
		}
	}
	return box
}

// Model groups sub-meshes that share one transform; submission expands it
// into one draw call per sub-mesh under a single draw group.
type Model struct {
	Meshes    []*Mesh
	Materials []Material

	// PoseTexture holds per-bone matrices for skinned models; zero when the
	// model is static.
	PoseTexture uint32

	AABB AABB
}

// sharedShape identifies the geometry kept for sprite quads, decal volumes,
// fullscreen passes, and sky rendering.
type sharedShape int

const (
	shapeDummy sharedShape = iota
	shapeQuad
	shapeCube
	shapeCount
)

type shapeBuffer struct {
	vao, vbo, ebo uint32
	vertexCount   int32
	indexCount    int32
}

var quadVerts = []Vertex{
	{Position: mgl32.Vec3{-0.5, 0.5, 0}, TexCoord: mgl32.Vec2{0, 1}, Normal: mgl32.Vec3{0, 0, 1}, Color: [4]uint8{255, 255, 255, 255}, Tangent: mgl32.Vec4{1, 0, 0, 1}},
	{Position: mgl32.Vec3{-0.5, -0.5, 0}, TexCoord: mgl32.Vec2{0, 0}, Normal: mgl32.Vec3{0, 0, 1}, Color: [4]uint8{255, 255, 255, 255}, Tangent: mgl32.Vec4{1, 0, 0, 1}},
	{Position: mgl32.Vec3{0.5, 0.5, 0}, TexCoord: mgl32.Vec2{1, 1}, Normal: mgl32.Vec3{0, 0, 1}, Color: [4]uint8{255, 255, 255, 255}, Tangent: mgl32.Vec4{1, 0, 0, 1}},
	{Position: mgl32.Vec3{0.5, -0.5, 0}, TexCoord: mgl32.Vec2{1, 0}, Normal: mgl32.Vec3{0, 0, 1}, Color: [4]uint8{255, 255, 255, 255}, Tangent: mgl32.Vec4{1, 0, 0, 1}},
}

var quadIndices = []uint8{0, 1, 2, 1, 3, 2}

func cubeFace(normal, tangent mgl32.Vec3, positions [4]mgl32.Vec3, uvs [4]mgl32.Vec2) []Vertex {
	out := make([]Vertex, 4)
	for i := range out {
		out[i] = Vertex{
			Position: positions[i],
			TexCoord: uvs[i],
			Normal:   normal,
			Color:    [4]uint8{255, 255, 255, 255},
			Tangent:  tangent.Vec4(1),
		}
	}
	return out
}

func cubeVerts() []Vertex {
	var verts []Vertex
	verts = append(verts, cubeFace(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0},
		[4]mgl32.Vec3{{-0.5, 0.5, 0.5}, {-0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {0.5, -0.5, 0.5}},
		[4]mgl32.Vec2{{0, 1}, {0, 0}, {1, 1}, {1, 0}})...)
	verts = append(verts, cubeFace(mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0},
		[4]mgl32.Vec3{{-0.5, 0.5, -0.5}, {-0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {0.5, -0.5, -0.5}},
		[4]mgl32.Vec2{{1, 1}, {1, 0}, {0, 1}, {0, 0}})...)
	verts = append(verts, cubeFace(mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, -1},
		[4]mgl32.Vec3{{-0.5, 0.5, -0.5}, {-0.5, -0.5, -0.5}, {-0.5, 0.5, 0.5}, {-0.5, -0.5, 0.5}},
		[4]mgl32.Vec2{{0, 1}, {0, 0}, {1, 1}, {1, 0}})...)
	verts = append(verts, cubeFace(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1},
		[4]mgl32.Vec3{{0.5, 0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, -0.5}, {0.5, -0.5, -0.5}},
		[4]mgl32.Vec2{{0, 1}, {0, 0}, {1, 1}, {1, 0}})...)
	verts = append(verts, cubeFace(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0},
		[4]mgl32.Vec3{{-0.5, 0.5, -0.5}, {-0.5, 0.5, 0.5}, {0.5, 0.5, -0.5}, {0.5, 0.5, 0.5}},
		[4]mgl32.Vec2{{0, 0}, {0, 1}, {1, 0}, {1, 1}})...)
	verts = append(verts, cubeFace(mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0},
		[4]mgl32.Vec3{{-0.5, -0.5, 0.5}, {-0.5, -0.5, -0.5}, {0.5, -0.5, 0.5}, {0.5, -0.5, -0.5}},
		[4]mgl32.Vec2{{0, 0}, {0, 1}, {1, 0}, {1, 1}})...)
	return verts
}

var cubeIndices = []uint8{
	0, 1, 2, 2, 1, 3, 6, 5, 4, 7, 5, 6, 8, 9, 10, 10, 9, 11,
	12, 13, 14, 14, 13, 15, 16, 17, 18, 18, 17, 19, 20, 21, 22, 22, 21, 23,
}

func loadShape(s *shapeBuffer, verts []Vertex, indices []uint8) {
	gl.GenVertexArrays(1, &s.vao)
	gl.GenBuffers(1, &s.vbo)
	gl.GenBuffers(1, &s.ebo)

	gl.BindVertexArray(s.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, s.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*vertexStride, gl.Ptr(verts), gl.STATIC_DRAW)

	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, s.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices), gl.Ptr(indices), gl.STATIC_DRAW)

	s.vertexCount = int32(len(verts))
	s.indexCount = int32(len(indices))

	setupVertexAttribs()
}

// loadShapeBuffer lazily creates the shared shape and leaves its VAO bound.
func (s *shapeBuffer) bind(shape sharedShape) {
	if s.vao != 0 {
		gl.BindVertexArray(s.vao)
		return
	}
	switch shape {
	case shapeDummy:
		// Attribute-less fullscreen triangle; positions come from gl_VertexID.
		gl.GenVertexArrays(1, &s.vao)
		gl.BindVertexArray(s.vao)
		s.vertexCount = 3
	case shapeQuad:
		loadShape(s, quadVerts, quadIndices)
	case shapeCube:
		loadShape(s, cubeVerts(), cubeIndices)
	}
}

func (s *shapeBuffer) draw(shape sharedShape) {
	s.bind(shape)
	if s.indexCount > 0 {
		gl.DrawElementsWithOffset(gl.TRIANGLES, s.indexCount, gl.UNSIGNED_BYTE, 0)
	} else {
		gl.DrawArrays(gl.TRIANGLES, 0, s.vertexCount)
	}
}

func (s *shapeBuffer) unload() {
	if s.vao != 0 {
		gl.DeleteVertexArrays(1, &s.vao)
	}
	if s.vbo != 0 {
		gl.DeleteBuffers(1, &s.vbo)
	}
	if s.ebo != 0 {
		gl.DeleteBuffers(1, &s.ebo)
	}
	*s = shapeBuffer{}
}
