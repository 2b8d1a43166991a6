package renderer

import (
	"sort"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// Instance buffer attribute flags.
const (
	InstancePosition uint32 = 1 << iota
	InstanceRotation
	InstanceScale
	InstanceColor
)

// InstanceBuffer holds per-instance attribute VBOs, one per enabled flag:
// position (vec3), rotation (quaternion), scale (vec3), color (rgba8).
type InstanceBuffer struct {
	Flags   uint32
	Buffers [4]uint32
}

// DrawGroup ties one or more draw calls to a shared transform, optional pose
// texture, and optional instancing data. Groups live for a single frame.
type DrawGroup struct {
	Transform mgl32.Mat4

	// Object-space bounds of everything the group draws, transformed by
	// Transform during culling. For instanced groups the caller supplies
	// combined bounds covering all instances; a zero AABB is never culled.
	AABB AABB

	// PoseTexture is nonzero for skinned geometry.
	PoseTexture uint32

	Instances     *InstanceBuffer
	InstanceCount int32
}

func (g *DrawGroup) instanced() bool {
	return g.Instances != nil && g.InstanceCount > 0
}

type drawCallType int

const (
	drawCallMesh drawCallType = iota
	drawCallQuad
	drawCallDecal
)

// Object-space bounds of the shared sprite quad.
var quadAABB = AABB{Min: mgl32.Vec3{-0.5, -0.5, 0}, Max: mgl32.Vec3{0.5, 0.5, 0}}

type drawCall struct {
	callType drawCallType

	mesh     *Mesh
	material Material

	decal *Decal

	groupIndex int
}

func (c *drawCall) aabb() AABB {
	switch c.callType {
	case drawCallQuad:
		return quadAABB
	case drawCallDecal:
		return AABB{Min: mgl32.Vec3{-0.5, -0.5, -0.5}, Max: mgl32.Vec3{0.5, 0.5, 0.5}}
	}
	return c.mesh.AABB
}

func (c *drawCall) shadowOnly() bool {
	return c.callType != drawCallDecal && c.material.ShadowCast.shadowOnly()
}

func (c *drawCall) castsShadows() bool {
	return c.callType != drawCallDecal && c.material.ShadowCast.castsShadows()
}

// Render list routing. Instanced calls land in the parallel list at
// listIndex + drawListNonInstCount.
type drawListID int

const (
	drawListDeferred drawListID = iota
	drawListPrepass
	drawListForward
	drawListDecal
	drawListNonInstCount
)

const drawListCount = 2 * drawListNonInstCount

func instancedList(l drawListID) drawListID { return l + drawListNonInstCount }

// SortMode selects the optional per-list ordering applied before a pass.
type SortMode int

const (
	// SortFrontToBack orders by material first, then nearest center first,
	// reducing both state changes and overdraw.
	SortFrontToBack SortMode = iota
	// SortBackToFront orders by farthest bounding corner first for blend
	// correctness.
	SortBackToFront
	// SortMaterialOnly batches by material with no distance criterion.
	SortMaterialOnly
)

type visibility int8

const (
	visibilityUnknown visibility = iota
	visibilityFalse
	visibilityTrue
)

type drawCluster struct {
	aabb    AABB
	visible visibility
}

type groupState struct {
	group        DrawGroup
	clusterIndex int
	visible      visibility
	firstCall    int
	numCalls     int
}

// materialKey orders draw calls for state-change batching. Comparison order
// mirrors the cost of switching each piece of state.
type materialKey struct {
	shader   uint32
	albedo   uint32
	normal   uint32
	orm      uint32
	emission uint32

	blend        BlendMode
	cull         CullMode
	transparency TransparencyMode
	billboard    BillboardMode
}

func (a materialKey) compare(b materialKey) int {
	switch {
	case a.shader != b.shader:
		return int(a.shader) - int(b.shader)
	case a.albedo != b.albedo:
		return int(a.albedo) - int(b.albedo)
	case a.normal != b.normal:
		return int(a.normal) - int(b.normal)
	case a.orm != b.orm:
		return int(a.orm) - int(b.orm)
	case a.emission != b.emission:
		return int(a.emission) - int(b.emission)
	case a.blend != b.blend:
		return int(a.blend) - int(b.blend)
	case a.cull != b.cull:
		return int(a.cull) - int(b.cull)
	case a.transparency != b.transparency:
		return int(a.transparency) - int(b.transparency)
	}
	return int(a.billboard) - int(b.billboard)
}

type sortEntry struct {
	distance float32
	material materialKey
}

// drawQueue collects one frame of submissions: clusters, groups, calls, and
// the per-list call indices. Everything resets on clear.
type drawQueue struct {
	clusters []drawCluster
	groups   []groupState
	calls    []drawCall

	lists [drawListCount][]int

	sortCache []sortEntry

	activeCluster int

	// ActiveLayers gates mesh submission by layer mask.
	activeLayers uint32

	shapes [shapeCount]shapeBuffer
}

func newDrawQueue() *drawQueue {
	return &drawQueue{
		activeCluster: -1,
		activeLayers:  ^uint32(0),
	}
}

func (q *drawQueue) clear() {
	q.clusters = q.clusters[:0]
	q.groups = q.groups[:0]
	q.calls = q.calls[:0]
	for i := range q.lists {
		q.lists[i] = q.lists[i][:0]
	}
}

// beginCluster opens a spatial cluster: groups pushed until endCluster share
// one coarse visibility test. Nesting is rejected.
func (q *drawQueue) beginCluster(aabb AABB) bool {
	if q.activeCluster >= 0 {
		return false
	}
	q.activeCluster = len(q.clusters)
	q.clusters = append(q.clusters, drawCluster{aabb: aabb})
	return true
}

func (q *drawQueue) endCluster() bool {
	if q.activeCluster < 0 {
		return false
	}
	q.activeCluster = -1
	return true
}

func (q *drawQueue) pushGroup(g DrawGroup) {
	q.groups = append(q.groups, groupState{
		group:        g,
		clusterIndex: q.activeCluster,
	})
}

// layerVisible reports whether the mesh's layer mask intersects the active
// layers. A zero mesh mask means "all layers".
func (q *drawQueue) layerVisible(m *Mesh) bool {
	return m.LayerMask == 0 || m.LayerMask&q.activeLayers != 0
}

func (q *drawQueue) pushMesh(m *Mesh, mat Material) {
	if !q.layerVisible(m) {
		return
	}
	q.pushCall(drawCall{callType: drawCallMesh, mesh: m, material: mat})
}

func (q *drawQueue) pushQuad(mat Material) {
	q.pushCall(drawCall{callType: drawCallQuad, material: mat})
}

func (q *drawQueue) pushDecal(d *Decal) {
	q.pushCall(drawCall{callType: drawCallDecal, decal: d})
}

func (q *drawQueue) pushCall(call drawCall) {
	debugAssert(len(q.groups) > 0, "draw call pushed without a group")

	groupIndex := len(q.groups) - 1
	gs := &q.groups[groupIndex]

	callIndex := len(q.calls)
	if gs.numCalls == 0 {
		gs.firstCall = callIndex
	}
	gs.numCalls++

	call.groupIndex = groupIndex
	q.calls = append(q.calls, call)

	list := drawListDeferred
	switch {
	case call.callType == drawCallDecal:
		list = drawListDecal
	case call.material.Transparency == TransparencyPrepass:
		list = drawListPrepass
	case call.material.Transparency == TransparencyAlpha || call.material.Blend != BlendMix:
		list = drawListForward
	}
	if gs.group.instanced() {
		list = instancedList(list)
	}

	q.lists[list] = append(q.lists[list], callIndex)
}

func (q *drawQueue) callGroup(call *drawCall) *groupState {
	return &q.groups[call.groupIndex]
}

func frustumTestAABB(frustum *Frustum, aabb AABB, transform *mgl32.Mat4) bool {
	if aabb.IsZero() {
		return true
	}
	if transform == nil || *transform == mgl32.Ident4() {
		return frustum.ContainsAABB(aabb)
	}
	return frustum.ContainsOBB(aabb, *transform)
}

// computeVisibleGroups resolves cluster and group visibility against the
// active frustum. Instanced and skinned groups are decided here from their
// combined bounds; per-call geometry tests would not cover every instance.
func (q *drawQueue) computeVisibleGroups(frustum *Frustum) {
	for i := range q.groups {
		gs := &q.groups[i]

		if gs.clusterIndex >= 0 {
			cluster := &q.clusters[gs.clusterIndex]
			if cluster.visible == visibilityUnknown {
				if frustumTestAABB(frustum, cluster.aabb, nil) {
					cluster.visible = visibilityTrue
				} else {
					cluster.visible = visibilityFalse
				}
			}
			if cluster.visible == visibilityFalse {
				gs.visible = visibilityFalse
				continue
			}
		}

		if frustumTestAABB(frustum, gs.group.AABB, &gs.group.Transform) {
			gs.visible = visibilityTrue
		} else {
			gs.visible = visibilityFalse
		}
	}
}

// callVisible tests one call against the frustum, reusing the group's result
// when it is decisive: an invisible group hides all of its calls, and a
// single-call group has already been tested at group granularity.
func (q *drawQueue) callVisible(callIndex int, frustum *Frustum) bool {
	call := &q.calls[callIndex]
	gs := &q.groups[call.groupIndex]

	if gs.visible != visibilityTrue {
		return false
	}
	if gs.numCalls == 1 {
		return true
	}
	if gs.group.instanced() || gs.group.PoseTexture != 0 {
		return true
	}
	return frustumTestAABB(frustum, call.aabb(), &gs.group.Transform)
}

// visibleCalls collects the call indices of a list that survive culling.
// Camera passes exclude shadow-cast-only calls regardless of visibility.
func (q *drawQueue) visibleCalls(list drawListID, frustum *Frustum, cameraPass bool, out []int) []int {
	out = out[:0]
	for _, ci := range q.lists[list] {
		if cameraPass && q.calls[ci].shadowOnly() {
			continue
		}
		if q.callVisible(ci, frustum) {
			out = append(out, ci)
		}
	}
	return out
}

func centerDistanceSq(aabb AABB, transform mgl32.Mat4, viewPos mgl32.Vec3) float32 {
	center := transform.Mul4x1(aabb.Center().Vec4(1)).Vec3()
	return center.Sub(viewPos).LenSqr()
}

func maxCornerDistanceSq(aabb AABB, transform mgl32.Mat4, viewPos mgl32.Vec3) float32 {
	var maxSq float32
	for i := 0; i < 8; i++ {
		corner := transform.Mul4x1(aabb.Corner(i).Vec4(1)).Vec3()
		if d := corner.Sub(viewPos).LenSqr(); d > maxSq {
			maxSq = d
		}
	}
	return maxSq
}

func makeMaterialKey(call *drawCall) materialKey {
	if call.callType == drawCallDecal {
		return materialKey{
			shader:       call.decal.Shader,
			albedo:       call.decal.Albedo.Texture,
			normal:       call.decal.Normal.Texture,
			orm:          call.decal.ORM.Texture,
			emission:     call.decal.Emission.Texture,
			blend:        BlendMix,
			cull:         CullNone,
			transparency: TransparencyAlpha,
		}
	}
	m := &call.material
	return materialKey{
		shader:       m.Shader,
		albedo:       m.Albedo.Texture,
		normal:       m.Normal.Texture,
		orm:          m.ORM.Texture,
		emission:     m.Emission.Texture,
		blend:        m.Blend,
		cull:         m.Cull,
		transparency: m.Transparency,
		billboard:    m.Billboard,
	}
}

// sortList reorders a list in place. Sorting is opt-in per pass; unsorted
// lists keep submission order.
func (q *drawQueue) sortList(list drawListID, viewPos mgl32.Vec3, mode SortMode) {
	debugAssert(mode == SortMaterialOnly || list < drawListNonInstCount,
		"instanced lists cannot be distance-sorted")
	debugAssert(mode == SortMaterialOnly || list != drawListDecal,
		"decal list cannot be distance-sorted")

	for len(q.sortCache) < len(q.calls) {
		q.sortCache = append(q.sortCache, sortEntry{})
	}

	indices := q.lists[list]
	for _, ci := range indices {
		call := &q.calls[ci]
		entry := &q.sortCache[ci]

		switch mode {
		case SortFrontToBack:
			entry.distance = centerDistanceSq(call.aabb(), q.callGroup(call).group.Transform, viewPos)
			entry.material = makeMaterialKey(call)
		case SortBackToFront:
			// The farthest corner decides blend order so large volumes never
			// draw over nearer geometry they enclose.
			entry.distance = maxCornerDistanceSq(call.aabb(), q.callGroup(call).group.Transform, viewPos)
		case SortMaterialOnly:
			entry.distance = 0
			entry.material = makeMaterialKey(call)
		}
	}

	switch mode {
	case SortFrontToBack:
		sort.SliceStable(indices, func(i, j int) bool {
			a, b := &q.sortCache[indices[i]], &q.sortCache[indices[j]]
			if c := a.material.compare(b.material); c != 0 {
				return c < 0
			}
			return a.distance < b.distance
		})
	case SortBackToFront:
		sort.SliceStable(indices, func(i, j int) bool {
			return q.sortCache[indices[i]].distance > q.sortCache[indices[j]].distance
		})
	case SortMaterialOnly:
		sort.SliceStable(indices, func(i, j int) bool {
			return q.sortCache[indices[i]].material.compare(q.sortCache[indices[j]].material) < 0
		})
	}
}

// GL state application for draw execution.

func applyCullMode(mode CullMode) {
	switch mode {
	case CullNone:
		gl.Disable(gl.CULL_FACE)
	case CullBack:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	case CullFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	}
}

func applyBlendMode(blend BlendMode, transparency TransparencyMode) {
	switch blend {
	case BlendMix:
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	case BlendAdditive:
		if transparency == TransparencyDisabled {
			gl.BlendFunc(gl.ONE, gl.ONE)
		} else {
			gl.BlendFunc(gl.SRC_ALPHA, gl.ONE)
		}
	case BlendMultiply:
		gl.BlendFunc(gl.DST_COLOR, gl.ZERO)
	case BlendPremultiplied:
		gl.BlendFunc(gl.ONE, gl.ONE_MINUS_SRC_ALPHA)
	}
}

func applyShadowCastMode(cast ShadowCastMode, cull CullMode) {
	switch cast {
	case ShadowCastAuto, ShadowCastOnlyAuto:
		applyCullMode(cull)
	case ShadowCastDoubleSided, ShadowCastOnlyDoubleSided:
		gl.Disable(gl.CULL_FACE)
	case ShadowCastFrontSide, ShadowCastOnlyFrontSide:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	case ShadowCastBackSide, ShadowCastOnlyBackSide:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	default:
		debugAssert(false, "shadow cast mode not renderable")
	}
}

// bindCallVAO binds the geometry of a call and returns its draw parameters.
func (q *drawQueue) bindCallVAO(call *drawCall) (primitive uint32, elemType uint32, vertCount, elemCount int32) {
	switch call.callType {
	case drawCallMesh:
		gl.BindVertexArray(call.mesh.VAO)
		return glPrimitive(call.mesh.Primitive), gl.UNSIGNED_INT, call.mesh.VertexCount, call.mesh.IndexCount
	case drawCallQuad:
		quad := &q.shapes[shapeQuad]
		quad.bind(shapeQuad)
		return gl.TRIANGLES, gl.UNSIGNED_BYTE, quad.vertexCount, quad.indexCount
	case drawCallDecal:
		cube := &q.shapes[shapeCube]
		cube.bind(shapeCube)
		return gl.TRIANGLES, gl.UNSIGNED_BYTE, cube.vertexCount, cube.indexCount
	}
	debugAssert(false, "unknown draw call type")
	return gl.TRIANGLES, gl.NONE, 0, 0
}

func (q *drawQueue) draw(call *drawCall) {
	primitive, elemType, vertCount, elemCount := q.bindCallVAO(call)
	if elemCount == 0 {
		gl.DrawArrays(primitive, 0, vertCount)
	} else {
		gl.DrawElementsWithOffset(primitive, elemCount, elemType, 0)
	}
}

func bindInstanceAttrib(buffers *InstanceBuffer, flag uint32, slot int, attrib uint32, size int32, xtype uint32, normalized bool, stride int32) {
	if buffers.Flags&flag != 0 {
		gl.BindBuffer(gl.ARRAY_BUFFER, buffers.Buffers[slot])
		gl.EnableVertexAttribArray(attrib)
		gl.VertexAttribPointerWithOffset(attrib, size, xtype, normalized, stride, 0)
	} else {
		gl.DisableVertexAttribArray(attrib)
	}
}

func (q *drawQueue) drawInstanced(call *drawCall) {
	primitive, elemType, vertCount, elemCount := q.bindCallVAO(call)

	gs := q.callGroup(call)
	inst := gs.group.Instances

	bindInstanceAttrib(inst, InstancePosition, 0, attribInstancePosition, 3, gl.FLOAT, false, 12)
	bindInstanceAttrib(inst, InstanceRotation, 1, attribInstanceRotation, 4, gl.FLOAT, false, 16)
	bindInstanceAttrib(inst, InstanceScale, 2, attribInstanceScale, 3, gl.FLOAT, false, 12)
	bindInstanceAttrib(inst, InstanceColor, 3, attribInstanceColor, 4, gl.UNSIGNED_BYTE, true, 4)

	if elemCount == 0 {
		gl.DrawArraysInstanced(primitive, 0, vertCount, gs.group.InstanceCount)
	} else {
		gl.DrawElementsInstanced(primitive, elemCount, elemType, nil, gs.group.InstanceCount)
	}
}
