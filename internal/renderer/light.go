package renderer

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Bigfoot71/r3d-sub000/internal/logger"
)

// LightType selects the shadow projection and attenuation model of a light.
type LightType int

const (
	LightDir LightType = iota
	LightSpot
	LightOmni
	lightTypeCount
)

// ShadowUpdateMode controls when a shadowed light re-renders its map.
type ShadowUpdateMode int

const (
	// ShadowUpdateManual re-renders only after an explicit request.
	ShadowUpdateManual ShadowUpdateMode = iota
	// ShadowUpdateInterval re-renders at a fixed frequency.
	ShadowUpdateInterval
	// ShadowUpdateContinuous re-renders every frame.
	ShadowUpdateContinuous
)

// LightID is a handle into the light registry. Handles stay stable across
// deletions of other lights and are recycled after their own deletion.
type LightID int32

// InvalidLight is returned when a light cannot be created.
const InvalidLight LightID = -1

const (
	shadowDirSize  = 4096
	shadowSpotSize = 2048
	shadowOmniSize = 2048

	shadowDirGrowth  = 2
	shadowSpotGrowth = 8
	shadowOmniGrowth = 4

	initialLightCap = 8

	defaultShadowInterval = 0.016
)

var shadowSizes = [lightTypeCount]int{
	LightDir:  shadowDirSize,
	LightSpot: shadowSpotSize,
	LightOmni: shadowOmniSize,
}

var shadowGrowth = [lightTypeCount]int{
	LightDir:  shadowDirGrowth,
	LightSpot: shadowSpotGrowth,
	LightOmni: shadowOmniGrowth,
}

// Light holds the full state of one light. Obtain copies through
// LightManager.Get; mutate through the manager so matrix and shadow state
// stay consistent.
type Light struct {
	Type LightType

	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Color     mgl32.Vec3

	Energy      float32
	Specular    float32
	Range       float32
	Attenuation float32
	InnerCutOff float32 // cosine of the inner cone angle
	OuterCutOff float32 // cosine of the outer cone angle

	Enabled bool
	Shadow  bool

	ShadowSoftness  float32
	ShadowTexelSize float32
	ShadowDepthBias float32
	ShadowSlopeBias float32

	// Near/Far of the current shadow projection.
	Near, Far float32

	// One matrix/frustum per face; only omni lights use all six.
	ViewProj [6]mgl32.Mat4
	Frustums [6]Frustum

	AABB AABB

	shadowLayer int

	updateMode      ShadowUpdateMode
	shadowDirty     bool
	matrixDirty     bool
	shadowInterval  float32
	shadowTimerSec  float32
}

// ShadowLayer returns the reserved layer in the per-type shadow array, or -1.
func (l *Light) ShadowLayer() int { return l.shadowLayer }

// lightDevice is the slice of the GPU the light manager needs for shadow map
// array management. The real implementation lives in gl_device.go.
type lightDevice interface {
	NewTexture() uint32
	DeleteTexture(id uint32)
	NewShadowFramebuffer() uint32
	AllocShadowArray(tex uint32, cube bool, size, layers int)
	CopyShadowLayers(fbo, src, dst uint32, cube bool, size, layers int)
	BindShadowLayer(fbo, tex uint32, layerFace, size int)
}

// LightManager owns every light and the per-type shadow map arrays. Lights
// are addressed by handle; deleted handles are recycled before new slots are
// used.
type LightManager struct {
	dev lightDevice

	lights []Light
	valid  []LightID
	free   []LightID

	// Rebuilt by UpdateAndCull each frame.
	visible []LightID

	pools        [lightTypeCount]shadowPool
	shadowArrays [lightTypeCount]uint32
	sizes        [lightTypeCount]int
	workFBO      uint32

	// Directional shadow extent override from the scene bounds hint; zero
	// falls back to the light's range.
	dirExtent float32
}

// NewLightManager creates the registry and the depth-only work framebuffer.
func NewLightManager() *LightManager {
	return newLightManager(glDevice{})
}

func newLightManager(dev lightDevice) *LightManager {
	m := &LightManager{
		dev:    dev,
		lights: make([]Light, 0, initialLightCap),
	}
	m.workFBO = dev.NewShadowFramebuffer()
	for t := LightType(0); t < lightTypeCount; t++ {
		m.shadowArrays[t] = dev.NewTexture()
		m.sizes[t] = shadowSizes[t]
	}
	return m
}

func initLight(l *Light, t LightType) {
	*l = Light{
		Type:        t,
		Direction:   mgl32.Vec3{0, 0, -1},
		Color:       mgl32.Vec3{1, 1, 1},
		Energy:      1.0,
		Specular:    0.5,
		Range:       50.0,
		Attenuation: 1.0,
		InnerCutOff: cos32(mgl32.DegToRad(22.5)),
		OuterCutOff: cos32(mgl32.DegToRad(45.0)),
		AABB:        InfiniteAABB(),

		shadowLayer:    -1,
		updateMode:     ShadowUpdateInterval,
		shadowDirty:    true,
		matrixDirty:    true,
		shadowInterval: defaultShadowInterval,
	}

	size := shadowSizes[t]
	l.ShadowTexelSize = 1.0 / float32(size)
	switch t {
	case LightDir:
		l.ShadowDepthBias = 0.0002
		l.ShadowSlopeBias = 0.002
	case LightSpot:
		l.ShadowDepthBias = 0.00002
		l.ShadowSlopeBias = 0.0002
	case LightOmni:
		l.ShadowDepthBias = 0.01
		l.ShadowSlopeBias = 0.02
	}
}

// Create registers a new disabled light of the given type and returns its
// handle, recycling a previously deleted slot when one exists.
func (m *LightManager) Create(t LightType) LightID {
	if t < 0 || t >= lightTypeCount {
		logger.Log.Error("Invalid light type", zap.Int("type", int(t)))
		return InvalidLight
	}

	var id LightID
	if n := len(m.free); n > 0 {
		id = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		id = LightID(len(m.lights))
		m.lights = append(m.lights, Light{})
	}

	initLight(&m.lights[id], t)
	m.valid = append(m.valid, id)
	return id
}

// Delete releases the light's shadow layer and recycles its handle. Deleting
// an invalid or already-deleted handle is a no-op.
func (m *LightManager) Delete(id LightID) {
	for i, v := range m.valid {
		if v != id {
			continue
		}
		m.valid = append(m.valid[:i], m.valid[i+1:]...)

		l := &m.lights[id]
		m.releaseShadowLayer(l)
		m.free = append(m.free, id)
		return
	}
}

// IsValid reports whether the handle refers to a live light.
func (m *LightManager) IsValid(id LightID) bool {
	if id < 0 {
		return false
	}
	for _, v := range m.valid {
		if v == id {
			return true
		}
	}
	return false
}

func (m *LightManager) get(id LightID) *Light {
	if !m.IsValid(id) {
		return nil
	}
	return &m.lights[id]
}

// Get returns a copy of the light's state.
func (m *LightManager) Get(id LightID) (Light, bool) {
	l := m.get(id)
	if l == nil {
		return Light{}, false
	}
	return *l, true
}

// Count returns the number of live lights.
func (m *LightManager) Count() int { return len(m.valid) }

// Visible returns the handles that passed the last UpdateAndCull, in valid
// order. The slice is reused across frames.
func (m *LightManager) Visible() []LightID { return m.visible }

// All returns every live handle. Shadow refresh iterates this set: a light
// outside the camera frustum still re-renders its map.
func (m *LightManager) All() []LightID { return m.valid }

// SetEnabled toggles the light's participation in lighting and culling.
func (m *LightManager) SetEnabled(id LightID, enabled bool) {
	if l := m.get(id); l != nil {
		l.Enabled = enabled
	}
}

// SetColor sets the linear RGB color.
func (m *LightManager) SetColor(id LightID, color mgl32.Vec3) {
	if l := m.get(id); l != nil {
		l.Color = color
	}
}

// SetPosition moves the light. Ignored semantically for directional lights.
func (m *LightManager) SetPosition(id LightID, pos mgl32.Vec3) {
	if l := m.get(id); l != nil {
		l.Position = pos
		l.matrixDirty = true
		l.shadowDirty = true
	}
}

// SetDirection orients the light. Ignored semantically for omni lights.
func (m *LightManager) SetDirection(id LightID, dir mgl32.Vec3) {
	if l := m.get(id); l != nil {
		l.Direction = dir.Normalize()
		l.matrixDirty = true
		l.shadowDirty = true
	}
}

// SetEnergy scales the light's intensity.
func (m *LightManager) SetEnergy(id LightID, energy float32) {
	if l := m.get(id); l != nil {
		l.Energy = energy
	}
}

// SetSpecular scales the specular contribution.
func (m *LightManager) SetSpecular(id LightID, specular float32) {
	if l := m.get(id); l != nil {
		l.Specular = specular
	}
}

// SetRange sets the influence distance, which also drives the shadow
// projection extents.
func (m *LightManager) SetRange(id LightID, rng float32) {
	if l := m.get(id); l != nil {
		l.Range = rng
		l.matrixDirty = true
		l.shadowDirty = true
	}
}

// SetAttenuation sets the distance falloff exponent.
func (m *LightManager) SetAttenuation(id LightID, attenuation float32) {
	if l := m.get(id); l != nil {
		l.Attenuation = attenuation
	}
}

// SetSpotAngles sets the inner and outer cone angles in degrees.
func (m *LightManager) SetSpotAngles(id LightID, innerDeg, outerDeg float32) {
	if l := m.get(id); l != nil {
		l.InnerCutOff = cos32(mgl32.DegToRad(innerDeg))
		l.OuterCutOff = cos32(mgl32.DegToRad(outerDeg))
	}
}

// EnableShadows reserves a layer in the per-type shadow array, growing the
// array when the pool is exhausted. On allocation failure the light keeps
// rendering without shadows.
//
// resolution selects the per-type map size; zero picks the type default. All
// lights of one type share a backing array, so the size is locked in by the
// first shadowed light of that type; later mismatched requests log and reuse
// the established size.
func (m *LightManager) EnableShadows(id LightID, resolution int) {
	l := m.get(id)
	if l == nil || l.Shadow {
		return
	}

	if resolution > 0 {
		if m.pools[l.Type].totalLayers == 0 {
			m.sizes[l.Type] = resolution
		} else if resolution != m.sizes[l.Type] {
			logger.Log.Warn("Shadow resolution already fixed for this light type",
				zap.Int("requested", resolution), zap.Int("effective", m.sizes[l.Type]))
		}
	}

	layer := m.reserveShadowLayer(l.Type)
	if layer < 0 {
		logger.Log.Error("Failed to reserve shadow layer", zap.Int32("light", int32(id)))
		return
	}

	l.ShadowTexelSize = 1.0 / float32(m.sizes[l.Type])
	l.ShadowSoftness = 4.0 * l.ShadowTexelSize
	l.shadowDirty = true
	l.shadowLayer = layer
	l.Shadow = true
}

// DisableShadows returns the light's layer to the pool.
func (m *LightManager) DisableShadows(id LightID) {
	l := m.get(id)
	if l == nil || !l.Shadow {
		return
	}
	m.releaseShadowLayer(l)
	l.Shadow = false
}

// SetShadowUpdateMode selects manual, interval, or continuous refresh.
func (m *LightManager) SetShadowUpdateMode(id LightID, mode ShadowUpdateMode) {
	if l := m.get(id); l != nil {
		l.updateMode = mode
	}
}

// SetShadowUpdateInterval sets the refresh period in seconds for interval
// mode.
func (m *LightManager) SetShadowUpdateInterval(id LightID, sec float32) {
	if l := m.get(id); l != nil {
		l.shadowInterval = sec
	}
}

// RequestShadowUpdate flags the light's map for re-render on the next frame,
// regardless of update mode.
func (m *LightManager) RequestShadowUpdate(id LightID) {
	if l := m.get(id); l != nil {
		l.shadowDirty = true
	}
}

func (m *LightManager) reserveShadowLayer(t LightType) int {
	layer := m.pools[t].reserve()
	if layer < 0 {
		if !m.growShadowArray(t) {
			return -1
		}
		layer = m.pools[t].reserve()
	}
	return layer
}

func (m *LightManager) releaseShadowLayer(l *Light) {
	if l.shadowLayer >= 0 {
		m.pools[l.Type].release(l.shadowLayer)
		l.shadowLayer = -1
	}
}

// growShadowArray reallocates the per-type array with extra layers, copying
// the existing maps so reserved layers keep their contents.
func (m *LightManager) growShadowArray(t LightType) bool {
	pool := &m.pools[t]
	cube := t == LightOmni
	size := m.sizes[t]
	growth := shadowGrowth[t]

	newTex := m.dev.NewTexture()
	m.dev.AllocShadowArray(newTex, cube, size, pool.totalLayers+growth)

	if pool.totalLayers > 0 {
		m.dev.CopyShadowLayers(m.workFBO, m.shadowArrays[t], newTex, cube, size, pool.totalLayers)
	}
	m.dev.DeleteTexture(m.shadowArrays[t])
	m.shadowArrays[t] = newTex

	pool.expand(growth)
	return true
}

// ShadowTexture returns the per-type shadow map array.
func (m *LightManager) ShadowTexture(t LightType) uint32 {
	return m.shadowArrays[t]
}

// BindShadowLayer binds the work framebuffer to one layer (and face, for
// omni lights) of the per-type array and sets the viewport.
func (m *LightManager) BindShadowLayer(t LightType, layer, face int) {
	debugAssert((t == LightOmni && face >= 0 && face < 6) || (t != LightOmni && face == 0),
		"shadow face out of range")

	stride := 1
	if t == LightOmni {
		stride = 6
	}
	m.dev.BindShadowLayer(m.workFBO, m.shadowArrays[t], layer*stride+face, m.sizes[t])
}

// ShadowMapSize returns the per-type shadow map resolution.
func (m *LightManager) ShadowMapSize(t LightType) int { return m.sizes[t] }

// SetDirShadowExtent fits directional shadow projections to the given
// half-extent instead of each light's range. Zero restores the default.
func (m *LightManager) SetDirShadowExtent(extent float32) {
	if m.dirExtent == extent {
		return
	}
	m.dirExtent = extent
	for _, id := range m.valid {
		l := &m.lights[id]
		if l.Type == LightDir {
			l.matrixDirty = true
			l.shadowDirty = true
		}
	}
}

// advanceShadowState ticks the refresh policy for one frame.
func advanceShadowState(l *Light, dt float32) {
	switch l.updateMode {
	case ShadowUpdateManual:
	case ShadowUpdateInterval:
		if !l.shadowDirty {
			l.shadowTimerSec += dt
			if l.shadowTimerSec >= l.shadowInterval {
				l.shadowTimerSec -= l.shadowInterval
				l.shadowDirty = true
			}
		}
	case ShadowUpdateContinuous:
		l.shadowDirty = true
	}
}

// dirLightViewProj computes the texel-snapped orthographic projection that
// follows the viewer. Snapping the light-space camera position to whole
// texels keeps the shadow map stable under camera motion.
func dirLightViewProj(dir mgl32.Vec3, extent float32, viewPosition mgl32.Vec3, shadowSize int) (mgl32.Mat4, mgl32.Vec3) {
	up := mgl32.Vec3{0, 1, 0}
	if abs32(dir.Dot(up)) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}
	right := up.Cross(dir).Normalize()
	lightUp := dir.Cross(right)

	camX := viewPosition.Dot(right)
	camY := viewPosition.Dot(lightUp)
	camZ := viewPosition.Dot(dir)

	worldUnitsPerTexel := (2.0 * extent) / float32(shadowSize)
	snappedX := floor32(camX/worldUnitsPerTexel) * worldUnitsPerTexel
	snappedY := floor32(camY/worldUnitsPerTexel) * worldUnitsPerTexel

	origin := right.Mul(snappedX).Add(lightUp.Mul(snappedY)).Add(dir.Mul(camZ))

	view := mgl32.LookAtV(origin, origin.Add(dir), lightUp)
	proj := mgl32.Ortho(-extent, extent, -extent, extent, -extent, extent)
	return proj.Mul4(view), origin
}

var omniFaceDirs = [6]mgl32.Vec3{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

var omniFaceUps = [6]mgl32.Vec3{
	{0, -1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
	{0, -1, 0}, {0, -1, 0},
}

func (m *LightManager) updateLightMatrix(l *Light, viewPosition mgl32.Vec3) {
	switch l.Type {
	case LightDir:
		extent := l.Range
		if m.dirExtent > 0 {
			extent = m.dirExtent
		}
		l.ViewProj[0], _ = dirLightViewProj(l.Direction, extent, viewPosition, m.sizes[LightDir])
		l.Near = -extent
		l.Far = extent

	case LightSpot:
		l.Near = 0.05
		l.Far = l.Range
		up := mgl32.Vec3{0, 1, 0}
		if abs32(l.Direction.Dot(up)) > 0.99 {
			up = mgl32.Vec3{1, 0, 0}
		}
		view := mgl32.LookAtV(l.Position, l.Position.Add(l.Direction), up)
		proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, l.Near, l.Far)
		l.ViewProj[0] = proj.Mul4(view)

	case LightOmni:
		l.Near = 0.05
		l.Far = l.Range
		proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, l.Near, l.Far)
		for face := 0; face < 6; face++ {
			view := mgl32.LookAtV(l.Position, l.Position.Add(omniFaceDirs[face]), omniFaceUps[face])
			l.ViewProj[face] = proj.Mul4(view)
		}
	}
}

func updateLightFrustums(l *Light) {
	faces := 1
	if l.Type == LightOmni {
		faces = 6
	}
	for i := 0; i < faces; i++ {
		l.Frustums[i] = NewFrustum(l.ViewProj[i])
	}
}

func updateLightBoundingBox(l *Light) {
	switch l.Type {
	case LightOmni:
		r := mgl32.Vec3{l.Range, l.Range, l.Range}
		l.AABB = AABB{Min: l.Position.Sub(r), Max: l.Position.Add(r)}
	case LightSpot:
		l.AABB = FrustumBoundingBox(l.ViewProj[0])
	case LightDir:
		l.AABB = InfiniteAABB()
	}
}

// UpdateAndCull refreshes shadow timers, light matrices, and bounding boxes,
// then rebuilds the visible set from the camera frustum. Directional lights
// are never culled.
func (m *LightManager) UpdateAndCull(viewFrustum *Frustum, viewPosition mgl32.Vec3, dt float32) {
	m.visible = m.visible[:0]

	for _, id := range m.valid {
		l := &m.lights[id]
		if !l.Enabled {
			continue
		}

		if l.Shadow {
			advanceShadowState(l, dt)
		}

		// Directional projections follow the viewer, so they refresh with
		// the shadow map rather than on transform changes.
		shouldUpdate := l.matrixDirty
		if l.Type == LightDir {
			shouldUpdate = l.shadowDirty
		}

		if shouldUpdate {
			m.updateLightMatrix(l, viewPosition)
			updateLightFrustums(l)
			if l.Type != LightDir {
				updateLightBoundingBox(l)
			}
			l.matrixDirty = false
		}

		if viewFrustum.ContainsAABB(l.AABB) {
			m.visible = append(m.visible, id)
		}
	}
}

// ShadowShouldBeUpdated reports whether the light's map needs re-rendering
// and, when willBeUpdated is set, consumes the flag for manual and interval
// modes.
func (m *LightManager) ShadowShouldBeUpdated(id LightID, willBeUpdated bool) bool {
	l := m.get(id)
	if l == nil {
		return false
	}

	should := l.shadowDirty
	if willBeUpdated {
		switch l.updateMode {
		case ShadowUpdateManual, ShadowUpdateInterval:
			l.shadowDirty = false
		}
	}
	return should
}

// Rect is a pixel rectangle, used for per-light scissoring.
type Rect struct {
	X, Y, W, H int
}

// ScreenRect projects the light's bounding box onto the viewport. When any
// corner lands behind the projection plane the full viewport is returned.
// Only meaningful for spot and omni lights.
func (m *LightManager) ScreenRect(id LightID, viewProj mgl32.Mat4, w, h int) Rect {
	l := m.get(id)
	if l == nil {
		return Rect{0, 0, w, h}
	}
	debugAssert(l.Type != LightDir, "screen rect is undefined for directional lights")

	minNDC := mgl32.Vec2{math.MaxFloat32, math.MaxFloat32}
	maxNDC := mgl32.Vec2{-math.MaxFloat32, -math.MaxFloat32}

	allInside := true
	for i := 0; i < 8; i++ {
		corner := l.AABB.Corner(i)
		clip := viewProj.Mul4x1(corner.Vec4(1))
		if clip.W() <= 0 {
			allInside = false
			break
		}
		ndc := mgl32.Vec2{clip.X() / clip.W(), clip.Y() / clip.W()}
		minNDC = mgl32.Vec2{min32(minNDC.X(), ndc.X()), min32(minNDC.Y(), ndc.Y())}
		maxNDC = mgl32.Vec2{max32(maxNDC.X(), ndc.X()), max32(maxNDC.Y(), ndc.Y())}
	}

	if !allInside {
		return Rect{0, 0, w, h}
	}

	x := int(max32((minNDC.X()*0.5+0.5)*float32(w), 0))
	y := int(max32((minNDC.Y()*0.5+0.5)*float32(h), 0))
	rw := int(min32((maxNDC.X()*0.5+0.5)*float32(w), float32(w))) - x
	rh := int(min32((maxNDC.Y()*0.5+0.5)*float32(h), float32(h))) - y
	return Rect{x, y, rw, rh}
}

func cos32(x float32) float32   { return float32(math.Cos(float64(x))) }
func floor32(x float32) float32 { return float32(math.Floor(float64(x))) }
