package renderer

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// Config fixes the renderer's internal resolution and optional behaviors at
// construction. The internal resolution is independent of the window size;
// the final blit letterboxes and scales.
type Config struct {
	Width  int
	Height int

	// SortOpaque orders opaque lists material-first, nearest-first.
	SortOpaque bool
	// SortTransparent orders the forward list back to front.
	SortTransparent bool

	// BlitLinear selects linear filtering for the presentation blit; the
	// default is nearest, which keeps pixel-art scenes crisp.
	BlitLinear bool
}

// ViewMode selects what the presentation blit shows. Everything but
// ViewScene is a debug visualization of a raw buffer.
type ViewMode int

const (
	ViewScene ViewMode = iota
	ViewAlbedo
	ViewNormal
	ViewDepth
	ViewSSAO
)

// Renderer owns one frame pipeline: target cache, light registry, draw
// queue, and every pass program. Exactly one frame may be open at a time,
// and all methods must run on the thread holding the GL context.
type Renderer struct {
	// Env holds the scene-wide parameters read during End. The host mutates
	// it freely between frames.
	Env Environment

	// ViewMode switches the presentation blit to a raw-buffer view.
	ViewMode ViewMode

	cfg     Config
	targets *TargetCache
	lights  *LightManager
	queue   *drawQueue

	defaults   defaultTextures
	ssaoNoise  uint32
	ssaoKernel [ssaoKernelSize]mgl32.Vec3

	shGeometry  *shaderProgram
	shDecal     *shaderProgram
	shDepth     *shaderProgram
	shSSAO      *shaderProgram
	shBlur      *shaderProgram
	shSSIL      *shaderProgram
	shSSR       *shaderProgram
	shLight     *shaderProgram
	shAmbient   *shaderProgram
	shCompose   *shaderProgram
	shSkybox    *shaderProgram
	shForward   *shaderProgram
	shBloomDown *shaderProgram
	shBloomUp   *shaderProgram
	shFog       *shaderProgram
	shDOF       *shaderProgram
	shTonemap   *shaderProgram
	shFXAA      *shaderProgram
	shOutput    *shaderProgram

	winW, winH int

	frameOpen bool
	dt        float32

	camera   Camera
	view     mgl32.Mat4
	proj     mgl32.Mat4
	viewProj mgl32.Mat4
	invView  mgl32.Mat4
	invProj  mgl32.Mat4
	frustum  Frustum
	viewPos  mgl32.Vec3

	// Current half of the scene ping-pong pair.
	scene TargetID

	// Lazily initialized history state for the screen-space passes.
	ssilHistory   TargetID
	ssilPrimed    bool
	historyPrimed bool

	vis []int
}

// NewRenderer builds the full pipeline for the given internal resolution.
// Requires a current OpenGL 4.1 core context.
func NewRenderer(cfg Config) (*Renderer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid internal resolution %dx%d", cfg.Width, cfg.Height)
	}

	r := &Renderer{
		Env:         NewEnvironment(),
		cfg:         cfg,
		targets:     NewTargetCache(cfg.Width, cfg.Height),
		lights:      NewLightManager(),
		queue:       newDrawQueue(),
		winW:        cfg.Width,
		winH:        cfg.Height,
		ssilHistory: TargetSSIL1,
	}

	r.defaults = newDefaultTextures()
	r.ssaoNoise = newSSAONoiseTexture()
	r.ssaoKernel = newSSAOKernel()

	r.shGeometry = newShaderProgram("geometry", vsGeometrySource, fsGeometrySource)
	r.shDecal = newShaderProgram("decal", vsDecalSource, fsDecalSource)
	r.shDepth = newShaderProgram("depth", vsDepthSource, fsDepthSource)
	r.shSSAO = newShaderProgram("ssao", vsScreenSource, fsSSAOSource)
	r.shBlur = newShaderProgram("bilateral-blur", vsScreenSource, fsBilateralBlurSource)
	r.shSSIL = newShaderProgram("ssil", vsScreenSource, fsSSILSource)
	r.shSSR = newShaderProgram("ssr", vsScreenSource, fsSSRSource)
	r.shLight = newShaderProgram("deferred-light", vsScreenSource, fsLightSource)
	r.shAmbient = newShaderProgram("ambient", vsScreenSource, fsAmbientSource)
	r.shCompose = newShaderProgram("compose", vsScreenSource, fsComposeSource)
	r.shSkybox = newShaderProgram("skybox", vsSkyboxSource, fsSkyboxSource)
	r.shForward = newShaderProgram("forward", vsGeometrySource, fsForwardSource)
	r.shBloomDown = newShaderProgram("bloom-down", vsScreenSource, fsBloomDownSource)
	r.shBloomUp = newShaderProgram("bloom-up", vsScreenSource, fsBloomUpSource)
	r.shFog = newShaderProgram("fog", vsScreenSource, fsFogSource)
	r.shDOF = newShaderProgram("dof", vsScreenSource, fsDOFSource)
	r.shTonemap = newShaderProgram("tonemap", vsScreenSource, fsTonemapSource)
	r.shFXAA = newShaderProgram("fxaa", vsScreenSource, fsFXAASource)
	r.shOutput = newShaderProgram("output", vsScreenSource, fsOutputSource)

	r.assignSamplerUnits()
	r.uploadSSAOKernel()
	return r, nil
}

// assignSamplerUnits fixes each program's sampler-to-unit mapping once; the
// passes then only rebind textures to units.
func (r *Renderer) assignSamplerUnits() {
	bind := func(sh *shaderProgram, names ...string) {
		sh.use()
		for unit, name := range names {
			sh.uniforms.SetSampler(name, int32(unit))
		}
	}

	bind(r.shGeometry, "uTexAlbedo", "uTexNormal", "uTexEmission", "uTexORM", "uTexBoneMatrices")
	bind(r.shDecal, "uTexAlbedo", "uTexNormal", "uTexEmission", "uTexORM", "uTexDepth")
	bind(r.shDepth, "uTexAlbedo", "uTexBoneMatrices")
	bind(r.shSSAO, "uTexDepth", "uTexNormal", "uTexNoise")
	bind(r.shBlur, "uTexture", "uTexDepth")
	bind(r.shSSIL, "uTexDepth", "uTexNormal", "uTexScene", "uTexHistory", "uTexNoise")
	bind(r.shSSR, "uTexDepth", "uTexNormal", "uTexORM", "uTexScene")
	bind(r.shLight, "uTexAlbedo", "uTexNormal", "uTexDepth", "uTexORM", "uTexShadowMap", "uCubeShadowMap")
	bind(r.shAmbient, "uTexAlbedo", "uTexNormal", "uTexDepth", "uTexORM", "uTexSSAO", "uTexSSIL",
		"uCubeIrradiance", "uCubePrefilter", "uTexBrdfLut")
	bind(r.shCompose, "uTexAlbedo", "uTexDiffuse", "uTexSpecular", "uTexSSR", "uTexDepth")
	bind(r.shSkybox, "uTexSkybox")
	bind(r.shForward, "uTexAlbedo", "uTexNormal", "uTexEmission", "uTexORM")
	bind(r.shBloomDown, "uTexture")
	bind(r.shBloomUp, "uTexture")
	bind(r.shFog, "uTexSceneHDR", "uTexSceneDepth")
	bind(r.shDOF, "uTexSceneHDR", "uTexSceneDepth")
	bind(r.shTonemap, "uTexSceneHDR", "uTexBloomBlurHDR")
	bind(r.shFXAA, "uTexture")
	bind(r.shOutput, "uTexture", "uTexAlbedo", "uTexNormal", "uTexDepth", "uTexSSAO")
}

func (r *Renderer) uploadSSAOKernel() {
	r.shSSAO.use()
	for i, v := range r.ssaoKernel {
		r.shSSAO.uniforms.SetVec3(fmt.Sprintf("uKernel[%d]", i), v)
	}
}

// Lights exposes the light registry.
func (r *Renderer) Lights() *LightManager { return r.lights }

// Targets exposes the render target cache, mainly for debug tooling.
func (r *Renderer) Targets() *TargetCache { return r.targets }

// SetWindowSize tells the renderer the presentation surface size used for
// the final letterboxed blit.
func (r *Renderer) SetWindowSize(w, h int) {
	if w > 0 && h > 0 {
		r.winW, r.winH = w, h
	}
}

// Resize changes the internal resolution. Forbidden while a frame is open.
func (r *Renderer) Resize(w, h int) {
	debugAssert(!r.frameOpen, "resize during an open frame")
	r.targets.Resize(w, h)
	r.cfg.Width, r.cfg.Height = w, h
}

// SetSceneBounds hints the world extent so directional shadow projections
// cover the whole scene instead of each light's range.
func (r *Renderer) SetSceneBounds(bounds AABB) {
	if bounds.IsZero() {
		r.lights.SetDirShadowExtent(0)
		return
	}
	half := bounds.Max.Sub(bounds.Min).Mul(0.5)
	r.lights.SetDirShadowExtent(half.Len())
}

// SetActiveLayers gates subsequent mesh submission by layer mask.
func (r *Renderer) SetActiveLayers(mask uint32) {
	if mask == 0 {
		mask = ^uint32(0)
	}
	r.queue.activeLayers = mask
}

// Begin opens a frame: snapshots the camera and clears the draw lists. dt is
// the elapsed time since the previous frame, driving shadow refresh timers.
func (r *Renderer) Begin(camera Camera, dt float32) {
	debugAssert(!r.frameOpen, "frame already open")
	r.frameOpen = true
	r.dt = dt

	r.queue.clear()

	aspect := float32(r.cfg.Width) / float32(r.cfg.Height)
	r.camera = camera
	r.view = camera.ViewMatrix()
	r.proj = camera.ProjectionMatrix(aspect)
	r.viewProj = r.proj.Mul4(r.view)
	r.invView = r.view.Inv()
	r.invProj = r.proj.Inv()
	r.frustum = NewFrustum(r.viewProj)
	r.viewPos = camera.Position
}

// BeginCluster groups subsequent submissions under one coarse bounding box;
// see drawQueue.beginCluster for nesting rules.
func (r *Renderer) BeginCluster(bounds AABB) bool {
	debugAssert(r.frameOpen, "submission outside a frame")
	return r.queue.beginCluster(bounds)
}

// EndCluster closes the open cluster.
func (r *Renderer) EndCluster() bool {
	return r.queue.endCluster()
}

// DrawMesh submits one mesh with its material and world transform.
func (r *Renderer) DrawMesh(mesh *Mesh, material Material, transform mgl32.Mat4) {
	debugAssert(r.frameOpen, "submission outside a frame")

	r.queue.pushGroup(DrawGroup{
		Transform: r.applyBillboard(transform, material.Billboard),
		AABB:      mesh.AABB,
	})
	r.queue.pushMesh(mesh, material)
}

// DrawModel submits every sub-mesh of a model under one shared group.
// Missing materials fall back to the default.
func (r *Renderer) DrawModel(model *Model, transform mgl32.Mat4) {
	debugAssert(r.frameOpen, "submission outside a frame")

	r.queue.pushGroup(DrawGroup{
		Transform:   transform,
		AABB:        model.AABB,
		PoseTexture: model.PoseTexture,
	})
	for i, mesh := range model.Meshes {
		material := DefaultMaterial()
		if i < len(model.Materials) {
			material = model.Materials[i]
		}
		r.queue.pushMesh(mesh, material)
	}
}

// DrawMeshInstanced submits instanced geometry. bounds must cover every
// instance in object space; a zero AABB disables culling for the group.
func (r *Renderer) DrawMeshInstanced(mesh *Mesh, material Material, transform mgl32.Mat4,
	instances *InstanceBuffer, count int32, bounds AABB) {
	debugAssert(r.frameOpen, "submission outside a frame")
	if instances == nil || count <= 0 {
		return
	}

	r.queue.pushGroup(DrawGroup{
		Transform:     transform,
		AABB:          bounds,
		Instances:     instances,
		InstanceCount: count,
	})
	r.queue.pushMesh(mesh, material)
}

// DrawSprite submits the shared unit quad (facing +Z before any billboard
// mode on the material reorients it) with the given surface.
func (r *Renderer) DrawSprite(material Material, transform mgl32.Mat4) {
	debugAssert(r.frameOpen, "submission outside a frame")

	r.queue.pushGroup(DrawGroup{
		Transform: r.applyBillboard(transform, material.Billboard),
		AABB:      quadAABB,
	})
	r.queue.pushQuad(material)
}

// DrawDecal projects a decal inside the unit cube shaped by transform.
func (r *Renderer) DrawDecal(decal *Decal, transform mgl32.Mat4) {
	debugAssert(r.frameOpen, "submission outside a frame")

	r.queue.pushGroup(DrawGroup{Transform: transform})
	r.queue.pushDecal(decal)
}

// applyBillboard reorients the transform's rotation toward the camera while
// keeping its translation and scale.
func (r *Renderer) applyBillboard(t mgl32.Mat4, mode BillboardMode) mgl32.Mat4 {
	if mode == BillboardDisabled {
		return t
	}

	pos := mgl32.Vec3{t[12], t[13], t[14]}
	scale := mgl32.Vec3{
		mgl32.Vec3{t[0], t[1], t[2]}.Len(),
		mgl32.Vec3{t[4], t[5], t[6]}.Len(),
		mgl32.Vec3{t[8], t[9], t[10]}.Len(),
	}

	var rot mgl32.Mat3
	switch mode {
	case BillboardFront:
		rot = r.invView.Mat3()
	case BillboardYAxis:
		dir := r.viewPos.Sub(pos)
		dir[1] = 0
		if dir.LenSqr() < 1e-8 {
			return t
		}
		dir = dir.Normalize()
		right := mgl32.Vec3{0, 1, 0}.Cross(dir)
		rot = mgl32.Mat3FromCols(right, mgl32.Vec3{0, 1, 0}, dir)
	}

	out := mgl32.Ident4()
	for c := 0; c < 3; c++ {
		col := rot.Col(c).Mul(scale[c])
		out[c*4], out[c*4+1], out[c*4+2] = col.X(), col.Y(), col.Z()
	}
	out[12], out[13], out[14] = pos.X(), pos.Y(), pos.Z()
	return out
}

// End runs the full pass sequence and presents into the default framebuffer.
func (r *Renderer) End() {
	debugAssert(r.frameOpen, "End without Begin")
	debugAssert(r.queue.activeCluster < 0, "frame ended inside a cluster")

	if r.cfg.SortOpaque {
		r.queue.sortList(drawListDeferred, r.viewPos, SortFrontToBack)
		r.queue.sortList(drawListPrepass, r.viewPos, SortFrontToBack)
		r.queue.sortList(instancedList(drawListDeferred), r.viewPos, SortMaterialOnly)
		r.queue.sortList(instancedList(drawListPrepass), r.viewPos, SortMaterialOnly)
	}
	if r.cfg.SortTransparent {
		r.queue.sortList(drawListForward, r.viewPos, SortBackToFront)
	}

	r.lights.UpdateAndCull(&r.frustum, r.viewPos, r.dt)
	r.queue.computeVisibleGroups(&r.frustum)

	r.shadowPass()
	r.geometryPass()
	r.ssaoPass()
	r.ssilPass()
	r.ssrPass()
	r.lightingPass()
	r.composePass()
	r.backgroundPass()
	r.forwardPass()
	r.captureHistory()
	r.postChain()
	r.presentPass()
	r.resetState()

	r.frameOpen = false
}

// framePlan enumerates the conditional stages End will run for the given
// environment and light count. Pure; used to reason about degradation paths.
type passStage int

const (
	stageShadow passStage = iota
	stageGeometry
	stageSSAO
	stageSSIL
	stageSSR
	stageDeferredLights
	stageAmbient
	stageCompose
	stageSky
	stageForward
	stageFog
	stageDOF
	stageBloom
	stageTonemap
	stageFXAA
	stagePresent
)

func framePlan(env *Environment, visibleLights int) []passStage {
	plan := []passStage{stageShadow, stageGeometry}

	if env.SSAOEnabled {
		plan = append(plan, stageSSAO)
	}
	if env.SSILEnabled {
		plan = append(plan, stageSSIL)
	}
	if env.SSREnabled {
		plan = append(plan, stageSSR)
	}
	if visibleLights > 0 {
		plan = append(plan, stageDeferredLights)
	}
	plan = append(plan, stageAmbient, stageCompose)
	if env.hasSky() {
		plan = append(plan, stageSky)
	}
	plan = append(plan, stageForward)
	if env.FogMode != FogDisabled {
		plan = append(plan, stageFog)
	}
	if env.DOFEnabled {
		plan = append(plan, stageDOF)
	}
	if env.BloomMode != BloomDisabled {
		plan = append(plan, stageBloom)
	}
	plan = append(plan, stageTonemap)
	if env.FXAAEnabled {
		plan = append(plan, stageFXAA)
	}
	return append(plan, stagePresent)
}

// Unload frees every GPU resource the renderer owns. Meshes and textures
// created by the caller stay untouched.
func (r *Renderer) Unload() {
	debugAssert(!r.frameOpen, "unload during an open frame")

	for _, sh := range []*shaderProgram{
		r.shGeometry, r.shDecal, r.shDepth, r.shSSAO, r.shBlur, r.shSSIL,
		r.shSSR, r.shLight, r.shAmbient, r.shCompose, r.shSkybox, r.shForward,
		r.shBloomDown, r.shBloomUp, r.shFog, r.shDOF, r.shTonemap, r.shFXAA,
		r.shOutput,
	} {
		if sh != nil {
			sh.unload()
		}
	}

	r.defaults.unload()
	if r.ssaoNoise != 0 {
		gl.DeleteTextures(1, &r.ssaoNoise)
		r.ssaoNoise = 0
	}
	for i := range r.queue.shapes {
		r.queue.shapes[i].unload()
	}
}
