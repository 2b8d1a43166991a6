package renderer

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

func bindTexture2D(unit uint32, tex uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D, tex)
}

func bindTextureCube(unit uint32, tex uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, tex)
}

// drawScreen issues the attribute-less fullscreen triangle.
func (r *Renderer) drawScreen() {
	r.queue.shapes[shapeDummy].draw(shapeDummy)
	gl.BindVertexArray(0)
}

// bindTarget2D binds a cached render target as a sampler input.
func (r *Renderer) bindTarget2D(unit uint32, t TargetID) {
	bindTexture2D(unit, r.targets.Texture(t))
}

func (r *Renderer) orDefault(tex, fallback uint32) uint32 {
	if tex == 0 {
		return fallback
	}
	return tex
}

// setSurfaceMaterial uploads the material maps and factors shared by the
// geometry and forward programs.
func (r *Renderer) setSurfaceMaterial(sh *shaderProgram, m *Material) {
	bindTexture2D(0, r.orDefault(m.Albedo.Texture, r.defaults.white))
	bindTexture2D(1, r.orDefault(m.Normal.Texture, r.defaults.normal))
	bindTexture2D(2, r.orDefault(m.Emission.Texture, r.defaults.white))
	bindTexture2D(3, r.orDefault(m.ORM.Texture, r.defaults.white))

	u := sh.uniforms
	u.SetVec4("uColAlbedo", m.Albedo.Color)
	u.SetVec3("uColEmission", m.Emission.Color)
	u.SetFloat("uValEmission", m.Emission.Energy)
	u.SetFloat("uValOcclusion", m.ORM.Occlusion)
	u.SetFloat("uValRoughness", m.ORM.Roughness)
	u.SetFloat("uValMetalness", m.ORM.Metalness)
	u.SetFloat("uAlphaCutoff", m.AlphaCutoff)
	u.SetFloat("uNormalScale", m.Normal.Scale)
}

// renderMeshList draws the visible mesh calls of one logical list and its
// instanced twin. shadowDepth selects shadow-pass state handling: shadow cull
// modes apply and non-casting calls are skipped.
func (r *Renderer) renderMeshList(sh *shaderProgram, list drawListID, frustum *Frustum,
	cameraPass, shadowDepth bool, boneUnit uint32) {

	for _, l := range [2]drawListID{list, instancedList(list)} {
		r.vis = r.queue.visibleCalls(l, frustum, cameraPass, r.vis)

		for _, ci := range r.vis {
			call := &r.queue.calls[ci]
			gs := r.queue.callGroup(call)

			if shadowDepth {
				if !call.castsShadows() {
					continue
				}
				applyShadowCastMode(call.material.ShadowCast, call.material.Cull)
			} else {
				applyCullMode(call.material.Cull)
			}

			u := sh.uniforms
			u.SetMat4("uMatModel", gs.group.Transform)
			if !shadowDepth {
				u.SetMat4("uMatNormal", gs.group.Transform.Inv().Transpose())
			}
			u.SetBool("uInstanced", gs.group.instanced())

			skinned := gs.group.PoseTexture != 0
			u.SetBool("uSkinned", skinned)
			if skinned {
				bindTexture2D(boneUnit, gs.group.PoseTexture)
			}

			if shadowDepth {
				u.SetFloat("uAlphaCutoff", call.material.AlphaCutoff)
				bindTexture2D(0, r.orDefault(call.material.Albedo.Texture, r.defaults.white))
			} else {
				r.setSurfaceMaterial(sh, &call.material)
			}

			if gs.group.instanced() {
				r.queue.drawInstanced(call)
			} else {
				r.queue.draw(call)
			}
		}
	}
	gl.BindVertexArray(0)
}

/* === Shadow pass === */

// shadowPass re-renders the map of every live shadowed light whose refresh
// policy fired, culled against the light's own frustum. Lights outside the
// camera frustum still update here.
func (r *Renderer) shadowPass() {
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.DepthMask(true)
	gl.Disable(gl.BLEND)

	r.shDepth.use()

	for _, id := range r.lights.All() {
		l, ok := r.lights.Get(id)
		if !ok || !l.Enabled || !l.Shadow || l.ShadowLayer() < 0 {
			continue
		}
		if !r.lights.ShadowShouldBeUpdated(id, true) {
			continue
		}

		faces := 1
		if l.Type == LightOmni {
			faces = 6
		}

		u := r.shDepth.uniforms
		u.SetBool("uDistanceDepth", l.Type == LightOmni)
		u.SetVec3("uLightPosition", l.Position)
		u.SetFloat("uFar", l.Far)

		for face := 0; face < faces; face++ {
			r.lights.BindShadowLayer(l.Type, l.ShadowLayer(), face)
			gl.Clear(gl.DEPTH_BUFFER_BIT)

			u.SetMat4("uMatVP", l.ViewProj[face])

			frustum := l.Frustums[face]
			r.renderMeshList(r.shDepth, drawListDeferred, &frustum, false, true, 1)
			r.renderMeshList(r.shDepth, drawListPrepass, &frustum, false, true, 1)
			r.renderMeshList(r.shDepth, drawListForward, &frustum, false, true, 1)
		}
	}

	r.targets.Reset()
}

/* === G-buffer === */

var gBufferTargets = []TargetID{TargetAlbedo, TargetNormal, TargetORM, TargetDiffuse, TargetDepth}

func (r *Renderer) hasOpaque() bool {
	return len(r.queue.lists[drawListDeferred])+len(r.queue.lists[instancedList(drawListDeferred)])+
		len(r.queue.lists[drawListPrepass])+len(r.queue.lists[instancedList(drawListPrepass)]) > 0
}

func (r *Renderer) geometryPass() {
	if !r.hasOpaque() {
		// Nothing will touch the color planes; compose falls back to the
		// background wherever depth stays cleared.
		r.targets.Clear(TargetDepth)
		return
	}

	r.targets.Clear(gBufferTargets...)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.DepthMask(true)
	gl.Disable(gl.BLEND)

	r.shGeometry.use()
	r.shGeometry.uniforms.SetMat4("uMatVP", r.viewProj)
	r.renderMeshList(r.shGeometry, drawListDeferred, &r.frustum, true, false, 4)

	r.prepassVariant()
	r.decalPass()

	gl.Disable(gl.CULL_FACE)
}

// prepassVariant rasterizes masked-transparency geometry depth-only first,
// then shades with an equal-depth test so overlapping layers never
// double-shade.
func (r *Renderer) prepassVariant() {
	if len(r.queue.lists[drawListPrepass])+len(r.queue.lists[instancedList(drawListPrepass)]) == 0 {
		return
	}

	gl.ColorMask(false, false, false, false)
	r.shDepth.use()
	u := r.shDepth.uniforms
	u.SetMat4("uMatVP", r.viewProj)
	u.SetBool("uDistanceDepth", false)
	r.renderMeshList(r.shDepth, drawListPrepass, &r.frustum, true, false, 1)
	gl.ColorMask(true, true, true, true)

	gl.DepthFunc(gl.EQUAL)
	gl.DepthMask(false)
	r.shGeometry.use()
	r.renderMeshList(r.shGeometry, drawListPrepass, &r.frustum, true, false, 4)

	gl.DepthFunc(gl.LESS)
	gl.DepthMask(true)
}

// decalPass projects decals into the G-buffer. Depth is sampled, not
// attached, and front faces are culled so the near plane never clips the
// volume.
func (r *Renderer) decalPass() {
	r.vis = r.queue.visibleCalls(drawListDecal, &r.frustum, true, r.vis)
	if len(r.vis) == 0 {
		return
	}

	r.targets.Bind(TargetAlbedo, TargetNormal, TargetORM, TargetDiffuse)

	gl.Disable(gl.DEPTH_TEST)
	gl.DepthMask(false)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.FRONT)

	r.shDecal.use()
	u := r.shDecal.uniforms
	u.SetMat4("uMatVP", r.viewProj)
	u.SetMat4("uMatInvView", r.invView)
	u.SetMat4("uMatInvProj", r.invProj)
	u.SetVec2("uResolution", mgl32.Vec2{float32(r.cfg.Width), float32(r.cfg.Height)})
	r.bindTarget2D(4, TargetDepth)

	for _, ci := range r.vis {
		call := &r.queue.calls[ci]
		gs := r.queue.callGroup(call)
		d := call.decal

		bindTexture2D(0, r.orDefault(d.Albedo.Texture, r.defaults.white))
		bindTexture2D(1, r.orDefault(d.Normal.Texture, r.defaults.normal))
		bindTexture2D(2, r.orDefault(d.Emission.Texture, r.defaults.black))
		bindTexture2D(3, r.orDefault(d.ORM.Texture, r.defaults.white))

		u.SetVec4("uColAlbedo", d.Albedo.Color)
		u.SetVec3("uColEmission", d.Emission.Color)
		u.SetFloat("uValEmission", d.Emission.Energy)
		u.SetFloat("uValOcclusion", d.ORM.Occlusion)
		u.SetFloat("uValRoughness", d.ORM.Roughness)
		u.SetFloat("uValMetalness", d.ORM.Metalness)
		u.SetMat4("uMatModel", gs.group.Transform)
		u.SetMat4("uMatInvModel", gs.group.Transform.Inv())

		r.queue.draw(call)
	}

	gl.BindVertexArray(0)
	gl.CullFace(gl.BACK)
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthMask(true)
}

/* === Screen-space effects === */

func (r *Renderer) ssaoPass() {
	if !r.Env.SSAOEnabled {
		return
	}

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)

	iterations := r.Env.SSAOIterations
	if iterations > ssaoKernelSize {
		iterations = ssaoKernelSize
	}

	r.targets.Bind(TargetSSAO0)
	r.shSSAO.use()
	u := r.shSSAO.uniforms
	r.bindTarget2D(0, TargetDepth)
	r.bindTarget2D(1, TargetNormal)
	bindTexture2D(2, r.ssaoNoise)
	u.SetMat4("uMatProj", r.proj)
	u.SetMat4("uMatInvProj", r.invProj)
	u.SetMat4("uMatView", r.view)
	u.SetFloat("uRadius", r.Env.SSAORadius)
	u.SetFloat("uBias", r.Env.SSAOBias)
	u.SetFloat("uIntensity", r.Env.SSAOPower)
	u.SetInt("uIterations", int32(iterations))
	w, h := r.targets.Resolution(TargetSSAO0, 0)
	u.SetVec2("uNoiseScale", mgl32.Vec2{float32(w) / ssaoNoiseSize, float32(h) / ssaoNoiseSize})
	r.drawScreen()

	// Depth-aware separable blur, one axis per ping-pong half.
	r.shBlur.use()
	bu := r.shBlur.uniforms
	bu.SetVec2("uTexelSize", r.targets.TexelSize(TargetSSAO0, 0))

	r.targets.Bind(TargetSSAO1)
	r.bindTarget2D(0, TargetSSAO0)
	r.bindTarget2D(1, TargetDepth)
	bu.SetVec2("uDirection", mgl32.Vec2{1, 0})
	r.drawScreen()

	r.targets.Bind(TargetSSAO0)
	r.bindTarget2D(0, TargetSSAO1)
	bu.SetVec2("uDirection", mgl32.Vec2{0, 1})
	r.drawScreen()
}

func (r *Renderer) ssilPass() {
	if !r.Env.SSILEnabled {
		return
	}

	// The history buffer is read before it is ever written; clear it once on
	// the first enabled frame.
	if !r.ssilPrimed {
		r.targets.Clear(SwapSSIL(r.ssilHistory))
		r.targets.Clear(r.ssilHistory)
		r.ssilPrimed = true
	}
	r.primeHistoryMip()

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)

	out := SwapSSIL(r.ssilHistory)
	r.targets.Bind(out)

	r.shSSIL.use()
	u := r.shSSIL.uniforms
	r.bindTarget2D(0, TargetDepth)
	r.bindTarget2D(1, TargetNormal)
	r.bindTarget2D(2, TargetSSILMip)
	r.bindTarget2D(3, r.ssilHistory)
	bindTexture2D(4, r.ssaoNoise)
	u.SetMat4("uMatProj", r.proj)
	u.SetMat4("uMatInvProj", r.invProj)
	u.SetMat4("uMatView", r.view)
	u.SetFloat("uRadius", r.Env.SSILRadius)
	u.SetFloat("uIntensity", r.Env.SSILIntensity)
	w, h := r.targets.Resolution(out, 0)
	u.SetVec2("uNoiseScale", mgl32.Vec2{float32(w) / ssaoNoiseSize, float32(h) / ssaoNoiseSize})
	r.drawScreen()

	r.ssilHistory = out
}

func (r *Renderer) ssrPass() {
	if !r.Env.SSREnabled {
		return
	}
	r.primeHistoryMip()

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)

	r.targets.Bind(TargetSSR)
	r.shSSR.use()
	u := r.shSSR.uniforms
	r.bindTarget2D(0, TargetDepth)
	r.bindTarget2D(1, TargetNormal)
	r.bindTarget2D(2, TargetORM)
	r.bindTarget2D(3, TargetSSILMip)
	u.SetMat4("uMatProj", r.proj)
	u.SetMat4("uMatInvProj", r.invProj)
	u.SetMat4("uMatView", r.view)
	u.SetInt("uMaxSteps", int32(r.Env.SSRMaxSteps))
	u.SetFloat("uThickness", r.Env.SSRThickness)
	u.SetFloat("uMaxDistance", r.camera.Far)
	r.drawScreen()

	r.targets.GenerateMipmaps(TargetSSR)
}

// primeHistoryMip makes sure the shared scene-history chain exists before a
// screen-space pass samples it. captureHistory fills it at end of frame.
func (r *Renderer) primeHistoryMip() {
	if r.historyPrimed {
		return
	}
	r.targets.Clear(TargetSSILMip)
	r.targets.GenerateMipmaps(TargetSSILMip)
	r.historyPrimed = true
}

// captureHistory copies the HDR scene into the mip-chained history target
// for next frame's indirect lighting and reflections.
func (r *Renderer) captureHistory() {
	if !r.Env.SSILEnabled && !r.Env.SSREnabled {
		return
	}

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)

	r.targets.Bind(TargetSSILMip)
	r.shOutput.use()
	r.shOutput.uniforms.SetInt("uViewMode", 0)
	r.shOutput.uniforms.SetBool("uDither", false)
	r.bindTarget2D(0, r.scene)
	r.drawScreen()

	r.targets.GenerateMipmaps(TargetSSILMip)
	r.historyPrimed = true
}

/* === Deferred lighting === */

// lightingPass accumulates per-light diffuse and specular additively,
// scissored to each light's screen rectangle, then folds in ambient or sky
// IBL. The diffuse target already carries emission from the G-buffer.
func (r *Renderer) lightingPass() {
	r.targets.Clear(TargetSpecular)
	r.targets.Bind(TargetDiffuse, TargetSpecular)

	gl.Disable(gl.DEPTH_TEST)
	gl.DepthMask(false)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.ONE, gl.ONE)

	r.deferredLights()
	r.ambientLight()

	gl.Disable(gl.BLEND)
	gl.Disable(gl.SCISSOR_TEST)
	gl.DepthMask(true)
}

func (r *Renderer) deferredLights() {
	visible := r.lights.Visible()
	if len(visible) == 0 {
		return
	}

	r.shLight.use()
	u := r.shLight.uniforms

	r.bindTarget2D(0, TargetAlbedo)
	r.bindTarget2D(1, TargetNormal)
	r.bindTarget2D(2, TargetDepth)
	r.bindTarget2D(3, TargetORM)

	gl.ActiveTexture(gl.TEXTURE5)
	gl.BindTexture(gl.TEXTURE_CUBE_MAP_ARRAY, r.lights.ShadowTexture(LightOmni))

	u.SetVec3("uViewPosition", r.viewPos)
	u.SetMat4("uMatInvProj", r.invProj)
	u.SetMat4("uMatInvView", r.invView)

	for _, id := range visible {
		l, ok := r.lights.Get(id)
		if !ok {
			continue
		}

		// Scissor the lighting quad to the light's screen footprint.
		if l.Type != LightDir {
			rect := r.lights.ScreenRect(id, r.viewProj, r.cfg.Width, r.cfg.Height)
			if rect.W <= 0 || rect.H <= 0 {
				continue
			}
			gl.Enable(gl.SCISSOR_TEST)
			gl.Scissor(int32(rect.X), int32(rect.Y), int32(rect.W), int32(rect.H))
		} else {
			gl.Disable(gl.SCISSOR_TEST)
		}

		u.SetInt("uLightType", int32(l.Type))
		u.SetVec3("uLightColor", l.Color)
		u.SetVec3("uLightPosition", l.Position)
		u.SetVec3("uLightDirection", l.Direction)
		u.SetFloat("uLightEnergy", l.Energy)
		u.SetFloat("uLightSpecular", l.Specular)
		u.SetFloat("uLightRange", l.Range)
		u.SetFloat("uLightAttenuation", l.Attenuation)
		u.SetFloat("uLightInnerCutOff", l.InnerCutOff)
		u.SetFloat("uLightOuterCutOff", l.OuterCutOff)

		u.SetBool("uShadow", l.Shadow)
		if l.Shadow {
			if l.Type != LightOmni {
				gl.ActiveTexture(gl.TEXTURE4)
				gl.BindTexture(gl.TEXTURE_2D_ARRAY, r.lights.ShadowTexture(l.Type))
				u.SetMat4("uMatShadowVP", l.ViewProj[0])
			}
			u.SetInt("uShadowLayer", int32(l.ShadowLayer()))
			u.SetFloat("uShadowBias", l.ShadowDepthBias)
			u.SetFloat("uShadowSoftness", l.ShadowSoftness)
		}

		r.drawScreen()
	}

	gl.Disable(gl.SCISSOR_TEST)
}

func (r *Renderer) ambientLight() {
	r.shAmbient.use()
	u := r.shAmbient.uniforms

	r.bindTarget2D(0, TargetAlbedo)
	r.bindTarget2D(1, TargetNormal)
	r.bindTarget2D(2, TargetDepth)
	r.bindTarget2D(3, TargetORM)

	if r.Env.SSAOEnabled {
		r.bindTarget2D(4, TargetSSAO0)
	} else {
		bindTexture2D(4, r.defaults.white)
	}
	if r.Env.SSILEnabled {
		r.bindTarget2D(5, r.ssilHistory)
	} else {
		bindTexture2D(5, r.defaults.black)
	}

	hasSky := r.Env.hasSky()
	u.SetBool("uHasSkybox", hasSky)
	if hasSky {
		bindTextureCube(6, r.Env.Sky.Irradiance)
		bindTextureCube(7, r.Env.Sky.Prefilter)
		bindTexture2D(8, r.defaults.brdfLUT)
		q := r.Env.SkyRotation
		u.SetVec4("uQuatSkybox", mgl32.Vec4{q.V.X(), q.V.Y(), q.V.Z(), q.W})
		u.SetFloat("uSkyEnergy", r.Env.SkyEnergy)
	}

	u.SetVec3("uColAmbient", r.Env.AmbientColor)
	u.SetFloat("uAmbientEnergy", r.Env.AmbientEnergy)
	u.SetVec3("uViewPosition", r.viewPos)
	u.SetMat4("uMatInvProj", r.invProj)
	u.SetMat4("uMatInvView", r.invView)

	r.drawScreen()
}

/* === Compose + background === */

func (r *Renderer) composePass() {
	r.scene = TargetScene0
	r.targets.Bind(r.scene)

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)

	r.shCompose.use()
	u := r.shCompose.uniforms
	r.bindTarget2D(0, TargetAlbedo)
	r.bindTarget2D(1, TargetDiffuse)
	r.bindTarget2D(2, TargetSpecular)
	if r.Env.SSREnabled {
		r.bindTarget2D(3, TargetSSR)
	}
	r.bindTarget2D(4, TargetDepth)
	u.SetBool("uHasSSR", r.Env.SSREnabled)
	u.SetFloat("uSSRIntensity", r.Env.SSRIntensity)
	u.SetVec3("uColBackground", r.Env.BackgroundColor)
	r.drawScreen()
}

// backgroundPass replaces untouched-depth pixels with the sky cubemap. Flat
// background colors are already handled by the compose shader.
func (r *Renderer) backgroundPass() {
	if !r.Env.hasSky() {
		return
	}

	r.targets.Bind(r.scene, TargetDepth)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	gl.DepthMask(false)
	gl.Disable(gl.CULL_FACE)

	r.shSkybox.use()
	u := r.shSkybox.uniforms
	bindTextureCube(0, r.Env.Sky.Cubemap)
	u.SetMat4("uMatProj", r.proj)
	u.SetMat4("uMatView", r.view)
	q := r.Env.SkyRotation
	u.SetVec4("uRotation", mgl32.Vec4{q.V.X(), q.V.Y(), q.V.Z(), q.W})
	u.SetFloat("uSkyEnergy", r.Env.SkyEnergy)

	r.queue.shapes[shapeCube].draw(shapeCube)
	gl.BindVertexArray(0)

	gl.DepthFunc(gl.LESS)
	gl.DepthMask(true)
}

/* === Forward pass === */

// forwardPass renders transparent geometry into the scene target with the
// G-buffer depth, lit by up to maxForwardLights of the visible batch.
func (r *Renderer) forwardPass() {
	if len(r.queue.lists[drawListForward])+len(r.queue.lists[instancedList(drawListForward)]) == 0 {
		return
	}

	r.targets.Bind(r.scene, TargetDepth)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.DepthMask(false)
	gl.Enable(gl.BLEND)

	r.shForward.use()
	u := r.shForward.uniforms
	u.SetMat4("uMatVP", r.viewProj)
	u.SetVec3("uViewPosition", r.viewPos)
	u.SetVec3("uColAmbient", r.Env.AmbientColor)
	u.SetFloat("uAmbientEnergy", r.Env.AmbientEnergy)
	r.setForwardLights(u)

	// Blend state is per material, so the list draws call by call.
	for _, l := range [2]drawListID{drawListForward, instancedList(drawListForward)} {
		r.vis = r.queue.visibleCalls(l, &r.frustum, true, r.vis)
		for _, ci := range r.vis {
			call := &r.queue.calls[ci]
			gs := r.queue.callGroup(call)

			applyCullMode(call.material.Cull)
			applyBlendMode(call.material.Blend, call.material.Transparency)

			u.SetMat4("uMatModel", gs.group.Transform)
			u.SetMat4("uMatNormal", gs.group.Transform.Inv().Transpose())
			u.SetBool("uInstanced", gs.group.instanced())
			skinned := gs.group.PoseTexture != 0
			u.SetBool("uSkinned", skinned)
			if skinned {
				bindTexture2D(4, gs.group.PoseTexture)
			}
			r.setSurfaceMaterial(r.shForward, &call.material)

			if gs.group.instanced() {
				r.queue.drawInstanced(call)
			} else {
				r.queue.draw(call)
			}
		}
	}

	gl.BindVertexArray(0)
	gl.Disable(gl.BLEND)
	gl.Disable(gl.CULL_FACE)
	gl.DepthMask(true)
}

func (r *Renderer) setForwardLights(u *UniformCache) {
	count := 0
	for _, id := range r.lights.Visible() {
		if count >= maxForwardLights {
			break
		}
		l, ok := r.lights.Get(id)
		if !ok {
			continue
		}
		p := lightUniformName(count)
		u.SetBool(p+".enabled", true)
		u.SetInt(p+".type", int32(l.Type))
		u.SetVec3(p+".color", l.Color)
		u.SetVec3(p+".position", l.Position)
		u.SetVec3(p+".direction", l.Direction)
		u.SetFloat(p+".energy", l.Energy)
		u.SetFloat(p+".specular", l.Specular)
		u.SetFloat(p+".range", l.Range)
		u.SetFloat(p+".attenuation", l.Attenuation)
		u.SetFloat(p+".innerCutOff", l.InnerCutOff)
		u.SetFloat(p+".outerCutOff", l.OuterCutOff)
		count++
	}
	for ; count < maxForwardLights; count++ {
		u.SetBool(lightUniformName(count)+".enabled", false)
	}
}

var forwardLightNames = [maxForwardLights]string{
	"uLights[0]", "uLights[1]", "uLights[2]", "uLights[3]",
	"uLights[4]", "uLights[5]", "uLights[6]", "uLights[7]",
}

func lightUniformName(i int) string { return forwardLightNames[i] }

/* === Post-process chain === */

// postChain ping-pongs the scene through the enabled post passes and always
// ends with tonemapping, which also folds in bloom and color adjustment.
func (r *Renderer) postChain() {
	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)

	if r.Env.FogMode != FogDisabled {
		r.fogPass()
	}
	if r.Env.DOFEnabled {
		r.dofPass()
	}
	if r.Env.BloomMode != BloomDisabled {
		r.bloomPass()
	}
	r.tonemapPass()
	if r.Env.FXAAEnabled {
		r.fxaaPass()
	}
}

func (r *Renderer) fogPass() {
	next := SwapScene(r.scene)
	r.targets.Bind(next)

	r.shFog.use()
	u := r.shFog.uniforms
	r.bindTarget2D(0, r.scene)
	r.bindTarget2D(1, TargetDepth)
	u.SetFloat("uNear", r.camera.Near)
	u.SetFloat("uFar", r.camera.Far)
	u.SetInt("uFogMode", int32(r.Env.FogMode))
	u.SetVec3("uFogColor", r.Env.FogColor)
	u.SetFloat("uFogStart", r.Env.FogStart)
	u.SetFloat("uFogEnd", r.Env.FogEnd)
	u.SetFloat("uFogDensity", r.Env.FogDensity)
	r.drawScreen()

	r.scene = next
}

func (r *Renderer) dofPass() {
	next := SwapScene(r.scene)
	r.targets.Bind(next)

	r.shDOF.use()
	u := r.shDOF.uniforms
	r.bindTarget2D(0, r.scene)
	r.bindTarget2D(1, TargetDepth)
	u.SetFloat("uNear", r.camera.Near)
	u.SetFloat("uFar", r.camera.Far)
	u.SetFloat("uFocusDistance", r.Env.DOFFocusDistance)
	u.SetFloat("uFocusRange", r.Env.DOFFocusRange)
	u.SetVec2("uTexelSize", r.targets.TexelSize(r.scene, 0))
	r.drawScreen()

	r.scene = next
}

// bloomPass runs the progressive downsample/upsample chain through the bloom
// target's mip pyramid. The Karis average on the first reduction and the
// tent-filtered additive upsample keep wide highlights stable.
func (r *Renderer) bloomPass() {
	levels := r.Env.BloomLevels
	if max := r.targets.MipCount(TargetBloom); levels > max {
		levels = max
	}
	if levels < 2 {
		return
	}

	r.shBloomDown.use()
	du := r.shBloomDown.uniforms
	du.SetFloat("uThreshold", 1.0)

	// Downsample: scene -> mip 0, then mip N-1 -> mip N.
	for level := 0; level < levels; level++ {
		r.targets.BindMip(level, TargetBloom)
		if level == 0 {
			r.bindTarget2D(0, r.scene)
			du.SetVec2("uTexelSize", r.targets.TexelSize(r.scene, 0))
		} else {
			r.bindTarget2D(0, TargetBloom)
			r.targets.SetMipRange(TargetBloom, level-1, level-1)
			du.SetVec2("uTexelSize", r.targets.TexelSize(TargetBloom, level-1))
		}
		du.SetInt("uMipLevel", int32(level))
		r.drawScreen()
	}

	// Upsample additively back down the chain.
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.ONE, gl.ONE)

	r.shBloomUp.use()
	r.shBloomUp.uniforms.SetFloat("uFilterRadius", r.Env.BloomFilterRadius)

	for level := levels - 1; level > 0; level-- {
		r.targets.BindMip(level-1, TargetBloom)
		r.bindTarget2D(0, TargetBloom)
		r.targets.SetMipRange(TargetBloom, level, level)
		r.drawScreen()
	}

	r.targets.SetMipRange(TargetBloom, 0, levels-1)
	gl.Disable(gl.BLEND)
}

func (r *Renderer) tonemapPass() {
	next := SwapScene(r.scene)
	r.targets.Bind(next)

	r.shTonemap.use()
	u := r.shTonemap.uniforms
	r.bindTarget2D(0, r.scene)
	if r.Env.BloomMode != BloomDisabled {
		r.bindTarget2D(1, TargetBloom)
	} else {
		bindTexture2D(1, r.defaults.black)
	}
	u.SetInt("uBloomMode", int32(r.Env.BloomMode))
	u.SetFloat("uBloomIntensity", r.Env.BloomIntensity)
	u.SetInt("uTonemapMode", int32(r.Env.Tonemap))
	u.SetFloat("uTonemapExposure", r.Env.Exposure)
	u.SetFloat("uTonemapWhite", r.Env.White)
	u.SetFloat("uBrightness", r.Env.Brightness)
	u.SetFloat("uContrast", r.Env.Contrast)
	u.SetFloat("uSaturation", r.Env.Saturation)
	r.drawScreen()

	r.scene = next
}

func (r *Renderer) fxaaPass() {
	next := SwapScene(r.scene)
	r.targets.Bind(next)

	r.shFXAA.use()
	r.bindTarget2D(0, r.scene)
	r.shFXAA.uniforms.SetVec2("uTexelSize", r.targets.TexelSize(r.scene, 0))
	r.drawScreen()

	r.scene = next
}

/* === Presentation === */

// presentPass letterboxes the finished frame into the default framebuffer,
// optionally visualizing a raw buffer instead of the scene.
func (r *Renderer) presentPass() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(r.winW), int32(r.winH))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)

	x, y, w, h := letterbox(r.cfg.Width, r.cfg.Height, r.winW, r.winH)
	gl.Viewport(int32(x), int32(y), int32(w), int32(h))

	r.shOutput.use()
	u := r.shOutput.uniforms
	r.bindTarget2D(0, r.scene)
	r.bindTarget2D(1, TargetAlbedo)
	r.bindTarget2D(2, TargetNormal)
	r.bindTarget2D(3, TargetDepth)
	if r.Env.SSAOEnabled {
		r.bindTarget2D(4, TargetSSAO0)
	} else {
		bindTexture2D(4, r.defaults.white)
	}
	u.SetInt("uViewMode", int32(r.ViewMode))
	u.SetBool("uDither", r.Env.DitherEnabled)
	u.SetFloat("uNear", r.camera.Near)
	u.SetFloat("uFar", r.camera.Far)

	tex := r.targets.Texture(r.scene)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	if !r.cfg.BlitLinear {
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	}

	r.drawScreen()

	if !r.cfg.BlitLinear {
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	}

	r.targets.Reset()
}

// letterbox fits the source aspect into the destination surface.
func letterbox(srcW, srcH, dstW, dstH int) (x, y, w, h int) {
	scaleW := float32(dstW) / float32(srcW)
	scaleH := float32(dstH) / float32(srcH)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	w = int(float32(srcW) * scale)
	h = int(float32(srcH) * scale)
	x = (dstW - w) / 2
	y = (dstH - h) / 2
	return
}

// resetState restores the GL defaults the host expects between frames.
func (r *Renderer) resetState() {
	gl.BindVertexArray(0)
	gl.UseProgram(0)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.DepthMask(true)
	gl.Disable(gl.BLEND)
	gl.Disable(gl.SCISSOR_TEST)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)
	gl.Viewport(0, 0, int32(r.winW), int32(r.winH))
}
