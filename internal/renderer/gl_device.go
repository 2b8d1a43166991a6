package renderer

import (
	"github.com/go-gl/gl/v4.1-core/gl"
)

// glDevice is the production implementation of targetDevice and lightDevice,
// issuing real OpenGL calls. It carries no state; all resources live in the
// caches that own them.
type glDevice struct{}

func (glDevice) NewTexture() uint32 {
	var id uint32
	gl.GenTextures(1, &id)
	return id
}

func (glDevice) DeleteTexture(id uint32) {
	gl.DeleteTextures(1, &id)
}

func (glDevice) AllocTarget(tex uint32, cfg targetConfig, w, h, mips int) {
	gl.BindTexture(gl.TEXTURE_2D, tex)

	for level := 0; level < mips; level++ {
		lw, lh := w>>level, h>>level
		if lw < 1 {
			lw = 1
		}
		if lh < 1 {
			lh = 1
		}
		gl.TexImage2D(gl.TEXTURE_2D, int32(level), int32(cfg.internalFormat),
			int32(lw), int32(lh), 0, cfg.format, cfg.pixelType, nil)
	}

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, cfg.minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, cfg.magFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

func (glDevice) NewFramebuffer(colors []uint32, depth uint32) (uint32, bool) {
	var fbo uint32
	gl.GenFramebuffers(1, &fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)

	drawBuffers := make([]uint32, 0, len(colors))
	for i, tex := range colors {
		attachment := uint32(gl.COLOR_ATTACHMENT0 + i)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, attachment, gl.TEXTURE_2D, tex, 0)
		drawBuffers = append(drawBuffers, attachment)
	}

	if depth != 0 {
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, depth, 0)
	}

	if len(drawBuffers) > 0 {
		gl.DrawBuffers(int32(len(drawBuffers)), &drawBuffers[0])
	} else {
		gl.DrawBuffer(gl.NONE)
		gl.ReadBuffer(gl.NONE)
	}

	complete := gl.CheckFramebufferStatus(gl.FRAMEBUFFER) == gl.FRAMEBUFFER_COMPLETE
	return fbo, complete
}

func (glDevice) BindFramebuffer(id uint32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, id)
}

func (glDevice) Viewport(w, h int) {
	gl.Viewport(0, 0, int32(w), int32(h))
}

func (glDevice) ClearBuffers(color, depth bool) {
	var bits uint32
	if color {
		bits |= gl.COLOR_BUFFER_BIT
		gl.ColorMask(true, true, true, true)
		gl.ClearColor(0, 0, 0, 1)
	}
	if depth {
		bits |= gl.DEPTH_BUFFER_BIT
		gl.DepthMask(true)
		gl.ClearDepth(1)
	}
	gl.Clear(bits)
}

func (glDevice) AttachColorMip(slot int, tex uint32, level int) {
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, uint32(gl.COLOR_ATTACHMENT0+slot),
		gl.TEXTURE_2D, tex, int32(level))
}

func (glDevice) SetMipRange(tex uint32, base, max int) {
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_BASE_LEVEL, int32(base))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, int32(max))
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

func (glDevice) GenerateMipmaps(tex uint32, cube bool) {
	target := uint32(gl.TEXTURE_2D)
	if cube {
		target = gl.TEXTURE_CUBE_MAP
	}
	gl.BindTexture(target, tex)
	gl.GenerateMipmap(target)
	gl.BindTexture(target, 0)
}

func (glDevice) Blit(srcFBO, dstFBO uint32, srcW, srcH, dstX, dstY, dstW, dstH int, color, depth, linear bool) {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, srcFBO)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, dstFBO)

	if color {
		filter := uint32(gl.NEAREST)
		if linear {
			filter = gl.LINEAR
		}
		gl.BlitFramebuffer(0, 0, int32(srcW), int32(srcH),
			int32(dstX), int32(dstY), int32(dstX+dstW), int32(dstY+dstH),
			gl.COLOR_BUFFER_BIT, filter)
	}
	if depth {
		// Depth blits must use nearest filtering regardless of policy.
		gl.BlitFramebuffer(0, 0, int32(srcW), int32(srcH),
			int32(dstX), int32(dstY), int32(dstX+dstW), int32(dstY+dstH),
			gl.DEPTH_BUFFER_BIT, gl.NEAREST)
	}
}

// Shadow map side of the device, consumed by the light manager.

func (glDevice) NewShadowFramebuffer() uint32 {
	var fbo uint32
	gl.GenFramebuffers(1, &fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.DrawBuffer(gl.NONE)
	gl.ReadBuffer(gl.NONE)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return fbo
}

func shadowTexTarget(cube bool) uint32 {
	if cube {
		return gl.TEXTURE_CUBE_MAP_ARRAY
	}
	return gl.TEXTURE_2D_ARRAY
}

func (glDevice) AllocShadowArray(tex uint32, cube bool, size, layers int) {
	target := shadowTexTarget(cube)
	actualLayers := layers
	if cube {
		actualLayers *= 6
	}

	gl.BindTexture(target, tex)
	gl.TexImage3D(target, 0, gl.DEPTH_COMPONENT16, int32(size), int32(size),
		int32(actualLayers), 0, gl.DEPTH_COMPONENT, gl.UNSIGNED_SHORT, nil)

	gl.TexParameteri(target, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(target, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	if cube {
		gl.TexParameteri(target, gl.TEXTURE_WRAP_R, gl.CLAMP_TO_EDGE)
	}
	gl.BindTexture(target, 0)
}

func (glDevice) CopyShadowLayers(fbo, src, dst uint32, cube bool, size, layers int) {
	target := shadowTexTarget(cube)
	faces := 1
	if cube {
		faces = 6
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	for layer := 0; layer < layers*faces; layer++ {
		gl.FramebufferTextureLayer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, src, 0, int32(layer))
		gl.BindTexture(target, dst)
		gl.CopyTexSubImage3D(target, 0, 0, 0, int32(layer), 0, 0, int32(size), int32(size))
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

func (glDevice) BindShadowLayer(fbo, tex uint32, layerFace, size int) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.FramebufferTextureLayer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, tex, 0, int32(layerFace))
	gl.Viewport(0, 0, int32(size), int32(size))
}
