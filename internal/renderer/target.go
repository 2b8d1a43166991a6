package renderer

import (
	"math"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Bigfoot71/r3d-sub000/internal/logger"
)

// TargetID identifies a logical render target owned by the cache.
type TargetID int

const (
	TargetInvalid TargetID = iota - 1
	TargetAlbedo
	TargetNormal
	TargetORM
	TargetDiffuse
	TargetSpecular
	TargetSSAO0
	TargetSSAO1
	TargetSSIL0
	TargetSSIL1
	TargetSSILMip
	TargetSSR
	TargetBloom
	TargetScene0
	TargetScene1
	TargetDepth
	targetCount
)

const (
	maxFramebuffers = 32
	maxAttachments  = 8
)

type targetConfig struct {
	internalFormat uint32
	format         uint32
	pixelType      uint32
	scale          float32
	minFilter      int32
	magFilter      int32
	mipmaps        bool
}

// One entry per TargetID. G-buffer targets stay at a single level while the
// post-processing chains (SSIL, SSR, bloom) carry a full mip pyramid.
var targetConfigs = [targetCount]targetConfig{
	TargetAlbedo:   {gl.RGB8, gl.RGB, gl.UNSIGNED_BYTE, 1.0, gl.NEAREST, gl.NEAREST, false},
	TargetNormal:   {gl.RG16F, gl.RG, gl.HALF_FLOAT, 1.0, gl.NEAREST, gl.NEAREST, false},
	TargetORM:      {gl.RGB8, gl.RGB, gl.UNSIGNED_BYTE, 1.0, gl.NEAREST, gl.NEAREST, false},
	TargetDiffuse:  {gl.RGB16F, gl.RGB, gl.HALF_FLOAT, 1.0, gl.NEAREST, gl.NEAREST, false},
	TargetSpecular: {gl.RGB16F, gl.RGB, gl.HALF_FLOAT, 1.0, gl.NEAREST, gl.NEAREST, false},
	TargetSSAO0:    {gl.R8, gl.RED, gl.UNSIGNED_BYTE, 0.5, gl.LINEAR, gl.LINEAR, false},
	TargetSSAO1:    {gl.R8, gl.RED, gl.UNSIGNED_BYTE, 0.5, gl.LINEAR, gl.LINEAR, false},
	TargetSSIL0:    {gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT, 0.5, gl.LINEAR, gl.LINEAR, false},
	TargetSSIL1:    {gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT, 0.5, gl.LINEAR, gl.LINEAR, false},
	TargetSSILMip:  {gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT, 0.5, gl.LINEAR_MIPMAP_LINEAR, gl.LINEAR, true},
	TargetSSR:      {gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT, 0.5, gl.LINEAR_MIPMAP_LINEAR, gl.LINEAR, true},
	TargetBloom:    {gl.RGB16F, gl.RGB, gl.HALF_FLOAT, 0.5, gl.LINEAR_MIPMAP_LINEAR, gl.LINEAR, true},
	TargetScene0:   {gl.RGB16F, gl.RGB, gl.HALF_FLOAT, 1.0, gl.LINEAR, gl.LINEAR, false},
	TargetScene1:   {gl.RGB16F, gl.RGB, gl.HALF_FLOAT, 1.0, gl.LINEAR, gl.LINEAR, false},
	TargetDepth:    {gl.DEPTH_COMPONENT24, gl.DEPTH_COMPONENT, gl.UNSIGNED_INT, 1.0, gl.NEAREST, gl.NEAREST, false},
}

// targetDevice is the slice of the GPU the target cache needs. The real
// implementation lives in gl_device.go; tests substitute a fake.
type targetDevice interface {
	NewTexture() uint32
	AllocTarget(tex uint32, cfg targetConfig, w, h, mips int)
	NewFramebuffer(colors []uint32, depth uint32) (id uint32, complete bool)
	BindFramebuffer(id uint32)
	Viewport(w, h int)
	ClearBuffers(color, depth bool)
	AttachColorMip(slot int, tex uint32, level int)
	SetMipRange(tex uint32, base, max int)
	GenerateMipmaps(tex uint32, cube bool)
	Blit(srcFBO, dstFBO uint32, srcW, srcH, dstX, dstY, dstW, dstH int, color, depth, linear bool)
}

type fboEntry struct {
	id       uint32
	targets  [maxAttachments]TargetID
	count    int
	hasDepth bool
	// Last mip level attached per color slot, to skip redundant reattaches.
	attachedMip [maxAttachments]int
}

// TargetCache owns every logical render target and the framebuffer objects
// binding them together. Targets allocate lazily on first bind and persist
// until resize.
type TargetCache struct {
	dev targetDevice

	resW, resH int

	textures [targetCount]uint32
	loaded   [targetCount]bool
	mipBase  [targetCount]int
	mipMax   [targetCount]int

	fbos       []fboEntry
	currentFBO int
}

// NewTargetCache creates the cache for the given internal resolution. No GPU
// memory is committed until a target is first bound.
func NewTargetCache(w, h int) *TargetCache {
	return newTargetCache(glDevice{}, w, h)
}

func newTargetCache(dev targetDevice, w, h int) *TargetCache {
	c := &TargetCache{
		dev:        dev,
		resW:       w,
		resH:       h,
		currentFBO: -1,
	}
	for i := range c.mipMax {
		c.mipBase[i] = 0
		c.mipMax[i] = -1 // unset, configured on first SetMipRange
	}
	return c
}

// Resolution returns the pixel size of a target at the given mip level.
func (c *TargetCache) Resolution(t TargetID, level int) (int, int) {
	cfg := &targetConfigs[t]
	w := int(float32(c.resW) * cfg.scale)
	h := int(float32(c.resH) * cfg.scale)
	if level > 0 {
		w >>= level
		h >>= level
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
	}
	return w, h
}

// TexelSize returns the size of one texel in UV space at the given level.
func (c *TargetCache) TexelSize(t TargetID, level int) mgl32.Vec2 {
	w, h := c.Resolution(t, level)
	return mgl32.Vec2{1.0 / float32(w), 1.0 / float32(h)}
}

// MipCount returns 1 for single-level targets, or the full chain depth
// derived from the scaled resolution for mip-chained targets.
func (c *TargetCache) MipCount(t TargetID) int {
	cfg := &targetConfigs[t]
	if !cfg.mipmaps {
		return 1
	}
	w, h := c.Resolution(t, 0)
	maxDim := w
	if h > maxDim {
		maxDim = h
	}
	return 1 + int(math.Floor(math.Log2(float64(maxDim))))
}

// Texture returns the GL texture backing a target, allocating it if needed.
func (c *TargetCache) Texture(t TargetID) uint32 {
	if !c.loaded[t] {
		c.loadTarget(t)
	}
	return c.textures[t]
}

// Loaded reports whether a target has been allocated.
func (c *TargetCache) Loaded(t TargetID) bool {
	return c.loaded[t]
}

func (c *TargetCache) loadTarget(t TargetID) {
	if c.textures[t] == 0 {
		c.textures[t] = c.dev.NewTexture()
	}
	w, h := c.Resolution(t, 0)
	c.dev.AllocTarget(c.textures[t], targetConfigs[t], w, h, c.MipCount(t))
	c.loaded[t] = true
	c.mipBase[t] = 0
	c.mipMax[t] = -1
}

// getOrCreateFBO returns the cache index of the framebuffer matching the
// exact ordered target combination, creating it on first use. The depth
// target, when present, must come last.
func (c *TargetCache) getOrCreateFBO(targets []TargetID) int {
	debugAssert(len(targets) > 0 && len(targets) <= maxAttachments, "target list out of range")

	hasDepth := targets[len(targets)-1] == TargetDepth

	for i := range c.fbos {
		f := &c.fbos[i]
		if f.count != len(targets) || f.hasDepth != hasDepth {
			continue
		}
		match := true
		for j, t := range targets {
			if f.targets[j] != t {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}

	debugAssert(len(c.fbos) < maxFramebuffers, "framebuffer cache exhausted")

	var entry fboEntry
	entry.count = len(targets)
	entry.hasDepth = hasDepth

	var colors []uint32
	var depth uint32
	for i, t := range targets {
		entry.targets[i] = t
		if t == TargetDepth {
			debugAssert(i == len(targets)-1, "depth target must be last")
			depth = c.Texture(t)
		} else {
			colors = append(colors, c.Texture(t))
		}
	}

	id, complete := c.dev.NewFramebuffer(colors, depth)
	if !complete {
		logger.Log.Error("Framebuffer incomplete", zap.Int("attachments", len(targets)))
	}
	entry.id = id

	c.fbos = append(c.fbos, entry)
	return len(c.fbos) - 1
}

// Bind makes the framebuffer for the target combination current, creating
// targets and the framebuffer lazily, and sets the viewport from the first
// target at the requested mip level.
func (c *TargetCache) Bind(targets ...TargetID) {
	c.BindMip(0, targets...)
}

// BindMip is Bind with every mip-chained color attachment pointed at the
// given write level.
func (c *TargetCache) BindMip(level int, targets ...TargetID) {
	idx := c.getOrCreateFBO(targets)
	if idx != c.currentFBO {
		c.dev.BindFramebuffer(c.fbos[idx].id)
		c.currentFBO = idx
	}

	f := &c.fbos[idx]
	slot := 0
	for _, t := range targets {
		if t == TargetDepth {
			continue
		}
		if targetConfigs[t].mipmaps && f.attachedMip[slot] != level {
			c.dev.AttachColorMip(slot, c.textures[t], level)
			f.attachedMip[slot] = level
		}
		slot++
	}

	w, h := c.Resolution(targets[0], level)
	c.dev.Viewport(w, h)
}

// Clear binds the combination and clears its color and/or depth planes.
func (c *TargetCache) Clear(targets ...TargetID) {
	c.Bind(targets...)

	hasDepth, hasColor := false, false
	for _, t := range targets {
		if t == TargetDepth {
			hasDepth = true
		} else {
			hasColor = true
		}
	}
	c.dev.ClearBuffers(hasColor, hasDepth)
}

// SetMipRange narrows the sampled mip interval of a target, skipping the GL
// call when the range is unchanged.
func (c *TargetCache) SetMipRange(t TargetID, base, max int) {
	if c.mipBase[t] == base && c.mipMax[t] == max {
		return
	}
	c.dev.SetMipRange(c.Texture(t), base, max)
	c.mipBase[t] = base
	c.mipMax[t] = max
}

// GenerateMipmaps regenerates the full chain of a mip-chained target.
func (c *TargetCache) GenerateMipmaps(t TargetID) {
	debugAssert(targetConfigs[t].mipmaps, "target has no mip chain")
	c.dev.GenerateMipmaps(c.Texture(t), false)
}

// Resize reallocates every already-loaded target for the new resolution.
// Calling it with the current size is a no-op.
func (c *TargetCache) Resize(w, h int) {
	debugAssert(w > 0 && h > 0, "invalid resolution")
	if c.resW == w && c.resH == h {
		return
	}
	c.resW = w
	c.resH = h

	for t := TargetID(0); t < targetCount; t++ {
		if c.loaded[t] {
			c.loadTarget(t)
		}
	}
}

// Blit copies the combination's color (and depth, when the list ends with
// the depth target) into an external framebuffer rectangle.
func (c *TargetCache) Blit(targets []TargetID, dstFBO uint32, dstX, dstY, dstW, dstH int, linear bool) {
	hasDepth := targets[len(targets)-1] == TargetDepth
	hasColor := !(len(targets) == 1 && hasDepth)

	idx := c.getOrCreateFBO(targets)
	c.dev.Blit(c.fbos[idx].id, dstFBO, c.resW, c.resH, dstX, dstY, dstW, dstH, hasColor, hasDepth, linear)
	c.currentFBO = -1
}

// Reset forgets the cached current framebuffer, forcing the next Bind to hit
// the GPU. Call after external code rebinds framebuffers behind our back.
func (c *TargetCache) Reset() {
	c.currentFBO = -1
}

// SwapScene returns the other half of the scene ping-pong pair.
func SwapScene(t TargetID) TargetID {
	if t == TargetScene0 {
		return TargetScene1
	}
	return TargetScene0
}

// SwapSSAO returns the other half of the SSAO ping-pong pair.
func SwapSSAO(t TargetID) TargetID {
	if t == TargetSSAO0 {
		return TargetSSAO1
	}
	return TargetSSAO0
}

// SwapSSIL returns the other half of the SSIL ping-pong pair.
func SwapSSIL(t TargetID) TargetID {
	if t == TargetSSIL0 {
		return TargetSSIL1
	}
	return TargetSSIL0
}
