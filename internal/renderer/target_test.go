package renderer

import (
	"testing"
)

// fakeTargetDevice records calls so cache behavior can be verified without a
// GL context.
type fakeTargetDevice struct {
	nextTex     uint32
	nextFBO     uint32
	allocs      map[uint32]int // tex -> alloc count
	fbosCreated int
	binds       []uint32
	attaches    []int // levels passed to AttachColorMip
	mipRanges   int
	blits       int
}

func newFakeTargetDevice() *fakeTargetDevice {
	return &fakeTargetDevice{allocs: make(map[uint32]int)}
}

func (d *fakeTargetDevice) NewTexture() uint32 {
	d.nextTex++
	return d.nextTex
}

func (d *fakeTargetDevice) AllocTarget(tex uint32, cfg targetConfig, w, h, mips int) {
	d.allocs[tex]++
}

func (d *fakeTargetDevice) NewFramebuffer(colors []uint32, depth uint32) (uint32, bool) {
	d.nextFBO++
	d.fbosCreated++
	return d.nextFBO, true
}

func (d *fakeTargetDevice) BindFramebuffer(id uint32) { d.binds = append(d.binds, id) }
func (d *fakeTargetDevice) Viewport(w, h int)         {}
func (d *fakeTargetDevice) ClearBuffers(color, depth bool) {}

func (d *fakeTargetDevice) AttachColorMip(slot int, tex uint32, level int) {
	d.attaches = append(d.attaches, level)
}

func (d *fakeTargetDevice) SetMipRange(tex uint32, base, max int) { d.mipRanges++ }
func (d *fakeTargetDevice) GenerateMipmaps(tex uint32, cube bool) {}

func (d *fakeTargetDevice) Blit(srcFBO, dstFBO uint32, srcW, srcH, dstX, dstY, dstW, dstH int, color, depth, linear bool) {
	d.blits++
}

func TestTargetLazyAllocation(t *testing.T) {
	dev := newFakeTargetDevice()
	c := newTargetCache(dev, 1280, 720)

	if len(dev.allocs) != 0 {
		t.Fatalf("expected no allocations before first use, got %d", len(dev.allocs))
	}

	tex := c.Texture(TargetAlbedo)
	if tex == 0 {
		t.Fatal("expected nonzero texture id")
	}
	if dev.allocs[tex] != 1 {
		t.Fatalf("expected 1 allocation, got %d", dev.allocs[tex])
	}

	// Repeated access must not reallocate.
	c.Texture(TargetAlbedo)
	if dev.allocs[tex] != 1 {
		t.Fatalf("expected allocation count to stay 1, got %d", dev.allocs[tex])
	}
}

func TestFramebufferCacheReuse(t *testing.T) {
	dev := newFakeTargetDevice()
	c := newTargetCache(dev, 1280, 720)

	combo := []TargetID{TargetAlbedo, TargetNormal, TargetORM, TargetDepth}
	c.Bind(combo...)
	c.Bind(TargetScene0)
	c.Bind(combo...)
	c.Bind(combo...)

	if dev.fbosCreated != 2 {
		t.Fatalf("expected 2 framebuffers, got %d", dev.fbosCreated)
	}

	// Different order is a different combination.
	c.Bind(TargetNormal, TargetAlbedo, TargetORM, TargetDepth)
	if dev.fbosCreated != 3 {
		t.Fatalf("expected 3 framebuffers after reordered combo, got %d", dev.fbosCreated)
	}
}

func TestBindSkipsRedundantFramebufferBind(t *testing.T) {
	dev := newFakeTargetDevice()
	c := newTargetCache(dev, 1280, 720)

	c.Bind(TargetScene0)
	c.Bind(TargetScene0)
	c.Bind(TargetScene0)
	if len(dev.binds) != 1 {
		t.Fatalf("expected 1 bind, got %d", len(dev.binds))
	}

	c.Reset()
	c.Bind(TargetScene0)
	if len(dev.binds) != 2 {
		t.Fatalf("expected rebind after Reset, got %d binds", len(dev.binds))
	}
}

func TestBindMipReattachesOnlyOnLevelChange(t *testing.T) {
	dev := newFakeTargetDevice()
	c := newTargetCache(dev, 1280, 720)

	c.BindMip(0, TargetBloom)
	c.BindMip(0, TargetBloom)
	base := len(dev.attaches)

	c.BindMip(1, TargetBloom)
	if len(dev.attaches) != base+1 {
		t.Fatalf("expected one reattach on level change, got %d", len(dev.attaches)-base)
	}
	c.BindMip(1, TargetBloom)
	if len(dev.attaches) != base+1 {
		t.Fatalf("expected no reattach on same level, got %d", len(dev.attaches)-base)
	}
}

func TestResizeNoOpAndReload(t *testing.T) {
	dev := newFakeTargetDevice()
	c := newTargetCache(dev, 1280, 720)

	albedo := c.Texture(TargetAlbedo)

	c.Resize(1280, 720)
	if dev.allocs[albedo] != 1 {
		t.Fatalf("same-size resize must be a no-op, got %d allocations", dev.allocs[albedo])
	}

	c.Resize(1920, 1080)
	if dev.allocs[albedo] != 2 {
		t.Fatalf("expected reload of loaded target after resize, got %d allocations", dev.allocs[albedo])
	}
	// Never-loaded targets stay untouched.
	if c.Loaded(TargetSSR) {
		t.Fatal("resize must not load untouched targets")
	}
}

func TestMipCount(t *testing.T) {
	dev := newFakeTargetDevice()
	c := newTargetCache(dev, 1280, 720)

	if got := c.MipCount(TargetAlbedo); got != 1 {
		t.Fatalf("single-level target mip count = %d, want 1", got)
	}
	// Bloom runs at half resolution: 640x360, chain depth 1+floor(log2(640)) = 10.
	if got := c.MipCount(TargetBloom); got != 10 {
		t.Fatalf("bloom mip count = %d, want 10", got)
	}
}

func TestHalfResolutionTargets(t *testing.T) {
	dev := newFakeTargetDevice()
	c := newTargetCache(dev, 1280, 720)

	w, h := c.Resolution(TargetSSAO0, 0)
	if w != 640 || h != 360 {
		t.Fatalf("SSAO resolution = %dx%d, want 640x360", w, h)
	}
	w, h = c.Resolution(TargetBloom, 2)
	if w != 160 || h != 90 {
		t.Fatalf("bloom level 2 resolution = %dx%d, want 160x90", w, h)
	}
}

func TestSetMipRangeCached(t *testing.T) {
	dev := newFakeTargetDevice()
	c := newTargetCache(dev, 1280, 720)

	c.SetMipRange(TargetBloom, 0, 4)
	c.SetMipRange(TargetBloom, 0, 4)
	if dev.mipRanges != 1 {
		t.Fatalf("expected 1 mip range call, got %d", dev.mipRanges)
	}
	c.SetMipRange(TargetBloom, 1, 4)
	if dev.mipRanges != 2 {
		t.Fatalf("expected 2 mip range calls, got %d", dev.mipRanges)
	}
}

func TestSwapHelpers(t *testing.T) {
	if SwapScene(TargetScene0) != TargetScene1 || SwapScene(TargetScene1) != TargetScene0 {
		t.Fatal("scene swap broken")
	}
	if SwapSSAO(TargetSSAO0) != TargetSSAO1 || SwapSSAO(TargetSSAO1) != TargetSSAO0 {
		t.Fatal("ssao swap broken")
	}
	if SwapSSIL(TargetSSIL0) != TargetSSIL1 || SwapSSIL(TargetSSIL1) != TargetSSIL0 {
		t.Fatal("ssil swap broken")
	}
}
