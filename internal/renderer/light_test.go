package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

type shadowAlloc struct {
	tex    uint32
	cube   bool
	layers int
}

type shadowCopy struct {
	src, dst uint32
	layers   int
}

// fakeLightDevice records shadow array management calls.
type fakeLightDevice struct {
	nextTex uint32
	allocs  []shadowAlloc
	copies  []shadowCopy
	deleted []uint32
	binds   []int // layerFace values
}

func (d *fakeLightDevice) NewTexture() uint32 {
	d.nextTex++
	return d.nextTex
}

func (d *fakeLightDevice) DeleteTexture(id uint32) { d.deleted = append(d.deleted, id) }
func (d *fakeLightDevice) NewShadowFramebuffer() uint32 { return 1000 }

func (d *fakeLightDevice) AllocShadowArray(tex uint32, cube bool, size, layers int) {
	d.allocs = append(d.allocs, shadowAlloc{tex, cube, layers})
}

func (d *fakeLightDevice) CopyShadowLayers(fbo, src, dst uint32, cube bool, size, layers int) {
	d.copies = append(d.copies, shadowCopy{src, dst, layers})
}

func (d *fakeLightDevice) BindShadowLayer(fbo, tex uint32, layerFace, size int) {
	d.binds = append(d.binds, layerFace)
}

func newTestLightManager() (*LightManager, *fakeLightDevice) {
	dev := &fakeLightDevice{}
	return newLightManager(dev), dev
}

func TestLightHandleLifecycle(t *testing.T) {
	m, _ := newTestLightManager()

	a := m.Create(LightOmni)
	b := m.Create(LightSpot)
	c := m.Create(LightDir)

	if !m.IsValid(a) || !m.IsValid(b) || !m.IsValid(c) {
		t.Fatal("freshly created lights must be valid")
	}
	if m.Count() != 3 {
		t.Fatalf("count = %d, want 3", m.Count())
	}

	m.Delete(b)
	if m.IsValid(b) {
		t.Fatal("deleted light must be invalid")
	}
	if m.Count() != 2 {
		t.Fatalf("count after delete = %d, want 2", m.Count())
	}

	// Deleting twice is a no-op.
	m.Delete(b)
	if m.Count() != 2 {
		t.Fatalf("double delete changed count to %d", m.Count())
	}

	// The freed handle is recycled before a new slot is used.
	d := m.Create(LightOmni)
	if d != b {
		t.Fatalf("expected recycled handle %d, got %d", b, d)
	}
	if !m.IsValid(d) {
		t.Fatal("recycled handle must be valid")
	}

	// Recycled slots come back with defaults, not stale state.
	l, ok := m.Get(d)
	if !ok || l.Type != LightOmni || l.Enabled {
		t.Fatalf("recycled light not reinitialized: %+v", l)
	}
	if l.Energy != 1.0 || l.Range != 50.0 || l.Specular != 0.5 {
		t.Fatalf("unexpected defaults: energy=%v range=%v specular=%v", l.Energy, l.Range, l.Specular)
	}
}

func TestInvalidHandleOperations(t *testing.T) {
	m, _ := newTestLightManager()

	if m.IsValid(InvalidLight) || m.IsValid(42) {
		t.Fatal("bogus handles must be invalid")
	}
	if _, ok := m.Get(7); ok {
		t.Fatal("Get on bogus handle must fail")
	}

	// None of these may panic or mutate anything.
	m.Delete(7)
	m.SetEnabled(7, true)
	m.EnableShadows(7, 0)
	if m.Count() != 0 {
		t.Fatalf("count = %d, want 0", m.Count())
	}

	if bad := m.Create(LightType(99)); bad != InvalidLight {
		t.Fatalf("invalid type must not create a light, got %d", bad)
	}
}

func TestShadowPoolGrowthPreservesAssignments(t *testing.T) {
	m, dev := newTestLightManager()

	// Omni pools grow by a fixed increment; one extra light forces a second
	// growth with a copy of the existing layers.
	n := shadowOmniGrowth + 1
	ids := make([]LightID, n)
	for i := range ids {
		ids[i] = m.Create(LightOmni)
		m.EnableShadows(ids[i], 0)
	}

	if len(dev.allocs) != 2 {
		t.Fatalf("expected 2 array allocations, got %d", len(dev.allocs))
	}
	if dev.allocs[0].layers != shadowOmniGrowth || dev.allocs[1].layers != 2*shadowOmniGrowth {
		t.Fatalf("allocation sizes = %d, %d", dev.allocs[0].layers, dev.allocs[1].layers)
	}
	if !dev.allocs[0].cube {
		t.Fatal("omni arrays must be cube map arrays")
	}

	// The second growth must copy every previously reserved layer.
	if len(dev.copies) != 1 || dev.copies[0].layers != shadowOmniGrowth {
		t.Fatalf("expected one copy of %d layers, got %+v", shadowOmniGrowth, dev.copies)
	}

	// Layers stay distinct and stable across the growth.
	seen := map[int]LightID{}
	for _, id := range ids {
		l, _ := m.Get(id)
		if !l.Shadow || l.ShadowLayer() < 0 {
			t.Fatalf("light %d has no shadow layer", id)
		}
		if other, dup := seen[l.ShadowLayer()]; dup {
			t.Fatalf("layer %d assigned to lights %d and %d", l.ShadowLayer(), other, id)
		}
		seen[l.ShadowLayer()] = id
	}
}

func TestShadowLayerRecycling(t *testing.T) {
	m, dev := newTestLightManager()

	a := m.Create(LightSpot)
	m.EnableShadows(a, 0)
	la, _ := m.Get(a)

	m.DisableShadows(a)
	if got, _ := m.Get(a); got.Shadow || got.ShadowLayer() != -1 {
		t.Fatalf("disable left shadow state: %+v", got)
	}

	b := m.Create(LightSpot)
	m.EnableShadows(b, 0)
	lb, _ := m.Get(b)

	if lb.ShadowLayer() != la.ShadowLayer() {
		t.Fatalf("released layer %d not reused, got %d", la.ShadowLayer(), lb.ShadowLayer())
	}
	if len(dev.allocs) != 1 {
		t.Fatalf("recycling must not grow the array, got %d allocations", len(dev.allocs))
	}

	// Deleting a shadowed light releases its layer too.
	m.Delete(b)
	c := m.Create(LightSpot)
	m.EnableShadows(c, 0)
	lc, _ := m.Get(c)
	if lc.ShadowLayer() != lb.ShadowLayer() {
		t.Fatalf("layer not released on delete: want %d, got %d", lb.ShadowLayer(), lc.ShadowLayer())
	}
}

func TestDirShadowTexelSnapping(t *testing.T) {
	dir := mgl32.Vec3{0, 0, -1}
	const extent = 50.0

	// Positions inside the same texel cell must produce identical matrices.
	vp1, o1 := dirLightViewProj(dir, extent, mgl32.Vec3{-0.3, 0.5, 2}, shadowDirSize)
	vp2, o2 := dirLightViewProj(dir, extent, mgl32.Vec3{-0.31, 0.5, 2}, shadowDirSize)
	if vp1 != vp2 || o1 != o2 {
		t.Fatal("camera motion within one texel must not move the shadow projection")
	}

	// The snapped origin sits on the texel grid in light space.
	wupt := (2.0 * float32(extent)) / float32(shadowDirSize)
	up := mgl32.Vec3{0, 1, 0}
	right := up.Cross(dir).Normalize()
	lightUp := dir.Cross(right)

	for _, pos := range []mgl32.Vec3{{3.7, -1.2, 9.4}, {-128.6, 42.0, 0.001}, {0, 0, 0}} {
		_, origin := dirLightViewProj(dir, extent, pos, shadowDirSize)
		for axis, v := range []float32{origin.Dot(right), origin.Dot(lightUp)} {
			cells := v / wupt
			if diff := abs32(cells - floor32(cells+0.5)); diff > 1e-3 {
				t.Fatalf("pos %v axis %d: origin off the texel grid by %v cells", pos, axis, diff)
			}
		}
	}
}

func TestUpdateAndCull(t *testing.T) {
	m, _ := newTestLightManager()
	frustum := NewFrustum(testViewProj())
	viewPos := mgl32.Vec3{0, 0, 10}

	visible := m.Create(LightOmni)
	m.SetPosition(visible, mgl32.Vec3{0, 0, 0})
	m.SetRange(visible, 5)
	m.SetEnabled(visible, true)

	// Behind the camera, pointing away: its volume never enters the view.
	hidden := m.Create(LightSpot)
	m.SetPosition(hidden, mgl32.Vec3{0, 0, 30})
	m.SetDirection(hidden, mgl32.Vec3{0, 0, 1})
	m.SetRange(hidden, 10)
	m.SetEnabled(hidden, true)

	disabled := m.Create(LightOmni)
	m.SetPosition(disabled, mgl32.Vec3{0, 0, 0})
	m.SetEnabled(disabled, false)

	// Directional lights are never culled.
	sun := m.Create(LightDir)
	m.SetDirection(sun, mgl32.Vec3{0, -1, 0})
	m.SetEnabled(sun, true)

	m.UpdateAndCull(&frustum, viewPos, 0.016)

	got := map[LightID]bool{}
	for _, id := range m.Visible() {
		got[id] = true
	}
	if !got[visible] || !got[sun] {
		t.Fatalf("expected lights %d and %d visible, got %v", visible, sun, m.Visible())
	}
	if got[hidden] {
		t.Fatal("spot light behind the camera must be culled")
	}
	if got[disabled] {
		t.Fatal("disabled light must not appear in the visible set")
	}
}

func TestOffscreenShadowLightStillUpdates(t *testing.T) {
	m, _ := newTestLightManager()
	frustum := NewFrustum(testViewProj())
	viewPos := mgl32.Vec3{0, 0, 10}

	// Behind the camera, but its shadow can still fall on visible geometry.
	id := m.Create(LightSpot)
	m.SetPosition(id, mgl32.Vec3{0, 0, 30})
	m.SetDirection(id, mgl32.Vec3{0, 0, 1})
	m.SetRange(id, 10)
	m.SetEnabled(id, true)
	m.EnableShadows(id, 0)

	m.UpdateAndCull(&frustum, viewPos, 0.016)

	for _, v := range m.Visible() {
		if v == id {
			t.Fatal("off-screen spot light must be culled from lighting")
		}
	}
	found := false
	for _, v := range m.All() {
		if v == id {
			found = true
		}
	}
	if !found {
		t.Fatal("off-screen light must stay registered for the shadow pass")
	}
	if !m.ShadowShouldBeUpdated(id, true) {
		t.Fatal("off-screen shadow map must still be renderable")
	}
}

func TestShadowRefreshPolicies(t *testing.T) {
	m, _ := newTestLightManager()
	frustum := NewFrustum(testViewProj())
	viewPos := mgl32.Vec3{0, 0, 10}

	id := m.Create(LightOmni)
	m.SetPosition(id, mgl32.Vec3{0, 0, 0})
	m.SetEnabled(id, true)
	m.EnableShadows(id, 0)

	// Enabling shadows flags an initial render; consuming it clears the flag.
	if !m.ShadowShouldBeUpdated(id, true) {
		t.Fatal("fresh shadow must need an initial render")
	}
	if m.ShadowShouldBeUpdated(id, false) {
		t.Fatal("flag must be consumed after update")
	}

	// Interval mode re-arms once the accumulated time crosses the period.
	m.SetShadowUpdateInterval(id, 0.1)
	m.UpdateAndCull(&frustum, viewPos, 0.05)
	if m.ShadowShouldBeUpdated(id, false) {
		t.Fatal("interval not elapsed yet")
	}
	m.UpdateAndCull(&frustum, viewPos, 0.06)
	if !m.ShadowShouldBeUpdated(id, true) {
		t.Fatal("interval elapsed, shadow must refresh")
	}

	// Manual mode refreshes only on request.
	m.SetShadowUpdateMode(id, ShadowUpdateManual)
	m.UpdateAndCull(&frustum, viewPos, 10)
	if m.ShadowShouldBeUpdated(id, false) {
		t.Fatal("manual mode must not refresh on its own")
	}
	m.RequestShadowUpdate(id)
	if !m.ShadowShouldBeUpdated(id, true) {
		t.Fatal("requested update must be honored")
	}

	// Continuous mode stays dirty even after consuming.
	m.SetShadowUpdateMode(id, ShadowUpdateContinuous)
	m.UpdateAndCull(&frustum, viewPos, 0.001)
	if !m.ShadowShouldBeUpdated(id, true) {
		t.Fatal("continuous mode must refresh every frame")
	}
	m.UpdateAndCull(&frustum, viewPos, 0.001)
	if !m.ShadowShouldBeUpdated(id, true) {
		t.Fatal("continuous mode must stay dirty after consumption")
	}
}

func TestScreenRect(t *testing.T) {
	m, _ := newTestLightManager()
	vp := testViewProj()
	frustum := NewFrustum(vp)
	viewPos := mgl32.Vec3{0, 0, 10}
	const w, h = 1280, 720

	// Small light in front of the camera: a proper sub-rectangle.
	small := m.Create(LightOmni)
	m.SetPosition(small, mgl32.Vec3{0, 0, 0})
	m.SetRange(small, 1)
	m.SetEnabled(small, true)

	// Light volume straddling the camera plane: full viewport fallback.
	around := m.Create(LightOmni)
	m.SetPosition(around, mgl32.Vec3{0, 0, 10})
	m.SetRange(around, 5)
	m.SetEnabled(around, true)

	m.UpdateAndCull(&frustum, viewPos, 0.016)

	r := m.ScreenRect(small, vp, w, h)
	if r.W <= 0 || r.H <= 0 {
		t.Fatalf("visible light produced empty rect %+v", r)
	}
	if r.X == 0 && r.Y == 0 && r.W == w && r.H == h {
		t.Fatal("small distant light must not cover the full viewport")
	}
	// Centered light: the rect contains the screen center.
	if r.X > w/2 || r.X+r.W < w/2 || r.Y > h/2 || r.Y+r.H < h/2 {
		t.Fatalf("rect %+v does not contain the screen center", r)
	}

	full := m.ScreenRect(around, vp, w, h)
	if full != (Rect{0, 0, w, h}) {
		t.Fatalf("corner behind the projection plane must yield the full viewport, got %+v", full)
	}
}

func TestBindShadowLayerFaceStride(t *testing.T) {
	m, dev := newTestLightManager()

	id := m.Create(LightOmni)
	m.EnableShadows(id, 0)
	l, _ := m.Get(id)

	for face := 0; face < 6; face++ {
		m.BindShadowLayer(LightOmni, l.ShadowLayer(), face)
	}
	for i, lf := range dev.binds {
		if lf != l.ShadowLayer()*6+i {
			t.Fatalf("face %d bound to layer index %d, want %d", i, lf, l.ShadowLayer()*6+i)
		}
	}
}

func TestShadowResolutionLockedByFirstEnable(t *testing.T) {
	m, dev := newTestLightManager()

	a := m.Create(LightSpot)
	m.EnableShadows(a, 1024)
	if m.ShadowMapSize(LightSpot) != 1024 {
		t.Fatalf("spot size = %d, want 1024", m.ShadowMapSize(LightSpot))
	}
	la, _ := m.Get(a)
	if la.ShadowTexelSize != 1.0/1024 {
		t.Fatalf("texel size = %v, want %v", la.ShadowTexelSize, 1.0/1024.0)
	}

	// A later mismatched request reuses the established size.
	b := m.Create(LightSpot)
	m.EnableShadows(b, 4096)
	if m.ShadowMapSize(LightSpot) != 1024 {
		t.Fatalf("size changed to %d after second enable", m.ShadowMapSize(LightSpot))
	}
	if len(dev.allocs) != 1 {
		t.Fatalf("mismatched request must not reallocate, got %d allocations", len(dev.allocs))
	}

	// Other types keep their own defaults.
	if m.ShadowMapSize(LightDir) != shadowDirSize {
		t.Fatalf("dir size = %d, want %d", m.ShadowMapSize(LightDir), shadowDirSize)
	}
}

func TestShadowPoolLIFO(t *testing.T) {
	var p shadowPool
	if p.reserve() != -1 {
		t.Fatal("empty pool must report exhaustion")
	}
	p.expand(3)
	a, b, c := p.reserve(), p.reserve(), p.reserve()
	if a == b || b == c || a == c {
		t.Fatalf("duplicate layers: %d %d %d", a, b, c)
	}
	if p.reserve() != -1 {
		t.Fatal("exhausted pool must report exhaustion")
	}

	p.release(b)
	if got := p.reserve(); got != b {
		t.Fatalf("expected LIFO reuse of %d, got %d", b, got)
	}

	// Out-of-range releases are ignored.
	p.release(-1)
	p.release(99)
	if p.reserve() != -1 {
		t.Fatal("bogus release must not add layers")
	}
}
