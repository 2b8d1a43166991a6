package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func unitBoxMesh() *Mesh {
	return &Mesh{
		AABB: AABB{Min: mgl32.Vec3{-0.5, -0.5, -0.5}, Max: mgl32.Vec3{0.5, 0.5, 0.5}},
	}
}

func groupAt(pos mgl32.Vec3) DrawGroup {
	return DrawGroup{
		Transform: mgl32.Translate3D(pos.X(), pos.Y(), pos.Z()),
		AABB:      AABB{Min: mgl32.Vec3{-0.5, -0.5, -0.5}, Max: mgl32.Vec3{0.5, 0.5, 0.5}},
	}
}

func TestDrawCallRouting(t *testing.T) {
	q := newDrawQueue()
	mesh := unitBoxMesh()

	q.pushGroup(groupAt(mgl32.Vec3{}))

	opaque := DefaultMaterial()
	q.pushMesh(mesh, opaque)

	prepass := DefaultMaterial()
	prepass.Transparency = TransparencyPrepass
	q.pushMesh(mesh, prepass)

	alpha := DefaultMaterial()
	alpha.Transparency = TransparencyAlpha
	q.pushMesh(mesh, alpha)

	additive := DefaultMaterial()
	additive.Blend = BlendAdditive
	q.pushMesh(mesh, additive)

	q.pushDecal(&Decal{})

	wantLens := map[drawListID]int{
		drawListDeferred: 1,
		drawListPrepass:  1,
		drawListForward:  2, // alpha transparency and non-mix blend both go forward
		drawListDecal:    1,
	}
	for list, want := range wantLens {
		if got := len(q.lists[list]); got != want {
			t.Errorf("list %d has %d calls, want %d", list, got, want)
		}
	}

	// Instanced groups route into the parallel instanced lists.
	inst := groupAt(mgl32.Vec3{})
	inst.Instances = &InstanceBuffer{Flags: InstancePosition}
	inst.InstanceCount = 16
	q.pushGroup(inst)
	q.pushMesh(mesh, opaque)

	if got := len(q.lists[instancedList(drawListDeferred)]); got != 1 {
		t.Errorf("instanced deferred list has %d calls, want 1", got)
	}
	if got := len(q.lists[drawListDeferred]); got != 1 {
		t.Errorf("non-instanced deferred list grew to %d", got)
	}
}

func TestLayerMaskRejection(t *testing.T) {
	q := newDrawQueue()
	q.activeLayers = 0b0011

	q.pushGroup(groupAt(mgl32.Vec3{}))

	onLayer := unitBoxMesh()
	onLayer.LayerMask = 0b0010
	q.pushMesh(onLayer, DefaultMaterial())

	offLayer := unitBoxMesh()
	offLayer.LayerMask = 0b0100
	q.pushMesh(offLayer, DefaultMaterial())

	// Zero mask means all layers.
	anyLayer := unitBoxMesh()
	q.pushMesh(anyLayer, DefaultMaterial())

	if len(q.calls) != 2 {
		t.Fatalf("expected 2 accepted calls, got %d", len(q.calls))
	}
}

func TestCullingVisibility(t *testing.T) {
	q := newDrawQueue()
	frustum := NewFrustum(testViewProj()) // camera at z=10 looking at origin
	mesh := unitBoxMesh()
	mat := DefaultMaterial()

	q.pushGroup(groupAt(mgl32.Vec3{0, 0, 0}))
	q.pushMesh(mesh, mat)

	q.pushGroup(groupAt(mgl32.Vec3{0, 0, 200})) // far behind the camera
	q.pushMesh(mesh, mat)

	// Shadow-cast-only geometry never reaches camera passes.
	shadowOnly := mat
	shadowOnly.ShadowCast = ShadowCastOnlyAuto
	q.pushGroup(groupAt(mgl32.Vec3{0, 0, 0}))
	q.pushMesh(mesh, shadowOnly)

	q.computeVisibleGroups(&frustum)
	visible := q.visibleCalls(drawListDeferred, &frustum, true, nil)

	if len(visible) != 1 || visible[0] != 0 {
		t.Fatalf("camera pass visible = %v, want [0]", visible)
	}

	// The same shadow-only call participates in shadow passes.
	shadowVisible := q.visibleCalls(drawListDeferred, &frustum, false, nil)
	if len(shadowVisible) != 2 {
		t.Fatalf("shadow pass visible = %v, want two calls", shadowVisible)
	}
}

func TestClusterVisibility(t *testing.T) {
	q := newDrawQueue()
	frustum := NewFrustum(testViewProj())
	mesh := unitBoxMesh()
	mat := DefaultMaterial()

	// A cluster entirely outside the view hides all of its groups, even
	// those whose own bounds would pass.
	if !q.beginCluster(AABB{Min: mgl32.Vec3{500, 500, 500}, Max: mgl32.Vec3{600, 600, 600}}) {
		t.Fatal("cluster begin failed")
	}
	// Nested clusters are rejected.
	if q.beginCluster(AABB{}) {
		t.Fatal("nested cluster must be rejected")
	}
	q.pushGroup(groupAt(mgl32.Vec3{0, 0, 0}))
	q.pushMesh(mesh, mat)
	if !q.endCluster() {
		t.Fatal("cluster end failed")
	}
	if q.endCluster() {
		t.Fatal("double cluster end must fail")
	}

	// A group outside any cluster is tested on its own.
	q.pushGroup(groupAt(mgl32.Vec3{0, 0, 0}))
	q.pushMesh(mesh, mat)

	q.computeVisibleGroups(&frustum)
	visible := q.visibleCalls(drawListDeferred, &frustum, true, nil)
	if len(visible) != 1 || visible[0] != 1 {
		t.Fatalf("visible = %v, want [1]", visible)
	}
}

func TestInstancedGroupsUseCoarseBoundsOnly(t *testing.T) {
	q := newDrawQueue()
	frustum := NewFrustum(testViewProj())
	mat := DefaultMaterial()

	// The mesh's own box sits far outside the view, but the group's combined
	// instance bounds intersect it, so the call must survive.
	farMesh := &Mesh{AABB: AABB{Min: mgl32.Vec3{900, 900, 900}, Max: mgl32.Vec3{901, 901, 901}}}

	g := DrawGroup{
		Transform:     mgl32.Ident4(),
		AABB:          AABB{Min: mgl32.Vec3{-10, -10, -10}, Max: mgl32.Vec3{10, 10, 10}},
		Instances:     &InstanceBuffer{Flags: InstancePosition},
		InstanceCount: 4,
	}
	q.pushGroup(g)
	q.pushMesh(farMesh, mat)
	q.pushMesh(farMesh, mat) // second call so per-call tests would apply

	q.computeVisibleGroups(&frustum)
	visible := q.visibleCalls(instancedList(drawListDeferred), &frustum, true, nil)
	if len(visible) != 2 {
		t.Fatalf("instanced calls culled by per-mesh bounds: %v", visible)
	}
}

func TestZeroAABBNeverCulled(t *testing.T) {
	q := newDrawQueue()
	frustum := NewFrustum(testViewProj())

	g := DrawGroup{Transform: mgl32.Translate3D(0, 0, 500)} // zero AABB
	q.pushGroup(g)
	q.pushMesh(&Mesh{}, DefaultMaterial()) // zero mesh AABB too

	q.computeVisibleGroups(&frustum)
	visible := q.visibleCalls(drawListDeferred, &frustum, true, nil)
	if len(visible) != 1 {
		t.Fatal("zero AABB must be treated as always visible")
	}
}

func TestDegenerateBoundsAtCameraNotCulled(t *testing.T) {
	q := newDrawQueue()
	frustum := NewFrustum(testViewProj()) // camera at z=10 looking at origin

	// A point-sized box on the camera eye sits behind the near plane and
	// would fail the plane test; zero bounds skip culling instead.
	q.pushGroup(DrawGroup{Transform: mgl32.Translate3D(0, 0, 10)})
	q.pushMesh(&Mesh{}, DefaultMaterial())

	q.computeVisibleGroups(&frustum)
	visible := q.visibleCalls(drawListDeferred, &frustum, true, nil)
	if len(visible) != 1 {
		t.Fatal("degenerate bounds at the camera eye must stay visible")
	}
}

func TestSpriteSubmission(t *testing.T) {
	q := newDrawQueue()
	frustum := NewFrustum(testViewProj())

	q.pushGroup(DrawGroup{Transform: mgl32.Ident4(), AABB: quadAABB})
	q.pushQuad(DefaultMaterial())

	alpha := DefaultMaterial()
	alpha.Transparency = TransparencyAlpha
	q.pushGroup(DrawGroup{Transform: mgl32.Ident4(), AABB: quadAABB})
	q.pushQuad(alpha)

	// Far behind the camera: culled like any other geometry.
	q.pushGroup(DrawGroup{Transform: mgl32.Translate3D(0, 0, 200), AABB: quadAABB})
	q.pushQuad(DefaultMaterial())

	if got := len(q.lists[drawListDeferred]); got != 2 {
		t.Errorf("deferred list has %d calls, want 2", got)
	}
	if got := len(q.lists[drawListForward]); got != 1 {
		t.Errorf("forward list has %d calls, want 1", got)
	}

	call := &q.calls[0]
	if call.aabb() != quadAABB {
		t.Errorf("quad call bounds = %+v, want %+v", call.aabb(), quadAABB)
	}
	if !call.castsShadows() {
		t.Error("sprite with default material must cast shadows")
	}

	q.computeVisibleGroups(&frustum)
	visible := q.visibleCalls(drawListDeferred, &frustum, true, nil)
	if len(visible) != 1 || visible[0] != 0 {
		t.Fatalf("deferred visible = %v, want only the on-screen sprite", visible)
	}
}

func TestSortFrontToBack(t *testing.T) {
	q := newDrawQueue()
	mesh := unitBoxMesh()
	viewPos := mgl32.Vec3{0, 0, 10}

	matA := DefaultMaterial()
	matA.Albedo.Texture = 1
	matB := DefaultMaterial()
	matB.Albedo.Texture = 2

	// Interleave materials and distances.
	type sub struct {
		z   float32
		mat Material
	}
	subs := []sub{{0, matB}, {-20, matA}, {5, matB}, {-5, matA}}
	for _, s := range subs {
		q.pushGroup(groupAt(mgl32.Vec3{0, 0, s.z}))
		q.pushMesh(mesh, s.mat)
	}

	q.sortList(drawListDeferred, viewPos, SortFrontToBack)

	// Expect material-major order, nearest first within each material:
	// matA at z=-5 then z=-20, then matB at z=5 then z=0.
	want := []int{3, 1, 2, 0}
	got := q.lists[drawListDeferred]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("front-to-back order = %v, want %v", got, want)
		}
	}
}

func TestSortBackToFront(t *testing.T) {
	q := newDrawQueue()
	mesh := unitBoxMesh()
	viewPos := mgl32.Vec3{0, 0, 10}

	alpha := DefaultMaterial()
	alpha.Transparency = TransparencyAlpha

	for _, z := range []float32{5, -30, 0} {
		q.pushGroup(groupAt(mgl32.Vec3{0, 0, z}))
		q.pushMesh(mesh, alpha)
	}

	q.sortList(drawListForward, viewPos, SortBackToFront)

	want := []int{1, 2, 0} // farthest corner first
	got := q.lists[drawListForward]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("back-to-front order = %v, want %v", got, want)
		}
	}
}

func TestDrawQueueClear(t *testing.T) {
	q := newDrawQueue()
	q.beginCluster(AABB{})
	q.pushGroup(groupAt(mgl32.Vec3{}))
	q.pushMesh(unitBoxMesh(), DefaultMaterial())
	q.pushDecal(&Decal{})
	q.endCluster()

	q.clear()

	if len(q.calls) != 0 || len(q.groups) != 0 || len(q.clusters) != 0 {
		t.Fatal("clear left submissions behind")
	}
	for i := range q.lists {
		if len(q.lists[i]) != 0 {
			t.Fatalf("list %d not cleared", i)
		}
	}
}
