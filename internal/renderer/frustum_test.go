package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testViewProj() mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100.0)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	return proj.Mul4(view)
}

func TestFrustumContainsAABB(t *testing.T) {
	f := NewFrustum(testViewProj())

	tests := []struct {
		name string
		box  AABB
		want bool
	}{
		{
			name: "box at origin inside",
			box:  AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}},
			want: true,
		},
		{
			name: "box fully behind camera",
			box:  AABB{Min: mgl32.Vec3{-1, -1, 100}, Max: mgl32.Vec3{1, 1, 102}},
			want: false,
		},
		{
			name: "box beyond far plane",
			box:  AABB{Min: mgl32.Vec3{-1, -1, -300}, Max: mgl32.Vec3{1, 1, -200}},
			want: false,
		},
		{
			name: "box straddling the near plane",
			box:  AABB{Min: mgl32.Vec3{-1, -1, 5}, Max: mgl32.Vec3{1, 1, 15}},
			want: true,
		},
		{
			name: "huge box enclosing the whole frustum",
			box:  AABB{Min: mgl32.Vec3{-1000, -1000, -1000}, Max: mgl32.Vec3{1000, 1000, 1000}},
			want: true,
		},
		{
			name: "zero volume box inside the view",
			box:  AABB{Min: mgl32.Vec3{0, 0, 5}, Max: mgl32.Vec3{0, 0, 5}},
			want: true,
		},
		{
			// Behind the near plane; submission-side degenerate bounds
			// bypass this test entirely.
			name: "point box at the camera eye",
			box:  AABB{Min: mgl32.Vec3{0, 0, 10}, Max: mgl32.Vec3{0, 0, 10}},
			want: false,
		},
		{
			name: "box far to the left",
			box:  AABB{Min: mgl32.Vec3{-500, -1, -1}, Max: mgl32.Vec3{-400, 1, 1}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.ContainsAABB(tt.box); got != tt.want {
				t.Errorf("ContainsAABB(%v) = %v, want %v", tt.box, got, tt.want)
			}
		})
	}
}

func TestFrustumContainsSphere(t *testing.T) {
	f := NewFrustum(testViewProj())

	if !f.ContainsSphere(mgl32.Vec3{0, 0, 0}, 1) {
		t.Error("sphere at origin should be visible")
	}
	if f.ContainsSphere(mgl32.Vec3{0, 0, 500}, 1) {
		t.Error("sphere behind camera should be culled")
	}
	// A sphere centered outside but overlapping the frustum must be kept.
	if !f.ContainsSphere(mgl32.Vec3{0, 0, 9.95}, 1) {
		t.Error("sphere straddling the near plane should be visible")
	}
}

func TestFrustumContainsPoint(t *testing.T) {
	f := NewFrustum(testViewProj())

	if !f.ContainsPoint(mgl32.Vec3{0, 0, 0}) {
		t.Error("origin should be inside")
	}
	if f.ContainsPoint(mgl32.Vec3{0, 0, 20}) {
		t.Error("point behind the camera should be outside")
	}
}

func TestFrustumContainsOBB(t *testing.T) {
	f := NewFrustum(testViewProj())
	unit := AABB{Min: mgl32.Vec3{-0.5, -0.5, -0.5}, Max: mgl32.Vec3{0.5, 0.5, 0.5}}

	inside := mgl32.Translate3D(0, 0, 0).Mul4(mgl32.HomogRotate3DY(0.7))
	if !f.ContainsOBB(unit, inside) {
		t.Error("rotated unit box at origin should be visible")
	}

	outside := mgl32.Translate3D(0, 0, 50)
	if f.ContainsOBB(unit, outside) {
		t.Error("unit box behind the camera should be culled")
	}
}

func TestFrustumBoundingBox(t *testing.T) {
	viewProj := testViewProj()
	box := FrustumBoundingBox(viewProj)

	// The camera near plane sits at z=9.9 looking down -Z; both the origin
	// and a far point must be inside the frustum's bounding box.
	for _, p := range []mgl32.Vec3{{0, 0, 0}, {0, 0, -80}, {0, 0, 9.9}} {
		for i := 0; i < 3; i++ {
			if p[i] < box.Min[i]-0.1 || p[i] > box.Max[i]+0.1 {
				t.Fatalf("point %v outside frustum bounding box %+v", p, box)
			}
		}
	}

	if box.Max.Z() > 10.1 {
		t.Errorf("bounding box should not extend past the camera, max.z=%v", box.Max.Z())
	}
}

func TestInfiniteAABBAlwaysVisible(t *testing.T) {
	f := NewFrustum(testViewProj())
	if !f.ContainsAABB(InfiniteAABB()) {
		t.Error("infinite box must always be visible")
	}
}
