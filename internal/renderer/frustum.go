package renderer

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const frustumEpsilon = 1e-6

// AABB is an axis-aligned bounding box in world space. The zero value is
// treated as "unknown bounds" by the culling code and is never rejected.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// InfiniteAABB returns a box that contains everything, used for lights whose
// influence has no spatial bound (directional).
func InfiniteAABB() AABB {
	inf := float32(math.MaxFloat32)
	return AABB{
		Min: mgl32.Vec3{-inf, -inf, -inf},
		Max: mgl32.Vec3{+inf, +inf, +inf},
	}
}

// IsZero reports whether the box is the degenerate zero value.
func (b AABB) IsZero() bool {
	return b.Min == (mgl32.Vec3{}) && b.Max == (mgl32.Vec3{})
}

// Center returns the midpoint of the box.
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Union returns the smallest box containing both boxes. A zero operand
// yields the other box unchanged.
func (b AABB) Union(o AABB) AABB {
	if b.IsZero() {
		return o
	}
	if o.IsZero() {
		return b
	}
	return AABB{
		Min: mgl32.Vec3{min32(b.Min.X(), o.Min.X()), min32(b.Min.Y(), o.Min.Y()), min32(b.Min.Z(), o.Min.Z())},
		Max: mgl32.Vec3{max32(b.Max.X(), o.Max.X()), max32(b.Max.Y(), o.Max.Y()), max32(b.Max.Z(), o.Max.Z())},
	}
}

// Corner returns one of the 8 corners, indexed by the low three bits of i
// selecting max.X, max.Y and max.Z respectively.
func (b AABB) Corner(i int) mgl32.Vec3 {
	c := b.Min
	if i&1 != 0 {
		c[0] = b.Max.X()
	}
	if i&2 != 0 {
		c[1] = b.Max.Y()
	}
	if i&4 != 0 {
		c[2] = b.Max.Z()
	}
	return c
}

// Frustum plane indices.
const (
	planeRight = iota
	planeLeft
	planeTop
	planeBottom
	planeBack
	planeFront
	planeCount
)

// Frustum is a set of six inward-facing planes (xyz normal, w distance).
type Frustum struct {
	Planes [planeCount]mgl32.Vec4
}

func normalizePlane(p mgl32.Vec4) mgl32.Vec4 {
	length := float32(math.Sqrt(float64(p.X()*p.X() + p.Y()*p.Y() + p.Z()*p.Z())))
	if length <= frustumEpsilon {
		return mgl32.Vec4{}
	}
	return p.Mul(1.0 / length)
}

func planeDistance(p mgl32.Vec4, pos mgl32.Vec3) float32 {
	return p.X()*pos.X() + p.Y()*pos.Y() + p.Z()*pos.Z() + p.W()
}

// NewFrustum extracts the clipping planes from a combined view-projection
// matrix (Gribb-Hartmann). mgl32 matrices are column-major, so m[c*4+r].
func NewFrustum(viewProj mgl32.Mat4) Frustum {
	m := viewProj
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{m[0*4+r], m[1*4+r], m[2*4+r], m[3*4+r]}
	}

	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	var f Frustum
	f.Planes[planeRight] = normalizePlane(r3.Sub(r0))
	f.Planes[planeLeft] = normalizePlane(r3.Add(r0))
	f.Planes[planeTop] = normalizePlane(r3.Sub(r1))
	f.Planes[planeBottom] = normalizePlane(r3.Add(r1))
	f.Planes[planeBack] = normalizePlane(r3.Sub(r2))
	f.Planes[planeFront] = normalizePlane(r3.Add(r2))
	return f
}

// FrustumBoundingBox returns the world-space AABB enclosing the frustum of
// the given view-projection matrix.
func FrustumBoundingBox(viewProj mgl32.Mat4) AABB {
	inv := viewProj.Inv()

	clipCorners := [8]mgl32.Vec4{
		{-1, -1, -1, 1}, {1, -1, -1, 1}, {1, 1, -1, 1}, {-1, 1, -1, 1},
		{-1, -1, 1, 1}, {1, -1, 1, 1}, {1, 1, 1, 1}, {-1, 1, 1, 1},
	}

	inf := float32(math.MaxFloat32)
	box := AABB{
		Min: mgl32.Vec3{+inf, +inf, +inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}

	for _, c := range clipCorners {
		p := inv.Mul4x1(c)
		if w := p.W(); float32(math.Abs(float64(w))) > frustumEpsilon {
			p = p.Mul(1.0 / w)
		}
		for i := 0; i < 3; i++ {
			box.Min[i] = min32(box.Min[i], p[i])
			box.Max[i] = max32(box.Max[i], p[i])
		}
	}

	return box
}

// ContainsPoint reports whether the point lies inside all six planes.
func (f *Frustum) ContainsPoint(pos mgl32.Vec3) bool {
	for i := 0; i < planeCount; i++ {
		if planeDistance(f.Planes[i], pos) <= 0 {
			return false
		}
	}
	return true
}

// ContainsSphere reports whether a sphere intersects the frustum.
func (f *Frustum) ContainsSphere(center mgl32.Vec3, radius float32) bool {
	for i := 0; i < planeCount; i++ {
		if planeDistance(f.Planes[i], center) < -radius {
			return false
		}
	}
	return true
}

// ContainsAABB reports whether the box intersects the frustum. The test uses
// the positive vertex for each plane, so straddling boxes are always kept.
func (f *Frustum) ContainsAABB(box AABB) bool {
	for i := 0; i < planeCount; i++ {
		p := f.Planes[i]

		v := mgl32.Vec3{box.Min.X(), box.Min.Y(), box.Min.Z()}
		if p.X() >= 0 {
			v[0] = box.Max.X()
		}
		if p.Y() >= 0 {
			v[1] = box.Max.Y()
		}
		if p.Z() >= 0 {
			v[2] = box.Max.Z()
		}

		if planeDistance(p, v) < -frustumEpsilon {
			return false
		}
	}
	return true
}

// ContainsOBB tests a local-space box carried by a world transform, without
// recomputing a fattened world AABB.
func (f *Frustum) ContainsOBB(box AABB, transform mgl32.Mat4) bool {
	center := transform.Mul4x1(box.Center().Vec4(1)).Vec3()
	half := box.Max.Sub(box.Min).Mul(0.5)

	axisX := transform.Col(0).Vec3()
	axisY := transform.Col(1).Vec3()
	axisZ := transform.Col(2).Vec3()

	for i := 0; i < planeCount; i++ {
		p := f.Planes[i]
		n := p.Vec3()

		centerDist := planeDistance(p, center)
		radius := abs32(n.Dot(axisX))*half.X() +
			abs32(n.Dot(axisY))*half.Y() +
			abs32(n.Dot(axisZ))*half.Z()

		if centerDist+radius < -frustumEpsilon {
			return false
		}
	}
	return true
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
