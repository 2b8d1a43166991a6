package renderer

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ProjectionKind selects perspective or orthographic projection.
type ProjectionKind int

const (
	ProjectionPerspective ProjectionKind = iota
	ProjectionOrthographic
)

// Camera describes the viewpoint a frame is rendered from. It is a plain
// value; the renderer snapshots it at Begin and derives matrices and the
// culling frustum from the snapshot.
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3

	// FovY is the vertical field of view in degrees for perspective
	// projection, or the vertical extent in world units for orthographic.
	FovY float32

	Near, Far float32

	Projection ProjectionKind
}

// NewDefaultCamera returns a perspective camera at the origin looking down
// negative Z.
func NewDefaultCamera() Camera {
	return Camera{
		Position: mgl32.Vec3{0, 0, 0},
		Target:   mgl32.Vec3{0, 0, -1},
		Up:       mgl32.Vec3{0, 1, 0},
		FovY:     60.0,
		Near:     0.1,
		Far:      1000.0,
	}
}

// ViewMatrix returns the world-to-view transform.
func (c *Camera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, c.Up)
}

// ProjectionMatrix returns the symmetric projection for the given aspect
// ratio. Orthographic cameras interpret FovY as the world-space height of
// the view volume.
func (c *Camera) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	if c.Projection == ProjectionOrthographic {
		top := c.FovY / 2.0
		right := top * aspect
		return mgl32.Ortho(-right, right, -top, top, c.Near, c.Far)
	}
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
}

// Forward returns the normalized view direction.
func (c *Camera) Forward() mgl32.Vec3 {
	return c.Target.Sub(c.Position).Normalize()
}
