package render

import (
	"math"

	"github.com/taigrr/showroom/pkg/math3d"
)

// Camera is a perspective camera that looks at a target point. Matrices are
// rebuilt lazily; ProjectionBuilds counts projection rebuilds.
type Camera struct {
	Position math3d.Vec3
	Target   math3d.Vec3
	Up       math3d.Vec3

	FovDeg float64 // vertical field of view in degrees
	Aspect float64
	Near   float64
	Far    float64

	ProjectionBuilds int

	viewMatrix math3d.Mat4
	projMatrix math3d.Mat4
	viewDirty  bool
	projDirty  bool
}

// NewCamera creates a camera at position looking at the origin.
func NewCamera(position math3d.Vec3, fovDeg float64) *Camera {
	return &Camera{
		Position:  position,
		Up:        math3d.Up(),
		FovDeg:    fovDeg,
		Aspect:    1,
		Near:      0.01,
		Far:       1000,
		viewDirty: true,
		projDirty: true,
	}
}

// SetPosition moves the camera.
func (c *Camera) SetPosition(p math3d.Vec3) {
	c.Position = p
	c.viewDirty = true
}

// SetTarget changes the point the camera looks at.
func (c *Camera) SetTarget(t math3d.Vec3) {
	c.Target = t
	c.viewDirty = true
}

// SetFov sets the vertical field of view. It reports false and leaves the
// projection untouched when the value is unchanged.
func (c *Camera) SetFov(deg float64) bool {
	if c.FovDeg == deg {
		return false
	}
	c.FovDeg = deg
	c.projDirty = true
	return true
}

// SetAspect sets the width/height ratio.
func (c *Camera) SetAspect(aspect float64) {
	if aspect <= 0 || c.Aspect == aspect {
		return
	}
	c.Aspect = aspect
	c.projDirty = true
}

// SetClipPlanes sets the near and far clipping planes.
func (c *Camera) SetClipPlanes(near, far float64) {
	if c.Near == near && c.Far == far {
		return
	}
	c.Near = near
	c.Far = far
	c.projDirty = true
}

// UpdateProjection rebuilds the projection matrix if any of its inputs
// changed since the last build.
func (c *Camera) UpdateProjection() {
	if !c.projDirty {
		return
	}
	c.projMatrix = math3d.Perspective(c.FovDeg*math.Pi/180, c.Aspect, c.Near, c.Far)
	c.projDirty = false
	c.ProjectionBuilds++
}

// ViewMatrix returns the view matrix.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	if c.viewDirty {
		c.viewMatrix = math3d.LookAt(c.Position, c.Target, c.Up)
		c.viewDirty = false
	}
	return c.viewMatrix
}

// ProjectionMatrix returns the projection matrix.
func (c *Camera) ProjectionMatrix() math3d.Mat4 {
	c.UpdateProjection()
	return c.projMatrix
}

// ViewProjectionMatrix returns the combined view-projection matrix.
func (c *Camera) ViewProjectionMatrix() math3d.Mat4 {
	return c.ProjectionMatrix().Mul(c.ViewMatrix())
}

// Basis returns the camera's forward, right and up unit vectors.
func (c *Camera) Basis() (forward, right, up math3d.Vec3) {
	forward = c.Target.Sub(c.Position).Normalize()
	right = forward.Cross(c.Up).Normalize()
	up = right.Cross(forward)
	return forward, right, up
}

// WorldToScreen transforms a world point to screen coordinates.
// Returns (screenX, screenY, depth, visible).
func (c *Camera) WorldToScreen(p math3d.Vec3, width, height int) (x, y, depth float64, visible bool) {
	clip := c.ViewProjectionMatrix().Project(p)
	if clip.W <= 0 {
		return 0, 0, 0, false
	}
	nx, ny, nz := clip.X/clip.W, clip.Y/clip.W, clip.Z/clip.W
	if nx < -1 || nx > 1 || ny < -1 || ny > 1 || nz < -1 || nz > 1 {
		return 0, 0, 0, false
	}
	x = (nx + 1) * 0.5 * float64(width)
	y = (1 - ny) * 0.5 * float64(height)
	return x, y, nz, true
}
