package scene

import (
	"math"

	"github.com/charmbracelet/harmonica"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/render"
)

// OrbitAxis tracks one orbit coordinate with a velocity that decays through a
// harmonica spring.
type OrbitAxis struct {
	Velocity  float64
	velSpring harmonica.Spring
	velAccel  float64 // internal spring velocity (for animating Velocity toward 0)
}

// NewOrbitAxis creates an axis whose velocity decays smoothly at fps.
func NewOrbitAxis(fps int) OrbitAxis {
	return OrbitAxis{
		// Frequency 4.0 = moderate speed, damping 1.0 = critically damped (no overshoot)
		velSpring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0),
	}
}

// Step returns the velocity to apply this frame and decays it toward zero.
func (a *OrbitAxis) Step() float64 {
	v := a.Velocity
	a.Velocity, a.velAccel = a.velSpring.Update(a.Velocity, a.velAccel, 0)
	return v
}

func (a *OrbitAxis) stop() {
	a.Velocity, a.velAccel = 0, 0
}

func (a *OrbitAxis) moving() bool {
	return math.Abs(a.Velocity) > restEpsilon || math.Abs(a.velAccel) > restEpsilon
}

const (
	restEpsilon = 1e-5
	minPolar    = 0.01
	maxPolar    = math.Pi - 0.01
	minDistance = 1e-3
)

// OrbitControls orbits a camera around a target with damped motion. While no
// motion is pending, Update leaves the camera untouched, so a pose set with
// SetPose reads back exactly.
type OrbitControls struct {
	Camera *render.Camera
	Target math3d.Vec3

	Azimuth, Polar, Zoom OrbitAxis

	azimuth, polar, distance float64
}

// NewOrbitControls attaches controls to cam.
func NewOrbitControls(cam *render.Camera, fps int) *OrbitControls {
	c := &OrbitControls{
		Camera:  cam,
		Azimuth: NewOrbitAxis(fps),
		Polar:   NewOrbitAxis(fps),
		Zoom:    NewOrbitAxis(fps),
	}
	c.SetPose(cam.Position, cam.Target)
	return c
}

// SetPose snaps the camera to position and target, cancelling any motion.
func (c *OrbitControls) SetPose(position, target math3d.Vec3) {
	c.Azimuth.stop()
	c.Polar.stop()
	c.Zoom.stop()
	c.Target = target
	c.Camera.SetPosition(position)
	c.Camera.SetTarget(target)
	c.syncSpherical()
}

// Rotate adds angular velocity in radians per frame.
func (c *OrbitControls) Rotate(dAzimuth, dPolar float64) {
	c.Azimuth.Velocity += dAzimuth
	c.Polar.Velocity += dPolar
}

// Dolly adds zoom velocity; positive moves the camera away from the target.
// The value is a fraction of the current distance per frame.
func (c *OrbitControls) Dolly(amount float64) {
	c.Zoom.Velocity += amount
}

// Moving reports whether damped motion is still pending.
func (c *OrbitControls) Moving() bool {
	return c.Azimuth.moving() || c.Polar.moving() || c.Zoom.moving()
}

// Update advances damping by one frame. It reports whether the camera moved.
func (c *OrbitControls) Update() bool {
	if !c.Moving() {
		return false
	}
	c.azimuth += c.Azimuth.Step()
	c.polar = math.Max(minPolar, math.Min(maxPolar, c.polar+c.Polar.Step()))
	c.distance = math.Max(minDistance, c.distance*(1+c.Zoom.Step()))

	sinP := math.Sin(c.polar)
	offset := math3d.V3(
		c.distance*sinP*math.Sin(c.azimuth),
		c.distance*math.Cos(c.polar),
		c.distance*sinP*math.Cos(c.azimuth),
	)
	c.Camera.SetPosition(c.Target.Add(offset))
	c.Camera.SetTarget(c.Target)
	return true
}

func (c *OrbitControls) syncSpherical() {
	offset := c.Camera.Position.Sub(c.Target)
	c.distance = math.Max(minDistance, offset.Len())
	c.azimuth = math.Atan2(offset.X, offset.Z)
	c.polar = math.Acos(math.Max(-1, math.Min(1, offset.Y/c.distance)))
}
