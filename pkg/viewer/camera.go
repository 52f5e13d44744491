package viewer

import (
	"math"

	"github.com/philipparndt/canalview/pkg/geometry"
)

// Camera is a perspective camera looking from Position at Target
type Camera struct {
	Position geometry.Vector3
	Target   geometry.Vector3
	Up       geometry.Vector3
	FOV      float64 // Vertical field of view in degrees
	Aspect   float64 // Width / height of the render surface
	Near     float64
	Far      float64
}

// NewCamera creates a camera at distance on the +Z axis looking at the origin
func NewCamera(fov, aspect, near, far, distance float64) *Camera {
	return &Camera{
		Position: geometry.NewVector3(0, 0, distance),
		Target:   geometry.Vector3{},
		Up:       geometry.NewVector3(0, 1, 0),
		FOV:      fov,
		Aspect:   aspect,
		Near:     near,
		Far:      far,
	}
}

// SetAspect updates the projection aspect ratio; non-positive values are ignored
func (c *Camera) SetAspect(aspect float64) {
	if aspect > 0 && !math.IsInf(aspect, 0) {
		c.Aspect = aspect
	}
}

// basis returns the camera's right, up and forward unit vectors
func (c *Camera) basis() (right, up, forward geometry.Vector3) {
	forward = c.Target.Sub(c.Position).Normalize()
	right = forward.Cross(c.Up).Normalize()
	up = right.Cross(forward).Normalize()
	return right, up, forward
}

// Project projects a world-space point to screen coordinates. depth is the
// distance along the view direction; ok is false outside the near/far range.
func (c *Camera) Project(point geometry.Vector3, width, height float64) (x, y, depth float64, ok bool) {
	right, up, forward := c.basis()

	relative := point.Sub(c.Position)
	cx := relative.Dot(right)
	cy := relative.Dot(up)
	depth = relative.Dot(forward)

	if depth < c.Near || depth > c.Far {
		return 0, 0, depth, false
	}

	fovScale := math.Tan(c.FOV * math.Pi / 360)

	x = (cx/(depth*fovScale*c.Aspect))*(width/2) + (width / 2)
	y = (-cy/(depth*fovScale))*(height/2) + (height / 2)
	return x, y, depth, true
}

// ViewDirection returns the unit vector from the camera towards its target
func (c *Camera) ViewDirection() geometry.Vector3 {
	return c.Target.Sub(c.Position).Normalize()
}
