package viewer

import (
	"math"

	"github.com/philipparndt/canalview/pkg/geometry"
)

const (
	minDistance = 1.0
	maxPolar    = math.Pi/2 - 0.1
)

// OrbitControls rotates and zooms a camera around its target. With damping
// enabled, input adds velocity that Update decays every frame.
type OrbitControls struct {
	camera        *Camera
	EnableDamping bool
	DampingFactor float64

	distance float64
	azimuth  float64 // Rotation around the Y axis
	polar    float64 // Elevation above the XZ plane

	azimuthVelocity float64
	polarVelocity   float64
	zoomVelocity    float64
}

// NewOrbitControls binds controls to camera, keeping its current position
func NewOrbitControls(camera *Camera) *OrbitControls {
	offset := camera.Position.Sub(camera.Target)
	distance := offset.Length()

	o := &OrbitControls{
		camera:        camera,
		DampingFactor: 0.05,
		distance:      distance,
	}
	if distance > 0 {
		o.azimuth = math.Atan2(offset.X, offset.Z)
		o.polar = math.Asin(offset.Y / distance)
	}
	return o
}

// Rotate adds rotation input in radians
func (o *OrbitControls) Rotate(deltaAzimuth, deltaPolar float64) {
	if o.EnableDamping {
		o.azimuthVelocity += deltaAzimuth
		o.polarVelocity += deltaPolar
		return
	}
	o.azimuth += deltaAzimuth
	o.polar += deltaPolar
}

// Zoom scales the orbit distance by (1 + delta)
func (o *OrbitControls) Zoom(delta float64) {
	if o.EnableDamping {
		o.zoomVelocity += delta
		return
	}
	o.distance *= 1 + delta
}

// Distance returns the current orbit radius
func (o *OrbitControls) Distance() float64 {
	return o.distance
}

// Update applies pending input to the camera and reports whether it moved
func (o *OrbitControls) Update() bool {
	moved := false
	if o.EnableDamping {
		if math.Abs(o.azimuthVelocity)+math.Abs(o.polarVelocity)+math.Abs(o.zoomVelocity) > 1e-6 {
			o.azimuth += o.azimuthVelocity * o.DampingFactor
			o.polar += o.polarVelocity * o.DampingFactor
			o.distance *= 1 + o.zoomVelocity*o.DampingFactor
			moved = true
		}
		decay := 1 - o.DampingFactor
		o.azimuthVelocity *= decay
		o.polarVelocity *= decay
		o.zoomVelocity *= decay
	}

	o.polar = math.Max(-maxPolar, math.Min(maxPolar, o.polar))
	o.distance = math.Max(minDistance, o.distance)

	x := o.distance * math.Cos(o.polar) * math.Sin(o.azimuth)
	y := o.distance * math.Sin(o.polar)
	z := o.distance * math.Cos(o.polar) * math.Cos(o.azimuth)

	position := o.camera.Target.Add(geometry.NewVector3(x, y, z))
	if position != o.camera.Position {
		moved = true
	}
	o.camera.Position = position
	return moved
}
