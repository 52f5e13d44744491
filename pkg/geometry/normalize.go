package geometry

import (
	"errors"
	"math"
)

// DefaultTargetSize is the length the longest bounding-box side is scaled to.
const DefaultTargetSize = 120.0

var (
	// ErrEmptyMesh is returned when a mesh has no vertices to normalize
	ErrEmptyMesh = errors.New("mesh has no vertices")

	// ErrDegenerateMesh is returned when every vertex lies on the same point
	ErrDegenerateMesh = errors.New("mesh has zero extent")
)

// Transform centers a mesh at the origin and scales it uniformly.
// Apply translates first and scales second, so the scale never
// multiplies the centering offset.
type Transform struct {
	Translation Vector3
	Scale       float64
}

// Identity returns a transform that leaves points unchanged
func Identity() Transform {
	return Transform{Scale: 1}
}

// Apply maps a point through the transform
func (t Transform) Apply(p Vector3) Vector3 {
	return p.Add(t.Translation).Mul(t.Scale)
}

// ApplyBox maps both corners of a bounding box through the transform
func (t Transform) ApplyBox(b BoundingBox) BoundingBox {
	return BoundingBoxOf(t.Apply(b.Min), t.Apply(b.Max))
}

// Normalize computes the transform that centers bbox at the origin and maps
// its longest side to targetSize.
func Normalize(bbox BoundingBox, targetSize float64) (Transform, error) {
	if bbox.IsEmpty() {
		return Transform{}, ErrEmptyMesh
	}

	// NaN fails every comparison, so test for the positive case
	maxDim := bbox.MaxDimension()
	if !(maxDim > 0) || math.IsInf(maxDim, 0) {
		return Transform{}, ErrDegenerateMesh
	}

	center := bbox.Center()
	if !center.IsFinite() {
		return Transform{}, ErrDegenerateMesh
	}

	return Transform{
		Translation: center.Mul(-1),
		Scale:       targetSize / maxDim,
	}, nil
}
