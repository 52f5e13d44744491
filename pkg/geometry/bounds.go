package geometry

import "math"

// BoundingBox represents an axis-aligned bounding box
type BoundingBox struct {
	Min Vector3
	Max Vector3
}

// NewBoundingBox creates an empty bounding box that any extended point will replace
func NewBoundingBox() BoundingBox {
	return BoundingBox{
		Min: Vector3{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64},
		Max: Vector3{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64},
	}
}

// BoundingBoxOf returns the bounding box enclosing all points
func BoundingBoxOf(points ...Vector3) BoundingBox {
	bbox := NewBoundingBox()
	for _, p := range points {
		bbox.Extend(p)
	}
	return bbox
}

// Extend expands the bounding box to include a point
func (b *BoundingBox) Extend(point Vector3) {
	b.Min = b.Min.Min(point)
	b.Max = b.Max.Max(point)
}

// IsEmpty reports whether no point was ever added to the box
func (b BoundingBox) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Size returns the dimensions of the bounding box
func (b BoundingBox) Size() Vector3 {
	if b.IsEmpty() {
		return Vector3{}
	}
	return b.Max.Sub(b.Min)
}

// MaxDimension returns the largest extent along any axis
func (b BoundingBox) MaxDimension() float64 {
	return b.Size().MaxComponent()
}

// Center returns the center point of the bounding box
func (b BoundingBox) Center() Vector3 {
	if b.IsEmpty() {
		return Vector3{}
	}
	return b.Min.Add(b.Max).Mul(0.5)
}

// Diagonal returns the length of the bounding box diagonal
func (b BoundingBox) Diagonal() float64 {
	return b.Size().Length()
}
