package stl

import (
	"math"

	"github.com/philipparndt/canalview/pkg/geometry"
)

// Model represents a complete STL model
type Model struct {
	Name      string
	Triangles []geometry.Triangle
}

// NewModel creates a new STL model
func NewModel(name string) *Model {
	return &Model{
		Name:      name,
		Triangles: make([]geometry.Triangle, 0),
	}
}

// AddTriangle adds a triangle to the model
func (m *Model) AddTriangle(triangle geometry.Triangle) {
	m.Triangles = append(m.Triangles, triangle)
}

// TriangleCount returns the number of triangles in the model
func (m *Model) TriangleCount() int {
	return len(m.Triangles)
}

// VertexCount returns the number of (unshared) vertices in the model
func (m *Model) VertexCount() int {
	return len(m.Triangles) * 3
}

// BoundingBox calculates the bounding box of the entire model
func (m *Model) BoundingBox() geometry.BoundingBox {
	bbox := geometry.NewBoundingBox()
	for _, triangle := range m.Triangles {
		bbox.Extend(triangle.V1)
		bbox.Extend(triangle.V2)
		bbox.Extend(triangle.V3)
	}
	return bbox
}

// SurfaceArea calculates the total surface area of the model
func (m *Model) SurfaceArea() float64 {
	totalArea := 0.0
	for _, triangle := range m.Triangles {
		totalArea += triangle.Area()
	}
	return totalArea
}

// Volume calculates the enclosed volume of a closed, consistently wound mesh
func (m *Model) Volume() float64 {
	volume := 0.0
	for _, triangle := range m.Triangles {
		volume += triangle.SignedVolume()
	}
	return math.Abs(volume)
}

// EnsureNormals replaces missing or zero-length facet normals with the one
// computed from the winding order and returns how many were replaced.
// Many exporters write 0,0,0 normals, which would otherwise render unlit.
func (m *Model) EnsureNormals() int {
	fixed := 0
	for i := range m.Triangles {
		if m.Triangles[i].HasNormal() {
			m.Triangles[i].Normal = m.Triangles[i].Normal.Normalize()
			continue
		}
		m.Triangles[i].Normal = m.Triangles[i].CalculateNormal()
		fixed++
	}
	return fixed
}

// Normalize computes the centering and scaling transform for the model
func (m *Model) Normalize(targetSize float64) (geometry.Transform, error) {
	return geometry.Normalize(m.BoundingBox(), targetSize)
}
