package analysis

import (
	"fmt"
	"math"

	"github.com/philipparndt/canalview/pkg/geometry"
	"github.com/philipparndt/canalview/pkg/stl"
)

// MeasurementResult contains local measurements of a mesh, computed without
// the remote analysis service
type MeasurementResult struct {
	BoundingBox   geometry.BoundingBox
	Dimensions    geometry.Vector3
	Volume        float64
	SurfaceArea   float64
	TriangleCount int
	EdgeCount     int
	MinEdgeLength float64
	MaxEdgeLength float64
	AvgEdgeLength float64
}

// InfoKeys lists the fields returned by Fields, in display order
var InfoKeys = []string{
	"triangle_count",
	"width_mm",
	"depth_mm",
	"height_mm",
	"diagonal_mm",
	"surface_area",
	"volume_enclosed_mm3",
	"edge_min_mm",
	"edge_max_mm",
	"edge_avg_mm",
}

// AnalyzeModel performs comprehensive analysis on an STL model
func AnalyzeModel(model *stl.Model) *MeasurementResult {
	result := &MeasurementResult{
		BoundingBox:   model.BoundingBox(),
		SurfaceArea:   model.SurfaceArea(),
		Volume:        model.Volume(),
		TriangleCount: model.TriangleCount(),
	}
	result.Dimensions = result.BoundingBox.Size()

	minLength := math.MaxFloat64
	maxLength := 0.0
	totalLength := 0.0

	for _, triangle := range model.Triangles {
		for _, length := range triangle.EdgeLengths() {
			totalLength += length
			minLength = math.Min(minLength, length)
			maxLength = math.Max(maxLength, length)
			result.EdgeCount++
		}
	}

	if result.EdgeCount > 0 {
		result.MinEdgeLength = minLength
		result.MaxEdgeLength = maxLength
		result.AvgEdgeLength = totalLength / float64(result.EdgeCount)
	}

	return result
}

// Fields returns the measurements keyed by the same unit-suffix naming
// convention the analysis service uses, so they format identically
func (r *MeasurementResult) Fields() map[string]any {
	return map[string]any{
		"triangle_count":      r.TriangleCount,
		"width_mm":            r.Dimensions.X,
		"depth_mm":            r.Dimensions.Y,
		"height_mm":           r.Dimensions.Z,
		"diagonal_mm":         r.BoundingBox.Diagonal(),
		"surface_area":        r.SurfaceArea,
		"volume_enclosed_mm3": r.Volume,
		"edge_min_mm":         r.MinEdgeLength,
		"edge_max_mm":         r.MaxEdgeLength,
		"edge_avg_mm":         r.AvgEdgeLength,
	}
}

// FormatVector formats a 3D vector
func FormatVector(v geometry.Vector3) string {
	return fmt.Sprintf("(%.6f, %.6f, %.6f)", v.X, v.Y, v.Z)
}
