package viewer

import (
	"image/color"

	"github.com/philipparndt/canalview/pkg/geometry"
	"github.com/philipparndt/canalview/pkg/stl"
)

// LightKind distinguishes ambient from directional lights
type LightKind int

const (
	AmbientLight LightKind = iota
	DirectionalLight
)

// Light contributes Intensity of white light; Direction points towards
// the light and is ignored for ambient lights.
type Light struct {
	Kind      LightKind
	Intensity float64
	Direction geometry.Vector3
}

// Material describes how a mesh surface is shaded
type Material struct {
	Color   color.RGBA
	Opacity float64
}

// DefaultMaterial is a matte, slightly translucent surface
func DefaultMaterial() Material {
	return Material{
		Color:   color.RGBA{R: 150, G: 175, B: 215, A: 255},
		Opacity: 0.95,
	}
}

// Mesh is a model placed in a scene through a normalization transform.
// World-space triangles are computed once at construction.
type Mesh struct {
	Model     *stl.Model
	Transform geometry.Transform
	Material  Material

	world    []geometry.Triangle
	disposed bool
}

// NewMesh places model in world space using transform
func NewMesh(model *stl.Model, transform geometry.Transform, material Material) *Mesh {
	world := make([]geometry.Triangle, len(model.Triangles))
	for i, tri := range model.Triangles {
		world[i] = tri.Transformed(transform)
	}
	return &Mesh{
		Model:     model,
		Transform: transform,
		Material:  material,
		world:     world,
	}
}

// WorldBounds returns the bounding box of the mesh after its transform
func (m *Mesh) WorldBounds() geometry.BoundingBox {
	bbox := geometry.NewBoundingBox()
	for _, tri := range m.world {
		bbox.Extend(tri.V1)
		bbox.Extend(tri.V2)
		bbox.Extend(tri.V3)
	}
	return bbox
}

// Dispose releases the geometry buffers. A disposed mesh renders nothing.
func (m *Mesh) Dispose() {
	m.world = nil
	m.Model = nil
	m.disposed = true
}

// Disposed reports whether Dispose was called
func (m *Mesh) Disposed() bool {
	return m.disposed
}

// Scene holds the lights and meshes rendered by a surface
type Scene struct {
	Background color.RGBA
	Lights     []Light
	meshes     []*Mesh
}

// NewScene creates a scene with an ambient and a directional light
func NewScene() *Scene {
	return &Scene{
		Background: color.RGBA{R: 15, G: 18, B: 25, A: 255},
		Lights: []Light{
			{Kind: AmbientLight, Intensity: 0.8},
			{Kind: DirectionalLight, Intensity: 0.8, Direction: geometry.NewVector3(1, 1, 1).Normalize()},
		},
	}
}

// Add appends a mesh to the scene
func (s *Scene) Add(mesh *Mesh) {
	s.meshes = append(s.meshes, mesh)
}

// Remove takes a mesh out of the scene and reports whether it was present
func (s *Scene) Remove(mesh *Mesh) bool {
	for i, m := range s.meshes {
		if m == mesh {
			s.meshes = append(s.meshes[:i], s.meshes[i+1:]...)
			return true
		}
	}
	return false
}

// Meshes returns the meshes currently in the scene
func (s *Scene) Meshes() []*Mesh {
	return s.meshes
}

// shade returns the lit color of a surface with the given normal
func (s *Scene) shade(m Material, normal geometry.Vector3) color.RGBA {
	intensity := 0.0
	for _, l := range s.Lights {
		switch l.Kind {
		case AmbientLight:
			intensity += l.Intensity * 0.35
		case DirectionalLight:
			if d := normal.Dot(l.Direction); d > 0 {
				intensity += l.Intensity * d * 0.75
			}
		}
	}

	scale := func(c uint8) uint8 {
		v := float64(c) * intensity
		if v > 255 {
			return 255
		}
		return uint8(v)
	}
	return color.RGBA{R: scale(m.Color.R), G: scale(m.Color.G), B: scale(m.Color.B), A: 255}
}
