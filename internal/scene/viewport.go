// Package scene manages the interactive 3D preview of one side's mesh.
package scene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/philipparndt/canalview/pkg/geometry"
	"github.com/philipparndt/canalview/pkg/stl"
	"github.com/philipparndt/canalview/pkg/viewer"
)

// Side names one of the two compared structures
type Side string

const (
	Right Side = "right"
	Left  Side = "left"
)

var (
	// ErrSuperseded is returned by a load whose result was discarded
	// because a newer load for the same viewport started
	ErrSuperseded = errors.New("mesh load superseded")
	// ErrDisposed is returned when loading into a disposed viewport
	ErrDisposed = errors.New("viewport disposed")
)

// Loader parses mesh file bytes
type Loader interface {
	Parse(data []byte) (*stl.Model, error)
}

// Surface renders a scene into the viewport's output
type Surface interface {
	Render(scene *viewer.Scene, camera *viewer.Camera)
	SetSize(width, height int)
}

// Options configure a viewport
type Options struct {
	TargetSize float64
	FPS        int
	FOV        float64
	Near       float64
	Far        float64
	Distance   float64
	Material   viewer.Material
}

// DefaultOptions returns a 45° camera 180 units from the origin rendering
// at 30 frames per second
func DefaultOptions() Options {
	return Options{
		TargetSize: geometry.DefaultTargetSize,
		FPS:        30,
		FOV:        45,
		Near:       0.1,
		Far:        2000,
		Distance:   180,
		Material:   viewer.DefaultMaterial(),
	}
}

// Viewport owns the camera, lights, controls and current mesh of one side.
// Camera, lights and controls live as long as the viewport; meshes are
// replaced on every load.
type Viewport struct {
	side    Side
	opts    Options
	loader  Loader
	surface Surface

	mu       sync.Mutex
	scene    *viewer.Scene
	camera   *viewer.Camera
	controls *viewer.OrbitControls
	mesh     *viewer.Mesh
	loadSeq  uint64
	disposed bool

	stop chan struct{}
	done chan struct{}
}

// NewViewport creates an empty viewport. The redraw loop is not started.
func NewViewport(side Side, surface Surface, loader Loader, opts Options) *Viewport {
	def := DefaultOptions()
	if opts.TargetSize <= 0 {
		opts.TargetSize = def.TargetSize
	}
	if opts.FPS <= 0 {
		opts.FPS = def.FPS
	}
	if opts.FOV <= 0 {
		opts.FOV = def.FOV
	}
	if opts.Near <= 0 {
		opts.Near = def.Near
	}
	if opts.Far <= opts.Near {
		opts.Far = def.Far
	}
	if opts.Distance <= 0 {
		opts.Distance = def.Distance
	}
	if opts.Material == (viewer.Material{}) {
		opts.Material = def.Material
	}

	camera := viewer.NewCamera(opts.FOV, 1, opts.Near, opts.Far, opts.Distance)
	controls := viewer.NewOrbitControls(camera)
	controls.EnableDamping = true

	return &Viewport{
		side:     side,
		opts:     opts,
		loader:   loader,
		surface:  surface,
		scene:    viewer.NewScene(),
		camera:   camera,
		controls: controls,
	}
}

// Supported reports whether name has a mesh format the preview can show
func Supported(name string) bool {
	return stl.Supported(name)
}

// Side returns which side this viewport shows
func (v *Viewport) Side() Side {
	return v.side
}

// LoadMesh replaces the current mesh with the one encoded in data. The old
// mesh is removed before parsing starts. On failure the viewport stays
// empty.
func (v *Viewport) LoadMesh(ctx context.Context, data []byte) error {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return ErrDisposed
	}
	v.loadSeq++
	seq := v.loadSeq
	v.clearLocked()
	v.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	model, err := v.loader.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse %s mesh: %w", v.side, err)
	}
	if fixed := model.EnsureNormals(); fixed > 0 {
		slog.Debug("computed missing normals", "side", v.side, "triangles", fixed)
	}

	transform, err := model.Normalize(v.opts.TargetSize)
	if err != nil {
		return fmt.Errorf("failed to normalize %s mesh: %w", v.side, err)
	}
	mesh := viewer.NewMesh(model, transform, v.opts.Material)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.disposed || seq != v.loadSeq || ctx.Err() != nil {
		mesh.Dispose()
		return ErrSuperseded
	}

	v.clearLocked()
	v.scene.Add(mesh)
	v.mesh = mesh

	slog.Info("mesh loaded",
		"side", v.side,
		"triangles", model.TriangleCount(),
		"scale", transform.Scale)
	return nil
}

// clearLocked removes and releases the current mesh
func (v *Viewport) clearLocked() {
	if v.mesh == nil {
		return
	}
	v.scene.Remove(v.mesh)
	v.mesh.Dispose()
	v.mesh = nil
}

// MeshCount returns the number of meshes in the scene
func (v *Viewport) MeshCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.scene.Meshes())
}

// Mesh returns the current mesh, or nil
func (v *Viewport) Mesh() *viewer.Mesh {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mesh
}

// Resize updates camera aspect and surface size. Non-positive sizes are
// ignored.
func (v *Viewport) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.camera.SetAspect(float64(width) / float64(height))
	v.surface.SetSize(width, height)
}

// Aspect returns the camera aspect ratio
func (v *Viewport) Aspect() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.camera.Aspect
}

// Orbit feeds rotation input to the controls
func (v *Viewport) Orbit(deltaAzimuth, deltaPolar float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.controls.Rotate(deltaAzimuth, deltaPolar)
}

// Zoom feeds zoom input to the controls
func (v *Viewport) Zoom(delta float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.controls.Zoom(delta)
}

// RenderFrame updates the controls and renders one frame
func (v *Viewport) RenderFrame() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.controls.Update()
	v.surface.Render(v.scene, v.camera)
}

// Start runs the redraw loop until Stop or Dispose. Calling Start on a
// running viewport does nothing.
func (v *Viewport) Start() {
	v.mu.Lock()
	if v.stop != nil || v.disposed {
		v.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	v.stop, v.done = stop, done
	interval := time.Second / time.Duration(v.opts.FPS)
	v.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				v.RenderFrame()
			}
		}
	}()
}

// Stop cancels the redraw loop and waits for it to exit
func (v *Viewport) Stop() {
	v.mu.Lock()
	stop, done := v.stop, v.done
	v.stop, v.done = nil, nil
	v.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the redraw loop is active
func (v *Viewport) Running() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stop != nil
}

// Dispose stops the redraw loop and releases the current mesh. A disposed
// viewport rejects further loads.
func (v *Viewport) Dispose() {
	v.Stop()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.clearLocked()
	v.disposed = true
}
