package viewer

import (
	"image"
	"image/draw"
	"math"
	"sync"
)

// Surface renders scenes into an RGBA frame with a software z-buffer.
// Each finished frame is handed to the present callback.
type Surface struct {
	mu      sync.Mutex
	width   int
	height  int
	frame   *image.RGBA
	zbuffer []float64
	frames  uint64
	present func(image.Image)
}

// NewSurface creates a surface of the given size. present may be nil.
func NewSurface(width, height int, present func(image.Image)) *Surface {
	s := &Surface{present: present}
	s.SetSize(width, height)
	return s
}

// SetSize reallocates the frame buffers; non-positive sizes are ignored
func (s *Surface) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if width == s.width && height == s.height {
		return
	}
	s.width = width
	s.height = height
	s.frame = image.NewRGBA(image.Rect(0, 0, width, height))
	s.zbuffer = make([]float64, width*height)
}

// Size returns the current frame size in pixels
func (s *Surface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Frames returns how many frames were rendered
func (s *Surface) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Render draws scene as seen by camera and presents a copy of the frame
func (s *Surface) Render(scene *Scene, camera *Camera) {
	s.mu.Lock()
	if s.frame == nil {
		s.mu.Unlock()
		return
	}

	draw.Draw(s.frame, s.frame.Bounds(), image.NewUniform(scene.Background), image.Point{}, draw.Src)
	for i := range s.zbuffer {
		s.zbuffer[i] = math.Inf(1)
	}

	w, h := float64(s.width), float64(s.height)
	for _, mesh := range scene.Meshes() {
		if mesh.Disposed() {
			continue
		}
		for _, tri := range mesh.world {
			var pts [3]screenVertex
			visible := true
			for j, v := range tri.Vertices() {
				x, y, z, ok := camera.Project(v, w, h)
				if !ok {
					visible = false
					break
				}
				pts[j] = screenVertex{x, y, z}
			}
			if !visible {
				continue
			}

			normal := tri.Normal
			// light the side that faces the camera
			if normal.Dot(camera.ViewDirection()) > 0 {
				normal = normal.Mul(-1)
			}
			col := scene.shade(mesh.Material, normal)
			fillTriangle(s.frame, s.zbuffer, pts[0], pts[1], pts[2], col, mesh.Material.Opacity)
		}
	}
	s.frames++

	var out *image.RGBA
	if s.present != nil {
		out = image.NewRGBA(s.frame.Bounds())
		copy(out.Pix, s.frame.Pix)
	}
	s.mu.Unlock()

	if out != nil {
		s.present(out)
	}
}

// Snapshot returns a copy of the last rendered frame
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil
	}
	out := image.NewRGBA(s.frame.Bounds())
	copy(out.Pix, s.frame.Pix)
	return out
}
