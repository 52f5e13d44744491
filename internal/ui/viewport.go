package ui

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/philipparndt/canalview/internal/scene"
)

const (
	rotateSpeed = 0.01
	zoomSpeed   = 0.002
)

// ViewportWidget shows the frames of a scene.Viewport and turns drag and
// scroll input into orbit controls
type ViewportWidget struct {
	widget.BaseWidget
	viewport *scene.Viewport
	image    *canvas.Image
	minSize  fyne.Size
}

// NewViewportWidget creates an empty widget. Call Attach before showing it.
func NewViewportWidget(minSize fyne.Size) *ViewportWidget {
	img := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScaleFastest

	w := &ViewportWidget{image: img, minSize: minSize}
	w.ExtendBaseWidget(w)
	return w
}

// Attach binds the widget to the viewport it displays
func (w *ViewportWidget) Attach(viewport *scene.Viewport) {
	w.viewport = viewport
}

// Present shows a rendered frame. Safe to call from the redraw goroutine.
func (w *ViewportWidget) Present(frame image.Image) {
	fyne.Do(func() {
		w.image.Image = frame
		w.image.Refresh()
	})
}

// Dragged rotates the camera
func (w *ViewportWidget) Dragged(event *fyne.DragEvent) {
	if w.viewport == nil {
		return
	}
	w.viewport.Orbit(float64(-event.Dragged.DX)*rotateSpeed, float64(event.Dragged.DY)*rotateSpeed)
}

// DragEnd handles the end of a drag event
func (w *ViewportWidget) DragEnd() {}

// Scrolled zooms the camera
func (w *ViewportWidget) Scrolled(event *fyne.ScrollEvent) {
	if w.viewport == nil {
		return
	}
	w.viewport.Zoom(-float64(event.Scrolled.DY) * zoomSpeed)
}

// CreateRenderer creates the renderer for the widget
func (w *ViewportWidget) CreateRenderer() fyne.WidgetRenderer {
	return &viewportRenderer{widget: w}
}

// viewportRenderer implements fyne.WidgetRenderer
type viewportRenderer struct {
	widget *ViewportWidget
}

// Layout keeps the camera aspect and frame size in sync with the widget
func (r *viewportRenderer) Layout(size fyne.Size) {
	r.widget.image.Resize(size)
	if r.widget.viewport != nil {
		r.widget.viewport.Resize(int(size.Width), int(size.Height))
	}
}

func (r *viewportRenderer) MinSize() fyne.Size {
	return r.widget.minSize
}

func (r *viewportRenderer) Refresh() {
	r.widget.image.Refresh()
}

func (r *viewportRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.widget.image}
}

func (r *viewportRenderer) Destroy() {}
