// Package ui is the desktop window: two mesh previews, result tables, the
// comparison charts and a status line.
package ui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/philipparndt/canalview/internal/app"
	"github.com/philipparndt/canalview/internal/chart"
	"github.com/philipparndt/canalview/internal/config"
	"github.com/philipparndt/canalview/internal/scene"
	"github.com/philipparndt/canalview/internal/service"
	"github.com/philipparndt/canalview/pkg/stl"
	"github.com/philipparndt/canalview/pkg/viewer"
)

// sideInput is the file chosen for one side
type sideInput struct {
	mu     sync.Mutex
	upload *app.Upload
	path   string
	label  *widget.Label
}

func (s *sideInput) set(upload *app.Upload, path string) {
	s.mu.Lock()
	s.upload = upload
	s.path = path
	s.mu.Unlock()
	s.label.SetText(upload.Name)
}

func (s *sideInput) get() (*app.Upload, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload, s.path
}

// Window is the main canalview window
type Window struct {
	cfg     *config.Config
	window  fyne.Window
	session *app.Session

	ctx    context.Context
	cancel context.CancelFunc

	right, left     *sideInput
	rightVP, leftVP *scene.Viewport
	analyzeButton   *widget.Button
	watchCancel     context.CancelFunc
	watchMu         sync.Mutex
}

// Run opens the window and blocks until it is closed. rightPath and
// leftPath preselect input files and may be empty.
func Run(cfg *config.Config, rightPath, leftPath string) error {
	a := fyneapp.NewWithID("io.github.philipparndt.canalview")
	fw := a.NewWindow("canalview - Canal Comparison")

	ctx, cancel := context.WithCancel(context.Background())
	w := &Window{
		cfg:    cfg,
		window: fw,
		ctx:    ctx,
		cancel: cancel,
		right:  &sideInput{label: widget.NewLabel("No file")},
		left:   &sideInput{label: widget.NewLabel("No file")},
	}

	vpSize := fyne.NewSize(float32(cfg.Viewport.Width), float32(cfg.Viewport.Height))
	rightWidget := NewViewportWidget(vpSize)
	leftWidget := NewViewportWidget(vpSize)

	w.rightVP = scene.NewViewport(scene.Right,
		viewer.NewSurface(cfg.Viewport.Width, cfg.Viewport.Height, rightWidget.Present),
		stl.Loader{}, cfg.ViewportOptions())
	w.leftVP = scene.NewViewport(scene.Left,
		viewer.NewSurface(cfg.Viewport.Width, cfg.Viewport.Height, leftWidget.Present),
		stl.Loader{}, cfg.ViewportOptions())
	rightWidget.Attach(w.rightVP)
	leftWidget.Attach(w.leftVP)

	status := newStatusLabel()
	tables := newResultTables()
	charts := newChartImages(fyne.NewSize(float32(cfg.Chart.Width)/2, float32(cfg.Chart.Height)/2))
	engine := chart.NewEngine(charts, cfg.ChartOptions())

	client := service.New(cfg.Endpoint, nil)
	w.session = app.NewSession(client, w.rightVP, w.leftVP, engine, status, tables)

	w.analyzeButton = widget.NewButton("Analyze", w.analyze)
	w.analyzeButton.Importance = widget.HighImportance

	watchCheck := widget.NewCheck("Re-analyze on file change", w.setWatching)

	inputs := container.NewGridWithColumns(2,
		container.NewHBox(widget.NewButton("Right mesh…", func() { w.choose(w.right) }), w.right.label),
		container.NewHBox(widget.NewButton("Left mesh…", func() { w.choose(w.left) }), w.left.label),
	)
	toolbar := container.NewVBox(
		inputs,
		container.NewHBox(w.analyzeButton, watchCheck, widget.NewLabel(cfg.Endpoint)),
	)

	previews := container.NewGridWithColumns(2,
		widget.NewCard("Right", "", rightWidget),
		widget.NewCard("Left", "", leftWidget),
	)
	resultRow := container.NewGridWithColumns(3,
		widget.NewCard("Right", "", tables.tables[app.TableRight].table),
		widget.NewCard("Left", "", tables.tables[app.TableLeft].table),
		widget.NewCard("Comparison", "", tables.tables[app.TableCompare].table),
	)
	chartRow := container.NewGridWithColumns(2,
		charts.images[chart.SlotComparison],
		charts.images[chart.SlotProfile],
	)

	body := container.NewVSplit(previews, container.NewVScroll(container.NewVBox(resultRow, chartRow)))
	body.Offset = 0.45

	fw.SetContent(container.NewBorder(toolbar, status.label, nil, nil, body))
	fw.Resize(fyne.NewSize(1400, 950))
	fw.SetOnClosed(w.close)

	w.rightVP.Start()
	w.leftVP.Start()

	if err := w.preselect(w.right, rightPath); err != nil {
		slog.Warn("failed to open right mesh", "path", rightPath, "error", err)
	}
	if err := w.preselect(w.left, leftPath); err != nil {
		slog.Warn("failed to open left mesh", "path", leftPath, "error", err)
	}

	fw.ShowAndRun()
	return nil
}

func (w *Window) preselect(side *sideInput, path string) error {
	if path == "" {
		return nil
	}
	upload, err := app.ReadUpload(path)
	if err != nil {
		return err
	}
	side.set(upload, path)
	return nil
}

func (w *Window) choose(side *sideInput) {
	dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, w.window)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			dialog.ShowError(fmt.Errorf("failed to read %s: %w", reader.URI().Name(), err), w.window)
			return
		}
		side.set(&app.Upload{Name: reader.URI().Name(), Data: data}, reader.URI().Path())
	}, w.window)
}

func (w *Window) analyze() {
	right, _ := w.right.get()
	left, _ := w.left.get()

	w.analyzeButton.Disable()
	go func() {
		defer fyne.Do(w.analyzeButton.Enable)
		if err := w.session.Analyze(w.ctx, right, left); err != nil {
			slog.Warn("analysis failed", "error", err)
		}
	}()
}

// setWatching starts or stops re-analysis on file changes
func (w *Window) setWatching(on bool) {
	w.watchMu.Lock()
	defer w.watchMu.Unlock()

	if w.watchCancel != nil {
		w.watchCancel()
		w.watchCancel = nil
	}
	if !on {
		return
	}

	_, rightPath := w.right.get()
	_, leftPath := w.left.get()
	if rightPath == "" || leftPath == "" {
		dialog.ShowInformation("Watch", "Choose both meshes from disk first.", w.window)
		return
	}

	ctx, cancel := context.WithCancel(w.ctx)
	w.watchCancel = cancel
	go func() {
		if err := w.session.WatchFiles(ctx, rightPath, leftPath, w.cfg.WatchDebounce, nil); err != nil {
			slog.Error("watch failed", "dir", filepath.Dir(rightPath), "error", err)
		}
	}()
}

func (w *Window) close() {
	w.cancel()
	w.rightVP.Dispose()
	w.leftVP.Dispose()
}
