package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/philipparndt/canalview/internal/app"
	"github.com/philipparndt/canalview/internal/chart"
	"github.com/philipparndt/canalview/internal/format"
	"github.com/philipparndt/canalview/internal/scene"
	"github.com/philipparndt/canalview/internal/service"
	"github.com/philipparndt/canalview/pkg/stl"
	"github.com/philipparndt/canalview/pkg/viewer"
)

var (
	outDir string
	watch  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <right.stl> <left.stl>",
	Short: "Analyze a mesh pair without opening a window",
	Long: `Upload both meshes to the analysis service, print the result tables and
write comparison.png, profile.png and the mesh previews to the output directory.`,
	Args: cobra.ExactArgs(2),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory for chart and preview images")
	analyzeCmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-analyze whenever an input file changes")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	width, height := cfg.Viewport.Width, cfg.Viewport.Height
	previews := make(map[scene.Side]*preview)
	for _, side := range []scene.Side{scene.Right, scene.Left} {
		surface := viewer.NewSurface(width, height, nil)
		vp := scene.NewViewport(side, surface, stl.Loader{}, cfg.ViewportOptions())
		vp.Resize(width, height)
		defer vp.Dispose()
		previews[side] = &preview{viewport: vp, surface: surface}
	}

	tables := &consoleTables{}
	charts := chart.NewEngine(&pngDisplay{dir: outDir}, cfg.ChartOptions())
	session := app.NewSession(
		service.New(cfg.Endpoint, nil),
		previews[scene.Right].viewport, previews[scene.Left].viewport,
		charts, consoleStatus{}, tables,
	)

	report := func(error) {
		tables.print()
		for side, p := range previews {
			p.write(filepath.Join(outDir, fmt.Sprintf("preview_%s.png", side)))
		}
	}

	err = session.AnalyzeFiles(ctx, args[0], args[1])
	report(err)
	if !watch {
		return err
	}

	fmt.Println("\nWatching for changes, press Ctrl+C to stop")
	return session.WatchFiles(ctx, args[0], args[1], cfg.WatchDebounce, report)
}

// consoleStatus prints every status change
type consoleStatus struct{}

func (consoleStatus) SetStatus(text string) {
	fmt.Printf("Status: %s\n", text)
}

// consoleTables collects the result tables and prints them after a run
type consoleTables struct {
	mu     sync.Mutex
	tables map[app.Table][]format.Row
}

func (c *consoleTables) SetTable(table app.Table, rows []format.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tables == nil {
		c.tables = make(map[app.Table][]format.Row)
	}
	c.tables[table] = rows
}

func (c *consoleTables) ClearTable(table app.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, table)
}

func (c *consoleTables) print() {
	c.mu.Lock()
	defer c.mu.Unlock()

	titles := []struct {
		table app.Table
		title string
	}{
		{app.TableRight, "Right"},
		{app.TableLeft, "Left"},
		{app.TableCompare, "Comparison"},
	}
	for _, t := range titles {
		rows, ok := c.tables[t.table]
		if !ok {
			continue
		}
		fmt.Printf("\n%s\n", t.title)
		for range t.title {
			fmt.Print("=")
		}
		fmt.Println()
		for _, row := range rows {
			fmt.Printf("  %-34s %s\n", row.Key, row.Value)
		}
	}
}

// pngDisplay writes each chart slot to <dir>/<slot>.png
type pngDisplay struct {
	dir string
}

func (d *pngDisplay) path(slot chart.Slot) string {
	return filepath.Join(d.dir, slot.String()+".png")
}

func (d *pngDisplay) Show(slot chart.Slot, img image.Image) {
	if err := writePNG(d.path(slot), img); err != nil {
		slog.Error("failed to write chart", "slot", slot, "error", err)
		return
	}
	fmt.Printf("Chart: %s\n", d.path(slot))
}

func (d *pngDisplay) Clear(slot chart.Slot) {
	if err := os.Remove(d.path(slot)); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove stale chart", "slot", slot, "error", err)
	}
}

// preview is a headless viewport and the surface it renders into
type preview struct {
	viewport *scene.Viewport
	surface  *viewer.Surface
}

// write renders one frame to path if the viewport holds a mesh
func (p *preview) write(path string) {
	if p.viewport.MeshCount() == 0 {
		return
	}
	p.viewport.RenderFrame()
	if err := writePNG(path, p.surface.Snapshot()); err != nil {
		slog.Error("failed to write preview", "path", path, "error", err)
		return
	}
	fmt.Printf("Preview: %s\n", path)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
