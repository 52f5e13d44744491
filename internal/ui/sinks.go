package ui

import (
	"image"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/philipparndt/canalview/internal/app"
	"github.com/philipparndt/canalview/internal/chart"
	"github.com/philipparndt/canalview/internal/format"
)

// statusLabel is the single status line
type statusLabel struct {
	label *widget.Label
}

func newStatusLabel() *statusLabel {
	l := widget.NewLabel("Choose the Right and Left meshes, then Analyze.")
	l.Wrapping = fyne.TextWrapWord
	return &statusLabel{label: l}
}

func (s *statusLabel) SetStatus(text string) {
	fyne.Do(func() {
		s.label.SetText(text)
	})
}

// resultTable is a two-column key/value table
type resultTable struct {
	mu    sync.Mutex
	rows  []format.Row
	table *widget.Table
}

func newResultTable() *resultTable {
	t := &resultTable{}
	t.table = widget.NewTable(
		func() (int, int) {
			t.mu.Lock()
			defer t.mu.Unlock()
			return len(t.rows), 2
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("cartilaginous_volume_diff_percent")
		},
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			t.mu.Lock()
			defer t.mu.Unlock()

			label := obj.(*widget.Label)
			if id.Row >= len(t.rows) {
				label.SetText("")
				return
			}
			row := t.rows[id.Row]
			if id.Col == 0 {
				label.TextStyle = fyne.TextStyle{Monospace: true}
				label.SetText(row.Key)
			} else {
				label.TextStyle = fyne.TextStyle{Bold: true}
				label.SetText(row.Value)
			}
		},
	)
	t.table.SetColumnWidth(0, 260)
	t.table.SetColumnWidth(1, 200)
	return t
}

func (t *resultTable) set(rows []format.Row) {
	t.mu.Lock()
	t.rows = rows
	t.mu.Unlock()
	fyne.Do(t.table.Refresh)
}

// resultTables routes the session's tables to their widgets
type resultTables struct {
	tables map[app.Table]*resultTable
}

func newResultTables() *resultTables {
	return &resultTables{tables: map[app.Table]*resultTable{
		app.TableRight:   newResultTable(),
		app.TableLeft:    newResultTable(),
		app.TableCompare: newResultTable(),
	}}
}

func (r *resultTables) SetTable(table app.Table, rows []format.Row) {
	if t, ok := r.tables[table]; ok {
		t.set(rows)
	}
}

func (r *resultTables) ClearTable(table app.Table) {
	if t, ok := r.tables[table]; ok {
		t.set(nil)
	}
}

// chartImages shows chart slots as images
type chartImages struct {
	images map[chart.Slot]*canvas.Image
	empty  image.Image
}

func newChartImages(minSize fyne.Size) *chartImages {
	empty := image.NewRGBA(image.Rect(0, 0, 1, 1))
	c := &chartImages{images: make(map[chart.Slot]*canvas.Image), empty: empty}
	for _, slot := range []chart.Slot{chart.SlotComparison, chart.SlotProfile} {
		img := canvas.NewImageFromImage(empty)
		img.FillMode = canvas.ImageFillContain
		img.SetMinSize(minSize)
		c.images[slot] = img
	}
	return c
}

func (c *chartImages) Show(slot chart.Slot, img image.Image) {
	c.set(slot, img)
}

func (c *chartImages) Clear(slot chart.Slot) {
	c.set(slot, c.empty)
}

func (c *chartImages) set(slot chart.Slot, img image.Image) {
	target, ok := c.images[slot]
	if !ok {
		return
	}
	fyne.Do(func() {
		target.Image = img
		target.Refresh()
	})
}
