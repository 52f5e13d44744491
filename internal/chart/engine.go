// Package chart builds the comparison charts shown after an analysis.
//
// The engine owns one slot per chart type. Building a chart destroys the
// handle currently in its slot first, so a stale chart is never displayed
// next to a new one.
package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Slot identifies a chart display region
type Slot int

const (
	SlotComparison Slot = iota
	SlotProfile
)

func (s Slot) String() string {
	switch s {
	case SlotComparison:
		return "comparison"
	case SlotProfile:
		return "profile"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// Kind is what a handle currently displays
type Kind int

const (
	KindComparison Kind = iota
	KindProfile
	KindPlaceholder
)

// ProfileUnavailable is the placeholder text of a profile that cannot be drawn
const ProfileUnavailable = "profile unavailable"

// Display shows rendered charts. Implementations must be safe to call from
// any goroutine.
type Display interface {
	Show(slot Slot, img image.Image)
	Clear(slot Slot)
}

// Handle references a built chart
type Handle struct {
	ID    uuid.UUID
	Slot  Slot
	Kind  Kind
	Image image.Image

	// Values holds the right and left bar values of a comparison chart
	Values []float64
	// Series holds the right and left curves of a profile chart
	Series []Series

	destroyed atomic.Bool
}

// Destroy marks the handle as released
func (h *Handle) Destroy() {
	h.destroyed.Store(true)
}

// Alive reports whether the handle has not been destroyed
func (h *Handle) Alive() bool {
	return !h.destroyed.Load()
}

// Options configure the rendered chart size in pixels
type Options struct {
	Width  int
	Height int
}

// DefaultOptions returns the chart size used by the desktop window
func DefaultOptions() Options {
	return Options{Width: 800, Height: 320}
}

// Engine builds charts into slots and hands them to a Display
type Engine struct {
	mu      sync.Mutex
	display Display
	opts    Options
	slots   map[Slot]*Handle
}

// NewEngine creates an engine drawing to display. display may be nil.
func NewEngine(display Display, opts Options) *Engine {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	return &Engine{
		display: display,
		opts:    opts,
		slots:   make(map[Slot]*Handle),
	}
}

// BuildComparisonChart draws one normalized value per side on a fixed [0,1] axis
func (e *Engine) BuildComparisonChart(right, left float64) (*Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.destroyLocked(SlotComparison)

	bars := gochart.BarChart{
		Title:      "Isthmus position (normalized)",
		Width:      e.opts.Width,
		Height:     e.opts.Height,
		BarWidth:   e.opts.Width / 6,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis: gochart.YAxis{
			Name:  "0 → 1 along canal",
			Range: &gochart.ContinuousRange{Min: 0, Max: 1},
		},
		Bars: []gochart.Value{
			{Label: "Right", Value: right, Style: gochart.Style{FillColor: gochart.ColorBlue, StrokeColor: gochart.ColorBlue}},
			{Label: "Left", Value: left, Style: gochart.Style{FillColor: gochart.ColorGreen, StrokeColor: gochart.ColorGreen}},
		},
	}

	var buf bytes.Buffer
	if err := bars.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render comparison chart: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode comparison chart: %w", err)
	}

	h := e.installLocked(SlotComparison, KindComparison, img)
	h.Values = []float64{right, left}
	return h, nil
}

// BuildProfileChart draws the right and left area profiles. The sides may
// have different lengths; each curve is plotted against its own positions.
// A side whose positions and areas differ in length fails the build, and the
// slot shows a placeholder instead of the previous chart.
func (e *Engine) BuildProfileChart(right, left Series) (*Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.destroyLocked(SlotProfile)

	if err := right.validate("right"); err != nil {
		e.installLocked(SlotProfile, KindPlaceholder, placeholder(e.opts.Width, e.opts.Height, ProfileUnavailable))
		return nil, err
	}
	if err := left.validate("left"); err != nil {
		e.installLocked(SlotProfile, KindPlaceholder, placeholder(e.opts.Width, e.opts.Height, ProfileUnavailable))
		return nil, err
	}

	var series []gochart.Series
	if len(right.S) > 0 {
		series = append(series, gochart.ContinuousSeries{
			Name:    "Right A(s) (normalized)",
			XValues: right.S,
			YValues: right.A,
			Style:   lineStyle(gochart.ColorBlue, nil),
		})
	}
	if len(left.S) > 0 {
		series = append(series, gochart.ContinuousSeries{
			Name:    "Left A(s) (normalized)",
			XValues: left.S,
			YValues: left.A,
			Style:   lineStyle(gochart.ColorGreen, []float64{6, 4}),
		})
	}

	var img image.Image
	if len(series) == 0 {
		img = placeholder(e.opts.Width, e.opts.Height, "no profile data")
	} else {
		graph := gochart.Chart{
			Width:      e.opts.Width,
			Height:     e.opts.Height,
			Background: gochart.Style{Padding: gochart.Box{Top: 20, Left: 16, Right: 16, Bottom: 16}},
			XAxis: gochart.XAxis{
				Name:  "normalized position",
				Range: &gochart.ContinuousRange{Min: 0, Max: 1},
			},
			YAxis: gochart.YAxis{
				Name:  "normalized area",
				Range: &gochart.ContinuousRange{Min: 0, Max: 1},
			},
			Series: series,
		}
		graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

		var buf bytes.Buffer
		if err := graph.Render(gochart.PNG, &buf); err != nil {
			return nil, fmt.Errorf("failed to render profile chart: %w", err)
		}
		decoded, err := png.Decode(&buf)
		if err != nil {
			return nil, fmt.Errorf("failed to decode profile chart: %w", err)
		}
		img = decoded
	}

	h := e.installLocked(SlotProfile, KindProfile, img)
	h.Series = []Series{right, left}
	return h, nil
}

// Unavailable replaces the chart in slot with a placeholder showing text
func (e *Engine) Unavailable(slot Slot, text string) *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.destroyLocked(slot)
	return e.installLocked(slot, KindPlaceholder, placeholder(e.opts.Width, e.opts.Height, text))
}

// Clear destroys the chart in slot, if any
func (e *Engine) Clear(slot Slot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyLocked(slot)
}

// ClearAll destroys every chart
func (e *Engine) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for slot := range e.slots {
		e.destroyLocked(slot)
	}
}

// Live returns the number of handles that are installed and not destroyed
func (e *Engine) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, h := range e.slots {
		if h.Alive() {
			n++
		}
	}
	return n
}

// Current returns the handle in slot, or nil
func (e *Engine) Current(slot Slot) *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slots[slot]
}

func (e *Engine) destroyLocked(slot Slot) {
	h, ok := e.slots[slot]
	if !ok {
		return
	}
	h.Destroy()
	delete(e.slots, slot)
	if e.display != nil {
		e.display.Clear(slot)
	}
	slog.Debug("chart destroyed", "slot", slot, "id", h.ID)
}

func (e *Engine) installLocked(slot Slot, kind Kind, img image.Image) *Handle {
	h := &Handle{
		ID:    uuid.New(),
		Slot:  slot,
		Kind:  kind,
		Image: img,
	}
	e.slots[slot] = h
	if e.display != nil {
		e.display.Show(slot, img)
	}
	slog.Debug("chart built", "slot", slot, "id", h.ID)
	return h
}

// lineStyle draws a line without point markers
func lineStyle(col drawing.Color, dash []float64) gochart.Style {
	return gochart.Style{
		StrokeColor:     col,
		StrokeWidth:     2,
		StrokeDashArray: dash,
		DotWidth:        0,
	}
}
