// Package app drives an analysis run from the two input meshes to the
// tables, charts and previews that display its result.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptrace"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/philipparndt/canalview/internal/chart"
	"github.com/philipparndt/canalview/internal/format"
	"github.com/philipparndt/canalview/internal/scene"
	"github.com/philipparndt/canalview/internal/service"
)

// ErrInputValidation is returned when one of the two meshes is missing
var ErrInputValidation = errors.New("both right and left meshes are required")

// Upload is a named mesh file
type Upload = service.Upload

// Table identifies one of the result tables
type Table int

const (
	TableRight Table = iota
	TableLeft
	TableCompare
)

// StatusSink receives the single user-facing status line
type StatusSink interface {
	SetStatus(text string)
}

// TableSink displays formatted result tables
type TableSink interface {
	SetTable(table Table, rows []format.Row)
	ClearTable(table Table)
}

// Analyzer submits a mesh pair to the analysis service
type Analyzer interface {
	Analyze(ctx context.Context, right, left service.Upload) (*service.Result, error)
}

// Preview shows one side's mesh
type Preview interface {
	LoadMesh(ctx context.Context, data []byte) error
}

// Session holds everything one window (or one CLI run) needs to analyze
// mesh pairs. Outputs are passed in explicitly; nil sinks and previews are
// skipped.
type Session struct {
	analyzer Analyzer
	right    Preview
	left     Preview
	charts   *chart.Engine
	status   StatusSink
	tables   TableSink

	// outputMu serializes starting a run and publishing its outputs, so a
	// superseded run can never write over a newer one
	outputMu sync.Mutex

	mu       sync.Mutex
	phase    Phase
	result   *service.Result
	run      uint64
	previews atomic.Int32
}

// NewSession wires an analyzer to its outputs
func NewSession(analyzer Analyzer, right, left Preview, charts *chart.Engine, status StatusSink, tables TableSink) *Session {
	return &Session{
		analyzer: analyzer,
		right:    right,
		left:     left,
		charts:   charts,
		status:   status,
		tables:   tables,
	}
}

// Phase returns the phase of the latest run
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// PreviewsPending returns the number of mesh previews still loading
func (s *Session) PreviewsPending() int {
	return int(s.previews.Load())
}

// Result returns the last successful result, or nil
func (s *Session) Result() *service.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// setPhase records p if run is still the latest run
func (s *Session) setPhase(run uint64, p Phase) {
	s.mu.Lock()
	if run != s.run {
		s.mu.Unlock()
		return
	}
	s.phase = p
	s.mu.Unlock()
	slog.Debug("analysis phase", "run", run, "phase", p)
}

func (s *Session) latest(run uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return run == s.run
}

func (s *Session) setStatus(text string) {
	if s.status != nil {
		s.status.SetStatus(text)
	}
}

// Analyze runs one analysis. Previews of supported files load while the
// request is in flight; their failures are reported but never fail the run.
// When a newer run starts first, this run's outcome is discarded.
func (s *Session) Analyze(ctx context.Context, right, left *Upload) error {
	if right == nil || left == nil {
		s.outputMu.Lock()
		defer s.outputMu.Unlock()
		s.setStatus(StatusMissingInput)
		return ErrInputValidation
	}

	s.outputMu.Lock()
	s.mu.Lock()
	s.run++
	run := s.run
	s.mu.Unlock()
	s.setPhase(run, ValidatingInputs)
	s.setStatus(StatusProcessing)
	s.clearOutputs()
	s.outputMu.Unlock()

	var wg sync.WaitGroup
	previewErrs := make([]error, 2)
	for i, p := range []struct {
		side    scene.Side
		preview Preview
		upload  *Upload
	}{
		{scene.Right, s.right, right},
		{scene.Left, s.left, left},
	} {
		if p.preview == nil || !scene.Supported(p.upload.Name) {
			continue
		}
		i, p := i, p
		wg.Add(1)
		s.previews.Add(1)
		go func() {
			defer wg.Done()
			defer s.previews.Add(-1)
			if err := p.preview.LoadMesh(ctx, p.upload.Data); err != nil && !errors.Is(err, scene.ErrSuperseded) {
				slog.Warn("preview failed", "side", p.side, "file", p.upload.Name, "error", err)
				previewErrs[i] = fmt.Errorf("%s preview: %w", p.side, err)
			}
		}()
	}

	s.setPhase(run, SubmittingRequest)
	trace := &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { s.setPhase(run, AwaitingResponse) },
	}
	result, err := s.analyzer.Analyze(httptrace.WithClientTrace(ctx, trace), *right, *left)

	if s.PreviewsPending() > 0 {
		s.setPhase(run, PreviewingMeshes)
	}
	wg.Wait()
	var notes []string
	for _, perr := range previewErrs {
		if perr != nil {
			notes = append(notes, perr.Error())
		}
	}

	s.outputMu.Lock()
	defer s.outputMu.Unlock()

	if !s.latest(run) {
		slog.Info("discarding outcome of superseded analysis", "run", run, "error", err)
		return err
	}

	if err != nil {
		s.setPhase(run, ReportingError)
		s.setStatus(withNotes(statusFor(err), notes))
		s.setPhase(run, Idle)
		return err
	}

	s.mu.Lock()
	s.result = result
	s.mu.Unlock()

	s.setPhase(run, RenderingResults)
	notes = append(s.render(result), notes...)
	s.setStatus(withNotes(StatusDone, notes))
	s.setPhase(run, Idle)
	return nil
}

// withNotes appends independent failures to a status text
func withNotes(status string, notes []string) string {
	if len(notes) == 0 {
		return status
	}
	return status + " (" + strings.Join(notes, "; ") + ")"
}

// clearOutputs removes tables and charts of the previous run
func (s *Session) clearOutputs() {
	if s.tables != nil {
		for _, t := range []Table{TableRight, TableLeft, TableCompare} {
			s.tables.ClearTable(t)
		}
	}
	if s.charts != nil {
		s.charts.ClearAll()
	}
}

// render fills the tables and rebuilds both charts. Each output is
// independent; failures come back as status notes.
func (s *Session) render(result *service.Result) []string {
	if s.tables != nil {
		s.tables.SetTable(TableRight, format.Rows(result.Right.Fields, SideKeys))
		s.tables.SetTable(TableLeft, format.Rows(result.Left.Fields, SideKeys))
		s.tables.SetTable(TableCompare, format.Rows(result.Comparison.Fields, ComparisonKeys))
	}
	if s.charts == nil {
		return nil
	}

	var notes []string

	rv, rok := result.Right.Float(ComparisonField)
	lv, lok := result.Left.Float(ComparisonField)
	if !rok || !lok {
		err := &service.PayloadError{Field: ComparisonField, Err: errors.New("missing or not a number")}
		slog.Warn("comparison chart skipped", "error", err)
		notes = append(notes, "comparison chart: "+err.Error())
	} else if _, err := s.charts.BuildComparisonChart(rv, lv); err != nil {
		slog.Error("comparison chart failed", "error", err)
		notes = append(notes, "comparison chart: "+err.Error())
	}

	if err := profileErr(result); err != nil {
		slog.Warn("profile chart skipped", "error", err)
		s.charts.Unavailable(chart.SlotProfile, chart.ProfileUnavailable)
		return append(notes, "profile chart: "+err.Error())
	}

	_, err := s.charts.BuildProfileChart(
		chart.Series{S: result.Right.SNorm, A: result.Right.ANorm},
		chart.Series{S: result.Left.SNorm, A: result.Left.ANorm},
	)
	if err != nil {
		slog.Error("profile chart failed", "error", err)
		notes = append(notes, "profile chart: "+err.Error())
	}
	return notes
}

// profileErr returns the decode failure of either side's profile
func profileErr(result *service.Result) error {
	if err := result.Right.ProfileErr; err != nil {
		return fmt.Errorf("right side: %w", err)
	}
	if err := result.Left.ProfileErr; err != nil {
		return fmt.Errorf("left side: %w", err)
	}
	return nil
}

// statusFor maps a failed request to the status line
func statusFor(err error) string {
	var reqErr *service.RequestError
	var payloadErr *service.PayloadError
	switch {
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	case errors.As(err, &reqErr):
		return reqErr.Message
	case errors.As(err, &payloadErr):
		return payloadErr.Error()
	default:
		return service.GenericMessage
	}
}
